// Package vm implements the bytecode compiler and virtual machine for
// Fenn, together with the object allocator and garbage collector.
package vm

// Opcode is a single VM instruction. Operands are immediate bytes;
// jump offsets are 16-bit big-endian.
type Opcode byte

const (
	OP_CONSTANT Opcode = iota // Push constant from pool
	OP_NIL                    // Push nil
	OP_TRUE                   // Push true
	OP_FALSE                  // Push false
	OP_POP                    // Discard top of stack

	// Variables
	OP_GET_LOCAL     // Push frame-local slot
	OP_SET_LOCAL     // Store top into frame-local slot (non-consuming)
	OP_GET_GLOBAL    // Push global by name constant
	OP_DEFINE_GLOBAL // Define global from top, pop
	OP_SET_GLOBAL    // Store top into existing global (non-consuming)
	OP_GET_UPVALUE   // Push captured variable
	OP_SET_UPVALUE   // Store top into captured variable (non-consuming)
	OP_CLOSE_UPVALUE // Close upvalues for the top slot, pop

	// Operators
	OP_EQUAL
	OP_GREATER
	OP_LESS
	OP_ADD
	OP_SUBTRACT
	OP_MULTIPLY
	OP_DIVIDE
	OP_NOT
	OP_NEGATE

	// Control flow
	OP_JUMP          // Unconditional forward jump
	OP_JUMP_IF_FALSE // Forward jump when top is falsey (top not popped)
	OP_JUMP_IF_TRUE  // Forward jump when top is truthy (top not popped)
	OP_LOOP          // Backward jump

	// Functions
	OP_CALL    // Call stack[-n-1] with n args
	OP_CLOSURE // Build closure from function constant + upvalue pairs
	OP_RETURN  // Return from the current frame

	// Classes
	OP_CLASS        // Push a new class named by constant
	OP_INHERIT      // Copy superclass methods into subclass
	OP_METHOD       // Bind top closure as a method of stack[-2]
	OP_GET_PROPERTY // Push field or bound method of the top instance
	OP_SET_PROPERTY // Store top into a field of stack[-2]
	OP_INVOKE       // Fused GET_PROPERTY + CALL fast path
	OP_GET_SUPER    // Bind a superclass method to the receiver
	OP_SUPER_INVOKE // Fused super.method(args) call
)

// OpcodeNames maps opcodes to their display names (for the
// disassembler and execution tracing).
var OpcodeNames = map[Opcode]string{
	OP_CONSTANT: "CONSTANT",
	OP_NIL:      "NIL",
	OP_TRUE:     "TRUE",
	OP_FALSE:    "FALSE",
	OP_POP:      "POP",

	OP_GET_LOCAL:     "GET_LOCAL",
	OP_SET_LOCAL:     "SET_LOCAL",
	OP_GET_GLOBAL:    "GET_GLOBAL",
	OP_DEFINE_GLOBAL: "DEFINE_GLOBAL",
	OP_SET_GLOBAL:    "SET_GLOBAL",
	OP_GET_UPVALUE:   "GET_UPVALUE",
	OP_SET_UPVALUE:   "SET_UPVALUE",
	OP_CLOSE_UPVALUE: "CLOSE_UPVALUE",

	OP_EQUAL:    "EQUAL",
	OP_GREATER:  "GREATER",
	OP_LESS:     "LESS",
	OP_ADD:      "ADD",
	OP_SUBTRACT: "SUBTRACT",
	OP_MULTIPLY: "MULTIPLY",
	OP_DIVIDE:   "DIVIDE",
	OP_NOT:      "NOT",
	OP_NEGATE:   "NEGATE",

	OP_JUMP:          "JUMP",
	OP_JUMP_IF_FALSE: "JUMP_IF_FALSE",
	OP_JUMP_IF_TRUE:  "JUMP_IF_TRUE",
	OP_LOOP:          "LOOP",

	OP_CALL:    "CALL",
	OP_CLOSURE: "CLOSURE",
	OP_RETURN:  "RETURN",

	OP_CLASS:        "CLASS",
	OP_INHERIT:      "INHERIT",
	OP_METHOD:       "METHOD",
	OP_GET_PROPERTY: "GET_PROPERTY",
	OP_SET_PROPERTY: "SET_PROPERTY",
	OP_INVOKE:       "INVOKE",
	OP_GET_SUPER:    "GET_SUPER",
	OP_SUPER_INVOKE: "SUPER_INVOKE",
}
