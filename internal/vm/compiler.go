package vm

import (
	"github.com/funvibe/fenn/internal/ast"
	"github.com/funvibe/fenn/internal/config"
	"github.com/funvibe/fenn/internal/token"
)

// FunctionType distinguishes what kind of function body a compiler
// unit is producing.
type FunctionType int

const (
	TYPE_SCRIPT FunctionType = iota
	TYPE_FUNCTION
	TYPE_METHOD
	TYPE_INITIALIZER
)

// Local is a variable slot during compilation. Its index in the locals
// array is its runtime stack slot relative to the frame base.
type Local struct {
	Name       token.Token
	Depth      int
	IsCaptured bool
}

// Upvalue records how a nested function captures an enclosing
// variable: a local slot of the enclosing function, or one of the
// enclosing function's own upvalues.
type Upvalue struct {
	Index   uint8
	IsLocal bool
}

// classCompiler tracks the innermost class declaration being compiled,
// so `this` and `super` can be validated.
type classCompiler struct {
	enclosing     *classCompiler
	hasSuperclass bool
}

// Compiler lowers AST declarations to bytecode. One Compiler exists
// per function being compiled; nested functions get a fresh unit
// linked through enclosing for upvalue resolution.
type Compiler struct {
	alloc *Allocator

	function *FunctionObject
	funcType FunctionType

	locals     [config.MaxLocals]Local
	localCount int
	scopeDepth int

	upvalues [config.MaxUpvalues]Upvalue

	enclosing    *Compiler
	currentClass *classCompiler
}

// NewCompiler creates the compiler for a top-level script.
func NewCompiler(alloc *Allocator) *Compiler {
	c := &Compiler{
		alloc:    alloc,
		funcType: TYPE_SCRIPT,
	}
	c.function = alloc.NewFunction("", 0, false)
	// Slot 0 is reserved for the callee value.
	c.locals[0] = Local{Depth: 0}
	c.localCount = 1
	return c
}

func newFunctionCompiler(enclosing *Compiler, name string, arity int, funcType FunctionType) *Compiler {
	c := &Compiler{
		alloc:        enclosing.alloc,
		funcType:     funcType,
		enclosing:    enclosing,
		currentClass: enclosing.currentClass,
	}
	c.function = c.alloc.NewFunction(name, arity, false)

	// Slot 0 is reserved: methods use it for the receiver.
	if funcType == TYPE_METHOD || funcType == TYPE_INITIALIZER {
		c.locals[0] = Local{Name: token.Token{Type: token.THIS, Lexeme: "this"}, Depth: 0}
	} else {
		c.locals[0] = Local{Depth: 0}
	}
	c.localCount = 1

	return c
}

// Compile lowers a program to its top-level function. On error no
// function is returned.
func (c *Compiler) Compile(program *ast.Program) (*FunctionObject, error) {
	for _, stmt := range program.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return nil, err
		}
	}

	c.emitReturn(0)

	return c.function, nil
}

func (c *Compiler) currentChunk() *Chunk {
	return c.function.Chunk
}

// --- Emission ---

func (c *Compiler) emit(op Opcode, line int) {
	c.currentChunk().WriteOp(op, line)
}

func (c *Compiler) emitByte(b byte, line int) {
	c.currentChunk().Write(b, line)
}

func (c *Compiler) emitOpByte(op Opcode, operand byte, line int) {
	c.emit(op, line)
	c.emitByte(operand, line)
}

// makeConstant adds a value to the pool, enforcing the single-byte
// operand limit.
func (c *Compiler) makeConstant(value Value, tok token.Token) (byte, error) {
	index := c.currentChunk().AddConstant(value)
	if index >= config.MaxConstants {
		return 0, compileError(ChunkConstantLimitExceeded, tok)
	}
	return byte(index), nil
}

func (c *Compiler) emitConstant(value Value, tok token.Token) error {
	index, err := c.makeConstant(value, tok)
	if err != nil {
		return err
	}
	c.emitOpByte(OP_CONSTANT, index, tok.Line)
	return nil
}

// identifierConstant interns the name and stores it in the pool.
func (c *Compiler) identifierConstant(name token.Token) (byte, error) {
	s := c.alloc.AllocateString(name.Lexeme, false)
	return c.makeConstant(ObjVal(s), name)
}

// emitJump writes a jump with a placeholder offset and returns the
// position to patch.
func (c *Compiler) emitJump(op Opcode, line int) int {
	c.emit(op, line)
	c.emitByte(0xff, line)
	c.emitByte(0xff, line)
	return c.currentChunk().Len() - 2
}

func (c *Compiler) patchJump(offset int, tok token.Token) error {
	jump := c.currentChunk().Len() - offset - 2
	if jump > config.MaxJump {
		return compileError(JumpLimitExceeded, tok)
	}
	c.currentChunk().Code[offset] = byte(jump >> 8)
	c.currentChunk().Code[offset+1] = byte(jump)
	return nil
}

func (c *Compiler) emitLoop(loopStart int, tok token.Token) error {
	c.emit(OP_LOOP, tok.Line)

	offset := c.currentChunk().Len() - loopStart + 2
	if offset > config.MaxJump {
		return compileError(LoopLimitExceeded, tok)
	}

	c.emitByte(byte(offset>>8), tok.Line)
	c.emitByte(byte(offset), tok.Line)
	return nil
}

// emitReturn writes the implicit return: initializers return the
// receiver, everything else returns nil.
func (c *Compiler) emitReturn(line int) {
	if c.funcType == TYPE_INITIALIZER {
		c.emitOpByte(OP_GET_LOCAL, 0, line)
	} else {
		c.emit(OP_NIL, line)
	}
	c.emit(OP_RETURN, line)
}

// --- Scopes and variables ---

func (c *Compiler) beginScope() {
	c.scopeDepth++
}

func (c *Compiler) endScope(line int) {
	c.scopeDepth--

	for c.localCount > 0 && c.locals[c.localCount-1].Depth > c.scopeDepth {
		if c.locals[c.localCount-1].IsCaptured {
			c.emit(OP_CLOSE_UPVALUE, line)
		} else {
			c.emit(OP_POP, line)
		}
		c.localCount--
	}
}

// addLocal appends a local at the current depth, rejecting redefinition
// within the same scope.
func (c *Compiler) addLocal(name token.Token) error {
	for i := c.localCount - 1; i >= 0; i-- {
		local := &c.locals[i]
		if local.Depth != -1 && local.Depth < c.scopeDepth {
			break
		}
		if local.Name.Lexeme == name.Lexeme && name.Lexeme != "" {
			return compileError(RedefinedVariableInSameScope, name)
		}
	}

	if c.localCount == config.MaxLocals {
		return compileError(LocalVariableLimitExceeded, name)
	}

	c.locals[c.localCount] = Local{Name: name, Depth: c.scopeDepth}
	c.localCount++
	return nil
}

// defineVariable emits a global definition at depth 0 and records a
// local otherwise.
func (c *Compiler) defineVariable(name token.Token) error {
	if c.scopeDepth == 0 {
		index, err := c.identifierConstant(name)
		if err != nil {
			return err
		}
		c.emitOpByte(OP_DEFINE_GLOBAL, index, name.Line)
		return nil
	}
	return c.addLocal(name)
}

// resolveLocal finds a local by lexeme, scanning innermost first.
// Returns the stack slot or -1.
func (c *Compiler) resolveLocal(name token.Token) int {
	for i := c.localCount - 1; i >= 0; i-- {
		if c.locals[i].Name.Lexeme == name.Lexeme {
			return i
		}
	}
	return -1
}

// resolveUpvalue looks for the name in enclosing functions, recording
// the capture chain on the way back down. Returns the upvalue index or
// -1.
func (c *Compiler) resolveUpvalue(name token.Token) (int, error) {
	if c.enclosing == nil {
		return -1, nil
	}

	if local := c.enclosing.resolveLocal(name); local != -1 {
		c.enclosing.locals[local].IsCaptured = true
		return c.addUpvalue(uint8(local), true, name)
	}

	upvalue, err := c.enclosing.resolveUpvalue(name)
	if err != nil {
		return -1, err
	}
	if upvalue != -1 {
		return c.addUpvalue(uint8(upvalue), false, name)
	}

	return -1, nil
}

func (c *Compiler) addUpvalue(index uint8, isLocal bool, name token.Token) (int, error) {
	count := c.function.UpvalueCount

	for i := 0; i < count; i++ {
		if c.upvalues[i].Index == index && c.upvalues[i].IsLocal == isLocal {
			return i, nil
		}
	}

	if count == config.MaxUpvalues {
		return -1, compileError(UpvalueLimitExceeded, name)
	}

	c.upvalues[count] = Upvalue{Index: index, IsLocal: isLocal}
	c.function.UpvalueCount++
	return count, nil
}

// emitVariableGet compiles a read of a named variable: local, upvalue,
// or global, in that order.
func (c *Compiler) emitVariableGet(name token.Token) error {
	if name.Type == token.THIS && c.currentClass == nil {
		return compileError(ThisOutsideClass, name)
	}

	if slot := c.resolveLocal(name); slot != -1 {
		c.emitOpByte(OP_GET_LOCAL, byte(slot), name.Line)
		return nil
	}

	slot, err := c.resolveUpvalue(name)
	if err != nil {
		return err
	}
	if slot != -1 {
		c.emitOpByte(OP_GET_UPVALUE, byte(slot), name.Line)
		return nil
	}

	index, err := c.identifierConstant(name)
	if err != nil {
		return err
	}
	c.emitOpByte(OP_GET_GLOBAL, index, name.Line)
	return nil
}

// emitVariableSet compiles a write to a named variable. The assigned
// value stays on the stack.
func (c *Compiler) emitVariableSet(name token.Token) error {
	if slot := c.resolveLocal(name); slot != -1 {
		c.emitOpByte(OP_SET_LOCAL, byte(slot), name.Line)
		return nil
	}

	slot, err := c.resolveUpvalue(name)
	if err != nil {
		return err
	}
	if slot != -1 {
		c.emitOpByte(OP_SET_UPVALUE, byte(slot), name.Line)
		return nil
	}

	index, err := c.identifierConstant(name)
	if err != nil {
		return err
	}
	c.emitOpByte(OP_SET_GLOBAL, index, name.Line)
	return nil
}
