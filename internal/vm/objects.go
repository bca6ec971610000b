package vm

import "fmt"

// ObjectType identifies the concrete object variant.
type ObjectType string

const (
	STRING_OBJ       ObjectType = "STRING"
	FUNCTION_OBJ     ObjectType = "FUNCTION"
	CLOSURE_OBJ      ObjectType = "CLOSURE"
	UPVALUE_OBJ      ObjectType = "UPVALUE"
	NATIVE_OBJ       ObjectType = "NATIVE"
	CLASS_OBJ        ObjectType = "CLASS"
	INSTANCE_OBJ     ObjectType = "INSTANCE"
	BOUND_METHOD_OBJ ObjectType = "BOUND_METHOD"
	LIST_OBJ         ObjectType = "LIST"
)

// Object is a heap value owned by the Allocator. Every variant embeds
// objHeader so the collector can mark it in place.
type Object interface {
	Type() ObjectType
	Inspect() string
	header() *objHeader
}

// objHeader carries the collector's per-object state.
type objHeader struct {
	marked bool
	size   int
}

func (h *objHeader) header() *objHeader { return h }

// StringObject is an interned byte sequence. Two equal strings always
// share one StringObject, so Value equality on strings is identity.
type StringObject struct {
	objHeader
	Value string
}

func (s *StringObject) Type() ObjectType { return STRING_OBJ }
func (s *StringObject) Inspect() string  { return s.Value }

// FunctionObject is a compiled function: its bytecode plus the
// metadata the VM needs to call it.
type FunctionObject struct {
	objHeader
	Name         string // empty for the top-level script
	Arity        int
	UpvalueCount int
	Chunk        *Chunk
}

func (f *FunctionObject) Type() ObjectType { return FUNCTION_OBJ }
func (f *FunctionObject) Inspect() string {
	if f.Name == "" {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name)
}

// UpvalueObject is a captured variable. While open, Location is the
// stack slot it aliases; after closing, Location is -1 and the value
// lives in Closed. Next links the VM's open-upvalue list, sorted by
// descending location.
type UpvalueObject struct {
	objHeader
	Location int
	Closed   Value
	Next     *UpvalueObject
}

func (u *UpvalueObject) Type() ObjectType { return UPVALUE_OBJ }
func (u *UpvalueObject) Inspect() string  { return "upvalue" }

// ClosureObject pairs a function with its captured upvalues.
type ClosureObject struct {
	objHeader
	Function *FunctionObject
	Upvalues []*UpvalueObject
}

func (c *ClosureObject) Type() ObjectType { return CLOSURE_OBJ }
func (c *ClosureObject) Inspect() string  { return c.Function.Inspect() }

// NativeFn is the host function contract: it receives the call's
// arguments as a contiguous slice and returns the result value. A
// non-nil error surfaces as a runtime error, the way arity mismatches
// on user-defined functions do.
type NativeFn func(args []Value) (Value, error)

// NativeFunctionObject wraps a Go function as a callable value.
type NativeFunctionObject struct {
	objHeader
	Name string
	Fn   NativeFn
}

func (n *NativeFunctionObject) Type() ObjectType { return NATIVE_OBJ }
func (n *NativeFunctionObject) Inspect() string  { return "<native fn>" }

// ClassObject is a class: a name and its method table.
type ClassObject struct {
	objHeader
	Name    string
	Methods map[string]*ClosureObject
}

func (c *ClassObject) Type() ObjectType { return CLASS_OBJ }
func (c *ClassObject) Inspect() string  { return c.Name }

// InstanceObject is an instance of a class with its own field map.
type InstanceObject struct {
	objHeader
	Class  *ClassObject
	Fields map[string]Value
}

func (i *InstanceObject) Type() ObjectType { return INSTANCE_OBJ }
func (i *InstanceObject) Inspect() string  { return i.Class.Name + " instance" }

// BoundMethodObject is a closure paired with the receiver it was
// accessed through.
type BoundMethodObject struct {
	objHeader
	Receiver Value
	Method   *ClosureObject
}

func (b *BoundMethodObject) Type() ObjectType { return BOUND_METHOD_OBJ }
func (b *BoundMethodObject) Inspect() string  { return b.Method.Inspect() }

// ListObject is a vector of values. No opcode produces one yet; native
// functions may, and the collector traces it like any other object.
type ListObject struct {
	objHeader
	Elements []Value
}

func (l *ListObject) Type() ObjectType { return LIST_OBJ }
func (l *ListObject) Inspect() string {
	out := "["
	for i, el := range l.Elements {
		if i > 0 {
			out += ", "
		}
		out += el.Inspect()
	}
	return out + "]"
}
