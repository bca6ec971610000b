package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tliron/commonlog"

	"github.com/funvibe/fenn/internal/config"
)

var vmLog = commonlog.GetLogger("fenn.vm")

// CallFrame is a single ongoing function call.
type CallFrame struct {
	closure *ClosureObject
	ip      int // instruction offset into the closure's chunk
	base    int // absolute stack index where this frame's slots start
}

// VM executes bytecode against a fixed-capacity value stack and a call
// stack. The stack never reallocates, so open upvalues can hold stable
// slot indices into it.
type VM struct {
	alloc *Allocator

	stack []Value
	sp    int // next free slot

	frames     [config.MaxFrames]CallFrame
	frameCount int

	globals map[string]Value

	// Open upvalues, sorted by descending stack location.
	openUpvalues *UpvalueObject

	out   io.Writer
	in    *bufio.Reader
	start time.Time

	traceExec bool
}

// New creates a VM bound to an allocator and registers itself as the
// allocator's root source. The native functions are defined into the
// global environment.
func New(alloc *Allocator, cfg config.Runtime) *VM {
	vm := &VM{
		alloc:     alloc,
		stack:     make([]Value, config.StackMax),
		globals:   make(map[string]Value),
		out:       os.Stdout,
		in:        bufio.NewReader(os.Stdin),
		start:     time.Now(),
		traceExec: cfg.Trace.Exec,
	}
	alloc.SetRoots(vm)
	vm.defineNatives()
	return vm
}

// SetOutput redirects where print writes. Runtime errors are returned
// to the caller, not written here.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// SetInput redirects where readLine reads.
func (vm *VM) SetInput(r io.Reader) {
	vm.in = bufio.NewReader(r)
}

// Interpret wraps a compiled script function in a closure, pushes the
// initial call frame, and runs to completion. Globals survive across
// calls so a REPL can keep one VM.
func (vm *VM) Interpret(fn *FunctionObject) error {
	vm.sp = 0
	vm.frameCount = 0
	vm.openUpvalues = nil

	closure := vm.alloc.NewClosure(fn, false)
	vm.push(ObjVal(closure))

	if err := vm.call(closure, 0); err != nil {
		return err
	}

	return vm.run()
}

// --- Stack primitives ---

func (vm *VM) push(v Value) {
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() Value {
	vm.sp--
	return vm.stack[vm.sp]
}

// peek returns the value distance slots down from the top without
// popping.
func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.sp-1-distance]
}

// --- Upvalue lifecycle ---

// captureUpvalue returns the open upvalue aliasing the given stack
// slot, creating and inserting one (keeping the list sorted by
// descending location) if none exists.
func (vm *VM) captureUpvalue(location int) *UpvalueObject {
	var prev *UpvalueObject
	uv := vm.openUpvalues
	for uv != nil && uv.Location > location {
		prev = uv
		uv = uv.Next
	}
	if uv != nil && uv.Location == location {
		return uv
	}

	created := vm.alloc.NewUpvalue(location, true)
	created.Next = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above the given slot:
// the current value is copied into the upvalue's own storage and the
// upvalue leaves the open list.
func (vm *VM) closeUpvalues(from int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Location >= from {
		uv := vm.openUpvalues
		uv.Closed = vm.stack[uv.Location]
		uv.Location = -1
		vm.openUpvalues = uv.Next
		uv.Next = nil
	}
}

// --- Runtime errors ---

// runtimeError builds the terminal error: the message plus a frame
// trace, most recent call first.
func (vm *VM) runtimeError(format string, args ...interface{}) error {
	e := &RuntimeError{Message: fmt.Sprintf(format, args...)}

	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.closure.Function
		line := fn.Chunk.LineAt(frame.ip - 1)

		if fn.Name == "" {
			e.Trace = append(e.Trace, fmt.Sprintf("[line %d] in script", line))
		} else {
			e.Trace = append(e.Trace, fmt.Sprintf("[line %d] in %s()", line, fn.Name))
		}
	}

	return e
}

// --- RootSource (the allocator's view of live state) ---

func (vm *VM) StackRoots() []Value {
	return vm.stack[:vm.sp]
}

func (vm *VM) FrameClosures() []*ClosureObject {
	closures := make([]*ClosureObject, 0, vm.frameCount)
	for i := 0; i < vm.frameCount; i++ {
		closures = append(closures, vm.frames[i].closure)
	}
	return closures
}

func (vm *VM) OpenUpvalueRoots() *UpvalueObject {
	return vm.openUpvalues
}

func (vm *VM) GlobalRoots() map[string]Value {
	return vm.globals
}
