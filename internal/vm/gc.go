package vm

import (
	"unsafe"

	"github.com/tliron/commonlog"

	"github.com/funvibe/fenn/internal/config"
)

var gcLog = commonlog.GetLogger("fenn.gc")

// RootSource is the allocator's view of the VM's live state. The
// allocator keeps a non-owning reference and walks it at collection
// time; registration happens once, when the VM is constructed.
type RootSource interface {
	// StackRoots returns the live portion of the value stack.
	StackRoots() []Value

	// FrameClosures returns the closure of every active call frame.
	FrameClosures() []*ClosureObject

	// OpenUpvalueRoots returns the head of the open upvalue list.
	OpenUpvalueRoots() *UpvalueObject

	// GlobalRoots returns the globals map.
	GlobalRoots() map[string]Value
}

// Allocator owns every heap object, interns strings, and collects
// garbage with a precise mark-sweep pass. Objects are only ever freed
// by the sweep phase (or by Free at teardown).
type Allocator struct {
	objects []Object
	strings map[string]*StringObject

	bytesAllocated int
	nextGC         int
	growthFactor   int

	stress bool
	logGC  bool

	roots RootSource

	// lastAllocated protects a mid-construction temporary: it is the
	// first root marked, so a collection triggered by the allocation
	// that produced it can never sweep it.
	lastAllocated Object

	grey []Object
}

// NewAllocator creates an allocator tuned by the GC config.
func NewAllocator(cfg config.GCConfig) *Allocator {
	growth := cfg.GrowthFactor
	if growth <= 0 {
		growth = config.GCGrowthFactor
	}
	return &Allocator{
		strings:      make(map[string]*StringObject),
		nextGC:       config.GCInitialThreshold,
		growthFactor: growth,
		stress:       cfg.Stress,
		logGC:        cfg.Log,
	}
}

// SetRoots registers the VM state the collector traces from. Until
// roots are registered no collection runs, which is what compile-time
// allocations (always collect=false) rely on.
func (a *Allocator) SetRoots(r RootSource) {
	a.roots = r
}

// track registers a fresh object. With collect=true this is a
// safepoint: a collection may run if stress mode is on or the
// allocation volume crossed the threshold. Callers pass collect=false
// when the new object is not yet reachable from any root.
func (a *Allocator) track(obj Object, size int, collect bool) {
	obj.header().size = size
	a.objects = append(a.objects, obj)
	a.bytesAllocated += size
	a.lastAllocated = obj

	if collect && (a.stress || a.bytesAllocated > a.nextGC) {
		a.Collect()
	}
}

// AllocateString interns: equal contents always return the same
// object. A fresh string is tracked with the caller's collect flag;
// every caller passes false because the intern map itself is not a
// root, and the caller makes the string reachable.
func (a *Allocator) AllocateString(value string, collect bool) *StringObject {
	if s, ok := a.strings[value]; ok {
		return s
	}
	s := &StringObject{Value: value}
	a.strings[value] = s
	a.track(s, int(unsafe.Sizeof(*s))+len(value), collect)
	return s
}

// NewFunction allocates an empty function with a fresh chunk.
func (a *Allocator) NewFunction(name string, arity int, collect bool) *FunctionObject {
	f := &FunctionObject{Name: name, Arity: arity, Chunk: NewChunk()}
	a.track(f, int(unsafe.Sizeof(*f)), collect)
	return f
}

// NewClosure wraps a function; upvalues are filled in by the caller.
func (a *Allocator) NewClosure(fn *FunctionObject, collect bool) *ClosureObject {
	c := &ClosureObject{Function: fn, Upvalues: make([]*UpvalueObject, 0, fn.UpvalueCount)}
	a.track(c, int(unsafe.Sizeof(*c)), collect)
	return c
}

// NewUpvalue creates an open upvalue aliasing a stack slot.
func (a *Allocator) NewUpvalue(location int, collect bool) *UpvalueObject {
	u := &UpvalueObject{Location: location}
	a.track(u, int(unsafe.Sizeof(*u)), collect)
	return u
}

// NewNative wraps a host function.
func (a *Allocator) NewNative(name string, fn NativeFn) *NativeFunctionObject {
	n := &NativeFunctionObject{Name: name, Fn: fn}
	a.track(n, int(unsafe.Sizeof(*n)), false)
	return n
}

// NewClass allocates an empty class.
func (a *Allocator) NewClass(name string, collect bool) *ClassObject {
	c := &ClassObject{Name: name, Methods: make(map[string]*ClosureObject)}
	a.track(c, int(unsafe.Sizeof(*c)), collect)
	return c
}

// NewInstance allocates an instance of a class.
func (a *Allocator) NewInstance(class *ClassObject, collect bool) *InstanceObject {
	i := &InstanceObject{Class: class, Fields: make(map[string]Value)}
	a.track(i, int(unsafe.Sizeof(*i)), collect)
	return i
}

// NewBoundMethod pairs a receiver with a method closure.
func (a *Allocator) NewBoundMethod(receiver Value, method *ClosureObject, collect bool) *BoundMethodObject {
	b := &BoundMethodObject{Receiver: receiver, Method: method}
	a.track(b, int(unsafe.Sizeof(*b)), collect)
	return b
}

// NewList allocates a list owning the given elements.
func (a *Allocator) NewList(elements []Value, collect bool) *ListObject {
	l := &ListObject{Elements: elements}
	a.track(l, int(unsafe.Sizeof(*l))+16*len(elements), collect)
	return l
}

// ObjectCount returns the number of live tracked objects.
func (a *Allocator) ObjectCount() int {
	return len(a.objects)
}

// BytesAllocated returns the tracked allocation volume.
func (a *Allocator) BytesAllocated() int {
	return a.bytesAllocated
}

// Collect runs a full mark-sweep cycle. It is a no-op until a root
// source has been registered.
func (a *Allocator) Collect() {
	if a.roots == nil {
		return
	}

	before := a.bytesAllocated
	objectsBefore := len(a.objects)

	a.markRoots()
	a.traceReferences()
	a.removeUnmarkedStrings()
	a.sweep()

	a.nextGC = a.bytesAllocated * a.growthFactor

	if a.logGC {
		gcLog.Infof("collected %d bytes (%d -> %d), %d -> %d objects, next at %d",
			before-a.bytesAllocated, before, a.bytesAllocated,
			objectsBefore, len(a.objects), a.nextGC)
	}
}

func (a *Allocator) markRoots() {
	a.markObject(a.lastAllocated)

	for _, v := range a.roots.StackRoots() {
		a.markValue(v)
	}
	for _, closure := range a.roots.FrameClosures() {
		a.markObject(closure)
	}
	for uv := a.roots.OpenUpvalueRoots(); uv != nil; uv = uv.Next {
		a.markObject(uv)
	}
	for _, v := range a.roots.GlobalRoots() {
		a.markValue(v)
	}
}

func (a *Allocator) markValue(v Value) {
	if v.Type == ValObj && v.Obj != nil {
		a.markObject(v.Obj)
	}
}

func (a *Allocator) markObject(obj Object) {
	if obj == nil || obj.header().marked {
		return
	}
	obj.header().marked = true
	a.grey = append(a.grey, obj)
}

func (a *Allocator) traceReferences() {
	for len(a.grey) > 0 {
		obj := a.grey[len(a.grey)-1]
		a.grey = a.grey[:len(a.grey)-1]
		a.blacken(obj)
	}
}

// blacken marks everything an object references. Strings and natives
// have no outgoing references.
func (a *Allocator) blacken(obj Object) {
	switch o := obj.(type) {
	case *FunctionObject:
		for _, c := range o.Chunk.Constants {
			a.markValue(c)
		}
	case *ClosureObject:
		a.markObject(o.Function)
		for _, uv := range o.Upvalues {
			a.markObject(uv)
		}
	case *UpvalueObject:
		a.markValue(o.Closed)
	case *ClassObject:
		for _, m := range o.Methods {
			a.markObject(m)
		}
	case *InstanceObject:
		a.markObject(o.Class)
		for _, v := range o.Fields {
			a.markValue(v)
		}
	case *BoundMethodObject:
		a.markValue(o.Receiver)
		a.markObject(o.Method)
	case *ListObject:
		for _, v := range o.Elements {
			a.markValue(v)
		}
	}
}

// removeUnmarkedStrings prunes intern entries about to be swept so the
// table does not resurrect dead strings through its keys.
func (a *Allocator) removeUnmarkedStrings() {
	for k, s := range a.strings {
		if !s.marked {
			delete(a.strings, k)
		}
	}
}

func (a *Allocator) sweep() {
	live := a.objects[:0]
	for _, obj := range a.objects {
		h := obj.header()
		if h.marked {
			h.marked = false
			live = append(live, obj)
		} else {
			a.bytesAllocated -= h.size
		}
	}
	// Drop the tail references so the swept objects are really gone.
	for i := len(live); i < len(a.objects); i++ {
		a.objects[i] = nil
	}
	a.objects = live
}

// Free releases every remaining object and the intern table.
func (a *Allocator) Free() {
	a.objects = nil
	a.strings = make(map[string]*StringObject)
	a.bytesAllocated = 0
	a.lastAllocated = nil
}
