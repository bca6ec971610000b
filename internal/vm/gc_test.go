package vm

import (
	"testing"

	"github.com/funvibe/fenn/internal/config"
)

// fakeRoots is a minimal root source for exercising the collector
// without a VM.
type fakeRoots struct {
	stack    []Value
	closures []*ClosureObject
	open     *UpvalueObject
	globals  map[string]Value
}

func (r *fakeRoots) StackRoots() []Value              { return r.stack }
func (r *fakeRoots) FrameClosures() []*ClosureObject  { return r.closures }
func (r *fakeRoots) OpenUpvalueRoots() *UpvalueObject { return r.open }
func (r *fakeRoots) GlobalRoots() map[string]Value {
	if r.globals == nil {
		return map[string]Value{}
	}
	return r.globals
}

func TestStringInterning(t *testing.T) {
	alloc := NewAllocator(config.Default().GC)

	a := alloc.AllocateString("hello", false)
	b := alloc.AllocateString("hello", false)
	if a != b {
		t.Errorf("equal strings interned to different objects")
	}

	c := alloc.AllocateString("world", false)
	if a == c {
		t.Errorf("different strings interned to the same object")
	}

	// Value equality on strings is identity.
	if !ObjVal(a).Equals(ObjVal(b)) {
		t.Errorf("interned strings not equal as values")
	}
	if ObjVal(a).Equals(ObjVal(c)) {
		t.Errorf("distinct strings equal as values")
	}
}

func TestCollectSweepsUnreachable(t *testing.T) {
	alloc := NewAllocator(config.Default().GC)
	roots := &fakeRoots{}
	alloc.SetRoots(roots)

	for i := 0; i < 9; i++ {
		alloc.AllocateString(string(rune('a'+i)), false)
	}
	keep := alloc.AllocateString("keep", false)
	roots.stack = []Value{ObjVal(keep)}

	before := alloc.ObjectCount()
	if before != 10 {
		t.Fatalf("object count before: got %d, want 10", before)
	}

	alloc.Collect()

	if got := alloc.ObjectCount(); got != 1 {
		t.Errorf("object count after: got %d, want 1", got)
	}

	// The swept strings left the intern table: re-interning creates a
	// fresh object, while the rooted one is stable.
	if alloc.AllocateString("keep", false) != keep {
		t.Errorf("rooted string fell out of the intern table")
	}
	old := alloc.ObjectCount()
	alloc.AllocateString("a", false)
	if alloc.ObjectCount() != old+1 {
		t.Errorf("swept string was still interned")
	}
}

func TestCollectKeepsReachableGraphs(t *testing.T) {
	alloc := NewAllocator(config.Default().GC)
	roots := &fakeRoots{}
	alloc.SetRoots(roots)

	// instance -> class -> method closure -> function -> constant,
	// with a field pointing back at the instance: a cycle.
	fn := alloc.NewFunction("m", 0, false)
	constant := alloc.AllocateString("payload", false)
	fn.Chunk.AddConstant(ObjVal(constant))

	closure := alloc.NewClosure(fn, false)
	class := alloc.NewClass("Cycle", false)
	class.Methods["m"] = closure
	instance := alloc.NewInstance(class, false)
	instance.Fields["self"] = ObjVal(instance)

	roots.globals = map[string]Value{"obj": ObjVal(instance)}

	alloc.Collect()
	alloc.Collect() // a second pass must not free anything either

	for _, obj := range []Object{fn, constant, closure, class, instance} {
		found := false
		for i := 0; i < alloc.ObjectCount(); i++ {
			if alloc.objects[i] == obj {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("reachable %s was swept", obj.Type())
		}
	}
}

func TestCollectTracksBytes(t *testing.T) {
	alloc := NewAllocator(config.Default().GC)
	roots := &fakeRoots{}
	alloc.SetRoots(roots)

	for i := 0; i < 100; i++ {
		alloc.NewList(make([]Value, 64), false)
	}

	before := alloc.BytesAllocated()
	alloc.Collect()
	after := alloc.BytesAllocated()

	if after >= before {
		t.Errorf("bytes did not shrink: %d -> %d", before, after)
	}
}

func TestClosedUpvaluesSurviveCollection(t *testing.T) {
	// Closure chain: every intermediate frame dies, the captured
	// variables must not.
	src := `
		fun counter() {
			var n = 0;
			fun bump() {
				n = n + 1;
				return n;
			}
			return bump;
		}
		var a = counter();
		var b = counter();
		a(); a(); b();
		print(a());
		print(b());
	`
	want := "3\n2\n"

	if got := runVM(t, src); got != want {
		t.Errorf("default GC: got %q, want %q", got, want)
	}

	// Stress mode collects at every allocation; the output must not
	// change.
	if got := runVMWithGC(t, src, config.GCConfig{Stress: true, GrowthFactor: 2}); got != want {
		t.Errorf("stress GC: got %q, want %q", got, want)
	}
}

func TestStressCollectionPrograms(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"string-churn", `
			var s = "";
			for (var i = 0; i < 50; i = i + 1) {
				s = s + "x";
			}
			print(s == "x" + s + "");
		`, "false\n"},
		{"instance-churn", `
			class Node {
				init(v) { this.v = v; }
			}
			var total = 0;
			for (var i = 0; i < 100; i = i + 1) {
				total = total + Node(i).v;
			}
			print(total);
		`, "4950\n"},
		{"nested-closures", `
			fun adder(a) {
				fun inner(b) {
					fun innermost(c) { return a + b + c; }
					return innermost;
				}
				return inner;
			}
			print(adder(1)(2)(3));
		`, "6\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runVMWithGC(t, tt.input, config.GCConfig{Stress: true, GrowthFactor: 2})
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
