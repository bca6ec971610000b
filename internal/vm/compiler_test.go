package vm

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/funvibe/fenn/internal/config"
	"github.com/funvibe/fenn/internal/lexer"
	"github.com/funvibe/fenn/internal/parser"
)

// compileErr compiles a program expected to fail and returns the typed
// error.
func compileErr(t *testing.T, input string) *CompileError {
	t.Helper()

	p := parser.New(lexer.New(input))
	program, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %s", err)
	}

	alloc := NewAllocator(config.Default().GC)
	fn, err := NewCompiler(alloc).Compile(program)
	if err == nil {
		t.Fatalf("expected compile error, got none")
	}
	if fn != nil {
		t.Fatalf("expected no function on error")
	}

	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompileError, got %T: %s", err, err)
	}
	return ce
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  CompileErrorKind
	}{
		{"return-outside-function", "return;", ReturnOutsideFunction},
		{"return-value-outside-function", "return 1;", ReturnOutsideFunction},
		{"this-outside-class", "this;", ThisOutsideClass},
		{"this-in-function", "fun f() { return this; }", ThisOutsideClass},
		{"super-outside-class", "super.m();", SuperUsedOutsideClass},
		{"super-no-superclass", "class A { m() { super.m(); } }", SuperUsedInClassWithNoSuperClass},
		{"return-inside-initializer", "class P { init() { return 5; } }", ReturnInsideInitializer},
		{"self-inheritance", "class C < C {}", CyclicInheritance},
		{"redefined-local", "{ var a = 1; var a = 2; }", RedefinedVariableInSameScope},
		{"redefined-param", "fun f(a) { var a = 1; }", RedefinedVariableInSameScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := compileErr(t, tt.input)
			if ce.Kind != tt.kind {
				t.Errorf("got kind %s, want %s", ce.Kind, tt.kind)
			}
		})
	}
}

func TestBareReturnInInitializerAllowed(t *testing.T) {
	got := runVM(t, `
		class P {
			init(n) {
				this.n = n;
				if (n == 0) return;
				this.n = n * 2;
			}
		}
		print(P(0).n);
		print(P(3).n);
	`)
	want := "0\n6\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCompileErrorFormatting(t *testing.T) {
	ce := compileErr(t, "class C < C {}")
	want := "Cyclic inheritance: line [1] at 'C'"
	if ce.Error() != want {
		t.Errorf("got %q, want %q", ce.Error(), want)
	}
}

func TestLocalVariableLimit(t *testing.T) {
	// Slot 0 is reserved, so 255 locals fit and the 256th declaration
	// overflows.
	var ok strings.Builder
	ok.WriteString("fun f() {\n")
	for i := 0; i < 255; i++ {
		fmt.Fprintf(&ok, "var l%d = 0;\n", i)
	}
	ok.WriteString("}\n")
	parse(t, ok.String())

	var over strings.Builder
	over.WriteString("fun f() {\n")
	for i := 0; i < 256; i++ {
		fmt.Fprintf(&over, "var l%d = 0;\n", i)
	}
	over.WriteString("}\n")

	ce := compileErr(t, over.String())
	if ce.Kind != LocalVariableLimitExceeded {
		t.Errorf("got kind %s, want %s", ce.Kind, LocalVariableLimitExceeded)
	}
}

func TestChunkConstantLimit(t *testing.T) {
	// Every numeric literal lands in the pool, so 300 of them overflow
	// the single-byte operand space.
	var src strings.Builder
	src.WriteString("var x = 0")
	for i := 1; i <= 300; i++ {
		fmt.Fprintf(&src, " + %d", i)
	}
	src.WriteString(";\n")

	ce := compileErr(t, src.String())
	if ce.Kind != ChunkConstantLimitExceeded {
		t.Errorf("got kind %s, want %s", ce.Kind, ChunkConstantLimitExceeded)
	}
}

func TestJumpLimit(t *testing.T) {
	// A then-branch bigger than a 16-bit offset. Local self-assignment
	// is 5 bytes and adds no constants.
	var src strings.Builder
	src.WriteString("fun f() {\nvar x = 0;\nif (x) {\n")
	for i := 0; i < 14000; i++ {
		src.WriteString("x = x;\n")
	}
	src.WriteString("}\n}\n")

	ce := compileErr(t, src.String())
	if ce.Kind != JumpLimitExceeded {
		t.Errorf("got kind %s, want %s", ce.Kind, JumpLimitExceeded)
	}
}

func TestLoopLimit(t *testing.T) {
	var src strings.Builder
	src.WriteString("fun f() {\nvar x = 0;\nwhile (x) {\n")
	for i := 0; i < 14000; i++ {
		src.WriteString("x = x;\n")
	}
	src.WriteString("}\n}\n")

	ce := compileErr(t, src.String())
	if ce.Kind != LoopLimitExceeded {
		t.Errorf("got kind %s, want %s", ce.Kind, LoopLimitExceeded)
	}
}

func TestUpvalueLimit(t *testing.T) {
	// Two enclosing layers of 200 locals each; the innermost function
	// references all 400 and overflows its upvalue table.
	var src strings.Builder
	src.WriteString("fun outer() {\n")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&src, "var a%d = 0;\n", i)
	}
	src.WriteString("fun middle() {\n")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&src, "var b%d = 0;\n", i)
	}
	src.WriteString("fun inner() {\n")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&src, "a%d;\n", i)
	}
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&src, "b%d;\n", i)
	}
	src.WriteString("}\n}\n}\n")

	ce := compileErr(t, src.String())
	if ce.Kind != UpvalueLimitExceeded {
		t.Errorf("got kind %s, want %s", ce.Kind, UpvalueLimitExceeded)
	}
}

func TestClosureUpvalueMetadata(t *testing.T) {
	// The CLOSURE instruction is followed by exactly UpvalueCount
	// (isLocal, index) pairs; the disassembler walk below would drift
	// off instruction boundaries otherwise.
	fn := parse(t, `
		fun outer() {
			var x = 1;
			var y = 2;
			fun inner() { return x + y; }
			return inner;
		}
		print(outer()());
	`)

	var outer *FunctionObject
	for _, c := range fn.Chunk.Constants {
		if c.IsObj() {
			if f, ok := c.Obj.(*FunctionObject); ok && f.Name == "outer" {
				outer = f
			}
		}
	}
	if outer == nil {
		t.Fatalf("outer function constant not found")
	}

	var inner *FunctionObject
	for _, c := range outer.Chunk.Constants {
		if c.IsObj() {
			if f, ok := c.Obj.(*FunctionObject); ok && f.Name == "inner" {
				inner = f
			}
		}
	}
	if inner == nil {
		t.Fatalf("inner function constant not found")
	}
	if inner.UpvalueCount != 2 {
		t.Errorf("inner upvalue count: got %d, want 2", inner.UpvalueCount)
	}

	got := runVM(t, `
		fun outer() {
			var x = 1;
			var y = 2;
			fun inner() { return x + y; }
			return inner;
		}
		print(outer()());
	`)
	if got != "3\n" {
		t.Errorf("got %q, want %q", got, "3\n")
	}
}

// walkChunk steps instruction by instruction and returns the total
// byte count covered, checking that every boundary lands exactly.
func walkChunk(t *testing.T, chunk *Chunk) int {
	t.Helper()

	var sb strings.Builder
	offset := 0
	for offset < chunk.Len() {
		next := disassembleInstruction(&sb, chunk, offset)
		if next <= offset {
			t.Fatalf("disassembler did not advance at offset %d", offset)
		}
		offset = next
	}
	return offset
}

func TestDisassemblerRoundTrip(t *testing.T) {
	sources := []string{
		"print(1 + 2 * 3);",
		`var a = "x"; a = a + "y"; print(a);`,
		`
			fun make() {
				var x = 0;
				fun inc() { x = x + 1; return x; }
				return inc;
			}
			var c = make();
			c();
		`,
		`
			class A { speak() { print("A"); } }
			class B < A {
				speak() { super.speak(); print("B"); }
			}
			B().speak();
		`,
		`
			for (var i = 0; i < 10; i = i + 1) {
				if (i > 5) print(i); else print(0 - i);
			}
		`,
	}

	for _, src := range sources {
		fn := parse(t, src)

		var walk func(f *FunctionObject)
		walk = func(f *FunctionObject) {
			if got := walkChunk(t, f.Chunk); got != f.Chunk.Len() {
				t.Errorf("chunk walk covered %d bytes of %d", got, f.Chunk.Len())
			}
			for _, c := range f.Chunk.Constants {
				if c.IsObj() {
					if sub, ok := c.Obj.(*FunctionObject); ok {
						walk(sub)
					}
				}
			}
		}
		walk(fn)
	}
}

func TestDisassembleOutput(t *testing.T) {
	fn := parse(t, "print(1 + 2);")
	listing := Disassemble(fn.Chunk, "script")

	for _, want := range []string{"== script ==", "CONSTANT", "ADD", "CALL", "RETURN"} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
}
