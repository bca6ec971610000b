package vm

import (
	"strings"
	"testing"
)

func TestRuntimeErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{"add-mixed", `"a" + 1;`, "Operands to + must both be numbers or strings."},
		{"add-nil", "nil + nil;", "Operands to + must both be numbers or strings."},
		{"subtract-string", `"a" - "b";`, "Operands must be numbers."},
		{"compare-string", `1 < "a";`, "Operands must be numbers."},
		{"negate-string", `-"a";`, "Operand must be a number."},
		{"undefined-global", "print(b);", "Undefined variable 'b'."},
		{"assign-undefined", "b = 1;", "Undefined variable 'b'."},
		{"call-number", "var x = 1; x();", "Can only call functions and classes."},
		{"call-string", `"f"();`, "Can only call functions and classes."},
		{"arity", "fun f(a) {} f(1, 2);", "Expected 1 arguments but got 2."},
		{"property-on-number", "var x = 1; x.foo;", "Only instances have properties."},
		{"field-on-number", "var x = 1; x.foo = 2;", "Only instances have fields."},
		{"method-on-number", "var x = 1; x.foo();", "Only instances have methods."},
		{"undefined-property", `
			class T {}
			T().missing;
		`, "Undefined property 'missing'."},
		{"undefined-method", `
			class T {}
			T().missing();
		`, "Undefined property 'missing'."},
		{"native-arity-none", "env();", "Expected 1 arguments but got 0."},
		{"native-arity-extra", `env("a", "b");`, "Expected 1 arguments but got 2."},
		{"native-arg-type", "env(1);", "Argument to env must be a string."},
		{"native-clock-arity", "clock(1);", "Expected 0 arguments but got 1."},
		{"native-uuid-arity", "uuid(1, 2);", "Expected 0 arguments but got 2."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rte := runVMError(t, tt.input)
			if rte.Message != tt.message {
				t.Errorf("got %q, want %q", rte.Message, tt.message)
			}
		})
	}
}

func TestRuntimeErrorTrace(t *testing.T) {
	rte := runVMError(t, `fun inner() {
  return missing;
}
fun outer() {
  return inner();
}
outer();`)

	if rte.Message != "Undefined variable 'missing'." {
		t.Fatalf("message: got %q", rte.Message)
	}

	want := []string{
		"[line 2] in inner()",
		"[line 5] in outer()",
		"[line 7] in script",
	}
	if len(rte.Trace) != len(want) {
		t.Fatalf("trace length: got %d (%v), want %d", len(rte.Trace), rte.Trace, len(want))
	}
	for i, line := range want {
		if rte.Trace[i] != line {
			t.Errorf("trace[%d]: got %q, want %q", i, rte.Trace[i], line)
		}
	}
}

func TestRuntimeErrorFormatting(t *testing.T) {
	rte := runVMError(t, "print(b);")

	rendered := rte.Error()
	if !strings.HasPrefix(rendered, "Undefined variable 'b'.") {
		t.Errorf("rendered error missing message: %q", rendered)
	}
	if !strings.Contains(rendered, "in script") {
		t.Errorf("rendered error missing trace: %q", rendered)
	}
}
