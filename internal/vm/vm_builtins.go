package vm

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
)

// defineNatives installs the host function library into the globals.
func (vm *VM) defineNatives() {
	vm.defineNative("clock", vm.nativeClock)
	vm.defineNative("print", vm.nativePrint)
	vm.defineNative("uuid", vm.nativeUUID)
	vm.defineNative("readLine", vm.nativeReadLine)
	vm.defineNative("isTTY", vm.nativeIsTTY)
	vm.defineNative("env", vm.nativeEnv)
}

func (vm *VM) defineNative(name string, fn NativeFn) {
	vm.globals[name] = ObjVal(vm.alloc.NewNative(name, fn))
}

// checkArity mirrors the closure call check for fixed-arity natives.
func checkArity(want int, args []Value) error {
	if len(args) != want {
		return fmt.Errorf("Expected %d arguments but got %d.", want, len(args))
	}
	return nil
}

// clock() returns seconds elapsed since the VM started.
func (vm *VM) nativeClock(args []Value) (Value, error) {
	if err := checkArity(0, args); err != nil {
		return NilVal(), err
	}
	return NumberVal(time.Since(vm.start).Seconds()), nil
}

// print(v1, v2, ...) writes the comma-separated arguments and a
// newline, and returns nil. It accepts any number of arguments.
func (vm *VM) nativePrint(args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.Inspect()
	}
	vm.out.Write([]byte(strings.Join(parts, ", ") + "\n"))
	return NilVal(), nil
}

// uuid() returns a fresh random RFC 4122 identifier as a string.
func (vm *VM) nativeUUID(args []Value) (Value, error) {
	if err := checkArity(0, args); err != nil {
		return NilVal(), err
	}
	return ObjVal(vm.alloc.AllocateString(uuid.NewString(), false)), nil
}

// readLine() returns the next input line without its terminator, or
// nil at end of input.
func (vm *VM) nativeReadLine(args []Value) (Value, error) {
	if err := checkArity(0, args); err != nil {
		return NilVal(), err
	}
	line, err := vm.in.ReadString('\n')
	if err != nil && line == "" {
		return NilVal(), nil
	}
	line = strings.TrimRight(line, "\r\n")
	return ObjVal(vm.alloc.AllocateString(line, false)), nil
}

// isTTY() reports whether stdout is a terminal.
func (vm *VM) nativeIsTTY(args []Value) (Value, error) {
	if err := checkArity(0, args); err != nil {
		return NilVal(), err
	}
	fd := os.Stdout.Fd()
	return BoolVal(isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)), nil
}

// env(name) returns the environment variable's value, or nil when it
// is unset.
func (vm *VM) nativeEnv(args []Value) (Value, error) {
	if err := checkArity(1, args); err != nil {
		return NilVal(), err
	}
	name, ok := args[0].IsString()
	if !ok {
		return NilVal(), fmt.Errorf("Argument to env must be a string.")
	}
	value, found := os.LookupEnv(name.Value)
	if !found {
		return NilVal(), nil
	}
	return ObjVal(vm.alloc.AllocateString(value, false)), nil
}
