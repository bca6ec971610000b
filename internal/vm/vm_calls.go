package vm

import "github.com/funvibe/fenn/internal/config"

// callValue dispatches a call on the callee sitting below its argCount
// arguments on the stack.
func (vm *VM) callValue(callee Value, argCount int) error {
	if callee.IsObj() {
		switch fn := callee.Obj.(type) {
		case *ClosureObject:
			return vm.call(fn, argCount)

		case *NativeFunctionObject:
			args := vm.stack[vm.sp-argCount : vm.sp]
			result, err := fn.Fn(args)
			if err != nil {
				return vm.runtimeError("%s", err)
			}
			vm.sp -= argCount + 1
			vm.push(result)
			return nil

		case *ClassObject:
			// The fresh instance replaces the callee slot; until that
			// store it is protected as the most recent allocation.
			instance := vm.alloc.NewInstance(fn, true)
			vm.stack[vm.sp-argCount-1] = ObjVal(instance)

			if init, ok := fn.Methods["init"]; ok {
				return vm.call(init, argCount)
			}
			if argCount != 0 {
				return vm.runtimeError("Expected 0 arguments but got %d.", argCount)
			}
			return nil

		case *BoundMethodObject:
			vm.stack[vm.sp-argCount-1] = fn.Receiver
			return vm.call(fn.Method, argCount)
		}
	}

	return vm.runtimeError("Can only call functions and classes.")
}

// call pushes a frame for a closure after checking arity and depth.
func (vm *VM) call(closure *ClosureObject, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.",
			closure.Function.Arity, argCount)
	}

	if vm.frameCount == config.MaxFrames {
		return vm.runtimeError("Stack overflow.")
	}

	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.base = vm.sp - argCount - 1

	return nil
}

// invoke is the fused method-call path: look the name up on the
// receiver's class (or an explicit superclass for super calls) and
// call it without materializing a bound method. A plain invoke falls
// back to a callable field of the same name.
func (vm *VM) invoke(name string, argCount int, super *ClassObject) error {
	receiver := vm.stack[vm.sp-argCount-1]

	instance, ok := asInstance(receiver)
	if !ok {
		return vm.runtimeError("Only instances have methods.")
	}

	class := super
	if class == nil {
		class = instance.Class
	}

	if method, ok := class.Methods[name]; ok {
		return vm.call(method, argCount)
	}

	// Super calls only resolve methods.
	if super == nil {
		if field, ok := instance.Fields[name]; ok {
			vm.stack[vm.sp-argCount-1] = field
			return vm.callValue(field, argCount)
		}
	}

	return vm.runtimeError("Undefined property '%s'.", name)
}

// bindMethod replaces the receiver on top of the stack with a bound
// method for the named method of the class.
func (vm *VM) bindMethod(class *ClassObject, name string) error {
	method, ok := class.Methods[name]
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name)
	}

	bound := vm.alloc.NewBoundMethod(vm.peek(0), method, true)
	vm.pop()
	vm.push(ObjVal(bound))
	return nil
}

func asInstance(v Value) (*InstanceObject, bool) {
	if !v.IsObj() {
		return nil, false
	}
	i, ok := v.Obj.(*InstanceObject)
	return i, ok
}

func asClass(v Value) (*ClassObject, bool) {
	if !v.IsObj() {
		return nil, false
	}
	c, ok := v.Obj.(*ClassObject)
	return c, ok
}
