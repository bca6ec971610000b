package vm

import "strings"

// run is the dispatch loop. It executes until the top-level frame
// returns, or an unrecoverable runtime error surfaces.
func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := frame.closure.Function.Chunk.Code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() int {
		code := frame.closure.Function.Chunk.Code
		hi := int(code[frame.ip])
		lo := int(code[frame.ip+1])
		frame.ip += 2
		return hi<<8 | lo
	}
	readConstant := func() Value {
		return frame.closure.Function.Chunk.Constants[readByte()]
	}
	readString := func() string {
		return readConstant().Obj.(*StringObject).Value
	}

	for {
		if vm.traceExec {
			var sb strings.Builder
			disassembleInstruction(&sb, frame.closure.Function.Chunk, frame.ip)
			vmLog.Debugf("%s", strings.TrimRight(sb.String(), "\n"))
		}

		op := Opcode(readByte())

		switch op {
		case OP_CONSTANT:
			vm.push(readConstant())

		case OP_NIL:
			vm.push(NilVal())

		case OP_TRUE:
			vm.push(BoolVal(true))

		case OP_FALSE:
			vm.push(BoolVal(false))

		case OP_POP:
			vm.pop()

		case OP_GET_LOCAL:
			slot := int(readByte())
			vm.push(vm.stack[frame.base+slot])

		case OP_SET_LOCAL:
			slot := int(readByte())
			vm.stack[frame.base+slot] = vm.peek(0)

		case OP_GET_GLOBAL:
			name := readString()
			value, ok := vm.globals[name]
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name)
			}
			vm.push(value)

		case OP_DEFINE_GLOBAL:
			name := readString()
			vm.globals[name] = vm.peek(0)
			vm.pop()

		case OP_SET_GLOBAL:
			name := readString()
			if _, ok := vm.globals[name]; !ok {
				return vm.runtimeError("Undefined variable '%s'.", name)
			}
			vm.globals[name] = vm.peek(0)

		case OP_GET_UPVALUE:
			slot := int(readByte())
			uv := frame.closure.Upvalues[slot]
			if uv.Location >= 0 {
				vm.push(vm.stack[uv.Location])
			} else {
				vm.push(uv.Closed)
			}

		case OP_SET_UPVALUE:
			slot := int(readByte())
			uv := frame.closure.Upvalues[slot]
			if uv.Location >= 0 {
				vm.stack[uv.Location] = vm.peek(0)
			} else {
				uv.Closed = vm.peek(0)
			}

		case OP_CLOSE_UPVALUE:
			vm.closeUpvalues(vm.sp - 1)
			vm.pop()

		case OP_EQUAL:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolVal(a.Equals(b)))

		case OP_GREATER:
			b := vm.pop()
			a := vm.pop()
			if !a.IsNumber() || !b.IsNumber() {
				return vm.runtimeError("Operands must be numbers.")
			}
			vm.push(BoolVal(a.AsNumber() > b.AsNumber()))

		case OP_LESS:
			b := vm.pop()
			a := vm.pop()
			if !a.IsNumber() || !b.IsNumber() {
				return vm.runtimeError("Operands must be numbers.")
			}
			vm.push(BoolVal(a.AsNumber() < b.AsNumber()))

		case OP_ADD:
			b := vm.peek(0)
			a := vm.peek(1)

			if a.IsNumber() && b.IsNumber() {
				vm.pop()
				vm.pop()
				vm.push(NumberVal(a.AsNumber() + b.AsNumber()))
				break
			}

			if as, aok := a.IsString(); aok {
				if bs, bok := b.IsString(); bok {
					// The operands stay on the stack across the
					// allocation so a collection cannot sweep them.
					s := vm.alloc.AllocateString(as.Value+bs.Value, false)
					vm.pop()
					vm.pop()
					vm.push(ObjVal(s))
					break
				}
			}

			return vm.runtimeError("Operands to + must both be numbers or strings.")

		case OP_SUBTRACT:
			b := vm.pop()
			a := vm.pop()
			if !a.IsNumber() || !b.IsNumber() {
				return vm.runtimeError("Operands must be numbers.")
			}
			vm.push(NumberVal(a.AsNumber() - b.AsNumber()))

		case OP_MULTIPLY:
			b := vm.pop()
			a := vm.pop()
			if !a.IsNumber() || !b.IsNumber() {
				return vm.runtimeError("Operands must be numbers.")
			}
			vm.push(NumberVal(a.AsNumber() * b.AsNumber()))

		case OP_DIVIDE:
			b := vm.pop()
			a := vm.pop()
			if !a.IsNumber() || !b.IsNumber() {
				return vm.runtimeError("Operands must be numbers.")
			}
			vm.push(NumberVal(a.AsNumber() / b.AsNumber()))

		case OP_NOT:
			v := vm.pop()
			vm.push(BoolVal(v.IsFalsey()))

		case OP_NEGATE:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			v := vm.pop()
			vm.push(NumberVal(-v.AsNumber()))

		case OP_JUMP:
			offset := readShort()
			frame.ip += offset

		case OP_JUMP_IF_FALSE:
			offset := readShort()
			if vm.peek(0).IsFalsey() {
				frame.ip += offset
			}

		case OP_JUMP_IF_TRUE:
			offset := readShort()
			if !vm.peek(0).IsFalsey() {
				frame.ip += offset
			}

		case OP_LOOP:
			offset := readShort()
			frame.ip -= offset

		case OP_CALL:
			argCount := int(readByte())
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case OP_CLOSURE:
			fn := readConstant().Obj.(*FunctionObject)
			closure := vm.alloc.NewClosure(fn, true)
			vm.push(ObjVal(closure))

			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte()
				index := int(readByte())
				if isLocal == 1 {
					closure.Upvalues = append(closure.Upvalues, vm.captureUpvalue(frame.base+index))
				} else {
					closure.Upvalues = append(closure.Upvalues, frame.closure.Upvalues[index])
				}
			}

		case OP_RETURN:
			result := vm.pop()

			vm.closeUpvalues(frame.base)

			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}

			vm.sp = frame.base
			vm.push(result)

			frame = &vm.frames[vm.frameCount-1]

		case OP_CLASS:
			name := readString()
			class := vm.alloc.NewClass(name, true)
			vm.push(ObjVal(class))

		case OP_INHERIT:
			superclass, ok := asClass(vm.peek(1))
			if !ok {
				return vm.runtimeError("Superclass must be a class.")
			}
			subclass := vm.peek(0).Obj.(*ClassObject)

			for name, method := range superclass.Methods {
				subclass.Methods[name] = method
			}

			vm.pop() // subclass; the superclass stays in the `super` slot

		case OP_METHOD:
			name := readString()
			method := vm.peek(0).Obj.(*ClosureObject)
			class := vm.peek(1).Obj.(*ClassObject)
			class.Methods[name] = method
			vm.pop()

		case OP_GET_PROPERTY:
			instance, ok := asInstance(vm.peek(0))
			if !ok {
				return vm.runtimeError("Only instances have properties.")
			}
			name := readString()

			if field, ok := instance.Fields[name]; ok {
				vm.pop()
				vm.push(field)
				break
			}

			if err := vm.bindMethod(instance.Class, name); err != nil {
				return err
			}

		case OP_SET_PROPERTY:
			instance, ok := asInstance(vm.peek(1))
			if !ok {
				return vm.runtimeError("Only instances have fields.")
			}
			name := readString()

			instance.Fields[name] = vm.peek(0)

			value := vm.pop()
			vm.pop()
			vm.push(value)

		case OP_INVOKE:
			name := readString()
			argCount := int(readByte())
			if err := vm.invoke(name, argCount, nil); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case OP_GET_SUPER:
			name := readString()
			superclass, ok := asClass(vm.pop())
			if !ok {
				return vm.runtimeError("Superclass must be a class.")
			}
			if err := vm.bindMethod(superclass, name); err != nil {
				return err
			}

		case OP_SUPER_INVOKE:
			name := readString()
			argCount := int(readByte())
			superclass, ok := asClass(vm.pop())
			if !ok {
				return vm.runtimeError("Superclass must be a class.")
			}
			if err := vm.invoke(name, argCount, superclass); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		default:
			return vm.runtimeError("Unknown opcode %d.", op)
		}
	}
}
