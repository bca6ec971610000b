package vm

import (
	"github.com/funvibe/fenn/internal/ast"
	"github.com/funvibe/fenn/internal/token"
)

func (c *Compiler) compileExpression(expr ast.Expression) error {
	switch node := expr.(type) {
	case *ast.NumberLiteral:
		return c.emitConstant(NumberVal(node.Value), node.Token)

	case *ast.StringLiteral:
		s := c.alloc.AllocateString(node.Value, false)
		return c.emitConstant(ObjVal(s), node.Token)

	case *ast.BooleanLiteral:
		if node.Value {
			c.emit(OP_TRUE, node.Token.Line)
		} else {
			c.emit(OP_FALSE, node.Token.Line)
		}
		return nil

	case *ast.NilLiteral:
		c.emit(OP_NIL, node.Token.Line)
		return nil

	case *ast.Variable:
		return c.emitVariableGet(node.Token)

	case *ast.Assign:
		if err := c.compileExpression(node.Value); err != nil {
			return err
		}
		return c.emitVariableSet(node.Name)

	case *ast.Grouping:
		return c.compileExpression(node.Expr)

	case *ast.Unary:
		return c.compileUnary(node)

	case *ast.Binary:
		return c.compileBinary(node)

	case *ast.Call:
		return c.compileCall(node)

	case *ast.Get:
		if err := c.compileExpression(node.Object); err != nil {
			return err
		}
		index, err := c.identifierConstant(node.Name)
		if err != nil {
			return err
		}
		c.emitOpByte(OP_GET_PROPERTY, index, node.Name.Line)
		return nil

	case *ast.Set:
		if err := c.compileExpression(node.Object); err != nil {
			return err
		}
		if err := c.compileExpression(node.Value); err != nil {
			return err
		}
		index, err := c.identifierConstant(node.Name)
		if err != nil {
			return err
		}
		c.emitOpByte(OP_SET_PROPERTY, index, node.Name.Line)
		return nil

	case *ast.Super:
		return c.compileSuper(node)

	default:
		return nil
	}
}

func (c *Compiler) compileUnary(node *ast.Unary) error {
	if err := c.compileExpression(node.Right); err != nil {
		return err
	}

	switch node.Operator.Type {
	case token.MINUS:
		c.emit(OP_NEGATE, node.Operator.Line)
	case token.BANG:
		c.emit(OP_NOT, node.Operator.Line)
	}
	return nil
}

func (c *Compiler) compileBinary(node *ast.Binary) error {
	if err := c.compileExpression(node.Left); err != nil {
		return err
	}

	// and/or short-circuit over the right operand.
	switch node.Operator.Type {
	case token.AND:
		jump := c.emitJump(OP_JUMP_IF_FALSE, node.Operator.Line)
		c.emit(OP_POP, node.Operator.Line)
		if err := c.compileExpression(node.Right); err != nil {
			return err
		}
		return c.patchJump(jump, node.Operator)

	case token.OR:
		jump := c.emitJump(OP_JUMP_IF_TRUE, node.Operator.Line)
		c.emit(OP_POP, node.Operator.Line)
		if err := c.compileExpression(node.Right); err != nil {
			return err
		}
		return c.patchJump(jump, node.Operator)
	}

	if err := c.compileExpression(node.Right); err != nil {
		return err
	}

	line := node.Operator.Line
	switch node.Operator.Type {
	case token.PLUS:
		c.emit(OP_ADD, line)
	case token.MINUS:
		c.emit(OP_SUBTRACT, line)
	case token.STAR:
		c.emit(OP_MULTIPLY, line)
	case token.SLASH:
		c.emit(OP_DIVIDE, line)
	case token.EQUAL_EQUAL:
		c.emit(OP_EQUAL, line)
	case token.BANG_EQUAL:
		c.emit(OP_EQUAL, line)
		c.emit(OP_NOT, line)
	case token.GREATER:
		c.emit(OP_GREATER, line)
	case token.LESS:
		c.emit(OP_LESS, line)
	case token.GREATER_EQUAL:
		c.emit(OP_LESS, line)
		c.emit(OP_NOT, line)
	case token.LESS_EQUAL:
		c.emit(OP_GREATER, line)
		c.emit(OP_NOT, line)
	}
	return nil
}

// compileCall emits a plain call, or one of the fused method paths
// when the callee is a property access or a super access.
func (c *Compiler) compileCall(node *ast.Call) error {
	if method, ok := node.Callee.(*ast.Get); ok {
		// obj.name(args): compile the receiver only, then INVOKE looks
		// the method up at runtime without allocating a bound method.
		if err := c.compileExpression(method.Object); err != nil {
			return err
		}
		for _, arg := range node.Args {
			if err := c.compileExpression(arg); err != nil {
				return err
			}
		}
		index, err := c.identifierConstant(method.Name)
		if err != nil {
			return err
		}
		c.emitOpByte(OP_INVOKE, index, node.Paren.Line)
		c.emitByte(byte(len(node.Args)), node.Paren.Line)
		return nil
	}

	if super, ok := node.Callee.(*ast.Super); ok {
		if err := c.checkSuperContext(super); err != nil {
			return err
		}
		// super.name(args): receiver, args, superclass, then the fused
		// invoke.
		if err := c.emitVariableGet(thisToken(super.Keyword.Line)); err != nil {
			return err
		}
		for _, arg := range node.Args {
			if err := c.compileExpression(arg); err != nil {
				return err
			}
		}
		index, err := c.identifierConstant(super.Method)
		if err != nil {
			return err
		}
		if err := c.emitVariableGet(superToken(super.Keyword.Line)); err != nil {
			return err
		}
		c.emitOpByte(OP_SUPER_INVOKE, index, super.Method.Line)
		c.emitByte(byte(len(node.Args)), node.Paren.Line)
		return nil
	}

	if err := c.compileExpression(node.Callee); err != nil {
		return err
	}
	for _, arg := range node.Args {
		if err := c.compileExpression(arg); err != nil {
			return err
		}
	}
	c.emitOpByte(OP_CALL, byte(len(node.Args)), node.Paren.Line)
	return nil
}

// compileSuper emits a bare super.name access: the receiver and the
// superclass, then GET_SUPER binds the method.
func (c *Compiler) compileSuper(node *ast.Super) error {
	if err := c.checkSuperContext(node); err != nil {
		return err
	}

	index, err := c.identifierConstant(node.Method)
	if err != nil {
		return err
	}

	if err := c.emitVariableGet(thisToken(node.Keyword.Line)); err != nil {
		return err
	}
	if err := c.emitVariableGet(superToken(node.Keyword.Line)); err != nil {
		return err
	}
	c.emitOpByte(OP_GET_SUPER, index, node.Keyword.Line)
	return nil
}

func (c *Compiler) checkSuperContext(node *ast.Super) error {
	if c.currentClass == nil {
		return compileError(SuperUsedOutsideClass, node.Keyword)
	}
	if !c.currentClass.hasSuperclass {
		return compileError(SuperUsedInClassWithNoSuperClass, node.Keyword)
	}
	return nil
}

func thisToken(line int) token.Token {
	return token.Token{Type: token.THIS, Lexeme: "this", Line: line}
}

func superToken(line int) token.Token {
	return token.Token{Type: token.SUPER, Lexeme: "super", Line: line}
}
