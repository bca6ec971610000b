package vm

import (
	"github.com/funvibe/fenn/internal/ast"
	"github.com/funvibe/fenn/internal/token"
)

func (c *Compiler) compileStatement(stmt ast.Statement) error {
	switch node := stmt.(type) {
	case *ast.ExpressionStatement:
		if err := c.compileExpression(node.Expr); err != nil {
			return err
		}
		c.emit(OP_POP, node.Token.Line)
		return nil

	case *ast.VarStatement:
		return c.compileVarStatement(node)

	case *ast.BlockStatement:
		c.beginScope()
		for _, s := range node.Statements {
			if err := c.compileStatement(s); err != nil {
				return err
			}
		}
		c.endScope(node.EndBrace.Line)
		return nil

	case *ast.IfStatement:
		return c.compileIfStatement(node)

	case *ast.WhileStatement:
		return c.compileWhileStatement(node)

	case *ast.ReturnStatement:
		return c.compileReturnStatement(node)

	case *ast.FunctionStatement:
		return c.compileFunctionStatement(node)

	case *ast.ClassStatement:
		return c.compileClassStatement(node)

	default:
		// The parser only produces the nodes above.
		return nil
	}
}

func (c *Compiler) compileVarStatement(node *ast.VarStatement) error {
	if node.Initializer != nil {
		if err := c.compileExpression(node.Initializer); err != nil {
			return err
		}
	} else {
		c.emit(OP_NIL, node.Name.Line)
	}
	return c.defineVariable(node.Name)
}

func (c *Compiler) compileIfStatement(node *ast.IfStatement) error {
	if err := c.compileExpression(node.Condition); err != nil {
		return err
	}

	thenJump := c.emitJump(OP_JUMP_IF_FALSE, node.Token.Line)
	c.emit(OP_POP, node.Token.Line)

	if err := c.compileStatement(node.ThenBranch); err != nil {
		return err
	}

	elseJump := c.emitJump(OP_JUMP, node.Token.Line)

	if err := c.patchJump(thenJump, node.Token); err != nil {
		return err
	}
	c.emit(OP_POP, node.Token.Line)

	if node.ElseBranch != nil {
		if err := c.compileStatement(node.ElseBranch); err != nil {
			return err
		}
	}

	return c.patchJump(elseJump, node.Token)
}

func (c *Compiler) compileWhileStatement(node *ast.WhileStatement) error {
	loopStart := c.currentChunk().Len()

	if err := c.compileExpression(node.Condition); err != nil {
		return err
	}

	exitJump := c.emitJump(OP_JUMP_IF_FALSE, node.Token.Line)
	c.emit(OP_POP, node.Token.Line)

	if err := c.compileStatement(node.Body); err != nil {
		return err
	}

	if err := c.emitLoop(loopStart, node.Token); err != nil {
		return err
	}

	if err := c.patchJump(exitJump, node.Token); err != nil {
		return err
	}
	c.emit(OP_POP, node.Token.Line)

	return nil
}

func (c *Compiler) compileReturnStatement(node *ast.ReturnStatement) error {
	if c.funcType == TYPE_SCRIPT {
		return compileError(ReturnOutsideFunction, node.Keyword)
	}

	if node.Value != nil {
		if c.funcType == TYPE_INITIALIZER {
			return compileError(ReturnInsideInitializer, node.Keyword)
		}
		if err := c.compileExpression(node.Value); err != nil {
			return err
		}
		c.emit(OP_RETURN, node.Keyword.Line)
		return nil
	}

	c.emitReturn(node.Keyword.Line)
	return nil
}

// compileFunction compiles a function body in a nested compiler unit
// and emits the CLOSURE instruction with its upvalue pairs.
func (c *Compiler) compileFunction(node *ast.FunctionStatement, funcType FunctionType) error {
	sub := newFunctionCompiler(c, node.Name.Lexeme, len(node.Params), funcType)

	sub.beginScope()

	for _, param := range node.Params {
		if err := sub.addLocal(param); err != nil {
			return err
		}
	}

	for _, stmt := range node.Body.Statements {
		if err := sub.compileStatement(stmt); err != nil {
			return err
		}
	}

	sub.emitReturn(node.Body.EndBrace.Line)

	fn := sub.function

	index, err := c.makeConstant(ObjVal(fn), node.Name)
	if err != nil {
		return err
	}
	c.emitOpByte(OP_CLOSURE, index, node.Name.Line)

	for i := 0; i < fn.UpvalueCount; i++ {
		if sub.upvalues[i].IsLocal {
			c.emitByte(1, node.Name.Line)
		} else {
			c.emitByte(0, node.Name.Line)
		}
		c.emitByte(sub.upvalues[i].Index, node.Name.Line)
	}

	return nil
}

func (c *Compiler) compileFunctionStatement(node *ast.FunctionStatement) error {
	if err := c.compileFunction(node, TYPE_FUNCTION); err != nil {
		return err
	}
	return c.defineVariable(node.Name)
}

func (c *Compiler) compileClassStatement(node *ast.ClassStatement) error {
	nameConst, err := c.identifierConstant(node.Name)
	if err != nil {
		return err
	}
	c.emitOpByte(OP_CLASS, nameConst, node.Name.Line)

	if err := c.defineVariable(node.Name); err != nil {
		return err
	}

	c.currentClass = &classCompiler{enclosing: c.currentClass}
	defer func() { c.currentClass = c.currentClass.enclosing }()

	if node.Superclass != nil {
		if node.Superclass.Lexeme == node.Name.Lexeme {
			return compileError(CyclicInheritance, node.Name)
		}

		c.beginScope()
		if err := c.addLocal(token.Token{Type: token.SUPER, Line: node.Name.Line, Lexeme: "super"}); err != nil {
			return err
		}

		// Push the superclass and then the subclass; INHERIT copies the
		// method table and pops the subclass, leaving the superclass in
		// the `super` slot.
		if err := c.emitVariableGet(*node.Superclass); err != nil {
			return err
		}
		if err := c.emitVariableGet(node.Name); err != nil {
			return err
		}
		c.emit(OP_INHERIT, node.Name.Line)

		c.currentClass.hasSuperclass = true
	}

	// Keep the class on the stack while its methods are bound.
	if err := c.emitVariableGet(node.Name); err != nil {
		return err
	}

	for _, method := range node.Methods {
		if err := c.compileMethod(method); err != nil {
			return err
		}
	}

	c.emit(OP_POP, node.EndBrace.Line)

	if c.currentClass.hasSuperclass {
		c.endScope(node.EndBrace.Line)
	}

	return nil
}

func (c *Compiler) compileMethod(node *ast.FunctionStatement) error {
	funcType := TYPE_METHOD
	if node.Name.Lexeme == "init" {
		funcType = TYPE_INITIALIZER
	}

	if err := c.compileFunction(node, funcType); err != nil {
		return err
	}

	nameConst, err := c.identifierConstant(node.Name)
	if err != nil {
		return err
	}
	c.emitOpByte(OP_METHOD, nameConst, node.Name.Line)
	return nil
}
