// Package ast defines the syntax tree the parser produces and the
// compiler consumes.
package ast

import "github.com/funvibe/fenn/internal/token"

// Node is the base interface for all AST nodes. GetToken returns the
// node's primary token, used for error reporting and line attribution.
type Node interface {
	GetToken() token.Token
}

// Expression is a Node that produces a value.
type Expression interface {
	Node
	expressionNode()
}

// Statement is a Node executed for its effect.
type Statement interface {
	Node
	statementNode()
}

// Program is the root node: a sequence of declarations.
type Program struct {
	Statements []Statement
}

// --- Expressions ---

// NumberLiteral is a numeric literal such as 1 or 2.5.
type NumberLiteral struct {
	Token token.Token
	Value float64
}

func (n *NumberLiteral) expressionNode()       {}
func (n *NumberLiteral) GetToken() token.Token { return n.Token }

// StringLiteral is a quoted string literal; Value excludes the quotes.
type StringLiteral struct {
	Token token.Token
	Value string
}

func (s *StringLiteral) expressionNode()       {}
func (s *StringLiteral) GetToken() token.Token { return s.Token }

// BooleanLiteral is true or false.
type BooleanLiteral struct {
	Token token.Token
	Value bool
}

func (b *BooleanLiteral) expressionNode()       {}
func (b *BooleanLiteral) GetToken() token.Token { return b.Token }

// NilLiteral is the nil literal.
type NilLiteral struct {
	Token token.Token
}

func (n *NilLiteral) expressionNode()       {}
func (n *NilLiteral) GetToken() token.Token { return n.Token }

// Variable is a bare identifier reference. `this` parses as a Variable
// whose token type is THIS.
type Variable struct {
	Token token.Token // the identifier
}

func (v *Variable) expressionNode()       {}
func (v *Variable) GetToken() token.Token { return v.Token }

// Assign is `target = value` where target is a variable.
type Assign struct {
	Name  token.Token
	Value Expression
}

func (a *Assign) expressionNode()       {}
func (a *Assign) GetToken() token.Token { return a.Name }

// Unary is a prefix operator expression: -x or !x.
type Unary struct {
	Operator token.Token
	Right    Expression
}

func (u *Unary) expressionNode()       {}
func (u *Unary) GetToken() token.Token { return u.Operator }

// Binary covers arithmetic, comparison, and the logical and/or
// operators (the compiler gives and/or short-circuit semantics).
type Binary struct {
	Operator token.Token
	Left     Expression
	Right    Expression
}

func (b *Binary) expressionNode()       {}
func (b *Binary) GetToken() token.Token { return b.Operator }

// Grouping is a parenthesized expression; compilation is transparent.
type Grouping struct {
	Token token.Token // the '('
	Expr  Expression
}

func (g *Grouping) expressionNode()       {}
func (g *Grouping) GetToken() token.Token { return g.Token }

// Call is callee(args...).
type Call struct {
	Paren  token.Token // the closing ')'
	Callee Expression
	Args   []Expression
}

func (c *Call) expressionNode()       {}
func (c *Call) GetToken() token.Token { return c.Paren }

// Get is a property access: object.name.
type Get struct {
	Name   token.Token
	Object Expression
}

func (g *Get) expressionNode()       {}
func (g *Get) GetToken() token.Token { return g.Name }

// Set is a property assignment: object.name = value.
type Set struct {
	Name   token.Token
	Object Expression
	Value  Expression
}

func (s *Set) expressionNode()       {}
func (s *Set) GetToken() token.Token { return s.Name }

// Super is super.method, valid only inside a subclass method body.
type Super struct {
	Keyword token.Token // the 'super' token
	Method  token.Token
}

func (s *Super) expressionNode()       {}
func (s *Super) GetToken() token.Token { return s.Keyword }

// --- Statements ---

// ExpressionStatement evaluates an expression and discards the result.
type ExpressionStatement struct {
	Token token.Token
	Expr  Expression
}

func (e *ExpressionStatement) statementNode()        {}
func (e *ExpressionStatement) GetToken() token.Token { return e.Token }

// VarStatement declares a variable, optionally initialized.
type VarStatement struct {
	Name        token.Token
	Initializer Expression // nil means implicit nil
}

func (v *VarStatement) statementNode()        {}
func (v *VarStatement) GetToken() token.Token { return v.Name }

// BlockStatement is a braced statement list introducing a scope.
type BlockStatement struct {
	EndBrace   token.Token // the closing '}'
	Statements []Statement
}

func (b *BlockStatement) statementNode()        {}
func (b *BlockStatement) GetToken() token.Token { return b.EndBrace }

// IfStatement with optional else branch.
type IfStatement struct {
	Token      token.Token // the 'if' token
	Condition  Expression
	ThenBranch Statement
	ElseBranch Statement // may be nil
}

func (i *IfStatement) statementNode()        {}
func (i *IfStatement) GetToken() token.Token { return i.Token }

// WhileStatement loops while the condition is truthy. `for` loops are
// desugared to this by the parser.
type WhileStatement struct {
	Token     token.Token // the 'while' (or originating 'for') token
	Condition Expression
	Body      Statement
}

func (w *WhileStatement) statementNode()        {}
func (w *WhileStatement) GetToken() token.Token { return w.Token }

// ReturnStatement returns from the enclosing function.
type ReturnStatement struct {
	Keyword token.Token
	Value   Expression // nil for a bare return
}

func (r *ReturnStatement) statementNode()        {}
func (r *ReturnStatement) GetToken() token.Token { return r.Keyword }

// FunctionStatement declares a named function or, inside a class body,
// a method.
type FunctionStatement struct {
	Name     token.Token
	Params   []token.Token
	Body     *BlockStatement
	IsMethod bool
}

func (f *FunctionStatement) statementNode()        {}
func (f *FunctionStatement) GetToken() token.Token { return f.Name }

// ClassStatement declares a class with an optional superclass.
type ClassStatement struct {
	Name       token.Token
	Superclass *token.Token // nil when the class has no superclass
	Methods    []*FunctionStatement
	EndBrace   token.Token
}

func (c *ClassStatement) statementNode()        {}
func (c *ClassStatement) GetToken() token.Token { return c.Name }
