// Package parser builds the AST from the lexer's token stream.
//
// The parser is a Pratt parser. On a syntax error it reports the
// diagnostic, enters panic mode, and synchronizes at the next
// statement boundary so one mistake produces one message; if any error
// occurred the parse as a whole fails and no AST is returned.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/funvibe/fenn/internal/ast"
	"github.com/funvibe/fenn/internal/lexer"
	"github.com/funvibe/fenn/internal/token"
)

type precedence int

const (
	precNone precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type prefixFn func(p *Parser, canAssign bool) ast.Expression
type infixFn func(p *Parser, left ast.Expression, canAssign bool) ast.Expression

type parseRule struct {
	prefix prefixFn
	infix  infixFn
	prec   precedence
}

type Parser struct {
	lex       *lexer.Lexer
	current   token.Token
	previous  token.Token
	hadError  bool
	panicMode bool
	errors    []string
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{lex: l}
	p.advance()
	return p
}

// Parse consumes the whole token stream and returns the program's
// declarations. Any syntax error makes the parse fail; every collected
// diagnostic is joined into the returned error.
func (p *Parser) Parse() (*ast.Program, error) {
	program := &ast.Program{}

	for !p.check(token.EOF) {
		decl := p.declaration()
		if decl != nil {
			program.Statements = append(program.Statements, decl)
		}
	}

	if p.hadError {
		return nil, fmt.Errorf("%s", strings.Join(p.errors, "\n"))
	}
	return program, nil
}

// Errors returns the collected diagnostics.
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.lex.NextToken()
		if p.current.Type != token.ERROR {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *Parser) consume(t token.Type, message string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(message)
}

func (p *Parser) check(t token.Type) bool {
	return p.current.Type == t
}

func (p *Parser) match(t token.Type) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) errorAtCurrent(message string) {
	p.errorAt(p.current, message)
}

func (p *Parser) errorAtPrevious(message string) {
	p.errorAt(p.previous, message)
}

func (p *Parser) errorAt(tok token.Token, message string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true

	var where string
	switch tok.Type {
	case token.EOF:
		where = " at end"
	case token.ERROR:
		// The lexeme already is the message.
	default:
		where = fmt.Sprintf(" at '%s'", tok.Lexeme)
	}
	p.errors = append(p.errors, fmt.Sprintf("[line %d] Error%s: %s", tok.Line, where, message))
}

// synchronize skips tokens until a statement boundary so the parser
// can keep reporting later errors after one failure.
func (p *Parser) synchronize() {
	p.panicMode = false

	for !p.check(token.EOF) {
		if p.previous.Type == token.SEMICOLON {
			return
		}
		switch p.current.Type {
		case token.CLASS, token.FUN, token.VAR, token.FOR,
			token.IF, token.WHILE, token.RETURN:
			return
		}
		p.advance()
	}
}

// --- Declarations and statements ---

func (p *Parser) declaration() ast.Statement {
	var stmt ast.Statement
	switch {
	case p.match(token.CLASS):
		stmt = p.classDeclaration()
	case p.match(token.FUN):
		stmt = p.funDeclaration(false)
	case p.match(token.VAR):
		stmt = p.varDeclaration()
	default:
		stmt = p.statement()
	}

	if p.panicMode {
		p.synchronize()
		return nil
	}
	return stmt
}

func (p *Parser) classDeclaration() ast.Statement {
	p.consume(token.IDENTIFIER, "Expect class name.")
	name := p.previous

	cls := &ast.ClassStatement{Name: name}

	if p.match(token.LESS) {
		p.consume(token.IDENTIFIER, "Expect superclass name.")
		super := p.previous
		cls.Superclass = &super
	}

	p.consume(token.LEFT_BRACE, "Expect '{' before class body.")
	for !p.check(token.RIGHT_BRACE) && !p.check(token.EOF) {
		method := p.funDeclaration(true)
		if fn, ok := method.(*ast.FunctionStatement); ok {
			cls.Methods = append(cls.Methods, fn)
		}
	}
	p.consume(token.RIGHT_BRACE, "Expect '}' after class body.")
	cls.EndBrace = p.previous

	return cls
}

func (p *Parser) funDeclaration(method bool) ast.Statement {
	kind := "function"
	if method {
		kind = "method"
	}

	p.consume(token.IDENTIFIER, fmt.Sprintf("Expect %s name.", kind))
	fn := &ast.FunctionStatement{Name: p.previous, IsMethod: method}

	p.consume(token.LEFT_PAREN, fmt.Sprintf("Expect '(' after %s name.", kind))
	if !p.check(token.RIGHT_PAREN) {
		for {
			if len(fn.Params) >= 255 {
				p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			p.consume(token.IDENTIFIER, "Expect parameter name.")
			fn.Params = append(fn.Params, p.previous)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RIGHT_PAREN, "Expect ')' after parameters.")

	p.consume(token.LEFT_BRACE, fmt.Sprintf("Expect '{' before %s body.", kind))
	fn.Body = p.blockStatement()

	return fn
}

func (p *Parser) varDeclaration() ast.Statement {
	p.consume(token.IDENTIFIER, "Expect variable name.")
	stmt := &ast.VarStatement{Name: p.previous}

	if p.match(token.EQUAL) {
		stmt.Initializer = p.expression()
	}
	p.consume(token.SEMICOLON, "Expect ';' after variable declaration.")

	return stmt
}

func (p *Parser) statement() ast.Statement {
	switch {
	case p.match(token.IF):
		return p.ifStatement()
	case p.match(token.WHILE):
		return p.whileStatement()
	case p.match(token.FOR):
		return p.forStatement()
	case p.match(token.RETURN):
		return p.returnStatement()
	case p.match(token.LEFT_BRACE):
		return p.blockStatement()
	default:
		return p.expressionStatement()
	}
}

func (p *Parser) ifStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.previous}

	p.consume(token.LEFT_PAREN, "Expect '(' after 'if'.")
	stmt.Condition = p.expression()
	p.consume(token.RIGHT_PAREN, "Expect ')' after condition.")

	stmt.ThenBranch = p.statement()
	if p.match(token.ELSE) {
		stmt.ElseBranch = p.statement()
	}

	return stmt
}

func (p *Parser) whileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.previous}

	p.consume(token.LEFT_PAREN, "Expect '(' after 'while'.")
	stmt.Condition = p.expression()
	p.consume(token.RIGHT_PAREN, "Expect ')' after condition.")

	stmt.Body = p.statement()

	return stmt
}

// forStatement desugars
//
//	for (init; cond; incr) body
//
// into
//
//	{ init; while (cond) { body; incr; } }
func (p *Parser) forStatement() ast.Statement {
	forTok := p.previous
	p.consume(token.LEFT_PAREN, "Expect '(' after 'for'.")

	var initializer ast.Statement
	switch {
	case p.match(token.SEMICOLON):
		// No initializer.
	case p.match(token.VAR):
		initializer = p.varDeclaration()
	default:
		initializer = p.expressionStatement()
	}

	var condition ast.Expression
	if !p.check(token.SEMICOLON) {
		condition = p.expression()
	}
	p.consume(token.SEMICOLON, "Expect ';' after loop condition.")

	var increment ast.Expression
	if !p.check(token.RIGHT_PAREN) {
		increment = p.expression()
	}
	p.consume(token.RIGHT_PAREN, "Expect ')' after for clauses.")

	body := p.statement()

	if increment != nil {
		body = &ast.BlockStatement{
			EndBrace: p.previous,
			Statements: []ast.Statement{
				body,
				&ast.ExpressionStatement{Token: increment.GetToken(), Expr: increment},
			},
		}
	}

	if condition == nil {
		condition = &ast.BooleanLiteral{Token: forTok, Value: true}
	}

	var loop ast.Statement = &ast.WhileStatement{Token: forTok, Condition: condition, Body: body}

	if initializer != nil {
		loop = &ast.BlockStatement{
			EndBrace:   p.previous,
			Statements: []ast.Statement{initializer, loop},
		}
	}

	return loop
}

func (p *Parser) returnStatement() ast.Statement {
	stmt := &ast.ReturnStatement{Keyword: p.previous}

	if !p.check(token.SEMICOLON) {
		stmt.Value = p.expression()
	}
	p.consume(token.SEMICOLON, "Expect ';' after return value.")

	return stmt
}

func (p *Parser) blockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{}

	for !p.check(token.RIGHT_BRACE) && !p.check(token.EOF) {
		decl := p.declaration()
		if decl != nil {
			block.Statements = append(block.Statements, decl)
		}
	}

	p.consume(token.RIGHT_BRACE, "Expect '}' after block.")
	block.EndBrace = p.previous

	return block
}

func (p *Parser) expressionStatement() ast.Statement {
	expr := p.expression()
	p.consume(token.SEMICOLON, "Expect ';' after expression.")
	return &ast.ExpressionStatement{Token: p.previous, Expr: expr}
}

// --- Expressions ---

func (p *Parser) expression() ast.Expression {
	return p.parsePrecedence(precAssignment)
}

func (p *Parser) parsePrecedence(prec precedence) ast.Expression {
	p.advance()

	rule := rules[p.previous.Type]
	if rule.prefix == nil {
		p.errorAtPrevious("Expect expression.")
		return &ast.NilLiteral{Token: p.previous}
	}

	canAssign := prec <= precAssignment
	left := rule.prefix(p, canAssign)

	for prec <= rules[p.current.Type].prec {
		p.advance()
		left = rules[p.previous.Type].infix(p, left, canAssign)
	}

	if canAssign && p.match(token.EQUAL) {
		p.errorAtPrevious("Invalid assignment target.")
	}

	return left
}

func parseNumber(p *Parser, _ bool) ast.Expression {
	tok := p.previous
	value, err := strconv.ParseFloat(tok.Lexeme, 64)
	if err != nil {
		p.errorAtPrevious("Invalid number literal.")
	}
	return &ast.NumberLiteral{Token: tok, Value: value}
}

func parseString(p *Parser, _ bool) ast.Expression {
	tok := p.previous
	// Trim the surrounding quotes.
	return &ast.StringLiteral{Token: tok, Value: tok.Lexeme[1 : len(tok.Lexeme)-1]}
}

func parseLiteral(p *Parser, _ bool) ast.Expression {
	tok := p.previous
	switch tok.Type {
	case token.TRUE:
		return &ast.BooleanLiteral{Token: tok, Value: true}
	case token.FALSE:
		return &ast.BooleanLiteral{Token: tok, Value: false}
	default:
		return &ast.NilLiteral{Token: tok}
	}
}

func parseGrouping(p *Parser, _ bool) ast.Expression {
	tok := p.previous
	expr := p.expression()
	p.consume(token.RIGHT_PAREN, "Expect ')' after expression.")
	return &ast.Grouping{Token: tok, Expr: expr}
}

func parseUnary(p *Parser, _ bool) ast.Expression {
	op := p.previous
	right := p.parsePrecedence(precUnary)
	return &ast.Unary{Operator: op, Right: right}
}

func parseBinary(p *Parser, left ast.Expression, _ bool) ast.Expression {
	op := p.previous
	rule := rules[op.Type]
	right := p.parsePrecedence(rule.prec + 1)
	return &ast.Binary{Operator: op, Left: left, Right: right}
}

func parseVariable(p *Parser, canAssign bool) ast.Expression {
	name := p.previous

	if canAssign && p.match(token.EQUAL) {
		value := p.expression()
		return &ast.Assign{Name: name, Value: value}
	}
	return &ast.Variable{Token: name}
}

func parseThis(p *Parser, _ bool) ast.Expression {
	return &ast.Variable{Token: p.previous}
}

func parseSuper(p *Parser, _ bool) ast.Expression {
	keyword := p.previous
	p.consume(token.DOT, "Expect '.' after 'super'.")
	p.consume(token.IDENTIFIER, "Expect superclass method name.")
	return &ast.Super{Keyword: keyword, Method: p.previous}
}

func parseCall(p *Parser, left ast.Expression, _ bool) ast.Expression {
	call := &ast.Call{Callee: left}

	if !p.check(token.RIGHT_PAREN) {
		for {
			if len(call.Args) >= 255 {
				p.errorAtCurrent("Can't have more than 255 arguments.")
			}
			call.Args = append(call.Args, p.expression())
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RIGHT_PAREN, "Expect ')' after arguments.")
	call.Paren = p.previous

	return call
}

func parseDot(p *Parser, left ast.Expression, canAssign bool) ast.Expression {
	p.consume(token.IDENTIFIER, "Expect property name after '.'.")
	name := p.previous

	if canAssign && p.match(token.EQUAL) {
		value := p.expression()
		return &ast.Set{Name: name, Object: left, Value: value}
	}
	return &ast.Get{Name: name, Object: left}
}

var rules map[token.Type]parseRule

func init() {
	rules = map[token.Type]parseRule{
		token.LEFT_PAREN:    {parseGrouping, parseCall, precCall},
		token.DOT:           {nil, parseDot, precCall},
		token.MINUS:         {parseUnary, parseBinary, precTerm},
		token.PLUS:          {nil, parseBinary, precTerm},
		token.SLASH:         {nil, parseBinary, precFactor},
		token.STAR:          {nil, parseBinary, precFactor},
		token.BANG:          {parseUnary, nil, precNone},
		token.BANG_EQUAL:    {nil, parseBinary, precEquality},
		token.EQUAL_EQUAL:   {nil, parseBinary, precEquality},
		token.GREATER:       {nil, parseBinary, precComparison},
		token.GREATER_EQUAL: {nil, parseBinary, precComparison},
		token.LESS:          {nil, parseBinary, precComparison},
		token.LESS_EQUAL:    {nil, parseBinary, precComparison},
		token.IDENTIFIER:    {parseVariable, nil, precNone},
		token.STRING:        {parseString, nil, precNone},
		token.NUMBER:        {parseNumber, nil, precNone},
		token.AND:           {nil, parseBinary, precAnd},
		token.OR:            {nil, parseBinary, precOr},
		token.TRUE:          {parseLiteral, nil, precNone},
		token.FALSE:         {parseLiteral, nil, precNone},
		token.NIL:           {parseLiteral, nil, precNone},
		token.THIS:          {parseThis, nil, precNone},
		token.SUPER:         {parseSuper, nil, precNone},
	}
}
