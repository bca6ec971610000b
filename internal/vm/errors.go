package vm

import (
	"fmt"
	"strings"

	"github.com/funvibe/fenn/internal/token"
)

// CompileErrorKind enumerates the compile-time failures. Each is
// raised with the offending token; no partial function is surfaced.
type CompileErrorKind int

const (
	LocalVariableLimitExceeded CompileErrorKind = iota
	RedefinedVariableInSameScope
	ChunkConstantLimitExceeded
	JumpLimitExceeded
	LoopLimitExceeded
	ReturnOutsideFunction
	UpvalueLimitExceeded
	ThisOutsideClass
	ReturnInsideInitializer
	CyclicInheritance
	SuperUsedOutsideClass
	SuperUsedInClassWithNoSuperClass
)

var compileErrorNames = map[CompileErrorKind]string{
	LocalVariableLimitExceeded:       "Local variable limit exceeded",
	RedefinedVariableInSameScope:     "Redefined variable in same scope",
	ChunkConstantLimitExceeded:       "Chunk constant limit exceeded",
	JumpLimitExceeded:                "Jump limit exceeded",
	LoopLimitExceeded:                "Loop limit exceeded",
	ReturnOutsideFunction:            "Return outside function",
	UpvalueLimitExceeded:             "Upvalue variable limit exceeded",
	ThisOutsideClass:                 "This outside class",
	ReturnInsideInitializer:          "Return inside initializer",
	CyclicInheritance:                "Cyclic inheritance",
	SuperUsedOutsideClass:            "Super used outside class",
	SuperUsedInClassWithNoSuperClass: "Super used in class with no super class",
}

func (k CompileErrorKind) String() string {
	if name, ok := compileErrorNames[k]; ok {
		return name
	}
	return "Unknown compile error"
}

// CompileError is a typed compile-time diagnostic.
type CompileError struct {
	Kind  CompileErrorKind
	Token token.Token
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: line [%d] at '%s'", e.Kind, e.Token.Line, e.Token.Lexeme)
}

func compileError(kind CompileErrorKind, tok token.Token) error {
	return &CompileError{Kind: kind, Token: tok}
}

// RuntimeError is a terminal execution failure: the message plus the
// call-frame trace captured when it was raised (most recent first).
type RuntimeError struct {
	Message string
	Trace   []string
}

func (e *RuntimeError) Error() string {
	if len(e.Trace) == 0 {
		return e.Message
	}
	return e.Message + "\n" + strings.Join(e.Trace, "\n")
}
