package vm

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// A bundle is a compiled program serialized to disk, executable later
// without the frontend. The payload is CBOR behind a small header.

var bundleMagic = []byte{'F', 'N', 'N', 'B'}

// bundleVersion is bumped on any incompatible wire change.
const bundleVersion = 1

var (
	errBadMagic           = errors.New("not a fenn bundle")
	errTruncatedBundle    = errors.New("truncated bundle")
	errUnsupportedVersion = errors.New("unsupported bundle version")
)

// Wire value kinds. Closures, classes, and instances never appear in a
// constant pool, so three kinds cover every constant.
const (
	wireKindNumber uint8 = iota
	wireKindString
	wireKindFunction
)

type wireValue struct {
	Kind uint8         `cbor:"k"`
	Num  float64       `cbor:"n,omitempty"`
	Str  string        `cbor:"s,omitempty"`
	Fn   *wireFunction `cbor:"f,omitempty"`
}

type wireFunction struct {
	Name         string      `cbor:"name"`
	Arity        int         `cbor:"arity"`
	UpvalueCount int         `cbor:"upvalues"`
	Code         []byte      `cbor:"code"`
	Lines        []int       `cbor:"lines"`
	Constants    []wireValue `cbor:"consts"`
}

// EncodeBundle serializes a compiled top-level function.
func EncodeBundle(fn *FunctionObject) ([]byte, error) {
	wf, err := functionToWire(fn)
	if err != nil {
		return nil, err
	}

	payload, err := cbor.Marshal(wf)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(bundleMagic)
	buf.WriteByte(bundleVersion)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// DecodeBundle reconstructs a compiled function, interning its strings
// through the allocator.
func DecodeBundle(data []byte, alloc *Allocator) (*FunctionObject, error) {
	if len(data) < len(bundleMagic)+1 {
		return nil, errTruncatedBundle
	}
	if !bytes.Equal(data[:len(bundleMagic)], bundleMagic) {
		return nil, errBadMagic
	}
	if data[len(bundleMagic)] != bundleVersion {
		return nil, errUnsupportedVersion
	}

	var wf wireFunction
	if err := cbor.Unmarshal(data[len(bundleMagic)+1:], &wf); err != nil {
		return nil, fmt.Errorf("corrupt bundle: %w", err)
	}

	return wireToFunction(&wf, alloc)
}

// WriteBundleFile encodes an already compiled function and writes the
// bundle to path.
func WriteBundleFile(path string, fn *FunctionObject) error {
	data, err := EncodeBundle(fn)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadBundleFile loads a bundle from disk.
func ReadBundleFile(path string, alloc *Allocator) (*FunctionObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeBundle(data, alloc)
}

func functionToWire(fn *FunctionObject) (*wireFunction, error) {
	wf := &wireFunction{
		Name:         fn.Name,
		Arity:        fn.Arity,
		UpvalueCount: fn.UpvalueCount,
		Code:         fn.Chunk.Code,
		Lines:        fn.Chunk.Lines,
	}

	for _, c := range fn.Chunk.Constants {
		switch {
		case c.IsNumber():
			wf.Constants = append(wf.Constants, wireValue{Kind: wireKindNumber, Num: c.AsNumber()})
		case c.IsObj():
			switch obj := c.Obj.(type) {
			case *StringObject:
				wf.Constants = append(wf.Constants, wireValue{Kind: wireKindString, Str: obj.Value})
			case *FunctionObject:
				sub, err := functionToWire(obj)
				if err != nil {
					return nil, err
				}
				wf.Constants = append(wf.Constants, wireValue{Kind: wireKindFunction, Fn: sub})
			default:
				return nil, fmt.Errorf("unserializable constant of type %s", obj.Type())
			}
		default:
			return nil, fmt.Errorf("unserializable constant %s", c.Inspect())
		}
	}

	return wf, nil
}

func wireToFunction(wf *wireFunction, alloc *Allocator) (*FunctionObject, error) {
	fn := alloc.NewFunction(wf.Name, wf.Arity, false)
	fn.UpvalueCount = wf.UpvalueCount
	fn.Chunk.Code = wf.Code
	fn.Chunk.Lines = wf.Lines

	if len(fn.Chunk.Code) != len(fn.Chunk.Lines) {
		return nil, errTruncatedBundle
	}

	for _, c := range wf.Constants {
		switch c.Kind {
		case wireKindNumber:
			fn.Chunk.Constants = append(fn.Chunk.Constants, NumberVal(c.Num))
		case wireKindString:
			fn.Chunk.Constants = append(fn.Chunk.Constants, ObjVal(alloc.AllocateString(c.Str, false)))
		case wireKindFunction:
			if c.Fn == nil {
				return nil, errTruncatedBundle
			}
			sub, err := wireToFunction(c.Fn, alloc)
			if err != nil {
				return nil, err
			}
			fn.Chunk.Constants = append(fn.Chunk.Constants, ObjVal(sub))
		default:
			return nil, fmt.Errorf("unknown constant kind %d", c.Kind)
		}
	}

	return fn, nil
}
