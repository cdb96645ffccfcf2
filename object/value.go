package object

import (
	"bytes"
	"fmt"
)

// Kind is the type tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindCounter
	KindMap
	KindList
	KindText
)

var kindNames = map[Kind]string{
	KindNull:    "null",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindString:  "string",
	KindBytes:   "bytes",
	KindCounter: "counter",
	KindMap:     "map",
	KindList:    "list",
	KindText:    "text",
}

func (k Kind) String() string {
	name, ok := kindNames[k]
	if !ok {
		return fmt.Sprintf("kind(%d)", k)
	}
	return name
}

// IsObject returns true if values of this kind create a nested container.
func (k Kind) IsObject() bool {
	return k == KindMap || k == KindList || k == KindText
}

// IsSequence returns true for list and text containers.
func (k Kind) IsSequence() bool {
	return k == KindList || k == KindText
}

// Value is a scalar or a request to create a nested container.
//
// Only the field matching Kind is meaningful. Counter values are stored in Int.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte
}

func Null() Value               { return Value{Kind: KindNull} }
func Bool(b bool) Value         { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value         { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value     { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value     { return Value{Kind: KindString, Str: s} }
func Bytes(b []byte) Value      { return Value{Kind: KindBytes, Bytes: b} }
func Counter(n int64) Value     { return Value{Kind: KindCounter, Int: n} }
func NewMap() Value             { return Value{Kind: KindMap} }
func NewList() Value            { return Value{Kind: KindList} }
func NewText() Value            { return Value{Kind: KindText} }
func (v Value) IsObject() bool  { return v.Kind.IsObject() }
func (v Value) IsCounter() bool { return v.Kind == KindCounter }

// Interface returns the Go representation of a scalar value.
//
// Container kinds return nil; their contents live in separate objects.
func (v Value) Interface() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt, KindCounter:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindBytes:
		return v.Bytes
	default:
		return nil
	}
}

// Equal returns true if both values have the same kind and content.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == other.Bool
	case KindInt, KindCounter:
		return v.Int == other.Int
	case KindFloat:
		return v.Float == other.Float
	case KindString:
		return v.Str == other.Str
	case KindBytes:
		return bytes.Equal(v.Bytes, other.Bytes)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return fmt.Sprintf("%q", v.Str)
	case KindNull, KindMap, KindList, KindText:
		return v.Kind.String()
	case KindCounter:
		return fmt.Sprintf("counter(%d)", v.Int)
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// ValueOf converts a Go scalar into a Value.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint32:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case []byte:
		return Bytes(t), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}
