package phoo

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Kind names which variant a Value holds.
type Kind uint8

// The closed set of value kinds.
const (
	KindUndefined Kind = iota
	KindNull
	KindNumber
	KindInteger
	KindBoolean
	KindText
	KindWord
	KindArray
	KindNative
	KindRecord

	kindMax
)

var kindNames = [kindMax]string{
	"undefined",
	"null",
	"number",
	"integer",
	"boolean",
	"text",
	"word",
	"array",
	"native",
	"record",
}

func (k Kind) String() string {
	if k < kindMax {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is anything that may sit on a work stack or inside a program array.
// The interface is sealed; the variants are Number, Integer, Boolean, Text,
// Word, *Array, *Native, *Record, and the Undefined and Null sentinels.
type Value interface {
	Kind() Kind
	String() string
	value()
}

// Definition is what a namespace name maps to: an *Array body, a *Native
// callable, or a Word alias.
type Definition interface {
	Value
	definition()
}

// AsDefinition checks that v may be stored as a definition.
func AsDefinition(v Value) (Definition, error) {
	if def, ok := v.(Definition); ok {
		return def, nil
	}
	return nil, errorf(TypeMismatchError, "expected array, native, or word as definition, got %v", kindOf(v))
}

func kindOf(v Value) Kind {
	if v == nil {
		return KindUndefined
	}
	return v.Kind()
}

//// Primitives

// Number is an IEEE double.
type Number float64

// Integer is an arbitrary precision signed integer; a nil Int reads as zero.
type Integer struct{ Int *big.Int }

// Boolean is true or false.
type Boolean bool

// Text is a unicode string.
type Text string

// Sentinel is one of Undefined or Null.
type Sentinel uint8

// The two sentinel values.
const (
	Undefined Sentinel = iota
	Null
)

// NewInteger returns an Integer holding n.
func NewInteger(n int64) Integer { return Integer{big.NewInt(n)} }

func (n Integer) bigInt() *big.Int {
	if n.Int == nil {
		return new(big.Int)
	}
	return n.Int
}

func (Number) Kind() Kind  { return KindNumber }
func (Integer) Kind() Kind { return KindInteger }
func (Boolean) Kind() Kind { return KindBoolean }
func (Text) Kind() Kind    { return KindText }
func (Word) Kind() Kind    { return KindWord }
func (*Array) Kind() Kind  { return KindArray }
func (*Native) Kind() Kind { return KindNative }
func (*Record) Kind() Kind { return KindRecord }
func (s Sentinel) Kind() Kind {
	if s == Null {
		return KindNull
	}
	return KindUndefined
}

func (Number) value()   {}
func (Integer) value()  {}
func (Boolean) value()  {}
func (Text) value()     {}
func (Word) value()     {}
func (*Array) value()   {}
func (*Native) value()  {}
func (*Record) value()  {}
func (Sentinel) value() {}

func (Word) definition()    {}
func (*Array) definition()  {}
func (*Native) definition() {}

func (n Number) String() string {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (n Integer) String() string { return n.bigInt().String() + "n" }

func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }

func (t Text) String() string { return strconv.Quote(string(t)) }

func (s Sentinel) String() string {
	if s == Null {
		return "null"
	}
	return "undefined"
}

//// Words

// Word is an interned name reference, resolved against namespaces when it
// is executed. Words made from equal names are identical.
type Word struct{ id uint32 }

// W interns name and returns its Word.
func W(name string) Word { return Word{wordSymbols.symbolicate(name)} }

// Name returns the interned name.
func (w Word) Name() string { return wordSymbols.string(w.id) }

func (w Word) String() string { return w.Name() }

// Words converts whitespace separated names into a program of bare words,
// without running any macros or literal rules.
func Words(src string) *Array {
	fields := strings.Fields(src)
	arr := &Array{Items: make([]Value, len(fields))}
	for i, field := range fields {
		arr.Items[i] = W(field)
	}
	return arr
}

//// Arrays

// Array is an ordered, mutable sequence of values. The same Array serves as
// literal data and as an executable program; which it is depends only on
// where it is placed.
type Array struct {
	Items []Value
	name  string
}

// NewArray returns an array holding items.
func NewArray(items ...Value) *Array { return &Array{Items: items} }

// Len returns the number of items.
func (a *Array) Len() int { return len(a.Items) }

// Push appends values.
func (a *Array) Push(vs ...Value) { a.Items = append(a.Items, vs...) }

// Name returns the name the array was first defined under, if any.
func (a *Array) Name() string { return a.name }

func (a *Array) String() string {
	var sb strings.Builder
	writeValue(&sb, a, make(map[Value]bool))
	return sb.String()
}

//// Natives

// NativeFunc is a host implemented word. It receives the executing thread
// explicitly and may push, pop, or manipulate the return stack.
type NativeFunc func(ctx context.Context, th *Thread) error

// Native is a host callable value.
type Native struct {
	name string
	fn   NativeFunc
}

// NewNative wraps fn as a value.
func NewNative(name string, fn NativeFunc) *Native { return &Native{name: name, fn: fn} }

// Name returns the host name given at construction.
func (n *Native) Name() string { return n.name }

func (n *Native) String() string {
	if n.name == "" {
		return "<native>"
	}
	return "<native " + n.name + ">"
}

//// Records

// Record is an open mapping from Text, Word, Number, or Boolean keys to values,
// iterated in insertion order.
type Record struct {
	keys   []Value
	fields map[Value]Value
}

// NewRecord returns an empty record.
func NewRecord() *Record { return &Record{fields: make(map[Value]Value)} }

func validKey(k Value) bool {
	switch k.(type) {
	case Text, Word, Number, Boolean:
		return true
	}
	return false
}

// Get returns the value under k, or Undefined.
func (r *Record) Get(k Value) Value {
	if validKey(k) {
		if v, ok := r.fields[k]; ok {
			return v
		}
	}
	return Undefined
}

// Set stores v under k.
func (r *Record) Set(k, v Value) error {
	if !validKey(k) {
		return errorf(TypeMismatchError, "invalid record key %v", kindOf(k))
	}
	if r.fields == nil {
		r.fields = make(map[Value]Value)
	}
	if _, had := r.fields[k]; !had {
		r.keys = append(r.keys, k)
	}
	r.fields[k] = v
	return nil
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []Value { return append([]Value(nil), r.keys...) }

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.keys) }

func (r *Record) String() string {
	var sb strings.Builder
	writeValue(&sb, r, make(map[Value]bool))
	return sb.String()
}

func writeValue(sb *strings.Builder, v Value, seen map[Value]bool) {
	switch val := v.(type) {
	case nil:
		sb.WriteString("undefined")
	case *Array:
		if seen[val] {
			sb.WriteString("[ ... ]")
			return
		}
		seen[val] = true
		defer delete(seen, val)
		sb.WriteString("[")
		for _, item := range val.Items {
			sb.WriteByte(' ')
			writeValue(sb, item, seen)
		}
		sb.WriteString(" ]")
	case *Record:
		if seen[val] {
			sb.WriteString("{ ... }")
			return
		}
		seen[val] = true
		defer delete(seen, val)
		sb.WriteString("{")
		for _, k := range val.keys {
			sb.WriteByte(' ')
			sb.WriteString(k.String())
			sb.WriteString(": ")
			writeValue(sb, val.fields[k], seen)
		}
		sb.WriteString(" }")
	default:
		sb.WriteString(v.String())
	}
}

//// Comparison

// Equal compares structurally for primitives and by identity for arrays,
// records, and natives.
func Equal(a, b Value) bool {
	if a == nil {
		a = Undefined
	}
	if b == nil {
		b = Undefined
	}
	if a.Kind() != b.Kind() {
		return false
	}
	if ai, ok := a.(Integer); ok {
		return ai.bigInt().Cmp(b.(Integer).bigInt()) == 0
	}
	return a == b
}

// Truthy reports whether v counts as true for conditional jumps: false,
// zero, NaN, empty text, null and undefined are false.
func Truthy(v Value) bool {
	switch val := v.(type) {
	case nil, Sentinel:
		return false
	case Boolean:
		return bool(val)
	case Number:
		f := float64(val)
		return f != 0 && !math.IsNaN(f)
	case Integer:
		return val.bigInt().Sign() != 0
	case Text:
		return val != ""
	}
	return true
}

// intOf converts an integral Number or an Integer that fits into an int.
func intOf(v Value) (int, bool) {
	switch val := v.(type) {
	case Number:
		f := float64(val)
		if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return 0, false
		}
		return int(f), true
	case Integer:
		n := val.bigInt()
		if !n.IsInt64() || n.Int64() > math.MaxInt32 || n.Int64() < math.MinInt32 {
			return 0, false
		}
		return int(n.Int64()), true
	}
	return 0, false
}

// textOf renders v the way output words write it: text raw, all else via
// String.
func textOf(v Value) string {
	if t, ok := v.(Text); ok {
		return string(t)
	}
	if v == nil {
		return "undefined"
	}
	return v.String()
}
