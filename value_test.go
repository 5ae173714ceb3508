package phoo

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_String(t *testing.T) {
	huge, _ := new(big.Int).SetString("-123456789012345678901234567890", 10)
	for _, tc := range []struct {
		v    Value
		want string
	}{
		{Number(1.5), "1.5"},
		{Number(1e21), "1e+21"},
		{Number(math.NaN()), "NaN"},
		{Number(math.Inf(-1)), "-Infinity"},
		{NewInteger(12), "12n"},
		{Integer{}, "0n"},
		{Integer{huge}, "-123456789012345678901234567890n"},
		{Boolean(true), "true"},
		{Text("a\tb"), `"a\tb"`},
		{W("dup"), "dup"},
		{NewArray(), "[ ]"},
		{NewArray(Number(1), NewArray(Text("x"))), `[ 1 [ "x" ] ]`},
		{NewNative("", nil), "<native>"},
		{NewNative("dup", nil), "<native dup>"},
		{NewRecord(), "{ }"},
		{Null, "null"},
		{Undefined, "undefined"},
	} {
		assert.Equal(t, tc.want, tc.v.String(), "rendering %#v", tc.v)
	}
	assert.Equal(t, "undefined", textOfValue(nil))

	cyclic := NewArray(Number(1))
	cyclic.Push(cyclic)
	assert.Equal(t, "[ 1 [ ... ] ]", cyclic.String())

	rec := NewRecord()
	require.NoError(t, rec.Set(Text("self"), rec))
	assert.Equal(t, `{ "self": { ... } }`, rec.String())
}

func TestValue_kinds(t *testing.T) {
	assert.Equal(t, KindUndefined, kindOf(nil))
	assert.Equal(t, KindNull, Null.Kind())
	assert.Equal(t, KindUndefined, Undefined.Kind())
	assert.Equal(t, "record", KindRecord.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())

	for _, v := range []Value{W("x"), NewArray(), NewNative("n", nil)} {
		_, err := AsDefinition(v)
		assert.NoError(t, err, "%v may be defined", v.Kind())
	}
	_, err := AsDefinition(Number(5))
	assert.ErrorIs(t, err, TypeMismatchError)
}

func TestValue_equalTruthy(t *testing.T) {
	assert.True(t, Equal(NewInteger(5), Integer{big.NewInt(5)}))
	assert.False(t, Equal(NewInteger(5), Number(5)), "kinds differ")
	assert.True(t, Equal(nil, Undefined))
	assert.True(t, Equal(W("a"), W("a")))
	assert.False(t, Equal(NewArray(), NewArray()))

	for _, v := range []Value{nil, Undefined, Null, Boolean(false), Number(0), Number(math.NaN()), Integer{}, Text("")} {
		assert.False(t, Truthy(v), "%v is false", textOfValue(v))
	}
	for _, v := range []Value{Boolean(true), Number(-1), NewInteger(1), Text("0"), NewArray(), NewRecord(), W("false")} {
		assert.True(t, Truthy(v), "%v is true", textOfValue(v))
	}

	n, ok := intOf(Number(3))
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	_, ok = intOf(Number(3.5))
	assert.False(t, ok)
	n, ok = intOf(NewInteger(-7))
	assert.True(t, ok)
	assert.Equal(t, -7, n)
	_, ok = intOf(NewInteger(math.MaxInt64))
	assert.False(t, ok)
}

func TestRecord(t *testing.T) {
	rec := NewRecord()
	require.NoError(t, rec.Set(Text("a"), Number(1)))
	require.NoError(t, rec.Set(W("b"), Number(2)))
	require.NoError(t, rec.Set(Number(3), Boolean(true)))
	require.NoError(t, rec.Set(Text("a"), Number(4)))
	assert.ErrorIs(t, rec.Set(NewInteger(1), Null), TypeMismatchError)

	assert.Equal(t, 3, rec.Len())
	assert.Equal(t, []Value{Text("a"), W("b"), Number(3)}, rec.Keys())
	assert.Equal(t, Number(4), rec.Get(Text("a")))
	assert.Equal(t, Undefined, rec.Get(Text("b")), "text and word keys differ")
	assert.Equal(t, Undefined, rec.Get(NewArray()))
	assert.Equal(t, `{ "a": 4 b: 2 3: true }`, rec.String())
}

func TestWords(t *testing.T) {
	prog := Words("  1 dup\n+ ")
	assert.Equal(t, []Value{W("1"), W("dup"), W("+")}, prog.Items)
	assert.Equal(t, "dup", W("dup").Name())
	assert.Equal(t, W("dup"), W("dup"), "words are interned")
}

func TestNamespace(t *testing.T) {
	ns := NewNamespace()
	one, two := NewArray(Number(1)), NewArray(Number(2))
	ns.Add("a", one)
	ns.Add("b", W("a"))
	ns.Add("a", two)
	assert.Equal(t, "a", one.Name(), "arrays take their first name")
	assert.Equal(t, []string{"a", "b"}, ns.Names())
	assert.Equal(t, 2, ns.Depth("a"))

	def, ok := ns.Find("a")
	require.True(t, ok)
	assert.Same(t, two, def)

	def, ok = ns.Forget("a")
	require.True(t, ok)
	assert.Same(t, two, def)
	def, _ = ns.Find("a")
	assert.Same(t, one, def, "forgetting uncovers the shadowed definition")

	ns.Forget("a")
	_, ok = ns.Forget("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, ns.Names())

	ns.Add("a", two)
	assert.Equal(t, []string{"a", "b"}, ns.Names(), "names keep their first position")
}

func TestLiteralRules(t *testing.T) {
	lr := NewLiteralRules()
	first := NewNative("first", nil)
	second := NewNative("second", nil)
	require.NoError(t, lr.Add(`^x(?P<rest>\d*)(y)?$`, first))
	require.NoError(t, lr.Add(`^x\d+$`, second))
	assert.ErrorIs(t, lr.Add(`(`, first), TypeMismatchError)

	def, match, ok := lr.Match("x12")
	require.True(t, ok)
	assert.Same(t, first, def, "rules are tried in registration order")
	assert.Equal(t, `{ 0: "x12" 1: "12" "rest": "12" 2: undefined }`, match.String())

	_, _, ok = lr.Match("y")
	assert.False(t, ok)

	lr.Forget(`^x(?P<rest>\d*)(y)?$`)
	def, _, ok = lr.Match("x12")
	require.True(t, ok)
	assert.Same(t, second, def)
}

func TestScope_copy(t *testing.T) {
	src := NewScope()
	src.Words.Add("a", NewArray(Number(1)))
	src.Words.Add("a", NewArray(Number(2)))
	require.NoError(t, src.Literals.Add(`^z$`, NewNative("z", nil)))

	dst := NewScope()
	dst.CopyFrom(src)
	def, ok := dst.Words.Find("a")
	require.True(t, ok)
	assert.Equal(t, "[ 2 ]", def.String())
	assert.Equal(t, 1, dst.Words.Depth("a"), "shadowed history is not copied")
	_, _, ok = dst.Literals.Match("z")
	assert.True(t, ok)
}
