package phoo

import (
	"context"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// The builtins module holds the words that, for speed or semantics, are
// written in Go rather than in the language itself. Every module searches it
// last, after its own definitions and star imports.

type primitive struct {
	name string
	fn   NativeFunc
}

func prim(f func(th *Thread) error) NativeFunc {
	return func(_ context.Context, th *Thread) error { return f(th) }
}

func primCtx(f func(th *Thread, ctx context.Context) error) NativeFunc {
	return func(ctx context.Context, th *Thread) error { return f(th, ctx) }
}

var builtinMacros = []primitive{
	{"[", prim((*Thread).openBracket)},
	{"do", prim((*Thread).openBracket)},
	{"]", prim((*Thread).closeBracket)},
	{"end", prim((*Thread).closeBracket)},
	{"$", prim((*Thread).stringLiteral)},
	{"/*", prim((*Thread).blockComment)},
}

var builtinWords = []primitive{
	// definitions and modules
	{"]define[", prim((*Thread).metaDefine)},
	{"]define-macro[", prim((*Thread).metaDefineMacro)},
	{"]forget[", prim((*Thread).metaForget)},
	{"]import[", primCtx((*Thread).metaImport)},
	{"]import*[", primCtx((*Thread).metaImportStar)},
	{"compile", primCtx((*Thread).compileWord)},
	{"resolve", prim((*Thread).resolveWord)},
	{"word", prim((*Thread).toWord)},
	{"name", prim((*Thread).toName)},

	// return stack
	{"]done[", prim((*Thread).metaDone)},
	{"]again[", prim((*Thread).metaAgain)},
	{"]cjump[", prim((*Thread).metaCjump)},
	{"]'[", prim((*Thread).metaLiteral)},
	{"]run[", prim((*Thread).metaRun)},
	{"]this[", prim((*Thread).metaThis)},
	{"]sandbox[", primCtx((*Thread).metaSandbox)},
	{"die", prim((*Thread).die)},
	{"]getstack[", prim((*Thread).getStack)},
	{"nestdepth", prim((*Thread).nestDepth)},
	{"stacksize", prim((*Thread).stackSize)},

	// work stack
	{"drop", prim((*Thread).drop)},
	{"pick", prim((*Thread).pick)},
	{"roll", prim((*Thread).roll)},

	// arrays, text, and records
	{"[]", prim((*Thread).newArray)},
	{"put", prim((*Thread).put)},
	{"take", prim((*Thread).take)},
	{"peek", prim((*Thread).peekItem)},
	{"poke", prim((*Thread).pokeItem)},
	{"split", prim((*Thread).split)},
	{"concat", prim((*Thread).concat)},
	{"size", prim((*Thread).size)},
	{"find", prim((*Thread).findItem)},
	{"{}", prim((*Thread).newRecord)},
	{"get", prim((*Thread).getField)},
	{"set", prim((*Thread).setField)},
	{"type", prim((*Thread).typeOf)},

	// arithmetic and logic
	{"+", prim((*Thread).sum)},
	{"-", prim((*Thread).difference)},
	{"*", prim((*Thread).product)},
	{"/", prim((*Thread).quotient)},
	{"/mod", prim((*Thread).divmod)},
	{"**", prim((*Thread).power)},
	{"negate", prim((*Thread).negate)},
	{"=", prim((*Thread).equal)},
	{">", prim((*Thread).greater)},
	{"<", prim((*Thread).less)},
	{"not", prim((*Thread).logicalNot)},
	{"and", prim((*Thread).logicalAnd)},
	{"or", prim((*Thread).logicalOr)},
	{"nand", prim((*Thread).nand)},
	{"~", prim((*Thread).bitInvert)},
	{"&", prim((*Thread).bitAnd)},
	{"|", prim((*Thread).bitOr)},
	{"^", prim((*Thread).bitXor)},
	{"<<", prim((*Thread).shiftLeft)},
	{">>", prim((*Thread).shiftRight)},
	{"big", prim((*Thread).toBig)},

	// text and output
	{"..", prim((*Thread).textConcat)},
	{"lower", prim((*Thread).lower)},
	{"upper", prim((*Thread).upper)},
	{"num>$", prim((*Thread).numToText)},
	{"$>num", prim((*Thread).textToNum)},
	{"chr", prim((*Thread).chr)},
	{"echo", prim((*Thread).echo)},
	{"emit", prim((*Thread).emit)},
	{"cr", prim((*Thread).newline)},
	{"time", prim((*Thread).timeNow)},
}

// Words defined directly as arrays of other words. Each consumes the word
// or value that follows it at its call site.
var builtinPhrases = []struct{ name, body string }{
	{"to", "]'[ ]'[ ]define["},
	{"macro", "]'[ ]'[ ]define-macro["},
	{"forget", "]'[ ]forget["},
	{"import", "]'[ ]import["},
	{"import*", "]'[ ]import*["},
}

var builtinLiterals = []primitive{
	{`^[-+]?(([0-9]*\.?[0-9]+([Ee][-+]?[0-9]+)?)|(Infinity)|(NaN))$`, prim((*Thread).floatLiteral)},
	{`(?i)^(?P<num>[-+]?(?:0x[0-9a-f]+|[0-9]+))(?P<big>n)?$`, prim((*Thread).intLiteral)},
	{`^(?P<base>[0-9]{1,2})#(?P<num>[0-9a-zA-Z]+)(?P<big>-n)?$`, prim((*Thread).radixLiteral)},
	{`^(?:'(?:[^'\\]|\\.)'|<[A-Za-z][A-Za-z0-9]{1,3}>)$`, prim((*Thread).runeLiteral)},
	{`^true$`, constLiteral(Boolean(true))},
	{`^false$`, constLiteral(Boolean(false))},
	{`^null$`, constLiteral(Null)},
	{`^undefined$`, constLiteral(Undefined)},
}

func installBuiltins(mod *Module) error {
	for _, p := range builtinMacros {
		mod.Macros.Add(p.name, NewNative(p.name, p.fn))
	}
	for _, p := range builtinWords {
		mod.Words.Add(p.name, NewNative(p.name, p.fn))
	}
	for _, p := range builtinPhrases {
		mod.Words.Add(p.name, Words(p.body))
	}
	for _, p := range builtinLiterals {
		if err := mod.Literals.Add(p.name, NewNative(p.name, p.fn)); err != nil {
			return err
		}
	}
	return nil
}

//// Macros

// Every macro receives the output array and the remaining source text, text
// on top, and must leave the same two behind in the same order.

// Symbol   Name            Function
//   [ do   open block      start a new output array, keeping the outer one
//                          beneath it on the stack
func (th *Thread) openBracket() error {
	rest, err := th.PopText()
	if err != nil {
		return err
	}
	th.Push(NewArray(), rest)
	return nil
}

// Symbol   Name            Function
//   ] end  close block     append the inner output array to the outer one
func (th *Thread) closeBracket() error {
	if err := th.Expect([]Kind{KindText}, []Kind{KindArray}, []Kind{KindArray}); err != nil {
		return errorf(BadNestingError, "unexpected end of block, no block is open")
	}
	rest, _ := th.Pop()
	inner, _ := th.Pop()
	outer, _ := th.Peek(0)
	outer.(*Array).Push(inner)
	th.Push(rest)
	return nil
}

// Symbol   Name            Function
//     $    text literal    the first character after whitespace delimits
//                          text up to its next occurrence
func (th *Thread) stringLiteral() error {
	rest, err := th.PopText()
	if err != nil {
		return err
	}
	src := strings.TrimLeft(string(rest), tokenSpace)
	delim, n := utf8.DecodeRuneInString(src)
	if n == 0 {
		return errorf(UnexpectedEOFError, "$: missing text literal")
	}
	src = src[n:]
	i := strings.IndexRune(src, delim)
	if i < 0 {
		return errorf(UnexpectedEOFError, "$: unterminated text literal")
	}
	out, err := th.PopArray()
	if err != nil {
		return err
	}
	out.Push(Text(src[:i]))
	th.Push(out, Text(src[i+utf8.RuneLen(delim):]))
	return nil
}

var blockCommentEnd = regexp.MustCompile(`(?:^|[ \t\n\r])\*/(?:[ \t\n\r]|$)`)

// Symbol   Name            Function
//    /*    block comment   skip text up to a separate */ token
func (th *Thread) blockComment() error {
	rest, err := th.PopText()
	if err != nil {
		return err
	}
	loc := blockCommentEnd.FindStringIndex(string(rest))
	if loc == nil {
		return errorf(UnexpectedEOFError, "/*: unclosed block comment")
	}
	th.Push(rest[loc[1]:])
	return nil
}

//// Definitions

func (th *Thread) popName() (string, error) {
	v, err := th.PopKind(KindWord, KindText)
	if err != nil {
		return "", err
	}
	return textOf(v), nil
}

func (th *Thread) popDefinition() (string, Definition, error) {
	v, err := th.PopKind(KindArray, KindWord, KindNative)
	if err != nil {
		return "", nil, err
	}
	name, err := th.popName()
	if err != nil {
		th.Push(v)
		return "", nil, err
	}
	def, _ := AsDefinition(v)
	return name, def, nil
}

// Name             Function
// ]define[         pop a definition and the name beneath it, defining a word
//                  in the thread's module
func (th *Thread) metaDefine() error {
	name, def, err := th.popDefinition()
	if err != nil {
		return err
	}
	return th.module.Define(WordsKind, name, def, th.strict)
}

// Name             Function
// ]define-macro[   like ]define[ but for macros
func (th *Thread) metaDefineMacro() error {
	name, def, err := th.popDefinition()
	if err != nil {
		return err
	}
	return th.module.Define(MacrosKind, name, def, th.strict)
}

// Name             Function
// ]forget[         pop a name, uncovering any word it shadowed
func (th *Thread) metaForget() error {
	name, err := th.popName()
	if err != nil {
		return err
	}
	if _, ok := th.module.Words.Forget(name); !ok && th.strict {
		return errorf(UnknownWordError, "cannot forget %q, it is not defined in module %v", name, th.module.Name())
	}
	return nil
}

// Name             Function
// ]import[         pop a module name, import it for qualified access
func (th *Thread) metaImport(ctx context.Context) error {
	name, err := th.popName()
	if err != nil {
		return err
	}
	mod, err := th.Import(ctx, name)
	if err != nil {
		return err
	}
	th.module.Import(th.interp.importName(name), mod)
	return nil
}

// Name             Function
// ]import*[        pop a module name, import it for bare access too
func (th *Thread) metaImportStar(ctx context.Context) error {
	name, err := th.popName()
	if err != nil {
		return err
	}
	mod, err := th.Import(ctx, name)
	if err != nil {
		return err
	}
	th.module.Import(th.interp.importName(name), mod)
	th.module.StarImport(mod)
	return nil
}

// Name             Function
// compile          pop source text, push the program array compiled from it
func (th *Thread) compileWord(ctx context.Context) error {
	src, err := th.Pop()
	if err != nil {
		return err
	}
	prog, err := th.Compile(ctx, src)
	if err != nil {
		return err
	}
	th.Push(prog)
	return nil
}

// Name             Function
// resolve          pop a word, push the definition it currently refers to
func (th *Thread) resolveWord() error {
	name, err := th.popName()
	if err != nil {
		return err
	}
	def, _, err := th.Resolve(name, WordsKind)
	if err != nil {
		return err
	}
	th.Push(def)
	return nil
}

// Name             Function
// word             pop text, push the word of that name
func (th *Thread) toWord() error {
	t, err := th.PopText()
	if err != nil {
		return err
	}
	th.Push(W(string(t)))
	return nil
}

// Name             Function
// name             pop a word, push its name as text
func (th *Thread) toName() error {
	w, err := th.PopWord()
	if err != nil {
		return err
	}
	th.Push(Text(w.Name()))
	return nil
}

//// Return stack

// These act on the top saved frame, which belongs to whoever called the word
// using them; they are meant to be wrapped in words such as done and again.

// Name       Function
// ]done[     return early from the caller
func (th *Thread) metaDone() error {
	_, err := th.RetPop()
	return err
}

// Name       Function
// ]again[    restart the caller from the top of its array
func (th *Thread) metaAgain() error {
	fr, err := th.RetTop()
	if err != nil {
		return err
	}
	fr.PC = 0
	return nil
}

// Name       Function
// ]cjump[    pop an offset and a condition beneath it; if the condition is
//            false, move the caller's program counter by the offset
func (th *Thread) metaCjump() error {
	if err := th.Expect([]Kind{KindNumber, KindInteger}, nil); err != nil {
		return err
	}
	fr, err := th.RetTop()
	if err != nil {
		return err
	}
	amount, err := th.PopInt()
	if err != nil {
		return err
	}
	cond, _ := th.Pop()
	if !Truthy(cond) {
		fr.PC += amount
	}
	return nil
}

// Name       Function
// ]'[        push the caller's next item without running it, skipping it
func (th *Thread) metaLiteral() error {
	fr, err := th.RetTop()
	if err != nil {
		return err
	}
	if fr.PC < 0 || fr.PC >= fr.Program.Len() {
		return errorf(IllegalOperationError, "]'[: no item follows at the end of an array")
	}
	th.Push(fr.Program.Items[fr.PC])
	fr.PC++
	return nil
}

// Name       Function
// ]run[      pop an array, or any value as a one item array, and call it
//            once the word using ]run[ returns
func (th *Thread) metaRun() error {
	fr, err := th.RetTop()
	if err != nil {
		return err
	}
	v, err := th.Pop()
	if err != nil {
		return err
	}
	arr, ok := v.(*Array)
	if !ok {
		arr = NewArray(v)
	}
	return th.retPush(Frame{Program: arr, Module: fr.Module})
}

// Name       Function
// ]this[     push the caller's array
func (th *Thread) metaThis() error {
	fr, err := th.RetTop()
	if err != nil {
		return err
	}
	th.Push(fr.Program)
	return nil
}

// Name       Function
// ]sandbox[  pop code and run it, pushing false if it succeeded or a record
//            describing the error otherwise
func (th *Thread) metaSandbox(ctx context.Context) error {
	src, err := th.Pop()
	if err != nil {
		return err
	}
	prog, err := th.Compile(ctx, src)
	if err == nil {
		_, err = th.Execute(ctx, prog)
	}
	if err != nil {
		th.logf("!", "sandbox caught %v", err)
		th.Push(errorRecord(err))
		return nil
	}
	th.Push(Boolean(false))
	return nil
}

// Name       Function
// die        pop a message, raise an error with it
func (th *Thread) die() error {
	v, err := th.Pop()
	if err != nil {
		return err
	}
	return &Error{Kind: PhooError, Message: textOf(v), Trace: th.Trace()}
}

// Name       Function
// ]getstack[ pop an error record, push its return stack trace
func (th *Thread) getStack() error {
	v, err := th.PopKind(KindRecord)
	if err != nil {
		return err
	}
	th.Push(v.(*Record).Get(Text("trace")))
	return nil
}

// Name       Function
// nestdepth  push the return stack depth
func (th *Thread) nestDepth() error { th.Push(Number(len(th.rstack))); return nil }

// Name       Function
// stacksize  push the work stack depth
func (th *Thread) stackSize() error { th.Push(Number(len(th.stack))); return nil }

//// Work stack

// Name    Function
// drop    discard the top
func (th *Thread) drop() error { _, err := th.Pop(); return err }

// Name    Function
// pick    pop n, push a copy of the item n below the top; 0 pick is dup
func (th *Thread) pick() error {
	n, err := th.PopInt()
	if err != nil {
		return err
	}
	v, err := th.Peek(n)
	if err != nil {
		return err
	}
	th.Push(v)
	return nil
}

// Name    Function
// roll    pop n, move the item n below the top to the top; 1 roll is swap
func (th *Thread) roll() error {
	n, err := th.PopInt()
	if err != nil {
		return err
	}
	v, err := th.PopAt(n)
	if err != nil {
		return err
	}
	th.Push(v)
	return nil
}

//// Arrays, text, and records

var sequenceKinds = []Kind{KindText, KindArray}

// Name    Function
// []      push a new empty array
func (th *Thread) newArray() error { th.Push(NewArray()); return nil }

// Name    Function
// put     pop an array and a value beneath it, append the value
func (th *Thread) put() error {
	if err := th.Expect([]Kind{KindArray}, nil); err != nil {
		return err
	}
	a, _ := th.PopArray()
	v, _ := th.Pop()
	a.Push(v)
	return nil
}

// Name    Function
// take    pop an array, remove its last item and push it; arrays whose first
//         item is the word immovable refuse
func (th *Thread) take() error {
	a, err := th.PopArray()
	if err != nil {
		return err
	}
	if a.Len() < 1 {
		return errorf(StackUnderflowError, "take: unexpectedly empty array")
	}
	if w, ok := a.Items[0].(Word); ok && w == W("immovable") {
		return errorf(IllegalOperationError, "take: cannot take an immovable item")
	}
	last := a.Len() - 1
	v := a.Items[last]
	a.Items[last] = nil
	a.Items = a.Items[:last]
	th.Push(v)
	return nil
}

// index checks i against a sequence of length n, counting negative indexes
// from the end.
func index(i, n int) (int, error) {
	if i < -n || i >= n {
		return 0, errorf(IllegalOperationError, "index %v out of bounds for length %v", i, n)
	}
	if i < 0 {
		i += n
	}
	return i, nil
}

// Name    Function
// peek    pop an index and an array or text beneath it, push that item
func (th *Thread) peekItem() error {
	if err := th.Expect(numericKinds, sequenceKinds); err != nil {
		return err
	}
	i, err := th.PopInt()
	if err != nil {
		return err
	}
	switch seq, _ := th.Pop(); val := seq.(type) {
	case *Array:
		if i, err = index(i, val.Len()); err != nil {
			return err
		}
		th.Push(val.Items[i])
	case Text:
		runes := []rune(string(val))
		if i, err = index(i, len(runes)); err != nil {
			return err
		}
		th.Push(Text(runes[i]))
	}
	return nil
}

// Name    Function
// poke    pop an index, an array or text, and a value, replace the item at
//         that index with the value, push the array or new text
func (th *Thread) pokeItem() error {
	if err := th.Expect(numericKinds, sequenceKinds, nil); err != nil {
		return err
	}
	i, err := th.PopInt()
	if err != nil {
		return err
	}
	seq, _ := th.Pop()
	v, _ := th.Pop()
	switch val := seq.(type) {
	case *Array:
		if i, err = index(i, val.Len()); err != nil {
			return err
		}
		val.Items[i] = v
		th.Push(val)
	case Text:
		runes := []rune(string(val))
		if i, err = index(i, len(runes)); err != nil {
			return err
		}
		th.Push(Text(string(runes[:i]) + textOf(v) + string(runes[i+1:])))
	}
	return nil
}

// slicePoint clamps i into [0, n], counting negative points from the end.
func slicePoint(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// Name    Function
// split   pop an index and an array or text, push the parts before and
//         from the index
func (th *Thread) split() error {
	if err := th.Expect(numericKinds, sequenceKinds); err != nil {
		return err
	}
	i, err := th.PopInt()
	if err != nil {
		return err
	}
	switch seq, _ := th.Pop(); val := seq.(type) {
	case *Array:
		i = slicePoint(i, val.Len())
		th.Push(
			NewArray(append([]Value(nil), val.Items[:i]...)...),
			NewArray(append([]Value(nil), val.Items[i:]...)...))
	case Text:
		runes := []rune(string(val))
		i = slicePoint(i, len(runes))
		th.Push(Text(runes[:i]), Text(runes[i:]))
	}
	return nil
}

// Name    Function
// concat  pop two arrays, push a new array of both; non-array operands
//         count as one item arrays
func (th *Thread) concat() error {
	b, err := th.Pop()
	if err != nil {
		return err
	}
	a, err := th.Pop()
	if err != nil {
		th.Push(b)
		return err
	}
	out := NewArray()
	for _, v := range []Value{a, b} {
		if arr, ok := v.(*Array); ok {
			out.Push(arr.Items...)
		} else {
			out.Push(v)
		}
	}
	th.Push(out)
	return nil
}

// Name    Function
// size    pop an array, text, or record, push how many items it holds
func (th *Thread) size() error {
	v, err := th.PopKind(KindArray, KindText, KindRecord)
	if err != nil {
		return err
	}
	switch val := v.(type) {
	case *Array:
		th.Push(Number(val.Len()))
	case Text:
		th.Push(Number(utf8.RuneCountInString(string(val))))
	case *Record:
		th.Push(Number(val.Len()))
	}
	return nil
}

// Name    Function
// find    pop an array and a value beneath it, push the index of the first
//         equal item, or the array's size if there is none
func (th *Thread) findItem() error {
	if err := th.Expect([]Kind{KindArray}, nil); err != nil {
		return err
	}
	a, _ := th.PopArray()
	v, _ := th.Pop()
	for i, item := range a.Items {
		if Equal(item, v) {
			th.Push(Number(i))
			return nil
		}
	}
	th.Push(Number(a.Len()))
	return nil
}

// Name    Function
// {}      push a new empty record
func (th *Thread) newRecord() error { th.Push(NewRecord()); return nil }

// Name    Function
// get     pop a key and a record or array beneath it, push the value under
//         the key, or undefined
func (th *Thread) getField() error {
	if err := th.Expect(nil, []Kind{KindRecord, KindArray}); err != nil {
		return err
	}
	k, _ := th.Pop()
	switch o, _ := th.Pop(); val := o.(type) {
	case *Record:
		th.Push(val.Get(k))
	case *Array:
		if i, ok := intOf(k); ok && i >= 0 && i < val.Len() {
			th.Push(val.Items[i])
		} else {
			th.Push(Undefined)
		}
	}
	return nil
}

// Name    Function
// set     pop a key, a record or array, and a value, store the value under
//         the key
func (th *Thread) setField() error {
	if err := th.Expect(nil, []Kind{KindRecord, KindArray}, nil); err != nil {
		return err
	}
	k, _ := th.Pop()
	o, _ := th.Pop()
	v, _ := th.Pop()
	switch val := o.(type) {
	case *Record:
		return val.Set(k, v)
	case *Array:
		i, ok := intOf(k)
		if !ok {
			return errorf(TypeMismatchError, "expected an integral array index, got %v", kindOf(k))
		}
		i, err := index(i, val.Len())
		if err != nil {
			return err
		}
		val.Items[i] = v
	}
	return nil
}

// Name    Function
// type    pop a value, push the name of its kind
func (th *Thread) typeOf() error {
	v, err := th.Pop()
	if err != nil {
		return err
	}
	th.Push(Text(kindOf(v).String()))
	return nil
}

//// Arithmetic

// Integers stay integers when combined with integers or integral numbers;
// anything else is done in floating point.

var numericKinds = []Kind{KindNumber, KindInteger}

// popOperands pops b then a, for a op b.
func (th *Thread) popOperands() (a, b Value, err error) {
	if err := th.Expect(numericKinds, numericKinds); err != nil {
		return nil, nil, err
	}
	b, _ = th.Pop()
	a, _ = th.Pop()
	return a, b, nil
}

func floatOf(v Value) float64 {
	switch val := v.(type) {
	case Number:
		return float64(val)
	case Integer:
		f, _ := new(big.Float).SetInt(val.bigInt()).Float64()
		return f
	}
	return math.NaN()
}

func exactInt(v Value) (*big.Int, bool) {
	switch val := v.(type) {
	case Integer:
		return val.bigInt(), true
	case Number:
		f := float64(val)
		if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
			return nil, false
		}
		n, _ := new(big.Float).SetFloat64(f).Int(nil)
		return n, true
	}
	return nil, false
}

// integers returns both operands as big integers when at least one is an
// Integer and the other converts exactly.
func integers(a, b Value) (x, y *big.Int, ok bool) {
	_, aInt := a.(Integer)
	_, bInt := b.(Integer)
	if !aInt && !bInt {
		return nil, nil, false
	}
	if x, ok = exactInt(a); !ok {
		return nil, nil, false
	}
	if y, ok = exactInt(b); !ok {
		return nil, nil, false
	}
	return x, y, true
}

func (th *Thread) arith(
	ints func(z, x, y *big.Int) (*big.Int, error),
	floats func(x, y float64) float64,
) error {
	a, b, err := th.popOperands()
	if err != nil {
		return err
	}
	if x, y, ok := integers(a, b); ok {
		z, err := ints(new(big.Int), x, y)
		if err != nil {
			return err
		}
		th.Push(Integer{z})
		return nil
	}
	th.Push(Number(floats(floatOf(a), floatOf(b))))
	return nil
}

func errDivideByZero() error { return errorf(IllegalOperationError, "integer division by zero") }

// Symbol   Name        Function
//    +     sum         pop two numbers, push their sum
func (th *Thread) sum() error {
	return th.arith(
		func(z, x, y *big.Int) (*big.Int, error) { return z.Add(x, y), nil },
		func(x, y float64) float64 { return x + y })
}

// Symbol   Name        Function
//    -     difference  pop b and a, push a - b
func (th *Thread) difference() error {
	return th.arith(
		func(z, x, y *big.Int) (*big.Int, error) { return z.Sub(x, y), nil },
		func(x, y float64) float64 { return x - y })
}

// Symbol   Name        Function
//    *     product     pop two numbers, push their product
func (th *Thread) product() error {
	return th.arith(
		func(z, x, y *big.Int) (*big.Int, error) { return z.Mul(x, y), nil },
		func(x, y float64) float64 { return x * y })
}

// Symbol   Name        Function
//    /     quotient    pop b and a, push a / b; integers truncate
func (th *Thread) quotient() error {
	return th.arith(
		func(z, x, y *big.Int) (*big.Int, error) {
			if y.Sign() == 0 {
				return nil, errDivideByZero()
			}
			return z.Quo(x, y), nil
		},
		func(x, y float64) float64 { return x / y })
}

// Symbol   Name        Function
//  /mod    divmod      pop b and a, push the quotient and remainder of a / b;
//                      numbers floor the quotient, the remainder takes the
//                      sign of a
func (th *Thread) divmod() error {
	a, b, err := th.popOperands()
	if err != nil {
		return err
	}
	if x, y, ok := integers(a, b); ok {
		if y.Sign() == 0 {
			return errDivideByZero()
		}
		q, r := new(big.Int).QuoRem(x, y, new(big.Int))
		th.Push(Integer{q}, Integer{r})
		return nil
	}
	x, y := floatOf(a), floatOf(b)
	th.Push(Number(math.Floor(x/y)), Number(math.Mod(x, y)))
	return nil
}

// Symbol   Name        Function
//   **     power       pop b and a, push a raised to b
func (th *Thread) power() error {
	return th.arith(
		func(z, x, y *big.Int) (*big.Int, error) {
			if y.Sign() < 0 {
				return nil, errorf(IllegalOperationError, "negative integer exponent %v", y)
			}
			return z.Exp(x, y, nil), nil
		},
		math.Pow)
}

// Name      Function
// negate    pop a number, push its negation
func (th *Thread) negate() error {
	v, err := th.PopKind(numericKinds...)
	if err != nil {
		return err
	}
	switch val := v.(type) {
	case Integer:
		th.Push(Integer{new(big.Int).Neg(val.bigInt())})
	case Number:
		th.Push(-val)
	}
	return nil
}

// compare orders two numbers, reporting false if either is NaN.
func compare(a, b Value) (int, bool) {
	if x, y, ok := integers(a, b); ok {
		return x.Cmp(y), true
	}
	x, y := floatOf(a), floatOf(b)
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return 0, false
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}

// Symbol   Name        Function
//    =     equal       pop two values, push whether they are equal; numbers
//                      compare by value across kinds
func (th *Thread) equal() error {
	b, err := th.Pop()
	if err != nil {
		return err
	}
	a, err := th.Pop()
	if err != nil {
		th.Push(b)
		return err
	}
	if kindIn(kindOf(a), numericKinds) && kindIn(kindOf(b), numericKinds) {
		c, ok := compare(a, b)
		th.Push(Boolean(ok && c == 0))
		return nil
	}
	th.Push(Boolean(Equal(a, b)))
	return nil
}

// Symbol   Name        Function
//    >     greater     pop b and a, push a > b
func (th *Thread) greater() error {
	a, b, err := th.popOperands()
	if err != nil {
		return err
	}
	c, ok := compare(a, b)
	th.Push(Boolean(ok && c > 0))
	return nil
}

// Symbol   Name        Function
//    <     less        pop b and a, push a < b
func (th *Thread) less() error {
	a, b, err := th.popOperands()
	if err != nil {
		return err
	}
	c, ok := compare(a, b)
	th.Push(Boolean(ok && c < 0))
	return nil
}

//// Logic

func (th *Thread) popTruths() (a, b bool, err error) {
	bv, err := th.Pop()
	if err != nil {
		return false, false, err
	}
	av, err := th.Pop()
	if err != nil {
		th.Push(bv)
		return false, false, err
	}
	return Truthy(av), Truthy(bv), nil
}

// Name   Function
// not    pop a value, push whether it is false
func (th *Thread) logicalNot() error {
	v, err := th.Pop()
	if err != nil {
		return err
	}
	th.Push(Boolean(!Truthy(v)))
	return nil
}

// Name   Function
// and    pop two values, push whether both are true
func (th *Thread) logicalAnd() error {
	a, b, err := th.popTruths()
	if err == nil {
		th.Push(Boolean(a && b))
	}
	return err
}

// Name   Function
// or     pop two values, push whether either is true
func (th *Thread) logicalOr() error {
	a, b, err := th.popTruths()
	if err == nil {
		th.Push(Boolean(a || b))
	}
	return err
}

// Name   Function
// nand   pop two values, push whether not both are true
func (th *Thread) nand() error {
	a, b, err := th.popTruths()
	if err == nil {
		th.Push(Boolean(!(a && b)))
	}
	return err
}

//// Bitwise

// Bitwise words work on integers; numbers must be integral and give numbers
// back.

func (th *Thread) bitwise(op func(z, x, y *big.Int) *big.Int) error {
	return th.integral(func(z, x, y *big.Int) (*big.Int, error) {
		return op(z, x, y), nil
	})
}

func (th *Thread) integral(op func(z, x, y *big.Int) (*big.Int, error)) error {
	a, b, err := th.popOperands()
	if err != nil {
		return err
	}
	x, xok := exactInt(a)
	y, yok := exactInt(b)
	if !xok || !yok {
		return errorf(TypeMismatchError, "expected integral operands, got %v and %v", a, b)
	}
	z, err := op(new(big.Int), x, y)
	if err != nil {
		return err
	}
	if _, aInt := a.(Integer); aInt {
		th.Push(Integer{z})
	} else if _, bInt := b.(Integer); bInt {
		th.Push(Integer{z})
	} else {
		th.Push(Number(floatOf(Integer{z})))
	}
	return nil
}

// Symbol   Name       Function
//    ~     invert     pop an integer, push its bitwise complement
func (th *Thread) bitInvert() error {
	v, err := th.PopKind(numericKinds...)
	if err != nil {
		return err
	}
	x, ok := exactInt(v)
	if !ok {
		th.Push(v)
		return errorf(TypeMismatchError, "expected an integral operand, got %v", v)
	}
	z := new(big.Int).Not(x)
	if _, isInt := v.(Integer); isInt {
		th.Push(Integer{z})
	} else {
		th.Push(Number(floatOf(Integer{z})))
	}
	return nil
}

// Symbol   Name       Function
//    &     and        pop two integers, push their bitwise and
func (th *Thread) bitAnd() error { return th.bitwise((*big.Int).And) }

// Symbol   Name       Function
//    |     or         pop two integers, push their bitwise or
func (th *Thread) bitOr() error { return th.bitwise((*big.Int).Or) }

// Symbol   Name       Function
//    ^     xor        pop two integers, push their bitwise exclusive or
func (th *Thread) bitXor() error { return th.bitwise((*big.Int).Xor) }

// maxShift bounds the places a left shift may move an integer.
const maxShift = 1 << 20

// shift moves x left by n places, or right when n is negative. Right shifts
// past the width of x saturate to 0 or -1.
func shift(z, x, n *big.Int) (*big.Int, error) {
	if n.Sign() >= 0 {
		if x.Sign() == 0 {
			return z.SetInt64(0), nil
		}
		if !n.IsInt64() || n.Int64() > maxShift {
			return nil, errorf(IllegalOperationError, "cannot shift by %v places, limit is %v", n, maxShift)
		}
		return z.Lsh(x, uint(n.Int64())), nil
	}
	m := new(big.Int).Neg(n)
	if !m.IsInt64() || m.Int64() > int64(x.BitLen()) {
		if x.Sign() < 0 {
			return z.SetInt64(-1), nil
		}
		return z.SetInt64(0), nil
	}
	return z.Rsh(x, uint(m.Int64())), nil
}

// Symbol   Name       Function
//   <<     shift      pop places and an integer, push it shifted left
func (th *Thread) shiftLeft() error {
	return th.integral(func(z, x, y *big.Int) (*big.Int, error) {
		return shift(z, x, y)
	})
}

// Symbol   Name       Function
//   >>     shift      pop places and an integer, push it shifted right
func (th *Thread) shiftRight() error {
	return th.integral(func(z, x, y *big.Int) (*big.Int, error) {
		return shift(z, x, new(big.Int).Neg(y))
	})
}

// Name   Function
// big    pop a number or text, push it as an integer
func (th *Thread) toBig() error {
	v, err := th.PopKind(KindNumber, KindInteger, KindText)
	if err != nil {
		return err
	}
	switch val := v.(type) {
	case Integer:
		th.Push(val)
	case Number:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errorf(TypeMismatchError, "cannot make an integer of %v", val)
		}
		n, _ := new(big.Float).SetFloat64(math.Trunc(f)).Int(nil)
		th.Push(Integer{n})
	case Text:
		n, ok := new(big.Int).SetString(strings.TrimSpace(string(val)), 0)
		if !ok {
			return errorf(TypeMismatchError, "cannot make an integer of %v", val)
		}
		th.Push(Integer{n})
	}
	return nil
}

//// Text and output

// Name    Function
// ..      pop two values, push their texts joined
func (th *Thread) textConcat() error {
	b, err := th.Pop()
	if err != nil {
		return err
	}
	a, err := th.Pop()
	if err != nil {
		th.Push(b)
		return err
	}
	th.Push(Text(textOf(a) + textOf(b)))
	return nil
}

// Name    Function
// lower   pop text, push it lower cased
func (th *Thread) lower() error {
	t, err := th.PopText()
	if err == nil {
		th.Push(Text(strings.ToLower(string(t))))
	}
	return err
}

// Name    Function
// upper   pop text, push it upper cased
func (th *Thread) upper() error {
	t, err := th.PopText()
	if err == nil {
		th.Push(Text(strings.ToUpper(string(t))))
	}
	return err
}

func (th *Thread) popBase() (int, error) {
	base, err := th.PopInt()
	if err != nil {
		return 0, err
	}
	if base < 2 || base > 36 {
		return 0, errorf(IllegalOperationError, "base %v out of range 2 to 36", base)
	}
	return base, nil
}

// Name    Function
// num>$   pop a base and a number, push the number's digits in that base
func (th *Thread) numToText() error {
	if err := th.Expect(numericKinds, numericKinds); err != nil {
		return err
	}
	base, err := th.popBase()
	if err != nil {
		return err
	}
	v, _ := th.Pop()
	if n, ok := exactInt(v); ok {
		th.Push(Text(n.Text(base)))
	} else if base == 10 {
		th.Push(Text(v.String()))
	} else {
		th.Push(v)
		return errorf(TypeMismatchError, "only integral numbers convert in base %v", base)
	}
	return nil
}

// Name    Function
// $>num   pop a base and text, push the number the text spells in that base,
//         or NaN
func (th *Thread) textToNum() error {
	if err := th.Expect(numericKinds, []Kind{KindText}); err != nil {
		return err
	}
	base, err := th.popBase()
	if err != nil {
		return err
	}
	t, _ := th.PopText()
	n, ok := new(big.Int).SetString(strings.TrimSpace(string(t)), base)
	if !ok {
		th.Push(Number(math.NaN()))
		return nil
	}
	th.Push(Number(floatOf(Integer{n})))
	return nil
}

// Name    Function
// chr     pop a code point, push it as text
func (th *Thread) chr() error {
	n, err := th.PopInt()
	if err == nil {
		th.Push(Text(rune(n)))
	}
	return err
}

// Name    Function
// echo    pop a value, write its text to the output
func (th *Thread) echo() error {
	v, err := th.Pop()
	if err != nil {
		return err
	}
	return th.interp.writeString(textOf(v))
}

// Name    Function
// emit    pop a code point, write it to the output
func (th *Thread) emit() error {
	n, err := th.PopInt()
	if err != nil {
		return err
	}
	return th.interp.writeRune(rune(n))
}

// Name    Function
// cr      write a line break to the output
func (th *Thread) newline() error { return th.interp.writeRune('\n') }

// Name    Function
// time    push the milliseconds since the unix epoch
func (th *Thread) timeNow() error {
	th.Push(Number(time.Now().UnixMilli()))
	return nil
}

//// Literal rules

// Each codegen receives the match record of its pattern and leaves the
// value to compile in the token's place.

func (th *Thread) popMatch() (*Record, error) {
	v, err := th.PopKind(KindRecord)
	if err != nil {
		return nil, err
	}
	return v.(*Record), nil
}

// floats like 1, -2.5, 6e23, Infinity, and NaN
func (th *Thread) floatLiteral() error {
	m, err := th.popMatch()
	if err != nil {
		return err
	}
	s := textOf(m.Get(Number(0)))
	if strings.HasSuffix(s, "NaN") {
		th.Push(Number(math.NaN()))
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); !ok || ne.Err != strconv.ErrRange {
			return Wrap(TypeMismatchError, err, nil)
		}
	}
	th.Push(Number(f))
	return nil
}

// integers like 0x1f, or 123n for an Integer
func (th *Thread) intLiteral() error {
	m, err := th.popMatch()
	if err != nil {
		return err
	}
	s := textOf(m.Get(Text("num")))
	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return errorf(TypeMismatchError, "invalid integer literal %q", s)
	}
	if m.Get(Text("big")) != Undefined {
		th.Push(Integer{n})
	} else {
		th.Push(Number(floatOf(Integer{n})))
	}
	return nil
}

// radix integers like 2#1010, or 16#ff-n for an Integer
func (th *Thread) radixLiteral() error {
	m, err := th.popMatch()
	if err != nil {
		return err
	}
	base, _ := strconv.Atoi(textOf(m.Get(Text("base"))))
	digits := textOf(m.Get(Text("num")))
	if base < 2 || base > 36 {
		return errorf(TypeMismatchError, "invalid radix %v in %v#%v", base, base, digits)
	}
	n, ok := new(big.Int).SetString(strings.ToLower(digits), base)
	if !ok {
		return errorf(TypeMismatchError, "invalid base %v digits %q", base, digits)
	}
	if m.Get(Text("big")) != Undefined {
		th.Push(Integer{n})
	} else {
		th.Push(Number(floatOf(Integer{n})))
	}
	return nil
}

// rune literals like 'a', '\n', or <ESC>, compiled to their code point
func (th *Thread) runeLiteral() error {
	m, err := th.popMatch()
	if err != nil {
		return err
	}
	r, err := unquoteRune(textOf(m.Get(Number(0))))
	if err != nil {
		return Wrap(TypeMismatchError, err, nil)
	}
	th.Push(Number(r))
	return nil
}

func constLiteral(v Value) NativeFunc {
	return func(_ context.Context, th *Thread) error {
		if _, err := th.popMatch(); err != nil {
			return err
		}
		th.Push(v)
		return nil
	}
}
