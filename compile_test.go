package phoo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	ctx := context.Background()
	ip := newTestInterp(t)
	th := ip.Thread(MainModule)

	prog, err := th.Compile(ctx, Text("1 2 +"))
	require.NoError(t, err)
	assert.Equal(t, "[ 1 2 + ]", prog.String())
	assert.Equal(t, W("+"), prog.Items[2], "bare words compile to interned words")

	again, err := th.Compile(ctx, prog)
	require.NoError(t, err)
	assert.Same(t, prog, again, "arrays compile to themselves")

	single, err := th.Compile(ctx, Number(5))
	require.NoError(t, err)
	assert.Equal(t, "[ 5 ]", single.String())

	nested, err := th.Compile(ctx, Text("do 1 2 + end"))
	require.NoError(t, err)
	assert.Equal(t, "[ [ 1 2 + ] ]", nested.String())
	assert.Equal(t, 0, th.Depth(), "compiling leaves the stack as it was")

	stack, err := th.Execute(ctx, nested)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, renderValues(stack))
}

func TestCompile_tokens(t *testing.T) {
	for _, tc := range []struct {
		src    string
		tokens []string
	}{
		{"", nil},
		{"  \t\n", nil},
		{"a", []string{"a"}},
		{"a b\tc\nd", []string{"a", "b", "c", "d"}},
		{"\r\n  a\r\nb  ", []string{"a", "b"}},
	} {
		var tokens []string
		for rest := tc.src; ; {
			var token string
			token, rest = nextToken(rest)
			if token == "" {
				break
			}
			tokens = append(tokens, token)
		}
		assert.Equal(t, tc.tokens, tokens, "tokens of %q", tc.src)
	}
}

func TestCompile_literals(t *testing.T) {
	threadTestCases{
		threadTest("floats").
			do(`1 -2.5 6e2 .5 Infinity -Infinity NaN`).
			expectStack("1", "-2.5", "600", "0.5", "Infinity", "-Infinity", "NaN"),
		threadTest("integers").
			do(`0x10 0X1f 12n -7n 0xffn`).
			expectStack("16", "31", "12n", "-7n", "255n"),
		threadTest("radix").
			do(`2#1010 36#z 16#ff-n`).
			expectStack("10", "35", "255n"),
		threadTest("bad radix").
			do(`40#12`).
			expectError(PhooSyntaxError),
		threadTest("runes").
			do(`'a' '\n' <ESC> <nul>`).
			expectStack("97", "10", "27", "0"),
		threadTest("constants").
			do(`true false null undefined`).
			expectStack("true", "false", "null", "undefined"),
		threadTest("words stay words").
			do(`' 12abc ' true-ish`).
			expectStack("12abc", "true-ish"),
	}.run(t)
}

func TestCompile_macros(t *testing.T) {
	threadTestCases{
		threadTest("text literal").
			do(`$ "hello there" $ |a "quoted" b|`).
			expectStack(`"hello there"`, `"a \"quoted\" b"`),
		threadTest("unterminated text").
			do(`$ "hello`).
			expectError(UnexpectedEOFError),
		threadTest("missing text").
			do(`1 $`).
			expectError(UnexpectedEOFError),
		threadTest("block comment").
			do(`1 /* 2 3 */ 4 /* x*/y */ 6`).
			expectStack("1", "4", "6"),
		threadTest("unclosed block comment").
			do(`1 /* 2 3`).
			expectError(UnexpectedEOFError),
		threadTest("unclosed bracket").
			do(`[ 1 2`).
			expectError(BadNestingError).
			expectStack(),
		threadTest("stray close").
			do(`1 2 ]`).
			expectError(BadNestingError),
		threadTest("nested blocks").
			do(`' [ 1 [ 2 do 3 end ] ]`).
			expectStack("[ 1 [ 2 [ 3 ] ] ]"),

		threadTest("user macro").
			do(`macro nop [ ]`, `1 nop 2`).
			expectDefined(MacrosKind, "nop").
			expectStack("1", "2"),
		threadTest("user macro appending").
			do(`macro seven [ swap 7 over put swap ]`, `' [ seven seven ]`).
			expectStack("[ 7 7 ]"),
		threadTest("broken macro").
			do(`macro bad [ drop ]`, `bad 1`).
			expectError(BadNestingError),
	}.run(t)
}

func TestCompile_literalRules(t *testing.T) {
	ctx := context.Background()
	ip := newTestInterp(t)
	th := ip.Thread(MainModule)

	hashtag := NewNative("hashtag", func(_ context.Context, th *Thread) error {
		m, err := th.PopKind(KindRecord)
		if err != nil {
			return err
		}
		th.Push(m.(*Record).Get(Text("tag")))
		return nil
	})
	require.NoError(t, th.Module().Define(LiteralsKind, `^#(?P<tag>[a-z]+)$`, hashtag, true))

	prog, err := th.Compile(ctx, Text("#go 1"))
	require.NoError(t, err)
	assert.Equal(t, `[ "go" 1 ]`, prog.String())

	greedy := NewNative("greedy", func(_ context.Context, th *Thread) error {
		th.Push(Number(1))
		return nil
	})
	require.NoError(t, th.Module().Define(LiteralsKind, `^@.*$`, greedy, true))
	_, err = th.Compile(ctx, Text("@x"))
	assert.True(t, errors.Is(err, BadNestingError), "codegens must leave one value, got %v", err)

	assert.True(t, errors.Is(
		th.Module().Define(LiteralsKind, `^(unclosed$`, greedy, true),
		TypeMismatchError), "bad patterns are rejected")
}

func TestCompile_syntaxErrors(t *testing.T) {
	ctx := context.Background()
	ip := newTestInterp(t)
	th := ip.Thread(MainModule)

	failing := NewNative("failing", func(_ context.Context, th *Thread) error {
		th.Push(Text("junk"))
		return errors.New("no thanks")
	})
	require.NoError(t, th.Module().Define(MacrosKind, "fail", failing, true))

	_, err := th.Compile(ctx, Text("1 fail 2"))
	require.Error(t, err)
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, PhooSyntaxError, pe.Kind)
	assert.Equal(t, "no thanks", pe.Message)
	assert.NotNil(t, pe.Stack, "syntax errors carry the work stack")
	assert.Equal(t, 0, th.Depth(), "macro leftovers are dropped")
}

func TestCompile_failureRestoresDepth(t *testing.T) {
	ctx := context.Background()
	ip := newTestInterp(t)
	th := ip.Thread(MainModule)
	th.Push(Number(9))

	for _, src := range []string{`[ 1 $`, `[ 1 [ 2`, `[ 1 /* never closed`} {
		_, err := th.Run(ctx, Text(src))
		require.Error(t, err, "compiling %q", src)
		var pe *Error
		require.True(t, errors.As(err, &pe))
		assert.Greater(t, len(pe.Stack), 1, "the error keeps the stack as it failed")
		assert.Equal(t, []Value{Number(9)}, th.Stack(), "after compiling %q", src)
	}

	stack, err := th.Run(ctx, Text(`2`))
	require.NoError(t, err)
	assert.Equal(t, []Value{Number(9), Number(2)}, stack)
}
