package phoo

import (
	"context"
	"strings"
)

// tokenSpace separates tokens; nothing else does.
const tokenSpace = " \t\n\r"

// nextToken splits the first token off src, returning it and the text after
// it; that rest still starts with the separator that ended the token.
func nextToken(src string) (token, rest string) {
	src = strings.TrimLeft(src, tokenSpace)
	if i := strings.IndexAny(src, tokenSpace); i >= 0 {
		return src[:i], src[i:]
	}
	return src, ""
}

// Compile turns src into a program array. Text is tokenized, each token
// being handled by the first of: a macro of that name, which takes over the
// output array and the remaining text; a literal rule whose pattern matches,
// whose codegen produces the value; otherwise a bare word. An array src is
// returned as is and any other value is wrapped into a one item program.
//
// Compiling must leave the work stack exactly as deep as it was; anything
// else is a BadNestingError. Other failures are reported as PhooSyntaxErrors
// carrying the work stack at the time.
func (th *Thread) Compile(ctx context.Context, src Value) (*Array, error) {
	var prog *Array
	err := th.locked(ctx, "compile", func(ctx context.Context) (err error) {
		prog, err = th.compile(ctx, src)
		return err
	})
	return prog, err
}

func (th *Thread) compile(ctx context.Context, src Value) (_ *Array, rerr error) {
	var text string
	switch val := src.(type) {
	case *Array:
		return val, nil
	case Text:
		text = string(val)
	default:
		return NewArray(src), nil
	}

	defer th.withLogPrefix("compile: ")()

	// failures leave the stack as deep as it was, once syntaxError has
	// recorded it
	depth := len(th.stack)
	defer func() {
		if rerr != nil && len(th.stack) > depth {
			th.stack = th.stack[:depth]
		}
	}()

	out := NewArray()
	for rest := text; ; {
		if err := th.checkpoint(ctx); err != nil {
			return nil, th.syntaxError(err)
		}

		var token string
		token, rest = nextToken(rest)
		if token == "" {
			break
		}

		macro, mod, err := th.resolve(token, MacrosKind, th.contextModule())
		if err != nil {
			return nil, th.syntaxError(err)
		}
		if macro != nil {
			th.logf(">", "macro %v rest:%q", token, abbrev(rest, 24))
			th.Push(out, Text(rest))
			if err := th.invoke(ctx, macro, mod); err != nil {
				return nil, th.syntaxError(err)
			}
			after, err := th.popMacroResult()
			if err != nil {
				return nil, th.syntaxError(errorf(BadNestingError, "macro %v must leave remaining text and output array", token))
			}
			rest, out = string(after.text), after.arr
			continue
		}

		codegen, match, ok := th.matchLiteral(token)
		if ok {
			th.logf(">", "literal %v", token)
			v, err := th.codegen(ctx, codegen, match)
			if err != nil {
				return nil, th.syntaxError(err)
			}
			out.Push(v)
			continue
		}

		out.Push(W(token))
	}

	if len(th.stack) != depth {
		return nil, &Error{
			Kind:    BadNestingError,
			Message: "unbalanced stack after compiling, check for unclosed brackets",
			Stack:   th.Stack(),
		}
	}
	return out, nil
}

type macroResult struct {
	text Text
	arr  *Array
}

// popMacroResult pops the text and array a macro leaves behind, the text on
// top.
func (th *Thread) popMacroResult() (macroResult, error) {
	if err := th.Expect([]Kind{KindText}, []Kind{KindArray}); err != nil {
		return macroResult{}, err
	}
	t, _ := th.Pop()
	a, _ := th.Pop()
	return macroResult{t.(Text), a.(*Array)}, nil
}

// matchLiteral tries the literal rules along the same search path as bare
// words, nearest module first.
func (th *Thread) matchLiteral(token string) (Definition, *Record, bool) {
	for _, mod := range th.searchPath(th.contextModule()) {
		if def, match, ok := mod.Literals.Match(token); ok {
			return def, match, true
		}
	}
	return nil, nil, false
}

// codegen runs a literal rule's codegen on its match record; whatever it
// leaves on top is the compiled value.
func (th *Thread) codegen(ctx context.Context, codegen Definition, match *Record) (Value, error) {
	depth := len(th.stack)
	th.Push(match)
	if err := th.invoke(ctx, codegen, th.contextModule()); err != nil {
		return nil, err
	}
	if len(th.stack) != depth+1 {
		return nil, errorf(BadNestingError, "literal codegen must leave exactly one value")
	}
	return th.Pop()
}

// syntaxError classifies a compile failure: interrupts and errors already
// of a syntax kind pass through, anything else becomes a PhooSyntaxError.
// Either way the work stack is attached.
func (th *Thread) syntaxError(err error) error {
	pe, ok := err.(*Error)
	if !ok || !(pe.Kind.IsA(PhooSyntaxError) || pe.Kind.IsA(ExternalInterrupt)) {
		pe = Wrap(PhooSyntaxError, err, th.frames())
	}
	if pe.Stack == nil {
		pe.Stack = th.Stack()
	}
	return pe
}

func abbrev(s string, n int) string {
	s = strings.TrimLeft(s, tokenSpace)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
