package phoo

import (
	"context"

	"github.com/gophoo/phoo/internal/panicerr"
)

// Execute runs prog on th until its frame returns, leaving results on the
// work stack and returning a copy of it.
//
// Items in program position are run by kind: words are resolved and their
// definitions called, arrays are called, natives are invoked, and anything
// else is pushed. The texts "use strict" and "use loose" toggle strict mode
// instead of being pushed.
//
// Called with a context carrying th's lock, such as from within a native,
// Execute nests: the running frame is saved onto the return stack and the
// inner program cannot unwind past it.
func (th *Thread) Execute(ctx context.Context, prog *Array) ([]Value, error) {
	err := th.locked(ctx, "execute", func(ctx context.Context) error {
		return th.execute(ctx, prog, th.module)
	})
	if err != nil {
		return nil, err
	}
	return th.Stack(), nil
}

// Run compiles src and executes the result as one locked operation.
func (th *Thread) Run(ctx context.Context, src Value) ([]Value, error) {
	err := th.locked(ctx, "run", func(ctx context.Context) error {
		prog, err := th.compile(ctx, src)
		if err != nil {
			return err
		}
		return th.execute(ctx, prog, th.module)
	})
	if err != nil {
		return nil, err
	}
	return th.Stack(), nil
}

func (th *Thread) execute(ctx context.Context, prog *Array, mod *Module) (rerr error) {
	savedFrame, savedBase, savedDepth := th.frame, th.rbase, len(th.rstack)
	if savedFrame.valid() {
		if err := th.retPush(savedFrame); err != nil {
			return th.runError(err)
		}
	}
	th.rbase = len(th.rstack)
	th.frame = Frame{Program: prog, Module: mod}
	defer func() {
		if rerr != nil {
			rerr = th.runError(rerr)
		}
		for i := savedDepth; i < len(th.rstack); i++ {
			th.rstack[i] = Frame{}
		}
		th.rstack = th.rstack[:savedDepth]
		th.rbase = savedBase
		th.frame = savedFrame
	}()

	for {
		if err := th.checkpoint(ctx); err != nil {
			return err
		}
		if done, err := th.step(ctx); err != nil {
			return err
		} else if done {
			return nil
		}
	}
}

// step runs one item of the current frame, or returns from it once it is
// exhausted. It reports done when the frame the current execute started
// with has returned.
func (th *Thread) step(ctx context.Context) (done bool, _ error) {
	fr := &th.frame
	if fr.PC >= fr.Program.Len() {
		if len(th.rstack) <= th.rbase {
			return true, nil
		}
		prior, err := th.retPop()
		if err != nil {
			return false, err
		}
		th.frame = prior
		return false, nil
	}

	item := fr.Program.Items[fr.PC]
	fr.PC++
	if th.logfn != nil {
		th.logf("@", "%v %v -- r:%v s:%v", th.Trace(), textOfValue(item), len(th.rstack), stackString(th.stack))
	}
	return false, th.dispatch(ctx, item, fr.Module)
}

func (th *Thread) dispatch(ctx context.Context, item Value, mod *Module) error {
	switch val := item.(type) {
	case Word:
		def, defMod, err := th.resolve(val.Name(), WordsKind, mod)
		if err != nil {
			return err
		}
		return th.call(ctx, def, defMod)
	case *Array:
		return th.call(ctx, val, mod)
	case *Native:
		return th.callNative(ctx, val)
	case Text:
		switch val {
		case "use strict":
			th.strict = true
			return nil
		case "use loose":
			th.strict = false
			return nil
		}
	}
	th.Push(item)
	return nil
}

// call enters a definition: arrays get a new frame, natives are invoked in
// place. Word aliases are resolved before reaching here.
func (th *Thread) call(ctx context.Context, def Definition, mod *Module) error {
	switch val := def.(type) {
	case *Array:
		if err := th.retPush(th.frame); err != nil {
			return err
		}
		th.frame = Frame{Program: val, Module: mod}
		return nil
	case *Native:
		return th.callNative(ctx, val)
	case Word:
		def, defMod, err := th.resolve(val.Name(), WordsKind, mod)
		if err != nil {
			return err
		}
		return th.call(ctx, def, defMod)
	}
	return errorf(UnreachableError, "cannot call %v", kindOf(def))
}

func (th *Thread) callNative(ctx context.Context, n *Native) error {
	if n.fn == nil {
		return errorf(IllegalOperationError, "native %v has no function", n.name)
	}
	return panicerr.Capture(n.name, func() error {
		return n.fn(ctx, th)
	})
}

// invoke runs a definition to completion, as a macro or codegen is run
// during compilation.
func (th *Thread) invoke(ctx context.Context, def Definition, mod *Module) error {
	switch val := def.(type) {
	case *Native:
		return th.callNative(ctx, val)
	case *Array:
		return th.execute(ctx, val, mod)
	case Word:
		def, defMod, err := th.resolve(val.Name(), WordsKind, mod)
		if err != nil {
			return err
		}
		return th.invoke(ctx, def, defMod)
	}
	return errorf(UnreachableError, "cannot invoke %v", kindOf(def))
}

// runError gives err the trace of where it happened, wrapping foreign
// errors as PhooErrors. Errors raised by nested executes keep the trace they
// already have.
func (th *Thread) runError(err error) error {
	if pe, ok := err.(*Error); ok {
		if pe.Trace == "" {
			pe.Trace = th.Trace()
		}
		return pe
	}
	return Wrap(PhooError, err, th.frames())
}

// contextModule is the module names are resolved against first: the running
// frame's module, or the thread's module between runs.
func (th *Thread) contextModule() *Module {
	if th.frame.valid() && th.frame.Module != nil {
		return th.frame.Module
	}
	return th.module
}
