package phoo

import "context"

// The prelude builds the everyday words out of the return stack primitives.
// It is compiled and run into the builtins module when an Interp is created.

const preludeName = "prelude.ph"

// The primitives bracketed like ]this[ act on the frame of whoever called the
// word that uses them. Wrapping each in a word of its own makes that caller
// the code that uses the wrapper, which is what one wants.
const preludeSource = "to done [ ]done[ ]\n" +
	"to again [ ]again[ ]\n" +
	"to this [ ]this[ ]\n" +

	// Quoting: ' pushes the next item of its caller instead of running it;
	// run calls an array, or any other value, that sits on the stack.
	"to ' [ ]'[ ]\n" +
	"to run [ ]run[ ]\n" +

	// Conditionals skip ahead in their caller when the condition is false:
	// if skips one item, iff skips two. So "c if [ a ]" runs a only when c
	// holds, and "c iff [ a ] else [ b ]" runs exactly one of a or b, since
	// else always skips the item after it.
	"to if [ 1 ]cjump[ ]\n" +
	"to iff [ 2 ]cjump[ ]\n" +
	"to else [ false 1 ]cjump[ ]\n" +

	// The usual stack shuffles are all picks and rolls.
	"to dup [ 0 pick ]\n" +
	"to over [ 1 pick ]\n" +
	"to swap [ 1 roll ]\n" +
	"to rot [ 2 roll ]\n" +
	"to nip [ swap drop ]\n" +

	"to 1+ [ 1 + ]\n" +
	"to 1- [ 1 - ]\n" +

	// sandbox runs the item after it, leaving false or the error it raised.
	"to sandbox [ ]'[ ]sandbox[ ]\n"

func (ip *Interp) definePrelude(ctx context.Context) error {
	th := ip.NewThread(ip.builtins)
	th.strict = true
	defer th.withLogPrefix(preludeName + ": ")()
	if _, err := th.Run(ctx, Text(preludeSource)); err != nil {
		return err
	}
	return nil
}
