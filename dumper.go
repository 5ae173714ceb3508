package phoo

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

type fmtBuf interface {
	Len() int
	Write(p []byte) (n int, err error)
	WriteByte(c byte) error
	WriteRune(r rune) (n int, err error)
	WriteString(s string) (n int, err error)
}

// Dump writes a readable description of th: its work stack, its return
// stack with the position in each frame marked, and the definitions of its
// module. Meant for use between runs or on a paused thread.
func (th *Thread) Dump(w io.Writer) error {
	dump := threadDumper{th: th, out: w}
	return dump.dump()
}

type threadDumper struct {
	th  *Thread
	out io.Writer
	err error

	indexWidth int

	// include the builtins module's definitions
	builtins bool
}

func (dump *threadDumper) dump() error {
	dump.printf("# Thread Dump\n")
	dump.printf("  module: %v\n", dump.th.module.Name())
	dump.printf("  state: %v\n", dump.th.State())
	dump.printf("  strict: %v\n", dump.th.strict)

	dump.dumpStack()
	dump.dumpReturnStack()
	dump.dumpModule(dump.th.module)
	if dump.builtins {
		dump.dumpModule(dump.th.interp.builtins)
	}
	return dump.err
}

func (dump *threadDumper) printf(mess string, args ...interface{}) {
	if dump.err == nil {
		_, dump.err = fmt.Fprintf(dump.out, mess, args...)
	}
}

func (dump *threadDumper) writeLine(buf *bytes.Buffer) {
	if dump.err == nil {
		if b := buf.Bytes(); len(b) > 0 && b[len(b)-1] != '\n' {
			buf.WriteByte('\n')
		}
		_, dump.err = buf.WriteTo(dump.out)
	}
	buf.Reset()
}

func (dump *threadDumper) dumpStack() {
	stack := dump.th.stack
	dump.printf("# Work Stack (%v)\n", len(stack))
	dump.indexWidth = len(strconv.Itoa(len(stack))) + 1
	var buf bytes.Buffer
	for i := len(stack) - 1; i >= 0; i-- {
		fmt.Fprintf(&buf, "  @% *v ", dump.indexWidth, len(stack)-1-i)
		buf.WriteString(textOfValue(stack[i]))
		dump.writeLine(&buf)
	}
}

func (dump *threadDumper) dumpReturnStack() {
	frames := dump.th.frames()
	dump.printf("# Return Stack (%v)\n", len(frames))
	var buf bytes.Buffer
	for i := len(frames) - 1; i >= 0; i-- {
		fr := frames[i]
		fmt.Fprintf(&buf, "  %v ", TraceFrames(frames[i:i+1]))
		if fr.Module != nil {
			fmt.Fprintf(&buf, "in %v ", fr.Module.Name())
		}
		dump.formatProgram(&buf, fr.Program, fr.PC)
		dump.writeLine(&buf)
	}
}

// formatProgram writes prog's items, marking the one at pc with a caret.
func (dump *threadDumper) formatProgram(buf fmtBuf, prog *Array, pc int) {
	buf.WriteByte('[')
	for i, item := range prog.Items {
		buf.WriteByte(' ')
		if i == pc {
			buf.WriteString("^ ")
		}
		buf.WriteString(textOfValue(item))
	}
	if pc >= prog.Len() {
		buf.WriteString(" ^")
	}
	buf.WriteString(" ]")
}

func (dump *threadDumper) dumpModule(mod *Module) {
	dump.printf("# Module %v\n", mod.Name())
	if stars := mod.StarImports(); len(stars) > 0 {
		var buf bytes.Buffer
		buf.WriteString("  import*")
		for _, star := range stars {
			buf.WriteByte(' ')
			buf.WriteString(star.Name())
		}
		dump.writeLine(&buf)
	}
	var buf bytes.Buffer
	for _, ns := range []struct {
		mark string
		*Namespace
	}{
		{"to", mod.Words},
		{"macro", mod.Macros},
	} {
		for _, name := range ns.Names() {
			def, _ := ns.Find(name)
			fmt.Fprintf(&buf, "  %v %v ", ns.mark, name)
			dump.formatDefinition(&buf, def)
			if depth := ns.Depth(name); depth > 1 {
				fmt.Fprintf(&buf, " (shadows %v)", depth-1)
			}
			dump.writeLine(&buf)
		}
	}
	for _, pattern := range mod.Literals.Names() {
		def, _ := mod.Literals.Find(pattern)
		fmt.Fprintf(&buf, "  literal %q ", pattern)
		dump.formatDefinition(&buf, def)
		dump.writeLine(&buf)
	}
}

func (dump *threadDumper) formatDefinition(buf fmtBuf, def Definition) {
	switch val := def.(type) {
	case *Array:
		buf.WriteString(val.String())
	case Word:
		buf.WriteString("alias ")
		buf.WriteString(val.Name())
	default:
		buf.WriteString(textOfValue(def))
	}
}
