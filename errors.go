package phoo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorKind classifies language level failures. Kinds form a tree rooted at
// PhooError; an ErrorKind is itself an error, so that
//
//	errors.Is(err, phoo.UnknownWordError)
//
// matches an *Error of that kind or of any of its sub-kinds.
type ErrorKind uint8

// Error kinds.
const (
	PhooError ErrorKind = iota
	UnknownWordError
	ModuleNotFoundError // an UnknownWordError
	IllegalOperationError
	AlreadyDefinedError // an IllegalOperationError
	UnreachableError
	StackOverflowError
	StackUnderflowError
	RaceConditionError
	ExternalInterrupt
	TypeMismatchError
	PhooSyntaxError
	BadNestingError    // a PhooSyntaxError
	UnexpectedEOFError // a PhooSyntaxError

	errorKindMax
)

var errorKindNames = [errorKindMax]string{
	"PhooError",
	"UnknownWordError",
	"ModuleNotFoundError",
	"IllegalOperationError",
	"AlreadyDefinedError",
	"UnreachableError",
	"StackOverflowError",
	"StackUnderflowError",
	"RaceConditionError",
	"ExternalInterrupt",
	"TypeMismatchError",
	"PhooSyntaxError",
	"BadNestingError",
	"UnexpectedEOFError",
}

var errorKindParents = [errorKindMax]ErrorKind{
	ModuleNotFoundError: UnknownWordError,
	AlreadyDefinedError: IllegalOperationError,
	BadNestingError:     PhooSyntaxError,
	UnexpectedEOFError:  PhooSyntaxError,
}

func (k ErrorKind) String() string {
	if k < errorKindMax {
		return errorKindNames[k]
	}
	return "ErrorKind(" + strconv.Itoa(int(k)) + ")"
}

func (k ErrorKind) Error() string { return k.String() }

// Parent returns the kind k specializes; PhooError is its own parent.
func (k ErrorKind) Parent() ErrorKind {
	if k < errorKindMax {
		return errorKindParents[k]
	}
	return PhooError
}

// IsA reports whether k is other or descends from it.
func (k ErrorKind) IsA(other ErrorKind) bool {
	for {
		if k == other {
			return true
		}
		if k == PhooError {
			return false
		}
		k = k.Parent()
	}
}

// Is lets errors.Is test kinds against each other.
func (k ErrorKind) Is(target error) bool {
	other, ok := target.(ErrorKind)
	return ok && k.IsA(other)
}

// Error is a language level failure.
type Error struct {
	Kind    ErrorKind
	Message string

	// Trace is the rendered return stack at the time of the error, see
	// TraceFrames.
	Trace string

	// Stack holds a snapshot of the work stack for compile time errors.
	Stack []Value

	// Cause is any wrapped host or inner error.
	Cause error
}

func errorf(kind ErrorKind, mess string, args ...interface{}) *Error {
	if len(args) > 0 {
		mess = fmt.Sprintf(mess, args...)
	}
	return &Error{Kind: kind, Message: mess}
}

// Errorf creates a new error of the given kind.
func Errorf(kind ErrorKind, mess string, args ...interface{}) *Error {
	return errorf(kind, mess, args...)
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches an ErrorKind target against e's kind and its ancestors.
func (e *Error) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && e.Kind.IsA(k)
}

// Format supports %+v to append the trace, stack, and cause details.
func (e *Error) Format(f fmt.State, c rune) {
	fmt.Fprint(f, e.Error())
	if c == 'v' && f.Flag('+') {
		if e.Trace != "" {
			fmt.Fprintf(f, "\nReturn stack: %s", e.Trace)
		}
		if e.Stack != nil {
			fmt.Fprintf(f, "\nWork stack: %v", stackString(e.Stack))
		}
		if e.Cause != nil {
			fmt.Fprintf(f, "\nCaused by: %+v", e.Cause)
		}
	}
}

// Wrap converts err into an *Error of the given kind, preserving its message
// and keeping err as the cause. The given frames, if any, are rendered as
// the trace. Interrupts are never re-classified.
func Wrap(kind ErrorKind, err error, frames []Frame) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) && pe.Kind.IsA(ExternalInterrupt) {
		if pe.Trace == "" && frames != nil {
			pe.Trace = TraceFrames(frames)
		}
		return pe
	}
	we := &Error{Kind: kind, Message: err.Error(), Cause: err}
	if pe != nil {
		we.Message = pe.Message
	}
	if frames != nil {
		we.Trace = TraceFrames(frames)
	}
	return we
}

// TraceFrames renders frames oldest first as "{name pc} {name pc} ...",
// using "..." for arrays that were never given a name.
func TraceFrames(frames []Frame) string {
	var sb strings.Builder
	for i, fr := range frames {
		if i > 0 {
			sb.WriteByte(' ')
		}
		name := "..."
		if fr.Program != nil && fr.Program.name != "" {
			name = fr.Program.name
		}
		sb.WriteByte('{')
		sb.WriteString(name)
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(fr.PC))
		sb.WriteByte('}')
	}
	return sb.String()
}

func stackString(stack []Value) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range stack {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(textOfValue(v))
	}
	sb.WriteByte(']')
	return sb.String()
}

func textOfValue(v Value) string {
	if v == nil {
		return "undefined"
	}
	return v.String()
}

// errorRecord converts err into the record that ]sandbox[ leaves on the
// stack: kind, message, and trace fields.
func errorRecord(err error) *Record {
	rec := NewRecord()
	var pe *Error
	if errors.As(err, &pe) {
		rec.Set(Text("kind"), Text(pe.Kind.String()))
		rec.Set(Text("message"), Text(pe.Message))
		rec.Set(Text("trace"), Text(pe.Trace))
	} else {
		rec.Set(Text("kind"), Text(PhooError.String()))
		rec.Set(Text("message"), Text(err.Error()))
		rec.Set(Text("trace"), Text(""))
	}
	return rec
}
