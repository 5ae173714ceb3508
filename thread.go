package phoo

import (
	"context"
	"sync"
)

// Frame is one level of being inside a program array. The program counter
// indexes the next item to run; Module is where words met in Program are
// looked up first.
type Frame struct {
	Program *Array
	PC      int
	Module  *Module
}

func (fr Frame) valid() bool { return fr.Program != nil }

// Thread is one cooperative execution context: a work stack, a bounded
// return stack of saved frames, and the frame currently running. A thread
// runs at most one compile or execute at a time, see Acquire.
type Thread struct {
	logging

	interp   *Interp
	module   *Module
	parent   *Thread
	maxDepth int
	strict   bool

	// The work stack holds operands; its top is the last element.
	stack []Value

	// The return stack holds the frames of callers. Entries below rbase
	// belong to an enclosing execute and may not be popped by the code
	// running now.
	rstack []Frame
	rbase  int
	frame  Frame

	lock threadLock

	mu       sync.Mutex
	run      *runState
	state    ThreadState
	children []*Thread
}

// NewThread creates a thread whose definitions go into module, starting with
// the given work stack.
func (ip *Interp) NewThread(module *Module, stack ...Value) *Thread {
	if module == nil {
		module = ip.Module(MainModule)
	}
	th := &Thread{
		interp:   ip,
		module:   module,
		maxDepth: ip.maxDepth,
		strict:   ip.strict,
		stack:    append([]Value(nil), stack...),
	}
	th.logfn = ip.logfn
	th.lock.init()
	return th
}

// Thread creates a thread against the named module.
func (ip *Interp) Thread(module string) *Thread {
	return ip.NewThread(ip.Module(module))
}

// NewChild creates a thread registered as a child of th, so that a cascading
// Kill of th also kills it. A nil module means th's module.
func (th *Thread) NewChild(module *Module) *Thread {
	if module == nil {
		module = th.module
	}
	child := th.interp.NewThread(module)
	child.parent = th
	child.strict = th.strict
	th.mu.Lock()
	th.children = append(th.children, child)
	th.mu.Unlock()
	return child
}

// Children returns the threads registered for cascading kills.
func (th *Thread) Children() []*Thread {
	th.mu.Lock()
	defer th.mu.Unlock()
	return append([]*Thread(nil), th.children...)
}

// RemoveChild unregisters child.
func (th *Thread) RemoveChild(child *Thread) {
	th.mu.Lock()
	defer th.mu.Unlock()
	for i, c := range th.children {
		if c == child {
			th.children = append(th.children[:i], th.children[i+1:]...)
			return
		}
	}
}

// Result is what a spawned thread's run produced.
type Result struct {
	Stack []Value
	Err   error
}

// Spawn compiles and executes src on a new child thread in the background.
// The result channel receives exactly one Result; the child is unregistered
// once it finishes.
func (th *Thread) Spawn(ctx context.Context, module *Module, src Value) (*Thread, <-chan Result) {
	child := th.NewChild(module)
	results := make(chan Result, 1)
	go func() {
		stack, err := child.Run(ctx, src)
		th.RemoveChild(child)
		results <- Result{stack, err}
	}()
	return child, results
}

// Interp returns the interpreter that owns th.
func (th *Thread) Interp() *Interp { return th.interp }

// Module returns the module that th defines into.
func (th *Thread) Module() *Module { return th.module }

// Parent returns the thread th was spawned from, if any.
func (th *Thread) Parent() *Thread { return th.parent }

// Strict reports whether undefined words and redefinitions are errors.
func (th *Thread) Strict() bool { return th.strict }

// SetStrict changes strict mode for th.
func (th *Thread) SetStrict(strict bool) { th.strict = strict }

// MaxDepth returns the return stack bound.
func (th *Thread) MaxDepth() int { return th.maxDepth }

//// Work stack

// Push pushes values, the last ending up on top.
func (th *Thread) Push(vs ...Value) { th.stack = append(th.stack, vs...) }

// Pop removes and returns the top value.
func (th *Thread) Pop() (Value, error) { return th.PopAt(0) }

// PopAt removes and returns the value depth items below the top.
func (th *Thread) PopAt(depth int) (Value, error) {
	i := len(th.stack) - 1 - depth
	if depth < 0 || i < 0 {
		return nil, errorf(StackUnderflowError, "expected at least %v items on stack, got %v", depth+1, len(th.stack))
	}
	v := th.stack[i]
	copy(th.stack[i:], th.stack[i+1:])
	th.stack[len(th.stack)-1] = nil
	th.stack = th.stack[:len(th.stack)-1]
	return v, nil
}

// Peek returns the value depth items below the top without removing it.
func (th *Thread) Peek(depth int) (Value, error) {
	i := len(th.stack) - 1 - depth
	if depth < 0 || i < 0 {
		return nil, errorf(StackUnderflowError, "expected at least %v items on stack, got %v", depth+1, len(th.stack))
	}
	return th.stack[i], nil
}

// Expect checks the kinds of the top values, the first kind naming the top.
// A zero length kinds list at some position accepts anything there.
func (th *Thread) Expect(kinds ...[]Kind) error {
	for depth, allowed := range kinds {
		v, err := th.Peek(depth)
		if err != nil {
			return err
		}
		if len(allowed) > 0 && !kindIn(kindOf(v), allowed) {
			return errorf(TypeMismatchError, "expected %v on stack, got %v: %v", kindList(allowed), kindOf(v), textOfValue(v))
		}
	}
	return nil
}

// PopKind pops the top value if it is one of the given kinds; otherwise the
// stack is left as it was and a TypeMismatchError returned.
func (th *Thread) PopKind(kinds ...Kind) (Value, error) {
	if err := th.Expect(kinds); err != nil {
		return nil, err
	}
	return th.Pop()
}

// PopArray pops an *Array.
func (th *Thread) PopArray() (*Array, error) {
	v, err := th.PopKind(KindArray)
	if err != nil {
		return nil, err
	}
	return v.(*Array), nil
}

// PopText pops a Text.
func (th *Thread) PopText() (Text, error) {
	v, err := th.PopKind(KindText)
	if err != nil {
		return "", err
	}
	return v.(Text), nil
}

// PopWord pops a Word.
func (th *Thread) PopWord() (Word, error) {
	v, err := th.PopKind(KindWord)
	if err != nil {
		return Word{}, err
	}
	return v.(Word), nil
}

// PopInt pops a Number or Integer that fits a Go int.
func (th *Thread) PopInt() (int, error) {
	v, err := th.PopKind(KindNumber, KindInteger)
	if err != nil {
		return 0, err
	}
	n, ok := intOf(v)
	if !ok {
		th.Push(v)
		return 0, errorf(TypeMismatchError, "expected an integral number on stack, got %v", v)
	}
	return n, nil
}

// Stack returns a copy of the work stack, bottom first.
func (th *Thread) Stack() []Value { return append([]Value(nil), th.stack...) }

// Depth returns the number of values on the work stack.
func (th *Thread) Depth() int { return len(th.stack) }

//// Return stack

// ReturnStack returns a copy of the saved frames, oldest first; it does not
// include the running frame.
func (th *Thread) ReturnStack() []Frame { return append([]Frame(nil), th.rstack...) }

// CurrentFrame returns the running frame.
func (th *Thread) CurrentFrame() Frame { return th.frame }

// RetPush saves a frame, failing once the return stack would exceed
// MaxDepth.
func (th *Thread) RetPush(fr Frame) error {
	if err := th.requireRun(); err != nil {
		return err
	}
	return th.retPush(fr)
}

func (th *Thread) retPush(fr Frame) error {
	if th.maxDepth > 0 && len(th.rstack) >= th.maxDepth {
		return errorf(StackOverflowError, "maximum return stack depth %v exceeded", th.maxDepth)
	}
	th.rstack = append(th.rstack, fr)
	return nil
}

// RetPop removes the most recently saved frame.
func (th *Thread) RetPop() (Frame, error) {
	if err := th.requireRun(); err != nil {
		return Frame{}, err
	}
	return th.retPop()
}

func (th *Thread) retPop() (Frame, error) {
	i := len(th.rstack) - 1
	if i < th.rbase {
		return Frame{}, errorf(StackUnderflowError, "return stack unexpectedly empty")
	}
	fr := th.rstack[i]
	th.rstack[i] = Frame{}
	th.rstack = th.rstack[:i]
	return fr, nil
}

// RetTop returns the most recently saved frame for in place changes, such
// as moving its program counter.
func (th *Thread) RetTop() (*Frame, error) {
	if err := th.requireRun(); err != nil {
		return nil, err
	}
	i := len(th.rstack) - 1
	if i < th.rbase {
		return nil, errorf(StackUnderflowError, "return stack unexpectedly empty")
	}
	return &th.rstack[i], nil
}

// frames returns the saved frames followed by the running one.
func (th *Thread) frames() []Frame {
	frames := make([]Frame, 0, len(th.rstack)+1)
	frames = append(frames, th.rstack...)
	if th.frame.valid() {
		frames = append(frames, th.frame)
	}
	return frames
}

// Trace renders the return stack, running frame last.
func (th *Thread) Trace() string { return TraceFrames(th.frames()) }

func kindIn(k Kind, kinds []Kind) bool {
	for _, other := range kinds {
		if k == other {
			return true
		}
	}
	return false
}

func kindList(kinds []Kind) string {
	switch len(kinds) {
	case 0:
		return "anything"
	case 1:
		return kinds[0].String()
	}
	s := ""
	for i, k := range kinds {
		switch {
		case i == len(kinds)-1:
			s += " or "
		case i > 0:
			s += ", "
		}
		s += k.String()
	}
	return s
}
