package phoo

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/gophoo/phoo/internal/panicerr"
)

// ThreadState is where a thread is in its run lifecycle.
type ThreadState uint8

// Thread states.
const (
	Idle ThreadState = iota
	Running
	Paused
	CancelRequested
	Cancelled
)

func (st ThreadState) String() string {
	switch st {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case CancelRequested:
		return "cancel-requested"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

type controlOp uint8

const (
	opKill controlOp = iota + 1
	opPause
	opStep
	opResume
)

type command struct {
	op      controlOp
	cascade bool
	ack     chan struct{}
}

// runState is shared between a running thread, which polls ctl at each
// checkpoint, and the controlling goroutines that send to it. done closes
// once the run lets go of its lock, so that senders never block on a run
// that has finished.
type runState struct {
	guard *Guard
	ctl   chan command
	done  chan struct{}

	// owned by the running goroutine
	paused  bool
	killed  bool
	stepAck chan struct{}
}

func (th *Thread) startRun(g *Guard) {
	th.mu.Lock()
	defer th.mu.Unlock()
	th.run = &runState{
		guard: g,
		ctl:   make(chan command),
		done:  make(chan struct{}),
	}
	th.state = Running
}

func (th *Thread) endRun(g *Guard) {
	th.mu.Lock()
	defer th.mu.Unlock()
	rs := th.run
	if rs == nil || rs.guard != g {
		return
	}
	if rs.stepAck != nil {
		close(rs.stepAck)
		rs.stepAck = nil
	}
	th.run = nil
	close(rs.done)
	if th.state != Cancelled {
		th.state = Idle
	}
}

func (th *Thread) current() *runState {
	th.mu.Lock()
	defer th.mu.Unlock()
	return th.run
}

func (th *Thread) setState(st ThreadState) {
	th.mu.Lock()
	th.state = st
	th.mu.Unlock()
}

// State returns the thread's lifecycle state. A thread that was killed stays
// Cancelled until its next run starts.
func (th *Thread) State() ThreadState {
	th.mu.Lock()
	defer th.mu.Unlock()
	return th.state
}

// requireRun fails helpers that only make sense while th is running.
func (th *Thread) requireRun() error {
	if th.current() == nil {
		return errorf(RaceConditionError, "thread is not running")
	}
	return nil
}

func (rs *runState) send(ctx context.Context, cmd command) error {
	select {
	case rs.ctl <- cmd:
	case <-rs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.ack:
	case <-rs.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Kill asks th to stop at its next checkpoint with an ExternalInterrupt,
// returning once the request has been acknowledged, or right away if th is
// not running. With cascade, the threads spawned from th are killed first,
// concurrently, and th acknowledges only after they all have.
func (th *Thread) Kill(ctx context.Context, cascade bool) error {
	rs := th.current()
	if rs == nil {
		if cascade {
			return th.killChildren(ctx)
		}
		return nil
	}
	return rs.send(ctx, command{op: opKill, cascade: cascade, ack: make(chan struct{})})
}

// Pause asks th to wait at its next checkpoint until resumed, stepped, or
// killed; it returns once th is waiting.
func (th *Thread) Pause(ctx context.Context) error {
	rs := th.current()
	if rs == nil {
		return nil
	}
	return rs.send(ctx, command{op: opPause, ack: make(chan struct{})})
}

// Step lets a paused thread take exactly one step, pausing it first if
// needed; it returns once that step is complete.
func (th *Thread) Step(ctx context.Context) error {
	rs := th.current()
	if rs == nil {
		return nil
	}
	if err := rs.send(ctx, command{op: opPause, ack: make(chan struct{})}); err != nil {
		return err
	}
	return rs.send(ctx, command{op: opStep, ack: make(chan struct{})})
}

// Resume lets a paused thread continue.
func (th *Thread) Resume(ctx context.Context) error {
	rs := th.current()
	if rs == nil {
		return nil
	}
	return rs.send(ctx, command{op: opResume, ack: make(chan struct{})})
}

func (th *Thread) killChildren(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, child := range th.Children() {
		child := child
		eg.Go(func() error { return child.Kill(ctx, true) })
	}
	return eg.Wait()
}

// checkpoint is where a running thread notices control requests and context
// cancellation. It is called before every step and every compiled token.
func (th *Thread) checkpoint(ctx context.Context) error {
	rs := th.current()
	if rs == nil {
		return nil
	}
	if rs.killed {
		return errorf(ExternalInterrupt, "thread killed")
	}
	if rs.stepAck != nil {
		close(rs.stepAck)
		rs.stepAck = nil
		rs.paused = true
		th.setState(Paused)
	}
	for {
		if !rs.paused {
			select {
			case cmd := <-rs.ctl:
				if err := th.handle(ctx, rs, cmd); err != nil {
					return err
				}
				if !rs.paused {
					return nil
				}
				continue
			case <-ctx.Done():
				return interrupted(ctx.Err())
			default:
				return nil
			}
		}
		select {
		case cmd := <-rs.ctl:
			if err := th.handle(ctx, rs, cmd); err != nil {
				return err
			}
			if cmd.op == opStep {
				return nil
			}
		case <-ctx.Done():
			return interrupted(ctx.Err())
		}
	}
}

func (th *Thread) handle(ctx context.Context, rs *runState, cmd command) error {
	switch cmd.op {
	case opKill:
		th.setState(CancelRequested)
		th.logf("!", "kill requested cascade:%v", cmd.cascade)
		var err error
		if cmd.cascade {
			err = th.killChildren(context.WithoutCancel(ctx))
		}
		rs.killed = true
		th.setState(Cancelled)
		close(cmd.ack)
		ie := errorf(ExternalInterrupt, "thread killed")
		ie.Cause = err
		return ie

	case opPause:
		rs.paused = true
		th.setState(Paused)
		close(cmd.ack)

	case opStep:
		rs.paused = false
		rs.stepAck = cmd.ack
		th.setState(Running)

	case opResume:
		rs.paused = false
		th.setState(Running)
		close(cmd.ack)
	}
	return nil
}

func interrupted(cause error) *Error {
	return &Error{Kind: ExternalInterrupt, Message: cause.Error(), Cause: cause}
}

// recoverRun runs f with any panic or goroutine exit converted into a
// PhooError.
func recoverRun(name string, f func() error) error {
	err := panicerr.Recover(name, f)
	if err != nil && (panicerr.IsPanic(err) || panicerr.IsExit(err)) {
		var pe *Error
		if !errors.As(err, &pe) {
			return Wrap(PhooError, err, nil)
		}
		return pe
	}
	return err
}
