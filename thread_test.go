package phoo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gophoo/phoo/internal/logio"
)

type threadTestCases []threadTestCase

func (tts threadTestCases) run(t *testing.T) {
	{
		var exclusive []threadTestCase
		for _, tt := range tts {
			if tt.exclusive {
				exclusive = append(exclusive, tt)
			}
		}
		if len(exclusive) > 0 {
			tts = exclusive
		}
	}
	for _, tt := range tts {
		if !t.Run(tt.name, tt.run) {
			return
		}
	}
}

func threadTest(name string) (tt threadTestCase) {
	tt.name = name
	return tt
}

type threadTestCase struct {
	name    string
	opts    []interface{}
	module  string
	stack   []Value
	srcs    []string
	expect  []func(t *testing.T, th *Thread)
	timeout time.Duration
	wantErr error

	exclusive bool
}

func (tt threadTestCase) exclusiveTest() threadTestCase {
	tt.exclusive = true
	return tt
}

func (tt threadTestCase) withOptions(opts ...Option) threadTestCase {
	for _, opt := range opts {
		tt.opts = append(tt.opts, opt)
	}
	return tt
}

func (tt threadTestCase) withModule(name string) threadTestCase {
	tt.module = name
	return tt
}

func (tt threadTestCase) withStack(values ...Value) threadTestCase {
	tt.stack = append(tt.stack, values...)
	return tt
}

func (tt threadTestCase) withTimeout(timeout time.Duration) threadTestCase {
	tt.timeout = timeout
	return tt
}

// do adds source to run on the test thread; each one is its own Run, so a
// later one sees the definitions of earlier ones.
func (tt threadTestCase) do(srcs ...string) threadTestCase {
	tt.srcs = append(tt.srcs, srcs...)
	return tt
}

func (tt threadTestCase) expectError(err error) threadTestCase {
	tt.wantErr = err
	return tt
}

// expectStack compares the rendered work stack, bottom first, since
// integers and arrays do not compare well by reflection.
func (tt threadTestCase) expectStack(values ...string) threadTestCase {
	tt.expect = append(tt.expect, func(t *testing.T, th *Thread) {
		if values == nil {
			values = []string{}
		}
		assert.Equal(t, values, renderValues(th.Stack()), "expected stack values")
	})
	return tt
}

func (tt threadTestCase) expectOutput(output string) threadTestCase {
	var out strings.Builder
	tt.opts = append(tt.opts, WithOutput(&out))
	tt.expect = append(tt.expect, func(t *testing.T, th *Thread) {
		assert.NoError(t, th.interp.Flush())
		assert.Equal(t, output, out.String(), "expected output")
	})
	return tt
}

func (tt threadTestCase) expectDefined(kind NamespaceKind, name string) threadTestCase {
	tt.expect = append(tt.expect, func(t *testing.T, th *Thread) {
		_, found := th.module.Namespace(kind).Find(name)
		assert.True(t, found, "expected %v %q to be defined in %v", kind, name, th.module.Name())
	})
	return tt
}

func (tt threadTestCase) expectStrict(strict bool) threadTestCase {
	tt.expect = append(tt.expect, func(t *testing.T, th *Thread) {
		assert.Equal(t, strict, th.Strict(), "expected strict mode")
	})
	return tt
}

func (tt threadTestCase) expectDump(dump string) threadTestCase {
	tt.expect = append(tt.expect, func(t *testing.T, th *Thread) {
		var out strings.Builder
		require.NoError(t, th.Dump(&out))
		assert.Equal(t, dump, out.String(), "expected dump")
	})
	return tt
}

func (tt threadTestCase) run(t *testing.T) {
	defer func(then time.Time) {
		label := "PASS"
		if t.Failed() {
			label = "FAIL"
		}
		t.Logf("%v\t%v\t%v", label, t.Name(), time.Since(then))
	}(time.Now())

	if testFails(func(t *testing.T) {
		tt.runThreadTest(context.Background(), t, tt.buildThread(t))
	}) {
		th := tt.buildThread(t, WithLogf(t.Logf))
		tt.runThreadTest(context.Background(), t, th)
	}
}

func (tt threadTestCase) runThreadTest(ctx context.Context, t *testing.T, th *Thread) {
	const defaultTimeout = time.Second
	timeout := tt.timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if t.Failed() {
			dumpToTest(t, th)
		}
	}()

	var err error
	for _, src := range tt.srcs {
		if _, err = th.Run(ctx, Text(src)); err != nil {
			break
		}
	}
	if tt.wantErr != nil {
		assert.True(t, errors.Is(err, tt.wantErr), "expected error: %v\ngot: %+v", tt.wantErr, err)
	} else {
		assert.NoError(t, err, "unexpected run error")
	}

	if !t.Failed() {
		for _, expect := range tt.expect {
			expect(t, th)
		}
	}
}

func (tt threadTestCase) buildThread(t *testing.T, extra ...Option) *Thread {
	var opts Options
	for _, o := range tt.opts {
		switch impl := o.(type) {
		case Option:
			opts = append(opts, impl)
		default:
			t.Logf("unsupported threadTestCase opt type %T", o)
			t.FailNow()
		}
	}
	opts = append(opts, extra...)

	ip, err := New(opts...)
	require.NoError(t, err, "unexpected interpreter build error")
	module := tt.module
	if module == "" {
		module = MainModule
	}
	return ip.NewThread(ip.Module(module), tt.stack...)
}

func dumpToTest(t *testing.T, th *Thread) {
	lw := logio.Writer{Logf: t.Logf}
	defer lw.Close()
	th.Dump(&lw)
}

//// utilities

func testFails(fn func(t *testing.T)) bool {
	var fakeT testing.T
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(&fakeT)
	}()
	<-done
	return fakeT.Failed()
}

func renderValues(values []Value) []string {
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = textOfValue(v)
	}
	return strs
}

func lines(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func newTestInterp(t *testing.T, opts ...Option) *Interp {
	ip, err := New(opts...)
	require.NoError(t, err)
	return ip
}

//// thread basics

func TestThread_stack(t *testing.T) {
	ip := newTestInterp(t)
	th := ip.NewThread(nil, Number(1), Text("two"))
	assert.Equal(t, 2, th.Depth())

	v, err := th.Peek(1)
	require.NoError(t, err)
	assert.Equal(t, Number(1), v)

	th.Push(W("three"))
	require.NoError(t, th.Expect([]Kind{KindWord}, []Kind{KindText}, nil))
	assert.True(t, errors.Is(th.Expect([]Kind{KindText}), TypeMismatchError))
	assert.True(t, errors.Is(th.Expect(nil, nil, nil, nil), StackUnderflowError))

	v, err = th.PopAt(1)
	require.NoError(t, err)
	assert.Equal(t, Text("two"), v)
	assert.Equal(t, []string{"1", "three"}, renderValues(th.Stack()))

	_, err = th.PopText()
	assert.True(t, errors.Is(err, TypeMismatchError))
	assert.Equal(t, 2, th.Depth(), "a mistyped pop leaves the stack alone")

	w, err := th.PopWord()
	require.NoError(t, err)
	assert.Equal(t, "three", w.Name())
	n, err := th.PopInt()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = th.Pop()
	assert.True(t, errors.Is(err, StackUnderflowError))
}

func TestThread_frameHelpersNeedRun(t *testing.T) {
	ip := newTestInterp(t)
	th := ip.NewThread(nil)
	_, err := th.RetTop()
	assert.True(t, errors.Is(err, RaceConditionError), "got %v", err)
	_, err = th.RetPop()
	assert.True(t, errors.Is(err, RaceConditionError), "got %v", err)
	assert.True(t, errors.Is(th.RetPush(Frame{Program: NewArray()}), RaceConditionError))
}

func TestThread_children(t *testing.T) {
	ip := newTestInterp(t)
	th := ip.Thread(MainModule)
	child := th.NewChild(nil)
	assert.Same(t, th, child.Parent())
	assert.Same(t, th.Module(), child.Module())
	assert.Equal(t, []*Thread{child}, th.Children())
	th.RemoveChild(child)
	assert.Empty(t, th.Children())

	spawned, results := th.Spawn(context.Background(), ip.Module("other"), Text("1 2 +"))
	res := <-results
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"3"}, renderValues(res.Stack))
	assert.Equal(t, "other", spawned.Module().Name())
	assert.Empty(t, th.Children(), "finished children are unregistered")
}
