package phoo

import (
	"bufio"
	"fmt"
	"io"
	"io/ioutil"
	"strings"
	"sync"
)

// outputCore serializes writes from every thread of an interpreter into one
// flushable output stream.
type outputCore struct {
	mu  sync.Mutex
	out writeFlusher
}

// Close flushes any buffered output; the underlying writers are left open.
func (oc *outputCore) Close() error { return oc.Flush() }

func (oc *outputCore) setOutput(w io.Writer) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	if oc.out != nil {
		oc.out.Flush()
	}
	oc.out = newWriteFlusher(w)
}

func (oc *outputCore) addTee(w io.Writer) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.out = multiWriteFlusher(oc.out, newWriteFlusher(w))
}

func (oc *outputCore) writeString(s string) error {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	if oc.out == nil {
		return nil
	}
	for _, r := range s {
		if err := writeRune(oc.out, r); err != nil {
			return err
		}
	}
	return nil
}

func (oc *outputCore) writeRune(r rune) error {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	if oc.out == nil {
		return nil
	}
	return writeRune(oc.out, r)
}

// Flush flushes buffered output.
func (oc *outputCore) Flush() error {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	if oc.out == nil {
		return nil
	}
	return oc.out.Flush()
}

// writeRune writes r in UTF-8, except that C1 controls are written in their
// 7-bit escaped form, and NEL as CRLF, as emit has always done for terminals.
func writeRune(w io.Writer, r rune) (err error) {
	type runeWriter interface {
		WriteRune(r rune) (size int, err error)
	}
	switch {
	case r < 0x80:
		if bw, ok := w.(io.ByteWriter); ok {
			err = bw.WriteByte(byte(r))
		} else {
			_, err = w.Write([]byte{byte(r)})
		}
	case r == 0x85:
		_, err = w.Write([]byte("\r\n"))
	case r <= 0x9f:
		_, err = w.Write([]byte{0x1b, byte(r ^ 0xc0)})
	default:
		if rw, ok := w.(runeWriter); ok {
			_, err = rw.WriteRune(r)
		} else {
			_, err = w.Write([]byte(string(r)))
		}
	}
	return err
}

type writeFlusher interface {
	io.Writer
	Flush() error
}

var discardWriteFlusher writeFlusher = nopFlusher{ioutil.Discard}

func newWriteFlusher(w io.Writer) writeFlusher {
	if w == nil || w == ioutil.Discard {
		return discardWriteFlusher
	}
	if wf, is := w.(writeFlusher); is {
		return wf
	}

	// in memory buffers, like bytes.Buffer and strings.Builder
	type buffer interface {
		io.Writer
		Len() int
		Grow(n int)
		Reset()
	}
	if _, isBuffer := w.(buffer); isBuffer {
		return nopFlusher{w}
	}

	return bufio.NewWriter(w)
}

type nopFlusher struct{ io.Writer }

func (nf nopFlusher) Flush() error { return nil }

type writeFlushers []writeFlusher

func (wfs writeFlushers) Write(p []byte) (n int, err error) {
	for _, wf := range wfs {
		n, err = wf.Write(p)
		if err != nil {
			return n, err
		}
		if n != len(p) {
			return n, io.ErrShortWrite
		}
	}
	return len(p), nil
}

func (wfs writeFlushers) Flush() (err error) {
	for _, wf := range wfs {
		if ferr := wf.Flush(); err == nil {
			err = ferr
		}
	}
	return err
}

func multiWriteFlusher(some ...writeFlusher) writeFlusher {
	var all writeFlushers
	for _, one := range some {
		if many, ok := one.(writeFlushers); ok {
			all = append(all, many...)
		} else if one != nil && one != discardWriteFlusher {
			all = append(all, one)
		}
	}
	switch len(all) {
	case 0:
		return discardWriteFlusher
	case 1:
		return all[0]
	}
	return all
}

// logging is the optional trace log of an interpreter or thread. Marks
// prefix each message, padded to the widest one seen so far so that
// messages line up.
type logging struct {
	logfn func(mess string, args ...interface{})

	markWidth int
}

func (log *logging) withLogPrefix(prefix string) func() {
	logfn := log.logfn
	if logfn == nil {
		return func() {}
	}
	log.logfn = func(mess string, args ...interface{}) {
		logfn(prefix+mess, args...)
	}
	return func() {
		log.logfn = logfn
	}
}

func (log *logging) logf(mark, mess string, args ...interface{}) {
	if log.logfn == nil {
		return
	}
	if n := log.markWidth - len(mark); n > 0 {
		for _, r := range mark {
			mark = strings.Repeat(string(r), n) + mark
			break
		}
	} else if n < 0 {
		log.markWidth = len(mark)
	}
	if len(args) > 0 {
		mess = fmt.Sprintf(mess, args...)
	}
	log.logfn("%v %v", mark, mess)
}
