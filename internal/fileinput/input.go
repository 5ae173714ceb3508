package fileinput

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Location names a line in an Input source.
type Location struct {
	Name string
	Line int
}

func (loc Location) String() string { return fmt.Sprintf("%v:%v", loc.Name, loc.Line) }

// Input reads whole sources, one at a time, from a Queue of input streams.
// Closing the streams is left to whoever opened them.
type Input struct {
	Queue []io.Reader

	// Last is where the last source read ended.
	Last Location
}

// ReadSource reads the next input stream to its end, returning its name
// along with everything read. It returns io.EOF once the Queue is drained.
func (in *Input) ReadSource() (name, src string, err error) {
	if len(in.Queue) == 0 {
		return "", "", io.EOF
	}
	r := in.Queue[0]
	in.Queue = in.Queue[1:]

	name = nameOf(r)
	in.Last = Location{Name: name}

	var sb strings.Builder
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 1<<20)
	for sc.Scan() {
		in.Last.Line++
		sb.Write(sc.Bytes())
		sb.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return name, sb.String(), fmt.Errorf("%v: %w", in.Last, err)
	}
	return name, sb.String(), nil
}

func nameOf(obj interface{}) string {
	if nom, ok := obj.(interface{ Name() string }); ok {
		return nom.Name()
	}
	return fmt.Sprintf("<unnamed %T>", obj)
}
