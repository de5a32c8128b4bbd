package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Arg is one call argument. The zero value is the scalar 0.
type Arg struct {
	typ   ArgType
	value int
}

// Scalar returns an integer argument.
func Scalar(v int) Arg {
	return Arg{typ: ArgScalar, value: v}
}

// Scalars is a convenience for calls that only take integers.
func Scalars(vs ...int) []Arg {
	args := make([]Arg, len(vs))
	for i, v := range vs {
		args[i] = Scalar(v)
	}
	return args
}

func (a Arg) Type() ArgType { return a.typ }
func (a Arg) Value() int    { return a.value }

func (a Arg) String() string {
	return strconv.Itoa(a.value)
}

// Call is a single invocation request.
type Call struct {
	Name string
	Kind InvocationKind
	Args []Arg
}

// Writer buffers outbound frames. Nothing reaches the driver until Flush.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) line(s string) {
	w.w.WriteString(s)
	w.w.WriteByte('\n')
}

func (w *Writer) number(n int) {
	w.line(strconv.Itoa(n))
}

// WriteCall encodes a call frame:
//
//	request, call, name, argc, (type tag, value)*, kind, callback count
func (w *Writer) WriteCall(c Call) error {
	if err := validName(c.Name); err != nil {
		return err
	}
	w.line(FrameMarker)
	w.line(string(RequestCall))
	w.line(c.Name)
	w.number(len(c.Args))
	for _, a := range c.Args {
		w.number(int(a.typ))
		w.number(a.value)
	}
	w.number(int(c.Kind))
	w.number(NoCallbacks)
	return nil
}

// WriteWait encodes the resource-usage request. It carries no frame marker.
func (w *Writer) WriteWait() {
	w.line(string(RequestWait))
	w.number(0)
}

func (w *Writer) WriteExit() {
	w.line(FrameMarker)
	w.line(string(RequestExit))
}

// Flush pushes buffered frames to the driver. Write errors surface here.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
