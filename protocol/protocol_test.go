package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCallFunction(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteCall(Call{Name: "solve", Kind: Function, Args: Scalars(3, 7)}))
	assert.Empty(t, buf.String(), "nothing should reach the stream before Flush")

	require.NoError(t, w.Flush())
	assert.Equal(t, "request\ncall\nsolve\n2\n0\n3\n0\n7\n1\n0\n", buf.String())
}

func TestWriteCallProcedureNoArgs(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteCall(Call{Name: "init", Kind: Procedure}))
	require.NoError(t, w.Flush())
	assert.Equal(t, "request\ncall\ninit\n0\n0\n0\n", buf.String())
}

func TestWriteCallNegativeArgs(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteCall(Call{Name: "shift", Kind: Function, Args: []Arg{Scalar(-5)}}))
	require.NoError(t, w.Flush())
	assert.Equal(t, "request\ncall\nshift\n1\n0\n-5\n1\n0\n", buf.String())
}

func TestWriteCallInvalidName(t *testing.T) {
	for _, name := range []string{"", "two words", "line\nbreak"} {
		var buf bytes.Buffer
		w := NewWriter(&buf)

		err := w.WriteCall(Call{Name: name, Kind: Function})
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)

		require.NoError(t, w.Flush())
		assert.Empty(t, buf.String(), "rejected call must not be buffered")
	}
}

func TestWriteWaitAndExit(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	w.WriteWait()
	w.WriteExit()
	require.NoError(t, w.Flush())
	assert.Equal(t, "wait\n0\nrequest\nexit\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func TestFlushReportsWriteError(t *testing.T) {
	w := NewWriter(failingWriter{})
	w.WriteExit()
	assert.ErrorIs(t, w.Flush(), io.ErrClosedPipe)
}

func TestReaderTokens(t *testing.T) {
	r := NewReader(strings.NewReader("ok\n0\n10\n  15 2048"))

	status, err := r.Token("status")
	require.NoError(t, err)
	assert.Equal(t, "ok", status)

	for _, want := range []int{0, 10, 15, 2048} {
		n, err := r.Int("value")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
}

func TestReaderPrematureEOF(t *testing.T) {
	r := NewReader(strings.NewReader("ok\n"))

	_, err := r.Token("status")
	require.NoError(t, err)

	_, err = r.Int("callbacks")
	var perr *ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "callbacks", perr.Field)
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestReaderInvalidInteger(t *testing.T) {
	r := NewReader(strings.NewReader("abc\n"))

	_, err := r.Int("return value")
	assert.ErrorIs(t, err, ErrInvalidInteger)
	assert.Contains(t, err.Error(), "return value")
	assert.Contains(t, err.Error(), `"abc"`)
}

func TestProtocolErrorMessage(t *testing.T) {
	r := NewReader(strings.NewReader(""))

	_, err := r.Token("status")
	require.Error(t, err)
	assert.Equal(t, "protocol: reading status: stream closed by driver", err.Error())
}

func TestScalarsPreservesOrder(t *testing.T) {
	args := Scalars(4, 8, 15)
	require.Len(t, args, 3)
	for i, want := range []int{4, 8, 15} {
		assert.Equal(t, ArgScalar, args[i].Type())
		assert.Equal(t, want, args[i].Value())
	}
	assert.Equal(t, ArgScalar, Arg{}.Type())
}

func TestInvocationKindString(t *testing.T) {
	assert.Equal(t, "function", Function.String())
	assert.Equal(t, "procedure", Procedure.String())
	assert.Equal(t, "unknown", InvocationKind(7).String())
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "/sb/source_path.pipe", HandshakePath("/sb", SourcePathPipe))
	assert.Equal(t, "/sb/proc42", ProcessDir("/sb", "proc42"))
	assert.Equal(t, "/run/proc42", ProcessDir("/sb", "/run/proc42/"))
	assert.Equal(t, "/sb/proc42/driver_downward.pipe", DownwardPath("/sb/proc42"))
	assert.Equal(t, "/sb/proc42/driver_upward.pipe", UpwardPath("/sb/proc42"))
}
