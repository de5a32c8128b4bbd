// Package algorithm lets a harness invoke a submitted algorithm running
// inside the sandbox driver. Each Algorithm owns one pair of driver pipes
// and performs strictly one request at a time; it is not safe for
// concurrent use.
package algorithm

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/p-arndt/arenacall/protocol"
)

var (
	// ErrCallbacksUnsupported is reported when the driver announces
	// callbacks for a call. This client never registers any.
	ErrCallbacksUnsupported = errors.New("callbacks are not supported")
	ErrClosed               = errors.New("algorithm closed")
)

// Endpoint identifies the sandbox instance a client talks to.
type Endpoint struct {
	SandboxDir string
	ProcessDir string
}

// Usage is the resource consumption reported by the driver after a call.
// Units are the driver's (milliseconds and kilobytes in practice).
type Usage struct {
	Time   int
	Memory int
}

// Result is the outcome of one call.
type Result struct {
	Status   string
	Value    int
	HasValue bool
	Usage    Usage
}

type Algorithm struct {
	endpoint Endpoint
	down     *protocol.Writer
	up       *protocol.Reader
	closers  []io.Closer
	logger   *slog.Logger
	recorder Recorder

	last   Result
	err    error
	closed bool
}

// New returns a client speaking over already-open streams, skipping the
// handshake. Streams implementing io.Closer are closed by Close.
func New(down io.Writer, up io.Reader, logger *slog.Logger) *Algorithm {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &Algorithm{
		down:   protocol.NewWriter(down),
		up:     protocol.NewReader(up),
		logger: logger,
	}
	if c, ok := down.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	if c, ok := up.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	return a
}

// SetRecorder registers r to receive every completed invocation.
func (a *Algorithm) SetRecorder(r Recorder) {
	a.recorder = r
}

func (a *Algorithm) Endpoint() Endpoint {
	return a.endpoint
}

// CallFunction invokes name and returns its integer result.
func (a *Algorithm) CallFunction(name string, args ...protocol.Arg) (int, error) {
	res, err := a.call(protocol.Call{Name: name, Kind: protocol.Function, Args: args})
	if err != nil {
		return 0, err
	}
	return res.Value, nil
}

// CallProcedure invokes name, which produces no result.
func (a *Algorithm) CallProcedure(name string, args ...protocol.Arg) error {
	_, err := a.call(protocol.Call{Name: name, Kind: protocol.Procedure, Args: args})
	return err
}

// TimeUsage returns the time reported after the last completed call.
func (a *Algorithm) TimeUsage() int {
	return a.last.Usage.Time
}

// MemoryUsage returns the peak memory reported after the last completed call.
func (a *Algorithm) MemoryUsage() int {
	return a.last.Usage.Memory
}

func (a *Algorithm) LastResult() Result {
	return a.last
}

// Err returns the error that left the streams out of step, if any.
func (a *Algorithm) Err() error {
	return a.err
}

func (a *Algorithm) call(c protocol.Call) (Result, error) {
	if a.closed {
		return Result{}, ErrClosed
	}
	if a.err != nil {
		return Result{}, a.err
	}

	start := time.Now()
	if err := a.down.WriteCall(c); err != nil {
		// Rejected before anything was buffered; the streams are intact.
		return Result{}, fmt.Errorf("encoding %s %s: %w", c.Kind, c.Name, err)
	}

	res, err := a.exchange(c)
	if err != nil {
		err = fmt.Errorf("calling %s %s: %w", c.Kind, c.Name, err)
		a.err = err
		a.logger.Error("call failed", "name", c.Name, "kind", c.Kind, "error", err)
	} else {
		a.last = res
		a.logger.Debug("call completed",
			"name", c.Name, "status", res.Status,
			"time_usage", res.Usage.Time, "memory_usage", res.Usage.Memory)
	}
	a.record(c, res, err, start)
	return res, err
}

// exchange flushes the buffered call frame and consumes the full response,
// including the resource-usage sub-exchange.
func (a *Algorithm) exchange(c protocol.Call) (Result, error) {
	if err := a.down.Flush(); err != nil {
		return Result{}, fmt.Errorf("sending call: %w", err)
	}
	a.logger.Debug("sent call", "name", c.Name, "kind", c.Kind, "argc", len(c.Args))

	var res Result
	var err error
	if res.Status, err = a.up.Token("status"); err != nil {
		return Result{}, err
	}
	callbacks, err := a.up.Int("callback count")
	if err != nil {
		return Result{}, err
	}
	if callbacks != protocol.NoCallbacks {
		return Result{}, &protocol.ProtocolError{
			Field: "callback count",
			Err:   fmt.Errorf("%w: driver announced %d", ErrCallbacksUnsupported, callbacks),
		}
	}
	if c.Kind == protocol.Function {
		if res.Value, err = a.up.Int("return value"); err != nil {
			return Result{}, err
		}
		res.HasValue = true
	}

	if res.Usage, err = a.readUsage(); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (a *Algorithm) readUsage() (Usage, error) {
	a.down.WriteWait()
	if err := a.down.Flush(); err != nil {
		return Usage{}, fmt.Errorf("sending wait: %w", err)
	}

	var u Usage
	var err error
	if u.Time, err = a.up.Int("time usage"); err != nil {
		return Usage{}, err
	}
	if u.Memory, err = a.up.Int("memory usage"); err != nil {
		return Usage{}, err
	}
	return u, nil
}

func (a *Algorithm) record(c protocol.Call, res Result, callErr error, start time.Time) {
	if a.recorder == nil {
		return
	}
	inv := &Invocation{
		Name:      c.Name,
		Kind:      c.Kind,
		Args:      make([]int, len(c.Args)),
		Result:    res,
		StartedAt: start,
		Duration:  time.Since(start),
	}
	for i, arg := range c.Args {
		inv.Args[i] = arg.Value()
	}
	if callErr != nil {
		inv.Error = callErr.Error()
	}
	if err := a.recorder.Record(inv); err != nil {
		a.logger.Warn("recording invocation", "name", c.Name, "error", err)
	}
}

// Close notifies the driver that no more calls follow and releases both
// streams. The notification is best effort; Close always returns nil and
// later calls are no-ops.
func (a *Algorithm) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	a.down.WriteExit()
	if err := a.down.Flush(); err != nil {
		a.logger.Warn("sending exit request", "error", err)
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("closing driver stream", "error", err)
		}
	}
	return nil
}
