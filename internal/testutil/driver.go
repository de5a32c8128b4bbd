package testutil

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/p-arndt/arenacall/protocol"
)

// Step is one exchange of a scripted driver: the lines it expects on the
// downward stream, then the tokens it answers with.
type Step struct {
	Expect []string
	Reply  []string
}

// CallStep expects a call frame for name and answers with status and, for
// functions, the return value. The callback count is always 0.
func CallStep(name string, kind protocol.InvocationKind, args []int, status string, value int) Step {
	expect := []string{protocol.FrameMarker, string(protocol.RequestCall), name, strconv.Itoa(len(args))}
	for _, a := range args {
		expect = append(expect, strconv.Itoa(int(protocol.ArgScalar)), strconv.Itoa(a))
	}
	expect = append(expect, strconv.Itoa(int(kind)), "0")

	reply := []string{status, "0"}
	if kind == protocol.Function {
		reply = append(reply, strconv.Itoa(value))
	}
	return Step{Expect: expect, Reply: reply}
}

// WaitStep expects the resource-usage request and answers with the usage.
func WaitStep(time, memory int) Step {
	return Step{
		Expect: []string{string(protocol.RequestWait), "0"},
		Reply:  []string{strconv.Itoa(time), strconv.Itoa(memory)},
	}
}

func ExitStep() Step {
	return Step{Expect: []string{protocol.FrameMarker, string(protocol.RequestExit)}}
}

// Driver plays the sandbox driver side of the protocol. It fails as soon as
// the client writes a line the script does not expect.
type Driver struct {
	Language  string
	Source    string
	Interface string

	steps []Step
	g     errgroup.Group

	mu       sync.Mutex
	received []string
}

func NewDriver(steps ...Step) *Driver {
	return &Driver{steps: steps}
}

// Received returns every downward line read so far.
func (d *Driver) Received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.received...)
}

// Wait blocks until the driver has finished its script and the client has
// closed the downward stream.
func (d *Driver) Wait() error {
	return d.g.Wait()
}

// StartPipe runs d over in-memory pipes and returns the client ends.
func (d *Driver) StartPipe() (down io.WriteCloser, up io.ReadCloser) {
	downR, downW := io.Pipe()
	upR, upW := io.Pipe()
	d.g.Go(func() error {
		err := d.serve(downR, upW)
		// Unblock the client whatever happened.
		downR.CloseWithError(io.ErrClosedPipe)
		upW.Close()
		return err
	})
	return downW, upR
}

func (d *Driver) serve(down io.Reader, up io.Writer) error {
	r := bufio.NewReader(down)
	for i, st := range d.steps {
		for _, want := range st.Expect {
			line, err := r.ReadString('\n')
			if err != nil {
				return fmt.Errorf("step %d: waiting for %q: %w", i, want, err)
			}
			line = strings.TrimSuffix(line, "\n")
			d.appendReceived(line)
			if line != want {
				return fmt.Errorf("step %d: got %q, want %q", i, line, want)
			}
		}
		if len(st.Reply) > 0 {
			if _, err := io.WriteString(up, strings.Join(st.Reply, "\n")+"\n"); err != nil {
				return fmt.Errorf("step %d: replying: %w", i, err)
			}
		}
	}

	// Anything after the script is unexpected, but keep it for inspection.
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			d.appendReceived(strings.TrimSuffix(line, "\n"))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) appendReceived(line string) {
	d.mu.Lock()
	d.received = append(d.received, line)
	d.mu.Unlock()
}
