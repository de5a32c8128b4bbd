package algorithm

import (
	"time"

	"github.com/p-arndt/arenacall/protocol"
)

// Invocation describes one completed call, successful or not.
type Invocation struct {
	Name      string
	Kind      protocol.InvocationKind
	Args      []int
	Result    Result
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// Recorder receives every invocation made through an Algorithm.
type Recorder interface {
	Record(inv *Invocation) error
}
