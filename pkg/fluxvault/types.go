package fluxvault

import (
	"time"

	"github.com/norasector/fluxvault/pkg/protocol/frame"
)

// Triple is one set-point: the field components to transmit for a single
// time step.
type Triple struct {
	X float32
	Y float32
	Z float32
}

// Value returns the component carried under tag.
func (t Triple) Value(tag frame.Tag) float32 {
	switch tag {
	case frame.TagY:
		return t.Y
	case frame.TagZ:
		return t.Z
	default:
		return t.X
	}
}

type Status int

const (
	StatusOK Status = iota
	// StatusNoData means the peer did not answer before the read timeout.
	StatusNoData
	// StatusInvalid covers truncated, misframed and unknown-tag frames as
	// well as failed writes.
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoData:
		return "no_data"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Report is handed to every Reporter after each request/response cycle (batch
// mode) or each decode attempt (receive mode).
type Report struct {
	Seq       int
	Tag       frame.Tag
	Status    Status
	Sent      float32
	HasSent   bool
	Received  float32
	Delta     float32
	Err       error
	At        time.Time
	RoundTrip time.Duration
}

// Label names the tag for reporting, or "none" when the outcome carries no
// tag (a failed decode in receive mode).
func (r Report) Label() string {
	if r.Status == StatusOK || r.HasSent {
		return r.Tag.String()
	}
	return "none"
}

// Reporter consumes session outcomes. Report is called from the session
// goroutine and must not block for long.
type Reporter interface {
	Report(r Report)
}

type ReporterFunc func(r Report)

func (f ReporterFunc) Report(r Report) { f(r) }
