package fluxvault

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/fluxvault/pkg/observability"
	"github.com/norasector/fluxvault/pkg/protocol/frame"
	"github.com/norasector/fluxvault/pkg/util"
)

const (
	DefaultPace = time.Second
	// DefaultRetryInterval is how long receive mode backs off after the
	// channel itself fails, matching the serial read timeout.
	DefaultRetryInterval = time.Second

	readBufferSize = 64
)

var (
	ErrSessionClosed = errors.New("fluxvault: session already ran")
	// ErrReadTimeout is surfaced by the channel reader when the channel
	// returns no bytes and no error, which is how serial ports report an
	// expired read timeout.
	ErrReadTimeout = errors.New("fluxvault: read timeout")
)

// Session drives the request/echo exchange over one exclusively owned byte
// channel. A Session runs once; the channel is closed when the run returns.
type Session struct {
	ch        io.ReadWriteCloser
	reader    *bufio.Reader
	received  *Series
	sent      *Series
	deltas    *Series
	reporters []Reporter
	writeAPI  api.WriteAPI
	collector *observability.Collector
	logger    zerolog.Logger
	pace      time.Duration
	retry     time.Duration
	seq       int
	ran       atomic.Bool

	// last value successfully written per tag, what an echo is compared to
	lastSent [frame.NumTags]float32
	hasSent  [frame.NumTags]bool
}

type SessionOption func(s *Session) error

func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) error {
		s.logger = logger
		return nil
	}
}

func WithReporter(reporters ...Reporter) SessionOption {
	return func(s *Session) error {
		for _, r := range reporters {
			if r == nil {
				return fmt.Errorf("nil reporter")
			}
		}
		s.reporters = append(s.reporters, reporters...)
		return nil
	}
}

// WithPace sets the delay applied after each triple in batch mode.
func WithPace(pace time.Duration) SessionOption {
	return func(s *Session) error {
		if pace < 0 {
			return fmt.Errorf("negative pace %v", pace)
		}
		s.pace = pace
		return nil
	}
}

// WithRetryInterval sets the back-off applied in receive mode after a channel
// read fails with something other than a timeout.
func WithRetryInterval(d time.Duration) SessionOption {
	return func(s *Session) error {
		if d < 0 {
			return fmt.Errorf("negative retry interval %v", d)
		}
		s.retry = d
		return nil
	}
}

func WithInfluxDB(writeAPI api.WriteAPI) SessionOption {
	return func(s *Session) error {
		s.writeAPI = writeAPI
		return nil
	}
}

func WithCollector(c *observability.Collector) SessionOption {
	return func(s *Session) error {
		s.collector = c
		return nil
	}
}

func NewSession(ch io.ReadWriteCloser, opts ...SessionOption) (*Session, error) {
	if ch == nil {
		return nil, fmt.Errorf("must specify a byte channel")
	}
	s := &Session{
		ch:       ch,
		reader:   bufio.NewReaderSize(channelReader{r: ch}, readBufferSize),
		received: NewSeries(),
		sent:     NewSeries(),
		deltas:   NewSeries(),
		writeAPI: &util.NopWriteAPI{}, // overwritten with option
		logger:   log.Logger,
		pace:     DefaultPace,
		retry:    DefaultRetryInterval,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Series returns the values echoed back by the peer.
func (s *Session) Series() *Series { return s.received }

// Sent returns the values successfully written to the channel.
func (s *Session) Sent() *Series { return s.sent }

// Deltas returns sent minus received for every matched echo.
func (s *Session) Deltas() *Series { return s.deltas }

// Stats summarizes the echo error per tag.
func (s *Session) Stats() map[frame.Tag]ErrorStats {
	out := make(map[frame.Tag]ErrorStats, frame.NumTags)
	for _, tag := range frame.Tags {
		out[tag] = ComputeErrorStats(s.deltas.Snapshot(tag))
	}
	return out
}

// RunBatch transmits every set-point, one component at a time in X, Y, Z
// order, waiting for each echo before sending the next frame. Failed
// exchanges are reported and skipped. It returns nil once setpoints are
// exhausted and ctx.Err() when cancelled.
func (s *Session) RunBatch(ctx context.Context, setpoints []Triple) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.release()

	s.logger.Info().
		Int("setpoints", len(setpoints)).
		Dur("pace", s.pace).
		Msg("starting batch session")

	for i, sp := range setpoints {
		for _, tag := range frame.Tags {
			if err := ctx.Err(); err != nil {
				s.logger.Info().Int("completed", i).Msg("batch session cancelled")
				return err
			}
			s.exchange(tag, sp)
		}
		if err := s.wait(ctx, s.pace); err != nil {
			s.logger.Info().Int("completed", i+1).Msg("batch session cancelled")
			return err
		}
	}

	s.logger.Info().
		Int("x", s.received.Len(frame.TagX)).
		Int("y", s.received.Len(frame.TagY)).
		Int("z", s.received.Len(frame.TagZ)).
		Msg("batch session complete")
	return nil
}

// RunReceive decodes frames without transmitting until ctx is cancelled.
func (s *Session) RunReceive(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.release()

	s.logger.Info().Msg("starting receive session")
	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info().Int("reports", s.seq).Msg("receive session cancelled")
			return err
		}

		sample, err := frame.Decode(s.reader)
		if err != nil {
			s.publish(Report{Status: statusFor(err), Err: err})
			if channelFailed(err) {
				if err := s.wait(ctx, s.retry); err != nil {
					s.logger.Info().Int("reports", s.seq).Msg("receive session cancelled")
					return err
				}
			}
			continue
		}
		s.received.Append(sample.Tag, sample.Value)
		s.publish(Report{Tag: sample.Tag, Status: StatusOK, Received: sample.Value})
	}
}

func (s *Session) exchange(tag frame.Tag, sp Triple) {
	value := sp.Value(tag)
	r := Report{Tag: tag, Sent: value, HasSent: true}

	start := time.Now()
	if _, err := s.ch.Write(frame.Encode(tag, value)); err != nil {
		r.Status = StatusInvalid
		r.Err = fmt.Errorf("write frame: %w", err)
		s.publish(r)
		return
	}
	s.sent.Append(tag, value)
	s.lastSent[tag.Index()] = value
	s.hasSent[tag.Index()] = true
	s.collector.FrameSent(tag.String())

	sample, err := frame.Decode(s.reader)
	r.RoundTrip = time.Since(start)
	if err != nil {
		r.Status = statusFor(err)
		r.Err = err
		s.publish(r)
		return
	}

	if sample.Tag != tag {
		s.logger.Debug().
			Str("sent_tag", tag.String()).
			Str("echo_tag", sample.Tag.String()).
			Msg("echo carried a different tag")
	}

	// An echo answers the latest request of its own tag, which is not the
	// current request once the peer has fallen behind.
	i := sample.Tag.Index()
	r.Tag = sample.Tag
	r.Status = StatusOK
	r.Received = sample.Value
	r.HasSent = s.hasSent[i]
	if !r.HasSent {
		r.Sent = 0
		s.received.Append(sample.Tag, sample.Value)
		s.publish(r)
		return
	}
	r.Sent = s.lastSent[i]
	r.Delta = r.Sent - r.Received

	pos := s.sent.Len(sample.Tag) - 1
	s.received.AppendAt(sample.Tag, sample.Value, pos)
	s.deltas.AppendAt(sample.Tag, r.Delta, pos)
	s.publish(r)
}

func (s *Session) publish(r Report) {
	s.seq++
	r.Seq = s.seq
	r.At = time.Now()

	if r.Status != StatusOK {
		s.logger.Debug().Err(r.Err).Str("tag", r.Label()).Str("status", r.Status.String()).Msg("sample dropped")
	}

	s.collector.Observe(r.Label(), r.Status.String(), r.RoundTrip, float64(r.Delta), r.HasSent)

	fields := map[string]interface{}{
		"seq": r.Seq,
	}
	if r.HasSent {
		fields["sent"] = float64(r.Sent)
	}
	if r.Status == StatusOK {
		fields["received"] = float64(r.Received)
		if r.HasSent {
			fields["delta"] = float64(r.Delta)
		}
	}
	s.writeAPI.WritePoint(influxdb2.NewPoint("fluxvault.sample",
		map[string]string{
			"tag":    r.Label(),
			"status": r.Status.String(),
		},
		fields, r.At))

	for _, rep := range s.reporters {
		rep.Report(r)
	}
}

func (s *Session) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Session) begin() error {
	if !s.ran.CompareAndSwap(false, true) {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) release() {
	if err := s.ch.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("error closing channel")
		return
	}
	s.logger.Debug().Msg("channel closed")
}

func statusFor(err error) Status {
	if errors.Is(err, frame.ErrStreamEnded) {
		return StatusNoData
	}
	return StatusInvalid
}

// channelFailed reports whether a decode error came from the channel itself
// rather than from a read timeout or a malformed frame.
func channelFailed(err error) bool {
	if !errors.Is(err, frame.ErrStreamEnded) && !errors.Is(err, frame.ErrTruncated) {
		return false
	}
	return !errors.Is(err, ErrReadTimeout)
}

type channelReader struct {
	r io.Reader
}

func (c channelReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n == 0 && err == nil {
		return 0, ErrReadTimeout
	}
	return n, err
}
