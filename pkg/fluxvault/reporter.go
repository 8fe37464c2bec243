package fluxvault

import (
	"github.com/rs/zerolog"
)

// LogReporter writes one log line per outcome.
type LogReporter struct {
	logger zerolog.Logger
}

func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (l *LogReporter) Report(r Report) {
	switch r.Status {
	case StatusOK:
		ev := l.logger.Info().
			Int("seq", r.Seq).
			Str("tag", r.Label()).
			Float32("received", r.Received)
		if r.HasSent {
			ev = ev.Float32("sent", r.Sent).
				Float32("delta", r.Delta).
				Dur("rtt", r.RoundTrip)
		}
		ev.Msg("sample")
	case StatusNoData:
		l.logger.Warn().Int("seq", r.Seq).Str("tag", r.Label()).Msg("no data")
	default:
		l.logger.Warn().Int("seq", r.Seq).Str("tag", r.Label()).Err(r.Err).Msg("invalid or incomplete data")
	}
}
