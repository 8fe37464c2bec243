package util

import (
	"sync"

	"github.com/influxdata/influxdb-client-go/api/write"
)

// NopWriteAPI discards every point. It stands in for InfluxDB when no
// server is configured.
type NopWriteAPI struct{}

func (n *NopWriteAPI) WriteRecord(line string)       {}
func (n *NopWriteAPI) WritePoint(point *write.Point) {}
func (n *NopWriteAPI) Flush()                        {}
func (n *NopWriteAPI) Close()                        {}
func (n *NopWriteAPI) Errors() <-chan error          { return nil }

// RecordingWriteAPI keeps points in memory so tests can inspect what a
// component wrote.
type RecordingWriteAPI struct {
	mu      sync.Mutex
	points  []*write.Point
	records []string
}

func (r *RecordingWriteAPI) WriteRecord(line string) {
	r.mu.Lock()
	r.records = append(r.records, line)
	r.mu.Unlock()
}

func (r *RecordingWriteAPI) WritePoint(point *write.Point) {
	r.mu.Lock()
	r.points = append(r.points, point)
	r.mu.Unlock()
}

func (r *RecordingWriteAPI) Flush()               {}
func (r *RecordingWriteAPI) Close()               {}
func (r *RecordingWriteAPI) Errors() <-chan error { return nil }

func (r *RecordingWriteAPI) Points() []*write.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*write.Point, len(r.points))
	copy(out, r.points)
	return out
}
