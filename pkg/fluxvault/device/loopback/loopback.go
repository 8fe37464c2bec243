package loopback

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/norasector/fluxvault/pkg/protocol/frame"
)

// Peer computes the bytes the simulated device sends back for one write.
// Returning nil sends nothing.
type Peer func(request []byte) []byte

// Echo returns every request unchanged.
func Echo(request []byte) []byte {
	out := make([]byte, len(request))
	copy(out, request)
	return out
}

// Offset answers each valid frame with its value shifted by delta, the way a
// magnetometer with a fixed bias would report a commanded field. Anything
// that does not decode is echoed unchanged.
func Offset(delta float32) Peer {
	return func(request []byte) []byte {
		s, err := frame.DecodeBytes(request)
		if err != nil {
			return Echo(request)
		}
		return frame.Encode(s.Tag, s.Value+delta)
	}
}

// Device is an in-memory channel backed by a simulated peer.
type Device struct {
	mu          sync.Mutex
	buf         bytes.Buffer
	peer        Peer
	readTimeout time.Duration
	notify      chan struct{}
	closed      bool
	writes      int
}

func NewLoopbackDevice(peer Peer, readTimeout time.Duration) *Device {
	if peer == nil {
		peer = Echo
	}
	return &Device{
		peer:        peer,
		readTimeout: readTimeout,
		notify:      make(chan struct{}, 1),
	}
}

// Inject queues bytes as if the peer had sent them unprompted.
func (d *Device) Inject(b []byte) {
	d.mu.Lock()
	d.buf.Write(b)
	d.mu.Unlock()
	d.signal()
}

// Read blocks up to the read timeout for data and returns (0, nil) if none
// arrived.
func (d *Device) Read(p []byte) (int, error) {
	var timer *time.Timer
	for {
		d.mu.Lock()
		if d.buf.Len() > 0 {
			n, _ := d.buf.Read(p)
			d.mu.Unlock()
			return n, nil
		}
		if d.closed {
			d.mu.Unlock()
			return 0, io.EOF
		}
		d.mu.Unlock()

		if d.readTimeout <= 0 {
			return 0, nil
		}
		if timer == nil {
			timer = time.NewTimer(d.readTimeout)
			defer timer.Stop()
		}
		select {
		case <-d.notify:
		case <-timer.C:
			return 0, nil
		}
	}
}

func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	d.writes++
	resp := d.peer(p)
	if len(resp) > 0 {
		d.buf.Write(resp)
	}
	d.mu.Unlock()
	if len(resp) > 0 {
		d.signal()
	}
	return len(p), nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()
	return nil
}

// Closed reports whether Close has been called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Writes reports how many Write calls the peer has seen.
func (d *Device) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

func (d *Device) Name() string {
	return "loopback"
}

func (d *Device) signal() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}
