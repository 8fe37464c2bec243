package loopback

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/norasector/fluxvault/pkg/protocol/frame"
)

func TestEchoRoundTrip(t *testing.T) {
	d := NewLoopbackDevice(nil, 10*time.Millisecond)
	req := frame.Encode(frame.TagY, 2.5)
	if _, err := d.Write(req); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 16)
	n, err := d.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(buf[:n], req) {
		t.Fatalf("read % x, want % x", buf[:n], req)
	}
}

func TestReadTimesOutWithoutData(t *testing.T) {
	d := NewLoopbackDevice(nil, 5*time.Millisecond)
	start := time.Now()
	n, err := d.Read(make([]byte, 4))
	if n != 0 || err != nil {
		t.Fatalf("Read() = %d, %v; want 0, nil", n, err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("read returned before timeout")
	}
}

func TestReadWakesOnInject(t *testing.T) {
	d := NewLoopbackDevice(nil, time.Second)
	go func() {
		time.Sleep(5 * time.Millisecond)
		d.Inject([]byte{0x01, 0x02})
	}()
	buf := make([]byte, 4)
	n, err := d.Read(buf)
	if err != nil || n != 2 {
		t.Fatalf("Read() = %d, %v", n, err)
	}
}

func TestOffsetPeer(t *testing.T) {
	d := NewLoopbackDevice(Offset(0.5), 10*time.Millisecond)
	if _, err := d.Write(frame.Encode(frame.TagZ, 1)); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := frame.Decode(readerFor(d))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Tag != frame.TagZ || s.Value != 1.5 {
		t.Fatalf("sample = %+v", s)
	}
}

func TestDroppingPeer(t *testing.T) {
	d := NewLoopbackDevice(func([]byte) []byte { return nil }, 5*time.Millisecond)
	if _, err := d.Write(frame.Encode(frame.TagX, 1)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if n, _ := d.Read(make([]byte, 8)); n != 0 {
		t.Fatalf("expected no response, got %d bytes", n)
	}
	if d.Writes() != 1 {
		t.Fatalf("writes = %d", d.Writes())
	}
}

func TestClose(t *testing.T) {
	d := NewLoopbackDevice(nil, time.Second)
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !d.Closed() {
		t.Fatalf("expected closed")
	}
	if _, err := d.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Fatalf("read after close = %v, want EOF", err)
	}
	if _, err := d.Write([]byte{1}); err == nil {
		t.Fatalf("write after close should fail")
	}
}

type byteReader struct {
	r io.Reader
}

func (b byteReader) ReadByte() (byte, error) {
	var one [1]byte
	n, err := b.r.Read(one[:])
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	return one[0], nil
}

func readerFor(r io.Reader) io.ByteReader {
	return byteReader{r: r}
}
