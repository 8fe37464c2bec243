package record

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/norasector/fluxvault/pkg/fluxvault/device/loopback"
	"github.com/norasector/fluxvault/pkg/protocol/frame"
)

func TestRecordingDeviceCapturesInbound(t *testing.T) {
	inner := loopback.NewLoopbackDevice(nil, 10*time.Millisecond)
	path := filepath.Join(t.TempDir(), "capture.bin")

	d, err := NewRecordingDevice(inner, path)
	if err != nil {
		t.Fatalf("NewRecordingDevice: %v", err)
	}

	req := frame.Encode(frame.TagX, 42)
	if _, err := d.Write(req); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 32)
	n, err := d.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(buf[:n], req) {
		t.Fatalf("read % x", buf[:n])
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !inner.Closed() {
		t.Fatalf("inner channel not closed")
	}

	captured, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read capture: %v", err)
	}
	if !bytes.Equal(captured, req) {
		t.Fatalf("captured % x, want % x", captured, req)
	}
}
