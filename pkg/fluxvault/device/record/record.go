package record

import (
	"fmt"
	"os"

	"github.com/norasector/fluxvault/pkg/fluxvault/device"
)

// RecordingDevice copies every inbound byte of the wrapped channel to a
// capture file that the file device can play back.
type RecordingDevice struct {
	inner          device.Channel
	recordLocation string
	outputFile     *os.File
}

func NewRecordingDevice(inner device.Channel, recordLocation string) (*RecordingDevice, error) {
	outFile, err := os.Create(recordLocation)
	if err != nil {
		return nil, err
	}

	return &RecordingDevice{
		inner:          inner,
		outputFile:     outFile,
		recordLocation: recordLocation,
	}, nil
}

func (r *RecordingDevice) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 0 {
		if _, werr := r.outputFile.Write(p[:n]); werr != nil {
			return n, fmt.Errorf("record inbound bytes: %w", werr)
		}
	}
	return n, err
}

func (r *RecordingDevice) Write(p []byte) (int, error) {
	return r.inner.Write(p)
}

func (r *RecordingDevice) Close() error {
	defer r.outputFile.Close()
	return r.inner.Close()
}

func (r *RecordingDevice) Name() string {
	return r.inner.Name() + "+record:" + r.recordLocation
}
