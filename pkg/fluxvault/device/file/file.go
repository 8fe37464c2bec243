package file

import (
	"errors"
	"io"
	"os"
	"time"
)

// FileDevice plays back a captured inbound byte stream. Writes are
// discarded. Once the capture is exhausted every read behaves like a read
// timeout.
type FileDevice struct {
	readFile    *os.File
	readSize    int
	timeBetween time.Duration
	written     int64
	name        string
}

func NewFileDevice(file string, readSize int, timeBetween time.Duration) (*FileDevice, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	if readSize <= 0 {
		readSize = 1
	}

	return &FileDevice{
		readFile:    f,
		readSize:    readSize,
		timeBetween: timeBetween,
		name:        "file:" + file,
	}, nil
}

func (f *FileDevice) Read(p []byte) (int, error) {
	if f.timeBetween > 0 {
		time.Sleep(f.timeBetween)
	}
	if len(p) > f.readSize {
		p = p[:f.readSize]
	}
	n, err := f.readFile.Read(p)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

func (f *FileDevice) Write(p []byte) (int, error) {
	f.written += int64(len(p))
	return len(p), nil
}

// Written reports how many bytes were discarded by Write.
func (f *FileDevice) Written() int64 {
	return f.written
}

func (f *FileDevice) Close() error {
	return f.readFile.Close()
}

func (f *FileDevice) Name() string {
	return f.name
}
