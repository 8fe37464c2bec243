package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
}

type SerialDevice struct {
	port *serial.Port
	name string
}

func NewSerialDevice(cfg Config) (*SerialDevice, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("must specify serial port")
	}
	if cfg.Baud <= 0 {
		return nil, fmt.Errorf("invalid baud rate %d", cfg.Baud)
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}

	// Drop anything the peer sent before we were listening.
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("flush serial port %s: %w", cfg.Port, err)
	}

	return &SerialDevice{port: port, name: "serial:" + cfg.Port}, nil
}

// Read returns (0, nil) when the read timeout expires without data.
func (s *SerialDevice) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

func (s *SerialDevice) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialDevice) Close() error {
	return s.port.Close()
}

func (s *SerialDevice) Name() string {
	return s.name
}
