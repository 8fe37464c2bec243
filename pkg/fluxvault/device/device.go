package device

import "io"

// Channel is an ordered, reliable byte stream to the peer. Read may return
// (0, nil) when no byte arrived before the channel's read timeout.
type Channel interface {
	io.Reader
	io.Writer
	io.Closer
	Name() string
}
