// Package serial abstracts the host-side serial port used to talk to the
// demo firmware. The abstraction keeps the bridge testable: the board only
// ever sees an io.ReadWriteCloser.
package serial

import (
	"fmt"
	"io"

	bugst "go.bug.st/serial"
)

// Port represents an open serial port.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; the firmware link runs at 9600
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the configuration matching the firmware link.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        9600,
		ReadTimeout: 100,
	}
}

// List enumerates the serial ports present on this machine.
func List() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
