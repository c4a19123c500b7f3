// Package logserial backs the "logging sink" external collaborator
// (spec.md §6's log(fmt, args)) with a physical transport: a board's UART
// debug console, opened through github.com/daedaluz/goserial.
package logserial

import (
	"bufio"
	"fmt"

	"github.com/daedaluz/goserial"
)

// Sink implements sdlog.Logger by writing one formatted, newline-terminated
// line per call to a serial port.
type Sink struct {
	port *serial.Port
}

// Open opens path (e.g. "/dev/ttyUSB0") at the given baud rate and returns a
// Sink ready to use as an sdlog.Logger.
func Open(path string, baud uint32) (*Sink, error) {
	opts := serial.NewOptions()
	port, err := serial.Open(path, opts)
	if err != nil {
		return nil, err
	}
	attrs, err := port.GetAttr()
	if err != nil {
		port.Close()
		return nil, err
	}
	attrs.MakeRaw()
	attrs.SetSpeed(serial.CFlag(baud))
	if err := port.SetAttr(serial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, err
	}
	return &Sink{port: port}, nil
}

// Printf formats and writes one line, satisfying sdlog.Logger.
func (s *Sink) Printf(format string, args ...any) {
	fmt.Fprintf(lineWriter{s.port}, format+"\n", args...)
}

// Close releases the underlying serial port.
func (s *Sink) Close() error { return s.port.Close() }

// lineWriter adapts serial.Port's Write to io.Writer for fmt.Fprintf.
type lineWriter struct{ port *serial.Port }

func (w lineWriter) Write(p []byte) (int, error) { return w.port.Write(p) }

// Tail reads newline-delimited log lines from path as consoletail does,
// calling fn for each line until the port errors or is closed.
func Tail(path string, baud uint32, fn func(line string)) error {
	opts := serial.NewOptions()
	port, err := serial.Open(path, opts)
	if err != nil {
		return err
	}
	defer port.Close()

	attrs, err := port.GetAttr()
	if err != nil {
		return err
	}
	attrs.MakeRaw()
	attrs.SetSpeed(serial.CFlag(baud))
	if err := port.SetAttr(serial.TCSANOW, attrs); err != nil {
		return err
	}

	scanner := bufio.NewScanner(readerFunc(port.Read))
	for scanner.Scan() {
		fn(scanner.Text())
	}
	return scanner.Err()
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
