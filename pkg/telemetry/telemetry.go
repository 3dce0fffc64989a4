package telemetry

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/derbyworks/derbycar/pkg/config"
)

// Wire contract with the companion computer: it sends the trigger line,
// we answer with the header line followed by the fields in fixed order,
// one signed 32-bit value per line.  Order and count must not change
// without agreeing a new header with the companion side.
const (
	Header  = "SBDC"
	Trigger = "send"
)

// Snapshot is one frame of car state, sampled by the source callback at
// the moment the trigger arrives.
type Snapshot struct {
	SteeringCommand     int32
	BrakeApplied        bool
	BrakeReleasing      bool
	BrakeApplying       bool
	LeftHallCount       int32
	RightHallCount      int32
	LeftSteeringLimit   bool
	RightSteeringLimit  bool
	Potentiometer       int32
	AutonomousExecuting bool
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// Write encodes one frame.  The whole frame is buffered and written in
// one call so a slow reader never sees a torn frame.
func Write(w io.Writer, s Snapshot) error {
	fields := []int32{
		s.SteeringCommand,
		b2i(s.BrakeApplied),
		b2i(s.BrakeReleasing),
		b2i(s.BrakeApplying),
		s.LeftHallCount,
		s.RightHallCount,
		b2i(s.LeftSteeringLimit),
		b2i(s.RightSteeringLimit),
		s.Potentiometer,
		b2i(s.AutonomousExecuting),
	}
	var buf bytes.Buffer
	fmt.Fprintln(&buf, Header)
	for _, f := range fields {
		fmt.Fprintf(&buf, "%d\n", f)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Server answers telemetry requests on the companion serial port.
type Server struct {
	port   string
	baud   int
	source func() Snapshot
}

func NewServer(cfg config.Config, source func() Snapshot) *Server {
	return &Server{
		port:   cfg.TelemetryPort,
		baud:   cfg.TelemetryBaud,
		source: source,
	}
}

// Serve runs until the context is cancelled, reopening the port after
// any error.
func (s *Server) Serve(ctx context.Context) {
	for ctx.Err() == nil {
		err := s.openAndLoop(ctx)
		if ctx.Err() != nil {
			return
		}
		fmt.Println("Telemetry loop stopped; will retry:", err)
		time.Sleep(time.Second)
	}
}

func (s *Server) openAndLoop(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: s.baud,
	}
	port, err := serial.Open(s.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}
	defer port.Close()

	// The scanner blocks in a read; closing the port from here is what
	// unblocks it on shutdown.
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	return s.handle(port, port)
}

// handle runs the trigger/answer exchange over any byte stream; split
// from the serial plumbing so it is testable on buffers.
func (s *Server) handle(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != Trigger {
			continue
		}
		if err := Write(w, s.source()); err != nil {
			return fmt.Errorf("failed to write telemetry frame: %w", err)
		}
	}
	return scanner.Err()
}
