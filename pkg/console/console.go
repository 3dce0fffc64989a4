package console

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/derbyworks/derbycar/pkg/datalog"
	"github.com/derbyworks/derbycar/pkg/nvram"
	"github.com/derbyworks/derbycar/pkg/telemetry"
)

const help = `d  display current values
l  dump the in-RAM log
c  clear the in-RAM log
t  send a telemetry frame here
n  dump non-volatile storage
e  erase non-volatile storage
r  restore the log from storage
w  write the log to storage
?  this help`

// Console is the pit-lane debug interface: single-character commands on
// a line, answers on the writer.  It only ever reads car state through
// the snapshot callback and the log, so it is safe to run beside the
// control loop.
type Console struct {
	log    *datalog.Log
	store  nvram.Store
	source func() telemetry.Snapshot
	out    io.Writer
}

func New(log *datalog.Log, store nvram.Store, source func() telemetry.Snapshot, out io.Writer) *Console {
	return &Console{
		log:    log,
		store:  store,
		source: source,
		out:    out,
	}
}

// Run dispatches commands until the reader ends or the context is
// cancelled.
func (c *Console) Run(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		c.dispatch(line[0])
	}
}

func (c *Console) dispatch(cmd byte) {
	switch cmd {
	case 'd':
		c.displayValues()
	case 'l':
		c.log.Dump(c.out)
	case 'c':
		_ = c.log.Clear(datalog.Volatile, nil)
		fmt.Fprintln(c.out, "log cleared")
	case 't':
		if err := telemetry.Write(c.out, c.source()); err != nil {
			fmt.Fprintln(c.out, "telemetry write failed:", err)
		}
	case 'n':
		c.dumpStore()
	case 'e':
		if !c.haveStore() {
			return
		}
		if err := c.log.Clear(datalog.NonVolatile, c.store); err != nil {
			fmt.Fprintln(c.out, "erase failed:", err)
			return
		}
		fmt.Fprintln(c.out, "storage erased")
	case 'r':
		if !c.haveStore() {
			return
		}
		ok, err := c.log.Restore(c.store)
		if err != nil {
			fmt.Fprintln(c.out, "restore failed:", err)
			return
		}
		fmt.Fprintln(c.out, "restored, valid record:", ok)
	case 'w':
		if !c.haveStore() {
			return
		}
		if err := c.log.Flush(c.store); err != nil {
			fmt.Fprintln(c.out, "write failed:", err)
			return
		}
		fmt.Fprintln(c.out, "log written to storage")
	case '?':
		fmt.Fprintln(c.out, help)
	default:
		fmt.Fprintf(c.out, "unknown command %q, ? for help\n", cmd)
	}
}

func (c *Console) haveStore() bool {
	if c.store == nil {
		fmt.Fprintln(c.out, "no non-volatile store fitted")
		return false
	}
	return true
}

func (c *Console) displayValues() {
	s := c.source()
	fmt.Fprintf(c.out, "steering command: %d\n", s.SteeringCommand)
	fmt.Fprintf(c.out, "brake: applied=%v releasing=%v applying=%v\n",
		s.BrakeApplied, s.BrakeReleasing, s.BrakeApplying)
	fmt.Fprintf(c.out, "hall counts: left=%d right=%d\n", s.LeftHallCount, s.RightHallCount)
	fmt.Fprintf(c.out, "steering limits: left=%v right=%v\n",
		s.LeftSteeringLimit, s.RightSteeringLimit)
	fmt.Fprintf(c.out, "potentiometer: %d\n", s.Potentiometer)
	fmt.Fprintf(c.out, "autonomous executing: %v\n", s.AutonomousExecuting)
	fmt.Fprintf(c.out, "log: %d/%d entries, overflowed=%v\n",
		c.log.Index(), c.log.Capacity(), c.log.Overflowed())
}

func (c *Console) dumpStore() {
	if !c.haveStore() {
		return
	}
	const rowLen = 16
	for row := 0; row < c.store.Size(); row += rowLen {
		fmt.Fprintf(c.out, "%04x:", row)
		for off := row; off < row+rowLen && off < c.store.Size(); off++ {
			b, err := c.store.ReadByte(off)
			if err != nil {
				fmt.Fprintln(c.out, " read failed:", err)
				return
			}
			fmt.Fprintf(c.out, " %02x", b)
		}
		fmt.Fprintln(c.out)
	}
}
