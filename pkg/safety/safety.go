package safety

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/derbyworks/derbycar/pkg/brake"
	"github.com/derbyworks/derbycar/pkg/config"
	"github.com/derbyworks/derbycar/pkg/hw"
	"github.com/derbyworks/derbycar/pkg/steering"
)

const strobePeriod = 250 * time.Millisecond

// Monitor is the fail-stop path.  The car can coast downhill under
// gravity, so an unrecoverable fault never tries to limp on: it brakes,
// neutralizes the steering and strobes the LEDs forever.  Recovery is a
// power cycle.
type Monitor struct {
	hw    hw.Interface
	brake *brake.Controller
	steer *steering.Controller
	cfg   config.Config

	// halt is the terminal loop; tests swap it so Fatal can return.
	halt func()

	tripped int32
}

func New(h hw.Interface, brk *brake.Controller, steer *steering.Controller, cfg config.Config) *Monitor {
	m := &Monitor{
		hw:    h,
		brake: brk,
		steer: steer,
		cfg:   cfg,
	}
	m.halt = m.strobeForever
	return m
}

func (m *Monitor) Tripped() bool {
	return atomic.LoadInt32(&m.tripped) == 1
}

// Fatal reports an unrecoverable condition, forces the safe state and
// does not return (under the default halt hook).
func (m *Monitor) Fatal(reason string) {
	atomic.StoreInt32(&m.tripped, 1)
	fmt.Println("FATAL:", reason)
	m.EnterSafeState()
	m.halt()
}

// EnterSafeState commands the actuators into their safe configuration.
// The brake is commanded before the steering: a car that is stopping
// matters more than a car that is pointing straight.
func (m *Monitor) EnterSafeState() {
	snap := m.hw.ReadSnapshot()
	m.brake.Apply(snap)
	m.steer.SetCommand(snap, 0)
}

// strobeForever re-asserts the safe state and toggles the LEDs until the
// power goes away.  Re-asserting matters: gravity back-drives the brake,
// so a one-shot apply could creep back off.
func (m *Monitor) strobeForever() {
	on := true
	for {
		m.EnterSafeState()
		for i := range m.cfg.LEDPins {
			m.hw.SetLED(i, on)
		}
		on = !on
		time.Sleep(strobePeriod)
	}
}
