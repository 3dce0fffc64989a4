package steering

import (
	"github.com/derbyworks/derbycar/pkg/config"
	"github.com/derbyworks/derbycar/pkg/hw"
)

type Direction int

const (
	Neutral Direction = iota
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "neutral"
	}
}

// Controller maps steering commands onto the steering actuator.  Negative
// percentages steer left, positive right.  Every command passes the
// limit-switch interlock and the dead zone, whatever its origin.
type Controller struct {
	hw hw.Interface

	minOutputPct int
	centerPct    int

	cal *Calibration

	current   int
	direction Direction
}

func NewController(h hw.Interface, cfg config.Config, cal *Calibration) *Controller {
	return &Controller{
		hw:           h,
		minOutputPct: cfg.MinOutputPct,
		centerPct:    cfg.CalibrateCenterPct,
		cal:          cal,
	}
}

// SetCommand applies a signed percentage in [-100, 100] to the steering
// actuator and returns the realized command.  The interlock runs on every
// invocation: a command into an asserted limit switch is forced to 0, as
// is anything inside the dead zone.
func (c *Controller) SetCommand(snap hw.Snapshot, value int) int {
	if value > 100 {
		value = 100
	}
	if value < -100 {
		value = -100
	}

	if value < 0 && snap.SteeringLeftLimit {
		value = 0
	}
	if value > 0 && snap.SteeringRightLimit {
		value = 0
	}

	// Dead zone: tiny commands just make the actuator chatter.
	if value >= -c.minOutputPct && value <= c.minOutputPct {
		value = 0
	}

	c.current = value
	switch {
	case value < 0:
		c.direction = Left
	case value > 0:
		c.direction = Right
	default:
		c.direction = Neutral
	}

	if err := c.hw.SetSteeringSpeed(value); err != nil {
		// The hat retries internally; by the time an error surfaces here
		// there is nothing better to do than carry on with stale output.
		return value
	}
	return value
}

// CenterByPotentiometer is the closed-loop centering step: one comparison
// of the filtered pot reading against the calibrated center, one command.
// Callable every control cycle.
func (c *Controller) CenterByPotentiometer(snap hw.Snapshot) int {
	if !c.cal.Complete {
		return c.SetCommand(snap, 0)
	}
	reading := c.cal.Filter(snap.Potentiometer)
	switch {
	case reading > c.cal.Center+c.cal.JitterTolerance:
		// Pot reads high of center; the axle is left of center
		// (reversed scale), so steer right.
		return c.SetCommand(snap, c.centerPct)
	case reading < c.cal.Center-c.cal.JitterTolerance:
		return c.SetCommand(snap, -c.centerPct)
	default:
		return c.SetCommand(snap, 0)
	}
}

// Current returns the last realized command.
func (c *Controller) Current() int {
	return c.current
}

func (c *Controller) Direction() Direction {
	return c.direction
}

func (c *Controller) Calibration() *Calibration {
	return c.cal
}
