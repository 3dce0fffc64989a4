package brake

import (
	"context"
	"fmt"
	"time"

	"github.com/derbyworks/derbycar/pkg/config"
	"github.com/derbyworks/derbycar/pkg/hw"
)

type State int

const (
	Released State = iota
	Applying
	Applied
	Releasing
)

func (s State) String() string {
	switch s {
	case Applying:
		return "applying"
	case Applied:
		return "applied"
	case Releasing:
		return "releasing"
	default:
		return "released"
	}
}

// Controller drives the magnetically-latched brake.  Gravity back-drives
// the mechanism, so Apply/Release are per-cycle calls: keep invoking them
// until the corresponding limit switch confirms the terminal state.  The
// actuator command is always 0 once the matching limit switch asserts.
type Controller struct {
	hw hw.Interface

	applyPct   int
	releasePct int
	confirmTO  time.Duration
	loopPeriod time.Duration

	state   State
	applied bool
}

func New(h hw.Interface, cfg config.Config) *Controller {
	return &Controller{
		hw:         h,
		applyPct:   cfg.ApplyBrakePct,
		releasePct: cfg.ReleaseBrakePct,
		confirmTO:  cfg.BrakeConfirmTimeout(),
		loopPeriod: cfg.LoopPeriod(),
	}
}

// Apply drives the brake toward the applied position for one cycle.
// Returns true once the apply limit switch confirms.
func (c *Controller) Apply(snap hw.Snapshot) bool {
	if snap.BrakeApplyLimit {
		_ = c.hw.SetBrakeSpeed(0)
		c.state = Applied
		c.applied = true
		return true
	}
	c.state = Applying
	_ = c.hw.SetBrakeSpeed(c.applyPct)
	return false
}

// Release is the mirror of Apply, using the release limit switch.
func (c *Controller) Release(snap hw.Snapshot) bool {
	if snap.BrakeReleaseLimit {
		_ = c.hw.SetBrakeSpeed(0)
		c.state = Released
		c.applied = false
		return true
	}
	c.state = Releasing
	_ = c.hw.SetBrakeSpeed(c.releasePct)
	return false
}

// ApplyAndWait keeps driving until the apply limit confirms.  Blocking;
// bounded by the confirm timeout so a dead switch can't stall forever.
func (c *Controller) ApplyAndWait(ctx context.Context) error {
	return c.waitFor(ctx, c.Apply, "apply")
}

func (c *Controller) ReleaseAndWait(ctx context.Context) error {
	return c.waitFor(ctx, c.Release, "release")
}

func (c *Controller) waitFor(ctx context.Context, step func(hw.Snapshot) bool, what string) error {
	start := time.Now()
	for ctx.Err() == nil {
		if step(c.hw.ReadSnapshot()) {
			return nil
		}
		if time.Since(start) > c.confirmTO {
			_ = c.hw.SetBrakeSpeed(0)
			err := fmt.Errorf("brake %s not confirmed within %v", what, c.confirmTO)
			fmt.Println(err)
			return err
		}
		time.Sleep(c.loopPeriod)
	}
	_ = c.hw.SetBrakeSpeed(0)
	return ctx.Err()
}

// IsApplied is the bookkeeping flag other components read (telemetry and
// the like) without re-deriving from the limit switches.
func (c *Controller) IsApplied() bool {
	return c.applied
}

func (c *Controller) State() State {
	return c.state
}
