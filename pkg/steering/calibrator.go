package steering

import (
	"context"
	"fmt"
	"time"

	"github.com/derbyworks/derbycar/pkg/config"
	"github.com/derbyworks/derbycar/pkg/hw"
)

type CalPhase int

const (
	CalIdle CalPhase = iota
	CalDrivingLeft
	CalDrivingRight
	CalReturning
	CalDone
	CalFailed
)

func (p CalPhase) String() string {
	switch p {
	case CalIdle:
		return "idle"
	case CalDrivingLeft:
		return "driving-left"
	case CalDrivingRight:
		return "driving-right"
	case CalReturning:
		return "returning"
	case CalDone:
		return "done"
	case CalFailed:
		return "failed"
	}
	return fmt.Sprintf("unknown(%d)", int(p))
}

// Calibrator sweeps the steering to each mechanical limit, records the pot
// extremes, computes the center and drives back to it.  It is a state
// machine ticked once per control cycle rather than a busy-wait, so the
// cancel checks and any future duties can interleave with it; Run is the
// blocking convenience wrapper.
//
// Each phase carries a timeout: a limit switch that never asserts (sensor
// or wiring fault) fails the calibration instead of hanging the loop.
type Calibrator struct {
	ctrl *Controller
	cfg  config.Config
	cal  *Calibration

	phase      CalPhase
	phaseStart time.Time
	err        error

	// The right limit is still pressed when the return phase starts; it
	// only counts as a failure once it has released and trips again.
	rightLimitCleared bool
}

func NewCalibrator(ctrl *Controller, cfg config.Config) *Calibrator {
	return &Calibrator{
		ctrl: ctrl,
		cfg:  cfg,
		cal:  ctrl.Calibration(),
	}
}

func (k *Calibrator) Phase() CalPhase {
	return k.phase
}

func (k *Calibrator) Err() error {
	return k.err
}

// Restart arms the state machine for a fresh sweep.  Calibration is only
// ever re-run on explicit request; a failure does not retry by itself.
func (k *Calibrator) Restart() {
	k.phase = CalIdle
	k.err = nil
}

func (k *Calibrator) enter(phase CalPhase) {
	k.phase = phase
	k.phaseStart = time.Now()
}

func (k *Calibrator) fail(snap hw.Snapshot, reason string) {
	k.err = fmt.Errorf("calibration failed while %s: %s", k.phase, reason)
	fmt.Println(k.err)
	k.cal.Complete = false
	k.ctrl.SetCommand(snap, 0)
	k.enter(CalFailed)
}

// Tick advances the calibration by one control cycle.  Non-blocking.
func (k *Calibrator) Tick(snap hw.Snapshot) {
	switch k.phase {
	case CalIdle:
		fmt.Println("Calibrating steering: sweeping to left limit")
		k.cal.Complete = false
		k.enter(CalDrivingLeft)
		k.ctrl.SetCommand(snap, k.cfg.CalibrateLeftPct)

	case CalDrivingLeft:
		if snap.SteeringLeftLimit {
			k.cal.LeftExtreme = snap.Potentiometer
			fmt.Println("Left extreme:", k.cal.LeftExtreme, "- sweeping to right limit")
			k.enter(CalDrivingRight)
			k.ctrl.SetCommand(snap, k.cfg.CalibrateRightPct)
			return
		}
		if k.timedOut() {
			k.fail(snap, "left limit switch never asserted")
			return
		}
		k.ctrl.SetCommand(snap, k.cfg.CalibrateLeftPct)

	case CalDrivingRight:
		if snap.SteeringRightLimit {
			k.cal.RightExtreme = snap.Potentiometer
			k.cal.computeCenter()
			fmt.Println("Right extreme:", k.cal.RightExtreme, "center:", k.cal.Center, "- returning to center")
			k.enter(CalReturning)
			k.rightLimitCleared = false
			// Back off the right limit; the pot reading climbs toward
			// the center as the axle swings left.
			k.ctrl.SetCommand(snap, -k.cfg.CalibrateCenterPct)
			return
		}
		if k.timedOut() {
			k.fail(snap, "right limit switch never asserted")
			return
		}
		k.ctrl.SetCommand(snap, k.cfg.CalibrateRightPct)

	case CalReturning:
		// Hitting either limit here means the pot feedback is lying:
		// the same switch tripping again or the opposite one both fail
		// the calibration.
		if !snap.SteeringRightLimit {
			k.rightLimitCleared = true
		} else if k.rightLimitCleared {
			k.fail(snap, "right limit tripped again during return to center")
			return
		}
		if snap.SteeringLeftLimit {
			k.fail(snap, "left limit tripped during return to center")
			return
		}
		if snap.Potentiometer >= k.cal.Center {
			k.ctrl.SetCommand(snap, 0)
			k.cal.Complete = true
			k.cal.lastGood = snap.Potentiometer
			fmt.Println("Calibration complete, center =", k.cal.Center)
			k.enter(CalDone)
			return
		}
		if k.timedOut() {
			k.fail(snap, "center never reached")
			return
		}
		k.ctrl.SetCommand(snap, -k.cfg.CalibrateCenterPct)

	case CalDone, CalFailed:
		// Terminal until Restart.
	}
}

func (k *Calibrator) timedOut() bool {
	return time.Since(k.phaseStart) > k.cfg.CalibratePhaseTimeout()
}

// Run performs a full calibration, monopolizing the caller until it is
// done, failed or cancelled.  This is a deliberate stall: nothing else
// runs in the control context while the axle sweeps.
func (k *Calibrator) Run(ctx context.Context, h hw.Interface) error {
	k.Restart()
	for ctx.Err() == nil {
		snap := h.ReadSnapshot()
		k.Tick(snap)
		switch k.phase {
		case CalDone:
			return nil
		case CalFailed:
			return k.err
		}
		time.Sleep(k.cfg.LoopPeriod())
	}
	k.ctrl.SetCommand(h.ReadSnapshot(), 0)
	return ctx.Err()
}
