package autodrive

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/derbyworks/derbycar/pkg/brake"
	"github.com/derbyworks/derbycar/pkg/config"
	"github.com/derbyworks/derbycar/pkg/datalog"
	"github.com/derbyworks/derbycar/pkg/hw"
	"github.com/derbyworks/derbycar/pkg/nvram"
	"github.com/derbyworks/derbycar/pkg/steering"
	"github.com/derbyworks/derbycar/pkg/tunable"
)

type Phase int32

const (
	Idle Phase = iota
	WaitingToLaunch
	Executing
	Exiting
)

func (p Phase) String() string {
	switch p {
	case WaitingToLaunch:
		return "waiting-to-launch"
	case Executing:
		return "executing"
	case Exiting:
		return "exiting"
	default:
		return "idle"
	}
}

// Supervisor runs the autonomous descent: wait for the wheels to start
// turning, then keep the car straight using only the relative hall counts
// until the run times out or the operator flips the switch.  The phase
// sequence is strictly forward within one run.
type Supervisor struct {
	hw    hw.Interface
	steer *steering.Controller
	brake *brake.Controller
	log   *datalog.Log
	store nvram.Store
	cfg   config.Config

	tunables     tunable.Tunables
	driftBand    *tunable.Tunable
	launchThresh *tunable.Tunable

	phase     int32
	executing int32
}

func New(h hw.Interface, steer *steering.Controller, brk *brake.Controller,
	log *datalog.Log, store nvram.Store, cfg config.Config) *Supervisor {
	s := &Supervisor{
		hw:    h,
		steer: steer,
		brake: brk,
		log:   log,
		store: store,
		cfg:   cfg,
	}
	s.driftBand = s.tunables.Create("Drift band (pulses)", cfg.HallCountMaxDiff)
	s.launchThresh = s.tunables.Create("Launch pulses", cfg.LaunchCountThresh)
	return s
}

// Tunables exposes the live-adjustable knobs for the D-pad editor.
func (s *Supervisor) Tunables() *tunable.Tunables {
	return &s.tunables
}

func (s *Supervisor) Phase() Phase {
	return Phase(atomic.LoadInt32(&s.phase))
}

func (s *Supervisor) setPhase(p Phase) {
	atomic.StoreInt32(&s.phase, int32(p))
	fmt.Println("Autonomous phase:", p)
}

// IsExecuting reports whether an autonomous run is in progress; read by
// the telemetry snapshot from outside the control context.
func (s *Supervisor) IsExecuting() bool {
	return atomic.LoadInt32(&s.executing) == 1
}

// Run drives one complete autonomous run and returns when it is over.
// It owns the control context for the duration; cancellation is
// cooperative, checked once per loop, so worst-case latency is one cycle.
func (s *Supervisor) Run(ctx context.Context) {
	atomic.StoreInt32(&s.executing, 1)
	defer atomic.StoreInt32(&s.executing, 0)
	defer s.setPhase(Idle)

	s.hw.PlaySound(s.cfg.ReadySound)
	if s.waitForLaunch(ctx) {
		s.execute(ctx)
	}
	s.exit(ctx)
}

// waitForLaunch polls the hall counters until one wheel has turned enough
// to prove the car is rolling.  Returns false if the run was cancelled
// before launch.
func (s *Supervisor) waitForLaunch(ctx context.Context) bool {
	s.setPhase(WaitingToLaunch)
	odo := s.hw.Odometer()
	odo.Reset()

	for ctx.Err() == nil {
		snap := s.hw.ReadSnapshot()
		if !snap.AutonomousSwitch {
			fmt.Println("Autonomous switch dropped before launch")
			return false
		}
		left, right := odo.Counts()
		thresh := uint32(s.launchThresh.Get())
		if left >= thresh || right >= thresh {
			fmt.Println("Launch detected: counts", left, right)
			return true
		}
		time.Sleep(s.cfg.LoopPeriod())
	}
	return false
}

func (s *Supervisor) execute(ctx context.Context) {
	s.setPhase(Executing)

	// Counters are exactly zero at the launch transition; everything the
	// drift rule sees is travel since launch.
	odo := s.hw.Odometer()
	odo.Reset()
	start := time.Now()
	s.hw.PlaySound(s.cfg.LaunchSound)

	for ctx.Err() == nil {
		snap := s.hw.ReadSnapshot()
		if !snap.AutonomousSwitch {
			fmt.Println("Autonomous run cancelled by switch")
			break
		}

		// The brake is back-driven by gravity; releasing is a per-cycle
		// command, not a one-shot.
		s.brake.Release(snap)

		s.correctDrift(snap)

		s.log.Append(datalog.Entry{
			TimestampMs: uint32(time.Since(start).Milliseconds()),
			LeftDistMM:  int32(odo.DistanceLeftM() * 1000),
			RightDistMM: int32(odo.DistanceRightM() * 1000),
			Pot:         int32(snap.Potentiometer),
		})

		if time.Since(start) > s.cfg.MaxRunLength() {
			fmt.Println("Autonomous run reached max length")
			break
		}
		time.Sleep(s.cfg.LoopPeriod())
	}
}

// correctDrift compares the wheel counters once per cycle.  A wheel that
// is ahead by at least the drift band has travelled farther, meaning the
// car is arcing the other way; steer back toward it.  Ties inside the
// band always fall through to potentiometer centering, never to a turn,
// so near-equal counts don't oscillate the axle.
func (s *Supervisor) correctDrift(snap hw.Snapshot) {
	left, right := s.hw.Odometer().Counts()
	band := uint32(s.driftBand.Get())
	switch {
	case left >= right+band:
		// Left wheel ahead: drifting right, turn left.
		s.steer.SetCommand(snap, s.cfg.AutoTurnLeftPct)
	case right >= left+band:
		s.steer.SetCommand(snap, s.cfg.AutoTurnRightPct)
	default:
		s.steer.CenterByPotentiometer(snap)
	}
}

// exit stops the car: brake on, steering neutral, counters cleared, log
// flushed if configured.  It then holds until the operator releases the
// autonomous switch so the run can't relaunch without cycling it.
func (s *Supervisor) exit(ctx context.Context) {
	s.setPhase(Exiting)

	if err := s.brake.ApplyAndWait(ctx); err != nil {
		fmt.Println("Failed to confirm brake on exit:", err)
	}
	s.steer.SetCommand(s.hw.ReadSnapshot(), 0)
	s.hw.Odometer().Reset()

	if s.cfg.FlushLogOnExit && s.store != nil {
		if err := s.log.Flush(s.store); err != nil {
			fmt.Println("Failed to flush log:", err)
		}
	}

	s.hw.PlaySound(s.cfg.StopSound)
	for ctx.Err() == nil && s.hw.ReadSnapshot().AutonomousSwitch {
		time.Sleep(s.cfg.LoopPeriod())
	}
}
