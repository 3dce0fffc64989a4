package manualmode

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/derbyworks/derbycar/pkg/brake"
	"github.com/derbyworks/derbycar/pkg/config"
	"github.com/derbyworks/derbycar/pkg/hw"
	"github.com/derbyworks/derbycar/pkg/joystick"
	"github.com/derbyworks/derbycar/pkg/steering"
	"github.com/derbyworks/derbycar/pkg/tunable"
)

type brakeCommand int

const (
	brakeIdle brakeCommand = iota
	brakeApplying
	brakeReleasing
)

// ManualMode steers the car from the game controller while it is being
// pushed around the pits: right stick X steers (with expo so small
// inputs stay gentle), R2 winds the brake on, L2 winds it off, Triangle
// re-runs the steering calibration, and the D-pad selects and edits the
// tunables.
type ManualMode struct {
	hw    hw.Interface
	steer *steering.Controller
	brake *brake.Controller
	cal   *steering.Calibrator
	cfg   config.Config

	tunables *tunable.Tunables

	cancel         context.CancelFunc
	stopWG         sync.WaitGroup
	joystickEvents chan *joystick.Event
}

func New(h hw.Interface, steer *steering.Controller, brk *brake.Controller,
	cal *steering.Calibrator, tunables *tunable.Tunables, cfg config.Config) *ManualMode {
	return &ManualMode{
		hw:             h,
		steer:          steer,
		brake:          brk,
		cal:            cal,
		cfg:            cfg,
		tunables:       tunables,
		joystickEvents: make(chan *joystick.Event),
	}
}

func (m *ManualMode) Name() string {
	return "Manual mode"
}

func (m *ManualMode) Start(ctx context.Context) {
	m.stopWG.Add(1)
	var loopCtx context.Context
	loopCtx, m.cancel = context.WithCancel(ctx)
	go m.loop(loopCtx)
}

func (m *ManualMode) Stop() {
	m.cancel()
	m.stopWG.Wait()
}

func (m *ManualMode) OnJoystickEvent(event *joystick.Event) {
	m.joystickEvents <- event
}

func (m *ManualMode) loop(ctx context.Context) {
	defer m.stopWG.Done()

	var rightStickX int16
	braking := brakeIdle

	// The interlock and the brake limit checks live in the controllers,
	// but they only run when called, so commands are reissued every tick
	// against a fresh snapshot rather than only on joystick events.
	ticker := time.NewTicker(m.cfg.LoopPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			snap := m.hw.ReadSnapshot()
			m.steer.SetCommand(snap, 0)
			_ = m.hw.SetBrakeSpeed(0)
			return

		case <-ticker.C:
			snap := m.hw.ReadSnapshot()
			m.steer.SetCommand(snap, stickToSteering(rightStickX))
			switch braking {
			case brakeApplying:
				m.brake.Apply(snap)
			case brakeReleasing:
				m.brake.Release(snap)
			}

		case event := <-m.joystickEvents:
			switch event.Type {
			case joystick.EventTypeAxis:
				switch event.Number {
				case joystick.AxisRStickX:
					rightStickX = event.Value
				case joystick.AxisDPadX:
					if event.Value > 0 {
						m.tunables.SelectNext()
					} else if event.Value < 0 {
						m.tunables.SelectPrev()
					}
				case joystick.AxisDPadY:
					// Up is negative on the pad.
					if event.Value < 0 {
						m.tunables.Current().Add(1)
					} else if event.Value > 0 {
						m.tunables.Current().Add(-1)
					}
				}
			case joystick.EventTypeButton:
				switch event.Number {
				case joystick.ButtonR2:
					if event.Pressed() {
						fmt.Println("Applying brake")
						braking = brakeApplying
					} else {
						braking = brakeIdle
						_ = m.hw.SetBrakeSpeed(0)
					}
				case joystick.ButtonL2:
					if event.Pressed() {
						fmt.Println("Releasing brake")
						braking = brakeReleasing
					} else {
						braking = brakeIdle
						_ = m.hw.SetBrakeSpeed(0)
					}
				case joystick.ButtonTriangle:
					if event.Pressed() {
						// Deliberately monopolizes the loop: nothing else
						// should move while the axle sweeps.
						if err := m.cal.Run(ctx, m.hw); err != nil {
							fmt.Println("Recalibration failed:", err)
						}
					}
				}
			}
		}
	}
}

// stickToSteering maps the raw stick range onto a signed percentage with
// expo, so the middle of the stick travel is fine control and the edges
// still reach full lock.
func stickToSteering(stick int16) int {
	const expo = 1.6
	v := applyExpo(float64(stick)/32767.0, expo) * 100
	if v > 100 {
		v = 100
	}
	if v < -100 {
		v = -100
	}
	return int(v)
}

func applyExpo(value float64, expo float64) float64 {
	absVal := math.Abs(value)
	absExpo := math.Pow(absVal, expo)
	return math.Copysign(absExpo, value)
}
