package hw

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/periph/conn/gpio"

	"github.com/derbyworks/derbycar/pkg/config"
	"github.com/derbyworks/derbycar/pkg/gpiohw"
	"github.com/derbyworks/derbycar/pkg/motor"
	"github.com/derbyworks/derbycar/pkg/odometry"
	"github.com/derbyworks/derbycar/pkg/potentiometer"
	"github.com/derbyworks/derbycar/pkg/sound"
)

type Hardware struct {
	hat motor.Interface
	pot potentiometer.Interface
	odo *odometry.Odometer

	steeringLeftLimit  gpio.PinIO
	steeringRightLimit gpio.PinIO
	brakeApplyLimit    gpio.PinIO
	brakeReleaseLimit  gpio.PinIO
	autonomousSwitch   gpio.PinIO
	leds               []gpio.PinIO

	lastPot int

	soundsToPlay chan string
}

var _ Interface = (*Hardware)(nil)

// New opens every device on the car.  The hall-edge goroutines run until
// ctx is cancelled.
func New(ctx context.Context, cfg config.Config) (*Hardware, error) {
	if err := gpiohw.Init(); err != nil {
		return nil, err
	}

	hat, err := motor.New(cfg.I2CDevice, cfg.DriveHatAddr, cfg.HatImage, cfg.FlashHat)
	if err != nil {
		return nil, fmt.Errorf("failed to open derby hat: %w", err)
	}

	pot, err := potentiometer.New(cfg.I2CDevice, cfg.PotADCAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to open pot ADC: %w", err)
	}

	h := &Hardware{
		hat:          hat,
		pot:          pot,
		odo:          odometry.New(cfg.MagnetsPerWheel, cfg.WheelCircumferenceM),
		soundsToPlay: sound.InitSound(),
	}

	inputs := []struct {
		name string
		pin  *gpio.PinIO
	}{
		{cfg.SteeringLeftLimitPin, &h.steeringLeftLimit},
		{cfg.SteeringRightLimitPin, &h.steeringRightLimit},
		{cfg.BrakeApplyLimitPin, &h.brakeApplyLimit},
		{cfg.BrakeReleaseLimitPin, &h.brakeReleaseLimit},
		{cfg.AutonomousSwitchPin, &h.autonomousSwitch},
	}
	for _, in := range inputs {
		p, err := gpiohw.InputPin(in.name)
		if err != nil {
			return nil, err
		}
		*in.pin = p
	}

	for _, name := range cfg.LEDPins {
		p, err := gpiohw.OutputPin(name)
		if err != nil {
			return nil, err
		}
		h.leds = append(h.leds, p)
	}

	// Wheel pulses are the only edge-driven inputs; the limit switches
	// bounce too much to be edge-triggered, so they are polled.
	if err := gpiohw.WatchEdges(ctx, cfg.LeftHallPin, h.odo.CountLeftPulse); err != nil {
		return nil, err
	}
	if err := gpiohw.WatchEdges(ctx, cfg.RightHallPin, h.odo.CountRightPulse); err != nil {
		return nil, err
	}

	return h, nil
}

func (h *Hardware) ReadSnapshot() Snapshot {
	pot, err := h.pot.Read()
	if err != nil {
		fmt.Println("Failed to read potentiometer:", err)
		pot = h.lastPot
	}
	h.lastPot = pot
	return Snapshot{
		SteeringLeftLimit:  gpiohw.Asserted(h.steeringLeftLimit),
		SteeringRightLimit: gpiohw.Asserted(h.steeringRightLimit),
		BrakeApplyLimit:    gpiohw.Asserted(h.brakeApplyLimit),
		BrakeReleaseLimit:  gpiohw.Asserted(h.brakeReleaseLimit),
		AutonomousSwitch:   gpiohw.Asserted(h.autonomousSwitch),
		Potentiometer:      pot,
	}
}

func (h *Hardware) SetSteeringSpeed(pct int) error {
	return h.hat.SetSpeed(motor.Steering, pct)
}

func (h *Hardware) SetBrakeSpeed(pct int) error {
	return h.hat.SetSpeed(motor.Brake, pct)
}

func (h *Hardware) Odometer() *odometry.Odometer {
	return h.odo
}

func (h *Hardware) SetLED(n int, on bool) {
	if n < 0 || n >= len(h.leds) {
		return
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	_ = h.leds[n].Out(level)
}

func (h *Hardware) PlaySound(path string) {
	defer func() {
		recover() // Don't die if the channel is already closed.
	}()
	select {
	case h.soundsToPlay <- path:
		return
	case <-time.After(10 * time.Millisecond):
		fmt.Println("Timed out trying to play sound: ", path)
	}
}

func (h *Hardware) Shutdown() {
	_ = h.SetSteeringSpeed(0)
	_ = h.SetBrakeSpeed(0)
	for i := range h.leds {
		h.SetLED(i, false)
	}
	close(h.soundsToPlay)
}
