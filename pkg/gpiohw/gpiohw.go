package gpiohw

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// Init makes sure periph is initialized.  Safe to call more than once.
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}
	return nil
}

// InputPin configures the named pin as a pulled-up input.  The switches are
// wired active low (resistor from voltage to signal).
func InputPin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no such pin: %s", name)
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to configure %s as input: %w", name, err)
	}
	return p, nil
}

// Asserted reads a switch pin; active low.
func Asserted(p gpio.PinIO) bool {
	return p.Read() == gpio.Low
}

// OutputPin configures the named pin as an output, initially off.
func OutputPin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no such pin: %s", name)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("failed to configure %s as output: %w", name, err)
	}
	return p, nil
}

// WatchEdges runs a goroutine that calls onEdge once per falling edge on
// the named pin.  This is the car's "interrupt context": onEdge must be
// safe to call concurrently with the main loop.
func WatchEdges(ctx context.Context, name string, onEdge func()) error {
	p := gpioreg.ByName(name)
	if p == nil {
		return fmt.Errorf("no such pin: %s", name)
	}
	if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return fmt.Errorf("failed to configure %s for edges: %w", name, err)
	}
	go func() {
		for ctx.Err() == nil {
			// Time out periodically so the goroutine notices shutdown.
			if p.WaitForEdge(time.Second) {
				onEdge()
			}
		}
	}()
	return nil
}
