package main

import (
	"fmt"
	"time"

	"context"

	"log"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/derbyworks/derbycar/pkg/autodrive"
	"github.com/derbyworks/derbycar/pkg/brake"
	"github.com/derbyworks/derbycar/pkg/config"
	"github.com/derbyworks/derbycar/pkg/console"
	"github.com/derbyworks/derbycar/pkg/datalog"
	"github.com/derbyworks/derbycar/pkg/hw"
	"github.com/derbyworks/derbycar/pkg/joystick"
	"github.com/derbyworks/derbycar/pkg/manualmode"
	"github.com/derbyworks/derbycar/pkg/nvram"
	"github.com/derbyworks/derbycar/pkg/safety"
	"github.com/derbyworks/derbycar/pkg/screen"
	"github.com/derbyworks/derbycar/pkg/steering"
	"github.com/derbyworks/derbycar/pkg/telemetry"
)

func main() {
	fmt.Print("---- Derby car ----\n\n")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	cfgPath := os.Getenv("DERBY_CONFIG")
	if cfgPath == "" {
		cfgPath = "/boot/derbycar.yaml"
	}
	cfg := config.Load(cfgPath)

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		s := <-signals
		log.Println("Signal: ", s)
		cancel()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()

	// The joystick is only needed for manual driving, so a missing one is
	// retried in the background rather than blocking bring-up; the car can
	// still run autonomously headless.
	joystickEvents := make(chan *joystick.Event)
	go loopOpeningJoystick(ctx, joystickEvents)

	var hwDev hw.Interface
	realHW, err := hw.New(ctx, cfg)
	if err != nil {
		fmt.Printf("Failed to open hardware: %v.\n", err)
		if os.Getenv("IGNORE_MISSING_HARDWARE") == "true" {
			fmt.Printf("Using dummy hardware\n")
			hwDev = hw.Dummy()
		} else {
			cancel()
			return
		}
	} else {
		hwDev = realHW
	}
	defer hwDev.Shutdown()

	cal := steering.NewCalibration(cfg.PotJitterTolerance)
	steer := steering.NewController(hwDev, cfg, cal)
	calibrator := steering.NewCalibrator(steer, cfg)
	brk := brake.New(hwDev, cfg)
	monitor := safety.New(hwDev, brk, steer, cfg)

	fmt.Println("Zeroing actuators")
	if err := hwDev.SetSteeringSpeed(0); err != nil {
		monitor.Fatal(fmt.Sprintf("failed to zero steering at boot: %v", err))
	}
	if err := hwDev.SetBrakeSpeed(0); err != nil {
		monitor.Fatal(fmt.Sprintf("failed to zero brake at boot: %v", err))
	}

	runLog := datalog.New(cfg.LogCapacity, cfg.OverwriteOnOverflow)
	store := openStore(cfg)
	if store != nil {
		if _, err := runLog.Restore(store); err != nil {
			fmt.Println("Failed to restore log:", err)
		}
	}

	supervisor := autodrive.New(hwDev, steer, brk, runLog, store, cfg)

	var modeLock sync.Mutex
	modeName := "starting"
	setModeName := func(n string) {
		modeLock.Lock()
		modeName = n
		modeLock.Unlock()
	}

	teleSource := func() telemetry.Snapshot {
		snap := hwDev.ReadSnapshot()
		left, right := hwDev.Odometer().Counts()
		st := brk.State()
		return telemetry.Snapshot{
			SteeringCommand:     int32(steer.Current()),
			BrakeApplied:        brk.IsApplied(),
			BrakeReleasing:      st == brake.Releasing,
			BrakeApplying:       st == brake.Applying,
			LeftHallCount:       int32(left),
			RightHallCount:      int32(right),
			LeftSteeringLimit:   snap.SteeringLeftLimit,
			RightSteeringLimit:  snap.SteeringRightLimit,
			Potentiometer:       int32(snap.Potentiometer),
			AutonomousExecuting: supervisor.IsExecuting(),
		}
	}
	go telemetry.NewServer(cfg, teleSource).Serve(ctx)
	go console.New(runLog, store, teleSource, os.Stdout).Run(ctx, os.Stdin)
	go screen.LoopUpdatingScreen(ctx, func() screen.Status {
		s := teleSource()
		modeLock.Lock()
		name := modeName
		modeLock.Unlock()
		return screen.Status{
			Mode:            name,
			SteeringCommand: int(s.SteeringCommand),
			Potentiometer:   int(s.Potentiometer),
			PotCenter:       cal.Center,
			LeftHallCount:   uint32(s.LeftHallCount),
			RightHallCount:  uint32(s.RightHallCount),
			BrakeState:      brk.State().String(),
			Calibrated:      cal.Complete,
		}
	})

	// Calibrate at boot; a failure is not fatal, the car just refuses the
	// pot-centering branch until Triangle re-runs it successfully.
	setModeName("calibrating")
	if err := calibrator.Run(ctx, hwDev); err != nil {
		fmt.Println("Boot calibration failed:", err)
	}

	manual := manualmode.New(hwDev, steer, brk, calibrator, supervisor.Tunables(), cfg)
	fmt.Printf("----- %s -----\n", manual.Name())
	setModeName(manual.Name())
	manual.Start(ctx)

	switchPoll := time.NewTicker(5 * cfg.LoopPeriod())
	defer switchPoll.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("Context done, stopping and shutting down")
			manual.Stop()
			parkBraked(brk, steer, hwDev)
			time.Sleep(1 * time.Second)
			return

		case <-switchPoll.C:
			if !hwDev.ReadSnapshot().AutonomousSwitch {
				continue
			}
			fmt.Println("Autonomous switch on: handing over to the supervisor")
			manual.Stop()
			setModeName("autonomous")
			supervisor.Run(ctx)
			if ctx.Err() != nil {
				parkBraked(brk, steer, hwDev)
				return
			}
			fmt.Printf("----- %s -----\n", manual.Name())
			setModeName(manual.Name())
			manual.Start(ctx)

		case event := <-joystickEvents:
			manual.OnJoystickEvent(event)
		}
	}
}

// parkBraked leaves the car safe for the trailer: brake on (bounded
// wait), steering neutral.
func parkBraked(brk *brake.Controller, steer *steering.Controller, hwDev hw.Interface) {
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := brk.ApplyAndWait(stopCtx); err != nil {
		fmt.Println("Failed to confirm brake while parking:", err)
	}
	steer.SetCommand(hwDev.ReadSnapshot(), 0)
}

// openStore finds somewhere non-volatile for the log: the EEPROM if it
// answers, a file next to the binary for bench runs, else nothing.
func openStore(cfg config.Config) nvram.Store {
	eeprom, err := nvram.NewEEPROM(cfg.I2CDevice, cfg.EEPROMAddr, cfg.EEPROMSize)
	if err == nil {
		return eeprom
	}
	fmt.Printf("Failed to open EEPROM: %v.\n", err)
	file, err := nvram.NewFile("derbycar-nvram.bin", cfg.EEPROMSize)
	if err != nil {
		fmt.Printf("Failed to open file store: %v, log will not persist.\n", err)
		return nil
	}
	fmt.Println("Using file-backed store")
	return file
}

func loopOpeningJoystick(ctx context.Context, events chan *joystick.Event) {
	jDev := os.Getenv("JOYSTICK_DEVICE")
	if jDev == "" {
		jDev = "/dev/input/js0"
	}
	for ctx.Err() == nil {
		j, err := joystick.NewJoystick(jDev)
		if err != nil {
			time.Sleep(1 * time.Second)
			continue
		}
		fmt.Printf("Opened joystick\n")
		err = loopReadingJoystickEvents(ctx, j, events)
		fmt.Printf("Joystick failed: %v\n", err)
		time.Sleep(1 * time.Second)
	}
}

func loopReadingJoystickEvents(ctx context.Context, j *joystick.Joystick, events chan *joystick.Event) error {
	defer j.Close()
	for ctx.Err() == nil {
		event, err := j.ReadEvent()
		if err != nil {
			fmt.Printf("Failed to read from joystick: %v.\n", err)
			return err
		}
		events <- event
	}
	return ctx.Err()
}
