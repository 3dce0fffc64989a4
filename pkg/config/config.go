package config

import (
	"fmt"
	"io/ioutil"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config collects every hardware attach point and control constant for the
// car.  Defaults match the reference wiring; a YAML file overrides them.
type Config struct {
	// Control loop.
	LoopPeriodMs int

	// Drive hat (steering + brake speed controllers).
	I2CDevice    string
	DriveHatAddr int
	FlashHat     bool
	HatImage     string

	// GPIO pin names (periph.io names).
	SteeringLeftLimitPin  string
	SteeringRightLimitPin string
	BrakeApplyLimitPin    string
	BrakeReleaseLimitPin  string
	AutonomousSwitchPin   string
	LeftHallPin           string
	RightHallPin          string
	LEDPins               []string

	// Potentiometer ADC.
	PotADCAddr int

	// EEPROM.
	EEPROMAddr int
	EEPROMSize int

	// Steering.
	MinOutputPct       int
	CalibrateLeftPct   int
	CalibrateRightPct  int
	CalibrateCenterPct int
	PotJitterTolerance int
	CalibratePhaseSecs int

	// Brake.
	ApplyBrakePct   int
	ReleaseBrakePct int
	BrakeConfirmSec int

	// Autonomous run.
	AutoTurnLeftPct   int
	AutoTurnRightPct  int
	HallCountMaxDiff  int
	LaunchCountThresh int
	MaxRunLengthMs    int
	FlushLogOnExit    bool

	// Odometry.
	MagnetsPerWheel     int
	WheelCircumferenceM float64

	// Data log.
	LogCapacity         int
	OverwriteOnOverflow bool

	// Telemetry serial port.
	TelemetryPort string
	TelemetryBaud int

	// Sounds.
	ReadySound  string
	LaunchSound string
	StopSound   string
}

// Defaults are the values from the reference car; see the wiring notes.
func Default() Config {
	return Config{
		LoopPeriodMs: 20,

		I2CDevice:    "/dev/i2c-1",
		DriveHatAddr: 0x42,
		FlashHat:     true,
		HatImage:     "/derbyhat.binary",

		SteeringLeftLimitPin:  "GPIO17",
		SteeringRightLimitPin: "GPIO27",
		BrakeApplyLimitPin:    "GPIO22",
		BrakeReleaseLimitPin:  "GPIO23",
		AutonomousSwitchPin:   "GPIO24",
		LeftHallPin:           "GPIO5",
		RightHallPin:          "GPIO6",
		LEDPins:               []string{"GPIO12", "GPIO13", "GPIO19", "GPIO26"},

		PotADCAddr: 0x48,

		EEPROMAddr: 0x50,
		EEPROMSize: 4096,

		MinOutputPct:       10,
		CalibrateLeftPct:   -30,
		CalibrateRightPct:  30,
		CalibrateCenterPct: 20,
		PotJitterTolerance: 5,
		CalibratePhaseSecs: 15,

		ApplyBrakePct:   -40,
		ReleaseBrakePct: 25,
		BrakeConfirmSec: 10,

		AutoTurnLeftPct:   -80,
		AutoTurnRightPct:  80,
		HallCountMaxDiff:  2,
		LaunchCountThresh: 1,
		MaxRunLengthMs:    300000, // Five minutes.
		FlushLogOnExit:    true,

		MagnetsPerWheel:     6,
		WheelCircumferenceM: 1.26,

		LogCapacity:         128,
		OverwriteOnOverflow: false,

		TelemetryPort: "/dev/ttyAMA0",
		TelemetryBaud: 115200,

		ReadySound:  "/sounds/ready.wav",
		LaunchSound: "/sounds/go.wav",
		StopSound:   "/sounds/stop.wav",
	}
}

func (c Config) LoopPeriod() time.Duration {
	return time.Duration(c.LoopPeriodMs) * time.Millisecond
}

func (c Config) MaxRunLength() time.Duration {
	return time.Duration(c.MaxRunLengthMs) * time.Millisecond
}

func (c Config) CalibratePhaseTimeout() time.Duration {
	return time.Duration(c.CalibratePhaseSecs) * time.Second
}

func (c Config) BrakeConfirmTimeout() time.Duration {
	return time.Duration(c.BrakeConfirmSec) * time.Second
}

// Load reads the YAML config, overlaying the defaults, and writes the
// config actually in use back out alongside it for the pits crew.
func Load(path string) Config {
	c := Default()
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		fmt.Println(err)
	} else {
		err = yaml.Unmarshal(raw, &c)
		if err != nil {
			fmt.Println(err)
		}
	}
	fmt.Printf("Using config: %#v\n", c)
	inUse, err := yaml.Marshal(&c)
	if err != nil {
		fmt.Println(err)
	} else {
		err = ioutil.WriteFile(path+".in-use", inUse, 0666)
		if err != nil {
			fmt.Println(err)
		}
	}
	return c
}
