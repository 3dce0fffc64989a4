package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/derbyworks/derbycar/pkg/config"
	"github.com/derbyworks/derbycar/pkg/gpiohw"
	"github.com/derbyworks/derbycar/pkg/odometry"
)

// Prints the hall counters once a second: spin each wheel by hand and
// check the counts climb by the magnet count per revolution.
func main() {
	ctx, cancel := context.WithCancel(context.Background())

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.Println("Signal: ", s)
		cancel()
	}()

	cfg := config.Default()
	if err := gpiohw.Init(); err != nil {
		fmt.Println("Failed to init GPIO:", err)
		return
	}

	odo := odometry.New(cfg.MagnetsPerWheel, cfg.WheelCircumferenceM)
	if err := gpiohw.WatchEdges(ctx, cfg.LeftHallPin, odo.CountLeftPulse); err != nil {
		fmt.Println("Failed to watch left hall pin:", err)
		return
	}
	if err := gpiohw.WatchEdges(ctx, cfg.RightHallPin, odo.CountRightPulse); err != nil {
		fmt.Println("Failed to watch right hall pin:", err)
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for ctx.Err() == nil {
		<-ticker.C
		left, right := odo.Counts()
		fmt.Printf("left: %5d (%6.2fm)   right: %5d (%6.2fm)\n",
			left, odo.DistanceLeftM(), right, odo.DistanceRightM())
	}
}
