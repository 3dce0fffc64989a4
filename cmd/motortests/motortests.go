package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/derbyworks/derbycar/pkg/config"
	"github.com/derbyworks/derbycar/pkg/motor"
)

func main() {
	cfg := config.Default()
	hat, err := motor.New(cfg.I2CDevice, cfg.DriveHatAddr, cfg.HatImage, false)
	if err != nil {
		fmt.Println("Failed to open derby hat", err)
		return
	}
	defer hat.Stop()

	fmt.Println(
		`Commands:
    s <percent>   # Drive the steering channel
    b <percent>   # Drive the brake channel
    0             # Stop both channels

<percent>  Signed speed -100..100; steering: negative=left, brake: negative=apply`)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "s", "b":
			if len(parts) < 2 {
				fmt.Println("Not enough parameters")
				continue
			}
			pct, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("Expected int, not ", parts[1])
				continue
			}
			ch := motor.Steering
			if parts[0] == "b" {
				ch = motor.Brake
			}
			if err := hat.SetSpeed(ch, pct); err != nil {
				fmt.Println("Failed to set speed: ", err)
			}
		case "0":
			hat.Stop()
		default:
			fmt.Println("Unknown command ", parts[0])
		}
	}
}
