package main

import (
	"fmt"
	"os"

	"github.com/derbyworks/derbycar/pkg/config"
	"github.com/derbyworks/derbycar/pkg/datalog"
	"github.com/derbyworks/derbycar/pkg/nvram"
)

func usage() {
	fmt.Println(`Usage: nvramtool <command>

Commands:
    dump    # Hex dump of the whole EEPROM
    log     # Restore and print the stored run log
    erase   # Zero the whole EEPROM (slow: one write cycle per byte)`)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg := config.Default()
	store, err := nvram.NewEEPROM(cfg.I2CDevice, cfg.EEPROMAddr, cfg.EEPROMSize)
	if err != nil {
		fmt.Println("Failed to open EEPROM:", err)
		os.Exit(1)
	}
	defer store.Close()

	switch os.Args[1] {
	case "dump":
		dump(store)
	case "log":
		printLog(store, cfg)
	case "erase":
		erase(store)
	default:
		usage()
	}
}

func dump(store nvram.Store) {
	const rowLen = 16
	for row := 0; row < store.Size(); row += rowLen {
		fmt.Printf("%04x:", row)
		for off := row; off < row+rowLen; off++ {
			b, err := store.ReadByte(off)
			if err != nil {
				fmt.Println(" read failed:", err)
				os.Exit(1)
			}
			fmt.Printf(" %02x", b)
		}
		fmt.Println()
	}
}

func printLog(store nvram.Store, cfg config.Config) {
	l := datalog.New(cfg.LogCapacity, cfg.OverwriteOnOverflow)
	ok, err := l.Restore(store)
	if err != nil {
		fmt.Println("Restore failed:", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("No valid log record in storage")
		return
	}
	l.Dump(os.Stdout)
}

func erase(store *nvram.EEPROM) {
	for off := 0; off < store.Size(); off++ {
		b, err := store.ReadByte(off)
		if err != nil {
			fmt.Println("Read failed:", err)
			os.Exit(1)
		}
		if b == 0 {
			continue
		}
		if err := store.WriteByte(off, 0); err != nil {
			fmt.Println("Write failed:", err)
			os.Exit(1)
		}
	}
	fmt.Println("Erased")
}
