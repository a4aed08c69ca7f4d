// Command doorsim is a standalone bench harness for exercising a single
// Safety-Critical Door Controller off the full show-control stack:
// point it at one door's real (or absent, simulated) serial links and
// drive it interactively from the terminal. Grounded on the teacher's
// bufio.NewScanner(os.Stdin) command-loop pattern, e.g. src/kissutil.go.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/Matt2765/halloween-control/internal/actuator"
	"github.com/Matt2765/halloween-control/internal/config"
	"github.com/Matt2765/halloween-control/internal/door"
	"github.com/Matt2765/halloween-control/internal/house"
	"github.com/Matt2765/halloween-control/internal/houselog"
	"github.com/Matt2765/halloween-control/internal/sensorbus"
	"github.com/Matt2765/halloween-control/internal/serial"
)

func main() {
	var (
		doorID    = pflag.IntP("door", "d", 1, "Door id from the compiled-in config to simulate (1, 2, or 3)")
		boardDev  = pflag.String("board-device", "", "Serial device for the door's microcontroller board (empty simulates)")
		sensorDev = pflag.String("sensor-device", "", "Serial device for the sensor gateway (empty simulates)")
		debug     = pflag.BoolP("debug", "v", false, "Enable debug-level logging")
		help      = pflag.BoolP("help", "h", false, "Display help text")
	)

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "doorsim: interactive single-door bench harness")
		fmt.Fprintln(os.Stderr, "commands: open | close | clopen | status | quit")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()

		return
	}

	if err := houselog.Init(houselog.Options{Dir: "", Debug: *debug}); err != nil {
		fmt.Fprintln(os.Stderr, "doorsim: log init failed:", err)
		os.Exit(1)
	}

	cfg := config.Default()

	var dc *config.DoorConfig
	for i := range cfg.Doors {
		if cfg.Doors[i].ID == *doorID {
			dc = &cfg.Doors[i]

			break
		}
	}

	if dc == nil {
		fmt.Fprintf(os.Stderr, "doorsim: no door with id %d in the compiled-in config\n", *doorID)
		os.Exit(1)
	}

	hs := house.New()
	hs.SetMode(house.Online)
	hs.SetHouseActive(true)

	boardLink := serial.Open(dc.Controller, *boardDev, 250000)
	boards := actuator.NewRegistry()
	boards.Register(dc.Controller, actuator.NewBoard(dc.Controller, boardLink))

	sensorLink := serial.Open("sensor-gateway", *sensorDev, 921600)
	sensors := sensorbus.New(sensorLink, cfg.FarDistanceMM)

	stop := make(chan struct{})
	go sensors.Run(stop)

	d := door.New(*dc, hs, boards, sensors)
	go d.Run(stop)

	fmt.Printf("doorsim: simulating door %d (sensor %s, board %s), board link available=%v, sensor link available=%v\n",
		dc.ID, dc.SensorID, dc.Controller, boardLink.Available(), sensorLink.Available())
	fmt.Println("commands: open | close | clopen | status | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())

		switch cmd {
		case "open":
			hs.SetTargetDoorState(dc.ID, house.DoorOpen)
		case "close":
			hs.SetTargetDoorState(dc.ID, house.DoorClosed)
		case "clopen":
			hs.SetTargetDoorState(dc.ID, house.DoorClopen)
		case "status":
			fmt.Printf("target=%s observed=%s\n", hs.TargetDoorState(dc.ID), hs.DoorState(dc.ID))
		case "quit", "exit":
			close(stop)

			return
		case "":
			// ignore blank lines
		default:
			fmt.Println("unrecognized command:", cmd)
		}
	}

	close(stop)
}
