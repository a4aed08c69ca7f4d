// Command showctl is the main entry point for the haunted-house show
// control process: it wires together every subsystem (audio, serial
// links to the two microcontroller boards/dimmer/sensor gateway, the
// Show Orchestration Engine, the safety-critical door controllers, the
// supervisor lifecycle, the HTTP operator surface, and the optional
// hardware e-stop) and runs until the process is signaled to stop.
// Grounded on cmd/direwolf/main.go's pflag-based option parsing.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Matt2765/halloween-control/internal/actuator"
	"github.com/Matt2765/halloween-control/internal/audio"
	"github.com/Matt2765/halloween-control/internal/config"
	"github.com/Matt2765/halloween-control/internal/dimmer"
	"github.com/Matt2765/halloween-control/internal/door"
	"github.com/Matt2765/halloween-control/internal/estop"
	"github.com/Matt2765/halloween-control/internal/house"
	"github.com/Matt2765/halloween-control/internal/houselog"
	"github.com/Matt2765/halloween-control/internal/scene"
	"github.com/Matt2765/halloween-control/internal/sensorbus"
	"github.com/Matt2765/halloween-control/internal/serial"
	"github.com/Matt2765/halloween-control/internal/supervisor"
	"github.com/Matt2765/halloween-control/internal/surface"
)

func main() {
	var (
		logDir       = pflag.StringP("log-dir", "l", "./logs", "Directory for the per-run log file; empty disables file logging")
		debug        = pflag.BoolP("debug", "d", false, "Enable debug-level logging")
		configPath   = pflag.StringP("config", "c", "", "Optional YAML config override file")
		httpAddr     = pflag.StringP("http-addr", "a", ":8080", "Address for the HTTP operator surface")
		m1Dev        = pflag.String("m1-device", "/dev/ttyUSB0", "Serial device for microcontroller M1")
		m2Dev        = pflag.String("m2-device", "/dev/ttyUSB1", "Serial device for microcontroller M2")
		dimmerDev    = pflag.String("dimmer-device", "/dev/ttyUSB2", "Serial device for the dimmer controller")
		sensorDev    = pflag.String("sensor-device", "/dev/ttyUSB3", "Serial device for the sensor gateway")
		primaryIdx   = pflag.Int("primary-device-index", 0, "PortAudio device index for the primary output")
		secondaryIdx = pflag.Int("secondary-device-index", 1, "PortAudio device index for the secondary output")
		autodetect   = pflag.Bool("autodetect", true, "Autodetect serial devices by udev vendor/model hints when the configured path is absent")
		estopChip    = pflag.String("estop-chip", "", "GPIO chip for the hardware e-stop button (empty disables it)")
		estopLine    = pflag.Int("estop-line", 0, "GPIO line offset for the hardware e-stop button")
		help         = pflag.BoolP("help", "h", false, "Display help text")
	)

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "showctl: haunted-house show control")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()

		return
	}

	if err := houselog.Init(houselog.Options{Dir: *logDir, Debug: *debug}); err != nil {
		fmt.Fprintln(os.Stderr, "showctl: log init failed:", err)
		os.Exit(1)
	}
	defer houselog.Close()

	log := houselog.For("main")

	cfg, err := config.Override(config.Default(), *configPath)
	if err != nil {
		log.Error("config override failed", "err", err)
		os.Exit(1)
	}

	hs := house.New()

	m1Link := openLink("M1", *m1Dev, 250000, *autodetect)
	m2Link := openLink("M2", *m2Dev, 250000, *autodetect)
	dimmerLink := openLink("dimmer", *dimmerDev, 115200, *autodetect)
	sensorLink := openLink("sensor-gateway", *sensorDev, 921600, *autodetect)

	boards := actuator.NewRegistry()
	boards.Register("M1", actuator.NewBoard("M1", m1Link))
	boards.Register("M2", actuator.NewBoard("M2", m2Link))

	stop := make(chan struct{})

	sensors := sensorbus.New(sensorLink, cfg.FarDistanceMM)
	go sensors.Run(stop)

	dim := dimmer.New(cfg, dimmerLink, hs)
	go dim.Run(stop)

	mixer, err := audio.New(cfg, hs, *primaryIdx, *secondaryIdx)
	if err != nil {
		log.Error("audio init failed", "err", err)
		os.Exit(1)
	}
	defer mixer.Close()

	speaker := audio.DefaultSpeaker()

	doors := make([]*door.Door, 0, len(cfg.Doors))
	for _, dc := range cfg.Doors {
		doors = append(doors, door.New(dc, hs, boards, sensors))
	}

	eng := scene.New(hs, cfg, mixer, speaker, sensors, dim, boards)

	httpSrv := surface.New(hs, eng, sensors, *httpAddr, "House Control")

	sup := supervisor.New(hs, cfg, mixer, speaker, boards, doors, httpSrv)

	if *estopChip != "" {
		w, err := estop.New(estop.Config{Chip: *estopChip, Line: *estopLine}, hs)
		if err != nil {
			log.Warn("hardware e-stop unavailable, continuing without it", "err", err)
		} else {
			defer w.Close()
		}
	}

	go sup.Run(stop)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil {
			log.Error("HTTP surface exited", "err", err)
		}
	}()

	httpSrv.Announce(httpPort(*httpAddr))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down on signal")
	close(stop)
}

func openLink(label, device string, baud int, autodetect bool) *serial.Link {
	log := houselog.For("main")

	l := serial.Open(label, device, baud)
	if l.Available() || !autodetect {
		return l
	}

	if found := serial.Autodetect(serial.DefaultPortHints); found != "" {
		log.Info("autodetected serial device", "label", label, "device", found)

		return serial.Open(label, found, baud)
	}

	return l
}

func httpPort(addr string) int {
	port := 8080

	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			fmt.Sscanf(addr[i+1:], "%d", &port)

			break
		}
	}

	return port
}
