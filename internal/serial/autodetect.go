package serial

import (
	"strings"

	"github.com/jochenvg/go-udev"
)

// DefaultPortHints are substrings matched case-insensitively against a
// candidate USB-serial device's udev vendor/model/serial properties,
// mirroring remote_sensor_monitor.py's PORT_HINTS tuple.
var DefaultPortHints = []string{
	"Silicon Labs", "CP210", "CH340", "USB-SERIAL", "ESP32", "WCH",
}

// Autodetect scans /dev for a tty device whose udev properties match any
// of hints, returning its devnode (e.g. "/dev/ttyUSB0"). Returns "" if
// none match. This replaces a hand-rolled directory scan with the
// teacher's declared-but-unwired jochenvg/go-udev dependency.
func Autodetect(hints []string) string {
	u := udev.Udev{}

	enumerate := u.NewEnumerate()
	if enumerate == nil {
		return ""
	}

	if err := enumerate.AddMatchSubsystem("tty"); err != nil {
		return ""
	}

	devices, err := enumerate.Devices()
	if err != nil {
		return ""
	}

	for _, d := range devices {
		devnode := d.Devnode()
		if devnode == "" {
			continue
		}

		desc := strings.Join([]string{
			devnode,
			d.PropertyValue("ID_VENDOR"),
			d.PropertyValue("ID_MODEL"),
			d.PropertyValue("ID_SERIAL"),
		}, " ")

		lowered := strings.ToLower(desc)

		for _, h := range hints {
			if strings.Contains(lowered, strings.ToLower(h)) {
				return devnode
			}
		}
	}

	return ""
}
