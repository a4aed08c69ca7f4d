// Package config holds the compiled-in constants for the house — channel
// maps, door/sensor bindings, dimmer layout, and the shutdown relay
// table — plus an optional YAML override loader. All constants are
// usable as-is with zero configuration, per spec's "no configuration
// files; all constants compiled in." A YAML file only overrides the
// subset of fields it sets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Device identifies one of the two fixed audio output devices.
type Device string

const (
	Primary   Device = "primary"
	Secondary Device = "secondary"
)

// ChannelEntry is one row of a channel map: a symbolic name resolving to
// a physical output index (or stereo pair) on a device, with a default
// gain.
type ChannelEntry struct {
	Name     string  `yaml:"name"`
	Index    int     `yaml:"index"`              // mono target index
	PairL    int     `yaml:"pair_l,omitempty"`   // for stereo pairs
	PairR    int     `yaml:"pair_r,omitempty"`
	IsStereo bool    `yaml:"is_stereo,omitempty"`
	Gain     float64 `yaml:"gain"`
	Device   Device  `yaml:"device"`
}

// DoorConfig binds a door id to its solenoid pin, controller board, and
// obstruction-sensing parameters.
type DoorConfig struct {
	ID           int
	SolenoidPin  int
	Controller   string // "M1" or "M2"
	SensorID     string // e.g. "TOF1"
	SelfPassS    float64
	RetryDelayS  float64
	MonitorWinS  float64
	ClearHoldS   float64
	// Idle-profile obstruction thresholds (checked before starting a close).
	IdleBlockMM    int
	IdleWindowMS   int
	IdleMinConsec  int
	// Moving-profile thresholds (checked while the door is in motion/closing).
	MoveBlockMM   int
	MoveWindowMS  int
	MoveMinConsec int
	ClearMM       int
}

// ShutdownRelay is one entry of the data-driven shutdown table: a single
// relay pin to drive to its OFF level, annotated with the physical
// circuit it belongs to for the shutdown log. Generalizes the flat list
// of m1Digital_Write calls in the original control/shutdown.py into
// reusable data.
type ShutdownRelay struct {
	Controller string // "M1" or "M2"
	Pin        int
	OffValue   int // value written to reach the safe/inactive state
	Label      string
	Room       string
}

// House is the full compiled-in configuration.
type House struct {
	PrimaryChannels   map[string]ChannelEntry
	SecondaryChannels map[string]ChannelEntry

	Doors []DoorConfig

	DimmerChannelCount int
	DimmerMixHz        float64
	DimmerKeepaliveMS  int
	DimmerDefaultStep  int

	ShutdownRelays []ShutdownRelay

	FarDistanceMM int // synthetic "no target" distance substituted for negative readings; passed to sensorbus.New

	HouseLightsPin struct {
		Controller string
		Pin        int
	}
}

// Default returns the compiled-in configuration matching the attraction
// as described by spec.md and the retrieved original source (door pins
// 23/25/26, sensors TOF1-3, 8-channel primary device, 8-channel AC
// dimmer at 240Hz).
func Default() House {
	return House{
		PrimaryChannels: map[string]ChannelEntry{
			"frontLeft":    {Name: "frontLeft", Index: 0, Gain: 1.0, Device: Primary},
			"frontRight":   {Name: "frontRight", Index: 1, Gain: 1.0, Device: Primary},
			"center":       {Name: "center", Index: 2, Gain: 1.4, Device: Primary},
			"subwoofer":    {Name: "subwoofer", Index: 3, Gain: 1.4, Device: Primary},
			"gangway":      {Name: "gangway", Index: 4, Gain: 1.0, Device: Primary},
			"cargoHold":    {Name: "cargoHold", Index: 5, Gain: 1.0, Device: Primary},
			"quarterdeck":  {Name: "quarterdeck", Index: 6, Gain: 1.0, Device: Primary},
			"graveyard":    {Name: "graveyard", Index: 7, Gain: 1.0, Device: Primary},
			"stereo_deck_L": {Name: "stereo_deck_L", Index: 0, Gain: 1.0, Device: Primary},
			"stereo_deck_R": {Name: "stereo_deck_R", Index: 1, Gain: 1.0, Device: Primary},
		},
		SecondaryChannels: map[string]ChannelEntry{
			"swampRoom":    {Name: "swampRoom", Index: 0, Gain: 1.6, Device: Secondary},
			"atticSpeaker": {Name: "atticSpeaker", Index: 1, Gain: 1.6, Device: Secondary},
			"dungeon":      {Name: "dungeon", Index: 2, Gain: 1.8, Device: Secondary},
			"closetCreak":  {Name: "closetCreak", Index: 3, Gain: 1.8, Device: Secondary},
		},
		Doors: []DoorConfig{
			{
				ID: 1, SolenoidPin: 23, Controller: "M1", SensorID: "TOF1",
				SelfPassS: 2.0, RetryDelayS: 3.0, MonitorWinS: 7.5, ClearHoldS: 2.0,
				IdleBlockMM: 800, IdleWindowMS: 250, IdleMinConsec: 2,
				MoveBlockMM: 800, MoveWindowMS: 400, MoveMinConsec: 3,
				ClearMM: 850,
			},
			{
				ID: 2, SolenoidPin: 25, Controller: "M1", SensorID: "TOF2",
				SelfPassS: 2.0, RetryDelayS: 3.0, MonitorWinS: 7.5, ClearHoldS: 2.0,
				IdleBlockMM: 800, IdleWindowMS: 250, IdleMinConsec: 2,
				MoveBlockMM: 800, MoveWindowMS: 400, MoveMinConsec: 3,
				ClearMM: 850,
			},
			{
				ID: 3, SolenoidPin: 26, Controller: "M1", SensorID: "TOF3",
				SelfPassS: 2.0, RetryDelayS: 3.0, MonitorWinS: 7.5, ClearHoldS: 2.0,
				IdleBlockMM: 1500, IdleWindowMS: 500, IdleMinConsec: 2,
				MoveBlockMM: 1500, MoveWindowMS: 600, MoveMinConsec: 3,
				ClearMM: 1550,
			},
		},
		DimmerChannelCount: 8,
		DimmerMixHz:        240.0,
		DimmerKeepaliveMS:  100,
		DimmerDefaultStep:  3,
		FarDistanceMM:      10000,
		ShutdownRelays: []ShutdownRelay{
			{Controller: "M1", Pin: 47, OffValue: 1, Label: "+12v Door Solenoid A", Room: "gangway"},
			{Controller: "M1", Pin: 33, OffValue: 1, Label: "+120v Ambient Lights A", Room: "gangway"},
			{Controller: "M1", Pin: 35, OffValue: 1, Label: "+120v Strobe A", Room: "gangway"},
			{Controller: "M1", Pin: 3, OffValue: 1, Label: "+120v Ambient Light 4", Room: "treasureRoom"},
			{Controller: "M1", Pin: 2, OffValue: 1, Label: "+120v Strobe 3", Room: "treasureRoom"},
			{Controller: "M1", Pin: 26, OffValue: 1, Label: "+120v Lightning", Room: "treasureRoom"},
			{Controller: "M1", Pin: 24, OffValue: 1, Label: "+120v Blacklight", Room: "treasureRoom"},
			{Controller: "M1", Pin: 9, OffValue: 1, Label: "+120v Strobe 2", Room: "quarterdeck"},
			{Controller: "M1", Pin: 23, OffValue: 1, Label: "+120v Lightning", Room: "quarterdeck"},
			{Controller: "M1", Pin: 53, OffValue: 1, Label: "+12v Prisoner Arms", Room: "quarterdeck"},
			{Controller: "M1", Pin: 38, OffValue: 1, Label: "+12v Door 2 Solenoid", Room: "quarterdeck"},
			{Controller: "M1", Pin: 4, OffValue: 1, Label: "+120v Drop Down Light", Room: "quarterdeck"},
			{Controller: "M1", Pin: 45, OffValue: 1, Label: "+12v Enemy Cannon Solenoid", Room: "graveyard"},
			{Controller: "M1", Pin: 58, OffValue: 1, Label: "+120v Enemy Cannon Smoke Machine", Room: "graveyard"},
			{Controller: "M1", Pin: 31, OffValue: 1, Label: "+120v Enemy Cannon Muzzle Flash", Room: "graveyard"},
			{Controller: "M1", Pin: 40, OffValue: 1, Label: "+12v Water Blast", Room: "graveyard"},
			{Controller: "M1", Pin: 6, OffValue: 1, Label: "+120v Ship Lights 1", Room: "graveyard"},
			{Controller: "M1", Pin: 7, OffValue: 1, Label: "+120v Ship Lights 2", Room: "graveyard"},
			{Controller: "M1", Pin: 49, OffValue: 1, Label: "+12v Barrel Solenoid", Room: "cargoHold"},
			{Controller: "M1", Pin: 30, OffValue: 1, Label: "+120v Lightning 2", Room: "cargoHold"},
			{Controller: "M1", Pin: 51, OffValue: 1, Label: "+12v Rowing Skeleton Motor", Room: "cargoHold"},
			{Controller: "M1", Pin: 28, OffValue: 1, Label: "+120v Ambient Light 6", Room: "cargoHold"},
			{Controller: "M1", Pin: 39, OffValue: 1, Label: "+12v Cannon 1 Solenoid", Room: "cargoHold"},
			{Controller: "M1", Pin: 25, OffValue: 1, Label: "+120v Cannon 1 Muzzle Flash", Room: "cargoHold"},
			{Controller: "M1", Pin: 61, OffValue: 1, Label: "Cannon 1 Smoke Machine", Room: "cargoHold"},
			{Controller: "M1", Pin: 41, OffValue: 1, Label: "+12v Cannon 2 Solenoid", Room: "cargoHold"},
			{Controller: "M1", Pin: 27, OffValue: 1, Label: "+120v Cannon 2 Muzzle Flash", Room: "cargoHold"},
			{Controller: "M1", Pin: 60, OffValue: 1, Label: "Cannon 2 Smoke Machine", Room: "cargoHold"},
		},
	}
}

// Override reads a YAML file and merges it onto base. Only the channel
// maps, the dimmer channel count and mix rate, and the far distance can
// be overridden, and only those present in the file are replaced; every
// other default keeps its compiled-in value. An empty path is a no-op,
// so a zero-configuration boot needs no file; a path that cannot be
// read or parsed is an error.
func Override(base House, path string) (House, error) {
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("config: read override file %q: %w", path, err)
	}

	var patch struct {
		PrimaryChannels    map[string]ChannelEntry `yaml:"primary_channels"`
		SecondaryChannels  map[string]ChannelEntry `yaml:"secondary_channels"`
		DimmerChannelCount int                     `yaml:"dimmer_channel_count"`
		DimmerMixHz        float64                 `yaml:"dimmer_mix_hz"`
		FarDistanceMM      int                     `yaml:"far_distance_mm"`
	}

	if err := yaml.Unmarshal(data, &patch); err != nil {
		return base, fmt.Errorf("config: parse override file %q: %w", path, err)
	}

	if len(patch.PrimaryChannels) > 0 {
		for k, v := range patch.PrimaryChannels {
			base.PrimaryChannels[k] = v
		}
	}

	if len(patch.SecondaryChannels) > 0 {
		for k, v := range patch.SecondaryChannels {
			base.SecondaryChannels[k] = v
		}
	}

	if patch.DimmerChannelCount > 0 {
		base.DimmerChannelCount = patch.DimmerChannelCount
	}

	if patch.DimmerMixHz > 0 {
		base.DimmerMixHz = patch.DimmerMixHz
	}

	if patch.FarDistanceMM != 0 {
		base.FarDistanceMM = patch.FarDistanceMM
	}

	return base, nil
}
