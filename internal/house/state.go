// Package house holds the single process-wide House State: lifecycle
// flags, the system mode, and per-door/per-room state, shared by every
// other subsystem. It generalizes the Python original's module-level
// "house" singleton (house_state.py) into a mutex-protected Go struct.
package house

import "sync"

// Mode is the coarse system mode. Transitions are monotonic within a
// single run: OFFLINE -> ONLINE -> {SoftShutdown, EmergencyShutoff} ->
// REBOOT -> ONLINE.
type Mode string

const (
	Offline          Mode = "OFFLINE"
	Online           Mode = "ONLINE"
	SoftShutdown     Mode = "SoftShutdown"
	EmergencyShutoff Mode = "EmergencyShutoff"
	Reboot           Mode = "REBOOT"
)

// DoorState is the observed or commanded state of a door.
type DoorState string

const (
	DoorOpen   DoorState = "OPEN"
	DoorClosed DoorState = "CLOSED"
	DoorClopen DoorState = "CLOPEN"
)

// RoomTag tracks whether a room's scene task is currently running.
type RoomTag string

const (
	RoomActive   RoomTag = "ACTIVE"
	RoomInactive RoomTag = "INACTIVE"
)

// State is the House State singleton. All fields are protected by mu;
// callers never touch the zero value directly outside this package.
type State struct {
	mu sync.RWMutex

	boot        bool
	houseActive bool
	demo        bool
	mode        Mode
	houseLights bool

	doorState       map[int]DoorState
	targetDoorState map[int]DoorState

	roomState map[string]RoomTag

	debugInfo       bool
	debugBreakCheck bool
}

// New returns a freshly booted House State: Boot=true, OFFLINE, all
// lights and doors at their conservative defaults.
func New() *State {
	return &State{
		boot:            true,
		mode:            Offline,
		houseLights:     true,
		doorState:       make(map[int]DoorState),
		targetDoorState: make(map[int]DoorState),
		roomState:       make(map[string]RoomTag),
		debugBreakCheck: true,
	}
}

func (s *State) Boot() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.boot
}

func (s *State) ClearBoot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boot = false
}

func (s *State) HouseActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.houseActive
}

func (s *State) SetHouseActive(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.houseActive = v
}

func (s *State) Demo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.demo
}

func (s *State) SetDemo(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.demo = v
}

func (s *State) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.mode
}

func (s *State) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

func (s *State) HouseLights() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.houseLights
}

func (s *State) SetHouseLights(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.houseLights = v
}

// DoorState returns the observed state of a door, defaulting to OPEN for
// a door id that has not reported yet (fail-open is the safe default).
func (s *State) DoorState(id int) DoorState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.doorState[id]; ok {
		return st
	}

	return DoorOpen
}

func (s *State) SetDoorState(id int, st DoorState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doorState[id] = st
}

// TargetDoorState returns the commanded state of a door, defaulting to
// OPEN.
func (s *State) TargetDoorState(id int) DoorState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.targetDoorState[id]; ok {
		return st
	}

	return DoorOpen
}

// SetTargetDoorState is the single entry point external surfaces (scene
// scripts, HTTP, GUI) use to command a door. Only one writer is expected
// at a time per door id, per spec's invariant; the lock here just makes
// concurrent reads safe, not serializes intent.
func (s *State) SetTargetDoorState(id int, st DoorState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetDoorState[id] = st
}

func (s *State) RoomState(room string) RoomTag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if tag, ok := s.roomState[room]; ok {
		return tag
	}

	return RoomInactive
}

func (s *State) SetRoomState(room string, tag RoomTag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomState[room] = tag
}

func (s *State) DebugInfo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.debugInfo
}

func (s *State) SetDebugInfo(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugInfo = v
}

func (s *State) DebugBreakCheck() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.debugBreakCheck
}

// BreakCheck is the global cooperative-cancellation predicate: true iff
// the house is no longer active or the system has left ONLINE. Every
// scene script, door task, and dimmer effect polls this at each
// suspension point.
func (s *State) BreakCheck() bool {
	s.mu.RLock()
	active := s.houseActive
	mode := s.mode
	s.mu.RUnlock()

	return !active || mode != Online
}
