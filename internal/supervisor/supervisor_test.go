package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Matt2765/halloween-control/internal/actuator"
	"github.com/Matt2765/halloween-control/internal/config"
	"github.com/Matt2765/halloween-control/internal/house"
	"github.com/Matt2765/halloween-control/internal/serial"
)

// fakeConfirm records whether the operator confirmation gate was
// crossed, without blocking the test.
type fakeConfirm struct {
	called bool
}

func (f *fakeConfirm) WaitForSafeWord() {
	f.called = true
}

func testSupervisor(t *testing.T) (*Supervisor, *actuator.Registry) {
	t.Helper()

	hs := house.New()
	cfg := config.Default()
	boards := actuator.NewRegistry()

	link := serial.Open("M1", "/dev/does-not-exist", 250000)
	boards.Register("M1", actuator.NewBoard("M1", link))
	link2 := serial.Open("M2", "/dev/does-not-exist", 250000)
	boards.Register("M2", actuator.NewBoard("M2", link2))

	s := New(hs, cfg, nil, nil, boards, nil, &fakeConfirm{})
	s.sleep = func(time.Duration) {}

	return s, boards
}

func TestShutdownSweepsEveryRelayAndRestoresHouseLights(t *testing.T) {
	s, _ := testSupervisor(t)

	s.HS.SetHouseActive(true)
	s.HS.SetHouseLights(false)

	s.Shutdown()

	assert.False(t, s.HS.HouseActive())
	assert.True(t, s.HS.HouseLights())
}

func TestShutdownDetectorSoftShutdownSkipsConfirmation(t *testing.T) {
	s, _ := testSupervisor(t)
	fc := s.Confirm.(*fakeConfirm)

	s.HS.SetMode(house.Online)

	stop := make(chan struct{})
	defer close(stop)

	go func() {
		time.Sleep(2 * time.Millisecond)
		s.HS.SetMode(house.SoftShutdown)
	}()

	done := make(chan struct{})
	go func() {
		s.shutdownDetector(stop)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdownDetector did not return")
	}

	assert.False(t, fc.called)
	assert.Equal(t, house.Reboot, s.HS.Mode())
}

func TestShutdownDetectorEmergencyShutoffWaitsForConfirmation(t *testing.T) {
	s, _ := testSupervisor(t)
	fc := s.Confirm.(*fakeConfirm)

	s.HS.SetMode(house.Online)

	stop := make(chan struct{})
	defer close(stop)

	go func() {
		time.Sleep(2 * time.Millisecond)
		s.HS.SetMode(house.EmergencyShutoff)
	}()

	done := make(chan struct{})
	go func() {
		s.shutdownDetector(stop)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdownDetector did not return")
	}

	assert.True(t, fc.called)
	assert.Equal(t, house.Reboot, s.HS.Mode())
}

func TestWaitForSafeNoopWithoutConfirmer(t *testing.T) {
	s, _ := testSupervisor(t)
	s.Confirm = nil

	assert.NotPanics(t, func() { s.waitForSafe() })
}

func TestSpeakAndStopAllAudioNoopWithoutMixer(t *testing.T) {
	s, _ := testSupervisor(t)

	assert.NotPanics(t, func() { s.speak("hello") })
	assert.NotPanics(t, func() { s.stopAllAudio(time.Millisecond) })
}
