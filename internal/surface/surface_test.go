package surface

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Matt2765/halloween-control/internal/house"
	"github.com/Matt2765/halloween-control/internal/scene"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	hs := house.New()
	eng := &scene.Engine{HS: hs}

	return New(hs, eng, nil, ":0", "Test House")
}

func TestIndexServesHTMLAtRoot(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "House Control")
}

func TestEmergencyShutoffSetsMode(t *testing.T) {
	s := testServer(t)
	s.HS.SetMode(house.Online)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/EMERGENCY_SHUTOFF", nil)
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, house.EmergencyShutoff, s.HS.Mode())
}

func TestSoftShutdownSetsMode(t *testing.T) {
	s := testServer(t)
	s.HS.SetMode(house.Online)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/SOFT_SHUTDOWN", nil)
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, house.SoftShutdown, s.HS.Mode())
}

func TestDoorEndpointsSetTargetState(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, httptest.NewRequest("GET", "/Door1Close", nil))
	assert.Equal(t, house.DoorClosed, s.HS.TargetDoorState(1))

	rec = httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, httptest.NewRequest("GET", "/Door2Open", nil))
	assert.Equal(t, house.DoorOpen, s.HS.TargetDoorState(2))
}

func TestToggleHouseLightsFlipsState(t *testing.T) {
	s := testServer(t)
	s.HS.SetHouseLights(true)

	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, httptest.NewRequest("GET", "/ToggleHouseLights", nil))

	assert.Equal(t, 200, rec.Code)
	assert.False(t, s.HS.HouseLights())
}

func TestDemoEndpointsRegisteredForEveryRoom(t *testing.T) {
	s := testServer(t)
	mux := s.Mux()

	for _, rs := range scene.Rooms {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/Demo"+upperFirst(rs.Name), nil)
		mux.ServeHTTP(rec, req)

		assert.Equal(t, 200, rec.Code, rs.Name)
	}
}

func TestConfirmSafeUnblocksWaitForSafeWord(t *testing.T) {
	s := testServer(t)

	done := make(chan struct{})
	go func() {
		s.WaitForSafeWord()
		close(done)
	}()

	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, httptest.NewRequest("GET", "/CONFIRM_SAFE", nil))
	assert.Equal(t, 200, rec.Code)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForSafeWord did not unblock")
	}
}

func TestConfirmSafeBeforeWaitIsNotLost(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, httptest.NewRequest("GET", "/CONFIRM_SAFE", nil))

	done := make(chan struct{})
	go func() {
		s.WaitForSafeWord()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("buffered confirmation was lost")
	}
}

func TestThreadDumpReturnsGoroutineProfile(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, httptest.NewRequest("GET", "/ThreadDump", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutine")
}

func TestUpperFirst(t *testing.T) {
	assert.Equal(t, "Gangway", upperFirst("gangway"))
	assert.Equal(t, "", upperFirst(""))
	assert.Equal(t, "AlreadyUpper", upperFirst("AlreadyUpper"))
}
