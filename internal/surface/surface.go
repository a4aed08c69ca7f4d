// Package surface is the minimal HTTP operator control surface from
// spec §6: a handful of GET endpoints that emit mode transitions and
// demo requests into House State, plus a static HTML page at "/". It
// also advertises itself via mDNS/DNS-SD so a tablet or GUI on the
// venue LAN can find the controller without a hardcoded IP, grounded
// on the teacher's src/dns_sd.go (there announcing a KISS-TNC TCP
// service; here announcing this HTTP surface).
package surface

import (
	"context"
	"fmt"
	"net/http"
	"runtime/pprof"

	"github.com/brutella/dnssd"

	"github.com/Matt2765/halloween-control/internal/house"
	"github.com/Matt2765/halloween-control/internal/houselog"
	"github.com/Matt2765/halloween-control/internal/scene"
	"github.com/Matt2765/halloween-control/internal/sensorbus"
)

var log = houselog.For("surface")

const serviceType = "_housectl._tcp"

// indexPage is the static HTML page served at "/". It is deliberately
// minimal: the real operator-facing control panel is the local GUI,
// out of scope per spec §1; this page exists so a browser hitting the
// advertised service sees something.
const indexPage = `<!DOCTYPE html>
<html><head><title>House Control</title></head>
<body>
<h1>House Control</h1>
<p>Operator endpoints: /START /EMERGENCY_SHUTOFF /SOFT_SHUTDOWN
/Door1Open /Door1Close /Door2Open /Door2Close /ToggleHouseLights
/Demo&lt;Room&gt; /CONFIRM_SAFE /ThreadDump</p>
</body></html>
`

// Server wires the HTTP handlers to House State and the Show
// Orchestration Engine.
type Server struct {
	HS      *house.State
	Engine  *scene.Engine
	Sensors *sensorbus.Bus
	Addr    string
	Name    string

	srv    *http.Server
	safeCh chan struct{}
}

// New builds a Server; call ListenAndServe to start it.
func New(hs *house.State, eng *scene.Engine, sensors *sensorbus.Bus, addr, name string) *Server {
	return &Server{HS: hs, Engine: eng, Sensors: sensors, Addr: addr, Name: name, safeCh: make(chan struct{}, 1)}
}

// WaitForSafeWord implements supervisor.Confirmer: it blocks until an
// operator hits /CONFIRM_SAFE, the HTTP equivalent of the original's
// terminal `input() == "SAFE"` gate. The channel is buffered so a
// confirmation that arrives before this is called is not lost.
func (s *Server) WaitForSafeWord() {
	<-s.safeCh
}

// handleThreadDump is the diagnostic utility spec §4.1 calls for: the
// supervisor never force-kills a stuck room task, so an operator needs
// a way to see what every goroutine is doing. Go's own goroutine
// profile is the idiomatic equivalent of a thread dump; no pack
// dependency does this better than the standard library here.
func (s *Server) handleThreadDump(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if err := pprof.Lookup("goroutine").WriteTo(w, 1); err != nil {
		log.Warn("thread dump failed", "err", err)
	}
}

func (s *Server) handleConfirmSafe(w http.ResponseWriter, r *http.Request) {
	select {
	case s.safeCh <- struct{}{}:
	default:
	}

	ok(w, "confirmed safe")
}

func ok(w http.ResponseWriter, body string) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, body)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	ok(w, indexPage)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.Engine.StartHouse(); err != nil {
			log.Warn("START rejected", "err", err)
		}
	}()

	ok(w, "starting")
}

func (s *Server) handleEmergencyShutoff(w http.ResponseWriter, r *http.Request) {
	log.Warn("operator EMERGENCY_SHUTOFF")
	s.HS.SetMode(house.EmergencyShutoff)
	ok(w, "emergency shutoff")
}

func (s *Server) handleSoftShutdown(w http.ResponseWriter, r *http.Request) {
	log.Warn("operator SOFT_SHUTDOWN")
	s.HS.SetMode(house.SoftShutdown)
	ok(w, "soft shutdown")
}

func (s *Server) handleDoor(id int, target house.DoorState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.HS.SetTargetDoorState(id, target)
		ok(w, fmt.Sprintf("door %d -> %s", id, target))
	}
}

func (s *Server) handleToggleHouseLights(w http.ResponseWriter, r *http.Request) {
	s.HS.SetHouseLights(!s.HS.HouseLights())
	ok(w, "house lights toggled")
}

func (s *Server) handleDemo(room string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			if err := s.Engine.DemoRoom(room); err != nil {
				log.Warn("demo rejected", "room", room, "err", err)
			}
		}()

		ok(w, "demo "+room)
	}
}

// Mux builds the HTTP handler tree matching spec §6's endpoint list.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/START", s.handleStart)
	mux.HandleFunc("/EMERGENCY_SHUTOFF", s.handleEmergencyShutoff)
	mux.HandleFunc("/SOFT_SHUTDOWN", s.handleSoftShutdown)
	mux.HandleFunc("/CONFIRM_SAFE", s.handleConfirmSafe)
	mux.HandleFunc("/ThreadDump", s.handleThreadDump)
	mux.HandleFunc("/Door1Open", s.handleDoor(1, house.DoorOpen))
	mux.HandleFunc("/Door1Close", s.handleDoor(1, house.DoorClosed))
	mux.HandleFunc("/Door2Open", s.handleDoor(2, house.DoorOpen))
	mux.HandleFunc("/Door2Close", s.handleDoor(2, house.DoorClosed))
	mux.HandleFunc("/ToggleHouseLights", s.handleToggleHouseLights)

	for _, rs := range scene.Rooms {
		mux.HandleFunc("/Demo"+upperFirst(rs.Name), s.handleDemo(rs.Name))
	}

	return mux
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}

	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}

	return string(b)
}

// ListenAndServe starts the HTTP surface and blocks until it exits.
func (s *Server) ListenAndServe() error {
	s.srv = &http.Server{Addr: s.Addr, Handler: s.Mux()}

	log.Info("HTTP surface listening", "addr", s.Addr)

	return s.srv.ListenAndServe()
}

// Announce advertises the HTTP surface as a Bonjour/mDNS service,
// grounded on the teacher's dns_sd_announce: same Config/NewService/
// NewResponder/Add/Respond sequence, pointed at this HTTP port instead
// of a KISS-TNC TCP port.
func (s *Server) Announce(port int) {
	name := s.Name
	if name == "" {
		name = "House Control"
	}

	cfg := dnssd.Config{Name: name, Type: serviceType, Port: port}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		log.Error("dns-sd: failed to create service", "err", err)

		return
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		log.Error("dns-sd: failed to create responder", "err", err)

		return
	}

	if _, err := rp.Add(svc); err != nil {
		log.Error("dns-sd: failed to add service", "err", err)

		return
	}

	log.Info("dns-sd: announcing HTTP surface", "port", port, "name", name)

	go func() {
		if err := rp.Respond(context.Background()); err != nil {
			log.Error("dns-sd: responder error", "err", err)
		}
	}()
}
