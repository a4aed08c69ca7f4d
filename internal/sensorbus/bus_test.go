package sensorbus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Matt2765/halloween-control/internal/serial"
)

func testBus() *Bus {
	link := serial.Open("test-sensor-gateway", "/dev/does-not-exist", 921600)

	return New(link, Far)
}

func TestIngestSensorLine(t *testing.T) {
	b := testBus()

	var clock int64 = 1000
	b.nowFn = func() int64 { return clock }

	b.ingest(`{"rx_ms":1005,"mac":"AA:BB","data":{"id":"TOF1","seq":7,"t":1000,"vals":{"dist_mm":432}}}`)

	rec := b.Get("TOF1")
	require.NotNil(t, rec)
	assert.Equal(t, 7, rec.Seq)
	assert.Equal(t, 432.0, rec.Vals["dist_mm"])

	got := b.GetValue("TOF1", "dist_mm", -1, StaleDefault)
	assert.Equal(t, 432.0, got)
}

func TestIngestNegativeDistanceIsFarMapped(t *testing.T) {
	b := testBus()

	b.ingest(`{"rx_ms":1,"mac":"","data":{"id":"TOF2","seq":1,"t":1,"vals":{"dist_mm":-1}}}`)

	got := b.GetValue("TOF2", "dist_mm", -999, 0)
	assert.Equal(t, float64(Far), got)
}

func TestGetValueStaleReturnsDefault(t *testing.T) {
	b := testBus()

	var clock int64 = 1000
	b.nowFn = func() int64 { return clock }

	b.ingest(`{"rx_ms":1000,"mac":"","data":{"id":"TOF1","seq":1,"t":1000,"vals":{"dist_mm":100}}}`)

	clock = 2000 // 1000ms later, beyond StaleDefault (250ms)

	got := b.GetValue("TOF1", "dist_mm", -5, StaleDefault)
	assert.Equal(t, -5.0, got)
}

func TestGetLatencyMS(t *testing.T) {
	b := testBus()

	b.ingest(`{"rx_ms":1050,"mac":"","data":{"id":"TOF1","seq":1,"t":1000,"vals":{}}}`)

	lat, ok := b.GetLatencyMS("TOF1")
	require.True(t, ok)
	assert.Equal(t, int64(50), lat)
}

func TestButtonEdgeQueueAndLatestValue(t *testing.T) {
	b := testBus()

	b.ingest(`{"rx_ms":1,"mac":"","data":{"id":"BTN1","type":"button","btn":2,"pressed":true}}`)

	edge, ok := b.ButtonPop(100 * time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, "BTN1", edge.ID)
	assert.True(t, edge.Pressed)

	pressed, ok := b.GetButtonValue("BTN1", 2)
	require.True(t, ok)
	assert.True(t, pressed)

	_, ok = b.GetButtonValue("BTN1", 3)
	assert.False(t, ok)
}

func TestMalformedLineIsIgnored(t *testing.T) {
	b := testBus()

	b.ingest(`not json`)
	b.ingest(`{"data":{}}`)

	assert.Nil(t, b.Get("anything"))
}

func TestRunKeepsRunningAndDrainsTxWhileLinkUnavailable(t *testing.T) {
	b := testBus()
	b.reconnectMinBackoff = 2 * time.Millisecond
	b.reconnectMaxBackoff = 10 * time.Millisecond
	b.silenceTimeout = 20 * time.Millisecond

	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		b.Run(stop)
		close(done)
	}()

	// Give the reconnect loop several backoff cycles to spin without
	// the unavailable link ever permanently killing Run.
	time.Sleep(60 * time.Millisecond)

	select {
	case <-done:
		t.Fatal("Run returned while the sensor link was merely unavailable")
	default:
	}

	b.TXBroadcast(map[string]string{"cmd": "ping"})

	select {
	case <-done:
		t.Fatal("Run returned after a tx command was enqueued")
	case <-time.After(30 * time.Millisecond):
	}

	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stop was closed")
	}
}

func TestTXBroadcastEncodesJSONFrame(t *testing.T) {
	b := testBus()

	b.TXBroadcast(map[string]int{"v": 1})

	cmd := <-b.tx
	assert.Equal(t, `TXB {"v":1}`, cmd)
}

func TestTXToIDEncodesJSONFrame(t *testing.T) {
	b := testBus()

	b.TXToID("WSKEL1", map[string]int{"v": 2})

	cmd := <-b.tx
	assert.Equal(t, `TX WSKEL1 {"v":2}`, cmd)
}

func TestTXToMACEncodesJSONFrame(t *testing.T) {
	b := testBus()

	b.TXToMAC("AA:BB", map[string]int{"v": 3})

	cmd := <-b.tx
	assert.Equal(t, `TXMAC AA:BB {"v":3}`, cmd)
}

func TestServoClampsAngleAndIncludesOptionalRamp(t *testing.T) {
	b := testBus()

	b.Servo("WSKEL1", 250)
	cmd := <-b.tx
	assert.Equal(t, `TX WSKEL1 {"cmd":"servo","angle":180}`, cmd)

	b.Servo("WSKEL1", -10, 400)
	cmd = <-b.tx

	var decoded servoCmd
	require.NoError(t, json.Unmarshal([]byte(cmd[len("TX WSKEL1 "):]), &decoded))
	assert.Equal(t, 0, decoded.Angle)
	assert.Equal(t, 400, decoded.RampMS)
}

func TestSpritePlayAndSpriteNextEncodeTrackAndPulse(t *testing.T) {
	b := testBus()

	b.SpritePlay("WEYE1", 3)
	cmd := <-b.tx
	assert.Equal(t, `TX WEYE1 {"cmd":"sprite_play","track_n":3}`, cmd)

	b.SpriteNext("WEYE1", 250)
	cmd = <-b.tx
	assert.Equal(t, `TX WEYE1 {"cmd":"sprite_next","pulse_ms":250}`, cmd)
}
