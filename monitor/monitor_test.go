package monitor

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/quantumquest/tower"
)

type recordingSink struct {
	events []tower.Measurement
}

func (s *recordingSink) Record(m tower.Measurement) {
	s.events = append(s.events, m)
}

func TestMonitor_Gauges(t *testing.T) {
	m := NewMonitor("qq")
	m.IncOnlinePlayers()
	m.IncOnlinePlayers()
	m.DecOnlinePlayers()
	m.SetActiveRooms(3)
	m.IncMessagesReceived()
	m.ObserveMessageLatency(5 * time.Millisecond)
	m.ObserveHTTPRequest("/api/leaderboard", http.StatusOK)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Metrics().OnlinePlayers))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Metrics().ActiveRooms))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Metrics().MessagesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Metrics().HTTPRequests.WithLabelValues("/api/leaderboard", "OK")))

	// a second monitor has its own registry
	other := NewMonitor("qq")
	assert.Zero(t, testutil.ToFloat64(other.Metrics().OnlinePlayers))
}

func TestMonitor_TowerSink(t *testing.T) {
	m := NewMonitor("qq")
	next := &recordingSink{}
	sink := m.TowerSink(next)

	sink.Record(tower.Measurement{RoomID: tower.RoomID, EventType: "pad_interaction", Payload: map[string]interface{}{"outcome": "failed"}})
	sink.Record(tower.Measurement{RoomID: tower.RoomID, EventType: "decoherence", Payload: map[string]interface{}{"cause": "wrong_path"}})
	sink.Record(tower.Measurement{RoomID: tower.RoomID, EventType: "floor_completed"})
	m.ObserveTowerScore(1400)

	assert.Len(t, next.events, 3)
	metrics := m.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Steps.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Collapses.WithLabelValues("wrong_path")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FloorsSolved))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Measurements.WithLabelValues(tower.RoomID, "decoherence")))

	// nil next is allowed
	m.TowerSink(nil).Record(tower.Measurement{EventType: "floor_completed"})
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.FloorsSolved))
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor("qq")
	m.SetActiveRooms(2)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "qq_active_rooms 2")
	assert.Contains(t, string(body), "qq_uptime_seconds")
}
