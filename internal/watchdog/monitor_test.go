package watchdog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/f1re/watchdog/internal/types"
)

func TestNewMonitor(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		wantWindow int
	}{
		{name: "default window", size: 0, wantWindow: 500},
		{name: "custom window", size: 50, wantWindow: 50},
		{name: "negative window uses default", size: -10, wantWindow: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(tt.size)
			if m.windowSize != tt.wantWindow {
				t.Errorf("window size = %d, want %d", m.windowSize, tt.wantWindow)
			}
			if len(m.transitions) != 0 {
				t.Errorf("initial transitions = %d, want 0", len(m.transitions))
			}
		})
	}
}

func TestMonitor_WindowEvictsOldest(t *testing.T) {
	m := NewMonitor(3)
	for i := 0; i < 5; i++ {
		m.Record(Transition{Service: "api", Reason: fmt.Sprintf("t%d", i)})
	}

	got := m.Recent(10)
	if len(got) != 3 {
		t.Fatalf("got %d transitions, want 3", len(got))
	}
	for i, want := range []string{"t2", "t3", "t4"} {
		if got[i].Reason != want {
			t.Errorf("transition %d = %q, want %q", i, got[i].Reason, want)
		}
	}
	if got[0].Timestamp.IsZero() {
		t.Error("Record should stamp a zero timestamp")
	}
}

func TestMonitor_Recent(t *testing.T) {
	m := NewMonitor(10)
	if got := m.Recent(5); got != nil {
		t.Errorf("empty monitor returned %v", got)
	}
	for i := 0; i < 4; i++ {
		m.Record(Transition{Service: "api", FailureCount: i})
	}
	if got := m.Recent(0); got != nil {
		t.Errorf("Recent(0) = %v, want nil", got)
	}
	got := m.Recent(2)
	if len(got) != 2 || got[0].FailureCount != 2 || got[1].FailureCount != 3 {
		t.Errorf("Recent(2) = %+v", got)
	}

	// the returned slice is a copy
	got[0].Reason = "mutated"
	if m.Recent(2)[0].Reason == "mutated" {
		t.Error("Recent exposed internal storage")
	}
}

func TestMonitor_Filters(t *testing.T) {
	m := NewMonitor(10)
	m.Record(Transition{Service: "api", EpisodeID: "e1", To: types.PhaseProbing})
	m.Record(Transition{Service: "db", EpisodeID: "e2", To: types.PhaseProbing})
	m.Record(Transition{Service: "api", EpisodeID: "e1", To: types.PhaseRestarting})
	m.Record(Transition{Service: "api", EpisodeID: "", To: types.PhaseHealthy})

	if got := len(m.ForService("api")); got != 3 {
		t.Errorf("ForService(api) = %d, want 3", got)
	}
	if got := len(m.ForService("cache")); got != 0 {
		t.Errorf("ForService(cache) = %d, want 0", got)
	}
	if got := len(m.ForEpisode("e1")); got != 2 {
		t.Errorf("ForEpisode(e1) = %d, want 2", got)
	}

	m.Clear()
	if got := len(m.Recent(10)); got != 0 {
		t.Errorf("after Clear got %d transitions", got)
	}
}

func TestMonitor_ConcurrentRecord(t *testing.T) {
	m := NewMonitor(1000)
	var wg sync.WaitGroup
	for s := 0; s < 4; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.Record(Transition{Service: fmt.Sprintf("svc-%d", s)})
				_ = m.Recent(5)
			}
		}(s)
	}
	wg.Wait()

	if got := len(m.Recent(1000)); got != 400 {
		t.Errorf("got %d transitions, want 400", got)
	}
}
