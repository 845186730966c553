package watchdog

import (
	"sync"
	"time"

	"github.com/f1re/watchdog/internal/types"
)

// Transition is one phase change of one service
type Transition struct {
	Service      string
	EpisodeID    string
	From         types.Phase
	To           types.Phase
	FailureCount int
	Reason       string
	Timestamp    time.Time
}

// Monitor keeps a sliding window of recent transitions across all services.
// It is shared by every controller and safe for concurrent use.
type Monitor struct {
	mu sync.RWMutex

	// transitions is bounded by windowSize, oldest first
	transitions []Transition
	windowSize  int
}

// NewMonitor creates a monitor keeping the last windowSize transitions
// (default 500)
func NewMonitor(windowSize int) *Monitor {
	if windowSize <= 0 {
		windowSize = 500
	}
	return &Monitor{
		transitions: make([]Transition, 0, windowSize),
		windowSize:  windowSize,
	}
}

// Record appends a transition, evicting the oldest when the window is full
func (m *Monitor) Record(t Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	m.transitions = append(m.transitions, t)
	if len(m.transitions) > m.windowSize {
		copy(m.transitions, m.transitions[len(m.transitions)-m.windowSize:])
		m.transitions = m.transitions[:m.windowSize]
	}
}

// Recent returns the last n transitions, oldest first
func (m *Monitor) Recent(n int) []Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || len(m.transitions) == 0 {
		return nil
	}
	start := len(m.transitions) - n
	if start < 0 {
		start = 0
	}
	return append([]Transition(nil), m.transitions[start:]...)
}

// ForService returns the retained transitions of one service, oldest first
func (m *Monitor) ForService(service string) []Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Transition
	for _, t := range m.transitions {
		if t.Service == service {
			result = append(result, t)
		}
	}
	return result
}

// ForEpisode returns the retained transitions of one episode, oldest first
func (m *Monitor) ForEpisode(episodeID string) []Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Transition
	for _, t := range m.transitions {
		if t.EpisodeID == episodeID {
			result = append(result, t)
		}
	}
	return result
}

// Clear drops all retained transitions
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = make([]Transition, 0, m.windowSize)
}
