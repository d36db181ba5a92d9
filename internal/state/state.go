// Package state provides thread-safe state management for the application.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/litescript/ls-orrery/internal/ephem"
)

// EventType represents the type of state change event.
type EventType string

const (
	EventTargetLoaded    EventType = "TARGET_LOADED"
	EventTargetFailed    EventType = "TARGET_FAILED"
	EventTargetRecovered EventType = "TARGET_RECOVERED"
)

// Event represents a change in a target's data availability.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Target    ephem.TargetID `json:"target"`
	Samples   int            `json:"samples,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Dataset is one fully built set of trajectories. It is never modified after
// it has been published.
type Dataset struct {
	Window       ephem.Window
	FetchedAt    time.Time
	Trajectories map[ephem.TargetID]ephem.Trajectory
	Errors       map[ephem.TargetID]error
}

// NewDataset builds a dataset from fetch results. Failed targets keep their
// (empty) trajectory so lookups fall through to the propagator.
func NewDataset(results []ephem.FetchResult, w ephem.Window, fetchedAt time.Time) *Dataset {
	ds := &Dataset{
		Window:       w,
		FetchedAt:    fetchedAt,
		Trajectories: make(map[ephem.TargetID]ephem.Trajectory, len(results)),
		Errors:       make(map[ephem.TargetID]error),
	}
	for _, r := range results {
		ds.Trajectories[r.Target] = r.Trajectory
		if r.Err != nil {
			ds.Errors[r.Target] = r.Err
		}
	}
	return ds
}

// Targets returns the dataset's target IDs in ascending order.
func (d *Dataset) Targets() []ephem.TargetID {
	if d == nil {
		return nil
	}
	ids := make([]ephem.TargetID, 0, len(d.Trajectories))
	for id := range d.Trajectories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Frames returns the largest sample count across trajectories.
func (d *Dataset) Frames() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, t := range d.Trajectories {
		n = max(n, t.Len())
	}
	return n
}

// Manager handles all shared application state with thread-safe access.
type Manager struct {
	mu sync.RWMutex

	// Current state
	current       *Dataset
	lastFetch     time.Time
	lastError     error
	fetchDuration time.Duration

	// Per-target failure state for event detection
	failing map[ephem.TargetID]bool

	// Event log (ring buffer)
	events       []Event
	maxEvents    int
	eventWriteAt int

	// Configuration
	refreshInterval time.Duration
}

// Config holds configuration for the state manager.
type Config struct {
	MaxEvents       int
	RefreshInterval time.Duration
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		MaxEvents:       50,
		RefreshInterval: time.Hour, // vectors are cached for 6h upstream
	}
}

// NewManager creates a new state manager.
func NewManager(cfg Config) *Manager {
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 50
	}
	return &Manager{
		maxEvents:       maxEvents,
		events:          make([]Event, 0, maxEvents),
		refreshInterval: cfg.RefreshInterval,
		failing:         make(map[ephem.TargetID]bool),
	}
}

// Update publishes a new dataset. A nil dataset only records the fetch
// status and keeps the previous data.
func (m *Manager) Update(ds *Dataset, fetchDuration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastFetch = time.Now()
	m.lastError = err
	m.fetchDuration = fetchDuration

	if ds == nil {
		return
	}

	m.detectEvents(ds)
	m.current = ds
}

// detectEvents compares the new dataset with the previous one.
func (m *Manager) detectEvents(ds *Dataset) {
	now := time.Now()

	for _, id := range ds.Targets() {
		traj := ds.Trajectories[id]
		fetchErr, failed := ds.Errors[id]

		var prevSamples int
		hadPrev := false
		if m.current != nil {
			if prev, ok := m.current.Trajectories[id]; ok {
				prevSamples = prev.UsableCount()
				hadPrev = true
			}
		}

		switch {
		case failed && !m.failing[id]:
			m.failing[id] = true
			m.addEvent(Event{Type: EventTargetFailed, Timestamp: now, Target: id, Error: fetchErr.Error()})
		case !failed && m.failing[id]:
			delete(m.failing, id)
			m.addEvent(Event{Type: EventTargetRecovered, Timestamp: now, Target: id, Samples: traj.Len()})
		case !failed && (!hadPrev || prevSamples == 0) && traj.UsableCount() > 0:
			m.addEvent(Event{Type: EventTargetLoaded, Timestamp: now, Target: id, Samples: traj.Len()})
		}
	}
}

// addEvent adds an event to the ring buffer.
func (m *Manager) addEvent(e Event) {
	if len(m.events) < m.maxEvents {
		m.events = append(m.events, e)
	} else {
		m.events[m.eventWriteAt] = e
		m.eventWriteAt = (m.eventWriteAt + 1) % m.maxEvents
	}
}

// Snapshot represents a consistent view of current state. Data is shared
// and must be treated as read-only.
type Snapshot struct {
	Data          *Dataset
	LastFetch     time.Time
	LastError     error
	FetchDuration time.Duration
	Events        []Event
}

// Snapshot returns a consistent snapshot of current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{
		Data:          m.current,
		LastFetch:     m.lastFetch,
		LastError:     m.lastError,
		FetchDuration: m.fetchDuration,
		Events:        m.getEventsOrdered(),
	}
}

// Trajectory returns the published trajectory for id. It satisfies
// position.TrajectorySource.
func (m *Manager) Trajectory(id ephem.TargetID) (ephem.Trajectory, bool) {
	m.mu.RLock()
	ds := m.current
	m.mu.RUnlock()

	if ds == nil {
		return ephem.Trajectory{}, false
	}
	t, ok := ds.Trajectories[id]
	return t, ok
}

// getEventsOrdered returns events in chronological order.
func (m *Manager) getEventsOrdered() []Event {
	if len(m.events) == 0 {
		return nil
	}

	// If buffer isn't full yet, just copy
	if len(m.events) < m.maxEvents {
		result := make([]Event, len(m.events))
		copy(result, m.events)
		return result
	}

	// Ring buffer is full, reorder from oldest to newest
	result := make([]Event, m.maxEvents)
	for i := 0; i < m.maxEvents; i++ {
		idx := (m.eventWriteAt + i) % m.maxEvents
		result[i] = m.events[idx]
	}
	return result
}

// RefreshInterval returns the configured refresh interval.
func (m *Manager) RefreshInterval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshInterval
}
