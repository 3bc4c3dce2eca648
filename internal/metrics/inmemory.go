package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// InMemory is an atomic-counter Recorder. One instance lives for the
// lifetime of the process and feeds the metrics endpoint.
type InMemory struct {
	usersRegistered  atomic.Int64
	loginSuccesses   atomic.Int64
	loginFailures    atomic.Int64
	ticketsIssued    atomic.Int64
	ticketsCancelled atomic.Int64
	ticketsRedeemed  atomic.Int64
	ticketsExpired   atomic.Int64

	refreshSecondsBits atomic.Uint64

	mu             sync.Mutex
	statsRefreshes map[string]int64
}

// NewInMemory creates a zeroed recorder.
func NewInMemory() *InMemory {
	return &InMemory{statsRefreshes: make(map[string]int64)}
}

func (m *InMemory) IncUserRegistered()  { m.usersRegistered.Add(1) }
func (m *InMemory) IncLoginSuccess()    { m.loginSuccesses.Add(1) }
func (m *InMemory) IncLoginFailure()    { m.loginFailures.Add(1) }
func (m *InMemory) IncTicketIssued()    { m.ticketsIssued.Add(1) }
func (m *InMemory) IncTicketCancelled() { m.ticketsCancelled.Add(1) }
func (m *InMemory) IncTicketRedeemed()  { m.ticketsRedeemed.Add(1) }

func (m *InMemory) AddTicketsExpired(n int) {
	if n > 0 {
		m.ticketsExpired.Add(int64(n))
	}
}

func (m *InMemory) IncStatsRefresh(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsRefreshes[source]++
}

func (m *InMemory) ObserveStatsRefreshDuration(d time.Duration) {
	for {
		old := m.refreshSecondsBits.Load()
		next := math.Float64bits(math.Float64frombits(old) + d.Seconds())
		if m.refreshSecondsBits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Snapshot returns a copy of all counters.
func (m *InMemory) Snapshot() Snapshot {
	m.mu.Lock()
	refreshes := make(map[string]int64, len(m.statsRefreshes))
	for k, v := range m.statsRefreshes {
		refreshes[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		UsersRegistered:          m.usersRegistered.Load(),
		LoginSuccesses:           m.loginSuccesses.Load(),
		LoginFailures:            m.loginFailures.Load(),
		TicketsIssued:            m.ticketsIssued.Load(),
		TicketsCancelled:         m.ticketsCancelled.Load(),
		TicketsRedeemed:          m.ticketsRedeemed.Load(),
		TicketsExpired:           m.ticketsExpired.Load(),
		StatsRefreshes:           refreshes,
		StatsRefreshSecondsTotal: math.Float64frombits(m.refreshSecondsBits.Load()),
	}
}
