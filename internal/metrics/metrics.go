// Package metrics defines the counters the services report into and an
// in-process recorder that backs the metrics endpoint.
package metrics

import "time"

// Recorder receives counter increments from the services. Implementations
// must be safe for concurrent use.
type Recorder interface {
	IncUserRegistered()
	IncLoginSuccess()
	IncLoginFailure()
	IncTicketIssued()
	IncTicketCancelled()
	IncTicketRedeemed()
	AddTicketsExpired(n int)
	IncStatsRefresh(source string)
	ObserveStatsRefreshDuration(d time.Duration)
}

// Snapshot is a point-in-time view of all counters.
type Snapshot struct {
	UsersRegistered          int64
	LoginSuccesses           int64
	LoginFailures            int64
	TicketsIssued            int64
	TicketsCancelled         int64
	TicketsRedeemed          int64
	TicketsExpired           int64
	StatsRefreshes           map[string]int64
	StatsRefreshSecondsTotal float64
}

// Snapshotter exposes the current counter values for rendering.
type Snapshotter interface {
	Snapshot() Snapshot
}
