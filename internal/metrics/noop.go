package metrics

import "time"

// Noop discards every observation. Handy default for tests and tools.
type Noop struct{}

func (Noop) IncUserRegistered()                        {}
func (Noop) IncLoginSuccess()                          {}
func (Noop) IncLoginFailure()                          {}
func (Noop) IncTicketIssued()                          {}
func (Noop) IncTicketCancelled()                       {}
func (Noop) IncTicketRedeemed()                        {}
func (Noop) AddTicketsExpired(int)                     {}
func (Noop) IncStatsRefresh(string)                    {}
func (Noop) ObserveStatsRefreshDuration(time.Duration) {}
