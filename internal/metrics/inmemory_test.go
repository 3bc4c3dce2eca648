package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestInMemory_Counters(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncUserRegistered()
	m.IncLoginSuccess()
	m.IncLoginFailure()
	m.IncLoginFailure()
	m.IncTicketIssued()
	m.IncTicketCancelled()
	m.IncTicketRedeemed()
	m.AddTicketsExpired(3)
	m.AddTicketsExpired(0)
	m.IncStatsRefresh("remote")
	m.IncStatsRefresh("local")
	m.IncStatsRefresh("remote")
	m.ObserveStatsRefreshDuration(250 * time.Millisecond)
	m.ObserveStatsRefreshDuration(250 * time.Millisecond)

	s := m.Snapshot()
	if s.UsersRegistered != 1 || s.LoginSuccesses != 1 || s.LoginFailures != 2 {
		t.Errorf("identity counters wrong: %+v", s)
	}
	if s.TicketsIssued != 1 || s.TicketsCancelled != 1 || s.TicketsRedeemed != 1 || s.TicketsExpired != 3 {
		t.Errorf("ticket counters wrong: %+v", s)
	}
	if s.StatsRefreshes["remote"] != 2 || s.StatsRefreshes["local"] != 1 {
		t.Errorf("refresh counters wrong: %+v", s.StatsRefreshes)
	}
	if s.StatsRefreshSecondsTotal < 0.49 || s.StatsRefreshSecondsTotal > 0.51 {
		t.Errorf("refresh seconds = %f, want 0.5", s.StatsRefreshSecondsTotal)
	}
}

func TestInMemory_ConcurrentIncrements(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncTicketIssued()
			m.IncStatsRefresh("remote")
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	if s.TicketsIssued != 50 {
		t.Errorf("TicketsIssued = %d, want 50", s.TicketsIssued)
	}
	if s.StatsRefreshes["remote"] != 50 {
		t.Errorf("StatsRefreshes[remote] = %d, want 50", s.StatsRefreshes["remote"])
	}
}
