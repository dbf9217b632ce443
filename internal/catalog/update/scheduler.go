package update

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// schedule is one armed source timer.
type schedule struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// ScheduleAutoUpdates arms a timer per registered source that refreshes it
// whenever its interval elapses. Sources already scheduled or without an
// interval are left alone. It returns how many timers were armed.
//
// Timers stop when ctx is cancelled or via Cancel and CancelAll.
func (o *Orchestrator) ScheduleAutoUpdates(ctx context.Context) int {
	o.schedMu.Lock()
	defer o.schedMu.Unlock()

	armed := 0
	for _, s := range o.deps.Registry.List() {
		if _, ok := o.schedules[s.ID]; ok {
			continue
		}
		if s.RefreshInterval <= 0 {
			o.logger.Warn("source has no refresh interval, not scheduled", "source", s.ID)
			continue
		}

		sctx, cancel := context.WithCancel(ctx)
		sch := &schedule{cancel: cancel, done: make(chan struct{})}
		o.schedules[s.ID] = sch
		go o.runSchedule(sctx, s.ID, s.RefreshInterval, sch.done)
		armed++
	}

	o.logger.Info("auto updates scheduled", "armed", armed)
	return armed
}

// Scheduled returns the ids of sources with an armed timer, sorted.
func (o *Orchestrator) Scheduled() []string {
	o.schedMu.Lock()
	defer o.schedMu.Unlock()

	ids := make([]string, 0, len(o.schedules))
	for id := range o.schedules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Cancel stops the timer for one source and waits for an in-flight run
// to finish. It reports whether a timer was armed.
func (o *Orchestrator) Cancel(id string) bool {
	o.schedMu.Lock()
	sch, ok := o.schedules[id]
	delete(o.schedules, id)
	o.schedMu.Unlock()

	if !ok {
		return false
	}
	sch.cancel()
	<-sch.done
	o.logger.Info("auto update cancelled", "source", id)
	return true
}

// CancelAll stops every timer and waits for in-flight runs to finish.
func (o *Orchestrator) CancelAll() {
	o.schedMu.Lock()
	all := o.schedules
	o.schedules = make(map[string]*schedule)
	o.schedMu.Unlock()

	for _, sch := range all {
		sch.cancel()
	}
	for _, sch := range all {
		<-sch.done
	}
	if len(all) > 0 {
		o.logger.Info("all auto updates cancelled", "count", len(all))
	}
}

func (o *Orchestrator) runSchedule(ctx context.Context, id string, interval time.Duration, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(o.nextRun(id, interval))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		o.runScheduled(ctx, id)
		timer.Reset(o.nextRun(id, interval))
	}
}

// runScheduled refreshes one source. A panic is logged and the timer
// keeps running.
func (o *Orchestrator) runScheduled(ctx context.Context, id string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("scheduled update panicked", "source", id, "panic", fmt.Sprint(r))
		}
	}()

	// The timer already waited for the interval.
	report, err := o.UpdateSource(ctx, id, true)
	if err != nil {
		o.logger.Error("scheduled update failed", "source", id, "error", err)
		return
	}
	if res, ok := report.Sources[id]; ok && res.Status == StatusFailed {
		o.logger.Warn("scheduled update failed", "source", id, "error", res.Error)
	}
}

// nextRun returns the delay until id is due. A source that has never
// succeeded, or is still due after its last run, waits a full interval
// so a failing source is not retried in a tight loop.
func (o *Orchestrator) nextRun(id string, interval time.Duration) time.Duration {
	s, err := o.deps.Registry.Get(id)
	if err != nil || s.LastCheckedAt == nil {
		return interval
	}
	d := s.LastCheckedAt.Add(interval).Sub(o.now())
	if d <= 0 {
		return interval
	}
	return d
}
