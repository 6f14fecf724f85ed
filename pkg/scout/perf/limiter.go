package perf

import (
	"fmt"
	"sync"
	"time"

	"github.com/jamesainslie/scout/pkg/scout/logging"
)

// resumeRatio is the fraction of the CPU limit a sample must fall below
// for an automatic pause to clear.
const resumeRatio = 0.8

// Limits are the thresholds a Limiter enforces.
type Limits struct {
	MemoryLimitMB          float64
	EmergencyMemoryLimitMB float64
	CPUUsageLimit          float64
	AutoPause              bool

	// AutoResume clears the pause latch once CPU drops below 80% of the limit.
	AutoResume bool
}

// Limiter evaluates samples against Limits and latches the emergency and
// paused states. Emergency never clears; pause clears via ResetPause or
// AutoResume.
type Limiter struct {
	limits Limits
	subs   subscribers[Event]
	log    *logging.Logger

	mu        sync.RWMutex
	emergency bool
	paused    bool
	current   *Sample
}

// NewLimiter creates a limiter.
func NewLimiter(limits Limits) *Limiter {
	return &Limiter{
		limits: limits,
		log:    logging.Get("perf"),
	}
}

// Subscribe registers fn for emergency, warning, pause and resume events.
func (l *Limiter) Subscribe(fn func(Event)) {
	l.subs.add(fn)
}

// Evaluate applies the thresholds in priority order: emergency memory,
// soft memory, then CPU. An emergency breach short-circuits the rest.
func (l *Limiter) Evaluate(s Sample) {
	var events []Event

	l.mu.Lock()
	l.current = &s

	switch {
	case s.MemoryMB > l.limits.EmergencyMemoryLimitMB:
		if !l.emergency {
			l.emergency = true
			events = append(events, l.event(EventEmergency, s,
				fmt.Sprintf("memory %.0fMB exceeds emergency limit %.0fMB", s.MemoryMB, l.limits.EmergencyMemoryLimitMB)))
		}

	default:
		if s.MemoryMB > l.limits.MemoryLimitMB {
			events = append(events, l.event(EventWarning, s,
				fmt.Sprintf("memory %.0fMB exceeds limit %.0fMB", s.MemoryMB, l.limits.MemoryLimitMB)))
		}

		overCPU := s.CPUPercent > l.limits.CPUUsageLimit
		switch {
		case overCPU && l.limits.AutoPause && !l.paused:
			l.paused = true
			events = append(events, l.event(EventPause, s,
				fmt.Sprintf("cpu %.1f%% exceeds limit %.1f%%", s.CPUPercent, l.limits.CPUUsageLimit)))
		case l.paused && l.limits.AutoResume && s.CPUPercent < l.limits.CPUUsageLimit*resumeRatio:
			l.paused = false
			events = append(events, l.event(EventResume, s,
				fmt.Sprintf("cpu %.1f%% back under %.1f%%", s.CPUPercent, l.limits.CPUUsageLimit*resumeRatio)))
		}
	}
	l.mu.Unlock()

	for _, ev := range events {
		l.logEvent(ev)
		l.subs.notify(ev)
	}
}

func (l *Limiter) event(kind EventKind, s Sample, reason string) Event {
	return Event{Kind: kind, Reason: reason, Time: s.Time, Sample: &s}
}

func (l *Limiter) logEvent(ev Event) {
	switch ev.Kind {
	case EventEmergency:
		l.log.Error("emergency stop triggered", "reason", ev.Reason)
	case EventWarning:
		l.log.Warn("resource warning", "reason", ev.Reason)
	case EventPause:
		l.log.Warn("admission paused", "reason", ev.Reason)
	default:
		l.log.Info("admission resumed", "reason", ev.Reason)
	}
}

// Emergency reports whether the emergency latch is set.
func (l *Limiter) Emergency() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.emergency
}

// Paused reports whether the pause latch is set.
func (l *Limiter) Paused() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.paused
}

// ResetPause clears the pause latch. The emergency latch is unaffected.
func (l *Limiter) ResetPause() {
	l.mu.Lock()
	was := l.paused
	l.paused = false
	l.mu.Unlock()

	if was {
		ev := Event{Kind: EventResume, Reason: "pause reset", Time: time.Now()}
		l.logEvent(ev)
		l.subs.notify(ev)
	}
}

// Current returns the most recently evaluated sample.
func (l *Limiter) Current() (Sample, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.current == nil {
		return Sample{}, false
	}
	return *l.current, true
}
