package scanner

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Observer is notified of every probe outcome. Observe is called from worker
// goroutines and must return quickly; it cannot change scan results.
type Observer interface {
	Observe(target Target, outcome Outcome)
}

// NopObserver discards outcomes.
type NopObserver struct{}

func (NopObserver) Observe(Target, Outcome) {}

// MultiObserver fans outcomes out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) Observe(target Target, outcome Outcome) {
	for _, o := range m {
		o.Observe(target, outcome)
	}
}

// Tally counts outcomes by class.
type Tally struct {
	open      atomic.Int64
	closed    atomic.Int64
	timeouts  atomic.Int64
	transport atomic.Int64
}

func (t *Tally) Observe(_ Target, outcome Outcome) {
	switch {
	case outcome.State == StateOpen:
		t.open.Add(1)
	case outcome.State == StateClosed:
		t.closed.Add(1)
	case outcome.Reason == ReasonTimeout:
		t.timeouts.Add(1)
	default:
		t.transport.Add(1)
	}
}

// Summary is a point-in-time copy of a Tally.
type Summary struct {
	Open      int64 `json:"open"`
	Closed    int64 `json:"closed"`
	Timeouts  int64 `json:"timeouts"`
	Transport int64 `json:"transport_errors"`
}

// Total returns the number of probes counted.
func (s Summary) Total() int64 {
	return s.Open + s.Closed + s.Timeouts + s.Transport
}

func (t *Tally) Summary() Summary {
	return Summary{
		Open:      t.open.Load(),
		Closed:    t.closed.Load(),
		Timeouts:  t.timeouts.Load(),
		Transport: t.transport.Load(),
	}
}

type observation struct {
	target  Target
	outcome Outcome
}

// LogObserver writes outcomes to a slog logger from a background goroutine.
// Observe never blocks: when the buffer is full the outcome is dropped and
// counted.
type LogObserver struct {
	logger  *slog.Logger
	events  chan observation
	done    chan struct{}
	dropped atomic.Int64
	once    sync.Once
}

// NewLogObserver starts the writer goroutine. Close must be called to flush
// buffered outcomes and stop it.
func NewLogObserver(logger *slog.Logger, buffer int) *LogObserver {
	if buffer < 1 {
		buffer = 1
	}
	o := &LogObserver{
		logger: logger,
		events: make(chan observation, buffer),
		done:   make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *LogObserver) Observe(target Target, outcome Outcome) {
	select {
	case o.events <- observation{target: target, outcome: outcome}:
	default:
		o.dropped.Add(1)
	}
}

// Dropped returns the number of outcomes discarded because the buffer was full.
func (o *LogObserver) Dropped() int64 {
	return o.dropped.Load()
}

// Close flushes pending outcomes. Observe must not be called after Close.
func (o *LogObserver) Close() {
	o.once.Do(func() {
		close(o.events)
		<-o.done
		if n := o.dropped.Load(); n > 0 {
			o.logger.Warn("probe outcomes dropped from log", "count", n)
		}
	})
}

func (o *LogObserver) run() {
	defer close(o.done)
	for ev := range o.events {
		switch ev.outcome.State {
		case StateOpen:
			o.logger.Info("port open", "host", ev.target.Host, "port", ev.target.Port)
		case StateClosed:
			o.logger.Debug("port closed", "host", ev.target.Host, "port", ev.target.Port)
		default:
			o.logger.Error("probe failed",
				"host", ev.target.Host,
				"port", ev.target.Port,
				"reason", string(ev.outcome.Reason),
				"error", ev.outcome.Err,
			)
		}
	}
}
