package scanner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrInvalidRequest is returned when scan parameters are out of bounds.
var ErrInvalidRequest = errors.New("invalid scan request")

// Target is a single host:port pair handed to a Prober.
type Target struct {
	Host string
	Port uint16
}

// Address returns the dialable "host:port" form of the target.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(int(t.Port)))
}

// Scanner runs connect scans with a fixed pool of workers.
type Scanner struct {
	prober   Prober
	observer Observer
}

// New creates a Scanner. A nil prober falls back to TCPProber and a nil
// observer discards outcomes.
func New(prober Prober, observer Observer) *Scanner {
	if prober == nil {
		prober = TCPProber{}
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Scanner{prober: prober, observer: observer}
}

// Scan probes ports on host with the default TCP prober.
func Scan(ctx context.Context, host string, ports []uint16, workers int, timeout time.Duration) ([]uint16, error) {
	return New(nil, nil).Scan(ctx, host, ports, workers, timeout)
}

// Scan probes every port on host exactly once using workers concurrent
// goroutines and returns the open ports in ascending order.
//
// Closed and failed probes never abort the scan. Cancelling ctx stops workers
// from pulling further ports; probes already in flight run to completion and
// the partial result is discarded.
func (s *Scanner) Scan(ctx context.Context, host string, ports []uint16, workers int, timeout time.Duration) ([]uint16, error) {
	if err := ValidateRequest(ports, workers, timeout); err != nil {
		return nil, err
	}

	queue := loadQueue(ports)
	open := &openSet{}

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			return s.work(ctx, host, queue, open, timeout)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return open.sorted(), nil
}

// work drains the queue until it is empty or ctx is done.
func (s *Scanner) work(ctx context.Context, host string, queue <-chan uint16, open *openSet, timeout time.Duration) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		port, ok := <-queue
		if !ok {
			return nil
		}

		target := Target{Host: host, Port: port}
		outcome := s.prober.Probe(target, timeout)
		if outcome.State == StateOpen {
			open.add(port)
		}
		s.observer.Observe(target, outcome)
	}
}

// loadQueue returns a closed channel holding each distinct port once. A
// receive on it either yields a port to exactly one worker or reports empty.
func loadQueue(ports []uint16) <-chan uint16 {
	queue := make(chan uint16, len(ports))
	seen := make(map[uint16]struct{}, len(ports))
	for _, p := range ports {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		queue <- p
	}
	close(queue)
	return queue
}

// openSet collects open ports reported by concurrent workers.
type openSet struct {
	mu    sync.Mutex
	ports []uint16
}

func (o *openSet) add(port uint16) {
	o.mu.Lock()
	o.ports = append(o.ports, port)
	o.mu.Unlock()
}

// sorted must only be called once every worker has returned.
func (o *openSet) sorted() []uint16 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := slices.Clone(o.ports)
	if out == nil {
		out = []uint16{}
	}
	slices.Sort(out)
	return out
}

// ValidateRequest checks the preconditions of Scan.
func ValidateRequest(ports []uint16, workers int, timeout time.Duration) error {
	if len(ports) == 0 {
		return fmt.Errorf("%w: no ports to scan", ErrInvalidRequest)
	}
	for _, p := range ports {
		if p == 0 {
			return fmt.Errorf("%w: port 0 is not scannable", ErrInvalidRequest)
		}
	}
	if workers < 1 {
		return fmt.Errorf("%w: worker count must be at least 1, got %d", ErrInvalidRequest, workers)
	}
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidRequest, timeout)
	}
	return nil
}
