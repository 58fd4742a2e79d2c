package minting

import (
	"context"
	"errors"
	"sync"

	"github.com/ecochain/platform/pkg/common/logger"
)

var ErrDispatcherStopped = errors.New("mint dispatcher stopped")

type command struct {
	req   Request
	reply chan *Summary
}

// Dispatcher serializes mint execution through a single worker goroutine, so
// ledger operations for different uploads never interleave and nonce ordering
// at the relay stays predictable. Commands accepted before Stop are drained
// before the worker exits.
type Dispatcher struct {
	orch     *Orchestrator
	commands chan command
	done     chan struct{}

	mu      sync.RWMutex
	stopped bool
}

func NewDispatcher(orch *Orchestrator, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 16
	}
	d := &Dispatcher{
		orch:     orch,
		commands: make(chan command, queueSize),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for cmd := range d.commands {
		// The worker runs under its own context: once a command is accepted,
		// an abandoned caller cannot cancel the ledger writes mid-flight.
		cmd.reply <- d.orch.Execute(context.Background(), cmd.req)
	}
	logger.Log.Info("mint dispatcher drained and stopped")
}

// Submit enqueues a mint request and blocks until the worker has executed it.
// ctx bounds only the wait for a queue slot; after acceptance the caller is
// committed to waiting for the result.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (*Summary, error) {
	d.mu.RLock()
	if d.stopped {
		d.mu.RUnlock()
		return nil, ErrDispatcherStopped
	}

	cmd := command{req: req, reply: make(chan *Summary, 1)}
	select {
	case d.commands <- cmd:
		d.mu.RUnlock()
	case <-ctx.Done():
		d.mu.RUnlock()
		return nil, ctx.Err()
	}

	return <-cmd.reply, nil
}

// Stop rejects new submissions and waits for queued commands to finish, or
// for ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.commands)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
