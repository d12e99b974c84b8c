package workers

import (
	"context"
	"sync"
	"time"

	"github.com/beatwave/dashsync/internal/logger"
)

// Periodic invokes a maintenance function on a fixed interval. The function
// returns how many items it affected; non-zero results are logged.
type Periodic struct {
	name     string
	interval time.Duration
	fn       func() int
	logger   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPeriodic builds a periodic worker. It does not start anything; call
// Run.
func NewPeriodic(name string, interval time.Duration, fn func() int, log *logger.Logger) *Periodic {
	return &Periodic{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   log,
	}
}

// Run starts the ticker goroutine. Calling Run on a running worker is a
// no-op.
func (p *Periodic) Run() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if affected := p.fn(); affected > 0 {
					p.logger.Debug().
						Str("worker", p.name).
						Int("affected", affected).
						Msg("periodic sweep")
				}
			}
		}
	}()
}

// Stop cancels the ticker goroutine and waits for it to exit.
func (p *Periodic) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}
