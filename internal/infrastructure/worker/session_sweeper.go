package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionStore drops idle verification sessions
type SessionStore interface {
	Sweep() int
}

// SessionSweeper periodically expires idle verification sessions
type SessionSweeper struct {
	interval time.Duration
	store    SessionStore
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	swept   int
	running bool
}

// NewSessionSweeper creates a sweeper running every interval
func NewSessionSweeper(interval time.Duration, store SessionStore, logger *zap.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SessionSweeper{interval: interval, store: store, logger: logger}
}

// Name implements Worker
func (s *SessionSweeper) Name() string {
	return "session-sweeper"
}

// Start implements Worker
func (s *SessionSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("session sweeper already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(runCtx, s.done)
	return nil
}

// Stop implements Worker and waits for the loop to exit
func (s *SessionSweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("Session sweeper stopped", zap.Int("swept", s.Swept()))
	return nil
}

// Swept returns how many sessions the sweeper has expired so far
func (s *SessionSweeper) Swept() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swept
}

func (s *SessionSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.store.Sweep()
			if n > 0 {
				s.mu.Lock()
				s.swept += n
				s.mu.Unlock()
				s.logger.Debug("Idle sessions expired", zap.Int("count", n))
			}
		}
	}
}
