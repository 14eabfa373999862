package service

import (
	"context"
	"log/slog"
	"time"
)

// Attach registers a component started and stopped with background sync.
// If sync is already running the component is started immediately.
func (s *Service) Attach(l Lifecycle) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lifecycles = append(s.lifecycles, l)
	if s.running {
		l.Start()
	}
}

// StartBackgroundSync starts the loop that drains the queue and then sleeps
// for the idle interval. Calling it while running does nothing.
func (s *Service) StartBackgroundSync() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	for _, l := range s.lifecycles {
		l.Start()
	}
	go s.loop(s.stop, s.done)
	slog.Info("Background sync started", "idle_interval", s.idle)
}

// StopBackgroundSync stops the loop and waits for it to exit. An item being
// processed is finished first. Calling it while stopped does nothing.
// A concurrent StartBackgroundSync waits until the loop and every attached
// component have stopped.
func (s *Service) StopBackgroundSync() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	lifecycles := append([]Lifecycle(nil), s.lifecycles...)
	s.mu.Unlock()

	for _, l := range lifecycles {
		l.Stop()
	}
	close(stop)
	<-done
	slog.Info("Background sync stopped")
}

// IsRunning reports whether the background loop is active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	// Items in flight are never cancelled; stop is only checked between items.
	ctx := context.Background()

	for {
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, ok := s.ProcessNextQueued(ctx); !ok {
				break
			}
		}

		timer := time.NewTimer(s.idle)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}
