package schedule

import (
	"sync"
	"time"

	"github.com/bnema/collab-core/internal/ports"
)

// TimerScheduler runs cleanup tasks on real timers. Stop discards pending
// timers; tasks are never cancelled individually, because the registry's
// fire callbacks re-check their own preconditions.
type TimerScheduler struct {
	clock ports.Clock

	mu      sync.Mutex
	stopped bool
	timers  map[int]*time.Timer
	nextID  int
}

var _ ports.CleanupScheduler = (*TimerScheduler)(nil)

func NewTimerScheduler(clock ports.Clock) *TimerScheduler {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &TimerScheduler{
		clock:  clock,
		timers: map[int]*time.Timer{},
	}
}

func (s *TimerScheduler) Schedule(task ports.CleanupTask, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	delay := task.DueAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}

	id := s.nextID
	s.nextID++
	s.timers[id] = time.AfterFunc(delay, func() {
		s.forget(id)
		fire()
	})
}

func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *TimerScheduler) forget(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, id)
}
