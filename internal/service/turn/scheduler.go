package turn

import (
	"sort"
	"sync"
	"time"
)

// Scheduler runs delayed state transitions. Transitions are fire-and-forget; Stop
// abandons every pending one.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
	Stop()
}

// TimerScheduler runs transitions on real timers.
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[int]*time.Timer
	nextID  int
	stopped bool
}

// NewTimerScheduler returns a scheduler backed by time.AfterFunc.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[int]*time.Timer)}
}

// AfterFunc schedules fn after d. Calls after Stop are ignored.
func (s *TimerScheduler) AfterFunc(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	id := s.nextID
	s.nextID++
	s.timers[id] = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()
		if live {
			fn()
		}
	})
}

// Stop cancels all pending timers.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Pending returns the number of timers that have not fired yet.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// ImmediateScheduler runs every transition synchronously, ignoring delays. A turn
// driven by it is complete when Send returns.
type ImmediateScheduler struct{}

// AfterFunc runs fn now.
func (ImmediateScheduler) AfterFunc(_ time.Duration, fn func()) { fn() }

// Stop is a no-op.
func (ImmediateScheduler) Stop() {}

// ManualScheduler queues transitions on a virtual clock that only moves when
// Advance is called.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	tasks   []manualTask
	stopped bool
}

type manualTask struct {
	at  time.Duration
	seq int
	fn  func()
}

// NewManualScheduler returns a scheduler at virtual time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc queues fn to run once the virtual clock reaches now+d.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.tasks = append(s.tasks, manualTask{at: s.now + d, seq: s.seq, fn: fn})
	s.seq++
}

// Advance moves the clock forward by d, running due tasks in time order. Tasks
// scheduled by running tasks are honoured if they fall inside the window.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		task, ok := s.popDue(target)
		if !ok {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = task.at
		s.mu.Unlock()
		task.fn()
	}
}

// Pending returns the number of queued tasks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop drops queued tasks and ignores new ones.
func (s *ManualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.tasks = nil
}

func (s *ManualScheduler) popDue(target time.Duration) (manualTask, bool) {
	if len(s.tasks) == 0 {
		return manualTask{}, false
	}
	sort.Slice(s.tasks, func(i, j int) bool {
		if s.tasks[i].at == s.tasks[j].at {
			return s.tasks[i].seq < s.tasks[j].seq
		}
		return s.tasks[i].at < s.tasks[j].at
	})
	if s.tasks[0].at > target {
		return manualTask{}, false
	}
	task := s.tasks[0]
	s.tasks = s.tasks[1:]
	return task, true
}
