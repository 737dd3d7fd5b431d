// Package schedule provides cancellable delayed tasks over a swappable clock.
package schedule

import (
	"sort"
	"sync"
	"time"
)

// Task is a handle to a scheduled call. Stop reports whether it prevented the call.
type Task interface {
	Stop() bool
}

type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Task
}

type realScheduler struct{}

// Real schedules on the process clock.
func Real() Scheduler { return realScheduler{} }

func (realScheduler) Now() time.Time { return time.Now() }

func (realScheduler) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

// Fake is a manually advanced clock for tests. Tasks run synchronously inside Advance, in due
// order, with the clock set to their due time.
type Fake struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*fakeTask
}

type fakeTask struct {
	fake    *Fake
	due     time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fake) AfterFunc(d time.Duration, f func()) Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTask{fake: c, due: c.now.Add(d), seq: c.seq, f: f}
	c.tasks = append(c.tasks, t)
	return t
}

// Advance moves the clock forward by d, running every task that falls due on the way,
// including tasks scheduled by the tasks it runs.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		t := c.popDue(target)
		if t == nil {
			break
		}
		t.f()
	}

	c.mu.Lock()
	if c.now.Before(target) {
		c.now = target
	}
	c.mu.Unlock()
}

// Pending counts scheduled tasks that have neither fired nor been stopped.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

func (c *Fake) popDue(target time.Time) *fakeTask {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tasks) == 0 {
		return nil
	}
	sort.SliceStable(c.tasks, func(i, j int) bool {
		if c.tasks[i].due.Equal(c.tasks[j].due) {
			return c.tasks[i].seq < c.tasks[j].seq
		}
		return c.tasks[i].due.Before(c.tasks[j].due)
	})
	next := c.tasks[0]
	if next.due.After(target) {
		return nil
	}
	c.tasks = c.tasks[1:]
	next.fired = true
	if next.due.After(c.now) {
		c.now = next.due
	}
	return next
}

func (t *fakeTask) Stop() bool {
	c := t.fake
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	for i, other := range c.tasks {
		if other == t {
			c.tasks = append(c.tasks[:i], c.tasks[i+1:]...)
			break
		}
	}
	return true
}
