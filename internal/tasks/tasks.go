// Package tasks runs writes that must outlive the request or view that
// started them, and remembers how the most recent ones ended.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

type Outcome struct {
	Name     string        `json:"name"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

type Tracker struct {
	sugar   *zap.SugaredLogger
	timeout time.Duration

	mutex   sync.Mutex
	log     []Outcome
	next    int
	running int

	wg sync.WaitGroup
}

// New keeps the outcomes of the last size tasks.
func New(size int, sugar *zap.SugaredLogger) *Tracker {
	if size <= 0 {
		size = 1
	}
	return &Tracker{
		sugar:   sugar,
		timeout: DefaultTimeout,
		log:     make([]Outcome, 0, size),
	}
}

// Go runs fn in its own goroutine. fn keeps the values of ctx but not its
// cancellation, so closing whatever started it does not abort the write.
// Failures are logged and recorded, never returned.
func (t *Tracker) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)

	t.mutex.Lock()
	t.running++
	t.mutex.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()

		started := time.Now()
		err := run(detached, fn)
		finished := time.Now()

		outcome := Outcome{
			Name:     name,
			Started:  started,
			Finished: finished,
			Duration: finished.Sub(started),
		}
		if err != nil {
			outcome.Error = err.Error()
			t.sugar.Errorf("Task %s failed: %v", name, err)
		} else {
			t.sugar.Debugf("Task %s finished in %s", name, outcome.Duration)
		}

		t.record(outcome)
	}()
}

func run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

func (t *Tracker) record(outcome Outcome) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.running--
	if len(t.log) < cap(t.log) {
		t.log = append(t.log, outcome)
		return
	}
	t.log[t.next] = outcome
	t.next = (t.next + 1) % len(t.log)
}

// Recent returns the remembered outcomes, oldest first.
func (t *Tracker) Recent() []Outcome {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	outcomes := make([]Outcome, 0, len(t.log))
	outcomes = append(outcomes, t.log[t.next:]...)
	outcomes = append(outcomes, t.log[:t.next]...)
	return outcomes
}

func (t *Tracker) Running() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.running
}

// Wait blocks until every started task has finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
