package tasks_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Pratik1445/skillfolio/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTaskOutlivesCaller(t *testing.T) {
	tracker := tasks.New(8, zaptest.NewLogger(t).Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	var sawCancel bool

	tracker.Go(ctx, "send message", func(ctx context.Context) error {
		<-release
		sawCancel = ctx.Err() != nil
		return nil
	})

	cancel()
	close(release)
	tracker.Wait()

	assert.False(t, sawCancel, "task context must not follow the caller's cancellation")
	recent := tracker.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, "send message", recent[0].Name)
	assert.Empty(t, recent[0].Error)
	assert.Equal(t, 0, tracker.Running())
}

func TestTaskFailuresAreRecorded(t *testing.T) {
	tracker := tasks.New(8, zaptest.NewLogger(t).Sugar())

	tracker.Go(context.Background(), "fails", func(context.Context) error { return errors.New("disk full") })
	tracker.Go(context.Background(), "panics", func(context.Context) error { panic("boom") })
	tracker.Wait()

	errs := map[string]string{}
	for _, o := range tracker.Recent() {
		errs[o.Name] = o.Error
	}
	assert.Equal(t, "disk full", errs["fails"])
	assert.Equal(t, "panic: boom", errs["panics"])
}

func TestLogIsBounded(t *testing.T) {
	tracker := tasks.New(3, zaptest.NewLogger(t).Sugar())

	for i := 0; i < 5; i++ {
		tracker.Go(context.Background(), fmt.Sprintf("task %d", i), func(context.Context) error { return nil })
		tracker.Wait()
	}

	var names []string
	for _, o := range tracker.Recent() {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"task 2", "task 3", "task 4"}, names)
}
