package docstore

import (
	"context"
	"errors"
	"sync"
)

var ErrChangefeedClosed = errors.New("changefeed closed")

// Subscribe runs q now and again after every committed change to the
// collection, handing each full result set to onSnapshot. Deliveries come
// from a single goroutine, in order. A failed query is reported once through
// onError and ends the subscription; there is no retry.
//
// The returned function unsubscribes and waits for an in-progress delivery
// to return, so it must not be called from inside the callbacks.
func (c *Collection) Subscribe(ctx context.Context, q Query, onSnapshot func([]Snapshot), onError func(error)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	signals, stop, err := c.store.feed.Listen(ctx, topic(c.path))
	if err != nil {
		cancel()
		return nil, err
	}

	c.store.sugar.Debugf("Subscribed to collection %s", c.path)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer stop()

		for {
			snaps, err := c.Query(ctx, q)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				onError(err)
				return
			}
			onSnapshot(snaps)

			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					if ctx.Err() == nil {
						onError(ErrChangefeedClosed)
					}
					return
				}
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			<-done
			c.store.sugar.Debugf("Unsubscribed from collection %s", c.path)
		})
	}
	return unsubscribe, nil
}
