package docstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/Pratik1445/skillfolio/internal/database"
	"github.com/Pratik1445/skillfolio/internal/docstore"
	"github.com/Pratik1445/skillfolio/internal/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSubscribeDeliversInitialAndChanges(t *testing.T) {
	ctx := context.Background()
	coll := newTestStore(t).Collection("communities", "1", "messages")

	_, err := coll.Add(ctx, docstore.Fields{"text": "first"})
	require.NoError(t, err)

	snapshots := make(chan []docstore.Snapshot, 16)
	unsubscribe, err := coll.Subscribe(ctx,
		docstore.Query{Orders: []docstore.Order{docstore.OrderBy("createdAt", docstore.Desc)}, Limit: 100},
		func(snaps []docstore.Snapshot) { snapshots <- snaps },
		func(err error) { t.Errorf("unexpected subscription error: %v", err) },
	)
	require.NoError(t, err)
	defer unsubscribe()

	select {
	case snaps := <-snapshots:
		assert.Len(t, snaps, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	_, err = coll.Add(ctx, docstore.Fields{"text": "second"})
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snaps := <-snapshots:
			if len(snaps) == 2 {
				return
			}
		case <-deadline:
			t.Fatal("change was not delivered")
		}
	}
}

func TestUnsubscribeStopsDeliveries(t *testing.T) {
	ctx := context.Background()
	coll := newTestStore(t).Collection("communities", "1", "presence")

	snapshots := make(chan []docstore.Snapshot, 16)
	unsubscribe, err := coll.Subscribe(ctx, docstore.Query{},
		func(snaps []docstore.Snapshot) { snapshots <- snaps },
		func(err error) {},
	)
	require.NoError(t, err)

	<-snapshots
	unsubscribe()
	unsubscribe()

	require.NoError(t, coll.Set(ctx, "u1", docstore.Fields{"online": true}))

	select {
	case <-snapshots:
		t.Fatal("delivery after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLocalChangefeedCoalesces(t *testing.T) {
	ctx := context.Background()
	feed := docstore.NewLocalChangefeed()

	signals, stop, err := feed.Listen(ctx, "docs:x")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, feed.Publish(ctx, "docs:x"))
	}
	require.NoError(t, feed.Publish(ctx, "docs:other"))

	<-signals
	select {
	case <-signals:
		t.Fatal("pending signals should coalesce into one")
	default:
	}

	stop()
	require.NoError(t, feed.Publish(ctx, "docs:x"))
	select {
	case <-signals:
		t.Fatal("signal after stop")
	default:
	}
}

// closableFeed hands every listener the same channel, closed by the test.
type closableFeed struct {
	*docstore.LocalChangefeed
	signals chan struct{}
}

func (f *closableFeed) Listen(context.Context, string) (<-chan struct{}, func(), error) {
	return f.signals, func() {}, nil
}

func TestSubscribeEndsWhenChangefeedCloses(t *testing.T) {
	ctx := context.Background()

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ids, err := snowflake.New(1)
	require.NoError(t, err)

	feed := &closableFeed{LocalChangefeed: docstore.NewLocalChangefeed(), signals: make(chan struct{}, 1)}
	coll := docstore.New(db, feed, ids, zaptest.NewLogger(t).Sugar()).Collection("communities", "1", "messages")

	snapshots := make(chan []docstore.Snapshot, 16)
	errs := make(chan error, 4)
	unsubscribe, err := coll.Subscribe(ctx, docstore.Query{},
		func(snaps []docstore.Snapshot) { snapshots <- snaps },
		func(err error) { errs <- err },
	)
	require.NoError(t, err)
	defer unsubscribe()

	<-snapshots
	close(feed.signals)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, docstore.ErrChangefeedClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("closed changefeed was not reported")
	}

	_, err = coll.Add(ctx, docstore.Fields{"text": "late"})
	require.NoError(t, err)

	select {
	case <-snapshots:
		t.Fatal("delivery after the subscription failed")
	case err := <-errs:
		t.Fatalf("error reported twice: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeReportsQueryFailureOnce(t *testing.T) {
	ctx := context.Background()

	db, err := database.OpenMemory()
	require.NoError(t, err)
	ids, err := snowflake.New(1)
	require.NoError(t, err)
	coll := docstore.New(db, docstore.NewLocalChangefeed(), ids, zaptest.NewLogger(t).Sugar()).Collection("portfolios")
	require.NoError(t, db.Close())

	errs := make(chan error, 4)
	unsubscribe, err := coll.Subscribe(ctx, docstore.Query{},
		func([]docstore.Snapshot) { t.Error("snapshot from a closed database") },
		func(err error) { errs <- err },
	)
	require.NoError(t, err)
	defer unsubscribe()

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("query failure was not reported")
	}

	select {
	case err := <-errs:
		t.Fatalf("error reported twice: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}
