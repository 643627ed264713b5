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

func newTestStore(t *testing.T) *docstore.Store {
	t.Helper()

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ids, err := snowflake.New(1)
	require.NoError(t, err)

	return docstore.New(db, docstore.NewLocalChangefeed(), ids, zaptest.NewLogger(t).Sugar())
}

type community struct {
	Name      string         `json:"name"`
	Members   []string       `json:"members"`
	Count     int            `json:"count"`
	CreatedAt time.Time      `json:"createdAt"`
	URLs      map[string]any `json:"submissionUrls"`
}

func TestAddAndGet(t *testing.T) {
	ctx := context.Background()
	coll := newTestStore(t).Collection("communities")

	id, err := coll.Add(ctx, docstore.Fields{
		"name":      "Web Dev",
		"members":   []string{"a"},
		"createdAt": docstore.ServerTimestamp,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snap, err := coll.Get(ctx, id)
	require.NoError(t, err)

	var c community
	require.NoError(t, snap.DataTo(&c))
	assert.Equal(t, "Web Dev", c.Name)
	assert.Equal(t, []string{"a"}, c.Members)
	assert.True(t, c.CreatedAt.Equal(snap.CreateTime), "server timestamp should equal commit time")
}

func TestGetMissing(t *testing.T) {
	_, err := newTestStore(t).Collection("communities").Get(context.Background(), "nope")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestServerTimestampsAreStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	coll := newTestStore(t).Collection("communities", "1", "messages")

	var last time.Time
	for i := 0; i < 20; i++ {
		id, err := coll.Add(ctx, docstore.Fields{"createdAt": docstore.ServerTimestamp})
		require.NoError(t, err)

		snap, err := coll.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, snap.CreateTime.After(last))
		last = snap.CreateTime
	}
}

func TestUpdateTransforms(t *testing.T) {
	ctx := context.Background()
	coll := newTestStore(t).Collection("challenges")

	id, err := coll.Add(ctx, docstore.Fields{"members": []string{}, "count": 0})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		err = coll.Update(ctx, id, docstore.Fields{
			"members":           docstore.ArrayUnion("u1"),
			"count":             docstore.Increment(1),
			"submissionUrls.u1": "http://cdn/file.pdf",
		})
		require.NoError(t, err)
	}

	snap, err := coll.Get(ctx, id)
	require.NoError(t, err)

	var c community
	require.NoError(t, snap.DataTo(&c))
	assert.Equal(t, []string{"u1"}, c.Members, "array union must not duplicate")
	assert.Equal(t, 2, c.Count)
	assert.Equal(t, "http://cdn/file.pdf", c.URLs["u1"])

	require.NoError(t, coll.Update(ctx, id, docstore.Fields{
		"members": docstore.ArrayRemove("u1"),
		"name":    docstore.DeleteField,
	}))
	snap, err = coll.Get(ctx, id)
	require.NoError(t, err)
	c = community{}
	require.NoError(t, snap.DataTo(&c))
	assert.Empty(t, c.Members)
}

func TestUpdateMissing(t *testing.T) {
	err := newTestStore(t).Collection("challenges").Update(context.Background(), "missing", docstore.Fields{"count": 1})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestSetReplaces(t *testing.T) {
	ctx := context.Background()
	coll := newTestStore(t).Collection("communities", "1", "presence")

	require.NoError(t, coll.Set(ctx, "u1", docstore.Fields{"online": true, "displayName": "Ana"}))
	require.NoError(t, coll.Set(ctx, "u1", docstore.Fields{"online": false}))

	snap, err := coll.Get(ctx, "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"online":false}`, string(snap.Data))
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	coll := newTestStore(t).Collection("portfolios")

	docs := []docstore.Fields{
		{"title": "a", "likeCount": 3, "ownerId": "u1", "tags": []string{"go"}},
		{"title": "b", "likeCount": 7, "ownerId": "u2", "tags": []string{"react"}},
		{"title": "c", "likeCount": 3, "ownerId": "u1", "tags": []string{"go", "react"}},
		{"title": "d", "likeCount": 1, "ownerId": "u3"},
	}
	for _, d := range docs {
		_, err := coll.Add(ctx, d)
		require.NoError(t, err)
	}

	titles := func(snaps []docstore.Snapshot) []string {
		var out []string
		for _, s := range snaps {
			var v struct {
				Title string `json:"title"`
			}
			require.NoError(t, s.DataTo(&v))
			out = append(out, v.Title)
		}
		return out
	}

	tests := []struct {
		name  string
		query docstore.Query
		want  []string
	}{
		{
			name:  "All in insertion order",
			query: docstore.Query{},
			want:  []string{"a", "b", "c", "d"},
		},
		{
			name:  "Equal filter",
			query: docstore.Query{Filters: []docstore.Filter{docstore.Where("ownerId", docstore.Equal, "u1")}},
			want:  []string{"a", "c"},
		},
		{
			name:  "Array contains",
			query: docstore.Query{Filters: []docstore.Filter{docstore.Where("tags", docstore.ArrayContains, "react")}},
			want:  []string{"b", "c"},
		},
		{
			name:  "Descending ties newest first",
			query: docstore.Query{Orders: []docstore.Order{docstore.OrderBy("likeCount", docstore.Desc)}},
			want:  []string{"b", "c", "a", "d"},
		},
		{
			name:  "Ascending ties oldest first",
			query: docstore.Query{Orders: []docstore.Order{docstore.OrderBy("likeCount", docstore.Asc)}},
			want:  []string{"d", "a", "c", "b"},
		},
		{
			name:  "Create time descending in sql",
			query: docstore.Query{Orders: []docstore.Order{docstore.OrderBy(docstore.CreateTime, docstore.Desc)}, Limit: 3},
			want:  []string{"d", "c", "b"},
		},
		{
			name: "Create time with filter",
			query: docstore.Query{
				Filters: []docstore.Filter{docstore.Where("ownerId", docstore.Equal, "u1")},
				Orders:  []docstore.Order{docstore.OrderBy(docstore.CreateTime, docstore.Desc)},
			},
			want: []string{"c", "a"},
		},
		{
			name: "Range filter with limit",
			query: docstore.Query{
				Filters: []docstore.Filter{docstore.Where("likeCount", docstore.GreaterOrEqual, 3)},
				Orders:  []docstore.Order{docstore.OrderBy("title", docstore.Asc)},
				Limit:   2,
			},
			want: []string{"a", "b"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snaps, err := coll.Query(ctx, tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.want, titles(snaps))
		})
	}
}

func TestCreateTimeWindow(t *testing.T) {
	ctx := context.Background()
	coll := newTestStore(t).Collection("communities", "1", "messages")

	// legacy documents without createdAt sit between regular ones
	var want []string
	for i := 0; i < 8; i++ {
		fields := docstore.Fields{"n": i, "createdAt": docstore.ServerTimestamp}
		if i%3 == 0 {
			fields = docstore.Fields{"n": i}
		}
		id, err := coll.Add(ctx, fields)
		require.NoError(t, err)
		want = append(want, id)
	}

	snaps, err := coll.Query(ctx, docstore.Query{
		Orders: []docstore.Order{docstore.OrderBy(docstore.CreateTime, docstore.Desc)},
		Limit:  5,
	})
	require.NoError(t, err)
	require.Len(t, snaps, 5)

	var got []string
	for i := len(snaps) - 1; i >= 0; i-- {
		got = append(got, snaps[i].ID)
	}
	assert.Equal(t, want[3:], got, "window reversed for display is the newest five in insertion order")
	for i := 1; i < len(snaps); i++ {
		assert.True(t, snaps[i-1].CreateTime.After(snaps[i].CreateTime))
	}
}

func TestDeleteAndDeleteAll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	messages := store.Collection("communities", "1", "messages")

	id, err := messages.Add(ctx, docstore.Fields{"text": "hi"})
	require.NoError(t, err)
	_, err = messages.Add(ctx, docstore.Fields{"text": "there"})
	require.NoError(t, err)

	require.NoError(t, messages.Delete(ctx, id))
	require.NoError(t, messages.Delete(ctx, id), "deleting twice is fine")

	removed, err := messages.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	snaps, err := messages.Query(ctx, docstore.Query{})
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
