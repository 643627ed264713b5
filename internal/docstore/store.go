// Package docstore is a collection/document database with live queries,
// layered over the sql database. Documents are JSON objects addressed by a
// collection path and an id; sub-collections are plain paths such as
// "communities/42/messages".
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Pratik1445/skillfolio/internal/snowflake"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("document not found")

type Snapshot struct {
	ID         string
	Data       json.RawMessage
	CreateTime time.Time
	UpdateTime time.Time
}

func (s Snapshot) DataTo(v any) error {
	return json.Unmarshal(s.Data, v)
}

type Store struct {
	db    *sql.DB
	feed  Changefeed
	ids   *snowflake.Generator
	sugar *zap.SugaredLogger

	// serializes writers of this process and guards lastCommit
	mutex      sync.Mutex
	lastCommit time.Time
	now        func() time.Time
}

func New(db *sql.DB, feed Changefeed, ids *snowflake.Generator, sugar *zap.SugaredLogger) *Store {
	return &Store{
		db:    db,
		feed:  feed,
		ids:   ids,
		sugar: sugar,
		now:   time.Now,
	}
}

type Collection struct {
	store *Store
	path  string
}

// Collection returns the collection at the joined path.
func (s *Store) Collection(path ...string) *Collection {
	return &Collection{store: s, path: strings.Join(path, "/")}
}

func (c *Collection) Path() string {
	return c.path
}

// nextCommit must be called with the mutex held. Commit times are strictly
// increasing so ServerTimestamp fields order like the writes did.
func (s *Store) nextCommit() time.Time {
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.lastCommit) {
		t = s.lastCommit.Add(time.Microsecond)
	}
	s.lastCommit = t
	return t
}

func (s *Store) write(ctx context.Context, collection string, fn func(tx *sql.Tx, commit time.Time) error) error {
	err := func() error {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		commit := s.nextCommit()

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		if err := fn(tx, commit); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.sugar.Error(rbErr)
			}
			return err
		}

		return tx.Commit()
	}()
	if err != nil {
		return err
	}

	s.notify(ctx, collection)
	return nil
}

func (s *Store) notify(ctx context.Context, collection string) {
	err := s.feed.Publish(context.WithoutCancel(ctx), topic(collection))
	if err != nil {
		s.sugar.Warnf("Couldn't publish change of collection %s: %v", collection, err)
	}
}

func topic(collection string) string {
	return "docs:" + collection
}

func (c *Collection) Get(ctx context.Context, id string) (Snapshot, error) {
	var data string
	var createTime, updateTime int64

	err := c.store.db.QueryRowContext(ctx,
		"SELECT data, create_time, update_time FROM documents WHERE collection = ? AND id = ?",
		c.path, id).Scan(&data, &createTime, &updateTime)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%s/%s: %w", c.path, id, ErrNotFound)
	} else if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		ID:         id,
		Data:       json.RawMessage(data),
		CreateTime: time.UnixMicro(createTime).UTC(),
		UpdateTime: time.UnixMicro(updateTime).UTC(),
	}, nil
}

func (c *Collection) Query(ctx context.Context, q Query) ([]Snapshot, error) {
	clause, inSQL := q.sqlOrder()
	if !inSQL {
		clause = " ORDER BY create_time, id"
	}

	rows, err := c.store.db.QueryContext(ctx,
		"SELECT id, data, create_time, update_time FROM documents WHERE collection = ?"+clause,
		c.path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []row
	for rows.Next() {
		var id, data string
		var createTime, updateTime int64
		if err := rows.Scan(&id, &data, &createTime, &updateTime); err != nil {
			return nil, err
		}

		r := row{
			snap: Snapshot{
				ID:         id,
				Data:       json.RawMessage(data),
				CreateTime: time.UnixMicro(createTime).UTC(),
				UpdateTime: time.UnixMicro(updateTime).UTC(),
			},
		}
		if !inSQL {
			if err := json.Unmarshal([]byte(data), &r.fields); err != nil {
				return nil, fmt.Errorf("%s/%s: %w", c.path, id, err)
			}
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if inSQL {
		out := make([]Snapshot, len(all))
		for i, r := range all {
			out[i] = r.snap
		}
		return out, nil
	}
	return q.apply(all)
}

// Add stores a new document under a generated id.
func (c *Collection) Add(ctx context.Context, fields Fields) (string, error) {
	id, err := c.store.ids.GenerateString()
	if err != nil {
		return "", err
	}

	err = c.store.write(ctx, c.path, func(tx *sql.Tx, commit time.Time) error {
		data, err := build(map[string]any{}, fields, commit)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO documents (collection, id, data, create_time, update_time) VALUES (?, ?, ?, ?, ?)",
			c.path, id, data, commit.UnixMicro(), commit.UnixMicro())
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Set replaces the document, creating it when missing.
func (c *Collection) Set(ctx context.Context, id string, fields Fields) error {
	return c.store.write(ctx, c.path, func(tx *sql.Tx, commit time.Time) error {
		data, err := build(map[string]any{}, fields, commit)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE documents SET data = ?, update_time = ? WHERE collection = ? AND id = ?",
			data, commit.UnixMicro(), c.path, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO documents (collection, id, data, create_time, update_time) VALUES (?, ?, ?, ?, ?)",
			c.path, id, data, commit.UnixMicro(), commit.UnixMicro())
		return err
	})
}

// Update merges fields into an existing document. Dotted paths address
// nested fields.
func (c *Collection) Update(ctx context.Context, id string, fields Fields) error {
	return c.store.write(ctx, c.path, func(tx *sql.Tx, commit time.Time) error {
		var current string
		err := tx.QueryRowContext(ctx,
			"SELECT data FROM documents WHERE collection = ? AND id = ?",
			c.path, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s/%s: %w", c.path, id, ErrNotFound)
		} else if err != nil {
			return err
		}

		var doc map[string]any
		if err := json.Unmarshal([]byte(current), &doc); err != nil {
			return err
		}
		if doc == nil {
			doc = map[string]any{}
		}

		data, err := build(doc, fields, commit)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE documents SET data = ?, update_time = ? WHERE collection = ? AND id = ?",
			data, commit.UnixMicro(), c.path, id)
		return err
	})
}

// Delete removes the document. Deleting a missing document is not an error.
func (c *Collection) Delete(ctx context.Context, id string) error {
	return c.store.write(ctx, c.path, func(tx *sql.Tx, _ time.Time) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND id = ?", c.path, id)
		return err
	})
}

// DeleteAll removes every document of the collection and reports how many
// were removed.
func (c *Collection) DeleteAll(ctx context.Context) (int64, error) {
	var removed int64
	err := c.store.write(ctx, c.path, func(tx *sql.Tx, _ time.Time) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE collection = ?", c.path)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func build(doc map[string]any, fields Fields, commit time.Time) (string, error) {
	if err := applyFields(doc, fields, commit); err != nil {
		return "", err
	}
	bytes, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
