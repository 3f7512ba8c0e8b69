package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/onnwee/queuebot/queue"
)

// QueueStore persists queues in SQL. It implements queue.Store for both
// postgres and sqlite; every statement uses syntax the two share.
type QueueStore struct {
	db *sql.DB
}

// NewQueueStore wraps an already migrated database.
func NewQueueStore(db *sql.DB) *QueueStore { return &QueueStore{db: db} }

var _ queue.Store = (*QueueStore)(nil)

func (s *QueueStore) Get(ctx context.Context, id string) (*queue.Queue, error) {
	var q *queue.Queue
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if q, err = getQueue(ctx, tx, id); err != nil {
			return err
		}
		if q.Members, err = listMembers(ctx, tx, id); err != nil {
			return err
		}
		q.Blacklist, err = listBlacklist(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QueueStore) List(ctx context.Context) ([]queue.Queue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, display_name, open, level, queue_limit FROM queues ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	defer rows.Close()
	var out []queue.Queue
	for rows.Next() {
		var q queue.Queue
		var level int
		if err := rows.Scan(&q.ID, &q.DisplayName, &q.Open, &level, &q.Limit); err != nil {
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		q.Level = queue.Rank(level)
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *QueueStore) Create(ctx context.Context, id, displayName string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO queues(id, display_name) VALUES($1, $2) ON CONFLICT(id) DO NOTHING`,
		id, displayName)
	if err != nil {
		return fmt.Errorf("create queue: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return queue.ErrAlreadyExists
	}
	return nil
}

func (s *QueueStore) Delete(ctx context.Context, id string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := ensureQueue(ctx, tx, id); err != nil {
			return err
		}
		for _, q := range []string{
			`DELETE FROM queue_members WHERE queue_id = $1`,
			`DELETE FROM queue_blacklist WHERE queue_id = $1`,
			`DELETE FROM queues WHERE id = $1`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("delete queue: %w", err)
			}
		}
		return nil
	})
}

func (s *QueueStore) UpdateConfig(ctx context.Context, id string, upd queue.ConfigUpdate) error {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Open != nil {
		add("open", *upd.Open)
	}
	if upd.Level != nil {
		add("level", int(*upd.Level))
	}
	if upd.Limit != nil {
		add("queue_limit", *upd.Limit)
	}
	args = append(args, id)
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	q := fmt.Sprintf(`UPDATE queues SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update queue: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return queue.ErrNotFound
	}
	return nil
}

func (s *QueueStore) AddMember(ctx context.Context, id string, m queue.Member) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		var seq int64
		err := tx.QueryRowContext(ctx,
			`UPDATE queues SET next_seq = next_seq + 1 WHERE id = $1 RETURNING next_seq`, id).Scan(&seq)
		if errors.Is(err, sql.ErrNoRows) {
			return queue.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("allocate member seq: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO queue_members(queue_id, seq, user_id, name) VALUES($1, $2, $3, $4)`,
			id, seq, m.UserID, m.Name); err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
		return nil
	})
}

func (s *QueueStore) RemoveMembers(ctx context.Context, id string, match func(queue.Member) bool) (int, error) {
	removed := 0
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := ensureQueue(ctx, tx, id); err != nil {
			return err
		}
		members, err := listMembers(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, m := range members {
			if !match(m) {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM queue_members WHERE queue_id = $1 AND seq = $2`, id, m.Seq); err != nil {
				return fmt.Errorf("delete member: %w", err)
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *QueueStore) ListMembers(ctx context.Context, id string) ([]queue.Member, error) {
	var out []queue.Member
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := ensureQueue(ctx, tx, id); err != nil {
			return err
		}
		var err error
		out, err = listMembers(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *QueueStore) AddBlacklistEntry(ctx context.Context, id, name string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := ensureQueue(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO queue_blacklist(queue_id, name) VALUES($1, $2) ON CONFLICT(queue_id, name) DO NOTHING`,
			id, name); err != nil {
			return fmt.Errorf("insert blacklist entry: %w", err)
		}
		return nil
	})
}

func (s *QueueStore) RemoveBlacklistEntry(ctx context.Context, id, name string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := ensureQueue(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM queue_blacklist WHERE queue_id = $1 AND name = $2`, id, name); err != nil {
			return fmt.Errorf("delete blacklist entry: %w", err)
		}
		return nil
	})
}

func (s *QueueStore) ListBlacklist(ctx context.Context, id string) ([]string, error) {
	var out []string
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := ensureQueue(ctx, tx, id); err != nil {
			return err
		}
		var err error
		out, err = listBlacklist(ctx, tx, id)
		return err
	})
	return out, err
}

func getQueue(ctx context.Context, q querier, id string) (*queue.Queue, error) {
	out := &queue.Queue{ID: id}
	var level int
	err := q.QueryRowContext(ctx,
		`SELECT display_name, open, level, queue_limit FROM queues WHERE id = $1`, id).
		Scan(&out.DisplayName, &out.Open, &level, &out.Limit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queue: %w", err)
	}
	out.Level = queue.Rank(level)
	return out, nil
}

func ensureQueue(ctx context.Context, q querier, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM queues WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check queue: %w", err)
	}
	return nil
}

func listMembers(ctx context.Context, q querier, id string) ([]queue.Member, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT seq, user_id, name FROM queue_members WHERE queue_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	var out []queue.Member
	for rows.Next() {
		var m queue.Member
		if err := rows.Scan(&m.Seq, &m.UserID, &m.Name); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func listBlacklist(ctx context.Context, q querier, id string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name FROM queue_blacklist WHERE queue_id = $1 ORDER BY created_at, name`, id)
	if err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan blacklist entry: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
