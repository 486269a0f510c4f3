package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/bookcircle/store"
)

func (d *DB) UpsertTagSubscription(ctx context.Context, upsert *store.TagSubscription) (*store.TagSubscription, error) {
	stmt := `INSERT INTO tag_subscription (tag_id, user_id) VALUES (?, ?)
		ON CONFLICT (tag_id, user_id) DO NOTHING`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.TagID, upsert.UserID); err != nil {
		return nil, errors.Wrap(err, "failed to upsert tag subscription")
	}
	if err := d.db.QueryRowContext(ctx,
		`SELECT created_ts FROM tag_subscription WHERE tag_id = ? AND user_id = ?`,
		upsert.TagID, upsert.UserID,
	).Scan(&upsert.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to read tag subscription")
	}
	return upsert, nil
}

func (d *DB) ListTagSubscriptions(ctx context.Context, find *store.FindTagSubscription) ([]*store.TagSubscription, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.TagID; v != nil {
		where, args = append(where, "tag_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT tag_id, user_id, created_ts FROM tag_subscription WHERE `+strings.Join(where, " AND ")+` ORDER BY created_ts ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tag subscriptions")
	}
	defer rows.Close()

	list := make([]*store.TagSubscription, 0)
	for rows.Next() {
		var subscription store.TagSubscription
		if err := rows.Scan(&subscription.TagID, &subscription.UserID, &subscription.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan tag subscription")
		}
		list = append(list, &subscription)
	}
	return list, rows.Err()
}

func (d *DB) DeleteTagSubscription(ctx context.Context, delete *store.DeleteTagSubscription) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM tag_subscription WHERE tag_id = ? AND user_id = ?`, delete.TagID, delete.UserID); err != nil {
		return errors.Wrap(err, "failed to delete tag subscription")
	}
	return nil
}
