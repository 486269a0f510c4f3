package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/bookcircle/store"
)

func (d *DB) CreateTaggings(ctx context.Context, creates []*store.Tagging) ([]*store.Tagging, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	// A zero CreatedTs takes the current time.
	stmt := `INSERT INTO tagging (uid, tag_id, entity_type, entity_id, context, tagged_by, position_start, position_end, status, created_ts)
		VALUES (` + placeholders(9) + `, COALESCE(NULLIF($10::BIGINT, 0), EXTRACT(EPOCH FROM NOW())::BIGINT))
		RETURNING id, status, created_ts`
	for _, create := range creates {
		status := create.Status
		if status == "" {
			status = store.TaggingApproved
		}
		if err := tx.QueryRowContext(ctx, stmt,
			create.UID, create.TagID, create.EntityType, create.EntityID, create.Context,
			create.TaggedBy, create.PositionStart, create.PositionEnd, status, create.CreatedTs,
		).Scan(&create.ID, &create.Status, &create.CreatedTs); err != nil {
			return nil, errors.Wrapf(err, "failed to create tagging for tag %d", create.TagID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit taggings")
	}
	return creates, nil
}

func (d *DB) ListTaggings(ctx context.Context, find *store.FindTagging) ([]*store.Tagging, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TagID; v != nil {
		where, args = append(where, "tag_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.EntityType; v != nil {
		where, args = append(where, "entity_type = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.EntityID; v != nil {
		where, args = append(where, "entity_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Context; v != nil {
		where, args = append(where, "context = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Status; v != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT id, uid, tag_id, entity_type, entity_id, context, tagged_by, position_start, position_end, status, created_ts
		FROM tagging
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, id DESC`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query taggings")
	}
	defer rows.Close()

	list := make([]*store.Tagging, 0)
	for rows.Next() {
		var tagging store.Tagging
		if err := rows.Scan(
			&tagging.ID,
			&tagging.UID,
			&tagging.TagID,
			&tagging.EntityType,
			&tagging.EntityID,
			&tagging.Context,
			&tagging.TaggedBy,
			&tagging.PositionStart,
			&tagging.PositionEnd,
			&tagging.Status,
			&tagging.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan tagging")
		}
		list = append(list, &tagging)
	}
	return list, rows.Err()
}

func (d *DB) DeleteTagging(ctx context.Context, delete *store.DeleteTagging) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM tagging WHERE id = $1`, delete.ID); err != nil {
		return errors.Wrapf(err, "failed to delete tagging %d", delete.ID)
	}
	return nil
}
