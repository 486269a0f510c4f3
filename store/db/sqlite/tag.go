package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/bookcircle/store"
)

const tagColumns = `id, uid, name, slug, type, metadata, usage_count, row_status, created_by, created_ts, updated_ts, deleted_ts`

func (d *DB) CreateTag(ctx context.Context, create *store.Tag) (*store.Tag, error) {
	metadata, err := create.Metadata.Marshal()
	if err != nil {
		return nil, err
	}
	fields := []string{"uid", "name", "slug", "type", "metadata", "usage_count", "created_by"}
	args := []any{create.UID, create.Name, create.Slug, create.Type, metadata, create.UsageCount, create.CreatedBy}
	if create.RowStatus != "" {
		fields = append(fields, "row_status")
		args = append(args, create.RowStatus)
	}
	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts", "updated_ts")
		args = append(args, create.CreatedTs, create.CreatedTs)
	}

	stmt := `INSERT INTO tag (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, row_status, created_ts, updated_ts`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&create.ID,
		&create.RowStatus,
		&create.CreatedTs,
		&create.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create tag")
	}
	return create, nil
}

func (d *DB) ListTags(ctx context.Context, find *store.FindTag) ([]*store.Tag, error) {
	where, args := []string{"tag.deleted_ts = 0"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "tag.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(find.IDs) > 0 {
		list := make([]string, 0, len(find.IDs))
		for _, id := range find.IDs {
			list = append(list, placeholder(len(args)+1))
			args = append(args, id)
		}
		where = append(where, "tag.id IN ("+strings.Join(list, ", ")+")")
	}
	if v := find.UID; v != nil {
		where, args = append(where, "tag.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Slug; v != nil {
		where, args = append(where, "tag.slug = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Type; v != nil {
		where, args = append(where, "tag.type = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(find.Types) > 0 {
		list := make([]string, 0, len(find.Types))
		for _, t := range find.Types {
			list = append(list, placeholder(len(args)+1))
			args = append(args, t)
		}
		where = append(where, "tag.type IN ("+strings.Join(list, ", ")+")")
	}
	if v := find.EntityID; v != nil {
		where, args = append(where, "json_extract(tag.metadata, '$.entity_id') = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Query; v != nil {
		pattern := "%" + escapeLike(strings.ToLower(*v)) + "%"
		where = append(where, "(LOWER(tag.name) LIKE "+placeholder(len(args)+1)+" ESCAPE '\\' OR tag.slug LIKE "+placeholder(len(args)+2)+" ESCAPE '\\')")
		args = append(args, pattern, pattern)
	}
	if v := find.RowStatus; v != nil {
		where, args = append(where, "tag.row_status = "+placeholder(len(args)+1)), append(args, *v)
	}

	orderBy := "tag.usage_count DESC, tag.id ASC"
	if v := find.Query; v != nil {
		// Exact and prefix matches sort ahead of popular containing matches.
		term := strings.ToLower(*v)
		prefix := escapeLike(term) + "%"
		orderBy = "CASE WHEN LOWER(tag.name) = ? OR tag.slug = ? THEN 0" +
			" WHEN LOWER(tag.name) LIKE ? ESCAPE '\\' OR tag.slug LIKE ? ESCAPE '\\' THEN 1 ELSE 2 END, " + orderBy
		args = append(args, term, term, prefix, prefix)
	}

	query := `SELECT ` + tagColumns + ` FROM tag WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ` + orderBy
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tags")
	}
	defer rows.Close()

	list := make([]*store.Tag, 0)
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate tags")
	}
	return list, nil
}

func (d *DB) UpdateTag(ctx context.Context, update *store.UpdateTag) (*store.Tag, error) {
	set, args := []string{}, []any{}
	if v := update.Name; v != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Slug; v != nil {
		set, args = append(set, "slug = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Metadata; v != nil {
		metadata, err := v.Marshal()
		if err != nil {
			return nil, err
		}
		set, args = append(set, "metadata = "+placeholder(len(args)+1)), append(args, metadata)
	}
	if v := update.RowStatus; v != nil {
		set, args = append(set, "row_status = "+placeholder(len(args)+1)), append(args, *v)
	}
	updatedTs := time.Now().Unix()
	if v := update.UpdatedTs; v != nil {
		updatedTs = *v
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, updatedTs)
	args = append(args, update.ID)

	stmt := `UPDATE tag SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` AND deleted_ts = 0 RETURNING ` + tagColumns
	tag, err := scanTag(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to update tag %d", update.ID)
	}
	return tag, nil
}

func (d *DB) IncrementTagUsage(ctx context.Context, id int32, delta int32) error {
	stmt := `UPDATE tag SET usage_count = MAX(usage_count + ?, 0), updated_ts = ? WHERE id = ?`
	if _, err := d.db.ExecContext(ctx, stmt, delta, time.Now().Unix(), id); err != nil {
		return errors.Wrapf(err, "failed to increment usage of tag %d", id)
	}
	return nil
}

func (d *DB) DeleteTag(ctx context.Context, delete *store.DeleteTag) error {
	if _, err := d.db.ExecContext(ctx, `UPDATE tag SET deleted_ts = ? WHERE id = ? AND deleted_ts = 0`, time.Now().Unix(), delete.ID); err != nil {
		return errors.Wrapf(err, "failed to delete tag %d", delete.ID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTag(row rowScanner) (*store.Tag, error) {
	var tag store.Tag
	var metadata string
	if err := row.Scan(
		&tag.ID,
		&tag.UID,
		&tag.Name,
		&tag.Slug,
		&tag.Type,
		&metadata,
		&tag.UsageCount,
		&tag.RowStatus,
		&tag.CreatedBy,
		&tag.CreatedTs,
		&tag.UpdatedTs,
		&tag.DeletedTs,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan tag")
	}
	m, err := store.UnmarshalTagMetadata(metadata)
	if err != nil {
		return nil, err
	}
	tag.Metadata = m
	return &tag, nil
}

func (d *DB) CreateTagAlias(ctx context.Context, create *store.TagAlias) (*store.TagAlias, error) {
	stmt := `INSERT INTO tag_alias (tag_id, alias, alias_slug) VALUES (?, ?, ?) RETURNING id, created_ts`
	if err := d.db.QueryRowContext(ctx, stmt, create.TagID, create.Alias, create.AliasSlug).Scan(&create.ID, &create.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to create tag alias")
	}
	return create, nil
}

func (d *DB) ListTagAliases(ctx context.Context, find *store.FindTagAlias) ([]*store.TagAlias, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.TagID; v != nil {
		where, args = append(where, "tag_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Query; v != nil {
		pattern := "%" + escapeLike(strings.ToLower(*v)) + "%"
		where = append(where, "(LOWER(alias) LIKE "+placeholder(len(args)+1)+" ESCAPE '\\' OR alias_slug LIKE "+placeholder(len(args)+2)+" ESCAPE '\\')")
		args = append(args, pattern, pattern)
	}

	query := `SELECT id, tag_id, alias, alias_slug, created_ts FROM tag_alias WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id ASC`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tag aliases")
	}
	defer rows.Close()

	list := make([]*store.TagAlias, 0)
	for rows.Next() {
		var alias store.TagAlias
		if err := rows.Scan(&alias.ID, &alias.TagID, &alias.Alias, &alias.AliasSlug, &alias.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan tag alias")
		}
		list = append(list, &alias)
	}
	return list, rows.Err()
}

func (d *DB) DeleteTagAlias(ctx context.Context, delete *store.DeleteTagAlias) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM tag_alias WHERE id = ?`, delete.ID); err != nil {
		return errors.Wrapf(err, "failed to delete tag alias %d", delete.ID)
	}
	return nil
}
