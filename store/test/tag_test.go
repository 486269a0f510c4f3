package test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/bookcircle/store"
)

func createTag(ctx context.Context, t *testing.T, ts *store.Store, uid, name, slug, kind string, usage int32) *store.Tag {
	t.Helper()
	tag, err := ts.CreateTag(ctx, &store.Tag{
		UID:        uid,
		Name:       name,
		Slug:       slug,
		Type:       kind,
		UsageCount: usage,
	})
	require.NoError(t, err)
	return tag
}

func TestTagStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	created, err := ts.CreateTag(ctx, &store.Tag{
		UID:  "tag-dune",
		Name: "Dune",
		Slug: "dune",
		Type: "entity",
		Metadata: store.TagMetadata{
			EntityID:   "book-1",
			EntityType: "book",
			Sublabel:   "Frank Herbert",
		},
		CreatedBy: 7,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, store.Normal, created.RowStatus)
	assert.NotZero(t, created.CreatedTs)

	tag, err := ts.GetTag(ctx, &store.FindTag{ID: &created.ID})
	require.NoError(t, err)
	require.NotNil(t, tag)
	assert.Equal(t, "Dune", tag.Name)
	assert.Equal(t, "book-1", tag.Metadata.EntityID)

	entityID := "book-1"
	tags, err := ts.ListTags(ctx, &store.FindTag{EntityID: &entityID})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, created.ID, tags[0].ID)

	name := "Dune Messiah"
	updated, err := ts.UpdateTag(ctx, &store.UpdateTag{ID: created.ID, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", updated.Name)
	assert.Equal(t, "dune", updated.Slug)

	require.NoError(t, ts.IncrementTagUsage(ctx, created.ID, 3))
	require.NoError(t, ts.IncrementTagUsage(ctx, created.ID, -5))
	tag, err = ts.GetTag(ctx, &store.FindTag{ID: &created.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 0, tag.UsageCount)

	require.NoError(t, ts.DeleteTag(ctx, &store.DeleteTag{ID: created.ID}))
	tag, err = ts.GetTag(ctx, &store.FindTag{ID: &created.ID})
	require.NoError(t, err)
	assert.Nil(t, tag)

	// The slug is free again once the tag is deleted.
	recreated := createTag(ctx, t, ts, "tag-dune-2", "Dune", "dune", "entity", 0)
	assert.NotEqual(t, created.ID, recreated.ID)
}

func TestTagStoreUniqueSlugPerType(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	createTag(ctx, t, ts, "t1", "Fantasy", "fantasy", "topic", 0)
	createTag(ctx, t, ts, "t2", "Fantasy", "fantasy", "entity", 0)

	_, err := ts.CreateTag(ctx, &store.Tag{UID: "t3", Name: "fantasy", Slug: "fantasy", Type: "topic"})
	assert.Error(t, err)
}

func TestTagStoreQuery(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	createTag(ctx, t, ts, "t1", "Fantasy", "fantasy", "topic", 10)
	createTag(ctx, t, ts, "t2", "Urban Fantasy", "urban-fantasy", "topic", 50)
	createTag(ctx, t, ts, "t3", "Fantasy Books", "fantasy-books", "entity", 5)
	createTag(ctx, t, ts, "t4", "Mystery", "mystery", "topic", 99)
	archived := createTag(ctx, t, ts, "t5", "Fantasy Archive", "fantasy-archive", "topic", 1)
	status := store.Archived
	_, err := ts.UpdateTag(ctx, &store.UpdateTag{ID: archived.ID, RowStatus: &status})
	require.NoError(t, err)

	query := "FANTASY"
	normal := store.Normal
	tags, err := ts.ListTags(ctx, &store.FindTag{Query: &query, Types: []string{"topic"}, RowStatus: &normal})
	require.NoError(t, err)
	require.Len(t, tags, 2)
	// Exact matches come before more popular containing matches.
	assert.Equal(t, "fantasy", tags[0].Slug)
	assert.Equal(t, "urban-fantasy", tags[1].Slug)

	tags, err = ts.ListTags(ctx, &store.FindTag{Query: &query})
	require.NoError(t, err)
	assert.Len(t, tags, 4)

	tags, err = ts.ListTags(ctx, &store.FindTag{IDs: []int32{archived.ID}})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, store.Archived, tags[0].RowStatus)
}

func TestTagStoreQueryMatchClassOrder(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	createTag(ctx, t, ts, "t1", "Hobbits", "hobbits", "topic", 90)
	createTag(ctx, t, ts, "t2", "Hobbit Lore", "hobbit-lore", "topic", 10)
	createTag(ctx, t, ts, "t3", "Hobbit", "hobbit", "topic", 0)
	createTag(ctx, t, ts, "t4", "The Hobbit", "the-hobbit", "topic", 99)

	query, limit := "hobbit", 3
	tags, err := ts.ListTags(ctx, &store.FindTag{Query: &query, Limit: &limit})
	require.NoError(t, err)
	require.Len(t, tags, 3)
	assert.Equal(t, "hobbit", tags[0].Slug)
	// Prefix matches by usage, ahead of the more popular containing match.
	assert.Equal(t, "hobbits", tags[1].Slug)
	assert.Equal(t, "hobbit-lore", tags[2].Slug)
}

func TestTagStoreQueryEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	scifi := createTag(ctx, t, ts, "t1", "Sci-Fi", "sci-fi", "topic", 0)
	underscored := createTag(ctx, t, ts, "t2", "sci_fi", "sci_fi", "topic", 0)
	createTag(ctx, t, ts, "t3", "Percent", "percent", "topic", 0)

	query := "sci_fi"
	tags, err := ts.ListTags(ctx, &store.FindTag{Query: &query})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, underscored.ID, tags[0].ID)

	query = "%"
	tags, err = ts.ListTags(ctx, &store.FindTag{Query: &query})
	require.NoError(t, err)
	assert.Empty(t, tags)

	_, err = ts.CreateTagAlias(ctx, &store.TagAlias{TagID: scifi.ID, Alias: "SF", AliasSlug: "sf"})
	require.NoError(t, err)
	aliases, err := ts.ListTagAliases(ctx, &store.FindTagAlias{Query: &query})
	require.NoError(t, err)
	assert.Empty(t, aliases)
	query = "_"
	aliases, err = ts.ListTagAliases(ctx, &store.FindTagAlias{Query: &query})
	require.NoError(t, err)
	assert.Empty(t, aliases)
}

func TestTagStoreUpdateMissing(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	name := "ghost"
	_, err := ts.UpdateTag(ctx, &store.UpdateTag{ID: 999, Name: &name})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestTagAliasStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	scifi := createTag(ctx, t, ts, "t1", "Science Fiction", "science-fiction", "topic", 0)
	alias, err := ts.CreateTagAlias(ctx, &store.TagAlias{TagID: scifi.ID, Alias: "Sci-Fi", AliasSlug: "sci-fi"})
	require.NoError(t, err)
	assert.NotZero(t, alias.ID)

	_, err = ts.CreateTagAlias(ctx, &store.TagAlias{TagID: scifi.ID, Alias: "SF", AliasSlug: "sf"})
	require.NoError(t, err)

	query := "sci"
	aliases, err := ts.ListTagAliases(ctx, &store.FindTagAlias{Query: &query})
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, scifi.ID, aliases[0].TagID)

	aliases, err = ts.ListTagAliases(ctx, &store.FindTagAlias{TagID: &scifi.ID})
	require.NoError(t, err)
	assert.Len(t, aliases, 2)

	require.NoError(t, ts.DeleteTagAlias(ctx, &store.DeleteTagAlias{ID: alias.ID}))
	aliases, err = ts.ListTagAliases(ctx, &store.FindTagAlias{TagID: &scifi.ID})
	require.NoError(t, err)
	assert.Len(t, aliases, 1)
}
