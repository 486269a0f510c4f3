package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/bookcircle/store"
)

func TestTaggingStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	fantasy := createTag(ctx, t, ts, "t1", "Fantasy", "fantasy", "topic", 0)
	sam := createTag(ctx, t, ts, "t2", "Sam", "sam", "user", 0)

	created, err := ts.CreateTaggings(ctx, []*store.Tagging{
		{UID: "g1", TagID: fantasy.ID, EntityType: "post", EntityID: "p-1", Context: "post", TaggedBy: 1, PositionStart: 10, PositionEnd: 18},
		{UID: "g2", TagID: sam.ID, EntityType: "post", EntityID: "p-1", Context: "post", TaggedBy: 1, PositionStart: 0, PositionEnd: 4, Status: store.TaggingPending},
		{UID: "g3", TagID: fantasy.ID, EntityType: "post", EntityID: "p-2", Context: "post", TaggedBy: 2},
	})
	require.NoError(t, err)
	require.Len(t, created, 3)
	assert.NotZero(t, created[0].ID)
	assert.Equal(t, store.TaggingApproved, created[0].Status)
	assert.Equal(t, store.TaggingPending, created[1].Status)

	entityType, entityID := "post", "p-1"
	list, err := ts.ListTaggings(ctx, &store.FindTagging{EntityType: &entityType, EntityID: &entityID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	// Newest first; rows share a timestamp so the id breaks the tie.
	assert.Equal(t, "g2", list[0].UID)
	assert.EqualValues(t, 10, list[1].PositionStart)

	approved := store.TaggingApproved
	list, err = ts.ListTaggings(ctx, &store.FindTagging{TagID: &fantasy.ID, Status: &approved})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, ts.DeleteTagging(ctx, &store.DeleteTagging{ID: created[0].ID}))
	list, err = ts.ListTaggings(ctx, &store.FindTagging{TagID: &fantasy.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateTaggingsIsAtomic(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	fantasy := createTag(ctx, t, ts, "t1", "Fantasy", "fantasy", "topic", 0)
	_, err := ts.CreateTaggings(ctx, []*store.Tagging{
		{UID: "dup", TagID: fantasy.ID, EntityType: "post", EntityID: "p-1", Context: "post"},
		{UID: "dup", TagID: fantasy.ID, EntityType: "post", EntityID: "p-1", Context: "post"},
	})
	require.Error(t, err)

	list, err := ts.ListTaggings(ctx, &store.FindTagging{TagID: &fantasy.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTagSubscriptionStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	fantasy := createTag(ctx, t, ts, "t1", "Fantasy", "fantasy", "topic", 0)

	first, err := ts.UpsertTagSubscription(ctx, &store.TagSubscription{TagID: fantasy.ID, UserID: 1})
	require.NoError(t, err)
	assert.NotZero(t, first.CreatedTs)

	// Subscribing twice keeps a single row.
	_, err = ts.UpsertTagSubscription(ctx, &store.TagSubscription{TagID: fantasy.ID, UserID: 1})
	require.NoError(t, err)
	_, err = ts.UpsertTagSubscription(ctx, &store.TagSubscription{TagID: fantasy.ID, UserID: 2})
	require.NoError(t, err)

	list, err := ts.ListTagSubscriptions(ctx, &store.FindTagSubscription{TagID: &fantasy.ID})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	userID := int32(1)
	list, err = ts.ListTagSubscriptions(ctx, &store.FindTagSubscription{TagID: &fantasy.ID, UserID: &userID})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, ts.DeleteTagSubscription(ctx, &store.DeleteTagSubscription{TagID: fantasy.ID, UserID: 1}))
	list, err = ts.ListTagSubscriptions(ctx, &store.FindTagSubscription{UserID: &userID})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateTaggingsKeepsExplicitTimestamp(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	fantasy := createTag(ctx, t, ts, "t1", "Fantasy", "fantasy", "topic", 0)
	created, err := ts.CreateTaggings(ctx, []*store.Tagging{
		{UID: "old", TagID: fantasy.ID, EntityType: "post", EntityID: "p-1", Context: "post", CreatedTs: 1700000000},
		{UID: "new", TagID: fantasy.ID, EntityType: "post", EntityID: "p-2", Context: "post"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1700000000, created[0].CreatedTs)
	assert.Greater(t, created[1].CreatedTs, int64(1700000000))
}
