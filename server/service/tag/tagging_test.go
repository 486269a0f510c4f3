package tag

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/bookcircle/plugin/tagging"
	apierrors "github.com/hrygo/bookcircle/server/internal/errors"
	"github.com/hrygo/bookcircle/store"
)

func itoa(id int32) string {
	return strconv.Itoa(int(id))
}

func TestFindOrCreate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Config{})

	created, err := svc.FindOrCreate(ctx, FindOrCreateTag{Name: " Book Club ", Kind: tagging.KindTopic, CreatedBy: 4})
	require.NoError(t, err)
	assert.Equal(t, "Book Club", created.Name)
	assert.Equal(t, "book-club", created.Slug)
	assert.NotEmpty(t, created.UID)
	assert.EqualValues(t, 4, created.CreatedBy)

	again, err := svc.FindOrCreate(ctx, FindOrCreateTag{Name: "book club", Kind: tagging.KindTopic})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	// The same slug with another kind is another tag.
	entity, err := svc.FindOrCreate(ctx, FindOrCreateTag{Name: "Book Club", Kind: tagging.KindEntity})
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, entity.ID)

	_, err = svc.FindOrCreate(ctx, FindOrCreateTag{Name: "???", Kind: tagging.KindTopic})
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeInvalidArgument))
	_, err = svc.FindOrCreate(ctx, FindOrCreateTag{Name: "x", Kind: "genre"})
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeInvalidArgument))
}

func TestFindOrCreateUserTag(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Config{})

	first, err := svc.FindOrCreate(ctx, FindOrCreateTag{
		Name:     "Sara",
		Kind:     tagging.KindUser,
		Metadata: store.TagMetadata{EntityID: "u-1", EntityType: "user", Permalink: "Sara.K"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sara.k", first.Slug)

	// The user changed their permalink: the tag is found by entity id and moved.
	moved, err := svc.FindOrCreate(ctx, FindOrCreateTag{
		Name:     "Sara",
		Kind:     tagging.KindUser,
		Metadata: store.TagMetadata{EntityID: "u-1", Permalink: "sarak", AvatarURL: "/a.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, moved.ID)
	assert.Equal(t, "sarak", moved.Slug)
	assert.Equal(t, "sarak", moved.Metadata.Permalink)
	assert.Equal(t, "user", moved.Metadata.EntityType)
	assert.Equal(t, "/a.png", moved.Metadata.AvatarURL)
}

func TestCreateTaggingsFromContent(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, Config{})

	content := "Reading #Dune with @sara and #dune fans"
	result, err := svc.CreateTaggings(ctx, CreateTaggingsRequest{
		Content:    content,
		EntityType: "post",
		EntityID:   "p-1",
		Context:    ContextPost,
		UserID:     7,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
	assert.Zero(t, result.Pending)
	require.Len(t, result.Taggings, 3)

	first := result.Taggings[0]
	assert.Equal(t, "#Dune", content[first.PositionStart:first.PositionEnd])
	assert.Equal(t, store.TaggingApproved, first.Status)
	assert.EqualValues(t, 7, first.TaggedBy)

	dune, err := svc.GetTagBySlug(ctx, "dune", tagging.KindTopic)
	require.NoError(t, err)
	assert.Equal(t, "Dune", dune.Name)
	assert.EqualValues(t, 2, dune.UsageCount)

	sara, err := svc.GetTagBySlug(ctx, "sara", tagging.KindUser)
	require.NoError(t, err)
	assert.Equal(t, "user", sara.Metadata.EntityType)

	views, err := svc.ListTaggings(ctx, ListTaggingsRequest{EntityType: "post", EntityID: "p-1"})
	require.NoError(t, err)
	require.Len(t, views, 3)
	for _, v := range views {
		assert.Equal(t, v.Tagging.TagID, v.Tag.ID)
	}

	taggings, err := st.ListTaggings(ctx, &store.FindTagging{TagID: &dune.ID})
	require.NoError(t, err)
	assert.Len(t, taggings, 2)
}

func TestCreateTaggingsExplicitTags(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Config{})

	result, err := svc.CreateTaggings(ctx, CreateTaggingsRequest{
		Tags: []TagInput{
			{Name: "Frank Herbert", Kind: tagging.KindEntity, EntityID: "a-1", EntityType: "author", Position: &tagging.Span{Start: 3, End: 17}},
			{Name: "Lisbon", Kind: tagging.KindLocation},
		},
		EntityType: "review",
		EntityID:   "r-1",
		Context:    ContextComment,
		UserID:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)

	author, err := svc.GetTagBySlug(ctx, "frank-herbert", tagging.KindEntity)
	require.NoError(t, err)
	assert.Equal(t, "a-1", author.Metadata.EntityID)
	assert.Equal(t, "author", author.Metadata.EntityType)
	assert.EqualValues(t, 3, result.Taggings[0].PositionStart)
	assert.EqualValues(t, 17, result.Taggings[0].PositionEnd)
}

func TestCreateTaggingsValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Config{})

	valid := CreateTaggingsRequest{Content: "#a", EntityType: "post", EntityID: "p", Context: ContextPost, UserID: 1}

	tests := []struct {
		name   string
		mutate func(r *CreateTaggingsRequest)
		code   apierrors.ErrorCode
	}{
		{"anonymous", func(r *CreateTaggingsRequest) { r.UserID = 0 }, apierrors.ErrCodeUnauthenticated},
		{"missing entity", func(r *CreateTaggingsRequest) { r.EntityID = "" }, apierrors.ErrCodeInvalidArgument},
		{"bad context", func(r *CreateTaggingsRequest) { r.Context = "wiki" }, apierrors.ErrCodeInvalidArgument},
		{"bad kind", func(r *CreateTaggingsRequest) { r.Tags = []TagInput{{Name: "x", Kind: "genre"}} }, apierrors.ErrCodeInvalidArgument},
		{"bad position", func(r *CreateTaggingsRequest) {
			r.Tags = []TagInput{{Name: "x", Kind: tagging.KindTopic, Position: &tagging.Span{Start: 5, End: 2}}}
		}, apierrors.ErrCodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := svc.CreateTaggings(ctx, req)
			require.Error(t, err)
			assert.True(t, apierrors.IsCode(err, tt.code), err.Error())
		})
	}

	result, err := svc.CreateTaggings(ctx, CreateTaggingsRequest{Content: "no tags here", EntityType: "post", EntityID: "p", Context: ContextPost, UserID: 1})
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Empty(t, result.Taggings)
}

func TestCreateTaggingsRateLimits(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Config{MentionRateLimit: 2, HashtagRateLimit: 3})

	req := CreateTaggingsRequest{Content: "@a @b #x #y", EntityType: "post", EntityID: "p", Context: ContextPost, UserID: 1}
	_, err := svc.CreateTaggings(ctx, req)
	require.NoError(t, err)

	req.Content = "@c"
	_, err = svc.CreateTaggings(ctx, req)
	require.Error(t, err)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeRateLimitExceeded))

	// Hashtags have their own budget.
	req.Content = "#z"
	_, err = svc.CreateTaggings(ctx, req)
	require.NoError(t, err)
	req.Content = "#w"
	_, err = svc.CreateTaggings(ctx, req)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeRateLimitExceeded))

	// Budgets are per user.
	req.UserID = 2
	req.Content = "@c #w"
	_, err = svc.CreateTaggings(ctx, req)
	assert.NoError(t, err)
}

func TestCreateTaggingsPolicy(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Config{
		DenyRule:     `tag_slug == "spoilers"`,
		ApprovalRule: `tag_type == "user" && context == "message"`,
	})

	result, err := svc.CreateTaggings(ctx, CreateTaggingsRequest{
		Content:    "#spoilers for @sam and #fantasy",
		EntityType: "message",
		EntityID:   "m-1",
		Context:    ContextMessage,
		UserID:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Pending)
	assert.Equal(t, 1, result.Skipped)

	sam, err := svc.GetTagBySlug(ctx, "sam", tagging.KindUser)
	require.NoError(t, err)
	assert.Zero(t, sam.UsageCount, "pending taggings do not count as usage")

	approved, err := svc.ListTaggings(ctx, ListTaggingsRequest{EntityType: "message", EntityID: "m-1", ApprovedOnly: true})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "fantasy", approved[0].Tag.Slug)

	all, err := svc.ListTaggings(ctx, ListTaggingsRequest{EntityType: "message", EntityID: "m-1"})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCreateTaggingsDeniedTagIsNotCreated(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, Config{DenyRule: `tag_slug == "spoilers" || (tag_slug == "drama" && tag_usage > 2)`})
	seedTag(t, st, "Drama", "drama", tagging.KindTopic, 5, store.TagMetadata{})

	result, err := svc.CreateTaggings(ctx, CreateTaggingsRequest{
		Content:    "#Spoilers and #drama in #fantasy",
		EntityType: "post",
		EntityID:   "p-1",
		Context:    ContextPost,
		UserID:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Skipped)

	_, err = svc.GetTagBySlug(ctx, "spoilers", tagging.KindTopic)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeNotFound))

	results, err := svc.Search(ctx, SearchRequest{Query: "spoil"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestListTaggingsRequiresTarget(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	_, err := svc.ListTaggings(context.Background(), ListTaggingsRequest{EntityType: "post"})
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeInvalidArgument))
}

func TestRenderStored(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Config{MentionsAsText: true})

	text := "Loved #Dune, thanks @sara. cc @nobody"
	_, err := svc.CreateTaggings(ctx, CreateTaggingsRequest{
		Tags: []TagInput{
			{Name: "Dune", Kind: tagging.KindTopic},
			{Name: "Sara", Kind: tagging.KindUser, EntityID: "u-1"},
		},
		EntityType: "post",
		EntityID:   "p-9",
		Context:    ContextPost,
		UserID:     1,
	})
	require.NoError(t, err)

	segments, err := svc.RenderStored(ctx, "post", "p-9", text)
	require.NoError(t, err)

	var joined string
	var tags []*tagging.TagRef
	for _, seg := range segments {
		joined += seg.Text
		if seg.IsTag() {
			tags = append(tags, seg.Tag)
		}
	}
	assert.Equal(t, text, joined)
	require.Len(t, tags, 2, "unresolved @nobody stays text")
	assert.Equal(t, tagging.KindTopic, tags[0].Kind)
	assert.Equal(t, "/tags/dune", tags[0].Href)
	assert.Equal(t, tagging.KindUser, tags[1].Kind)
	assert.Equal(t, "/profile/u-1", tags[1].Href)
	assert.True(t, tags[1].Resolved)
}

func TestMetricsRecorded(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Config{})

	_, err := svc.Search(ctx, SearchRequest{Query: "x"})
	require.NoError(t, err)
	_, err = svc.CreateTaggings(ctx, CreateTaggingsRequest{})
	require.Error(t, err)

	snap := svc.Metrics().Snapshot()
	assert.EqualValues(t, 1, snap.Operations["search"].Count)
	assert.EqualValues(t, 1, snap.Operations["create_taggings"].ErrorCount)
}
