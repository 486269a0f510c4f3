package tag

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/bookcircle/plugin/tagging"
	apierrors "github.com/hrygo/bookcircle/server/internal/errors"
	"github.com/hrygo/bookcircle/server/internal/observability"
	"github.com/hrygo/bookcircle/store"
)

// FindOrCreate returns the tag for (slug, kind), creating it when missing.
// User tags are also matched by entity id and take their slug from the permalink.
func (s *Service) FindOrCreate(ctx context.Context, find FindOrCreateTag) (*store.Tag, error) {
	return s.findOrCreate(ctx, find, nil)
}

// createGuard reports whether a missing tag may be created.
type createGuard func(name, slug string) (bool, error)

// findOrCreate is FindOrCreate with an optional guard consulted before a new tag is
// inserted. A refused creation returns a nil tag and no error.
func (s *Service) findOrCreate(ctx context.Context, find FindOrCreateTag, guard createGuard) (*store.Tag, error) {
	if _, err := tagging.ParseTagKind(string(find.Kind)); err != nil {
		return nil, apierrors.InvalidArgument("invalid tag type %q", find.Kind)
	}
	name := strings.TrimSpace(find.Name)
	slug := tagSlug(name, find.Kind, find.Metadata)
	if slug == "" {
		return nil, apierrors.InvalidArgument("tag name %q has no usable characters", find.Name)
	}
	kind := string(find.Kind)

	existing, err := s.store.GetTag(ctx, &store.FindTag{Slug: &slug, Type: &kind})
	if err != nil {
		return nil, errors.Wrap(err, "failed to find tag")
	}
	if existing == nil && find.Kind == tagging.KindUser && find.Metadata.EntityID != "" {
		entityID := find.Metadata.EntityID
		existing, err = s.store.GetTag(ctx, &store.FindTag{Type: &kind, EntityID: &entityID})
		if err != nil {
			return nil, errors.Wrap(err, "failed to find user tag")
		}
	}

	if existing != nil {
		return s.refreshUserTag(ctx, existing, find)
	}
	if guard != nil {
		allowed, err := guard(name, slug)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, nil
		}
	}

	created, err := s.store.CreateTag(ctx, &store.Tag{
		UID:       shortuuid.New(),
		Name:      name,
		Slug:      slug,
		Type:      kind,
		Metadata:  find.Metadata,
		CreatedBy: find.CreatedBy,
	})
	if err != nil {
		// A concurrent writer may have created the same tag.
		if again, findErr := s.store.GetTag(ctx, &store.FindTag{Slug: &slug, Type: &kind}); findErr == nil && again != nil {
			return again, nil
		}
		return nil, errors.Wrap(err, "failed to create tag")
	}
	s.InvalidateSearchCache(ctx)
	return created, nil
}

// refreshUserTag moves a user tag to a new permalink and merges metadata.
func (s *Service) refreshUserTag(ctx context.Context, existing *store.Tag, find FindOrCreateTag) (*store.Tag, error) {
	permalink := find.Metadata.Permalink
	if find.Kind != tagging.KindUser || permalink == "" {
		return existing, nil
	}
	slug := strings.ToLower(permalink)
	if existing.Metadata.Permalink == permalink && existing.Slug == slug {
		return existing, nil
	}
	metadata := mergeMetadata(existing.Metadata, find.Metadata)
	updated, err := s.store.UpdateTag(ctx, &store.UpdateTag{
		ID:       existing.ID,
		Slug:     &slug,
		Metadata: &metadata,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to refresh user tag %d", existing.ID)
	}
	s.InvalidateSearchCache(ctx)
	return updated, nil
}

func tagSlug(name string, kind tagging.TagKind, metadata store.TagMetadata) string {
	if kind == tagging.KindUser && metadata.Permalink != "" {
		return strings.ToLower(metadata.Permalink)
	}
	return NormalizeSlug(name)
}

func mergeMetadata(base, over store.TagMetadata) store.TagMetadata {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.EntityID, over.EntityID)
	set(&base.EntityType, over.EntityType)
	set(&base.Permalink, over.Permalink)
	set(&base.AvatarURL, over.AvatarURL)
	set(&base.Sublabel, over.Sublabel)
	set(&base.Description, over.Description)
	set(&base.Color, over.Color)
	return base
}

// CreateTaggings attaches the tags found in req.Content and req.Tags to an entity.
// Tags rejected by the deny rule are skipped; tags matched by the approval rule are stored pending.
func (s *Service) CreateTaggings(ctx context.Context, req CreateTaggingsRequest) (result *CreateTaggingsResult, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(observability.OpCreateTaggings, start, err) }()

	if err := validateCreateTaggings(req); err != nil {
		return nil, err
	}

	inputs := collectTagInputs(req)
	result = &CreateTaggingsResult{Taggings: []*store.Tagging{}}
	if len(inputs) == 0 {
		return result, nil
	}

	if err := s.checkRateLimits(req.UserID, inputs); err != nil {
		return nil, err
	}

	creates := make([]*store.Tagging, 0, len(inputs))
	usage := make(map[int32]int32)
	for _, in := range inputs {
		// New tags are checked against the deny rule before they are inserted.
		guard := func(name, slug string) (bool, error) {
			decision, err := s.policy.Evaluate(policyInput(req, string(in.Kind), name, slug, 0))
			if err != nil {
				return false, apierrors.Internal("failed to evaluate tag policy", err)
			}
			return decision.Allowed, nil
		}
		t, err := s.findOrCreate(ctx, FindOrCreateTag{
			Name:      in.Name,
			Kind:      in.Kind,
			Metadata:  inputMetadata(in),
			CreatedBy: req.UserID,
		}, guard)
		if err != nil {
			if apierrors.IsCode(err, apierrors.ErrCodeInvalidArgument) {
				result.Skipped++
				continue
			}
			return nil, err
		}
		if t == nil {
			result.Skipped++
			continue
		}

		decision, err := s.policy.Evaluate(policyInput(req, t.Type, t.Name, t.Slug, t.UsageCount))
		if err != nil {
			return nil, apierrors.Internal("failed to evaluate tag policy", err)
		}
		if !decision.Allowed {
			result.Skipped++
			continue
		}

		status := store.TaggingApproved
		if decision.RequiresApproval {
			status = store.TaggingPending
		} else {
			usage[t.ID]++
		}

		var position tagging.Span
		if in.Position != nil {
			position = *in.Position
		}
		creates = append(creates, &store.Tagging{
			UID:           shortuuid.New(),
			TagID:         t.ID,
			EntityType:    req.EntityType,
			EntityID:      req.EntityID,
			Context:       req.Context,
			TaggedBy:      req.UserID,
			PositionStart: int32(position.Start),
			PositionEnd:   int32(position.End),
			Status:        status,
		})
	}

	taggings, err := s.store.CreateTaggings(ctx, creates)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create taggings")
	}
	for tagID, delta := range usage {
		if err := s.store.IncrementTagUsage(ctx, tagID, delta); err != nil {
			return nil, errors.Wrap(err, "failed to update tag usage")
		}
	}
	if len(usage) > 0 {
		s.InvalidateSearchCache(ctx)
	}

	for _, t := range taggings {
		if t.Status == store.TaggingPending {
			result.Pending++
		} else {
			result.Created++
		}
	}
	result.Taggings = taggings
	observability.LoggerFromContext(ctx).Debug("taggings created",
		slog.String("entity_type", req.EntityType),
		slog.String("entity_id", req.EntityID),
		slog.Int("created", result.Created),
		slog.Int("pending", result.Pending),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

func policyInput(req CreateTaggingsRequest, kind, name, slug string, usage int32) PolicyInput {
	return PolicyInput{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Context:    req.Context,
		TagKind:    kind,
		TagName:    name,
		TagSlug:    slug,
		TagUsage:   int64(usage),
		UserID:     int64(req.UserID),
	}
}

func validateCreateTaggings(req CreateTaggingsRequest) error {
	if req.UserID == 0 {
		return apierrors.Unauthenticated("caller identity is required")
	}
	if strings.TrimSpace(req.EntityType) == "" || strings.TrimSpace(req.EntityID) == "" {
		return apierrors.InvalidArgument("entityType and entityId are required")
	}
	if !validContexts[req.Context] {
		return apierrors.InvalidArgument("invalid context %q", req.Context)
	}
	for _, in := range req.Tags {
		if _, err := tagging.ParseTagKind(string(in.Kind)); err != nil {
			return apierrors.InvalidArgument("invalid tag type %q", in.Kind)
		}
		if strings.TrimSpace(in.Name) == "" {
			return apierrors.InvalidArgument("tag name is required")
		}
		if p := in.Position; p != nil && (p.Start < 0 || p.End < p.Start) {
			return apierrors.InvalidArgument("invalid position [%d, %d)", p.Start, p.End)
		}
	}
	return nil
}

// collectTagInputs lists parsed content tags first, then explicit tags.
func collectTagInputs(req CreateTaggingsRequest) []TagInput {
	parsed := tagging.Scan(req.Content)
	inputs := make([]TagInput, 0, len(parsed)+len(req.Tags))
	for _, p := range parsed {
		kind := tagging.KindUser
		if p.Kind == tagging.ParsedHashtag {
			kind = tagging.KindTopic
		}
		span := p.Span
		inputs = append(inputs, TagInput{Name: p.RawName, Kind: kind, Position: &span})
	}
	return append(inputs, req.Tags...)
}

func inputMetadata(in TagInput) store.TagMetadata {
	metadata := store.TagMetadata{EntityID: in.EntityID, EntityType: in.EntityType}
	if in.Kind == tagging.KindUser && metadata.EntityType == "" {
		metadata.EntityType = "user"
	}
	return metadata
}

// checkRateLimits charges mentions and hashtags against the caller's per-minute budgets.
func (s *Service) checkRateLimits(userID int32, inputs []TagInput) error {
	var mentions, hashtags int
	for _, in := range inputs {
		switch in.Kind {
		case tagging.KindUser, tagging.KindEntity:
			mentions++
		case tagging.KindTopic:
			hashtags++
		}
	}
	key := strconv.Itoa(int(userID))
	if mentions > 0 && !s.mentionLimiter.AllowN(key, mentions) {
		return apierrors.RateLimitExceeded("too many mentions, try again later").
			WithDetail("class", "mention").
			WithDetail("limitPerMinute", s.config.MentionRateLimit)
	}
	if hashtags > 0 && !s.hashtagLimiter.AllowN(key, hashtags) {
		return apierrors.RateLimitExceeded("too many hashtags, try again later").
			WithDetail("class", "hashtag").
			WithDetail("limitPerMinute", s.config.HashtagRateLimit)
	}
	return nil
}

// ListTaggings returns taggings joined with their tags, newest first.
// Taggings whose tag was deleted are left out.
func (s *Service) ListTaggings(ctx context.Context, req ListTaggingsRequest) (views []*TaggingView, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(observability.OpListTaggings, start, err) }()

	find := &store.FindTagging{TagID: req.TagID}
	if req.TagID == nil {
		if req.EntityType == "" || req.EntityID == "" {
			return nil, apierrors.InvalidArgument("entityType and entityId are required")
		}
	}
	if req.EntityType != "" {
		find.EntityType = &req.EntityType
	}
	if req.EntityID != "" {
		find.EntityID = &req.EntityID
	}
	if req.Context != "" {
		find.Context = &req.Context
	}
	if req.ApprovedOnly {
		approved := store.TaggingApproved
		find.Status = &approved
	}
	if req.Limit > 0 {
		find.Limit = &req.Limit
	}

	taggings, err := s.store.ListTaggings(ctx, find)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list taggings")
	}
	if len(taggings) == 0 {
		return []*TaggingView{}, nil
	}

	byID, err := s.tagsByID(ctx, taggings)
	if err != nil {
		return nil, err
	}

	views = make([]*TaggingView, 0, len(taggings))
	for _, t := range taggings {
		if tag, ok := byID[t.TagID]; ok {
			views = append(views, &TaggingView{Tagging: t, Tag: tag})
		}
	}
	return views, nil
}
