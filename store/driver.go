package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// SystemSetting model related methods.
	UpsertSystemSetting(ctx context.Context, upsert *SystemSetting) (*SystemSetting, error)
	ListSystemSettings(ctx context.Context, find *FindSystemSetting) ([]*SystemSetting, error)

	// Tag model related methods.
	CreateTag(ctx context.Context, create *Tag) (*Tag, error)
	ListTags(ctx context.Context, find *FindTag) ([]*Tag, error)
	UpdateTag(ctx context.Context, update *UpdateTag) (*Tag, error)
	IncrementTagUsage(ctx context.Context, id int32, delta int32) error
	DeleteTag(ctx context.Context, delete *DeleteTag) error

	// TagAlias model related methods.
	CreateTagAlias(ctx context.Context, create *TagAlias) (*TagAlias, error)
	ListTagAliases(ctx context.Context, find *FindTagAlias) ([]*TagAlias, error)
	DeleteTagAlias(ctx context.Context, delete *DeleteTagAlias) error

	// Tagging model related methods.
	CreateTaggings(ctx context.Context, creates []*Tagging) ([]*Tagging, error)
	ListTaggings(ctx context.Context, find *FindTagging) ([]*Tagging, error)
	DeleteTagging(ctx context.Context, delete *DeleteTagging) error

	// TagSubscription model related methods.
	UpsertTagSubscription(ctx context.Context, upsert *TagSubscription) (*TagSubscription, error)
	ListTagSubscriptions(ctx context.Context, find *FindTagSubscription) ([]*TagSubscription, error)
	DeleteTagSubscription(ctx context.Context, delete *DeleteTagSubscription) error
}
