package store

import (
	"context"

	"github.com/pkg/errors"
)

const (
	// SystemSettingSchemaVersionName holds the applied schema version.
	SystemSettingSchemaVersionName = "schema_version"
)

type SystemSetting struct {
	Name        string
	Value       string
	Description string
}

type FindSystemSetting struct {
	Name string
}

func (s *Store) UpsertSystemSetting(ctx context.Context, upsert *SystemSetting) (*SystemSetting, error) {
	setting, err := s.driver.UpsertSystemSetting(ctx, upsert)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert system setting")
	}
	s.systemSettingCache.Set(ctx, setting.Name, setting)
	return setting, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, find *FindSystemSetting) ([]*SystemSetting, error) {
	list, err := s.driver.ListSystemSettings(ctx, find)
	if err != nil {
		return nil, err
	}
	for _, setting := range list {
		s.systemSettingCache.Set(ctx, setting.Name, setting)
	}
	return list, nil
}

// GetSystemSetting returns the named setting, or nil when it is not set.
func (s *Store) GetSystemSetting(ctx context.Context, name string) (*SystemSetting, error) {
	if cached, ok := s.systemSettingCache.Get(ctx, name); ok {
		return cached.(*SystemSetting), nil
	}
	list, err := s.ListSystemSettings(ctx, &FindSystemSetting{Name: name})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
