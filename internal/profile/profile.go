package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where bookcircle stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// InstanceURL is the public url of the instance, used for feed links.
	InstanceURL string

	// Tag configuration
	TagSearchCacheTTL    time.Duration // BOOKCIRCLE_TAG_SEARCH_CACHE_TTL (default: 5m)
	TagSearchMaxLimit    int           // BOOKCIRCLE_TAG_SEARCH_MAX_LIMIT (default: 50)
	TagMentionRateLimit  int           // BOOKCIRCLE_TAG_MENTION_RATE_LIMIT, mentions per minute (default: 30)
	TagHashtagRateLimit  int           // BOOKCIRCLE_TAG_HASHTAG_RATE_LIMIT, hashtags per minute (default: 60)
	TagPolicyDenyRule    string        // BOOKCIRCLE_TAG_POLICY_DENY, CEL expression (default: "")
	TagPolicyApproveRule string        // BOOKCIRCLE_TAG_POLICY_APPROVAL, CEL expression (default: "")
	TagMentionsAsText    bool          // BOOKCIRCLE_TAG_MENTIONS_AS_TEXT (default: false)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		slog.Warn("ignoring invalid integer setting", slog.String("key", key), slog.String("value", value))
		return defaultValue
	}
	return n
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		slog.Warn("ignoring invalid duration setting", slog.String("key", key), slog.String("value", value))
		return defaultValue
	}
	return d
}

// FromEnv loads the tag configuration from BOOKCIRCLE_* environment variables.
func (p *Profile) FromEnv() {
	p.TagSearchCacheTTL = getDurationEnvOrDefault("BOOKCIRCLE_TAG_SEARCH_CACHE_TTL", 5*time.Minute)
	p.TagSearchMaxLimit = getIntEnvOrDefault("BOOKCIRCLE_TAG_SEARCH_MAX_LIMIT", 50)
	p.TagMentionRateLimit = getIntEnvOrDefault("BOOKCIRCLE_TAG_MENTION_RATE_LIMIT", 30)
	p.TagHashtagRateLimit = getIntEnvOrDefault("BOOKCIRCLE_TAG_HASHTAG_RATE_LIMIT", 60)
	p.TagPolicyDenyRule = getEnvOrDefault("BOOKCIRCLE_TAG_POLICY_DENY", "")
	p.TagPolicyApproveRule = getEnvOrDefault("BOOKCIRCLE_TAG_POLICY_APPROVAL", "")
	p.TagMentionsAsText = os.Getenv("BOOKCIRCLE_TAG_MENTIONS_AS_TEXT") == "true"
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "bookcircle")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/bookcircle"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("bookcircle_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for postgres")
	}

	if p.TagSearchCacheTTL <= 0 {
		p.TagSearchCacheTTL = 5 * time.Minute
	}
	if p.TagSearchMaxLimit <= 0 {
		p.TagSearchMaxLimit = 50
	}
	if p.TagMentionRateLimit <= 0 {
		p.TagMentionRateLimit = 30
	}
	if p.TagHashtagRateLimit <= 0 {
		p.TagHashtagRateLimit = 60
	}

	return nil
}
