// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/courthouse-harvester/internal/discovery"
	"github.com/JakeFAU/courthouse-harvester/internal/extract"
	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
)

// EnvPrefix prefixes every environment override, e.g. HARVESTER_HARVEST_MODE.
const EnvPrefix = "HARVESTER"

const maxConcurrency = 16

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Harvest   HarvestConfig    `mapstructure:"harvest"`
	Discovery discovery.Config `mapstructure:"discovery"`
	Extract   ExtractConfig    `mapstructure:"extract"`
	Output    OutputConfig     `mapstructure:"output"`
	Notify    NotifyConfig     `mapstructure:"notify"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Logging   LoggingConfig    `mapstructure:"logging"`
}

// HarvestConfig governs the pipeline, the worker pool and detail fetches.
type HarvestConfig struct {
	Mode        string        `mapstructure:"mode"`
	Concurrency int           `mapstructure:"concurrency"`
	QueueDepth  int           `mapstructure:"queue_depth"`
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PoliteDelay time.Duration `mapstructure:"polite_delay"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
}

// ExtractConfig holds the selector tier landmarks.
type ExtractConfig struct {
	Selectors extract.Selectors `mapstructure:"selectors"`
}

// OutputConfig chooses where the artifact lands. A GCS bucket takes
// precedence over the local path; DryRun keeps it in memory.
type OutputConfig struct {
	Path      string `mapstructure:"path"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSObject string `mapstructure:"gcs_object"`
	DryRun    bool   `mapstructure:"dry_run"`
}

// NotifyConfig holds the optional Pub/Sub run notification target.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether a notification should be sent.
func (n NotifyConfig) Enabled() bool {
	return n.ProjectID != "" && n.Topic != ""
}

// MetricsConfig holds the optional Pushgateway target.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// setDefaults reproduces a run against the Ontario courthouse search API
// in listing mode.
func setDefaults(v *viper.Viper) {
	v.SetDefault("harvest.mode", string(harvest.ModeListing))
	v.SetDefault("harvest.concurrency", 1)
	v.SetDefault("harvest.queue_depth", 64)
	v.SetDefault("harvest.user_agent", "Mozilla/5.0")
	v.SetDefault("harvest.timeout", 15*time.Second)
	v.SetDefault("harvest.polite_delay", time.Second)
	v.SetDefault("harvest.max_attempts", 3)
	v.SetDefault("harvest.backoff_base", 500*time.Millisecond)
	v.SetDefault("harvest.backoff_max", 10*time.Second)

	v.SetDefault("discovery.strategy", discovery.StrategyREST)
	v.SetDefault("discovery.detail_pattern", extract.DefaultDetailPattern)
	v.SetDefault("discovery.fields.name", "title")
	v.SetDefault("discovery.fields.address", "address.address_line")
	v.SetDefault("discovery.fields.url", "url")
	v.SetDefault("discovery.rest.url", "https://www.ontario.ca/api/search")
	v.SetDefault("discovery.rest.page_param", "page")
	v.SetDefault("discovery.rest.start_page", 1)
	v.SetDefault("discovery.rest.max_pages", 100)
	v.SetDefault("discovery.rest.results_path", "results")
	v.SetDefault("discovery.rest.next_path", "next_page_url")
	v.SetDefault("discovery.rest.query", map[string]string{
		"q":      "",
		"filter": "locations",
		"sort":   "title",
	})
	v.SetDefault("discovery.sitemap.url", "")
	v.SetDefault("discovery.listing.url_template", "")
	v.SetDefault("discovery.listing.start_page", 0)
	v.SetDefault("discovery.listing.max_pages", 50)
	v.SetDefault("discovery.graphql.url", "")
	v.SetDefault("discovery.graphql.limit", 0)
	v.SetDefault("discovery.records.url", "")

	selectors := extract.DefaultSelectors()
	v.SetDefault("extract.selectors.title", selectors.Title)
	v.SetDefault("extract.selectors.address", selectors.Address)
	v.SetDefault("extract.selectors.contact", selectors.Contact)

	v.SetDefault("output.path", "courthouses.json")
	v.SetDefault("output.gcs_bucket", "")
	v.SetDefault("output.gcs_object", "")
	v.SetDefault("output.dry_run", false)

	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "")

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "courthouse_harvester")

	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, err := harvest.ParseMode(c.Harvest.Mode); err != nil {
		return fmt.Errorf("harvest.mode: %w", err)
	}
	if c.Harvest.Concurrency < 1 || c.Harvest.Concurrency > maxConcurrency {
		return fmt.Errorf("harvest.concurrency must be between 1 and %d", maxConcurrency)
	}
	if c.Harvest.QueueDepth <= 0 {
		return fmt.Errorf("harvest.queue_depth must be > 0")
	}
	if c.Harvest.Timeout <= 0 {
		return fmt.Errorf("harvest.timeout must be > 0")
	}
	if c.Harvest.PoliteDelay < 0 {
		return fmt.Errorf("harvest.polite_delay must be >= 0")
	}
	if c.Harvest.MaxAttempts <= 0 {
		return fmt.Errorf("harvest.max_attempts must be > 0")
	}
	if c.Harvest.BackoffMax < c.Harvest.BackoffBase {
		return fmt.Errorf("harvest.backoff_max must be >= harvest.backoff_base")
	}
	if !slices.Contains(discovery.Strategies, strings.ToLower(c.Discovery.Strategy)) {
		return fmt.Errorf("discovery.strategy must be one of %s", strings.Join(discovery.Strategies, ", "))
	}
	if _, err := extract.CompileDetailPattern(c.Discovery.DetailPattern); err != nil {
		return fmt.Errorf("discovery.detail_pattern: %w", err)
	}
	if c.Output.GCSBucket == "" && strings.TrimSpace(c.Output.Path) == "" {
		return fmt.Errorf("output.path must be set when output.gcs_bucket is empty")
	}
	if c.Output.GCSBucket != "" && c.Output.ObjectName() == "" {
		return fmt.Errorf("output.gcs_object must be set when output.gcs_bucket is set")
	}
	if (c.Notify.ProjectID == "") != (c.Notify.Topic == "") {
		return fmt.Errorf("notify.project_id and notify.topic must be set together")
	}
	return nil
}

// Mode returns the validated pipeline mode.
func (c Config) Mode() harvest.Mode {
	mode, err := harvest.ParseMode(c.Harvest.Mode)
	if err != nil {
		return harvest.ModeListing
	}
	return mode
}

// ObjectName is the GCS object key: gcs_object, or the base name of path.
func (o OutputConfig) ObjectName() string {
	if o.GCSObject != "" {
		return o.GCSObject
	}
	if strings.TrimSpace(o.Path) == "" {
		return ""
	}
	return filepath.Base(o.Path)
}
