package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"pb-analyzer/internal/cache"
	"pb-analyzer/internal/engine"
	"pb-analyzer/internal/powerbi"
	"pb-analyzer/internal/sink"
	"pb-analyzer/internal/source"
	"pb-analyzer/internal/visual"
)

var ErrNoActiveDB = errors.New("no active database")

type PowerBIConfig struct {
	Token    string        `mapstructure:"token"`
	APIBase  string        `mapstructure:"api_base"`
	Tenant   string        `mapstructure:"tenant"`
	ClientID string        `mapstructure:"client_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AnalysisConfig struct {
	MaxDepth int           `mapstructure:"max_depth"`
	Workers  int           `mapstructure:"workers"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type OutputConfig struct {
	Dir     string `mapstructure:"dir"`
	Results string `mapstructure:"results"`
	Summary string `mapstructure:"summary"`
}

type DBConfig struct {
	Name     string `mapstructure:"name"`
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Active   bool   `mapstructure:"active"`
	Table    string `mapstructure:"table"`
	Truncate bool   `mapstructure:"truncate"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type SinkConfig struct {
	MinIO     sink.MinIOConfig `mapstructure:"minio"`
	Databases []DBConfig       `mapstructure:"databases"`
}

type Config struct {
	PowerBI  PowerBIConfig   `mapstructure:"powerbi"`
	Analysis AnalysisConfig  `mapstructure:"analysis"`
	Output   OutputConfig    `mapstructure:"output"`
	Cache    cache.Config    `mapstructure:"cache"`
	Sink     SinkConfig      `mapstructure:"sink"`
	S3       source.S3Config `mapstructure:"s3"`
	Server   ServerConfig    `mapstructure:"server"`
}

// Every key gets a default so AutomaticEnv can override it.
func setDefaults() {
	viper.SetDefault("powerbi.token", "")
	viper.SetDefault("powerbi.api_base", powerbi.DefaultAPIBase)
	viper.SetDefault("powerbi.tenant", powerbi.DefaultTenant)
	viper.SetDefault("powerbi.client_id", powerbi.DefaultClientID)
	viper.SetDefault("powerbi.timeout", powerbi.DefaultTimeout)

	viper.SetDefault("analysis.max_depth", visual.DefaultMaxDepth)
	viper.SetDefault("analysis.workers", engine.DefaultWorkers)
	viper.SetDefault("analysis.timeout", engine.DefaultTimeout)

	viper.SetDefault("output.dir", "")
	viper.SetDefault("output.results", "")
	viper.SetDefault("output.summary", "")

	viper.SetDefault("cache.addr", "")
	viper.SetDefault("cache.password", "")
	viper.SetDefault("cache.db", 0)
	viper.SetDefault("cache.ttl", cache.DefaultTTL)

	viper.SetDefault("sink.minio.endpoint", "")
	viper.SetDefault("sink.minio.access_key", "")
	viper.SetDefault("sink.minio.secret_key", "")
	viper.SetDefault("sink.minio.bucket", "")
	viper.SetDefault("sink.minio.use_ssl", false)
	viper.SetDefault("sink.minio.prefix", "pb-analyzer")

	viper.SetDefault("s3.region", "")
	viper.SetDefault("s3.endpoint", "")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 60*time.Second)
}

// LoadConfig reads every section from viper (Flag > Env > Config > Default).
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// GetActiveDBConfig returns the currently active result database. It
// returns ErrNoActiveDB when none is marked active.
func GetActiveDBConfig() (*DBConfig, error) {
	var configs []DBConfig

	if err := viper.UnmarshalKey("sink.databases", &configs); err != nil {
		return nil, fmt.Errorf("failed to parse databases config: %w", err)
	}

	var activeConfig *DBConfig
	count := 0

	for i := range configs {
		if configs[i].Active {
			activeConfig = &configs[i]
			count++
		}
	}

	if count == 0 {
		return nil, fmt.Errorf("%w in config (set active: true)", ErrNoActiveDB)
	}
	if count > 1 {
		return nil, fmt.Errorf("multiple active databases found (only one can be active)")
	}
	if activeConfig.DSN == "" {
		return nil, fmt.Errorf("database %q has no dsn", activeConfig.Name)
	}

	return activeConfig, nil
}
