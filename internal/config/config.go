// Package config loads the dedup service's configuration from YAML plus
// environment variable overrides, with hot reload via fsnotify.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/gotrs-io/deduptickets/internal/dedupengine"
)

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
)

// Config represents the application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Embedder   EmbedderConfig   `mapstructure:"embedder"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Clustering ClusteringConfig `mapstructure:"clustering"`
	Merge      MergeConfig      `mapstructure:"merge"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects and configures the docstore backend: memstore
// for tests and local runs, sqlstore over the postgres/mysql/sqlite
// drivers otherwise.
type StoreConfig struct {
	Backend  string `mapstructure:"backend"` // "memory", "postgres", "mysql", "sqlite"
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
	Path     string `mapstructure:"path"` // sqlite file path

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type CacheConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	TTL          time.Duration `mapstructure:"ttl"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type EmbedderConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// EngineConfig carries dedupengine.Weights/Thresholds plus the
// clustering and merge knobs that are fixed per process rather than
// per request.
type EngineConfig struct {
	Weights          dedupengine.Weights    `mapstructure:",squash"`
	Thresholds       dedupengine.Thresholds `mapstructure:",squash"`
	TimeProximityMax time.Duration          `mapstructure:"time_proximity_max"`
	SearchMonths     int                    `mapstructure:"search_months"`
	DedupWindowDays  int                    `mapstructure:"dedup_window_days"`
}

type ClusteringConfig struct {
	MaxMembers       int  `mapstructure:"max_members"`
	TopK             int  `mapstructure:"top_k"`
	FilterByCustomer bool `mapstructure:"filter_by_customer"`
}

type MergeConfig struct {
	RevertWindow time.Duration `mapstructure:"revert_window"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load initializes the configuration with hot reload support.
func Load(configPath string) error {
	var err error
	once.Do(func() {
		v := viper.New()
		setDefaults(v)
		v.SetConfigType("yaml")
		v.SetConfigName("config")
		v.AddConfigPath(configPath)

		if readErr := v.ReadInConfig(); readErr != nil {
			if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
				err = fmt.Errorf("failed to read config: %w", readErr)
				return
			}
		}

		v.SetEnvPrefix("DEDUP")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		newCfg := &Config{}
		if unmarshalErr := v.Unmarshal(newCfg); unmarshalErr != nil {
			err = fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
			return
		}
		mu.Lock()
		cfg = newCfg
		mu.Unlock()

		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			reloaded := &Config{}
			if unmarshalErr := v.Unmarshal(reloaded); unmarshalErr != nil {
				fmt.Printf("failed to reload config: %v\n", unmarshalErr)
				return
			}
			mu.Lock()
			cfg = reloaded
			mu.Unlock()
		})
	})

	return err
}

// Get returns the current configuration (thread-safe).
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// LoadFromFile loads configuration from a specific file, useful for tests.
func LoadFromFile(configFile string) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	newCfg := &Config{}
	if err := v.Unmarshal(newCfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	mu.Lock()
	cfg = newCfg
	mu.Unlock()
	return nil
}

// MustLoad loads configuration and panics on error.
func MustLoad(configPath string) {
	if err := Load(configPath); err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "deduptickets")
	v.SetDefault("app.env", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.max_open_conns", 20)
	v.SetDefault("store.max_idle_conns", 5)
	v.SetDefault("store.conn_max_lifetime", time.Hour)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.host", "localhost")
	v.SetDefault("cache.port", 6379)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.min_idle_conns", 2)

	v.SetDefault("embedder.model", "text-embedding-3-small")
	v.SetDefault("embedder.dimensions", 1536)
	v.SetDefault("embedder.timeout", 10*time.Second)

	defaultWeights := dedupengine.DefaultWeights()
	defaultThresholds := dedupengine.DefaultThresholds()
	v.SetDefault("engine.weight_semantic", defaultWeights.Semantic)
	v.SetDefault("engine.weight_subcategory", defaultWeights.Subcategory)
	v.SetDefault("engine.weight_category", defaultWeights.Category)
	v.SetDefault("engine.weight_time", defaultWeights.Time)
	v.SetDefault("engine.auto_threshold", defaultThresholds.Auto)
	v.SetDefault("engine.review_threshold", defaultThresholds.Review)
	v.SetDefault("engine.time_proximity_max", 14*24*time.Hour)
	v.SetDefault("engine.search_months", 2)
	v.SetDefault("engine.dedup_window_days", 14)

	v.SetDefault("clustering.max_members", 100)
	v.SetDefault("clustering.top_k", 10)
	v.SetDefault("clustering.filter_by_customer", false)

	v.SetDefault("merge.revert_window", 24*time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// GetDSN returns the connection string for the configured store backend.
func (c StoreConfig) GetDSN() string {
	switch c.Backend {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", c.User, c.Password, c.Host, c.Port, c.Name)
	case "sqlite":
		return c.Path
	default:
		return ""
	}
}

// GetAddr returns the Redis cache server address.
func (c CacheConfig) GetAddr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// GetServerAddr returns the HTTP server listen address.
func (c ServerConfig) GetServerAddr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// IsProduction returns true if running in production mode.
func (c AppConfig) IsProduction() bool { return c.Env == "production" }
