package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config captures every setting of the fieldops service and CLI.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Fixtures  FixturesConfig  `yaml:"fixtures"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
	Rules     RulesConfig     `yaml:"rules"`
	Render    RenderConfig    `yaml:"render"`
	Assistant AssistantConfig `yaml:"assistant"`
}

// ServerConfig controls the HTTP, gRPC health and metrics listeners.
type ServerConfig struct {
	HTTPAddress     string        `yaml:"httpAddress" validate:"required"`
	GRPCAddress     string        `yaml:"grpcAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout" validate:"gte=0"`
}

// WarehouseConfig points at the SQL store holding fault and procedure tables.
// An empty DSN selects the fixture store.
type WarehouseConfig struct {
	Driver         string        `yaml:"driver" validate:"oneof=pgx sqlite"`
	DSN            string        `yaml:"dsn"`
	FaultTable     string        `yaml:"faultTable" validate:"required"`
	TriageTable    string        `yaml:"triageTable"`
	ProcedureTable string        `yaml:"procedureTable"`
	RowLimit       uint64        `yaml:"rowLimit"`
	QueryTimeout   time.Duration `yaml:"queryTimeout" validate:"gte=0"`
}

// FixturesConfig selects fixture files. An empty Dir uses the built-in set.
type FixturesConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// SearchConfig configures the OpenSearch procedure index. Without addresses
// searches run locally over the loaded procedures.
type SearchConfig struct {
	Addresses          []string      `yaml:"addresses" validate:"dive,url"`
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	Index              string        `yaml:"index" validate:"required"`
	Timeout            time.Duration `yaml:"timeout" validate:"gte=0"`
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify"`
}

// CacheConfig controls memoisation of the loaded dataset.
type CacheConfig struct {
	Backend      string        `yaml:"backend" validate:"oneof=none memory redis"`
	TTL          time.Duration `yaml:"ttl" validate:"gte=0"`
	Addr         string        `yaml:"addr" validate:"required_if=Backend redis"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db" validate:"gte=0"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB" validate:"gte=0"`
	MaxBackups int    `yaml:"maxBackups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"maxAgeDays" validate:"gte=0"`
}

// RulesConfig points at the alert action rule pack.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// RenderConfig selects the terminal chart renderer.
type RenderConfig struct {
	Mode  string `yaml:"mode" validate:"oneof=auto rich plain"`
	Width int    `yaml:"width" validate:"gte=0"`
}

// AssistantConfig bounds chat sessions. Sessions live in the configured
// cache backend, or in process memory when caching is off.
type AssistantConfig struct {
	HistorySize int           `yaml:"historySize" validate:"gte=1"`
	SessionTTL  time.Duration `yaml:"sessionTTL" validate:"gt=0"`
}

// Load initialises Config from a YAML file, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("FIELDOPS_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddress:     ":8080",
			GRPCAddress:     ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Warehouse: WarehouseConfig{
			Driver:         "pgx",
			FaultTable:     "VW_NETWORK_FAULTS_ENHANCED",
			TriageTable:    "VW_FAULT_TRIAGE",
			ProcedureTable: "SOP_DOCUMENT_METADATA",
			QueryTimeout:   30 * time.Second,
		},
		Search: SearchConfig{
			Index:   "sop_documents",
			Timeout: 5 * time.Second,
		},
		Cache: CacheConfig{
			Backend:      "memory",
			TTL:          5 * time.Minute,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
		Logging:   LoggingConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28},
		Rules:     RulesConfig{Path: "configs/rules/actions.yaml"},
		Render:    RenderConfig{Mode: "auto", Width: 100},
		Assistant: AssistantConfig{HistorySize: 10, SessionTTL: 24 * time.Hour},
	}
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("FIELDOPS_HTTP_ADDRESS", &cfg.Server.HTTPAddress)
	setString("FIELDOPS_GRPC_ADDRESS", &cfg.Server.GRPCAddress)
	setString("FIELDOPS_METRICS_ADDRESS", &cfg.Server.MetricsAddress)

	setString("FIELDOPS_WAREHOUSE_DRIVER", &cfg.Warehouse.Driver)
	setString("FIELDOPS_WAREHOUSE_DSN", &cfg.Warehouse.DSN)
	setString("FIELDOPS_WAREHOUSE_FAULT_TABLE", &cfg.Warehouse.FaultTable)
	setString("FIELDOPS_WAREHOUSE_TRIAGE_TABLE", &cfg.Warehouse.TriageTable)
	setString("FIELDOPS_WAREHOUSE_PROCEDURE_TABLE", &cfg.Warehouse.ProcedureTable)
	if v := os.Getenv("FIELDOPS_WAREHOUSE_ROW_LIMIT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Warehouse.RowLimit = n
		}
	}

	setString("FIELDOPS_FIXTURES_DIR", &cfg.Fixtures.Dir)
	setBool("FIELDOPS_FIXTURES_WATCH", &cfg.Fixtures.Watch)

	if v := os.Getenv("FIELDOPS_SEARCH_ADDRESSES"); v != "" {
		cfg.Search.Addresses = splitCSV(v)
	}
	setString("FIELDOPS_SEARCH_USERNAME", &cfg.Search.Username)
	setString("FIELDOPS_SEARCH_PASSWORD", &cfg.Search.Password)
	setString("FIELDOPS_SEARCH_INDEX", &cfg.Search.Index)
	setDuration("FIELDOPS_SEARCH_TIMEOUT", &cfg.Search.Timeout)

	setString("FIELDOPS_CACHE_BACKEND", &cfg.Cache.Backend)
	setDuration("FIELDOPS_CACHE_TTL", &cfg.Cache.TTL)
	setDuration("FIELDOPS_ASSISTANT_SESSION_TTL", &cfg.Assistant.SessionTTL)
	setString("FIELDOPS_CACHE_ADDR", &cfg.Cache.Addr)
	setString("FIELDOPS_CACHE_USERNAME", &cfg.Cache.Username)
	setString("FIELDOPS_CACHE_PASSWORD", &cfg.Cache.Password)
	setInt("FIELDOPS_CACHE_DB", &cfg.Cache.DB)
	setBool("FIELDOPS_CACHE_TLS", &cfg.Cache.TLS)

	setString("FIELDOPS_LOG_LEVEL", &cfg.Logging.Level)
	if v := os.Getenv("FIELDOPS_LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}
	setString("FIELDOPS_LOG_FILE", &cfg.Logging.File)

	setString("FIELDOPS_RULES_PATH", &cfg.Rules.Path)
	setString("FIELDOPS_RENDER_MODE", &cfg.Render.Mode)
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
