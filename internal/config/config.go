package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/numistr/internal/domain/material"
)

// Config holds the numistr API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Cache      CacheConfig      `yaml:"cache"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Materials  MaterialsConfig  `yaml:"materials"`
	RateLimits RateLimitsConfig `yaml:"rate_limits"`
	Auth       AuthConfig       `yaml:"auth"`
	Images     ImagesConfig     `yaml:"images"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds subscription tier settings.
type AuthConfig struct {
	ProGroupID  int64  `yaml:"pro_group_id"`
	TokenSeries string `yaml:"token_series"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN              string `yaml:"dsn"`
	MaxConns         int32  `yaml:"max_conns"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
}

// CacheConfig holds the shared key/value store settings (rate-limit counters, payload cache).
type CacheConfig struct {
	Enabled      *bool    `yaml:"enabled"`
	Addrs        []string `yaml:"addrs"`
	Password     string   `yaml:"password"`
	DB           int      `yaml:"db"`
	KeyPrefix    string   `yaml:"key_prefix"`
	TTLStatsSec  int      `yaml:"ttl_stats_sec"`
	TTLRegionSec int      `yaml:"ttl_regions_sec"`
}

// IsEnabled reports whether payload caching is on (default true).
func (c CacheConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// CatalogConfig describes the catalog schema and query limits.
type CatalogConfig struct {
	RootCategoryID  int64            `yaml:"root_category_id"`
	SafeCap         int64            `yaml:"safe_cap"`
	MaxPerPage      int              `yaml:"max_per_page"`
	DefaultPerPage  int              `yaml:"default_per_page"`
	VariantTables   []string         `yaml:"variant_tables"`   // first existing wins
	AttributeTables []string         `yaml:"attribute_tables"` // first existing wins
	ContentTable    string           `yaml:"content_table"`
	CategoryTable   string           `yaml:"category_table"`
	ImageTable      string           `yaml:"image_table"`
	Extension       string           `yaml:"extension"`
	TitleLanguages  []string         `yaml:"title_languages"`
	FieldIDs        map[string]int64 `yaml:"field_ids"`
}

// MaterialsConfig holds the material vocabulary.
type MaterialsConfig struct {
	ShortCodes map[string]string   `yaml:"short_codes"`
	Variants   map[string][]string `yaml:"variants"`
	List       []MaterialEntry     `yaml:"list"`
}

// MaterialEntry is one row of the public materials list.
type MaterialEntry struct {
	Code   string `yaml:"code"`
	Name   string `yaml:"name"`
	NameTR string `yaml:"name_tr"`
}

// Table builds the normalizer vocabulary. Substring stems are not configurable.
func (m MaterialsConfig) Table() material.Table {
	list := make([]material.Entry, len(m.List))
	for i, e := range m.List {
		list[i] = material.Entry{Code: e.Code, Name: e.Name, NameTR: e.NameTR}
	}
	return material.Table{
		ShortCodes: m.ShortCodes,
		Variants:   m.Variants,
		Stems:      material.DefaultStems(),
		List:       list,
	}
}

// RateLimitsConfig holds per-endpoint ceilings (requests per window).
type RateLimitsConfig struct {
	Enabled        *bool          `yaml:"enabled"`
	WindowSec      int            `yaml:"window_sec"`
	Ceilings       map[string]int `yaml:"ceilings"`
	ComplexBase    int            `yaml:"complex_base"`
	ComplexFloor   int            `yaml:"complex_floor"`
	TimeoutBaseSec int            `yaml:"timeout_base_sec"`
	TimeoutMaxSec  int            `yaml:"timeout_max_sec"`
}

// IsEnabled reports whether rate limiting is on (default true).
func (c RateLimitsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ImagesConfig holds image URL settings.
type ImagesConfig struct {
	Root       string `yaml:"root"`
	ViewerPath string `yaml:"viewer_path"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes raw YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 35
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	c.applyCacheDefaults()
	c.applyCatalogDefaults()
	c.applyMaterialDefaults()
	c.applyRateLimitDefaults()
	if c.Auth.TokenSeries == "" {
		c.Auth.TokenSeries = "api"
	}
	if c.Images.ViewerPath == "" {
		c.Images.ViewerPath = "/index.php?option=com_numistr&view=gorsel"
	}
}

func (c *Config) applyCacheDefaults() {
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "numistr:"
	}
	if c.Cache.TTLStatsSec <= 0 {
		c.Cache.TTLStatsSec = 300
	}
	if c.Cache.TTLRegionSec <= 0 {
		c.Cache.TTLRegionSec = 3600
	}
}

func (c *Config) applyCatalogDefaults() {
	cat := &c.Catalog
	if cat.RootCategoryID <= 0 {
		cat.RootCategoryID = 16
	}
	if cat.SafeCap <= 0 {
		cat.SafeCap = 2000
	}
	if cat.MaxPerPage <= 0 {
		cat.MaxPerPage = 100
	}
	if cat.DefaultPerPage <= 0 {
		cat.DefaultPerPage = 20
	}
	if len(cat.VariantTables) == 0 {
		cat.VariantTables = []string{"numistr_variants_public_mat", "numistr_variants_public"}
	}
	if len(cat.AttributeTables) == 0 {
		cat.AttributeTables = []string{"fields_values", "fields_value"}
	}
	if cat.ContentTable == "" {
		cat.ContentTable = "content"
	}
	if cat.CategoryTable == "" {
		cat.CategoryTable = "categories"
	}
	if cat.ImageTable == "" {
		cat.ImageTable = "coins_images"
	}
	if cat.Extension == "" {
		cat.Extension = "com_content"
	}
	if len(cat.TitleLanguages) == 0 {
		cat.TitleLanguages = []string{"tr", "en"}
	}
	if cat.FieldIDs == nil {
		cat.FieldIDs = map[string]int64{
			"material":       23,
			"mint_name":      4,
			"authority_name": 2,
		}
	}
}

func (c *Config) applyMaterialDefaults() {
	m := &c.Materials
	if len(m.ShortCodes) == 0 {
		m.ShortCodes = map[string]string{
			"ae": "bronze",
			"ar": "silver",
			"av": "gold",
			"au": "gold",
			"el": "electrum",
			"cu": "bronze",
			"pb": "lead",
			"fe": "iron",
		}
	}
	if len(m.Variants) == 0 {
		m.Variants = map[string][]string{
			"bronze":   {"bronze", "copper", "bakır", "bakir", "cu", "bronz", "ae"},
			"electrum": {"electrum", "elektrum", "el"},
			"gold":     {"gold", "altın", "altin", "av", "au"},
			"iron":     {"iron", "demir", "fe"},
			"lead":     {"lead", "kurşun", "kursun", "pb"},
			"silver":   {"silver", "gümüş", "gumus", "ar"},
		}
	}
	if len(m.List) == 0 {
		m.List = []MaterialEntry{
			{Code: "bronze", Name: "Bronze", NameTR: "Bronz"},
			{Code: "silver", Name: "Silver", NameTR: "Gümüş"},
			{Code: "gold", Name: "Gold", NameTR: "Altın"},
			{Code: "electrum", Name: "Electrum", NameTR: "Elektrum"},
			{Code: "copper", Name: "Copper", NameTR: "Bakır"},
			{Code: "lead", Name: "Lead", NameTR: "Kurşun"},
			{Code: "iron", Name: "Iron", NameTR: "Demir"},
		}
	}
}

func (c *Config) applyRateLimitDefaults() {
	rl := &c.RateLimits
	if rl.WindowSec <= 0 {
		rl.WindowSec = 60
	}
	defaults := map[string]int{
		"default":       60,
		"search":        30,
		"complex_query": 10,
		"stats":         20,
		"facets":        15,
	}
	if rl.Ceilings == nil {
		rl.Ceilings = make(map[string]int, len(defaults))
	}
	for k, v := range defaults {
		if rl.Ceilings[k] <= 0 {
			rl.Ceilings[k] = v
		}
	}
	if rl.ComplexBase <= 0 {
		rl.ComplexBase = 60
	}
	if rl.ComplexFloor <= 0 {
		rl.ComplexFloor = rl.Ceilings["complex_query"]
	}
	if rl.TimeoutBaseSec <= 0 {
		rl.TimeoutBaseSec = 5
	}
	if rl.TimeoutMaxSec <= 0 {
		rl.TimeoutMaxSec = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if len(c.Cache.Addrs) == 0 && (c.Cache.IsEnabled() || c.RateLimits.IsEnabled()) {
		return fmt.Errorf("cache.addrs is required")
	}
	if c.Catalog.MaxPerPage > 1000 {
		return fmt.Errorf("catalog.max_per_page must be at most 1000, got %d", c.Catalog.MaxPerPage)
	}
	if c.Catalog.DefaultPerPage > c.Catalog.MaxPerPage {
		return fmt.Errorf("catalog.default_per_page (%d) exceeds catalog.max_per_page (%d)",
			c.Catalog.DefaultPerPage, c.Catalog.MaxPerPage)
	}
	for key, id := range c.Catalog.FieldIDs {
		if id <= 0 {
			return fmt.Errorf("catalog.field_ids.%s must be positive, got %d", key, id)
		}
	}
	for code, canonical := range c.Materials.ShortCodes {
		if _, ok := c.Materials.Variants[canonical]; !ok {
			return fmt.Errorf("materials.short_codes.%s points to unknown material %q", code, canonical)
		}
	}
	for name, ceiling := range c.RateLimits.Ceilings {
		if ceiling <= 0 {
			return fmt.Errorf("rate_limits.ceilings.%s must be positive, got %d", name, ceiling)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
