package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Catalog    CatalogConfig    `yaml:"catalog"`
	Matching   MatchingConfig   `yaml:"matching"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	OCR        OCRConfig        `yaml:"ocr"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
}

// CatalogConfig says where reference records come from and which columns carry identity
type CatalogConfig struct {
	Format string `yaml:"format"` // json | xlsx | sqlite | postgres
	Path   string `yaml:"path"`
	Sheet  string `yaml:"sheet"`
	Table  string `yaml:"table"`

	IdentifierField string `yaml:"identifier_field"`
	KeyField        string `yaml:"key_field"`
	YearField       string `yaml:"year_field"`
	DateField       string `yaml:"date_field"`
	StreetField     string `yaml:"street_field"`
	CountryField    string `yaml:"country_field"`
}

// FieldConfig is one row of the field weight table
type FieldConfig struct {
	Name      string  `yaml:"name"`
	Role      string  `yaml:"role"` // identifier | date | street | city | zip | country | text
	Weight    float64 `yaml:"weight"`
	Threshold float64 `yaml:"threshold"`
}

// RuleConfig is one row of the optional hierarchical bonus table
type RuleConfig struct {
	Name              string   `yaml:"name"`
	Fields            []string `yaml:"fields"`
	RequirePageMarker bool     `yaml:"require_page_marker"`
	Points            float64  `yaml:"points"`
}

// MatchingConfig holds record matcher tuning
type MatchingConfig struct {
	Fields             []FieldConfig `yaml:"fields"`
	MinScore           float64       `yaml:"min_score"`
	IdentifierFallback float64       `yaml:"identifier_fallback"`
	WordDamping        float64       `yaml:"word_damping"`
	PartialDamping     float64       `yaml:"partial_damping"`
	MinWordLen         int           `yaml:"min_word_len"`
	Rules              []RuleConfig  `yaml:"rules"`
	RuleScale          float64       `yaml:"rule_scale"`
}

// ClusterWeights weights each pairwise page signal
type ClusterWeights struct {
	Identity  float64 `yaml:"identity"`
	Codes     float64 `yaml:"codes"`
	Header    float64 `yaml:"header"`
	Footer    float64 `yaml:"footer"`
	Histogram float64 `yaml:"histogram"`
	Structure float64 `yaml:"structure"`
}

// ClusteringConfig holds page clusterer tuning
type ClusteringConfig struct {
	Threshold            float64        `yaml:"threshold"`
	Weights              ClusterWeights `yaml:"weights"`
	HashDistance         int            `yaml:"hash_distance"`
	HistogramCorrelation float64        `yaml:"histogram_correlation"`
	SSIM                 float64        `yaml:"ssim"`
	Visual               bool           `yaml:"visual"`
	RenderDPI            int            `yaml:"render_dpi"`
}

// PipelineConfig holds worker pool sizing
type PipelineConfig struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

// OCRConfig holds page text extraction configuration
type OCRConfig struct {
	Pdftotext    string `yaml:"pdftotext"`
	Pdftoppm     string `yaml:"pdftoppm"`
	Tesseract    string `yaml:"tesseract"`
	Lang         string `yaml:"lang"`
	DPI          int    `yaml:"dpi"`
	TessdataDir  string `yaml:"tessdata_dir"`
	MinTextChars int    `yaml:"min_text_chars"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	SQLitePath       string        `yaml:"sqlite_path"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// Field names of the SAP goods-receipt export
const (
	FieldDeliveryNote = "Delivery Note Number"
	FieldDeliveryDate = "Delivery Note Date"
	FieldVendorName1  = "Vendor - Name 1"
	FieldVendorName2  = "Vendor - Name 2"
	FieldStreet       = "Vendor - Address - Street"
	FieldHouseNumber  = "Vendor - Address - Number"
	FieldZip          = "Vendor - Address - ZIP Code"
	FieldCity         = "Vendor - Address - City"
	FieldCountry      = "Vendor - Address - Country"
	FieldRegion       = "Vendor - Address - Region"
)

// DefaultConfig returns the configuration used for SAP delivery note matching
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Format:          "json",
			IdentifierField: FieldDeliveryNote,
			KeyField:        "MBLNR",
			YearField:       "MJAHR",
			DateField:       FieldDeliveryDate,
			StreetField:     FieldStreet,
			CountryField:    FieldCountry,
		},
		Matching: MatchingConfig{
			Fields: []FieldConfig{
				{Name: FieldDeliveryNote, Role: "identifier", Weight: 10, Threshold: 0.85},
				{Name: FieldDeliveryDate, Role: "date", Weight: 5, Threshold: 0.8},
				{Name: FieldVendorName1, Role: "text", Weight: 4, Threshold: 0.7},
				{Name: FieldVendorName2, Role: "text", Weight: 2, Threshold: 0.7},
				{Name: FieldStreet, Role: "street", Weight: 4, Threshold: 0.6},
				{Name: FieldHouseNumber, Role: "text", Weight: 2, Threshold: 0.7},
				{Name: FieldZip, Role: "zip", Weight: 4, Threshold: 1.0},
				{Name: FieldCity, Role: "city", Weight: 4, Threshold: 0.85},
				{Name: FieldCountry, Role: "country", Weight: 1, Threshold: 0.85},
				{Name: FieldRegion, Role: "text", Weight: 1, Threshold: 0.7},
			},
			MinScore:           4.0,
			IdentifierFallback: 0.8,
			WordDamping:        0.7,
			PartialDamping:     0.5,
			MinWordLen:         4,
		},
		Clustering: ClusteringConfig{
			Threshold: 5,
			Weights: ClusterWeights{
				Identity:  10,
				Codes:     5,
				Header:    2,
				Footer:    2,
				Histogram: 1,
				Structure: 1,
			},
			HashDistance:         2,
			HistogramCorrelation: 0.9,
			SSIM:                 0.8,
			RenderDPI:            72,
		},
		Pipeline: PipelineConfig{
			Workers:   4,
			QueueSize: 256,
		},
		OCR: OCRConfig{
			Lang:         "deu+eng",
			DPI:          300,
			MinTextChars: 20,
		},
		Server: ServerConfig{
			GRPCAddr: ":8080",
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
	}
}

// LoadConfig starts from DefaultConfig, overlays the YAML file at path (if any),
// then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read %s", path), err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("parse %s", path), fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Catalog.Format = getEnv("DOCMATCH_CATALOG_FORMAT", c.Catalog.Format)
	c.Catalog.Path = getEnv("DOCMATCH_CATALOG", c.Catalog.Path)
	c.Catalog.Table = getEnv("DOCMATCH_CATALOG_TABLE", c.Catalog.Table)
	c.Matching.MinScore = getEnvAsFloat("DOCMATCH_MIN_SCORE", c.Matching.MinScore)
	c.Clustering.Threshold = getEnvAsFloat("DOCMATCH_CLUSTER_THRESHOLD", c.Clustering.Threshold)
	c.Pipeline.Workers = getEnvAsInt("DOCMATCH_WORKERS", c.Pipeline.Workers)
	c.Pipeline.TaskTimeout = getEnvAsDuration("DOCMATCH_TASK_TIMEOUT", c.Pipeline.TaskTimeout)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.Lang = getEnv("TESSERACT_LANG", c.OCR.Lang)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.SQLitePath = getEnv("DOCMATCH_SQLITE", c.Database.SQLitePath)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

var fieldRoles = []string{"identifier", "date", "street", "city", "zip", "country", "text"}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("catalog.format", c.Catalog.Format, OneOf("json", "xlsx", "sqlite", "postgres"))
	v.Field("catalog.identifier_field", c.Catalog.IdentifierField, Required)
	if c.Catalog.Format == "sqlite" || c.Catalog.Format == "postgres" {
		v.Field("catalog.table", c.Catalog.Table, Required, SQLIdentifier)
	}

	if len(c.Matching.Fields) == 0 {
		v.Field("matching.fields", nil, Required)
	}
	seen := make(map[string]struct{}, len(c.Matching.Fields))
	for i, f := range c.Matching.Fields {
		prefix := fmt.Sprintf("matching.fields[%d]", i)
		v.Field(prefix+".name", f.Name, Required)
		v.Field(prefix+".role", f.Role, OneOf(fieldRoles...))
		v.Field(prefix+".weight", f.Weight, Positive)
		v.Field(prefix+".threshold", f.Threshold, UnitInterval)
		if _, dup := seen[f.Name]; dup {
			v.Field(prefix+".name", f.Name, func(name string, value interface{}) *ValidationError {
				return &ValidationError{Field: name, Value: value, Message: "is duplicated"}
			})
		}
		seen[f.Name] = struct{}{}
	}
	v.Field("matching.min_score", c.Matching.MinScore, NonNegative)
	v.Field("matching.identifier_fallback", c.Matching.IdentifierFallback, UnitInterval)
	v.Field("matching.word_damping", c.Matching.WordDamping, UnitInterval)
	v.Field("matching.partial_damping", c.Matching.PartialDamping, UnitInterval)
	v.Field("matching.rule_scale", c.Matching.RuleScale, NonNegative)
	for i, r := range c.Matching.Rules {
		prefix := fmt.Sprintf("matching.rules[%d]", i)
		v.Field(prefix+".name", r.Name, Required)
		v.Field(prefix+".points", r.Points, NonNegative)
		for _, name := range r.Fields {
			if _, ok := seen[name]; !ok {
				v.Field(prefix+".fields", name, func(n string, value interface{}) *ValidationError {
					return &ValidationError{Field: n, Value: value, Message: "names a field missing from matching.fields"}
				})
			}
		}
	}

	v.Field("clustering.threshold", c.Clustering.Threshold, Positive)
	v.Field("clustering.histogram_correlation", c.Clustering.HistogramCorrelation, UnitInterval)
	v.Field("clustering.ssim", c.Clustering.SSIM, UnitInterval)
	v.Field("pipeline.workers", c.Pipeline.Workers, Positive)
	v.Field("server.grpc_addr", c.Server.GRPCAddr, Required)

	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
