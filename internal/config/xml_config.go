// Package config provides XML-based configuration with defaults and
// environment overrides.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/logvision/backend/internal/extract"
	"github.com/logvision/backend/internal/format"
	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pipeline"
	"github.com/logvision/backend/internal/segment"
	"github.com/logvision/backend/internal/session"
	"github.com/logvision/backend/internal/view"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"LogVision"`

	Server     ServerConfig     `xml:"Server"`
	Storage    StorageConfig    `xml:"Storage"`
	Processing ProcessingConfig `xml:"Processing"`
	Pipeline   PipelineConfig   `xml:"Pipeline"`
	Security   SecurityConfig   `xml:"Security"`
	Advanced   AdvancedConfig   `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`

	// StaticDirectory serves a frontend build; empty serves the embedded page.
	StaticDirectory   string `xml:"StaticDirectory"`
	EnableCompression bool   `xml:"EnableCompression"`
	CompressionLevel  int    `xml:"CompressionLevel"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"`
	TempDirectory    string `xml:"TempDirectory"`
	PatternDatabase  string `xml:"PatternDatabase"`
	PersistSeries    bool   `xml:"PersistSeries"`
}

// ProcessingConfig contains session settings
type ProcessingConfig struct {
	MaxSessions            int `xml:"MaxSessions"`
	SessionTimeoutMinutes  int `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int `xml:"CleanupIntervalMinutes"`
}

// PipelineConfig contains extraction and display settings
type PipelineConfig struct {
	SegmentationStrategy string `xml:"SegmentationStrategy"`
	WindowMinutes        int    `xml:"WindowMinutes"`
	PointsPerSegment     int    `xml:"PointsPerSegment"`
	MaxDisplayPoints     int    `xml:"MaxDisplayPoints"`
	ChartType            string `xml:"ChartType"`
	MinBatchSize         int    `xml:"MinBatchSize"`
	// ChunkSize overrides the size-based chunk tiers when positive.
	ChunkSize int `xml:"ChunkSize"`
}

// SecurityConfig contains file handling restrictions
type SecurityConfig struct {
	AllowFileDeletion bool   `xml:"AllowFileDeletion"`
	AllowedFileTypes  string `xml:"AllowedFileTypes"`
}

// AdvancedConfig contains logging options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	PrettyLogs           bool   `xml:"PrettyLogs"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:              8089,
			BindAddress:       "0.0.0.0",
			EnableCORS:        true,
			AllowOrigins:      "*",
			ReadTimeout:       30,
			WriteTimeout:      30,
			IdleTimeout:       120,
			BodyLimit:         "512M",
			EnableCompression: true,
			CompressionLevel:  5,
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			TempDirectory:    "./data/temp",
			PatternDatabase:  "./data/patterns.duckdb",
			PersistSeries:    false,
		},
		Processing: ProcessingConfig{
			MaxSessions:            10,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
		},
		Pipeline: PipelineConfig{
			SegmentationStrategy: string(segment.StrategyByCount),
			WindowMinutes:        segment.DefaultWindowMinutes,
			PointsPerSegment:     segment.DefaultPointsPerSegment,
			MaxDisplayPoints:     1000,
			ChartType:            string(models.ChartTypeLine),
			MinBatchSize:         50,
		},
		Security: SecurityConfig{
			AllowFileDeletion: true,
			AllowedFileTypes:  ".log,.txt,.csv",
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			PrettyLogs:           true,
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from XML file, writing the defaults there
// first if it does not exist.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- LogVision Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the pipeline settings.
func (c *AppConfig) Validate() error {
	if err := c.Segmentation().Validate(); err != nil {
		return fmt.Errorf("invalid Pipeline section: %w", err)
	}
	if !models.ChartType(c.Pipeline.ChartType).Valid() {
		return fmt.Errorf("invalid Pipeline section: unknown chart type %q", c.Pipeline.ChartType)
	}
	if c.Pipeline.MaxDisplayPoints < 0 || c.Pipeline.MinBatchSize < 0 {
		return fmt.Errorf("invalid Pipeline section: negative size")
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}
	if tempDir := os.Getenv("DUCKDB_TEMP_DIR"); tempDir != "" {
		c.Storage.TempDirectory = tempDir
	}
	if level := os.Getenv("LOGVISION_LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.TempDirectory,
		&c.Storage.PatternDatabase,
		&c.Server.StaticDirectory,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// Segmentation returns the configured segmentation options.
func (c *AppConfig) Segmentation() segment.Options {
	return segment.Options{
		Strategy:         segment.Strategy(c.Pipeline.SegmentationStrategy),
		PointsPerSegment: c.Pipeline.PointsPerSegment,
		WindowMinutes:    c.Pipeline.WindowMinutes,
	}
}

// ViewConfig returns the initial view settings for new sessions.
func (c *AppConfig) ViewConfig() view.Config {
	return view.Config{
		Segmentation:     c.Segmentation(),
		MaxDisplayPoints: c.Pipeline.MaxDisplayPoints,
		ChartType:        models.ChartType(c.Pipeline.ChartType),
	}
}

// PipelineOptions returns the stage options for extraction runs.
func (c *AppConfig) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Extract: extract.Options{ChunkSize: c.Pipeline.ChunkSize},
		Format:  format.Options{MinBatchSize: c.Pipeline.MinBatchSize},
	}
}

// SessionOptions returns the session manager settings.
func (c *AppConfig) SessionOptions() session.Options {
	return session.Options{
		Pipeline:      c.PipelineOptions(),
		View:          c.ViewConfig(),
		SeriesDir:     c.Storage.TempDirectory,
		PersistSeries: c.Storage.PersistSeries,
		MaxSessions:   c.Processing.MaxSessions,
	}
}

// AllowedExtensions returns the lower-cased upload extensions. An empty
// list allows every file.
func (c *AppConfig) AllowedExtensions() []string {
	var out []string
	for _, ext := range strings.Split(c.Security.AllowedFileTypes, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.TempDirectory,
	}
	if c.Storage.PatternDatabase != "" {
		dirs = append(dirs, filepath.Dir(c.Storage.PatternDatabase))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
