package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// ParserCommand is the argv of the external parser sidecar. Empty
	// disables it and every extraction runs the heuristic pipeline.
	ParserCommand []string `json:"parser_command,omitempty"`

	// AI configures the optional reviewer used for quality review and
	// allocation suggestions.
	AI AIConfig `json:"ai"`

	// SubsystemsFile is a YAML subsystem catalog. Relative paths resolve
	// against the directory holding the config's .reqlens directory.
	SubsystemsFile string `json:"subsystems_file,omitempty"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is json or console.
	LogFormat string `json:"log_format,omitempty"`

	// AllowedPaths is an allowlist of directories for export.
	// Paths outside ~/.reqlens/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	Tuning Tuning `json:"tuning"`
}

// AIConfig selects the AI provider.
type AIConfig struct {
	// Provider is "anthropic", "ollama" or empty (disabled).
	Provider          string `json:"provider,omitempty"`
	Model             string `json:"model,omitempty"`
	BaseURL           string `json:"base_url,omitempty"`
	RequestsPerMinute int    `json:"requests_per_minute,omitempty"`
}

// Tuning holds the empirically chosen pipeline constants.
type Tuning struct {
	ParagraphFlushChars int `json:"paragraph_flush_chars,omitempty"`
	OverlapHigh         int `json:"overlap_high,omitempty"`
	OverlapMedium       int `json:"overlap_medium,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		AI:        AIConfig{RequestsPerMinute: 30},
		LogLevel:  "info",
		LogFormat: "json",
		Tuning: Tuning{
			ParagraphFlushChars: 240,
			OverlapHigh:         3,
			OverlapMedium:       2,
		},
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.reqlens.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"), baseDir)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithRepo loads configuration from both global (~/.reqlens) and repo (.reqlens) directories.
// Repo config is found by walking upward from startDir to find the nearest .reqlens/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"), globalDir)
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo := &Config{}
	if repoConfigPath != "" {
		// relative paths in a repo config are relative to the repo root
		repo, err = loadFileRaw(repoConfigPath, filepath.Dir(filepath.Dir(repoConfigPath)))
		if err != nil {
			return nil, err
		}
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .reqlens/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".reqlens", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath, relBase string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if cfg.SubsystemsFile != "" && !filepath.IsAbs(cfg.SubsystemsFile) {
		cfg.SubsystemsFile = filepath.Join(relBase, cfg.SubsystemsFile)
	}
	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
// ParserCommand is an argv, so a non-empty overlay replaces it whole.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.ParserCommand = slices.Clone(base.ParserCommand)
	if len(overlay.ParserCommand) > 0 {
		result.ParserCommand = slices.Clone(overlay.ParserCommand)
	}

	result.AI = AIConfig{
		Provider:          pick(overlay.AI.Provider, base.AI.Provider),
		Model:             pick(overlay.AI.Model, base.AI.Model),
		BaseURL:           pick(overlay.AI.BaseURL, base.AI.BaseURL),
		RequestsPerMinute: pick(overlay.AI.RequestsPerMinute, base.AI.RequestsPerMinute),
	}
	result.SubsystemsFile = pick(overlay.SubsystemsFile, base.SubsystemsFile)
	result.LogLevel = pick(overlay.LogLevel, base.LogLevel)
	result.LogFormat = pick(overlay.LogFormat, base.LogFormat)
	result.DBMaxOpenConns = pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.Tuning = Tuning{
		ParagraphFlushChars: pick(overlay.Tuning.ParagraphFlushChars, base.Tuning.ParagraphFlushChars),
		OverlapHigh:         pick(overlay.Tuning.OverlapHigh, base.Tuning.OverlapHigh),
		OverlapMedium:       pick(overlay.Tuning.OverlapMedium, base.Tuning.OverlapMedium),
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// pick returns overlay unless it is the zero value.
func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range slices.Concat(a, b) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
