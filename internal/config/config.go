package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"askrag/internal/ragerr"
)

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Port             int      `yaml:"port"`
	Host             string   `yaml:"host"`
	CORSOrigins      []string `yaml:"cors_origins"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs"`
	// LazyIndex defers the first index build or load to the first request.
	LazyIndex bool `yaml:"lazy_index"`
}

// SourceConfig points at the directory of documents to index.
type SourceConfig struct {
	Dir       string `yaml:"dir"`
	Extension string `yaml:"extension"`
}

// IndexConfig selects the vector index backend and its on-disk location.
type IndexConfig struct {
	Backend          string `yaml:"backend"`
	Path             string `yaml:"path"`
	DetectStaleness  bool   `yaml:"detect_staleness"`
	RebuildOnCorrupt bool   `yaml:"rebuild_on_corrupt"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type         string `yaml:"type"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	// Sentence chunker only.
	SentencesPerChunk int `yaml:"sentences_per_chunk,omitempty"`
	SentenceOverlap   int `yaml:"sentence_overlap,omitempty"`
}

// RemoteEmbedderConfig holds settings shared by hosted embedding APIs.
type RemoteEmbedderConfig struct {
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string                `yaml:"type"`
	Concurrency int                   `yaml:"concurrency"`
	OpenAI      *RemoteEmbedderConfig `yaml:"openai,omitempty"`
	Gemini      *RemoteEmbedderConfig `yaml:"gemini,omitempty"`
}

// RetrievalConfig controls how many chunks feed the prompt.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// GeneratorConfig selects the chat model used for answer synthesis.
type GeneratorConfig struct {
	Type        string  `yaml:"type"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	MaxAttempts int     `yaml:"max_attempts"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// ScrapeConfig tunes the scrape subcommand, which writes into source.dir.
type ScrapeConfig struct {
	Concurrency int    `yaml:"concurrency"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	UserAgent   string `yaml:"user_agent"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Source    SourceConfig    `yaml:"source"`
	Index     IndexConfig     `yaml:"index"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Generator GeneratorConfig `yaml:"generator"`
	Scrape    ScrapeConfig    `yaml:"scrape"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, ragerr.Wrap(err, ragerr.CodeConfigReadFailure, "reading config", ragerr.FieldPath(path))
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, ragerr.Wrapf(err, ragerr.CodeConfigInvalidValue, "parsing config")
	}
	applyConfigDefaults(&cfg)
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ragerr.Wrapf(errors.Join(errs...), ragerr.CodeConfigInvalidValue, "validating config")
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/askrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/askrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the configuration for logical errors, collecting all of them.
func (c *AppConfig) Validate() []error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, ragerr.Errorf(ragerr.CodeConfigInvalidValue, format, args...))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		invalid("config: server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Source.Dir) == "" {
		invalid("config: source.dir must not be empty")
	}
	if strings.TrimSpace(c.Index.Path) == "" {
		invalid("config: index.path must not be empty")
	}
	if !oneOf(c.Index.Backend, "file", "sqlite") {
		invalid("config: index.backend must be one of [file, sqlite], got %q", c.Index.Backend)
	}
	if !oneOf(c.Chunker.Type, "recursive", "sentence") {
		invalid("config: chunker.type must be one of [recursive, sentence], got %q", c.Chunker.Type)
	}
	if c.Chunker.Type == "recursive" && c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		invalid("config: chunker.chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	if !oneOf(c.Embedder.Type, "tfidf", "openai", "gemini") {
		invalid("config: embedder.type must be one of [tfidf, openai, gemini], got %q", c.Embedder.Type)
	}
	if c.Retrieval.TopK <= 0 {
		invalid("config: retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if !oneOf(c.Generator.Type, "gemini", "openai", "anthropic", "extractive") {
		invalid("config: generator.type must be one of [gemini, openai, anthropic, extractive], got %q", c.Generator.Type)
	}
	if c.Generator.MaxAttempts <= 0 {
		invalid("config: generator.max_attempts must be positive, got %d", c.Generator.MaxAttempts)
	}
	if c.Scrape.Concurrency <= 0 {
		invalid("config: scrape.concurrency must be positive, got %d", c.Scrape.Concurrency)
	}
	if !oneOf(c.Log.Format, "text", "json") {
		invalid("config: log.format must be one of [text, json], got %q", c.Log.Format)
	}
	return errs
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "askrag", "config.yaml"), nil
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.ReadTimeoutSecs == 0 {
		cfg.Server.ReadTimeoutSecs = 30
	}
	if cfg.Server.WriteTimeoutSecs == 0 {
		cfg.Server.WriteTimeoutSecs = 120
	}
	if cfg.Source.Dir == "" {
		cfg.Source.Dir = "scraped_pages"
	}
	if cfg.Source.Extension == "" {
		cfg.Source.Extension = ".txt"
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "file"
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "./vectorstore"
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "recursive"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkOverlap == 0 {
		cfg.Chunker.ChunkOverlap = 200
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Concurrency == 0 {
		cfg.Embedder.Concurrency = 4
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &RemoteEmbedderConfig{}
		}
		remoteDefaults(cfg.Embedder.OpenAI, "OPENAI_API_KEY", "text-embedding-3-small")
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
	}
	if cfg.Embedder.Type == "gemini" {
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &RemoteEmbedderConfig{}
		}
		remoteDefaults(cfg.Embedder.Gemini, "GEMINI_API_KEY", "text-embedding-004")
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "gemini"
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = defaultModel(cfg.Generator.Type)
	}
	if cfg.Generator.APIKeyEnv == "" {
		cfg.Generator.APIKeyEnv = defaultKeyEnv(cfg.Generator.Type)
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 1024
	}
	if cfg.Generator.MaxAttempts == 0 {
		cfg.Generator.MaxAttempts = 2
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 60
	}
	if cfg.Scrape.Concurrency == 0 {
		cfg.Scrape.Concurrency = 4
	}
	if cfg.Scrape.TimeoutSecs == 0 {
		cfg.Scrape.TimeoutSecs = 30
	}
	if cfg.Scrape.UserAgent == "" {
		cfg.Scrape.UserAgent = "askrag/1.0"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func remoteDefaults(rc *RemoteEmbedderConfig, keyEnv, model string) {
	if rc.APIKeyEnv == "" {
		rc.APIKeyEnv = keyEnv
	}
	if rc.Model == "" {
		rc.Model = model
	}
	if rc.TimeoutSecs == 0 {
		rc.TimeoutSecs = 30
	}
	if rc.MaxRetries == 0 {
		rc.MaxRetries = 5
	}
}

func defaultModel(generator string) string {
	switch generator {
	case "openai":
		return "gpt-4o-mini"
	case "anthropic":
		return "claude-sonnet-4-5"
	case "extractive":
		return "extractive"
	default:
		return "gemini-1.5-pro"
	}
}

func defaultKeyEnv(generator string) string {
	switch generator {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}
