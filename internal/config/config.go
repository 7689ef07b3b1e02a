package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server      ServerConfig
	Log         LogConfig
	AI          AIConfig
	Catalog     CatalogConfig
	Transcriber TranscriberConfig
	Session     SessionConfig
	Worker      WorkerConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	catalog, err := loadCatalogConfig()
	if err != nil {
		return nil, err
	}

	transcriber, err := loadTranscriberConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	worker, err := loadWorkerConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:      server,
		Log:         loadLogConfig(),
		AI:          ai,
		Catalog:     catalog,
		Transcriber: transcriber,
		Session:     session,
		Worker:      worker,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = getEnvOrDefault("API_PORT", "8101")
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8101" 或 "127.0.0.1:8101"。
		return ServerConfig{Addr: port}, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LogConfig selects level and output format of the process logger.
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "console"),
	}
}

// Provider names a text-generation backend.
type Provider string

const (
	ProviderArk    Provider = "ark"
	ProviderOpenAI Provider = "openai"
)

// AIConfig 描述大模型相关配置，用于意图分类与实体抽取。
type AIConfig struct {
	Provider    Provider
	Model       string
	Temperature *float64
	MaxTokens   *int
	Timeout     time.Duration

	// Ark
	APIKey    string
	AccessKey string
	SecretKey string
	BaseURL   string
	Region    string

	// OpenAI-compatible (Ollama by default)
	OpenAIBaseURL string
	OpenAIAPIKey  string
}

// Enabled 表示所选后端是否提供了必需的配置。
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	switch c.Provider {
	case ProviderArk:
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	case ProviderOpenAI:
		return c.OpenAIBaseURL != ""
	default:
		return false
	}
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		if temperature, err = parseOptionalFloatEnv("ARK_TEMPERATURE"); err != nil {
			return AIConfig{}, err
		}
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDurationEnv("LLM_TIMEOUT", 60*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	model := strings.TrimSpace(os.Getenv("Model"))
	if model == "" {
		model = strings.TrimSpace(os.Getenv("DEFAULT_MODEL"))
	}

	cfg := AIConfig{
		Model:         model,
		Temperature:   temperature,
		MaxTokens:     maxTokens,
		Timeout:       timeout,
		APIKey:        strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:     strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		BaseURL:       getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:        getEnvOrDefault("ARK_REGION", "cn-beijing"),
		OpenAIBaseURL: openAIBaseURL(),
		OpenAIAPIKey:  getEnvOrDefault("OPENAI_API_KEY", "ollama"),
	}

	switch provider := Provider(strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))); provider {
	case ProviderArk, ProviderOpenAI:
		cfg.Provider = provider
	case "":
		cfg.Provider = ProviderOpenAI
		if cfg.APIKey != "" || (cfg.AccessKey != "" && cfg.SecretKey != "") {
			cfg.Provider = ProviderArk
		}
	default:
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value: %q", provider)
	}

	return cfg, nil
}

func openAIBaseURL() string {
	if v := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); v != "" {
		return v
	}
	host := getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
	return strings.TrimRight(host, "/") + "/v1"
}

// CatalogConfig points at the product and recipe data service.
type CatalogConfig struct {
	BaseURL string
	Timeout time.Duration
}

func loadCatalogConfig() (CatalogConfig, error) {
	timeout, err := parseDurationEnv("CATALOG_TIMEOUT", 15*time.Second)
	if err != nil {
		return CatalogConfig{}, err
	}
	return CatalogConfig{
		BaseURL: strings.TrimRight(getEnvOrDefault("DATABASE_URL", "http://localhost:8100"), "/"),
		Timeout: timeout,
	}, nil
}

// TranscriberConfig points at the speech-to-text service.
type TranscriberConfig struct {
	BaseURL    string
	MaxRetries int
	Timeout    time.Duration
}

func loadTranscriberConfig() (TranscriberConfig, error) {
	retries := 3
	if override, err := parseOptionalIntEnv("WHISPER_MAX_RETRIES"); err != nil {
		return TranscriberConfig{}, err
	} else if override != nil {
		retries = max(*override, 1)
	}

	timeout, err := parseDurationEnv("WHISPER_TIMEOUT", 120*time.Second)
	if err != nil {
		return TranscriberConfig{}, err
	}

	return TranscriberConfig{
		BaseURL:    strings.TrimRight(getEnvOrDefault("WHISPER_SERVICE_URL", "http://whisper-service:8102"), "/"),
		MaxRetries: retries,
		Timeout:    timeout,
	}, nil
}

// SessionConfig tunes liveness probing and per-session buffers.
type SessionConfig struct {
	HeartbeatInterval time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	OutboxSize        int
}

func loadSessionConfig() (SessionConfig, error) {
	heartbeat, err := parseDurationEnv("SESSION_HEARTBEAT_INTERVAL", 30*time.Second)
	if err != nil {
		return SessionConfig{}, err
	}
	read, err := parseDurationEnv("SESSION_READ_TIMEOUT", 120*time.Second)
	if err != nil {
		return SessionConfig{}, err
	}
	write, err := parseDurationEnv("SESSION_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return SessionConfig{}, err
	}

	outbox := 64
	if override, err := parseOptionalIntEnv("SESSION_OUTBOX_SIZE"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		outbox = max(*override, 1)
	}

	return SessionConfig{
		HeartbeatInterval: heartbeat,
		ReadTimeout:       read,
		WriteTimeout:      write,
		OutboxSize:        outbox,
	}, nil
}

// WorkerConfig sizes the pool that runs routing and task handlers.
type WorkerConfig struct {
	PoolSize  int
	QueueSize int
}

func loadWorkerConfig() (WorkerConfig, error) {
	cfg := WorkerConfig{PoolSize: 8, QueueSize: 64}

	if size, err := parseOptionalIntEnv("WORKER_POOL_SIZE"); err != nil {
		return WorkerConfig{}, err
	} else if size != nil {
		cfg.PoolSize = max(*size, 1)
	}

	if size, err := parseOptionalIntEnv("WORKER_QUEUE_SIZE"); err != nil {
		return WorkerConfig{}, err
	} else if size != nil {
		cfg.QueueSize = max(*size, 0)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	// bare numbers are seconds
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
		}
		return time.Duration(secs) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
