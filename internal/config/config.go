package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server       ServerConfig
	Widget       WidgetConfig
	Collaborator CollaboratorConfig
	Log          LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	widget, err := loadWidgetConfig()
	if err != nil {
		return nil, err
	}

	collaborator, err := loadCollaboratorConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Widget: widget, Collaborator: collaborator, Log: logCfg}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// WidgetConfig 描述会话节奏、线索表单与回复选择相关配置。
type WidgetConfig struct {
	TypingDelay       time.Duration
	HandoffDelay      time.Duration
	LeadFormDelay     time.Duration
	LeadTurnThreshold int
	MaxMessageLength  int
	// RandomSeed 为空时回复随机选择不可复现
	RandomSeed  *uint64
	CatalogPath string
}

func loadWidgetConfig() (WidgetConfig, error) {
	typing, err := parseDurationEnv("WIDGET_TYPING_DELAY", 1500*time.Millisecond)
	if err != nil {
		return WidgetConfig{}, err
	}

	handoff, err := parseDurationEnv("WIDGET_HANDOFF_DELAY", 1000*time.Millisecond)
	if err != nil {
		return WidgetConfig{}, err
	}

	leadForm, err := parseDurationEnv("WIDGET_LEAD_FORM_DELAY", 2000*time.Millisecond)
	if err != nil {
		return WidgetConfig{}, err
	}

	threshold := 3
	if override, err := parseOptionalIntEnv("WIDGET_LEAD_TURN_THRESHOLD"); err != nil {
		return WidgetConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return WidgetConfig{}, fmt.Errorf("invalid WIDGET_LEAD_TURN_THRESHOLD value %d: must be >= 1", *override)
		}
		threshold = *override
	}

	maxLength := 1000
	if override, err := parseOptionalIntEnv("WIDGET_MAX_MESSAGE_LENGTH"); err != nil {
		return WidgetConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return WidgetConfig{}, fmt.Errorf("invalid WIDGET_MAX_MESSAGE_LENGTH value %d: must be >= 1", *override)
		}
		maxLength = *override
	}

	seed, err := parseOptionalUintEnv("WIDGET_RANDOM_SEED")
	if err != nil {
		return WidgetConfig{}, err
	}

	return WidgetConfig{
		TypingDelay:       typing,
		HandoffDelay:      handoff,
		LeadFormDelay:     leadForm,
		LeadTurnThreshold: threshold,
		MaxMessageLength:  maxLength,
		RandomSeed:        seed,
		CatalogPath:       strings.TrimSpace(os.Getenv("PERSONA_CATALOG_PATH")),
	}, nil
}

// CollaboratorConfig 描述外部协作服务（联系表单、站点设置）。
type CollaboratorConfig struct {
	LeadEndpoint     string
	SettingsEndpoint string
	Timeout          time.Duration
}

func loadCollaboratorConfig() (CollaboratorConfig, error) {
	timeout, err := parseDurationEnv("COLLABORATOR_TIMEOUT", 10*time.Second)
	if err != nil {
		return CollaboratorConfig{}, err
	}

	return CollaboratorConfig{
		LeadEndpoint:     strings.TrimSpace(os.Getenv("LEAD_ENDPOINT")),
		SettingsEndpoint: strings.TrimSpace(os.Getenv("SETTINGS_ENDPOINT")),
		Timeout:          timeout,
	}, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	File  string
	Level slog.Level
}

func loadLogConfig() (LogConfig, error) {
	var level slog.Level
	raw := getEnvOrDefault("LOG_LEVEL", "INFO")
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value %q: %w", raw, err)
	}

	return LogConfig{
		File:  strings.TrimSpace(os.Getenv("LOG_FILE")),
		Level: level,
	}, nil
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

	val, err := time.ParseDuration(raw)
	if err != nil {
		// 兼容纯数字毫秒写法，例如 "1500"
		ms, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
		}
		val = time.Duration(ms) * time.Millisecond
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
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

func parseOptionalUintEnv(key string) (*uint64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
