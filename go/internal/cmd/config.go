package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/quizrush/go/internal/models"
)

// Config is the server configuration. Values come from defaults, then the
// optional YAML file named by QUIZ_CONFIG, then environment variables.
type Config struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	QuestionBank       string `yaml:"question_bank"`
	DefaultQuestionSet string `yaml:"default_question_set"`

	NATSURL   string   `yaml:"nats_url"`
	ResultsDB bool     `yaml:"results_db"`
	JWTSecret string   `yaml:"jwt_secret"`
	Origins   []string `yaml:"allowed_origins"`

	CreateRateLimit int           `yaml:"create_rate_limit"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Room models.Settings `yaml:"room"`
}

func defaultConfig() Config {
	return Config{
		Port:            "8080",
		LogLevel:        "info",
		LogFormat:       "console",
		QuestionBank:    "questions.yaml",
		Origins:         []string{"*"},
		CreateRateLimit: 10,
		ShutdownTimeout: 10 * time.Second,
		Room:            models.DefaultSettings(),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func loadConfigFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// loadConfig builds the configuration and validates the room defaults.
func loadConfig() (Config, error) {
	config := defaultConfig()
	if path := os.Getenv("QUIZ_CONFIG"); path != "" {
		if err := loadConfigFile(path, &config); err != nil {
			return Config{}, err
		}
	}

	config.Port = getEnv("PORT", config.Port)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.LogFormat = getEnv("LOG_FORMAT", config.LogFormat)
	config.QuestionBank = getEnv("QUESTION_BANK", config.QuestionBank)
	config.DefaultQuestionSet = getEnv("DEFAULT_QUESTION_SET", config.DefaultQuestionSet)
	config.NATSURL = getEnv("NATS_URL", config.NATSURL)
	config.ResultsDB = getEnvAsBool("RESULTS_DB", config.ResultsDB)
	config.JWTSecret = getEnv("GATEWAY_JWT_SECRET", config.JWTSecret)
	config.CreateRateLimit = getEnvAsInt("CREATE_RATE_LIMIT", config.CreateRateLimit)
	config.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", config.ShutdownTimeout)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.Origins = splitList(origins)
	}

	room := &config.Room
	room.MaxPlayers = getEnvAsInt("MAX_PLAYERS", room.MaxPlayers)
	room.CountdownSeconds = getEnvAsInt("COUNTDOWN_SECONDS", room.CountdownSeconds)
	room.ResultsDelay = getEnvAsDuration("RESULTS_DELAY", room.ResultsDelay)
	room.GracePeriod = getEnvAsDuration("GRACE_PERIOD", room.GracePeriod)
	room.FinishedTTL = getEnvAsDuration("FINISHED_TTL", room.FinishedTTL)
	room.HostTransfer = getEnvAsBool("HOST_TRANSFER", room.HostTransfer)
	room.PauseCredit = getEnvAsBool("PAUSE_CREDIT", room.PauseCredit)
	room.AnswerMatching = models.AnswerMatching(getEnv("ANSWER_MATCHING", string(room.AnswerMatching)))
	room.PowerUpCharges = getEnvAsInt("POWER_UP_CHARGES", room.PowerUpCharges)

	if err := config.Room.Validate(); err != nil {
		return Config{}, fmt.Errorf("default room settings: %w", err)
	}
	return config, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
