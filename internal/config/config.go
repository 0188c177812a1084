package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/fx"

	"royale-monitor/internal/constants"
)

type Config struct {
	ClashAPIToken   string
	ClashAPIBaseURL string
	TelegramToken   string
	TelegramBaseURL string
	GroupChatID     int64
	DataDir         string
	OpsAddr         string
	LogLevel        string

	Poll PollSettings
}

type PollSettings struct {
	Interval     time.Duration
	AccountDelay time.Duration
	SummaryDelay time.Duration
}

// settingsFile mirrors the optional settings.toml, which overrides the
// built-in poll timings. Secrets never live there.
type settingsFile struct {
	Poll struct {
		IntervalSeconds     int `toml:"interval_seconds"`
		AccountDelaySeconds int `toml:"account_delay_seconds"`
		SummaryDelaySeconds int `toml:"summary_delay_seconds"`
	} `toml:"poll"`
}

func Load() (*Config, error) {
	// .env is optional, real deployments may set the environment directly
	_ = godotenv.Load()

	cfg := &Config{
		ClashAPIToken:   getEnv("CLASH_API_TOKEN", ""),
		ClashAPIBaseURL: getEnv("CLASH_API_BASE_URL", "https://api.clashroyale.com/v1"),
		TelegramToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramBaseURL: getEnv("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),
		DataDir:         getEnv("DATA_DIR", "data"),
		OpsAddr:         getEnv("OPS_ADDR", ":8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Poll: PollSettings{
			Interval:     constants.PollInterval,
			AccountDelay: constants.AccountPollDelay,
			SummaryDelay: constants.SummaryBatchDelay,
		},
	}

	if cfg.ClashAPIToken == "" {
		return nil, fmt.Errorf("CLASH_API_TOKEN is required")
	}
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	groupID, err := strconv.ParseInt(getEnv("TELEGRAM_GROUP_ID", ""), 10, 64)
	if err != nil || groupID == 0 {
		return nil, fmt.Errorf("TELEGRAM_GROUP_ID must be set to the id of the group the bot serves")
	}
	cfg.GroupChatID = groupID

	if err := cfg.applySettings(getEnv("SETTINGS_PATH", "settings.toml")); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applySettings(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	var file settingsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	if file.Poll.IntervalSeconds > 0 {
		c.Poll.Interval = time.Duration(file.Poll.IntervalSeconds) * time.Second
	}
	if file.Poll.AccountDelaySeconds > 0 {
		c.Poll.AccountDelay = time.Duration(file.Poll.AccountDelaySeconds) * time.Second
	}
	if file.Poll.SummaryDelaySeconds > 0 {
		c.Poll.SummaryDelay = time.Duration(file.Poll.SummaryDelaySeconds) * time.Second
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
