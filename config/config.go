package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug   LogLevel = "debug"
	Info    LogLevel = "info"
	Notice  LogLevel = "notice"
	Warning LogLevel = "warning"
	Error   LogLevel = "error"
)

const envPrefix = "LOTTERY_"

type ServerConfig struct {
	Listen        string `toml:"listen"`
	Port          int    `toml:"port"`
	ListenBacklog int    `toml:"listen_backlog"`
	MaxBatchSize  int    `toml:"max_batch_size"`
}

type LotteryConfig struct {
	Agencies      int    `toml:"agencies"`
	WinningNumber uint32 `toml:"winning_number"`
}

type DBConfig struct {
	Path string `toml:"path"`
}

type LogConfig struct {
	Level LogLevel `toml:"level"`
}

type WebConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

type TgbotConfig struct {
	Enabled  bool    `toml:"enabled"`
	Token    string  `toml:"token"`
	AdminIds []int64 `toml:"admin_ids"`
	// CpuThreshold is the cpu percentage that triggers an admin alert; 0 disables it.
	CpuThreshold int `toml:"cpu_threshold"`
}

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Lottery LotteryConfig `toml:"lottery"`
	DB      DBConfig      `toml:"db"`
	Log     LogConfig     `toml:"log"`
	Web     WebConfig     `toml:"web"`
	Tgbot   TgbotConfig   `toml:"tgbot"`
}

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func IsDebug() bool {
	return os.Getenv(envPrefix+"DEBUG") == "true"
}

// Default mirrors the constants the reference deployment ran with.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:        "0.0.0.0",
			Port:          12345,
			ListenBacklog: 5,
			MaxBatchSize:  8137,
		},
		Lottery: LotteryConfig{
			Agencies:      5,
			WinningNumber: 7574,
		},
		DB:  DBConfig{Path: "bets.db"},
		Log: LogConfig{Level: Info},
		Web: WebConfig{Enabled: false, Listen: "127.0.0.1:2053"},
	}
}

// Load builds the configuration from defaults, the TOML file at path (optional when empty or
// missing), a .env file in the working directory and LOTTERY_* environment variables, in that
// order of precedence.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, c); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// godotenv never overrides variables already present in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if IsDebug() {
		c.Log.Level = Debug
	}
	return c, c.Validate()
}

func (c *Config) applyEnv() error {
	if v, ok := lookup("SERVER_LISTEN"); ok {
		c.Server.Listen = v
	}
	if err := lookupInt("SERVER_PORT", &c.Server.Port); err != nil {
		return err
	}
	if err := lookupInt("SERVER_LISTEN_BACKLOG", &c.Server.ListenBacklog); err != nil {
		return err
	}
	if err := lookupInt("SERVER_MAX_BATCH_SIZE", &c.Server.MaxBatchSize); err != nil {
		return err
	}
	if err := lookupInt("AGENCIES", &c.Lottery.Agencies); err != nil {
		return err
	}
	if v, ok := lookup("WINNING_NUMBER"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%sWINNING_NUMBER: %w", envPrefix, err)
		}
		c.Lottery.WinningNumber = uint32(n)
	}
	if v, ok := lookup("DB_PATH"); ok {
		c.DB.Path = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.Log.Level = LogLevel(strings.ToLower(v))
	}
	if v, ok := lookup("WEB_ENABLED"); ok {
		c.Web.Enabled = v == "true"
	}
	if v, ok := lookup("WEB_LISTEN"); ok {
		c.Web.Listen = v
	}
	if v, ok := lookup("TGBOT_ENABLED"); ok {
		c.Tgbot.Enabled = v == "true"
	}
	if v, ok := lookup("TGBOT_TOKEN"); ok {
		c.Tgbot.Token = v
	}
	if v, ok := lookup("TGBOT_ADMIN_IDS"); ok {
		ids, err := parseIds(v)
		if err != nil {
			return err
		}
		c.Tgbot.AdminIds = ids
	}
	if err := lookupInt("TGBOT_CPU_THRESHOLD", &c.Tgbot.CpuThreshold); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Lottery.Agencies <= 0 || c.Lottery.Agencies > 255 {
		return fmt.Errorf("agency count must be in 1..255, got %d", c.Lottery.Agencies)
	}
	if c.Server.MaxBatchSize < 79 || c.Server.MaxBatchSize > 65535 {
		return fmt.Errorf("invalid max batch size %d", c.Server.MaxBatchSize)
	}
	if c.Tgbot.CpuThreshold < 0 || c.Tgbot.CpuThreshold > 100 {
		return fmt.Errorf("cpu threshold must be in 0..100, got %d", c.Tgbot.CpuThreshold)
	}
	if c.Tgbot.Enabled && c.Tgbot.Token == "" {
		return errors.New("tgbot enabled without a token")
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func lookupInt(key string, dst *int) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func parseIds(v string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%sTGBOT_ADMIN_IDS: %w", envPrefix, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
