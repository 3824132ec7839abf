package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"smflab/internal/holidays"
	"smflab/internal/listing"
	"smflab/internal/models"
)

type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	HTTP struct {
		Addr             string `yaml:"addr"`
		JWTSecret        string `yaml:"jwt_secret"`
		DevRoleHeader    bool   `yaml:"dev_role_header"`
		SessionTTLMinute int    `yaml:"session_ttl_minutes"`
	} `yaml:"http"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address                string `yaml:"address"`
		Password               string `yaml:"password"`
		DB                     int    `yaml:"db"`
		HolidayCacheTTLSeconds int    `yaml:"holiday_cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		GRPCHealthPort    int  `yaml:"grpc_health_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Holidays struct {
		Region     string   `yaml:"region"`
		YearsAhead int      `yaml:"years_ahead"`
		Extra      []string `yaml:"extra"`
	} `yaml:"holidays"`

	Telegram struct {
		BotToken          string  `yaml:"bot_token"`
		Debug             bool    `yaml:"debug"`
		ManagerChatIDs    []int64 `yaml:"manager_chat_ids"`
		ReminderHour      int     `yaml:"reminder_hour"`
		MessagesPerSecond float64 `yaml:"messages_per_second"`
	} `yaml:"telegram"`

	Sheets struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		SheetName       string `yaml:"sheet_name"`
	} `yaml:"sheets"`

	Audit struct {
		Enabled       bool   `yaml:"enabled"`
		RetentionDays int    `yaml:"retention_days"`
		ExportPath    string `yaml:"export_path"`
	} `yaml:"audit"`

	Listing struct {
		ClientMarker string `yaml:"client_marker"`
	} `yaml:"listing"`

	Seed struct {
		Path                string `yaml:"path"`
		WatchIntervalSecond int    `yaml:"watch_interval_seconds"`
	} `yaml:"seed"`
}

// Load reads the YAML config. A .env file next to the working directory is
// loaded first when present, and ${ENV_VAR} placeholders are expanded.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SMFLAB_CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	// Convenience for local dev; real environment variables win.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/smflab.db"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Holidays.Region == "" {
		cfg.Holidays.Region = "FR"
	}

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	ports := map[string]int{
		"monitoring.health_check_port": c.Monitoring.HealthCheckPort,
		"monitoring.grpc_health_port":  c.Monitoring.GRPCHealthPort,
		"monitoring.prometheus_port":   c.Monitoring.PrometheusPort,
	}
	for name, p := range ports {
		if p < 0 || p > 65535 {
			return fmt.Errorf("%s: invalid port %d", name, p)
		}
	}

	if c.Telegram.ReminderHour < 0 || c.Telegram.ReminderHour > 23 {
		return fmt.Errorf("telegram.reminder_hour: must be 0-23, got %d", c.Telegram.ReminderHour)
	}

	if c.Holidays.Region != "" && !holidays.Supported(c.Holidays.Region) {
		return fmt.Errorf("holidays.region: unsupported region '%s'", c.Holidays.Region)
	}

	for i, d := range c.Holidays.Extra {
		if _, err := models.ParseDate(d); err != nil {
			return fmt.Errorf("holidays.extra[%d]: invalid date format '%s', expected YYYY-MM-DD", i, d)
		}
	}

	if strings.TrimSpace(c.Listing.ClientMarker) == "" && c.Listing.ClientMarker != "" {
		return errors.New("listing.client_marker: must not be blank")
	}

	if c.Sheets.Enabled && (c.Sheets.SpreadsheetID == "" || c.Sheets.CredentialsFile == "") {
		return errors.New("sheets: spreadsheet_id and credentials_file are required when enabled")
	}

	return nil
}

func (c *Config) LogLevel() string {
	if c.Logging.Level == "" {
		return "info"
	}
	return c.Logging.Level
}

func (c *Config) SessionTTL() time.Duration {
	if c.HTTP.SessionTTLMinute <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.HTTP.SessionTTLMinute) * time.Minute
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) HolidayCacheTTL() time.Duration {
	if c.Redis.HolidayCacheTTLSeconds <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.HolidayCacheTTLSeconds) * time.Second
}

func (c *Config) HolidayYearsAhead() int {
	if c.Holidays.YearsAhead <= 0 {
		return 1
	}
	return c.Holidays.YearsAhead
}

func (c *Config) ClientMarker() string {
	if c.Listing.ClientMarker == "" {
		return listing.DefaultClientMarker
	}
	return c.Listing.ClientMarker
}

func (c *Config) ReminderRate() float64 {
	if c.Telegram.MessagesPerSecond <= 0 {
		return 1
	}
	return c.Telegram.MessagesPerSecond
}

func (c *Config) SeedWatchInterval() time.Duration {
	if c.Seed.WatchIntervalSecond <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Seed.WatchIntervalSecond) * time.Second
}

func (c *Config) AuditRetention() time.Duration {
	if c.Audit.RetentionDays <= 0 {
		return 365 * 24 * time.Hour
	}
	return time.Duration(c.Audit.RetentionDays) * 24 * time.Hour
}
