package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"yasbot/internal/biz/domain"
	"yasbot/internal/service"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// Bot behavior configuration
	Bot BotConfig

	// Weather configuration
	Weather WeatherConfig

	// Scheduled job configuration
	Jobs JobsConfig

	// Log configuration
	Log LogConfig

	// SQLite database path
	DBPath string
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// BotConfig contains dispatch policy configuration
type BotConfig struct {
	AdminIDs        []string
	MaintenanceMode bool
	AllowedChats    []string

	GreetingWindowMinutes int
	RainWindowHours       int
	MentionWindowMinutes  int

	InviteText string
}

// WeatherConfig contains the home coordinates, cache policy and report
// thresholds
type WeatherConfig struct {
	Lat        float64
	Lon        float64
	City       string
	TTLMinutes int

	ColdMax        int
	HotMin         int
	RainWarnPct    int
	LowHumidityPct int
}

// JobsConfig contains the daily job hours and retention policy
type JobsConfig struct {
	WeatherHour     int
	SummaryHour     int
	CleanupHour     int
	RetentionDays   int
	TimeZone        string
	RainStickerPath string
}

// LogConfig contains log output configuration
type LogConfig struct {
	Level  string // zerolog level name
	Format string // "console" or "json"
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".yasbot", "yasbot.db")
	}

	return &Config{
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
		},
		Bot: BotConfig{
			AdminIDs:              envList("ADMIN_IDS"),
			MaintenanceMode:       os.Getenv("MAINTENANCE_MODE") == "true",
			AllowedChats:          envList("ALLOWED_CHATS"),
			GreetingWindowMinutes: envInt("GREETING_WINDOW_MINUTES", 60),
			RainWindowHours:       envInt("RAIN_WINDOW_HOURS", 3),
			MentionWindowMinutes:  envInt("MENTION_WINDOW_MINUTES", 10),
			InviteText:            envString("INVITE_TEXT", "🎉 You're invited! Reply !confirm in the group to confirm, or !cancel if you can't make it."),
		},
		Weather: WeatherConfig{
			Lat:            envFloat("WEATHER_LAT", -34.6037),
			Lon:            envFloat("WEATHER_LON", -58.3816),
			City:           envString("WEATHER_CITY", "Buenos Aires"),
			TTLMinutes:     envInt("WEATHER_TTL_MINUTES", 30),
			ColdMax:        envInt("WEATHER_COLD_MAX", 16),
			HotMin:         envInt("WEATHER_HOT_MIN", 33),
			RainWarnPct:    envInt("WEATHER_RAIN_WARN_PCT", 60),
			LowHumidityPct: envInt("WEATHER_LOW_HUMIDITY_PCT", 25),
		},
		Jobs: JobsConfig{
			WeatherHour:     envInt("WEATHER_HOUR", 6),
			SummaryHour:     envInt("SUMMARY_HOUR", 7),
			CleanupHour:     envInt("CLEANUP_HOUR", 0),
			RetentionDays:   envInt("RETENTION_DAYS", 2),
			TimeZone:        envString("TIME_ZONE", "America/Argentina/Buenos_Aires"),
			RainStickerPath: os.Getenv("RAIN_STICKER_PATH"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "console"),
		},
		DBPath: dbPath,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	if c.Weather.Lat < -90 || c.Weather.Lat > 90 {
		return &ConfigError{Field: "WEATHER_LAT", Message: "out of range"}
	}
	if c.Weather.Lon < -180 || c.Weather.Lon > 180 {
		return &ConfigError{Field: "WEATHER_LON", Message: "out of range"}
	}
	for _, field := range []struct {
		name string
		hour int
	}{
		{"WEATHER_HOUR", c.Jobs.WeatherHour},
		{"SUMMARY_HOUR", c.Jobs.SummaryHour},
		{"CLEANUP_HOUR", c.Jobs.CleanupHour},
	} {
		if field.hour < 0 || field.hour > 23 {
			return &ConfigError{Field: field.name, Message: "must be 0-23"}
		}
	}
	if c.Jobs.RetentionDays < 1 {
		return &ConfigError{Field: "RETENTION_DAYS", Message: "must be at least 1"}
	}
	if _, err := time.LoadLocation(c.Jobs.TimeZone); err != nil {
		return &ConfigError{Field: "TIME_ZONE", Message: "unknown time zone"}
	}
	return nil
}

// ToRouterConfig converts to the router's dispatch policy. The router
// shares the scheduler's time zone so the on-demand digest and the
// scheduled one cover the same window.
func (c *Config) ToRouterConfig() service.RouterConfig {
	return service.RouterConfig{
		AdminIDs:        c.Bot.AdminIDs,
		MaintenanceMode: c.Bot.MaintenanceMode,
		AllowedChats:    c.Bot.AllowedChats,
		GreetingWindow:  time.Duration(c.Bot.GreetingWindowMinutes) * time.Minute,
		RainWindow:      time.Duration(c.Bot.RainWindowHours) * time.Hour,
		MentionWindow:   time.Duration(c.Bot.MentionWindowMinutes) * time.Minute,
		Location:        c.location(),
	}
}

// ToWeatherConfig converts to the domain weather configuration.
func (c *Config) ToWeatherConfig() domain.WeatherConfig {
	return domain.WeatherConfig{
		Lat:  c.Weather.Lat,
		Lon:  c.Weather.Lon,
		City: c.Weather.City,
		TTL:  time.Duration(c.Weather.TTLMinutes) * time.Minute,
		Thresholds: domain.WeatherThresholds{
			ColdMax:     c.Weather.ColdMax,
			HotMin:      c.Weather.HotMin,
			RainWarnPct: c.Weather.RainWarnPct,
			LowHumidity: c.Weather.LowHumidityPct,
		},
	}
}

// location loads the configured time zone. Validate must have passed so
// the zone is known to load.
func (c *Config) location() *time.Location {
	loc, err := time.LoadLocation(c.Jobs.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ToSchedulerConfig converts to the scheduler configuration.
func (c *Config) ToSchedulerConfig() service.SchedulerConfig {
	return service.SchedulerConfig{
		Location:        c.location(),
		WeatherHour:     c.Jobs.WeatherHour,
		SummaryHour:     c.Jobs.SummaryHour,
		CleanupHour:     c.Jobs.CleanupHour,
		RetentionDays:   c.Jobs.RetentionDays,
		RainStickerPath: c.Jobs.RainStickerPath,
	}
}

func envString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
