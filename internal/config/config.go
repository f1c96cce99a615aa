package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/baxromumarov/shelf-harvester/internal/core"
	"github.com/baxromumarov/shelf-harvester/internal/httpx"
	"github.com/baxromumarov/shelf-harvester/internal/render"
)

// Config holds all configuration for the harvester and the server
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Render   RenderConfig   `mapstructure:"render"`
	Store    StoreConfig    `mapstructure:"store"`
	Server   ServerConfig   `mapstructure:"server"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Output   OutputConfig   `mapstructure:"output"`
	Log      LogConfig      `mapstructure:"log"`
}

// SourceConfig describes the retail source and how politely to call it
type SourceConfig struct {
	SiteURL       string  `mapstructure:"site_url"`
	APIURL        string  `mapstructure:"api_url"`
	CityCode      string  `mapstructure:"city_code"`
	Sort          string  `mapstructure:"sort"`
	PageLimit     int     `mapstructure:"page_limit"`
	UserAgent     string  `mapstructure:"user_agent"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
	RespectRobots bool    `mapstructure:"respect_robots"`
}

type TimeoutsConfig struct {
	Candidate  time.Duration `mapstructure:"candidate"`
	Request    time.Duration `mapstructure:"request"`
	Navigation time.Duration `mapstructure:"navigation"`
}

type RenderConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Headless          bool          `mapstructure:"headless"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	AfterScrollDelay  time.Duration `mapstructure:"after_scroll_delay"`
	RegionDelay       time.Duration `mapstructure:"region_delay"`
	ScrollStep        int           `mapstructure:"scroll_step"`
	ScrollInterval    time.Duration `mapstructure:"scroll_interval"`
	ScrollMaxDistance int           `mapstructure:"scroll_max_distance"`
	ScrollMaxDuration time.Duration `mapstructure:"scroll_max_duration"`
	ScreenshotQuality int           `mapstructure:"screenshot_quality"`
}

// StoreConfig selects the persistence backend. An empty driver disables it.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // "", "postgres" or "sqlite"
	DSN    string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// HarvestConfig drives the server's periodic harvest loop
type HarvestConfig struct {
	Categories []string      `mapstructure:"categories"`
	Interval   time.Duration `mapstructure:"interval"`
	Retention  time.Duration `mapstructure:"retention"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads .env (if any), config.yaml (if any) and HARVEST_* environment
// variables on top of the defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	config.Source.SiteURL = strings.TrimRight(config.Source.SiteURL, "/")
	config.Source.APIURL = strings.TrimRight(config.Source.APIURL, "/")

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.site_url", "https://www.vprok.ru")
	v.SetDefault("source.api_url", "https://api.vprok.ru")
	v.SetDefault("source.city_code", "spb")
	v.SetDefault("source.sort", "popular")
	v.SetDefault("source.page_limit", 100)
	v.SetDefault("source.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("source.rate_per_second", 1.0)
	v.SetDefault("source.burst", 2)
	v.SetDefault("source.respect_robots", false)

	v.SetDefault("timeouts.candidate", "90s")
	v.SetDefault("timeouts.request", "15s")
	v.SetDefault("timeouts.navigation", "30s")

	v.SetDefault("render.enabled", true)
	v.SetDefault("render.headless", true)
	v.SetDefault("render.settle_delay", "2s")
	v.SetDefault("render.after_scroll_delay", "2s")
	v.SetDefault("render.region_delay", "2s")
	v.SetDefault("render.scroll_step", 500)
	v.SetDefault("render.scroll_interval", "300ms")
	v.SetDefault("render.scroll_max_distance", 5000)
	v.SetDefault("render.scroll_max_duration", "10s")
	v.SetDefault("render.screenshot_quality", 80)

	v.SetDefault("store.driver", "")
	v.SetDefault("store.dsn", "")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("harvest.categories", []string{})
	v.SetDefault("harvest.interval", "6h")
	v.SetDefault("harvest.retention", "720h") // 30 days

	v.SetDefault("output.dir", ".")
	v.SetDefault("log.level", "info")
}

func validate(config *Config) error {
	for name, raw := range map[string]string{"source.site_url": config.Source.SiteURL, "source.api_url": config.Source.APIURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got: %q", name, raw)
		}
	}
	if config.Source.PageLimit <= 0 {
		return fmt.Errorf("source.page_limit must be positive, got: %d", config.Source.PageLimit)
	}
	if config.Timeouts.Candidate <= 0 {
		return fmt.Errorf("timeouts.candidate must be positive")
	}

	switch config.Store.Driver {
	case "":
	case "postgres", "sqlite":
		if config.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.driver is %q", config.Store.Driver)
		}
	default:
		return fmt.Errorf("store driver must be 'postgres' or 'sqlite', got: %s", config.Store.Driver)
	}

	if len(config.Harvest.Categories) > 0 && config.Harvest.Interval <= 0 {
		return fmt.Errorf("harvest.interval must be positive when categories are scheduled")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(config.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// LogLevel returns the configured slog level. Load has already validated it.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.Log.Level))
	return level
}

func (c *Config) HarvestSettings() core.Settings {
	return core.Settings{
		SiteURL:          c.Source.SiteURL,
		APIURL:           c.Source.APIURL,
		CityCode:         c.Source.CityCode,
		Sort:             c.Source.Sort,
		PageLimit:        c.Source.PageLimit,
		CandidateTimeout: c.Timeouts.Candidate,
		RenderEnabled:    c.Render.Enabled,
	}
}

func (c *Config) ClientOptions() httpx.ClientOptions {
	return httpx.ClientOptions{
		UserAgent:     c.Source.UserAgent,
		SiteURL:       c.Source.SiteURL,
		Timeout:       c.Timeouts.Request,
		RatePerSecond: c.Source.RatePerSecond,
		Burst:         c.Source.Burst,
		RespectRobots: c.Source.RespectRobots,
	}
}

func (c *Config) RenderOptions() render.Options {
	return render.Options{
		UserAgent:         c.Source.UserAgent,
		Headless:          c.Render.Headless,
		NavigationTimeout: c.Timeouts.Navigation,
		SettleDelay:       c.Render.SettleDelay,
		AfterScrollDelay:  c.Render.AfterScrollDelay,
		RegionDelay:       c.Render.RegionDelay,
		ScreenshotQuality: c.Render.ScreenshotQuality,
		Scroll: render.ScrollOptions{
			Step:        c.Render.ScrollStep,
			Interval:    c.Render.ScrollInterval,
			MaxDistance: c.Render.ScrollMaxDistance,
			MaxDuration: c.Render.ScrollMaxDuration,
		},
	}
}

func (c *Config) Schedule() core.Schedule {
	return core.Schedule{
		Categories: c.Harvest.Categories,
		Interval:   c.Harvest.Interval,
		Retention:  c.Harvest.Retention,
	}
}
