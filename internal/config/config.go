package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/riri-source/AirAlarmBot/internal/feed"
)

// Scope recipient kinds. A scope names who gets its notifications; the
// actual chat IDs come from the environment so they never land in the
// config file.
const (
	RecipientGroup = "group"
	RecipientAdmin = "admin"
)

type Config struct {
	PollIntervalSeconds int               `yaml:"poll_interval_seconds"`
	FeedURL             string            `yaml:"feed_url"`
	HomeOblast          string            `yaml:"home_oblast"`
	StatusAddr          string            `yaml:"status_addr"`
	Channel             string            `yaml:"channel"` // "telegram" or "stdout"
	DictionaryPath      string            `yaml:"dictionary_path"`
	Images              ImagesConfig      `yaml:"images"`
	Scopes              []ScopeConfig     `yaml:"scopes"`
	AdminScope          bool              `yaml:"admin_scope"` // add a country-wide scope for the admin
	AlertTypeNames      map[string]string `yaml:"alert_type_names"`
	Regions             []string          `yaml:"regions"`
	SpecialRegion       string            `yaml:"special_region"`
	Subregions          []string          `yaml:"subregions"`

	// From the environment, never from the file.
	BotToken    string        `yaml:"-"`
	AlertsToken string        `yaml:"-"`
	AdminID     int64         `yaml:"-"`
	ChatID      int64         `yaml:"-"`
	PollInterval time.Duration `yaml:"-"` // derived
}

type ImagesConfig struct {
	Alarm string `yaml:"alarm"`
	Clear string `yaml:"clear"`
}

type ScopeConfig struct {
	Name      string   `yaml:"name"`
	Oblasts   []string `yaml:"oblasts"` // empty = all oblasts
	Recipient string   `yaml:"recipient"`
	ChatID    int64    `yaml:"-"` // resolved from Recipient
}

// DefaultRegions is the admin-menu list of top-level administrative areas,
// in the feed's canonical naming.
var DefaultRegions = []string{
	"Автономна Республіка Крим",
	"Вінницька область",
	"Волинська область",
	"Дніпропетровська область",
	"Донецька область",
	"Житомирська область",
	"Закарпатська область",
	"Запорізька область",
	"Івано-Франківська область",
	"Київська область",
	"Кіровоградська область",
	"Луганська область",
	"Львівська область",
	"Миколаївська область",
	"Одеська область",
	"Полтавська область",
	"Рівненська область",
	"Сумська область",
	"Тернопільська область",
	"Харківська область",
	"Херсонська область",
	"Хмельницька область",
	"Черкаська область",
	"Чернівецька область",
	"Чернігівська область",
	"м. Київ",
	"м. Севастополь",
}

// DefaultSubregions are the raions of the one oblast tracked at raion
// granularity.
var DefaultSubregions = []string{
	"Бучанський район",
	"Вишгородський район",
	"Фастівський район",
	"Обухівський район",
	"Білоцерківський район",
	"Бориспільський район",
	"Броварський район",
	"м. Київ",
}

// Load reads the optional YAML config file, applies defaults and overlays
// credentials and identities from the environment (BOT_TOKEN, ALERTS_TOKEN,
// CHAT_ID, ADMIN_ID, REGION, POLL_INTERVAL). A missing file is fine — the
// original deployment was configured from the environment alone.
func Load(filePath string) (*Config, error) {
	var cfg Config

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config YAML from %s: %w", filePath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
		}
	}

	// Environment overlay
	cfg.BotToken = os.Getenv("BOT_TOKEN")
	cfg.AlertsToken = os.Getenv("ALERTS_TOKEN")
	if region := os.Getenv("REGION"); region != "" {
		cfg.HomeOblast = region
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("POLL_INTERVAL must be a positive integer, got %q", v)
		}
		cfg.PollIntervalSeconds = n
	}
	var err error
	if cfg.AdminID, err = envInt64("ADMIN_ID"); err != nil {
		return nil, err
	}
	if cfg.ChatID, err = envInt64("CHAT_ID"); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envInt64(key string) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer chat identifier, got %q", key, v)
	}
	return n, nil
}

func applyDefaults(cfg *Config) {
	if cfg.PollIntervalSeconds <= 0 {
		cfg.PollIntervalSeconds = 25
	}
	cfg.PollInterval = time.Duration(cfg.PollIntervalSeconds) * time.Second

	if cfg.FeedURL == "" {
		cfg.FeedURL = "https://api.alerts.in.ua/v1/alerts/active.json"
	}
	if cfg.HomeOblast == "" {
		cfg.HomeOblast = "Київська область"
	}
	if cfg.StatusAddr == "" {
		port := os.Getenv("PORT") // platform-injected on Render
		if port == "" {
			port = "10000"
		}
		cfg.StatusAddr = ":" + port
	}
	if cfg.Channel == "" {
		cfg.Channel = "telegram"
	}
	if cfg.DictionaryPath == "" {
		cfg.DictionaryPath = "locations.yaml"
	}
	if cfg.Images.Alarm == "" {
		cfg.Images.Alarm = "images/alarm.jpg"
	}
	if cfg.Images.Clear == "" {
		cfg.Images.Clear = "images/clear.jpg"
	}
	if cfg.AlertTypeNames == nil {
		cfg.AlertTypeNames = map[string]string{
			"air_raid":  "Повітряна тривога!",
			"chemical":  "Хімічна тривога",
			"radiation": "Радіаційна тривога",
			"other":     "Інша тривога",
		}
	}
	if len(cfg.Regions) == 0 {
		cfg.Regions = DefaultRegions
	}
	if cfg.SpecialRegion == "" {
		cfg.SpecialRegion = "Київська область"
	}
	if len(cfg.Subregions) == 0 {
		cfg.Subregions = DefaultSubregions
	}

	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []ScopeConfig{{
			Name:      cfg.HomeOblast,
			Oblasts:   []string{cfg.HomeOblast},
			Recipient: RecipientGroup,
		}}
	}
	if cfg.AdminScope {
		cfg.Scopes = append(cfg.Scopes, ScopeConfig{
			Name:      "Україна",
			Recipient: RecipientAdmin,
		})
	}
}

func validate(cfg *Config) error {
	if cfg.AlertsToken == "" {
		return fmt.Errorf("ALERTS_TOKEN is required")
	}
	switch cfg.Channel {
	case "telegram":
		if cfg.BotToken == "" {
			return fmt.Errorf("BOT_TOKEN is required for the telegram channel")
		}
	case "stdout":
		// No credentials needed, local runs only.
	default:
		return fmt.Errorf("unknown channel %q (want telegram or stdout)", cfg.Channel)
	}

	for i := range cfg.Scopes {
		sc := &cfg.Scopes[i]
		if strings.TrimSpace(sc.Name) == "" {
			return fmt.Errorf("scope at index %d missing name", i)
		}
		switch sc.Recipient {
		case RecipientGroup:
			if cfg.ChatID == 0 && cfg.Channel == "telegram" {
				return fmt.Errorf("scope %q needs CHAT_ID to be set", sc.Name)
			}
			sc.ChatID = cfg.ChatID
		case RecipientAdmin:
			if cfg.AdminID == 0 {
				return fmt.Errorf("scope %q needs ADMIN_ID to be set", sc.Name)
			}
			sc.ChatID = cfg.AdminID
		default:
			return fmt.Errorf("scope %q has unknown recipient %q", sc.Name, sc.Recipient)
		}
	}
	return nil
}

// TypeNames returns the alert-kind display names keyed by feed type.
func (c *Config) TypeNames() map[feed.AlertType]string {
	out := make(map[feed.AlertType]string, len(c.AlertTypeNames))
	for k, v := range c.AlertTypeNames {
		out[feed.AlertType(k)] = v
	}
	return out
}
