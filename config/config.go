package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	// PageID is the Facebook page whose feed is mirrored.
	PageID = "31232272780"
	// CollectionName is the collection (or table) holding post records.
	CollectionName = "fb_posts"
)

type Config struct {
	Feed     FeedConfig     `toml:"feed"`
	Twitter  TwitterConfig  `toml:"twitter"`
	Store    StoreConfig    `toml:"store"`
	Schedule ScheduleConfig `toml:"schedule"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`

	// Secrets never come from the TOML file.
	Secrets Secrets `toml:"-"`
}

type FeedConfig struct {
	GraphVersion string        `toml:"graph_version"`
	Limit        int           `toml:"limit"`
	Timeout      time.Duration `toml:"timeout"`
}

type TwitterConfig struct {
	Timeout           time.Duration `toml:"timeout"`
	RequestsPerMinute int           `toml:"requests_per_minute"`
	MaxImageBytes     int64         `toml:"max_image_bytes"`
}

type StoreConfig struct {
	Driver   string        `toml:"driver"`   // Optional, inferred from the connection string when empty
	Database string        `toml:"database"` // Mongo database name
	Timeout  time.Duration `toml:"timeout"`
}

type ScheduleConfig struct {
	Interval time.Duration `toml:"interval"`
}

type ServerConfig struct {
	// Empty disables the status server. Prefer a loopback address such as
	// 127.0.0.1:8080; POST /run also requires STATUS_TOKEN.
	ListenAddr string `toml:"listen_addr"`
	Mode       string `toml:"mode"`
}

type LoggingConfig struct {
	LogDir string `toml:"log_dir"` // Empty logs to stdout only
}

type Secrets struct {
	FacebookAccessToken      string
	TwitterConsumerKey       string
	TwitterConsumerSecret    string
	TwitterAccessTokenKey    string
	TwitterAccessTokenSecret string
	StoreConnectionString    string
	StatusToken              string
}

func GetConfigDir() string {
	var configDir string
	var err error

	if runtime.GOOS == "darwin" {
		configDir, err = os.UserHomeDir()
		if err == nil {
			configDir = filepath.Join(configDir, ".config")
		}
	} else {
		configDir, err = os.UserConfigDir()
	}
	if err != nil {
		return "."
	}

	return filepath.Join(configDir, "fbtweeter")
}

// GetConfigPath prefers config.toml in the working directory, then the user config dir.
func GetConfigPath() string {
	currentDirConfig := "config.toml"
	if _, err := os.Stat(currentDirConfig); err == nil {
		return currentDirConfig
	}
	return filepath.Join(GetConfigDir(), "config.toml")
}

func CreateDefaultConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			GraphVersion: "v19.0",
			Limit:        100,
			Timeout:      30 * time.Second,
		},
		Twitter: TwitterConfig{
			Timeout:           60 * time.Second,
			RequestsPerMinute: 30,
			MaxImageBytes:     5 * 1024 * 1024,
		},
		Store: StoreConfig{
			Database: "fbtweeter",
			Timeout:  15 * time.Second,
		},
		Schedule: ScheduleConfig{
			Interval: 8 * time.Hour,
		},
		Server: ServerConfig{
			Mode: "release",
		},
	}
}

// LoadEnv loads a dotenv file into the process environment. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadConfig overlays the TOML file at configPath onto the defaults and reads
// secrets from the environment. A missing file is only an error when required.
func LoadConfig(configPath string, required bool) (*Config, error) {
	config := CreateDefaultConfig()

	if configPath != "" {
		_, err := toml.DecodeFile(configPath, config)
		switch {
		case err == nil:
		case errors.Is(err, fs.ErrNotExist) && !required:
		default:
			return nil, fmt.Errorf("failed to read config %v: %w", configPath, err)
		}
	}

	config.Secrets = SecretsFromEnv()

	if config.Feed.Limit <= 0 {
		return nil, fmt.Errorf("feed.limit must be positive in %v", configPath)
	}
	if config.Schedule.Interval <= 0 {
		return nil, fmt.Errorf("schedule.interval must be positive in %v", configPath)
	}
	if config.Twitter.RequestsPerMinute <= 0 {
		config.Twitter.RequestsPerMinute = CreateDefaultConfig().Twitter.RequestsPerMinute
	}
	config.Store.Driver = strings.ToLower(strings.TrimSpace(config.Store.Driver))

	return config, nil
}

func SecretsFromEnv() Secrets {
	conn := os.Getenv("STORE_CONNECTION_STRING")
	if conn == "" {
		conn = os.Getenv("MONGO_DB_CONNECTION_STRING")
	}
	return Secrets{
		FacebookAccessToken:      os.Getenv("FACEBOOK_ACCESS_TOKEN"),
		TwitterConsumerKey:       os.Getenv("TWITTER_CONSUMER_KEY"),
		TwitterConsumerSecret:    os.Getenv("TWITTER_CONSUMER_SECRET"),
		TwitterAccessTokenKey:    os.Getenv("TWITTER_ACCESS_TOKEN_KEY"),
		TwitterAccessTokenSecret: os.Getenv("TWITTER_ACCESS_TOKEN_SECRET"),
		StoreConnectionString:    conn,
		StatusToken:              os.Getenv("STATUS_TOKEN"),
	}
}

// Validate reports every missing secret needed by the given mode.
func (c *Config) Validate(needTwitter bool) error {
	var missing []string
	if c.Secrets.FacebookAccessToken == "" {
		missing = append(missing, "FACEBOOK_ACCESS_TOKEN")
	}
	if c.Secrets.StoreConnectionString == "" {
		missing = append(missing, "STORE_CONNECTION_STRING")
	}
	if needTwitter {
		if c.Secrets.TwitterConsumerKey == "" {
			missing = append(missing, "TWITTER_CONSUMER_KEY")
		}
		if c.Secrets.TwitterConsumerSecret == "" {
			missing = append(missing, "TWITTER_CONSUMER_SECRET")
		}
		if c.Secrets.TwitterAccessTokenKey == "" {
			missing = append(missing, "TWITTER_ACCESS_TOKEN_KEY")
		}
		if c.Secrets.TwitterAccessTokenSecret == "" {
			missing = append(missing, "TWITTER_ACCESS_TOKEN_SECRET")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// SaveConfig writes the non-secret settings to configPath, creating its directory.
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}
	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	return encoder.Encode(cfg)
}

// EnsureConfigExists writes a default config file when none is present.
func EnsureConfigExists(configPath string) (bool, error) {
	if _, err := os.Stat(configPath); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := SaveConfig(CreateDefaultConfig(), configPath); err != nil {
		return false, fmt.Errorf("failed to create default config: %w", err)
	}
	return true, nil
}
