package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.wppscrape/config.toml.
type Config struct {
	DefaultSession string   `toml:"default_session"`
	Browser        Browser  `toml:"browser"`
	Timeouts       Timeouts `toml:"timeouts"`
	Settle         Settle   `toml:"settle"`
	Scan           Scan     `toml:"scan"`
	Schedule       Schedule `toml:"schedule"`
	Archive        Archive  `toml:"archive"`
}

// Browser selects and configures the automation engine.
type Browser struct {
	Engine      string   `toml:"engine"` // rod or chromedp
	Bin         string   `toml:"bin"`
	Headless    bool     `toml:"headless"`
	DebuggerURL string   `toml:"debugger_url"`
	URL         string   `toml:"url"`
	UserDataDir string   `toml:"user_data_dir"` // empty = per-session profile dir
	Flags       []string `toml:"flags"`
}

// Timeouts bounds every wait against the rendered page.
type Timeouts struct {
	Ready    Duration `toml:"ready"`
	Login    Duration `toml:"login"`
	Element  Duration `toml:"element"`
	List     Duration `toml:"list"`
	ChatLoad Duration `toml:"chat_load"`
}

// Settle configures poll-until-stable waits.
type Settle struct {
	Interval Duration `toml:"interval"`
	Quiet    int      `toml:"quiet"`
	Max      Duration `toml:"max"`
}

// Scan configures chat list scanning.
type Scan struct {
	UnreadStrategy string `toml:"unread_strategy"`
}

// Schedule configures how often the daemon runs a pass. Zero runs once at startup.
type Schedule struct {
	Interval Duration `toml:"interval"`
}

// Archive selects where daily archives are written. Bucket wins over Dir when set.
type Archive struct {
	Dir    string `toml:"dir"`
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
}

// Duration is a time.Duration written as "5s" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Browser: Browser{
			Engine: "rod",
			URL:    "https://web.whatsapp.com",
		},
		Timeouts: Timeouts{
			Ready:    Duration{2 * time.Minute},
			Login:    Duration{5 * time.Minute},
			Element:  Duration{5 * time.Second},
			List:     Duration{10 * time.Second},
			ChatLoad: Duration{10 * time.Second},
		},
		Settle: Settle{
			Interval: Duration{250 * time.Millisecond},
			Quiet:    3,
			Max:      Duration{5 * time.Second},
		},
		Scan:     Scan{UnreadStrategy: "v3"},
		Schedule: Schedule{Interval: Duration{30 * time.Second}},
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
// Keys absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load that falls back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
