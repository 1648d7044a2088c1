package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"
	"github.com/tailscale/hujson"
)

// Config holds the settings from the config file and global flags.
type Config struct {
	Dir        string   `json:"dir"`
	AppVersion int      `json:"app_version"`
	MaxSize    ByteSize `json:"max_size,omitempty"`
	LogLevel   string   `json:"log_level,omitempty"`
	Codec      string   `json:"codec,omitempty"`
	Source     string   `json:"source,omitempty"`
}

// DefaultConfig returns the settings used when neither file nor flags set them.
// An unset budget means unlimited, so inspecting a cache never evicts from it.
func DefaultConfig() Config {
	return Config{
		AppVersion: 1,
		MaxSize:    ByteSize(math.MaxInt64),
		LogLevel:   "warn",
		Codec:      "none",
	}
}

// LoadConfig reads a JSON config file. Comments and trailing commas are allowed.
// Fields missing from the file keep the values in base.
func LoadConfig(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(data, base)
}

func parseConfig(data []byte, base Config) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	cfg := base
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.New("no cache directory: set --dir or \"dir\" in the config file")
	}
	if c.MaxSize <= 0 {
		return fmt.Errorf("max size must be positive, got %d", c.MaxSize)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

// ByteSize is a byte count that also parses human-readable sizes such as
// "64MiB" or "1.5GB". It implements pflag.Value.
type ByteSize int64

// ParseByteSize parses a plain byte count or a human-readable size.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("size %q too large", s)
	}
	return ByteSize(n), nil
}

func (b ByteSize) String() string {
	if b == ByteSize(math.MaxInt64) {
		return "unlimited"
	}
	return humanize.IBytes(uint64(b))
}

func (b *ByteSize) Set(s string) error {
	n, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = n
	return nil
}

func (*ByteSize) Type() string { return "bytes" }

// UnmarshalJSON accepts a number of bytes or a size string.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*b = ByteSize(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("max_size: want a number or a size string: %w", err)
	}
	return b.Set(s)
}
