// Package config loads tessera's TOML configuration and watches it for
// changes.
package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/irfansharif/tessera/internal/memory"
)

var configLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("TESSERA_DEBUG_CONFIG") == "1" {
		configLogger = log.New(os.Stdout, "[config] ", log.Ltime|log.Lmsgprefix)
	}
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full configuration file.
type Config struct {
	Staging Staging `toml:"staging"`
	Window  Window  `toml:"window"`
	Scene   Scene   `toml:"scene"`
}

// Staging tunes the staging pools used to build vertex uploads.
type Staging struct {
	MinRetain     int     `toml:"min_retain"`     // elements
	MaxRetain     int     `toml:"max_retain"`     // elements
	IdleSeconds   float64 `toml:"idle_seconds"`   // before an oversized buffer is dropped
	ShrinkDivisor int     `toml:"shrink_divisor"` // retained/request ratio that counts as oversized
}

// Window configures the demo window.
type Window struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
	VSync  bool   `toml:"vsync"`
}

// Scene configures the initial demo scene.
type Scene struct {
	Seed       int64   `toml:"seed"`
	Shapes     int     `toml:"shapes"`     // distinct geometries
	Duplicates int     `toml:"duplicates"` // extra instances per geometry
	Scale      float64 `toml:"scale"`      // shape radius in pixels
}

// Default returns the configuration used when no file is given.
func Default() Config {
	mc := memory.DefaultConfig()
	return Config{
		Staging: Staging{
			MinRetain:     mc.MinRetain,
			MaxRetain:     mc.MaxRetain,
			IdleSeconds:   mc.IdleThreshold.Seconds(),
			ShrinkDivisor: mc.ShrinkDivisor,
		},
		Window: Window{Width: 800, Height: 800, Title: "tessera", VSync: true},
		Scene:  Scene{Seed: 42, Shapes: 6, Duplicates: 2, Scale: 60},
	}
}

// Memory converts the staging table into pool thresholds.
func (s Staging) Memory() memory.Config {
	return memory.Config{
		MinRetain:     s.MinRetain,
		MaxRetain:     s.MaxRetain,
		IdleThreshold: time.Duration(s.IdleSeconds * float64(time.Second)),
		ShrinkDivisor: s.ShrinkDivisor,
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalid.
func (c Config) Validate() error {
	if err := c.Staging.Memory().Validate(); err != nil {
		return fmt.Errorf("%w: [staging] %v", ErrInvalid, err)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: [window] size %dx%d must be positive", ErrInvalid, c.Window.Width, c.Window.Height)
	}
	if c.Scene.Shapes < 0 || c.Scene.Duplicates < 0 {
		return fmt.Errorf("%w: [scene] shapes=%d duplicates=%d must not be negative",
			ErrInvalid, c.Scene.Shapes, c.Scene.Duplicates)
	}
	if c.Scene.Scale <= 0 {
		return fmt.Errorf("%w: [scene] scale %g must be positive", ErrInvalid, c.Scene.Scale)
	}
	return nil
}

// Parse decodes TOML on top of the defaults, so missing fields keep their
// default values, and validates the result.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := toml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads and parses the file at path. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	configLogger.Printf("loaded %s", path)
	return c, nil
}

// FromEnv loads the file named by TESSERA_CONFIG and applies TESSERA_SEED.
func FromEnv() (Config, error) {
	c, err := Load(os.Getenv("TESSERA_CONFIG"))
	if err != nil {
		return Config{}, err
	}
	if s := os.Getenv("TESSERA_SEED"); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("%w: TESSERA_SEED=%q: %v", ErrInvalid, s, err)
		}
		c.Scene.Seed = seed
	}
	return c, nil
}

// Encode renders c as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
