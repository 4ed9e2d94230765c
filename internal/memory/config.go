// Package memory provides reusable CPU-side staging memory for assembling
// vertex data before it is uploaded to the GPU.
//
// A Pool hands out a scratch slice sized to at least the requested element
// count. It grows with headroom for small and medium requests, passes
// oversized one-off requests through without retaining them, and drops a
// retained slice that has been both idle and much larger than recent demand.
// Pools are owned by exactly one goroutine; Local binds one per goroutine.
package memory

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
	"time"
)

var stagingLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("TESSERA_DEBUG_STAGING") == "1" {
		stagingLogger = log.New(os.Stdout, "[staging] ", log.Ltime|log.Lmsgprefix)
	}
}

// Default staging thresholds, in elements.
const (
	DefaultMinRetain     = 1024
	DefaultMaxRetain     = 1 << 20
	DefaultIdleThreshold = 10 * time.Second
	DefaultShrinkDivisor = 4
)

// Config tunes how a Pool grows and shrinks.
type Config struct {
	// MinRetain is the element count below which new slices are allocated at
	// twice the requested size, and at or below which a retained slice is
	// never released for being oversized.
	MinRetain int

	// MaxRetain is the largest request whose slice is kept for reuse. Requests
	// in [MinRetain, MaxRetain) are padded by half; larger requests are
	// allocated exactly and handed out once.
	MaxRetain int

	// IdleThreshold is how long a retained slice must go unused before it may
	// be released for being oversized.
	IdleThreshold time.Duration

	// ShrinkDivisor releases a retained slice when its length exceeds
	// ShrinkDivisor times the current request (and the slice has been idle).
	ShrinkDivisor int
}

// DefaultConfig returns the built-in thresholds.
func DefaultConfig() Config {
	return Config{
		MinRetain:     DefaultMinRetain,
		MaxRetain:     DefaultMaxRetain,
		IdleThreshold: DefaultIdleThreshold,
		ShrinkDivisor: DefaultShrinkDivisor,
	}
}

// Validate reports whether the thresholds are usable.
func (c Config) Validate() error {
	if c.MinRetain <= 0 {
		return fmt.Errorf("min retain must be positive, got %d", c.MinRetain)
	}
	if c.MaxRetain < c.MinRetain {
		return fmt.Errorf("max retain (%d) must be at least min retain (%d)", c.MaxRetain, c.MinRetain)
	}
	if c.IdleThreshold < 0 {
		return fmt.Errorf("idle threshold must not be negative, got %s", c.IdleThreshold)
	}
	if c.ShrinkDivisor < 2 {
		return fmt.Errorf("shrink divisor must be at least 2, got %d", c.ShrinkDivisor)
	}
	return nil
}

// allocSize returns the length to allocate for a request of n elements.
func (c Config) allocSize(n int) int {
	switch {
	case n < c.MinRetain:
		return n * 2
	case n < c.MaxRetain:
		return n + n/2
	default:
		return n
	}
}

var defaultConfig atomic.Pointer[Config]

func init() {
	c := DefaultConfig()
	defaultConfig.Store(&c)
}

// SetDefaultConfig replaces the process-wide thresholds used by every pool
// without an explicit config. It is safe to call while pools are in use; the
// new values apply from each pool's next request.
func SetDefaultConfig(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	defaultConfig.Store(&c)
	stagingLogger.Printf("default config set: min=%d max=%d idle=%s divisor=%d",
		c.MinRetain, c.MaxRetain, c.IdleThreshold, c.ShrinkDivisor)
	return nil
}

// CurrentDefaultConfig returns the process-wide thresholds.
func CurrentDefaultConfig() Config {
	return *defaultConfig.Load()
}
