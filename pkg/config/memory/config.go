package memory

import (
	"context"
	"sync"

	"github.com/code-payments/associated-token-account/pkg/config"
)

// Config holds a config value in memory. It backs test overrides of
// environment based configuration.
type Config struct {
	mu       sync.RWMutex
	value    interface{}
	err      error
	shutdown bool
}

// NewConfig returns a config holding value. A nil value means unset.
func NewConfig(value interface{}) *Config {
	return &Config{value: value}
}

// Get implements config.Config.Get. A failure set with Fail takes precedence
// over the stored value.
func (c *Config) Get(_ context.Context) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.shutdown:
		return nil, config.ErrShutdown
	case c.err != nil:
		return nil, c.err
	case c.value == nil:
		return nil, config.ErrNoValue
	default:
		return c.value, nil
	}
}

// Shutdown implements config.Config.Shutdown.
func (c *Config) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown = true
}

// Set replaces the stored value. Set(nil) unsets it.
func (c *Config) Set(value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
}

// Fail makes subsequent Get calls return err. Fail(nil) restores normal
// behaviour.
func (c *Config) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}
