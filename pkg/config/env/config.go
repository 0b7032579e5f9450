package env

import (
	"context"
	"os"
	"strings"

	"github.com/code-payments/associated-token-account/pkg/config"
	"github.com/code-payments/associated-token-account/pkg/config/wrapper"
)

// variable is a config backed by a single environment variable. The
// variable is looked up on every Get, so changes to the process environment
// are picked up without rebuilding the config.
type variable struct {
	name string
}

// NewConfig returns a config reading the upper cased key from the
// environment. Unset and blank variables have no value.
func NewConfig(key string) config.Config {
	return &variable{name: strings.ToUpper(key)}
}

// Get implements Config.Get
func (v *variable) Get(_ context.Context) (interface{}, error) {
	raw, ok := os.LookupEnv(v.name)
	if !ok {
		return nil, config.ErrNoValue
	}

	raw = strings.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, config.ErrNoValue
	}
	return []byte(raw), nil
}

// Shutdown implements Config.Shutdown
func (v *variable) Shutdown() {}

func NewInt64Config(key string, defaultValue int64) config.Int64 {
	return wrapper.NewInt64Config(NewConfig(key), defaultValue)
}

func NewUint64Config(key string, defaultValue uint64) config.Uint64 {
	return wrapper.NewUint64Config(NewConfig(key), defaultValue)
}

func NewFloat64Config(key string, defaultValue float64) config.Float64 {
	return wrapper.NewFloat64Config(NewConfig(key), defaultValue)
}

func NewBoolConfig(key string, defaultValue bool) config.Bool {
	return wrapper.NewBoolConfig(NewConfig(key), defaultValue)
}
