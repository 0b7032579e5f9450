package wrapper

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/code-payments/associated-token-account/pkg/config"
)

// ErrUnsuportedConversion indicates the wrapper does not implement conversion from the source type
var ErrUnsuportedConversion = errors.New("config: wrapper conversion from source type not implemented")

// converter converts a raw config value into T. ok is false when the source
// type is not supported.
type converter[T any] func(raw interface{}) (value T, ok bool, err error)

// typedConfig is a utility wrapper that converts an untyped config.Config into
// a typed one, falling back to a default value when no override is set.
type typedConfig[T any] struct {
	override     config.Config
	defaultValue T
	convert      converter[T]

	stateMu   sync.RWMutex
	lastValue T
}

func newTypedConfig[T any](override config.Config, defaultValue T, convert converter[T]) *typedConfig[T] {
	return &typedConfig[T]{
		override:     override,
		defaultValue: defaultValue,
		convert:      convert,
		lastValue:    defaultValue,
	}
}

// GetSafe gets a config value and propagates any errors that arise. A best-effort
// attempt is made to return the last known value
func (c *typedConfig[T]) GetSafe(ctx context.Context) (T, error) {
	override, err := c.override.Get(ctx)

	c.stateMu.RLock()
	lastValue := c.lastValue
	c.stateMu.RUnlock()

	if err == config.ErrNoValue {
		c.setLast(c.defaultValue)
		return c.defaultValue, nil
	} else if err != nil {
		return lastValue, err
	}

	newValue, ok, err := c.convert(override)
	if !ok {
		return lastValue, ErrUnsuportedConversion
	} else if err != nil {
		return lastValue, err
	}

	c.setLast(newValue)
	return newValue, nil
}

// Get is a wrapper for GetSafe that ignores the returned error
func (c *typedConfig[T]) Get(ctx context.Context) T {
	val, _ := c.GetSafe(ctx)
	return val
}

// Shutdown signals the config to stop all underlying resources
func (c *typedConfig[T]) Shutdown() {
	c.override.Shutdown()
}

func (c *typedConfig[T]) setLast(v T) {
	c.stateMu.Lock()
	c.lastValue = v
	c.stateMu.Unlock()
}

// NewBoolConfig returns a new bool config utility wrapper
func NewBoolConfig(override config.Config, defaultValue bool) config.Bool {
	return newTypedConfig(override, defaultValue, func(raw interface{}) (bool, bool, error) {
		switch v := raw.(type) {
		case []byte:
			parsed, err := strconv.ParseBool(string(v))
			return parsed, true, err
		case string:
			parsed, err := strconv.ParseBool(v)
			return parsed, true, err
		case bool:
			return v, true, nil
		default:
			return false, false, nil
		}
	})
}

// NewInt64Config returns a new int64 config utility wrapper
func NewInt64Config(override config.Config, defaultValue int64) config.Int64 {
	return newTypedConfig(override, defaultValue, func(raw interface{}) (int64, bool, error) {
		switch v := raw.(type) {
		case []byte:
			parsed, err := strconv.ParseInt(string(v), 10, 64)
			return parsed, true, err
		case string:
			parsed, err := strconv.ParseInt(v, 10, 64)
			return parsed, true, err
		case int:
			return int64(v), true, nil
		case int64:
			return v, true, nil
		default:
			return 0, false, nil
		}
	})
}

// NewUint64Config returns a new uint64 config utility wrapper
func NewUint64Config(override config.Config, defaultValue uint64) config.Uint64 {
	return newTypedConfig(override, defaultValue, func(raw interface{}) (uint64, bool, error) {
		switch v := raw.(type) {
		case []byte:
			parsed, err := strconv.ParseUint(string(v), 10, 64)
			return parsed, true, err
		case string:
			parsed, err := strconv.ParseUint(v, 10, 64)
			return parsed, true, err
		case uint64:
			return v, true, nil
		case int:
			if v < 0 {
				return 0, true, errors.Errorf("negative value %d for uint64 config", v)
			}
			return uint64(v), true, nil
		default:
			return 0, false, nil
		}
	})
}

// NewFloat64Config returns a new float64 config utility wrapper
func NewFloat64Config(override config.Config, defaultValue float64) config.Float64 {
	return newTypedConfig(override, defaultValue, func(raw interface{}) (float64, bool, error) {
		switch v := raw.(type) {
		case []byte:
			parsed, err := strconv.ParseFloat(string(v), 64)
			return parsed, true, err
		case string:
			parsed, err := strconv.ParseFloat(v, 64)
			return parsed, true, err
		case float64:
			return v, true, nil
		default:
			return 0, false, nil
		}
	})
}
