package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/associated-token-account/pkg/config"
)

func TestConfig(t *testing.T) {
	ctx := context.Background()

	c := NewConfig(uint64(3480))
	val, err := c.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3480, val)

	c.Set(nil)
	_, err = c.Get(ctx)
	assert.Equal(t, config.ErrNoValue, err)

	c.Set(2.0)
	val, err = c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, val)

	failure := errors.New("unavailable")
	c.Fail(failure)
	_, err = c.Get(ctx)
	assert.Equal(t, failure, err)

	c.Fail(nil)
	val, err = c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, val)

	c.Shutdown()
	_, err = c.Get(ctx)
	assert.Equal(t, config.ErrShutdown, err)
}
