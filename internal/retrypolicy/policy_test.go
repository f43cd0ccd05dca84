package retrypolicy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDo_RetryLaw exercises retry law: a handler that fails K
// times then succeeds produces exactly one effective state change and
// at most K+1 attempts.
func TestDo_RetryLaw(t *testing.T) {
	policy := Policy{Base: time.Millisecond, Multiplier: 2, Max: 10 * time.Millisecond, MaxAttempts: 5}

	attempts := 0
	effectiveChanges := 0
	err := Do(context.Background(), zerolog.Nop(), policy, func() error {
		attempts++
		if attempts <= 2 {
			return errors.New("transient failure")
		}
		effectiveChanges++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 1, effectiveChanges)
}

func TestDo_ExhaustsAfterMaxAttempts(t *testing.T) {
	policy := Policy{Base: time.Millisecond, Multiplier: 2, Max: 10 * time.Millisecond, MaxAttempts: 3}

	attempts := 0
	err := Do(context.Background(), zerolog.Nop(), policy, func() error {
		attempts++
		return errors.New("permanent failure")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestGatewayPolicy_Shape(t *testing.T) {
	p := GatewayPolicy()
	assert.Equal(t, 2*time.Second, p.Base)
	assert.Equal(t, 10*time.Second, p.Max)
	assert.EqualValues(t, 3, p.MaxAttempts)
}

func TestHandlerPolicy_Shape(t *testing.T) {
	p := HandlerPolicy()
	assert.Equal(t, 2*time.Second, p.Base)
	assert.Equal(t, 30*time.Second, p.Max)
	assert.EqualValues(t, 3, p.MaxAttempts)
}
