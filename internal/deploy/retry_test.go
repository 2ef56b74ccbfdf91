package deploy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRetryPolicy checks the budget bounds the number of retries.
func TestRetryPolicy(t *testing.T) {
	t.Parallel()

	require.False(t, newRetryPolicy(nil).allow())
	require.False(t, newRetryPolicy(intPtr(0)).allow())

	budget := 2
	p := newRetryPolicy(&budget)
	require.True(t, p.allow())
	require.True(t, p.allow())
	require.False(t, p.allow())
	require.False(t, p.allow())

	// The session budget itself is never consumed.
	require.Equal(t, 2, budget)
}
