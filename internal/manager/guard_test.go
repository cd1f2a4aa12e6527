package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokenmart/marketd/internal/domain"
)

func TestGuard_BlocksMarkedContext(t *testing.T) {
	g := NewGuard()

	ctx, release, err := g.Enter(context.Background())
	require.NoError(t, err)
	defer release()

	_, _, err = g.Enter(ctx)
	assert.ErrorIs(t, err, domain.ErrReentrancyBlocked)
}

func TestGuard_ReleaseAllowsNextEntry(t *testing.T) {
	g := NewGuard()

	_, release, err := g.Enter(context.Background())
	require.NoError(t, err)
	release()

	_, release, err = g.Enter(context.Background())
	require.NoError(t, err)
	release()
}

func TestGuard_SerializesIndependentCalls(t *testing.T) {
	g := NewGuard()

	_, release, err := g.Enter(context.Background())
	require.NoError(t, err)

	entered := make(chan struct{})
	go func() {
		_, release2, err := g.Enter(context.Background())
		assert.NoError(t, err)
		release2()
		close(entered)
	}()

	// The second caller must block until the first releases.
	select {
	case <-entered:
		t.Fatal("second entry proceeded while the guard was held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("second entry never proceeded after release")
	}
}
