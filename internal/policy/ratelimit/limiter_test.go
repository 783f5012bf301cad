package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitUnlimitedNeverBlocks(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "https://example.com/page"))
	}
}

func TestWaitTracksDomainsSeparately(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1000, DefaultBurst: 1})
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "https://a.example/x"))
	require.NoError(t, l.Wait(ctx, "https://b.example/y"))
	require.NoError(t, l.Wait(ctx, "not a url"))
	require.Equal(t, 3, l.Domains())
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	// Burst 1 at a glacial rate: the second wait must block until the
	// context gives out.
	l := New(Config{DefaultRPS: 0.001, DefaultBurst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "https://slow.example/"))
	err := l.Wait(ctx, "https://slow.example/")
	require.Error(t, err)
}

func TestWaitReportsIntroducedDelay(t *testing.T) {
	t.Parallel()

	var gotDomain string
	l := New(Config{
		DefaultRPS:   50,
		DefaultBurst: 1,
		OnDelay: func(domain string, d time.Duration) {
			gotDomain = domain
			require.Greater(t, d, time.Millisecond)
		},
	})
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "https://paced.example/"))
	require.NoError(t, l.Wait(ctx, "https://paced.example/"))
	require.Equal(t, "paced.example", gotDomain)
}
