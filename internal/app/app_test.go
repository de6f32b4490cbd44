package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"nicetab/api/internal/config"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Config{
		Store:         config.StoreMemory,
		HistoryDir:    t.TempDir(),
		WebDAVTimeout: time.Second,
		SchedulerTick: time.Minute,
	}
	a, err := Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}
