// cmd/queue-manager/main_test.go
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"exam-queue/internal/common/config"
	"exam-queue/internal/common/logger"
	"exam-queue/internal/syncer"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func offlineConfig(redisAddr string) *config.Config {
	return &config.Config{
		App:   config.AppConfig{Name: "exam-queue-test"},
		Cache: config.CacheConfig{Redis: config.RedisConfig{Address: redisAddr}, KeyPrefix: "test", Channel: "test:changes"},
		Sync:  config.SyncConfig{RefreshInterval: 50, MinutesPerStudent: 5, DisplayLimit: 5},
	}
}

func writeConfigFile(t *testing.T, redisAddr string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf(`app:
  name: exam-queue-test
cache:
  key_prefix: cli
  redis:
    address: %s
logging:
  level: error
  format: console
  output: stderr
`, redisAddr)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ==========================
// Retry Tests
// ==========================

func TestRetryWithBackoff(t *testing.T) {
	log := logger.NewTestLogger(t)

	calls := 0
	err := retryWithBackoff(func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, 5, time.Millisecond, log, "flaky")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryWithBackoff(func() error {
		calls++
		return errors.New("down")
	}, 2, time.Millisecond, log, "broken")
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "broken failed after 2 attempts")
}

// ==========================
// Wiring Tests
// ==========================

func TestBuild_SeedThenCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	log := logger.NewTestLogger(t)

	first, err := build(ctx, offlineConfig(mr.Addr()), log)
	require.NoError(t, err)
	report, err := first.syncer.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, syncer.SourceSeed, report.Source)
	assert.False(t, first.syncer.Online())
	first.close()

	second, err := build(ctx, offlineConfig(mr.Addr()), log)
	require.NoError(t, err)
	defer second.close()
	report, err = second.syncer.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, syncer.SourceCache, report.Source)
	assert.Len(t, second.store.Snapshot().Students, 11)
}

func TestBuild_WithoutRedis(t *testing.T) {
	ctx := context.Background()
	cfg := offlineConfig("127.0.0.1:1")

	c, err := build(ctx, cfg, logger.NewTestLogger(t))
	require.NoError(t, err)
	defer c.close()

	report, err := c.syncer.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, syncer.SourceSeed, report.Source)
}

// ==========================
// Command Tests
// ==========================

func TestImportCommand(t *testing.T) {
	mr := miniredis.RunT(t)
	cfgPath := writeConfigFile(t, mr.Addr())

	csvPath := filepath.Join(t.TempDir(), "students.csv")
	require.NoError(t, os.WriteFile(csvPath,
		[]byte("id,name,specialty,committeeId\n301,Hana Adel,Mathematics,2\n"), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"import", "--config", cfgPath, csvPath})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "imported 1 students")
	assert.Contains(t, out.String(), "301")

	cached, err := mr.Get("cli_students")
	require.NoError(t, err)
	assert.Contains(t, cached, `"id":301`)
}

func TestImportCommand_InvalidFile(t *testing.T) {
	mr := miniredis.RunT(t)
	cfgPath := writeConfigFile(t, mr.Addr())

	csvPath := filepath.Join(t.TempDir(), "students.csv")
	require.NoError(t, os.WriteFile(csvPath,
		[]byte("id,name,specialty,committeeId\n101,Duplicate,CS,1\n"), 0o600))

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"import", "--config", cfgPath, csvPath})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
