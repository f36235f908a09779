package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/block-0x/signet/pkg/log"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(configDirPathEnv, dir)

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, dir, cfg.ConfigDir)
		assert.Equal(t, "console", cfg.Log.Format)
		assert.Equal(t, log.LevelInfo, cfg.Log.Level)
		assert.Equal(t, uint64(1), cfg.WalletChainID)
		assert.True(t, cfg.CacheProvider)
		assert.Equal(t, CacheSQLite, cfg.CacheBackend)
		assert.Equal(t, filepath.Join(dir, "signet.db"), cfg.cacheDSN())
		assert.Equal(t, EventsGoChannel, cfg.Events)
		assert.Equal(t, TraceNone, cfg.TraceExporter)
		assert.Equal(t, ":8080", cfg.HTTPAddr)
		assert.Empty(t, cfg.walletKeys())
	})

	t.Run("dotenv file", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(configDirPathEnv, dir)
		env := "SIGNET_CACHE_BACKEND=memory\nSIGNET_WALLET_KEYS= 0xaa , ,0xbb\nSIGNET_WALLET_CHAIN_ID=137\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))
		t.Cleanup(func() {
			os.Unsetenv("SIGNET_CACHE_BACKEND")
			os.Unsetenv("SIGNET_WALLET_KEYS")
			os.Unsetenv("SIGNET_WALLET_CHAIN_ID")
		})

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, CacheMemory, cfg.CacheBackend)
		assert.Equal(t, []string{"0xaa", "0xbb"}, cfg.walletKeys())
		assert.Equal(t, uint64(137), cfg.WalletChainID)
		assert.Empty(t, cfg.cacheDSN())
	})

	t.Run("environment wins over dotenv", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(configDirPathEnv, dir)
		t.Setenv("SIGNET_HTTP_ADDR", ":9999")
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SIGNET_HTTP_ADDR=:1111\n"), 0o600))

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, ":9999", cfg.HTTPAddr)
	})

	t.Run("invalid values", func(t *testing.T) {
		tcs := []struct {
			name string
			env  map[string]string
		}{
			{name: "cache backend", env: map[string]string{"SIGNET_CACHE_BACKEND": "etcd"}},
			{name: "postgres without dsn", env: map[string]string{"SIGNET_CACHE_BACKEND": "postgres"}},
			{name: "events", env: map[string]string{"SIGNET_EVENTS": "kafka"}},
			{name: "trace exporter", env: map[string]string{"SIGNET_TRACE_EXPORTER": "jaeger"}},
		}

		for _, tc := range tcs {
			t.Run(tc.name, func(t *testing.T) {
				t.Setenv(configDirPathEnv, t.TempDir())
				for k, v := range tc.env {
					t.Setenv(k, v)
				}

				_, err := LoadConfig()
				assert.Error(t, err)
			})
		}
	})
}
