package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainbow-me/rpc-interceptors/common/config"
	"github.com/rainbow-me/rpc-interceptors/common/env"
	"github.com/rainbow-me/rpc-interceptors/common/test"
)

type testConfig struct {
	Upstream struct {
		HostPort string `mapstructure:"hostPort"`
		Token    string `mapstructure:"token"`
	} `mapstructure:"upstream"`
}

// writeConfig creates <tmp>/<dir>/<appEnv>.yaml and returns the temp root.
func writeConfig(t *testing.T, dir, appEnv, content string) string {
	t.Helper()
	root := t.TempDir()

	configPath := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(configPath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configPath, appEnv+".yaml"), []byte(content), 0o600))

	return root
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name      string
		appEnv    string
		content   string
		dynamic   string
		envVars   map[string]string
		expectErr bool
		hostPort  string
		token     string
	}{
		{
			name:     "plain values",
			appEnv:   "development",
			content:  "upstream:\n  hostPort: \"localhost:7233\"\n",
			hostPort: "localhost:7233",
		},
		{
			name:     "env placeholder resolved",
			appEnv:   "staging",
			content:  "upstream:\n  hostPort: \"localhost:1\"\n  token: \"env://UPSTREAM_SECRET\"\n",
			envVars:  map[string]string{"UPSTREAM_SECRET": "s3cret"},
			hostPort: "localhost:1",
			token:    "s3cret",
		},
		{
			name:     "missing placeholder becomes empty",
			appEnv:   "staging",
			content:  "upstream:\n  hostPort: \"localhost:1\"\n  token: \"env://NOT_SET_ANYWHERE\"\n",
			hostPort: "localhost:1",
		},
		{
			name:     "environment override",
			appEnv:   "production",
			content:  "upstream:\n  hostPort: \"localhost:1\"\n",
			envVars:  map[string]string{"UPSTREAM_HOSTPORT": "remote:2"},
			hostPort: "remote:2",
		},
		{
			name:     "dynamic dir",
			appEnv:   "development",
			dynamic:  "worker",
			content:  "upstream:\n  hostPort: \"worker:1\"\n",
			hostPort: "worker:1",
		},
		{
			name:      "invalid environment",
			appEnv:    "moon",
			content:   "upstream: {}\n",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join("cmd", "config", tt.dynamic)
			root := writeConfig(t, dir, tt.appEnv, tt.content)

			t.Setenv(env.ApplicationEnvKey, tt.appEnv)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			opts := []config.ReadConfigOption{config.WithAbsolutePath(filepath.Join(root, "cmd", "config"))}
			if tt.dynamic != "" {
				opts = append(opts, config.WithDynamicDir(tt.dynamic))
			}

			var conf testConfig
			err := config.LoadConfig(&conf, test.NewLogger(t), opts...)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hostPort, conf.Upstream.HostPort)
			assert.Equal(t, tt.token, conf.Upstream.Token)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv(env.ApplicationEnvKey, "development")

	var conf testConfig
	err := config.LoadConfig(&conf, test.NewLogger(t), config.WithAbsolutePath(t.TempDir()))
	require.Error(t, err)
}

func TestLoadConfig_ServiceDefaults(t *testing.T) {
	root := writeConfig(t, "cfg", "test", "name: greeter\nauth:\n  minTokenLength: 12\n")
	t.Setenv(env.ApplicationEnvKey, "test")

	var conf config.ServiceConfig
	err := config.LoadConfig(&conf, test.NewLogger(t),
		config.WithAbsolutePath(filepath.Join(root, "cfg")),
		config.WithDefaults(config.ServiceDefaults()),
	)
	require.NoError(t, err)

	assert.Equal(t, "greeter", conf.Name)
	assert.Equal(t, 12, conf.Auth.MinTokenLength)
	assert.Equal(t, "valid_", conf.Auth.ValidPrefix)
	assert.Equal(t, 500, conf.Logging.MaxPayloadLength)
	assert.Equal(t, int64(1_000_000), conf.Streaming.ChunkCeiling)
	assert.Equal(t, "end", conf.Streaming.EndSentinel)
	assert.Equal(t, 500*time.Millisecond, conf.Streaming.StreamInterval)
	assert.Equal(t, ":50051", conf.Server.GRPCAddress)
}
