package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requiredEnv = map[string]string{
	"VOLC_ACCESS_KEY":     "test-ak",
	"VOLC_SECRET_KEY":     "test-sk",
	"KNOWLEDGE_BASE_NAME": "m5_docs",
}

// unsetEnv clears keys for the duration of the test and restores them afterwards
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	for key, value := range requiredEnv {
		t.Setenv(key, value)
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	unsetEnv(t, FileEnv, "KNOWLEDGE_BASE_DOMAIN", "KNOWLEDGE_BASE_SCHEME", "KNOWLEDGE_BASE_PROJECT",
		"VOLC_REGION", "VOLC_SERVICE", "KNOWLEDGE_BASE_REQUEST_TIMEOUT", "MCP_SERVER_PORT",
		"MCP_ALLOWED_IPS", "MCP_IP_AUTH_ENABLED", "LOG_ENV", "MCP_TOOL_PREFIX")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "api-knowledgebase.mlp.cn-beijing.volces.com", cfg.KnowledgeBaseDomain)
	assert.Equal(t, "http", cfg.KnowledgeBaseScheme)
	assert.Equal(t, "default", cfg.KnowledgeBaseProject)
	assert.Equal(t, "cn-north-1", cfg.VolcRegion)
	assert.Equal(t, "air", cfg.VolcService)
	assert.Equal(t, 10*time.Second, cfg.KnowledgeBaseRequestTimeout)
	assert.Equal(t, "doubao-seed-rerank", cfg.KnowledgeBaseRerankModel)
	assert.Equal(t, 5058, cfg.MCPServerPort)
	assert.Equal(t, []string{"127.0.0.1", "::1"}, cfg.MCPAllowedIPs)
	assert.Equal(t, "http://api-knowledgebase.mlp.cn-beijing.volces.com", cfg.KnowledgeBaseURL())
	assert.Equal(t, "0.0.0.0:5058", cfg.ServerAddress())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	unsetEnv(t, FileEnv)
	t.Setenv("KNOWLEDGE_BASE_SCHEME", "https")
	t.Setenv("KNOWLEDGE_BASE_REQUEST_TIMEOUT", "3s")
	t.Setenv("MCP_SERVER_PORT", "8080")
	t.Setenv("MCP_IP_AUTH_ENABLED", "true")
	t.Setenv("MCP_ALLOWED_IPS", " 10.0.0.1 , 192.168.0.0/16 ,,")
	t.Setenv("LOG_ENV", "dev")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https", cfg.KnowledgeBaseScheme)
	assert.Equal(t, 3*time.Second, cfg.KnowledgeBaseRequestTimeout)
	assert.Equal(t, 8080, cfg.MCPServerPort)
	assert.True(t, cfg.MCPIPAuthEnabled)
	assert.Equal(t, []string{"10.0.0.1", "192.168.0.0/16"}, cfg.MCPAllowedIPs)
	assert.Equal(t, "dev", cfg.LogEnv)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "invalid scheme",
			env:     map[string]string{"KNOWLEDGE_BASE_SCHEME": "ftp"},
			wantErr: "KNOWLEDGE_BASE_SCHEME",
		},
		{
			name:    "invalid domain",
			env:     map[string]string{"KNOWLEDGE_BASE_DOMAIN": "bad domain"},
			wantErr: "KNOWLEDGE_BASE_DOMAIN",
		},
		{
			name:    "non positive timeout",
			env:     map[string]string{"KNOWLEDGE_BASE_REQUEST_TIMEOUT": "0s"},
			wantErr: "KNOWLEDGE_BASE_REQUEST_TIMEOUT",
		},
		{
			name:    "port out of range",
			env:     map[string]string{"MCP_SERVER_PORT": "70000"},
			wantErr: "MCP_SERVER_PORT",
		},
		{
			name:    "invalid allowed ip",
			env:     map[string]string{"MCP_IP_AUTH_ENABLED": "true", "MCP_ALLOWED_IPS": "not-an-ip"},
			wantErr: "MCP_ALLOWED_IPS",
		},
		{
			name:    "unknown log env",
			env:     map[string]string{"LOG_ENV": "staging"},
			wantErr: "LOG_ENV",
		},
		{
			name:    "invalid tool prefix",
			env:     map[string]string{"MCP_TOOL_PREFIX": "m5 doc"},
			wantErr: "MCP_TOOL_PREFIX",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			unsetEnv(t, FileEnv)
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	setRequired(t)
	unsetEnv(t, FileEnv, "VOLC_SECRET_KEY")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
  "volcengine": {
    "ak": "file-ak",
    "sk": "file-sk",
    "knowledge_base_domain": "kb.example.com",
    "request_timeout": 15,
    "knowledge_base_name": "file_kb",
    "project": "m5",
    "region": "cn-beijing",
    "service": "air"
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Run("fills unset variables", func(t *testing.T) {
		unsetEnv(t, FileEnv, "VOLC_ACCESS_KEY", "VOLC_SECRET_KEY", "KNOWLEDGE_BASE_DOMAIN",
			"KNOWLEDGE_BASE_NAME", "KNOWLEDGE_BASE_PROJECT", "VOLC_REGION", "VOLC_SERVICE",
			"KNOWLEDGE_BASE_REQUEST_TIMEOUT")

		cfg, err := LoadWithFile(path)
		require.NoError(t, err)

		assert.Equal(t, "file-ak", cfg.VolcAccessKey)
		assert.Equal(t, "file-sk", cfg.VolcSecretKey)
		assert.Equal(t, "kb.example.com", cfg.KnowledgeBaseDomain)
		assert.Equal(t, "file_kb", cfg.KnowledgeBaseName)
		assert.Equal(t, "m5", cfg.KnowledgeBaseProject)
		assert.Equal(t, "cn-beijing", cfg.VolcRegion)
		assert.Equal(t, 15*time.Second, cfg.KnowledgeBaseRequestTimeout)
	})

	t.Run("environment wins over file", func(t *testing.T) {
		unsetEnv(t, "KNOWLEDGE_BASE_DOMAIN", "KNOWLEDGE_BASE_PROJECT", "VOLC_REGION", "VOLC_SERVICE",
			"KNOWLEDGE_BASE_REQUEST_TIMEOUT")
		setRequired(t)
		t.Setenv(FileEnv, path)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-ak", cfg.VolcAccessKey)
		assert.Equal(t, "m5_docs", cfg.KnowledgeBaseName)
		assert.Equal(t, "kb.example.com", cfg.KnowledgeBaseDomain)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadWithFile(filepath.Join(dir, "absent.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})
}

func TestFormatTimeout(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{10, "10s"},
		{1.5, "1.5s"},
		{"20", "20s"},
		{"250ms", "250ms"},
		{" ", ""},
	}
	for _, tt := range tests {
		got, err := formatTimeout(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := formatTimeout([]string{"x"})
	require.Error(t, err)
}

func TestLoadUsageStatsWithoutCredentials(t *testing.T) {
	unsetEnv(t, FileEnv, "VOLC_ACCESS_KEY", "VOLC_SECRET_KEY", "KNOWLEDGE_BASE_NAME",
		"USAGE_STATS_ENABLED", "USAGE_STATS_PATH")

	_, err := Load()
	require.Error(t, err)

	stats, err := LoadUsageStats("")
	require.NoError(t, err)
	assert.True(t, stats.Enabled)
	assert.Empty(t, stats.Path)

	path := filepath.Join(t.TempDir(), "usage.db")
	t.Setenv("USAGE_STATS_ENABLED", "false")
	t.Setenv("USAGE_STATS_PATH", path)

	stats, err = LoadUsageStats("")
	require.NoError(t, err)
	assert.False(t, stats.Enabled)
	assert.Equal(t, path, stats.Path)
}
