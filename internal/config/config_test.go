package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLLMConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
		check   func(t *testing.T, c *LLMConfig)
	}{
		{
			name: "key pool is split on commas",
			env:  map[string]string{"LILY_LLM_API_KEYS": "k1,k2,k3"},
			check: func(t *testing.T, c *LLMConfig) {
				assert.Equal(t, []string{"k1", "k2", "k3"}, c.APIKeys)
				assert.Equal(t, ProviderOpenAI, c.Provider)
				assert.Equal(t, "gpt-4o-mini", c.Model)
			},
		},
		{
			name:    "hosted provider without keys",
			env:     map[string]string{"LILY_LLM_PROVIDER": "anthropic"},
			wantErr: "at least one key",
		},
		{
			name:    "custom provider without base url",
			env:     map[string]string{"LILY_LLM_PROVIDER": "custom"},
			wantErr: "LILY_LLM_BASE_URL",
		},
		{
			name:    "unknown provider",
			env:     map[string]string{"LILY_LLM_PROVIDER": "nope"},
			wantErr: "unknown llm provider",
		},
		{
			name: "ollama needs no keys",
			env:  map[string]string{"LILY_LLM_PROVIDER": "ollama"},
			check: func(t *testing.T, c *LLMConfig) {
				assert.Empty(t, c.APIKeys)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LILY_LLM_PROVIDER", "")
			t.Setenv("LILY_LLM_API_KEYS", "")
			os.Unsetenv("LILY_LLM_PROVIDER")
			os.Unsetenv("LILY_LLM_API_KEYS")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			c, err := LoadLLMConfig()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestLoadMemoryConfig_Defaults(t *testing.T) {
	c, err := LoadMemoryConfig()
	require.NoError(t, err)

	assert.InDelta(t, 0.75, c.RelevanceThreshold, 1e-6)
	assert.InDelta(t, 0.92, c.DuplicateThreshold, 1e-6)
	assert.Equal(t, 3, c.PrefetchLimit)
}

func TestMemoryConfig_Validate(t *testing.T) {
	c := &MemoryConfig{RelevanceThreshold: 0.9, DuplicateThreshold: 0.8, PrefetchLimit: 3}
	assert.Error(t, c.Validate())
}

func TestLoadProfiles(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		p, err := LoadProfiles(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultProfilesConfig(), p)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "profiles.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
chatbox:
  persona: "You are a pirate."
channel:
  max_tool_calls: 4
  allowlist: [get_current_time]
`), 0o600))

		p, err := LoadProfiles(path)
		require.NoError(t, err)
		assert.Equal(t, "You are a pirate.", p.Chatbox.Persona)
		assert.Equal(t, 5, p.Chatbox.MaxToolCalls)
		assert.Equal(t, 4, p.Channel.MaxToolCalls)
		assert.Equal(t, []string{"get_current_time"}, p.Channel.Allowlist)
		assert.Equal(t, DefaultMasterPersona, p.Channel.MasterPersona)
	})

	t.Run("budget out of range", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "profiles.yaml")
		require.NoError(t, os.WriteFile(path, []byte("chatbox:\n  max_tool_calls: 0\n"), 0o600))

		_, err := LoadProfiles(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_tool_calls")
	})
}

func TestResolveRuntimePath(t *testing.T) {
	home, _ := os.UserHomeDir()

	assert.Equal(t, filepath.Join(home, ".lily"), resolveRuntimePath(""))
	assert.Equal(t, "/srv/lily", resolveRuntimePath("/srv/lily"))
}
