package env

import (
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Provider string        `env:"X_PROVIDER" envDefault:"openai"`
	Keys     []string      `env:"X_KEYS" envSeparator:","`
	Master   int64         `env:"X_MASTER,required"`
	Enabled  bool          `env:"X_ENABLED"`
	Timeout  time.Duration `env:"X_TIMEOUT"`
	Persona  string        `env:"X_PERSONA"`
	Ratio    float32       `env:"X_RATIO"`
	Skipped  string
}

func TestMarshalEnv(t *testing.T) {
	out, err := MarshalEnv(&sample{
		Provider: "anthropic",
		Keys:     []string{"k1", "k2"},
		Master:   42,
		Enabled:  true,
		Timeout:  15 * time.Second,
		Persona:  "You are Lily",
		Ratio:    0.75,
		Skipped:  "x",
	})
	require.NoError(t, err)

	parsed, err := godotenv.Unmarshal(out)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"X_PROVIDER": "anthropic",
		"X_KEYS":     "k1,k2",
		"X_MASTER":   "42",
		"X_ENABLED":  "true",
		"X_TIMEOUT":  "15s",
		"X_PERSONA":  "You are Lily",
		"X_RATIO":    "0.75",
	}, parsed)
}

func TestMarshalEnv_SkipsZeroValues(t *testing.T) {
	out, err := MarshalEnv(&sample{Master: 1})
	require.NoError(t, err)
	assert.Equal(t, "X_MASTER=1\n", out)
}

func TestMarshalEnv_MultipleStructs(t *testing.T) {
	out, err := MarshalEnv(&sample{Master: 1}, &sample{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestMarshalEnv_RejectsNonStruct(t *testing.T) {
	_, err := MarshalEnv(sample{})
	assert.Error(t, err)
}
