package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSetAndKeys(t *testing.T) {
	m := NewManager()
	m.Set("name", "webpool")
	m.Set("workers", float64(4))
	m.Set("queue", "128")
	m.Set("name", "webpool-2")

	assert.ElementsMatch(t, []string{"name", "workers", "queue"}, m.Keys())

	var target struct {
		Name    string
		Workers int
		Queue   int
	}
	require.NoError(t, m.Unmarshal("", &target))
	assert.Equal(t, "webpool-2", target.Name)
	assert.Equal(t, 4, target.Workers)
	assert.Equal(t, 128, target.Queue)
}

func TestManagerLoadFromEnviron(t *testing.T) {
	m := NewManager()
	m.LoadFromEnviron("WEBPOOL", []string{
		"WEBPOOL_READ_TIMEOUT=5",
		"WEBPOOL_=ignored",
		"PATH=/usr/bin",
		"malformed",
	})

	assert.ElementsMatch(t, []string{"read_timeout"}, m.Keys())

	var target struct {
		ReadTimeout time.Duration `config:"read_timeout"`
	}
	require.NoError(t, m.Unmarshal("", &target))
	assert.Equal(t, 5*time.Second, target.ReadTimeout)
}

func TestManagerLoadFromEnv(t *testing.T) {
	t.Setenv("WEBPOOL_SERVER_NAME", "env-name")

	m := NewManager()
	m.LoadFromEnv("WEBPOOL")
	assert.Contains(t, m.Keys(), "server_name")

	var target struct {
		Name string `config:"server_name"`
	}
	require.NoError(t, m.Unmarshal("", &target))
	assert.Equal(t, "env-name", target.Name)
}

func TestManagerLoadFromJSONNested(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.LoadFromJSON(writeJSON(t, `{"server": {"port": 9000, "name": "nested"}}`)))

	assert.ElementsMatch(t, []string{"server.port", "server.name"}, m.Keys())

	var target struct {
		Port int
		Name string
	}
	require.NoError(t, m.Unmarshal("server", &target))
	assert.Equal(t, 9000, target.Port)
	assert.Equal(t, "nested", target.Name)
}

func TestManagerUnmarshal(t *testing.T) {
	m := NewManager()
	m.Set("delay", "1.5")
	m.Set("timeout", "250ms")
	m.Set("enabled", "true")
	m.Set("ratio", 0.5)
	m.Set("skipped", "x")

	var target struct {
		Delay   time.Duration `config:"delay"`
		Timeout time.Duration `config:"timeout"`
		Enabled bool          `config:"enabled"`
		Ratio   float64       `config:"ratio"`
		Skipped string        `config:"-"`
		hidden  int
	}
	require.NoError(t, m.Unmarshal("", &target))

	assert.Equal(t, 1500*time.Millisecond, target.Delay)
	assert.Equal(t, 250*time.Millisecond, target.Timeout)
	assert.True(t, target.Enabled)
	assert.Equal(t, 0.5, target.Ratio)
	assert.Empty(t, target.Skipped)
	assert.Zero(t, target.hidden)
}

func TestManagerUnmarshalErrors(t *testing.T) {
	m := NewManager()

	var s struct{ Port int }
	assert.Error(t, m.Unmarshal("", s))

	n := 3
	assert.Error(t, m.Unmarshal("", &n))

	m.Set("port", 1.5)
	assert.Error(t, m.Unmarshal("", &s))

	m.Set("port", true)
	assert.Error(t, m.Unmarshal("", &s))

	var b struct{ On bool }
	m.Set("on", "maybe")
	assert.Error(t, m.Unmarshal("", &b))

	var d struct{ Wait time.Duration }
	m.Set("wait", "soon")
	assert.Error(t, m.Unmarshal("", &d))
}
