package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDescriptor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "connection.toml")
	contents := `
server = "irc.example.org"
port = 6697
tls = true
nickname = "alice"
channels = ["#go", "#rust"]
sasl_login = "alice"
sasl_password = "hunter2"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	desc, err := LoadDescriptor(path)
	require.NoError(t, err)

	assert.Equal(t, "irc.example.org", desc.Server)
	assert.Equal(t, 6697, desc.Port)
	assert.True(t, desc.TLS)
	assert.Equal(t, "alice", desc.Nickname)
	assert.Equal(t, []string{"#go", "#rust"}, desc.AutoJoin)
	assert.Equal(t, "alice", desc.SASLLogin)
	assert.Equal(t, "hunter2", desc.SASLPass)
}

func TestLoadDescriptorErrors(t *testing.T) {
	_, err := LoadDescriptor(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("server = ["), 0o644))
	_, err = LoadDescriptor(bad)
	assert.Error(t, err)
}

func TestResolveDescriptorDefaults(t *testing.T) {
	t.Run("plain port default", func(t *testing.T) {
		desc, err := resolveDescriptor("", "irc.example.org", 0, false, "alice", nil)
		require.NoError(t, err)
		assert.Equal(t, 6667, desc.Port)
		assert.Equal(t, "alice", desc.Username)
		assert.Equal(t, "alice", desc.Realname)
	})

	t.Run("tls port default", func(t *testing.T) {
		desc, err := resolveDescriptor("", "irc.example.org", 0, true, "alice", nil)
		require.NoError(t, err)
		assert.Equal(t, 6697, desc.Port)
	})

	t.Run("missing required fields", func(t *testing.T) {
		_, err := resolveDescriptor("", "", 0, false, "alice", nil)
		assert.Error(t, err)
		_, err = resolveDescriptor("", "irc.example.org", 0, false, "", nil)
		assert.Error(t, err)
	})

	t.Run("flags override config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "connection.toml")
		require.NoError(t, os.WriteFile(path, []byte("server = \"a.example.org\"\nnickname = \"alice\"\n"), 0o644))

		desc, err := resolveDescriptor(path, "b.example.org", 7000, false, "", []string{"#ops"})
		require.NoError(t, err)
		assert.Equal(t, "b.example.org", desc.Server)
		assert.Equal(t, 7000, desc.Port)
		assert.Equal(t, "alice", desc.Nickname)
		assert.Equal(t, []string{"#ops"}, desc.AutoJoin)
	})
}
