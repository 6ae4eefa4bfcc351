package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/libgodatachannel/pkg/pc"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers)
	assert.Equal(t, "default", cfg.Room)
	assert.Equal(t, RoleOffer, cfg.Role)
	assert.Equal(t, "data", cfg.Label)
	assert.Equal(t, "ws://localhost:8080/ws/default", cfg.RoomURL())

	lvl, err := cfg.NativeLevel()
	require.NoError(t, err)
	assert.Equal(t, pc.LogWarning, lvl)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
native_log_level: verbose
ice_servers:
  - stun:stun.example.com:3478
  - turn:turn.example.com:3478
ice_username: alice
ice_credential: secret
port_range_begin: 40000
port_range_end: 40100
room: lobby
role: answer
label: chat
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.Equal(t, "lobby", cfg.Room)
	assert.Equal(t, RoleAnswer, cfg.Role)
	assert.Equal(t, "chat", cfg.Label)

	lvl, err := cfg.NativeLevel()
	require.NoError(t, err)
	assert.Equal(t, pc.LogVerbose, lvl)

	pcfg := cfg.PeerConfiguration()
	require.Len(t, pcfg.ICEServers, 2)
	assert.Empty(t, pcfg.ICEServers[0].Username, "stun servers carry no credentials")
	assert.Equal(t, "alice", pcfg.ICEServers[1].Username)
	assert.Equal(t, "secret", pcfg.ICEServers[1].Credential)
	assert.Equal(t, uint16(40000), pcfg.PortRangeBegin)
	assert.Equal(t, uint16(40100), pcfg.PortRangeEnd)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "room: lobby\n")
	t.Setenv("LIBDC_ROOM", "from-env")
	t.Setenv("LIBDC_LOG_LEVEL", "warn")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Room)
	assert.Equal(t, zerolog.WarnLevel, cfg.Level())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Room)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad role", "role: observer\n"},
		{"bad log level", "log_level: loud\n"},
		{"bad native level", "native_log_level: chatty\n"},
		{"inverted ports", "port_range_begin: 5000\nport_range_end: 4000\n"},
		{"empty room", "room: \"\"\n"},
		{"malformed yaml", "room: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestPeerConfigurationSkipsBlankServers(t *testing.T) {
	cfg := &Config{ICEServers: []string{" ", "stun:stun.example.com"}, MaxMessageSize: 1024}
	pcfg := cfg.PeerConfiguration()
	require.Len(t, pcfg.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.example.com"}, pcfg.ICEServers[0].URLs)
	assert.Equal(t, 1024, pcfg.MaxMessageSize)
}
