package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, DefaultAllowedOrigins, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5, cfg.Game.PadCount)
	assert.Equal(t, 2, cfg.Game.StartingPosition)
	assert.Equal(t, 180*time.Second, cfg.Game.TimePerFloor)
	assert.Equal(t, 10, cfg.Game.DecoherenceSeconds)
	assert.Equal(t, 3, cfg.Game.CollapseDelaySeconds)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  http_address: ":9090"
database:
  postgres:
    host: db.internal
    port: 6543
game:
  pad_count: 7
  time_per_floor: 90s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("QQ_AUTH_JWT_SECRET", "from-env")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPAddress)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, 6543, cfg.Database.Postgres.Port)
	assert.Equal(t, 7, cfg.Game.PadCount)
	assert.Equal(t, 90*time.Second, cfg.Game.TimePerFloor)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestGameConfig_TowerConfig(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	tc, err := cfg.Game.TowerConfig()
	require.NoError(t, err)
	assert.Equal(t, 180, tc.TimePerFloorTicks)
	assert.Equal(t, 10, tc.DecoherenceTicks)
	assert.Equal(t, 3, tc.CollapseDelayTicks)
	assert.Len(t, tc.Levels, 5)

	dir := t.TempDir()
	pack := filepath.Join(dir, "floors.yaml")
	require.NoError(t, os.WriteFile(pack, []byte("floors:\n  - required: [0, 1]\n    description: two\n"), 0o600))
	game := cfg.Game
	game.LevelsFile = pack
	tc, err = game.TowerConfig()
	require.NoError(t, err)
	require.Len(t, tc.Levels, 1)
	assert.Equal(t, []int{0, 1}, tc.Levels[0].Required)

	game.StartingPosition = 9
	_, err = game.TowerConfig()
	assert.Error(t, err)

	game.LevelsFile = filepath.Join(dir, "missing.yaml")
	_, err = game.TowerConfig()
	assert.Error(t, err)
}
