package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mautops/membership-gin/internal/config"
	"github.com/mautops/membership-gin/internal/database"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range GetRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"server", "migrate", "create-admin"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, GetRootCmd().PersistentFlags().Lookup("config"))
}

func TestMigrateAndCreateAdmin(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "membership.db")
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
database:
  driver: sqlite
  path: `+dbPath+`
auth:
  bcrypt_cost: 4
log:
  level: error
  output: stdout
`), 0o644))

	root := GetRootCmd()
	root.SetArgs([]string{"migrate", "--config", configPath})
	require.NoError(t, root.Execute())

	root.SetArgs([]string{"create-admin", "--config", configPath,
		"--username", "root", "--email", "root@example.com", "--password", "super-secret"})
	require.NoError(t, root.Execute())

	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: dbPath})
	require.NoError(t, err)
	defer database.Close(db)

	var admin model.AdminModel
	require.NoError(t, db.Where("username = ?", "root").First(&admin).Error)
	assert.Equal(t, model.RoleSuperAdmin, admin.Role)
	assert.NotEqual(t, "super-secret", admin.Password)

	// 重复创建失败
	root.SetArgs([]string{"create-admin", "--config", configPath,
		"--username", "root", "--email", "root@example.com", "--password", "super-secret"})
	assert.Error(t, root.Execute())
}
