package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"newsletter-backend/config"
	"newsletter-backend/database"
	"newsletter-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", path)
	t.Setenv("APP_JWT_SECRET", "cli-secret")
	t.Setenv("LOG_LEVEL", "error")
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSubcommandsAreRegistered(t *testing.T) {
	root := NewRootCommand()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "worker", "migrate", "admin"} {
		assert.True(t, names[want], "missing %s", want)
	}

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("with-worker"))
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestMigrateThenCreateAdmin(t *testing.T) {
	path := sqliteEnv(t)

	_, err := execute(t, "migrate")
	require.NoError(t, err)

	out, err := execute(t, "admin", "create", "--username", "admin", "--password", "s3cret")
	require.NoError(t, err)
	userID := strings.TrimSpace(out)
	require.NotEmpty(t, userID)

	db, err := database.Open(config.DatabaseSettings{Driver: "sqlite", DSN: path}, nil)
	require.NoError(t, err)
	defer database.Close(db)

	var user models.User
	require.NoError(t, db.Where("username = ?", "admin").Take(&user).Error)
	assert.Equal(t, userID, user.Id)
	assert.NoError(t, user.ComparePassword("s3cret"))
}

func TestAdminCreateRequiresFlags(t *testing.T) {
	sqliteEnv(t)
	_, err := execute(t, "admin", "create", "--username", "admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--password")
}

func TestWorkerRequiresEmailSettings(t *testing.T) {
	sqliteEnv(t)
	_, err := execute(t, "worker")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email.base_url")
}

func TestInvalidConfigurationFails(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("DATABASE_DRIVER", "oracle")
	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load configuration")
}
