package database

import (
	"testing"

	"truthscan/internal/config"
	"truthscan/internal/models"
	"truthscan/internal/testsupport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "url wins",
			cfg:  config.DatabaseConfig{URL: "postgres://u:p@db/x", Host: "ignored"},
			want: "postgres://u:p@db/x",
		},
		{
			name: "no password",
			cfg:  config.DatabaseConfig{Host: "localhost", Port: "5432", User: "postgres", DBName: "truthscan", SSLMode: "disable"},
			want: "host=localhost port=5432 user=postgres dbname=truthscan sslmode=disable",
		},
		{
			name: "with password",
			cfg:  config.DatabaseConfig{Host: "db", Port: "6543", User: "app", Password: "s3cret", DBName: "scans", SSLMode: "require"},
			want: "host=db port=6543 user=app password=s3cret dbname=scans sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DSN(tt.cfg))
		})
	}
}

func TestMigrateCreatesTables(t *testing.T) {
	db := testsupport.OpenDB(t, false)

	require.NoError(t, Migrate(db))
	for _, model := range models.AllModels() {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.False(t, IsPostgres(db))
}

func TestMigrateWithoutConnection(t *testing.T) {
	assert.Error(t, Migrate(nil))
	assert.NoError(t, Close(nil))
}
