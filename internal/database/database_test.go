package database

import (
	"testing"

	"appraisal_go_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseNameFromURI(t *testing.T) {
	assert.Equal(t, "research-app", DatabaseNameFromURI("mongodb://localhost:27017/research-app"))
	assert.Equal(t, "faculty", DatabaseNameFromURI("mongodb+srv://u:p@cluster.example.net/faculty?retryWrites=true"))
	assert.Equal(t, defaultMongoDatabase, DatabaseNameFromURI("mongodb://localhost:27017"))
	assert.Equal(t, defaultMongoDatabase, DatabaseNameFromURI("://bad"))
}

func TestInitDB(t *testing.T) {
	db, err := InitDB("sqlite", "file:dbtest?mode=memory&cache=shared")
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable(&models.User{}))
	assert.True(t, db.Migrator().HasTable(&models.Paper{}))
	assert.True(t, db.Migrator().HasIndex(&models.User{}, "Email"))

	_, err = InitDB("oracle", "")
	assert.Error(t, err)
}
