package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion(t *testing.T) {
	t.Run("Should return the API version", func(t *testing.T) {
		assert.Equal(t, "v0", Version())
	})
}

func TestBase(t *testing.T) {
	t.Run("Should return versioned API base path", func(t *testing.T) {
		assert.Equal(t, "/api/v0", Base())
	})
}

func TestResourcePaths(t *testing.T) {
	t.Run("Should build task paths under the base", func(t *testing.T) {
		assert.Equal(t, "/api/v0/tasks", Tasks())
		assert.Equal(t, "/api/v0/tasks/delete-with-files", DeleteWithFiles())
		assert.Equal(t, "/api/v0/streams/tasks", Streams())
	})

	t.Run("Should return the versioned health path", func(t *testing.T) {
		assert.Equal(t, "/api/v0/health", HealthVersioned())
	})
}
