package emailchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmailChangeRepository(t *testing.T) {
	t.Run("InMem", func(t *testing.T) {
		for _, kind := range []string{"inmem", "memory"} {
			repo, err := NewEmailChangeRepository(kind, RepositoryConfig{})
			require.NoError(t, err)
			assert.IsType(t, &InMemEmailChangeRepository{}, repo)
		}
	})

	t.Run("File", func(t *testing.T) {
		repo, err := NewEmailChangeRepository("file", RepositoryConfig{DataDir: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &FileEmailChangeRepository{}, repo)

		_, err = NewEmailChangeRepository("file", RepositoryConfig{})
		assert.Error(t, err)
	})

	t.Run("MissingClients", func(t *testing.T) {
		_, err := NewEmailChangeRepository("postgres", RepositoryConfig{})
		assert.Error(t, err)
		_, err = NewEmailChangeRepository("redis", RepositoryConfig{})
		assert.Error(t, err)
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := NewEmailChangeRepository("mongo", RepositoryConfig{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported persistence type: mongo")
	})
}
