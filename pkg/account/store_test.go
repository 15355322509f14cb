package account

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-emailchange/pkg/emailchange"
)

func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		store := newStore(t)

		user, err := store.CreateUser(ctx, CreateUserParams{Email: "alice@example.com", Name: "Alice"})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, user.ID)

		found, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", found.Email)
		assert.Equal(t, "Alice", found.Name)
	})

	t.Run("GetUnknownUser", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetUser(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("FindByEmailIgnoresCase", func(t *testing.T) {
		store := newStore(t)
		user, err := store.CreateUser(ctx, CreateUserParams{Email: "Bob@Example.com"})
		require.NoError(t, err)

		found, err := store.FindByEmail(ctx, "bob@example.COM")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)

		_, err = store.FindByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("DuplicateEmailRejected", func(t *testing.T) {
		store := newStore(t)
		_, err := store.CreateUser(ctx, CreateUserParams{Email: "carol@example.com"})
		require.NoError(t, err)

		_, err = store.CreateUser(ctx, CreateUserParams{Email: "CAROL@example.com"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("UpdateEmail", func(t *testing.T) {
		store := newStore(t)
		user, err := store.CreateUser(ctx, CreateUserParams{Email: "dave@example.com"})
		require.NoError(t, err)

		updated, err := store.UpdateEmail(ctx, user.ID, "dave@new.example.com")
		require.NoError(t, err)
		assert.Equal(t, "dave@new.example.com", updated.Email)

		_, err = store.FindByEmail(ctx, "dave@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)

		found, err := store.FindByEmail(ctx, "dave@new.example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("UpdateEmailToTakenAddress", func(t *testing.T) {
		store := newStore(t)
		erin, err := store.CreateUser(ctx, CreateUserParams{Email: "erin@example.com"})
		require.NoError(t, err)
		_, err = store.CreateUser(ctx, CreateUserParams{Email: "frank@example.com"})
		require.NoError(t, err)

		_, err = store.UpdateEmail(ctx, erin.ID, "frank@example.com")
		assert.ErrorIs(t, err, ErrEmailTaken)

		found, err := store.GetUser(ctx, erin.ID)
		require.NoError(t, err)
		assert.Equal(t, "erin@example.com", found.Email)
	})

	t.Run("UpdateUnknownUser", func(t *testing.T) {
		store := newStore(t)

		_, err := store.UpdateEmail(ctx, uuid.New(), "ghost@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("EmailInUse", func(t *testing.T) {
		store := newStore(t)
		user, err := store.CreateUser(ctx, CreateUserParams{Email: "gina@example.com"})
		require.NoError(t, err)

		inUse, err := EmailInUse(ctx, store, "gina@example.com", uuid.New())
		require.NoError(t, err)
		assert.True(t, inUse)

		inUse, err = EmailInUse(ctx, store, "gina@example.com", user.ID)
		require.NoError(t, err)
		assert.False(t, inUse, "a user's own address is not in use by someone else")

		inUse, err = EmailInUse(ctx, store, "free@example.com", user.ID)
		require.NoError(t, err)
		assert.False(t, inUse)
	})
}

func TestInMemoryStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		return NewInMemoryStore()
	})
}

func TestFileStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		store, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		return store
	})

	t.Run("Persistence", func(t *testing.T) {
		ctx := context.Background()
		dir := t.TempDir()

		store, err := NewFileStore(dir)
		require.NoError(t, err)
		user, err := store.CreateUser(ctx, CreateUserParams{Email: "hank@example.com"})
		require.NoError(t, err)
		_, err = store.UpdateEmail(ctx, user.ID, "hank@new.example.com")
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(dir, usersDataFile))

		reopened, err := NewFileStore(dir)
		require.NoError(t, err)
		found, err := reopened.FindByEmail(ctx, "hank@new.example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, usersDataFile), nil, 0644))

		_, err := NewFileStore(dir)
		assert.NoError(t, err)
	})
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	user, err := store.CreateUser(ctx, CreateUserParams{Email: "ivy@example.com"})
	require.NoError(t, err)

	lookup := NewLookup(store)

	t.Run("ResolvesUser", func(t *testing.T) {
		identifier := emailchange.AccountIdentifier(&user)
		assert.Equal(t, "user::"+user.ID.String(), identifier)

		found, err := lookup.FindAccount(ctx, identifier)
		require.NoError(t, err)
		assert.Equal(t, "ivy@example.com", found.GetEmail())
	})

	t.Run("ReturnsCopy", func(t *testing.T) {
		found, err := lookup.FindAccount(ctx, "user::"+user.ID.String())
		require.NoError(t, err)
		found.SetEmail("changed@example.com")

		stored, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "ivy@example.com", stored.Email)
	})

	t.Run("NotFound", func(t *testing.T) {
		for _, identifier := range []string{
			"user::" + uuid.NewString(),
			"admin::" + user.ID.String(),
			"user::not-a-uuid",
			"garbage",
		} {
			_, err := lookup.FindAccount(ctx, identifier)
			assert.ErrorIs(t, err, emailchange.ErrAccountNotFound, identifier)
		}
	})
}

func TestNewStore(t *testing.T) {
	store, err := NewStore("inmem", StoreConfig{})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryStore{}, store)

	store, err = NewStore("file", StoreConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	_, err = NewStore("file", StoreConfig{})
	assert.Error(t, err)

	_, err = NewStore("postgres", StoreConfig{})
	assert.Error(t, err)

	_, err = NewStore("mongo", StoreConfig{})
	assert.Error(t, err)
}
