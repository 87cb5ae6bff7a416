package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	apperrors "github.com/johann/primevista/internal/errors"
	"github.com/johann/primevista/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*Storage, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "site.db")
	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Initialize(context.Background()))
	return s, path
}

func TestOpenRejectsMissingDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "site.db"), zerolog.Nop())
	require.Error(t, err)
	assert.True(t, apperrors.IsStorage(err))
}

func TestOpenRejectsReadOnlyDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { os.Chmod(dir, 0o700) })

	s, err := Open(filepath.Join(dir, "site.db"), zerolog.Nop())
	if err == nil {
		err = s.Initialize(context.Background())
		s.Close()
	}
	require.Error(t, err)
	assert.True(t, apperrors.IsStorage(err))
}

func TestReadyBeforeInitialize(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "site.db"), zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	err = s.Ready(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsStorage(err))
}

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, path := setupTestDB(t)

	created, err := s.Projects.Create(ctx, &model.Project{Title: "Harbour Bridge", Description: "Steel arch"})
	require.NoError(t, err)
	_, err = s.Subscribers.Create(ctx, &model.Subscriber{Email: "a@example.com"})
	require.NoError(t, err)

	require.NoError(t, s.Initialize(ctx))

	// A fresh handle on the same file behaves the same way.
	require.NoError(t, s.Close())
	reopened, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Initialize(ctx))

	got, err := reopened.Projects.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Harbour Bridge", got.Title)

	counts, err := reopened.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Counts{Projects: 1, Subscribers: 1}, counts)
}

func TestCreateThenGet(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestDB(t)

	t.Run("service", func(t *testing.T) {
		in := model.Service{Title: "Design", Description: "Concept to blueprint", Icon: "icons/design.svg"}
		created, err := s.Services.Create(ctx, &in)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := s.Services.Get(ctx, created.ID)
		require.NoError(t, err)
		in.ID = created.ID
		in.CreatedAt = created.CreatedAt
		assert.Equal(t, in, got)
	})

	t.Run("project", func(t *testing.T) {
		in := model.Project{Title: "Skyline Tower", Description: "Forty floors", Image: "uploads/a.jpg", Link: "https://example.com"}
		created, err := s.Projects.Create(ctx, &in)
		require.NoError(t, err)

		got, err := s.Projects.Get(ctx, created.ID)
		require.NoError(t, err)
		in.ID = created.ID
		in.CreatedAt = created.CreatedAt
		assert.Equal(t, in, got)
	})

	t.Run("client", func(t *testing.T) {
		in := model.Client{Name: "Rowan Hale", Designation: "CEO, Hale Homes", Quote: "On time and on budget."}
		created, err := s.Clients.Create(ctx, &in)
		require.NoError(t, err)

		got, err := s.Clients.Get(ctx, created.ID)
		require.NoError(t, err)
		in.ID = created.ID
		in.CreatedAt = created.CreatedAt
		assert.Equal(t, in, got)
	})

	t.Run("contact", func(t *testing.T) {
		in := model.ContactRequest{FullName: "Sam Reyes", Email: "sam@example.com", Mobile: "555-0100", City: "Austin"}
		created, err := s.Contacts.Create(ctx, &in)
		require.NoError(t, err)

		got, err := s.Contacts.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got)
		assert.Equal(t, "Sam Reyes", got.FullName)
	})
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestDB(t)

	_, err := s.Subscribers.Create(ctx, &model.Subscriber{Email: ""})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, apperrors.FieldErrors(err), "email")

	_, err = s.Projects.Create(ctx, &model.Project{Description: "no title"})
	require.Error(t, err)
	assert.Equal(t, map[string]string{"title": "Title is required."}, apperrors.FieldErrors(err))

	n, err := s.Projects.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMissingIDs(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestDB(t)

	type ops struct {
		get    func(int64) error
		update func(int64) error
		delete func(int64) error
	}
	collections := map[string]ops{
		"services": {
			get:    func(id int64) error { _, err := s.Services.Get(ctx, id); return err },
			update: func(id int64) error { _, err := s.Services.Update(ctx, id, &model.Service{Title: "t", Description: "d"}); return err },
			delete: func(id int64) error { _, err := s.Services.Delete(ctx, id); return err },
		},
		"projects": {
			get:    func(id int64) error { _, err := s.Projects.Get(ctx, id); return err },
			update: func(id int64) error { _, err := s.Projects.Update(ctx, id, &model.Project{Title: "t", Description: "d"}); return err },
			delete: func(id int64) error { _, err := s.Projects.Delete(ctx, id); return err },
		},
		"clients": {
			get:    func(id int64) error { _, err := s.Clients.Get(ctx, id); return err },
			update: func(id int64) error { _, err := s.Clients.Update(ctx, id, &model.Client{Name: "n", Quote: "q"}); return err },
			delete: func(id int64) error { _, err := s.Clients.Delete(ctx, id); return err },
		},
		"subscribers": {
			get:    func(id int64) error { _, err := s.Subscribers.Get(ctx, id); return err },
			update: func(id int64) error { _, err := s.Subscribers.Update(ctx, id, &model.Subscriber{Email: "a@example.com"}); return err },
			delete: func(id int64) error { _, err := s.Subscribers.Delete(ctx, id); return err },
		},
		"contacts": {
			get: func(id int64) error { _, err := s.Contacts.Get(ctx, id); return err },
			update: func(id int64) error {
				_, err := s.Contacts.Update(ctx, id, &model.ContactRequest{FullName: "n", Email: "a@example.com", Mobile: "1", City: "c"})
				return err
			},
			delete: func(id int64) error { _, err := s.Contacts.Delete(ctx, id); return err },
		},
	}

	for name, c := range collections {
		for _, id := range []int64{0, 1, 42, -3} {
			t.Run(fmt.Sprintf("%s/%d", name, id), func(t *testing.T) {
				err := c.get(id)
				assert.True(t, apperrors.IsNotFound(err), "get: %v", err)

				err = c.update(id)
				assert.True(t, apperrors.IsNotFound(err), "update: %v", err)

				err = c.delete(id)
				assert.True(t, apperrors.IsNotFound(err), "delete: %v", err)
			})
		}
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestDB(t)

	created, err := s.Clients.Create(ctx, &model.Client{Name: "Ada", Quote: "Great work"})
	require.NoError(t, err)

	updated, err := s.Clients.Update(ctx, created.ID, &model.Client{Name: "Ada Lovelace", Designation: "Analyst", Quote: "Great work"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Ada Lovelace", updated.Name)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt.Time))

	got, err := s.Clients.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	_, err = s.Clients.Update(ctx, created.ID, &model.Client{Name: "", Quote: "x"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestSubscribersAreImmutable(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestDB(t)

	sub, err := s.Subscribers.Create(ctx, &model.Subscriber{Email: "old@example.com"})
	require.NoError(t, err)

	_, err = s.Subscribers.Update(ctx, sub.ID, &model.Subscriber{Email: "new@example.com"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	got, err := s.Subscribers.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "old@example.com", got.Email)
}

func TestDuplicateSubscriberIsNoOp(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestDB(t)

	first, err := s.Subscribers.Create(ctx, &model.Subscriber{Email: "a@example.com"})
	require.NoError(t, err)

	second, inserted, err := s.Subscribers.CreateOrGet(ctx, &model.Subscriber{Email: "  A@Example.com "})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first, second)

	_, inserted, err = s.Subscribers.CreateOrGet(ctx, &model.Subscriber{Email: "b@example.com"})
	require.NoError(t, err)
	assert.True(t, inserted)

	all, err := s.Subscribers.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a@example.com", all[0].Email)
}

func TestIDsAreNotReused(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestDB(t)

	a, err := s.Services.Create(ctx, &model.Service{Title: "A", Description: "a"})
	require.NoError(t, err)
	b, err := s.Services.Create(ctx, &model.Service{Title: "B", Description: "b"})
	require.NoError(t, err)

	_, err = s.Services.Delete(ctx, b.ID)
	require.NoError(t, err)

	c, err := s.Services.Create(ctx, &model.Service{Title: "C", Description: "c"})
	require.NoError(t, err)
	assert.Greater(t, c.ID, b.ID)
	assert.Greater(t, b.ID, a.ID)
}

func TestDeleteReturnsRow(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestDB(t)

	p, err := s.Projects.Create(ctx, &model.Project{Title: "Dock", Description: "Pier", Image: "uploads/dock.jpg"})
	require.NoError(t, err)

	deleted, err := s.Projects.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "uploads/dock.jpg", deleted.Image)

	_, err = s.Projects.Get(ctx, p.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestDB(t)

	for _, title := range []string{"First", "Second", "Third"} {
		_, err := s.Projects.Create(ctx, &model.Project{Title: title, Description: "d"})
		require.NoError(t, err)
	}

	rows, err := s.Projects.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "First", rows[0].Title)
	assert.Equal(t, "Third", rows[2].Title)
}

func TestListEmpty(t *testing.T) {
	s, _ := setupTestDB(t)

	rows, err := s.Clients.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestDB(t)

	target, err := s.Projects.Create(ctx, &model.Project{Title: "Target", Description: "to delete"})
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers*2+1)

	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := s.Services.Create(ctx, &model.Service{Title: fmt.Sprintf("S%d", i), Description: "d"})
			errs <- err
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := s.Subscribers.Create(ctx, &model.Subscriber{Email: fmt.Sprintf("user%d@example.com", i%5)})
			errs <- err
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.Projects.Delete(ctx, target.ID)
		errs <- err
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, writers, counts.Services)
	assert.Equal(t, 5, counts.Subscribers)
	assert.Zero(t, counts.Projects)
}
