package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/taskboard/models"
	"github.com/upb/taskboard/repositories"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return &DB{DB: mockDB, logger: zap.NewNop()}, mock
}

func userColumns() []string {
	return []string{"id", "google_sub", "email", "name", "avatar", "role", "created_at", "updated_at"}
}

func userRow(u *models.User) *sqlmock.Rows {
	var sub interface{}
	if u.GoogleSub != "" {
		sub = u.GoogleSub
	}
	return sqlmock.NewRows(userColumns()).
		AddRow(u.ID.String(), sub, u.Email, u.Name, u.Avatar, string(u.Role), u.CreatedAt, u.UpdatedAt)
}

func sampleUser() *models.User {
	now := time.Now().UTC()
	return &models.User{
		ID:        uuid.New(),
		GoogleSub: "ext-1",
		Email:     "a@x.com",
		Name:      "A",
		Avatar:    "https://example.com/a.png",
		Role:      models.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestUserRepositoryCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := sampleUser()

		mock.ExpectExec("INSERT INTO users").
			WithArgs(user.ID, sql.NullString{String: user.GoogleSub, Valid: true},
				user.Email, user.Name, user.Avatar, user.Role, user.CreatedAt, user.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, user))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unbound subject is stored as NULL", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := sampleUser()
		user.GoogleSub = ""

		mock.ExpectExec("INSERT INTO users").
			WithArgs(user.ID, sql.NullString{},
				user.Email, user.Name, user.Avatar, user.Role, user.CreatedAt, user.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, user))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to ErrDuplicate", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := sampleUser()

		mock.ExpectExec("INSERT INTO users").
			WillReturnError(&pq.Error{Code: uniqueViolation})

		err := repo.Create(ctx, user)
		assert.ErrorIs(t, err, repositories.ErrDuplicate)
	})
}

func TestUserRepositoryLookups(t *testing.T) {
	ctx := context.Background()

	t.Run("get by id", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := sampleUser()

		mock.ExpectQuery("SELECT (.+) FROM users").
			WithArgs(user.ID).
			WillReturnRows(userRow(user))

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, user.GoogleSub, got.GoogleSub)
	})

	t.Run("get by google sub", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := sampleUser()

		mock.ExpectQuery("SELECT (.+) FROM users").
			WithArgs(user.GoogleSub).
			WillReturnRows(userRow(user))

		got, err := repo.GetByGoogleSub(ctx, user.GoogleSub)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("get by email", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := sampleUser()

		mock.ExpectQuery("SELECT (.+) FROM users").
			WithArgs(user.Email).
			WillReturnRows(userRow(user))

		got, err := repo.GetByEmail(ctx, user.Email)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("null google_sub scans to empty string", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := sampleUser()
		user.GoogleSub = ""

		mock.ExpectQuery("SELECT (.+) FROM users").
			WithArgs(user.Email).
			WillReturnRows(userRow(user))

		got, err := repo.GetByEmail(ctx, user.Email)
		require.NoError(t, err)
		assert.Empty(t, got.GoogleSub)
	})

	t.Run("no rows maps to ErrNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM users").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestUserRepositoryBindGoogleSub(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("binds an unbound row", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec("UPDATE users").
			WithArgs(id, "ext-1", "https://example.com/a.png").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.BindGoogleSub(ctx, id, "ext-1", "https://example.com/a.png"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already bound row is untouched", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		// The WHERE guard matches nothing when google_sub is set
		mock.ExpectExec("UPDATE users").
			WithArgs(id, "ext-2", "").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.BindGoogleSub(ctx, id, "ext-2", "")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("unique violation maps to ErrDuplicate", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec("UPDATE users").
			WillReturnError(&pq.Error{Code: uniqueViolation})

		err := repo.BindGoogleSub(ctx, id, "ext-1", "")
		assert.ErrorIs(t, err, repositories.ErrDuplicate)
	})
}

func TestUserRepositoryUpdateProfile(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec("UPDATE users").
			WithArgs(id, "New Name", "new-avatar").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateProfile(ctx, id, "New Name", "new-avatar"))
	})

	t.Run("missing row maps to ErrNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec("UPDATE users").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateProfile(ctx, id, "New Name", "")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}
