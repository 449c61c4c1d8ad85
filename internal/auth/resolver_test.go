package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/indraargamuria/opexio/internal/models"
	"github.com/indraargamuria/opexio/internal/repositories"
	"github.com/indraargamuria/opexio/internal/services"
)

var resolverTestTime = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func setupResolver(t *testing.T) (*SessionResolver, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.SetupModels(db))

	resolver := NewSessionResolver(repositories.NewSessionRepository(db), nil, services.FixedClock{T: resolverTestTime})
	return resolver, db
}

func seedSession(t *testing.T, db *gorm.DB, token string, expiresAt time.Time) *models.User {
	t.Helper()
	user := &models.User{ID: uuid.New(), Name: "Ade", Email: token + "@example.com"}
	require.NoError(t, db.Create(user).Error)
	session := &models.Session{
		ID:        uuid.New(),
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}
	require.NoError(t, db.Create(session).Error)
	return user
}

func TestResolveValidSession(t *testing.T) {
	resolver, db := setupResolver(t)
	seeded := seedSession(t, db, "live-token", resolverTestTime.Add(time.Hour))

	user, err := resolver.Resolve(context.Background(), "live-token")
	require.NoError(t, err)
	require.Equal(t, seeded.ID, user.ID)
	require.Equal(t, seeded.Name, user.Name)
}

func TestResolveRejectsEmptyToken(t *testing.T) {
	resolver, _ := setupResolver(t)

	_, err := resolver.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrNoSession)
}

func TestResolveRejectsUnknownToken(t *testing.T) {
	resolver, _ := setupResolver(t)

	_, err := resolver.Resolve(context.Background(), "never-issued")
	require.ErrorIs(t, err, ErrNoSession)
}

func TestResolveRejectsExpiredSession(t *testing.T) {
	resolver, db := setupResolver(t)
	seedSession(t, db, "stale-token", resolverTestTime.Add(-time.Minute))

	_, err := resolver.Resolve(context.Background(), "stale-token")
	require.ErrorIs(t, err, ErrNoSession)
}
