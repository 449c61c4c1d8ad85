package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/indraargamuria/opexio/internal/cache"
	"github.com/indraargamuria/opexio/internal/models"
	"github.com/indraargamuria/opexio/internal/repositories"
	"github.com/indraargamuria/opexio/internal/services"
)

// How long a resolved session may be served from cache.
const sessionCacheTTL = 5 * time.Minute

// ErrNoSession is returned when a token resolves to no live session.
var ErrNoSession = errors.New("no valid session")

// SessionResolver answers the one question the rest of the system asks the
// auth provider: is there a valid session, and who is the user.
type SessionResolver struct {
	sessions *repositories.SessionRepository
	cache    *cache.RedisCache
	clock    services.Clock
}

// NewSessionResolver creates a new session resolver
func NewSessionResolver(sessions *repositories.SessionRepository, redisCache *cache.RedisCache, clock services.Clock) *SessionResolver {
	return &SessionResolver{sessions: sessions, cache: redisCache, clock: clock}
}

type cachedSession struct {
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Resolve maps a session token to its user, or ErrNoSession.
func (r *SessionResolver) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	cacheKey := cache.SessionCacheKey(token)
	if r.cache.Enabled() {
		var cached cachedSession
		if err := r.cache.Get(ctx, cacheKey, &cached); err == nil {
			if cached.ExpiresAt.After(r.clock.Now()) {
				return &cached.User, nil
			}
		}
	}

	session, err := r.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}

	if !session.ExpiresAt.After(r.clock.Now()) {
		return nil, ErrNoSession
	}

	if r.cache.Enabled() {
		entry := cachedSession{User: session.User, ExpiresAt: session.ExpiresAt}
		if err := r.cache.Set(ctx, cacheKey, entry, sessionCacheTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to cache session")
		}
	}

	return &session.User, nil
}
