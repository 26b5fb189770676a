package services

import (
	"context"
	"log"
	"time"

	"smartbin-backend/internal/models"

	"github.com/jmoiron/sqlx"
	gocache "github.com/patrickmn/go-cache"
)

const (
	identityCacheTTL     = 5 * time.Minute
	identityCacheCleanup = 10 * time.Minute
)

// ActorDirectory resolves actor ids to display names for audit fields
// (archivedByName, modifiedBy). Lookups are cached; a failed lookup
// degrades to the raw id and never blocks a lifecycle transition.
type ActorDirectory struct {
	db    *sqlx.DB
	cache *gocache.Cache
}

func NewActorDirectory(db *sqlx.DB) *ActorDirectory {
	return &ActorDirectory{
		db:    db,
		cache: gocache.New(identityCacheTTL, identityCacheCleanup),
	}
}

// DisplayName returns the actor's first/last name or email, falling back to
// the raw id when the lookup fails.
func (d *ActorDirectory) DisplayName(ctx context.Context, actorID string) string {
	if actorID == "" {
		return ""
	}
	if cached, ok := d.cache.Get(actorID); ok {
		return cached.(string)
	}

	var user models.User
	if err := d.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", actorID); err != nil {
		log.Printf("⚠️  Actor lookup failed for %s, using raw id: %v", actorID, err)
		return actorID
	}

	name := user.DisplayName()
	if name == "" {
		return actorID
	}
	d.cache.Set(actorID, name, gocache.DefaultExpiration)
	return name
}
