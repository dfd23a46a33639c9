package session

import (
	"context"
	"errors"
	"time"

	"github.com/carebridge/webgateway/internal/domain"
)

// ErrNoSession is returned by Store.Get when no record exists for the ID.
var ErrNoSession = errors.New("no session")

// Record is the persisted state of one browser session. The token is the
// only credential; the user record is a short-lived cache of the last
// successful identity fetch. Token absent means logged out.
type Record struct {
	Token        string       `json:"token"`
	User         *domain.User `json:"user,omitempty"`
	UserCachedAt time.Time    `json:"user_cached_at,omitempty"`

	// Generation advances on every mutation. An identity fetch result is
	// applied only if the generation observed at issuance still matches at
	// completion, so a slow fetch can never clobber a newer logout.
	Generation uint64 `json:"generation"`
}

// Store persists session records keyed by session ID.
type Store interface {
	Get(ctx context.Context, sid string) (*Record, error)
	Save(ctx context.Context, sid string, rec *Record) error
	Delete(ctx context.Context, sid string) error
}
