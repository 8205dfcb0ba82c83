// Package identity answers "who is acting on this mutation" by mapping a
// caller-supplied display name, or the configured service credential, onto a
// validated actor from the tracker's active user list.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/trackle-io/trackle-mcp/internal/api"
)

// ActorTypeAgent is the actor type stamped onto every resolved identity.
// The tracker distinguishes human sessions from service actors; everything
// going through this gateway is a service actor.
const ActorTypeAgent = "agent"

const cacheTTL = 60 * time.Second

// User is an active mapping fetched from the tracker.
type User struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
	IsActive    bool   `json:"isActive"`
}

// Identity is the resolved acting identity embedded into mutating requests.
// It is computed fresh per tool invocation and has no lifecycle of its own.
type Identity struct {
	ActorName string `json:"actorName"`
	ActorType string `json:"actorType"`
}

// Resolver caches the tracker's active user list for cacheTTL and resolves
// acting identities against it.
type Resolver struct {
	client   *api.Client
	username string
	ttl      time.Duration

	mu        sync.Mutex
	cached    []User
	fetchedAt time.Time
}

func NewResolver(client *api.Client, username string) *Resolver {
	return &Resolver{client: client, username: username, ttl: cacheTTL}
}

// Reset drops the cached user list so the next resolution refetches.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
	r.fetchedAt = time.Time{}
}

// ActiveUsers returns the active user mappings, served from the cache when it
// is younger than the TTL.
func (r *Resolver) ActiveUsers(ctx context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && time.Since(r.fetchedAt) < r.ttl {
		return r.cached, nil
	}

	var users []User
	if err := r.client.GetInto(ctx, "/users", map[string]string{"isActive": "true"}, &users); err != nil {
		return nil, err
	}

	r.cached = users
	r.fetchedAt = time.Now()
	return users, nil
}

// Resolve maps an optional override display name onto a validated identity.
//
// A non-empty override must match a display name exactly (case-sensitive);
// otherwise the call fails with an error naming the rejected value and every
// valid display name in backend order. Without an override, the configured
// username is matched case-insensitively against the mapping logins; when no
// mapping matches the raw username is used as-is rather than failing the
// operation.
func (r *Resolver) Resolve(ctx context.Context, override string) (Identity, error) {
	users, err := r.ActiveUsers(ctx)
	if err != nil {
		return Identity{}, err
	}

	if override != "" {
		for _, user := range users {
			if user.DisplayName == override {
				return Identity{ActorName: override, ActorType: ActorTypeAgent}, nil
			}
		}
		names := make([]string, 0, len(users))
		for _, user := range users {
			names = append(names, user.DisplayName)
		}
		return Identity{}, fmt.Errorf("unknown user %q: valid users are %s", override, strings.Join(names, ", "))
	}

	for _, user := range users {
		if strings.EqualFold(user.Login, r.username) {
			return Identity{ActorName: user.DisplayName, ActorType: ActorTypeAgent}, nil
		}
	}

	return Identity{ActorName: r.username, ActorType: ActorTypeAgent}, nil
}
