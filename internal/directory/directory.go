// Package directory is a static user directory loaded from configuration.
package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ashley-ai/sentinel/api"
	"github.com/ashley-ai/sentinel/internal/config"
	"github.com/ashley-ai/sentinel/password"
)

// Static implements api.Directory over a fixed set of users with bcrypt
// password hashes.
type Static struct {
	byName map[string]config.User
	byID   map[string]config.User

	dummyOnce sync.Once
	dummy     string
}

var _ api.Directory = (*Static)(nil)

// New indexes users. A user without an ID is identified by its username.
func New(users []config.User) (*Static, error) {
	d := &Static{
		byName: make(map[string]config.User, len(users)),
		byID:   make(map[string]config.User, len(users)),
	}
	for _, u := range users {
		if u.ID == "" {
			u.ID = u.Username
		}
		if _, dup := d.byID[u.ID]; dup {
			return nil, fmt.Errorf("duplicate user id %q", u.ID)
		}
		d.byName[u.Username] = u
		d.byID[u.ID] = u
	}
	return d, nil
}

// Len returns the number of users.
func (d *Static) Len() int { return len(d.byID) }

// Authenticate checks pw against the user's hash. Unknown usernames still
// pay for one bcrypt comparison.
func (d *Static) Authenticate(_ context.Context, username, pw string) (api.Principal, error) {
	u, ok := d.byName[username]
	if !ok {
		_, _ = password.Compare(d.dummyHash(), pw)
		return api.Principal{}, api.ErrInvalidCredentials
	}
	match, err := password.Compare(u.PasswordHash, pw)
	if err != nil {
		return api.Principal{}, fmt.Errorf("user %s: %w", username, err)
	}
	if !match {
		return api.Principal{}, api.ErrInvalidCredentials
	}
	return api.Principal{UserID: u.ID, Admin: u.Admin}, nil
}

func (d *Static) Lookup(_ context.Context, userID string) (api.Principal, error) {
	u, ok := d.byID[userID]
	if !ok {
		return api.Principal{}, api.ErrUnknownUser
	}
	return api.Principal{UserID: u.ID, Admin: u.Admin}, nil
}

func (d *Static) dummyHash() string {
	d.dummyOnce.Do(func() {
		d.dummy, _ = password.Hash("sentinel-directory-placeholder")
	})
	return d.dummy
}
