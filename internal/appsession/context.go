// Package appsession holds the process-wide device session: the bearer token,
// the signed-in user and the tutorial flag. It is loaded from the device store at
// startup and cleared on logout.
package appsession

import (
	"context"
	"sync"

	"lakbay-kasaysayan/internal/devicestore"
)

// Store is the device key-value store as seen by the session.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type Context struct {
	store Store

	mu           sync.RWMutex
	token        string
	userID       string
	tutorialSeen bool
}

// Load restores token and tutorial flag from store.
func Load(ctx context.Context, store Store) (*Context, error) {
	c := &Context{store: store}
	token, _, err := store.Get(ctx, devicestore.KeyToken)
	if err != nil {
		return nil, err
	}
	shown, _, err := store.Get(ctx, devicestore.KeyTutorialShown)
	if err != nil {
		return nil, err
	}
	c.token = token
	c.tutorialSeen = shown == "true"
	return c, nil
}

func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Context) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Context) Authenticated() bool {
	return c.Token() != ""
}

// SignIn persists token and remembers the user it belongs to.
func (c *Context) SignIn(ctx context.Context, token, userID string) error {
	if err := c.store.Set(ctx, devicestore.KeyToken, token); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = token
	c.userID = userID
	c.mu.Unlock()
	return nil
}

// SetUser records who the restored token belongs to, once the server has said so.
func (c *Context) SetUser(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

// Clear forgets the token. The tutorial flag and collected artifacts survive logout.
func (c *Context) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.token = ""
	c.userID = ""
	c.mu.Unlock()
	return c.store.Delete(ctx, devicestore.KeyToken)
}

func (c *Context) TutorialShown() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tutorialSeen
}

func (c *Context) MarkTutorialShown(ctx context.Context) error {
	if err := c.store.Set(ctx, devicestore.KeyTutorialShown, "true"); err != nil {
		return err
	}
	c.mu.Lock()
	c.tutorialSeen = true
	c.mu.Unlock()
	return nil
}
