// Package cache holds an in-memory snapshot of the record store so bot
// handlers answer lookups without a round trip per message.
package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ulugbekdev/cargobot/core/logger"
	"github.com/ulugbekdev/cargobot/store"
)

// UnknownStatus is returned when a client references a party that no
// longer exists.
const UnknownStatus = "Unknown"

const loadTimeout = 5 * time.Second

// Cache maps party codes and client IDs to their records. Reload builds
// fresh maps and swaps them in whole, so readers never observe a partial
// snapshot. A failed reload keeps the previous one.
type Cache struct {
	src store.Store

	mu      sync.RWMutex
	parties map[string]store.Party
	clients map[string]store.Client
}

// New returns an empty cache reading from src. Call Reload before serving.
func New(src store.Store) *Cache {
	return &Cache{
		src:     src,
		parties: map[string]store.Party{},
		clients: map[string]store.Client{},
	}
}

// Reload rebuilds both maps from the store. On error the current snapshot
// stays in place and the error is returned for the caller to log or escalate.
func (c *Cache) Reload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	start := time.Now()

	partyRows, err := c.src.ListParties(ctx)
	if err != nil {
		return err
	}
	clientRows, err := c.src.ListClients(ctx)
	if err != nil {
		return err
	}

	parties := make(map[string]store.Party, len(partyRows))
	for _, p := range partyRows {
		parties[p.Code] = p
	}
	clients := make(map[string]store.Client, len(clientRows))
	for _, cl := range clientRows {
		clients[cl.ID] = cl
	}

	c.mu.Lock()
	c.parties = parties
	c.clients = clients
	c.mu.Unlock()

	logger.CACHE.Debug("cache reloaded",
		slog.String("event", "reload"),
		slog.Int("parties", len(parties)),
		slog.Int("clients", len(clients)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

// Run reloads on a fixed interval until ctx is cancelled. Failures are
// logged and the stale snapshot keeps serving.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Reload(ctx); err != nil {
				logger.CACHE.Warn("cache reload failed, serving stale snapshot",
					slog.String("event", "reload"),
					slog.String("err", err.Error()),
				)
			}
		}
	}
}

// Party looks up a party by code.
func (c *Cache) Party(code string) (store.Party, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.parties[code]
	return p, ok
}

// Client looks up a client by ID.
func (c *Cache) Client(id string) (store.Client, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.clients[id]
	return cl, ok
}

// Parties returns the snapshot sorted by code.
func (c *Cache) Parties() []store.Party {
	c.mu.RLock()
	out := make([]store.Party, 0, len(c.parties))
	for _, p := range c.parties {
		out = append(out, p)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Clients returns the snapshot sorted by ID.
func (c *Cache) Clients() []store.Client {
	c.mu.RLock()
	out := make([]store.Client, 0, len(c.clients))
	for _, cl := range c.clients {
		out = append(out, cl)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ResolveStatus maps a party code to its status, falling back to
// UnknownStatus when the party is gone.
func (c *Cache) ResolveStatus(partyCode string) string {
	if p, ok := c.Party(partyCode); ok {
		return p.Status
	}
	return UnknownStatus
}
