package recordcache

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-record-cache/cache"
	"github.com/goliatone/go-record-cache/pkg/testsupport"
)

type User struct {
	Attributes
	ID        int
	FirstName string
	LastName  string

	persisted bool
	computes  map[string]int
}

func (u *User) CacheIdentity() (string, bool) {
	if u.ID == 0 {
		return "", false
	}
	return strconv.Itoa(u.ID), u.persisted
}

func (u *User) markPersisted() { u.persisted = true }

func (u *User) computed(field string) int {
	return u.computes[field]
}

func (u *User) count(field string) {
	if u.computes == nil {
		u.computes = make(map[string]int)
	}
	u.computes[field]++
}

type Group struct {
	Attributes
	ID     int
	Name   string
	UserID int
	User   *User

	persisted bool
}

func (g *Group) CacheIdentity() (string, bool) {
	if g.ID == 0 {
		return "", false
	}
	return strconv.Itoa(g.ID), g.persisted
}

func (g *Group) markPersisted() { g.persisted = true }

type harness struct {
	backend  *testsupport.Backend
	gateway  *cache.Gateway
	registry *Registry
	store    *Store
	bridge   *Bridge

	// groups plays the role of the memberships table.
	groups []*Group
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, opts ...func(*cache.Config)) *harness {
	t.Helper()

	cfg := cache.DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	cfg.Logger = discardLogger()
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &harness{backend: testsupport.NewBackend()}
	h.gateway = cache.NewGateway(h.backend, cfg)
	h.registry = NewRegistry()
	require.NoError(t, h.registry.Register(h.userType(t), h.groupType(t)))
	h.store = NewStore(h.registry, h.gateway, cfg)
	h.bridge = NewBridge(h.store, cfg.Logger)
	return h
}

func (h *harness) userType(t *testing.T) *TypeConfig {
	cfg, err := Define[*User]("User").
		Cache("fullName", func(_ context.Context, u *User) (any, error) {
			u.count("fullName")
			return u.FirstName + " " + u.LastName, nil
		}).
		Cache("nothing", func(_ context.Context, u *User) (any, error) {
			u.count("nothing")
			return nil, nil
		}).
		Cache("groupNames", func(_ context.Context, u *User) (any, error) {
			u.count("groupNames")
			names := []string{}
			for _, g := range h.groups {
				if g.UserID == u.ID {
					names = append(names, g.Name)
				}
			}
			sort.Strings(names)
			return names, nil
		}).
		Build()
	require.NoError(t, err)
	return cfg
}

func (h *harness) groupType(t *testing.T) *TypeConfig {
	cfg, err := Define[*Group]("Group").
		InvalidateOne("user", func(g *Group) Record { return g.User }).
		Build()
	require.NoError(t, err)
	return cfg
}

// save runs the host save path for recs inside one committed unit of work.
func (h *harness) save(t *testing.T, recs ...Record) {
	t.Helper()
	ec := NewExecutionContext()
	for _, rec := range recs {
		if p, ok := rec.(interface{ markPersisted() }); ok {
			p.markPersisted()
		}
		require.NoError(t, h.bridge.OnSave(ec, rec))
	}
	require.NoError(t, h.bridge.OnCommit(context.Background(), ec))
	require.Zero(t, ec.Len())
}

func (h *harness) destroy(t *testing.T, recs ...Record) {
	t.Helper()
	ec := NewExecutionContext()
	for _, rec := range recs {
		require.NoError(t, h.bridge.OnDestroy(ec, rec))
	}
	require.NoError(t, h.bridge.OnCommit(context.Background(), ec))
	require.Zero(t, ec.Len())
}

func (h *harness) addGroup(user *User, id int, name string) *Group {
	g := &Group{ID: id, Name: name, UserID: user.ID, User: user}
	h.groups = append(h.groups, g)
	return g
}

func (h *harness) removeGroup(g *Group) {
	for i, existing := range h.groups {
		if existing == g {
			h.groups = append(h.groups[:i], h.groups[i+1:]...)
			return
		}
	}
}
