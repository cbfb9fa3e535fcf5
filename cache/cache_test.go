package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/ulugbekdev/cargobot/store"
)

type fakeStore struct {
	parties []store.Party
	clients []store.Client
	fail    bool
}

func (f *fakeStore) Init(ctx context.Context) error { return nil }

func (f *fakeStore) ListParties(ctx context.Context) ([]store.Party, error) {
	if f.fail {
		return nil, errors.New("backend down")
	}
	return f.parties, nil
}

func (f *fakeStore) AppendParty(ctx context.Context, p store.Party) error { return nil }

func (f *fakeStore) UpdatePartyStatus(ctx context.Context, code, status string) error { return nil }

func (f *fakeStore) DeleteParty(ctx context.Context, code string) error { return nil }

func (f *fakeStore) ListClients(ctx context.Context) ([]store.Client, error) {
	if f.fail {
		return nil, errors.New("backend down")
	}
	return f.clients, nil
}

func (f *fakeStore) AppendClient(ctx context.Context, c store.Client) error { return nil }

func (f *fakeStore) DeleteClient(ctx context.Context, id string) error { return nil }

func TestReloadAndLookups(t *testing.T) {
	src := &fakeStore{
		parties: []store.Party{{Code: "PP1", Status: "New"}, {Code: "PP2", Status: "Arrived"}},
		clients: []store.Client{{ID: "1001", Party: "PP1"}},
	}
	c := New(src)
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if p, ok := c.Party("PP2"); !ok || p.Status != "Arrived" {
		t.Fatalf("party lookup failed: %+v %v", p, ok)
	}
	if _, ok := c.Party("PP3"); ok {
		t.Fatal("expected miss for absent party")
	}
	if cl, ok := c.Client("1001"); !ok || cl.Party != "PP1" {
		t.Fatalf("client lookup failed: %+v %v", cl, ok)
	}
}

func TestReloadFailureKeepsSnapshot(t *testing.T) {
	src := &fakeStore{parties: []store.Party{{Code: "PP1", Status: "New"}}}
	c := New(src)
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	src.fail = true
	if err := c.Reload(context.Background()); err == nil {
		t.Fatal("expected reload error")
	}
	if _, ok := c.Party("PP1"); !ok {
		t.Fatal("stale snapshot lost after failed reload")
	}
}

func TestListingsSorted(t *testing.T) {
	src := &fakeStore{
		parties: []store.Party{{Code: "PP3"}, {Code: "PP1"}, {Code: "PP2"}},
		clients: []store.Client{{ID: "2"}, {ID: "1"}},
	}
	c := New(src)
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	parties := c.Parties()
	for i, want := range []string{"PP1", "PP2", "PP3"} {
		if parties[i].Code != want {
			t.Fatalf("parties[%d] = %s, want %s", i, parties[i].Code, want)
		}
	}
	clients := c.Clients()
	for i, want := range []string{"1", "2"} {
		if clients[i].ID != want {
			t.Fatalf("clients[%d] = %s, want %s", i, clients[i].ID, want)
		}
	}
}

func TestResolveStatusFallback(t *testing.T) {
	src := &fakeStore{parties: []store.Party{{Code: "PP1", Status: "New"}}}
	c := New(src)
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if got := c.ResolveStatus("PP1"); got != "New" {
		t.Fatalf("got %q", got)
	}
	if got := c.ResolveStatus("gone"); got != UnknownStatus {
		t.Fatalf("got %q, want %q", got, UnknownStatus)
	}
}

func TestReloadReplacesRemovedRecords(t *testing.T) {
	src := &fakeStore{parties: []store.Party{{Code: "PP1"}, {Code: "PP2"}}}
	c := New(src)
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	src.parties = []store.Party{{Code: "PP2"}}
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("second reload: %v", err)
	}
	if _, ok := c.Party("PP1"); ok {
		t.Fatal("removed party survived reload")
	}
}
