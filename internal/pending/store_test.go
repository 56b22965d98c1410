package pending

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStore(client, DefaultTTL), mr
}

var hexToken = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestCreateGeneratesUniqueTokens(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	contact := Contact{FirstName: "Jane", Email: "jane@example.com"}

	first, err := store.Create(ctx, contact, []uuid.UUID{uuid.New()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := store.Create(ctx, contact, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if !hexToken.MatchString(first.Token) {
		t.Errorf("token %q is not 64 hex characters", first.Token)
	}
	if first.Token == second.Token {
		t.Error("two requests share a token")
	}
}

func TestCreateRequiresContact(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	cases := []Contact{
		{},
		{FirstName: "Jane"},
		{Email: "jane@example.com"},
	}
	for _, contact := range cases {
		req, err := store.Create(ctx, contact, nil)
		if !errors.Is(err, ErrMissingContact) {
			t.Errorf("Create(%+v) error = %v, want ErrMissingContact", contact, err)
		}
		if req != nil {
			t.Errorf("Create(%+v) left a partial record", contact)
		}
	}
}

func TestLookup(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	created, err := store.Create(ctx, Contact{FirstName: "Jane", Email: "jane@example.com", Residence: "Utrecht"}, ids)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Lookup(ctx, created.Token)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Contact.Email != "jane@example.com" || got.Contact.Residence != "Utrecht" {
		t.Errorf("Lookup contact = %+v", got.Contact)
	}
	if len(got.SubscriptionIDs) != 2 {
		t.Errorf("Lookup ids = %v", got.SubscriptionIDs)
	}

	// Exact match only
	if _, err := store.Lookup(ctx, created.Token[:32]); !errors.Is(err, ErrNotFound) {
		t.Errorf("prefix lookup error = %v, want ErrNotFound", err)
	}
	if _, err := store.Lookup(ctx, "deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown token error = %v, want ErrNotFound", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, Contact{FirstName: "Jane", Email: "jane@example.com"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.Delete(ctx, created.Token); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Lookup(ctx, created.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup after delete = %v, want ErrNotFound", err)
	}
	// Second delete is a no-op
	if err := store.Delete(ctx, created.Token); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestSweepExpired(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }

	created, err := store.Create(ctx, Contact{FirstName: "Jane", Email: "jane@example.com"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// 14 minutes in: still present, sweep removes nothing
	store.now = func() time.Time { return base.Add(14 * time.Minute) }
	if n, err := store.SweepExpired(ctx); err != nil || n != 0 {
		t.Errorf("sweep at 14m = (%d, %v), want (0, nil)", n, err)
	}
	if _, err := store.Lookup(ctx, created.Token); err != nil {
		t.Errorf("Lookup at 14m: %v", err)
	}

	// 16 minutes in: swept
	store.now = func() time.Time { return base.Add(16 * time.Minute) }
	if n, err := store.SweepExpired(ctx); err != nil || n != 1 {
		t.Errorf("sweep at 16m = (%d, %v), want (1, nil)", n, err)
	}
	if _, err := store.Lookup(ctx, created.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup at 16m = %v, want ErrNotFound", err)
	}

	// Sweeping again with nothing left is a no-op
	if n, err := store.SweepExpired(ctx); err != nil || n != 0 {
		t.Errorf("second sweep = (%d, %v), want (0, nil)", n, err)
	}
}

func TestRedisTTLBackstop(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, Contact{FirstName: "Jane", Email: "jane@example.com"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	mr.FastForward(16 * time.Minute)

	if _, err := store.Lookup(ctx, created.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup after TTL = %v, want ErrNotFound", err)
	}
}
