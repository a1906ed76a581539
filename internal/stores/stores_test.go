package stores

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestAccountCreateAndGet(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewAccountStore(rdb, "")
	ctx := context.Background()

	acct := &Account{ID: "u-1", Identifier: "a@b.com", PasswordHash: "$argon2id$x", TermsVersion: 3}
	if err := store.Create(ctx, acct); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, &Account{ID: "u-2", Identifier: "a@b.com"}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, err := store.Get(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "u-1" || got.PasswordHash != "$argon2id$x" || got.TermsVersion != 3 || got.ProfileComplete {
		t.Fatalf("unexpected account: %+v", got)
	}

	byID, err := store.GetByID(ctx, "u-1")
	if err != nil || byID.Identifier != "a@b.com" {
		t.Fatalf("get by id: %+v %v", byID, err)
	}

	exists, err := store.Exists(ctx, "other@b.com")
	if err != nil || exists {
		t.Fatalf("expected unknown identifier to be free: %v %v", exists, err)
	}
	if _, err := store.Get(ctx, "other@b.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountConcurrentCreateHasOneWinner(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewAccountStore(rdb, "t")
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Create(ctx, &Account{ID: "u", Identifier: "race@b.com"}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one successful create, got %d", wins)
	}
}

func TestAccountUpdates(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewAccountStore(rdb, "")
	ctx := context.Background()

	if err := store.UpdateProfile(ctx, "missing@b.com", "X", "1990-01-01"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Create(ctx, &Account{ID: "u-1", Identifier: "a@b.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.UpdateProfile(ctx, "a@b.com", "Ada", "1990-01-01"); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if err := store.SetPasswordHash(ctx, "a@b.com", "h2"); err != nil {
		t.Fatalf("set hash: %v", err)
	}
	if err := store.SetTermsVersion(ctx, "a@b.com", 7); err != nil {
		t.Fatalf("set terms: %v", err)
	}

	got, err := store.Get(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.ProfileComplete || got.DisplayName != "Ada" || got.PasswordHash != "h2" || got.TermsVersion != 7 {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestCodeConsumeIsSingleUse(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewCodeStore(rdb, "", nil)
	ctx := context.Background()

	if err := store.Issue(ctx, "123456", &CodeRecord{Identifier: "a@b.com", Variant: 1}, time.Minute); err != nil {
		t.Fatalf("issue: %v", err)
	}
	record, err := store.Consume(ctx, "123456")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if record.Identifier != "a@b.com" || record.Variant != 1 {
		t.Fatalf("unexpected record: %+v", record)
	}
	if _, err := store.Consume(ctx, "123456"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second consume to fail with ErrNotFound, got %v", err)
	}
}

func TestCodeReissueRevokesPrevious(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewCodeStore(rdb, "", nil)
	ctx := context.Background()

	_ = store.Issue(ctx, "111111", &CodeRecord{Identifier: "a@b.com"}, time.Minute)
	_ = store.Issue(ctx, "222222", &CodeRecord{Identifier: "a@b.com"}, time.Minute)

	if _, err := store.Consume(ctx, "111111"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected revoked code to be gone, got %v", err)
	}
	if _, err := store.Consume(ctx, "222222"); err != nil {
		t.Fatalf("expected latest code to validate: %v", err)
	}
}

func TestCodeExpiry(t *testing.T) {
	rdb, _ := newTestRedis(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewCodeStore(rdb, "", func() time.Time { return now })
	ctx := context.Background()

	if err := store.Issue(ctx, "123456", &CodeRecord{Identifier: "a@b.com"}, time.Minute); err != nil {
		t.Fatalf("issue: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.Consume(ctx, "123456"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := store.Consume(ctx, "123456"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired code to be deleted, got %v", err)
	}
}

func TestCodeRecordEncoding(t *testing.T) {
	in := &CodeRecord{Identifier: "+15551234567", IdentifierType: 1, Variant: 1, ExpiresAt: 1767225600}
	data, err := encodeCodeRecord(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decodeCodeRecord(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *out != *in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
	data[0] = 9
	if _, err := decodeCodeRecord(data); err == nil {
		t.Fatal("expected unknown version to fail")
	}
}

func TestSessionCurrentLifecycle(t *testing.T) {
	rdb, mr := newTestRedis(t)
	store := NewSessionStore(rdb, "")
	ctx := context.Background()

	if _, err := store.Current(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no current session, got %v", err)
	}

	sess := &Session{ID: "s-1", UserID: "u-1", Scopes: JoinScopes([]string{"openid", "email"}), Persistent: true}
	if err := store.Save(ctx, sess, time.Hour, true); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, &Session{ID: "s-2", UserID: "u-2"}, time.Hour, false); err != nil {
		t.Fatalf("save: %v", err)
	}

	cur, err := store.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur.UserID != "u-1" || !cur.Persistent || len(cur.ScopeList()) != 2 {
		t.Fatalf("unexpected current session: %+v", cur)
	}

	if err := store.Delete(ctx, "s-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Current(ctx); err != nil {
		t.Fatalf("deleting another session must keep current: %v", err)
	}
	if err := store.Delete(ctx, "s-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Current(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected current cleared, got %v", err)
	}
	if err := store.Delete(ctx, "s-1"); err != nil {
		t.Fatalf("delete must be idempotent: %v", err)
	}

	_ = store.Save(ctx, &Session{ID: "s-3", UserID: "u-3"}, time.Minute, true)
	mr.FastForward(2 * time.Minute)
	if _, err := store.Current(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
}

func TestUnavailableRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewAccountStore(rdb, "")
	if _, err := store.Exists(context.Background(), "a@b.com"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
