package stores

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStateStoreTest(t *testing.T) (*OAuthStateStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewOAuthStateStore(rdb, "aos", 0, nil), mr
}

func TestStateConsumedExactlyOnce(t *testing.T) {
	store, _ := newStateStoreTest(t)
	ctx := context.Background()

	state, err := store.Generate(ctx, "google", "", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	result, record, err := store.ValidateAndConsume(ctx, state, "google", "", "")
	if err != nil || result != StateValid {
		t.Fatalf("first consume: result=%v err=%v", result, err)
	}
	if record == nil || record.Bound() || record.Provider != "google" {
		t.Fatalf("unexpected record %+v", record)
	}

	result, _, err = store.ValidateAndConsume(ctx, state, "google", "", "")
	if err != nil || result != StateInvalid {
		t.Fatalf("second consume: result=%v err=%v", result, err)
	}
}

func TestStatePersistedWithTTLAndJSONShape(t *testing.T) {
	store, mr := newStateStoreTest(t)
	ctx := context.Background()

	state, err := store.Generate(ctx, "github", "user-1", "jti-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ttl := mr.TTL("aos:" + state); ttl != DefaultStateTTL {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	raw, err := mr.Get("aos:" + state)
	if err != nil {
		t.Fatalf("get raw: %v", err)
	}
	var shape map[string]any
	if err := json.Unmarshal([]byte(raw), &shape); err != nil {
		t.Fatalf("record is not json: %v", err)
	}
	for _, field := range []string{"createdAt", "userId", "refreshJti", "provider"} {
		if _, ok := shape[field]; !ok {
			t.Fatalf("missing field %q in %s", field, raw)
		}
	}

	unbound, err := store.Generate(ctx, "github", "", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	raw, _ = mr.Get("aos:" + unbound)
	if err := json.Unmarshal([]byte(raw), &shape); err != nil {
		t.Fatalf("record is not json: %v", err)
	}
	if shape["userId"] != nil || shape["refreshJti"] != nil {
		t.Fatalf("unbound record should carry nulls: %s", raw)
	}
}

func TestStateExpires(t *testing.T) {
	store, mr := newStateStoreTest(t)
	ctx := context.Background()

	state, err := store.Generate(ctx, "google", "", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	mr.FastForward(DefaultStateTTL + time.Second)

	result, _, err := store.ValidateAndConsume(ctx, state, "google", "", "")
	if err != nil || result != StateInvalid {
		t.Fatalf("expected expired state to be invalid: result=%v err=%v", result, err)
	}
}

func TestBoundStateRequiresSameSession(t *testing.T) {
	store, _ := newStateStoreTest(t)
	ctx := context.Background()

	state, err := store.Generate(ctx, "google", "user-a", "jti-a")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	result, record, err := store.ValidateAndConsume(ctx, state, "google", "user-b", "jti-b")
	if err != nil || result != StateSessionMismatch {
		t.Fatalf("expected session mismatch: result=%v err=%v", result, err)
	}
	if !record.Bound() || *record.UserID != "user-a" {
		t.Fatalf("unexpected record %+v", record)
	}

	again, _, _ := store.ValidateAndConsume(ctx, state, "google", "user-a", "jti-a")
	if again != StateInvalid {
		t.Fatalf("mismatched consume must still burn the state, got %v", again)
	}

	anonymous, err := store.Generate(ctx, "google", "user-a", "jti-a")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	result, _, _ = store.ValidateAndConsume(ctx, anonymous, "google", "", "")
	if result != StateSessionMismatch {
		t.Fatalf("bound state consumed without session must mismatch, got %v", result)
	}

	sameUserOtherDevice, err := store.Generate(ctx, "google", "user-a", "jti-a")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	result, _, _ = store.ValidateAndConsume(ctx, sameUserOtherDevice, "google", "user-a", "jti-other")
	if result != StateSessionMismatch {
		t.Fatalf("different jti must mismatch, got %v", result)
	}

	ok, err := store.Generate(ctx, "google", "user-a", "jti-a")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	result, _, _ = store.ValidateAndConsume(ctx, ok, "google", "user-a", "jti-a")
	if result != StateValid {
		t.Fatalf("expected matching session to be valid, got %v", result)
	}
}

func TestUnboundStateAcceptsAnyIdentity(t *testing.T) {
	store, _ := newStateStoreTest(t)
	ctx := context.Background()

	state, err := store.Generate(ctx, "kakao", "", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	result, _, err := store.ValidateAndConsume(ctx, state, "kakao", "someone", "some-jti")
	if err != nil || result != StateValid {
		t.Fatalf("expected valid: result=%v err=%v", result, err)
	}
}

func TestStateProviderMismatchAndBlank(t *testing.T) {
	store, _ := newStateStoreTest(t)
	ctx := context.Background()

	state, err := store.Generate(ctx, "google", "", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	result, _, _ := store.ValidateAndConsume(ctx, state, "github", "", "")
	if result != StateInvalid {
		t.Fatalf("expected provider mismatch to be invalid, got %v", result)
	}
	result, record, err := store.ValidateAndConsume(ctx, "  ", "google", "", "")
	if err != nil || result != StateInvalid || record != nil {
		t.Fatalf("expected blank state to be invalid: result=%v record=%v err=%v", result, record, err)
	}
	result, _, _ = store.ValidateAndConsume(ctx, "never-issued", "google", "", "")
	if result != StateInvalid {
		t.Fatalf("expected unknown state to be invalid, got %v", result)
	}
}

func TestGenerateRejectsHalfBinding(t *testing.T) {
	store, _ := newStateStoreTest(t)
	if _, err := store.Generate(context.Background(), "google", "user-a", ""); !errors.Is(err, ErrStateBinding) {
		t.Fatalf("expected ErrStateBinding, got %v", err)
	}
}

func TestConcurrentConsumersExactlyOneValid(t *testing.T) {
	store, _ := newStateStoreTest(t)
	ctx := context.Background()

	state, err := store.Generate(ctx, "naver", "", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	const workers = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		valid int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, _, err := store.ValidateAndConsume(ctx, state, "naver", "", "")
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if result == StateValid {
				mu.Lock()
				valid++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if valid != 1 {
		t.Fatalf("expected exactly one valid consume, got %d", valid)
	}
}

func TestBackendFailureIsNotAVerdict(t *testing.T) {
	store, mr := newStateStoreTest(t)
	mr.Close()

	if _, err := store.Generate(context.Background(), "google", "", ""); !errors.Is(err, ErrOAuthStateBackend) {
		t.Fatalf("expected ErrOAuthStateBackend, got %v", err)
	}
	_, _, err := store.ValidateAndConsume(context.Background(), "abc", "google", "", "")
	if !errors.Is(err, ErrOAuthStateBackend) {
		t.Fatalf("expected ErrOAuthStateBackend, got %v", err)
	}
}
