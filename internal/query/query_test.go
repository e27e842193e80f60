package query

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmeshcher/sweetshop-storefront/internal/model"
)

type stubBackend struct {
	mu sync.Mutex

	sweets    []model.Sweet
	sweetsErr error

	reviews    []model.Review
	reviewsErr error

	role    model.Role
	roleErr error

	profile    *model.UserProfile
	profileErr error

	sweetsCalls  atomic.Int64
	reviewsCalls atomic.Int64
	roleCalls    atomic.Int64
	profileCalls atomic.Int64

	// block, если не nil, задерживает ListSweets до закрытия канала.
	block chan struct{}
}

func (b *stubBackend) ListSweets(ctx context.Context) ([]model.Sweet, error) {
	b.sweetsCalls.Add(1)
	if b.block != nil {
		<-b.block
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sweets, b.sweetsErr
}

func (b *stubBackend) ListReviews(ctx context.Context) ([]model.Review, error) {
	b.reviewsCalls.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reviews, b.reviewsErr
}

func (b *stubBackend) CallerRole(ctx context.Context) (model.Role, error) {
	b.roleCalls.Add(1)
	return b.role, b.roleErr
}

func (b *stubBackend) CallerProfile(ctx context.Context) (*model.UserProfile, error) {
	b.profileCalls.Add(1)
	return b.profile, b.profileErr
}

func (b *stubBackend) setSweets(sweets []model.Sweet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sweets = sweets
}

func TestSweets_CachedAfterFirstFetch(t *testing.T) {
	backend := &stubBackend{sweets: []model.Sweet{{Name: "Ladoo", Price: 20}}}
	store := NewStore(backend, nil)

	ctx := context.Background()

	first, err := store.Sweets(ctx)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("len(first) = %d, want 1", len(first))
	}
	if got := store.State(KeyCatalog); got != StateReady {
		t.Fatalf("state = %s, want %s", got, StateReady)
	}

	second, err := store.Sweets(ctx)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("second = %+v, want %+v", second, first)
	}
	if calls := backend.sweetsCalls.Load(); calls != 1 {
		t.Fatalf("sweets calls = %d, want 1: ready value must be served without refetch", calls)
	}
}

func TestSweets_ConcurrentReadsShareOneCall(t *testing.T) {
	backend := &stubBackend{
		sweets: []model.Sweet{{Name: "Barfi", Price: 35}},
		block:  make(chan struct{}),
	}
	store := NewStore(backend, nil)

	var wg sync.WaitGroup
	results := make([][]model.Sweet, 2)
	errs := make([]error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.Sweets(context.Background())
		}(i)
	}

	// Даём обоим подписчикам встать в очередь, затем отпускаем запрос.
	time.Sleep(50 * time.Millisecond)
	close(backend.block)
	wg.Wait()

	if errs[0] != nil || errs[1] != nil {
		t.Fatalf("errs = %v, %v, want nil", errs[0], errs[1])
	}
	if !reflect.DeepEqual(results[0], results[1]) {
		t.Fatalf("subscribers observed different values: %+v vs %+v", results[0], results[1])
	}
	if calls := backend.sweetsCalls.Load(); calls != 1 {
		t.Fatalf("sweets calls = %d, want 1: concurrent reads must share a single network call", calls)
	}
}

func TestSweets_FailureIsNotCached(t *testing.T) {
	backend := &stubBackend{sweetsErr: errors.New("boom")}
	store := NewStore(backend, nil)

	if _, err := store.Sweets(context.Background()); err == nil {
		t.Fatal("first fetch: expected error")
	}
	if got := store.State(KeyCatalog); got != StateFailed {
		t.Fatalf("state = %s, want %s", got, StateFailed)
	}

	backend.mu.Lock()
	backend.sweetsErr = nil
	backend.sweets = []model.Sweet{{Name: "Jalebi"}}
	backend.mu.Unlock()

	sweets, err := store.Sweets(context.Background())
	if err != nil {
		t.Fatalf("retry fetch: %v", err)
	}
	if len(sweets) != 1 {
		t.Fatalf("len(sweets) = %d, want 1", len(sweets))
	}
	if calls := backend.sweetsCalls.Load(); calls != 2 {
		t.Fatalf("sweets calls = %d, want 2", calls)
	}
}

func TestInvalidate_ForcesRefetch(t *testing.T) {
	backend := &stubBackend{sweets: []model.Sweet{{Name: "Ladoo", Price: 20}}}
	store := NewStore(backend, nil)

	ctx := context.Background()

	if _, err := store.Sweets(ctx); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	backend.setSweets([]model.Sweet{{Name: "Ladoo", Price: 25}})
	store.Invalidate(KeyCatalog)
	if got := store.State(KeyCatalog); got != StateIdle {
		t.Fatalf("state = %s, want %s", got, StateIdle)
	}

	sweets, err := store.Sweets(ctx)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if len(sweets) != 1 || sweets[0].Price != 25 {
		t.Fatalf("sweets = %+v, want one Ladoo priced 25", sweets)
	}
	if calls := backend.sweetsCalls.Load(); calls != 2 {
		t.Fatalf("sweets calls = %d, want 2", calls)
	}
}

func TestApplyMutation_KeyIsolation(t *testing.T) {
	backend := &stubBackend{
		sweets:  []model.Sweet{{Name: "Ladoo"}},
		reviews: []model.Review{{Author: "p-1", Rating: 5}},
	}
	store := NewStore(backend, nil)

	ctx := context.Background()

	if _, err := store.Sweets(ctx); err != nil {
		t.Fatalf("sweets: %v", err)
	}
	if _, err := store.Reviews(ctx); err != nil {
		t.Fatalf("reviews: %v", err)
	}

	// Мутация каталога не должна трогать кэш отзывов.
	store.ApplyMutation(MutationAddSweet)

	if _, err := store.Reviews(ctx); err != nil {
		t.Fatalf("reviews after mutation: %v", err)
	}
	if calls := backend.reviewsCalls.Load(); calls != 1 {
		t.Fatalf("reviews calls = %d, want 1: review query must remain cached", calls)
	}

	if _, err := store.Sweets(ctx); err != nil {
		t.Fatalf("sweets after mutation: %v", err)
	}
	if calls := backend.sweetsCalls.Load(); calls != 2 {
		t.Fatalf("sweets calls = %d, want 2: catalog query must refetch", calls)
	}
}

func TestApplyMutation_SubmitReviewInvalidatesOnlyReviews(t *testing.T) {
	backend := &stubBackend{
		sweets:  []model.Sweet{{Name: "Ladoo"}},
		reviews: []model.Review{{Author: "p-1", Rating: 4}},
	}
	store := NewStore(backend, nil)

	ctx := context.Background()

	if _, err := store.Sweets(ctx); err != nil {
		t.Fatalf("sweets: %v", err)
	}
	if _, err := store.Reviews(ctx); err != nil {
		t.Fatalf("reviews: %v", err)
	}

	store.ApplyMutation(MutationSubmitReview)

	if _, err := store.Sweets(ctx); err != nil {
		t.Fatalf("sweets after mutation: %v", err)
	}
	if calls := backend.sweetsCalls.Load(); calls != 1 {
		t.Fatalf("sweets calls = %d, want 1: catalog query must remain cached", calls)
	}

	if _, err := store.Reviews(ctx); err != nil {
		t.Fatalf("reviews after mutation: %v", err)
	}
	if calls := backend.reviewsCalls.Load(); calls != 2 {
		t.Fatalf("reviews calls = %d, want 2: review query must refetch", calls)
	}
}

func TestInvalidationTable(t *testing.T) {
	want := map[Mutation][]Key{
		MutationAddSweet:         {KeyCatalog},
		MutationUpdateSweetPrice: {KeyCatalog},
		MutationSubmitReview:     {KeyReviews},
		MutationSaveProfile:      {KeyCallerProfile},
		MutationAssignRole:       {},
		MutationSessionChange:    {KeyCallerRole, KeyCallerProfile},
	}

	if got := len(Mutations()); got != len(want) {
		t.Fatalf("mutations = %d, want %d: every mutation must have an explicit invalidation entry", got, len(want))
	}
	for m, keys := range want {
		if got := InvalidatedKeys(m); !reflect.DeepEqual(got, keys) {
			t.Errorf("InvalidatedKeys(%s) = %v, want %v", m, got, keys)
		}
	}
}

func TestCallerRoleAndProfile(t *testing.T) {
	profile := &model.UserProfile{Name: "Asha"}
	backend := &stubBackend{role: model.RoleAdmin, profile: profile}
	store := NewStore(backend, nil)

	ctx := context.Background()

	role, err := store.CallerRole(ctx)
	if err != nil {
		t.Fatalf("role: %v", err)
	}
	if role != model.RoleAdmin {
		t.Fatalf("role = %q, want %q", role, model.RoleAdmin)
	}

	got, err := store.CallerProfile(ctx)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if got != profile {
		t.Fatalf("profile = %+v, want %+v", got, profile)
	}

	// Смена сессии сбрасывает оба ключа, но не каталог.
	if _, err := store.Sweets(ctx); err != nil {
		t.Fatalf("sweets: %v", err)
	}

	store.ApplyMutation(MutationSessionChange)

	if _, err := store.CallerRole(ctx); err != nil {
		t.Fatalf("role after session change: %v", err)
	}
	if _, err := store.CallerProfile(ctx); err != nil {
		t.Fatalf("profile after session change: %v", err)
	}
	if _, err := store.Sweets(ctx); err != nil {
		t.Fatalf("sweets after session change: %v", err)
	}

	if calls := backend.roleCalls.Load(); calls != 2 {
		t.Fatalf("role calls = %d, want 2", calls)
	}
	if calls := backend.profileCalls.Load(); calls != 2 {
		t.Fatalf("profile calls = %d, want 2", calls)
	}
	if calls := backend.sweetsCalls.Load(); calls != 1 {
		t.Fatalf("sweets calls = %d, want 1", calls)
	}
}

func TestAbandonedSubscriberDoesNotCancelFetch(t *testing.T) {
	backend := &stubBackend{
		sweets: []model.Sweet{{Name: "Ladoo"}},
		block:  make(chan struct{}),
	}
	store := NewStore(backend, nil)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := store.Sweets(ctx)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	close(backend.block)

	// Запрос доводится до конца и результат остаётся в кэше.
	if err := <-done; err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := store.State(KeyCatalog); got != StateReady {
		t.Fatalf("state = %s, want %s", got, StateReady)
	}
}
