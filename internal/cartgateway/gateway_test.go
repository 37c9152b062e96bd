package cartgateway

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/charmforge/charmforge-backend/internal/cart"
	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
	"github.com/charmforge/charmforge-backend/pkg/logger"
	"github.com/charmforge/charmforge-backend/pkg/retry"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
}

func testExecutor(t *testing.T) *retry.Executor {
	t.Helper()
	exec, err := retry.NewExecutor(retry.Policy{MaxRetries: 1, BaseDelay: time.Millisecond}, testLogger())
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	return exec
}

func newTestService(t *testing.T, remote RemoteStore, local LocalStore) Service {
	t.Helper()
	svc, err := NewService(remote, local, testExecutor(t), testPricing(), 7*24*time.Hour, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type stubRemote struct {
	guest map[string]cart.CartSnapshot
	user  map[string]cart.CartSnapshot

	saveGuestErr error
	getGuestErr  error
	saveUserErr  error
	getUserErr   error
	deleteErr    error

	saveGuestCalls int
	deleteCalls    int
}

func newStubRemote() *stubRemote {
	return &stubRemote{
		guest: map[string]cart.CartSnapshot{},
		user:  map[string]cart.CartSnapshot{},
	}
}

func (s *stubRemote) SaveGuestCart(ctx context.Context, sessionID string, snapshot cart.CartSnapshot) error {
	s.saveGuestCalls++
	if s.saveGuestErr != nil {
		return s.saveGuestErr
	}
	s.guest[sessionID] = snapshot
	return nil
}

func (s *stubRemote) GetGuestCart(ctx context.Context, sessionID string) (*cart.CartSnapshot, error) {
	if s.getGuestErr != nil {
		return nil, s.getGuestErr
	}
	snap, ok := s.guest[sessionID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return &snap, nil
}

func (s *stubRemote) DeleteGuestCart(ctx context.Context, sessionID string) error {
	s.deleteCalls++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.guest, sessionID)
	return nil
}

func (s *stubRemote) SaveUserCart(ctx context.Context, userID string, snapshot cart.CartSnapshot) error {
	if s.saveUserErr != nil {
		return s.saveUserErr
	}
	s.user[userID] = snapshot
	return nil
}

func (s *stubRemote) GetUserCart(ctx context.Context, userID string) (*cart.CartSnapshot, error) {
	if s.getUserErr != nil {
		return nil, s.getUserErr
	}
	snap, ok := s.user[userID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return &snap, nil
}

type stubLocal struct {
	entries map[string]cart.CartSnapshot
	saveErr error
	getErr  error
}

func newStubLocal() *stubLocal {
	return &stubLocal{entries: map[string]cart.CartSnapshot{}}
}

func (s *stubLocal) Save(ctx context.Context, key string, snapshot cart.CartSnapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.entries[key] = snapshot
	return nil
}

func (s *stubLocal) Get(ctx context.Context, key string) (*cart.CartSnapshot, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	snap, ok := s.entries[key]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return &snap, nil
}

func (s *stubLocal) Delete(ctx context.Context, key string) error {
	delete(s.entries, key)
	return nil
}

func (s *stubLocal) SweepBefore(ctx context.Context, prefix string, cutoff time.Time) (int, error) {
	return 0, nil
}

func TestSaveGuestCartFallsBackToLocal(t *testing.T) {
	t.Parallel()

	remote := newStubRemote()
	remote.saveGuestErr = pkgerrors.New(pkgerrors.CodeDependency, "remote store down")
	local := newStubLocal()
	svc := newTestService(t, remote, local)

	snapshot := *snapshotWith(line("A", 1, "10.00", false))
	if err := svc.SaveGuestCart(context.Background(), "sess-1", snapshot); err != nil {
		t.Fatalf("expected fallback save to succeed, got %v", err)
	}
	if remote.saveGuestCalls != 2 {
		t.Fatalf("remote save attempts = %d, want 2 (retryable error)", remote.saveGuestCalls)
	}
	if _, ok := local.entries[GuestKeyPrefix+"sess-1"]; !ok {
		t.Fatal("snapshot should land in the local fallback")
	}
}

func TestGetGuestCartPrefersRemoteThenLocal(t *testing.T) {
	t.Parallel()

	remote := newStubRemote()
	local := newStubLocal()
	svc := newTestService(t, remote, local)

	local.entries[GuestKeyPrefix+"sess-1"] = *snapshotWith(line("A", 2, "10.00", false))

	got, err := svc.GetGuestCart(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("expected local fallback hit, got %v", err)
	}
	if got.Items[0].Quantity != 2 {
		t.Fatalf("unexpected snapshot from fallback: %+v", got)
	}

	remote.guest["sess-1"] = *snapshotWith(line("A", 5, "10.00", false))
	got, err = svc.GetGuestCart(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Items[0].Quantity != 5 {
		t.Fatal("remote copy must win when available")
	}
}

func TestUserCartFailuresSurface(t *testing.T) {
	t.Parallel()

	remote := newStubRemote()
	remote.saveUserErr = pkgerrors.New(pkgerrors.CodeDependency, "remote store down")
	local := newStubLocal()
	svc := newTestService(t, remote, local)

	err := svc.SaveUserCart(context.Background(), "user-1", *snapshotWith(line("A", 1, "10.00", false)))
	if err == nil {
		t.Fatal("user cart save failure must surface, no local fallback")
	}
	if len(local.entries) != 0 {
		t.Fatal("user carts must never fall back to local storage")
	}
}

func TestTransferMergesAndDeletesGuestCart(t *testing.T) {
	t.Parallel()

	remote := newStubRemote()
	remote.guest["sess-1"] = *snapshotWith(line("A", 2, "10.00", false))
	remote.user["user-1"] = *snapshotWith(line("A", 1, "10.00", false), line("B", 1, "5.00", false))
	svc := newTestService(t, remote, newStubLocal())

	merged, err := svc.TransferGuestCartToUser(context.Background(), "sess-1", "user-1")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if merged.UserID != "user-1" {
		t.Fatalf("merged cart user = %q, want user-1", merged.UserID)
	}
	if len(merged.Items) != 2 {
		t.Fatalf("got %d lines, want 2", len(merged.Items))
	}
	if _, ok := remote.guest["sess-1"]; ok {
		t.Fatal("guest cart should be deleted after a successful transfer")
	}
	saved := remote.user["user-1"]
	total := 0
	for _, item := range saved.Items {
		total += item.Quantity
	}
	if total != 4 {
		t.Fatalf("persisted merged quantity = %d, want 4", total)
	}
}

func TestTransferKeepsGuestCartWhenSaveFails(t *testing.T) {
	t.Parallel()

	remote := newStubRemote()
	remote.guest["sess-1"] = *snapshotWith(line("A", 2, "10.00", false))
	remote.saveUserErr = pkgerrors.New(pkgerrors.CodeDependency, "remote store down")
	svc := newTestService(t, remote, newStubLocal())

	if _, err := svc.TransferGuestCartToUser(context.Background(), "sess-1", "user-1"); err == nil {
		t.Fatal("expected transfer to fail when merged save fails")
	}
	if _, ok := remote.guest["sess-1"]; !ok {
		t.Fatal("guest cart must be preserved when the merged save fails")
	}
	if remote.deleteCalls != 0 {
		t.Fatal("guest cart deletion must not be attempted on failure")
	}
}

func TestTransferWithNoGuestCartKeepsUserCart(t *testing.T) {
	t.Parallel()

	remote := newStubRemote()
	remote.user["user-1"] = *snapshotWith(line("B", 1, "5.00", false))
	svc := newTestService(t, remote, newStubLocal())

	merged, err := svc.TransferGuestCartToUser(context.Background(), "sess-missing", "user-1")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if len(merged.Items) != 1 || merged.Items[0].ProductID != "B" {
		t.Fatalf("unexpected merged cart: %+v", merged.Items)
	}
	if remote.deleteCalls != 0 {
		t.Fatal("nothing to delete when no guest cart exists")
	}
}
