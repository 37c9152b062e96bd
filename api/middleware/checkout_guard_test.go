package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmforge/charmforge-backend/pkg/logger"
)

type fakeLocker struct {
	held     map[string]bool
	lastKey  string
	setCalls int
	delCalls int
	err      error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (f *fakeLocker) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.setCalls++
	f.lastKey = key
	if f.err != nil {
		return false, f.err
	}
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeLocker) Del(ctx context.Context, keys ...string) error {
	f.delCalls++
	for _, key := range keys {
		delete(f.held, key)
	}
	return nil
}

func (f *fakeLocker) CheckoutLockKey(sessionID string) string {
	return "lock:" + sessionID
}

func guardRequest(t *testing.T, handler http.Handler, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req = req.WithContext(WithSessionID(req.Context(), sessionID))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestCheckoutGuardAllowsAndReleases(t *testing.T) {
	locker := newFakeLocker()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	handler := CheckoutGuard(locker, logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	resp := guardRequest(t, handler, "sess-1")
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	if locker.delCalls != 1 {
		t.Fatalf("expected lock released once, got %d", locker.delCalls)
	}
	if locker.held["lock:sess-1"] {
		t.Fatal("expected lock to be cleared after the request")
	}
}

func TestCheckoutGuardRejectsConcurrentCheckout(t *testing.T) {
	locker := newFakeLocker()
	locker.held["lock:sess-1"] = true
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	handlerRan := false
	handler := CheckoutGuard(locker, logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerRan = true
	}))

	resp := guardRequest(t, handler, "sess-1")
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 while checkout in flight, got %d", resp.Code)
	}
	if handlerRan {
		t.Fatal("handler must not run while the lock is held")
	}
}

func TestCheckoutGuardPrefersUserIdentity(t *testing.T) {
	locker := newFakeLocker()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	handler := CheckoutGuard(locker, logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	ctx := WithSessionID(req.Context(), "sess-1")
	ctx = WithUserID(ctx, "user-9")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req.WithContext(ctx))

	if locker.lastKey != "lock:user-9" {
		t.Fatalf("expected lock keyed by user id, got %q", locker.lastKey)
	}
	if locker.held["lock:user-9"] {
		t.Fatal("expected lock released after request")
	}
}
