package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(CodeReservation)
	if meta.HTTPStatus != http.StatusConflict {
		t.Fatalf("unexpected status for reservation: %d", meta.HTTPStatus)
	}
	if meta.Retryable {
		t.Fatal("reservation failures must not be retryable")
	}

	if !MetadataFor(CodeTransient).Retryable {
		t.Fatal("transient failures must be retryable")
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("BOGUS"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("socket closed")
	err := Wrap(CodeDependency, cause, "save cart")

	if !stdErrors.Is(err, cause) {
		t.Fatal("wrapped error should match its cause")
	}
	if typed := As(fmt.Errorf("outer: %w", err)); typed == nil || typed.Code() != CodeDependency {
		t.Fatalf("expected dependency code through wrapping, got %v", typed)
	}
}

func TestWrapNilCause(t *testing.T) {
	t.Parallel()

	err := Wrap(CodeValidation, nil, "empty cart")
	if err.Unwrap() != nil {
		t.Fatal("nil cause should not be retained")
	}
	if err.Error() != "VALIDATION_ERROR: empty cart" {
		t.Fatalf("unexpected formatting: %s", err.Error())
	}
}

func TestWithDetails(t *testing.T) {
	t.Parallel()

	err := New(CodeCapacity, "cart full").WithDetails(map[string]any{"max_items": 50})
	details, ok := err.Details().(map[string]any)
	if !ok || details["max_items"] != 50 {
		t.Fatalf("details not preserved: %v", err.Details())
	}
}

func TestDumpChain(t *testing.T) {
	t.Parallel()

	root := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, root, "load user cart")

	dump := Dump(err)
	if dump.Code != string(CodeDependency) {
		t.Fatalf("unexpected code: %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(dump.Chain))
	}
}

func TestDumpUnpacksPostgresErrors(t *testing.T) {
	t.Parallel()

	cause := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "orders_order_number_key",
		TableName:      "orders",
		Detail:         "Key (order_number) already exists.",
	}
	dump := Dump(Wrap(CodeInternal, cause, "create order"))
	if dump.PGCode != "23505" {
		t.Fatalf("unexpected pg code: %s", dump.PGCode)
	}
	if dump.PGConstraint != "orders_order_number_key" {
		t.Fatalf("unexpected pg constraint: %s", dump.PGConstraint)
	}

	pqCause := &pq.Error{Code: "23503", Constraint: "order_items_order_id_fkey"}
	dump = Dump(fmt.Errorf("insert items: %w", pqCause))
	if dump.PGCode != "23503" || dump.PGConstraint != "order_items_order_id_fkey" {
		t.Fatalf("pq error not unpacked: %+v", dump)
	}
}
