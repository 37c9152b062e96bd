package cart

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
)

func newTestStore() *Store {
	return NewStore("sess-1", Limits{MaxItems: 3, MaxQuantityPerItem: 10}, testPricing())
}

func charmInput(productID string, price string) ItemInput {
	return ItemInput{
		ProductID: productID,
		Title:     "Charm " + productID,
		UnitPrice: decimal.RequireFromString(price),
	}
}

func TestAddItemValidation(t *testing.T) {
	t.Parallel()

	store := newTestStore()

	cases := []struct {
		name  string
		input ItemInput
		qty   int
	}{
		{"missing product id", charmInput("", "10"), 1},
		{"missing title", ItemInput{ProductID: "charm1", UnitPrice: decimal.NewFromInt(10)}, 1},
		{"negative price", charmInput("charm1", "-1"), 1},
		{"zero quantity", charmInput("charm1", "10"), 0},
		{"quantity over limit", charmInput("charm1", "10"), 11},
	}

	for _, tc := range cases {
		if _, err := store.AddItem(tc.input, tc.qty, AddOptions{}); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
	}

	if len(store.Items()) != 0 {
		t.Fatal("failed adds must not mutate the cart")
	}
	if store.Undo() {
		t.Fatal("failed adds must not create history entries")
	}
}

func TestAddItemMergesNonCustomLines(t *testing.T) {
	t.Parallel()

	store := newTestStore()

	first, err := store.AddItem(charmInput("charm1", "25.00"), 2, AddOptions{})
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	second, err := store.AddItem(charmInput("charm1", "25.00"), 3, AddOptions{})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if first.CartItemID != second.CartItemID {
		t.Fatal("equivalent non-custom lines must merge into one")
	}
	items := store.Items()
	if len(items) != 1 {
		t.Fatalf("got %d lines, want 1", len(items))
	}
	if items[0].Quantity != 5 {
		t.Fatalf("merged quantity = %d, want 5", items[0].Quantity)
	}
	assertDecimal(t, "merged total", items[0].TotalPrice, "125.00")
}

func TestAddItemCustomDesignsStayDistinct(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	design := &DesignSnapshot{Components: []DesignComponent{{InventoryID: uuid.New(), Placement: "center"}}}
	input := ItemInput{
		ProductID:      "custom-bracelet",
		Title:          "Custom Bracelet",
		UnitPrice:      decimal.RequireFromString("40.00"),
		IsCustomDesign: true,
		Design:         design,
	}

	first, err := store.AddItem(input, 1, AddOptions{SkipValidation: true})
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	second, err := store.AddItem(input, 1, AddOptions{SkipValidation: true})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if first.CartItemID == second.CartItemID {
		t.Fatal("custom designs must never merge")
	}
	if len(store.Items()) != 2 {
		t.Fatalf("got %d lines, want 2", len(store.Items()))
	}
}

func TestAddItemCapacityLimits(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	for i, id := range []string{"a", "b", "c"} {
		if _, err := store.AddItem(charmInput(id, "5.00"), 1, AddOptions{}); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	_, err := store.AddItem(charmInput("d", "5.00"), 1, AddOptions{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCapacity {
		t.Fatalf("expected capacity error for line limit, got %v", err)
	}

	// Merging past the per-item quantity limit is a capacity failure too.
	if _, err := store.AddItem(charmInput("a", "5.00"), 10, AddOptions{}); err == nil {
		t.Fatal("expected capacity error for merged quantity")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCapacity {
		t.Fatalf("unexpected error %v", err)
	}

	items := store.Items()
	if len(items) != 3 || items[0].Quantity != 1 {
		t.Fatal("failed adds must not mutate the cart")
	}
}

func TestRemoveAndUpdateQuantity(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	item, err := store.AddItem(charmInput("charm1", "25.00"), 2, AddOptions{})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := store.UpdateItemQuantity(item.CartItemID, 4); err != nil {
		t.Fatalf("update: %v", err)
	}
	items := store.Items()
	if items[0].Quantity != 4 {
		t.Fatalf("quantity = %d, want 4", items[0].Quantity)
	}
	assertDecimal(t, "total", items[0].TotalPrice, "100.00")

	if err := store.UpdateItemQuantity(uuid.New(), 1); err == nil {
		t.Fatal("expected not found for unknown line")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error %v", err)
	}

	if err := store.RemoveItem(item.CartItemID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.RemoveItem(item.CartItemID); err == nil {
		t.Fatal("expected not found for removed line")
	}
	if len(store.Items()) != 0 {
		t.Fatal("cart should be empty after remove")
	}
}

func TestClearCartIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	store.ClearCart()
	if store.Undo() {
		t.Fatal("clearing an empty cart must not create history")
	}

	if _, err := store.AddItem(charmInput("charm1", "25.00"), 1, AddOptions{}); err != nil {
		t.Fatalf("add: %v", err)
	}
	store.ClearCart()
	if len(store.Items()) != 0 {
		t.Fatal("cart should be empty after clear")
	}
	store.ClearCart()
	if len(store.Items()) != 0 {
		t.Fatal("second clear should be a no-op")
	}
}

func TestUndoRedoRestoreExactSnapshots(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	if _, err := store.AddItem(charmInput("charm1", "25.00"), 2, AddOptions{}); err != nil {
		t.Fatalf("add: %v", err)
	}
	before := store.Snapshot()

	if _, err := store.AddItem(charmInput("charm2", "10.00"), 1, AddOptions{}); err != nil {
		t.Fatalf("add: %v", err)
	}
	after := store.Snapshot()

	if !store.Undo() {
		t.Fatal("undo should succeed")
	}
	if got := store.Snapshot(); !snapshotsEqual(got, before) {
		t.Fatalf("undo snapshot mismatch:\n got %+v\nwant %+v", got, before)
	}

	if !store.Redo() {
		t.Fatal("redo should succeed")
	}
	if got := store.Snapshot(); !snapshotsEqual(got, after) {
		t.Fatalf("redo snapshot mismatch:\n got %+v\nwant %+v", got, after)
	}
}

func TestUndoRedoBoundaries(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	if store.Undo() {
		t.Fatal("undo on fresh store should report false")
	}
	if store.Redo() {
		t.Fatal("redo on fresh store should report false")
	}

	if _, err := store.AddItem(charmInput("charm1", "25.00"), 1, AddOptions{}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !store.Undo() {
		t.Fatal("undo should succeed after a mutation")
	}
	if !store.Redo() {
		t.Fatal("redo should succeed after an undo")
	}

	// A new mutation clears the redo stack.
	if !store.Undo() {
		t.Fatal("undo should succeed")
	}
	if _, err := store.AddItem(charmInput("charm3", "1.00"), 1, AddOptions{}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if store.Redo() {
		t.Fatal("redo must be cleared by a new mutation")
	}
}

func TestItemCountMatchesQuantities(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	a, _ := store.AddItem(charmInput("charm1", "5.00"), 2, AddOptions{})
	b, _ := store.AddItem(charmInput("charm2", "7.50"), 3, AddOptions{})
	if err := store.UpdateItemQuantity(a.CartItemID, 4); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.RemoveItem(b.CartItemID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	summary := store.Summary()
	wantCount := 0
	wantSubtotal := decimal.Zero
	for _, item := range store.Items() {
		wantCount += item.Quantity
		wantSubtotal = wantSubtotal.Add(item.TotalPrice)
	}
	if summary.ItemCount != wantCount {
		t.Fatalf("item count = %d, want %d", summary.ItemCount, wantCount)
	}
	if !summary.Subtotal.Equal(wantSubtotal) {
		t.Fatalf("subtotal = %s, want %s", summary.Subtotal, wantSubtotal)
	}
}

func TestRestoreResetsHistory(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	if _, err := store.AddItem(charmInput("charm1", "25.00"), 2, AddOptions{}); err != nil {
		t.Fatalf("add: %v", err)
	}
	snapshot := store.Snapshot()

	restored := newTestStore()
	restored.Restore(snapshot)
	if restored.Undo() {
		t.Fatal("restored cart should start with an empty history")
	}
	if got := restored.Snapshot(); !snapshotsEqual(got, snapshot) {
		t.Fatalf("restore mismatch:\n got %+v\nwant %+v", got, snapshot)
	}
}

func TestNeedsHydration(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	if !store.NeedsHydration() {
		t.Fatal("a brand-new store needs hydration")
	}

	store.MarkHydrated()
	if store.NeedsHydration() {
		t.Fatal("a consulted store must not re-hydrate")
	}

	mutated := newTestStore()
	if _, err := mutated.AddItem(charmInput("charm1", "25.00"), 1, AddOptions{}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if mutated.NeedsHydration() {
		t.Fatal("a mutated store must not hydrate")
	}
	if !mutated.Undo() {
		t.Fatal("undo should apply")
	}
	// Back at version zero with no items, but the history is live.
	if mutated.NeedsHydration() {
		t.Fatal("an undone-to-empty store must keep its history, not hydrate")
	}

	restored := newTestStore()
	restored.Restore(mutated.Snapshot())
	if restored.NeedsHydration() {
		t.Fatal("a restored store must not hydrate again")
	}
}

// snapshotsEqual compares snapshots with decimal-aware equality.
func snapshotsEqual(a, b CartSnapshot) bool {
	if a.Version != b.Version || a.SessionID != b.SessionID || a.UserID != b.UserID {
		return false
	}
	if !a.LastUpdated.Equal(b.LastUpdated) {
		return false
	}
	if !summariesEqual(a.Summary, b.Summary) {
		return false
	}
	if len(a.Items) != len(b.Items) {
		return false
	}
	for i := range a.Items {
		if !itemsEqual(a.Items[i], b.Items[i]) {
			return false
		}
	}
	return true
}

func summariesEqual(a, b CartSummary) bool {
	return a.Subtotal.Equal(b.Subtotal) &&
		a.Tax.Equal(b.Tax) &&
		a.Shipping.Equal(b.Shipping) &&
		a.Discount.Equal(b.Discount) &&
		a.Total.Equal(b.Total) &&
		a.ItemCount == b.ItemCount
}

func itemsEqual(a, b CartItem) bool {
	return a.CartItemID == b.CartItemID &&
		a.ProductID == b.ProductID &&
		a.Title == b.Title &&
		a.UnitPrice.Equal(b.UnitPrice) &&
		a.Quantity == b.Quantity &&
		a.TotalPrice.Equal(b.TotalPrice) &&
		a.IsCustomDesign == b.IsCustomDesign &&
		reflect.DeepEqual(a.Design, b.Design) &&
		a.AddedAt.Equal(b.AddedAt) &&
		a.LastUpdated.Equal(b.LastUpdated)
}
