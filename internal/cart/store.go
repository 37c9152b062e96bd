package cart

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/charmforge/charmforge-backend/pkg/config"
	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
)

// Limits bounds cart growth. Zero values fall back to the defaults.
type Limits struct {
	MaxItems           int
	MaxQuantityPerItem int
}

const (
	defaultMaxItems           = 50
	defaultMaxQuantityPerItem = 10
)

// LimitsFromConfig maps the cart config onto Limits.
func LimitsFromConfig(cfg config.CartConfig) Limits {
	return Limits{
		MaxItems:           cfg.MaxItems,
		MaxQuantityPerItem: cfg.MaxQuantityPerItem,
	}
}

func (l Limits) normalized() Limits {
	if l.MaxItems <= 0 {
		l.MaxItems = defaultMaxItems
	}
	if l.MaxQuantityPerItem <= 0 {
		l.MaxQuantityPerItem = defaultMaxQuantityPerItem
	}
	return l
}

// ItemInput is the payload for AddItem. InventoryID links a stock line for
// non-custom products; custom designs derive reservations from Design.
type ItemInput struct {
	ProductID      string
	Title          string
	UnitPrice      decimal.Decimal
	IsCustomDesign bool
	InventoryID    *uuid.UUID
	Design         *DesignSnapshot
}

// AddOptions tweaks AddItem behavior. SkipValidation is used for custom
// designs whose payload was validated upstream by the design editor.
type AddOptions struct {
	SkipValidation bool
}

// Store is the authoritative in-memory cart for one session. Mutations are
// serialized by an internal mutex so handlers and parallel tests stay safe.
// Every mutation pushes a history entry; failed calls leave state untouched.
type Store struct {
	mu sync.Mutex

	sessionID string
	userID    string
	limits    Limits
	pricing   PricingPolicy

	items   []CartItem
	version int
	updated time.Time

	undoStack []CartSnapshot
	redoStack []CartSnapshot

	hydrated bool

	now func() time.Time
}

// NewStore builds an empty cart bound to a session.
func NewStore(sessionID string, limits Limits, pricing PricingPolicy) *Store {
	return &Store{
		sessionID: sessionID,
		limits:    limits.normalized(),
		pricing:   pricing,
		now:       time.Now,
	}
}

// SetUserID stamps the owning user once the session authenticates.
func (s *Store) SetUserID(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}

// AddItem validates the input, merges equivalent non-custom lines, and
// appends new lines subject to the cart-wide item limit.
func (s *Store) AddItem(input ItemInput, quantity int, opts AddOptions) (CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !opts.SkipValidation {
		if err := s.validateInput(input, quantity); err != nil {
			return CartItem{}, err
		}
	} else if quantity < 1 {
		return CartItem{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	// Equivalent non-custom lines merge; custom designs are always distinct.
	if !input.IsCustomDesign {
		for idx, existing := range s.items {
			if existing.IsCustomDesign || existing.ProductID != input.ProductID {
				continue
			}
			merged := existing.Quantity + quantity
			if !opts.SkipValidation && merged > s.limits.MaxQuantityPerItem {
				return CartItem{}, pkgerrors.Newf(pkgerrors.CodeCapacity,
					"quantity %d exceeds the per-item limit of %d", merged, s.limits.MaxQuantityPerItem)
			}
			s.pushHistory()
			now := s.now()
			line := &s.items[idx]
			line.Quantity = merged
			line.TotalPrice = line.UnitPrice.Mul(decimal.NewFromInt(int64(merged)))
			line.LastUpdated = now
			s.bump(now)
			return line.clone(), nil
		}
	}

	if len(s.items) >= s.limits.MaxItems {
		return CartItem{}, pkgerrors.Newf(pkgerrors.CodeCapacity,
			"cart is limited to %d lines", s.limits.MaxItems)
	}

	s.pushHistory()
	now := s.now()
	item := CartItem{
		CartItemID:     uuid.New(),
		ProductID:      input.ProductID,
		Title:          input.Title,
		UnitPrice:      input.UnitPrice,
		Quantity:       quantity,
		TotalPrice:     input.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		IsCustomDesign: input.IsCustomDesign,
		Design:         input.Design.clone(),
		AddedAt:        now,
		LastUpdated:    now,
	}
	if input.InventoryID != nil {
		id := *input.InventoryID
		item.InventoryID = &id
	}
	s.items = append(s.items, item)
	s.bump(now)
	return item.clone(), nil
}

// RemoveItem drops the identified line.
func (s *Store) RemoveItem(cartItemID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(cartItemID)
	if idx < 0 {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "cart item %s not found", cartItemID)
	}

	s.pushHistory()
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.bump(s.now())
	return nil
}

// UpdateItemQuantity replaces the line's quantity and recomputes its total.
func (s *Store) UpdateItemQuantity(cartItemID uuid.UUID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 || quantity > s.limits.MaxQuantityPerItem {
		return pkgerrors.Newf(pkgerrors.CodeValidation,
			"quantity must be between 1 and %d", s.limits.MaxQuantityPerItem)
	}
	idx := s.indexOf(cartItemID)
	if idx < 0 {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "cart item %s not found", cartItemID)
	}

	s.pushHistory()
	now := s.now()
	line := &s.items[idx]
	line.Quantity = quantity
	line.TotalPrice = line.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	line.LastUpdated = now
	s.bump(now)
	return nil
}

// ClearCart empties the cart. Clearing an already-empty cart is a no-op and
// does not grow the history.
func (s *Store) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return
	}
	s.pushHistory()
	s.items = nil
	s.bump(s.now())
}

// Undo steps back one history entry. Returns false when there is nothing to
// undo.
func (s *Store) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.undoStack) == 0 {
		return false
	}
	s.redoStack = append(s.redoStack, s.currentSnapshot())
	prev := s.undoStack[len(s.undoStack)-1]
	s.undoStack = s.undoStack[:len(s.undoStack)-1]
	s.applySnapshot(prev)
	return true
}

// Redo re-applies the most recently undone entry. Returns false when there is
// nothing to redo.
func (s *Store) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.redoStack) == 0 {
		return false
	}
	s.undoStack = append(s.undoStack, s.currentSnapshot())
	next := s.redoStack[len(s.redoStack)-1]
	s.redoStack = s.redoStack[:len(s.redoStack)-1]
	s.applySnapshot(next)
	return true
}

// Summary recomputes the derived totals from the current items.
func (s *Store) Summary() CartSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeSummary(s.items, s.pricing)
}

// Items returns a deep copy of the current lines.
func (s *Store) Items() []CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Snapshot captures the current state as the unit of persistence.
func (s *Store) Snapshot() CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSnapshot()
}

// Restore replaces the cart state from a persisted snapshot and resets the
// history, so a freshly loaded cart starts with a clean undo stack.
func (s *Store) Restore(snapshot CartSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applySnapshot(snapshot)
	if snapshot.UserID != "" {
		s.userID = snapshot.UserID
	}
	s.undoStack = nil
	s.redoStack = nil
	s.hydrated = true
}

// NeedsHydration reports whether the store has neither local activity nor a
// prior load from persistence. An undone-to-empty cart still carries history
// and must not be overwritten by a re-fetch.
func (s *Store) NeedsHydration() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.hydrated &&
		s.version == 0 &&
		len(s.items) == 0 &&
		len(s.undoStack) == 0 &&
		len(s.redoStack) == 0
}

// MarkHydrated records that persistence was consulted and had nothing, so the
// next request does not re-fetch.
func (s *Store) MarkHydrated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrated = true
}

func (s *Store) validateInput(input ItemInput, quantity int) error {
	if strings.TrimSpace(input.ProductID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.UnitPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price must be non-negative")
	}
	if quantity < 1 || quantity > s.limits.MaxQuantityPerItem {
		return pkgerrors.Newf(pkgerrors.CodeValidation,
			"quantity must be between 1 and %d", s.limits.MaxQuantityPerItem)
	}
	return nil
}

func (s *Store) indexOf(cartItemID uuid.UUID) int {
	for idx, item := range s.items {
		if item.CartItemID == cartItemID {
			return idx
		}
	}
	return -1
}

func (s *Store) currentSnapshot() CartSnapshot {
	return CartSnapshot{
		Items:       cloneItems(s.items),
		Summary:     ComputeSummary(s.items, s.pricing),
		Version:     s.version,
		SessionID:   s.sessionID,
		UserID:      s.userID,
		LastUpdated: s.updated,
	}
}

func (s *Store) applySnapshot(snapshot CartSnapshot) {
	s.items = cloneItems(snapshot.Items)
	s.version = snapshot.Version
	s.updated = snapshot.LastUpdated
}

// pushHistory records the pre-mutation state and clears the redo stack, the
// standard linear undo model.
func (s *Store) pushHistory() {
	s.undoStack = append(s.undoStack, s.currentSnapshot())
	s.redoStack = nil
}

func (s *Store) bump(now time.Time) {
	s.version++
	s.updated = now
}
