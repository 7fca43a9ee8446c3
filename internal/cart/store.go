package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/internal/identity"
	"github.com/angelmondragon/storefront/internal/kvstore"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// Phase is the lifecycle state of a Store for its current identity.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
)

const (
	OpAdd    = "add"
	OpRemove = "remove"
	OpUpdate = "update"
	OpClear  = "clear"
)

const (
	LoadHit     = "hit"
	LoadMiss    = "miss"
	LoadCorrupt = "corrupt"
	LoadError   = "error"
)

// KeyValueStore is the subset of kvstore.Store the cart needs.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Recorder receives cart counters.
type Recorder interface {
	IncMutation(op string)
	IncLoad(outcome string)
	IncPersistFailure()
}

// EventSink receives applied mutations.
type EventSink interface {
	Publish(ctx context.Context, event Event)
}

// Event describes a mutation applied to a cart.
type Event struct {
	Type        string    `json:"type"`
	IdentityKey string    `json:"identity_key"`
	ProductID   string    `json:"product_id,omitempty"`
	Quantity    int       `json:"quantity,omitempty"`
	ItemCount   int       `json:"item_count"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// StoreParams wires a Store. Only KV is required.
type StoreParams struct {
	KV      KeyValueStore
	Logger  *logger.Logger
	Metrics Recorder
	Events  EventSink
	Now     func() time.Time
}

// Store owns the in-memory cart of whoever currently uses a cart session and
// keeps it in sync with per-identity storage.
//
// A Store starts in PhaseLoading with no identity. Mutations are applied and
// persisted only in PhaseReady; callers should gate on Loading. None of the
// methods return errors: storage failures degrade to an empty or unsaved
// cart and are logged.
type Store struct {
	kv      KeyValueStore
	logg    *logger.Logger
	metrics Recorder
	events  EventSink
	now     func() time.Time

	// loadMu serializes identity loads.
	loadMu sync.Mutex

	// mu guards the fields below and is held across persistence writes so
	// snapshots land in mutation order.
	mu       sync.RWMutex
	phase    Phase
	key      string
	identity *identity.Identity
	lines    []Line
}

// NewStore validates the collaborators and returns a Store in PhaseLoading.
func NewStore(params StoreParams) (*Store, error) {
	if params.KV == nil {
		return nil, fmt.Errorf("key-value store required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		kv:      params.KV,
		logg:    logg,
		metrics: params.Metrics,
		events:  params.Events,
		now:     now,
		phase:   PhaseLoading,
	}, nil
}

// Bind subscribes the store to identity transitions and returns the
// unsubscribe function.
func (s *Store) Bind(obs identity.Observer) func() {
	return obs.Subscribe(s.OnIdentityChanged)
}

// OnIdentityChanged replaces the in-memory cart with the one persisted for id.
// A nil id selects the guest cart. Nothing is written during the load.
func (s *Store) OnIdentityChanged(ctx context.Context, id *identity.Identity) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	key := KeyFor(id)
	s.mu.Lock()
	s.phase = PhaseLoading
	s.key = key
	s.identity = id.Clone()
	s.lines = nil
	s.mu.Unlock()

	lines := s.load(context.WithoutCancel(s.logg.WithCart(ctx, key, string(PhaseLoading))), key)

	s.mu.Lock()
	s.lines = lines
	s.phase = PhaseReady
	s.mu.Unlock()

	ctx = s.logg.WithField(s.logg.WithCart(ctx, key, string(PhaseReady)), logger.FieldItemCount, countLines(lines))
	s.logg.Debug(ctx, "cart loaded")
}

func (s *Store) load(ctx context.Context, key string) []Line {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			s.incLoad(LoadMiss)
			return nil
		}
		s.incLoad(LoadError)
		s.logg.Error(s.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "cart load failed, starting empty", err)
		return nil
	}

	lines, skipped, err := Decode(raw)
	if err != nil {
		s.incLoad(LoadCorrupt)
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "stored cart unreadable, starting empty")
		return nil
	}
	if skipped > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "skipped_lines", skipped), "stored cart had invalid lines")
	}
	s.incLoad(LoadHit)
	return lines
}

// AddItem appends product or increases the quantity of its existing line.
// Quantities below 1 count as 1; totals stop at MaxQuantity.
func (s *Store) AddItem(ctx context.Context, product Product, qty int) {
	if qty < 1 {
		qty = 1
	}
	qty = capQuantity(qty)
	s.mutate(ctx, OpAdd, product.ID, func(lines []Line) ([]Line, int) {
		for i := range lines {
			if lines[i].ProductID == product.ID {
				lines[i].Quantity = addQuantity(lines[i].Quantity, qty)
				return lines, lines[i].Quantity
			}
		}
		return append(lines, lineFromProduct(product, qty)), qty
	})
}

// RemoveItem drops the line for productID. Unknown ids leave the cart as is.
func (s *Store) RemoveItem(ctx context.Context, productID string) {
	s.mutate(ctx, OpRemove, productID, func(lines []Line) ([]Line, int) {
		return removeLine(lines, productID), 0
	})
}

// UpdateQuantity sets the quantity of productID's line, removing it when qty
// is below 1 and capping it at MaxQuantity. Unknown ids leave the cart as is.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, qty int) {
	qty = capQuantity(qty)
	s.mutate(ctx, OpUpdate, productID, func(lines []Line) ([]Line, int) {
		if qty < 1 {
			return removeLine(lines, productID), 0
		}
		for i := range lines {
			if lines[i].ProductID == productID {
				lines[i].Quantity = qty
				break
			}
		}
		return lines, qty
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, OpClear, "", func([]Line) ([]Line, int) {
		return nil, 0
	})
}

func (s *Store) mutate(ctx context.Context, op, productID string, apply func([]Line) ([]Line, int)) {
	s.mu.Lock()
	ctx = s.logg.WithCartOp(s.logg.WithCart(ctx, s.key, string(s.phase)), op, productID)
	if s.phase != PhaseReady {
		s.mu.Unlock()
		s.logg.Warn(ctx, "cart mutation ignored while loading")
		return
	}

	var qty int
	s.lines, qty = apply(s.lines)
	s.persist(context.WithoutCancel(ctx))
	event := Event{
		Type:        op,
		IdentityKey: s.key,
		ProductID:   productID,
		Quantity:    qty,
		ItemCount:   countLines(s.lines),
		OccurredAt:  s.now().UTC(),
	}
	s.mu.Unlock()

	s.logg.Debug(s.logg.WithField(ctx, logger.FieldItemCount, event.ItemCount), "cart mutation applied")
	if s.metrics != nil {
		s.metrics.IncMutation(op)
	}
	if s.events != nil {
		s.events.Publish(ctx, event)
	}
}

// persist writes the full snapshot under the current key. Callers hold mu.
func (s *Store) persist(ctx context.Context) {
	value, err := Encode(s.lines)
	if err == nil {
		err = s.kv.Set(ctx, s.key, value)
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncPersistFailure()
		}
		s.logg.Error(s.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "cart persist failed", err)
	}
}

// ItemCount returns the sum of line quantities.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countLines(s.lines)
}

// Lines returns a copy of the current lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Line, len(s.lines))
	for i, line := range s.lines {
		out[i] = line.clone()
	}
	return out
}

// Loading reports whether an identity load is pending or in flight.
func (s *Store) Loading() bool {
	return s.Phase() == PhaseLoading
}

func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// IdentityKey returns the storage key of the active cart, empty before the
// first identity is observed.
func (s *Store) IdentityKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// Identity returns the identity owning the active cart.
func (s *Store) Identity() *identity.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Clone()
}

// Subtotal sums price times quantity over lines with a readable price.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, line := range s.lines {
		price, ok := line.Price()
		if !ok {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

func (s *Store) incLoad(outcome string) {
	if s.metrics != nil {
		s.metrics.IncLoad(outcome)
	}
}

func removeLine(lines []Line, productID string) []Line {
	for i := range lines {
		if lines[i].ProductID == productID {
			return append(lines[:i:i], lines[i+1:]...)
		}
	}
	return lines
}

func countLines(lines []Line) int {
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	return total
}
