package orders

import (
	"context"
	"strings"
	"sync"
	"time"

	"sonagent/internal/logging"
)

// cacheTTL is how long fetched rows are reused before the source is read
// again. Order sheets change slowly; five minutes matches how often staff
// update them.
const cacheTTL = 5 * time.Minute

// Source fetches order rows. The spreadsheet ID is meaningful for the
// Google Sheets source and ignored by local file sources.
type Source interface {
	Fetch(ctx context.Context, spreadsheetID string) ([]Order, error)
	Name() string
}

// Match is a search hit: the order plus the field the query matched on.
type Match struct {
	Order Order
	Field string
}

// Handler answers order lookups against a Source, caching fetched rows
// per spreadsheet so repeated questions in one conversation do not hammer
// the sheet API.
type Handler struct {
	source Source

	mu    sync.Mutex
	cache map[string]cacheEntry
	now   func() time.Time
}

type cacheEntry struct {
	orders []Order
	loaded time.Time
}

// NewHandler wraps a source with lookup caching.
func NewHandler(source Source) *Handler {
	return &Handler{
		source: source,
		cache:  make(map[string]cacheEntry),
		now:    time.Now,
	}
}

// SourceName reports the underlying source, for the health endpoint.
func (h *Handler) SourceName() string { return h.source.Name() }

// Orders returns the rows for a spreadsheet, from cache when fresh.
func (h *Handler) Orders(ctx context.Context, spreadsheetID string) ([]Order, error) {
	h.mu.Lock()
	if entry, ok := h.cache[spreadsheetID]; ok && h.now().Sub(entry.loaded) < cacheTTL {
		h.mu.Unlock()
		logging.OrdersDebug("using cached orders for %q (%d rows)", spreadsheetID, len(entry.orders))
		return entry.orders, nil
	}
	h.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryOrders, "fetch orders")
	list, err := h.source.Fetch(ctx, spreadsheetID)
	timer.Stop()
	if err != nil {
		return nil, err
	}
	logging.Orders("loaded %d orders from %s", len(list), h.source.Name())

	h.mu.Lock()
	h.cache[spreadsheetID] = cacheEntry{orders: list, loaded: h.now()}
	h.mu.Unlock()
	return list, nil
}

// Invalidate drops every cached sheet, forcing the next lookup to re-fetch.
func (h *Handler) Invalidate() {
	h.mu.Lock()
	h.cache = make(map[string]cacheEntry)
	h.mu.Unlock()
}

// Find locates the first order matching the query. The query may be an
// order code, a phone number or a customer name; matching is a normalized
// bidirectional substring test over those three fields. Returns nil when
// nothing matches.
func (h *Handler) Find(ctx context.Context, query, spreadsheetID string) (*Match, error) {
	list, err := h.Orders(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}

	queryClean := NormalizeQuery(query)
	if queryClean == "" {
		return nil, nil
	}

	for _, o := range list {
		fields := []struct {
			name  string
			value string
		}{
			{FieldCode, o.Code},
			{FieldPhone, o.Phone},
			{FieldCustomer, o.Customer},
		}
		for _, f := range fields {
			if f.value == "" {
				continue
			}
			valueClean := NormalizeQuery(f.value)
			if strings.Contains(valueClean, queryClean) || strings.Contains(queryClean, valueClean) {
				logging.Orders("found order %s (matched on %s)", o.Code, f.name)
				return &Match{Order: o, Field: f.name}, nil
			}
		}
	}

	logging.Orders("no order matched query %q", query)
	return nil, nil
}

// Stats summarizes the sheet for health checks and the status command.
func (h *Handler) Stats(ctx context.Context, spreadsheetID string) (Stats, error) {
	list, err := h.Orders(ctx, spreadsheetID)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(list), nil
}
