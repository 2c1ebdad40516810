package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/Harshitk-cp/psychograph/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// mockCreditStore implements domain.CreditStore. Like the Postgres store, a
// tenant's lock is taken by the first tx.Ledger call and released when fn
// returns. Writes apply only when fn returns nil.
type mockCreditStore struct {
	mu      sync.Mutex
	ledgers map[uuid.UUID]*domain.CreditLedger
	usage   map[uuid.UUID][]domain.UsageEvent
	locks   map[uuid.UUID]*sync.Mutex

	lockErr error
	// beforeLock runs once, just before the next tx.Ledger call blocks on
	// the tenant lock.
	beforeLock func()
}

func newMockCreditStore() *mockCreditStore {
	return &mockCreditStore{
		ledgers: make(map[uuid.UUID]*domain.CreditLedger),
		usage:   make(map[uuid.UUID][]domain.UsageEvent),
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

func (m *mockCreditStore) put(l domain.CreditLedger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers[l.TenantID] = &l
}

func (m *mockCreditStore) ledger(tenantID uuid.UUID) domain.CreditLedger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.ledgers[tenantID]
}

func (m *mockCreditStore) usageCount(tenantID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.usage[tenantID])
}

func (m *mockCreditStore) tenantLock(tenantID uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[tenantID] = l
	}
	return l
}

func (m *mockCreditStore) takeBeforeLock() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	hook := m.beforeLock
	m.beforeLock = nil
	return hook
}

func (m *mockCreditStore) committedUsage(tenantID uuid.UUID) []domain.UsageEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.UsageEvent(nil), m.usage[tenantID]...)
}

type mockLedgerTx struct {
	store    *mockCreditStore
	tenantID uuid.UUID
	locked   bool
	ledger   *domain.CreditLedger
	inserted []domain.UsageEvent
	saved    bool
}

func (tx *mockLedgerTx) Ledger(ctx context.Context) (*domain.CreditLedger, error) {
	if !tx.locked {
		if hook := tx.store.takeBeforeLock(); hook != nil {
			hook()
		}
		tx.store.tenantLock(tx.tenantID).Lock()
		tx.locked = true

		tx.store.mu.Lock()
		if l, ok := tx.store.ledgers[tx.tenantID]; ok {
			cp := *l
			tx.ledger = &cp
		}
		tx.store.mu.Unlock()
	}
	if tx.ledger == nil {
		return nil, store.ErrNotFound
	}
	l := *tx.ledger
	return &l, nil
}

func (tx *mockLedgerTx) visibleUsage() []domain.UsageEvent {
	return append(tx.store.committedUsage(tx.tenantID), tx.inserted...)
}

func (tx *mockLedgerTx) FindUsage(ctx context.Context, key string) (*domain.UsageEvent, error) {
	for _, u := range tx.visibleUsage() {
		if u.IdempotencyKey == key {
			u := u
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (tx *mockLedgerTx) SaveLedger(ctx context.Context, l *domain.CreditLedger) error {
	cp := *l
	tx.ledger = &cp
	tx.saved = true
	return nil
}

func (tx *mockLedgerTx) InsertUsage(ctx context.Context, u *domain.UsageEvent) error {
	for _, prior := range tx.visibleUsage() {
		if prior.IdempotencyKey == u.IdempotencyKey {
			return store.ErrConflict
		}
	}
	u.ID = uuid.New()
	u.TenantID = tx.tenantID
	u.CreatedAt = time.Now()
	tx.inserted = append(tx.inserted, *u)
	return nil
}

func (m *mockCreditStore) WithLedgerLock(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	if m.lockErr != nil {
		return m.lockErr
	}

	tx := &mockLedgerTx{store: m, tenantID: tenantID}
	defer func() {
		if tx.locked {
			m.tenantLock(tenantID).Unlock()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.saved {
		m.ledgers[tenantID] = tx.ledger
	}
	m.usage[tenantID] = append(m.usage[tenantID], tx.inserted...)
	return nil
}

func (m *mockCreditStore) GetLedger(ctx context.Context, tenantID uuid.UUID) (*domain.CreditLedger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ledgers[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *mockCreditStore) UpsertLedger(ctx context.Context, l *domain.CreditLedger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.ledgers[l.TenantID] = &cp
	return nil
}

func (m *mockCreditStore) ListUsage(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.UsageEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.UsageEvent(nil), m.usage[tenantID]...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// mockAuditStore implements domain.AuditStore.
type mockAuditStore struct {
	mu        sync.Mutex
	records   []domain.AuditRecord
	lists     int
	createErr error
	deleteErr error
}

func newMockAuditStore() *mockAuditStore {
	return &mockAuditStore{}
}

func (m *mockAuditStore) Create(ctx context.Context, r *domain.AuditRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	m.records = append(m.records, *r)
	return nil
}

func (m *mockAuditStore) List(ctx context.Context, tenantID uuid.UUID, f domain.AuditFilter) ([]domain.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	var out []domain.AuditRecord
	for _, r := range m.records {
		if r.TenantID != tenantID {
			continue
		}
		if !f.Start.IsZero() && r.CreatedAt.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && !r.CreatedAt.Before(f.End) {
			continue
		}
		if f.Operation != "" && r.Operation != f.Operation {
			continue
		}
		if f.Success != nil && r.Success != *f.Success {
			continue
		}
		out = append(out, r)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockAuditStore) Tally(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]domain.AuditTally, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type group struct {
		op      string
		success bool
		code    domain.ResultCode
	}
	idx := make(map[group]int)
	var out []domain.AuditTally
	for _, r := range m.records {
		if r.TenantID != tenantID || r.CreatedAt.Before(start) || !r.CreatedAt.Before(end) {
			continue
		}
		g := group{r.Operation, r.Success, r.ErrorType}
		i, ok := idx[g]
		if !ok {
			i = len(out)
			idx[g] = i
			out = append(out, domain.AuditTally{Operation: r.Operation, Success: r.Success, ErrorType: r.ErrorType})
		}
		out[i].Count++
		out[i].LatencyMsSum += r.LatencyMs
	}
	return out, nil
}

func (m *mockAuditStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	var deleted int64
	for _, r := range m.records {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

func (m *mockAuditStore) all() []domain.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditRecord(nil), m.records...)
}

// mockEventStore implements domain.EventStore.
type mockEventStore struct {
	events map[string][]domain.BehavioralEvent
	err    error
}

func newMockEventStore() *mockEventStore {
	return &mockEventStore{events: make(map[string][]domain.BehavioralEvent)}
}

func (m *mockEventStore) add(tenantID uuid.UUID, userID string, events ...domain.BehavioralEvent) {
	key := tenantID.String() + ":" + userID
	m.events[key] = append(m.events[key], events...)
}

func (m *mockEventStore) ListRecent(ctx context.Context, tenantID uuid.UUID, userID string, limit int) ([]domain.BehavioralEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := append([]domain.BehavioralEvent(nil), m.events[tenantID.String()+":"+userID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// mockProfileStore implements domain.ProfileStore.
type mockProfileStore struct {
	mu        sync.Mutex
	profiles  map[string]*domain.FusedProfile
	upsertErr error
	similar   []domain.ProfileWithScore
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{profiles: make(map[string]*domain.FusedProfile)}
}

func (m *mockProfileStore) Upsert(ctx context.Context, p *domain.FusedProfile) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := p.TenantID.String() + ":" + p.UserID
	if prior, ok := m.profiles[key]; ok {
		p.ID = prior.ID
	} else {
		p.ID = uuid.New()
	}
	p.UpdatedAt = time.Now()
	cp := *p
	m.profiles[key] = &cp
	return nil
}

func (m *mockProfileStore) Get(ctx context.Context, tenantID uuid.UUID, userID string) (*domain.FusedProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[tenantID.String()+":"+userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProfileStore) FindSimilar(ctx context.Context, tenantID uuid.UUID, features domain.FeatureVector, excludeUserID string, limit int) ([]domain.ProfileWithScore, error) {
	var out []domain.ProfileWithScore
	for _, p := range m.similar {
		if p.UserID != excludeUserID {
			out = append(out, p)
		}
	}
	return out, nil
}

// mockProfileAuditStore implements domain.ProfileAuditStore.
type mockProfileAuditStore struct {
	mu        sync.Mutex
	audits    []domain.ProfileUpdateAudit
	appendErr error
}

func (m *mockProfileAuditStore) Append(ctx context.Context, a *domain.ProfileUpdateAudit) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.audits = append(m.audits, *a)
	return nil
}

func (m *mockProfileAuditStore) ListByUser(ctx context.Context, tenantID uuid.UUID, userID string, limit int) ([]domain.ProfileUpdateAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ProfileUpdateAudit
	for i := len(m.audits) - 1; i >= 0; i-- {
		a := m.audits[i]
		if a.TenantID == tenantID && a.UserID == userID {
			out = append(out, a)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// mockTenantStore implements domain.TenantStore.
type mockTenantStore struct {
	byHash map[string]*domain.Tenant
}

func newMockTenantStore() *mockTenantStore {
	return &mockTenantStore{byHash: make(map[string]*domain.Tenant)}
}

func (m *mockTenantStore) Create(ctx context.Context, t *domain.Tenant) error {
	for _, existing := range m.byHash {
		if existing.Name == t.Name {
			return store.ErrConflict
		}
	}
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.byHash[t.APIKeyHash] = t
	return nil
}

func (m *mockTenantStore) GetByAPIKeyHash(ctx context.Context, hash string) (*domain.Tenant, error) {
	t, ok := m.byHash[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

var errStoreDown = errors.New("store unavailable")

// event builders

func evt(tenantID uuid.UUID, userID string, typ domain.EventType, at time.Time, payload map[string]any) domain.BehavioralEvent {
	return domain.BehavioralEvent{ID: uuid.New(), TenantID: tenantID, UserID: userID, Type: typ, Timestamp: at, Payload: payload}
}

func pageView(page string, dwellMs float64) map[string]any {
	return map[string]any{"page": page, "dwell_ms": dwellMs}
}
