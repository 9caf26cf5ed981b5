// Package testutil provides in-memory fakes for service tests. The fakes
// enforce the same uniqueness and versioning rules as the postgres
// repositories so concurrency paths are testable without a database.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Info(string, ...ports.Field)  {}
func (NopLogger) Error(string, ...ports.Field) {}
func (NopLogger) Warn(string, ...ports.Field)  {}
func (NopLogger) Debug(string, ...ports.Field) {}

// FixedClock returns a settable instant.
type FixedClock struct {
	mu sync.Mutex
	T  time.Time
}

func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{T: t} }

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.T
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.T = c.T.Add(d)
}

// FakeTx is a no-op pgx.Tx so services that issue raw statements inside a
// transaction (advisory locks) run against the fakes.
type FakeTx struct{}

func (FakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return FakeTx{}, nil }
func (FakeTx) Commit(ctx context.Context) error          { return nil }
func (FakeTx) Rollback(ctx context.Context) error        { return nil }

func (FakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (FakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (FakeTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }

func (FakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return &pgconn.StatementDescription{}, nil
}

func (FakeTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (FakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (FakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (FakeTx) Conn() *pgx.Conn                                               { return nil }

// TxTracked is implemented by fakes whose writes roll back when a FakeDB
// transaction returns an error.
type TxTracked interface {
	Snapshot() (restore func())
}

// FakeDB satisfies ports.DBPort without a database. Fn runs with a FakeTx;
// the fake repositories ignore their tx argument. Fakes listed in Tracked
// are snapshot before fn and restored when fn fails, mirroring rollback.
// A non-nil Lock serializes transactions the way an advisory lock would.
type FakeDB struct {
	Tracked []TxTracked
	Lock    *sync.Mutex
}

func (db FakeDB) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if db.Lock != nil {
		db.Lock.Lock()
		defer db.Lock.Unlock()
	}
	restores := make([]func(), 0, len(db.Tracked))
	for _, tracked := range db.Tracked {
		restores = append(restores, tracked.Snapshot())
	}
	err := fn(ctx, FakeTx{})
	if err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
	}
	return err
}

func (FakeDB) HealthCheck(ctx context.Context) error { return nil }

// FakeIntentRepo is an in-memory ports.IntentRepository with real CAS
// semantics.
type FakeIntentRepo struct {
	mu      sync.Mutex
	intents map[uuid.UUID]*domain.PaymentIntent
}

func NewFakeIntentRepo() *FakeIntentRepo {
	return &FakeIntentRepo{intents: make(map[uuid.UUID]*domain.PaymentIntent)}
}

func cloneIntent(i *domain.PaymentIntent) *domain.PaymentIntent {
	c := *i
	return &c
}

func (r *FakeIntentRepo) Create(ctx context.Context, tx ports.DBTX, intent *domain.PaymentIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.intents {
		if existing.IdempotencyKey == intent.IdempotencyKey {
			return domain.ErrIdempotencyConflict.WithDetail("idempotency_key", intent.IdempotencyKey)
		}
	}
	r.intents[intent.ID] = cloneIntent(intent)
	return nil
}

func (r *FakeIntentRepo) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return nil, domain.ErrIntentNotFound
	}
	return cloneIntent(intent), nil
}

func (r *FakeIntentRepo) GetByIdempotencyKey(ctx context.Context, tx ports.DBTX, key string) (*domain.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, intent := range r.intents {
		if intent.IdempotencyKey == key {
			return cloneIntent(intent), nil
		}
	}
	return nil, domain.ErrIntentNotFound
}

func (r *FakeIntentRepo) GetByProviderRef(ctx context.Context, tx ports.DBTX, provider, providerRef string) (*domain.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, intent := range r.intents {
		if intent.Provider == provider && intent.ProviderRef != nil && *intent.ProviderRef == providerRef {
			return cloneIntent(intent), nil
		}
	}
	return nil, domain.ErrIntentNotFound
}

func (r *FakeIntentRepo) UpdateCAS(ctx context.Context, tx ports.DBTX, intent *domain.PaymentIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.intents[intent.ID]
	if !ok || stored.Version != intent.Version {
		return domain.ErrOptimisticLockConflict.WithDetail("intent_id", intent.ID.String())
	}
	intent.Version++
	r.intents[intent.ID] = cloneIntent(intent)
	return nil
}

// FakeEventRepo is an in-memory ports.EventRepository with a real dedup-key
// uniqueness rule.
type FakeEventRepo struct {
	mu     sync.Mutex
	events []*domain.PaymentEvent
	dedup  map[string]bool
}

func NewFakeEventRepo() *FakeEventRepo {
	return &FakeEventRepo{dedup: make(map[string]bool)}
}

func (r *FakeEventRepo) Append(ctx context.Context, tx ports.DBTX, event *domain.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dedup[event.DedupKey] {
		return domain.ErrIdempotencyConflict.WithDetail("dedup_key", event.DedupKey)
	}
	r.dedup[event.DedupKey] = true
	r.events = append(r.events, event)
	return nil
}

func (r *FakeEventRepo) ExistsByDedupKey(ctx context.Context, tx ports.DBTX, dedupKey string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dedup[dedupKey], nil
}

// Snapshot implements TxTracked.
func (r *FakeEventRepo) Snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := append([]*domain.PaymentEvent(nil), r.events...)
	dedup := make(map[string]bool, len(r.dedup))
	for k, v := range r.dedup {
		dedup[k] = v
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = events
		r.dedup = dedup
	}
}

func (r *FakeEventRepo) ListByIntent(ctx context.Context, tx ports.DBTX, intentID uuid.UUID) ([]*domain.PaymentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PaymentEvent
	for _, e := range r.events {
		if e.IntentID == intentID {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every stored event.
func (r *FakeEventRepo) All() []*domain.PaymentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.PaymentEvent(nil), r.events...)
}

// FakeOutboxRepo is an in-memory ports.OutboxRepository.
type FakeOutboxRepo struct {
	mu     sync.Mutex
	events []*domain.OutboxEvent
}

func NewFakeOutboxRepo() *FakeOutboxRepo { return &FakeOutboxRepo{} }

func (r *FakeOutboxRepo) Append(ctx context.Context, tx ports.DBTX, event *domain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *event
	r.events = append(r.events, &c)
	return nil
}

func (r *FakeOutboxRepo) ListUnpublished(ctx context.Context, tx ports.DBTX, limit int) ([]*domain.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range r.events {
		if e.PublishedAt == nil {
			c := *e
			out = append(out, &c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *FakeOutboxRepo) MarkPublished(ctx context.Context, tx ports.DBTX, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			published := at
			e.PublishedAt = &published
			return nil
		}
	}
	return nil
}

func (r *FakeOutboxRepo) IncrementAttempts(ctx context.Context, tx ports.DBTX, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			e.Attempts++
			return nil
		}
	}
	return nil
}

// All returns every stored outbox event.
func (r *FakeOutboxRepo) All() []*domain.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.OutboxEvent, len(r.events))
	for i, e := range r.events {
		c := *e
		out[i] = &c
	}
	return out
}

// FakeLedgerRepo is an in-memory ports.LedgerRepository deriving balances by
// summation, like the real one.
type FakeLedgerRepo struct {
	mu   sync.Mutex
	txns []*domain.LedgerTransaction
}

func NewFakeLedgerRepo() *FakeLedgerRepo { return &FakeLedgerRepo{} }

func (r *FakeLedgerRepo) Append(ctx context.Context, tx ports.DBTX, txn *domain.LedgerTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *txn
	c.Entries = append([]domain.LedgerEntry(nil), txn.Entries...)
	r.txns = append(r.txns, &c)
	return nil
}

func (r *FakeLedgerRepo) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.LedgerTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, txn := range r.txns {
		if txn.ID == id {
			c := *txn
			return &c, nil
		}
	}
	return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "ledger transaction not found", nil)
}

func (r *FakeLedgerRepo) AccountBalance(ctx context.Context, tx ports.DBTX, storeID uuid.UUID, account domain.LedgerAccount) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var balance int64
	for _, txn := range r.txns {
		if txn.StoreID != storeID {
			continue
		}
		for _, e := range txn.Entries {
			if e.Account != account {
				continue
			}
			if e.Direction == domain.Credit {
				balance += e.Amount
			} else {
				balance -= e.Amount
			}
		}
	}
	return balance, nil
}

func (r *FakeLedgerRepo) ListByStorePeriod(ctx context.Context, tx ports.DBTX, storeID uuid.UUID, from, to time.Time) ([]*domain.LedgerTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.LedgerTransaction
	for _, txn := range r.txns {
		if txn.StoreID == storeID && !txn.CreatedAt.Before(from) && txn.CreatedAt.Before(to) {
			c := *txn
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// All returns every stored transaction.
func (r *FakeLedgerRepo) All() []*domain.LedgerTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.LedgerTransaction(nil), r.txns...)
}

// FakeRefundRepo is an in-memory ports.RefundRepository.
type FakeRefundRepo struct {
	mu      sync.Mutex
	refunds map[uuid.UUID]*domain.Refund
}

func NewFakeRefundRepo() *FakeRefundRepo {
	return &FakeRefundRepo{refunds: make(map[uuid.UUID]*domain.Refund)}
}

func (r *FakeRefundRepo) Create(ctx context.Context, tx ports.DBTX, refund *domain.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.refunds {
		if existing.IdempotencyKey == refund.IdempotencyKey {
			return domain.ErrIdempotencyConflict.WithDetail("idempotency_key", refund.IdempotencyKey)
		}
	}
	c := *refund
	r.refunds[refund.ID] = &c
	return nil
}

func (r *FakeRefundRepo) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	refund, ok := r.refunds[id]
	if !ok {
		return nil, domain.ErrRefundNotFound
	}
	c := *refund
	return &c, nil
}

func (r *FakeRefundRepo) GetByIdempotencyKey(ctx context.Context, tx ports.DBTX, key string) (*domain.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, refund := range r.refunds {
		if refund.IdempotencyKey == key {
			c := *refund
			return &c, nil
		}
	}
	return nil, domain.ErrRefundNotFound
}

func (r *FakeRefundRepo) UpdateStatus(ctx context.Context, tx ports.DBTX, id uuid.UUID, status domain.RefundStatus, providerRefundID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	refund, ok := r.refunds[id]
	if !ok {
		return domain.ErrRefundNotFound
	}
	refund.Status = status
	if providerRefundID != nil {
		refund.ProviderRefundID = providerRefundID
	}
	return nil
}

// FakePayoutRepo is an in-memory ports.PayoutRepository.
type FakePayoutRepo struct {
	mu      sync.Mutex
	payouts map[uuid.UUID]*domain.Payout
}

func NewFakePayoutRepo() *FakePayoutRepo {
	return &FakePayoutRepo{payouts: make(map[uuid.UUID]*domain.Payout)}
}

func (r *FakePayoutRepo) Create(ctx context.Context, tx ports.DBTX, payout *domain.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.payouts {
		if existing.IdempotencyKey == payout.IdempotencyKey {
			return domain.ErrIdempotencyConflict.WithDetail("idempotency_key", payout.IdempotencyKey)
		}
	}
	c := *payout
	r.payouts[payout.ID] = &c
	return nil
}

func (r *FakePayoutRepo) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payout, ok := r.payouts[id]
	if !ok {
		return nil, domain.ErrPayoutNotFound
	}
	c := *payout
	return &c, nil
}

func (r *FakePayoutRepo) GetByIdempotencyKey(ctx context.Context, tx ports.DBTX, key string) (*domain.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, payout := range r.payouts {
		if payout.IdempotencyKey == key {
			c := *payout
			return &c, nil
		}
	}
	return nil, domain.ErrPayoutNotFound
}

func (r *FakePayoutRepo) UpdateStatus(ctx context.Context, tx ports.DBTX, id uuid.UUID, from, to domain.PayoutStatus, failureCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	payout, ok := r.payouts[id]
	if !ok {
		return domain.ErrPayoutNotFound
	}
	if payout.Status != from {
		return domain.ErrInvalidTransition.
			WithDetail("payout_id", id.String()).
			WithDetail("expected", string(from)).
			WithDetail("to", string(to))
	}
	payout.Status = to
	payout.FailureCode = failureCode
	return nil
}

func (r *FakePayoutRepo) SumRequestedSince(ctx context.Context, tx ports.DBTX, storeID uuid.UUID, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, payout := range r.payouts {
		if payout.StoreID == storeID && !payout.CreatedAt.Before(since) && payout.Status != domain.PayoutStatusFailed {
			total += payout.Amount
		}
	}
	return total, nil
}

// FakeStoreRepo is an in-memory ports.StoreRepository.
type FakeStoreRepo struct {
	mu     sync.Mutex
	stores map[uuid.UUID]*domain.Store
}

func NewFakeStoreRepo(stores ...*domain.Store) *FakeStoreRepo {
	r := &FakeStoreRepo{stores: make(map[uuid.UUID]*domain.Store)}
	for _, s := range stores {
		r.Put(s)
	}
	return r
}

func (r *FakeStoreRepo) Put(s *domain.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	r.stores[s.ID] = &c
}

func (r *FakeStoreRepo) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.stores[id]
	if !ok {
		return nil, domain.ErrStoreNotFound
	}
	c := *store
	return &c, nil
}

// FakeReconciliationRepo is an in-memory ports.ReconciliationRepository fed
// by a FakeLedgerRepo for activity listing.
type FakeReconciliationRepo struct {
	mu      sync.Mutex
	reports []*ports.ReconciliationReport
	Ledger  *FakeLedgerRepo
}

func NewFakeReconciliationRepo(ledger *FakeLedgerRepo) *FakeReconciliationRepo {
	return &FakeReconciliationRepo{Ledger: ledger}
}

func (r *FakeReconciliationRepo) Save(ctx context.Context, tx ports.DBTX, report *ports.ReconciliationReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *report
	r.reports = append(r.reports, &c)
	return nil
}

func (r *FakeReconciliationRepo) GetLatest(ctx context.Context, tx ports.DBTX, storeID uuid.UUID, periodStart, periodEnd time.Time) (*ports.ReconciliationReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.reports) - 1; i >= 0; i-- {
		report := r.reports[i]
		if report.StoreID == storeID && report.PeriodStart.Equal(periodStart) && report.PeriodEnd.Equal(periodEnd) {
			c := *report
			return &c, nil
		}
	}
	return nil, nil
}

func (r *FakeReconciliationRepo) ListStoreIDsWithActivity(ctx context.Context, tx ports.DBTX, from, to time.Time) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, txn := range r.Ledger.All() {
		if !txn.CreatedAt.Before(from) && txn.CreatedAt.Before(to) && !seen[txn.StoreID] {
			seen[txn.StoreID] = true
			ids = append(ids, txn.StoreID)
		}
	}
	return ids, nil
}

// All returns every saved report.
func (r *FakeReconciliationRepo) All() []*ports.ReconciliationReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*ports.ReconciliationReport(nil), r.reports...)
}

// FakeOrderResolver resolves orders from a fixed map.
type FakeOrderResolver struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*ports.OrderInfo
}

func NewFakeOrderResolver(orders ...*ports.OrderInfo) *FakeOrderResolver {
	r := &FakeOrderResolver{orders: make(map[uuid.UUID]*ports.OrderInfo)}
	for _, o := range orders {
		r.Put(o)
	}
	return r
}

func (r *FakeOrderResolver) Put(o *ports.OrderInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *o
	r.orders[o.OrderID] = &c
}

func (r *FakeOrderResolver) Resolve(ctx context.Context, orderID uuid.UUID) (*ports.OrderInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil, domain.NewError(domain.ErrorCodeValidationFailed, "order not found")
	}
	c := *order
	return &c, nil
}

// FakeProviderAdapter is a configurable ports.ProviderAdapter.
type FakeProviderAdapter struct {
	AdapterName string
	Countries   []string
	Currencies  []string
	Methods     []string

	CreatePaymentFn func(ctx context.Context, intent *domain.PaymentIntent) (*ports.CreatePaymentResult, error)
	RefundFn        func(ctx context.Context, intent *domain.PaymentIntent, refund *domain.Refund) (*ports.ProviderRefundResult, error)
	QueryStatusFn   func(ctx context.Context, providerIntentID string) (*ports.ProviderStatus, error)
	VerifyFn        func(payload []byte, signature string) error
	ParseFn         func(payload []byte) (*ports.ProviderEvent, error)
}

func (a *FakeProviderAdapter) Name() string { return a.AdapterName }

func contains(list []string, v string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (a *FakeProviderAdapter) SupportsCountry(country string) bool {
	return contains(a.Countries, country)
}

func (a *FakeProviderAdapter) SupportsCurrency(currency string) bool {
	return contains(a.Currencies, currency)
}

func (a *FakeProviderAdapter) SupportsMethod(method string) bool {
	return contains(a.Methods, method)
}

func (a *FakeProviderAdapter) CreatePayment(ctx context.Context, intent *domain.PaymentIntent) (*ports.CreatePaymentResult, error) {
	if a.CreatePaymentFn != nil {
		return a.CreatePaymentFn(ctx, intent)
	}
	return &ports.CreatePaymentResult{ProviderIntentID: "prov-" + intent.ID.String()}, nil
}

func (a *FakeProviderAdapter) Refund(ctx context.Context, intent *domain.PaymentIntent, refund *domain.Refund) (*ports.ProviderRefundResult, error) {
	if a.RefundFn != nil {
		return a.RefundFn(ctx, intent, refund)
	}
	return &ports.ProviderRefundResult{ProviderRefundID: "rf-" + refund.ID.String(), Status: domain.RefundStatusSucceeded}, nil
}

func (a *FakeProviderAdapter) QueryStatus(ctx context.Context, providerIntentID string) (*ports.ProviderStatus, error) {
	if a.QueryStatusFn != nil {
		return a.QueryStatusFn(ctx, providerIntentID)
	}
	return &ports.ProviderStatus{}, nil
}

func (a *FakeProviderAdapter) VerifyWebhook(payload []byte, signature string) error {
	if a.VerifyFn != nil {
		return a.VerifyFn(payload, signature)
	}
	return nil
}

func (a *FakeProviderAdapter) ParseWebhook(payload []byte) (*ports.ProviderEvent, error) {
	if a.ParseFn != nil {
		return a.ParseFn(payload)
	}
	return nil, domain.ErrWebhookUnparseable
}

// FakePublisher records published events and can be told to fail.
type FakePublisher struct {
	mu        sync.Mutex
	Published []*domain.OutboxEvent
	Err       error
}

func (p *FakePublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	c := *event
	p.Published = append(p.Published, &c)
	return nil
}

// SetErr swaps the forced failure.
func (p *FakePublisher) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Err = err
}

// Count returns the number of delivered events.
func (p *FakePublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Published)
}
