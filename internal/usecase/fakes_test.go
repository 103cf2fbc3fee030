package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
	"github.com/GreenityClub/Unitree-sub000/internal/repository"
)

var errInjected = errors.New("injected failure")

type memoryState struct {
	sessions map[string]domain.WifiSession
	ledger   []domain.PointTransaction
	counters map[string]domain.UserWifiCounters
}

func (m *memoryState) clone() *memoryState {
	out := &memoryState{
		sessions: make(map[string]domain.WifiSession, len(m.sessions)),
		ledger:   append([]domain.PointTransaction(nil), m.ledger...),
		counters: make(map[string]domain.UserWifiCounters, len(m.counters)),
	}
	for k, v := range m.sessions {
		out.sessions[k] = v
	}
	for k, v := range m.counters {
		out.counters[k] = v
	}
	return out
}

// fakeStore is an in-memory port.Store. In transactional mode a failing unit of work restores the
// state captured before it started.
type fakeStore struct {
	state         *memoryState
	transactional bool
	failures      map[string]error
	calls         []string
	units         int
	// hooks run once, right before the named operation. "unit" fires when a unit of work begins.
	hooks map[string]func()
	// committed holds sessions written by a competing unit of work; rollbacks keep them.
	committed []domain.WifiSession
}

func newFakeStore(transactional bool) *fakeStore {
	return &fakeStore{
		state: &memoryState{
			sessions: make(map[string]domain.WifiSession),
			counters: make(map[string]domain.UserWifiCounters),
		},
		transactional: transactional,
		failures:      make(map[string]error),
		hooks:         make(map[string]func()),
	}
}

func (f *fakeStore) Repositories() port.Repositories {
	return port.Repositories{
		Sessions: &fakeSessions{store: f},
		Ledger:   &fakeLedger{store: f},
		Counters: &fakeCounters{store: f},
	}
}

func (f *fakeStore) SupportsTransactions() bool { return f.transactional }

func (f *fakeStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	f.fire("unit")
	f.units++
	if !f.transactional {
		return fn(ctx, f.Repositories())
	}
	snapshot := f.state.clone()
	if err := fn(ctx, f.Repositories()); err != nil {
		f.state = snapshot
		for _, session := range f.committed {
			f.put(session)
		}
		f.committed = nil
		return err
	}
	f.committed = nil
	return nil
}

func (f *fakeStore) fire(op string) {
	hook, ok := f.hooks[op]
	if !ok {
		return
	}
	delete(f.hooks, op)
	hook()
}

// commitConcurrently writes a session as if another request had committed it meanwhile.
func (f *fakeStore) commitConcurrently(session domain.WifiSession) {
	f.committed = append(f.committed, session)
	f.put(session)
}

func (f *fakeStore) record(op string) error {
	f.fire(op)
	f.calls = append(f.calls, op)
	if err, ok := f.failures[op]; ok {
		return err
	}
	return nil
}

func (f *fakeStore) put(session domain.WifiSession) {
	f.state.sessions[session.ID] = session
}

func (f *fakeStore) session(id string) domain.WifiSession {
	return f.state.sessions[id]
}

func (f *fakeStore) activeCount(userID string) int {
	count := 0
	for _, s := range f.state.sessions {
		if s.UserID == userID && s.IsActive {
			count++
		}
	}
	return count
}

func (f *fakeStore) ledgerFor(userID string) []domain.PointTransaction {
	out := make([]domain.PointTransaction, 0)
	for _, entry := range f.state.ledger {
		if entry.UserID == userID {
			out = append(out, entry)
		}
	}
	return out
}

func (f *fakeStore) countersFor(userID string) domain.UserWifiCounters {
	return f.state.counters[userID]
}

type fakeSessions struct{ store *fakeStore }

func (r *fakeSessions) Create(ctx context.Context, session domain.WifiSession) error {
	if err := r.store.record("sessions.create"); err != nil {
		return err
	}
	for _, existing := range r.store.state.sessions {
		if existing.UserID != session.UserID {
			continue
		}
		if existing.IsActive && session.IsActive {
			return repository.ErrConflict
		}
		if session.Metadata.CorrelationID != "" && existing.Metadata.CorrelationID == session.Metadata.CorrelationID {
			return repository.ErrConflict
		}
	}
	r.store.state.sessions[session.ID] = session
	return nil
}

func (r *fakeSessions) GetByID(ctx context.Context, sessionID string) (*domain.WifiSession, error) {
	session, ok := r.store.state.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

func (r *fakeSessions) FindActiveByUser(ctx context.Context, userID string) (*domain.WifiSession, error) {
	if err := r.store.record("sessions.find_active"); err != nil {
		return nil, err
	}
	for _, session := range r.store.state.sessions {
		if session.UserID == userID && session.IsActive {
			found := session
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeSessions) FindByCorrelationID(ctx context.Context, userID, correlationID string) (*domain.WifiSession, error) {
	for _, session := range r.store.state.sessions {
		if session.UserID == userID && session.Metadata.CorrelationID == correlationID {
			found := session
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeSessions) CloseIfActive(ctx context.Context, session domain.WifiSession) (bool, error) {
	if err := r.store.record("sessions.close"); err != nil {
		return false, err
	}
	stored, ok := r.store.state.sessions[session.ID]
	if !ok || !stored.IsActive {
		return false, nil
	}
	r.store.state.sessions[session.ID] = session
	return true, nil
}

func (r *fakeSessions) ListStaleActive(ctx context.Context, startedBefore time.Time, limit int) ([]domain.WifiSession, error) {
	if err := r.store.record("sessions.list_stale"); err != nil {
		return nil, err
	}
	out := make([]domain.WifiSession, 0)
	for _, session := range r.store.state.sessions {
		if session.IsActive && session.StartTime.Before(startedBefore) {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeSessions) Summarize(ctx context.Context, userID string, since time.Time) (domain.SessionSummary, error) {
	if err := r.store.record("sessions.summarize"); err != nil {
		return domain.SessionSummary{}, err
	}
	var summary domain.SessionSummary
	for _, session := range r.store.state.sessions {
		if session.UserID != userID || session.IsActive || session.EndTime == nil || session.StartTime.Before(since) {
			continue
		}
		summary.Sessions++
		summary.Seconds += session.DurationSeconds
		summary.Points += session.PointsEarned
	}
	return summary, nil
}

func (r *fakeSessions) ListClosedWithoutLedger(ctx context.Context, userID string) ([]domain.WifiSession, error) {
	if err := r.store.record("sessions.list_unledgered"); err != nil {
		return nil, err
	}
	ledger := &fakeLedger{store: r.store}
	out := make([]domain.WifiSession, 0)
	for _, session := range r.store.state.sessions {
		if session.UserID != userID || session.IsActive || session.EndTime == nil || session.PointsEarned <= 0 {
			continue
		}
		if !ledger.has(domain.KeyFor(session)) {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

type fakeLedger struct{ store *fakeStore }

func (r *fakeLedger) has(key domain.LedgerKey) bool {
	for _, entry := range r.store.state.ledger {
		if entry.Type == domain.TransactionWifiSession && entry.UserID == key.UserID &&
			entry.Metadata.StartTime.Equal(key.StartTime) && entry.Metadata.EndTime.Equal(key.EndTime) {
			return true
		}
	}
	return false
}

func (r *fakeLedger) ExistsWifiEntry(ctx context.Context, key domain.LedgerKey) (bool, error) {
	if err := r.store.record("ledger.exists"); err != nil {
		return false, err
	}
	return r.has(key), nil
}

func (r *fakeLedger) InsertWifiEntry(ctx context.Context, entry domain.PointTransaction) (bool, error) {
	if err := r.store.record("ledger.insert"); err != nil {
		return false, err
	}
	if r.has(domain.LedgerKey{UserID: entry.UserID, StartTime: entry.Metadata.StartTime, EndTime: entry.Metadata.EndTime}) {
		return false, nil
	}
	r.store.state.ledger = append(r.store.state.ledger, entry)
	return true, nil
}

func (r *fakeLedger) Totals(ctx context.Context, userID string) (domain.LedgerTotals, error) {
	if err := r.store.record("ledger.totals"); err != nil {
		return domain.LedgerTotals{}, err
	}
	var totals domain.LedgerTotals
	for _, entry := range r.store.state.ledger {
		if entry.UserID != userID {
			continue
		}
		totals.Current += entry.Amount
		if entry.Amount > 0 {
			totals.Lifetime += entry.Amount
		}
	}
	return totals, nil
}

type fakeCounters struct{ store *fakeStore }

func (r *fakeCounters) Get(ctx context.Context, userID string) (*domain.UserWifiCounters, error) {
	counters, ok := r.store.state.counters[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &counters, nil
}

func (r *fakeCounters) LoadForUpdate(ctx context.Context, userID string, now time.Time) (*domain.UserWifiCounters, error) {
	if err := r.store.record("counters.load"); err != nil {
		return nil, err
	}
	counters, ok := r.store.state.counters[userID]
	if !ok {
		counters = domain.NewUserWifiCounters(userID, now)
		r.store.state.counters[userID] = counters
	}
	return &counters, nil
}

func (r *fakeCounters) ResetPeriods(ctx context.Context, userID string, b domain.PeriodBoundaries) error {
	if err := r.store.record("counters.reset"); err != nil {
		return err
	}
	counters, ok := r.store.state.counters[userID]
	if !ok {
		return repository.ErrNotFound
	}
	counters.ApplyResets(domain.PeriodResets{
		Day:   counters.DayResetAt.Before(b.Day),
		Week:  counters.WeekResetAt.Before(b.Week),
		Month: counters.MonthResetAt.Before(b.Month),
		At:    b.At,
	})
	r.store.state.counters[userID] = counters
	return nil
}

func (r *fakeCounters) Increment(ctx context.Context, userID string, delta domain.CounterDelta) error {
	if err := r.store.record("counters.increment"); err != nil {
		return err
	}
	counters, ok := r.store.state.counters[userID]
	if !ok {
		return repository.ErrNotFound
	}
	counters.Accumulate(delta)
	counters.UpdatedAt = delta.At
	r.store.state.counters[userID] = counters
	return nil
}

func (r *fakeCounters) ApplyCorrection(ctx context.Context, userID string, correction domain.CounterCorrection) error {
	if err := r.store.record("counters.correct"); err != nil {
		return err
	}
	counters, ok := r.store.state.counters[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if correction.CurrentPoints != nil {
		counters.CurrentPoints = *correction.CurrentPoints
	}
	if correction.LifetimePoints != nil {
		counters.LifetimePoints = *correction.LifetimePoints
	}
	if correction.AllTimeSeconds != nil {
		counters.AllTimeSeconds = *correction.AllTimeSeconds
	}
	r.store.state.counters[userID] = counters
	return nil
}

func (r *fakeCounters) ListUserIDs(ctx context.Context, afterUserID string, limit int) ([]string, error) {
	if err := r.store.record("counters.list_users"); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for id := range r.store.state.counters {
		seen[id] = struct{}{}
	}
	for _, session := range r.store.state.sessions {
		seen[session.UserID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		if id > afterUserID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type fakeEventPublisher struct {
	started   []domain.WifiSessionStartedEvent
	closed    []domain.WifiSessionClosedEvent
	corrected []domain.CountersCorrectedEvent
	fail      error
}

func (f *fakeEventPublisher) PublishWifiSessionStarted(ctx context.Context, event domain.WifiSessionStartedEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.started = append(f.started, event)
	return nil
}

func (f *fakeEventPublisher) PublishWifiSessionClosed(ctx context.Context, event domain.WifiSessionClosedEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.closed = append(f.closed, event)
	return nil
}

func (f *fakeEventPublisher) PublishCountersCorrected(ctx context.Context, event domain.CountersCorrectedEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.corrected = append(f.corrected, event)
	return nil
}

type fakeStatsCache struct {
	values   map[string]domain.WifiStats
	versions map[string]int64
	ttls     []time.Duration
	deleted  []string
	sets     int
	// beforeSet runs once ahead of the next SetStats.
	beforeSet func()
}

func newFakeStatsCache() *fakeStatsCache {
	return &fakeStatsCache{values: make(map[string]domain.WifiStats), versions: make(map[string]int64)}
}

func (f *fakeStatsCache) GetStats(ctx context.Context, userID string) (*domain.WifiStats, error) {
	stats, ok := f.values[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &stats, nil
}

func (f *fakeStatsCache) StatsVersion(ctx context.Context, userID string) (int64, error) {
	return f.versions[userID], nil
}

func (f *fakeStatsCache) SetStats(ctx context.Context, stats domain.WifiStats, version int64, ttl time.Duration) (bool, error) {
	if hook := f.beforeSet; hook != nil {
		f.beforeSet = nil
		hook()
	}
	if f.versions[stats.UserID] != version {
		return false, nil
	}
	f.sets++
	f.ttls = append(f.ttls, ttl)
	f.values[stats.UserID] = stats
	return true, nil
}

func (f *fakeStatsCache) DeleteStats(ctx context.Context, userID string) error {
	f.deleted = append(f.deleted, userID)
	f.versions[userID]++
	delete(f.values, userID)
	return nil
}

type fakeSweepLock struct {
	held     bool
	acquired int
	released int
}

func (f *fakeSweepLock) TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	if f.held {
		return false, nil
	}
	f.acquired++
	return true, nil
}

func (f *fakeSweepLock) Release(ctx context.Context, name, owner string) error {
	f.released++
	return nil
}

type fakeMetrics struct {
	started   map[domain.SessionSource]int
	closed    map[domain.SessionSource]int
	points    int64
	cleaned   int
	failed    int
	corrected map[domain.CounterField]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		started:   make(map[domain.SessionSource]int),
		closed:    make(map[domain.SessionSource]int),
		corrected: make(map[domain.CounterField]int),
	}
}

func (f *fakeMetrics) SessionStarted(source domain.SessionSource) { f.started[source]++ }

func (f *fakeMetrics) SessionClosed(closedBy domain.SessionSource, durationSeconds, points int64) {
	f.closed[closedBy]++
	f.points += points
}

func (f *fakeMetrics) SweepCompleted(cleaned, failed int) {
	f.cleaned += cleaned
	f.failed += failed
}

func (f *fakeMetrics) CounterCorrected(field domain.CounterField) { f.corrected[field]++ }

func strPtr(value string) *string {
	return &value
}
