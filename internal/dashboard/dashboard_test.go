package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/localnerve/vaxtrack/internal/database"
	"github.com/localnerve/vaxtrack/internal/metrics"
	"github.com/localnerve/vaxtrack/internal/models"
	"github.com/localnerve/vaxtrack/internal/render"
	"github.com/localnerve/vaxtrack/internal/session"
	"github.com/localnerve/vaxtrack/internal/store"
	"github.com/localnerve/vaxtrack/internal/types"
	"github.com/localnerve/vaxtrack/internal/validation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	now        = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)
	adminIdent = session.Identity{ID: "admin-1", Email: "admin@example.com", Name: "Ada Admin"}
	aliceIdent = session.Identity{ID: "alice-1", Email: "alice@example.com", Name: "Alice"}
)

// spyStore counts write calls and can inject failures
type spyStore struct {
	*store.Store

	mu        sync.Mutex
	writes    int
	ensureErr error
	listErr   error
	lists     int
	onInsert  func()
}

func (s *spyStore) wrote() {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
}

func (s *spyStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *spyStore) Lists() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

func (s *spyStore) failLists(err error) {
	s.mu.Lock()
	s.listErr = err
	s.mu.Unlock()
}

func (s *spyStore) EnsureProfile(ctx context.Context, seed models.Profile) (*models.Profile, error) {
	if s.ensureErr != nil {
		return nil, s.ensureErr
	}
	return s.Store.EnsureProfile(ctx, seed)
}

func (s *spyStore) ListRecords(ctx context.Context, caller store.Caller, owner string) ([]models.VaccinationRecord, error) {
	s.mu.Lock()
	s.lists++
	err := s.listErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.ListRecords(ctx, caller, owner)
}

func (s *spyStore) InsertRecord(ctx context.Context, caller store.Caller, f validation.Fields) (*models.VaccinationRecord, error) {
	s.wrote()
	rec, err := s.Store.InsertRecord(ctx, caller, f)
	s.mu.Lock()
	hook := s.onInsert
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return rec, err
}

func (s *spyStore) UpdateRecord(ctx context.Context, caller store.Caller, id string, f validation.Fields) error {
	s.wrote()
	return s.Store.UpdateRecord(ctx, caller, id, f)
}

func (s *spyStore) DeleteRecord(ctx context.Context, caller store.Caller, id string) error {
	s.wrote()
	return s.Store.DeleteRecord(ctx, caller, id)
}

func (s *spyStore) GetRecord(ctx context.Context, caller store.Caller, id string) (*models.VaccinationRecord, error) {
	s.wrote()
	return s.Store.GetRecord(ctx, caller, id)
}

// identityFunc adapts a function to IdentityResolver
type identityFunc func(ctx context.Context) (session.Identity, error)

func (f identityFunc) CurrentIdentity(ctx context.Context) (session.Identity, error) {
	return f(ctx)
}

func fixed(identity session.Identity) IdentityResolver {
	return identityFunc(func(context.Context) (session.Identity, error) {
		return identity, nil
	})
}

type fixture struct {
	db      *gorm.DB
	store   *store.Store
	spy     *spyStore
	views   *render.Renderer
	metrics *metrics.Metrics
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, db.Create([]models.Profile{
		{ID: adminIdent.ID, Email: adminIdent.Email, FullName: adminIdent.Name, Role: models.RoleAdmin},
		{ID: aliceIdent.ID, Email: aliceIdent.Email, FullName: aliceIdent.Name, Role: models.RoleUser},
	}).Error)

	views, err := render.New()
	require.NoError(t, err)

	st := store.New(db, db, nil, store.WithClock(func() time.Time { return now }))
	return &fixture{
		db:      db,
		store:   st,
		spy:     &spyStore{Store: st},
		views:   views,
		metrics: metrics.New(prometheus.NewRegistry()),
	}
}

func (f *fixture) dashboard(identity IdentityResolver, opts ...Option) *Dashboard {
	opts = append([]Option{
		WithClock(func() time.Time { return now }),
		WithMetrics(f.metrics),
		WithNoticeTTL(time.Minute),
	}, opts...)
	return New(f.spy, identity, f.views, opts...)
}

func (f *fixture) seed(t *testing.T, fields validation.Fields) *models.VaccinationRecord {
	t.Helper()
	rec, err := f.store.InsertRecord(context.Background(), store.Caller{ID: adminIdent.ID, Admin: true}, fields)
	require.NoError(t, err)
	return rec
}

func covidFor(owner string) validation.Fields {
	return validation.Fields{
		OwnerID:     owner,
		VaccineName: "COVID-19",
		DoseNumber:  "1",
		DateGiven:   "2024-06-01",
		NextDue:     "2024-07-01",
	}
}

func mmrFor(owner string) validation.Fields {
	return validation.Fields{
		OwnerID:     owner,
		VaccineName: "MMR",
		DoseNumber:  "2",
		DateGiven:   "2001-03-04",
	}
}

func TestInitAdminReady(t *testing.T) {
	f := setup(t)
	f.seed(t, covidFor(aliceIdent.ID))
	f.seed(t, mmrFor(adminIdent.ID))

	d := f.dashboard(fixed(adminIdent))
	assert.Equal(t, Uninitialized, d.State())
	require.NoError(t, d.Init(context.Background()))

	snap := d.Snapshot()
	assert.Equal(t, Ready, snap.State)
	assert.Equal(t, models.RoleAdmin, snap.Role)
	assert.True(t, snap.Permissions.CanAdd)
	assert.Len(t, snap.Records, 2, "admins see every owner")
	assert.Len(t, snap.Reminders, 1)
	assert.Equal(t, Stats{Total: 2, UpToDate: 2, Upcoming: 1}, snap.Stats)
	assert.Contains(t, string(snap.Surfaces.Records), `data-action="edit"`)
	assert.Contains(t, string(snap.Surfaces.Reminders), "COVID-19")
	assert.Contains(t, string(snap.Surfaces.Stats), `data-stat="total">2<`)
	assert.Empty(t, snap.Busy)
}

func TestInitUserSeesOwnRecords(t *testing.T) {
	f := setup(t)
	f.seed(t, covidFor(aliceIdent.ID))
	f.seed(t, mmrFor(adminIdent.ID))

	d := f.dashboard(fixed(aliceIdent))
	require.NoError(t, d.Init(context.Background()))

	snap := d.Snapshot()
	assert.Equal(t, models.RoleUser, snap.Role)
	assert.Equal(t, render.Permissions{}, snap.Permissions)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "COVID-19", snap.Records[0].VaccineName)
	assert.NotContains(t, string(snap.Surfaces.Records), `data-action="edit"`)
}

func TestInitWithoutIdentity(t *testing.T) {
	f := setup(t)
	signedIn := false
	d := f.dashboard(identityFunc(func(context.Context) (session.Identity, error) {
		if !signedIn {
			return session.Identity{}, types.ErrUnauthenticated
		}
		return adminIdent, nil
	}))

	err := d.Init(context.Background())
	assert.True(t, errors.Is(err, types.ErrUnauthenticated))

	snap := d.Snapshot()
	assert.Equal(t, Error, snap.State)
	assert.Equal(t, "no authenticated session", snap.Error)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, NoticeError, snap.Notice.Kind)

	signedIn = true
	require.NoError(t, d.Retry(context.Background()))
	assert.Equal(t, Ready, d.State())
	assert.Empty(t, d.Snapshot().Error)
}

func TestInitProfileFailureFallsBackToUser(t *testing.T) {
	f := setup(t)
	f.spy.ensureErr = types.Transient("ensure profile", errors.New("connection reset"))

	d := f.dashboard(fixed(adminIdent))
	require.NoError(t, d.Init(context.Background()))

	assert.Equal(t, Ready, d.State())
	assert.Equal(t, models.RoleUser, d.Role())
}

func TestInitLoadFailure(t *testing.T) {
	f := setup(t)
	f.spy.failLists(types.Transient("list records", errors.New("timeout")))

	d := f.dashboard(fixed(adminIdent))
	err := d.Init(context.Background())
	assert.True(t, errors.Is(err, types.ErrTransient))
	assert.Equal(t, Error, d.State())

	f.spy.failLists(nil)
	require.NoError(t, d.Retry(context.Background()))
	assert.Equal(t, Ready, d.State())
}

func TestAddRecordRoundTrip(t *testing.T) {
	f := setup(t)
	d := f.dashboard(fixed(adminIdent))
	require.NoError(t, d.Init(context.Background()))

	rec, err := d.AddRecord(context.Background(), covidFor(aliceIdent.ID))
	require.NoError(t, err)

	snap := d.Snapshot()
	require.Len(t, snap.Records, 1)
	require.Len(t, snap.Reminders, 1)
	assert.Equal(t, rec.ID, snap.Reminders[0].RecordID)
	assert.Equal(t, "2024-07-01", snap.Reminders[0].DueDate)
	assert.Equal(t, Stats{Total: 1, UpToDate: 1, Upcoming: 1}, snap.Stats)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, NoticeSuccess, snap.Notice.Kind)

	var reminder models.Reminder
	require.NoError(t, f.db.Where("record_id = ?", rec.ID).First(&reminder).Error)
	assert.False(t, reminder.Sent)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Mutations.WithLabelValues(OpAdd, metrics.OutcomeSuccess)))
}

func TestSignOutDuringAddSkipsReload(t *testing.T) {
	f := setup(t)
	d := f.dashboard(fixed(adminIdent))
	require.NoError(t, d.Init(context.Background()))

	f.spy.onInsert = d.SignOut
	rec, err := d.AddRecord(context.Background(), covidFor(aliceIdent.ID))
	require.NoError(t, err)

	assert.Equal(t, Uninitialized, d.State())
	snap := d.Snapshot()
	assert.Empty(t, snap.Records)
	assert.Nil(t, snap.Notice)
	assert.Empty(t, snap.Identity.ID)

	var stored models.VaccinationRecord
	require.NoError(t, f.db.First(&stored, "id = ?", rec.ID).Error)
}

func TestUpdateClearingNextDueRemovesReminder(t *testing.T) {
	f := setup(t)
	rec := f.seed(t, covidFor(aliceIdent.ID))

	d := f.dashboard(fixed(adminIdent))
	require.NoError(t, d.Init(context.Background()))
	require.Len(t, d.Snapshot().Reminders, 1)

	fields, err := d.EditRecord(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01", fields.NextDue)

	fields.NextDue = ""
	require.NoError(t, d.UpdateRecord(context.Background(), rec.ID, fields))

	snap := d.Snapshot()
	assert.Empty(t, snap.Reminders)
	require.Len(t, snap.Records, 1)
	assert.Empty(t, snap.Records[0].NextDue)

	var count int64
	require.NoError(t, f.db.Model(&models.Reminder{}).Where("record_id = ?", rec.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestValidationFailureShowsNotice(t *testing.T) {
	f := setup(t)
	d := f.dashboard(fixed(adminIdent))
	require.NoError(t, d.Init(context.Background()))

	fields := covidFor(aliceIdent.ID)
	fields.DoseNumber = "0"
	_, err := d.AddRecord(context.Background(), fields)
	require.True(t, errors.Is(err, types.ErrValidation))
	assert.Equal(t, validation.RuleDoseNumber, types.Rule(err))

	snap := d.Snapshot()
	assert.Empty(t, snap.Records)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, "Dose number must be at least 1", snap.Notice.Message)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Mutations.WithLabelValues(OpAdd, metrics.OutcomeInvalid)))
}

func TestNonAdminMutationsDenied(t *testing.T) {
	f := setup(t)
	rec := f.seed(t, covidFor(aliceIdent.ID))

	d := f.dashboard(fixed(aliceIdent))
	ctx := context.Background()
	require.NoError(t, d.Init(ctx))
	before := d.Snapshot()

	_, err := d.AddRecord(ctx, covidFor(aliceIdent.ID))
	assert.True(t, errors.Is(err, types.ErrAccessDenied))

	_, err = d.EditRecord(ctx, rec.ID)
	assert.True(t, errors.Is(err, types.ErrAccessDenied))

	err = d.UpdateRecord(ctx, rec.ID, mmrFor(aliceIdent.ID))
	assert.True(t, errors.Is(err, types.ErrAccessDenied))

	deleted, err := d.DeleteRecord(ctx, rec.ID, true)
	assert.True(t, errors.Is(err, types.ErrAccessDenied))
	assert.False(t, deleted)

	_, err = d.Owners(ctx)
	assert.True(t, errors.Is(err, types.ErrAccessDenied))

	assert.Zero(t, f.spy.Writes(), "denied actions never reach the store")

	after := d.Snapshot()
	assert.Equal(t, before.Records, after.Records)
	assert.Equal(t, before.Reminders, after.Reminders)
	assert.Equal(t, before.Stats, after.Stats)
	require.NotNil(t, after.Notice)
	assert.Equal(t, NoticeError, after.Notice.Kind)

	for _, op := range []string{OpAdd, OpUpdate, OpDelete} {
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Mutations.WithLabelValues(op, metrics.OutcomeDenied)), op)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	f := setup(t)
	rec := f.seed(t, covidFor(aliceIdent.ID))

	d := f.dashboard(fixed(adminIdent))
	ctx := context.Background()
	require.NoError(t, d.Init(ctx))

	deleted, err := d.DeleteRecord(ctx, rec.ID, false)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Zero(t, f.spy.Writes())
	assert.Len(t, d.Snapshot().Records, 1)

	deleted, err = d.DeleteRecord(ctx, rec.ID, true)
	require.NoError(t, err)
	assert.True(t, deleted)

	snap := d.Snapshot()
	assert.Empty(t, snap.Records)
	assert.Empty(t, snap.Reminders)
	assert.Equal(t, Stats{}, snap.Stats)

	_, err = d.DeleteRecord(ctx, rec.ID, true)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestSearch(t *testing.T) {
	f := setup(t)
	f.seed(t, covidFor(aliceIdent.ID))
	f.seed(t, mmrFor(adminIdent.ID))

	d := f.dashboard(fixed(adminIdent))
	require.NoError(t, d.Init(context.Background()))
	stats := d.Snapshot().Stats

	html, err := d.Search("covid")
	require.NoError(t, err)
	assert.Contains(t, string(html), "COVID-19")
	assert.NotContains(t, string(html), "MMR")

	snap := d.Snapshot()
	assert.Len(t, snap.Records, 1)
	assert.Equal(t, "covid", snap.Search)
	assert.Equal(t, stats, snap.Stats, "stats ignore the search term")
	assert.Equal(t, html, snap.Surfaces.Records)

	html, err = d.Search("alice@")
	require.NoError(t, err)
	assert.Contains(t, string(html), "COVID-19", "admins match on owner email")

	html, err = d.Search("zzz")
	require.NoError(t, err)
	assert.Contains(t, string(html), "No records match")

	_, err = d.Search("")
	require.NoError(t, err)
	assert.Len(t, d.Snapshot().Records, 2)
}

func TestSearchUserDoesNotMatchOwner(t *testing.T) {
	records := []models.VaccinationRecord{
		{VaccineName: "Tdap", Owner: &models.Profile{FullName: "Alice", Email: "alice@example.com"}},
	}
	assert.Empty(t, FilterRecords(records, "alice", false))
	assert.Len(t, FilterRecords(records, "ALICE", true), 1)
	assert.Len(t, FilterRecords(records, "  tdap ", false), 1)
}

func TestSearchDebouncedCoalesces(t *testing.T) {
	f := setup(t)
	f.seed(t, covidFor(aliceIdent.ID))
	f.seed(t, mmrFor(adminIdent.ID))

	d := f.dashboard(fixed(adminIdent), WithSearchDebounce(60*time.Millisecond))
	require.NoError(t, d.Init(context.Background()))

	type result struct {
		term string
		ok   bool
	}
	results := make(chan result, 2)
	for _, term := range []string{"c", "co"} {
		go func(term string) {
			_, ok, err := d.SearchDebounced(context.Background(), term)
			assert.NoError(t, err)
			results <- result{term, ok}
		}(term)
		time.Sleep(10 * time.Millisecond)
	}

	html, ok, err := d.SearchDebounced(context.Background(), "mmr")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, string(html), "MMR")

	for i := 0; i < 2; i++ {
		r := <-results
		assert.False(t, r.ok, "superseded search %q must not apply", r.term)
	}
	assert.Equal(t, "mmr", d.Snapshot().Search)
}

func TestSearchDebouncedContextCancel(t *testing.T) {
	f := setup(t)
	d := f.dashboard(fixed(adminIdent), WithSearchDebounce(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := d.SearchDebounced(ctx, "covid")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefreshFailureKeepsData(t *testing.T) {
	f := setup(t)
	f.seed(t, covidFor(aliceIdent.ID))

	d := f.dashboard(fixed(adminIdent))
	ctx := context.Background()
	require.NoError(t, d.Init(ctx))

	f.spy.failLists(types.Transient("list records", errors.New("timeout")))
	err := d.Refresh(ctx)
	assert.True(t, errors.Is(err, types.ErrTransient))

	snap := d.Snapshot()
	assert.Equal(t, Ready, snap.State)
	assert.Len(t, snap.Records, 1)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, "Could not refresh vaccination records", snap.Notice.Message)
}

func TestBusyControlsClearAfterFailure(t *testing.T) {
	f := setup(t)
	d := f.dashboard(fixed(adminIdent))
	ctx := context.Background()
	require.NoError(t, d.Init(ctx))

	err := d.UpdateRecord(ctx, "missing", covidFor(aliceIdent.ID))
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.Empty(t, d.Snapshot().Busy)

	done := d.markBusy(ControlDelete + ":x")
	assert.Equal(t, []string{"delete:x"}, d.Snapshot().Busy)
	done()
	assert.Empty(t, d.Snapshot().Busy)
}

func TestSignOutClearsState(t *testing.T) {
	f := setup(t)
	f.seed(t, covidFor(aliceIdent.ID))

	d := f.dashboard(fixed(adminIdent))
	require.NoError(t, d.Init(context.Background()))
	_, err := d.Search("covid")
	require.NoError(t, err)

	d.SignOut()

	snap := d.Snapshot()
	assert.Equal(t, Uninitialized, snap.State)
	assert.Empty(t, snap.Identity.ID)
	assert.Empty(t, snap.Records)
	assert.Empty(t, snap.Reminders)
	assert.Empty(t, snap.Search)
	assert.Nil(t, snap.Notice)
	assert.Equal(t, Stats{}, snap.Stats)
	assert.Empty(t, snap.Surfaces.Records)

	_, err = d.AddRecord(context.Background(), covidFor(aliceIdent.ID))
	assert.True(t, errors.Is(err, types.ErrUnauthenticated))
}

func TestFormAndPage(t *testing.T) {
	f := setup(t)
	rec := f.seed(t, covidFor(aliceIdent.ID))

	admin := f.dashboard(fixed(adminIdent))
	ctx := context.Background()
	require.NoError(t, admin.Init(ctx))

	form, err := admin.Form(ctx, rec.ID)
	require.NoError(t, err)
	assert.Contains(t, string(form), `action="/dashboard/records/`+rec.ID+`"`)
	assert.Contains(t, string(form), `<option value="alice-1" selected>`)

	page, err := admin.Page(form)
	require.NoError(t, err)
	assert.Contains(t, string(page), "Ada Admin (admin)")
	assert.Contains(t, string(page), `id="record-form"`)

	user := f.dashboard(fixed(aliceIdent))
	require.NoError(t, user.Init(ctx))
	_, err = user.Form(ctx, "")
	assert.True(t, errors.Is(err, types.ErrAccessDenied))
}
