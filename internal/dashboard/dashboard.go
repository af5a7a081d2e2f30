// Package dashboard is the role-aware view-model behind the vaccination
// dashboard.
//
// A Dashboard loads the caller's records and reminders, derives the stat
// counters, and keeps the three rendered surfaces (record list, reminder
// list, stats) consistent with the store after every mutation. Writes are
// gated on the admin role before any store call is made.
//
// The mutex guards state only while it is read or swapped. Store calls run
// outside it, so overlapping reloads are not serialized and the last one to
// finish wins.
package dashboard

import (
	"context"
	"errors"
	"html/template"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/localnerve/vaxtrack/internal/metrics"
	"github.com/localnerve/vaxtrack/internal/models"
	"github.com/localnerve/vaxtrack/internal/render"
	"github.com/localnerve/vaxtrack/internal/session"
	"github.com/localnerve/vaxtrack/internal/status"
	"github.com/localnerve/vaxtrack/internal/store"
	"github.com/localnerve/vaxtrack/internal/types"
	"github.com/localnerve/vaxtrack/internal/validation"
	"go.uber.org/zap"
)

// Store is the part of the store client the dashboard drives
type Store interface {
	EnsureProfile(ctx context.Context, seed models.Profile) (*models.Profile, error)
	ListProfiles(ctx context.Context, caller store.Caller) ([]models.Profile, error)
	ListRecords(ctx context.Context, caller store.Caller, ownerFilter string) ([]models.VaccinationRecord, error)
	ListOpenReminders(ctx context.Context, caller store.Caller, ownerFilter string) ([]models.Reminder, error)
	GetRecord(ctx context.Context, caller store.Caller, id string) (*models.VaccinationRecord, error)
	InsertRecord(ctx context.Context, caller store.Caller, fields validation.Fields) (*models.VaccinationRecord, error)
	UpdateRecord(ctx context.Context, caller store.Caller, id string, fields validation.Fields) error
	DeleteRecord(ctx context.Context, caller store.Caller, id string) error
}

// IdentityResolver reports who is signed in for a request
type IdentityResolver interface {
	CurrentIdentity(ctx context.Context) (session.Identity, error)
}

// Busy control names. Per-record controls are suffixed with ":<id>".
const (
	ControlRetry   = "retry"
	ControlRefresh = "refresh"
	ControlAdd     = "add"
	ControlEdit    = "edit"
	ControlUpdate  = "update"
	ControlDelete  = "delete"
)

// Mutation operation labels
const (
	OpAdd    = "add"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Defaults used when no option overrides them
const (
	DefaultSearchDebounce = 300 * time.Millisecond
	DefaultNoticeTTL      = 4 * time.Second
)

// Surfaces are the three rendered fragments
type Surfaces struct {
	Records   template.HTML
	Reminders template.HTML
	Stats     template.HTML
}

// Snapshot is a read-only copy of the dashboard
type Snapshot struct {
	State       State                `json:"state"`
	Error       string               `json:"error,omitempty"`
	Identity    session.Identity     `json:"identity"`
	Role        models.Role          `json:"role"`
	Permissions render.Permissions   `json:"permissions"`
	Stats       Stats                `json:"stats"`
	Search      string               `json:"search"`
	Notice      *Notice              `json:"notice,omitempty"`
	Busy        []string             `json:"busy"`
	Records     []render.RecordRow   `json:"records"`
	Reminders   []render.ReminderRow `json:"reminders"`
	Surfaces    Surfaces             `json:"-"`
}

// Option configures a Dashboard
type Option func(*Dashboard)

// WithClock overrides the clock
func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) { d.now = now }
}

// WithLocation sets the zone whose calendar defines today
func WithLocation(loc *time.Location) Option {
	return func(d *Dashboard) { d.loc = loc }
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(d *Dashboard) { d.log = log }
}

// WithMetrics counts mutation outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dashboard) { d.metrics = m }
}

// WithSearchDebounce sets the search quiet period
func WithSearchDebounce(delay time.Duration) Option {
	return func(d *Dashboard) { d.debounce = delay }
}

// WithNoticeTTL sets how long notices stay visible
func WithNoticeTTL(ttl time.Duration) Option {
	return func(d *Dashboard) { d.noticeTTL = ttl }
}

// Dashboard is one signed-in user's view-model
type Dashboard struct {
	store    Store
	identity IdentityResolver
	views    *render.Renderer
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	loc      *time.Location

	debounce  time.Duration
	noticeTTL time.Duration
	notifier  *Notifier
	debouncer *Debouncer

	mu        sync.Mutex
	gen       uint64
	state     State
	errMsg    string
	user      session.Identity
	profile   *models.Profile
	records   []models.VaccinationRecord
	reminders []models.Reminder
	search    string
	stats     Stats
	surfaces  Surfaces
	busy      map[string]int
}

// New creates an uninitialized dashboard
func New(st Store, identity IdentityResolver, views *render.Renderer, opts ...Option) *Dashboard {
	d := &Dashboard{
		store:     st,
		identity:  identity,
		views:     views,
		log:       zap.NewNop(),
		now:       time.Now,
		loc:       time.UTC,
		debounce:  DefaultSearchDebounce,
		noticeTTL: DefaultNoticeTTL,
		busy:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.notifier = NewNotifier(d.noticeTTL)
	d.debouncer = NewDebouncer(d.debounce)
	return d
}

func (d *Dashboard) today() time.Time {
	return status.Today(d.now(), d.loc)
}

// State returns the lifecycle position
func (d *Dashboard) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Role returns the loaded role, RoleUser until a profile is resolved
func (d *Dashboard) Role() models.Role {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.roleLocked()
}

func (d *Dashboard) roleLocked() models.Role {
	if d.profile == nil {
		return models.RoleUser
	}
	return d.profile.Role
}

func (d *Dashboard) callerLocked() store.Caller {
	return store.Caller{ID: d.user.ID, Admin: d.roleLocked().IsAdmin()}
}

// ownerFilterLocked is the owner scope of every load: self for users, none for admins
func (d *Dashboard) ownerFilterLocked() string {
	if d.roleLocked().IsAdmin() {
		return ""
	}
	return d.user.ID
}

// Init runs the full initialization path from LoadingUser
func (d *Dashboard) Init(ctx context.Context) error {
	d.mu.Lock()
	d.state = LoadingUser
	d.errMsg = ""
	gen := d.gen
	d.mu.Unlock()
	return d.initialize(ctx, gen)
}

// Ensure initializes the dashboard if nothing has started it yet
func (d *Dashboard) Ensure(ctx context.Context) error {
	d.mu.Lock()
	if d.state != Uninitialized {
		d.mu.Unlock()
		return nil
	}
	d.state = LoadingUser
	gen := d.gen
	d.mu.Unlock()
	return d.initialize(ctx, gen)
}

func (d *Dashboard) initialize(ctx context.Context, gen uint64) error {
	identity, err := d.identity.CurrentIdentity(ctx)
	if err != nil {
		d.fail(gen, "no authenticated session", err)
		return err
	}

	profile := d.resolveProfile(ctx, identity)

	d.mu.Lock()
	if d.gen != gen {
		d.mu.Unlock()
		return nil
	}
	d.user = identity
	d.profile = profile
	d.state = LoadingData
	d.mu.Unlock()

	if err := d.load(ctx, gen); err != nil {
		d.fail(gen, "failed to load vaccination records", err)
		return err
	}
	return nil
}

// resolveProfile provisions the profile; failure falls back to role user
func (d *Dashboard) resolveProfile(ctx context.Context, identity session.Identity) *models.Profile {
	profile, err := d.store.EnsureProfile(ctx, models.Profile{
		ID:       identity.ID,
		Email:    identity.Email,
		FullName: identity.Name,
	})
	if err != nil {
		d.log.Warn("profile lookup failed, continuing as user",
			zap.String("user_id", identity.ID), zap.Error(err))
		return &models.Profile{
			ID:       identity.ID,
			Email:    identity.Email,
			FullName: identity.Name,
			Role:     models.RoleUser,
		}
	}
	return profile
}

func (d *Dashboard) fail(gen uint64, message string, err error) {
	d.mu.Lock()
	if d.gen != gen {
		d.mu.Unlock()
		return
	}
	d.state = Error
	d.errMsg = message
	d.mu.Unlock()

	d.log.Error("dashboard initialization failed", zap.String("reason", message), zap.Error(err))
	d.notifier.Show(NoticeError, message)
}

// load fetches both sets, recomputes stats and re-renders every surface
func (d *Dashboard) load(ctx context.Context, gen uint64) error {
	d.mu.Lock()
	caller := d.callerLocked()
	filter := d.ownerFilterLocked()
	d.mu.Unlock()

	records, err := d.store.ListRecords(ctx, caller, filter)
	if err != nil {
		return err
	}
	reminders, err := d.store.ListOpenReminders(ctx, caller, filter)
	if err != nil {
		return err
	}

	today := d.today()
	stats := ComputeStats(records, reminders, today)

	d.mu.Lock()
	search := d.search
	role := d.roleLocked()
	d.mu.Unlock()

	surfaces, err := d.renderSurfaces(records, reminders, stats, search, role, today)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen {
		return nil
	}
	d.records = records
	d.reminders = reminders
	d.stats = stats
	d.surfaces = surfaces
	d.state = Ready
	d.errMsg = ""
	return nil
}

func (d *Dashboard) renderSurfaces(records []models.VaccinationRecord, reminders []models.Reminder, stats Stats, search string, role models.Role, today time.Time) (Surfaces, error) {
	var s Surfaces
	var err error

	if s.Records, err = d.views.RecordList(recordListView(records, search, role, today)); err != nil {
		return s, err
	}
	if s.Reminders, err = d.views.ReminderList(render.ReminderListView{
		Rows:  render.ReminderRows(reminders, today),
		Admin: role.IsAdmin(),
	}); err != nil {
		return s, err
	}
	s.Stats, err = d.views.Stats(render.StatsView(stats))
	return s, err
}

func recordListView(records []models.VaccinationRecord, search string, role models.Role, today time.Time) render.RecordListView {
	return render.RecordListView{
		Rows:        render.RecordRows(FilterRecords(records, search, role.IsAdmin()), today),
		Admin:       role.IsAdmin(),
		Search:      strings.TrimSpace(search),
		Permissions: render.DeriveViewPermissions(role),
	}
}

// FilterRecords keeps records whose vaccine name contains term, ignoring case.
// Admins also match on the owner's name and email. An empty term keeps all.
func FilterRecords(records []models.VaccinationRecord, term string, admin bool) []models.VaccinationRecord {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return records
	}

	out := make([]models.VaccinationRecord, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.VaccineName), term) {
			out = append(out, r)
			continue
		}
		if admin && r.Owner != nil &&
			(strings.Contains(strings.ToLower(r.Owner.FullName), term) ||
				strings.Contains(strings.ToLower(r.Owner.Email), term)) {
			out = append(out, r)
		}
	}
	return out
}

// Retry re-runs initialization after an error. From any other state it refreshes.
func (d *Dashboard) Retry(ctx context.Context) error {
	done := d.markBusy(ControlRetry)
	defer done()

	switch d.State() {
	case Error, Uninitialized:
		return d.Init(ctx)
	}
	return d.Refresh(ctx)
}

// Refresh reloads from the store. On failure the previous data stays and an
// error notice is shown.
func (d *Dashboard) Refresh(ctx context.Context) error {
	done := d.markBusy(ControlRefresh)
	defer done()
	return d.refresh(ctx)
}

func (d *Dashboard) refresh(ctx context.Context) error {
	d.mu.Lock()
	switch d.state {
	case Uninitialized, Error:
		d.mu.Unlock()
		return d.Init(ctx)
	}
	prev := d.state
	d.state = LoadingData
	gen := d.gen
	d.mu.Unlock()

	if err := d.load(ctx, gen); err != nil {
		d.mu.Lock()
		if d.gen == gen && d.state == LoadingData {
			d.state = prev
		}
		d.mu.Unlock()
		d.report("Could not refresh vaccination records", err)
		return err
	}
	return nil
}

// Search filters the loaded records and re-renders the record list only
func (d *Dashboard) Search(term string) (template.HTML, error) {
	d.mu.Lock()
	d.search = term
	records := d.records
	role := d.roleLocked()
	d.mu.Unlock()

	html, err := d.views.RecordList(recordListView(records, term, role, d.today()))
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	if d.search == term {
		d.surfaces.Records = html
	}
	d.mu.Unlock()
	return html, nil
}

// SearchDebounced applies term once the search quiet period passes without a
// newer call. Superseded calls return ok=false and change nothing.
func (d *Dashboard) SearchDebounced(ctx context.Context, term string) (html template.HTML, ok bool, err error) {
	fire := d.debouncer.Trigger()
	select {
	case ok = <-fire:
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
	if !ok {
		return "", false, nil
	}
	html, err = d.Search(term)
	return html, err == nil, err
}

// requireAdmin returns the caller when the role allows writes, along with
// the generation the caller belongs to.
func (d *Dashboard) requireAdmin(action string) (store.Caller, uint64, error) {
	d.mu.Lock()
	caller := d.callerLocked()
	signedIn := d.profile != nil
	gen := d.gen
	d.mu.Unlock()

	if !signedIn {
		return caller, gen, types.ErrUnauthenticated
	}
	if !caller.Admin {
		return caller, gen, types.AccessDenied("only administrators can " + action)
	}
	return caller, gen, nil
}

// signedOutSince reports whether SignOut ran after gen was captured
func (d *Dashboard) signedOutSince(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen != gen
}

func (d *Dashboard) markBusy(control string) func() {
	d.mu.Lock()
	d.busy[control]++
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.busy[control] <= 1 {
			delete(d.busy, control)
			return
		}
		d.busy[control]--
	}
}

// report logs err and surfaces it as an error notice
func (d *Dashboard) report(message string, err error) {
	notice := message
	if msg := types.Message(err); msg != "" && !errors.Is(err, types.ErrTransient) {
		notice = msg
	}
	switch {
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrAccessDenied), errors.Is(err, types.ErrNotFound):
		d.log.Info(message, zap.String("kind", types.Kind(err)), zap.Error(err))
	default:
		d.log.Error(message, zap.String("kind", types.Kind(err)), zap.Error(err))
	}
	d.notifier.Show(NoticeError, notice)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, types.ErrAccessDenied):
		return metrics.OutcomeDenied
	case errors.Is(err, types.ErrValidation):
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeFailed
}

func (d *Dashboard) mutationFailed(op, message string, err error) {
	d.metrics.Mutation(op, outcomeOf(err))
	d.report(message, err)
}

// mutated counts a success and re-runs the full reload path. A dashboard
// signed out while the write was in flight stays cleared.
func (d *Dashboard) mutated(ctx context.Context, gen uint64, op, message string) {
	d.metrics.Mutation(op, metrics.OutcomeSuccess)
	if d.signedOutSince(gen) {
		d.log.Debug("skipping reload after sign-out", zap.String("op", op))
		return
	}
	d.notifier.Show(NoticeSuccess, message)
	if err := d.refresh(ctx); err != nil {
		d.log.Warn("reload after mutation failed", zap.String("op", op), zap.Error(err))
	}
}

// AddRecord creates a record. Admin only.
func (d *Dashboard) AddRecord(ctx context.Context, fields validation.Fields) (*models.VaccinationRecord, error) {
	caller, gen, err := d.requireAdmin("add records")
	if err != nil {
		d.mutationFailed(OpAdd, "Could not add record", err)
		return nil, err
	}

	done := d.markBusy(ControlAdd)
	defer done()

	rec, err := d.store.InsertRecord(ctx, caller, fields)
	if err != nil {
		d.mutationFailed(OpAdd, "Could not add record", err)
		return nil, err
	}

	d.mutated(ctx, gen, OpAdd, "Vaccination record added")
	return rec, nil
}

// EditRecord returns the form population for record id. Admin only.
func (d *Dashboard) EditRecord(ctx context.Context, id string) (validation.Fields, error) {
	caller, _, err := d.requireAdmin("edit records")
	if err != nil {
		d.report("Could not edit record", err)
		return validation.Fields{}, err
	}

	done := d.markBusy(ControlEdit + ":" + id)
	defer done()

	rec, err := d.store.GetRecord(ctx, caller, id)
	if err != nil {
		d.report("Could not load record", err)
		return validation.Fields{}, err
	}
	return validation.FieldsFromRecord(*rec), nil
}

// UpdateRecord replaces every field of record id. Admin only.
func (d *Dashboard) UpdateRecord(ctx context.Context, id string, fields validation.Fields) error {
	caller, gen, err := d.requireAdmin("edit records")
	if err != nil {
		d.mutationFailed(OpUpdate, "Could not update record", err)
		return err
	}

	done := d.markBusy(ControlUpdate + ":" + id)
	defer done()

	if err := d.store.UpdateRecord(ctx, caller, id, fields); err != nil {
		d.mutationFailed(OpUpdate, "Could not update record", err)
		return err
	}

	d.mutated(ctx, gen, OpUpdate, "Vaccination record updated")
	return nil
}

// DeleteRecord deletes record id once confirmed. Without confirmation
// nothing is sent and deleted is false. Admin only.
func (d *Dashboard) DeleteRecord(ctx context.Context, id string, confirm bool) (deleted bool, err error) {
	caller, gen, err := d.requireAdmin("delete records")
	if err != nil {
		d.mutationFailed(OpDelete, "Could not delete record", err)
		return false, err
	}
	if !confirm {
		return false, nil
	}

	done := d.markBusy(ControlDelete + ":" + id)
	defer done()

	if err := d.store.DeleteRecord(ctx, caller, id); err != nil {
		d.mutationFailed(OpDelete, "Could not delete record", err)
		return false, err
	}

	d.mutated(ctx, gen, OpDelete, "Vaccination record deleted")
	return true, nil
}

// Owners lists every profile for the admin owner picker
func (d *Dashboard) Owners(ctx context.Context) ([]models.Profile, error) {
	caller, _, err := d.requireAdmin("list owners")
	if err != nil {
		return nil, err
	}
	profiles, err := d.store.ListProfiles(ctx, caller)
	if err != nil {
		d.report("Could not load owners", err)
		return nil, err
	}
	return profiles, nil
}

// SignOut drops every piece of in-memory state
func (d *Dashboard) SignOut() {
	d.notifier.Clear()
	d.debouncer.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.state = Uninitialized
	d.errMsg = ""
	d.user = session.Identity{}
	d.profile = nil
	d.records = nil
	d.reminders = nil
	d.search = ""
	d.stats = Stats{}
	d.surfaces = Surfaces{}
	d.busy = make(map[string]int)
}

// Snapshot copies the current state for handlers and tests
func (d *Dashboard) Snapshot() Snapshot {
	today := d.today()

	d.mu.Lock()
	role := d.roleLocked()
	snap := Snapshot{
		State:       d.state,
		Error:       d.errMsg,
		Identity:    d.user,
		Role:        role,
		Permissions: render.DeriveViewPermissions(role),
		Stats:       d.stats,
		Search:      d.search,
		Surfaces:    d.surfaces,
		Busy:        make([]string, 0, len(d.busy)),
	}
	for control := range d.busy {
		snap.Busy = append(snap.Busy, control)
	}
	if d.profile == nil {
		snap.Role = ""
		snap.Permissions = render.Permissions{}
	}
	records := d.records
	reminders := d.reminders
	d.mu.Unlock()

	sort.Strings(snap.Busy)
	snap.Notice = d.notifier.Current()
	snap.Records = render.RecordRows(FilterRecords(records, snap.Search, role.IsAdmin()), today)
	snap.Reminders = render.ReminderRows(reminders, today)
	return snap
}

// Form renders the add form, or the edit form when id is set. Admin only.
func (d *Dashboard) Form(ctx context.Context, id string) (template.HTML, error) {
	view := render.FormView{RecordID: id, Admin: true}

	if id != "" {
		fields, err := d.EditRecord(ctx, id)
		if err != nil {
			return "", err
		}
		view.Fields = fields
	} else if _, _, err := d.requireAdmin("add records"); err != nil {
		return "", err
	}
	return d.renderForm(ctx, view)
}

// FormWithError re-renders a rejected submission with its values and the
// failing rule. Admin only.
func (d *Dashboard) FormWithError(ctx context.Context, id string, fields validation.Fields, cause error) (template.HTML, error) {
	if _, _, err := d.requireAdmin("edit records"); err != nil {
		return "", err
	}
	return d.renderForm(ctx, render.FormView{
		RecordID: id,
		Fields:   fields,
		Admin:    true,
		Error:    types.Message(cause),
		Rule:     types.Rule(cause),
	})
}

func (d *Dashboard) renderForm(ctx context.Context, view render.FormView) (template.HTML, error) {
	owners, err := d.Owners(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range owners {
		view.Owners = append(view.Owners, render.OwnerOption{ID: p.ID, Name: p.DisplayName()})
	}
	if view.Fields.OwnerID == "" {
		view.Fields.OwnerID = d.Snapshot().Identity.ID
	}
	return d.views.Form(view)
}

// ConfirmDelete renders the confirmation step for deleting record id. Admin only.
func (d *Dashboard) ConfirmDelete(ctx context.Context, id string) (template.HTML, error) {
	caller, _, err := d.requireAdmin("delete records")
	if err != nil {
		d.report("Could not delete record", err)
		return "", err
	}

	rec, err := d.store.GetRecord(ctx, caller, id)
	if err != nil {
		d.report("Could not load record", err)
		return "", err
	}

	view := render.ConfirmView{
		RecordID:    rec.ID,
		VaccineName: rec.VaccineName,
		DoseNumber:  rec.DoseNumber,
		DateGiven:   rec.DateGivenTime().Format(models.DateLayout),
	}
	d.mu.Lock()
	for _, r := range d.records {
		if r.ID == rec.ID && r.Owner != nil {
			view.OwnerName = r.Owner.DisplayName()
		}
	}
	d.mu.Unlock()
	return d.views.ConfirmDelete(view)
}

// Page renders the full dashboard with an optional form fragment
func (d *Dashboard) Page(form template.HTML) (template.HTML, error) {
	snap := d.Snapshot()

	view := render.PageView{
		UserName:    snap.Identity.Name,
		Role:        snap.Role,
		State:       snap.State.String(),
		Error:       snap.Error,
		Search:      snap.Search,
		Permissions: snap.Permissions,
		Stats:       snap.Surfaces.Stats,
		Records:     snap.Surfaces.Records,
		Reminders:   snap.Surfaces.Reminders,
		Form:        form,
	}
	if view.UserName == "" {
		view.UserName = snap.Identity.Email
	}
	if snap.Notice != nil {
		view.Notice = &render.NoticeView{Kind: string(snap.Notice.Kind), Message: snap.Notice.Message}
	}
	return d.views.Page(view)
}
