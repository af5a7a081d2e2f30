// store.go
//
// Personal vaccination record tracker with role-aware dashboards
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of vaxtrack.
// vaxtrack is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// vaxtrack is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with vaxtrack.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package store is the record/reminder store client.
//
// Every call is scoped to a Caller. Non-admin callers are restricted to their
// own rows here, and on postgres the user pool additionally runs under
// row-level security keyed by app.user_id, which is the authoritative check.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/localnerve/vaxtrack/internal/database"
	"github.com/localnerve/vaxtrack/internal/metrics"
	"github.com/localnerve/vaxtrack/internal/status"
	"github.com/localnerve/vaxtrack/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// Caller identifies who issues a store call
type Caller struct {
	ID    string
	Admin bool
}

// Store wraps the app pool (profiles) and the user pool (records, reminders)
type Store struct {
	app     *gorm.DB
	user    *gorm.DB
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	loc     *time.Location
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the clock used for date validation
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the zone whose calendar defines today
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// WithMetrics counts reminder sync failures
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates a Store. app and user may be the same handle.
func New(app, user *gorm.DB, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		app:  app,
		user: user,
		log:  log,
		now:  time.Now,
		loc:  time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the calendar date used for validation
func (s *Store) Today() time.Time {
	return status.Today(s.now(), s.loc)
}

// scoped runs fn in a user pool transaction bound to caller
func (s *Store) scoped(ctx context.Context, caller Caller, fn func(tx *gorm.DB) error) error {
	return s.user.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if database.IsPostgres(tx) {
			if err := tx.Exec("SELECT set_config('app.user_id', ?, true)", caller.ID).Error; err != nil {
				return err
			}
		}
		return fn(tx)
	})
}

// tag prefixes the statement with an SQL comment naming the operation
func tag(tx *gorm.DB, clause, op string) *gorm.DB {
	return tx.Clauses(hints.CommentBefore(clause, "vaxtrack:"+op))
}

// mapError converts driver errors into the error taxonomy
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *types.Error
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NotFound(op + ": record not found")
	}
	return types.Transient(op, err)
}
