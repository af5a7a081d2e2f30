// session.go
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

// Package session bridges the authentication provider to the dashboards.
//
// An Authenticator turns a session token into a Session. The Bridge keeps
// track of which sessions it has seen, publishes SIGNED_IN and SIGNED_OUT
// events on a Bus, and exposes the request's identity through the context.
package session

import (
	"context"

	"github.com/google/uuid"
)

// CookieName is the session cookie set by the authentication provider
const CookieName = "cookie_session"

// Identity is the authenticated user as reported by the provider
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Session is one validated sign-in
type Session struct {
	ID       string   `json:"id"`
	Token    string   `json:"-"`
	Identity Identity `json:"identity"`
}

// sessionNamespace derives stable session ids from tokens
var sessionNamespace = uuid.MustParse("6f1c8a52-3f0e-4d4c-9b3e-5a6c2f7d1e90")

// NewSession builds a Session whose ID is derived from the token
func NewSession(token string, identity Identity) *Session {
	return &Session{
		ID:       uuid.NewSHA1(sessionNamespace, []byte(token)).String(),
		Token:    token,
		Identity: identity,
	}
}

// Authenticator validates a session token
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Session, error)
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying sess
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session carried by ctx, if any
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}
