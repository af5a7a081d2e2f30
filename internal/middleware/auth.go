package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/vaxtrack/internal/session"
	"github.com/localnerve/vaxtrack/internal/types"
	"github.com/localnerve/vaxtrack/internal/utils"
)

// LocalsSession is the fiber.Locals key holding the resolved *session.Session
const LocalsSession = "session"

// RequireSession rejects requests without a valid session cookie
func RequireSession(bridge *session.Bridge) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := resolve(c, bridge); err != nil {
			return utils.ErrorResponse(c, "Session cookie \""+session.CookieName+"\" missing or invalid",
				fiber.StatusUnauthorized, types.Kind(err))
		}
		return c.Next()
	}
}

// OptionalSession attaches the session when the cookie is valid and continues either way
func OptionalSession(bridge *session.Bridge) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_ = resolve(c, bridge)
		return c.Next()
	}
}

// resolve validates the cookie and stores the session in Locals and the user context
func resolve(c *fiber.Ctx, bridge *session.Bridge) error {
	sess, err := bridge.Resume(c.UserContext(), c.Cookies(session.CookieName))
	if err != nil {
		return err
	}
	c.Locals(LocalsSession, sess)
	c.SetUserContext(session.NewContext(c.UserContext(), sess))
	return nil
}

// CurrentSession returns the session attached by the middleware, if any
func CurrentSession(c *fiber.Ctx) (*session.Session, bool) {
	sess, ok := c.Locals(LocalsSession).(*session.Session)
	return sess, ok && sess != nil
}
