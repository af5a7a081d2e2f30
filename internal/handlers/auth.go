package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/vaxtrack/internal/middleware"
	"github.com/localnerve/vaxtrack/internal/session"
	"github.com/localnerve/vaxtrack/internal/types"
	"github.com/localnerve/vaxtrack/internal/utils"
)

// AuthHandler handles session routes
type AuthHandler struct {
	Bridge *session.Bridge
}

// Logout handles POST /api/auth/logout
// @Summary Sign out
// @Description Publishes SIGNED_OUT so every instance drops the session's dashboard
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return utils.StoreErrorResponse(c, types.ErrUnauthenticated)
	}
	if err := h.Bridge.SignOut(c.UserContext(), sess); err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusServiceUnavailable, "session.signout")
	}
	c.ClearCookie(session.CookieName)
	return utils.MutationSuccessResponse(c, fiber.StatusOK, sess.ID, "Signed out")
}

// SignOutPage handles POST /dashboard/logout from the page's sign-out form
// and returns the browser to the signed-out dashboard.
func (h *AuthHandler) SignOutPage(c *fiber.Ctx) error {
	if sess, ok := middleware.CurrentSession(c); ok {
		// The cookie is cleared even when the event cannot be published.
		_ = h.Bridge.SignOut(c.UserContext(), sess)
	}
	c.ClearCookie(session.CookieName)
	return c.Redirect(dashboardPath, fiber.StatusSeeOther)
}
