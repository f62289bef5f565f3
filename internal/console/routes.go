package console

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nwl-centralize/backoffice/internal/apperrors"
	"github.com/nwl-centralize/backoffice/internal/transport"
	"github.com/nwl-centralize/backoffice/internal/utils"
)

type errorResponse struct {
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Persistent    bool   `json:"persistent"`
	LoginRequired bool   `json:"loginRequired"`
	Reason        string `json:"reason,omitempty"`
	Redirect      string `json:"redirect,omitempty"`
}

type assignUsersRequest struct {
	UserIDs []string `json:"userIds"`
}

type assignDevicesRequest struct {
	DeviceIDs []string `json:"deviceIds"`
}

// GetLogin is the login entry point the UI is sent to once the session is gone.
func (s *Server) GetLogin(c echo.Context) error {
	session, err := s.auth.Session(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"page": "login", "authenticated": session.IsAuthenticated()})
}

// GetLoginPage serves the login screen the browser lands on after a redirect to login.
// Without a renderer it answers like GetLogin.
func (s *Server) GetLoginPage(c echo.Context) error {
	if c.Echo().Renderer == nil {
		return s.GetLogin(c)
	}
	data := map[string]any{"loginURL": s.basePath + "/login"}
	if tripped, reason := s.boundary.LoginRequired(); tripped {
		data["reason"] = reason
	}
	return c.Render(http.StatusOK, "login", data)
}

func (s *Server) PostLogin(c echo.Context) error {
	var body loginRequest
	err := c.Bind(&body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid request, please check your data"})
	}
	session, err := s.auth.Login(c.Request().Context(), body.Email, body.Password, body.RememberMe)
	if err != nil {
		return s.fail(c, err)
	}
	s.boundary.Reset()
	return c.JSON(http.StatusOK, sessionResponse{
		Authenticated: session.IsAuthenticated(),
		Persistent:    session.RefreshToken != nil && session.RefreshToken.Persistent,
		Redirect:      "/users",
	})
}

func (s *Server) PostLogout(c echo.Context) error {
	err := s.auth.Logout(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, sessionResponse{Redirect: LoginPage})
}

func (s *Server) GetSession(c echo.Context) error {
	session, err := s.auth.Session(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	loginRequired, reason := s.boundary.LoginRequired()
	res := sessionResponse{
		Authenticated: session.IsAuthenticated(),
		Persistent:    session.RefreshToken != nil && session.RefreshToken.Persistent,
		LoginRequired: loginRequired || !session.IsAuthenticated(),
		Reason:        reason,
	}
	if res.LoginRequired {
		res.Redirect = LoginPage
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) GetNotifications(c echo.Context) error {
	return c.JSON(http.StatusOK, s.notifications.Drain())
}

func (s *Server) PostAssignUsers(c echo.Context) error {
	var body assignUsersRequest
	err := c.Bind(&body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid request, please check your data"})
	}
	err = s.projects.AssignUsers(c.Request().Context(), c.Param("id"), body.UserIDs)
	if err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) PostAssignDevices(c echo.Context) error {
	var body assignDevicesRequest
	err := c.Bind(&body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid request, please check your data"})
	}
	err = s.projects.AssignDevices(c.Request().Context(), c.Param("id"), body.DeviceIDs)
	if err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func registerResource[T any](e *echo.Group, path string, svc ResourceService[T], fail func(echo.Context, error) error) {
	e.GET(path, func(c echo.Context) error {
		items, err := svc.List(c.Request().Context())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, items)
	})
	e.POST(path, func(c echo.Context) error {
		var item T
		err := c.Bind(&item)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid request, please check your data"})
		}
		created, err := svc.Create(c.Request().Context(), item)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusCreated, created)
	})
	e.GET(path+"/:id", func(c echo.Context) error {
		item, err := svc.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, item)
	})
	e.PATCH(path+"/:id", func(c echo.Context) error {
		changes := map[string]any{}
		// only the body, path parameters must not end up in the changes
		err := new(echo.DefaultBinder).BindBody(c, &changes)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid request, please check your data"})
		}
		updated, err := svc.Update(c.Request().Context(), c.Param("id"), changes)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, updated)
	})
	e.DELETE(path+"/:id", func(c echo.Context) error {
		err := svc.Delete(c.Request().Context(), c.Param("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	})
}

// fail turns an error of the client stack into the response shown by the UI.
func (s *Server) fail(c echo.Context, err error) error {
	slog.Info(
		"CONSOLE",
		"message", "request failed",
		"requestID", utils.GetRequestID(c),
		"traceID", utils.GetTraceID(c),
		"error", err,
	)
	var failure *transport.HTTPFailure
	switch {
	case errors.Is(err, apperrors.ErrNoRefreshToken):
		return c.JSON(http.StatusUnauthorized, errorResponse{Message: apperrors.ErrNoRefreshToken.Error(), Redirect: LoginPage})
	case apperrors.IsTerminal(err):
		return c.JSON(http.StatusUnauthorized, errorResponse{Message: apperrors.ErrSessionExpired.Error(), Redirect: LoginPage})
	case errors.Is(err, apperrors.ErrRoleNotAllowed):
		return c.JSON(http.StatusForbidden, errorResponse{Message: apperrors.ErrRoleNotAllowed.Error()})
	case errors.Is(err, apperrors.ErrMissingCredentials):
		return c.JSON(http.StatusBadRequest, errorResponse{Message: apperrors.ErrMissingCredentials.Error()})
	case errors.Is(err, apperrors.ErrConnection):
		return c.JSON(http.StatusBadGateway, errorResponse{Message: apperrors.ErrConnection.Error()})
	case errors.As(err, &failure):
		return c.JSON(failure.Status, errorResponse{Message: failure.Message})
	default:
		slog.Error("CONSOLE", "message", "unexpected failure", "requestID", utils.GetRequestID(c), "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "server error, please try again later"})
	}
}
