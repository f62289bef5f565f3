package console

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nwl-centralize/backoffice/internal/apperrors"
	"github.com/nwl-centralize/backoffice/internal/models"
	"github.com/nwl-centralize/backoffice/internal/transport"
	"github.com/nwl-centralize/backoffice/internal/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	session    models.Session
	loginErr   error
	logoutErr  error
	rememberMe bool
	loggedOut  bool
}

func (f *fakeAuth) Login(_ context.Context, email, password string, rememberMe bool) (models.Session, error) {
	if f.loginErr != nil {
		return models.Session{}, f.loginErr
	}
	f.rememberMe = rememberMe
	f.session = models.Session{
		AccessToken:  &models.Credential{Kind: models.AccessToken, Value: "A1", Persistent: rememberMe},
		RefreshToken: &models.Credential{Kind: models.RefreshToken, Value: "R1", Persistent: rememberMe},
	}
	return f.session, nil
}

func (f *fakeAuth) Logout(context.Context) error {
	f.loggedOut = true
	f.session = models.Session{}
	return f.logoutErr
}

func (f *fakeAuth) Session(context.Context) (models.Session, error) {
	return f.session, nil
}

type fakeService[T any] struct {
	items   []T
	err     error
	changes any
	lastID  string
	lastCtx context.Context
}

func (f *fakeService[T]) List(ctx context.Context) ([]T, error) {
	f.lastCtx = ctx
	return f.items, f.err
}

func (f *fakeService[T]) Get(_ context.Context, id string) (T, error) {
	f.lastID = id
	var zero T
	if f.err != nil || len(f.items) == 0 {
		return zero, f.err
	}
	return f.items[0], nil
}

func (f *fakeService[T]) Create(_ context.Context, item T) (T, error) {
	f.items = append(f.items, item)
	return item, f.err
}

func (f *fakeService[T]) Update(_ context.Context, id string, changes any) (T, error) {
	f.lastID = id
	f.changes = changes
	var zero T
	if len(f.items) > 0 {
		zero = f.items[0]
	}
	return zero, f.err
}

func (f *fakeService[T]) Delete(_ context.Context, id string) error {
	f.lastID = id
	return f.err
}

type fakeProjects struct {
	fakeService[models.Project]
	assignedUsers   []string
	assignedDevices []string
}

func (f *fakeProjects) AssignUsers(_ context.Context, id string, userIDs []string) error {
	f.lastID = id
	f.assignedUsers = userIDs
	return f.err
}

func (f *fakeProjects) AssignDevices(_ context.Context, id string, deviceIDs []string) error {
	f.lastID = id
	f.assignedDevices = deviceIDs
	return f.err
}

type testConsole struct {
	e             *echo.Echo
	auth          *fakeAuth
	users         *fakeService[models.User]
	devices       *fakeService[models.Device]
	projects      *fakeProjects
	boundary      *Boundary
	notifications *Notifications
}

func newTestConsole(t *testing.T) *testConsole {
	tc := &testConsole{
		e:             echo.New(),
		auth:          &fakeAuth{},
		users:         &fakeService[models.User]{},
		devices:       &fakeService[models.Device]{},
		projects:      &fakeProjects{},
		boundary:      NewBoundary(),
		notifications: NewNotifications(2),
	}
	tc.e.Pre(middleware.RequestID())
	server, err := NewServer(
		WithAuthenticator(tc.auth),
		WithUsers(tc.users),
		WithDevices(tc.devices),
		WithProjects(tc.projects),
		WithBoundary(tc.boundary),
		WithNotifications(tc.notifications),
	)
	require.NoError(t, err)
	server.RegisterHandlers(tc.e)
	return tc
}

func (tc *testConsole) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	tc.e.ServeHTTP(rec, req)
	return rec
}

func TestLoginAndSession(t *testing.T) {
	tc := newTestConsole(t)
	tc.boundary.RedirectToLogin(context.Background(), apperrors.ErrSessionExpired)

	rec := tc.do(http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false,"persistent":false,"loginRequired":true,"reason":"session expired, please login again","redirect":"/login"}`, rec.Body.String())

	rec = tc.do(http.MethodPost, "/api/login", `{"email":"admin@example.org","password":"secret","rememberMe":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":true,"persistent":true,"loginRequired":false,"redirect":"/users"}`, rec.Body.String())
	assert.True(t, tc.auth.rememberMe)
	assert.Equal(t, "no-cache, no-store, must-revalidate, max-age=0", rec.Header().Get("Cache-Control"))

	rec = tc.do(http.MethodGet, "/api/session", "")
	assert.JSONEq(t, `{"authenticated":true,"persistent":true,"loginRequired":false}`, rec.Body.String())

	rec = tc.do(http.MethodPost, "/api/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, tc.auth.loggedOut)
	assert.JSONEq(t, `{"authenticated":false,"persistent":false,"loginRequired":false,"redirect":"/login"}`, rec.Body.String())
}

func TestLoginEntryPoint(t *testing.T) {
	tc := newTestConsole(t)

	rec := tc.do(http.MethodGet, "/api/login", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"page":"login","authenticated":false}`, rec.Body.String())
}

func TestLoginPage(t *testing.T) {
	tc := newTestConsole(t)

	// no renderer registered
	rec := tc.do(http.MethodGet, "/login", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"page":"login","authenticated":false}`, rec.Body.String())

	renderer, err := views.NewTemplateRenderer()
	require.NoError(t, err)
	renderer.Register(tc.e)
	tc.boundary.RedirectToLogin(context.Background(), apperrors.ErrSessionExpired)

	rec = tc.do(http.MethodGet, "/login", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache, no-store, must-revalidate, max-age=0", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), `data-action="/api/login"`)
	assert.Contains(t, rec.Body.String(), "session expired, please login again")
}

func TestLoginFailures(t *testing.T) {
	type testCase struct {
		Name     string
		Body     string
		Err      error
		Status   int
		Expected string
	}
	testCases := []testCase{
		{Name: "malformed body", Body: `{"email":`, Status: 400, Expected: `{"message":"invalid request, please check your data"}`},
		{Name: "wrong role", Body: `{"email":"a@b.c","password":"x"}`, Err: apperrors.ErrRoleNotAllowed, Status: 403, Expected: `{"message":"you do not have permission to use the back office"}`},
		{Name: "missing credentials", Body: `{}`, Err: apperrors.ErrMissingCredentials, Status: 400, Expected: `{"message":"the required credentials cannot be found"}`},
		{Name: "bad password", Body: `{"email":"a@b.c","password":"x"}`, Err: &transport.HTTPFailure{Status: 401, Message: "invalid email or password"}, Status: 401, Expected: `{"message":"invalid email or password"}`},
	}
	for _, c := range testCases {
		t.Run(c.Name, func(t *testing.T) {
			tc := newTestConsole(t)
			tc.auth.loginErr = c.Err

			rec := tc.do(http.MethodPost, "/api/login", c.Body)

			assert.Equal(t, c.Status, rec.Code)
			assert.JSONEq(t, c.Expected, rec.Body.String())
		})
	}
}

func TestResourceRoutes(t *testing.T) {
	tc := newTestConsole(t)
	tc.users.items = []models.User{{ID: "u1", Name: "Ann", Email: "ann@example.org", Role: "admin"}}

	rec := tc.do(http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"u1","name":"Ann","email":"ann@example.org","role":"admin"}]`, rec.Body.String())
	assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), transport.RequestIDFromContext(tc.users.lastCtx))

	rec = tc.do(http.MethodGet, "/api/users/u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", tc.users.lastID)

	rec = tc.do(http.MethodPost, "/api/devices", `{"name":"Pump","type":"sensor","serialNumber":"SN1","status":"active"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.Device{Name: "Pump", Type: "sensor", SerialNumber: "SN1", Status: "active"}, tc.devices.items[0])

	rec = tc.do(http.MethodPatch, "/api/devices/d1", `{"status":"inactive"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "d1", tc.devices.lastID)
	assert.Equal(t, map[string]any{"status": "inactive"}, tc.devices.changes)

	rec = tc.do(http.MethodDelete, "/api/projects/p1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "p1", tc.projects.lastID)
}

func TestProjectAssignmentRoutes(t *testing.T) {
	tc := newTestConsole(t)

	rec := tc.do(http.MethodPost, "/api/projects/p1/assign-users", `{"userIds":["u1","u2"]}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"u1", "u2"}, tc.projects.assignedUsers)

	rec = tc.do(http.MethodPost, "/api/projects/p2/assign-devices", `{"deviceIds":["d1"]}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"d1"}, tc.projects.assignedDevices)
	assert.Equal(t, "p2", tc.projects.lastID)
}

func TestFailureMapping(t *testing.T) {
	type testCase struct {
		Name     string
		Err      error
		Status   int
		Expected string
	}
	testCases := []testCase{
		{Name: "session expired", Err: fmt.Errorf("%w: %w", apperrors.ErrSessionExpired, &transport.HTTPFailure{Status: 401, Message: "jwt expired"}), Status: 401, Expected: `{"message":"session expired, please login again","redirect":"/login"}`},
		{Name: "no refresh token", Err: apperrors.ErrNoRefreshToken, Status: 401, Expected: `{"message":"no refresh token available, please login again","redirect":"/login"}`},
		{Name: "not found", Err: &transport.HTTPFailure{Status: 404, Message: "resource not found"}, Status: 404, Expected: `{"message":"resource not found"}`},
		{Name: "forbidden", Err: &transport.HTTPFailure{Status: 403, Message: "you do not have permission to perform this action"}, Status: 403, Expected: `{"message":"you do not have permission to perform this action"}`},
		{Name: "unreachable", Err: &transport.HTTPFailure{Message: "connection failed", Err: fmt.Errorf("dial tcp: refused")}, Status: 502, Expected: `{"message":"unable to connect to server, please check your internet connection"}`},
		{Name: "unexpected", Err: fmt.Errorf("boom"), Status: 500, Expected: `{"message":"server error, please try again later"}`},
	}
	for _, c := range testCases {
		t.Run(c.Name, func(t *testing.T) {
			tc := newTestConsole(t)
			tc.projects.err = c.Err

			rec := tc.do(http.MethodGet, "/api/projects", "")

			assert.Equal(t, c.Status, rec.Code)
			assert.JSONEq(t, c.Expected, rec.Body.String())
		})
	}
}

func TestNotificationsRoute(t *testing.T) {
	tc := newTestConsole(t)
	tc.notifications.Notify(context.Background(), "first")
	tc.notifications.Notify(context.Background(), "second")
	tc.notifications.Notify(context.Background(), "third")

	rec := tc.do(http.MethodGet, "/api/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var notifications []Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notifications))
	require.Len(t, notifications, 2)
	assert.Equal(t, "second", notifications[0].Message)
	assert.Equal(t, "third", notifications[1].Message)

	rec = tc.do(http.MethodGet, "/api/notifications", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestBoundary(t *testing.T) {
	b := NewBoundary()
	required, _ := b.LoginRequired()
	assert.False(t, required)

	b.RedirectToLogin(context.Background(), apperrors.ErrNoRefreshToken)
	required, reason := b.LoginRequired()
	assert.True(t, required)
	assert.Equal(t, apperrors.ErrNoRefreshToken.Error(), reason)

	b.Reset()
	required, reason = b.LoginRequired()
	assert.False(t, required)
	assert.Empty(t, reason)
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(WithUsers(&fakeService[models.User]{}))
	assert.ErrorContains(t, err, "authenticator not initialized")
	_, err = NewServer(WithAuthenticator(&fakeAuth{}))
	assert.ErrorContains(t, err, "management services not initialized")
}
