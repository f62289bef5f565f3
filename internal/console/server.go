// Package console serves the operator UI: login, session state and the management operations.
package console

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/nwl-centralize/backoffice/internal/models"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string, rememberMe bool) (models.Session, error)
	Logout(ctx context.Context) error
	Session(ctx context.Context) (models.Session, error)
}

type ResourceService[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, id string, changes any) (T, error)
	Delete(ctx context.Context, id string) error
}

type ProjectService interface {
	ResourceService[models.Project]
	AssignUsers(ctx context.Context, id string, userIDs []string) error
	AssignDevices(ctx context.Context, id string, deviceIDs []string) error
}

type Server struct {
	basePath      string
	auth          Authenticator
	users         ResourceService[models.User]
	devices       ResourceService[models.Device]
	projects      ProjectService
	boundary      *Boundary
	notifications *Notifications
}

func (s *Server) RegisterHandlers(server *echo.Echo, commonMiddlewares ...echo.MiddlewareFunc) {
	pageMiddlewares := append([]echo.MiddlewareFunc{NoCaching}, commonMiddlewares...)
	server.GET(LoginPage, s.GetLoginPage, pageMiddlewares...)

	e := server.Group(s.basePath)
	e.Use(commonMiddlewares...)
	e.Use(PropagateRequestID)

	e.GET("/login", s.GetLogin, NoCaching)
	e.POST("/login", s.PostLogin, NoCaching)
	e.POST("/logout", s.PostLogout, NoCaching)
	e.GET("/session", s.GetSession, NoCaching)
	e.GET("/notifications", s.GetNotifications, NoCaching)

	registerResource(e, "/users", s.users, s.fail)
	registerResource(e, "/devices", s.devices, s.fail)
	registerResource[models.Project](e, "/projects", s.projects, s.fail)
	e.POST("/projects/:id/assign-users", s.PostAssignUsers)
	e.POST("/projects/:id/assign-devices", s.PostAssignDevices)
}

type ServerOption func(*Server) error

func WithBasePath(basePath string) ServerOption {
	return func(s *Server) error {
		s.basePath = basePath
		return nil
	}
}

func WithAuthenticator(auth Authenticator) ServerOption {
	return func(s *Server) error {
		s.auth = auth
		return nil
	}
}

func WithUsers(users ResourceService[models.User]) ServerOption {
	return func(s *Server) error {
		s.users = users
		return nil
	}
}

func WithDevices(devices ResourceService[models.Device]) ServerOption {
	return func(s *Server) error {
		s.devices = devices
		return nil
	}
}

func WithProjects(projects ProjectService) ServerOption {
	return func(s *Server) error {
		s.projects = projects
		return nil
	}
}

func WithBoundary(boundary *Boundary) ServerOption {
	return func(s *Server) error {
		s.boundary = boundary
		return nil
	}
}

func WithNotifications(notifications *Notifications) ServerOption {
	return func(s *Server) error {
		s.notifications = notifications
		return nil
	}
}

// NewServer creates the console server. The boundary and the notifications have to be the
// ones given to the authorized clients.
func NewServer(options ...ServerOption) (*Server, error) {
	server := Server{basePath: "/api"}
	for _, opt := range options {
		err := opt(&server)
		if err != nil {
			return &Server{}, err
		}
	}
	if server.auth == nil {
		return &Server{}, fmt.Errorf("authenticator not initialized")
	}
	if server.users == nil || server.devices == nil || server.projects == nil {
		return &Server{}, fmt.Errorf("management services not initialized")
	}
	if server.boundary == nil {
		server.boundary = NewBoundary()
	}
	if server.notifications == nil {
		server.notifications = NewNotifications(defaultNotificationLimit)
	}
	return &server, nil
}
