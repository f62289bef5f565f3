// Package management exposes typed CRUD operations on the back-office resources.
package management

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/nwl-centralize/backoffice/internal/models"
)

const (
	UsersPath    string = "management/users"
	DevicesPath  string = "management/devices"
	ProjectsPath string = "management/projects"
)

// Requester is the authorized client of the backend owning the resource.
type Requester interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	Patch(ctx context.Context, path string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, path string, body any) (json.RawMessage, error)
}

// Service manages one kind of resource under a collection path.
type Service[T any] struct {
	requester Requester
	path      string
}

func NewService[T any](requester Requester, path string) *Service[T] {
	return &Service[T]{requester: requester, path: strings.Trim(path, "/")}
}

func NewUsers(requester Requester) *Service[models.User] {
	return NewService[models.User](requester, UsersPath)
}

func NewDevices(requester Requester) *Service[models.Device] {
	return NewService[models.Device](requester, DevicesPath)
}

func (s *Service[T]) List(ctx context.Context) ([]T, error) {
	res, err := s.requester.Get(ctx, s.path)
	if err != nil {
		return nil, err
	}
	output, err := unwrap[[]T](res)
	if err != nil {
		return nil, err
	}
	if output == nil {
		output = []T{}
	}
	return output, nil
}

func (s *Service[T]) Get(ctx context.Context, id string) (T, error) {
	var output T
	path, err := s.itemPath(id)
	if err != nil {
		return output, err
	}
	res, err := s.requester.Get(ctx, path)
	if err != nil {
		return output, err
	}
	return unwrap[T](res)
}

func (s *Service[T]) Create(ctx context.Context, item T) (T, error) {
	res, err := s.requester.Post(ctx, s.path, item)
	if err != nil {
		var output T
		return output, err
	}
	return unwrap[T](res)
}

// Update sends a partial update, only the fields present in changes are modified.
func (s *Service[T]) Update(ctx context.Context, id string, changes any) (T, error) {
	var output T
	path, err := s.itemPath(id)
	if err != nil {
		return output, err
	}
	res, err := s.requester.Patch(ctx, path, changes)
	if err != nil {
		return output, err
	}
	return unwrap[T](res)
}

func (s *Service[T]) Delete(ctx context.Context, id string) error {
	path, err := s.itemPath(id)
	if err != nil {
		return err
	}
	_, err = s.requester.Delete(ctx, path, nil)
	return err
}

func (s *Service[T]) itemPath(id string, suffix ...string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%s: the id cannot be empty", s.path)
	}
	parts := append([]string{s.path, url.PathEscape(id)}, suffix...)
	return strings.Join(parts, "/"), nil
}

// unwrap decodes a response that is either the value itself or the value under "data".
func unwrap[T any](raw json.RawMessage) (T, error) {
	var output T
	var envelope map[string]json.RawMessage
	if json.Unmarshal(raw, &envelope) == nil {
		if data, found := envelope["data"]; found {
			raw = data
		}
	}
	if len(raw) == 0 || string(raw) == "null" {
		return output, nil
	}
	err := json.Unmarshal(raw, &output)
	if err != nil {
		return output, fmt.Errorf("cannot decode the response: %w", err)
	}
	return output, nil
}
