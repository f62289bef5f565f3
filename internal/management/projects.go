package management

import (
	"context"

	"github.com/nwl-centralize/backoffice/internal/models"
)

// Projects adds the membership operations to the project CRUD.
type Projects struct {
	*Service[models.Project]
}

func NewProjects(requester Requester) *Projects {
	return &Projects{Service: NewService[models.Project](requester, ProjectsPath)}
}

type assignUsersRequest struct {
	UserIDs []string `json:"userIds"`
}

type assignDevicesRequest struct {
	DeviceIDs []string `json:"deviceIds"`
}

func (p *Projects) AssignUsers(ctx context.Context, id string, userIDs []string) error {
	path, err := p.itemPath(id, "assign-users")
	if err != nil {
		return err
	}
	if userIDs == nil {
		userIDs = []string{}
	}
	_, err = p.requester.Post(ctx, path, assignUsersRequest{UserIDs: userIDs})
	return err
}

func (p *Projects) AssignDevices(ctx context.Context, id string, deviceIDs []string) error {
	path, err := p.itemPath(id, "assign-devices")
	if err != nil {
		return err
	}
	if deviceIDs == nil {
		deviceIDs = []string{}
	}
	_, err = p.requester.Post(ctx, path, assignDevicesRequest{DeviceIDs: deviceIDs})
	return err
}
