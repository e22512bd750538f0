// Package handler serves the /api/v3 endpoints. Handlers return errors and
// leave rendering faults to the middleware.
package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/uis-platform/uisapi/internal/model"
	"github.com/uis-platform/uisapi/internal/reqlog"
	"github.com/uis-platform/uisapi/internal/response"
)

// Role2FileTypeStore is the persistence the handlers need; satisfied by
// repository.Role2FileTypeRepository.
type Role2FileTypeStore interface {
	GetByID(ctx context.Context, id int) (*model.Role2FileType, error)
	ListByRoleGroup(ctx context.Context, roleGroupID int) ([]model.Role2FileTypeLink, error)
	CreateLinks(ctx context.Context, links []model.Role2FileTypeLink) (int, error)
	Update(ctx context.Context, u model.Role2FileTypeUpdate) (*model.Role2FileType, error)
	DeleteLinks(ctx context.Context, links []model.Role2FileTypeLink) (int, error)
}

// Publisher receives change events for the notification stream.
type Publisher interface {
	Publish(event string, data any)
}

const role2FileTypeEvent = "role2filetype"

// Role2FileTypeHandler handles the Role2FileType routes.
type Role2FileTypeHandler struct {
	Store  Role2FileTypeStore
	Events Publisher
}

// Request fields are pointers so that presence is checked, not value: 0 is a
// valid id.
type linkRequest struct {
	RoleGroupID *int `json:"role_group_id" validate:"required"`
	FileTypeID  *int `json:"file_type_id" validate:"required"`
}

type linkList struct {
	Links []linkRequest `validate:"dive"`
}

type updateRequest struct {
	ID          *int `json:"id" validate:"required"`
	RoleGroupID *int `json:"role_group_id"`
	FileTypeID  *int `json:"file_type_id"`
}

func notFound(id int) error {
	return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Role2FileType with {'id': %d} does not exist", id))
}

// Get returns one link by id (GET /api/v3/getRole2FileType?id=).
func (h *Role2FileTypeHandler) Get(c echo.Context) error {
	var id int
	if err := requiredIntQuery(c, "id", &id); err != nil {
		return err
	}
	ctx := c.Request().Context()
	row, err := h.Store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get role2filetype %d: %w", id, err)
	}
	if row == nil {
		return notFound(id)
	}
	reqlog.FromContext(ctx).Infof("Role2FileType %d fetched", id)
	return response.OK(c, row)
}

// ListByRoleGroup returns every file type linked to a role group
// (GET /api/v3/getAllFileTypeByRoleId?role_group_id=).
func (h *Role2FileTypeHandler) ListByRoleGroup(c echo.Context) error {
	var roleGroupID int
	if err := requiredIntQuery(c, "role_group_id", &roleGroupID); err != nil {
		return err
	}
	ctx := c.Request().Context()
	list, err := h.Store.ListByRoleGroup(ctx, roleGroupID)
	if err != nil {
		return fmt.Errorf("list role2filetype for role group %d: %w", roleGroupID, err)
	}
	if list == nil {
		list = []model.Role2FileTypeLink{}
	}
	reqlog.FromContext(ctx).Infof("Role group %d has %d file types", roleGroupID, len(list))
	return response.OK(c, list)
}

// CreateByList links every pair in the body, skipping pairs that exist
// (POST /api/v3/createRole2FileTypeByList).
func (h *Role2FileTypeHandler) CreateByList(c echo.Context) error {
	links, err := h.bindLinks(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	created, err := h.Store.CreateLinks(ctx, links)
	if err != nil {
		return fmt.Errorf("create role2filetype links: %w", err)
	}
	reqlog.FromContext(ctx).Infof("Role2FileType links created: %d of %d", created, len(links))
	if created > 0 {
		h.publish(model.Role2FileTypeEvent{Action: model.ActionCreated, Links: links})
	}
	return response.Created(c, nil)
}

// Update changes the fields present in the body (PUT /api/v3/updateRole2FileType).
func (h *Role2FileTypeHandler) Update(c echo.Context) error {
	var body updateRequest
	if err := bindJSON(c, &body); err != nil {
		return err
	}
	if err := c.Validate(&body); err != nil {
		return err
	}
	u := model.Role2FileTypeUpdate{ID: *body.ID, RoleGroupID: body.RoleGroupID, FileTypeID: body.FileTypeID}
	ctx := c.Request().Context()
	row, err := h.Store.Update(ctx, u)
	if err != nil {
		return fmt.Errorf("update role2filetype %d: %w", u.ID, err)
	}
	if row == nil {
		return notFound(u.ID)
	}
	reqlog.FromContext(ctx).Infof("Role2FileType %d updated", row.ID)
	h.publish(model.Role2FileTypeEvent{Action: model.ActionUpdated, Row: row})
	return response.OK(c, row)
}

// DeleteByList removes every pair in the body (DELETE /api/v3/deleteRole2FileType).
func (h *Role2FileTypeHandler) DeleteByList(c echo.Context) error {
	links, err := h.bindLinks(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	deleted, err := h.Store.DeleteLinks(ctx, links)
	if err != nil {
		return fmt.Errorf("delete role2filetype links: %w", err)
	}
	reqlog.FromContext(ctx).Infof("Role2FileType links deleted: %d", deleted)
	if deleted > 0 {
		h.publish(model.Role2FileTypeEvent{Action: model.ActionDeleted, Links: links})
	}
	return response.NoContent(c)
}

func (h *Role2FileTypeHandler) bindLinks(c echo.Context) ([]model.Role2FileTypeLink, error) {
	var body linkList
	if err := bindJSON(c, &body.Links); err != nil {
		return nil, err
	}
	if err := c.Validate(&body); err != nil {
		return nil, err
	}
	links := make([]model.Role2FileTypeLink, len(body.Links))
	for i, l := range body.Links {
		links[i] = model.Role2FileTypeLink{RoleGroupID: *l.RoleGroupID, FileTypeID: *l.FileTypeID}
	}
	return links, nil
}

func (h *Role2FileTypeHandler) publish(ev model.Role2FileTypeEvent) {
	if h.Events != nil {
		h.Events.Publish(role2FileTypeEvent, ev)
	}
}
