package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/MrEthical07/goPortal/model"
)

const PathUsers = "/users"

func (d *HTTPDataSource) ListUsers(ctx context.Context, role string) ([]model.User, error) {
	path := PathUsers
	if role != "" {
		path = "/users/by-role/" + url.PathEscape(role)
	}
	var out []model.User
	if err := d.do(ctx, call{method: http.MethodGet, path: path}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *HTTPDataSource) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var out model.User
	if err := d.do(ctx, call{method: http.MethodGet, path: idPath("/users/%s", id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDataSource) UpdateUser(ctx context.Context, id int64, update model.UserUpdate) (*model.User, error) {
	var out model.User
	if err := d.do(ctx, call{method: http.MethodPut, path: idPath("/users/%s", id), body: update}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDataSource) DeleteUser(ctx context.Context, id int64) error {
	return d.do(ctx, call{method: http.MethodDelete, path: idPath("/users/%s", id)}, nil)
}
