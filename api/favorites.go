package api

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goPortal/model"
)

const (
	PathFavorites     = "/properties/favorites"
	PathFavoriteIDs   = "/properties/favorites/ids"
	PathFavoriteCount = "/properties/favorites/count"
)

func (d *HTTPDataSource) FavoriteIDs(ctx context.Context) ([]int64, error) {
	var out []int64
	if err := d.do(ctx, call{method: http.MethodGet, path: PathFavoriteIDs}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []int64{}
	}
	return out, nil
}

func (d *HTTPDataSource) FavoriteProperties(ctx context.Context, page model.PageRequest) (*model.PropertyPage, error) {
	var out model.PropertyPage
	if err := d.do(ctx, call{method: http.MethodGet, path: PathFavorites, query: page.Values()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDataSource) AddFavorite(ctx context.Context, propertyID int64) (*model.Favorite, error) {
	var out model.Favorite
	if err := d.do(ctx, call{method: http.MethodPost, path: idPath("/properties/favorites/%s", propertyID)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDataSource) RemoveFavorite(ctx context.Context, propertyID int64) error {
	return d.do(ctx, call{method: http.MethodDelete, path: idPath("/properties/favorites/%s", propertyID)}, nil)
}

func (d *HTTPDataSource) IsFavorite(ctx context.Context, propertyID int64) (bool, error) {
	var out model.FavoriteStatus
	if err := d.do(ctx, call{method: http.MethodGet, path: idPath("/properties/favorites/%s/status", propertyID)}, &out); err != nil {
		return false, err
	}
	return out.IsFavorite, nil
}

func (d *HTTPDataSource) FavoriteCount(ctx context.Context) (int64, error) {
	var out model.Count
	if err := d.do(ctx, call{method: http.MethodGet, path: PathFavoriteCount}, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (d *HTTPDataSource) PropertyFavoriteCount(ctx context.Context, propertyID int64) (int64, error) {
	var out model.Count
	if err := d.do(ctx, call{method: http.MethodGet, path: idPath("/properties/favorites/%s/count", propertyID)}, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}
