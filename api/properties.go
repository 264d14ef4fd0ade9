package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MrEthical07/goPortal/model"
)

const (
	PathProperties = "/properties"
	PathSearch     = "/properties/search"
)

func (d *HTTPDataSource) ListProperties(ctx context.Context, page model.PageRequest) (*model.PropertyPage, error) {
	var out model.PropertyPage
	if err := d.do(ctx, call{method: http.MethodGet, path: PathProperties, query: page.Values()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDataSource) GetProperty(ctx context.Context, id int64) (*model.Property, error) {
	var out model.Property
	if err := d.do(ctx, call{method: http.MethodGet, path: idPath("/properties/%s", id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDataSource) SearchProperties(ctx context.Context, criteria model.SearchCriteria, page model.PageRequest) (*model.PropertyPage, error) {
	query := criteria.Values()
	for k, v := range page.Values() {
		query[k] = v
	}
	var out model.PropertyPage
	if err := d.do(ctx, call{method: http.MethodGet, path: PathSearch, query: query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDataSource) SimilarProperties(ctx context.Context, id int64, limit int) ([]model.Property, error) {
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var out []model.Property
	if err := d.do(ctx, call{method: http.MethodGet, path: idPath("/properties/%s/similar", id), query: query}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *HTTPDataSource) CreateProperty(ctx context.Context, p model.Property) (*model.Property, error) {
	var out model.Property
	if err := d.do(ctx, call{method: http.MethodPost, path: PathProperties, body: p}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDataSource) UpdateProperty(ctx context.Context, id int64, p model.Property) (*model.Property, error) {
	var out model.Property
	if err := d.do(ctx, call{method: http.MethodPut, path: idPath("/properties/%s", id), body: p}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDataSource) DeleteProperty(ctx context.Context, id int64) error {
	return d.do(ctx, call{method: http.MethodDelete, path: idPath("/properties/%s", id)}, nil)
}

func (d *HTTPDataSource) ListImages(ctx context.Context, propertyID int64) ([]model.Image, error) {
	var out []model.Image
	if err := d.do(ctx, call{method: http.MethodGet, path: idPath("/properties/%s/images", propertyID)}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *HTTPDataSource) UploadImage(ctx context.Context, propertyID int64, upload model.Upload) (*model.Image, error) {
	var out model.Image
	if err := d.do(ctx, call{method: http.MethodPost, path: idPath("/properties/%s/images", propertyID), upload: &upload}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDataSource) DeleteImage(ctx context.Context, propertyID, imageID int64) error {
	return d.do(ctx, call{method: http.MethodDelete, path: idPath("/properties/%s/images/%s", propertyID, imageID)}, nil)
}

func (d *HTTPDataSource) SetMainImage(ctx context.Context, propertyID, imageID int64) (*model.Image, error) {
	var out model.Image
	if err := d.do(ctx, call{method: http.MethodPut, path: idPath("/properties/%s/images/%s/main", propertyID, imageID)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDataSource) ReorderImages(ctx context.Context, propertyID int64, imageIDs []int64) ([]model.Image, error) {
	var out []model.Image
	if err := d.do(ctx, call{method: http.MethodPut, path: idPath("/properties/%s/images/reorder", propertyID), body: imageIDs}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
