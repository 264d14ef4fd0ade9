package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PropertyType enumerates listing kinds.
type PropertyType string

const (
	PropertyApartment  PropertyType = "APARTMENT"
	PropertyHouse      PropertyType = "HOUSE"
	PropertyCommercial PropertyType = "COMMERCIAL"
	PropertyCondo      PropertyType = "CONDO"
	PropertySpecial    PropertyType = "SPECIAL"
)

// PropertyStatus enumerates listing availability.
type PropertyStatus string

const (
	StatusAvailable PropertyStatus = "AVAILABLE"
	StatusSold      PropertyStatus = "SOLD"
	StatusRented    PropertyStatus = "RENTED"
)

// Valid reports whether t is a known property type.
func (t PropertyType) Valid() bool {
	switch t {
	case PropertyApartment, PropertyHouse, PropertyCommercial, PropertyCondo, PropertySpecial:
		return true
	}
	return false
}

// Valid reports whether s is a known property status.
func (s PropertyStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusSold, StatusRented:
		return true
	}
	return false
}

// Property is a single listing.
type Property struct {
	ID          int64          `json:"id,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Type        PropertyType   `json:"type"`
	Status      PropertyStatus `json:"status"`
	Price       float64        `json:"price"`
	Bedrooms    int            `json:"bedrooms"`
	Bathrooms   int            `json:"bathrooms"`
	Area        float64        `json:"area"`
	Address     string         `json:"address"`
	City        string         `json:"city"`
	State       string         `json:"state"`
	ZipCode     string         `json:"zipCode"`
	Images      []Image        `json:"images,omitempty"`
}

// MainImage returns the image flagged as main, or the first one.
func (p *Property) MainImage() (Image, bool) {
	if p == nil || len(p.Images) == 0 {
		return Image{}, false
	}
	for _, img := range p.Images {
		if img.IsMain {
			return img, true
		}
	}
	return p.Images[0], true
}

// Image is a listing photo.
type Image struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	URL          string    `json:"url"`
	PropertyID   int64     `json:"propertyId"`
	IsMain       bool      `json:"isMain"`
	DisplayOrder int       `json:"displayOrder"`
	FileSize     *int64    `json:"fileSize"`
	CreatedAt    Timestamp `json:"createdAt"`
	UpdatedAt    Timestamp `json:"updatedAt"`
}

// DefaultSort is the listing order used when a PageRequest has none.
const DefaultSort = "createdAt,desc"

// DefaultPageSize applies when a PageRequest has no size.
const DefaultPageSize = 10

// PageRequest selects one page of a listing collection.
type PageRequest struct {
	Page int
	Size int
	Sort string
}

// Normalize fills defaults and clamps negative values.
func (r PageRequest) Normalize() PageRequest {
	if r.Page < 0 {
		r.Page = 0
	}
	if r.Size <= 0 {
		r.Size = DefaultPageSize
	}
	if strings.TrimSpace(r.Sort) == "" {
		r.Sort = DefaultSort
	}
	return r
}

// SortField splits Sort into field and direction ("asc" or "desc").
func (r PageRequest) SortField() (string, string) {
	r = r.Normalize()
	field, dir, _ := strings.Cut(r.Sort, ",")
	dir = strings.ToLower(strings.TrimSpace(dir))
	if dir != "asc" {
		dir = "desc"
	}
	return strings.TrimSpace(field), dir
}

// Values encodes r as query parameters.
func (r PageRequest) Values() url.Values {
	r = r.Normalize()
	v := url.Values{}
	v.Set("page", strconv.Itoa(r.Page))
	v.Set("size", strconv.Itoa(r.Size))
	v.Set("sort", r.Sort)
	return v
}

// Page is a Spring-style page envelope.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Size          int   `json:"size"`
	Number        int   `json:"number"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
	Empty         bool  `json:"empty"`
}

// NewPage builds a page envelope around content.
func NewPage[T any](content []T, req PageRequest, total int64) Page[T] {
	req = req.Normalize()
	if content == nil {
		content = []T{}
	}
	pages := 0
	if total > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    pages,
		Size:          req.Size,
		Number:        req.Page,
		First:         req.Page == 0,
		Last:          req.Page >= pages-1,
		Empty:         len(content) == 0,
	}
}

// PropertyPage is a page of listings.
type PropertyPage = Page[Property]

// SearchCriteria filters the listing search. Zero values are ignored.
type SearchCriteria struct {
	Keyword      string         `json:"keyword,omitempty"`
	Type         PropertyType   `json:"type,omitempty"`
	Status       PropertyStatus `json:"status,omitempty"`
	MinPrice     float64        `json:"minPrice,omitempty"`
	MaxPrice     float64        `json:"maxPrice,omitempty"`
	MinBedrooms  int            `json:"minBedrooms,omitempty"`
	MaxBedrooms  int            `json:"maxBedrooms,omitempty"`
	MinBathrooms int            `json:"minBathrooms,omitempty"`
	MaxBathrooms int            `json:"maxBathrooms,omitempty"`
	MinArea      float64        `json:"minArea,omitempty"`
	MaxArea      float64        `json:"maxArea,omitempty"`
	City         string         `json:"city,omitempty"`
	State        string         `json:"state,omitempty"`
	ZipCode      string         `json:"zipCode,omitempty"`
}

// Values encodes the non-zero criteria as query parameters.
func (c SearchCriteria) Values() url.Values {
	v := url.Values{}
	setString := func(k, s string) {
		if s = strings.TrimSpace(s); s != "" {
			v.Set(k, s)
		}
	}
	setInt := func(k string, n int) {
		if n > 0 {
			v.Set(k, strconv.Itoa(n))
		}
	}
	setFloat := func(k string, f float64) {
		if f > 0 {
			v.Set(k, strconv.FormatFloat(f, 'f', -1, 64))
		}
	}
	setString("keyword", c.Keyword)
	setString("type", string(c.Type))
	setString("status", string(c.Status))
	setFloat("minPrice", c.MinPrice)
	setFloat("maxPrice", c.MaxPrice)
	setInt("minBedrooms", c.MinBedrooms)
	setInt("maxBedrooms", c.MaxBedrooms)
	setInt("minBathrooms", c.MinBathrooms)
	setInt("maxBathrooms", c.MaxBathrooms)
	setFloat("minArea", c.MinArea)
	setFloat("maxArea", c.MaxArea)
	setString("city", c.City)
	setString("state", c.State)
	setString("zipCode", c.ZipCode)
	return v
}

// ParseSearchCriteria is the inverse of SearchCriteria.Values.
func ParseSearchCriteria(v url.Values) (SearchCriteria, error) {
	var c SearchCriteria
	var errs []string
	intParam := func(k string) int {
		s := v.Get(k)
		if s == "" {
			return 0
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			errs = append(errs, k)
		}
		return n
	}
	floatParam := func(k string) float64 {
		s := v.Get(k)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			errs = append(errs, k)
		}
		return f
	}
	c.Keyword = strings.TrimSpace(v.Get("keyword"))
	c.Type = PropertyType(strings.ToUpper(v.Get("type")))
	c.Status = PropertyStatus(strings.ToUpper(v.Get("status")))
	c.MinPrice = floatParam("minPrice")
	c.MaxPrice = floatParam("maxPrice")
	c.MinBedrooms = intParam("minBedrooms")
	c.MaxBedrooms = intParam("maxBedrooms")
	c.MinBathrooms = intParam("minBathrooms")
	c.MaxBathrooms = intParam("maxBathrooms")
	c.MinArea = floatParam("minArea")
	c.MaxArea = floatParam("maxArea")
	c.City = strings.TrimSpace(v.Get("city"))
	c.State = strings.TrimSpace(v.Get("state"))
	c.ZipCode = strings.TrimSpace(v.Get("zipCode"))
	if c.Type != "" && !c.Type.Valid() {
		errs = append(errs, "type")
	}
	if c.Status != "" && !c.Status.Valid() {
		errs = append(errs, "status")
	}
	if len(errs) > 0 {
		return c, fmt.Errorf("invalid search parameters: %s", strings.Join(errs, ", "))
	}
	return c, nil
}
