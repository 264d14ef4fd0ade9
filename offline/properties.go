package offline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/goPortal/model"
)

const defaultSimilarLimit = 4

type propertyRow struct {
	ID          int64   `db:"id"`
	Title       string  `db:"title"`
	Description string  `db:"description"`
	Type        string  `db:"type"`
	Status      string  `db:"status"`
	Price       float64 `db:"price"`
	Bedrooms    int     `db:"bedrooms"`
	Bathrooms   int     `db:"bathrooms"`
	Area        float64 `db:"area"`
	Address     string  `db:"address"`
	City        string  `db:"city"`
	State       string  `db:"state"`
	ZipCode     string  `db:"zip_code"`
	CreatedAt   int64   `db:"created_at"`
	UpdatedAt   int64   `db:"updated_at"`
}

type imageRow struct {
	ID           int64         `db:"id"`
	PropertyID   int64         `db:"property_id"`
	Name         string        `db:"name"`
	Type         string        `db:"type"`
	URL          string        `db:"url"`
	IsMain       bool          `db:"is_main"`
	DisplayOrder int           `db:"display_order"`
	FileSize     sql.NullInt64 `db:"file_size"`
	CreatedAt    int64         `db:"created_at"`
	UpdatedAt    int64         `db:"updated_at"`
}

const propertyColumns = `p.id, p.title, p.description, p.type, p.status, p.price, p.bedrooms, p.bathrooms, p.area, p.address, p.city, p.state, p.zip_code, p.created_at, p.updated_at`

const imageColumns = `id, property_id, name, type, url, is_main, display_order, file_size, created_at, updated_at`

// sortColumns maps API sort fields to columns.
var sortColumns = map[string]string{
	"id":        "p.id",
	"createdAt": "p.created_at",
	"updatedAt": "p.updated_at",
	"price":     "p.price",
	"title":     "p.title",
	"bedrooms":  "p.bedrooms",
	"bathrooms": "p.bathrooms",
	"area":      "p.area",
}

func (r propertyRow) model() model.Property {
	return model.Property{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Type:        model.PropertyType(r.Type),
		Status:      model.PropertyStatus(r.Status),
		Price:       r.Price,
		Bedrooms:    r.Bedrooms,
		Bathrooms:   r.Bathrooms,
		Area:        r.Area,
		Address:     r.Address,
		City:        r.City,
		State:       r.State,
		ZipCode:     r.ZipCode,
	}
}

func (r imageRow) model() model.Image {
	img := model.Image{
		ID:           r.ID,
		Name:         r.Name,
		Type:         r.Type,
		URL:          r.URL,
		PropertyID:   r.PropertyID,
		IsMain:       r.IsMain,
		DisplayOrder: r.DisplayOrder,
		CreatedAt:    model.NewTimestamp(time.UnixMilli(r.CreatedAt)),
		UpdatedAt:    model.NewTimestamp(time.UnixMilli(r.UpdatedAt)),
	}
	if r.FileSize.Valid {
		n := r.FileSize.Int64
		img.FileSize = &n
	}
	return img
}

// query is a WHERE clause under construction.
type query struct {
	where []string
	args  []any
}

func (q *query) add(cond string, args ...any) {
	q.where = append(q.where, cond)
	q.args = append(q.args, args...)
}

func (q *query) clause() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

func criteriaQuery(c model.SearchCriteria) *query {
	q := &query{}
	if kw := strings.TrimSpace(c.Keyword); kw != "" {
		like := "%" + strings.ToLower(kw) + "%"
		q.add(`(lower(p.title) LIKE ? OR lower(p.description) LIKE ? OR lower(p.address) LIKE ? OR lower(p.city) LIKE ?)`, like, like, like, like)
	}
	if c.Type != "" {
		q.add(`p.type = ?`, string(c.Type))
	}
	if c.Status != "" {
		q.add(`p.status = ?`, string(c.Status))
	}
	if c.MinPrice > 0 {
		q.add(`p.price >= ?`, c.MinPrice)
	}
	if c.MaxPrice > 0 {
		q.add(`p.price <= ?`, c.MaxPrice)
	}
	if c.MinBedrooms > 0 {
		q.add(`p.bedrooms >= ?`, c.MinBedrooms)
	}
	if c.MaxBedrooms > 0 {
		q.add(`p.bedrooms <= ?`, c.MaxBedrooms)
	}
	if c.MinBathrooms > 0 {
		q.add(`p.bathrooms >= ?`, c.MinBathrooms)
	}
	if c.MaxBathrooms > 0 {
		q.add(`p.bathrooms <= ?`, c.MaxBathrooms)
	}
	if c.MinArea > 0 {
		q.add(`p.area >= ?`, c.MinArea)
	}
	if c.MaxArea > 0 {
		q.add(`p.area <= ?`, c.MaxArea)
	}
	if c.City != "" {
		q.add(`lower(p.city) = lower(?)`, c.City)
	}
	if c.State != "" {
		q.add(`lower(p.state) = lower(?)`, c.State)
	}
	if c.ZipCode != "" {
		q.add(`p.zip_code = ?`, c.ZipCode)
	}
	return q
}

// page runs a paged listing query. from is the FROM clause including any
// join; q filters it.
func (b *Backend) page(ctx context.Context, from string, q *query, req model.PageRequest) (*model.PropertyPage, error) {
	req = req.Normalize()
	field, dir := req.SortField()
	col, ok := sortColumns[field]
	if !ok {
		return nil, badRequest(fmt.Sprintf("Unknown sort field: %s", field))
	}

	var total int64
	if err := b.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM `+from+q.clause(), q.args...); err != nil {
		return nil, internal("count properties", err)
	}
	var rows []propertyRow
	stmt := `SELECT ` + propertyColumns + ` FROM ` + from + q.clause() +
		fmt.Sprintf(` ORDER BY %s %s, p.id %s LIMIT ? OFFSET ?`, col, strings.ToUpper(dir), strings.ToUpper(dir))
	args := append(append([]any{}, q.args...), req.Size, req.Page*req.Size)
	if err := b.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, internal("list properties", err)
	}
	props, err := b.withImages(ctx, rows)
	if err != nil {
		return nil, err
	}
	page := model.NewPage(props, req, total)
	return &page, nil
}

// withImages converts rows and attaches their images in display order.
func (b *Backend) withImages(ctx context.Context, rows []propertyRow) ([]model.Property, error) {
	out := make([]model.Property, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	stmt, args, err := sqlx.In(`SELECT `+imageColumns+` FROM images WHERE property_id IN (?) ORDER BY property_id, display_order, id`, ids)
	if err != nil {
		return nil, internal("images query", err)
	}
	var imgs []imageRow
	if err := b.db.SelectContext(ctx, &imgs, b.db.Rebind(stmt), args...); err != nil {
		return nil, internal("list images", err)
	}
	byProperty := map[int64][]model.Image{}
	for _, img := range imgs {
		byProperty[img.PropertyID] = append(byProperty[img.PropertyID], img.model())
	}
	for _, r := range rows {
		p := r.model()
		p.Images = byProperty[r.ID]
		out = append(out, p)
	}
	return out, nil
}

func (b *Backend) ListProperties(ctx context.Context, page model.PageRequest) (*model.PropertyPage, error) {
	return b.page(ctx, `properties p`, &query{}, page)
}

func (b *Backend) SearchProperties(ctx context.Context, criteria model.SearchCriteria, page model.PageRequest) (*model.PropertyPage, error) {
	return b.page(ctx, `properties p`, criteriaQuery(criteria), page)
}

func (b *Backend) propertyRow(ctx context.Context, id int64) (*propertyRow, error) {
	var row propertyRow
	err := b.db.GetContext(ctx, &row, `SELECT `+propertyColumns+` FROM properties p WHERE p.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("Property")
	}
	if err != nil {
		return nil, internal("load property", err)
	}
	return &row, nil
}

func (b *Backend) GetProperty(ctx context.Context, id int64) (*model.Property, error) {
	row, err := b.propertyRow(ctx, id)
	if err != nil {
		return nil, err
	}
	props, err := b.withImages(ctx, []propertyRow{*row})
	if err != nil {
		return nil, err
	}
	return &props[0], nil
}

// SimilarProperties returns other listings of the same type, nearest in
// price first.
func (b *Backend) SimilarProperties(ctx context.Context, id int64, limit int) ([]model.Property, error) {
	if limit <= 0 {
		limit = defaultSimilarLimit
	}
	row, err := b.propertyRow(ctx, id)
	if err != nil {
		return nil, err
	}
	var rows []propertyRow
	err = b.db.SelectContext(ctx, &rows,
		`SELECT `+propertyColumns+` FROM properties p
		 WHERE p.type = ? AND p.id <> ?
		 ORDER BY abs(p.price - ?), p.id LIMIT ?`,
		row.Type, id, row.Price, limit)
	if err != nil {
		return nil, internal("similar properties", err)
	}
	return b.withImages(ctx, rows)
}

func validateProperty(p model.Property) error {
	fields := map[string]string{}
	if strings.TrimSpace(p.Title) == "" {
		fields["title"] = "Title is required"
	}
	if !p.Type.Valid() {
		fields["type"] = "Type is invalid"
	}
	if !p.Status.Valid() {
		fields["status"] = "Status is invalid"
	}
	if p.Price < 0 {
		fields["price"] = "Price must not be negative"
	}
	if p.Bedrooms < 0 || p.Bathrooms < 0 || p.Area < 0 {
		fields["area"] = "Rooms and area must not be negative"
	}
	if len(fields) > 0 {
		return validation(fields)
	}
	return nil
}

func (b *Backend) CreateProperty(ctx context.Context, p model.Property) (*model.Property, error) {
	if _, err := b.callerWithRole(ctx, model.RoleAdmin, model.RoleAgent); err != nil {
		return nil, err
	}
	if p.Status == "" {
		p.Status = model.StatusAvailable
	}
	if err := validateProperty(p); err != nil {
		return nil, err
	}
	now := b.now()
	row := propertyFromModel(p)
	row.CreatedAt, row.UpdatedAt = now, now
	res, err := b.db.NamedExecContext(ctx,
		`INSERT INTO properties (title, description, type, status, price, bedrooms, bathrooms, area, address, city, state, zip_code, created_at, updated_at)
		 VALUES (:title, :description, :type, :status, :price, :bedrooms, :bathrooms, :area, :address, :city, :state, :zip_code, :created_at, :updated_at)`, row)
	if err != nil {
		return nil, internal("insert property", err)
	}
	id, _ := res.LastInsertId()
	return b.GetProperty(ctx, id)
}

func (b *Backend) UpdateProperty(ctx context.Context, id int64, p model.Property) (*model.Property, error) {
	if _, err := b.callerWithRole(ctx, model.RoleAdmin, model.RoleAgent); err != nil {
		return nil, err
	}
	if _, err := b.propertyRow(ctx, id); err != nil {
		return nil, err
	}
	if err := validateProperty(p); err != nil {
		return nil, err
	}
	row := propertyFromModel(p)
	row.ID = id
	row.UpdatedAt = b.now()
	_, err := b.db.NamedExecContext(ctx,
		`UPDATE properties SET title = :title, description = :description, type = :type, status = :status,
		 price = :price, bedrooms = :bedrooms, bathrooms = :bathrooms, area = :area, address = :address,
		 city = :city, state = :state, zip_code = :zip_code, updated_at = :updated_at WHERE id = :id`, row)
	if err != nil {
		return nil, internal("update property", err)
	}
	return b.GetProperty(ctx, id)
}

func (b *Backend) DeleteProperty(ctx context.Context, id int64) error {
	if _, err := b.callerWithRole(ctx, model.RoleAdmin, model.RoleAgent); err != nil {
		return err
	}
	res, err := b.db.ExecContext(ctx, `DELETE FROM properties WHERE id = ?`, id)
	if err != nil {
		return internal("delete property", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("Property")
	}
	return nil
}

func propertyFromModel(p model.Property) propertyRow {
	return propertyRow{
		Title:       strings.TrimSpace(p.Title),
		Description: p.Description,
		Type:        string(p.Type),
		Status:      string(p.Status),
		Price:       p.Price,
		Bedrooms:    p.Bedrooms,
		Bathrooms:   p.Bathrooms,
		Area:        p.Area,
		Address:     p.Address,
		City:        p.City,
		State:       p.State,
		ZipCode:     p.ZipCode,
	}
}

func (b *Backend) images(ctx context.Context, propertyID int64) ([]model.Image, error) {
	var rows []imageRow
	err := b.db.SelectContext(ctx, &rows,
		`SELECT `+imageColumns+` FROM images WHERE property_id = ? ORDER BY display_order, id`, propertyID)
	if err != nil {
		return nil, internal("list images", err)
	}
	out := make([]model.Image, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (b *Backend) ListImages(ctx context.Context, propertyID int64) ([]model.Image, error) {
	if _, err := b.propertyRow(ctx, propertyID); err != nil {
		return nil, err
	}
	return b.images(ctx, propertyID)
}

// UploadImage appends an image. The first image of a listing becomes its
// main image.
func (b *Backend) UploadImage(ctx context.Context, propertyID int64, upload model.Upload) (*model.Image, error) {
	if _, err := b.callerWithRole(ctx, model.RoleAdmin, model.RoleAgent); err != nil {
		return nil, err
	}
	if _, err := b.propertyRow(ctx, propertyID); err != nil {
		return nil, err
	}
	size, err := readUpload(upload)
	if err != nil {
		return nil, err
	}
	var count int
	if err := b.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM images WHERE property_id = ?`, propertyID); err != nil {
		return nil, internal("count images", err)
	}
	name := path.Base(upload.Filename)
	now := b.now()
	row := imageRow{
		PropertyID:   propertyID,
		Name:         name,
		Type:         upload.ContentType,
		URL:          fmt.Sprintf("/images/properties/%d/%s-%s", propertyID, uuid.NewString(), name),
		IsMain:       count == 0,
		DisplayOrder: count,
		FileSize:     sql.NullInt64{Int64: size, Valid: true},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := b.db.NamedExecContext(ctx,
		`INSERT INTO images (property_id, name, type, url, is_main, display_order, file_size, created_at, updated_at)
		 VALUES (:property_id, :name, :type, :url, :is_main, :display_order, :file_size, :created_at, :updated_at)`, row)
	if err != nil {
		return nil, internal("insert image", err)
	}
	row.ID, _ = res.LastInsertId()
	img := row.model()
	return &img, nil
}

// DeleteImage removes an image; when it was the main image the next one
// in display order takes over.
func (b *Backend) DeleteImage(ctx context.Context, propertyID, imageID int64) error {
	if _, err := b.callerWithRole(ctx, model.RoleAdmin, model.RoleAgent); err != nil {
		return err
	}
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return internal("begin", err)
	}
	defer tx.Rollback()

	var wasMain bool
	err = tx.GetContext(ctx, &wasMain, `SELECT is_main FROM images WHERE id = ? AND property_id = ?`, imageID, propertyID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("Image")
	}
	if err != nil {
		return internal("load image", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, imageID); err != nil {
		return internal("delete image", err)
	}
	if wasMain {
		_, err := tx.ExecContext(ctx,
			`UPDATE images SET is_main = 1 WHERE id = (
			   SELECT id FROM images WHERE property_id = ? ORDER BY display_order, id LIMIT 1)`, propertyID)
		if err != nil {
			return internal("promote image", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return internal("commit", err)
	}
	return nil
}

func (b *Backend) SetMainImage(ctx context.Context, propertyID, imageID int64) (*model.Image, error) {
	if _, err := b.callerWithRole(ctx, model.RoleAdmin, model.RoleAgent); err != nil {
		return nil, err
	}
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internal("begin", err)
	}
	defer tx.Rollback()

	now := b.now()
	res, err := tx.ExecContext(ctx, `UPDATE images SET is_main = 1, updated_at = ? WHERE id = ? AND property_id = ?`, now, imageID, propertyID)
	if err != nil {
		return nil, internal("set main image", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound("Image")
	}
	if _, err := tx.ExecContext(ctx, `UPDATE images SET is_main = 0 WHERE property_id = ? AND id <> ?`, propertyID, imageID); err != nil {
		return nil, internal("clear main image", err)
	}
	var row imageRow
	if err := tx.GetContext(ctx, &row, `SELECT `+imageColumns+` FROM images WHERE id = ?`, imageID); err != nil {
		return nil, internal("load image", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, internal("commit", err)
	}
	img := row.model()
	return &img, nil
}

// ReorderImages assigns display order by position in imageIDs, which must
// name every image of the listing exactly once.
func (b *Backend) ReorderImages(ctx context.Context, propertyID int64, imageIDs []int64) ([]model.Image, error) {
	if _, err := b.callerWithRole(ctx, model.RoleAdmin, model.RoleAgent); err != nil {
		return nil, err
	}
	current, err := b.ListImages(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	known := make(map[int64]bool, len(current))
	for _, img := range current {
		known[img.ID] = true
	}
	seen := map[int64]bool{}
	for _, id := range imageIDs {
		if !known[id] || seen[id] {
			return nil, badRequest("Image order must list every image of the property once")
		}
		seen[id] = true
	}
	if len(seen) != len(known) {
		return nil, badRequest("Image order must list every image of the property once")
	}

	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internal("begin", err)
	}
	defer tx.Rollback()
	now := b.now()
	for i, id := range imageIDs {
		if _, err := tx.ExecContext(ctx, `UPDATE images SET display_order = ?, updated_at = ? WHERE id = ?`, i, now, id); err != nil {
			return nil, internal("reorder images", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, internal("commit", err)
	}
	return b.images(ctx, propertyID)
}
