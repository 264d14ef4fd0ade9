package offline

import (
	"context"
	"time"

	"github.com/MrEthical07/goPortal/model"
)

func (b *Backend) FavoriteIDs(ctx context.Context) ([]int64, error) {
	row, err := b.caller(ctx)
	if err != nil {
		return nil, err
	}
	ids := []int64{}
	if err := b.db.SelectContext(ctx, &ids, `SELECT property_id FROM favorites WHERE user_id = ? ORDER BY created_at DESC, id DESC`, row.ID); err != nil {
		return nil, internal("favorite ids", err)
	}
	return ids, nil
}

func (b *Backend) FavoriteProperties(ctx context.Context, page model.PageRequest) (*model.PropertyPage, error) {
	row, err := b.caller(ctx)
	if err != nil {
		return nil, err
	}
	q := &query{}
	q.add(`f.user_id = ?`, row.ID)
	return b.page(ctx, `properties p JOIN favorites f ON f.property_id = p.id`, q, page)
}

// AddFavorite is idempotent: adding a saved listing returns the existing
// favorite.
func (b *Backend) AddFavorite(ctx context.Context, propertyID int64) (*model.Favorite, error) {
	row, err := b.caller(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := b.propertyRow(ctx, propertyID); err != nil {
		return nil, err
	}
	if _, err := b.db.ExecContext(ctx,
		`INSERT INTO favorites (user_id, property_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, property_id) DO NOTHING`, row.ID, propertyID, b.now()); err != nil {
		return nil, internal("add favorite", err)
	}
	var fav struct {
		ID        int64 `db:"id"`
		CreatedAt int64 `db:"created_at"`
	}
	if err := b.db.GetContext(ctx, &fav, `SELECT id, created_at FROM favorites WHERE user_id = ? AND property_id = ?`, row.ID, propertyID); err != nil {
		return nil, internal("load favorite", err)
	}
	return &model.Favorite{
		ID:         fav.ID,
		UserEmail:  row.Email,
		PropertyID: propertyID,
		CreatedAt:  model.NewTimestamp(time.UnixMilli(fav.CreatedAt)),
	}, nil
}

func (b *Backend) RemoveFavorite(ctx context.Context, propertyID int64) error {
	row, err := b.caller(ctx)
	if err != nil {
		return err
	}
	res, err := b.db.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = ? AND property_id = ?`, row.ID, propertyID)
	if err != nil {
		return internal("remove favorite", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("Favorite")
	}
	return nil
}

func (b *Backend) IsFavorite(ctx context.Context, propertyID int64) (bool, error) {
	row, err := b.caller(ctx)
	if err != nil {
		return false, err
	}
	var n int
	if err := b.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM favorites WHERE user_id = ? AND property_id = ?`, row.ID, propertyID); err != nil {
		return false, internal("favorite status", err)
	}
	return n > 0, nil
}

func (b *Backend) FavoriteCount(ctx context.Context) (int64, error) {
	row, err := b.caller(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := b.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM favorites WHERE user_id = ?`, row.ID); err != nil {
		return 0, internal("favorite count", err)
	}
	return n, nil
}

// PropertyFavoriteCount counts every user's favorites of a listing. It
// needs no authentication.
func (b *Backend) PropertyFavoriteCount(ctx context.Context, propertyID int64) (int64, error) {
	if _, err := b.propertyRow(ctx, propertyID); err != nil {
		return 0, err
	}
	var n int64
	if err := b.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM favorites WHERE property_id = ?`, propertyID); err != nil {
		return 0, internal("property favorite count", err)
	}
	return n, nil
}
