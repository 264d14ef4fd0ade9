package offline

import (
	"context"
	"net/mail"
	"strings"

	"github.com/MrEthical07/goPortal/model"
)

func (b *Backend) ListUsers(ctx context.Context, role string) ([]model.User, error) {
	if _, err := b.callerWithRole(ctx, model.RoleAdmin); err != nil {
		return nil, err
	}
	var rows []userRow
	if err := b.db.SelectContext(ctx, &rows, selectUser+` ORDER BY id`); err != nil {
		return nil, internal("list users", err)
	}
	out := make([]model.User, 0, len(rows))
	for _, r := range rows {
		u := r.model()
		if role != "" && !u.HasRole(role) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (b *Backend) GetUser(ctx context.Context, id int64) (*model.User, error) {
	if _, err := b.callerWithRole(ctx, model.RoleAdmin); err != nil {
		return nil, err
	}
	row, err := b.userByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u := row.model()
	return &u, nil
}

func (b *Backend) UpdateUser(ctx context.Context, id int64, update model.UserUpdate) (*model.User, error) {
	if _, err := b.callerWithRole(ctx, model.RoleAdmin); err != nil {
		return nil, err
	}
	row, err := b.userByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if email := strings.TrimSpace(update.Email); email != "" && !strings.EqualFold(email, row.Email) {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, validation(map[string]string{"email": "Email should be valid"})
		}
		other, err := b.userByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, conflict("Email is already registered")
		}
		row.Email = email
	}
	setIf(&row.Name, update.Name)
	setIf(&row.Phone, update.Phone)
	setIf(&row.Address, update.Address)
	if update.Enabled != nil {
		row.Enabled = *update.Enabled
	}
	if len(update.Roles) > 0 {
		row.Roles = canonicalRoles(update.Roles)
	}
	row.UpdatedAt = b.now()
	_, err = b.db.NamedExecContext(ctx,
		`UPDATE users SET name = :name, email = :email, phone = :phone, address = :address,
		 enabled = :enabled, roles = :roles, updated_at = :updated_at WHERE id = :id`, row)
	if err != nil {
		return nil, internal("update user", err)
	}
	if !row.Enabled {
		if err := b.revokeAll(ctx, row.ID); err != nil {
			return nil, err
		}
	}
	u := row.model()
	return &u, nil
}

func (b *Backend) DeleteUser(ctx context.Context, id int64) error {
	caller, err := b.callerWithRole(ctx, model.RoleAdmin)
	if err != nil {
		return err
	}
	if caller.ID == id {
		return badRequest("You cannot delete your own account")
	}
	res, err := b.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return internal("delete user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("User")
	}
	return nil
}

// canonicalRoles spells every role with the ROLE_ prefix.
func canonicalRoles(roles []string) string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.ToUpper(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if !strings.HasPrefix(r, "ROLE_") {
			r = "ROLE_" + r
		}
		out = append(out, r)
	}
	return strings.Join(out, ",")
}
