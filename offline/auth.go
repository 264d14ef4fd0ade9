package offline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrEthical07/goPortal/jwt"
	"github.com/MrEthical07/goPortal/model"
	"github.com/MrEthical07/goPortal/password"
)

const minPasswordLength = 8

type userRow struct {
	ID             int64  `db:"id"`
	Name           string `db:"name"`
	Email          string `db:"email"`
	Phone          string `db:"phone"`
	Address        string `db:"address"`
	ProfilePicture string `db:"profile_picture"`
	PasswordHash   string `db:"password_hash"`
	Enabled        bool   `db:"enabled"`
	Roles          string `db:"roles"`
	CreatedAt      int64  `db:"created_at"`
	UpdatedAt      int64  `db:"updated_at"`
}

const insertUser = `INSERT INTO users (name, email, phone, address, profile_picture, password_hash, enabled, roles, created_at, updated_at)
VALUES (:name, :email, :phone, :address, :profile_picture, :password_hash, :enabled, :roles, :created_at, :updated_at)`

const selectUser = `SELECT id, name, email, phone, address, profile_picture, password_hash, enabled, roles, created_at, updated_at FROM users`

func (r userRow) model() model.User {
	return model.User{
		ID:             r.ID,
		Name:           r.Name,
		Email:          r.Email,
		Phone:          r.Phone,
		Address:        r.Address,
		ProfilePicture: r.ProfilePicture,
		Enabled:        r.Enabled,
		Roles:          splitRoles(r.Roles),
		CreatedAt:      model.NewTimestamp(time.UnixMilli(r.CreatedAt)),
		UpdatedAt:      model.NewTimestamp(time.UnixMilli(r.UpdatedAt)),
	}
}

func (b *Backend) userByEmail(ctx context.Context, email string) (*userRow, error) {
	var row userRow
	err := b.db.GetContext(ctx, &row, selectUser+` WHERE email = ?`, strings.TrimSpace(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, internal("load user", err)
	}
	return &row, nil
}

func (b *Backend) userByID(ctx context.Context, id int64) (*userRow, error) {
	var row userRow
	err := b.db.GetContext(ctx, &row, selectUser+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("User")
	}
	if err != nil {
		return nil, internal("load user", err)
	}
	return &row, nil
}

// caller resolves the authenticated account from the bearer token.
func (b *Backend) caller(ctx context.Context) (*userRow, error) {
	token := b.bearer(ctx)
	if token == "" {
		return nil, unauthorized("Not authenticated")
	}
	claims, err := b.jwt.ParseAccess(token)
	if err != nil {
		return nil, unauthorized("Invalid or expired token")
	}
	row, err := b.userByID(ctx, claims.UID)
	if err != nil {
		return nil, unauthorized("Not authenticated")
	}
	if !row.Enabled {
		return nil, unauthorized("Account is disabled")
	}
	return row, nil
}

// callerWithRole is caller plus a check for any of roles.
func (b *Backend) callerWithRole(ctx context.Context, roles ...string) (*userRow, error) {
	row, err := b.caller(ctx)
	if err != nil {
		return nil, err
	}
	u := row.model()
	for _, r := range roles {
		if u.HasRole(r) {
			return row, nil
		}
	}
	return nil, forbidden()
}

func (b *Backend) Login(ctx context.Context, creds model.Credentials) (*model.LoginResponse, error) {
	row, err := b.userByEmail(ctx, creds.Email)
	if err != nil {
		return nil, err
	}
	if row == nil || b.hasher.Verify(creds.Password, row.PasswordHash) != nil {
		return nil, unauthorized("Invalid email or password")
	}
	if !row.Enabled {
		return nil, unauthorized("Please verify your email before logging in")
	}
	access, refresh, err := b.issue(ctx, row)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("offline login", zap.Int64("user_id", row.ID))
	return &model.LoginResponse{Token: access, RefreshToken: refresh, TokenType: "Bearer", User: row.model()}, nil
}

// issue signs an access token and stores a new refresh token for row.
func (b *Backend) issue(ctx context.Context, row *userRow) (string, string, error) {
	u := row.model()
	access, _, err := b.jwt.CreateAccess(jwt.Subject{ID: u.ID, Email: u.Email, Name: u.Name, Roles: u.Roles})
	if err != nil {
		return "", "", internal("sign access token", err)
	}
	refresh, hash, err := newOpaqueToken()
	if err != nil {
		return "", "", internal("refresh token", err)
	}
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token_hash, user_id, expires_at) VALUES (?, ?, ?)`,
		hash, row.ID, b.clock.Now().Add(b.refreshTTL).UnixMilli())
	if err != nil {
		return "", "", internal("store refresh token", err)
	}
	return access, refresh, nil
}

func (b *Backend) Register(ctx context.Context, reg model.Registration) (string, error) {
	fields := map[string]string{}
	if strings.TrimSpace(reg.Name) == "" {
		fields["name"] = "Name is required"
	}
	if _, err := mail.ParseAddress(reg.Email); err != nil {
		fields["email"] = "Email should be valid"
	}
	if len(reg.Password) < minPasswordLength {
		fields["password"] = fmt.Sprintf("Password must be at least %d characters", minPasswordLength)
	}
	if len(fields) > 0 {
		return "", validation(fields)
	}

	existing, err := b.userByEmail(ctx, reg.Email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", conflict("Email is already registered")
	}
	hash, err := b.hasher.Hash(reg.Password)
	if err != nil {
		return "", internal("hash password", err)
	}
	now := b.now()
	res, err := b.db.NamedExecContext(ctx, insertUser, userRow{
		Name:         strings.TrimSpace(reg.Name),
		Email:        strings.TrimSpace(reg.Email),
		Phone:        reg.Phone,
		Address:      reg.Address,
		PasswordHash: hash,
		Roles:        model.RoleClient,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return "", internal("insert user", err)
	}
	id, _ := res.LastInsertId()
	if err := b.mailToken(ctx, id, reg.Email, PurposeVerify); err != nil {
		return "", err
	}
	return "Registration successful. Please check your email for verification.", nil
}

// mailToken issues a single-use account token and records it in the
// outbox instead of sending mail.
func (b *Backend) mailToken(ctx context.Context, userID int64, email, purpose string) error {
	token, hash, err := newOpaqueToken()
	if err != nil {
		return internal("account token", err)
	}
	now := b.clock.Now()
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return internal("begin", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO account_tokens (token_hash, user_id, purpose, expires_at) VALUES (?, ?, ?, ?)`,
		hash, userID, purpose, now.Add(accountTokenTTL).UnixMilli()); err != nil {
		return internal("store account token", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO outbox (email, purpose, token, created_at) VALUES (?, ?, ?, ?)`,
		email, purpose, token, now.UnixMilli()); err != nil {
		return internal("store outbox", err)
	}
	if err := tx.Commit(); err != nil {
		return internal("commit", err)
	}
	return nil
}

// consumeToken marks a valid account token used and returns its owner.
func (b *Backend) consumeToken(ctx context.Context, token, purpose string) (int64, error) {
	if checkOpaqueToken(token) != nil {
		return 0, badRequest("Invalid or expired token")
	}
	var userID int64
	err := b.db.GetContext(ctx, &userID,
		`UPDATE account_tokens SET used = 1
		 WHERE token_hash = ? AND purpose = ? AND used = 0 AND expires_at > ?
		 RETURNING user_id`,
		hashToken(token), purpose, b.now())
	if errors.Is(err, sql.ErrNoRows) {
		return 0, badRequest("Invalid or expired token")
	}
	if err != nil {
		return 0, internal("consume token", err)
	}
	return userID, nil
}

func (b *Backend) RefreshToken(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	if checkOpaqueToken(refreshToken) != nil {
		return nil, unauthorized("Invalid refresh token")
	}
	var userID int64
	err := b.db.GetContext(ctx, &userID,
		`UPDATE refresh_tokens SET revoked = 1
		 WHERE token_hash = ? AND revoked = 0 AND expires_at > ?
		 RETURNING user_id`,
		hashToken(refreshToken), b.now())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, unauthorized("Invalid refresh token")
	}
	if err != nil {
		return nil, internal("rotate refresh token", err)
	}
	row, err := b.userByID(ctx, userID)
	if err != nil || !row.Enabled {
		return nil, unauthorized("Invalid refresh token")
	}
	access, refresh, err := b.issue(ctx, row)
	if err != nil {
		return nil, err
	}
	return &model.TokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}, nil
}

func (b *Backend) RevokeToken(ctx context.Context, refreshToken string) error {
	if checkOpaqueToken(refreshToken) != nil {
		return nil
	}
	if _, err := b.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = 1 WHERE token_hash = ?`, hashToken(refreshToken)); err != nil {
		return internal("revoke refresh token", err)
	}
	return nil
}

func (b *Backend) revokeAll(ctx context.Context, userID int64) error {
	if _, err := b.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?`, userID); err != nil {
		return internal("revoke refresh tokens", err)
	}
	return nil
}

func (b *Backend) VerifyEmail(ctx context.Context, token string) error {
	userID, err := b.consumeToken(ctx, token, PurposeVerify)
	if err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, `UPDATE users SET enabled = 1, updated_at = ? WHERE id = ?`, b.now(), userID); err != nil {
		return internal("enable user", err)
	}
	return nil
}

func (b *Backend) ResendVerification(ctx context.Context, email string) error {
	row, err := b.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if row == nil {
		return notFound("User")
	}
	if row.Enabled {
		return badRequest("Email is already verified")
	}
	return b.mailToken(ctx, row.ID, row.Email, PurposeVerify)
}

// ForgotPassword succeeds for unknown addresses without sending anything.
func (b *Backend) ForgotPassword(ctx context.Context, email string) error {
	row, err := b.userByEmail(ctx, email)
	if err != nil || row == nil {
		return err
	}
	return b.mailToken(ctx, row.ID, row.Email, PurposeReset)
}

func (b *Backend) ResetPassword(ctx context.Context, reset model.PasswordReset) error {
	if len(reset.NewPassword) < minPasswordLength {
		return validation(map[string]string{"newPassword": fmt.Sprintf("Password must be at least %d characters", minPasswordLength)})
	}
	userID, err := b.consumeToken(ctx, reset.Token, PurposeReset)
	if err != nil {
		return err
	}
	return b.setPassword(ctx, userID, reset.NewPassword)
}

func (b *Backend) setPassword(ctx context.Context, userID int64, plain string) error {
	hash, err := b.hasher.Hash(plain)
	if err != nil {
		return internal("hash password", err)
	}
	if _, err := b.db.ExecContext(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, b.now(), userID); err != nil {
		return internal("update password", err)
	}
	return b.revokeAll(ctx, userID)
}

func (b *Backend) CurrentUser(ctx context.Context) (*model.User, error) {
	row, err := b.caller(ctx)
	if err != nil {
		return nil, err
	}
	u := row.model()
	return &u, nil
}

func (b *Backend) UpdateProfile(ctx context.Context, update model.ProfileUpdate) (*model.User, error) {
	row, err := b.caller(ctx)
	if err != nil {
		return nil, err
	}
	if update.Picture != nil {
		url, err := b.UploadProfilePicture(ctx, *update.Picture)
		if err != nil {
			return nil, err
		}
		update.ProfilePicture = url
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
	setIf(&row.ProfilePicture, update.ProfilePicture)
	row.UpdatedAt = b.now()

	_, err = b.db.NamedExecContext(ctx,
		`UPDATE users SET name = :name, email = :email, phone = :phone, address = :address,
		 profile_picture = :profile_picture, updated_at = :updated_at WHERE id = :id`, row)
	if err != nil {
		return nil, internal("update profile", err)
	}
	u := row.model()
	return &u, nil
}

func (b *Backend) UploadProfilePicture(ctx context.Context, upload model.Upload) (string, error) {
	row, err := b.caller(ctx)
	if err != nil {
		return "", err
	}
	if _, err := readUpload(upload); err != nil {
		return "", err
	}
	return fmt.Sprintf("/uploads/profile/%d/%s-%s", row.ID, uuid.NewString(), path.Base(upload.Filename)), nil
}

func (b *Backend) ChangePassword(ctx context.Context, change model.PasswordChange) error {
	row, err := b.caller(ctx)
	if err != nil {
		return err
	}
	if change.NewPassword != change.ConfirmPassword {
		return badRequest("Passwords do not match")
	}
	if len(change.NewPassword) < minPasswordLength {
		return validation(map[string]string{"newPassword": fmt.Sprintf("Password must be at least %d characters", minPasswordLength)})
	}
	if err := b.hasher.Verify(change.CurrentPassword, row.PasswordHash); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return badRequest("Current password is incorrect")
		}
		return internal("verify password", err)
	}
	return b.setPassword(ctx, row.ID, change.NewPassword)
}

// Mail is a message the offline backend would have sent.
type Mail struct {
	Email   string
	Purpose string
	Token   string
	SentAt  time.Time
}

// Outbox returns the messages addressed to email, oldest first.
func (b *Backend) Outbox(ctx context.Context, email string) ([]Mail, error) {
	var rows []struct {
		Email     string `db:"email"`
		Purpose   string `db:"purpose"`
		Token     string `db:"token"`
		CreatedAt int64  `db:"created_at"`
	}
	err := b.db.SelectContext(ctx, &rows,
		`SELECT email, purpose, token, created_at FROM outbox WHERE email = ? ORDER BY id`, email)
	if err != nil {
		return nil, fmt.Errorf("offline: outbox: %w", err)
	}
	out := make([]Mail, 0, len(rows))
	for _, r := range rows {
		out = append(out, Mail{Email: r.Email, Purpose: r.Purpose, Token: r.Token, SentAt: time.UnixMilli(r.CreatedAt).UTC()})
	}
	return out, nil
}

// LatestToken returns the newest token of purpose mailed to email.
func (b *Backend) LatestToken(ctx context.Context, email, purpose string) (string, error) {
	var token string
	err := b.db.GetContext(ctx, &token,
		`SELECT token FROM outbox WHERE email = ? AND purpose = ? ORDER BY id DESC LIMIT 1`, email, purpose)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("offline: no %s mail for %s", purpose, email)
	}
	return token, err
}

func setIf(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// readUpload drains an upload and returns its size.
func readUpload(up model.Upload) (int64, error) {
	if up.Body == nil || strings.TrimSpace(up.Filename) == "" {
		return 0, badRequest("File is required")
	}
	n, err := io.Copy(io.Discard, up.Body)
	if err != nil {
		return 0, badRequest("Could not read file")
	}
	if n == 0 {
		return 0, badRequest("File is empty")
	}
	return n, nil
}
