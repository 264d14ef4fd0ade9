package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/MrEthical07/goPortal/model"
)

// Endpoint paths relative to the API root.
const (
	PathLogin              = "/auth/login"
	PathRegister           = "/auth/register"
	PathRefresh            = "/auth/token/refresh"
	PathRevoke             = "/auth/token/revoke"
	PathVerifyEmail        = "/account/verify"
	PathResendVerification = "/account/resend-verification"
	PathForgotPassword     = "/account/password/forgot"
	PathResetPassword      = "/account/password/reset"
	PathProfile            = "/users/profile"
	PathProfilePicture     = "/users/profile/picture"
	PathChangePassword     = "/users/profile/change-password"
)

func (d *HTTPDataSource) Login(ctx context.Context, creds model.Credentials) (*model.LoginResponse, error) {
	var out model.LoginResponse
	if err := d.do(ctx, call{method: http.MethodPost, path: PathLogin, body: creds, anonymous: true}, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &Error{Status: http.StatusOK, Kind: KindUnknown, Err: errors.New("login response carried no token")}
	}
	return &out, nil
}

func (d *HTTPDataSource) Register(ctx context.Context, reg model.Registration) (string, error) {
	var msg string
	if err := d.do(ctx, call{method: http.MethodPost, path: PathRegister, body: reg, anonymous: true}, &msg); err != nil {
		return "", err
	}
	return msg, nil
}

// RefreshToken exchanges refreshToken on the direct client so the call is
// never intercepted by the transport that triggered it.
func (d *HTTPDataSource) RefreshToken(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	var out model.TokenResponse
	err := d.do(ctx, call{
		method:    http.MethodPost,
		path:      PathRefresh,
		body:      model.RefreshRequest{RefreshToken: refreshToken},
		anonymous: true,
		direct:    true,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, &Error{Status: http.StatusOK, Kind: KindUnknown, Err: errors.New("refresh response carried no access token")}
	}
	return &out, nil
}

func (d *HTTPDataSource) RevokeToken(ctx context.Context, refreshToken string) error {
	return d.do(ctx, call{
		method:    http.MethodPost,
		path:      PathRevoke,
		body:      model.RefreshRequest{RefreshToken: refreshToken},
		anonymous: true,
		direct:    true,
	}, nil)
}

func (d *HTTPDataSource) VerifyEmail(ctx context.Context, token string) error {
	return d.do(ctx, call{
		method:    http.MethodGet,
		path:      PathVerifyEmail,
		query:     url.Values{"token": {token}},
		anonymous: true,
	}, nil)
}

func (d *HTTPDataSource) ResendVerification(ctx context.Context, email string) error {
	return d.do(ctx, call{
		method:    http.MethodPost,
		path:      PathResendVerification,
		query:     url.Values{"email": {email}},
		anonymous: true,
	}, nil)
}

func (d *HTTPDataSource) ForgotPassword(ctx context.Context, email string) error {
	return d.do(ctx, call{
		method:    http.MethodPost,
		path:      PathForgotPassword,
		query:     url.Values{"email": {email}},
		anonymous: true,
	}, nil)
}

func (d *HTTPDataSource) ResetPassword(ctx context.Context, reset model.PasswordReset) error {
	return d.do(ctx, call{method: http.MethodPost, path: PathResetPassword, body: reset, anonymous: true}, nil)
}

func (d *HTTPDataSource) CurrentUser(ctx context.Context) (*model.User, error) {
	var out model.User
	if err := d.do(ctx, call{method: http.MethodGet, path: PathProfile}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile uploads update.Picture first when set and sends its URL
// as the profile picture.
func (d *HTTPDataSource) UpdateProfile(ctx context.Context, update model.ProfileUpdate) (*model.User, error) {
	if update.Picture != nil {
		pictureURL, err := d.UploadProfilePicture(ctx, *update.Picture)
		if err != nil {
			return nil, err
		}
		update.ProfilePicture = pictureURL
		update.Picture = nil
	}
	var out model.User
	if err := d.do(ctx, call{method: http.MethodPut, path: PathProfile, body: update}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDataSource) UploadProfilePicture(ctx context.Context, upload model.Upload) (string, error) {
	var out model.ImageURL
	if err := d.do(ctx, call{method: http.MethodPost, path: PathProfilePicture, upload: &upload}, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (d *HTTPDataSource) ChangePassword(ctx context.Context, change model.PasswordChange) error {
	return d.do(ctx, call{method: http.MethodPost, path: PathChangePassword, body: change}, nil)
}
