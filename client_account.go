package goPortal

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goPortal/model"
	"github.com/MrEthical07/goPortal/session"
)

// VerifyEmail describes the verifyemail operation and its observable behavior.
//
// VerifyEmail confirms an address with the emailed token and navigates to
// the login page.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	if err := c.ds.VerifyEmail(ctx, token); err != nil {
		c.fail(ctx, err, "Email verification failed")
		return err
	}
	c.notify(ctx, SeveritySuccess, "Email verified successfully")
	c.navigate(ctx, c.cfg.Navigation.LoginPath)
	return nil
}

// ResendVerification describes the resendverification operation and its observable behavior.
func (c *Client) ResendVerification(ctx context.Context, email string) error {
	if err := c.ds.ResendVerification(ctx, email); err != nil {
		c.fail(ctx, err, "Failed to send verification email")
		return err
	}
	c.notify(ctx, SeveritySuccess, "Verification email sent")
	return nil
}

// ForgotPassword describes the forgotpassword operation and its observable behavior.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	if err := c.ds.ForgotPassword(ctx, email); err != nil {
		c.fail(ctx, err, "Failed to send reset email")
		return err
	}
	c.notify(ctx, SeveritySuccess, "Password reset email sent")
	return nil
}

// ResetPassword describes the resetpassword operation and its observable behavior.
//
// ResetPassword sets a new password with the emailed token and navigates
// to the login page.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := c.ds.ResetPassword(ctx, model.PasswordReset{Token: token, NewPassword: newPassword}); err != nil {
		c.fail(ctx, err, "Password reset failed")
		return err
	}
	c.notify(ctx, SeveritySuccess, "Password reset successful")
	c.navigate(ctx, c.cfg.Navigation.LoginPath)
	return nil
}

// UpdateProfile describes the updateprofile operation and its observable behavior.
//
// UpdateProfile saves the profile, uploading update.Picture first when
// set, and replaces the stored and in-memory user with the server's copy.
// Tokens and timestamps are left untouched. Other clients sharing the
// store are told about the new user record.
func (c *Client) UpdateProfile(ctx context.Context, update model.ProfileUpdate) (*model.User, error) {
	user, err := c.ds.UpdateProfile(ctx, update)
	if err != nil {
		c.fail(ctx, err, "Failed to update profile")
		return nil, err
	}
	if err := c.store.SaveUser(ctx, user); err != nil {
		err = fmt.Errorf("%w: %w", ErrSessionPersist, err)
		c.fail(ctx, err, "Failed to update profile")
		return nil, err
	}
	c.adoptUser(user)

	c.metrics.Inc(MetricProfileUpdated)
	c.emit(ctx, SessionEvent{Type: EventProfileUpdated, UserID: user.ID, Email: user.Email, Success: true})
	c.publish(ctx, session.SyncUpdate, user)
	c.notify(ctx, SeveritySuccess, "Profile updated successfully")
	return user.Clone(), nil
}

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword checks the confirmation locally, changes the password
// remotely and then logs out with notification and redirect, so the user
// signs in again with the new password.
func (c *Client) ChangePassword(ctx context.Context, change model.PasswordChange) error {
	if change.NewPassword != change.ConfirmPassword {
		c.notify(ctx, SeverityError, "Passwords do not match")
		return ErrPasswordMismatch
	}
	if err := c.ds.ChangePassword(ctx, change); err != nil {
		c.fail(ctx, err, "Failed to change password")
		return err
	}
	c.metrics.Inc(MetricPasswordChanged)
	c.emit(ctx, SessionEvent{Type: EventPasswordChanged, UserID: userID(c.CurrentUser()), Success: true})
	c.notify(ctx, SeveritySuccess, "Password changed successfully")
	return c.Logout(ctx)
}

// adoptUser replaces the in-memory user, keeping tokens and timestamps.
func (c *Client) adoptUser(u *model.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		c.sess.User = u.Clone()
	}
}
