package offline

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"strings"

	"github.com/MrEthical07/goPortal/model"
)

func (b *Backend) SubmitContact(ctx context.Context, form model.ContactForm) (*model.Message, error) {
	fields := map[string]string{}
	if strings.TrimSpace(form.Name) == "" {
		fields["name"] = "Name is required"
	}
	if _, err := mail.ParseAddress(form.Email); err != nil {
		fields["email"] = "Email should be valid"
	}
	if strings.TrimSpace(form.Subject) == "" {
		fields["subject"] = "Subject is required"
	}
	if strings.TrimSpace(form.Message) == "" {
		fields["message"] = "Message is required"
	}
	if len(fields) > 0 {
		return nil, validation(fields)
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO contact_messages (name, email, phone, subject, message, inquiry_type, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		form.Name, form.Email, form.Phone, form.Subject, form.Message, form.InquiryType, b.now())
	if err != nil {
		return nil, internal("store contact message", err)
	}
	return &model.Message{Message: "Thank you for your message. We will get back to you soon."}, nil
}

// Subscribe records the address with a fresh unsubscribe token. An
// address that unsubscribed earlier is subscribed again.
func (b *Backend) Subscribe(ctx context.Context, email string) (*model.NewsletterResponse, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validation(map[string]string{"email": "Email should be valid"})
	}
	var subscribed bool
	err := b.db.GetContext(ctx, &subscribed, `SELECT subscribed FROM newsletter WHERE email = ?`, email)
	switch {
	case err == nil && subscribed:
		return nil, conflict("Email is already subscribed")
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, internal("load subscription", err)
	}
	token, _, err := newOpaqueToken()
	if err != nil {
		return nil, internal("unsubscribe token", err)
	}
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO newsletter (email, token, subscribed, created_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT (email) DO UPDATE SET token = excluded.token, subscribed = 1`,
		email, token, b.now())
	if err != nil {
		return nil, internal("subscribe", err)
	}
	if _, err := b.db.ExecContext(ctx,
		`INSERT INTO outbox (email, purpose, token, created_at) VALUES (?, 'unsubscribe', ?, ?)`,
		email, token, b.now()); err != nil {
		return nil, internal("store outbox", err)
	}
	return &model.NewsletterResponse{Success: true, Message: "Successfully subscribed to newsletter!", Email: email}, nil
}

func (b *Backend) Unsubscribe(ctx context.Context, email, token string) (*model.NewsletterResponse, error) {
	res, err := b.db.ExecContext(ctx,
		`UPDATE newsletter SET subscribed = 0 WHERE email = ? AND token = ? AND subscribed = 1`,
		strings.TrimSpace(email), token)
	if err != nil {
		return nil, internal("unsubscribe", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, badRequest("Invalid unsubscribe link")
	}
	return &model.NewsletterResponse{Success: true, Message: "Successfully unsubscribed from newsletter.", Email: email}, nil
}

func (b *Backend) VerifyUnsubscribeToken(ctx context.Context, token string) (*model.NewsletterResponse, error) {
	var email string
	err := b.db.GetContext(ctx, &email, `SELECT email FROM newsletter WHERE token = ? AND subscribed = 1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, badRequest("Invalid unsubscribe link")
	}
	if err != nil {
		return nil, internal("verify unsubscribe token", err)
	}
	return &model.NewsletterResponse{Success: true, Email: email}, nil
}
