package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/MrEthical07/goPortal/model"
)

const (
	PathContact           = "/contact/submit"
	PathNewsletter        = "/contact/newsletter"
	PathUnsubscribe       = "/contact/newsletter/unsubscribe"
	PathVerifyUnsubscribe = "/contact/newsletter/verify"
)

func (d *HTTPDataSource) SubmitContact(ctx context.Context, form model.ContactForm) (*model.Message, error) {
	var out model.Message
	if err := d.do(ctx, call{method: http.MethodPost, path: PathContact, body: form}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDataSource) Subscribe(ctx context.Context, email string) (*model.NewsletterResponse, error) {
	var out model.NewsletterResponse
	if err := d.do(ctx, call{method: http.MethodPost, path: PathNewsletter, body: model.NewsletterRequest{Email: email}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDataSource) Unsubscribe(ctx context.Context, email, token string) (*model.NewsletterResponse, error) {
	var out model.NewsletterResponse
	body := model.NewsletterRequest{Email: email, Token: token}
	if err := d.do(ctx, call{method: http.MethodPost, path: PathUnsubscribe, body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDataSource) VerifyUnsubscribeToken(ctx context.Context, token string) (*model.NewsletterResponse, error) {
	var out model.NewsletterResponse
	if err := d.do(ctx, call{method: http.MethodGet, path: PathVerifyUnsubscribe, query: url.Values{"token": {token}}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
