package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/goPortal/model"
	"github.com/MrEthical07/goPortal/transport"
)

const (
	// DefaultTimeout bounds every call made by clients built here.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 4 << 20
	uploadField      = "file"
)

// Options configures an HTTPDataSource.
type Options struct {
	// BaseURL is the API root including its prefix, e.g.
	// "https://portal.example.com/api".
	BaseURL string
	// Client carries every call except refresh and revoke. It is normally
	// wrapped in a transport.Transport.
	Client *http.Client
	// Direct carries refresh and revoke. It must not be wrapped in a
	// transport.Transport.
	Direct *http.Client
	Logger *zap.Logger
}

// HTTPDataSource is the live DataSource speaking the portal REST API.
type HTTPDataSource struct {
	base   *url.URL
	client *http.Client
	direct *http.Client
	logger *zap.Logger
}

var _ DataSource = (*HTTPDataSource)(nil)

// NewHTTPDataSource validates opts and returns a DataSource.
func NewHTTPDataSource(opts Options) (*HTTPDataSource, error) {
	raw := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("api: base URL is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("api: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: base URL scheme %q not supported", base.Scheme)
	}

	d := &HTTPDataSource{
		base:   base,
		client: opts.Client,
		direct: opts.Direct,
		logger: opts.Logger,
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: DefaultTimeout}
	}
	if d.direct == nil {
		d.direct = &http.Client{Timeout: DefaultTimeout}
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d, nil
}

// BaseURL returns the API root.
func (d *HTTPDataSource) BaseURL() string {
	return d.base.String()
}

type call struct {
	method string
	path   string
	query  url.Values
	body   any
	upload *model.Upload
	// anonymous calls carry no bearer and are never replayed.
	anonymous bool
	// direct calls bypass the authenticated transport.
	direct bool
}

func (d *HTTPDataSource) do(ctx context.Context, c call, out any) error {
	req, err := d.newRequest(ctx, c)
	if err != nil {
		return err
	}

	client := d.client
	if c.direct {
		client = d.direct
	}

	resp, err := client.Do(req)
	if err != nil {
		return d.transportError(c, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Status: resp.StatusCode, Kind: KindNetwork, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp.StatusCode, raw)
		d.logger.Debug("api call failed",
			zap.String("method", c.method),
			zap.String("path", c.path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return apiErr
	}
	return decodeBody(resp.StatusCode, raw, out)
}

func (d *HTTPDataSource) newRequest(ctx context.Context, c call) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.anonymous {
		ctx = transport.WithoutAuth(ctx)
	}

	u := d.base.JoinPath(c.path)
	if len(c.query) > 0 {
		u.RawQuery = c.query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case c.upload != nil:
		buf, ct, err := encodeUpload(*c.upload)
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case c.body != nil:
		raw, err := json.Marshal(c.body)
		if err != nil {
			return nil, fmt.Errorf("api: encode %s %s: %w", c.method, c.path, err)
		}
		body, contentType = bytes.NewReader(raw), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, c.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("api: build %s %s: %w", c.method, c.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (d *HTTPDataSource) transportError(c call, err error) error {
	d.logger.Debug("api call did not complete",
		zap.String("method", c.method),
		zap.String("path", c.path),
		zap.Error(err),
	)
	if errors.Is(err, transport.ErrRefreshFailed) {
		return &Error{Status: http.StatusUnauthorized, Kind: KindUnauthorized, Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err}
}

// decodeBody fills out from a 2xx body. A *string target accepts a JSON
// string, a {message} object or plain text.
func decodeBody(status int, raw []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if s, ok := out.(*string); ok {
		*s = decodeText(raw)
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Status: status, Kind: KindUnknown, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func decodeText(raw []byte) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var m model.Message
	if err := json.Unmarshal(raw, &m); err == nil && m.Message != "" {
		return m.Message
	}
	return strings.TrimSpace(string(raw))
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeUpload(up model.Upload) (*bytes.Buffer, string, error) {
	if up.Body == nil {
		return nil, "", errors.New("api: upload has no body")
	}
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	filename := up.Filename
	if filename == "" {
		filename = "upload"
	}
	ct := up.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(uploadField), quoteEscaper.Replace(filename)))
	h.Set("Content-Type", ct)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("api: create upload part: %w", err)
	}
	if _, err := io.Copy(part, up.Body); err != nil {
		return nil, "", fmt.Errorf("api: copy upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("api: close upload: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

func idPath(format string, ids ...int64) string {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf(format, args...)
}
