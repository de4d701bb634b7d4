package device

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultPort           = 8080
	defaultRequestTimeout = 15 * time.Second
)

// Credentials holds the token/secret pair the device firmware expects.
type Credentials struct {
	Token  string
	Secret string
}

func (c Credentials) Valid() bool {
	return c.Token != "" && c.Secret != ""
}

// Envelope is the status/msg/data response wrapper used by the device API.
type Envelope map[string]any

func (e Envelope) Msg() string {
	if m, ok := e["msg"].(string); ok {
		return m
	}
	return ""
}

// Data returns the data field as an object, if present.
func (e Envelope) Data() (map[string]any, bool) {
	m, ok := e["data"].(map[string]any)
	return m, ok
}

type Config struct {
	Host    string
	Port    int
	DryRun  bool
	Timeout time.Duration
}

// Client issues signed HTTP requests against one Raybox device. Every call
// is a single attempt: the device API has no idempotency guarantee for job
// actions, so the client never retries on its own.
type Client struct {
	baseURL string
	creds   Credentials
	dryRun  bool
	http    *http.Client
	now     func() time.Time
}

func NewClient(cfg Config, creds Credentials) *Client {
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL: fmt.Sprintf("http://%s:%d", cfg.Host, port),
		creds:   creds,
		dryRun:  cfg.DryRun,
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

func (c *Client) DryRun() bool {
	return c.dryRun
}

// signedHeaders builds the authentication headers the firmware validates:
// token, unix-millisecond timestamp and an MD5 digest over the three values.
// MD5 is fixed by the device protocol, not a choice.
func (c *Client) signedHeaders() map[string]string {
	ts := c.now().UnixMilli()
	src := fmt.Sprintf("timestamp=%d&token=%s&secret=%s", ts, c.creds.Token, c.creds.Secret)
	sum := md5.Sum([]byte(src))
	return map[string]string{
		"token":     c.creds.Token,
		"timestamp": strconv.FormatInt(ts, 10),
		"sign":      hex.EncodeToString(sum[:]),
	}
}

type requestSpec struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	signed      bool
}

func (c *Client) send(ctx context.Context, spec requestSpec) (Envelope, error) {
	full := c.baseURL + spec.path
	if len(spec.query) > 0 {
		full += "?" + spec.query.Encode()
	}

	if c.dryRun {
		return Envelope{
			"status": "dry-run",
			"msg":    "dry-run enabled, request not sent",
			"url":    full,
			"method": spec.method,
		}, nil
	}

	if spec.signed && !c.creds.Valid() {
		return nil, ErrMissingCredentials
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, full, spec.body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if spec.signed {
		for k, v := range c.signedHeaders() {
			req.Header.Set(k, v)
		}
	}
	if spec.contentType != "" {
		req.Header.Set("Content-Type", spec.contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 600)}
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNonJSONResponse, truncate(string(body), 600))
	}

	if err := checkEnvelope(env); err != nil {
		return nil, err
	}
	return env, nil
}

// checkEnvelope raises a DeviceError iff the status field is present and
// not one of 0, "dry-run" or null.
func checkEnvelope(env Envelope) error {
	v, ok := env["status"]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case nil:
		return nil
	case float64:
		if s == 0 {
			return nil
		}
	case string:
		if s == "dry-run" {
			return nil
		}
	}
	return &DeviceError{Status: v, Msg: env.Msg()}
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.send(ctx, requestSpec{
		method:      http.MethodPost,
		path:        path,
		body:        bytes.NewReader(data),
		contentType: "application/json",
		signed:      true,
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
