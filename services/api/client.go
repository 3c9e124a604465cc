// Package apisvc is the REST client of the Shuletrack backend.
package apisvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/apierr"
	"github.com/gachaupg/shuletrack/core/resource"
	"github.com/gachaupg/shuletrack/core/user"
)

const (
	loginPath = "/auth/login/"
	mePath    = "/auth/me/"

	requestIDHeader = "X-Request-ID"
)

// Session is the part of the session store the client needs.
type Session interface {
	Token() string
	SetAuth(token string, profile user.User) error
	SetProfile(profile user.User) error
	ClearAuth() error
}

type Client struct {
	baseURL string
	rest    *rest.Client
	session Session
	logger  core.Logger
}

var _ resource.Transport = (*Client)(nil)

// NewClient returns a client for conf.API.BaseURL, e.g. "https://shuletrack.example/api".
// httpClient may be nil.
func NewClient(conf *core.Config, session Session, logger core.Logger, httpClient *http.Client) *Client {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(conf.API.BaseURL, "conf.API.BaseURL"),
		vala.IsNotNil(session, "session"),
		vala.IsNotNil(logger, "logger"),
	).Check()
	if err != nil {
		panic(err)
	}

	if httpClient == nil {
		timeout := conf.API.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(conf.API.BaseURL, "/"),
		rest:    &rest.Client{HTTPClient: httpClient},
		session: session,
		logger:  logger,
	}
}

// Do sends req with the session token and returns the body of a 2xx response.
// A 401 clears the session and returns apierr.ErrSessionExpired.
func (c *Client) Do(ctx context.Context, req resource.Request) ([]byte, error) {
	resp, err := c.send(ctx, req, true)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if err := c.session.ClearAuth(); err != nil {
			c.logger.Error(fmt.Sprintf("apisvc.Do: clearing session: %v", err), err)
		}
		return nil, apierr.ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apierr.FromResponse(req.Describe(), resp.StatusCode, http.Header(resp.Headers), []byte(resp.Body), req.Op.Structured())
	}
	return []byte(resp.Body), nil
}

// Login exchanges credentials for a token, then stores the token and profile in the session.
func (c *Client) Login(ctx context.Context, creds user.Credentials) (user.User, error) {
	var usr user.User
	req := resource.Request{Op: "login", Resource: "", Method: http.MethodPost, Path: loginPath, Body: creds}

	resp, err := c.send(ctx, req, false)
	if err != nil {
		return usr, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := apierr.FromResponse("login", resp.StatusCode, http.Header(resp.Headers), []byte(resp.Body), true)
		if apierr.IsUnauthorized(err) {
			return usr, &apierr.GenericError{Status: resp.StatusCode, Message: "invalid email or password"}
		}
		return usr, err
	}

	token, profile, err := parseLogin([]byte(resp.Body))
	if err != nil {
		return usr, err
	}
	if profile == nil {
		if profile, err = c.fetchProfile(ctx, token); err != nil {
			return usr, err
		}
	}
	if err := c.session.SetAuth(token, *profile); err != nil {
		return usr, errors.Wrap(err, "apisvc.Login")
	}
	return *profile, nil
}

// Me refreshes the stored profile from the backend.
func (c *Client) Me(ctx context.Context) (user.User, error) {
	body, err := c.Do(ctx, resource.Request{Op: resource.OpFetch, Resource: "profile", Method: http.MethodGet, Path: mePath})
	if err != nil {
		return user.User{}, err
	}
	usr, err := resource.UnwrapOne[user.User](body)
	if err != nil {
		return usr, &apierr.GenericError{Status: http.StatusOK, Message: "fetch profile failed: unexpected response"}
	}
	if err := c.session.SetProfile(usr); err != nil {
		return usr, errors.Wrap(err, "apisvc.Me")
	}
	return usr, nil
}

func (c *Client) fetchProfile(ctx context.Context, token string) (*user.User, error) {
	req := resource.Request{Op: resource.OpFetch, Resource: "profile", Method: http.MethodGet, Path: mePath}
	resp, err := c.sendWithToken(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apierr.FromResponse(req.Describe(), resp.StatusCode, http.Header(resp.Headers), []byte(resp.Body), false)
	}
	usr, err := resource.UnwrapOne[user.User]([]byte(resp.Body))
	if err != nil {
		return nil, &apierr.GenericError{Status: resp.StatusCode, Message: "fetch profile failed: unexpected response"}
	}
	return &usr, nil
}

func (c *Client) send(ctx context.Context, req resource.Request, withAuth bool) (*rest.Response, error) {
	token := ""
	if withAuth {
		token = c.session.Token()
	}
	return c.sendWithToken(ctx, req, token)
}

func (c *Client) sendWithToken(ctx context.Context, req resource.Request, token string) (*rest.Response, error) {
	reqID := uuid.New().String()
	restReq := rest.Request{
		Method:      rest.Method(req.Method),
		BaseURL:     c.baseURL + req.Path,
		QueryParams: req.Query,
		Headers: map[string]string{
			"Accept":        "application/json",
			requestIDHeader: reqID,
		},
	}
	if token != "" {
		restReq.Headers["Authorization"] = "Bearer " + token
	}
	if req.Body != nil {
		body, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "apisvc: encoding %s body", req.Describe())
		}
		restReq.Body = body
		restReq.Headers["Content-Type"] = "application/json"
	}

	start := time.Now()
	resp, err := c.rest.SendWithContext(ctx, restReq)
	if err != nil {
		c.logger.Debug(fmt.Sprintf("apisvc: %s %s [%s]: %v", req.Method, req.Path, reqID, err))
		return nil, &apierr.NetworkError{Err: err}
	}
	c.logger.Debug(fmt.Sprintf("apisvc: %s %s [%s] %d in %s", req.Method, req.Path, reqID, resp.StatusCode, time.Since(start)))
	return resp, nil
}

// parseLogin reads {"token": ..., "user": {...}}; "access" and "key" are accepted for the token,
// and the payload may be wrapped in {"data": ...}.
func parseLogin(body []byte) (string, *user.User, error) {
	var payload struct {
		Token  string          `json:"token"`
		Access string          `json:"access"`
		Key    string          `json:"key"`
		User   json.RawMessage `json:"user"`
	}
	obj, err := resource.UnwrapOne[json.RawMessage](body)
	if err != nil {
		return "", nil, &apierr.GenericError{Status: http.StatusOK, Message: "login failed: unexpected response"}
	}
	if err := json.Unmarshal(obj, &payload); err != nil {
		return "", nil, &apierr.GenericError{Status: http.StatusOK, Message: "login failed: unexpected response"}
	}

	token := payload.Token
	for _, alt := range []string{payload.Access, payload.Key} {
		if token == "" {
			token = alt
		}
	}
	if token == "" {
		return "", nil, &apierr.GenericError{Status: http.StatusOK, Message: "login failed: no token in response"}
	}

	if len(payload.User) == 0 || string(payload.User) == "null" {
		return token, nil, nil
	}
	var usr user.User
	if err := json.Unmarshal(payload.User, &usr); err != nil {
		return "", nil, &apierr.GenericError{Status: http.StatusOK, Message: "login failed: unexpected response"}
	}
	return token, &usr, nil
}
