package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/idmirror/internal/observability/logger"
)

// HTTPClient implementa Client contra la API REST del provider.
type HTTPClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type createAccountReq struct {
	EmailAddress []string       `json:"email_address"`
	FirstName    string         `json:"first_name"`
	LastName     string         `json:"last_name"`
	Username     string         `json:"username"`
	Password     string         `json:"password"`
	Metadata     map[string]any `json:"public_metadata,omitempty"`
}

type createAccountResp struct {
	ID             string `json:"id"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

func (c *HTTPClient) CreateAccount(ctx context.Context, p Profile) (*AccountHandle, error) {
	meta := map[string]any{}
	if p.DateOfBirth != "" {
		meta["dob"] = p.DateOfBirth
	}
	if p.PhoneNumber != "" {
		meta["phoneNumber"] = p.PhoneNumber
	}

	body := createAccountReq{
		EmailAddress: []string{p.Email},
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Username:     p.Username,
		Password:     p.Password,
		Metadata:     meta,
	}

	var out createAccountResp
	if err := c.do(ctx, http.MethodPost, "/v1/users", body, &out); err != nil {
		return nil, err
	}

	h := &AccountHandle{ID: out.ID, Email: p.Email}
	if len(out.EmailAddresses) > 0 && out.EmailAddresses[0].EmailAddress != "" {
		h.Email = out.EmailAddresses[0].EmailAddress
	}
	return h, nil
}

func (c *HTTPClient) UpdatePassword(ctx context.Context, providerID, newPassword string) error {
	body := map[string]string{"password": newPassword}
	return c.do(ctx, http.MethodPatch, "/v1/users/"+providerID, body, nil)
}

// do ejecuta el request y mapea fallas remotas a *RemoteError.
// El body del request nunca se loguea: puede llevar credenciales.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode/100 != 2 {
		rerr := parseRemoteError(resp, rb)
		logger.From(ctx).Warn("provider call failed",
			logger.String("method", method),
			logger.Path(path),
			logger.Status(rerr.Status),
			logger.String("remote_code", rerr.Code),
			logger.String("remote_request_id", rerr.RequestID),
		)
		return rerr
	}

	if out != nil {
		if err := json.Unmarshal(rb, out); err != nil {
			return fmt.Errorf("provider response decode: %w", err)
		}
	}
	return nil
}

type remoteErrBody struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Message string `json:"message"`
}

func parseRemoteError(resp *http.Response, body []byte) *RemoteError {
	re := &RemoteError{
		Status:    resp.StatusCode,
		RequestID: resp.Header.Get("X-Request-Id"),
		Message:   http.StatusText(resp.StatusCode),
	}
	var eb remoteErrBody
	if json.Unmarshal(body, &eb) == nil {
		if len(eb.Errors) > 0 {
			re.Code = eb.Errors[0].Code
			re.Message = eb.Errors[0].Message
		} else if eb.Message != "" {
			re.Message = eb.Message
		}
	}
	return re
}
