package router

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/idmirror/internal/domain"
	authctrl "github.com/dropDatabas3/idmirror/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/idmirror/internal/http/controllers/health"
	usersctrl "github.com/dropDatabas3/idmirror/internal/http/controllers/users"
	webhookctrl "github.com/dropDatabas3/idmirror/internal/http/controllers/webhook"
	mw "github.com/dropDatabas3/idmirror/internal/http/middlewares"
	"github.com/dropDatabas3/idmirror/internal/otp"
	"github.com/dropDatabas3/idmirror/internal/provider"
	"github.com/dropDatabas3/idmirror/internal/rate"
	"github.com/dropDatabas3/idmirror/internal/reconcile"
	"github.com/dropDatabas3/idmirror/internal/signup"
	"github.com/dropDatabas3/idmirror/internal/verification"
)

const (
	testWebhookKey = "dGVzdC1zaWduaW5nLWtleS0zMi1ieXRlcy1sb25nISE="
	testJWTSecret  = "session-secret-for-tests"
	testIssuer     = "idmirror-tests"
)

// ---- fakes ----

type memDirectory struct {
	byProvider map[string]*domain.User
	byEmail    map[string]*domain.User
	seq        int
}

func newMemDirectory() *memDirectory {
	return &memDirectory{byProvider: map[string]*domain.User{}, byEmail: map[string]*domain.User{}}
}

func (d *memDirectory) UpsertByProviderID(_ context.Context, u *domain.User) (bool, error) {
	pid := *u.ProviderID
	if existing, ok := d.byProvider[pid]; ok {
		existing.Email = u.Email
		existing.Username = u.Username
		existing.FirstName = u.FirstName
		existing.LastName = u.LastName
		*u = *existing
		return false, nil
	}
	if u.Email != "" {
		if owner, ok := d.byEmail[u.Email]; ok && (owner.ProviderID == nil || *owner.ProviderID != pid) {
			return false, domain.ErrEmailTaken
		}
	}
	d.seq++
	u.ID = fmt.Sprintf("local-%d", d.seq)
	d.byProvider[pid] = u
	if u.Email != "" {
		d.byEmail[u.Email] = u
	}
	return true, nil
}

func (d *memDirectory) RebindByEmail(_ context.Context, email string, u *domain.User) error {
	owner, ok := d.byEmail[email]
	if !ok {
		return domain.ErrNotFound
	}
	owner.ProviderID = u.ProviderID
	d.byProvider[*u.ProviderID] = owner
	return nil
}

func (d *memDirectory) DeleteByProviderID(_ context.Context, providerID string) (bool, error) {
	u, ok := d.byProvider[providerID]
	if !ok {
		return false, nil
	}
	delete(d.byProvider, providerID)
	delete(d.byEmail, u.Email)
	return true, nil
}

func (d *memDirectory) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := d.byEmail[email]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (d *memDirectory) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	if _, ok := d.byEmail[email]; ok {
		return true, nil
	}
	for _, u := range d.byProvider {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (d *memDirectory) MarkVerified(_ context.Context, email string) error {
	u, ok := d.byEmail[email]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsVerified = true
	return nil
}

func (d *memDirectory) List(context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(d.byProvider))
	for _, u := range d.byProvider {
		out = append(out, *u)
	}
	return out, nil
}

type capturingSender struct{ bodies []string }

func (s *capturingSender) Send(to, subject, html, text string) error {
	s.bodies = append(s.bodies, text)
	return nil
}

func (s *capturingSender) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, s.bodies, "no email captured")
	for _, w := range strings.Fields(s.bodies[len(s.bodies)-1]) {
		if len(w) == 6 && strings.Trim(w, "0123456789") == "" {
			return w
		}
	}
	t.Fatal("no code in email body")
	return ""
}

type stubProvider struct{ nextID int }

func (p *stubProvider) CreateAccount(_ context.Context, prof provider.Profile) (*provider.AccountHandle, error) {
	p.nextID++
	return &provider.AccountHandle{ID: fmt.Sprintf("user_%d", p.nextID), Email: prof.Email}, nil
}
func (p *stubProvider) UpdatePassword(context.Context, string, string) error { return nil }

// ---- harness ----

type harness struct {
	srv    *httptest.Server
	sender *capturingSender
	dir    *memDirectory
}

func newHarness(t *testing.T, forgotLimit int) *harness {
	t.Helper()

	dir := newMemDirectory()
	sender := &capturingSender{}
	prov := &stubProvider{}

	verifySvc := verification.New(verification.Deps{
		Tokens:   otp.NewMemoryStore(),
		Dir:      dir,
		Provider: prov,
		Sender:   sender,
		TTL:      10 * time.Minute,
	})
	signupSvc := signup.New(signup.Deps{Dir: dir, Provider: prov, Verify: verifySvc})

	verifier, err := provider.NewWebhookVerifier("whsec_" + testWebhookKey)
	require.NoError(t, err)

	var forgotLimiter rate.Limiter
	if forgotLimit > 0 {
		forgotLimiter = rate.NewMemoryLimiter(forgotLimit, time.Minute)
	}

	handler := New(Deps{
		Auth:          authctrl.NewController(signupSvc, verifySvc),
		Users:         usersctrl.NewController(signupSvc),
		Webhook:       webhookctrl.NewController(verifier, reconcile.New(dir)),
		Health:        healthctrl.NewController(),
		Session:       mw.WithSession([]byte(testJWTSecret), testIssuer),
		ForgotLimiter: forgotLimiter,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &harness{srv: srv, sender: sender, dir: dir}
}

func (h *harness) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(h.srv.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func (h *harness) deliverWebhook(t *testing.T, payload string) *http.Response {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	key, err := base64.StdEncoding.DecodeString(testWebhookKey)
	require.NoError(t, err)
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "msg_1.%s.", ts)
	mac.Write([]byte(payload))

	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/v1/webhooks/identity", strings.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", ts)
	req.Header.Set("svix-signature", "v1,"+base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// ---- tests ----

func TestSignupVerifyFlow(t *testing.T) {
	h := newHarness(t, 0)

	resp := h.postJSON(t, "/v1/auth/signup", map[string]string{
		"username": "ada",
		"email":    "ada@test.com",
		"password": "secreta123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ProviderID string `json:"provider_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.NotEmpty(t, created.ProviderID)

	// el webhook user.created materializa el row local
	payload := fmt.Sprintf(`{"type":"user.created","data":{"id":%q,"username":"ada","email_addresses":[{"email_address":"ada@test.com"}]}}`, created.ProviderID)
	wresp := h.deliverWebhook(t, payload)
	require.Equal(t, http.StatusOK, wresp.StatusCode)
	wresp.Body.Close()

	// el código del email verifica la cuenta
	code := h.sender.lastCode(t)
	vresp := h.postJSON(t, "/v1/auth/verify-otp", map[string]string{"email": "ada@test.com", "code": code})
	require.Equal(t, http.StatusOK, vresp.StatusCode)
	vresp.Body.Close()
	require.True(t, h.dir.byEmail["ada@test.com"].IsVerified)

	// reusar el código falla
	vresp = h.postJSON(t, "/v1/auth/verify-otp", map[string]string{"email": "ada@test.com", "code": code})
	require.Equal(t, http.StatusBadRequest, vresp.StatusCode)
	vresp.Body.Close()
}

func TestWebhookBadSignatureRejected(t *testing.T) {
	h := newHarness(t, 0)

	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/v1/webhooks/identity",
		strings.NewReader(`{"type":"user.created","data":{"id":"u1"}}`))
	require.NoError(t, err)
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("svix-signature", "v1,AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, h.dir.byProvider, "unsigned event must not touch the directory")
}

func TestWebhookDeleteIdempotent(t *testing.T) {
	h := newHarness(t, 0)

	created := `{"type":"user.created","data":{"id":"user_9","username":"eva","email_addresses":[{"email_address":"eva@test.com"}]}}`
	resp := h.deliverWebhook(t, created)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	deleted := `{"type":"user.deleted","data":{"id":"user_9"}}`
	for i := 0; i < 2; i++ {
		resp = h.deliverWebhook(t, deleted)
		require.Equal(t, http.StatusOK, resp.StatusCode, "delete redelivery must succeed")
		resp.Body.Close()
	}
	require.Empty(t, h.dir.byProvider)
}

func TestChangePasswordRequiresSession(t *testing.T) {
	h := newHarness(t, 0)

	resp := h.postJSON(t, "/v1/auth/change-password", map[string]string{"new_password": "x123456"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.RegisteredClaims{
		Subject:   "user_1",
		Issuer:    testIssuer,
		ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := tok.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"new_password": "x123456"})
	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/v1/auth/change-password", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signed)

	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	require.Equal(t, http.StatusOK, authed.StatusCode)
}

func TestForgotPasswordRateLimited(t *testing.T) {
	h := newHarness(t, 1)

	resp := h.postJSON(t, "/v1/auth/forgot-password", map[string]string{"email": "ada@test.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = h.postJSON(t, "/v1/auth/forgot-password", map[string]string{"email": "ada@test.com"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()
}

func TestUsersProjectionHidesInternals(t *testing.T) {
	h := newHarness(t, 0)

	created := `{"type":"user.created","data":{"id":"user_9","first_name":"Eva","last_name":"Perez","username":"eva","email_addresses":[{"email_address":"eva@test.com"}]}}`
	resp := h.deliverWebhook(t, created)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	uresp, err := http.Get(h.srv.URL + "/v1/users")
	require.NoError(t, err)
	defer uresp.Body.Close()
	require.Equal(t, http.StatusOK, uresp.StatusCode)

	var out struct {
		Users []map[string]any `json:"users"`
	}
	require.NoError(t, json.NewDecoder(uresp.Body).Decode(&out))
	require.Len(t, out.Users, 1)
	require.Equal(t, "Eva Perez", out.Users[0]["name"])
	require.Equal(t, "eva@test.com", out.Users[0]["email"])
	require.NotContains(t, out.Users[0], "username")
	require.NotContains(t, out.Users[0], "provider_id")
}
