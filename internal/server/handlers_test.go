package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/emosense/authd/internal/auth"
	"github.com/emosense/authd/internal/config"
	"github.com/emosense/authd/internal/middleware"
	"github.com/emosense/authd/internal/otp"
	"github.com/emosense/authd/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testClient struct {
	t      *testing.T
	base   string
	client *http.Client
}

func newTestClient(t *testing.T) (*testClient, *auth.Manager) {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.Driver = config.DriverMemory
	cfg.Auth.LoginDelayMS = 0
	cfg.Auth.OTPDelayMS = 0

	m, err := auth.New(auth.Params{
		Log:    zap.NewNop(),
		Config: cfg,
		Store:  store.NewMemory(),
		Clock:  clockwork.NewFakeClock(),
		Sender: otp.NewLogSender(zap.NewNop()),
	})
	require.NoError(t, err)

	sessions, err := middleware.NewSessionManager()
	require.NoError(t, err)

	srv, err := New(Params{
		Log:      zap.NewNop(),
		Config:   cfg,
		Auth:     m,
		Sessions: sessions,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testClient{
		t:    t,
		base: ts.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, m
}

func (c *testClient) post(path string, body any) (*http.Response, map[string]any) {
	c.t.Helper()

	b, err := json.Marshal(body)
	require.NoError(c.t, err)

	resp, err := c.client.Post(c.base+path, "application/json", bytes.NewReader(b))
	require.NoError(c.t, err)

	return resp, decodeBody(c.t, resp)
}

func (c *testClient) get(path string) (*http.Response, map[string]any) {
	c.t.Helper()

	resp, err := c.client.Get(c.base + path)
	require.NoError(c.t, err)

	return resp, decodeBody(c.t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if json.Unmarshal(b, &out) != nil {
		return nil
	}
	return out
}

func TestPasswordLoginFlow(t *testing.T) {
	assert := assert.New(t)

	c, _ := newTestClient(t)

	// protected API redirects before login
	resp, _ := c.get("/api/session")
	assert.Equal(http.StatusSeeOther, resp.StatusCode)
	assert.Equal("/login", resp.Header.Get("Location"))

	resp, body := c.post("/api/login", map[string]string{
		"identifier": "13800000000",
		"secret":     "secret",
	})
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("/consent-form", body["destination"])

	user := body["user"].(map[string]any)
	assert.Equal("13800000000", user["identifier"])

	resp, body = c.get("/api/session")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(true, body["authenticated"])

	// onboarding gate
	resp, body = c.post("/api/consent", nil)
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("/user-classification", body["destination"])

	resp, body = c.post("/api/classification", map[string]string{"classification": "student"})
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("/journal", body["destination"])

	// a later login skips the gate
	resp, body = c.post("/api/login", map[string]string{
		"identifier": "13800000000",
		"secret":     "secret",
	})
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("/journal", body["destination"])

	resp, _ = c.post("/api/logout", nil)
	assert.Equal(http.StatusOK, resp.StatusCode)

	resp, _ = c.get("/api/session")
	assert.Equal(http.StatusSeeOther, resp.StatusCode)
}

func TestLoginRejectsEmptyCredentials(t *testing.T) {
	assert := assert.New(t)

	c, m := newTestClient(t)

	resp, body := c.post("/api/login", map[string]string{"identifier": "", "secret": "x"})
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(body["error"])
	assert.False(m.IsAuthenticated())
}

func TestOTPLoginFlow(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	c, _ := newTestClient(t)

	resp, body := c.post("/api/otp/request", map[string]string{"identifier": "13800000000"})
	require.Equal(http.StatusOK, resp.StatusCode)

	code, ok := body["code"].(string)
	require.True(ok)
	require.Len(code, 6)
	assert.Equal(float64(5), body["validityMinutes"])

	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}
	resp, _ = c.post("/api/otp/login", map[string]string{
		"identifier": "13800000000",
		"code":       wrong,
	})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, body = c.post("/api/otp/login", map[string]string{
		"identifier": "13800000000",
		"code":       code,
	})
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("/consent-form", body["destination"])

	resp, body = c.get("/api/session")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(true, body["authenticated"])
}

func TestOTPRequestRateLimited(t *testing.T) {
	assert := assert.New(t)

	c, _ := newTestClient(t)

	for i := 0; i < 3; i++ {
		resp, _ := c.post("/api/otp/request", map[string]string{"identifier": "13800000000"})
		assert.Equal(http.StatusOK, resp.StatusCode)
	}

	resp, _ := c.post("/api/otp/request", map[string]string{"identifier": "13800000000"})
	assert.Equal(http.StatusTooManyRequests, resp.StatusCode)

	// other identifiers are unaffected
	resp, _ = c.post("/api/otp/request", map[string]string{"identifier": "13900000000"})
	assert.Equal(http.StatusOK, resp.StatusCode)
}

func TestRegister(t *testing.T) {
	assert := assert.New(t)

	c, _ := newTestClient(t)

	resp, _ := c.post("/api/register", map[string]string{
		"identifier": "13800000000",
		"secret":     "longenough",
	})
	assert.Equal(http.StatusOK, resp.StatusCode)

	resp, _ = c.post("/api/register", map[string]string{
		"identifier": "13800000000",
		"secret":     "short",
	})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestIndexRedirect(t *testing.T) {
	assert := assert.New(t)

	c, _ := newTestClient(t)

	resp, _ := c.get("/")
	assert.Equal(http.StatusSeeOther, resp.StatusCode)
	assert.Equal("/login", resp.Header.Get("Location"))

	c.post("/api/login", map[string]string{"identifier": "13800000000", "secret": "secret"})

	resp, _ = c.get("/")
	assert.Equal(http.StatusSeeOther, resp.StatusCode)
	assert.Equal("/journal", resp.Header.Get("Location"))
}
