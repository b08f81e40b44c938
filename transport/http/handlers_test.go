package http

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walletgate/walletgate/adapters/cookies"
	"github.com/walletgate/walletgate/adapters/store"
	"github.com/walletgate/walletgate/core"
	"github.com/walletgate/walletgate/ports"
	"github.com/walletgate/walletgate/service"
)

type recordingPublisher struct {
	mu      sync.Mutex
	logins  int
	logouts int
}

func (p *recordingPublisher) PublishLogin(ctx context.Context, address, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logins++
	return nil
}

func (p *recordingPublisher) PublishLogout(ctx context.Context, address, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts++
	return nil
}

type testEnv struct {
	router *gin.Engine
	svc    *service.AuthService
	users  ports.UserStore
	events *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := store.NewMemoryStore()
	events := &recordingPublisher{}
	svc := service.NewAuthService(cookies.NewJWTCodec([]byte("test-secret")), users, events)

	return &testEnv{
		router: SetupRouter(svc, false),
		svc:    svc,
		users:  users,
		events: events,
	}
}

func (e *testEnv) get(target string, requestCookies ...*http.Cookie) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range requestCookies {
		req.AddCookie(c)
	}
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) postForm(target string, form url.Values, requestCookies ...*http.Cookie) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range requestCookies {
		req.AddCookie(c)
	}
	e.router.ServeHTTP(w, req)
	return w
}

// fetchNonce runs the login loader and returns the issued nonce with its cookie
func (e *testEnv) fetchNonce(t *testing.T) (string, *http.Cookie) {
	t.Helper()

	w := e.get("/login")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Nonce string `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Nonce)

	cookie := findCookie(w, NonceCookieName)
	require.NotNil(t, cookie)

	return body.Nonce, cookie
}

// signedForm builds the login form a wallet-driven browser would submit
func signedForm(t *testing.T, key *ecdsa.PrivateKey, nonce string) (url.Values, string) {
	t.Helper()

	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	msg := &core.Message{
		Domain:    "example.com",
		Address:   address,
		Statement: "Sign in with Ethereum to this application",
		URI:       "https://example.com",
		Version:   core.MessageVersion,
		ChainID:   1,
		Nonce:     nonce,
		IssuedAt:  time.Now().UTC(),
	}
	raw := msg.String()

	sig, err := crypto.Sign(accounts.TextHash([]byte(raw)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27

	form := url.Values{
		"message":   {raw},
		"account":   {address},
		"signature": {hexutil.Encode(sig)},
	}

	return form, address
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

type errorsResponse struct {
	Errors struct {
		Nonce     *string `json:"nonce"`
		Account   *string `json:"account"`
		Message   *string `json:"message"`
		Signature *string `json:"signature"`
		Expired   *string `json:"expired"`
		Valid     *string `json:"valid"`
	} `json:"errors"`
}

func decodeErrors(t *testing.T, w *httptest.ResponseRecorder) errorsResponse {
	t.Helper()
	var resp errorsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestLoginNonceLoader(t *testing.T) {
	env := newTestEnv(t)

	nonce, cookie := env.fetchNonce(t)

	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 604800, cookie.MaxAge)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	// A repeat visit with the cookie returns the same nonce and sets nothing
	w := env.get("/login", cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Nonce string `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, nonce, body.Nonce)
	assert.Nil(t, findCookie(w, NonceCookieName))
}

func TestLoginNonceSuperseded(t *testing.T) {
	env := newTestEnv(t)

	first, _ := env.fetchNonce(t)
	second, _ := env.fetchNonce(t)
	assert.NotEqual(t, first, second, "a cookie-less visit supersedes the previous nonce")
}

func TestLoginMissingFields(t *testing.T) {
	env := newTestEnv(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	nonce, cookie := env.fetchNonce(t)
	form, _ := signedForm(t, key, nonce)

	tests := []struct {
		missing string
		check   func(t *testing.T, resp errorsResponse)
	}{
		{"message", func(t *testing.T, resp errorsResponse) {
			require.NotNil(t, resp.Errors.Message)
			assert.Equal(t, "Message is required", *resp.Errors.Message)
			assert.Nil(t, resp.Errors.Account)
			assert.Nil(t, resp.Errors.Signature)
		}},
		{"account", func(t *testing.T, resp errorsResponse) {
			require.NotNil(t, resp.Errors.Account)
			assert.Equal(t, "A connected account is required", *resp.Errors.Account)
			assert.Nil(t, resp.Errors.Message)
			assert.Nil(t, resp.Errors.Signature)
		}},
		{"signature", func(t *testing.T, resp errorsResponse) {
			require.NotNil(t, resp.Errors.Signature)
			assert.Equal(t, "Signature is required", *resp.Errors.Signature)
			assert.Nil(t, resp.Errors.Message)
			assert.Nil(t, resp.Errors.Account)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.missing, func(t *testing.T) {
			partial := url.Values{}
			for k, v := range form {
				if k != tt.missing {
					partial[k] = v
				}
			}

			w := env.postForm("/login", partial, cookie)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			tt.check(t, decodeErrors(t, w))
		})
	}
}

func TestLoginUnknownUserRedirectsToJoin(t *testing.T) {
	env := newTestEnv(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	nonce, cookie := env.fetchNonce(t)
	form, _ := signedForm(t, key, nonce)

	w := env.postForm("/login", form, cookie)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, JoinPath, w.Header().Get("Location"))
	assert.Nil(t, findCookie(w, SessionCookieName), "no session before registration")
	assert.Zero(t, env.events.logins)
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	nonce, cookie := env.fetchNonce(t)
	form, address := signedForm(t, key, nonce)

	_, err = env.users.CreateUser(ctx, address)
	require.NoError(t, err)

	w := env.postForm("/login?redirectTo=%2Fuser", form, cookie)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/user", w.Header().Get("Location"))

	session := findCookie(w, SessionCookieName)
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, "/", session.Path)
	assert.Equal(t, 259200, session.MaxAge, "remembered sessions last 3 days")
	assert.Equal(t, http.SameSiteLaxMode, session.SameSite)
	assert.Equal(t, 1, env.events.logins)

	// The session authorizes the protected surface
	userResp := env.get("/user", session)
	require.Equal(t, http.StatusOK, userResp.Code)
	assert.Contains(t, userResp.Body.String(), address)
}

func TestLoginOpenRedirectGuard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	nonce, cookie := env.fetchNonce(t)
	form, address := signedForm(t, key, nonce)

	_, err = env.users.CreateUser(ctx, address)
	require.NoError(t, err)

	w := env.postForm("/login?redirectTo="+url.QueryEscape("https://evil.example/phish"), form, cookie)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestLoginNonceMismatch(t *testing.T) {
	env := newTestEnv(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	oldNonce, _ := env.fetchNonce(t)
	_, newerCookie := env.fetchNonce(t)

	form, _ := signedForm(t, key, oldNonce)

	w := env.postForm("/login", form, newerCookie)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decodeErrors(t, w)
	require.NotNil(t, resp.Errors.Nonce)
	assert.Equal(t, "Invalid nonce", *resp.Errors.Nonce)
	assert.Nil(t, resp.Errors.Valid)
}

func TestLoginExpiredChallenge(t *testing.T) {
	env := newTestEnv(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	nonce, cookie := env.fetchNonce(t)

	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	msg := &core.Message{
		Domain:         "example.com",
		Address:        address,
		URI:            "https://example.com",
		Version:        core.MessageVersion,
		ChainID:        1,
		Nonce:          nonce,
		IssuedAt:       time.Now().UTC().Add(-time.Hour),
		ExpirationTime: time.Now().UTC().Add(-time.Minute),
	}
	raw := msg.String()

	sig, err := crypto.Sign(accounts.TextHash([]byte(raw)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27

	form := url.Values{
		"message":   {raw},
		"account":   {address},
		"signature": {hexutil.Encode(sig)},
	}

	w := env.postForm("/login", form, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeErrors(t, w)
	require.NotNil(t, resp.Errors.Expired)
	assert.Equal(t, "Your session has expired", *resp.Errors.Expired)
}

func TestLoginInvalidSignature(t *testing.T) {
	env := newTestEnv(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	nonce, cookie := env.fetchNonce(t)
	form, _ := signedForm(t, key, nonce)

	// Signature over a different message
	sig, err := crypto.Sign(accounts.TextHash([]byte("something else entirely")), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	form.Set("signature", hexutil.Encode(sig))

	w := env.postForm("/login", form, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeErrors(t, w)
	require.NotNil(t, resp.Errors.Valid)
	assert.Equal(t, "Your signature is invalid", *resp.Errors.Valid)
}

func TestLoginMalformedMessage(t *testing.T) {
	env := newTestEnv(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	nonce, cookie := env.fetchNonce(t)
	form, _ := signedForm(t, key, nonce)
	form.Set("message", "this is not a challenge")

	w := env.postForm("/login", form, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeErrors(t, w)
	require.NotNil(t, resp.Errors.Message)
	assert.Equal(t, "Message is malformed", *resp.Errors.Message)
}

func TestJoinCreatesUserAndSession(t *testing.T) {
	env := newTestEnv(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	nonce, cookie := env.fetchNonce(t)
	form, address := signedForm(t, key, nonce)

	w := env.postForm("/join", form, cookie)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.NotNil(t, findCookie(w, SessionCookieName))

	user, err := env.users.LookupByAddress(context.Background(), address)
	require.NoError(t, err)
	assert.NotNil(t, user)
}

func TestRequireAuthRedirect(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/user")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?redirectTo=%2Fuser", w.Header().Get("Location"))
}

func TestStaleSessionSelfHeals(t *testing.T) {
	env := newTestEnv(t)

	// Session bound to an address with no user record
	value, _, err := env.svc.CreateSession(context.Background(), "0xdead", true)
	require.NoError(t, err)

	w := env.get("/user", &http.Cookie{Name: SessionCookieName, Value: value})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	cleared := findCookie(w, SessionCookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
	assert.Equal(t, 1, env.events.logouts)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.users.CreateUser(ctx, "0xabc")
	require.NoError(t, err)

	value, _, err := env.svc.CreateSession(ctx, "0xabc", true)
	require.NoError(t, err)
	session := &http.Cookie{Name: SessionCookieName, Value: value}

	w := env.postForm("/logout", url.Values{}, session)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t, 1, env.events.logouts)

	cleared := findCookie(w, SessionCookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	// The browser drops the cookie, so the next guarded request redirects
	after := env.get("/user")
	assert.Equal(t, http.StatusFound, after.Code)
	assert.Equal(t, "/login?redirectTo=%2Fuser", after.Header().Get("Location"))
}

func TestLogoutGetHasNoSideEffects(t *testing.T) {
	env := newTestEnv(t)

	value, _, err := env.svc.CreateSession(context.Background(), "0xabc", true)
	require.NoError(t, err)

	w := env.get("/logout", &http.Cookie{Name: SessionCookieName, Value: value})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Nil(t, findCookie(w, SessionCookieName))
	assert.Zero(t, env.events.logouts)
}

func TestIndexReportsLoginState(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"logged_in":false`)

	value, _, err := env.svc.CreateSession(context.Background(), "0xabc", true)
	require.NoError(t, err)

	w = env.get("/", &http.Cookie{Name: SessionCookieName, Value: value})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"logged_in":true`)
}
