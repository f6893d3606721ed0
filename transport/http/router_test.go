package http

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/questproof/adapters/catalog"
	"github.com/layer-3/questproof/adapters/evaluator"
	"github.com/layer-3/questproof/adapters/store"
	"github.com/layer-3/questproof/adapters/tokenizer"
	"github.com/layer-3/questproof/adapters/wallet"
	"github.com/layer-3/questproof/service"
)

const testAnswer = "Anchoring the hash of my answer on a public ledger gives a tamper-evident timestamp. " +
	"Anyone can later recompute the hash from the full text and compare, while privacy is kept because only the digest is published."

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	logger, _ := test.NewNullLogger()

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	verifier := wallet.NewEthVerifier()
	registry := service.NewIdentityRegistry(nil, logger, nil)
	sessions := service.NewSessionManager(store.NewMemoryStore(), tokenizer.NewJWTTokenizer(signKey, nil), 0, nil, logger)
	auth := service.NewAuthService(service.AuthConfig{}, registry, store.NewMemoryChallengeStore(), sessions, verifier, nil, logger)
	submissions := service.NewSubmissionService(service.SubmissionConfig{}, service.SubmissionDeps{
		Sessions:  sessions,
		Catalog:   catalog.Default(),
		Limiter:   store.NewMemoryRateLimiter(nil),
		Evaluator: evaluator.NewHeuristic(),
		History:   service.NewHistory(0, nil, logger),
		Logger:    logger,
	})

	return SetupRouter(RouterConfig{
		Auth:        auth,
		Registry:    registry,
		Submissions: submissions,
		Verifier:    verifier,
		Metrics:     NewMetrics(prometheus.NewRegistry()),
		Logger:      logger,
	})
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type testWallet struct {
	keyHex  string
	address string
}

func newTestWallet(t *testing.T) testWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return testWallet{
		keyHex:  hex.EncodeToString(crypto.FromECDSA(key)),
		address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}
}

func signIn(t *testing.T, router http.Handler, w testWallet, platformID, agentID string) string {
	t.Helper()

	resp := doJSON(t, router, http.MethodPost, "/api/auth/challenge", map[string]string{
		"wallet":     w.address,
		"platformId": platformID,
		"agentId":    agentID,
		"alias":      "Tester",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	challenge := decode(t, resp)
	assert.Equal(t, "Tester", challenge["alias"])
	assert.NotEmpty(t, challenge["expiresAt"])

	sig, err := wallet.SignMessage(w.keyHex, challenge["message"].(string))
	require.NoError(t, err)

	resp = doJSON(t, router, http.MethodPost, "/api/auth/verify", map[string]string{
		"wallet":     w.address,
		"platformId": platformID,
		"agentId":    agentID,
		"signature":  sig,
		"nonce":      challenge["nonce"].(string),
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	session := decode(t, resp)
	assert.Equal(t, w.address, session["wallet"])
	assert.Equal(t, platformID, session["platformId"])
	return session["token"].(string)
}

func TestRouter_FullFlow(t *testing.T) {
	router := newTestRouter(t)
	w := newTestWallet(t)

	token := signIn(t, router, w, "discord_alice", "agent_alice")

	resp := doJSON(t, router, http.MethodGet, "/api/auth/session", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "agent_alice", decode(t, resp)["agentId"])

	submit := map[string]string{
		"questId":      "proof-of-attempt",
		"sessionToken": token,
		"answer":       testAnswer,
	}
	resp = doJSON(t, router, http.MethodPost, "/api/submissions", submit)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	result := decode(t, resp)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, result["proofHash"])
	assert.Equal(t, "questproof:"+result["proofHash"].(string), result["memo"])
	assert.Equal(t, "skipped", result["ledger"].(map[string]interface{})["status"])
	assert.Equal(t, "Tester", result["displayName"])

	resp = doJSON(t, router, http.MethodPost, "/api/submissions", submit)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "60", resp.Header().Get("Retry-After"))
	assert.Contains(t, decode(t, resp)["message"], "please wait")

	resp = doJSON(t, router, http.MethodGet, "/api/history/"+w.address, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode(t, resp)["submissions"], 1)

	resp = doJSON(t, router, http.MethodGet, "/api/identity/"+strings.ToLower(w.address), nil)
	require.Equal(t, http.StatusOK, resp.Code)
	identity := decode(t, resp)
	assert.Equal(t, w.address, identity["wallet"])
	assert.EqualValues(t, 1, identity["totalVerifications"])

	resp = doJSON(t, router, http.MethodGet, "/api/identities", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode(t, resp)["identities"], 1)

	resp = doJSON(t, router, http.MethodPost, "/api/auth/logout", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", decode(t, resp)["status"])

	resp = doJSON(t, router, http.MethodGet, "/api/auth/session", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRouter_LogoutWithBearer(t *testing.T) {
	router := newTestRouter(t)
	token := signIn(t, router, newTestWallet(t), "github_bob", "agent_bob")

	resp := doJSON(t, router, http.MethodPost, "/api/auth/logout", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doJSON(t, router, http.MethodGet, "/api/auth/session", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// Nothing to log out is still ok
	resp = doJSON(t, router, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRouter_Errors(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name    string
		method  string
		path    string
		body    interface{}
		code    int
		message string
	}{
		{
			name:    "malformed json",
			method:  http.MethodPost,
			path:    "/api/auth/challenge",
			body:    "{not json",
			code:    http.StatusBadRequest,
			message: "invalid request body",
		},
		{
			name:    "invalid identifiers",
			method:  http.MethodPost,
			path:    "/api/auth/challenge",
			body:    map[string]string{"wallet": "0x123", "platformId": "discord_a1", "agentId": "agent_a"},
			code:    http.StatusBadRequest,
			message: "wallet must be a 0x-prefixed 20 byte hex address",
		},
		{
			name:    "verify without challenge",
			method:  http.MethodPost,
			path:    "/api/auth/verify",
			body:    map[string]string{"wallet": "0x00000000000000000000000000000000000000aa", "platformId": "discord_a1", "agentId": "agent_a", "signature": "0x00", "nonce": "n"},
			code:    http.StatusBadRequest,
			message: "no pending challenge for this wallet, request a new one",
		},
		{
			name:    "submission validation",
			method:  http.MethodPost,
			path:    "/api/submissions",
			body:    map[string]string{},
			code:    http.StatusBadRequest,
			message: "questId is required; sessionToken is required; answer is required",
		},
		{
			name:    "submission without session",
			method:  http.MethodPost,
			path:    "/api/submissions",
			body:    map[string]string{"questId": "proof-of-attempt", "sessionToken": strings.Repeat("t", 20), "answer": testAnswer},
			code:    http.StatusBadRequest,
			message: "session is invalid or has expired, please sign in again",
		},
		{
			name:    "identity with invalid wallet",
			method:  http.MethodGet,
			path:    "/api/identity/alice",
			code:    http.StatusBadRequest,
			message: "wallet must be a 0x-prefixed 20 byte hex address",
		},
		{
			name:    "unknown identity",
			method:  http.MethodGet,
			path:    "/api/identity/0x00000000000000000000000000000000000000aa",
			code:    http.StatusNotFound,
			message: "no identity is linked to this wallet",
		},
		{
			name:    "history with invalid wallet",
			method:  http.MethodGet,
			path:    "/api/history/0xnothex",
			code:    http.StatusBadRequest,
			message: "wallet must be a 0x-prefixed 20 byte hex address",
		},
		{
			name:    "session without token",
			method:  http.MethodGet,
			path:    "/api/auth/session",
			code:    http.StatusBadRequest,
			message: "missing bearer token",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, router, tc.method, tc.path, tc.body)
			require.Equal(t, tc.code, resp.Code, resp.Body.String())
			assert.Equal(t, tc.message, decode(t, resp)["message"])
		})
	}
}

func TestRouter_ShortAnswer(t *testing.T) {
	router := newTestRouter(t)
	token := signIn(t, router, newTestWallet(t), "tg_carol", "agent_carol")

	resp := doJSON(t, router, http.MethodPost, "/api/submissions", map[string]string{
		"questId":      "proof-of-attempt",
		"sessionToken": token,
		"answer":       "Hello world!",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "answer must be at least 160 characters for this quest", decode(t, resp)["message"])

	// The bearer header stands in for a missing body token
	resp = doJSON(t, router, http.MethodPost, "/api/submissions", map[string]string{
		"questId": "proof-of-attempt",
		"answer":  testAnswer,
	}, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestRouter_Quests(t *testing.T) {
	router := newTestRouter(t)

	resp := doJSON(t, router, http.MethodGet, "/api/quests", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	quests := decode(t, resp)["quests"].([]interface{})
	require.NotEmpty(t, quests)
	first := quests[0].(map[string]interface{})
	assert.Equal(t, "proof-of-attempt", first["id"])
	assert.NotContains(t, first, "keywords")
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t)

	doJSON(t, router, http.MethodGet, "/api/quests", nil)
	doJSON(t, router, http.MethodPost, "/api/auth/challenge", map[string]string{"wallet": "bad"})

	resp := doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, `questproof_http_requests_total{code="200",method="GET",route="/api/quests"} 1`)
	assert.Contains(t, body, `questproof_http_requests_total{code="400",method="POST",route="/api/auth/challenge"} 1`)
	assert.Contains(t, body, "questproof_http_request_duration_seconds")
}
