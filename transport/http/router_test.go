package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/bazaar/adapters/hasher"
	"github.com/layer-3/bazaar/adapters/nonce"
	"github.com/layer-3/bazaar/adapters/signature"
	"github.com/layer-3/bazaar/adapters/store"
	"github.com/layer-3/bazaar/adapters/tokenizer"
	"github.com/layer-3/bazaar/core"
	"github.com/layer-3/bazaar/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, accountStore *store.MemoryStore) *gin.Engine {
	t.Helper()
	svc := service.NewAuthService(
		accountStore,
		store.NewMemoryRevocations(),
		tokenizer.NewJWTTokenizer([]byte("test-secret"), "bazaar-test", time.Hour),
		signature.NewEthVerifier(),
		hasher.NewBcryptHasher(bcrypt.MinCost),
		nonce.NewRandomGenerator(),
	)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("bazaar_auth_attempts_total 0\n"))
	})
	return SetupRouter(svc, []string{"http://localhost:3000"}, metrics)
}

func do(t *testing.T, r *gin.Engine, method, path string, body any, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := map[string]any{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestPasswordFlowOverHTTP(t *testing.T) {
	r := newRouter(t, store.NewMemoryStore())

	w, body := do(t, r, http.MethodPost, "/api/auth/signup", gin.H{
		"username": "bea", "email": "b@x.com", "password": "secret1", "role": "seller",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "seller", body["role"])
	assert.NotEmpty(t, body["userId"])

	w, _ = do(t, r, http.MethodPost, "/api/auth/signup", gin.H{
		"username": "bea", "email": "b@x.com", "password": "secret1", "role": "seller",
	}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body = do(t, r, http.MethodPost, "/api/auth/login", gin.H{
		"email": "b@x.com", "password": "secret1", "role": "seller",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, "seller", body["role"])

	w, _ = do(t, r, http.MethodPost, "/api/auth/login", gin.H{
		"email": "b@x.com", "password": "secret1", "role": "buyer",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = do(t, r, http.MethodGet, "/api/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "seller", body["role"])
	assert.Equal(t, "bea", body["username"])
	assert.Equal(t, "b@x.com", body["email"])

	w, _ = do(t, r, http.MethodGet, "/api/authorize?role=seller", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, r, http.MethodGet, "/api/authorize?role=buyer", nil, token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/auth/logout", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, r, http.MethodGet, "/api/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWalletFlowOverHTTP(t *testing.T) {
	mem := store.NewMemoryStore()
	r := newRouter(t, mem)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	sign := func(msg string) string {
		sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
		require.NoError(t, err)
		sig[crypto.RecoveryIDOffset] += 27
		return hexutil.Encode(sig)
	}

	w, body := do(t, r, http.MethodPost, "/api/auth/signup-wallet", gin.H{
		"address": address, "signature": sign("x"), "username": "alice", "email": "alice@example.com", "role": "buyer",
	}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No nonce found for this address", body["error"])

	w, body = do(t, r, http.MethodGet, "/api/auth/nonce/"+address, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	n, _ := body["nonce"].(string)
	require.Len(t, n, 64)

	w, _ = do(t, r, http.MethodPost, "/api/auth/signup-wallet", gin.H{
		"address": address, "signature": sign("not the nonce"), "username": "alice", "email": "alice@example.com", "role": "buyer",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = do(t, r, http.MethodPost, "/api/auth/signup-wallet", gin.H{
		"address": address, "signature": sign(n), "username": "alice", "email": "alice@example.com", "role": "buyer",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, body["token"])

	acc, err := mem.FindByWalletAddress(context.Background(), address)
	require.NoError(t, err)
	assert.Equal(t, core.AccountRegistered, acc.State)

	w, body = do(t, r, http.MethodGet, "/api/auth/nonce/"+address, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	n, _ = body["nonce"].(string)
	w, _ = do(t, r, http.MethodPost, "/api/auth/signup-wallet", gin.H{
		"address": address, "signature": sign(n), "username": "alice", "email": "alice@example.com", "role": "buyer",
	}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body = do(t, r, http.MethodGet, "/api/auth/nonce/"+address, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	n, _ = body["nonce"].(string)

	w, body = do(t, r, http.MethodPost, "/api/auth/verify-wallet", gin.H{
		"address": address, "signature": sign(n), "email": "alice@example.com", "role": "seller",
	}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No account found for this wallet address and email", body["error"])

	w, body = do(t, r, http.MethodPost, "/api/auth/verify-wallet", gin.H{
		"address": address, "signature": sign(n), "email": "alice@example.com", "role": "buyer",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, acc.ID, body["userId"])
}

func TestBadRequests(t *testing.T) {
	r := newRouter(t, store.NewMemoryStore())

	w, _ := do(t, r, http.MethodGet, "/api/auth/nonce/0x123", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w, body := do(t, r, http.MethodPost, "/api/auth/signup", gin.H{"username": "a", "email": "a@x.com", "password": "123"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["details"], "password must be at least 6")

	w, body = do(t, r, http.MethodPost, "/api/auth/signup", gin.H{"username": "a", "email": "a@x.com", "password": strings.Repeat("é", 40)}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["details"], "at most 72 bytes")

	w, _ = do(t, r, http.MethodGet, "/api/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = do(t, r, http.MethodGet, "/api/me", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORSAndOperationalRoutes(t *testing.T) {
	r := newRouter(t, store.NewMemoryStore())

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w, _ = do(t, r, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bazaar_auth_attempts_total")
}
