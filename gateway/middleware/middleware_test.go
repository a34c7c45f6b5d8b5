package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"playmint/crypto"
	"playmint/gateway/attest"
)

func TestSignedRecoversCaller(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	body := []byte(`{"beneficiaries":[1]}`)

	var gotCaller crypto.Address
	var gotBody []byte
	var gotToken string
	handler := NewSignatureVerifier(0, nil).Signed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCaller, _ = CallerFrom(r.Context())
		gotBody, _ = io.ReadAll(r.Body)
		gotToken = attest.TokenFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/submissions", bytes.NewReader(body))
	require.NoError(t, SignRequest(req, key, body, time.Now()))
	req.Header.Set(AttestationHeader, "token-123")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, key.PubKey().Address(), gotCaller)
	require.Equal(t, body, gotBody)
	require.Equal(t, "token-123", gotToken)
}

func TestSignedRejectsTamperingAndStaleTimestamps(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	verifier := NewSignatureVerifier(time.Minute, nil)
	var gotCaller crypto.Address
	handler := verifier.Signed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCaller, _ = CallerFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/checkins", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	stale := httptest.NewRequest(http.MethodPost, "/v1/checkins", nil)
	require.NoError(t, SignRequest(stale, key, nil, time.Now().Add(-time.Hour)))
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, stale)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	signed := []byte(`{"a":1}`)
	tampered := httptest.NewRequest(http.MethodPost, "/v1/checkins", bytes.NewReader([]byte(`{"a":2}`)))
	require.NoError(t, SignRequest(tampered, key, signed, time.Now()))
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, tampered)
	require.NotEqual(t, key.PubKey().Address(), gotCaller, "tampered body must not recover the signer")
}

func TestRequestIDAssignsAndPropagates(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/epoch", nil))
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	require.Equal(t, seen, res.Header().Get(RequestIDHeader))

	fixed := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/v1/epoch", nil)
	req.Header.Set(RequestIDHeader, fixed)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, fixed, seen)
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://play.example"}})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/epoch", nil)
	req.Header.Set("Origin", "https://play.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.Equal(t, "https://play.example", res.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/epoch", nil)
	req.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Empty(t, res.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthenticatorScopes(t *testing.T) {
	secret := "operator-secret"
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: secret, Issuer: "playmint"}, nil)
	handler := auth.Middleware("exports:read")(okHandler())

	sign := func(scope string, exp time.Time) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"iss":   "playmint",
			"scope": scope,
			"exp":   exp.Unix(),
		})
		signed, err := token.SignedString([]byte(secret))
		require.NoError(t, err)
		return signed
	}

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + sign("exports:read", time.Now().Add(-time.Hour)), status: http.StatusUnauthorized},
		{name: "wrong scope", header: "Bearer " + sign("policy:write", time.Now().Add(time.Hour)), status: http.StatusForbidden},
		{name: "ok", header: "Bearer " + sign("exports:read other", time.Now().Add(time.Hour)), status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/exports/mints", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, res.Code)
			}
		})
	}
}
