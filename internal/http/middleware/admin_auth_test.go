package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveAdmin(t *testing.T, secret, authorization string) (*httptest.ResponseRecorder, *jwt.RegisteredClaims) {
	t.Helper()
	var seen *jwt.RegisteredClaims
	h := AdminJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := AdminClaimsFromContext(r.Context()); ok {
			seen = &claims
		}
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/admin/accounts/acc-1", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestAdminJWT(t *testing.T) {
	valid, err := IssueAdminToken("secret", "staff@atma.app", 5*time.Minute)
	require.NoError(t, err)
	wrongKey, err := IssueAdminToken("other", "staff@atma.app", 5*time.Minute)
	require.NoError(t, err)
	expired, err := IssueAdminToken("secret", "staff@atma.app", -time.Minute)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "staff"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{name: "auth disabled", secret: "", header: "Bearer " + valid, want: http.StatusUnauthorized},
		{name: "missing header", secret: "secret", want: http.StatusUnauthorized},
		{name: "wrong scheme", secret: "secret", header: "Basic " + valid, want: http.StatusUnauthorized},
		{name: "wrong key", secret: "secret", header: "Bearer " + wrongKey, want: http.StatusUnauthorized},
		{name: "expired", secret: "secret", header: "Bearer " + expired, want: http.StatusUnauthorized},
		{name: "no expiry", secret: "secret", header: "Bearer " + noExpiry, want: http.StatusUnauthorized},
		{name: "valid", secret: "secret", header: "Bearer " + valid, want: http.StatusOK},
		{name: "lowercase scheme", secret: "secret", header: "bearer " + valid, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, claims := serveAdmin(t, tt.secret, tt.header)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				require.NotNil(t, claims)
				assert.Equal(t, "staff@atma.app", claims.Subject)
				assert.Equal(t, AdminIssuer, claims.Issuer)
			} else {
				assert.Nil(t, claims)
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestAdminJWT_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "staff",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	rec, _ := serveAdmin(t, "secret", "Bearer "+raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
