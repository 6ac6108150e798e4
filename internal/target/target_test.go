package target

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestMintAndParseToken(t *testing.T) {
	raw, err := MintToken(secret, 42, "alice", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(secret, raw)
	require.NoError(t, err)
	assert.Equal(t, 42, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	_, err = ParseToken("other", raw)
	assert.ErrorIs(t, err, ErrToken)

	expired, err := MintToken(secret, 1, "bob", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(secret, expired)
	assert.ErrorIs(t, err, ErrToken)

	_, err = MintToken("", 1, "bob", time.Hour)
	assert.Error(t, err)
}

func TestParseTokenRejectsNonHMAC(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(secret, raw)
	assert.ErrorIs(t, err, ErrToken)
}

func TestInfoRequiresBearer(t *testing.T) {
	srv := httptest.NewServer(NewRouter(ServerConfig{Secret: secret, Scale: 0.001}))
	defer srv.Close()

	good, err := MintToken(secret, 7, "load", time.Hour)
	require.NoError(t, err)

	tests := map[string]struct {
		header string
		want   int
	}{
		"valid":        {header: "Bearer " + good, want: http.StatusOK},
		"lower scheme": {header: "bearer " + good, want: http.StatusOK},
		"missing":      {header: "", want: http.StatusUnauthorized},
		"placeholder":  {header: "Bearer <your_jwt_token>", want: http.StatusUnauthorized},
		"no scheme":    {header: good, want: http.StatusUnauthorized},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/info", nil)
			require.NoError(t, err)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)

			if tc.want == http.StatusOK {
				var info InfoResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
				assert.Equal(t, 993, info.Coins)
				assert.NotEmpty(t, info.Inventory)
			}
		})
	}
}

func TestDemoEndpoints(t *testing.T) {
	srv := httptest.NewServer(NewRouter(ServerConfig{Secret: secret, Scale: 0.001}))
	defer srv.Close()

	for _, path := range []string{"/fast", "/slow", "/spike"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		resp, err := http.Get(srv.URL + "/error")
		require.NoError(t, err)
		resp.Body.Close()
		seen[resp.StatusCode] = true
	}
	assert.True(t, seen[http.StatusOK])
	assert.True(t, seen[http.StatusInternalServerError] || seen[http.StatusTooManyRequests])
}
