package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func runAuth(t *testing.T, authHeader string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotUser string
	handler := Auth(testSecret)(func(c echo.Context) error {
		gotUser = UserID(c)
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, gotUser
}

func TestAuthAcceptsValidToken(t *testing.T) {
	rec, user := runAuth(t, "Bearer "+signToken(t, testSecret, "user-42"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", user)
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	rec, _ := runAuth(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	rec, _ := runAuth(t, "Bearer "+signToken(t, "other-secret", "user-42"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsTokenWithoutSubject(t *testing.T) {
	rec, _ := runAuth(t, "Bearer "+signToken(t, testSecret, ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
