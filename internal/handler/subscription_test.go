package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"family-news-service/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{service.ErrSubscriptionNotFound, http.StatusNotFound},
		{service.ErrNoGroupMembership, http.StatusNotFound},
		{service.ErrNotOwner, http.StatusForbidden},
		{service.ErrNotGroupLeader, http.StatusForbidden},
		{service.ErrSubscriptionActive, http.StatusBadRequest},
		{service.ErrPaymentContextNotFound, http.StatusBadRequest},
		{service.ErrDuplicateSubscription, http.StatusConflict},
		{service.ErrApprovalOutcomeUnknown, http.StatusBadGateway},
		{fmt.Errorf("ready payment: %w", service.ErrNotGroupLeader), http.StatusForbidden},
	}
	for _, tt := range tests {
		var httpErr *echo.HTTPError
		require.ErrorAs(t, httpError(tt.err), &httpErr, "error %v", tt.err)
		assert.Equal(t, tt.code, httpErr.Code, "error %v", tt.err)
	}
}

func TestHTTPErrorPassesThroughUnknownErrors(t *testing.T) {
	cause := errors.New("db is on fire")
	assert.Equal(t, cause, httpError(cause))
}
