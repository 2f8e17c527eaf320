package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"family-news-service/internal/dto"
	"family-news-service/internal/middleware"
	"family-news-service/internal/service"

	"github.com/labstack/echo/v4"
)

type SubscriptionHandler struct {
	payments      service.PaymentService
	subscriptions service.SubscriptionService
	frontendURL   string
}

func NewSubscriptionHandler(payments service.PaymentService, subscriptions service.SubscriptionService, frontendURL string) *SubscriptionHandler {
	return &SubscriptionHandler{
		payments:      payments,
		subscriptions: subscriptions,
		frontendURL:   frontendURL,
	}
}

func (h *SubscriptionHandler) ReadyPayment(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PaymentReadyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.payments.Ready(ctx, middleware.UserID(c), req.Recurring)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// ApprovePayment is the gateway's redirect target after the user authenticates
// the charge. It always ends in a redirect to the frontend, success or not.
func (h *SubscriptionHandler) ApprovePayment(c echo.Context) error {
	ctx := c.Request().Context()

	key := c.QueryParam("correlation_id")
	if key == "" {
		key = c.QueryParam("tid")
	}
	pgToken := c.QueryParam("pg_token")
	if key == "" || pgToken == "" {
		return h.redirectFail(c, "missing correlation_id or pg_token")
	}

	result, err := h.payments.Approve(ctx, key, pgToken)
	if err != nil {
		return h.redirectFail(c, err.Error())
	}

	return c.Redirect(http.StatusFound, fmt.Sprintf(
		"%s/subscription/success?subscription_id=%s", h.frontendURL, result.SubscriptionID))
}

// CancelPayment handles the user backing out at the gateway's payment page.
// Nothing was approved; drop the pending context and send them home.
func (h *SubscriptionHandler) CancelPayment(c echo.Context) error {
	if key := c.QueryParam("correlation_id"); key != "" {
		h.payments.AbandonPending(c.Request().Context(), key)
	}
	return c.Redirect(http.StatusFound, h.frontendURL+"/subscription/cancel")
}

func (h *SubscriptionHandler) FailPayment(c echo.Context) error {
	if key := c.QueryParam("correlation_id"); key != "" {
		h.payments.AbandonPending(c.Request().Context(), key)
	}
	return c.Redirect(http.StatusFound, h.frontendURL+"/subscription/fail")
}

func (h *SubscriptionHandler) MySubscriptions(c echo.Context) error {
	ctx := c.Request().Context()

	includeAll := c.QueryParam("status") == "all"
	result, err := h.subscriptions.MySubscriptions(ctx, middleware.UserID(c), includeAll)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *SubscriptionHandler) GetSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.subscriptions.GetSubscription(ctx, middleware.UserID(c), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *SubscriptionHandler) ListPayments(c echo.Context) error {
	ctx := c.Request().Context()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	result, err := h.subscriptions.ListPayments(ctx, middleware.UserID(c), c.Param("id"), limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *SubscriptionHandler) CancelSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.SubscriptionCancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.payments.CancelSubscription(ctx, middleware.UserID(c), c.Param("id"), req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *SubscriptionHandler) redirectFail(c echo.Context, reason string) error {
	return c.Redirect(http.StatusFound, fmt.Sprintf(
		"%s/subscription/fail?error=%s", h.frontendURL, url.QueryEscape(reason)))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, service.ErrSubscriptionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotOwner),
		errors.Is(err, service.ErrNotGroupLeader):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNoGroupMembership):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSubscriptionActive),
		errors.Is(err, service.ErrPaymentContextNotFound):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuplicateSubscription):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrApprovalOutcomeUnknown):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return err
	}
}
