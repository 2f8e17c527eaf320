package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"family-news-service/internal/config"
	"family-news-service/internal/model"

	"github.com/shopspring/decimal"
)

// ErrGatewayUnavailable marks transport-level failures (network error, timeout)
// where no definite gateway response was received.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ErrAlreadyCancelled is returned by Cancel when the gateway reports the
// transaction was already reversed. Callers treat it as idempotent success.
var ErrAlreadyCancelled = errors.New("payment already cancelled")

// GatewayError is a definite rejection from the gateway, carrying its
// machine-readable code and message for operator diagnosis.
type GatewayError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("kakao pay error %d (http %d): %s", e.Code, e.HTTPStatus, e.Message)
}

// Gateway error codes that matter to orchestration.
const (
	codeAlreadyCancelled = -721 // invalid tid: transaction already reversed
	codeDuplicatedCancel = -780 // cancel request for an already-cancelled payment
	codeAlreadyApproved  = -702 // approve replay for a transaction already processed
)

// AlreadyProcessed reports whether this rejection means the approval was
// already committed by an earlier call, which is success from the caller's
// point of view rather than a failure.
func (e *GatewayError) AlreadyProcessed() bool {
	return e.Code == codeAlreadyApproved
}

type ReadyRequest struct {
	PartnerOrderID string
	PartnerUserID  string
	Amount         decimal.Decimal
	Recurring      bool
}

type ApproveRequest struct {
	TID            string
	PGToken        string
	PartnerOrderID string
	PartnerUserID  string
	Recurring      bool
}

type CancelRequest struct {
	TID    string
	Amount decimal.Decimal
	Reason string
}

type SubscriptionChargeRequest struct {
	SID            string // billing key from the initial subscription approval
	PartnerOrderID string
	PartnerUserID  string
	Amount         decimal.Decimal
}

type KakaoPayClient interface {
	Ready(ctx context.Context, req *ReadyRequest) (*model.KakaoReadyResult, error)
	Approve(ctx context.Context, req *ApproveRequest) (*model.KakaoApproveResult, []byte, error)
	Cancel(ctx context.Context, req *CancelRequest) (*model.KakaoCancelResult, error)
	ChargeSubscription(ctx context.Context, req *SubscriptionChargeRequest) (*model.KakaoApproveResult, []byte, error)
}

type kakaoPayClientImpl struct {
	httpClient      *http.Client
	apiHost         string
	secretKey       string
	cid             string
	subscriptionCID string
	approvalURL     string
	cancelURL       string
	failURL         string
}

func NewKakaoPayClient(cfg *config.KakaoPay) KakaoPayClient {
	return &kakaoPayClientImpl{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		apiHost:         cfg.APIHost,
		secretKey:       cfg.SecretKey,
		cid:             cfg.CID,
		subscriptionCID: cfg.SubscriptionCID,
		approvalURL:     cfg.ApprovalURL,
		cancelURL:       cfg.CancelURL,
		failURL:         cfg.FailURL,
	}
}

const itemName = "가족 소식 서비스 월 구독"

func (c *kakaoPayClientImpl) Ready(ctx context.Context, req *ReadyRequest) (*model.KakaoReadyResult, error) {
	payload := map[string]interface{}{
		"cid":              c.cidFor(req.Recurring),
		"partner_order_id": req.PartnerOrderID,
		"partner_user_id":  req.PartnerUserID,
		"item_name":        itemName,
		"quantity":         1,
		"total_amount":     req.Amount.IntPart(),
		"tax_free_amount":  0,
		"approval_url":     c.approvalURL,
		"cancel_url":       c.cancelURL,
		"fail_url":         c.failURL,
	}

	var result model.KakaoReadyResult
	if _, err := c.post(ctx, "/online/v1/payment/ready", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *kakaoPayClientImpl) Approve(ctx context.Context, req *ApproveRequest) (*model.KakaoApproveResult, []byte, error) {
	payload := map[string]interface{}{
		"cid":              c.cidFor(req.Recurring),
		"tid":              req.TID,
		"partner_order_id": req.PartnerOrderID,
		"partner_user_id":  req.PartnerUserID,
		"pg_token":         req.PGToken,
	}

	var result model.KakaoApproveResult
	raw, err := c.post(ctx, "/online/v1/payment/approve", payload, &result)
	if err != nil {
		return nil, nil, err
	}
	return &result, raw, nil
}

func (c *kakaoPayClientImpl) Cancel(ctx context.Context, req *CancelRequest) (*model.KakaoCancelResult, error) {
	payload := map[string]interface{}{
		"cid":                    c.cid,
		"tid":                    req.TID,
		"cancel_amount":          req.Amount.IntPart(),
		"cancel_tax_free_amount": 0,
		"cancel_reason":          req.Reason,
	}

	var result model.KakaoCancelResult
	if _, err := c.post(ctx, "/online/v1/payment/cancel", payload, &result); err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) && (gwErr.Code == codeAlreadyCancelled || gwErr.Code == codeDuplicatedCancel) {
			return nil, fmt.Errorf("%w: %v", ErrAlreadyCancelled, gwErr)
		}
		return nil, err
	}
	return &result, nil
}

func (c *kakaoPayClientImpl) ChargeSubscription(ctx context.Context, req *SubscriptionChargeRequest) (*model.KakaoApproveResult, []byte, error) {
	payload := map[string]interface{}{
		"cid":              c.subscriptionCID,
		"sid":              req.SID,
		"partner_order_id": req.PartnerOrderID,
		"partner_user_id":  req.PartnerUserID,
		"item_name":        itemName,
		"quantity":         1,
		"total_amount":     req.Amount.IntPart(),
		"tax_free_amount":  0,
	}

	var result model.KakaoApproveResult
	raw, err := c.post(ctx, "/online/v1/payment/subscription", payload, &result)
	if err != nil {
		return nil, nil, err
	}
	return &result, raw, nil
}

func (c *kakaoPayClientImpl) cidFor(recurring bool) string {
	if recurring {
		return c.subscriptionCID
	}
	return c.cid
}

func (c *kakaoPayClientImpl) post(ctx context.Context, path string, payload map[string]interface{}, out interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiHost+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "SECRET_KEY "+c.secretKey)
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var gwErr model.KakaoErrorResult
		_ = json.Unmarshal(raw, &gwErr)
		msg := gwErr.Message
		if msg == "" {
			msg = gwErr.Msg
		}
		if msg == "" {
			msg = string(raw)
		}
		return nil, &GatewayError{
			HTTPStatus: resp.StatusCode,
			Code:       gwErr.Code,
			Message:    msg,
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	return raw, nil
}
