package model

// Wire types for the Kakao Pay online payment API.

type KakaoReadyResult struct {
	TID                   string `json:"tid"`
	NextRedirectPCURL     string `json:"next_redirect_pc_url"`
	NextRedirectMobileURL string `json:"next_redirect_mobile_url"`
	NextRedirectAppURL    string `json:"next_redirect_app_url"`
	CreatedAt             string `json:"created_at"`
}

type KakaoAmount struct {
	Total   int `json:"total"`
	TaxFree int `json:"tax_free"`
	VAT     int `json:"vat"`
}

type KakaoApproveResult struct {
	AID               string      `json:"aid"`
	TID               string      `json:"tid"`
	CID               string      `json:"cid"`
	SID               string      `json:"sid"` // billing key, present only on subscription approvals
	PartnerOrderID    string      `json:"partner_order_id"`
	PartnerUserID     string      `json:"partner_user_id"`
	PaymentMethodType string      `json:"payment_method_type"`
	Amount            KakaoAmount `json:"amount"`
	ItemName          string      `json:"item_name"`
	ApprovedAt        string      `json:"approved_at"`
}

type KakaoCancelResult struct {
	AID            string      `json:"aid"`
	TID            string      `json:"tid"`
	CID            string      `json:"cid"`
	Status         string      `json:"status"`
	CanceledAmount KakaoAmount `json:"canceled_amount"`
	CanceledAt     string      `json:"canceled_at"`
}

type KakaoErrorResult struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
	// Older gateway responses carry the message under "msg".
	Msg string `json:"msg"`
}
