package omise

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// charge側のステータス語彙。DB側のステータスとは別物で、
// webhook照合の境界でだけ変換する。
const (
	ChargeStatusPending    = "pending"
	ChargeStatusSuccessful = "successful"
	ChargeStatusFailed     = "failed"
	ChargeStatusExpired    = "expired"
)

// APIError は決済プロバイダが返したエラー本文をそのまま保持する。
// サポート調査用に握りつぶさない。
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("omise: %s (%s)", e.Message, e.Code)
}

type ChargeRequest struct {
	Amount     int64  // minor units
	Currency   string
	CustomerID string
	CardID     string
	SourceID   string
	ReturnURI  string
}

type SourceRequest struct {
	Type     string
	Amount   int64
	Currency string
	Email    string
}

type ScannableCode struct {
	Image struct {
		DownloadURI string `json:"download_uri"`
	} `json:"image"`
}

type Source struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	ScannableCode *ScannableCode `json:"scannable_code,omitempty"`
}

type Charge struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency"`
	AuthorizeURI   string     `json:"authorize_uri,omitempty"`
	ReturnURI      string     `json:"return_uri,omitempty"`
	FailureCode    string     `json:"failure_code,omitempty"`
	FailureMessage string     `json:"failure_message,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	Source         *Source    `json:"source,omitempty"`
}

// ScannableImageURI はQR決済用の画像URL（あれば）。
func (c Charge) ScannableImageURI() string {
	if c.Source != nil && c.Source.ScannableCode != nil {
		return c.Source.ScannableCode.Image.DownloadURI
	}
	return ""
}

// Client は決済プロバイダのRESTクライアント。
// 起動時に1つ作ってusecaseへ注入する（グローバルにしない）。
type Client struct {
	baseURL   string
	secretKey string
	httpc     *http.Client
}

func NewClient(baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.omise.co"
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpc:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", req.Currency)
	if req.CustomerID != "" {
		form.Set("customer", req.CustomerID)
	}
	if req.CardID != "" {
		form.Set("card", req.CardID)
	}
	if req.SourceID != "" {
		form.Set("source", req.SourceID)
	}
	if req.ReturnURI != "" {
		form.Set("return_uri", req.ReturnURI)
	}

	var charge Charge
	if err := c.post(ctx, "/charges", form, &charge); err != nil {
		return Charge{}, err
	}
	return charge, nil
}

func (c *Client) CreateSource(ctx context.Context, req SourceRequest) (Source, error) {
	form := url.Values{}
	form.Set("type", req.Type)
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", req.Currency)
	if req.Email != "" {
		form.Set("email", req.Email)
	}

	var src Source
	if err := c.post(ctx, "/sources", form, &src); err != nil {
		return Source{}, err
	}
	return src, nil
}

func (c *Client) RetrieveCharge(ctx context.Context, chargeID string) (Charge, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/charges/"+url.PathEscape(chargeID), nil)
	if err != nil {
		return Charge{}, err
	}
	httpReq.SetBasicAuth(c.secretKey, "")

	var charge Charge
	if err := c.do(httpReq, &charge); err != nil {
		return Charge{}, err
	}
	return charge, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.secretKey, "")
	return c.do(httpReq, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}

	return json.Unmarshal(body, out)
}
