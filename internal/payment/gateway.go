package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// VerifyStatus is the gateway's view of a collection attempt.
type VerifyStatus string

const (
	VerifySuccess VerifyStatus = "success"
	VerifyFailed  VerifyStatus = "failed"
	VerifyPending VerifyStatus = "pending"
)

type CollectionRequest struct {
	Reference   string `json:"reference"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	PayerRef    string `json:"payer_ref"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type CollectionResponse struct {
	PaymentURL string `json:"payment_url"`
	Reference  string `json:"reference"`
}

type VerifyResult struct {
	Status      VerifyStatus `json:"status"`
	AmountMinor int64        `json:"amount_minor"`
	Currency    string       `json:"currency"`
	GatewayRef  string       `json:"gateway_ref"`
	Reason      string       `json:"reason,omitempty"`
}

// Gateway abstracts the external payment provider. The orchestration layer
// only ever sees these three calls; provider wire details stay behind it.
type Gateway interface {
	// InitiateCollection asks the gateway to collect a payment and returns
	// the URL the payer must visit to complete it.
	InitiateCollection(ctx context.Context, req CollectionRequest) (*CollectionResponse, error)

	// VerifyPayment resolves a collection reference to its final state.
	VerifyPayment(ctx context.Context, reference string) (*VerifyResult, error)

	// IssueRefund sends amountMinor back against a completed collection.
	IssueRefund(ctx context.Context, gatewayRef string, amountMinor int64) error
}

// HTTPGateway is a thin JSON client for the configured payment provider.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPGateway creates a gateway client against the given base URL.
func NewHTTPGateway(baseURL, apiKey string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *HTTPGateway) InitiateCollection(ctx context.Context, req CollectionRequest) (*CollectionResponse, error) {
	var resp CollectionResponse
	if err := g.post(ctx, "/collections", req, &resp); err != nil {
		return nil, fmt.Errorf("initiate collection failed: %w", err)
	}
	return &resp, nil
}

func (g *HTTPGateway) VerifyPayment(ctx context.Context, reference string) (*VerifyResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/collections/"+reference, nil)
	if err != nil {
		return nil, fmt.Errorf("build verify request failed: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("verify payment failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verify payment: gateway returned %d", httpResp.StatusCode)
	}

	var result VerifyResult
	if err := json.NewDecoder(httpResp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode verify response failed: %w", err)
	}
	return &result, nil
}

func (g *HTTPGateway) IssueRefund(ctx context.Context, gatewayRef string, amountMinor int64) error {
	body := struct {
		GatewayRef  string `json:"gateway_ref"`
		AmountMinor int64  `json:"amount_minor"`
	}{GatewayRef: gatewayRef, AmountMinor: amountMinor}

	var resp struct {
		Status string `json:"status"`
	}
	if err := g.post(ctx, "/refunds", body, &resp); err != nil {
		return fmt.Errorf("issue refund failed: %w", err)
	}
	if resp.Status != "ok" && resp.Status != "success" {
		return fmt.Errorf("issue refund: gateway reported %q", resp.Status)
	}
	return nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, body, dest any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return fmt.Errorf("gateway returned %d", httpResp.StatusCode)
	}

	if dest != nil {
		if err := json.NewDecoder(httpResp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decode response failed: %w", err)
		}
	}
	return nil
}
