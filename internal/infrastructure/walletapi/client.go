// Package walletapi is the HTTP client for a remotely deployed wallet
// ledger. It satisfies the same port as the in-process ledger, so the
// orchestrator does not care which one it is wired to.
package walletapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payflowhq/payflow/internal/application"
	"github.com/payflowhq/payflow/internal/config"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.WalletConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

type reserveRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	PaymentID uuid.UUID       `json:"paymentId"`
}

type reserveResponse struct {
	WalletTransactionID uuid.UUID       `json:"walletTransactionId"`
	WalletID            uuid.UUID       `json:"walletId"`
	AmountReserved      decimal.Decimal `json:"amountReserved"`
	RemainingBalance    decimal.Decimal `json:"remainingBalance"`
}

type confirmRequest struct {
	WalletTransactionID   uuid.UUID `json:"walletTransactionId"`
	ProviderTransactionID string    `json:"providerTransactionId"`
	Provider              string    `json:"provider"`
}

type cancelRequest struct {
	WalletTransactionID uuid.UUID `json:"walletTransactionId"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// errorEnvelope mirrors the standard error body every service renders.
type errorEnvelope struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Code      int    `json:"code"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
}

func (c *Client) ReserveFunds(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, currency string, paymentID uuid.UUID) (*application.ReservationResult, error) {
	url := fmt.Sprintf("%s/api/v1/wallet/%s/reserve", c.baseURL, walletID)
	resp, err := sendRequest[reserveRequest, reserveResponse](c, ctx, url, &reserveRequest{
		Amount:    amount,
		Currency:  currency,
		PaymentID: paymentID,
	})
	if err != nil {
		return nil, err
	}
	return &application.ReservationResult{
		WalletTransactionID: resp.WalletTransactionID,
		WalletID:            resp.WalletID,
		AmountReserved:      resp.AmountReserved,
		RemainingBalance:    resp.RemainingBalance,
	}, nil
}

func (c *Client) ConfirmReservation(ctx context.Context, walletID, walletTransactionID uuid.UUID, providerTransactionID, providerName string) error {
	url := fmt.Sprintf("%s/api/v1/wallet/%s/confirm", c.baseURL, walletID)
	_, err := sendRequest[confirmRequest, messageResponse](c, ctx, url, &confirmRequest{
		WalletTransactionID:   walletTransactionID,
		ProviderTransactionID: providerTransactionID,
		Provider:              providerName,
	})
	return err
}

func (c *Client) CancelReservation(ctx context.Context, walletID, walletTransactionID uuid.UUID) error {
	url := fmt.Sprintf("%s/api/v1/wallet/%s/cancel", c.baseURL, walletID)
	_, err := sendRequest[cancelRequest, messageResponse](c, ctx, url, &cancelRequest{
		WalletTransactionID: walletTransactionID,
	})
	return err
}

func sendRequest[Req any, Resp any](c *Client, ctx context.Context, url string, reqBody *Req) (*Resp, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, application.NewDownstreamError("wallet service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		var envelope errorEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil || envelope.Message == "" {
			return nil, application.FromEnvelope(resp.StatusCode, 0, string(body))
		}
		return nil, application.FromEnvelope(resp.StatusCode, envelope.Code, envelope.Message)
	}

	var out Resp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}
	return &out, nil
}
