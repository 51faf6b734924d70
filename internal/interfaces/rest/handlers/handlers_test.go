package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflowhq/payflow/internal/application/services"
	"github.com/payflowhq/payflow/internal/interfaces/rest"
	"github.com/payflowhq/payflow/internal/interfaces/rest/handlers"
	"github.com/payflowhq/payflow/internal/provider"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer wires the full HTTP stack against the in-memory fakes with
// a deterministic provider.
func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	payments := services.NewMockPaymentRepository()
	wallets := services.NewMockWalletRepository()
	transactions := services.NewMockWalletTransactionRepository(wallets)
	coordinator := services.NewMockCoordinator(payments, wallets, transactions)

	walletService := services.NewWalletService(coordinator, wallets, transactions, discardLogger())
	charger := provider.NewRetryingProvider(
		provider.NewMockProvider(provider.MockConfig{SuccessRate: 1.0}),
		time.Millisecond, 3)
	paymentService := services.NewPaymentService(
		coordinator, payments, services.NewLocalLedger(walletService),
		charger, services.NewTokenVault(), discardLogger())

	h := handlers.NewHandlers(paymentService, walletService, discardLogger())
	return rest.NewRouter(h, prometheus.NewRegistry(), 5*time.Second, discardLogger())
}

func doJSON(t *testing.T, handler http.Handler, method, path string, userID *uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != nil {
		req.Header.Set("X-User-Id", userID.String())
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

// createFundedWallet provisions a wallet over the API and tops it up.
func createFundedWallet(t *testing.T, handler http.Handler, userID uuid.UUID, amount string) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/wallet", &userID, map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	walletID := decodeBody(t, rec)["walletId"].(string)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/wallet/"+walletID+"/topup", &userID,
		map[string]any{"amount": amount, "currency": "SGD"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return walletID
}

func TestRouter_RejectsRequestsWithoutIdentity(t *testing.T) {
	handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/payment", nil,
		map[string]any{"amount": "10.00", "walletId": uuid.NewString(), "clientRequestId": "abc"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1001), body["code"])
	assert.Equal(t, "/api/v1/payment", body["path"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestRouter_HealthAndMetricsArePublic(t *testing.T) {
	handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/actuator/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInitiatePayment_CreatedThenReplayed(t *testing.T) {
	handler := newTestServer(t)
	userID := uuid.New()
	walletID := createFundedWallet(t, handler, userID, "100.00")

	body := map[string]any{
		"amount":          "25.00",
		"currency":        "SGD",
		"walletId":        walletID,
		"clientRequestId": "dup",
	}

	first := doJSON(t, handler, http.MethodPost, "/api/v1/payment", &userID, body)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	created := decodeBody(t, first)
	paymentID := created["paymentId"].(string)
	assert.Equal(t, true, created["isNew"])

	second := doJSON(t, handler, http.MethodPost, "/api/v1/payment", &userID, body)
	assert.Equal(t, http.StatusOK, second.Code, "replay is 200, not 201")
	replayed := decodeBody(t, second)
	assert.Equal(t, paymentID, replayed["paymentId"].(string))
	assert.Equal(t, false, replayed["isNew"])
}

func TestInitiatePayment_ProviderChoice(t *testing.T) {
	handler := newTestServer(t)
	userID := uuid.New()
	walletID := createFundedWallet(t, handler, userID, "100.00")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/payment", &userID, map[string]any{
		"amount":          "25.00",
		"currency":        "SGD",
		"walletId":        walletID,
		"clientRequestId": "named-provider",
		"provider":        "mockpay",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/payment", &userID, map[string]any{
		"amount":          "25.00",
		"currency":        "SGD",
		"walletId":        walletID,
		"clientRequestId": "unknown-provider",
		"provider":        "acmepay",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, float64(3001), decodeBody(t, rec)["code"])
}

func TestInitiatePayment_ValidationFailure(t *testing.T) {
	handler := newTestServer(t)
	userID := uuid.New()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/payment", &userID,
		map[string]any{"amount": "25.00", "walletId": uuid.NewString()})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, float64(3001), decodeBody(t, rec)["code"])
}

func TestProcessPayment_HappyPathOverHTTP(t *testing.T) {
	handler := newTestServer(t)
	userID := uuid.New()
	walletID := createFundedWallet(t, handler, userID, "100.00")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/payment", &userID, map[string]any{
		"amount":          "25.00",
		"currency":        "SGD",
		"walletId":        walletID,
		"clientRequestId": "abc",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paymentID := decodeBody(t, rec)["paymentId"].(string)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/payment/"+paymentID+"/process", &userID,
		map[string]any{"paymentMethodToken": "tok_visa_success"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeBody(t, rec)
	assert.Equal(t, "SUCCESS", result["status"])

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/wallet/"+walletID, &userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	wallet := decodeBody(t, rec)
	assert.Equal(t, "75", wallet["balance"])
	assert.Equal(t, "0", wallet["reservedBalance"])
}

func TestProcessPayment_DeclineIsA200WithFailedStatus(t *testing.T) {
	handler := newTestServer(t)
	userID := uuid.New()
	walletID := createFundedWallet(t, handler, userID, "100.00")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/payment", &userID, map[string]any{
		"amount":          "25.00",
		"currency":        "SGD",
		"walletId":        walletID,
		"clientRequestId": "decline",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	paymentID := decodeBody(t, rec)["paymentId"].(string)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/payment/"+paymentID+"/process", &userID,
		map[string]any{"paymentMethodToken": "tok_card_declined"})
	require.Equal(t, http.StatusOK, rec.Code, "declines are reported in the body, not as HTTP errors")
	assert.Equal(t, "FAILED", decodeBody(t, rec)["status"])

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/wallet/"+walletID, &userID, nil)
	wallet := decodeBody(t, rec)
	assert.Equal(t, "100", wallet["balance"], "declined charge must release the hold")
}

func TestGetPayment_ForeignPaymentIsDenied(t *testing.T) {
	handler := newTestServer(t)
	owner := uuid.New()
	walletID := createFundedWallet(t, handler, owner, "50.00")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/payment", &owner, map[string]any{
		"amount":          "10.00",
		"currency":        "SGD",
		"walletId":        walletID,
		"clientRequestId": "mine",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	paymentID := decodeBody(t, rec)["paymentId"].(string)

	stranger := uuid.New()
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/payment/"+paymentID, &stranger, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, float64(5001), decodeBody(t, rec)["code"])
}

func TestReservationProtocol_WorksWithoutIdentityHeaders(t *testing.T) {
	handler := newTestServer(t)
	userID := uuid.New()
	walletID := createFundedWallet(t, handler, userID, "100.00")
	paymentID := uuid.New()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/wallet/"+walletID+"/reserve", nil,
		map[string]any{"amount": "40.00", "currency": "SGD", "paymentId": paymentID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reservation := decodeBody(t, rec)
	walletTxID := reservation["walletTransactionId"].(string)
	assert.Equal(t, "60", reservation["remainingBalance"])

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/wallet/"+walletID+"/confirm", nil,
		map[string]any{"walletTransactionId": walletTxID, "providerTransactionId": "ptx_1", "provider": "mockpay"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/wallet/"+walletID, &userID, nil)
	wallet := decodeBody(t, rec)
	assert.Equal(t, "60", wallet["balance"])
}

func TestHistory_RejectsBadPageParameter(t *testing.T) {
	handler := newTestServer(t)
	userID := uuid.New()
	walletID := createFundedWallet(t, handler, userID, "10.00")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/wallet/"+walletID+"/transactions?page=0", &userID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/wallet/"+walletID+"/transactions?page=zzz", &userID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetWallet_UnknownWalletIs404(t *testing.T) {
	handler := newTestServer(t)
	userID := uuid.New()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/wallet/"+uuid.NewString(), &userID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, float64(2001), decodeBody(t, rec)["code"])
}
