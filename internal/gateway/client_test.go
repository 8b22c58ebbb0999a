package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestClient(serverURL string) *Client {
	return NewClient(&Config{
		BaseURL:   serverURL,
		SecretKey: "sk_test_abc",
		Timeout:   2 * time.Second,
	}, testLogger())
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestClient_AuthorizeCharge(t *testing.T) {
	var gotReq *http.Request
	var gotForm map[string][]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm

		writeJSON(t, w, http.StatusOK, map[string]any{
			"id":     "pi_123",
			"status": "requires_capture",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	charge, err := client.AuthorizeCharge(context.Background(), ChargeRequest{
		AmountCents:    5000,
		Currency:       "usd",
		PayerAccount:   "cus_9",
		PayeeAccount:   "acct_7",
		IdempotencyKey: "authorize-job-1",
		Metadata:       map[string]string{"job_id": "job-1"},
	})

	require.NoError(t, err)
	assert.Equal(t, "pi_123", charge.ChargeID)
	assert.Equal(t, "requires_capture", charge.Status)

	assert.Equal(t, http.MethodPost, gotReq.Method)
	assert.Equal(t, "/v1/payment_intents", gotReq.URL.Path)
	assert.Equal(t, "Bearer sk_test_abc", gotReq.Header.Get("Authorization"))
	assert.Equal(t, "authorize-job-1", gotReq.Header.Get("Idempotency-Key"))

	assert.Equal(t, "5000", gotForm["amount"][0])
	assert.Equal(t, "usd", gotForm["currency"][0])
	assert.Equal(t, "manual", gotForm["capture_method"][0])
	assert.Equal(t, "cus_9", gotForm["customer"][0])
	assert.Equal(t, "acct_7", gotForm["transfer_data[destination]"][0])
	assert.Equal(t, "job-1", gotForm["metadata[job_id]"][0])
}

func TestClient_ChargeImmediate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "automatic", r.PostForm.Get("capture_method"))
		assert.Equal(t, "true", r.PostForm.Get("confirm"))

		writeJSON(t, w, http.StatusOK, map[string]any{
			"id":     "pi_tip",
			"status": "succeeded",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	charge, err := client.ChargeImmediate(context.Background(), ChargeRequest{
		AmountCents:    1500,
		Currency:       "usd",
		IdempotencyKey: "tip-job-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "pi_tip", charge.ChargeID)
	assert.Equal(t, "succeeded", charge.Status)
}

func TestClient_CaptureCharge(t *testing.T) {
	t.Run("successful capture", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/payment_intents/pi_123/capture", r.URL.Path)
			writeJSON(t, w, http.StatusOK, map[string]any{
				"id":     "pi_123",
				"status": "succeeded",
			})
		}))
		defer server.Close()

		charge, err := newTestClient(server.URL).CaptureCharge(context.Background(), "pi_123")
		require.NoError(t, err)
		assert.Equal(t, "succeeded", charge.Status)
	})

	t.Run("already captured resolves idempotently", func(t *testing.T) {
		var calls []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls = append(calls, r.Method+" "+r.URL.Path)

			if r.Method == http.MethodPost {
				writeJSON(t, w, http.StatusBadRequest, map[string]any{
					"error": map[string]any{
						"code":    "payment_intent_unexpected_state",
						"message": "already captured",
					},
				})
				return
			}

			writeJSON(t, w, http.StatusOK, map[string]any{
				"id":     "pi_123",
				"status": "succeeded",
			})
		}))
		defer server.Close()

		charge, err := newTestClient(server.URL).CaptureCharge(context.Background(), "pi_123")
		require.NoError(t, err)
		assert.Equal(t, "succeeded", charge.Status)
		assert.Equal(t, []string{
			"POST /v1/payment_intents/pi_123/capture",
			"GET /v1/payment_intents/pi_123",
		}, calls)
	})

	t.Run("unexpected state that is not captured stays an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				writeJSON(t, w, http.StatusBadRequest, map[string]any{
					"error": map[string]any{
						"code":    "payment_intent_unexpected_state",
						"message": "intent cancelled",
					},
				})
				return
			}
			writeJSON(t, w, http.StatusOK, map[string]any{
				"id":     "pi_123",
				"status": "canceled",
			})
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).CaptureCharge(context.Background(), "pi_123")
		require.Error(t, err)

		var gwErr *Error
		require.ErrorAs(t, err, &gwErr)
		assert.False(t, gwErr.Transient)
		assert.Equal(t, "payment_intent_unexpected_state", gwErr.Code)
	})
}

func TestClient_VoidCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents/pi_123/cancel", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"id":     "pi_123",
			"status": "canceled",
		})
	}))
	defer server.Close()

	charge, err := newTestClient(server.URL).VoidCharge(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, "canceled", charge.Status)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          map[string]any
		wantTransient bool
		wantCode      string
		wantMessage   string
	}{
		{
			name:   "card declined is permanent",
			status: http.StatusPaymentRequired,
			body: map[string]any{
				"error": map[string]any{
					"code":    "card_declined",
					"message": "Your card was declined.",
				},
			},
			wantTransient: false,
			wantCode:      "card_declined",
			wantMessage:   "Your card was declined.",
		},
		{
			name:          "rate limited is transient",
			status:        http.StatusTooManyRequests,
			body:          map[string]any{},
			wantTransient: true,
			wantMessage:   "gateway returned HTTP 429",
		},
		{
			name:          "processor 5xx is transient",
			status:        http.StatusServiceUnavailable,
			body:          map[string]any{},
			wantTransient: true,
			wantMessage:   "gateway returned HTTP 503",
		},
		{
			name:   "bad request is permanent",
			status: http.StatusBadRequest,
			body: map[string]any{
				"error": map[string]any{
					"code":    "parameter_invalid_integer",
					"message": "Invalid integer: abc",
				},
			},
			wantTransient: false,
			wantCode:      "parameter_invalid_integer",
			wantMessage:   "Invalid integer: abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.status, tt.body)
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).AuthorizeCharge(context.Background(), ChargeRequest{
				AmountCents: 100,
				Currency:    "usd",
			})
			require.Error(t, err)

			var gwErr *Error
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, tt.wantTransient, gwErr.Transient)
			assert.Equal(t, tt.wantCode, gwErr.Code)
			assert.Equal(t, tt.wantMessage, gwErr.Message)
		})
	}
}

func TestClient_NetworkErrorIsTransient(t *testing.T) {
	// Closed server: connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := newTestClient(server.URL).AuthorizeCharge(context.Background(), ChargeRequest{
		AmountCents: 100,
		Currency:    "usd",
	})
	require.Error(t, err)

	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.True(t, gwErr.Transient)
}

func TestClient_GetPayeeAccountStatus(t *testing.T) {
	t.Run("ready account", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/accounts/acct_7", r.URL.Path)
			writeJSON(t, w, http.StatusOK, map[string]any{
				"id":                "acct_7",
				"payouts_enabled":   true,
				"details_submitted": true,
			})
		}))
		defer server.Close()

		status, err := newTestClient(server.URL).GetPayeeAccountStatus(context.Background(), "acct_7")
		require.NoError(t, err)
		assert.True(t, status.Exists)
		assert.True(t, status.ReadyToReceive)
		assert.True(t, status.OnboardingComplete)
	})

	t.Run("onboarding incomplete", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusOK, map[string]any{
				"id":                "acct_7",
				"payouts_enabled":   false,
				"details_submitted": false,
			})
		}))
		defer server.Close()

		status, err := newTestClient(server.URL).GetPayeeAccountStatus(context.Background(), "acct_7")
		require.NoError(t, err)
		assert.True(t, status.Exists)
		assert.False(t, status.ReadyToReceive)
	})

	t.Run("missing account is not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusNotFound, map[string]any{
				"error": map[string]any{
					"code":    "resource_missing",
					"message": "No such account",
				},
			})
		}))
		defer server.Close()

		status, err := newTestClient(server.URL).GetPayeeAccountStatus(context.Background(), "acct_gone")
		require.NoError(t, err)
		assert.False(t, status.Exists)
		assert.False(t, status.ReadyToReceive)
	})
}

func TestClient_CreatePayeeAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "express", r.PostForm.Get("type"))
		assert.Equal(t, "helper-1", r.PostForm.Get("metadata[owner]"))

		writeJSON(t, w, http.StatusOK, map[string]any{
			"id":             "acct_new",
			"onboarding_url": "https://onboarding.example/acct_new",
		})
	}))
	defer server.Close()

	account, err := newTestClient(server.URL).CreatePayeeAccount(context.Background(), "helper-1")
	require.NoError(t, err)
	assert.Equal(t, "acct_new", account.AccountID)
	assert.Equal(t, "https://onboarding.example/acct_new", account.OnboardingURL)
}
