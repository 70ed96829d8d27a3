package ledger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/penalty-engine/engine"
	"github.com/warp/penalty-engine/ledger"
)

func TestClient_Pull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/clients/client-1/invoices/INV-100", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"invoice_number":      "INV-100",
			"due_date":            "2025-03-10",
			"outstanding_balance": "60.00",
			"fee_balance":         "60.00",
			"interest_balance":    "1.25",
			"fresh":               true,
			"line_items": []map[string]any{{
				"id":     "li-1",
				"type":   "fee",
				"amount": "100.00",
				"payments": []map[string]any{{
					"id": "p-1", "amount": "40.00", "received_date": "2025-03-15",
				}},
				"adjustments": []map[string]any{},
			}},
		})
	}))
	defer srv.Close()

	client, err := ledger.NewClient(srv.URL, "secret")
	require.NoError(t, err)

	inv, fresh, err := client.Pull(context.Background(), "client-1", "INV-100")
	require.NoError(t, err)

	assert.True(t, fresh)
	assert.Equal(t, ledger.InvoiceNumber("INV-100"), inv.Number)
	assert.Equal(t, "2025-03-10", inv.DueDate.String())
	assert.True(t, inv.InterestBalance.Equal(engine.MustDecimal("1.25")))
	require.Len(t, inv.LineItems, 1)
	require.Len(t, inv.LineItems[0].Payments, 1)
	assert.Equal(t, "2025-03-15", inv.LineItems[0].Payments[0].ReceivedDate.String())
}

func TestClient_Pull_RejectsMalformedAmounts(t *testing.T) {
	// A bad money value from the billing system must fail the pull; decoding
	// it as zero would silently change the computed penalty.
	invoice := func(outstanding, paymentAmount string) map[string]any {
		return map[string]any{
			"invoice_number":      "INV-100",
			"due_date":            "2025-03-10",
			"outstanding_balance": outstanding,
			"fee_balance":         "60.00",
			"interest_balance":    "0.00",
			"fresh":               true,
			"line_items": []map[string]any{{
				"id":     "li-1",
				"type":   "fee",
				"amount": "100.00",
				"payments": []map[string]any{{
					"id": "p-1", "amount": paymentAmount, "received_date": "2025-03-15",
				}},
			}},
		}
	}

	for name, body := range map[string]map[string]any{
		"bad outstanding balance": invoice("12a.50", "40.00"),
		"bad payment amount":      invoice("60.00", "not-a-number"),
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(body)
			}))
			defer srv.Close()

			client, err := ledger.NewClient(srv.URL, "")
			require.NoError(t, err)

			_, _, err = client.Pull(context.Background(), "client-1", "INV-100")
			require.Error(t, err)
		})
	}
}

func TestClient_Pull_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := ledger.NewClient(srv.URL, "")
	require.NoError(t, err)

	_, _, err = client.Pull(context.Background(), "client-1", "INV-100")
	assert.Error(t, err)
}

func TestClient_CreateFeeAndInvoice(t *testing.T) {
	var feeBody, invoiceBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/clients/client-1/fees":
			json.NewDecoder(r.Body).Decode(&feeBody)
			json.NewEncoder(w).Encode(map[string]string{"id": "fee-77"})
		case "/api/clients/client-1/invoices":
			json.NewDecoder(r.Body).Decode(&invoiceBody)
			json.NewEncoder(w).Encode(map[string]string{"invoice_number": "INV-200"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := ledger.NewClient(srv.URL, "")
	require.NoError(t, err)
	ctx := context.Background()

	feeID, err := client.CreateFee(ctx, "client-1", ledger.FeeRequest{
		Description: "Penalty (automatic_overdue) for obligation ob-1",
		Amount:      engine.MustDecimal("3.87"),
		FeeDate:     engine.NewDate(2025, time.March, 21),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.FeeID("fee-77"), feeID)
	assert.Equal(t, "3.87", feeBody["amount"])
	assert.Equal(t, "2025-03-21", feeBody["fee_date"])

	number, err := client.CreateInvoice(ctx, "client-1", ledger.InvoiceRequest{
		DueDate: engine.NewDate(2025, time.April, 19),
		FeeIDs:  []ledger.FeeID{feeID},
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.InvoiceNumber("INV-200"), number)
	assert.Equal(t, "2025-04-19", invoiceBody["due_date"])
}

func TestNewClient_EmptyBaseURL(t *testing.T) {
	_, err := ledger.NewClient("", "")
	assert.Error(t, err)
}
