/*
client.go - HTTP client for the external invoicing system

PURPOSE:
  Implements ExternalLedger and ExternalInvoicing against the billing
  system's REST API. Constructed once at process startup and injected into
  the engine; tests substitute fakes. Requests carry a bounded timeout - the
  engine never blocks indefinitely on the external system.
*/
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/penalty-engine/engine"
)

// Client is a minimal REST client for the external invoicing system.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient constructs a client. token may be empty for unauthenticated
// deployments (dev/test billing sandboxes).
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("ledger: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type invoiceResponse struct {
	Number             string              `json:"invoice_number"`
	DueDate            string              `json:"due_date"`
	OutstandingBalance string              `json:"outstanding_balance"`
	FeeBalance         string              `json:"fee_balance"`
	InterestBalance    string              `json:"interest_balance"`
	Void               bool                `json:"void"`
	Fresh              bool                `json:"fresh"`
	LineItems          []lineItemResponse  `json:"line_items"`
}

type lineItemResponse struct {
	ID          string               `json:"id"`
	Type        string               `json:"type"`
	Amount      string               `json:"amount"`
	Payments    []paymentResponse    `json:"payments"`
	Adjustments []adjustmentResponse `json:"adjustments"`
}

type paymentResponse struct {
	ID           string `json:"id"`
	Amount       string `json:"amount"`
	ReceivedDate string `json:"received_date"`
}

type adjustmentResponse struct {
	ID             string `json:"id"`
	Amount         string `json:"amount"`
	AdjustmentDate string `json:"adjustment_date"`
}

// =============================================================================
// EXTERNAL LEDGER (pull)
// =============================================================================

// Pull fetches the invoice state for one obligation.
func (c *Client) Pull(ctx context.Context, clientRef string, number InvoiceNumber) (*Invoice, bool, error) {
	path := fmt.Sprintf("/api/clients/%s/invoices/%s", clientRef, number)
	var resp invoiceResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, false, err
	}
	inv, err := resp.toInvoice()
	if err != nil {
		return nil, false, fmt.Errorf("decode invoice %s: %w", number, err)
	}
	return inv, resp.Fresh, nil
}

func (r invoiceResponse) toInvoice() (*Invoice, error) {
	due, err := engine.ParseDate(r.DueDate)
	if err != nil {
		return nil, err
	}
	outstanding, err := parseAmount("outstanding_balance", r.OutstandingBalance)
	if err != nil {
		return nil, err
	}
	feeBalance, err := parseAmount("fee_balance", r.FeeBalance)
	if err != nil {
		return nil, err
	}
	interest, err := parseAmount("interest_balance", r.InterestBalance)
	if err != nil {
		return nil, err
	}
	inv := &Invoice{
		Number:             InvoiceNumber(r.Number),
		DueDate:            due,
		OutstandingBalance: outstanding,
		FeeBalance:         feeBalance,
		InterestBalance:    interest,
		Void:               r.Void,
	}
	for _, li := range r.LineItems {
		amount, err := parseAmount("line item amount", li.Amount)
		if err != nil {
			return nil, err
		}
		item := LineItem{
			ID:     li.ID,
			Type:   LineItemType(li.Type),
			Amount: amount,
		}
		for _, p := range li.Payments {
			d, err := engine.ParseDate(p.ReceivedDate)
			if err != nil {
				return nil, err
			}
			amt, err := parseAmount("payment amount", p.Amount)
			if err != nil {
				return nil, err
			}
			item.Payments = append(item.Payments, Payment{
				ID: p.ID, Amount: amt, ReceivedDate: d,
			})
		}
		for _, a := range li.Adjustments {
			d, err := engine.ParseDate(a.AdjustmentDate)
			if err != nil {
				return nil, err
			}
			amt, err := parseAmount("adjustment amount", a.Amount)
			if err != nil {
				return nil, err
			}
			item.Adjustments = append(item.Adjustments, Adjustment{
				ID: a.ID, Amount: amt, AdjustmentDate: d,
			})
		}
		inv.LineItems = append(inv.LineItems, item)
	}
	return inv, nil
}

// parseAmount rejects malformed money values instead of coercing them.
// A bad amount from the billing system must abort the pull, never flow
// into a simulation as zero.
func parseAmount(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s %q: %w", field, raw, err)
	}
	return d, nil
}

// =============================================================================
// EXTERNAL INVOICING (create fee + invoice)
// =============================================================================

// CreateFee registers a penalty fee and returns its id.
func (c *Client) CreateFee(ctx context.Context, clientRef string, fee FeeRequest) (FeeID, error) {
	body := map[string]any{
		"description": fee.Description,
		"amount":      fee.Amount.StringFixed(2),
		"fee_date":    fee.FeeDate.String(),
	}
	var resp struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/api/clients/%s/fees", clientRef)
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	return FeeID(resp.ID), nil
}

// CreateInvoice bills previously created fees and returns the new invoice number.
func (c *Client) CreateInvoice(ctx context.Context, clientRef string, inv InvoiceRequest) (InvoiceNumber, error) {
	feeIDs := make([]string, len(inv.FeeIDs))
	for i, id := range inv.FeeIDs {
		feeIDs[i] = string(id)
	}
	body := map[string]any{
		"due_date": inv.DueDate.String(),
		"fee_ids":  feeIDs,
	}
	var resp struct {
		InvoiceNumber string `json:"invoice_number"`
	}
	path := fmt.Sprintf("/api/clients/%s/invoices", clientRef)
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	return InvoiceNumber(resp.InvoiceNumber), nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewBuffer(raw)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("ledger: %s %s returned %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ ExternalLedger = (*Client)(nil)
var _ ExternalInvoicing = (*Client)(nil)
