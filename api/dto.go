/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Currency fields are serialized as 2-decimal strings. Rates are serialized
  as percentages ("0.38" means 0.38% per day).

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rates.go: RatePeriodJSON, reused as the rates request body
*/
package api

import (
	"time"

	"github.com/warp/penalty-engine/engine"
	"github.com/warp/penalty-engine/factory"
	"github.com/warp/penalty-engine/penalty"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ObligationDTO represents a compliance obligation in API responses.
type ObligationDTO struct {
	ID                 string `json:"id"`
	ClientRef          string `json:"client_ref"`
	FeeAmount          string `json:"fee_amount"`
	InvoiceNumber      string `json:"invoice_number,omitempty"`
	PenaltyStatus      string `json:"penalty_status"`
	CreatedDate        string `json:"created_date"`
	ComplianceDeadline string `json:"compliance_deadline"`
	Supplementary      bool   `json:"supplementary,omitempty"`
}

// CreateObligationRequest is the request to register an obligation.
type CreateObligationRequest struct {
	ID                 string `json:"id"`
	ClientRef          string `json:"client_ref"`
	FeeAmount          string `json:"fee_amount"`
	InvoiceNumber      string `json:"invoice_number"`
	CreatedDate        string `json:"created_date"`
	ComplianceDeadline string `json:"compliance_deadline"`
	Supplementary      bool   `json:"supplementary"`
}

// PenaltyResultDTO is the outcome of one penalty calculation. DataIsFresh is
// absent when the calculation short-circuited before any ledger pull
// (not-applicable results): there is no freshness to report.
type PenaltyResultDTO struct {
	Applicable             bool        `json:"applicable"`
	PenaltyStatus          string      `json:"penalty_status,omitempty"`
	Kind                   string      `json:"kind,omitempty"`
	ChargeRatePercent      string      `json:"charge_rate_percent,omitempty"`
	DaysLate               int         `json:"days_late"`
	AccrualStart           string      `json:"accrual_start,omitempty"`
	AccrualFinal           string      `json:"accrual_final,omitempty"`
	AccumulatedPenalty     string      `json:"accumulated_penalty,omitempty"`
	AccumulatedCompounding string      `json:"accumulated_compounding,omitempty"`
	TotalPenalty           string      `json:"total_penalty,omitempty"`
	FAAInterest            string      `json:"faa_interest,omitempty"`
	TotalAmount            string      `json:"total_amount,omitempty"`
	DataIsFresh            *bool       `json:"data_is_fresh,omitempty"`
	Penalty                *PenaltyDTO `json:"penalty,omitempty"`
}

// PenaltyDTO represents a finalized penalty record.
type PenaltyDTO struct {
	ID                   string `json:"id"`
	ObligationID         string `json:"obligation_id"`
	Kind                 string `json:"kind"`
	AccrualStart         string `json:"accrual_start"`
	AccrualFinal         string `json:"accrual_final"`
	AccrualFrequency     string `json:"accrual_frequency"`
	CompoundingFrequency string `json:"compounding_frequency"`
	Amount               string `json:"amount"`
	Status               string `json:"status"`
	InvoiceNumber        string `json:"invoice_number,omitempty"`
	CreatedAt            string `json:"created_at"`
}

// AccrualDTO is one day of a penalty's accrual history.
type AccrualDTO struct {
	Date                   string `json:"date"`
	Rate                   string `json:"rate"`
	DailyPenalty           string `json:"daily_penalty"`
	Compounded             string `json:"compounded"`
	AccumulatedPenalty     string `json:"accumulated_penalty"`
	AccumulatedCompounding string `json:"accumulated_compounding"`
}

// RatePeriodDTO represents one interest-rate period in responses. Requests
// reuse factory.RatePeriodJSON, the same format as the startup rate file.
type RatePeriodDTO = factory.RatePeriodJSON

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toObligationDTO(ob *penalty.Obligation) ObligationDTO {
	return ObligationDTO{
		ID:                 string(ob.ID),
		ClientRef:          ob.ClientRef,
		FeeAmount:          ob.FeeAmount.StringFixed(2),
		InvoiceNumber:      string(ob.InvoiceNumber),
		PenaltyStatus:      string(ob.PenaltyStatus),
		CreatedDate:        ob.CreatedAt.String(),
		ComplianceDeadline: ob.ComplianceDeadline.String(),
		Supplementary:      ob.Supplementary,
	}
}

func toResultDTO(res *penalty.Result) PenaltyResultDTO {
	if res == nil {
		return PenaltyResultDTO{Applicable: false}
	}
	fresh := res.DataIsFresh
	dto := PenaltyResultDTO{
		Applicable:             true,
		PenaltyStatus:          string(res.PenaltyStatus),
		Kind:                   string(res.Kind),
		ChargeRatePercent:      res.ChargeRatePercent.String(),
		DaysLate:               res.DaysLate,
		AccrualStart:           res.AccrualStart.String(),
		AccrualFinal:           res.AccrualFinal.String(),
		AccumulatedPenalty:     res.AccumulatedPenalty.StringFixed(2),
		AccumulatedCompounding: res.AccumulatedCompounding.StringFixed(2),
		TotalPenalty:           res.TotalPenalty.StringFixed(2),
		FAAInterest:            res.FAAInterest.StringFixed(2),
		TotalAmount:            res.TotalAmount.StringFixed(2),
		DataIsFresh:            &fresh,
	}
	if res.Penalty != nil {
		p := toPenaltyDTO(res.Penalty)
		dto.Penalty = &p
	}
	return dto
}

func toPenaltyDTO(p *penalty.Penalty) PenaltyDTO {
	return PenaltyDTO{
		ID:                   string(p.ID),
		ObligationID:         string(p.ObligationID),
		Kind:                 string(p.Kind),
		AccrualStart:         p.AccrualStart.String(),
		AccrualFinal:         p.AccrualFinal.String(),
		AccrualFrequency:     string(p.AccrualFrequency),
		CompoundingFrequency: string(p.CompoundingFrequency),
		Amount:               p.Amount.StringFixed(2),
		Status:               string(p.Status),
		InvoiceNumber:        string(p.InvoiceNumber),
		CreatedAt:            p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toAccrualDTO(a penalty.Accrual) AccrualDTO {
	return AccrualDTO{
		Date:                   a.Date.String(),
		Rate:                   a.Rate.String(),
		DailyPenalty:           a.DailyPenalty.StringFixed(2),
		Compounded:             a.Compounded.StringFixed(2),
		AccumulatedPenalty:     a.AccumulatedPenalty.StringFixed(2),
		AccumulatedCompounding: a.AccumulatedCompounding.StringFixed(2),
	}
}

func toRatePeriodDTO(p engine.RatePeriod) RatePeriodDTO {
	return RatePeriodDTO{
		Start:      p.Start.String(),
		End:        p.End.String(),
		AnnualRate: p.AnnualRate.String(),
	}
}
