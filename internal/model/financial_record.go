package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RecordType classifies a financial record.
type RecordType string

const (
	// RecordRevenue is money earned.
	RecordRevenue RecordType = "revenue"
	// RecordExpense is money spent.
	RecordExpense RecordType = "expense"
	// RecordOther is neither revenue nor expense (transfers, adjustments).
	RecordOther RecordType = "other"
)

// Valid reports whether t is a known record type.
func (t RecordType) Valid() bool {
	switch t {
	case RecordRevenue, RecordExpense, RecordOther:
		return true
	}
	return false
}

// FinancialRecord is a single revenue or expense fact. Amount is stored in
// minor currency units and is always positive; Type carries the direction.
type FinancialRecord struct {
	Date        time.Time  `json:"date"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ID          string     `json:"id"`
	AccountID   string     `json:"accountId"`
	Type        RecordType `json:"type"`
	Category    string     `json:"category"`
	Description string     `json:"description,omitempty"`
	Amount      int64      `json:"amount"`
}

// FinancialRecordInput is the shape accepted when a financial record is
// created. Amount is in major currency units.
type FinancialRecordInput struct {
	Date        *Date           `json:"date,omitempty"`
	Type        RecordType      `json:"type"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// Validate checks the input.
func (in *FinancialRecordInput) Validate() error {
	if !in.Type.Valid() {
		return fmt.Errorf("%w: invalid record type %q", ErrInvalidInput, in.Type)
	}
	in.Category = strings.TrimSpace(in.Category)
	if in.Category == "" {
		return fmt.Errorf("%w: record category is required", ErrInvalidInput)
	}
	if _, err := PositiveMinorUnits(in.Amount); err != nil {
		return err
	}
	return nil
}

// ToRecord converts a validated input into a FinancialRecord. A missing date
// defaults to now.
func (in FinancialRecordInput) ToRecord(accountID string, now time.Time) (FinancialRecord, error) {
	amount, err := PositiveMinorUnits(in.Amount)
	if err != nil {
		return FinancialRecord{}, err
	}
	date := now
	if t := in.Date.TimePtr(); t != nil {
		date = *t
	}
	return FinancialRecord{
		AccountID:   accountID,
		Type:        in.Type,
		Category:    in.Category,
		Description: strings.TrimSpace(in.Description),
		Amount:      amount,
		Date:        date,
	}, nil
}

// FinancialRecordPatch carries a partial update; nil fields are left unchanged.
type FinancialRecordPatch struct {
	Date        *Date            `json:"date,omitempty"`
	Type        *RecordType      `json:"type,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Description *string          `json:"description,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
}

// Apply validates the patch and applies it to r.
func (p FinancialRecordPatch) Apply(r *FinancialRecord) error {
	if p.Type != nil {
		if !p.Type.Valid() {
			return fmt.Errorf("%w: invalid record type %q", ErrInvalidInput, *p.Type)
		}
		r.Type = *p.Type
	}
	if p.Category != nil {
		category := strings.TrimSpace(*p.Category)
		if category == "" {
			return fmt.Errorf("%w: record category cannot be empty", ErrInvalidInput)
		}
		r.Category = category
	}
	if p.Description != nil {
		r.Description = strings.TrimSpace(*p.Description)
	}
	if p.Amount != nil {
		amount, err := PositiveMinorUnits(*p.Amount)
		if err != nil {
			return err
		}
		r.Amount = amount
	}
	if p.Date != nil && !p.Date.IsZero() {
		r.Date = p.Date.Time
	}
	return nil
}
