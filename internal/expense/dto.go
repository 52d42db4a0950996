package expense

import (
	"errors"
	"fmt"
	"time"
)

// CreateExpenseDTO is the request payload for submitting an expense. The
// identifier may be supplied by the client for idempotent retries; the
// handler generates one otherwise. Subtotal, tax and total are not checked
// against each other: the extraction step may produce inconsistent values
// and every field is independently editable.
type CreateExpenseDTO struct {
	ID           string  `json:"id,omitempty"`
	Merchant     string  `json:"merchant"`
	Date         string  `json:"date"`
	Subtotal     float64 `json:"subtotal"`
	Tax          float64 `json:"tax"`
	Total        float64 `json:"total"`
	Category     string  `json:"category"`
	ReceiptImage string  `json:"receipt_image"`
	Notes        string  `json:"notes"`
}

func (dto CreateExpenseDTO) Validate() error {
	if dto.Merchant == "" {
		return errors.New("merchant is required")
	}
	if err := validateDate(dto.Date); err != nil {
		return err
	}
	if dto.Subtotal < 0 || dto.Tax < 0 || dto.Total < 0 {
		return errors.New("amounts must be non-negative")
	}
	if !ValidCategory(dto.Category) {
		return fmt.Errorf("unknown category %q", dto.Category)
	}
	return nil
}

// UpdateExpenseDTO carries a partial edit; nil fields are left untouched.
type UpdateExpenseDTO struct {
	Merchant     *string  `json:"merchant,omitempty"`
	Date         *string  `json:"date,omitempty"`
	Subtotal     *float64 `json:"subtotal,omitempty"`
	Tax          *float64 `json:"tax,omitempty"`
	Total        *float64 `json:"total,omitempty"`
	Category     *string  `json:"category,omitempty"`
	ReceiptImage *string  `json:"receipt_image,omitempty"`
	Notes        *string  `json:"notes,omitempty"`
}

func (dto UpdateExpenseDTO) Validate() error {
	if dto.Date != nil {
		if err := validateDate(*dto.Date); err != nil {
			return err
		}
	}
	for _, amount := range []*float64{dto.Subtotal, dto.Tax, dto.Total} {
		if amount != nil && *amount < 0 {
			return errors.New("amounts must be non-negative")
		}
	}
	if dto.Category != nil && !ValidCategory(*dto.Category) {
		return fmt.Errorf("unknown category %q", *dto.Category)
	}
	return nil
}

// Fields returns the patch map for the set fields, keyed by the persisted
// field names.
func (dto UpdateExpenseDTO) Fields() map[string]any {
	fields := make(map[string]any)
	if dto.Merchant != nil {
		fields["merchant"] = *dto.Merchant
	}
	if dto.Date != nil {
		fields["date"] = *dto.Date
	}
	if dto.Subtotal != nil {
		fields["subtotal"] = *dto.Subtotal
	}
	if dto.Tax != nil {
		fields["tax"] = *dto.Tax
	}
	if dto.Total != nil {
		fields["total"] = *dto.Total
	}
	if dto.Category != nil {
		fields["category"] = *dto.Category
	}
	if dto.ReceiptImage != nil {
		fields["receipt_image"] = *dto.ReceiptImage
	}
	if dto.Notes != nil {
		fields["notes"] = *dto.Notes
	}
	return fields
}

// UpdateStatusDTO resolves a submitted expense. Empty notes preserve the
// existing note.
type UpdateStatusDTO struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

func (dto UpdateStatusDTO) Validate() error {
	if dto.Status != StatusApproved && dto.Status != StatusRejected {
		return errors.New("status must be either 'approved' or 'rejected'")
	}
	return nil
}

func validateDate(date string) error {
	if date == "" {
		return errors.New("date is required")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("date must be an ISO 8601 calendar date: %w", err)
	}
	return nil
}
