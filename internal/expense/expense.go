package expense

import (
	"time"

	expenseDatamodel "snapexpense/internal/core/datamodel/expense"
)

// Expense is one submitted receipt. UserName is a denormalized snapshot of
// the owner's display name at creation time; it is not re-synced if the
// user later renames.
type Expense struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserName     string    `json:"user_name"`
	Merchant     string    `json:"merchant"`
	Date         string    `json:"date"`
	Subtotal     float64   `json:"subtotal"`
	Tax          float64   `json:"tax"`
	Total        float64   `json:"total"`
	Category     string    `json:"category"`
	ReceiptImage string    `json:"receipt_image"`
	Status       string    `json:"status"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	StatusSubmitted = "submitted"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
)

const (
	CategoryRestaurant    = "Restaurant"
	CategoryHotel         = "Hotel"
	CategoryTransport     = "Transport"
	CategorySupplies      = "Supplies"
	CategoryMileage       = "Mileage"
	CategoryFuel          = "Fuel"
	CategoryParking       = "Parking"
	CategoryMiscellaneous = "Miscellaneous"
)

// Categories lists the fixed category enumeration in display order.
var Categories = []string{
	CategoryRestaurant,
	CategoryHotel,
	CategoryTransport,
	CategorySupplies,
	CategoryMileage,
	CategoryFuel,
	CategoryParking,
	CategoryMiscellaneous,
}

func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

func ValidStatus(status string) bool {
	return status == StatusSubmitted || status == StatusApproved || status == StatusRejected
}

func ToDataModel(e *Expense) expenseDatamodel.Expense {
	return expenseDatamodel.Expense{
		ID:           e.ID,
		UserID:       e.UserID,
		UserName:     e.UserName,
		Merchant:     e.Merchant,
		Date:         e.Date,
		Subtotal:     e.Subtotal,
		Tax:          e.Tax,
		Total:        e.Total,
		Category:     e.Category,
		ReceiptImage: e.ReceiptImage,
		Status:       e.Status,
		Notes:        e.Notes,
		CreatedAt:    e.CreatedAt,
	}
}

func FromDataModel(e expenseDatamodel.Expense) *Expense {
	return &Expense{
		ID:           e.ID,
		UserID:       e.UserID,
		UserName:     e.UserName,
		Merchant:     e.Merchant,
		Date:         e.Date,
		Subtotal:     e.Subtotal,
		Tax:          e.Tax,
		Total:        e.Total,
		Category:     e.Category,
		ReceiptImage: e.ReceiptImage,
		Status:       e.Status,
		Notes:        e.Notes,
		CreatedAt:    e.CreatedAt,
	}
}

func FromDataModelSlice(records []expenseDatamodel.Expense) []*Expense {
	result := make([]*Expense, len(records))
	for i, e := range records {
		result[i] = FromDataModel(e)
	}
	return result
}

// StripImage clears the receipt payload, the dominant size contributor in
// persisted snapshots. Used for the degraded snapshot retry.
func StripImage(e expenseDatamodel.Expense) expenseDatamodel.Expense {
	e.ReceiptImage = ""
	return e
}
