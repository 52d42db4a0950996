package expense

import "time"

// Expense is the persisted shape of an expense record, shared by the cloud
// document store (bson) and the local snapshot store (json).
type Expense struct {
	ID           string    `json:"id" bson:"_id"`
	UserID       string    `json:"user_id" bson:"user_id"`
	UserName     string    `json:"user_name" bson:"user_name"`
	Merchant     string    `json:"merchant" bson:"merchant"`
	Date         string    `json:"date" bson:"date"`
	Subtotal     float64   `json:"subtotal" bson:"subtotal"`
	Tax          float64   `json:"tax" bson:"tax"`
	Total        float64   `json:"total" bson:"total"`
	Category     string    `json:"category" bson:"category"`
	ReceiptImage string    `json:"receipt_image" bson:"receipt_image"`
	Status       string    `json:"status" bson:"status"`
	Notes        string    `json:"notes" bson:"notes"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}
