package core

// CSVHeader is the column layout shared by the CSV mirror, CSV export and the
// Sheets exporter.
var CSVHeader = []string{
	"transaction_id", "user_id", "type", "amount",
	"category", "date", "description", "payment_method",
}

// Record returns t as a row in CSVHeader order.
func (t Transaction) Record() []string {
	return []string{
		t.ID,
		t.UserID,
		string(t.Type),
		t.Amount.String(),
		t.Category,
		t.Date.String(),
		t.Description,
		t.PaymentMethod,
	}
}
