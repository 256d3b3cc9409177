package events

// Ledger event types recorded in the outbox.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionUpdated = "transaction.updated"
	EventTransactionDeleted = "transaction.deleted"
	EventPropertyCreated    = "property.created"
	EventPropertyUpdated    = "property.updated"
	EventPropertyDeleted    = "property.deleted"
)

// TransactionPayload captures the minimal data consumers need to react
// to a transaction event.
type TransactionPayload struct {
	TransactionID string `json:"transaction_id"`
	PropertyID    string `json:"property_id"`
	PointsChange  int64  `json:"points_change"`
	Amount        int64  `json:"amount"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p TransactionPayload) ToMap() map[string]any {
	return map[string]any{
		"transaction_id": p.TransactionID,
		"property_id":    p.PropertyID,
		"points_change":  p.PointsChange,
		"amount":         p.Amount,
	}
}

// PropertyPayload captures the minimal data consumers need to react to
// a property event.
type PropertyPayload struct {
	PropertyID              string `json:"property_id"`
	NumTransactionsAffected int64  `json:"num_transactions_affected,omitempty"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p PropertyPayload) ToMap() map[string]any {
	payload := map[string]any{
		"property_id": p.PropertyID,
	}
	if p.NumTransactionsAffected != 0 {
		payload["num_transactions_affected"] = p.NumTransactionsAffected
	}
	return payload
}
