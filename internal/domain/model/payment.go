package model

// Payment is the subset of the Mercado Pago payment resource the dispatcher
// and the forwarding endpoints care about. ExternalReference correlates the
// payment back to an internal order.
type Payment struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	TransactionAmount float64
	CurrencyID        string
	PayerEmail        string
	DateApproved      string
}
