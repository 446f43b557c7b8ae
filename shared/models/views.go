package models

// TransactionSnapshot is one emission of the polling stream: the result set
// of an (agency, account) query at a point in time.
type TransactionSnapshot struct {
	Sequence     int64         `json:"sequence"`
	Transactions []Transaction `json:"transactions"`
}
