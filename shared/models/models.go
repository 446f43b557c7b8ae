package models

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// valor travels as a JSON number, the way the downstream consumers read it.
	decimal.MarshalJSONWithoutQuotes = true
}

// TransactionType enumerates the supported transfer kinds.
type TransactionType string

const (
	TypeTaxPayment TransactionType = "PAGAMENTO_TRIBUTOS"
	TypePIX        TransactionType = "PIX"
	TypeTED        TransactionType = "TED"
	TypeDOC        TransactionType = "DOC"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeTaxPayment, TypePIX, TypeTED, TypeDOC:
		return true
	}
	return false
}

func (t *TransactionType) UnmarshalText(text []byte) error {
	v := TransactionType(text)
	if !v.Valid() {
		return fmt.Errorf("unknown transaction type %q", string(text))
	}
	*t = v
	return nil
}

// Account is the source account of a transaction. It is also the secondary
// lookup key; several transactions may share one account.
type Account struct {
	AgencyCode  int64 `json:"codigoAgencia" validate:"required"`
	AccountCode int64 `json:"codigoConta" validate:"required"`
}

func (a Account) String() string {
	return fmt.Sprintf("%d/%d", a.AgencyCode, a.AccountCode)
}

type Beneficiary struct {
	TaxID    int64  `json:"CPF" validate:"required"`
	BankCode int64  `json:"codigoBanco" validate:"required"`
	Agency   string `json:"agencia" validate:"required"`
	Account  string `json:"conta" validate:"required"`
	Name     string `json:"nomeFavorecido" validate:"required"`
}

// Transaction is the persisted and published representation of a
// financial-transaction request.
type Transaction struct {
	ID          uuid.UUID       `json:"uui"`
	Amount      decimal.Decimal `json:"valor" validate:"required"`
	Date        LocalDateTime   `json:"data" validate:"required"`
	Account     Account         `json:"conta" validate:"required"`
	Beneficiary Beneficiary     `json:"beneficiario" validate:"required"`
	Type        TransactionType `json:"tipoTransacao" validate:"required"`
	Situation   Situation       `json:"situacao"`
}

// Equal reports whether both values denote the same transaction. Identity is
// the ID alone.
func (t *Transaction) Equal(other *Transaction) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.ID == other.ID
}

func (t *Transaction) MarkUnanalyzed()   { t.Situation = SituationUnanalyzed }
func (t *Transaction) MarkAnalyzed()     { t.Situation = SituationAnalyzed }
func (t *Transaction) MarkRejected()     { t.Situation = SituationRejected }
func (t *Transaction) MarkFraudSuspect() { t.Situation = SituationFraudSuspect }
func (t *Transaction) MarkHumanReview()  { t.Situation = SituationHumanReview }
func (t *Transaction) MarkApproved()     { t.Situation = SituationApproved }

func (t *Transaction) IsAnalyzed() bool {
	return t.Situation == SituationAnalyzed
}

// StatusChangeRequest asks for a transaction to move to Situation.
type StatusChangeRequest struct {
	Situation Situation `json:"situacao" validate:"required"`
}
