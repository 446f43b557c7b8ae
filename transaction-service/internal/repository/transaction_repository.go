package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/coffeeandit/transaction/shared/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id                    UUID PRIMARY KEY,
	amount                NUMERIC(19, 2) NOT NULL,
	date                  TIMESTAMP NOT NULL,
	agency_code           BIGINT NOT NULL,
	account_code          BIGINT NOT NULL,
	beneficiary_tax_id    BIGINT NOT NULL,
	beneficiary_bank_code BIGINT NOT NULL,
	beneficiary_agency    VARCHAR(20) NOT NULL,
	beneficiary_account   VARCHAR(20) NOT NULL,
	beneficiary_name      VARCHAR(255) NOT NULL,
	type                  VARCHAR(32) NOT NULL,
	situation             VARCHAR(32) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_account
	ON transactions (agency_code, account_code, date DESC);
`

const selectColumns = `
	SELECT id, amount, date, agency_code, account_code,
	       beneficiary_tax_id, beneficiary_bank_code, beneficiary_agency, beneficiary_account, beneficiary_name,
	       type, situation
	FROM transactions
`

// PostgresStore keeps transactions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the transactions table and its account index.
func (r *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (r *PostgresStore) Save(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, amount, date, agency_code, account_code,
			beneficiary_tax_id, beneficiary_bank_code, beneficiary_agency, beneficiary_account, beneficiary_name,
			type, situation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			amount = EXCLUDED.amount,
			date = EXCLUDED.date,
			agency_code = EXCLUDED.agency_code,
			account_code = EXCLUDED.account_code,
			beneficiary_tax_id = EXCLUDED.beneficiary_tax_id,
			beneficiary_bank_code = EXCLUDED.beneficiary_bank_code,
			beneficiary_agency = EXCLUDED.beneficiary_agency,
			beneficiary_account = EXCLUDED.beneficiary_account,
			beneficiary_name = EXCLUDED.beneficiary_name,
			type = EXCLUDED.type,
			situation = EXCLUDED.situation
	`
	_, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.Amount, tx.Date, tx.Account.AgencyCode, tx.Account.AccountCode,
		tx.Beneficiary.TaxID, tx.Beneficiary.BankCode, tx.Beneficiary.Agency, tx.Beneficiary.Account, tx.Beneficiary.Name,
		string(tx.Type), string(tx.Situation),
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

func (r *PostgresStore) Update(ctx context.Context, tx *models.Transaction) error {
	query := `
		UPDATE transactions SET
			amount = $2, date = $3, agency_code = $4, account_code = $5,
			beneficiary_tax_id = $6, beneficiary_bank_code = $7, beneficiary_agency = $8,
			beneficiary_account = $9, beneficiary_name = $10, type = $11, situation = $12
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.Amount, tx.Date, tx.Account.AgencyCode, tx.Account.AccountCode,
		tx.Beneficiary.TaxID, tx.Beneficiary.BankCode, tx.Beneficiary.Agency, tx.Beneficiary.Account, tx.Beneficiary.Name,
		string(tx.Type), string(tx.Situation),
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func (r *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (r *PostgresStore) ListByAccount(ctx context.Context, agency, account int64, limit int) ([]models.Transaction, error) {
	query := selectColumns + `
		WHERE agency_code = $1 AND account_code = $2
		ORDER BY date DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, agency, account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

// Close is a no-op; the *sql.DB belongs to the caller.
func (r *PostgresStore) Close() error { return nil }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx        models.Transaction
		txType    string
		situation string
	)
	err := row.Scan(
		&tx.ID, &tx.Amount, &tx.Date, &tx.Account.AgencyCode, &tx.Account.AccountCode,
		&tx.Beneficiary.TaxID, &tx.Beneficiary.BankCode, &tx.Beneficiary.Agency,
		&tx.Beneficiary.Account, &tx.Beneficiary.Name,
		&txType, &situation,
	)
	if err != nil {
		return nil, err
	}
	tx.Type = models.TransactionType(txType)
	tx.Situation = models.Situation(situation)
	return &tx, nil
}
