// Package store is the gateway to the SQLite transaction database: it reads
// uncategorized and labeled transactions and persists accepted categories.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fjacquet/autocat/internal/currencyutils"
	"fjacquet/autocat/internal/fileutils"
	"fjacquet/autocat/internal/logging"
	"fjacquet/autocat/internal/models"
	"fjacquet/autocat/internal/pipelineerror"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// DriverName is the database/sql driver used for the store.
const DriverName = "sqlite"

// Gateway is the narrow read/update interface the decision engine needs.
type Gateway interface {
	FetchUncategorized(ctx context.Context, filter models.BatchFilter) ([]models.Transaction, error)
	ApplyCategory(ctx context.Context, id, label string) error
}

// Options configures a TransactionStore.
type Options struct {
	// UncategorizedLabel is the category value marking rows to classify.
	UncategorizedLabel string
	// IncludeHidden also selects rows the user has hidden.
	IncludeHidden bool
}

// TransactionStore implements Gateway over SQLite.
type TransactionStore struct {
	db     *sqlx.DB
	opts   Options
	logger logging.Logger
}

// transactionRow matches the nullable columns of the transactions table.
type transactionRow struct {
	ID          string         `db:"id"`
	AccountID   sql.NullString `db:"account_id"`
	Posted      sql.NullInt64  `db:"posted"`
	Amount      sql.NullString `db:"amount"`
	Description sql.NullString `db:"description"`
	Payee       sql.NullString `db:"payee"`
	Category    sql.NullString `db:"category"`
	Hidden      sql.NullBool   `db:"hidden"`
}

const selectColumns = `SELECT id, account_id, posted, amount, description, payee, category, hidden FROM transactions`

// ErrMissingDatabase is wrapped by Open when the database file does not exist.
var ErrMissingDatabase = errors.New("database does not exist")

// ErrMissingSchema is wrapped by Open when the database has no transactions table.
var ErrMissingSchema = errors.New("database has no transactions table")

// Open opens an existing database. A missing file or a database without the
// transactions table is a *pipelineerror.StoreAccessError and nothing is
// created.
func Open(path string, opts Options, logger logging.Logger) (*TransactionStore, error) {
	if path != ":memory:" && !fileutils.FileExists(path) {
		return nil, &pipelineerror.StoreAccessError{Op: "open", Err: fmt.Errorf("%w: %s", ErrMissingDatabase, path)}
	}

	s, err := connect(path, opts, logger)
	if err != nil {
		return nil, err
	}

	var tables int
	if err := s.db.Get(&tables, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'transactions'`); err != nil {
		_ = s.db.Close()
		return nil, &pipelineerror.StoreAccessError{Op: "open", Err: err}
	}
	if tables == 0 {
		_ = s.db.Close()
		return nil, &pipelineerror.StoreAccessError{Op: "open", Err: fmt.Errorf("%w: %s", ErrMissingSchema, path)}
	}

	s.logger.Debug("Transaction store opened", logging.Field{Key: "path", Value: path})
	return s, nil
}

// Create opens the database at path, creating the file and its parent
// directory when needed, and migrates the schema.
func Create(path string, opts Options, logger logging.Logger) (*TransactionStore, error) {
	if path != ":memory:" {
		if err := fileutils.EnsureParentDirectory(path); err != nil {
			return nil, &pipelineerror.StoreAccessError{Op: "create", Err: err}
		}
	}

	s, err := connect(path, opts, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.db.Close()
		return nil, err
	}

	s.logger.Debug("Transaction store created", logging.Field{Key: "path", Value: path})
	return s, nil
}

func connect(path string, opts Options, logger logging.Logger) (*TransactionStore, error) {
	db, err := sqlx.Open(DriverName, path)
	if err != nil {
		return nil, &pipelineerror.StoreAccessError{Op: "open", Err: err}
	}
	// A single connection keeps an in-memory database alive and serializes
	// writers.
	db.SetMaxOpenConns(1)
	return NewTransactionStore(db, opts, logger), nil
}

// NewTransactionStore wraps an already open database.
func NewTransactionStore(db *sqlx.DB, opts Options, logger logging.Logger) *TransactionStore {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if opts.UncategorizedLabel == "" {
		opts.UncategorizedLabel = models.CategoryUncategorized
	}
	return &TransactionStore{db: db, opts: opts, logger: logger}
}

// Migrate creates the tables if they are missing.
func (s *TransactionStore) Migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return &pipelineerror.StoreAccessError{Op: "migrate", Err: err}
	}
	return nil
}

// DB exposes the underlying handle, mainly for seeding tests.
func (s *TransactionStore) DB() *sqlx.DB {
	return s.db
}

// Close releases the database handle.
func (s *TransactionStore) Close() error {
	return s.db.Close()
}

// FetchUncategorized returns the rows carrying the uncategorized label,
// either posted at or after filter.Since or, when filter.IDs is set, among
// those identifiers. Rows with an unreadable amount are logged and returned
// with Invalid set.
func (s *TransactionStore) FetchUncategorized(ctx context.Context, filter models.BatchFilter) ([]models.Transaction, error) {
	query := selectColumns + ` WHERE category = ?`
	args := []interface{}{s.opts.UncategorizedLabel}

	if filter.ByIDs() {
		query += ` AND id IN (?)`
		args = append(args, filter.IDs)
	} else {
		query += ` AND posted >= ?`
		args = append(args, filter.Since.Unix())
	}
	if !s.opts.IncludeHidden {
		query += ` AND COALESCE(hidden, 0) = 0`
	}
	query += ` ORDER BY posted, id`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, &pipelineerror.StoreAccessError{Op: "fetch uncategorized", Err: err}
	}

	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, &pipelineerror.StoreAccessError{Op: "fetch uncategorized", Err: err}
	}

	out := make([]models.Transaction, 0, len(rows))
	for _, r := range rows {
		tx, err := r.toModel()
		if err != nil {
			s.logger.WithError(err).Warn("Transaction has an unreadable amount",
				logging.Field{Key: logging.FieldTransactionID, Value: r.ID})
			tx = models.Transaction{
				ID:        r.ID,
				AccountID: r.AccountID.String,
				Category:  r.Category.String,
				Invalid:   err,
			}
		}
		out = append(out, tx)
	}

	s.logger.Debug("Fetched uncategorized transactions", logging.Field{Key: logging.FieldCount, Value: len(out)})
	return out, nil
}

// ApplyCategory sets the category of one row, but only while it still
// carries the uncategorized label. A row that was reviewed in the meantime is
// reported as pipelineerror.ErrNotEligible inside a StoreUpdateError.
func (s *TransactionStore) ApplyCategory(ctx context.Context, id, label string) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &pipelineerror.StoreUpdateError{TransactionID: id, Err: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET category = ? WHERE id = ? AND category = ?`,
		label, id, s.opts.UncategorizedLabel)
	if err != nil {
		return &pipelineerror.StoreUpdateError{TransactionID: id, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &pipelineerror.StoreUpdateError{TransactionID: id, Err: err}
	}
	if n == 0 {
		err = &pipelineerror.StoreUpdateError{TransactionID: id, Err: pipelineerror.ErrNotEligible}
		return err
	}
	if err = tx.Commit(); err != nil {
		return &pipelineerror.StoreUpdateError{TransactionID: id, Err: err}
	}
	return nil
}

// CountUncategorized counts the rows awaiting classification, honoring the
// hidden-row setting.
func (s *TransactionStore) CountUncategorized(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE category = ?`
	if !s.opts.IncludeHidden {
		query += ` AND COALESCE(hidden, 0) = 0`
	}

	var n int
	if err := s.db.GetContext(ctx, &n, query, s.opts.UncategorizedLabel); err != nil {
		return 0, &pipelineerror.StoreAccessError{Op: "count uncategorized", Err: err}
	}
	return n, nil
}

// LabeledTransactions returns every row with a real category, the training
// corpus.
func (s *TransactionStore) LabeledTransactions(ctx context.Context) ([]models.LabeledTransaction, error) {
	query := selectColumns + ` WHERE category IS NOT NULL AND category != ? ORDER BY posted, id`

	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, query, s.opts.UncategorizedLabel); err != nil {
		return nil, &pipelineerror.StoreAccessError{Op: "fetch labeled", Err: err}
	}

	out := make([]models.LabeledTransaction, 0, len(rows))
	for _, r := range rows {
		tx, err := r.toModel()
		if err != nil {
			s.logger.WithError(err).Warn("Skipping labeled transaction with unreadable amount",
				logging.Field{Key: logging.FieldTransactionID, Value: r.ID})
			continue
		}
		out = append(out, models.LabeledTransaction{
			Payee:       tx.Payee,
			Description: tx.Description,
			Amount:      tx.Amount,
			RawAmount:   tx.Amount.String(),
			AccountID:   tx.AccountID,
			Category:    tx.Category,
		})
	}
	return out, nil
}

// RecordTrainingDate stores when the model was last trained in the
// single-row user_config table.
func (s *TransactionStore) RecordTrainingDate(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_config (id, classifier_training_date) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET classifier_training_date = excluded.classifier_training_date`,
		at.UTC().Format(time.RFC3339))
	if err != nil {
		return &pipelineerror.StoreAccessError{Op: "record training date", Err: err}
	}
	return nil
}

// TrainingDate returns the last recorded training time. ok is false when the
// model was never trained against this database.
func (s *TransactionStore) TrainingDate(ctx context.Context) (at time.Time, ok bool, err error) {
	var raw sql.NullString
	err = s.db.GetContext(ctx, &raw, `SELECT classifier_training_date FROM user_config WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !raw.Valid) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, &pipelineerror.StoreAccessError{Op: "read training date", Err: err}
	}
	at, err = time.Parse(time.RFC3339, raw.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid training date %q: %w", raw.String, err)
	}
	return at, true, nil
}

func (r transactionRow) toModel() (models.Transaction, error) {
	amount, err := currencyutils.ParseAmount(r.Amount.String)
	if err != nil {
		return models.Transaction{}, err
	}

	var posted time.Time
	if r.Posted.Valid {
		posted = time.Unix(r.Posted.Int64, 0).UTC()
	}

	return models.Transaction{
		ID:          r.ID,
		Payee:       r.Payee.String,
		Description: r.Description.String,
		Amount:      amount,
		AccountID:   r.AccountID.String,
		Timestamp:   posted,
		Category:    r.Category.String,
		Hidden:      r.Hidden.Valid && r.Hidden.Bool,
	}, nil
}
