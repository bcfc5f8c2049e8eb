package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fjacquet/autocat/internal/logging"
	"fjacquet/autocat/internal/models"
	"fjacquet/autocat/internal/pipelineerror"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T, opts Options) *TransactionStore {
	t.Helper()
	s, err := Create(filepath.Join(t.TempDir(), "data", "user_data.db"), opts, logging.NewMockLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *TransactionStore) {
	t.Helper()
	rows := []struct {
		id, account string
		posted      int64
		amount      interface{}
		payee, desc interface{}
		hidden      int
		category    interface{}
	}{
		{"t1", "checking", base.Unix(), "-50.25", "Whole Foods", "groceries", 0, "Uncategorized"},
		{"t2", "checking", base.Add(48 * time.Hour).Unix(), "-1200", nil, nil, 0, "Uncategorized"},
		{"t3", "savings", base.Add(-48 * time.Hour).Unix(), "-4.5", "Coffee", "", 0, "Uncategorized"},
		{"t4", "checking", base.Unix(), "-60", "Safeway", "", 0, "Groceries"},
		{"t5", "checking", base.Unix(), "-70", "Hidden", "", 1, "Uncategorized"},
		{"t6", "checking", base.Unix(), "-1", "Nulled", "", 0, nil},
		{"t7", "savings", base.Unix(), "-1150", "Property", "rent", 0, "Rent"},
	}
	for _, r := range rows {
		_, err := s.DB().Exec(`INSERT INTO transactions (id, account_id, posted, amount, payee, description, hidden, category)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, r.id, r.account, r.posted, r.amount, r.payee, r.desc, r.hidden, r.category)
		require.NoError(t, err)
	}
}

func ids(txs []models.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}

func TestFetchUncategorized_Since(t *testing.T) {
	s := openTestStore(t, Options{})
	seed(t, s)

	txs, err := s.FetchUncategorized(context.Background(), models.BatchFilter{Since: base})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, ids(txs))

	first := txs[0]
	assert.Equal(t, "Whole Foods", first.Payee)
	assert.Equal(t, "-50.25", first.Amount.String())
	assert.Equal(t, "checking", first.AccountID)
	assert.True(t, first.Timestamp.Equal(base))

	// NULL payee and description arrive as empty strings
	assert.Equal(t, "", txs[1].Payee)
	assert.Equal(t, "", txs[1].Description)
}

func TestFetchUncategorized_IDs(t *testing.T) {
	s := openTestStore(t, Options{})
	seed(t, s)

	txs, err := s.FetchUncategorized(context.Background(), models.BatchFilter{IDs: []string{"t3", "t4", "t5", "missing"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"t3"}, ids(txs))

	txs, err = s.FetchUncategorized(context.Background(), models.BatchFilter{IDs: []string{"missing"}})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestFetchUncategorized_IncludeHidden(t *testing.T) {
	s := openTestStore(t, Options{IncludeHidden: true})
	seed(t, s)

	txs, err := s.FetchUncategorized(context.Background(), models.BatchFilter{Since: base})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2", "t5"}, ids(txs))
}

func TestFetchUncategorized_ReturnsUnreadableAmount(t *testing.T) {
	logger := logging.NewMockLogger()
	s, err := Create(filepath.Join(t.TempDir(), "db.sqlite"), Options{}, logger)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.DB().Exec(`INSERT INTO transactions (id, account_id, posted, amount, category) VALUES
		('bad', 'checking', 1, 'n/a', 'Uncategorized'),
		('good', 'checking', 2, '-5', 'Uncategorized')`)
	require.NoError(t, err)

	txs, err := s.FetchUncategorized(context.Background(), models.BatchFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{"bad", "good"}, ids(txs))
	assert.Error(t, txs[0].Invalid)
	assert.Equal(t, "checking", txs[0].AccountID)
	assert.NoError(t, txs[1].Invalid)
	assert.NotEmpty(t, logger.GetEntriesByLevel("WARN"))
}

func TestOpen_MissingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo", "user_data.db")

	_, err := Open(path, Options{}, logging.NewMockLogger())
	var access *pipelineerror.StoreAccessError
	require.True(t, errors.As(err, &access))
	assert.ErrorIs(t, err, ErrMissingDatabase)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "opening must not create the database")
}

func TestOpen_MissingSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sqlx.Open(DriverName, path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE unrelated (id INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path, Options{}, logging.NewMockLogger())
	var access *pipelineerror.StoreAccessError
	require.True(t, errors.As(err, &access))
	assert.ErrorIs(t, err, ErrMissingSchema)
}

func TestOpen_ExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_data.db")
	created, err := Create(path, Options{}, logging.NewMockLogger())
	require.NoError(t, err)
	require.NoError(t, created.Close())

	s, err := Open(path, Options{}, logging.NewMockLogger())
	require.NoError(t, err)
	defer s.Close()

	n, err := s.CountUncategorized(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestApplyCategory(t *testing.T) {
	s := openTestStore(t, Options{})
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.ApplyCategory(ctx, "t1", "Groceries"))

	var category string
	require.NoError(t, s.DB().Get(&category, `SELECT category FROM transactions WHERE id = 't1'`))
	assert.Equal(t, "Groceries", category)

	// Second attempt: the row is no longer uncategorized
	err := s.ApplyCategory(ctx, "t1", "Dining")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipelineerror.ErrNotEligible)

	var update *pipelineerror.StoreUpdateError
	require.True(t, errors.As(err, &update))
	assert.Equal(t, "t1", update.TransactionID)

	require.NoError(t, s.DB().Get(&category, `SELECT category FROM transactions WHERE id = 't1'`))
	assert.Equal(t, "Groceries", category)
}

func TestApplyCategory_GuardsReviewedAndNullRows(t *testing.T) {
	s := openTestStore(t, Options{})
	seed(t, s)
	ctx := context.Background()

	assert.ErrorIs(t, s.ApplyCategory(ctx, "t4", "Dining"), pipelineerror.ErrNotEligible)
	assert.ErrorIs(t, s.ApplyCategory(ctx, "t6", "Dining"), pipelineerror.ErrNotEligible)
	assert.ErrorIs(t, s.ApplyCategory(ctx, "missing", "Dining"), pipelineerror.ErrNotEligible)
}

func TestCountUncategorized(t *testing.T) {
	s := openTestStore(t, Options{})
	seed(t, s)

	n, err := s.CountUncategorized(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	withHidden := NewTransactionStore(s.DB(), Options{IncludeHidden: true}, nil)
	n, err = withHidden.CountUncategorized(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestLabeledTransactions(t *testing.T) {
	s := openTestStore(t, Options{})
	seed(t, s)

	labeled, err := s.LabeledTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, labeled, 2)

	categories := []string{labeled[0].Category, labeled[1].Category}
	assert.ElementsMatch(t, []string{"Groceries", "Rent"}, categories)
	for _, l := range labeled {
		assert.NotEmpty(t, l.AccountID)
		assert.Equal(t, l.Amount.String(), l.RawAmount)
	}
}

func TestTrainingDate(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()

	_, ok, err := s.TrainingDate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	require.NoError(t, s.RecordTrainingDate(ctx, at))
	require.NoError(t, s.RecordTrainingDate(ctx, at.Add(time.Hour)))

	got, ok, err := s.TrainingDate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Equal(at.Add(time.Hour)))
}

func TestClosedStoreReportsAccessError(t *testing.T) {
	s, err := Create(filepath.Join(t.TempDir(), "closed.db"), Options{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.FetchUncategorized(context.Background(), models.BatchFilter{})
	var access *pipelineerror.StoreAccessError
	assert.True(t, errors.As(err, &access))
}

func TestMockGateway(t *testing.T) {
	m := NewMockGateway(
		models.Transaction{ID: "a", Category: models.CategoryUncategorized, Timestamp: base},
		models.Transaction{ID: "b", Category: "Rent", Timestamp: base},
		models.Transaction{ID: "c", Category: models.CategoryUncategorized, Timestamp: base.Add(-time.Hour)},
	)
	ctx := context.Background()

	txs, err := m.FetchUncategorized(ctx, models.BatchFilter{Since: base})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(txs))

	require.NoError(t, m.ApplyCategory(ctx, "a", "Groceries"))
	assert.ErrorIs(t, m.ApplyCategory(ctx, "a", "Groceries"), pipelineerror.ErrNotEligible)
	assert.Equal(t, 1, m.AppliedCount())
}
