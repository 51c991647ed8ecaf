package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ordercast/internal/types"
)

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// emptyRows is a pgx.Rows with no data, for not-found paths.
type emptyRows struct{}

func (emptyRows) Next() bool                                    { return false }
func (emptyRows) Scan(dest ...any) error                        { return nil }
func (emptyRows) Close()                                        {}
func (emptyRows) Err() error                                    { return nil }
func (emptyRows) CommandTag() pgconn.CommandTag                 { return pgconn.CommandTag{} }
func (emptyRows) FieldDescriptions() []pgconn.FieldDescription  { return nil }
func (emptyRows) RawValues() [][]byte                           { return nil }
func (emptyRows) Values() ([]any, error)                        { return nil, nil }
func (emptyRows) Conn() *pgx.Conn                               { return nil }

func ledgerEntry() types.DedupLedgerEntry {
	return types.DedupLedgerEntry{
		TenantID:   "tenant_1",
		RuleID:     "rule_1",
		EntityType: "order",
		EntityID:   "order_42",
		ScopeKey:   "order",
	}
}

func TestDedupLedgerRepository_TryClaim_Won(t *testing.T) {
	db := new(mockDBTX)
	repo := NewDedupLedgerRepository(db)
	ctx := context.Background()

	// The conflict target must cover the scope key: claims under different
	// scopes (live vs per-job backfill) are distinct rows.
	db.On("Exec", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "ON CONFLICT (tenant_id, rule_id, entity_id, scope_key) DO NOTHING")
	}), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	claimed, err := repo.TryClaim(ctx, ledgerEntry())
	require.NoError(t, err)
	assert.True(t, claimed)
	db.AssertExpectations(t)
}

func TestDedupLedgerRepository_TryClaim_LostRace(t *testing.T) {
	db := new(mockDBTX)
	repo := NewDedupLedgerRepository(db)
	ctx := context.Background()

	// The conflicting insert is swallowed by DO NOTHING: zero rows affected,
	// no error.
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil)

	claimed, err := repo.TryClaim(ctx, ledgerEntry())
	require.NoError(t, err)
	assert.False(t, claimed)
	db.AssertExpectations(t)
}

func TestDedupLedgerRepository_TryClaim_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewDedupLedgerRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	claimed, err := repo.TryClaim(ctx, ledgerEntry())
	require.Error(t, err)
	assert.False(t, claimed)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)

	db.AssertExpectations(t)
}
