package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var leadCols = []string{"id", "batch_id", "data"}

func TestIdentifier(t *testing.T) {
	t.Parallel()
	assert.Equal(t, pgx.Identifier{"leads"}, Identifier("leads"))
	assert.Equal(t, pgx.Identifier{"leadq", "leads"}, Identifier("leadq.leads"))
}

func TestCopyFrom_NoRows(t *testing.T) {
	t.Parallel()
	n, err := CopyFrom(context.Background(), nil, "leads", leadCols, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCopyFrom(t *testing.T) {
	t.Parallel()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"leadq", "leads"}, leadCols).WillReturnResult(2)

	rows := [][]any{{"lead_1", "batch_1", []byte(`{}`)}, {"lead_2", "batch_1", []byte(`{}`)}}
	n, err := CopyFrom(context.Background(), mock, "leadq.leads", leadCols, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Errors(t *testing.T) {
	t.Parallel()

	t.Run("ragged row", func(t *testing.T) {
		t.Parallel()
		_, err := CopyFrom(context.Background(), nil, "leads", leadCols, [][]any{{"lead_1"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row 0 has 1 values, want 3")
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		mock.ExpectCopyFrom(pgx.Identifier{"leads"}, leadCols).WillReturnError(errors.New("disk full"))

		_, err = CopyFrom(context.Background(), mock, "leads", leadCols, [][]any{{"lead_1", "b", nil}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "copy into leads")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("short write", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		mock.ExpectCopyFrom(pgx.Identifier{"leads"}, leadCols).WillReturnResult(1)

		n, err := CopyFrom(context.Background(), mock, "leads", leadCols, [][]any{{"a", "b", nil}, {"c", "d", nil}})
		require.Error(t, err)
		assert.Equal(t, int64(1), n)
		assert.Contains(t, err.Error(), "wrote 1 of 2 rows")
	})
}
