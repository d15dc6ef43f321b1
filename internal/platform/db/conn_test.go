package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxFromContext_Nil(t *testing.T) {
	assert.Nil(t, TxFromContext(context.Background()))
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	assert.Nil(t, TxFromContext(ctx))
}

func TestWithTx_NoConnection(t *testing.T) {
	_, _, err := WithTx(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "no database connection in context", err.Error())
}

type failingBeginner struct{}

func (failingBeginner) Begin(context.Context) (pgx.Tx, error) { return nil, errors.New("pool closed") }

func TestWithTx_BeginError(t *testing.T) {
	_, _, err := WithTx(context.Background(), failingBeginner{})
	assert.ErrorContains(t, err, "pool closed")
}

func TestTransactor_BeginErrorSkipsFn(t *testing.T) {
	called := false
	err := NewTransactor(failingBeginner{}).InTx(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestConn_FallsBackToQuerier(t *testing.T) {
	var q Querier
	assert.Nil(t, Conn(context.Background(), q))
}
