package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx   *fakeTx
	opts pgx.TxOptions
	err  error
}

func (b *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = opts
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

func TestWithTxCommits(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	require.NoError(t, WithTx(context.Background(), b, func(pgx.Tx) error { return nil }))
	assert.True(t, b.tx.committed)
	assert.False(t, b.tx.rolledBack)
	assert.Equal(t, pgx.ReadCommitted, b.opts.IsoLevel)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	boom := errors.New("boom")
	b := &fakeBeginner{tx: &fakeTx{}}
	err := WithTx(context.Background(), b, func(pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, b.tx.committed)
	assert.True(t, b.tx.rolledBack)

	b = &fakeBeginner{tx: &fakeTx{commitErr: boom}}
	err = WithTx(context.Background(), b, func(pgx.Tx) error { return nil })
	assert.ErrorIs(t, err, boom)
	assert.True(t, b.tx.rolledBack)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	assert.Panics(t, func() {
		_ = WithTx(context.Background(), b, func(pgx.Tx) error { panic("bad") })
	})
	assert.True(t, b.tx.rolledBack)
}

func TestWithTxBeginFailure(t *testing.T) {
	b := &fakeBeginner{err: errors.New("no conn")}
	err := WithTx(context.Background(), b, func(pgx.Tx) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorContains(t, err, "begin tx")
}

func TestPoolConfigAppliesOptions(t *testing.T) {
	cfg, err := poolConfig("postgres://u:p@localhost:5432/staffhub", Options{
		MaxConns:        7,
		MaxConnLifetime: time.Minute,
		ApplicationName: "staffhub-test",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, cfg.MaxConns)
	assert.Equal(t, time.Minute, cfg.MaxConnLifetime)
	assert.Equal(t, "staffhub-test", cfg.ConnConfig.RuntimeParams["application_name"])

	_, err = poolConfig("postgres://u@localhost:notaport/staffhub", Options{})
	assert.ErrorContains(t, err, "parse config")
}
