package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe-solver/internal/stf"
)

func newTestSimulator(protected bool) *Simulator {
	return &Simulator{router: stf.DefaultRouter(), seed: "test", protected: protected}
}

func TestSimulate_TargetOneCashesOutImmediately(t *testing.T) {
	res, err := newTestSimulator(false).simulate(context.Background(), 1, 20)
	require.NoError(t, err)

	assert.Equal(t, 20, res.Wins)
	assert.Zero(t, res.TotalPaid)
	assert.Equal(t, 1.0, res.WinRate())
}

func TestSimulate_VeteranCanLose(t *testing.T) {
	res, err := newTestSimulator(false).simulate(context.Background(), 3, 300)
	require.NoError(t, err)

	assert.Greater(t, res.Wins, 0)
	assert.Less(t, res.Wins, 300)
	maxTwoRounds := stf.Prize(stf.MinSafeCount, 1) + stf.Prize(stf.MinSafeCount, 2)
	assert.LessOrEqual(t, res.MaxPayout, maxTwoRounds)
	assert.Greater(t, res.AvgPayout(), 0.0)
	assert.InDelta(t, res.AvgPayout()*res.WinRate(), res.ExpectedValue(), 1e-9)
}

func TestSimulate_ProtectedNeverLoses(t *testing.T) {
	res, err := newTestSimulator(true).simulate(context.Background(), 5, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Wins)
}

func TestSimulate_Deterministic(t *testing.T) {
	a, err := newTestSimulator(false).simulate(context.Background(), 4, 100)
	require.NoError(t, err)
	b, err := newTestSimulator(false).simulate(context.Background(), 4, 100)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResults(&buf, []Result{{Target: 2, Games: 4, Wins: 2, TotalPaid: 60, MaxPayout: 33}}))

	out := buf.String()
	assert.Contains(t, out, "win rate")
	assert.Contains(t, out, "50.00%")
	assert.Contains(t, out, "30.0")
}
