package csvsource

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/epi-clustering/internal/domain"
)

func TestExtract_ParsesRows(t *testing.T) {
	input := strings.Join([]string{
		"date,region,confirmed,deaths,tests,vaccines,hosp,icu",
		"2020-03-01,Alpha,10,1,100,0,5,2",
		"2020-03-02,Alpha,15,1,150,0,6,2",
		"2020-03-01,Beta,3,0,40,0,1,0",
	}, "\n")

	src := New(strings.NewReader(input), slog.Default())
	obs, err := src.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 3)

	first := obs[0]
	assert.Equal(t, "Alpha", first.Region)
	assert.Equal(t, time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, 10.0, first.Value(domain.VarConfirmed))
	assert.Equal(t, 100.0, first.Value(domain.VarTests))
	assert.Equal(t, 2.0, first.Value(domain.VarICU))

	assert.Equal(t, "Beta", obs[2].Region)
	assert.Equal(t, 3.0, obs[2].Value(domain.VarConfirmed))
}

func TestExtract_BlankCellsBecomeNaN(t *testing.T) {
	input := strings.Join([]string{
		"date,region,confirmed,deaths,tests,vaccines,hosp,icu",
		"2020-03-01,Alpha,10,1,,0,5,2",
		"2020-03-02,Alpha,15,1,NA,0,6,2",
	}, "\n")

	src := New(strings.NewReader(input), slog.Default())
	obs, err := src.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.True(t, math.IsNaN(obs[0].Value(domain.VarTests)))
	assert.True(t, math.IsNaN(obs[1].Value(domain.VarTests)))
	assert.Equal(t, 10.0, obs[0].Value(domain.VarConfirmed))
}

func TestExtract_ReorderedAndExtraColumns(t *testing.T) {
	input := strings.Join([]string{
		"region,notes,icu,hosp,vaccines,tests,deaths,confirmed,date",
		"Alpha,whatever,2,5,0,100,1,10,2020-03-01",
	}, "\n")

	src := New(strings.NewReader(input), slog.Default())
	obs, err := src.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 10.0, obs[0].Value(domain.VarConfirmed))
	assert.Equal(t, 2.0, obs[0].Value(domain.VarICU))
}

func TestExtract_HeaderErrors(t *testing.T) {
	cases := map[string]string{
		"missing date":     "region,confirmed,deaths,tests,vaccines,hosp,icu\n",
		"missing region":   "date,confirmed,deaths,tests,vaccines,hosp,icu\n",
		"missing variable": "date,region,confirmed,deaths,tests,vaccines,hosp\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			src := New(strings.NewReader(input), slog.Default())
			_, err := src.Extract(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestExtract_RowErrors(t *testing.T) {
	header := "date,region,confirmed,deaths,tests,vaccines,hosp,icu\n"
	cases := map[string]string{
		"bad date":     header + "03/01/2020,Alpha,10,1,100,0,5,2\n",
		"bad number":   header + "2020-03-01,Alpha,ten,1,100,0,5,2\n",
		"empty region": header + "2020-03-01,,10,1,100,0,5,2\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			src := New(strings.NewReader(input), slog.Default())
			_, err := src.Extract(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestExtract_ContextCancelled(t *testing.T) {
	input := "date,region,confirmed,deaths,tests,vaccines,hosp,icu\n" +
		"2020-03-01,Alpha,10,1,100,0,5,2\n"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := New(strings.NewReader(input), slog.Default())
	_, err := src.Extract(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
