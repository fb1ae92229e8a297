package symbols

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"crypto-alerts-bot/internal/provider"
	"crypto-alerts-bot/internal/provider/fake"
	"crypto-alerts-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(p *fake.Provider, extra map[string]string) (*Resolver, *fake.Limiter) {
	l := &fake.Limiter{}
	return NewResolver(p, l, extra, 0), l
}

func TestResolveKnownTickerMakesNoCalls(t *testing.T) {
	p := fake.New()
	p.Known["BTC"] = "bitcoin"
	r, l := newResolver(p, nil)

	id, err := r.Resolve(context.Background(), " btc ")
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", id)
	assert.Empty(t, p.Calls())
	assert.Zero(t, l.Acquired())
}

func TestResolveTriesCandidatesInOrder(t *testing.T) {
	p := fake.New()
	p.Guesses["PEPE"] = []string{"pepe", "pepe-2", "pepecoin"}
	p.SetQuote("pepe-2", "0.00001")
	r, l := newResolver(p, nil)

	id, err := r.Resolve(context.Background(), "pepe")
	require.NoError(t, err)
	assert.Equal(t, "pepe-2", id)
	assert.Equal(t, 2, l.Acquired())

	calls := p.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"pepe"}, calls[0].IDs)
	assert.Equal(t, []string{"pepe-2"}, calls[1].IDs)

	// memoised
	got, ok := r.Lookup("PEPE")
	assert.True(t, ok)
	assert.Equal(t, "pepe-2", got)
	_, err = r.Resolve(context.Background(), "PEPE")
	require.NoError(t, err)
	assert.Len(t, p.Calls(), 2)
}

func TestResolveFallsBackToSearch(t *testing.T) {
	p := fake.New()
	p.Coins = []provider.Coin{
		{ID: "wrapped-wif", Name: "Wrapped WIF", Symbol: "WWIF"},
		{ID: "dogwifcoin", Name: "dogwifhat", Symbol: "WIF"},
	}
	r, _ := newResolver(p, nil)

	id, err := r.Resolve(context.Background(), "wif")
	require.NoError(t, err)
	assert.Equal(t, "dogwifcoin", id)
	assert.Equal(t, 1, p.SearchCalls())
}

func TestResolveUnknown(t *testing.T) {
	p := fake.New()
	p.Guesses["XYZ"] = []string{"xyz"}
	r, _ := newResolver(p, nil)

	_, err := r.Resolve(context.Background(), "XYZ")
	assert.ErrorIs(t, err, types.ErrSymbolNotFound)
	_, ok := r.Lookup("XYZ")
	assert.False(t, ok)

	_, err = r.Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, types.ErrSymbolNotFound)
}

func TestResolveThrottledCandidateAborts(t *testing.T) {
	p := fake.New()
	p.Guesses["NEW"] = []string{"new", "new-2"}
	p.ErrFor["new"] = errors.Wrap(types.ErrRateLimited, "simple/price")
	r, _ := newResolver(p, nil)

	_, err := r.Resolve(context.Background(), "NEW")
	assert.ErrorIs(t, err, types.ErrRateLimited)
	assert.Len(t, p.Calls(), 1)
	assert.Zero(t, p.SearchCalls())
}

func TestResolveSearchFailureIsNotUnknown(t *testing.T) {
	p := fake.New()
	p.SetErr(errors.New("GET /search: status 503: maintenance"))
	r, _ := newResolver(p, nil)

	_, err := r.Resolve(context.Background(), "WIF")
	assert.ErrorIs(t, err, types.ErrPriceUnavailable)
	assert.NotErrorIs(t, err, types.ErrSymbolNotFound)
	assert.Equal(t, 1, p.SearchCalls())
	_, ok := r.Lookup("WIF")
	assert.False(t, ok)
}

func TestResolveFailedCandidateWithoutSearchMatch(t *testing.T) {
	p := fake.New()
	p.Guesses["NEW"] = []string{"new"}
	p.ErrFor["new"] = errors.New("connection reset by peer")
	r, _ := newResolver(p, nil)

	_, err := r.Resolve(context.Background(), "NEW")
	assert.ErrorIs(t, err, types.ErrPriceUnavailable)
	assert.Equal(t, 1, p.SearchCalls())
}

func TestResolveSearchNotFound(t *testing.T) {
	p := fake.New()
	p.SetErr(errors.Wrap(provider.ErrNotFound, "search"))
	r, _ := newResolver(p, nil)

	_, err := r.Resolve(context.Background(), "ZZZ")
	assert.ErrorIs(t, err, types.ErrSymbolNotFound)
}

func TestResolveCancelled(t *testing.T) {
	p := fake.New()
	p.Guesses["NEW"] = []string{"new"}
	r, _ := newResolver(p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, "NEW")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtraTableOverridesKnown(t *testing.T) {
	p := fake.New()
	p.Known["BTC"] = "bitcoin"
	r, _ := newResolver(p, map[string]string{"btc": "btc-override", "pepe": "pepe"})

	id, ok := r.Lookup("BTC")
	assert.True(t, ok)
	assert.Equal(t, "btc-override", id)
	id, ok = r.Lookup("PEPE")
	assert.True(t, ok)
	assert.Equal(t, "pepe", id)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbols:\n  pepe: pepe\n  WIF: dogwifcoin\n  EMPTY: \"\"\n"), 0o600))

	table, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"PEPE": "pepe", "WIF": "dogwifcoin"}, table)

	table, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, table)

	table, err = LoadFile("")
	require.NoError(t, err)
	assert.Empty(t, table)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("symbols: [1, 2"), 0o600))
	_, err = LoadFile(bad)
	assert.Error(t, err)
}
