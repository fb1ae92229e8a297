package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	mux := newMetricsAndHealthMux(pinger{})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	mux = newMetricsAndHealthMux(pinger{err: errors.New("disk I/O error")})
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	mux := newMetricsAndHealthMux(pinger{})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNewProvider(t *testing.T) {
	p, err := newProvider("CoinGecko")
	require.NoError(t, err)
	assert.Equal(t, "coingecko", p.Name())

	p, err = newProvider("coinpaprika")
	require.NoError(t, err)
	assert.Equal(t, "coinpaprika", p.Name())

	_, err = newProvider("binance")
	assert.Error(t, err)
}
