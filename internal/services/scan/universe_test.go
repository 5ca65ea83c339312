package scan

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUniverse_YAML(t *testing.T) {
	data := []byte(`
name: megacaps
tickers: [aapl, MSFT, brk.b, aapl]
universe:
  nvda:
    RSI: 61.2
    adx: 28.4
    sma_alignment: null
`)
	file, err := ParseUniverse(data)
	require.NoError(t, err)

	assert.Equal(t, "megacaps", file.Name)
	assert.Equal(t, []string{"AAPL", "MSFT", "BRK-B"}, file.Tickers)

	raw := file.Raw()
	require.Contains(t, raw, "NVDA")
	assert.Equal(t, 61.2, raw["NVDA"]["rsi"])
	assert.Equal(t, 28.4, raw["NVDA"]["adx"])
	assert.True(t, math.IsNaN(raw["NVDA"]["sma_alignment"]))
}

func TestParseUniverse_JSON(t *testing.T) {
	file, err := ParseUniverse([]byte(`{"tickers": ["spy", "qqq"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY", "QQQ"}, file.Tickers)
	assert.Nil(t, file.Raw())
}

func TestParseUniverse_Watchlist(t *testing.T) {
	file, err := ParseUniverse([]byte(`{"watchlist": " tech "}`))
	require.NoError(t, err)
	assert.Equal(t, Request{Watchlist: "tech"}, file.Request())
}

func TestParseUniverse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", `name: nothing`},
		{"invalid ticker", `tickers: ["$$$"]`},
		{"invalid universe key", "universe:\n  \"1BAD\": {rsi: 1}"},
		{"malformed", `tickers: [unclosed`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUniverse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadUniverseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tickers: [AMD, INTC]\n"), 0o644))

	file, err := LoadUniverseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AMD", "INTC"}, file.Tickers)

	_, err = LoadUniverseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
