package scan

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/services/scoring"
	"gopkg.in/yaml.v3"
)

// UniverseFile is a watchlist or a raw indicator snapshot on disk. JSON
// files parse too since YAML is a superset. Watchlist names a persisted
// watchlist instead of listing tickers.
//
//	name: megacaps
//	tickers: [AAPL, MSFT]
//	universe:
//	  NVDA: {rsi: 61.2, adx: 28.4, sma_alignment: 1}
type UniverseFile struct {
	Name      string                         `yaml:"name" json:"name"`
	Tickers   []string                       `yaml:"tickers" json:"tickers"`
	Universe  map[string]map[string]*float64 `yaml:"universe" json:"universe"`
	Watchlist string                         `yaml:"watchlist" json:"watchlist"`
}

// LoadUniverseFile reads and parses a universe file.
func LoadUniverseFile(path string) (*UniverseFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe file: %w", err)
	}
	return ParseUniverse(data)
}

// ParseUniverse parses YAML or JSON universe content. Ticker keys are
// normalised and invalid ones rejected.
func ParseUniverse(data []byte) (*UniverseFile, error) {
	var file UniverseFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse universe file: %w", err)
	}

	valid, invalid := common.NormalizeTickers(file.Tickers)
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid tickers in universe file: %s", strings.Join(invalid, ", "))
	}
	file.Tickers = valid

	if len(file.Universe) > 0 {
		normalized := make(map[string]map[string]*float64, len(file.Universe))
		for raw, indicators := range file.Universe {
			ticker := common.ParseTicker(raw)
			if err := ticker.Validate(); err != nil {
				return nil, fmt.Errorf("invalid universe ticker %q: %w", raw, err)
			}
			normalized[ticker.Code] = indicators
		}
		file.Universe = normalized
	}

	file.Watchlist = strings.TrimSpace(file.Watchlist)
	if len(file.Tickers) == 0 && len(file.Universe) == 0 && file.Watchlist == "" {
		return nil, fmt.Errorf("universe file lists no tickers")
	}
	return &file, nil
}

// Request turns the file into a scan request.
func (f *UniverseFile) Request() Request {
	return Request{Tickers: f.Tickers, Universe: f.Raw(), Watchlist: f.Watchlist}
}

// Raw returns the indicator snapshot as a scoring universe, or nil when the
// file is a plain watchlist. Missing values stay absent; nulls become NaN.
func (f *UniverseFile) Raw() scoring.Universe {
	if len(f.Universe) == 0 {
		return nil
	}
	raw := make(scoring.Universe, len(f.Universe))
	for ticker, indicators := range f.Universe {
		values := make(map[string]float64, len(indicators))
		for name, v := range indicators {
			if v == nil {
				values[strings.ToLower(name)] = math.NaN()
				continue
			}
			values[strings.ToLower(name)] = *v
		}
		raw[ticker] = values
	}
	return raw
}
