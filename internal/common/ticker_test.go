package common

import (
	"testing"
)

func TestParseTicker(t *testing.T) {
	tests := []struct {
		input        string
		wantCode     string
		wantExchange string
		wantEODHD    string
	}{
		{"AAPL", "AAPL", "US", "AAPL.US"},
		{"aapl", "AAPL", "US", "AAPL.US"},
		{"  MSFT  ", "MSFT", "US", "MSFT.US"},
		{"NVDA.US", "NVDA", "US", "NVDA.US"},
		{"NASDAQ:AMD", "AMD", "US", "AMD.US"},
		{"BRK.B", "BRK-B", "US", "BRK-B.US"},
		{"", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseTicker(tt.input)

			if result.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", result.Code, tt.wantCode)
			}
			if result.Exchange != tt.wantExchange {
				t.Errorf("Exchange = %q, want %q", result.Exchange, tt.wantExchange)
			}
			if result.EODHDSymbol() != tt.wantEODHD {
				t.Errorf("EODHDSymbol() = %q, want %q", result.EODHDSymbol(), tt.wantEODHD)
			}
		})
	}
}

func TestNormalizeTickers(t *testing.T) {
	valid, invalid := NormalizeTickers([]string{"aapl", "MSFT", "AAPL", "", "bad ticker!", "spy"})

	want := []string{"AAPL", "MSFT", "SPY"}
	if len(valid) != len(want) {
		t.Fatalf("valid = %v, want %v", valid, want)
	}
	for i := range want {
		if valid[i] != want[i] {
			t.Errorf("valid[%d] = %q, want %q", i, valid[i], want[i])
		}
	}
	if len(invalid) != 1 || invalid[0] != "bad ticker!" {
		t.Errorf("invalid = %v, want [bad ticker!]", invalid)
	}
}
