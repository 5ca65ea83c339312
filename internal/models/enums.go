package models

import (
	"fmt"
	"strings"
)

// OptionType is the right conveyed by an option contract.
type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

// SignalDirection is the directional view produced by scoring or the debate.
type SignalDirection string

const (
	DirectionBullish SignalDirection = "bullish"
	DirectionBearish SignalDirection = "bearish"
	DirectionNeutral SignalDirection = "neutral"
)

// GreeksSource records where a contract's Greeks came from.
type GreeksSource string

const (
	GreeksSourceMarket     GreeksSource = "market"
	GreeksSourceCalculated GreeksSource = "calculated"
)

// ParseSignalDirection accepts any casing of bullish, bearish or neutral.
func ParseSignalDirection(s string) (SignalDirection, error) {
	switch d := SignalDirection(strings.ToLower(strings.TrimSpace(s))); d {
	case DirectionBullish, DirectionBearish, DirectionNeutral:
		return d, nil
	default:
		return "", fmt.Errorf("unknown signal direction %q", s)
	}
}

// ParseOptionType accepts call/put in any casing, plus the single-letter forms.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return OptionTypeCall, nil
	case "put", "p":
		return OptionTypePut, nil
	default:
		return "", fmt.Errorf("unknown option type %q", s)
	}
}
