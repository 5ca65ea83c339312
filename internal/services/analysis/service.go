// -----------------------------------------------------------------------
// Analysis - single ticker debate, contract recommendation and reports
// -----------------------------------------------------------------------

package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/debate"
	"github.com/jobu711/optionalpha/internal/services/marketdata"
	"github.com/jobu711/optionalpha/internal/services/report"
	"github.com/ternarybob/arbor"
)

var validate = validator.New()

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// Report formats.
const (
	FormatMarkdown = "md"
	FormatHTML     = "html"
	FormatPDF      = "pdf"
)

// Market builds the debate context for a ticker.
type Market interface {
	BuildMarketContext(ctx context.Context, ticker string, contract *models.OptionContract) (*marketdata.Snapshot, error)
	OptionChain(ctx context.Context, ticker string) ([]models.OptionContract, error)
}

// Debater runs one debate.
type Debater interface {
	Run(ctx context.Context, in debate.DebateInput) (models.TradeThesis, error)
}

// ContractRecommender picks a contract from a chain.
type ContractRecommender interface {
	Recommend(ticker string, chain []models.OptionContract, direction models.SignalDirection) *models.OptionContract
}

// ThesisReader loads persisted theses.
type ThesisReader interface {
	GetLatestThesis(ctx context.Context, ticker string) (*models.ThesisRecord, error)
	ListTheses(ctx context.Context, ticker string, limit int) ([]models.ThesisRecord, error)
}

// DebateRequest asks for a debate on one ticker. Unset score fields fall back
// to neutral values or to the live market context.
type DebateRequest struct {
	Ticker string   `json:"ticker" validate:"required"`
	Score  *float64 `json:"score,omitempty" validate:"omitempty,gte=0,lte=100"`
	IVRank *float64 `json:"iv_rank,omitempty" validate:"omitempty,gte=0,lte=100"`
	RSI    *float64 `json:"rsi,omitempty" validate:"omitempty,gte=0,lte=100"`
	ADX    *float64 `json:"adx,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// RecommendRequest either carries a chain or names a ticker whose chain is
// fetched. Direction is required with a chain and derived from the market
// otherwise.
type RecommendRequest struct {
	Ticker    string                  `json:"ticker"`
	Direction string                  `json:"direction,omitempty" validate:"omitempty,oneof=bullish bearish neutral"`
	Contracts []models.OptionContract `json:"contracts,omitempty" validate:"dive"`
}

// Analysis is a debate result with the data it was argued from.
type Analysis struct {
	Ticker   string                 `json:"ticker"`
	Thesis   models.TradeThesis     `json:"thesis"`
	Context  models.MarketContext   `json:"context"`
	Contract *models.OptionContract `json:"contract,omitempty"`
	Signals  map[string]float64     `json:"signals,omitempty"`
	Fallback bool                   `json:"fallback"`
}

// Recommendation is the outcome of a recommend request. Contract is nil when
// nothing in the chain qualified.
type Recommendation struct {
	Ticker    string                 `json:"ticker"`
	Direction models.SignalDirection `json:"direction"`
	Contract  *models.OptionContract `json:"contract"`
	ChainSize int                    `json:"chain_size"`
}

// Report is a rendered thesis report.
type Report struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Service ties market data, the debate orchestrator and reporting together.
type Service struct {
	market      Market
	debater     Debater
	recommender ContractRecommender
	theses      ThesisReader
	reports     *report.Service
	now         func() time.Time
	logger      arbor.ILogger
}

// NewService creates an analysis service.
func NewService(market Market, debater Debater, recommender ContractRecommender, theses ThesisReader, reports *report.Service, logger arbor.ILogger) *Service {
	return &Service{
		market:      market,
		debater:     debater,
		recommender: recommender,
		theses:      theses,
		reports:     reports,
		now:         time.Now,
		logger:      logger,
	}
}

func normalizeTicker(raw string) (string, error) {
	t := common.ParseTicker(raw)
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return t.String(), nil
}

// Debate runs the bull, bear and risk agents on one ticker. A failed market
// context fetch does not stop the debate: the agents see only the ticker and
// the fallback path still has the request's score fields.
func (s *Service) Debate(ctx context.Context, req DebateRequest) (*Analysis, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	ticker, err := normalizeTicker(req.Ticker)
	if err != nil {
		return nil, err
	}

	result := &Analysis{Ticker: ticker}

	snap, err := s.market.BuildMarketContext(ctx, ticker, nil)
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Market context unavailable, debating on ticker only")
		result.Context = models.MarketContext{Ticker: ticker, DataTimestamp: s.now().UTC()}
	default:
		result.Context = snap.Context
		result.Contract = snap.Contract
		result.Signals = snap.Indicators
	}

	in := debate.NewDebateInput(result.Context)
	if snap != nil {
		in.ADX = snap.ADX()
	}
	if req.Score != nil {
		in.CompositeScore = *req.Score
	}
	if req.IVRank != nil {
		in.IVRank = *req.IVRank
	}
	if req.RSI != nil {
		in.RSI14 = *req.RSI
	}
	if req.ADX != nil {
		in.ADX = req.ADX
	}

	thesis, err := s.debater.Run(ctx, in)
	if err != nil {
		return nil, err
	}

	result.Thesis = thesis
	result.Fallback = thesis.IsFallback()
	return result, nil
}

// Recommend picks a contract for a supplied chain or for a ticker's live chain.
func (s *Service) Recommend(ctx context.Context, req RecommendRequest) (*Recommendation, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if len(req.Contracts) > 0 {
		if req.Direction == "" {
			return nil, fmt.Errorf("%w: direction is required with contracts", ErrInvalidRequest)
		}
		direction, err := models.ParseSignalDirection(req.Direction)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
		if ticker == "" {
			ticker = req.Contracts[0].Ticker
		}
		return &Recommendation{
			Ticker:    ticker,
			Direction: direction,
			Contract:  s.recommender.Recommend(ticker, req.Contracts, direction),
			ChainSize: len(req.Contracts),
		}, nil
	}

	if req.Ticker == "" {
		return nil, fmt.Errorf("%w: ticker or contracts required", ErrInvalidRequest)
	}
	ticker, err := normalizeTicker(req.Ticker)
	if err != nil {
		return nil, err
	}

	if req.Direction == "" {
		snap, err := s.market.BuildMarketContext(ctx, ticker, nil)
		if err != nil {
			return nil, fmt.Errorf("build market context for %s: %w", ticker, err)
		}
		return &Recommendation{
			Ticker:    ticker,
			Direction: snap.Direction,
			Contract:  snap.Contract,
			ChainSize: snap.ChainSize,
		}, nil
	}

	direction, err := models.ParseSignalDirection(req.Direction)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	chain, err := s.market.OptionChain(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("fetch option chain for %s: %w", ticker, err)
	}
	return &Recommendation{
		Ticker:    ticker,
		Direction: direction,
		Contract:  s.recommender.Recommend(ticker, chain, direction),
		ChainSize: len(chain),
	}, nil
}

// LatestThesis returns the newest persisted thesis for ticker.
func (s *Service) LatestThesis(ctx context.Context, ticker string) (*models.ThesisRecord, error) {
	t, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	return s.theses.GetLatestThesis(ctx, t)
}

// Theses lists persisted theses for ticker, newest first.
func (s *Service) Theses(ctx context.Context, ticker string, limit int) ([]models.ThesisRecord, error) {
	t, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	return s.theses.ListTheses(ctx, t, limit)
}

// Report renders the newest persisted thesis for ticker. Market data is
// refetched for the snapshot section; when that fails the report carries the
// thesis alone.
func (s *Service) Report(ctx context.Context, ticker, format string) (*Report, error) {
	record, err := s.LatestThesis(ctx, ticker)
	if err != nil {
		return nil, err
	}

	in := report.Input{
		Thesis:  record.Thesis,
		Context: models.MarketContext{Ticker: record.Ticker, DataTimestamp: record.CreatedAt},
	}
	if snap, err := s.market.BuildMarketContext(ctx, record.Ticker, nil); err != nil {
		s.logger.Warn().Str("ticker", record.Ticker).Err(err).Msg("Market context unavailable for report")
	} else {
		in.Context = snap.Context
		in.Contract = snap.Contract
		in.Signals = snap.Indicators
	}

	return s.Render(in, format)
}

// Render formats an already assembled report input.
func (s *Service) Render(in report.Input, format string) (*Report, error) {
	date := in.Context.DataTimestamp
	if date.IsZero() {
		date = s.now()
	}
	filename := report.Filename(in.Context.Ticker, in.Contract, date, format)

	switch strings.ToLower(format) {
	case FormatMarkdown:
		return &Report{
			Filename:    filename,
			ContentType: "text/markdown; charset=utf-8",
			Body:        []byte(s.reports.Markdown(in)),
		}, nil
	case FormatHTML:
		body, err := s.reports.HTML(in)
		if err != nil {
			return nil, fmt.Errorf("render html report: %w", err)
		}
		return &Report{Filename: filename, ContentType: "text/html; charset=utf-8", Body: body}, nil
	case FormatPDF:
		body, err := s.reports.PDF(in)
		if err != nil {
			return nil, fmt.Errorf("render pdf report: %w", err)
		}
		return &Report{Filename: filename, ContentType: "application/pdf", Body: body}, nil
	default:
		return nil, fmt.Errorf("%w: unknown report format %q", ErrInvalidRequest, format)
	}
}
