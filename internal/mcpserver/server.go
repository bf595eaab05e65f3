// Package mcpserver exposes the RSI lookups as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"rsi-lens/internal/apperror"
	"rsi-lens/internal/domain"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RSIReader is satisfied by *service.RSIService.
type RSIReader interface {
	GetLiveRSI(ctx context.Context, symbol string) (*domain.LiveRSIResult, error)
	GetHistoricalRSI(ctx context.Context, symbol string, rng domain.QueryRange) (*domain.RSISeries, error)
}

type GetRSIInput struct {
	Symbol string `json:"symbol" jsonschema:"stock ticker, e.g. IBM"`
}

type GetRSIOutput struct {
	Symbol    string  `json:"symbol"`
	RSI       float64 `json:"rsi"`
	Timestamp string  `json:"timestamp"`
}

type GetHistoricalRSIInput struct {
	Symbol    string `json:"symbol" jsonschema:"stock ticker, e.g. IBM"`
	StartDate string `json:"start_date" jsonschema:"first date to include, YYYY-MM-DD"`
	EndDate   string `json:"end_date" jsonschema:"last date to include, YYYY-MM-DD"`
}

type RSIPointOutput struct {
	Date string  `json:"date"`
	RSI  float64 `json:"rsi"`
}

type GetHistoricalRSIOutput struct {
	Symbol  string           `json:"symbol"`
	Data    []RSIPointOutput `json:"data"`
	Skipped int              `json:"skipped,omitempty"`
}

type tools struct {
	rsi RSIReader
}

// NewServer builds an MCP server with the get_rsi and get_historical_rsi
// tools registered.
func NewServer(rsi RSIReader, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "rsi-lens", Version: version}, nil)
	t := &tools{rsi: rsi}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_rsi",
		Description: "Latest daily 14-period RSI (close) for a stock ticker.",
	}, t.getRSI)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_historical_rsi",
		Description: "Daily 14-period RSI (close) readings between two dates inclusive, newest first.",
	}, t.getHistoricalRSI)

	return server
}

func (t *tools) getRSI(ctx context.Context, req *mcp.CallToolRequest, in GetRSIInput) (*mcp.CallToolResult, GetRSIOutput, error) {
	result, err := t.rsi.GetLiveRSI(ctx, in.Symbol)
	if err != nil {
		return nil, GetRSIOutput{}, toolError(err)
	}
	return nil, GetRSIOutput{Symbol: result.Symbol, RSI: result.RSI, Timestamp: result.Timestamp}, nil
}

func (t *tools) getHistoricalRSI(ctx context.Context, req *mcp.CallToolRequest, in GetHistoricalRSIInput) (*mcp.CallToolResult, GetHistoricalRSIOutput, error) {
	if domain.NormalizeSymbol(in.Symbol) == "" || in.StartDate == "" || in.EndDate == "" {
		return nil, GetHistoricalRSIOutput{}, errors.New("missing required parameters: symbol, start_date, end_date")
	}
	start, err := domain.ParseDate(in.StartDate)
	if err != nil {
		return nil, GetHistoricalRSIOutput{}, fmt.Errorf("invalid start_date: %w", err)
	}
	end, err := domain.ParseDate(in.EndDate)
	if err != nil {
		return nil, GetHistoricalRSIOutput{}, fmt.Errorf("invalid end_date: %w", err)
	}

	series, err := t.rsi.GetHistoricalRSI(ctx, in.Symbol, domain.QueryRange{Start: start, End: end})
	if err != nil {
		return nil, GetHistoricalRSIOutput{}, toolError(err)
	}

	out := GetHistoricalRSIOutput{
		Symbol:  series.Symbol,
		Data:    make([]RSIPointOutput, 0, len(series.Points)),
		Skipped: series.Skipped,
	}
	for _, p := range series.Points {
		out.Data = append(out.Data, RSIPointOutput{Date: p.DateString(), RSI: p.RSI})
	}
	return nil, out, nil
}

// toolError flattens a gateway error into the message a model sees.
func toolError(err error) error {
	appErr := apperror.From(err, "Failed to fetch RSI data")
	if appErr.Details != "" {
		return fmt.Errorf("%s: %s", appErr.Message, appErr.Details)
	}
	return errors.New(appErr.Message)
}
