package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"rsi-lens/internal/apperror"
	"rsi-lens/internal/domain"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type stubRSI struct {
	live     *domain.LiveRSIResult
	series   *domain.RSISeries
	err      error
	gotRange domain.QueryRange
	calls    int
}

func (s *stubRSI) GetLiveRSI(ctx context.Context, symbol string) (*domain.LiveRSIResult, error) {
	s.calls++
	return s.live, s.err
}

func (s *stubRSI) GetHistoricalRSI(ctx context.Context, symbol string, rng domain.QueryRange) (*domain.RSISeries, error) {
	s.calls++
	s.gotRange = rng
	return s.series, s.err
}

func TestGetRSI(t *testing.T) {
	tl := &tools{rsi: &stubRSI{live: &domain.LiveRSIResult{Symbol: "IBM", RSI: 55.5, Timestamp: "2024-01-12 16:00:01"}}}
	_, out, err := tl.getRSI(context.Background(), nil, GetRSIInput{Symbol: "ibm"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != (GetRSIOutput{Symbol: "IBM", RSI: 55.5, Timestamp: "2024-01-12 16:00:01"}) {
		t.Fatalf("unexpected output %+v", out)
	}
}

func TestGetRSIError(t *testing.T) {
	tl := &tools{rsi: &stubRSI{err: apperror.RateLimit("slow down")}}
	_, _, err := tl.getRSI(context.Background(), nil, GetRSIInput{Symbol: "IBM"})
	if err == nil || err.Error() != "API rate limit reached. Please try again later.: slow down" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestGetHistoricalRSI(t *testing.T) {
	stub := &stubRSI{series: &domain.RSISeries{Symbol: "IBM", Points: []domain.RSIPoint{
		{Date: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), RSI: 60.1},
		{Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), RSI: 58.75},
	}}}
	tl := &tools{rsi: stub}

	_, out, err := tl.getHistoricalRSI(context.Background(), nil, GetHistoricalRSIInput{Symbol: "IBM", StartDate: "2024-01-10", EndDate: "2024-01-11"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.gotRange.Start.Format(domain.DateLayout) != "2024-01-10" || stub.gotRange.End.Format(domain.DateLayout) != "2024-01-11" {
		t.Fatalf("unexpected range %+v", stub.gotRange)
	}
	data, _ := json.Marshal(out)
	want := `{"symbol":"IBM","data":[{"date":"2024-01-11","rsi":60.1},{"date":"2024-01-10","rsi":58.75}]}`
	if string(data) != want {
		t.Fatalf("unexpected output %s", data)
	}
}

func TestGetHistoricalRSIReportsSkipped(t *testing.T) {
	tl := &tools{rsi: &stubRSI{series: &domain.RSISeries{
		Symbol:  "IBM",
		Points:  []domain.RSIPoint{{Date: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), RSI: 60.1}},
		Skipped: 2,
	}}}
	_, out, err := tl.getHistoricalRSI(context.Background(), nil, GetHistoricalRSIInput{Symbol: "IBM", StartDate: "2024-01-01", EndDate: "2024-01-31"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := json.Marshal(out)
	want := `{"symbol":"IBM","data":[{"date":"2024-01-11","rsi":60.1}],"skipped":2}`
	if string(data) != want {
		t.Fatalf("unexpected output %s", data)
	}
}

func TestGetHistoricalRSIEmptySeriesIsNotNull(t *testing.T) {
	tl := &tools{rsi: &stubRSI{series: &domain.RSISeries{Symbol: "IBM", Points: []domain.RSIPoint{}}}}
	_, out, err := tl.getHistoricalRSI(context.Background(), nil, GetHistoricalRSIInput{Symbol: "IBM", StartDate: "2024-02-01", EndDate: "2024-01-01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Data == nil || len(out.Data) != 0 {
		t.Fatalf("expected empty non-nil data, got %#v", out.Data)
	}
}

func TestGetHistoricalRSIValidation(t *testing.T) {
	stub := &stubRSI{}
	tl := &tools{rsi: stub}
	tests := map[string]GetHistoricalRSIInput{
		"missing required parameters": {Symbol: " ", StartDate: "2024-01-01", EndDate: "2024-01-31"},
		"invalid start_date":          {Symbol: "IBM", StartDate: "yesterday", EndDate: "2024-01-31"},
		"invalid end_date":            {Symbol: "IBM", StartDate: "2024-01-01", EndDate: "2024/01/31"},
	}
	for want, in := range tests {
		_, _, err := tl.getHistoricalRSI(context.Background(), nil, in)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q, got %v", want, err)
		}
	}
	if stub.calls != 0 {
		t.Fatalf("expected no service calls, got %d", stub.calls)
	}
}

func TestServerOverInMemoryTransport(t *testing.T) {
	ctx := context.Background()
	server := NewServer(&stubRSI{live: &domain.LiveRSIResult{Symbol: "IBM", RSI: 42, Timestamp: "2024-01-12"}}, "test")

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer cs.Close()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "get_rsi", Arguments: map[string]any{"symbol": "IBM"}})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}
	if len(res.Content) == 0 {
		t.Fatal("expected content")
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok || !strings.Contains(text.Text, `"rsi":42`) {
		t.Fatalf("unexpected content %+v", res.Content[0])
	}
}
