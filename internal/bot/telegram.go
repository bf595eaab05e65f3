package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"rsi-lens/internal/advisor"
	"rsi-lens/internal/apperror"
	"rsi-lens/internal/chart"
	"rsi-lens/internal/domain"
	"rsi-lens/internal/export"

	tele "gopkg.in/telebot.v3"
)

const requestTimeout = 45 * time.Second

// RSIReader is satisfied by *service.RSIService.
type RSIReader interface {
	GetLiveRSI(ctx context.Context, symbol string) (*domain.LiveRSIResult, error)
	GetHistoricalRSI(ctx context.Context, symbol string, rng domain.QueryRange) (*domain.RSISeries, error)
}

// Interpreter is satisfied by *advisor.Interpreter.
type Interpreter interface {
	Interpret(ctx context.Context, result domain.LiveRSIResult) (string, error)
}

type Bot struct {
	rsi          RSIReader
	interpreter  Interpreter
	displayCount int
	renderChart  func(*domain.RSISeries) ([]byte, error)
}

// historicalReply is everything /rsihist sends back.
type historicalReply struct {
	Text     string
	CSV      []byte
	CSVName  string
	Chart    []byte
	HasChart bool
}

func NewBot(rsi RSIReader, interpreter Interpreter, displayCount int) *Bot {
	if displayCount <= 0 {
		displayCount = export.DefaultDisplayCount
	}
	return &Bot{
		rsi:          rsi,
		interpreter:  interpreter,
		displayCount: displayCount,
		renderChart:  chart.RenderRSI,
	}
}

// StartTelegramBot registers the command handlers and starts long polling
// in the background. It returns nil when token is empty.
func StartTelegramBot(token string, b *Bot) *tele.Bot {
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	tb, err := tele.NewBot(pref)
	if err != nil {
		log.Printf("failed to create Telegram bot: %v", err)
		return nil
	}

	tb.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	tb.Handle("/rsi", func(c tele.Context) error {
		return c.Send(b.liveReply(c.Args()))
	})

	tb.Handle("/rsihist", func(c tele.Context) error {
		reply := b.historicalReply(c.Args())
		if err := c.Send(reply.Text); err != nil {
			return err
		}
		if reply.CSV != nil {
			doc := &tele.Document{File: tele.FromReader(bytes.NewReader(reply.CSV)), FileName: reply.CSVName, MIME: "text/csv"}
			if err := c.Send(doc); err != nil {
				return err
			}
		}
		if reply.HasChart {
			return c.Send(&tele.Photo{File: tele.FromReader(bytes.NewReader(reply.Chart))})
		}
		return nil
	})

	tb.Handle(tele.OnText, func(c tele.Context) error {
		symbols := advisor.ExtractSymbols(c.Text())
		if len(symbols) == 0 {
			return nil
		}
		return c.Send(b.liveReply(symbols[:1]))
	})

	log.Println("Telegram bot started")
	go tb.Start()
	return tb
}

// liveReply builds the /rsi answer. Usage and lookup failures are replies
// too.
func (b *Bot) liveReply(args []string) string {
	if len(args) == 0 {
		return "Usage: /rsi IBM"
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	result, err := b.rsi.GetLiveRSI(ctx, args[0])
	if err != nil {
		return describeError(domain.NormalizeSymbol(args[0]), err)
	}

	msg := formatLive(result)
	if b.interpreter != nil {
		note, err := b.interpreter.Interpret(ctx, *result)
		if err != nil {
			log.Printf("interpret %s: %v", result.Symbol, err)
		} else if note != "" {
			msg += "\n\n" + note
		}
	}
	return msg
}

func (b *Bot) historicalReply(args []string) *historicalReply {
	if len(args) < 3 {
		return &historicalReply{Text: "Usage: /rsihist IBM 2024-01-01 2024-03-01"}
	}
	symbol := domain.NormalizeSymbol(args[0])
	start, err := domain.ParseDate(args[1])
	if err != nil {
		return &historicalReply{Text: fmt.Sprintf("Invalid startDate: %v", err)}
	}
	end, err := domain.ParseDate(args[2])
	if err != nil {
		return &historicalReply{Text: fmt.Sprintf("Invalid endDate: %v", err)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	series, err := b.rsi.GetHistoricalRSI(ctx, symbol, domain.QueryRange{Start: start, End: end})
	if err != nil {
		return &historicalReply{Text: describeError(symbol, err)}
	}

	visible := export.Visible(series.Points, b.displayCount)
	reply := &historicalReply{Text: formatTable(series.Symbol, visible, len(series.Points))}
	if len(visible) == 0 {
		return reply
	}

	csvData, err := export.CSV(visible)
	if err != nil {
		log.Printf("render csv for %s: %v", symbol, err)
	} else if name, err := export.Filename(series.Symbol, visible); err == nil {
		reply.CSV = csvData
		reply.CSVName = name
	}

	png, err := b.renderChart(series)
	switch {
	case errors.Is(err, chart.ErrNotEnoughPoints):
	case err != nil:
		log.Printf("render chart for %s: %v", symbol, err)
	default:
		reply.Chart = png
		reply.HasChart = true
	}
	return reply
}

func formatLive(r *domain.LiveRSIResult) string {
	return fmt.Sprintf(
		"RSI Analysis for %s\nRSI Value: %s (%s)\nLast Updated: %s",
		r.Symbol, export.FormatRSI(r.RSI), domain.ClassifyRSI(r.RSI), export.FormatDisplayDate(r.Timestamp),
	)
}

func formatTable(symbol string, visible []domain.RSIPoint, total int) string {
	if total == 0 {
		return fmt.Sprintf("No RSI data for %s in the selected range", symbol)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Historical RSI for %s\n", symbol))
	for _, p := range visible {
		sb.WriteString(fmt.Sprintf("%s  %s\n", export.DisplayDate(p.Date), export.FormatRSI(p.RSI)))
	}
	sb.WriteString(export.Summary(len(visible), total))
	return sb.String()
}

func describeError(symbol string, err error) string {
	appErr := apperror.From(err, "Failed to fetch RSI data")
	if appErr.Details != "" {
		return fmt.Sprintf("Error fetching RSI for %s: %s (%s)", symbol, appErr.Message, appErr.Details)
	}
	return fmt.Sprintf("Error fetching RSI for %s: %s", symbol, appErr.Message)
}
