// Package tui is the terminal front end for the RSI gateway. It is served
// over SSH by cmd/ssh and talks to the gateway through internal/client.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"rsi-lens/internal/client"
	"rsi-lens/internal/domain"
	"rsi-lens/internal/export"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const defaultRequestTimeout = 45 * time.Second

// Gateway is the part of *client.Client the model needs.
type Gateway interface {
	LiveRSI(ctx context.Context, symbol string) (*domain.LiveRSIResult, error)
	HistoricalRSI(ctx context.Context, symbol, start, end string) (*domain.RSISeries, error)
}

type Mode int

const (
	ModeLive Mode = iota
	ModeHistorical
)

func (m Mode) String() string {
	if m == ModeHistorical {
		return "Historical"
	}
	return "Live"
}

const (
	inputTicker = iota
	inputStart
	inputEnd
)

type Options struct {
	DisplayCount   int
	ExportDir      string
	RequestTimeout time.Duration
	Username       string
}

type liveResultMsg struct {
	seq    int
	result *domain.LiveRSIResult
	err    error
}

type historicalResultMsg struct {
	seq    int
	series *domain.RSISeries
	err    error
}

type exportedMsg struct {
	path string
	err  error
}

// Model holds the transient view state for one session.
type Model struct {
	gateway Gateway
	opts    Options

	mode    Mode
	inputs  []textinput.Model
	focus   int
	spinner spinner.Model

	loading bool
	seq     int

	live   *domain.LiveRSIResult
	series *domain.RSISeries

	errMsg      string
	errDetails  string
	showDetails bool
	status      string

	width  int
	height int
}

func New(gateway Gateway, opts Options) Model {
	if opts.DisplayCount <= 0 {
		opts.DisplayCount = export.DefaultDisplayCount
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}

	ticker := textinput.New()
	ticker.Placeholder = "Enter stock ticker (e.g., AAPL)"
	ticker.CharLimit = 12
	ticker.Width = 32
	ticker.Focus()

	start := textinput.New()
	start.Placeholder = "Start date (YYYY-MM-DD)"
	start.CharLimit = 10
	start.Width = 24

	end := textinput.New()
	end.Placeholder = "End date (YYYY-MM-DD)"
	end.CharLimit = 10
	end.Width = 24

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle

	return Model{
		gateway: gateway,
		opts:    opts,
		inputs:  []textinput.Model{ticker, start, end},
		spinner: sp,
	}
}

// SetSize records the terminal dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab":
			return m.toggleMode()
		case "up", "shift+tab":
			return m.moveFocus(-1)
		case "down":
			return m.moveFocus(1)
		case "enter":
			return m.submit()
		case "ctrl+d":
			if m.errMsg != "" && m.errDetails != "" {
				m.showDetails = !m.showDetails
			}
			return m, nil
		case "ctrl+s":
			return m.exportCSV()
		}

	case liveResultMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.live = msg.result
		return m, nil

	case historicalResultMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.series = msg.series
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.status = "Export failed: " + msg.err.Error()
			return m, nil
		}
		m.status = "Saved " + msg.path
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) visibleInputs() int {
	if m.mode == ModeHistorical {
		return len(m.inputs)
	}
	return 1
}

func (m Model) toggleMode() (tea.Model, tea.Cmd) {
	if m.mode == ModeLive {
		m.mode = ModeHistorical
	} else {
		m.mode = ModeLive
	}
	m.clearResult()
	// Drop any response still in flight for the previous mode.
	m.seq++
	m.loading = false
	return m.setFocus(inputTicker)
}

func (m Model) moveFocus(delta int) (tea.Model, tea.Cmd) {
	n := m.visibleInputs()
	return m.setFocus((m.focus + delta + n) % n)
}

func (m Model) setFocus(i int) (tea.Model, tea.Cmd) {
	m.focus = i
	var cmd tea.Cmd
	for j := range m.inputs {
		if j == i {
			cmd = m.inputs[j].Focus()
			continue
		}
		m.inputs[j].Blur()
	}
	return m, cmd
}

func (m *Model) clearResult() {
	m.live = nil
	m.series = nil
	m.errMsg = ""
	m.errDetails = ""
	m.showDetails = false
	m.status = ""
}

func (m *Model) setError(err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		m.errMsg = apiErr.Message
		m.errDetails = apiErr.Details
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		m.errMsg = "Request timed out"
		m.errDetails = err.Error()
		return
	}
	m.errMsg = "Failed to fetch RSI data"
	m.errDetails = err.Error()
}

// submit issues exactly one gateway call. Responses tagged with an older
// sequence number are dropped when they arrive.
func (m Model) submit() (tea.Model, tea.Cmd) {
	m.clearResult()
	symbol := domain.NormalizeSymbol(m.inputs[inputTicker].Value())
	m.inputs[inputTicker].SetValue(symbol)

	m.loading = true
	m.seq++
	seq := m.seq
	gw := m.gateway
	timeout := m.opts.RequestTimeout

	var fetch tea.Cmd
	if m.mode == ModeHistorical {
		start := strings.TrimSpace(m.inputs[inputStart].Value())
		end := strings.TrimSpace(m.inputs[inputEnd].Value())
		fetch = func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			series, err := gw.HistoricalRSI(ctx, symbol, start, end)
			return historicalResultMsg{seq: seq, series: series, err: err}
		}
	} else {
		fetch = func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			result, err := gw.LiveRSI(ctx, symbol)
			return liveResultMsg{seq: seq, result: result, err: err}
		}
	}
	return m, tea.Batch(fetch, m.spinner.Tick)
}

// exportCSV writes the rows currently on screen.
func (m Model) exportCSV() (tea.Model, tea.Cmd) {
	if m.mode != ModeHistorical || m.series == nil || len(m.series.Points) == 0 {
		m.status = "Nothing to export"
		return m, nil
	}
	dir := m.opts.ExportDir
	symbol := m.series.Symbol
	points := export.Visible(m.series.Points, m.opts.DisplayCount)
	return m, func() tea.Msg {
		path, err := export.SaveCSV(dir, symbol, points)
		return exportedMsg{path: path, err: err}
	}
}
