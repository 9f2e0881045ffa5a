// internal/ui/watch.go
package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain/solbc/transaction"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/ui/style"
)

// DefaultWatchInterval - период опроса статусов
const DefaultWatchInterval = 2 * time.Second

// StatusSource - источник статусов подписей (transaction.Monitor)
type StatusSource interface {
	GetTransactionStatus(ctx context.Context, signature solana.Signature) (*transaction.Status, error)
}

type watchEntry struct {
	signature solana.Signature
	status    *transaction.Status
	err       string
	checks    int
}

// settled - исход известен: подтверждена или упала
func (e *watchEntry) settled() bool {
	if e.status == nil {
		return false
	}
	switch e.status.Status {
	case transaction.StatusConfirmed, transaction.StatusFinalized, transaction.StatusFailed:
		return true
	}
	return false
}

// final - дальше опрашивать незачем
func (e *watchEntry) final() bool {
	return e.status != nil &&
		(e.status.Status == transaction.StatusFinalized || e.status.Status == transaction.StatusFailed)
}

// WatchModel - живой просмотр статусов отправленных транзакций
type WatchModel struct {
	ctx      context.Context
	source   StatusSource
	entries  []*watchEntry
	index    map[string]*watchEntry
	interval time.Duration

	// Выйти, когда исход всех подписей известен
	ExitWhenSettled bool

	spinner  spinner.Model
	help     help.Model
	keys     KeyMap
	renderer *Renderer
	palette  style.Palette
	logger   *zap.Logger
	width    int
}

// NewWatchModel проверяет подписи и создает модель
func NewWatchModel(ctx context.Context, source StatusSource, signatures []string, interval time.Duration, logger *zap.Logger) (*WatchModel, error) {
	if len(signatures) == 0 {
		return nil, fmt.Errorf("no signatures to watch")
	}
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	m := &WatchModel{
		ctx:      ctx,
		source:   source,
		index:    make(map[string]*watchEntry, len(signatures)),
		interval: interval,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:     help.New(),
		keys:     DefaultKeyMap(),
		renderer: NewRenderer(),
		palette:  style.DefaultPalette(),
		logger:   logger.Named("watch"),
	}
	m.spinner.Style = lipgloss.NewStyle().Foreground(m.palette.Warning)

	for _, raw := range signatures {
		sig, err := solana.SignatureFromBase58(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid signature %q: %w", raw, err)
		}
		if _, dup := m.index[sig.String()]; dup {
			continue
		}
		entry := &watchEntry{signature: sig}
		m.entries = append(m.entries, entry)
		m.index[sig.String()] = entry
	}
	return m, nil
}

// Settled сообщает, известен ли исход всех подписей
func (m *WatchModel) Settled() bool {
	for _, e := range m.entries {
		if !e.settled() {
			return false
		}
	}
	return true
}

// Statuses возвращает последние известные статусы в порядке подписей
func (m *WatchModel) Statuses() []*transaction.Status {
	out := make([]*transaction.Status, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.status)
	}
	return out
}

func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll(), m.tick())
}

func (m *WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// poll запрашивает статусы всех незавершенных подписей
func (m *WatchModel) poll() tea.Cmd {
	var cmds []tea.Cmd
	for _, e := range m.entries {
		if e.final() {
			continue
		}
		cmds = append(cmds, m.fetch(e.signature))
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (m *WatchModel) fetch(sig solana.Signature) tea.Cmd {
	source, ctx := m.source, m.ctx
	return func() tea.Msg {
		status, err := source.GetTransactionStatus(ctx, sig)
		return StatusMsg{Signature: sig.String(), Status: status, Err: err}
	}
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.poll()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case StatusMsg:
		entry, ok := m.index[msg.Signature]
		if !ok {
			return m, nil
		}
		entry.checks++
		if msg.Err != nil {
			entry.err = msg.Err.Error()
			m.logger.Debug("Status check failed", zap.String("signature", msg.Signature), zap.Error(msg.Err))
			return m, nil
		}
		entry.err = ""
		entry.status = msg.Status
		if m.ExitWhenSettled && m.Settled() {
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		if m.allFinal() {
			return m, nil
		}
		return m, tea.Batch(m.poll(), m.tick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *WatchModel) allFinal() bool {
	for _, e := range m.entries {
		if !e.final() {
			return false
		}
	}
	return true
}

func (m *WatchModel) View() string {
	rows := make([][]string, 0, len(m.entries))
	for _, e := range m.entries {
		status, slot, confirmations := "pending", "-", "-"
		if e.status != nil {
			status = e.status.Status
			if e.status.Slot > 0 {
				slot = strconv.FormatUint(e.status.Slot, 10)
			}
			confirmations = strconv.FormatUint(e.status.Confirmations, 10)
		}
		detail := e.err
		if detail == "" && e.status != nil {
			detail = e.status.Error
		}
		rows = append(rows, []string{e.signature.String(), status, slot, confirmations, detail})
	}

	var b strings.Builder
	title := "Watching transactions"
	if !m.Settled() {
		title = m.spinner.View() + " " + title
	}
	b.WriteString(m.renderer.header.Title.Render(title))
	b.WriteString("\n")
	b.WriteString(m.renderer.table([]string{"Signature", "Status", "Slot", "Confirmations", "Error"}, rows, 1))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}
