// internal/ui/ui_test.go
package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	solrpc "github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain/solbc/rpc"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain/solbc/transaction"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/export"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/medweb3"
)

const (
	sigA = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"
	sigB = "3yZe7d5m8ykJ1kQ5V5P2vFGwJw3oHNVAmUKYxkDwNv6JLNWcV1bqZXz4zjWfzQrNTXvE9UHyBhUJQZRUeFpJbWyD"
)

type fakeSource struct {
	mu       sync.Mutex
	statuses map[string]*transaction.Status
	err      error
}

func (f *fakeSource) GetTransactionStatus(_ context.Context, sig solana.Signature) (*transaction.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if st, ok := f.statuses[sig.String()]; ok {
		return st, nil
	}
	return &transaction.Status{Signature: sig.String(), Status: transaction.StatusPending}, nil
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "9xQe…VFin", ShortAddress("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"))
	assert.Equal(t, "short", ShortAddress("short"))
}

func TestRenderReport(t *testing.T) {
	confirmed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	program := solana.MustPublicKeyFromBase58(medweb3.DefaultProgramID)
	report := &export.Report{
		ProgramID: program.String(),
		Connection: &medweb3.ConnectionStatus{
			Connected:  true,
			Endpoint:   "https://api.devnet.solana.com",
			ProgramID:  program.String(),
			Wallet:     "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T",
			BalanceSOL: 1.5,
		},
		ProgramAccounts: []medweb3.ProgramAccount{{
			Address:    "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
			Lamports:   1_500_000,
			DataLength: 77,
			Batch:      &medweb3.BatchAccount{BatchID: "BATCH-001", CurrentOwner: program},
		}},
		RecentSignatures: []medweb3.SignatureInfo{{Signature: sigA, Slot: 101, Succeeded: true}},
		Receipts: []export.Receipt{{
			OrderID:      "order-2",
			BatchID:      "BATCH-001",
			BatchAccount: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
			Signature:    sigB,
			ConfirmedAt:  &confirmed,
			ExplorerURL:  "https://explorer.solana.com/tx/" + sigB + "?cluster=devnet",
		}},
		MissingReceipts: []string{"order-1"},
		Summary:         export.Summary{ProgramAccounts: 1, Orders: 2, OrdersWithReceipts: 1, OrdersMissing: 1},
	}

	out := NewRenderer().RenderReport(report)
	for _, want := range []string{
		"online",
		"1.5000 SOL",
		"Summary",
		"BATCH-001",
		"1500000",
		"5VER…kQUW",
		"order-2",
		"2026-03-01 10:00:00",
		"?cluster=devnet",
		"Orders without receipts (1)",
		"order-1",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRenderEmptyTables(t *testing.T) {
	r := NewRenderer()
	assert.Contains(t, r.RenderProgramAccounts(nil), "No program accounts")
	assert.Contains(t, r.RenderHistory(nil), "No transactions")
	assert.Contains(t, r.RenderReceipts(nil, nil), "No orders recorded on-chain")
	assert.Empty(t, r.RenderStatus(nil))

	down := r.RenderStatus(&medweb3.ConnectionStatus{Endpoint: "http://localhost:8899", Error: "connection refused"})
	assert.Contains(t, down, "offline")
	assert.Contains(t, down, "connection refused")
}

func TestRenderNodes(t *testing.T) {
	r := NewRenderer()
	assert.Contains(t, r.RenderNodes(nil), "No RPC nodes")

	out := r.RenderNodes([]solrpc.NodeStats{
		{URL: "https://rpc-a.example.com", Active: true, SuccessCount: 12, AvgLatency: 42 * time.Millisecond},
		{URL: "https://rpc-b.example.com", ErrorCount: 3},
	})
	assert.Contains(t, out, "rpc-a.example.com")
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "cooldown")
	assert.Contains(t, out, "42ms")
}

func TestRenderHistory(t *testing.T) {
	out := NewRenderer().RenderHistory([]medweb3.HistoryEntry{
		{SignatureInfo: medweb3.SignatureInfo{Signature: sigA, Slot: 7, Succeeded: true}, Fee: 5000},
		{SignatureInfo: medweb3.SignatureInfo{Signature: sigB, Slot: 8, Err: "custom program error: 0x1"}, Fee: 5000},
	})
	assert.Contains(t, out, sigA)
	assert.Contains(t, out, "5000")
	assert.Contains(t, out, "failed")
}

func TestNewWatchModelValidation(t *testing.T) {
	_, err := NewWatchModel(context.Background(), &fakeSource{}, nil, 0, zap.NewNop())
	assert.Error(t, err)

	_, err = NewWatchModel(context.Background(), &fakeSource{}, []string{"not-a-signature"}, 0, zap.NewNop())
	assert.ErrorContains(t, err, "invalid signature")

	m, err := NewWatchModel(context.Background(), &fakeSource{}, []string{sigA, sigA, sigB}, 0, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, m.entries, 2)
	assert.Equal(t, DefaultWatchInterval, m.interval)
}

func TestWatchModelUpdates(t *testing.T) {
	source := &fakeSource{statuses: map[string]*transaction.Status{
		sigA: {Signature: sigA, Status: transaction.StatusConfirmed, Slot: 120, Confirmations: 3},
	}}
	m, err := NewWatchModel(context.Background(), source, []string{sigA, sigB}, time.Second, zap.NewNop())
	require.NoError(t, err)
	m.ExitWhenSettled = true

	// Опрос выполняет команды fetch напрямую
	msg := m.fetch(m.entries[0].signature)()
	_, cmd := m.Update(msg)
	assert.Nil(t, cmd)
	assert.False(t, m.Settled())

	msg = m.fetch(m.entries[1].signature)()
	_, cmd = m.Update(msg)
	assert.Nil(t, cmd)
	assert.Equal(t, transaction.StatusPending, m.Statuses()[1].Status)

	view := m.View()
	assert.Contains(t, view, "Watching transactions")
	assert.Contains(t, view, "confirmed")
	assert.Contains(t, view, "120")

	// Ошибка опроса не сбрасывает статус
	source.err = errors.New("node down")
	_, _ = m.Update(m.fetch(m.entries[0].signature)())
	assert.Equal(t, transaction.StatusConfirmed, m.Statuses()[0].Status)
	assert.Contains(t, m.View(), "node down")
	source.err = nil

	_, cmd = m.Update(StatusMsg{Signature: sigB, Status: &transaction.Status{Signature: sigB, Status: transaction.StatusFailed, Error: "custom program error: 0x1"}})
	assert.True(t, m.Settled())
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestWatchModelStopsPollingFinal(t *testing.T) {
	m, err := NewWatchModel(context.Background(), &fakeSource{}, []string{sigA}, time.Second, zap.NewNop())
	require.NoError(t, err)

	assert.NotNil(t, m.poll())
	m.Update(StatusMsg{Signature: sigA, Status: &transaction.Status{Status: transaction.StatusFinalized}})
	assert.Nil(t, m.poll())

	_, cmd := m.Update(tickMsg(time.Now()))
	assert.Nil(t, cmd)
}

func TestWatchModelKeys(t *testing.T) {
	m, err := NewWatchModel(context.Background(), &fakeSource{}, []string{sigA}, time.Second, zap.NewNop())
	require.NoError(t, err)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.Nil(t, cmd)
	assert.True(t, m.help.ShowAll)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.NotNil(t, cmd)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

// panicModel падает в Update и View
type panicModel struct{}

func (panicModel) Init() tea.Cmd                       { return nil }
func (panicModel) Update(tea.Msg) (tea.Model, tea.Cmd) { panic("update panic test") }
func (panicModel) View() string                        { panic("view panic test") }

func TestSafeUIWrapperRecovers(t *testing.T) {
	wrapper := NewSafeUIWrapper(panicModel{}, zap.NewNop())

	model, cmd := wrapper.Update(tickMsg(time.Now()))
	assert.Same(t, wrapper, model)
	assert.Nil(t, cmd)
	assert.Contains(t, wrapper.View(), "View crashed")
}

// quitModel сразу завершает программу
type quitModel struct{ inited bool }

func (m *quitModel) Init() tea.Cmd                       { m.inited = true; return tea.Quit }
func (m *quitModel) Update(tea.Msg) (tea.Model, tea.Cmd) { return m, nil }
func (m *quitModel) View() string                        { return "bye" }

func TestRunReturnsInnerModel(t *testing.T) {
	var out bytes.Buffer
	final, err := Run(&quitModel{}, zap.NewNop(),
		tea.WithInput(strings.NewReader("")),
		tea.WithOutput(&out),
		tea.WithoutSignalHandler())
	require.NoError(t, err)

	qm, ok := final.(*quitModel)
	require.True(t, ok)
	assert.True(t, qm.inited)
}
