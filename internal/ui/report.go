// internal/ui/report.go
package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	solrpc "github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain/solbc/rpc"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/export"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/medweb3"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/ui/style"
)

// Renderer рисует отчеты аудита в терминале
type Renderer struct {
	palette style.Palette
	header  style.HeaderStyles
	tables  style.TableStyles
}

func NewRenderer() *Renderer {
	palette := style.DefaultPalette()
	return &Renderer{
		palette: palette,
		header:  style.NewHeaderStyles(palette),
		tables:  style.NewTableStyles(palette),
	}
}

// ShortAddress сокращает адрес до вида abcd…wxyz
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func (r *Renderer) table(headers []string, rows [][]string, statusCol int) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.tables.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.tables.Header
			}
			if col == statusCol && row >= 0 && row < len(rows) {
				return style.Status(r.palette, rows[row][col]).Padding(0, 1)
			}
			return r.tables.Cell
		})
	return t.Render()
}

func (r *Renderer) section(title string) string {
	return r.tables.Section.Render(title)
}

func (r *Renderer) empty(text string) string {
	return r.tables.Muted.Render(text)
}

// RenderStatus рисует шапку состояния узла и кошелька
func (r *Renderer) RenderStatus(status *medweb3.ConnectionStatus) string {
	if status == nil {
		return ""
	}
	line := func(label, value string) string {
		return r.header.Label.Render(label+": ") + r.header.Value.Render(value)
	}

	rpc := r.header.RPCBad.Render("● offline")
	if status.Connected {
		rpc = r.header.RPCGood.Render("● online")
	}

	lines := []string{
		r.header.Title.Render("medchain") + "  " + rpc,
		line("Endpoint", status.Endpoint),
		line("Program", status.ProgramID),
	}
	if status.Version != "" {
		lines = append(lines, line("Version", status.Version))
	}
	if status.Wallet != "" {
		lines = append(lines,
			line("Wallet", status.Wallet),
			line("Balance", fmt.Sprintf("%.4f SOL", status.BalanceSOL)))
	}
	if status.Error != "" {
		lines = append(lines, r.header.RPCBad.Render("Error: "+status.Error))
	}
	return r.header.Container.Render(strings.Join(lines, "\n"))
}

// RenderNodes рисует узлы пула RPC
func (r *Renderer) RenderNodes(nodes []solrpc.NodeStats) string {
	if len(nodes) == 0 {
		return r.empty("No RPC nodes")
	}
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		state := "active"
		if !n.Active {
			state = "cooldown"
		}
		rows = append(rows, []string{
			n.URL,
			state,
			strconv.FormatUint(n.SuccessCount, 10),
			strconv.FormatUint(n.ErrorCount, 10),
			n.AvgLatency.Round(time.Millisecond).String(),
		})
	}
	return r.table([]string{"Node", "State", "OK", "Errors", "Latency"}, rows, 1)
}

// RenderProgramAccounts рисует аккаунты программы
func (r *Renderer) RenderProgramAccounts(accounts []medweb3.ProgramAccount) string {
	if len(accounts) == 0 {
		return r.empty("No program accounts")
	}
	rows := make([][]string, 0, len(accounts))
	for _, acc := range accounts {
		batchID, owner := "-", "-"
		if acc.Batch != nil {
			batchID = acc.Batch.BatchID
			owner = ShortAddress(acc.Batch.CurrentOwner.String())
		}
		rows = append(rows, []string{
			acc.Address,
			batchID,
			owner,
			strconv.FormatUint(acc.Lamports, 10),
			strconv.Itoa(acc.DataLength),
		})
	}
	return r.table([]string{"Account", "Batch ID", "Owner", "Lamports", "Size"}, rows, -1)
}

// RenderSignatures рисует последние подписи
func (r *Renderer) RenderSignatures(sigs []medweb3.SignatureInfo) string {
	if len(sigs) == 0 {
		return r.empty("No recent signatures")
	}
	rows := make([][]string, 0, len(sigs))
	for _, s := range sigs {
		status := "confirmed"
		if !s.Succeeded {
			status = "failed"
		}
		rows = append(rows, []string{
			ShortAddress(s.Signature),
			strconv.FormatUint(s.Slot, 10),
			formatTime(s.BlockTime),
			status,
		})
	}
	return r.table([]string{"Signature", "Slot", "Time", "Status"}, rows, 3)
}

// RenderHistory рисует историю транзакций партии
func (r *Renderer) RenderHistory(entries []medweb3.HistoryEntry) string {
	if len(entries) == 0 {
		return r.empty("No transactions")
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		status := "confirmed"
		if !e.Succeeded {
			status = "failed"
		}
		rows = append(rows, []string{
			e.Signature,
			strconv.FormatUint(e.Slot, 10),
			formatTime(e.BlockTime),
			strconv.FormatUint(e.Fee, 10),
			status,
		})
	}
	return r.table([]string{"Signature", "Slot", "Time", "Fee", "Status"}, rows, 4)
}

// RenderReceipts рисует квитанции и заказы без записи в сети
func (r *Renderer) RenderReceipts(receipts []export.Receipt, missing []string) string {
	var b strings.Builder
	b.WriteString(r.section(fmt.Sprintf("Receipts (%d)", len(receipts))))
	b.WriteString("\n")
	if len(receipts) == 0 {
		b.WriteString(r.empty("No orders recorded on-chain"))
	} else {
		rows := make([][]string, 0, len(receipts))
		for _, rc := range receipts {
			rows = append(rows, []string{
				rc.OrderID,
				rc.BatchID,
				ShortAddress(rc.BatchAccount),
				ShortAddress(rc.CurrentOwner),
				formatTime(rc.ConfirmedAt),
				rc.ExplorerURL,
			})
		}
		b.WriteString(r.table([]string{"Order", "Batch ID", "Account", "Owner", "Confirmed", "Explorer"}, rows, -1))
	}

	if len(missing) > 0 {
		b.WriteString("\n")
		b.WriteString(r.section(fmt.Sprintf("Orders without receipts (%d)", len(missing))))
		b.WriteString("\n")
		b.WriteString(strings.Join(missing, "\n"))
	}
	return b.String()
}

// RenderReport рисует полный отчет аудита
func (r *Renderer) RenderReport(report *export.Report) string {
	var b strings.Builder
	if report.Connection != nil {
		b.WriteString(r.RenderStatus(report.Connection))
		b.WriteString("\n")
	}

	s := report.Summary
	b.WriteString(r.section("Summary"))
	b.WriteString("\n")
	b.WriteString(r.table([]string{"Program accounts", "Orders", "With receipt", "Missing", "Confirmed", "Failed", "Timed out"},
		[][]string{{
			strconv.Itoa(s.ProgramAccounts),
			strconv.Itoa(s.Orders),
			strconv.Itoa(s.OrdersWithReceipts),
			strconv.Itoa(s.OrdersMissing),
			strconv.Itoa(s.ConfirmedSubmissions),
			strconv.Itoa(s.FailedSubmissions),
			strconv.Itoa(s.TimedOutSubmissions),
		}}, -1))

	b.WriteString("\n")
	b.WriteString(r.section(fmt.Sprintf("Program accounts (%s)", report.ProgramID)))
	b.WriteString("\n")
	b.WriteString(r.RenderProgramAccounts(report.ProgramAccounts))

	if report.RecentSignatures != nil {
		b.WriteString("\n")
		b.WriteString(r.section("Recent wallet signatures"))
		b.WriteString("\n")
		b.WriteString(r.RenderSignatures(report.RecentSignatures))
	}

	b.WriteString("\n")
	b.WriteString(r.RenderReceipts(report.Receipts, report.MissingReceipts))
	b.WriteString("\n")
	return b.String()
}
