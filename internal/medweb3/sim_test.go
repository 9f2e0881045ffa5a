// internal/medweb3/sim_test.go
package medweb3

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
)

const simFee = 5000

// simCluster - кластер в памяти, исполняющий инструкции medweb3.
// Реализует blockchain.Client.
type simCluster struct {
	mu        sync.Mutex
	programID solana.PublicKey

	accounts map[solana.PublicKey]*rpc.Account
	balances map[solana.PublicKey]uint64
	statuses map[solana.Signature]*rpc.SignatureStatusesResult
	history  map[solana.PublicKey][]solana.Signature
	logs     map[solana.Signature][]string
	slot     uint64

	// Транзакции принимаются, но применяются только после flush
	deferApply bool
	pending    []*solana.Transaction

	// Сеть недоступна
	down bool

	calls atomic.Int64
	sent  atomic.Int64
}

func newSimCluster(programID solana.PublicKey) *simCluster {
	return &simCluster{
		programID: programID,
		accounts:  make(map[solana.PublicKey]*rpc.Account),
		balances:  make(map[solana.PublicKey]uint64),
		statuses:  make(map[solana.Signature]*rpc.SignatureStatusesResult),
		history:   make(map[solana.PublicKey][]solana.Signature),
		logs:      make(map[solana.Signature][]string),
		slot:      100,
	}
}

func (c *simCluster) enter() error {
	c.calls.Add(1)
	if c.down {
		return fmt.Errorf("%w: connection refused", blockchain.ErrNetwork)
	}
	return nil
}

func (c *simCluster) Endpoint() string { return "sim://local" }

func (c *simCluster) GetLatestBlockhash(context.Context) (solana.Hash, error) {
	if err := c.enter(); err != nil {
		return solana.Hash{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var h solana.Hash
	copy(h[:], fmt.Sprintf("blockhash-%d", c.slot))
	return h, nil
}

func (c *simCluster) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := c.enter(); err != nil {
		return solana.Signature{}, err
	}
	c.sent.Add(1)
	sig := tx.Signatures[0]
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, blockchain.NewRejected("signature verification failed", sig.String(), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// preflight
	if _, err := c.simulate(tx); err != nil {
		return solana.Signature{}, blockchain.NewRejected(err.Error(), sig.String(), nil)
	}
	if c.deferApply {
		c.pending = append(c.pending, tx)
		return sig, nil
	}
	c.apply(tx)
	return sig, nil
}

// flush применяет отложенные транзакции
func (c *simCluster) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tx := range c.pending {
		c.apply(tx)
	}
	c.pending = nil
	c.deferApply = false
}

type simWrite struct {
	address solana.PublicKey
	data    []byte
}

// simulate исполняет инструкции без записи состояния
func (c *simCluster) simulate(tx *solana.Transaction) ([]simWrite, error) {
	var writes []simWrite
	for _, ci := range tx.Message.Instructions {
		programID := tx.Message.AccountKeys[ci.ProgramIDIndex]
		if !programID.Equals(c.programID) {
			continue
		}
		keys := make([]solana.PublicKey, len(ci.Accounts))
		for i, idx := range ci.Accounts {
			keys[i] = tx.Message.AccountKeys[idx]
		}
		ix, err := DecodeInstruction(ci.Data)
		if err != nil {
			return nil, fmt.Errorf("Program %s failed: invalid instruction data", c.programID)
		}

		switch v := ix.(type) {
		case CreateBatch:
			if _, exists := c.accounts[keys[1]]; exists {
				return nil, fmt.Errorf("Allocate: account %s already in use", keys[1])
			}
			data, _ := (&BatchAccount{BatchID: v.BatchID, Manufacturer: keys[0], CurrentOwner: keys[0]}).Encode()
			writes = append(writes, simWrite{address: keys[1], data: data})
		case TransferOwnership:
			account, ok := c.accounts[keys[1]]
			if !ok {
				return nil, fmt.Errorf("Program %s failed: custom program error: 0x1", c.programID)
			}
			batch, err := DecodeBatchAccount(account.Data.GetBinary())
			if err != nil {
				return nil, err
			}
			owner, err := solana.PublicKeyFromBase58(v.NewOwner)
			if err != nil {
				return nil, fmt.Errorf("Program %s failed: invalid new owner", c.programID)
			}
			batch.CurrentOwner = owner
			data, _ := batch.Encode()
			writes = append(writes, simWrite{address: keys[1], data: data})
		case VerifyBatch:
		}
	}
	return writes, nil
}

func (c *simCluster) apply(tx *solana.Transaction) {
	writes, err := c.simulate(tx)
	c.slot++
	sig := tx.Signatures[0]
	status := &rpc.SignatureStatusesResult{
		Slot:               c.slot,
		ConfirmationStatus: rpc.ConfirmationStatusConfirmed,
	}
	if err != nil {
		status.Err = map[string]interface{}{"InstructionError": []interface{}{0, err.Error()}}
	}
	c.statuses[sig] = status
	c.logs[sig] = []string{fmt.Sprintf("Program %s invoke [1]", c.programID)}

	for _, w := range writes {
		c.accounts[w.address] = &rpc.Account{
			Lamports: 1_500_000,
			Owner:    c.programID,
			Data:     rpc.DataBytesOrJSONFromBytes(w.data),
		}
	}
	for _, key := range tx.Message.AccountKeys {
		c.history[key] = append([]solana.Signature{sig}, c.history[key]...)
	}
	payer := tx.Message.AccountKeys[0]
	if c.balances[payer] >= simFee {
		c.balances[payer] -= simFee
	}
}

func (c *simCluster) GetAccountInfo(_ context.Context, pubkey solana.PublicKey) (*rpc.Account, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accounts[pubkey], nil
}

func (c *simCluster) GetProgramAccounts(_ context.Context, programID solana.PublicKey, filters []rpc.RPCFilter) (rpc.GetProgramAccountsResult, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var out rpc.GetProgramAccountsResult
	for key, account := range c.accounts {
		if !account.Owner.Equals(programID) || !matchFilters(account.Data.GetBinary(), filters) {
			continue
		}
		out = append(out, &rpc.KeyedAccount{Pubkey: key, Account: account})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pubkey.String() < out[j].Pubkey.String() })
	return out, nil
}

func matchFilters(data []byte, filters []rpc.RPCFilter) bool {
	for _, f := range filters {
		if f.Memcmp == nil {
			continue
		}
		end := int(f.Memcmp.Offset) + len(f.Memcmp.Bytes)
		if end > len(data) || !bytes.Equal(data[f.Memcmp.Offset:end], f.Memcmp.Bytes) {
			return false
		}
	}
	return true
}

func (c *simCluster) GetSignaturesForAddress(_ context.Context, address solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*rpc.TransactionSignature
	for _, sig := range c.history[address] {
		if limit > 0 && len(out) == limit {
			break
		}
		status := c.statuses[sig]
		bt := solana.UnixTimeSeconds(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Unix() + int64(status.Slot))
		out = append(out, &rpc.TransactionSignature{
			Signature:          sig,
			Slot:               status.Slot,
			Err:                status.Err,
			BlockTime:          &bt,
			ConfirmationStatus: status.ConfirmationStatus,
		})
	}
	return out, nil
}

func (c *simCluster) GetTransaction(_ context.Context, signature solana.Signature) (*rpc.GetTransactionResult, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.statuses[signature]
	if !ok {
		return nil, nil
	}
	return &rpc.GetTransactionResult{
		Slot: status.Slot,
		Meta: &rpc.TransactionMeta{
			Fee:         simFee,
			Err:         status.Err,
			LogMessages: c.logs[signature],
		},
	}, nil
}

func (c *simCluster) GetSignatureStatuses(_ context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := &rpc.GetSignatureStatusesResult{}
	for _, sig := range signatures {
		out.Value = append(out.Value, c.statuses[sig])
	}
	return out, nil
}

func (c *simCluster) GetVersion(context.Context) (*rpc.GetVersionResult, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	return &rpc.GetVersionResult{SolanaCore: "1.18.26"}, nil
}

func (c *simCluster) GetBalance(_ context.Context, pubkey solana.PublicKey, _ rpc.CommitmentType) (uint64, error) {
	if err := c.enter(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[pubkey], nil
}

func (c *simCluster) RequestAirdrop(_ context.Context, pubkey solana.PublicKey, lamports uint64) (solana.Signature, error) {
	if err := c.enter(); err != nil {
		return solana.Signature{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot++
	var sig solana.Signature
	copy(sig[:], fmt.Sprintf("airdrop-%d", c.slot))
	c.balances[pubkey] += lamports
	c.statuses[sig] = &rpc.SignatureStatusesResult{Slot: c.slot, ConfirmationStatus: rpc.ConfirmationStatusConfirmed}
	return sig, nil
}

var _ blockchain.Client = (*simCluster)(nil)
