// internal/medweb3/service_test.go
package medweb3

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain/solbc/transaction"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/events"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/wallet"
)

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type())
	}
	return out
}

type serviceFixture struct {
	sim       *simCluster
	service   *Service
	wallet    *wallet.Keypair
	publisher *recordingPublisher
}

func newFixture(t *testing.T, mutate ...func(*Config)) *serviceFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	programID := solana.MustPublicKeyFromBase58(DefaultProgramID)
	sim := newSimCluster(programID)

	cfg := Config{ProgramID: programID, ConfirmTimeout: 300 * time.Millisecond}
	for _, m := range mutate {
		m(&cfg)
	}
	pipeline := transaction.NewPipeline(sim, logger, transaction.Config{
		ConfirmTimeout: 300 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
		Commitment:     rpc.CommitmentConfirmed,
	}, nil)

	w, err := wallet.GenerateKeypair()
	require.NoError(t, err)
	pub := &recordingPublisher{}

	return &serviceFixture{
		sim:       sim,
		service:   NewService(sim, pipeline, cfg, logger, WithPublisher(pub)),
		wallet:    w,
		publisher: pub,
	}
}

func TestCreateBatchThenAccountExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service.CreateBatch(ctx, f.wallet, "BATCH-001", "Acme Pharma")
	require.NoError(t, err)

	assert.NotEmpty(t, res.Signature)
	assert.Equal(t, "BATCH-001", res.BatchID)
	assert.Equal(t, "Acme Pharma", res.Manufacturer)
	assert.Equal(t, f.wallet.PublicKey().String(), res.Owner)
	assert.True(t, IsAddress(res.BatchAccount))
	assert.LessOrEqual(t, len(res.BatchAccount), 44)
	assert.Contains(t, res.ExplorerURL, "cluster=devnet")

	exists, err := f.service.Reader().AccountExists(ctx, solana.MustPublicKeyFromBase58(res.BatchAccount))
	require.NoError(t, err)
	assert.True(t, exists)

	info, err := f.service.GetBatchInfo(ctx, res.BatchAccount)
	require.NoError(t, err)
	require.NotNil(t, info.Batch)
	assert.Equal(t, "BATCH-001", info.Batch.BatchID)
	assert.Equal(t, StateCreated, info.State)

	assert.Equal(t, []events.EventType{events.BatchCreated}, f.publisher.types())
}

func TestCreateBatchDefaultsManufacturerToWallet(t *testing.T) {
	f := newFixture(t)

	res, err := f.service.CreateBatch(context.Background(), f.wallet, "BATCH-002", "")
	require.NoError(t, err)
	assert.Equal(t, f.wallet.PublicKey().String(), res.Manufacturer)
}

func TestCreateBatchUsesFreshAccountEachTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.CreateBatch(ctx, f.wallet, "BATCH-003", "Acme Pharma")
	require.NoError(t, err)
	second, err := f.service.CreateBatch(ctx, f.wallet, "BATCH-003", "Acme Pharma")
	require.NoError(t, err)

	assert.NotEqual(t, first.BatchAccount, second.BatchAccount)
}

func TestCreateBatchRejectsDuplicateWhenConfigured(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.RequireUniqueBatchID = true })
	ctx := context.Background()

	_, err := f.service.CreateBatch(ctx, f.wallet, "BATCH-004", "Acme Pharma")
	require.NoError(t, err)

	sentBefore := f.sim.sent.Load()
	_, err = f.service.CreateBatch(ctx, f.wallet, "BATCH-004", "Acme Pharma")
	require.ErrorIs(t, err, blockchain.ErrDuplicateBatch)
	assert.Equal(t, sentBefore, f.sim.sent.Load())
}

func TestCreateBatchValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateBatch(ctx, f.wallet, "", "Acme Pharma")
	assert.ErrorIs(t, err, blockchain.ErrEncoding)

	_, err = f.service.CreateBatch(ctx, nil, "BATCH-005", "Acme Pharma")
	assert.ErrorIs(t, err, blockchain.ErrWalletNotConnected)

	assert.Zero(t, f.sim.calls.Load())
}

func TestCreateBatchTimeoutThenEventuallyVisible(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.ConfirmTimeout = 40 * time.Millisecond })
	f.sim.deferApply = true
	ctx := context.Background()

	_, err := f.service.CreateBatch(ctx, f.wallet, "BATCH-006", "Acme Pharma")
	require.ErrorIs(t, err, blockchain.ErrSubmissionTimeout)

	batchAccount := blockchain.BatchAccountOf(err)
	signature := blockchain.SignatureOf(err)
	require.NotEmpty(t, batchAccount)
	require.NotEmpty(t, signature)

	created, err := f.service.ReconcileCreate(ctx, batchAccount)
	require.NoError(t, err)
	assert.False(t, created)

	status, err := f.service.ReconcileSignature(ctx, signature)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPending, status.Status)

	f.sim.flush()

	created, err = f.service.ReconcileCreate(ctx, batchAccount)
	require.NoError(t, err)
	assert.True(t, created)

	status, err = f.service.ReconcileSignature(ctx, signature)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusConfirmed, status.Status)

	assert.Equal(t, []events.EventType{events.SubmissionTimedOut}, f.publisher.types())
}

func TestTransferOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateBatch(ctx, f.wallet, "BATCH-007", "Acme Pharma")
	require.NoError(t, err)

	newOwner, err := wallet.GenerateKeypair()
	require.NoError(t, err)

	res, err := f.service.TransferOwnership(ctx, f.wallet, created.BatchAccount, "BATCH-007", newOwner.PublicKey().String())
	require.NoError(t, err)
	assert.Equal(t, f.wallet.PublicKey().String(), res.PreviousOwner)
	assert.Equal(t, newOwner.PublicKey().String(), res.NewOwner)
	assert.Equal(t, created.BatchAccount, res.BatchAccount)

	info, err := f.service.GetBatchInfo(ctx, created.BatchAccount)
	require.NoError(t, err)
	assert.Equal(t, StateTransferred, info.State)
	assert.Equal(t, newOwner.PublicKey(), info.Batch.CurrentOwner)

	assert.Equal(t, []events.EventType{events.BatchCreated, events.OwnershipTransferred}, f.publisher.types())
}

func TestTransferOwnershipInvalidAddressMakesNoCalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	valid := f.wallet.PublicKey().String()

	cases := []struct {
		name         string
		batchAccount string
		newOwner     string
	}{
		{"bad batch account", "not-an-address", valid},
		{"bad new owner", valid, "0OIl"},
		{"short key", valid, "3yZe7d"},
		{"empty owner", valid, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.TransferOwnership(ctx, f.wallet, tc.batchAccount, "BATCH-008", tc.newOwner)
			assert.ErrorIs(t, err, blockchain.ErrInvalidAddress)
			assert.Equal(t, blockchain.KindInvalidAddress, blockchain.KindOf(err))
		})
	}
	assert.Zero(t, f.sim.calls.Load())
}

func TestTransferOwnershipUnknownBatchRejected(t *testing.T) {
	f := newFixture(t)
	unknown, err := wallet.GenerateKeypair()
	require.NoError(t, err)

	_, err = f.service.TransferOwnership(context.Background(), f.wallet,
		unknown.PublicKey().String(), "BATCH-009", f.wallet.PublicKey().String())
	require.ErrorIs(t, err, blockchain.ErrSubmissionRejected)
	assert.Contains(t, err.Error(), "custom program error: 0x1")
	assert.Equal(t, unknown.PublicKey().String(), blockchain.BatchAccountOf(err))
	assert.Equal(t, []events.EventType{events.SubmissionFailed}, f.publisher.types())
}

func TestKeyAttestor(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	attestor := NewKeyAttestor(key)

	account := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	sig, err := attestor.Attest("BATCH-010", account, owner)
	require.NoError(t, err)

	assert.True(t, VerifyAttestation(attestor.PublicKey(), "BATCH-010", account, owner, sig))
	assert.False(t, VerifyAttestation(attestor.PublicKey(), "BATCH-011", account, owner, sig))

	zero, err := ZeroAttestor{}.Attest("BATCH-010", account, owner)
	require.NoError(t, err)
	assert.Equal(t, [SignatureLength]byte{}, zero)
}

func TestTransferOwnershipCarriesAttestation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	attestor := NewKeyAttestor(key)
	f.service = NewService(f.sim, nil, Config{ProgramID: f.sim.programID}, zaptest.NewLogger(t), WithAttestor(attestor))

	created, err := f.service.CreateBatch(ctx, f.wallet, "BATCH-016", "Acme Pharma")
	require.NoError(t, err)
	owner := solana.NewWallet().PublicKey()
	_, err = f.service.TransferOwnership(ctx, f.wallet, created.BatchAccount, "BATCH-016", owner.String())
	require.NoError(t, err)

	info, err := f.service.GetBatchInfo(ctx, created.BatchAccount)
	require.NoError(t, err)
	assert.Equal(t, owner, info.Batch.CurrentOwner)
}

func TestVerifyBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateBatch(ctx, f.wallet, "BATCH-012", "Acme Pharma")
	require.NoError(t, err)

	byAddress, err := f.service.VerifyBatch(ctx, created.BatchAccount, VerifyOptions{})
	require.NoError(t, err)
	assert.True(t, byAddress.Verified)
	assert.True(t, byAddress.OwnedByProgram)
	assert.Equal(t, "BATCH-012", byAddress.Batch.BatchID)

	byID, err := f.service.VerifyBatch(ctx, "BATCH-012", VerifyOptions{})
	require.NoError(t, err)
	assert.True(t, byID.Verified)
	assert.Equal(t, created.BatchAccount, byID.BatchAccount)
	assert.Equal(t, 1, byID.Matches)
}

func TestVerifyUnknownBatchIsFalse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service.VerifyBatch(ctx, "BATCH-404", VerifyOptions{})
	require.NoError(t, err)
	assert.False(t, res.Verified)

	res, err = f.service.VerifyBatch(ctx, solana.NewWallet().PublicKey().String(), VerifyOptions{})
	require.NoError(t, err)
	assert.False(t, res.Verified)

	_, err = f.service.GetBatchInfo(ctx, solana.NewWallet().PublicKey().String())
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestVerifyForeignAccountIsFalse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// обычный кошелек: существует, но принадлежит system program
	walletKey := solana.NewWallet().PublicKey()
	f.sim.mu.Lock()
	f.sim.accounts[walletKey] = &rpc.Account{
		Lamports: 2_000_000_000,
		Owner:    solana.SystemProgramID,
		Data:     rpc.DataBytesOrJSONFromBytes(nil),
	}
	f.sim.mu.Unlock()

	res, err := f.service.VerifyBatch(ctx, walletKey.String(), VerifyOptions{})
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.False(t, res.OwnedByProgram)
	assert.Equal(t, solana.SystemProgramID.String(), res.Owner)
	assert.Nil(t, res.Batch)

	info, err := f.service.Reader().GetAccountInfo(ctx, walletKey)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, StateNonExistent, info.State)
}

func TestVerifyBatchOnChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateBatch(ctx, f.wallet, "BATCH-013", "Acme Pharma")
	require.NoError(t, err)

	res, err := f.service.VerifyBatch(ctx, created.BatchAccount, VerifyOptions{OnChain: true, Wallet: f.wallet})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.NotEmpty(t, res.Signature)

	_, err = f.service.VerifyBatch(ctx, created.BatchAccount, VerifyOptions{OnChain: true})
	assert.ErrorIs(t, err, blockchain.ErrWalletNotConnected)
}

func TestListProgramAccountsMatchesCreatedSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	want := map[string]string{}
	for _, id := range []string{"BATCH-A", "BATCH-B", "BATCH-C"} {
		res, err := f.service.CreateBatch(ctx, f.wallet, id, "Acme Pharma")
		require.NoError(t, err)
		want[res.BatchAccount] = id
	}

	accounts, err := f.service.Reader().ListProgramAccounts(ctx, solana.PublicKey{})
	require.NoError(t, err)
	require.Len(t, accounts, len(want))
	for _, a := range accounts {
		require.NotNil(t, a.Batch)
		assert.Equal(t, want[a.Address], a.Batch.BatchID)
	}

	found, err := f.service.Reader().FindBatchAccounts(ctx, "BATCH-B")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "BATCH-B", want[found[0].Address])
}

func TestBatchHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateBatch(ctx, f.wallet, "BATCH-014", "Acme Pharma")
	require.NoError(t, err)
	_, err = f.service.TransferOwnership(ctx, f.wallet, created.BatchAccount, "BATCH-014", solana.NewWallet().PublicKey().String())
	require.NoError(t, err)

	history, err := f.service.GetBatchHistory(ctx, created.BatchAccount, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Greater(t, history[0].Slot, history[1].Slot)
	assert.Equal(t, created.Signature, history[1].Signature)
	for _, h := range history {
		assert.True(t, h.Succeeded)
		assert.EqualValues(t, simFee, h.Fee)
		assert.NotEmpty(t, h.Logs)
		assert.NotNil(t, h.BlockTime)
	}

	limited, err := f.service.Reader().ListRecentSignatures(ctx, solana.MustPublicKeyFromBase58(created.BatchAccount), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestConnectionStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sim.balances[f.wallet.PublicKey()] = 2 * solana.LAMPORTS_PER_SOL

	status := f.service.GetConnectionStatus(ctx, f.wallet)
	assert.True(t, status.Connected)
	assert.Equal(t, "1.18.26", status.Version)
	assert.Equal(t, DefaultProgramID, status.ProgramID)
	assert.InDelta(t, 2.0, status.BalanceSOL, 1e-9)

	f.sim.down = true
	status = f.service.GetConnectionStatus(ctx, f.wallet)
	assert.False(t, status.Connected)
	assert.NotEmpty(t, status.Error)
}

func TestEnsureFunded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service.EnsureFunded(ctx, f.wallet, solana.LAMPORTS_PER_SOL, 5*solana.LAMPORTS_PER_SOL)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.NotEmpty(t, res.Signature)
	assert.EqualValues(t, 5*solana.LAMPORTS_PER_SOL, res.BalanceAfter)

	res, err = f.service.EnsureFunded(ctx, f.wallet, solana.LAMPORTS_PER_SOL, 5*solana.LAMPORTS_PER_SOL)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestNetworkDownIsNetworkError(t *testing.T) {
	f := newFixture(t)
	f.sim.down = true

	_, err := f.service.CreateBatch(context.Background(), f.wallet, "BATCH-015", "Acme Pharma")
	require.Error(t, err)
	assert.Equal(t, blockchain.KindNetwork, blockchain.KindOf(err))
	assert.True(t, blockchain.IsRetryable(err))
}

func TestNewResponse(t *testing.T) {
	ok := NewResponse(&CreateBatchResult{Signature: "sig", BatchAccount: "acc"}, nil)
	assert.True(t, ok.Success)
	assert.Equal(t, "sig", ok.Signature)
	assert.Equal(t, "acc", ok.BatchAccount)

	timeout := &blockchain.SubmissionError{Kind: blockchain.ErrSubmissionTimeout, Signature: "sig2", BatchAccount: "acc2"}
	failed := NewResponse(nil, timeout)
	assert.False(t, failed.Success)
	assert.Equal(t, blockchain.KindSubmissionTimeout, failed.ErrorKind)
	assert.Equal(t, "sig2", failed.Signature)
	assert.Equal(t, "acc2", failed.BatchAccount)
}
