package transaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/wallet"
)

var testBlockhash = solana.Hash{7, 7, 7}

func fastConfig() Config {
	return Config{
		ConfirmTimeout: 200 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
		Commitment:     rpc.CommitmentConfirmed,
	}
}

func TestBuilderRequiresFields(t *testing.T) {
	payer := newTestKey(t).PublicKey()
	ix := testInstruction(payer)

	_, err := NewBuilder().SetFeePayer(payer).SetRecentBlockhash(testBlockhash).Build()
	assert.ErrorIs(t, err, blockchain.ErrNoInstructions)

	_, err = NewBuilder().AddInstruction(ix).SetRecentBlockhash(testBlockhash).Build()
	assert.ErrorIs(t, err, blockchain.ErrMissingFeePayer)

	_, err = NewBuilder().AddInstruction(ix).SetFeePayer(payer).Build()
	assert.ErrorIs(t, err, blockchain.ErrMissingFreshnessToken)

	tx, err := NewBuilder().AddInstruction(ix).SetFeePayer(payer).SetRecentBlockhash(testBlockhash).Build()
	require.NoError(t, err)
	assert.Equal(t, payer, tx.Message.AccountKeys[0])
	assert.Equal(t, testBlockhash, tx.Message.RecentBlockhash)
	assert.Len(t, tx.Signatures, 1)
}

func TestSubmitConfirmed(t *testing.T) {
	payer, batch := newTestKey(t), newTestKey(t)
	chain := new(MockChain)
	chain.On("GetLatestBlockhash", mock.Anything).Return(testBlockhash, nil).Once()
	chain.On("SendTransaction", mock.Anything, mock.MatchedBy(func(tx *solana.Transaction) bool {
		return tx.VerifySignatures() == nil && len(tx.Signatures) == 2
	})).Return(solana.Signature{}, nil).Once()
	chain.On("GetSignatureStatuses", mock.Anything, mock.Anything).Return(pendingResult(), nil).Once()
	chain.On("GetSignatureStatuses", mock.Anything, mock.Anything).Return(statusResult(rpc.ConfirmationStatusConfirmed, nil), nil)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	p := NewPipeline(chain, zaptest.NewLogger(t), fastConfig(), metrics)

	res, err := p.Submit(context.Background(), Request{
		Operation:    "create_batch",
		Instructions: []solana.Instruction{testInstruction(payer.PublicKey(), batch.PublicKey())},
		Wallet:       wallet.NewKeypair(payer),
		LocalSigners: []solana.PrivateKey{batch},
	})
	require.NoError(t, err)
	assert.NotEqual(t, solana.Signature{}, res.Signature)
	assert.Equal(t, uint64(42), res.Slot)
	assert.Equal(t, StatusConfirmed, res.Status.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.submissions.WithLabelValues("create_batch", StatusConfirmed)))
	chain.AssertExpectations(t)
}

func TestSubmitWalletNotConnected(t *testing.T) {
	chain := new(MockChain)
	p := NewPipeline(chain, zaptest.NewLogger(t), fastConfig(), nil)

	payer := newTestKey(t)
	_, err := p.Submit(context.Background(), Request{
		Instructions: []solana.Instruction{testInstruction(payer.PublicKey())},
		Wallet:       &disconnectedWallet{Keypair: wallet.NewKeypair(payer)},
	})
	assert.ErrorIs(t, err, blockchain.ErrWalletNotConnected)

	_, err = p.Submit(context.Background(), Request{
		Instructions: []solana.Instruction{testInstruction(payer.PublicKey())},
	})
	assert.ErrorIs(t, err, blockchain.ErrWalletNotConnected)
	chain.AssertNotCalled(t, "GetLatestBlockhash", mock.Anything)
}

func TestSubmitUserDeclinedNotSent(t *testing.T) {
	payer := newTestKey(t)
	chain := new(MockChain)
	chain.On("GetLatestBlockhash", mock.Anything).Return(testBlockhash, nil)
	p := NewPipeline(chain, zaptest.NewLogger(t), fastConfig(), nil)

	_, err := p.Submit(context.Background(), Request{
		Instructions: []solana.Instruction{testInstruction(payer.PublicKey())},
		Wallet:       &declinedWallet{Keypair: wallet.NewKeypair(payer), err: blockchain.ErrUserDeclined},
	})
	assert.ErrorIs(t, err, blockchain.ErrUserDeclined)
	chain.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
}

func TestSubmitMissingLocalSigner(t *testing.T) {
	payer, batch := newTestKey(t), newTestKey(t)
	chain := new(MockChain)
	chain.On("GetLatestBlockhash", mock.Anything).Return(testBlockhash, nil)
	p := NewPipeline(chain, zaptest.NewLogger(t), fastConfig(), nil)

	_, err := p.Submit(context.Background(), Request{
		Instructions: []solana.Instruction{testInstruction(payer.PublicKey(), batch.PublicKey())},
		Wallet:       wallet.NewKeypair(payer),
	})
	assert.ErrorIs(t, err, blockchain.ErrMissingSignature)
	assert.Equal(t, blockchain.KindTransactionMalformed, blockchain.KindOf(err))
	chain.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
}

func TestSubmitRejected(t *testing.T) {
	payer := newTestKey(t)
	chain := new(MockChain)
	chain.On("GetLatestBlockhash", mock.Anything).Return(testBlockhash, nil)
	chain.On("SendTransaction", mock.Anything, mock.Anything).
		Return(solana.Signature{}, blockchain.NewRejected("Blockhash not found", "", errors.New("rpc"))).Once()
	p := NewPipeline(chain, zaptest.NewLogger(t), fastConfig(), nil)

	_, err := p.Submit(context.Background(), Request{
		Instructions: []solana.Instruction{testInstruction(payer.PublicKey())},
		Wallet:       wallet.NewKeypair(payer),
	})
	require.ErrorIs(t, err, blockchain.ErrSubmissionRejected)
	assert.Contains(t, err.Error(), "Blockhash not found")
	chain.AssertNumberOfCalls(t, "SendTransaction", 1)
}

func TestSubmitFailedOnChain(t *testing.T) {
	payer := newTestKey(t)
	chain := new(MockChain)
	chain.On("GetLatestBlockhash", mock.Anything).Return(testBlockhash, nil)
	chain.On("SendTransaction", mock.Anything, mock.Anything).Return(solana.Signature{}, nil)
	chain.On("GetSignatureStatuses", mock.Anything, mock.Anything).
		Return(statusResult(rpc.ConfirmationStatusConfirmed, map[string]interface{}{"InstructionError": []interface{}{0, "InvalidAccountData"}}), nil)
	p := NewPipeline(chain, zaptest.NewLogger(t), fastConfig(), nil)

	_, err := p.Submit(context.Background(), Request{
		Instructions: []solana.Instruction{testInstruction(payer.PublicKey())},
		Wallet:       wallet.NewKeypair(payer),
	})
	require.ErrorIs(t, err, blockchain.ErrSubmissionRejected)
	assert.Contains(t, err.Error(), "InvalidAccountData")
	assert.NotEmpty(t, blockchain.SignatureOf(err))
}

func TestSubmitTimeoutCarriesSignature(t *testing.T) {
	payer := newTestKey(t)
	chain := new(MockChain)
	chain.On("GetLatestBlockhash", mock.Anything).Return(testBlockhash, nil)
	var sent *solana.Transaction
	chain.On("SendTransaction", mock.Anything, mock.Anything).Return(solana.Signature{}, nil).Once().
		Run(func(args mock.Arguments) {
			sent = args.Get(1).(*solana.Transaction)
		})
	chain.On("GetSignatureStatuses", mock.Anything, mock.Anything).Return(pendingResult(), nil)
	p := NewPipeline(chain, zaptest.NewLogger(t), fastConfig(), nil)

	_, err := p.Submit(context.Background(), Request{
		Instructions:   []solana.Instruction{testInstruction(payer.PublicKey())},
		Wallet:         wallet.NewKeypair(payer),
		ConfirmTimeout: 30 * time.Millisecond,
	})
	require.ErrorIs(t, err, blockchain.ErrSubmissionTimeout)
	require.NotNil(t, sent)
	assert.Equal(t, sent.Signatures[0].String(), blockchain.SignatureOf(err))
	chain.AssertNumberOfCalls(t, "SendTransaction", 1)
}

func TestSubmitTransportFailureIsAmbiguous(t *testing.T) {
	payer := newTestKey(t)
	chain := new(MockChain)
	chain.On("GetLatestBlockhash", mock.Anything).Return(testBlockhash, nil)
	chain.On("SendTransaction", mock.Anything, mock.Anything).
		Return(solana.Signature{}, errors.Join(blockchain.ErrNetwork, errors.New("connection reset"))).Once()
	p := NewPipeline(chain, zaptest.NewLogger(t), fastConfig(), nil)

	_, err := p.Submit(context.Background(), Request{
		Instructions: []solana.Instruction{testInstruction(payer.PublicKey())},
		Wallet:       wallet.NewKeypair(payer),
	})
	assert.ErrorIs(t, err, blockchain.ErrSubmissionTimeout)
	assert.NotEmpty(t, blockchain.SignatureOf(err))
}

func TestSubmitBlockhashUnavailable(t *testing.T) {
	payer := newTestKey(t)
	chain := new(MockChain)
	chain.On("GetLatestBlockhash", mock.Anything).Return(solana.Hash{}, blockchain.ErrNetwork)
	p := NewPipeline(chain, zaptest.NewLogger(t), fastConfig(), nil)

	_, err := p.Submit(context.Background(), Request{
		Instructions: []solana.Instruction{testInstruction(payer.PublicKey())},
		Wallet:       wallet.NewKeypair(payer),
	})
	assert.ErrorIs(t, err, blockchain.ErrNetwork)
	chain.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
}

func TestMonitorRequiresFinalizedWhenConfigured(t *testing.T) {
	chain := new(MockChain)
	chain.On("GetSignatureStatuses", mock.Anything, mock.Anything).Return(statusResult(rpc.ConfirmationStatusConfirmed, nil), nil).Twice()
	chain.On("GetSignatureStatuses", mock.Anything, mock.Anything).Return(statusResult(rpc.ConfirmationStatusFinalized, nil), nil)

	cfg := fastConfig()
	cfg.Commitment = rpc.CommitmentFinalized
	m := NewMonitor(chain, zaptest.NewLogger(t), cfg)

	status, err := m.AwaitConfirmation(context.Background(), solana.Signature{1}, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusFinalized, status.Status)
	chain.AssertNumberOfCalls(t, "GetSignatureStatuses", 3)
}
