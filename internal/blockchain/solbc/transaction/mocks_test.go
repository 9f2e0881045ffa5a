// internal/blockchain/solbc/transaction/mocks_test.go
package transaction

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/wallet"
)

// MockChain реализует интерфейс Chain
type MockChain struct {
	mock.Mock
}

func (m *MockChain) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Error(1)
}

func (m *MockChain) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockChain) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	args := m.Called(ctx, signatures)
	res, _ := args.Get(0).(*rpc.GetSignatureStatusesResult)
	return res, args.Error(1)
}

// declinedWallet всегда отказывает в подписи
type declinedWallet struct {
	*wallet.Keypair
	err error
}

func (d *declinedWallet) SignTransaction(context.Context, *solana.Transaction) (*solana.Transaction, error) {
	return nil, d.err
}

// disconnectedWallet не подключен
type disconnectedWallet struct {
	*wallet.Keypair
}

func (d *disconnectedWallet) Connected() bool { return false }

func newTestKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func statusResult(status rpc.ConfirmationStatusType, txErr interface{}) *rpc.GetSignatureStatusesResult {
	return &rpc.GetSignatureStatusesResult{
		Value: []*rpc.SignatureStatusesResult{{
			Slot:               42,
			ConfirmationStatus: status,
			Err:                txErr,
		}},
	}
}

func pendingResult() *rpc.GetSignatureStatusesResult {
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}
}

func testInstruction(signers ...solana.PublicKey) solana.Instruction {
	metas := make(solana.AccountMetaSlice, 0, len(signers))
	for _, s := range signers {
		metas = append(metas, solana.Meta(s).SIGNER().WRITE())
	}
	program := solana.MustPublicKeyFromBase58("DBL4hbkkDsVHwDBSKGmA4ivneVR8Zf5RHmYHpE1XrR8x")
	return solana.NewInstruction(program, metas, []byte{2, 0, 0, 0, 0})
}
