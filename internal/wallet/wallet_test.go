package wallet

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
)

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func twoSignerTx(t *testing.T, payer, other solana.PublicKey) *solana.Transaction {
	t.Helper()
	program := solana.NewWallet().PublicKey()
	ix := solana.NewInstruction(program, solana.AccountMetaSlice{
		solana.Meta(payer).SIGNER().WRITE(),
		solana.Meta(other).SIGNER().WRITE(),
	}, []byte{0})
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{1, 2, 3}, solana.TransactionPayer(payer))
	require.NoError(t, err)
	return tx
}

func TestPartialSignLeavesOtherSlots(t *testing.T) {
	payer, batch := newKey(t), newKey(t)
	tx := twoSignerTx(t, payer.PublicKey(), batch.PublicKey())

	require.NoError(t, PartialSign(tx, batch))

	missing, err := MissingSigners(tx)
	require.NoError(t, err)
	assert.Equal(t, []solana.PublicKey{payer.PublicKey()}, missing)

	signed, err := NewKeypair(payer).SignTransaction(context.Background(), tx)
	require.NoError(t, err)

	missing, err = MissingSigners(signed)
	require.NoError(t, err)
	assert.Empty(t, missing)
	assert.NoError(t, signed.VerifySignatures())
}

func TestPartialSignRejectsForeignKey(t *testing.T) {
	payer, batch := newKey(t), newKey(t)
	tx := twoSignerTx(t, payer.PublicKey(), batch.PublicKey())

	err := PartialSign(tx, newKey(t))
	assert.Error(t, err)
}

func TestNewWalletFromBase58(t *testing.T) {
	key := newKey(t)
	w, err := NewWallet(key.String())
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey())
	assert.True(t, w.Connected())

	_, err = NewWallet("not-base58-0OIl")
	assert.Error(t, err)
}

func TestLoadKeypairFile(t *testing.T) {
	key := newKey(t)
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	w, err := LoadKeypairFile(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey())

	_, err = LoadKeypairFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadWallets(t *testing.T) {
	key := newKey(t)
	content := "wallets:\n  - name: manufacturer\n    private_key: " + key.String() + "\n"
	path := filepath.Join(t.TempDir(), "wallets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	wallets, err := LoadWallets(path)
	require.NoError(t, err)
	require.Contains(t, wallets, "manufacturer")
	assert.Equal(t, key.PublicKey(), wallets["manufacturer"].PublicKey())
}

// bridge имитирует мост к кошельку расширения браузера
type bridge struct {
	key       solana.PrivateKey
	connected bool
	decline   bool
	tamper    bool
}

func (b *bridge) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(statusResponse{Connected: b.connected, PublicKey: b.key.PublicKey().String()})
	})
	mux.HandleFunc("/sign", func(w http.ResponseWriter, r *http.Request) {
		var req signRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if b.decline {
			_ = json.NewEncoder(w).Encode(signResponse{Error: &bridgeError{Code: userRejectedCode, Message: "User rejected the request."}})
			return
		}
		raw, err := base64.StdEncoding.DecodeString(req.Transaction)
		require.NoError(t, err)
		tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
		require.NoError(t, err)
		if b.tamper {
			tx.Message.RecentBlockhash = solana.Hash{9, 9, 9}
		}
		require.NoError(t, PartialSign(tx, b.key))
		out, err := tx.MarshalBinary()
		require.NoError(t, err)
		_ = json.NewEncoder(w).Encode(signResponse{SignedTransaction: base64.StdEncoding.EncodeToString(out)})
	})
	return mux
}

func TestRemoteSignsThroughBridge(t *testing.T) {
	owner, batch := newKey(t), newKey(t)
	b := &bridge{key: owner, connected: true}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	remote := NewRemote(srv.URL, owner.PublicKey(), time.Second, zap.NewNop())
	assert.False(t, remote.Connected())
	require.NoError(t, remote.Connect(context.Background()))
	assert.True(t, remote.Connected())

	tx := twoSignerTx(t, owner.PublicKey(), batch.PublicKey())
	require.NoError(t, PartialSign(tx, batch))

	signed, err := remote.SignTransaction(context.Background(), tx)
	require.NoError(t, err)
	assert.NoError(t, signed.VerifySignatures())
}

func TestRemoteDecline(t *testing.T) {
	owner := newKey(t)
	b := &bridge{key: owner, connected: true, decline: true}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	remote := NewRemote(srv.URL, owner.PublicKey(), time.Second, zap.NewNop())
	require.NoError(t, remote.Connect(context.Background()))

	_, err := remote.SignTransaction(context.Background(), twoSignerTx(t, owner.PublicKey(), newKey(t).PublicKey()))
	assert.ErrorIs(t, err, blockchain.ErrUserDeclined)
}

func TestRemoteRejectsTamperedMessage(t *testing.T) {
	owner := newKey(t)
	b := &bridge{key: owner, connected: true, tamper: true}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	remote := NewRemote(srv.URL, owner.PublicKey(), time.Second, zap.NewNop())
	require.NoError(t, remote.Connect(context.Background()))

	_, err := remote.SignTransaction(context.Background(), twoSignerTx(t, owner.PublicKey(), newKey(t).PublicKey()))
	assert.Error(t, err)
}

func TestRemoteNotConnected(t *testing.T) {
	owner := newKey(t)
	b := &bridge{key: owner, connected: false}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	remote := NewRemote(srv.URL, owner.PublicKey(), time.Second, zap.NewNop())
	assert.ErrorIs(t, remote.Connect(context.Background()), blockchain.ErrWalletNotConnected)

	_, err := remote.SignTransaction(context.Background(), twoSignerTx(t, owner.PublicKey(), newKey(t).PublicKey()))
	assert.ErrorIs(t, err, blockchain.ErrWalletNotConnected)
}

// slowWallet считает одновременные вызовы подписи
type slowWallet struct {
	*Keypair
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (s *slowWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		old := s.maxSeen.Load()
		if n <= old || s.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return s.Keypair.SignTransaction(ctx, tx)
}

func TestSerializeAllowsSingleSignRequest(t *testing.T) {
	payer := newKey(t)
	inner := &slowWallet{Keypair: NewKeypair(payer)}
	w := Serialize(inner)
	assert.Same(t, w, Serialize(w))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx := twoSignerTx(t, payer.PublicKey(), newKey(t).PublicKey())
			_, err := w.SignTransaction(context.Background(), tx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), inner.maxSeen.Load())
}

func TestSerializeHonoursContext(t *testing.T) {
	payer := newKey(t)
	w := Serialize(NewKeypair(payer)).(*Serialized)
	require.NoError(t, w.sem.Acquire(context.Background(), 1))
	defer w.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := w.SignTransaction(ctx, twoSignerTx(t, payer.PublicKey(), newKey(t).PublicKey()))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
