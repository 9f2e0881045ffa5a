package wallet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
)

// Код отказа пользователя в провайдерах кошельков (EIP-1193 / Phantom)
const userRejectedCode = 4001

// Remote делегирует подпись внешнему кошельку через HTTP мост.
// Мост принимает сериализованную транзакцию и возвращает её с подписью владельца.
type Remote struct {
	baseURL   string
	publicKey solana.PublicKey
	client    *http.Client
	connected atomic.Bool
	logger    *zap.Logger
}

type signRequest struct {
	PublicKey   string `json:"publicKey"`
	Transaction string `json:"transaction"`
}

type bridgeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type signResponse struct {
	SignedTransaction string       `json:"signedTransaction"`
	Error             *bridgeError `json:"error,omitempty"`
}

type statusResponse struct {
	Connected bool   `json:"connected"`
	PublicKey string `json:"publicKey"`
}

// NewRemote создает удаленный кошелек. Соединение проверяется через Connect.
func NewRemote(baseURL string, publicKey solana.PublicKey, timeout time.Duration, logger *zap.Logger) *Remote {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Remote{
		baseURL:   strings.TrimRight(baseURL, "/"),
		publicKey: publicKey,
		client:    &http.Client{Timeout: timeout},
		logger:    logger.Named("remote-wallet"),
	}
}

func (r *Remote) PublicKey() solana.PublicKey { return r.publicKey }

func (r *Remote) Connected() bool { return r.connected.Load() }

// Connect опрашивает мост и запоминает, подключен ли кошелек с ожидаемым ключом.
func (r *Remote) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/status", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.connected.Store(false)
		return fmt.Errorf("%w: %w", blockchain.ErrWalletNotConnected, err)
	}
	defer resp.Body.Close()

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		r.connected.Store(false)
		return fmt.Errorf("failed to decode wallet status: %w", err)
	}

	if !status.Connected {
		r.connected.Store(false)
		return blockchain.ErrWalletNotConnected
	}
	if status.PublicKey != "" && status.PublicKey != r.publicKey.String() {
		r.connected.Store(false)
		return fmt.Errorf("%w: bridge reports %s, expected %s", blockchain.ErrWalletNotConnected, status.PublicKey, r.publicKey)
	}

	r.connected.Store(true)
	r.logger.Debug("Remote wallet connected", zap.String("public_key", r.publicKey.String()))
	return nil
}

// SignTransaction отправляет транзакцию на подпись. Отказ пользователя дает ErrUserDeclined.
func (r *Remote) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	if !r.Connected() {
		return nil, blockchain.ErrWalletNotConnected
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	body, err := json.Marshal(signRequest{
		PublicKey:   r.publicKey.String(),
		Transaction: base64.StdEncoding.EncodeToString(raw),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/sign", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		r.connected.Store(false)
		return nil, fmt.Errorf("%w: %w", blockchain.ErrWalletNotConnected, err)
	}
	defer resp.Body.Close()

	var out signResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode sign response (status %d): %w", resp.StatusCode, err)
	}

	if out.Error != nil {
		if out.Error.Code == userRejectedCode {
			r.logger.Info("User declined signing", zap.String("message", out.Error.Message))
			return nil, fmt.Errorf("%w: %s", blockchain.ErrUserDeclined, out.Error.Message)
		}
		return nil, fmt.Errorf("wallet bridge error %d: %s", out.Error.Code, out.Error.Message)
	}

	return mergeSigned(tx, out.SignedTransaction)
}

// SendTransaction подписывает через мост и отправляет через sender.
func (r *Remote) SendTransaction(ctx context.Context, tx *solana.Transaction, sender Sender) (solana.Signature, error) {
	return signAndSend(ctx, r, tx, sender)
}

// mergeSigned проверяет, что кошелек не изменил сообщение, и переносит подписи.
func mergeSigned(original *solana.Transaction, signedB64 string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(signedB64)
	if err != nil {
		return nil, fmt.Errorf("invalid signed transaction encoding: %w", err)
	}
	signed, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid signed transaction: %w", err)
	}

	want, err := original.Message.MarshalBinary()
	if err != nil {
		return nil, err
	}
	got, err := signed.Message.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(want, got) {
		return nil, errors.New("wallet returned a transaction with a different message")
	}

	for i := range original.Signatures {
		if i < len(signed.Signatures) && original.Signatures[i] == (solana.Signature{}) {
			original.Signatures[i] = signed.Signatures[i]
		}
	}
	if len(original.Signatures) < len(signed.Signatures) {
		original.Signatures = append(original.Signatures, signed.Signatures[len(original.Signatures):]...)
	}
	return original, nil
}

var _ Wallet = (*Remote)(nil)
