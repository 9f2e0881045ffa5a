// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
)

// Sender отправляет подписанную транзакцию в сеть.
type Sender interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Wallet - возможность подписи, предоставленная владельцем ключа.
// Кошелек может быть локальным (ключ сервиса) или внешним (расширение браузера через мост).
type Wallet interface {
	PublicKey() solana.PublicKey
	Connected() bool
	// SignTransaction добавляет подпись кошелька. Остальные подписи не трогаются.
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
	// SendTransaction подписывает и отправляет транзакцию через sender.
	SendTransaction(ctx context.Context, tx *solana.Transaction, sender Sender) (solana.Signature, error)
}

// Keypair представляет кошелёк Solana с локальным приватным ключом.
type Keypair struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewKeypair создаёт кошелёк из приватного ключа.
func NewKeypair(privateKey solana.PrivateKey) *Keypair {
	return &Keypair{
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
	}
}

// NewWallet создаёт новый кошелёк из base58-encoded приватного ключа.
func NewWallet(privateKeyBase58 string) (*Keypair, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	return NewKeypair(solana.PrivateKey(privateKeyBytes)), nil
}

// LoadKeypairFile загружает ключ в формате solana-keygen (JSON массив из 64 байт).
func LoadKeypairFile(path string) (*Keypair, error) {
	privateKey, err := solana.PrivateKeyFromSolanaKeygenFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}
	return NewKeypair(privateKey), nil
}

// GenerateKeypair создаёт новый случайный ключ (например, для аккаунта партии).
func GenerateKeypair() (*Keypair, error) {
	privateKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return NewKeypair(privateKey), nil
}

// WalletConfig represents the structure of wallets YAML file
type WalletConfig struct {
	Wallets []struct {
		Name       string `yaml:"name"`
		PrivateKey string `yaml:"private_key"`
	} `yaml:"wallets"`
}

// LoadWallets загружает именованные кошельки из YAML-файла.
func LoadWallets(path string) (map[string]*Keypair, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config WalletConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	wallets := make(map[string]*Keypair)
	for _, walletData := range config.Wallets {
		if walletData.Name == "" || walletData.PrivateKey == "" {
			continue
		}
		w, err := NewWallet(walletData.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("wallet %q: %w", walletData.Name, err)
		}
		wallets[walletData.Name] = w
	}

	if len(wallets) == 0 {
		return nil, fmt.Errorf("no valid wallets loaded")
	}
	return wallets, nil
}

func (w *Keypair) PublicKey() solana.PublicKey { return w.publicKey }

// PrivateKey нужен для подписи вне транзакции (аттестация передачи).
func (w *Keypair) PrivateKey() solana.PrivateKey { return w.privateKey }

// Connected всегда true: ключ находится в процессе.
func (w *Keypair) Connected() bool { return true }

// SignTransaction подписывает транзакцию с помощью приватного ключа кошелька.
func (w *Keypair) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := PartialSign(tx, w.privateKey); err != nil {
		return nil, err
	}
	return tx, nil
}

// SendTransaction подписывает и отправляет транзакцию.
func (w *Keypair) SendTransaction(ctx context.Context, tx *solana.Transaction, sender Sender) (solana.Signature, error) {
	return signAndSend(ctx, w, tx, sender)
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Keypair) String() string {
	return w.publicKey.String()
}

func signAndSend(ctx context.Context, w Wallet, tx *solana.Transaction, sender Sender) (solana.Signature, error) {
	if w == nil || !w.Connected() {
		return solana.Signature{}, blockchain.ErrWalletNotConnected
	}
	signed, err := w.SignTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	return sender.SendTransaction(ctx, signed)
}

var _ Wallet = (*Keypair)(nil)
