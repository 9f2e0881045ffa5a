// internal/medweb3/address.go
package medweb3

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
)

// ParseAddress проверяет, что строка - base58 публичный ключ длиной 32 байта.
func ParseAddress(s string) (solana.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: empty address", blockchain.ErrInvalidAddress)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q: %v", blockchain.ErrInvalidAddress, s, err)
	}
	if len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("%w: %q decodes to %d bytes", blockchain.ErrInvalidAddress, s, len(raw))
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// IsAddress сообщает, похожа ли строка на адрес
func IsAddress(s string) bool {
	_, err := ParseAddress(s)
	return err == nil
}
