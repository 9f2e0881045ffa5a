// internal/medweb3/attestor.go
package medweb3

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// TransferAttestor формирует 64-байтовое поле signature инструкции TransferOwnership.
type TransferAttestor interface {
	Attest(batchID string, batchAccount, newOwner solana.PublicKey) ([SignatureLength]byte, error)
}

// ZeroAttestor заполняет поле нулями. Программа поле не проверяет.
type ZeroAttestor struct{}

func (ZeroAttestor) Attest(string, solana.PublicKey, solana.PublicKey) ([SignatureLength]byte, error) {
	return [SignatureLength]byte{}, nil
}

// KeyAttestor подписывает каноническое сообщение о передаче ключом сервиса (ed25519)
type KeyAttestor struct {
	key solana.PrivateKey
}

func NewKeyAttestor(key solana.PrivateKey) *KeyAttestor {
	return &KeyAttestor{key: key}
}

// PublicKey возвращает ключ, по которому проверяется аттестация
func (a *KeyAttestor) PublicKey() solana.PublicKey {
	return a.key.PublicKey()
}

func (a *KeyAttestor) Attest(batchID string, batchAccount, newOwner solana.PublicKey) ([SignatureLength]byte, error) {
	sig, err := a.key.Sign(TransferMessage(batchID, batchAccount, newOwner))
	if err != nil {
		return [SignatureLength]byte{}, fmt.Errorf("failed to sign transfer attestation: %w", err)
	}
	return sig, nil
}

// TransferMessage - каноническое сообщение, которое подписывает KeyAttestor
func TransferMessage(batchID string, batchAccount, newOwner solana.PublicKey) []byte {
	return []byte(fmt.Sprintf("medweb3:transfer:%s:%s:%s", batchID, batchAccount, newOwner))
}

// VerifyAttestation проверяет подпись из поля signature
func VerifyAttestation(signer solana.PublicKey, batchID string, batchAccount, newOwner solana.PublicKey, sig [SignatureLength]byte) bool {
	return solana.Signature(sig).Verify(signer, TransferMessage(batchID, batchAccount, newOwner))
}
