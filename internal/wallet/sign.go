package wallet

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// PartialSign подписывает сообщение транзакции указанными ключами,
// кладя подпись в слот соответствующего подписанта. Чужие слоты не меняются.
func PartialSign(tx *solana.Transaction, keys ...solana.PrivateKey) error {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) < required {
		sigs := make([]solana.Signature, required)
		copy(sigs, tx.Signatures)
		tx.Signatures = sigs
	}

	for _, key := range keys {
		idx := signerIndex(tx, key.PublicKey())
		if idx < 0 {
			return fmt.Errorf("%s is not a required signer of the transaction", key.PublicKey())
		}
		sig, err := key.Sign(message)
		if err != nil {
			return fmt.Errorf("failed to sign with %s: %w", key.PublicKey(), err)
		}
		tx.Signatures[idx] = sig
	}
	return nil
}

// MissingSigners возвращает подписантов, чьи подписи отсутствуют или неверны.
func MissingSigners(tx *solana.Transaction) ([]solana.PublicKey, error) {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %w", err)
	}

	var missing []solana.PublicKey
	required := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		key := tx.Message.AccountKeys[i]
		if i >= len(tx.Signatures) || tx.Signatures[i] == (solana.Signature{}) || !tx.Signatures[i].Verify(key, message) {
			missing = append(missing, key)
		}
	}
	return missing, nil
}

func signerIndex(tx *solana.Transaction, key solana.PublicKey) int {
	required := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(key) {
			return i
		}
	}
	return -1
}
