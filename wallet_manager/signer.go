package wallet_manager

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// ErrSignerDeclined is returned by a Signer when the wallet owner refuses to
// sign. Signers that cannot tell a refusal apart from other failures return
// their own error instead.
var ErrSignerDeclined = errors.New("signer declined to sign transaction")

// Signer is a wallet able to authorize transactions on behalf of one key.
type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// KeypairSigner signs with a local private key.
type KeypairSigner struct {
	key solana.PrivateKey
}

func NewKeypairSigner(key solana.PrivateKey) *KeypairSigner {
	return &KeypairSigner{key: key}
}

// NewKeypairSignerFromFile loads a solana-keygen JSON keypair.
func NewKeypairSignerFromFile(path string) (*KeypairSigner, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load keypair from %s", path)
	}
	return NewKeypairSigner(key), nil
}

func (s *KeypairSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

func (s *KeypairSigner) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if s.key.PublicKey().Equals(key) {
			return &s.key
		}
		return nil
	})
	return err
}
