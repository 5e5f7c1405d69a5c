package wallet_manager

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrConfirmationTimeout = errors.New("timeout waiting for transaction confirmation")
	ErrNoInstructions      = errors.New("no instructions to send")
)

func NewWalletManager(client RPCClient) *WalletManager {
	return NewWalletManagerWithOpts(
		client,
		rpc.CommitmentConfirmed,
		rpc.ConfirmationStatusConfirmed,
		time.Duration(60)*time.Second,
		time.Duration(2)*time.Second,
		false,
	)
}

func NewWalletManagerWithOpts(
	client RPCClient,
	commitment rpc.CommitmentType,
	confirmationStatusType rpc.ConfirmationStatusType,
	confirmationTimeout time.Duration,
	confirmationDelay time.Duration,
	skipPreflight bool,
) *WalletManager {
	return &WalletManager{
		Client:                 client,
		Commitment:             commitment,
		ConfirmationStatusType: confirmationStatusType,
		ConfirmationTimeout:    confirmationTimeout,
		ConfirmationDelay:      confirmationDelay,
		SkipPreflight:          skipPreflight,
	}
}

func (wm *WalletManager) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	result, err := wm.Client.GetBalance(ctx, account, wm.Commitment)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get balance of %s", account.String())
	}
	return result.Value, nil
}

// RequestAirdrop funds an account on clusters that support it and waits for
// the airdrop to be confirmed.
func (wm *WalletManager) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	sig, err := wm.Client.RequestAirdrop(ctx, account, lamports, wm.Commitment)
	if err != nil {
		return solana.Signature{}, errors.Wrapf(err, "failed to request airdrop for %s", account.String())
	}
	return wm.awaitSignaturesConfirmation(ctx, []solana.Signature{sig})
}

func (wm *WalletManager) SendAndConfirmInstructions(
	ctx context.Context,
	feePayer Signer,
	instructions []solana.Instruction,
) (solana.Signature, error) {
	if len(instructions) == 0 {
		return solana.Signature{}, ErrNoInstructions
	}
	recent, err := wm.Client.GetLatestBlockhash(ctx, wm.Commitment)
	if err != nil {
		return solana.Signature{}, err
	}
	txBuilder := solana.NewTransactionBuilder().
		SetRecentBlockHash(recent.Value.Blockhash).
		SetFeePayer(feePayer.PublicKey())
	for _, instruction := range instructions {
		txBuilder.AddInstruction(instruction)
	}
	tx, err := txBuilder.Build()
	if err != nil {
		return solana.Signature{}, err
	}
	if err := feePayer.SignTransaction(ctx, tx); err != nil {
		return solana.Signature{}, err
	}
	return wm.SendAndConfirmTransaction(ctx, tx)
}

func (wm *WalletManager) SendAndConfirmTransaction(
	ctx context.Context,
	tx *solana.Transaction,
) (solana.Signature, error) {
	sig, err := wm.Client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       wm.SkipPreflight,
		PreflightCommitment: wm.Commitment,
	})
	if err != nil {
		return solana.Signature{}, err
	}
	zap.L().Debug("Transaction submitted", zap.String("signature", sig.String()))
	return wm.awaitSignaturesConfirmation(ctx, []solana.Signature{sig})
}

func (wm *WalletManager) awaitSignaturesConfirmation(
	ctx context.Context,
	signatures []solana.Signature,
) (solana.Signature, error) {
	if len(signatures) == 0 {
		return solana.Signature{}, errors.New("signatures array is empty")
	}
	after := time.After(wm.ConfirmationTimeout)
	ticker := time.NewTicker(wm.ConfirmationDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			result, err := wm.Client.GetSignatureStatuses(ctx, true, signatures...)
			if err != nil {
				zap.L().With(zap.Error(err)).Debug("Failed to poll signature statuses")
				continue
			}
			for idx, res := range result.Value {
				if res == nil {
					continue
				}
				if res.Err != nil {
					return signatures[idx], &TransactionFailedError{Signature: signatures[idx], Err: res.Err}
				}
				if confirmationReached(res.ConfirmationStatus, wm.ConfirmationStatusType) {
					return signatures[idx], nil
				}
			}
		case <-after:
			return solana.Signature{}, ErrConfirmationTimeout
		case <-ctx.Done():
			return solana.Signature{}, ctx.Err()
		}
	}
}

var confirmationRank = map[rpc.ConfirmationStatusType]int{
	rpc.ConfirmationStatusProcessed: 1,
	rpc.ConfirmationStatusConfirmed: 2,
	rpc.ConfirmationStatusFinalized: 3,
}

// confirmationReached reports whether status is at least as strong as wanted.
func confirmationReached(status, wanted rpc.ConfirmationStatusType) bool {
	got, ok := confirmationRank[status]
	if !ok {
		return false
	}
	return got >= confirmationRank[wanted]
}
