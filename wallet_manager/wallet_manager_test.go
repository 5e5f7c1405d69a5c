package wallet_manager_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"

	"solana-nft-marketplace/fake_cluster"
	"solana-nft-marketplace/marketplace"
	"solana-nft-marketplace/wallet_manager"
)

var ctx = context.TODO()

// stalledCluster accepts transactions but never reports them confirmed.
type stalledCluster struct {
	*fake_cluster.Cluster
	statusErr interface{}
}

func (c *stalledCluster) GetSignatureStatuses(_ context.Context, _ bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	out := &rpc.GetSignatureStatusesResult{}
	for range signatures {
		out.Value = append(out.Value, &rpc.SignatureStatusesResult{
			ConfirmationStatus: rpc.ConfirmationStatusProcessed,
			Err:                c.statusErr,
		})
	}
	return out, nil
}

func newWalletManager(client wallet_manager.RPCClient) *wallet_manager.WalletManager {
	return wallet_manager.NewWalletManagerWithOpts(
		client,
		rpc.CommitmentConfirmed,
		rpc.ConfirmationStatusConfirmed,
		time.Duration(50)*time.Millisecond,
		time.Millisecond,
		false,
	)
}

func TestWalletManager_RequestAirdrop(t *testing.T) {
	cluster := fake_cluster.New(marketplace.DefaultProgramID)
	wm := newWalletManager(cluster)
	wallet := solana.NewWallet()
	lamports := uint64(0.5 * float64(solana.LAMPORTS_PER_SOL))

	if _, err := wm.RequestAirdrop(ctx, wallet.PublicKey(), lamports); err != nil {
		t.Fatalf("failed to request airdrop: %s", err.Error())
	}
	balance, err := wm.GetBalance(ctx, wallet.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	if balance != lamports {
		t.Fatalf("balance is %d != %d", balance, lamports)
	}
}

func TestWalletManager_NoInstructions(t *testing.T) {
	wm := newWalletManager(fake_cluster.New(marketplace.DefaultProgramID))
	signer := wallet_manager.NewKeypairSigner(solana.NewWallet().PrivateKey)
	if _, err := wm.SendAndConfirmInstructions(ctx, signer, nil); err != wallet_manager.ErrNoInstructions {
		t.Fatalf("expected ErrNoInstructions, got %v", err)
	}
}

func TestWalletManager_ConfirmationTimeout(t *testing.T) {
	cluster := &stalledCluster{Cluster: fake_cluster.New(marketplace.DefaultProgramID)}
	wm := newWalletManager(cluster)
	if _, err := wm.RequestAirdrop(ctx, solana.NewWallet().PublicKey(), 1); err != wallet_manager.ErrConfirmationTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestWalletManager_FailedStatus(t *testing.T) {
	cluster := &stalledCluster{
		Cluster:   fake_cluster.New(marketplace.DefaultProgramID),
		statusErr: map[string]interface{}{"InstructionError": []interface{}{float64(0), map[string]interface{}{"Custom": float64(6002)}}},
	}
	wm := newWalletManager(cluster)
	_, err := wm.RequestAirdrop(ctx, solana.NewWallet().PublicKey(), 1)
	var failed *wallet_manager.TransactionFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected TransactionFailedError, got %v", err)
	}
	if !errors.Is(marketplace.ParseProgramError(err), marketplace.ErrInsufficientFunds) {
		t.Fatalf("status error did not map to InsufficientFunds: %v", err)
	}
}

func TestWalletManager_ContextCancelled(t *testing.T) {
	cluster := &stalledCluster{Cluster: fake_cluster.New(marketplace.DefaultProgramID)}
	wm := wallet_manager.NewWalletManagerWithOpts(
		cluster,
		rpc.CommitmentConfirmed,
		rpc.ConfirmationStatusConfirmed,
		time.Minute,
		time.Millisecond,
		false,
	)
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := wm.RequestAirdrop(cancelled, solana.NewWallet().PublicKey(), 1); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestKeypairSigner_SignTransaction(t *testing.T) {
	wallet := solana.NewWallet()
	signer := wallet_manager.NewKeypairSigner(wallet.PrivateKey)
	tx, err := solana.NewTransactionBuilder().
		SetFeePayer(wallet.PublicKey()).
		SetRecentBlockHash(solana.Hash{1}).
		AddInstruction(system.NewTransferInstructionBuilder().
			SetFundingAccount(wallet.PublicKey()).
			SetRecipientAccount(solana.NewWallet().PublicKey()).
			SetLamports(1).
			Build()).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if err := signer.SignTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}
	if err := tx.VerifySignatures(); err != nil {
		t.Fatal(err)
	}
}

// Runs against devnet when MARKETPLACE_TEST_LIVE is set; devnet airdrops are
// rate limited.
func TestWalletManager_LiveAirdrop(t *testing.T) {
	if os.Getenv("MARKETPLACE_TEST_LIVE") == "" {
		t.Skip("MARKETPLACE_TEST_LIVE is not set")
	}
	wm := wallet_manager.NewWalletManager(rpc.New(rpc.DevNet.RPC))
	wallet := solana.NewWallet()
	sig, err := wm.RequestAirdrop(ctx, wallet.PublicKey(), uint64(0.01*float64(solana.LAMPORTS_PER_SOL)))
	if err != nil {
		t.Fatal(err)
	}
	t.Log(sig.String())
}
