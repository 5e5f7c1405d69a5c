package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-nft-marketplace/marketplace"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "devnet", cfg.Network)
	assert.Equal(t, rpc.DevNet.RPC, cfg.Endpoint())
	assert.True(t, cfg.Program().Equals(marketplace.DefaultProgramID))
	assert.Equal(t, rpc.CommitmentConfirmed, cfg.CommitmentType())
	assert.Equal(t, rpc.ConfirmationStatusConfirmed, cfg.ConfirmationStatus())
	assert.Equal(t, 60*time.Second, cfg.Confirmation.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Confirmation.Delay)
	assert.Equal(t, 30*time.Second, cfg.BalanceRefresh)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("MARKETPLACE_NETWORK", "mainnet-beta")
	t.Setenv("MARKETPLACE_CONFIRMATION_TIMEOUT", "90s")
	t.Setenv("MARKETPLACE_COMMITMENT", "finalized")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, rpc.MainNetBeta.RPC, cfg.Endpoint())
	assert.Equal(t, 90*time.Second, cfg.Confirmation.Timeout)
	assert.Equal(t, rpc.ConfirmationStatusFinalized, cfg.ConfirmationStatus())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketplace.yaml")
	content := "network: localnet\nrpc_url: http://127.0.0.1:8899\nconfirmation:\n  delay: 500ms\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8899", cfg.Endpoint())
	assert.Equal(t, 500*time.Millisecond, cfg.Confirmation.Delay)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("MARKETPLACE_NETWORK", "moonnet")
	_, err := Load("")
	require.Error(t, err)
}

func TestValidate_ProgramID(t *testing.T) {
	t.Setenv("MARKETPLACE_PROGRAM_ID", "not-a-key")
	_, err := Load("")
	require.Error(t, err)
}
