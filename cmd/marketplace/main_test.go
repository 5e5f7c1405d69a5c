package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"solana-nft-marketplace/log"
)

func TestNewApp_Commands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"init", "update-fee", "list", "buy", "delist", "show", "listing", "listings", "addresses", "balance", "airdrop", "watch"} {
		require.NotNil(t, app.Command(name), name)
	}
}

func TestNewApp_ConfigError(t *testing.T) {
	t.Setenv("MARKETPLACE_NETWORK", "bogus")
	defer zap.ReplaceGlobals(zap.NewNop())

	require.NoError(t, log.NewLogger("", false))
	require.True(t, zap.L().Core().Enabled(zapcore.ErrorLevel))

	err := newApp().Run([]string{"marketplace", "show"})
	require.ErrorContains(t, err, "invalid config")
}

func TestNewApp_Addresses(t *testing.T) {
	defer zap.ReplaceGlobals(zap.NewNop())

	require.NoError(t, newApp().Run([]string{"marketplace", "addresses"}))
	require.NotNil(t, client)
	require.Equal(t, "FFSrRYzjUbubHcQ8q8L52rxXPHvX8Z8Dq79eDBGmxNpN", client.Addresses.Marketplace().String())
}
