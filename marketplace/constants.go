package marketplace

import "github.com/gagliardetto/solana-go"

var (
	seedMarketplace = "marketplace"
	seedTreasury    = "treasury"
	seedListing     = "listing"
	seedVault       = "vault"
	seedMetadata    = "metadata"

	// DefaultProgramID is the deployed anchor_nft_marketplace program.
	DefaultProgramID = solana.MustPublicKeyFromBase58("FvdEiEPJUEMUZ7HCkK2gPfYGFXCbUB68mTJufdC9BjC5")
)

const (
	MaxNameLength = 32
	MaxFeeBps     = 10000
)
