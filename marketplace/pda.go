package marketplace

import (
	token_metadata "github.com/gagliardetto/metaplex-go/clients/token-metadata"
	"github.com/gagliardetto/solana-go"
)

func DeriveMarketplaceAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedMarketplace)}, programID)
}

func DeriveTreasuryAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedTreasury)}, programID)
}

func DeriveListingAddress(programID, nftMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedListing), nftMint.Bytes()}, programID)
}

func DeriveVaultAddress(programID, nftMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedVault), nftMint.Bytes()}, programID)
}

// DeriveMetadataAddress returns the Metaplex token-metadata account of a mint.
func DeriveMetadataAddress(nftMint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte(seedMetadata),
			token_metadata.ProgramID.Bytes(),
			nftMint.Bytes(),
		},
		token_metadata.ProgramID,
	)
	return addr, err
}

// Addresses derives every account of one program deployment. A search for a
// valid bump only fails when no bump in 255..0 yields an off-curve point,
// which does not happen for these seed lengths, so the methods panic on error.
type Addresses struct {
	ProgramID solana.PublicKey
}

func NewAddresses(programID solana.PublicKey) Addresses {
	return Addresses{ProgramID: programID}
}

func (a Addresses) Marketplace() solana.PublicKey {
	return mustAddress(DeriveMarketplaceAddress(a.ProgramID))
}

func (a Addresses) Treasury() solana.PublicKey {
	return mustAddress(DeriveTreasuryAddress(a.ProgramID))
}

func (a Addresses) Listing(nftMint solana.PublicKey) solana.PublicKey {
	return mustAddress(DeriveListingAddress(a.ProgramID, nftMint))
}

func (a Addresses) Vault(nftMint solana.PublicKey) solana.PublicKey {
	return mustAddress(DeriveVaultAddress(a.ProgramID, nftMint))
}

func mustAddress(addr solana.PublicKey, _ uint8, err error) solana.PublicKey {
	if err != nil {
		panic(err)
	}
	return addr
}
