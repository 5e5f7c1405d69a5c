package fake_cluster

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"solana-nft-marketplace/marketplace"
)

type instructionContext struct {
	index    int
	accounts []solana.PublicKey
	signers  map[solana.PublicKey]bool
	args     []byte
}

func (ic instructionContext) account(i int) solana.PublicKey {
	if i >= len(ic.accounts) {
		return solana.PublicKey{}
	}
	return ic.accounts[i]
}

func (ic instructionContext) fail(err *marketplace.ProgramError) error {
	return customError(ic.index, err.Code)
}

func (c *Cluster) execute(tx *solana.Transaction, index int, compiled solana.CompiledInstruction) error {
	keys := tx.Message.AccountKeys
	if int(compiled.ProgramIDIndex) >= len(keys) {
		return &jsonrpc.RPCError{Code: -32602, Message: "invalid program id index"}
	}
	if !keys[compiled.ProgramIDIndex].Equals(c.addresses.ProgramID) {
		return &jsonrpc.RPCError{Code: -32002, Message: fmt.Sprintf(
			"Transaction simulation failed: unsupported program %s", keys[compiled.ProgramIDIndex].String(),
		)}
	}
	ic := instructionContext{index: index, signers: map[solana.PublicKey]bool{}}
	for _, accountIndex := range compiled.Accounts {
		ic.accounts = append(ic.accounts, keys[accountIndex])
	}
	for i := 0; i < int(tx.Message.Header.NumRequiredSignatures) && i < len(keys); i++ {
		ic.signers[keys[i]] = true
	}
	name, args, err := marketplace.DecodeInstruction(compiled.Data)
	if err != nil {
		return customError(index, 101)
	}
	ic.args = args

	switch name {
	case marketplace.InstructionInitializeMarketplace:
		return c.initializeMarketplace(ic)
	case marketplace.InstructionListNft:
		return c.listNft(ic)
	case marketplace.InstructionPurchaseNft:
		return c.purchaseNft(ic)
	case marketplace.InstructionDelistNft:
		return c.delistNft(ic)
	case marketplace.InstructionUpdateFee:
		return c.updateFee(ic)
	}
	return customError(index, 101)
}

func (c *Cluster) initializeMarketplace(ic instructionContext) error {
	var args marketplace.InitializeMarketplaceArgs
	if err := decodeArgs(ic.args, &args); err != nil {
		return err
	}
	marketplaceKey, marketplaceBump, _ := marketplace.DeriveMarketplaceAddress(c.addresses.ProgramID)
	treasuryKey, treasuryBump, _ := marketplace.DeriveTreasuryAddress(c.addresses.ProgramID)
	authority := ic.account(2)
	if !ic.account(0).Equals(marketplaceKey) || !ic.account(1).Equals(treasuryKey) {
		return customError(ic.index, 2006)
	}
	if !ic.signers[authority] {
		return ic.fail(marketplace.ErrNotAuthorized)
	}
	if _, exists := c.accounts[marketplaceKey]; exists {
		return customError(ic.index, systemAccountInUse)
	}
	if args.Fee > marketplace.MaxFeeBps {
		return ic.fail(marketplace.ErrInvalidFee)
	}
	data, err := marketplace.EncodeMarketplace(marketplace.Marketplace{
		Authority:       authority,
		FeeBps:          args.Fee,
		MarketplaceBump: marketplaceBump,
		Treasury:        treasuryKey,
		TreasuryBump:    treasuryBump,
		Name:            args.Name,
	})
	if err != nil {
		return err
	}
	c.accounts[marketplaceKey] = &account{owner: c.addresses.ProgramID, data: data}
	c.accounts[treasuryKey] = &account{owner: c.addresses.ProgramID}
	return nil
}

func (c *Cluster) listNft(ic instructionContext) error {
	var args marketplace.ListNftArgs
	if err := decodeArgs(ic.args, &args); err != nil {
		return err
	}
	listingKey, mint, metadata, maker := ic.account(0), ic.account(2), ic.account(3), ic.account(4)
	if _, err := c.loadMarketplace(ic); err != nil {
		return err
	}
	expectedListing, bump, _ := marketplace.DeriveListingAddress(c.addresses.ProgramID, mint)
	if !listingKey.Equals(expectedListing) || !ic.account(1).Equals(c.addresses.Vault(mint)) {
		return customError(ic.index, 2006)
	}
	if !ic.signers[maker] {
		return ic.fail(marketplace.ErrNotAuthorized)
	}
	if args.Price == 0 {
		return ic.fail(marketplace.ErrInvalidPrice)
	}
	if _, exists := c.accounts[listingKey]; exists {
		return customError(ic.index, systemAccountInUse)
	}
	if owner, known := c.owners[mint]; known && !owner.Equals(maker) {
		return ic.fail(marketplace.ErrNotAuthorized)
	}
	data, err := marketplace.EncodeListing(marketplace.Listing{
		Maker:    maker,
		NftMint:  mint,
		Price:    args.Price,
		Metadata: metadata,
		Bump:     bump,
	})
	if err != nil {
		return err
	}
	vault := c.addresses.Vault(mint)
	c.accounts[listingKey] = &account{owner: c.addresses.ProgramID, data: data}
	c.accounts[vault] = &account{owner: c.addresses.ProgramID}
	c.owners[mint] = vault
	return nil
}

func (c *Cluster) purchaseNft(ic instructionContext) error {
	listingKey, mint, buyer, treasury := ic.account(0), ic.account(2), ic.account(3), ic.account(5)
	m, err := c.loadMarketplace(ic)
	if err != nil {
		return err
	}
	if !treasury.Equals(m.Treasury) {
		return customError(ic.index, 2006)
	}
	if !ic.signers[buyer] {
		return ic.fail(marketplace.ErrNotAuthorized)
	}
	listing, err := c.loadListing(ic, listingKey, mint)
	if err != nil {
		return err
	}
	quote := marketplace.Quote(*listing, *m)
	// A saturated total is an overflowing price; the program's checked add fails.
	if quote.Total-quote.Fee != quote.Price || c.balances[buyer] < quote.Total {
		return ic.fail(marketplace.ErrInsufficientFunds)
	}
	c.balances[buyer] -= quote.Total
	c.balances[listing.Maker] += quote.Price
	c.accounts[treasury].lamports += quote.Fee
	c.owners[mint] = buyer
	c.closeListing(mint)
	return nil
}

func (c *Cluster) delistNft(ic instructionContext) error {
	listingKey, mint, maker := ic.account(0), ic.account(2), ic.account(3)
	if _, err := c.loadMarketplace(ic); err != nil {
		return err
	}
	listing, err := c.loadListing(ic, listingKey, mint)
	if err != nil {
		return err
	}
	if !ic.signers[maker] || !listing.Maker.Equals(maker) {
		return ic.fail(marketplace.ErrNotAuthorized)
	}
	c.owners[mint] = maker
	c.closeListing(mint)
	return nil
}

func (c *Cluster) updateFee(ic instructionContext) error {
	var args marketplace.UpdateFeeArgs
	if err := decodeArgs(ic.args, &args); err != nil {
		return err
	}
	m, err := c.loadMarketplace(ic)
	if err != nil {
		return err
	}
	authority := ic.account(1)
	if !ic.signers[authority] || !m.Authority.Equals(authority) {
		return ic.fail(marketplace.ErrNotAuthorized)
	}
	if args.UpdatedFee > marketplace.MaxFeeBps {
		return ic.fail(marketplace.ErrInvalidFee)
	}
	m.FeeBps = args.UpdatedFee
	data, err := marketplace.EncodeMarketplace(*m)
	if err != nil {
		return err
	}
	c.accounts[c.addresses.Marketplace()].data = data
	return nil
}

func (c *Cluster) loadMarketplace(ic instructionContext) (*marketplace.Marketplace, error) {
	acc, ok := c.accounts[c.addresses.Marketplace()]
	if !ok {
		return nil, ic.fail(marketplace.ErrMarketplaceNotInitialized)
	}
	return marketplace.DecodeMarketplace(acc.data)
}

func (c *Cluster) loadListing(ic instructionContext, listingKey, mint solana.PublicKey) (*marketplace.Listing, error) {
	if !listingKey.Equals(c.addresses.Listing(mint)) {
		return nil, customError(ic.index, 2006)
	}
	acc, ok := c.accounts[listingKey]
	if !ok {
		return nil, ic.fail(marketplace.ErrListingNotFound)
	}
	return marketplace.DecodeListing(acc.data)
}

func (c *Cluster) closeListing(mint solana.PublicKey) {
	delete(c.accounts, c.addresses.Listing(mint))
	delete(c.accounts, c.addresses.Vault(mint))
}
