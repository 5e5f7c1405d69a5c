package marketplace

import (
	"context"
	"math"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"solana-nft-marketplace/wallet_manager"
)

var ErrPriceMismatch = errors.New("listing price differs from expected price")

type MarketplaceClient struct {
	Wm        *wallet_manager.WalletManager
	Addresses Addresses
}

// PurchaseQuote is what a buyer pays for a listing under the current fee.
type PurchaseQuote struct {
	Price uint64
	Fee   uint64
	Total uint64
}

func NewMarketplaceClient(wm *wallet_manager.WalletManager, programID solana.PublicKey) *MarketplaceClient {
	return &MarketplaceClient{
		Wm:        wm,
		Addresses: NewAddresses(programID),
	}
}

func (c *MarketplaceClient) ProgramID() solana.PublicKey {
	return c.Addresses.ProgramID
}

func (c *MarketplaceClient) InitializeMarketplace(
	ctx context.Context,
	name string,
	feeBps uint16,
	authority wallet_manager.Signer,
) (solana.Signature, error) {
	instruction, err := c.Addresses.InitializeMarketplaceInstruction(name, feeBps, authority.PublicKey())
	if err != nil {
		return solana.Signature{}, err
	}
	zap.L().Info("Initializing marketplace",
		zap.String("name", name),
		zap.Uint16("feeBps", feeBps),
		zap.String("authority", authority.PublicKey().String()))
	return c.send(ctx, "initializeMarketplace", authority, instruction)
}

// ListNft lists a mint at price lamports. A zero metadata key is replaced by
// the mint's Metaplex metadata account.
func (c *MarketplaceClient) ListNft(
	ctx context.Context,
	nftMint solana.PublicKey,
	metadata solana.PublicKey,
	price uint64,
	maker wallet_manager.Signer,
) (solana.Signature, error) {
	if metadata.IsZero() {
		derived, err := DeriveMetadataAddress(nftMint)
		if err != nil {
			return solana.Signature{}, err
		}
		metadata = derived
	}
	instruction, err := c.Addresses.ListNftInstruction(nftMint, metadata, price, maker.PublicKey())
	if err != nil {
		return solana.Signature{}, err
	}
	zap.L().Info("Listing NFT",
		zap.String("mint", nftMint.String()),
		zap.Uint64("price", price),
		zap.String("maker", maker.PublicKey().String()))
	return c.send(ctx, "listNft", maker, instruction)
}

// PurchaseNft buys the listing of nftMint. When expectedPrice is non-zero
// the current listing is read first and the purchase is refused if the
// price has changed.
func (c *MarketplaceClient) PurchaseNft(
	ctx context.Context,
	nftMint solana.PublicKey,
	buyer wallet_manager.Signer,
	expectedPrice uint64,
) (solana.Signature, error) {
	if expectedPrice != 0 {
		listing, err := c.GetListingData(ctx, nftMint)
		if err != nil {
			return solana.Signature{}, err
		}
		if listing != nil && listing.Price != expectedPrice {
			return solana.Signature{}, errors.Wrapf(ErrPriceMismatch, "listed at %d, expected %d", listing.Price, expectedPrice)
		}
	}
	instruction, err := c.Addresses.PurchaseNftInstruction(nftMint, buyer.PublicKey())
	if err != nil {
		return solana.Signature{}, err
	}
	zap.L().Info("Purchasing NFT",
		zap.String("mint", nftMint.String()),
		zap.String("buyer", buyer.PublicKey().String()))
	return c.send(ctx, "purchaseNft", buyer, instruction)
}

func (c *MarketplaceClient) DelistNft(
	ctx context.Context,
	nftMint solana.PublicKey,
	maker wallet_manager.Signer,
) (solana.Signature, error) {
	instruction, err := c.Addresses.DelistNftInstruction(nftMint, maker.PublicKey())
	if err != nil {
		return solana.Signature{}, err
	}
	zap.L().Info("Delisting NFT",
		zap.String("mint", nftMint.String()),
		zap.String("maker", maker.PublicKey().String()))
	return c.send(ctx, "delistNft", maker, instruction)
}

func (c *MarketplaceClient) UpdateFee(
	ctx context.Context,
	feeBps uint16,
	authority wallet_manager.Signer,
) (solana.Signature, error) {
	instruction, err := c.Addresses.UpdateFeeInstruction(feeBps, authority.PublicKey())
	if err != nil {
		return solana.Signature{}, err
	}
	zap.L().Info("Updating marketplace fee", zap.Uint16("feeBps", feeBps))
	return c.send(ctx, "updateFee", authority, instruction)
}

// GetMarketplaceData returns nil without error when the marketplace has not
// been initialized.
func (c *MarketplaceClient) GetMarketplaceData(ctx context.Context) (*Marketplace, error) {
	data, err := c.getAccountData(ctx, c.Addresses.Marketplace())
	if err != nil || data == nil {
		return nil, err
	}
	return DecodeMarketplace(data)
}

func (c *MarketplaceClient) IsMarketplaceInitialized(ctx context.Context) (bool, error) {
	m, err := c.GetMarketplaceData(ctx)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// GetListingData returns nil without error when nftMint is not listed.
func (c *MarketplaceClient) GetListingData(ctx context.Context, nftMint solana.PublicKey) (*Listing, error) {
	data, err := c.getAccountData(ctx, c.Addresses.Listing(nftMint))
	if err != nil || data == nil {
		return nil, err
	}
	return DecodeListing(data)
}

// GetAllListings returns every open listing in the order the node returns
// them.
func (c *MarketplaceClient) GetAllListings(ctx context.Context) ([]ListingAccount, error) {
	disc := AccountDiscriminator(AccountListing)
	accounts, err := c.Wm.Client.GetProgramAccountsWithOpts(ctx, c.Addresses.ProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: c.Wm.Commitment,
		Encoding:   solana.EncodingBase64,
		Filters: []rpc.RPCFilter{
			{
				Memcmp: &rpc.RPCFilterMemcmp{
					Offset: 0,
					Bytes:  solana.Base58(disc[:]),
				},
			},
			{DataSize: ListingAccountSize},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch listing accounts")
	}
	listings := make([]ListingAccount, 0, len(accounts))
	for _, account := range accounts {
		if account == nil || account.Account == nil || account.Account.Data == nil {
			continue
		}
		listing, err := DecodeListing(account.Account.Data.GetBinary())
		if err != nil {
			return nil, errors.Wrapf(err, "listing %s", account.Pubkey.String())
		}
		listings = append(listings, ListingAccount{Address: account.Pubkey, Listing: *listing})
	}
	return listings, nil
}

// Quote computes the marketplace fee on a listing, rounded down. Total
// saturates at math.MaxUint64, which no wallet can cover.
func Quote(listing Listing, m Marketplace) PurchaseQuote {
	price := new(big.Int).SetUint64(listing.Price)
	fee := new(big.Int).Mul(price, big.NewInt(int64(m.FeeBps)))
	fee.Div(fee, big.NewInt(MaxFeeBps))
	total := new(big.Int).Add(price, fee)
	quote := PurchaseQuote{
		Price: listing.Price,
		Fee:   fee.Uint64(),
		Total: math.MaxUint64,
	}
	if total.IsUint64() {
		quote.Total = total.Uint64()
	}
	return quote
}

func (c *MarketplaceClient) send(
	ctx context.Context,
	operation string,
	signer wallet_manager.Signer,
	instruction solana.Instruction,
) (solana.Signature, error) {
	sig, err := c.Wm.SendAndConfirmInstructions(ctx, signer, []solana.Instruction{instruction})
	if err != nil {
		err = ParseProgramError(err)
		zap.L().With(zap.Error(err)).Warn("Marketplace transaction failed", zap.String("operation", operation))
		return solana.Signature{}, err
	}
	zap.L().Info("Marketplace transaction confirmed",
		zap.String("operation", operation),
		zap.String("signature", sig.String()))
	return sig, nil
}

func (c *MarketplaceClient) getAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	result, err := c.Wm.Client.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: c.Wm.Commitment,
		Encoding:   solana.EncodingBase64,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get account %s", account.String())
	}
	if result == nil || result.Value == nil || result.Value.Data == nil {
		return nil, nil
	}
	if !result.Value.Owner.Equals(c.Addresses.ProgramID) {
		return nil, errors.Wrapf(ErrAccountData, "account %s is owned by %s", account.String(), result.Value.Owner.String())
	}
	return result.Value.Data.GetBinary(), nil
}
