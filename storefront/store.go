package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-nft-marketplace/marketplace"
	"solana-nft-marketplace/wallet_manager"
)

const (
	DefaultBalanceRefresh = 30 * time.Second

	ListingStatusActive = "active"
)

var (
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrNoBalanceSource    = errors.New("store has no balance source")
)

// MarketplaceService is the subset of the marketplace client the store uses.
type MarketplaceService interface {
	InitializeMarketplace(ctx context.Context, name string, feeBps uint16, authority wallet_manager.Signer) (solana.Signature, error)
	ListNft(ctx context.Context, nftMint, metadata solana.PublicKey, price uint64, maker wallet_manager.Signer) (solana.Signature, error)
	PurchaseNft(ctx context.Context, nftMint solana.PublicKey, buyer wallet_manager.Signer, expectedPrice uint64) (solana.Signature, error)
	DelistNft(ctx context.Context, nftMint solana.PublicKey, maker wallet_manager.Signer) (solana.Signature, error)
	UpdateFee(ctx context.Context, feeBps uint16, authority wallet_manager.Signer) (solana.Signature, error)
	GetMarketplaceData(ctx context.Context) (*marketplace.Marketplace, error)
	GetListingData(ctx context.Context, nftMint solana.PublicKey) (*marketplace.Listing, error)
	GetAllListings(ctx context.Context) ([]marketplace.ListingAccount, error)
}

var _ MarketplaceService = (*marketplace.MarketplaceClient)(nil)

type BalanceSource interface {
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

var _ BalanceSource = (*wallet_manager.WalletManager)(nil)

type ListingView struct {
	Address       solana.PublicKey
	Mint          solana.PublicKey
	Name          string
	Symbol        string
	Image         string
	Description   string
	Attributes    []Attribute
	Seller        solana.PublicKey
	SellerShort   string
	PriceLamports uint64
	PriceSOL      decimal.Decimal
	Status        string
}

// Store caches marketplace state for one connected wallet and refreshes it
// after every transaction it sends.
type Store struct {
	service  MarketplaceService
	signer   wallet_manager.Signer
	resolver MetadataResolver
	balances BalanceSource

	mu          sync.RWMutex
	marketplace *marketplace.Marketplace
	initialized bool
	listings    []ListingView
	balance     uint64
}

// NewStore builds a store. signer may be nil for a read-only store and
// balances may be nil when the wallet balance is not tracked.
func NewStore(service MarketplaceService, signer wallet_manager.Signer, resolver MetadataResolver, balances BalanceSource) *Store {
	if resolver == nil {
		resolver = FixtureResolver{}
	}
	return &Store{
		service:  service,
		signer:   signer,
		resolver: resolver,
		balances: balances,
	}
}

func (s *Store) Marketplace() (*marketplace.Marketplace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marketplace, s.initialized
}

func (s *Store) Listings() []ListingView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ListingView, len(s.listings))
	copy(out, s.listings)
	return out
}

func (s *Store) Balance() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance
}

func (s *Store) FetchMarketplaceData(ctx context.Context) (*marketplace.Marketplace, error) {
	m, err := s.service.GetMarketplaceData(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch marketplace")
	}
	s.mu.Lock()
	s.marketplace = m
	s.initialized = m != nil
	s.mu.Unlock()
	return m, nil
}

func (s *Store) FetchListings(ctx context.Context) ([]ListingView, error) {
	accounts, err := s.service.GetAllListings(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch listings")
	}
	views := make([]ListingView, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, s.view(ctx, account))
	}
	s.mu.Lock()
	s.listings = views
	s.mu.Unlock()
	return views, nil
}

func (s *Store) FetchBalance(ctx context.Context) (uint64, error) {
	if s.signer == nil {
		return 0, ErrWalletNotConnected
	}
	if s.balances == nil {
		return 0, ErrNoBalanceSource
	}
	balance, err := s.balances.GetBalance(ctx, s.signer.PublicKey())
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.balance = balance
	s.mu.Unlock()
	return balance, nil
}

// Refresh re-reads the marketplace, the listings and, with a connected
// wallet and a balance source, its balance.
func (s *Store) Refresh(ctx context.Context) error {
	if _, err := s.FetchMarketplaceData(ctx); err != nil {
		return err
	}
	if _, err := s.FetchListings(ctx); err != nil {
		return err
	}
	if s.signer != nil && s.balances != nil {
		if _, err := s.FetchBalance(ctx); err != nil {
			return errors.Wrap(err, "failed to fetch balance")
		}
	}
	return nil
}

func (s *Store) IsAuthority() bool {
	if s.signer == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marketplace != nil && s.marketplace.Authority.Equals(s.signer.PublicKey())
}

func (s *Store) InitializeMarketplace(ctx context.Context, name string, feeBps uint16) (solana.Signature, error) {
	if s.signer == nil {
		return solana.Signature{}, ErrWalletNotConnected
	}
	sig, err := s.service.InitializeMarketplace(ctx, name, feeBps, s.signer)
	if err != nil {
		return sig, err
	}
	return sig, s.afterWrite(ctx, false)
}

func (s *Store) UpdateMarketplaceFee(ctx context.Context, feeBps uint16) (solana.Signature, error) {
	if s.signer == nil {
		return solana.Signature{}, ErrWalletNotConnected
	}
	sig, err := s.service.UpdateFee(ctx, feeBps, s.signer)
	if err != nil {
		return sig, err
	}
	return sig, s.afterWrite(ctx, false)
}

// CreateListing lists mint at price SOL. A zero metadata key uses the mint's
// Metaplex metadata account.
func (s *Store) CreateListing(ctx context.Context, mint, metadata solana.PublicKey, price decimal.Decimal) (solana.Signature, error) {
	if s.signer == nil {
		return solana.Signature{}, ErrWalletNotConnected
	}
	lamports, err := SolToLamports(price)
	if err != nil {
		return solana.Signature{}, err
	}
	sig, err := s.service.ListNft(ctx, mint, metadata, lamports, s.signer)
	if err != nil {
		return sig, err
	}
	return sig, s.afterWrite(ctx, true)
}

// PurchaseNft buys mint at the price the store last showed. The purchase is
// refused with marketplace.ErrPriceMismatch if the listing changed since.
func (s *Store) PurchaseNft(ctx context.Context, mint solana.PublicKey) (solana.Signature, error) {
	if s.signer == nil {
		return solana.Signature{}, ErrWalletNotConnected
	}
	var expectedPrice uint64
	if view, ok := s.listing(mint); ok {
		expectedPrice = view.PriceLamports
	}
	sig, err := s.service.PurchaseNft(ctx, mint, s.signer, expectedPrice)
	if err != nil {
		return sig, err
	}
	return sig, s.afterWrite(ctx, true)
}

func (s *Store) CancelListing(ctx context.Context, mint solana.PublicKey) (solana.Signature, error) {
	if s.signer == nil {
		return solana.Signature{}, ErrWalletNotConnected
	}
	sig, err := s.service.DelistNft(ctx, mint, s.signer)
	if err != nil {
		return sig, err
	}
	return sig, s.afterWrite(ctx, true)
}

// Quote prices the cached listing of mint under the cached fee.
func (s *Store) Quote(mint solana.PublicKey) (marketplace.PurchaseQuote, bool) {
	view, ok := s.listing(mint)
	if !ok {
		return marketplace.PurchaseQuote{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.marketplace == nil {
		return marketplace.PurchaseQuote{}, false
	}
	return marketplace.Quote(marketplace.Listing{Price: view.PriceLamports}, *s.marketplace), true
}

// WatchBalance polls the wallet balance every interval until ctx is done.
// onChange, if set, is called whenever the balance differs from the last
// observed value.
func (s *Store) WatchBalance(ctx context.Context, interval time.Duration, onChange func(uint64)) error {
	if s.signer == nil {
		return ErrWalletNotConnected
	}
	if s.balances == nil {
		return ErrNoBalanceSource
	}
	if interval <= 0 {
		interval = DefaultBalanceRefresh
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last, err := s.FetchBalance(ctx)
	if err != nil {
		zap.L().With(zap.Error(err)).Warn("Failed to fetch balance")
	} else if onChange != nil {
		onChange(last)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			balance, err := s.FetchBalance(ctx)
			if err != nil {
				zap.L().With(zap.Error(err)).Warn("Failed to fetch balance")
				continue
			}
			if balance != last {
				last = balance
				if onChange != nil {
					onChange(balance)
				}
			}
		}
	}
}

func (s *Store) afterWrite(ctx context.Context, listings bool) error {
	if _, err := s.FetchMarketplaceData(ctx); err != nil {
		return err
	}
	if listings {
		if _, err := s.FetchListings(ctx); err != nil {
			return err
		}
	}
	if s.signer != nil && s.balances != nil {
		if _, err := s.FetchBalance(ctx); err != nil {
			zap.L().With(zap.Error(err)).Warn("Failed to refresh balance")
		}
	}
	return nil
}

func (s *Store) listing(mint solana.PublicKey) (ListingView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, view := range s.listings {
		if view.Mint.Equals(mint) {
			return view, true
		}
	}
	return ListingView{}, false
}

func (s *Store) view(ctx context.Context, account marketplace.ListingAccount) ListingView {
	listing := account.Listing
	view := ListingView{
		Address:       account.Address,
		Mint:          listing.NftMint,
		Seller:        listing.Maker,
		SellerShort:   FormatAddress(listing.Maker.String(), 4),
		PriceLamports: listing.Price,
		PriceSOL:      LamportsToSol(listing.Price),
		Status:        ListingStatusActive,
	}
	display, err := s.resolver.Resolve(ctx, listing.NftMint, listing.Metadata)
	if err != nil {
		zap.L().With(zap.Error(err)).Debug("No display metadata", zap.String("mint", listing.NftMint.String()))
		display = DisplayMetadata{Name: FormatAddress(listing.NftMint.String(), 4)}
	}
	view.Name = display.Name
	view.Symbol = display.Symbol
	view.Image = display.Image
	view.Description = display.Description
	view.Attributes = display.Attributes
	return view
}
