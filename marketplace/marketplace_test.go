package marketplace_test

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"

	"solana-nft-marketplace/fake_cluster"
	"solana-nft-marketplace/marketplace"
	"solana-nft-marketplace/wallet_manager"
)

const lamportsPerSol = uint64(solana.LAMPORTS_PER_SOL)

type declinedSigner struct {
	key solana.PublicKey
}

func (s declinedSigner) PublicKey() solana.PublicKey { return s.key }

func (s declinedSigner) SignTransaction(context.Context, *solana.Transaction) error {
	return wallet_manager.ErrSignerDeclined
}

type marketplaceTestSuite struct {
	suite.Suite
	ctx       context.Context
	cluster   *fake_cluster.Cluster
	client    *marketplace.MarketplaceClient
	authority *wallet_manager.KeypairSigner
	maker     *wallet_manager.KeypairSigner
	buyer     *wallet_manager.KeypairSigner
}

func TestMarketplaceClient(t *testing.T) {
	suite.Run(t, new(marketplaceTestSuite))
}

func (s *marketplaceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.cluster = fake_cluster.New(marketplace.DefaultProgramID)
	wm := wallet_manager.NewWalletManagerWithOpts(
		s.cluster,
		rpc.CommitmentConfirmed,
		rpc.ConfirmationStatusConfirmed,
		time.Second,
		time.Millisecond,
		false,
	)
	s.client = marketplace.NewMarketplaceClient(wm, marketplace.DefaultProgramID)
	s.authority = wallet_manager.NewKeypairSigner(solana.NewWallet().PrivateKey)
	s.maker = wallet_manager.NewKeypairSigner(solana.NewWallet().PrivateKey)
	s.buyer = wallet_manager.NewKeypairSigner(solana.NewWallet().PrivateKey)
}

func (s *marketplaceTestSuite) initialize(feeBps uint16) {
	_, err := s.client.InitializeMarketplace(s.ctx, "Test", feeBps, s.authority)
	s.Require().NoError(err)
}

func (s *marketplaceTestSuite) TestGetMarketplaceData_NotInitialized() {
	m, err := s.client.GetMarketplaceData(s.ctx)
	s.Require().NoError(err)
	s.Nil(m)

	initialized, err := s.client.IsMarketplaceInitialized(s.ctx)
	s.Require().NoError(err)
	s.False(initialized)
}

func (s *marketplaceTestSuite) TestInitializeMarketplace_RoundTrip() {
	sig, err := s.client.InitializeMarketplace(s.ctx, "Test", 250, s.authority)
	s.Require().NoError(err)
	s.False(sig.IsZero())

	m, err := s.client.GetMarketplaceData(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(m)
	s.Equal("Test", m.Name)
	s.Equal(uint16(250), m.FeeBps)
	s.True(m.Authority.Equals(s.authority.PublicKey()))
	s.True(m.Treasury.Equals(s.client.Addresses.Treasury()))
}

func (s *marketplaceTestSuite) TestInitializeMarketplace_Twice() {
	s.initialize(250)
	_, err := s.client.InitializeMarketplace(s.ctx, "Again", 100, s.authority)
	s.Require().Error(err)

	m, err := s.client.GetMarketplaceData(s.ctx)
	s.Require().NoError(err)
	s.Equal("Test", m.Name)
}

func (s *marketplaceTestSuite) TestInitializeMarketplace_NameTooLong() {
	_, err := s.client.InitializeMarketplace(s.ctx, "a marketplace name that is far too long", 250, s.authority)
	s.ErrorIs(err, marketplace.ErrNameTooLong)
	s.Equal(0, s.cluster.SentTransactions())
}

func (s *marketplaceTestSuite) TestUpdateFee_Bounds() {
	s.initialize(250)

	_, err := s.client.UpdateFee(s.ctx, 10000, s.authority)
	s.Require().NoError(err)
	m, err := s.client.GetMarketplaceData(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint16(10000), m.FeeBps)

	_, err = s.client.UpdateFee(s.ctx, 10001, s.authority)
	s.ErrorIs(err, marketplace.ErrInvalidFee)
	m, err = s.client.GetMarketplaceData(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint16(10000), m.FeeBps)
}

func (s *marketplaceTestSuite) TestUpdateFee_NotAuthority() {
	s.initialize(250)
	_, err := s.client.UpdateFee(s.ctx, 100, s.maker)
	s.ErrorIs(err, marketplace.ErrNotAuthorized)
}

func (s *marketplaceTestSuite) TestUpdateFee_NotInitialized() {
	_, err := s.client.UpdateFee(s.ctx, 100, s.authority)
	s.ErrorIs(err, marketplace.ErrMarketplaceNotInitialized)
}

func (s *marketplaceTestSuite) TestGetListingData_Absent() {
	s.initialize(250)
	listing, err := s.client.GetListingData(s.ctx, solana.NewWallet().PublicKey())
	s.Require().NoError(err)
	s.Nil(listing)
}

func (s *marketplaceTestSuite) TestListingLifecycle() {
	s.initialize(250)
	mint := solana.NewWallet().PublicKey()
	metadata := solana.NewWallet().PublicKey()
	price := lamportsPerSol
	s.cluster.MintTo(mint, s.maker.PublicKey())

	_, err := s.client.ListNft(s.ctx, mint, metadata, price, s.maker)
	s.Require().NoError(err)

	listing, err := s.client.GetListingData(s.ctx, mint)
	s.Require().NoError(err)
	s.Require().NotNil(listing)
	s.Equal(price, listing.Price)
	s.True(listing.Maker.Equals(s.maker.PublicKey()))
	s.True(listing.Metadata.Equals(metadata))
	owner, _ := s.cluster.OwnerOf(mint)
	s.True(owner.Equals(s.client.Addresses.Vault(mint)))

	quote := marketplace.Quote(*listing, marketplace.Marketplace{FeeBps: 250})
	s.cluster.Fund(s.buyer.PublicKey(), quote.Total)
	_, err = s.client.PurchaseNft(s.ctx, mint, s.buyer, price)
	s.Require().NoError(err)

	listing, err = s.client.GetListingData(s.ctx, mint)
	s.Require().NoError(err)
	s.Nil(listing)
	owner, _ = s.cluster.OwnerOf(mint)
	s.True(owner.Equals(s.buyer.PublicKey()))
	s.Equal(price, s.cluster.Balance(s.maker.PublicKey()))
	s.Equal(uint64(0), s.cluster.Balance(s.buyer.PublicKey()))
}

func (s *marketplaceTestSuite) TestListNft_InvalidPrice() {
	s.initialize(250)
	_, err := s.client.ListNft(s.ctx, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), 0, s.maker)
	s.ErrorIs(err, marketplace.ErrInvalidPrice)
}

func (s *marketplaceTestSuite) TestListNft_AlreadyListed() {
	s.initialize(250)
	mint := solana.NewWallet().PublicKey()
	_, err := s.client.ListNft(s.ctx, mint, solana.PublicKey{}, 10, s.maker)
	s.Require().NoError(err)
	_, err = s.client.ListNft(s.ctx, mint, solana.PublicKey{}, 20, s.maker)
	s.Require().Error(err)

	listing, err := s.client.GetListingData(s.ctx, mint)
	s.Require().NoError(err)
	s.Equal(uint64(10), listing.Price)
	expected, err := marketplace.DeriveMetadataAddress(mint)
	s.Require().NoError(err)
	s.True(listing.Metadata.Equals(expected))
}

func (s *marketplaceTestSuite) TestListNft_NotInitialized() {
	_, err := s.client.ListNft(s.ctx, solana.NewWallet().PublicKey(), solana.PublicKey{}, 10, s.maker)
	s.ErrorIs(err, marketplace.ErrMarketplaceNotInitialized)
}

func (s *marketplaceTestSuite) TestPurchaseNft_InsufficientFunds() {
	s.initialize(250)
	mint := solana.NewWallet().PublicKey()
	_, err := s.client.ListNft(s.ctx, mint, solana.PublicKey{}, lamportsPerSol, s.maker)
	s.Require().NoError(err)

	s.cluster.Fund(s.buyer.PublicKey(), lamportsPerSol)
	_, err = s.client.PurchaseNft(s.ctx, mint, s.buyer, 0)
	s.ErrorIs(err, marketplace.ErrInsufficientFunds)

	listing, err := s.client.GetListingData(s.ctx, mint)
	s.Require().NoError(err)
	s.NotNil(listing)
}

func (s *marketplaceTestSuite) TestPurchaseNft_OverflowingTotal() {
	s.initialize(250)
	mint := solana.NewWallet().PublicKey()
	price := uint64(math.MaxUint64 - 10)
	_, err := s.client.ListNft(s.ctx, mint, solana.PublicKey{}, price, s.maker)
	s.Require().NoError(err)

	s.cluster.Fund(s.buyer.PublicKey(), math.MaxUint64)
	_, err = s.client.PurchaseNft(s.ctx, mint, s.buyer, price)
	s.ErrorIs(err, marketplace.ErrInsufficientFunds)
	s.Equal(uint64(math.MaxUint64), s.cluster.Balance(s.buyer.PublicKey()))
}

func (s *marketplaceTestSuite) TestPurchaseNft_NoListing() {
	s.initialize(250)
	_, err := s.client.PurchaseNft(s.ctx, solana.NewWallet().PublicKey(), s.buyer, 0)
	s.ErrorIs(err, marketplace.ErrListingNotFound)
}

func (s *marketplaceTestSuite) TestPurchaseNft_PriceChanged() {
	s.initialize(250)
	mint := solana.NewWallet().PublicKey()
	_, err := s.client.ListNft(s.ctx, mint, solana.PublicKey{}, 500, s.maker)
	s.Require().NoError(err)

	sent := s.cluster.SentTransactions()
	_, err = s.client.PurchaseNft(s.ctx, mint, s.buyer, 400)
	s.ErrorIs(err, marketplace.ErrPriceMismatch)
	s.Equal(sent, s.cluster.SentTransactions())
}

func (s *marketplaceTestSuite) TestDelistNft_Authorization() {
	s.initialize(250)
	mint := solana.NewWallet().PublicKey()
	_, err := s.client.ListNft(s.ctx, mint, solana.PublicKey{}, 500, s.maker)
	s.Require().NoError(err)

	_, err = s.client.DelistNft(s.ctx, mint, s.buyer)
	s.ErrorIs(err, marketplace.ErrNotAuthorized)

	_, err = s.client.DelistNft(s.ctx, mint, s.maker)
	s.Require().NoError(err)
	listing, err := s.client.GetListingData(s.ctx, mint)
	s.Require().NoError(err)
	s.Nil(listing)
	owner, _ := s.cluster.OwnerOf(mint)
	s.True(owner.Equals(s.maker.PublicKey()))
}

func (s *marketplaceTestSuite) TestGetAllListings() {
	s.initialize(250)
	listings, err := s.client.GetAllListings(s.ctx)
	s.Require().NoError(err)
	s.Empty(listings)

	mints := map[solana.PublicKey]uint64{}
	for i := uint64(1); i <= 3; i++ {
		mint := solana.NewWallet().PublicKey()
		mints[mint] = i * 100
		_, err := s.client.ListNft(s.ctx, mint, solana.PublicKey{}, i*100, s.maker)
		s.Require().NoError(err)
	}

	listings, err = s.client.GetAllListings(s.ctx)
	s.Require().NoError(err)
	s.Len(listings, 3)
	for _, listing := range listings {
		s.Equal(mints[listing.NftMint], listing.Price)
		s.True(listing.Address.Equals(s.client.Addresses.Listing(listing.NftMint)))
	}
}

func (s *marketplaceTestSuite) TestSignerDeclined() {
	_, err := s.client.InitializeMarketplace(s.ctx, "Test", 250, declinedSigner{key: s.authority.PublicKey()})
	s.ErrorIs(err, wallet_manager.ErrSignerDeclined)
	s.Equal(0, s.cluster.SentTransactions())
}

func (s *marketplaceTestSuite) TestConnectivityErrorPropagates() {
	unreachable := errors.New("dial tcp: connection refused")
	s.cluster.FailNextSend(unreachable)
	_, err := s.client.InitializeMarketplace(s.ctx, "Test", 250, s.authority)
	s.Equal(unreachable, err)
}

// Runs against a live cluster when MARKETPLACE_TEST_KEYPAIR points at a funded
// keypair and the program is deployed there.
func TestMarketplaceClient_Live(t *testing.T) {
	keypairPath := os.Getenv("MARKETPLACE_TEST_KEYPAIR")
	if keypairPath == "" {
		t.Skip("MARKETPLACE_TEST_KEYPAIR is not set")
	}
	signer, err := wallet_manager.NewKeypairSignerFromFile(keypairPath)
	if err != nil {
		t.Fatal(err)
	}
	client := marketplace.NewMarketplaceClient(wallet_manager.NewWalletManager(rpc.New(rpc.DevNet.RPC)), marketplace.DefaultProgramID)
	m, err := client.GetMarketplaceData(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if m == nil {
		t.Skip("marketplace is not initialized on devnet")
	}
	t.Logf("marketplace %q fee %d bps, authority %s, signer %s", m.Name, m.FeeBps, m.Authority, signer.PublicKey())
}
