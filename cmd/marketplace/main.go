package main

import (
	"os"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"solana-nft-marketplace/config"
	"solana-nft-marketplace/log"
	"solana-nft-marketplace/marketplace"
	"solana-nft-marketplace/storefront"
	"solana-nft-marketplace/wallet_manager"
)

var (
	cfg    *config.Config
	wm     *wallet_manager.WalletManager
	client *marketplace.MarketplaceClient
	signer wallet_manager.Signer
	dump   bool
)

func main() {
	// Console only until the config names a log file.
	_ = log.NewLogger("", false)

	if err := newApp().Run(os.Args); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Command failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "marketplace",
		Usage: "list, buy and administer NFTs on the marketplace program",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file (yaml, toml or json)"},
			&cli.StringFlag{Name: "keypair", Aliases: []string{"k"}, Usage: "solana-keygen keypair file, overrides config"},
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "RPC url, overrides config"},
			&cli.BoolFlag{Name: "debug", Usage: "debug logging"},
			&cli.BoolFlag{Name: "dump", Usage: "dump decoded accounts"},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "create the marketplace with the connected wallet as authority",
				Action: initMarketplace,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true, Usage: "marketplace name, at most 32 bytes"},
					&cli.UintFlag{Name: "fee", Required: true, Usage: "fee in basis points"},
				},
			},
			{
				Name:   "update-fee",
				Usage:  "change the marketplace fee",
				Action: updateFee,
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "fee", Required: true, Usage: "fee in basis points"},
				},
			},
			{
				Name:   "list",
				Usage:  "list an NFT for sale",
				Action: listNft,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mint", Required: true},
					&cli.StringFlag{Name: "price", Required: true, Usage: "price in SOL"},
					&cli.StringFlag{Name: "metadata", Usage: "metadata account, defaults to the Metaplex metadata PDA"},
				},
			},
			{
				Name:   "buy",
				Usage:  "purchase a listed NFT",
				Action: purchaseNft,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mint", Required: true},
					&cli.StringFlag{Name: "expect", Usage: "refuse if the listing price (SOL) differs"},
				},
			},
			{
				Name:   "delist",
				Usage:  "cancel a listing",
				Action: delistNft,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mint", Required: true},
				},
			},
			{
				Name:   "show",
				Usage:  "show the marketplace account",
				Action: showMarketplace,
			},
			{
				Name:   "listing",
				Usage:  "show the listing of a mint",
				Action: showListing,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mint", Required: true},
				},
			},
			{
				Name:   "listings",
				Usage:  "show every open listing",
				Action: showListings,
			},
			{
				Name:   "addresses",
				Usage:  "print the program derived addresses",
				Action: showAddresses,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mint", Usage: "also derive listing, vault and metadata for a mint"},
				},
			},
			{
				Name:   "balance",
				Usage:  "print a wallet balance",
				Action: showBalance,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "address", Usage: "defaults to the connected wallet"},
				},
			},
			{
				Name:   "airdrop",
				Usage:  "request devnet SOL for the connected wallet",
				Action: airdrop,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sol", Value: "1"},
				},
			},
			{
				Name:   "watch",
				Usage:  "follow the connected wallet balance",
				Action: watchBalance,
			},
		},
	}
}

func setup(c *cli.Context) error {
	var err error
	cfg, err = config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("keypair") {
		cfg.Keypair = c.String("keypair")
	}
	if c.IsSet("url") {
		cfg.RpcUrl = c.String("url")
	}
	dump = c.Bool("dump")
	if err := log.NewLogger(cfg.LogPath, cfg.Debug || c.Bool("debug")); err != nil {
		return err
	}

	wm = wallet_manager.NewWalletManagerWithOpts(
		rpc.New(cfg.Endpoint()),
		cfg.CommitmentType(),
		cfg.ConfirmationStatus(),
		cfg.Confirmation.Timeout,
		cfg.Confirmation.Delay,
		cfg.SkipPreflight,
	)
	client = marketplace.NewMarketplaceClient(wm, cfg.Program())

	if cfg.Keypair != "" {
		keypair, err := wallet_manager.NewKeypairSignerFromFile(cfg.Keypair)
		if err != nil {
			return errors.Wrap(err, "unable to load keypair")
		}
		signer = keypair
	}
	zap.L().Debug("Connected",
		zap.String("endpoint", cfg.Endpoint()),
		zap.String("program", cfg.ProgramID))
	return nil
}

func newStore() *storefront.Store {
	resolver := storefront.FallbackResolver{
		Primary:  storefront.NewChainMetadataResolver(wm.Client, wm.Commitment, cfg.MetadataCacheTTL),
		Fallback: storefront.FixtureResolver{},
	}
	return storefront.NewStore(client, signer, resolver, wm)
}

func requireSigner() (wallet_manager.Signer, error) {
	if signer == nil {
		return nil, errors.Wrap(storefront.ErrWalletNotConnected, "pass --keypair or set MARKETPLACE_KEYPAIR")
	}
	return signer, nil
}
