package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"

	"github.com/davecgh/go-spew/spew"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"solana-nft-marketplace/marketplace"
	"solana-nft-marketplace/storefront"
)

func initMarketplace(c *cli.Context) error {
	authority, err := requireSigner()
	if err != nil {
		return err
	}
	fee, err := feeFlag(c)
	if err != nil {
		return err
	}
	sig, err := client.InitializeMarketplace(c.Context, c.String("name"), fee, authority)
	if err != nil {
		return err
	}
	fmt.Printf("Marketplace %s initialized: %s\n", client.Addresses.Marketplace(), sig)
	return nil
}

func updateFee(c *cli.Context) error {
	authority, err := requireSigner()
	if err != nil {
		return err
	}
	fee, err := feeFlag(c)
	if err != nil {
		return err
	}
	sig, err := client.UpdateFee(c.Context, fee, authority)
	if err != nil {
		return err
	}
	fmt.Printf("Fee set to %s%%: %s\n", storefront.FeePercent(fee), sig)
	return nil
}

func listNft(c *cli.Context) error {
	if _, err := requireSigner(); err != nil {
		return err
	}
	mint, err := solana.PublicKeyFromBase58(c.String("mint"))
	if err != nil {
		return errors.Wrap(err, "invalid mint")
	}
	var metadata solana.PublicKey
	if c.IsSet("metadata") {
		if metadata, err = solana.PublicKeyFromBase58(c.String("metadata")); err != nil {
			return errors.Wrap(err, "invalid metadata")
		}
	}
	price, err := storefront.ParseSol(c.String("price"))
	if err != nil {
		return err
	}
	sig, err := newStore().CreateListing(c.Context, mint, metadata, storefront.LamportsToSol(price))
	if err != nil {
		return err
	}
	fmt.Printf("Listed %s for %s: %s\n", mint, storefront.FormatPrice(price), sig)
	return nil
}

func purchaseNft(c *cli.Context) error {
	buyer, err := requireSigner()
	if err != nil {
		return err
	}
	mint, err := solana.PublicKeyFromBase58(c.String("mint"))
	if err != nil {
		return errors.Wrap(err, "invalid mint")
	}
	if c.IsSet("expect") {
		expected, err := storefront.ParseSol(c.String("expect"))
		if err != nil {
			return err
		}
		sig, err := client.PurchaseNft(c.Context, mint, buyer, expected)
		if err != nil {
			return err
		}
		fmt.Printf("Purchased %s: %s\n", mint, sig)
		return nil
	}

	store := newStore()
	if err := store.Refresh(c.Context); err != nil {
		return err
	}
	quote, ok := store.Quote(mint)
	if !ok {
		return errors.Wrapf(marketplace.ErrListingNotFound, "mint %s", mint)
	}
	zap.S().Infof("Buying %s for %s plus %s fee", mint, storefront.FormatPrice(quote.Price), storefront.FormatPrice(quote.Fee))
	sig, err := store.PurchaseNft(c.Context, mint)
	if err != nil {
		return err
	}
	fmt.Printf("Purchased %s for %s: %s\n", mint, storefront.FormatPrice(quote.Total), sig)
	return nil
}

func delistNft(c *cli.Context) error {
	if _, err := requireSigner(); err != nil {
		return err
	}
	mint, err := solana.PublicKeyFromBase58(c.String("mint"))
	if err != nil {
		return errors.Wrap(err, "invalid mint")
	}
	sig, err := newStore().CancelListing(c.Context, mint)
	if err != nil {
		return err
	}
	fmt.Printf("Delisted %s: %s\n", mint, sig)
	return nil
}

func showMarketplace(c *cli.Context) error {
	m, err := client.GetMarketplaceData(c.Context)
	if err != nil {
		return err
	}
	if m == nil {
		fmt.Println("Marketplace not initialized")
		return nil
	}
	if dump {
		spew.Dump(m)
		return nil
	}
	fmt.Printf("Name:      %s\n", m.Name)
	fmt.Printf("Authority: %s\n", m.Authority)
	fmt.Printf("Treasury:  %s\n", m.Treasury)
	fmt.Printf("Fee:       %s%% (%d bps)\n", storefront.FeePercent(m.FeeBps), m.FeeBps)
	return nil
}

func showListing(c *cli.Context) error {
	mint, err := solana.PublicKeyFromBase58(c.String("mint"))
	if err != nil {
		return errors.Wrap(err, "invalid mint")
	}
	listing, err := client.GetListingData(c.Context, mint)
	if err != nil {
		return err
	}
	if listing == nil {
		fmt.Printf("%s is not listed\n", mint)
		return nil
	}
	if dump {
		spew.Dump(listing)
		return nil
	}
	fmt.Printf("Mint:     %s\n", listing.NftMint)
	fmt.Printf("Seller:   %s\n", listing.Maker)
	fmt.Printf("Price:    %s\n", storefront.FormatPrice(listing.Price))
	fmt.Printf("Metadata: %s\n", listing.Metadata)
	return nil
}

func showListings(c *cli.Context) error {
	views, err := newStore().FetchListings(c.Context)
	if err != nil {
		return err
	}
	if dump {
		spew.Dump(views)
		return nil
	}
	if len(views) == 0 {
		fmt.Println("No listings")
		return nil
	}
	for _, view := range views {
		fmt.Printf("%-44s  %-28s  %12s  %s\n", view.Mint, view.Name, storefront.FormatPrice(view.PriceLamports), view.SellerShort)
	}
	return nil
}

func showAddresses(c *cli.Context) error {
	addresses := client.Addresses
	fmt.Printf("Program:     %s\n", addresses.ProgramID)
	fmt.Printf("Marketplace: %s\n", addresses.Marketplace())
	fmt.Printf("Treasury:    %s\n", addresses.Treasury())
	if !c.IsSet("mint") {
		return nil
	}
	mint, err := solana.PublicKeyFromBase58(c.String("mint"))
	if err != nil {
		return errors.Wrap(err, "invalid mint")
	}
	metadata, err := marketplace.DeriveMetadataAddress(mint)
	if err != nil {
		return err
	}
	fmt.Printf("Listing:     %s\n", addresses.Listing(mint))
	fmt.Printf("Vault:       %s\n", addresses.Vault(mint))
	fmt.Printf("Metadata:    %s\n", metadata)
	return nil
}

func showBalance(c *cli.Context) error {
	var account solana.PublicKey
	if c.IsSet("address") {
		key, err := solana.PublicKeyFromBase58(c.String("address"))
		if err != nil {
			return errors.Wrap(err, "invalid address")
		}
		account = key
	} else {
		s, err := requireSigner()
		if err != nil {
			return err
		}
		account = s.PublicKey()
	}
	balance, err := wm.GetBalance(c.Context, account)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", storefront.FormatAddress(account.String(), 4), storefront.FormatPrice(balance))
	return nil
}

func airdrop(c *cli.Context) error {
	s, err := requireSigner()
	if err != nil {
		return err
	}
	lamports, err := storefront.ParseSol(c.String("sol"))
	if err != nil {
		return err
	}
	sig, err := wm.RequestAirdrop(c.Context, s.PublicKey(), lamports)
	if err != nil {
		return err
	}
	fmt.Printf("Airdropped %s: %s\n", storefront.FormatPrice(lamports), sig)
	return nil
}

func watchBalance(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	err := newStore().WatchBalance(ctx, cfg.BalanceRefresh, func(balance uint64) {
		fmt.Println(storefront.FormatPrice(balance))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func feeFlag(c *cli.Context) (uint16, error) {
	fee := c.Uint("fee")
	if fee > math.MaxUint16 {
		return 0, errors.Wrapf(marketplace.ErrInvalidFee, "fee %d", fee)
	}
	return uint16(fee), nil
}
