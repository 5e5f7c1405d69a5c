package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	token_metadata "github.com/gagliardetto/metaplex-go/clients/token-metadata"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"solana-nft-marketplace/fixtures"
	"solana-nft-marketplace/wallet_manager"
)

type Attribute struct {
	TraitType string
	Value     string
}

// DisplayMetadata is what a listing needs to be shown to a user.
type DisplayMetadata struct {
	Name        string
	Symbol      string
	URI         string
	Image       string
	Description string
	Attributes  []Attribute
}

type MetadataResolver interface {
	Resolve(ctx context.Context, mint, metadata solana.PublicKey) (DisplayMetadata, error)
}

// FixtureResolver serves placeholder data from the fixtures package.
type FixtureResolver struct{}

func (FixtureResolver) Resolve(_ context.Context, mint, _ solana.PublicKey) (DisplayMetadata, error) {
	nft := fixtures.ForMint(mint.String())
	attributes := make([]Attribute, 0, len(nft.Attributes))
	for _, attr := range nft.Attributes {
		attributes = append(attributes, Attribute{TraitType: attr.TraitType, Value: attr.Value})
	}
	return DisplayMetadata{
		Name:        nft.Name,
		Symbol:      nft.Symbol,
		URI:         nft.URI,
		Image:       nft.Image,
		Description: nft.Description,
		Attributes:  attributes,
	}, nil
}

// ChainMetadataResolver reads the Metaplex metadata account of a mint and the
// off-chain JSON it points to. Results are cached per mint.
type ChainMetadataResolver struct {
	client     wallet_manager.RPCClient
	commitment rpc.CommitmentType
	http       *retryablehttp.Client
	cache      *cache.Cache
}

func NewChainMetadataResolver(client wallet_manager.RPCClient, commitment rpc.CommitmentType, ttl time.Duration) *ChainMetadataResolver {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 2
	httpClient.HTTPClient.Timeout = 10 * time.Second
	httpClient.Logger = nil

	return &ChainMetadataResolver{
		client:     client,
		commitment: commitment,
		http:       httpClient,
		cache:      cache.New(ttl, 2*ttl),
	}
}

type offChainMetadata struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Image       string `json:"image"`
	Description string `json:"description"`
	Attributes  []struct {
		TraitType string      `json:"trait_type"`
		Value     interface{} `json:"value"`
	} `json:"attributes"`
}

func (r *ChainMetadataResolver) Resolve(ctx context.Context, mint, metadata solana.PublicKey) (DisplayMetadata, error) {
	if cached, found := r.cache.Get(mint.String()); found {
		return cached.(DisplayMetadata), nil
	}
	result, err := r.client.GetAccountInfoWithOpts(ctx, metadata, &rpc.GetAccountInfoOpts{
		Commitment: r.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		return DisplayMetadata{}, errors.Wrapf(err, "failed to get metadata account %s", metadata.String())
	}
	if result.Value == nil || result.Value.Data == nil {
		return DisplayMetadata{}, errors.Errorf("metadata account %s is empty", metadata.String())
	}
	var onChain token_metadata.Metadata
	if err := bin.NewBorshDecoder(result.Value.Data.GetBinary()).Decode(&onChain); err != nil {
		return DisplayMetadata{}, errors.Wrapf(err, "failed to decode metadata account %s", metadata.String())
	}
	display := DisplayMetadata{
		Name:   trimPadding(onChain.Data.Name),
		Symbol: trimPadding(onChain.Data.Symbol),
		URI:    trimPadding(onChain.Data.Uri),
	}
	if display.URI != "" {
		if offChain, err := r.fetchOffChain(ctx, display.URI); err != nil {
			zap.L().With(zap.Error(err)).Debug("Failed to fetch off-chain metadata", zap.String("uri", display.URI))
		} else {
			display.Image = offChain.Image
			display.Description = offChain.Description
			for _, attr := range offChain.Attributes {
				display.Attributes = append(display.Attributes, Attribute{
					TraitType: attr.TraitType,
					Value:     fmt.Sprint(attr.Value),
				})
			}
			if display.Name == "" {
				display.Name = offChain.Name
			}
		}
	}
	r.cache.SetDefault(mint.String(), display)
	return display, nil
}

func (r *ChainMetadataResolver) fetchOffChain(ctx context.Context, uri string) (*offChainMetadata, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.http.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("metadata uri returned %d", resp.StatusCode)
	}
	var out offChainMetadata
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FallbackResolver tries primary and falls back when it fails.
type FallbackResolver struct {
	Primary  MetadataResolver
	Fallback MetadataResolver
}

func (r FallbackResolver) Resolve(ctx context.Context, mint, metadata solana.PublicKey) (DisplayMetadata, error) {
	display, err := r.Primary.Resolve(ctx, mint, metadata)
	if err == nil {
		return display, nil
	}
	zap.L().With(zap.Error(err)).Debug("Falling back to placeholder metadata", zap.String("mint", mint.String()))
	return r.Fallback.Resolve(ctx, mint, metadata)
}

// Metaplex pads name, symbol and uri with NUL bytes.
func trimPadding(s string) string {
	return strings.TrimRight(s, "\x00 ")
}
