package marketplace

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const (
	AccountMarketplace = "Marketplace"
	AccountListing     = "Listing"

	// ListingAccountSize is the discriminator plus maker, mint, price,
	// metadata and bump.
	ListingAccountSize = 8 + 32 + 32 + 8 + 32 + 1
)

var (
	ErrAccountData          = errors.New("malformed account data")
	ErrAccountDiscriminator = errors.New("account discriminator mismatch")
)

type Marketplace struct {
	Authority       solana.PublicKey
	FeeBps          uint16
	MarketplaceBump uint8
	Treasury        solana.PublicKey
	TreasuryBump    uint8
	Name            string
}

type Listing struct {
	Maker    solana.PublicKey
	NftMint  solana.PublicKey
	Price    uint64
	Metadata solana.PublicKey
	Bump     uint8
}

// ListingAccount pairs a decoded listing with the address it was read from.
type ListingAccount struct {
	Address solana.PublicKey
	Listing
}

func DecodeMarketplace(data []byte) (*Marketplace, error) {
	var m Marketplace
	if err := decodeAccount(data, AccountMarketplace, &m); err != nil {
		return nil, err
	}
	if len(m.Name) > MaxNameLength {
		return nil, errors.Wrapf(ErrAccountData, "marketplace name is %d bytes", len(m.Name))
	}
	if m.FeeBps > MaxFeeBps {
		return nil, errors.Wrapf(ErrAccountData, "marketplace fee %d bps out of range", m.FeeBps)
	}
	return &m, nil
}

func DecodeListing(data []byte) (*Listing, error) {
	var l Listing
	if err := decodeAccount(data, AccountListing, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func EncodeMarketplace(m Marketplace) ([]byte, error) {
	return encodeAccount(AccountMarketplace, m)
}

func EncodeListing(l Listing) ([]byte, error) {
	return encodeAccount(AccountListing, l)
}

func decodeAccount(data []byte, name string, v interface{}) error {
	if len(data) < 8 {
		return errors.Wrapf(ErrAccountData, "%s account is %d bytes", name, len(data))
	}
	disc := AccountDiscriminator(name)
	if !bytes.Equal(data[:8], disc[:]) {
		return errors.Wrapf(ErrAccountDiscriminator, "expected %s", name)
	}
	if err := bin.NewBorshDecoder(data[8:]).Decode(v); err != nil {
		return errors.Wrapf(ErrAccountData, "failed to decode %s: %s", name, err.Error())
	}
	return nil
}

func encodeAccount(name string, v interface{}) ([]byte, error) {
	disc := AccountDiscriminator(name)
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", name)
	}
	return buf.Bytes(), nil
}
