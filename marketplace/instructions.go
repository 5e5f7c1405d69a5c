package marketplace

import (
	"bytes"
	"crypto/sha256"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const (
	InstructionInitializeMarketplace = "initialize_marketplace"
	InstructionListNft               = "list_nft"
	InstructionPurchaseNft           = "purchase_nft"
	InstructionDelistNft             = "delist_nft"
	InstructionUpdateFee             = "update_fee"
)

var ErrNameTooLong = errors.Errorf("marketplace name exceeds %d bytes", MaxNameLength)

// InstructionDiscriminator is the 8 byte Anchor method selector,
// sha256("global:<name>")[:8].
func InstructionDiscriminator(name string) [8]byte {
	return discriminator("global", name)
}

// AccountDiscriminator is the 8 byte Anchor account prefix,
// sha256("account:<Name>")[:8].
func AccountDiscriminator(name string) [8]byte {
	return discriminator("account", name)
}

func discriminator(namespace, name string) [8]byte {
	hash := sha256.Sum256([]byte(namespace + ":" + name))
	var disc [8]byte
	copy(disc[:], hash[:8])
	return disc
}

type InitializeMarketplaceArgs struct {
	Name string
	Fee  uint16
}

type ListNftArgs struct {
	Price uint64
}

type UpdateFeeArgs struct {
	UpdatedFee uint16
}

func encodeInstructionData(name string, args interface{}) ([]byte, error) {
	disc := InstructionDiscriminator(name)
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if args != nil {
		if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
			return nil, errors.Wrapf(err, "failed to encode %s args", name)
		}
	}
	return buf.Bytes(), nil
}

func (a Addresses) InitializeMarketplaceInstruction(name string, feeBps uint16, authority solana.PublicKey) (solana.Instruction, error) {
	if len(name) > MaxNameLength {
		return nil, ErrNameTooLong
	}
	data, err := encodeInstructionData(InstructionInitializeMarketplace, InitializeMarketplaceArgs{Name: name, Fee: feeBps})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(a.ProgramID, solana.AccountMetaSlice{
		solana.Meta(a.Marketplace()).WRITE(),
		solana.Meta(a.Treasury()).WRITE(),
		solana.Meta(authority).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.SysVarRentPubkey),
	}, data), nil
}

func (a Addresses) ListNftInstruction(nftMint, metadata solana.PublicKey, price uint64, maker solana.PublicKey) (solana.Instruction, error) {
	data, err := encodeInstructionData(InstructionListNft, ListNftArgs{Price: price})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(a.ProgramID, solana.AccountMetaSlice{
		solana.Meta(a.Listing(nftMint)).WRITE(),
		solana.Meta(a.Vault(nftMint)).WRITE(),
		solana.Meta(nftMint),
		solana.Meta(metadata),
		solana.Meta(maker).WRITE().SIGNER(),
		solana.Meta(a.Marketplace()),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.SysVarRentPubkey),
	}, data), nil
}

func (a Addresses) PurchaseNftInstruction(nftMint, buyer solana.PublicKey) (solana.Instruction, error) {
	data, err := encodeInstructionData(InstructionPurchaseNft, nil)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(a.ProgramID, solana.AccountMetaSlice{
		solana.Meta(a.Listing(nftMint)).WRITE(),
		solana.Meta(a.Vault(nftMint)).WRITE(),
		solana.Meta(nftMint),
		solana.Meta(buyer).WRITE().SIGNER(),
		solana.Meta(a.Marketplace()),
		solana.Meta(a.Treasury()).WRITE(),
		solana.Meta(solana.SystemProgramID),
	}, data), nil
}

func (a Addresses) DelistNftInstruction(nftMint, maker solana.PublicKey) (solana.Instruction, error) {
	data, err := encodeInstructionData(InstructionDelistNft, nil)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(a.ProgramID, solana.AccountMetaSlice{
		solana.Meta(a.Listing(nftMint)).WRITE(),
		solana.Meta(a.Vault(nftMint)).WRITE(),
		solana.Meta(nftMint),
		solana.Meta(maker).WRITE().SIGNER(),
		solana.Meta(a.Marketplace()),
		solana.Meta(solana.SystemProgramID),
	}, data), nil
}

func (a Addresses) UpdateFeeInstruction(feeBps uint16, authority solana.PublicKey) (solana.Instruction, error) {
	data, err := encodeInstructionData(InstructionUpdateFee, UpdateFeeArgs{UpdatedFee: feeBps})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(a.ProgramID, solana.AccountMetaSlice{
		solana.Meta(a.Marketplace()).WRITE(),
		solana.Meta(authority).SIGNER(),
	}, data), nil
}

// DecodeInstruction splits raw instruction data into its method name and the
// Borsh encoded arguments that follow the discriminator.
func DecodeInstruction(data []byte) (string, []byte, error) {
	if len(data) < 8 {
		return "", nil, errors.New("instruction data shorter than discriminator")
	}
	for _, name := range []string{
		InstructionInitializeMarketplace,
		InstructionListNft,
		InstructionPurchaseNft,
		InstructionDelistNft,
		InstructionUpdateFee,
	} {
		disc := InstructionDiscriminator(name)
		if bytes.Equal(disc[:], data[:8]) {
			return name, data[8:], nil
		}
	}
	return "", nil, errors.New("unknown instruction discriminator")
}
