// Package fake_cluster is an in-memory stand-in for a Solana RPC node running
// the marketplace program. It executes marketplace instructions with the same
// rules and error codes as the deployed program so that clients can be
// exercised without a validator.
package fake_cluster

import (
	"context"
	"fmt"
	"sort"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/pkg/errors"

	"solana-nft-marketplace/marketplace"
	"solana-nft-marketplace/wallet_manager"
)

// systemAccountInUse is the system program's "account already in use" code,
// raised when an init instruction targets an existing PDA.
const systemAccountInUse = 0

type account struct {
	owner    solana.PublicKey
	data     []byte
	lamports uint64
}

type Cluster struct {
	mu        sync.Mutex
	addresses marketplace.Addresses
	accounts  map[solana.PublicKey]*account
	balances  map[solana.PublicKey]uint64
	owners    map[solana.PublicKey]solana.PublicKey
	statuses  map[solana.Signature]*rpc.SignatureStatusesResult
	slot      uint64
	sendErr   error
	sent      int
}

var _ wallet_manager.RPCClient = (*Cluster)(nil)

func New(programID solana.PublicKey) *Cluster {
	return &Cluster{
		addresses: marketplace.NewAddresses(programID),
		accounts:  map[solana.PublicKey]*account{},
		balances:  map[solana.PublicKey]uint64{},
		owners:    map[solana.PublicKey]solana.PublicKey{},
		statuses:  map[solana.Signature]*rpc.SignatureStatusesResult{},
	}
}

// Fund credits lamports to a wallet.
func (c *Cluster) Fund(wallet solana.PublicKey, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[wallet] += lamports
}

// MintTo records owner as the holder of mint.
func (c *Cluster) MintTo(mint, owner solana.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owners[mint] = owner
}

// OwnerOf returns the current holder of mint; the vault while listed.
func (c *Cluster) OwnerOf(mint solana.PublicKey) (solana.PublicKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.owners[mint]
	return owner, ok
}

func (c *Cluster) Balance(wallet solana.PublicKey) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[wallet]
}

// SetAccount stores raw account data, e.g. a token metadata account.
func (c *Cluster) SetAccount(pk, owner solana.PublicKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[pk] = &account{owner: owner, data: append([]byte(nil), data...)}
}

// FailNextSend makes the next SendTransactionWithOpts call return err.
func (c *Cluster) FailNextSend(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// SentTransactions counts transactions that reached the node.
func (c *Cluster) SentTransactions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

func (c *Cluster) GetAccountInfoWithOpts(_ context.Context, pk solana.PublicKey, _ *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, ok := c.accounts[pk]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{
		RPCContext: c.rpcContext(),
		Value:      acc.toRPC(),
	}, nil
}

func (c *Cluster) GetProgramAccountsWithOpts(_ context.Context, programID solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out rpc.GetProgramAccountsResult
	for pk, acc := range c.accounts {
		if !acc.owner.Equals(programID) || (opts != nil && !matchesFilters(acc.data, opts.Filters)) {
			continue
		}
		out = append(out, &rpc.KeyedAccount{Pubkey: pk, Account: acc.toRPC()})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Pubkey.String() < out[j].Pubkey.String()
	})
	return out, nil
}

func (c *Cluster) GetLatestBlockhash(_ context.Context, _ rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot++
	var hash solana.Hash
	hash[0] = byte(c.slot)
	hash[1] = byte(c.slot >> 8)
	return &rpc.GetLatestBlockhashResult{
		RPCContext: c.rpcContext(),
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            hash,
			LastValidBlockHeight: c.slot + 150,
		},
	}, nil
}

func (c *Cluster) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		err := c.sendErr
		c.sendErr = nil
		return solana.Signature{}, err
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, &jsonrpc.RPCError{Code: -32602, Message: "transaction has no signatures"}
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, &jsonrpc.RPCError{Code: -32003, Message: "Transaction signature verification failure"}
	}
	for idx, compiled := range tx.Message.Instructions {
		if err := c.execute(tx, idx, compiled); err != nil {
			return solana.Signature{}, err
		}
	}
	c.sent++
	c.slot++
	sig := tx.Signatures[0]
	c.statuses[sig] = &rpc.SignatureStatusesResult{
		Slot:               c.slot,
		ConfirmationStatus: rpc.ConfirmationStatusFinalized,
	}
	return sig, nil
}

func (c *Cluster) GetSignatureStatuses(_ context.Context, _ bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := &rpc.GetSignatureStatusesResult{RPCContext: c.rpcContext()}
	for _, sig := range signatures {
		out.Value = append(out.Value, c.statuses[sig])
	}
	return out, nil
}

func (c *Cluster) GetBalance(_ context.Context, wallet solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &rpc.GetBalanceResult{RPCContext: c.rpcContext(), Value: c.balances[wallet]}, nil
}

func (c *Cluster) RequestAirdrop(_ context.Context, wallet solana.PublicKey, lamports uint64, _ rpc.CommitmentType) (solana.Signature, error) {
	sig, err := solana.NewWallet().PrivateKey.Sign(wallet.Bytes())
	if err != nil {
		return solana.Signature{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[wallet] += lamports
	c.slot++
	c.statuses[sig] = &rpc.SignatureStatusesResult{
		Slot:               c.slot,
		ConfirmationStatus: rpc.ConfirmationStatusFinalized,
	}
	return sig, nil
}

func (c *Cluster) rpcContext() rpc.RPCContext {
	return rpc.RPCContext{Context: rpc.Context{Slot: c.slot}}
}

func (acc *account) toRPC() *rpc.Account {
	data := make([]byte, len(acc.data))
	copy(data, acc.data)
	return &rpc.Account{
		Lamports: acc.lamports,
		Owner:    acc.owner,
		Data:     rpc.DataBytesOrJSONFromBytes(data),
	}
}

func matchesFilters(data []byte, filters []rpc.RPCFilter) bool {
	for _, filter := range filters {
		if filter.DataSize != 0 && uint64(len(data)) != filter.DataSize {
			return false
		}
		if filter.Memcmp != nil {
			offset := int(filter.Memcmp.Offset)
			want := []byte(filter.Memcmp.Bytes)
			if offset+len(want) > len(data) || string(data[offset:offset+len(want)]) != string(want) {
				return false
			}
		}
	}
	return true
}

// customError builds the JSON-RPC error a node returns when preflight
// simulation hits a program custom error.
func customError(index int, code uint32) error {
	return &jsonrpc.RPCError{
		Code: -32002,
		Message: fmt.Sprintf(
			"Transaction simulation failed: Error processing Instruction %d: custom program error: 0x%x",
			index, code,
		),
		Data: map[string]interface{}{
			"err": map[string]interface{}{
				"InstructionError": []interface{}{
					float64(index),
					map[string]interface{}{"Custom": float64(code)},
				},
			},
			"logs": []interface{}{},
		},
	}
}

func decodeArgs(data []byte, v interface{}) error {
	return errors.Wrap(bin.NewBorshDecoder(data).Decode(v), "invalid instruction data")
}
