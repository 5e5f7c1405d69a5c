package marketplace

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/pkg/errors"

	"solana-nft-marketplace/wallet_manager"
)

// ProgramError is a custom error raised by the marketplace program. Errors
// returned by the client keep the RPC error they were parsed from as cause.
type ProgramError struct {
	Code  uint32
	Name  string
	Msg   string
	cause error
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

func (e *ProgramError) Unwrap() error {
	return e.cause
}

func (e *ProgramError) Cause() error {
	return e.cause
}

// Is matches any ProgramError with the same code, so parsed errors compare
// equal to the sentinels below.
func (e *ProgramError) Is(target error) bool {
	t, ok := target.(*ProgramError)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidPrice              = &ProgramError{Code: 6000, Name: "InvalidPrice", Msg: "Price must be greater than 0"}
	ErrInvalidFee                = &ProgramError{Code: 6001, Name: "InvalidFee", Msg: "Fee must be between 0 and 10000 (0-100%)"}
	ErrInsufficientFunds         = &ProgramError{Code: 6002, Name: "InsufficientFunds", Msg: "Insufficient funds for purchase"}
	ErrNotAuthorized             = &ProgramError{Code: 6003, Name: "NotAuthorized", Msg: "Not authorized to perform this action"}
	ErrListingNotFound           = &ProgramError{Code: 6004, Name: "ListingNotFound", Msg: "Listing not found"}
	ErrMarketplaceNotInitialized = &ProgramError{Code: 6005, Name: "MarketplaceNotInitialized", Msg: "Marketplace not initialized"}
)

var programErrors = map[uint32]*ProgramError{
	ErrInvalidPrice.Code:              ErrInvalidPrice,
	ErrInvalidFee.Code:                ErrInvalidFee,
	ErrInsufficientFunds.Code:         ErrInsufficientFunds,
	ErrNotAuthorized.Code:             ErrNotAuthorized,
	ErrListingNotFound.Code:           ErrListingNotFound,
	ErrMarketplaceNotInitialized.Code: ErrMarketplaceNotInitialized,
}

var customErrorPattern = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

// ProgramErrorFromCode returns a copy of the known error for code.
func ProgramErrorFromCode(code uint32) (*ProgramError, bool) {
	known, ok := programErrors[code]
	if !ok {
		return nil, false
	}
	out := *known
	return &out, true
}

// ParseProgramError turns an error carrying a marketplace custom error code
// into a *ProgramError wrapping it. Any other error is returned unchanged.
func ParseProgramError(err error) error {
	if err == nil {
		return nil
	}
	code, ok := customCode(err)
	if !ok {
		return err
	}
	programErr, ok := ProgramErrorFromCode(code)
	if !ok {
		return err
	}
	programErr.cause = err
	return programErr
}

func customCode(err error) (uint32, bool) {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		if code, ok := customCodeFromValue(rpcErr.Data); ok {
			return code, true
		}
		if code, ok := customCodeFromMessage(rpcErr.Message); ok {
			return code, true
		}
	}
	var txErr *wallet_manager.TransactionFailedError
	if errors.As(err, &txErr) {
		if code, ok := customCodeFromValue(txErr.Err); ok {
			return code, true
		}
	}
	return customCodeFromMessage(err.Error())
}

// customCodeFromValue walks the decoded JSON error payload, for example
// {"err": {"InstructionError": [0, {"Custom": 6001}]}}.
func customCodeFromValue(v interface{}) (uint32, bool) {
	switch value := v.(type) {
	case map[string]interface{}:
		if custom, ok := value["Custom"]; ok {
			return numberToCode(custom)
		}
		for _, key := range []string{"err", "InstructionError"} {
			if inner, ok := value[key]; ok {
				if code, ok := customCodeFromValue(inner); ok {
					return code, true
				}
			}
		}
	case []interface{}:
		for _, inner := range value {
			if code, ok := customCodeFromValue(inner); ok {
				return code, true
			}
		}
	}
	return 0, false
}

func customCodeFromMessage(msg string) (uint32, bool) {
	match := customErrorPattern.FindStringSubmatch(msg)
	if match == nil {
		return 0, false
	}
	code, err := strconv.ParseUint(match[1], 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(code), true
}

func numberToCode(v interface{}) (uint32, bool) {
	switch n := v.(type) {
	case float64:
		return uint32(n), n >= 0
	case int:
		return uint32(n), n >= 0
	case int64:
		return uint32(n), n >= 0
	case uint32:
		return n, true
	case uint64:
		return uint32(n), true
	case json.Number:
		code, err := strconv.ParseUint(n.String(), 10, 32)
		return uint32(code), err == nil
	}
	return 0, false
}
