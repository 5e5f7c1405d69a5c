package wallet_manager

import (
	"testing"

	"github.com/gagliardetto/solana-go/rpc"
)

func TestConfirmationReached(t *testing.T) {
	cases := []struct {
		status, wanted rpc.ConfirmationStatusType
		reached        bool
	}{
		{rpc.ConfirmationStatusProcessed, rpc.ConfirmationStatusConfirmed, false},
		{rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusConfirmed, true},
		{rpc.ConfirmationStatusFinalized, rpc.ConfirmationStatusConfirmed, true},
		{rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized, false},
		{"", rpc.ConfirmationStatusProcessed, false},
	}
	for _, c := range cases {
		if got := confirmationReached(c.status, c.wanted); got != c.reached {
			t.Fatalf("confirmationReached(%q, %q) = %v", c.status, c.wanted, got)
		}
	}
}
