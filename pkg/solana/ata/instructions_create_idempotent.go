package ata

import (
	"bytes"

	"github.com/code-payments/associated-token-account/pkg/solana"
	"github.com/code-payments/associated-token-account/pkg/solana/token"
)

// checkExistingAccount reports whether associated already holds a token
// account for wallet and mint. Data that does not decode as a token account
// is not an existing account, and the caller continues down the create path.
func checkExistingAccount(associated, wallet, mint *solana.AccountInfo) (bool, error) {
	data, release, err := associated.Borrow()
	if err != nil {
		return false, err
	}
	defer release()

	existing, err := token.UnpackAccount(data)
	if err != nil {
		return false, nil
	}

	if !bytes.Equal(existing.Owner, wallet.Key) {
		return false, ErrInvalidOwner
	}
	if !bytes.Equal(existing.Mint, mint.Key) {
		return false, programError(solana.InstructionErrorInvalidAccountData, "associated token account mint mismatch")
	}
	return true, nil
}
