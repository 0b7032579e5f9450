package ata

import (
	"bytes"
	"context"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/associated-token-account/pkg/metrics"
	"github.com/code-payments/associated-token-account/pkg/solana"
	"github.com/code-payments/associated-token-account/pkg/solana/token"
)

func (p *Processor) processRecoverNested(ctx context.Context, log *logrus.Entry, accounts []*solana.AccountInfo) error {
	actual, err := accountsOrErr(accounts, RecoverNestedAccountsLen)
	if err != nil {
		return err
	}

	var (
		nested           = actual[0]
		nestedMint       = actual[1]
		walletAssociated = actual[2]
		ownerAssociated  = actual[3]
		ownerMint        = actual[4]
		wallet           = actual[5]
		tokenProgram     = actual[6]
	)

	log = log.WithFields(logrus.Fields{
		"wallet":      base58.Encode(wallet.Key),
		"owner_mint":  base58.Encode(ownerMint.Key),
		"nested_mint": base58.Encode(nestedMint.Key),
	})

	keys, ownerDerived, err := RecoverNestedRootAccounts{
		Wallet:                wallet.Key,
		OwnerTokenAccountMint: ownerMint,
		NestedMint:            nestedMint,
	}.Resolve()
	if err != nil {
		return err
	}

	if err := VerifyKeys(actual, keys.Keys()); err != nil {
		mismatch, ok := err.(*KeyMismatchError)
		if !ok {
			return err
		}
		return classifyRecoverNestedMismatch(mismatch, actual)
	}
	if err := VerifyPrivileges(actual, keys.Metas()); err != nil {
		return err
	}

	amount, decimals, err := readRecoverableBalance(nested, nestedMint, ownerAssociated, wallet, tokenProgram)
	if err != nil {
		return err
	}

	signerSeeds := ownerDerived.SignerSeeds()

	err = p.invoker.InvokeSigned(
		ctx,
		token.TransferChecked(tokenProgram.Key, nested.Key, nestedMint.Key, walletAssociated.Key, ownerAssociated.Key, amount, decimals),
		[]*solana.AccountInfo{nested, nestedMint, walletAssociated, ownerAssociated, tokenProgram},
		signerSeeds,
	)
	if err != nil {
		return err
	}

	err = p.invoker.InvokeSigned(
		ctx,
		token.CloseAccount(tokenProgram.Key, nested.Key, wallet.Key, ownerAssociated.Key),
		[]*solana.AccountInfo{nested, wallet, ownerAssociated, tokenProgram},
		signerSeeds,
	)
	if err != nil {
		return err
	}

	log.WithField("amount", amount).Debug("recovered nested associated token account")
	metrics.RecordEvent(ctx, nestedRecoveryEventName, map[string]interface{}{
		"wallet":      base58.Encode(wallet.Key),
		"nested_mint": base58.Encode(nestedMint.Key),
		"amount":      amount,
	})
	return nil
}

// classifyRecoverNestedMismatch maps a key mismatch to an error by the role
// of the offending account.
func classifyRecoverNestedMismatch(mismatch *KeyMismatchError, actual []*solana.AccountInfo) error {
	switch {
	case bytes.Equal(mismatch.Actual, actual[3].Key):
		return programError(solana.InstructionErrorInvalidSeeds, "owner associated address does not match seed derivation")
	case bytes.Equal(mismatch.Actual, actual[0].Key):
		return programError(solana.InstructionErrorInvalidSeeds, "nested associated address does not match seed derivation")
	case bytes.Equal(mismatch.Actual, actual[2].Key):
		return programError(solana.InstructionErrorInvalidSeeds, "destination associated address does not match seed derivation")
	case bytes.Equal(mismatch.Actual, actual[6].Key):
		return programError(solana.InstructionErrorIllegalOwner, "incorrect token program")
	default:
		return programError(solana.InstructionErrorInvalidAccountData, mismatch.Error())
	}
}

// readRecoverableBalance checks custody of the nested account and returns its
// balance along with the nested mint decimals. All borrows are released on
// return.
func readRecoverableBalance(nested, nestedMint, ownerAssociated, wallet, tokenProgram *solana.AccountInfo) (uint64, byte, error) {
	if !ownerAssociated.IsOwnedBy(tokenProgram.Key) {
		return 0, 0, programError(solana.InstructionErrorIllegalOwner, "owner associated token account not owned by provided token program")
	}
	ownerData, releaseOwner, err := ownerAssociated.Borrow()
	if err != nil {
		return 0, 0, err
	}
	defer releaseOwner()

	ownerAccount, err := token.UnpackAccount(ownerData)
	if err != nil {
		return 0, 0, unpackError(err, "owner associated token account")
	}
	if !bytes.Equal(ownerAccount.Owner, wallet.Key) {
		return 0, 0, errors.Wrap(ErrInvalidOwner, "owner associated token account not owned by provided wallet")
	}

	if !nested.IsOwnedBy(tokenProgram.Key) {
		return 0, 0, programError(solana.InstructionErrorIllegalOwner, "nested associated token account not owned by provided token program")
	}
	nestedData, releaseNested, err := nested.Borrow()
	if err != nil {
		return 0, 0, err
	}
	defer releaseNested()

	nestedAccount, err := token.UnpackAccount(nestedData)
	if err != nil {
		return 0, 0, unpackError(err, "nested associated token account")
	}
	if !bytes.Equal(nestedAccount.Owner, ownerAssociated.Key) {
		return 0, 0, errors.Wrap(ErrInvalidOwner, "nested associated token account not owned by provided associated token account")
	}

	mintData, releaseMint, err := nestedMint.Borrow()
	if err != nil {
		return 0, 0, err
	}
	defer releaseMint()

	mint, err := token.UnpackMint(mintData)
	if err != nil {
		return 0, 0, unpackError(err, "nested mint")
	}

	return nestedAccount.Amount, mint.Decimals, nil
}

func unpackError(err error, what string) error {
	if err == token.ErrUninitialized {
		return programError(solana.InstructionErrorUninitializedAccount, what+" is not initialized")
	}
	return programError(solana.InstructionErrorInvalidAccountData, errors.Wrap(err, what).Error())
}
