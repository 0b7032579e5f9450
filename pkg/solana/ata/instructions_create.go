package ata

import (
	"bytes"
	"context"

	"github.com/mr-tron/base58/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/associated-token-account/pkg/solana"
	"github.com/code-payments/associated-token-account/pkg/solana/system"
	"github.com/code-payments/associated-token-account/pkg/solana/token"
)

type createMode uint8

const (
	createModeAlways createMode = iota
	createModeIdempotent
)

func (p *Processor) processCreate(ctx context.Context, log *logrus.Entry, accounts []*solana.AccountInfo, mode createMode) error {
	actual, err := accountsOrErr(accounts, CreateAccountsLen)
	if err != nil {
		return err
	}

	var (
		funder        = actual[0]
		associated    = actual[1]
		wallet        = actual[2]
		mint          = actual[3]
		systemProgram = actual[4]
		tokenProgram  = actual[5]
	)

	log = log.WithFields(logrus.Fields{
		"wallet": base58.Encode(wallet.Key),
		"mint":   base58.Encode(mint.Key),
	})

	keys, derived, err := CreateRootKeys{
		FundingAccount: funder.Key,
		Wallet:         wallet.Key,
		Mint:           mint.Key,
		TokenProgram:   tokenProgram.Key,
	}.Resolve()
	if err != nil {
		return err
	}

	if err := VerifyKeys(actual, keys.Keys()); err != nil {
		mismatch, ok := err.(*KeyMismatchError)
		if !ok {
			return err
		}
		if bytes.Equal(mismatch.Actual, associated.Key) {
			return programError(solana.InstructionErrorInvalidSeeds, "associated address does not match seed derivation")
		}
		return programError(solana.InstructionErrorInvalidAccountData, mismatch.Error())
	}
	if err := VerifyPrivileges(actual, keys.Metas()); err != nil {
		return err
	}

	if mode == createModeIdempotent && associated.IsOwnedBy(tokenProgram.Key) {
		exists, err := checkExistingAccount(associated, wallet, mint)
		if err != nil {
			return err
		}
		if exists {
			log.Debug("associated token account already exists")
			return nil
		}
	}

	if !associated.IsOwnedBy(system.ProgramKey) {
		return programError(solana.InstructionErrorIllegalOwner, "associated address is not owned by the system program")
	}

	if !token.IsTokenProgram(tokenProgram.Key) {
		return solana.NewProgramError(solana.InstructionErrorIncorrectProgramID)
	}

	mintData, release, err := mint.Borrow()
	if err != nil {
		return err
	}
	accountLen, err := token.GetAccountLen(tokenProgram.Key, mintData, token.ExtensionTypeImmutableOwner)
	release()
	if err != nil {
		return programError(solana.InstructionErrorInvalidAccountData, err.Error())
	}

	signerSeeds := derived.SignerSeeds()
	if err := p.createPDAAccount(ctx, funder, associated, systemProgram, tokenProgram, accountLen, signerSeeds); err != nil {
		return err
	}

	log.Debug("initializing the associated token account")

	err = p.invoker.InvokeSigned(
		ctx,
		token.InitializeImmutableOwner(tokenProgram.Key, associated.Key),
		[]*solana.AccountInfo{associated, tokenProgram},
	)
	if err != nil {
		return err
	}

	return p.invoker.InvokeSigned(
		ctx,
		token.InitializeAccount3(tokenProgram.Key, associated.Key, mint.Key, wallet.Key),
		[]*solana.AccountInfo{associated, mint, wallet, tokenProgram},
	)
}

// createPDAAccount creates the associated account at its derived address,
// signing for it with signerSeeds. Accounts already holding lamports cannot
// be created by the system program, so they are topped up to the rent
// exempt minimum, then allocated and assigned.
func (p *Processor) createPDAAccount(
	ctx context.Context,
	funder, associated, systemProgram, owner *solana.AccountInfo,
	space uint64,
	signerSeeds [][]byte,
) error {
	required := p.rent.MinimumBalance(space)
	if required < 1 {
		required = 1
	}

	if associated.Lamports == 0 {
		return p.invoker.InvokeSigned(
			ctx,
			system.CreateAccount(funder.Key, associated.Key, owner.Key, required, space),
			[]*solana.AccountInfo{funder, associated, systemProgram},
			signerSeeds,
		)
	}

	if required > associated.Lamports {
		err := p.invoker.InvokeSigned(
			ctx,
			system.Transfer(funder.Key, associated.Key, required-associated.Lamports),
			[]*solana.AccountInfo{funder, associated, systemProgram},
		)
		if err != nil {
			return err
		}
	}

	err := p.invoker.InvokeSigned(
		ctx,
		system.Allocate(associated.Key, space),
		[]*solana.AccountInfo{associated, systemProgram},
		signerSeeds,
	)
	if err != nil {
		return err
	}

	return p.invoker.InvokeSigned(
		ctx,
		system.Assign(associated.Key, owner.Key),
		[]*solana.AccountInfo{associated, systemProgram},
		signerSeeds,
	)
}
