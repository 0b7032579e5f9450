package token

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/associated-token-account/pkg/solana"
	"github.com/code-payments/associated-token-account/pkg/solana/system"
)

// Rent provides the minimum balance for an account to be rent exempt.
type Rent interface {
	MinimumBalance(dataLen uint64) uint64
}

// Processor natively executes the subset of the token and token-2022
// instruction sets required to create, fund and close token accounts.
type Processor struct {
	log  *logrus.Entry
	rent Rent
}

func NewProcessor(rent Rent) *Processor {
	return &Processor{
		log:  logrus.StandardLogger().WithField("type", "solana/token/processor"),
		rent: rent,
	}
}

func (p *Processor) Process(_ context.Context, programID ed25519.PublicKey, accounts []*solana.AccountInfo, data []byte) error {
	if !IsTokenProgram(programID) {
		return solana.NewProgramError(solana.InstructionErrorIncorrectProgramID)
	}

	command, err := GetCommand(solana.NewInstruction(programID, data))
	if err != nil {
		return ErrorInvalidInstruction
	}

	args := data[1:]
	switch command {
	case CommandInitializeMint2:
		if len(args) != 1+ed25519.PublicKeySize+1 && len(args) != 1+2*ed25519.PublicKeySize+1 {
			return ErrorInvalidInstruction
		}
		if len(accounts) < 1 {
			return solana.NewProgramError(solana.InstructionErrorNotEnoughAccountKeys)
		}

		var freeze ed25519.PublicKey
		if args[1+ed25519.PublicKeySize] == 1 {
			if len(args) != 1+2*ed25519.PublicKeySize+1 {
				return ErrorInvalidInstruction
			}
			freeze = ed25519.PublicKey(args[2+ed25519.PublicKeySize:])
		}
		return p.initializeMint(programID, accounts[0], args[0], ed25519.PublicKey(args[1:1+ed25519.PublicKeySize]), freeze)

	case CommandInitializeAccount3:
		if len(args) != ed25519.PublicKeySize {
			return ErrorInvalidInstruction
		}
		if len(accounts) < 2 {
			return solana.NewProgramError(solana.InstructionErrorNotEnoughAccountKeys)
		}
		return p.initializeAccount(programID, accounts[0], accounts[1], ed25519.PublicKey(args))

	case CommandInitializeImmutableOwner:
		if len(args) != 0 {
			return ErrorInvalidInstruction
		}
		if len(accounts) < 1 {
			return solana.NewProgramError(solana.InstructionErrorNotEnoughAccountKeys)
		}
		return p.initializeImmutableOwner(programID, accounts[0])

	case CommandMintTo:
		if len(args) != 8 {
			return ErrorInvalidInstruction
		}
		if len(accounts) < 3 {
			return solana.NewProgramError(solana.InstructionErrorNotEnoughAccountKeys)
		}
		return p.mintTo(programID, accounts[0], accounts[1], accounts[2], binary.LittleEndian.Uint64(args))

	case CommandTransferChecked:
		if len(args) != 9 {
			return ErrorInvalidInstruction
		}
		if len(accounts) < 4 {
			return solana.NewProgramError(solana.InstructionErrorNotEnoughAccountKeys)
		}
		return p.transferChecked(programID, accounts[0], accounts[1], accounts[2], accounts[3], binary.LittleEndian.Uint64(args), args[8])

	case CommandCloseAccount:
		if len(args) != 0 {
			return ErrorInvalidInstruction
		}
		if len(accounts) < 3 {
			return solana.NewProgramError(solana.InstructionErrorNotEnoughAccountKeys)
		}
		return p.closeAccount(programID, accounts[0], accounts[1], accounts[2])

	default:
		p.log.WithField("command", command).Debug("unsupported token command")
		return ErrorInvalidInstruction
	}
}

func (p *Processor) initializeMint(programID ed25519.PublicKey, mint *solana.AccountInfo, decimals byte, authority, freeze ed25519.PublicKey) error {
	if !mint.IsOwnedBy(programID) {
		return solana.NewProgramError(solana.InstructionErrorIncorrectProgramID)
	}

	extended := len(mint.Data) > AccountSize && bytes.Equal(programID, Program2022Key)
	if len(mint.Data) != MintSize && !extended {
		return solana.NewProgramError(solana.InstructionErrorInvalidAccountData)
	}
	if mint.Data[45] != 0 {
		return ErrorAlreadyInUse
	}
	if mint.Lamports < p.rent.MinimumBalance(uint64(len(mint.Data))) {
		return ErrorNotRentExempt
	}

	m := Mint{
		MintAuthority:   authority,
		Decimals:        decimals,
		IsInitialized:   true,
		FreezeAuthority: freeze,
	}
	m.marshalInto(mint.Data[:MintSize])
	if extended {
		mint.Data[AccountSize] = byte(AccountTypeMint)
	}
	return nil
}

func (p *Processor) initializeAccount(programID ed25519.PublicKey, account, mintAccount *solana.AccountInfo, owner ed25519.PublicKey) error {
	if !account.IsOwnedBy(programID) {
		return solana.NewProgramError(solana.InstructionErrorIncorrectProgramID)
	}

	extended := len(account.Data) > AccountSize && bytes.Equal(programID, Program2022Key)
	if len(account.Data) != AccountSize && !extended {
		return solana.NewProgramError(solana.InstructionErrorInvalidAccountData)
	}
	if IsAccountInitialized(account.Data) {
		return ErrorAlreadyInUse
	}
	if account.Lamports < p.rent.MinimumBalance(uint64(len(account.Data))) {
		return ErrorNotRentExempt
	}

	if !mintAccount.IsOwnedBy(programID) {
		return solana.NewProgramError(solana.InstructionErrorIncorrectProgramID)
	}
	if _, err := UnpackMint(mintAccount.Data); err != nil {
		return ErrorInvalidMint
	}

	if extended {
		mintExtensions, err := GetExtensionTypes(mintAccount.Data)
		if err != nil {
			return ErrorInvalidMint
		}
		for _, mintExt := range mintExtensions {
			for _, ext := range RequiredAccountExtensions(mintExt) {
				if err := InitExtension(account.Data, ext); err != nil {
					p.log.WithError(err).WithField("extension", ext).Debug("missing room for required extension")
					return solana.NewProgramError(solana.InstructionErrorInvalidAccountData)
				}
			}
		}
	} else if bytes.Equal(programID, Program2022Key) {
		mintExtensions, _ := GetExtensionTypes(mintAccount.Data)
		for _, mintExt := range mintExtensions {
			if len(RequiredAccountExtensions(mintExt)) > 0 {
				return solana.NewProgramError(solana.InstructionErrorInvalidAccountData)
			}
		}
	}

	a := Account{
		Mint:  mintAccount.Key,
		Owner: owner,
		State: AccountStateInitialized,
	}
	a.marshalInto(account.Data[:AccountSize])
	if extended {
		account.Data[AccountSize] = byte(AccountTypeAccount)
	}
	return nil
}

func (p *Processor) initializeImmutableOwner(programID ed25519.PublicKey, account *solana.AccountInfo) error {
	if !account.IsOwnedBy(programID) {
		return solana.NewProgramError(solana.InstructionErrorIncorrectProgramID)
	}
	if IsAccountInitialized(account.Data) {
		return ErrorAlreadyInUse
	}

	// Legacy token accounts are always immutably owned.
	if bytes.Equal(programID, ProgramKey) {
		if len(account.Data) != AccountSize {
			return solana.NewProgramError(solana.InstructionErrorInvalidAccountData)
		}
		p.log.WithField("account", account.String()).Debug("immutable owner extension not required for legacy token accounts")
		return nil
	}

	if err := InitExtension(account.Data, ExtensionTypeImmutableOwner); err != nil {
		p.log.WithError(err).WithField("account", account.String()).Debug("failed to initialize immutable owner")
		return solana.NewProgramError(solana.InstructionErrorInvalidAccountData)
	}
	return nil
}

func (p *Processor) mintTo(programID ed25519.PublicKey, mintAccount, dest, authority *solana.AccountInfo, amount uint64) error {
	if !mintAccount.IsOwnedBy(programID) || !dest.IsOwnedBy(programID) {
		return solana.NewProgramError(solana.InstructionErrorIncorrectProgramID)
	}

	destState, err := UnpackAccount(dest.Data)
	if err != nil {
		return solana.NewProgramError(solana.InstructionErrorUninitializedAccount)
	}
	if destState.State == AccountStateFrozen {
		return ErrorAccountFrozen
	}
	if !bytes.Equal(destState.Mint, mintAccount.Key) {
		return ErrorMintMismatch
	}

	mint, err := UnpackMint(mintAccount.Data)
	if err != nil {
		return solana.NewProgramError(solana.InstructionErrorUninitializedAccount)
	}
	if len(mint.MintAuthority) == 0 {
		return ErrorFixedSupply
	}
	if err := validateOwner(mint.MintAuthority, authority); err != nil {
		return err
	}

	if mint.Supply > math.MaxUint64-amount || destState.Amount > math.MaxUint64-amount {
		return ErrorOverflow
	}

	mint.Supply += amount
	destState.Amount += amount

	mint.marshalInto(mintAccount.Data[:MintSize])
	destState.marshalInto(dest.Data[:AccountSize])
	return nil
}

func (p *Processor) transferChecked(programID ed25519.PublicKey, source, mintAccount, dest, owner *solana.AccountInfo, amount uint64, decimals byte) error {
	if !source.IsOwnedBy(programID) || !dest.IsOwnedBy(programID) {
		return solana.NewProgramError(solana.InstructionErrorIncorrectProgramID)
	}

	sourceState, err := UnpackAccount(source.Data)
	if err != nil {
		return solana.NewProgramError(solana.InstructionErrorUninitializedAccount)
	}
	destState, err := UnpackAccount(dest.Data)
	if err != nil {
		return solana.NewProgramError(solana.InstructionErrorUninitializedAccount)
	}

	if sourceState.State == AccountStateFrozen || destState.State == AccountStateFrozen {
		return ErrorAccountFrozen
	}
	if sourceState.Amount < amount {
		return ErrorInsufficientFunds
	}
	if !bytes.Equal(sourceState.Mint, destState.Mint) {
		return ErrorMintMismatch
	}
	if !bytes.Equal(sourceState.Mint, mintAccount.Key) {
		return ErrorMintMismatch
	}

	if !mintAccount.IsOwnedBy(programID) {
		return solana.NewProgramError(solana.InstructionErrorIncorrectProgramID)
	}
	mint, err := UnpackMint(mintAccount.Data)
	if err != nil {
		return solana.NewProgramError(solana.InstructionErrorUninitializedAccount)
	}
	if mint.Decimals != decimals {
		return ErrorMintDecimalsMismatch
	}

	if err := validateOwner(sourceState.Owner, owner); err != nil {
		return err
	}

	// Self transfers only validate.
	if bytes.Equal(source.Key, dest.Key) {
		return nil
	}

	if destState.Amount > math.MaxUint64-amount {
		return ErrorOverflow
	}

	sourceState.Amount -= amount
	destState.Amount += amount

	sourceState.marshalInto(source.Data[:AccountSize])
	destState.marshalInto(dest.Data[:AccountSize])

	p.log.WithFields(logrus.Fields{
		"source":      source.String(),
		"destination": dest.String(),
		"amount":      amount,
	}).Trace("transfer checked")
	return nil
}

func (p *Processor) closeAccount(programID ed25519.PublicKey, account, dest, owner *solana.AccountInfo) error {
	if bytes.Equal(account.Key, dest.Key) {
		return solana.NewProgramError(solana.InstructionErrorInvalidAccountData)
	}
	if !account.IsOwnedBy(programID) {
		return solana.NewProgramError(solana.InstructionErrorIncorrectProgramID)
	}

	state, err := UnpackAccount(account.Data)
	if err != nil {
		return solana.NewProgramError(solana.InstructionErrorUninitializedAccount)
	}
	if state.IsNative == nil && state.Amount != 0 {
		return ErrorNonNativeHasBalance
	}

	authority := state.Owner
	if len(state.CloseAuthority) > 0 {
		authority = state.CloseAuthority
	}
	if err := validateOwner(authority, owner); err != nil {
		return err
	}

	if dest.Lamports > math.MaxUint64-account.Lamports {
		return ErrorOverflow
	}

	dest.Lamports += account.Lamports
	account.Lamports = 0
	account.Data = nil
	account.Owner = append(ed25519.PublicKey(nil), system.ProgramKey...)
	return nil
}

func validateOwner(expected ed25519.PublicKey, owner *solana.AccountInfo) error {
	if !bytes.Equal(expected, owner.Key) {
		return ErrorOwnerMismatch
	}
	if !owner.IsSigner {
		return solana.NewProgramError(solana.InstructionErrorMissingRequiredSignature)
	}
	return nil
}
