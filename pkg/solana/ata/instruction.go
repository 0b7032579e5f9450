package ata

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/associated-token-account/pkg/solana"
	"github.com/code-payments/associated-token-account/pkg/solana/system"
)

type InstructionType uint8

const (
	InstructionCreate InstructionType = iota
	InstructionCreateIdempotent
	InstructionRecoverNested
)

func (t InstructionType) String() string {
	switch t {
	case InstructionCreate:
		return "Create"
	case InstructionCreateIdempotent:
		return "CreateIdempotent"
	case InstructionRecoverNested:
		return "RecoverNested"
	default:
		return "Unknown"
	}
}

// Instruction is a decoded associated token account instruction. None of the
// instructions currently carry arguments.
type Instruction struct {
	Type InstructionType
}

// Encode returns the wire format of the instruction.
func (i Instruction) Encode() []byte {
	return []byte{byte(i.Type)}
}

// DecodeInstruction decodes an instruction payload. An empty payload is a
// Create instruction.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return Instruction{Type: InstructionCreate}, nil
	}

	t := InstructionType(data[0])
	switch t {
	case InstructionCreate, InstructionCreateIdempotent, InstructionRecoverNested:
	default:
		return Instruction{}, errors.Wrapf(ErrDecode, "unknown instruction tag %d", data[0])
	}

	if len(data) > 1 {
		return Instruction{}, errors.Wrapf(ErrDecode, "unexpected %d trailing bytes", len(data)-1)
	}

	return Instruction{Type: t}, nil
}

// NewCreateInstruction returns an instruction that creates the associated
// token account of wallet for mint, along with its address.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/0639953c7dd0f5228c3ceda3ba68fece3b46ff1d/associated-token-account/program/src/lib.rs#L54
func NewCreateInstruction(funder, wallet, mint, tokenProgram ed25519.PublicKey) (solana.Instruction, ed25519.PublicKey, error) {
	return newCreateInstruction(InstructionCreate, funder, wallet, mint, tokenProgram)
}

// NewCreateIdempotentInstruction is NewCreateInstruction for an instruction that
// succeeds when the account already exists with the expected wallet and mint.
func NewCreateIdempotentInstruction(funder, wallet, mint, tokenProgram ed25519.PublicKey) (solana.Instruction, ed25519.PublicKey, error) {
	return newCreateInstruction(InstructionCreateIdempotent, funder, wallet, mint, tokenProgram)
}

func newCreateInstruction(t InstructionType, funder, wallet, mint, tokenProgram ed25519.PublicKey) (solana.Instruction, ed25519.PublicKey, error) {
	keys, derived, err := CreateRootKeys{
		FundingAccount: funder,
		Wallet:         wallet,
		Mint:           mint,
		TokenProgram:   tokenProgram,
	}.Resolve()
	if err != nil {
		return solana.Instruction{}, nil, err
	}

	return solana.NewInstruction(
		ProgramKey,
		Instruction{Type: t}.Encode(),
		keys.Metas()...,
	), derived.Address, nil
}

// NewRecoverNestedInstruction returns an instruction that moves the balance of
// the nested associated account back into the wallet's associated account for
// nestedMint, and closes the nested account.
func NewRecoverNestedInstruction(wallet, ownerMint, nestedMint, tokenProgram ed25519.PublicKey) (solana.Instruction, error) {
	keys, _, err := RecoverNestedRootKeys{
		Wallet:                wallet,
		OwnerTokenAccountMint: ownerMint,
		NestedMint:            nestedMint,
		TokenProgram:          tokenProgram,
	}.Resolve()
	if err != nil {
		return solana.Instruction{}, err
	}

	return solana.NewInstruction(
		ProgramKey,
		Instruction{Type: InstructionRecoverNested}.Encode(),
		keys.Metas()...,
	), nil
}

type DecompiledCreate struct {
	Idempotent bool

	Funder       ed25519.PublicKey
	Address      ed25519.PublicKey
	Wallet       ed25519.PublicKey
	Mint         ed25519.PublicKey
	TokenProgram ed25519.PublicKey
}

func DecompileCreate(i solana.Instruction) (*DecompiledCreate, error) {
	if err := i.CheckProgram(ProgramKey); err != nil {
		return nil, err
	}

	decoded, err := DecodeInstruction(i.Data)
	if err != nil {
		return nil, err
	}
	if decoded.Type != InstructionCreate && decoded.Type != InstructionCreateIdempotent {
		return nil, solana.ErrIncorrectInstruction
	}

	if len(i.Accounts) != CreateAccountsLen {
		return nil, errors.Errorf("invalid number of accounts: %d (expected %d)", len(i.Accounts), CreateAccountsLen)
	}
	if !i.Accounts[4].PublicKey.Equal(system.ProgramKey) {
		return nil, errors.New("system program key mismatch")
	}

	return &DecompiledCreate{
		Idempotent:   decoded.Type == InstructionCreateIdempotent,
		Funder:       i.Accounts[0].PublicKey,
		Address:      i.Accounts[1].PublicKey,
		Wallet:       i.Accounts[2].PublicKey,
		Mint:         i.Accounts[3].PublicKey,
		TokenProgram: i.Accounts[5].PublicKey,
	}, nil
}

type DecompiledRecoverNested struct {
	Nested                     ed25519.PublicKey
	NestedMint                 ed25519.PublicKey
	WalletAssociatedAccount    ed25519.PublicKey
	OwnerAssociatedAccount     ed25519.PublicKey
	OwnerAssociatedAccountMint ed25519.PublicKey
	Wallet                     ed25519.PublicKey
	TokenProgram               ed25519.PublicKey
}

func DecompileRecoverNested(i solana.Instruction) (*DecompiledRecoverNested, error) {
	if err := i.CheckProgram(ProgramKey); err != nil {
		return nil, err
	}

	decoded, err := DecodeInstruction(i.Data)
	if err != nil {
		return nil, err
	}
	if decoded.Type != InstructionRecoverNested {
		return nil, solana.ErrIncorrectInstruction
	}

	if len(i.Accounts) != RecoverNestedAccountsLen {
		return nil, errors.Errorf("invalid number of accounts: %d (expected %d)", len(i.Accounts), RecoverNestedAccountsLen)
	}

	return &DecompiledRecoverNested{
		Nested:                     i.Accounts[0].PublicKey,
		NestedMint:                 i.Accounts[1].PublicKey,
		WalletAssociatedAccount:    i.Accounts[2].PublicKey,
		OwnerAssociatedAccount:     i.Accounts[3].PublicKey,
		OwnerAssociatedAccountMint: i.Accounts[4].PublicKey,
		Wallet:                     i.Accounts[5].PublicKey,
		TokenProgram:               i.Accounts[6].PublicKey,
	}, nil
}
