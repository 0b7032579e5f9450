package ata

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/associated-token-account/pkg/solana"
	"github.com/code-payments/associated-token-account/pkg/solana/system"
)

// CreateKeys are the accounts expected by Create and CreateIdempotent, in
// instruction order.
type CreateKeys struct {
	FundingAccount         ed25519.PublicKey
	AssociatedTokenAccount ed25519.PublicKey
	Wallet                 ed25519.PublicKey
	Mint                   ed25519.PublicKey
	SystemProgram          ed25519.PublicKey
	TokenProgram           ed25519.PublicKey
}

func (k CreateKeys) Keys() []ed25519.PublicKey {
	return []ed25519.PublicKey{
		k.FundingAccount,
		k.AssociatedTokenAccount,
		k.Wallet,
		k.Mint,
		k.SystemProgram,
		k.TokenProgram,
	}
}

// Metas returns the privilege contract of the instruction.
func (k CreateKeys) Metas() []solana.AccountMeta {
	return []solana.AccountMeta{
		solana.NewAccountMeta(k.FundingAccount, true),
		solana.NewAccountMeta(k.AssociatedTokenAccount, false),
		solana.NewReadonlyAccountMeta(k.Wallet, false),
		solana.NewReadonlyAccountMeta(k.Mint, false),
		solana.NewReadonlyAccountMeta(k.SystemProgram, false),
		solana.NewReadonlyAccountMeta(k.TokenProgram, false),
	}
}

// RecoverNestedKeys are the accounts expected by RecoverNested, in
// instruction order.
type RecoverNestedKeys struct {
	Nested                     ed25519.PublicKey
	NestedMint                 ed25519.PublicKey
	WalletAssociatedAccount    ed25519.PublicKey
	OwnerAssociatedAccount     ed25519.PublicKey
	OwnerAssociatedAccountMint ed25519.PublicKey
	Wallet                     ed25519.PublicKey
	TokenProgram               ed25519.PublicKey
}

func (k RecoverNestedKeys) Keys() []ed25519.PublicKey {
	return []ed25519.PublicKey{
		k.Nested,
		k.NestedMint,
		k.WalletAssociatedAccount,
		k.OwnerAssociatedAccount,
		k.OwnerAssociatedAccountMint,
		k.Wallet,
		k.TokenProgram,
	}
}

// Metas returns the privilege contract of the instruction.
func (k RecoverNestedKeys) Metas() []solana.AccountMeta {
	return []solana.AccountMeta{
		solana.NewAccountMeta(k.Nested, false),
		solana.NewReadonlyAccountMeta(k.NestedMint, false),
		solana.NewAccountMeta(k.WalletAssociatedAccount, false),
		solana.NewReadonlyAccountMeta(k.OwnerAssociatedAccount, false),
		solana.NewReadonlyAccountMeta(k.OwnerAssociatedAccountMint, false),
		solana.NewAccountMeta(k.Wallet, true),
		solana.NewReadonlyAccountMeta(k.TokenProgram, false),
	}
}

// CreateRootKeys are the free inputs the Create key set is derived from.
type CreateRootKeys struct {
	FundingAccount ed25519.PublicKey
	Wallet         ed25519.PublicKey
	Mint           ed25519.PublicKey
	TokenProgram   ed25519.PublicKey
}

// Resolve derives the full Create key set and the associated account address.
func (r CreateRootKeys) Resolve() (CreateKeys, DerivedAddress, error) {
	derived, err := FindAddressArgs{
		Wallet:       r.Wallet,
		TokenProgram: r.TokenProgram,
		Mint:         r.Mint,
	}.Find()
	if err != nil {
		return CreateKeys{}, DerivedAddress{}, err
	}

	return CreateKeys{
		FundingAccount:         r.FundingAccount,
		AssociatedTokenAccount: derived.Address,
		Wallet:                 r.Wallet,
		Mint:                   r.Mint,
		SystemProgram:          system.ProgramKey,
		TokenProgram:           r.TokenProgram,
	}, derived, nil
}

// ResolveIdempotent derives the CreateIdempotent key set, which is identical
// to the Create key set.
func (r CreateRootKeys) ResolveIdempotent() (CreateKeys, DerivedAddress, error) {
	return r.Resolve()
}

// CreateRootAccounts resolves the Create key set using the owner of the mint
// account as the token program.
type CreateRootAccounts struct {
	FundingAccount ed25519.PublicKey
	Wallet         ed25519.PublicKey
	Mint           *solana.AccountInfo
}

func (r CreateRootAccounts) Resolve() (CreateKeys, DerivedAddress, error) {
	return CreateRootKeys{
		FundingAccount: r.FundingAccount,
		Wallet:         r.Wallet,
		Mint:           r.Mint.Key,
		TokenProgram:   r.Mint.Owner,
	}.Resolve()
}

// RecoverNestedRootKeys are the free inputs the RecoverNested key set is
// derived from.
type RecoverNestedRootKeys struct {
	Wallet                ed25519.PublicKey
	OwnerTokenAccountMint ed25519.PublicKey
	NestedMint            ed25519.PublicKey
	TokenProgram          ed25519.PublicKey
}

// Resolve derives the three associated accounts involved in a recovery:
//
//  1. the wallet's associated account for the owner mint
//  2. the nested account, owned by (1), for the nested mint
//  3. the wallet's associated account for the nested mint
//
// The returned DerivedAddress is (1), which signs for the nested account.
func (r RecoverNestedRootKeys) Resolve() (RecoverNestedKeys, DerivedAddress, error) {
	owner, err := FindAddressArgs{
		Wallet:       r.Wallet,
		TokenProgram: r.TokenProgram,
		Mint:         r.OwnerTokenAccountMint,
	}.Find()
	if err != nil {
		return RecoverNestedKeys{}, DerivedAddress{}, err
	}

	nested, err := r.FindNestedAddress(owner.Address)
	if err != nil {
		return RecoverNestedKeys{}, DerivedAddress{}, err
	}

	destination, err := FindAddressArgs{
		Wallet:       r.Wallet,
		TokenProgram: r.TokenProgram,
		Mint:         r.NestedMint,
	}.Find()
	if err != nil {
		return RecoverNestedKeys{}, DerivedAddress{}, err
	}

	return RecoverNestedKeys{
		Nested:                     nested.Address,
		NestedMint:                 r.NestedMint,
		WalletAssociatedAccount:    destination.Address,
		OwnerAssociatedAccount:     owner.Address,
		OwnerAssociatedAccountMint: r.OwnerTokenAccountMint,
		Wallet:                     r.Wallet,
		TokenProgram:               r.TokenProgram,
	}, owner, nil
}

// FindNestedAddress derives the associated account of the nested mint whose
// wallet is the provided owner associated account.
func (r RecoverNestedRootKeys) FindNestedAddress(ownerAssociatedAccount ed25519.PublicKey) (DerivedAddress, error) {
	return FindAddressArgs{
		Wallet:       ownerAssociatedAccount,
		TokenProgram: r.TokenProgram,
		Mint:         r.NestedMint,
	}.Find()
}

// RecoverNestedRootAccounts resolves the RecoverNested key set using the
// owner of both mint accounts as the token program.
type RecoverNestedRootAccounts struct {
	Wallet                ed25519.PublicKey
	OwnerTokenAccountMint *solana.AccountInfo
	NestedMint            *solana.AccountInfo
}

// Resolve fails with ErrAssetProgramMismatch, before deriving anything, when
// the two mints are owned by different programs.
func (r RecoverNestedRootAccounts) Resolve() (RecoverNestedKeys, DerivedAddress, error) {
	if !bytes.Equal(r.OwnerTokenAccountMint.Owner, r.NestedMint.Owner) {
		return RecoverNestedKeys{}, DerivedAddress{}, ErrAssetProgramMismatch
	}

	return RecoverNestedRootKeys{
		Wallet:                r.Wallet,
		OwnerTokenAccountMint: r.OwnerTokenAccountMint.Key,
		NestedMint:            r.NestedMint.Key,
		TokenProgram:          r.NestedMint.Owner,
	}.Resolve()
}
