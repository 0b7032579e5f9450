package ata

import (
	"crypto/ed25519"

	"github.com/code-payments/associated-token-account/pkg/solana"
	"github.com/code-payments/associated-token-account/pkg/solana/token"
)

// FindAddressArgs are the seeds an associated token account is derived from.
type FindAddressArgs struct {
	Wallet       ed25519.PublicKey
	TokenProgram ed25519.PublicKey
	Mint         ed25519.PublicKey
}

// Seeds returns the derivation seeds. The order is part of the address
// contract.
func (a FindAddressArgs) Seeds() [][]byte {
	return [][]byte{a.Wallet, a.TokenProgram, a.Mint}
}

// Find derives the associated token account address and its bump seed.
func (a FindAddressArgs) Find() (DerivedAddress, error) {
	address, bump, err := solana.FindProgramAddressAndBump(ProgramKey, a.Seeds()...)
	if err != nil {
		return DerivedAddress{}, err
	}

	return DerivedAddress{
		Address: address,
		Bump:    bump,
		Args:    a,
	}, nil
}

// DerivedAddress is a program derived address along with the seeds required
// for the program to sign on its behalf.
type DerivedAddress struct {
	Address ed25519.PublicKey
	Bump    uint8
	Args    FindAddressArgs
}

// SignerSeeds returns the seeds with the bump appended, as used when the
// program invokes another program on behalf of the derived address.
func (d DerivedAddress) SignerSeeds() [][]byte {
	return append(d.Args.Seeds(), []byte{d.Bump})
}

// GetAssociatedAccount returns the associated account address for an SPL token.
//
// Reference: https://spl.solana.com/associated-token-account#finding-the-associated-token-account-address
func GetAssociatedAccount(wallet, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	return GetAssociatedAccountWithProgram(wallet, mint, token.ProgramKey)
}

// GetAssociatedAccountWithProgram returns the associated account address for
// a mint managed by the provided token program.
func GetAssociatedAccountWithProgram(wallet, mint, tokenProgram ed25519.PublicKey) (ed25519.PublicKey, error) {
	derived, err := FindAddressArgs{
		Wallet:       wallet,
		TokenProgram: tokenProgram,
		Mint:         mint,
	}.Find()
	if err != nil {
		return nil, err
	}
	return derived.Address, nil
}
