package ata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/associated-token-account/pkg/solana"
	"github.com/code-payments/associated-token-account/pkg/solana/system"
	"github.com/code-payments/associated-token-account/pkg/solana/token"
)

func TestCreateRootKeys_Resolve(t *testing.T) {
	keys := generateKeys(t, 3)

	root := CreateRootKeys{
		FundingAccount: keys[0],
		Wallet:         keys[1],
		Mint:           keys[2],
		TokenProgram:   token.ProgramKey,
	}

	resolved, derived, err := root.Resolve()
	require.NoError(t, err)

	expected, err := GetAssociatedAccount(keys[1], keys[2])
	require.NoError(t, err)
	assert.EqualValues(t, expected, derived.Address)

	assert.Equal(t, []solana.AccountMeta{
		solana.NewAccountMeta(keys[0], true),
		solana.NewAccountMeta(expected, false),
		solana.NewReadonlyAccountMeta(keys[1], false),
		solana.NewReadonlyAccountMeta(keys[2], false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
	}, resolved.Metas())
	assert.Len(t, resolved.Keys(), CreateAccountsLen)

	idempotent, idempotentDerived, err := root.ResolveIdempotent()
	require.NoError(t, err)
	assert.Equal(t, resolved, idempotent)
	assert.Equal(t, derived, idempotentDerived)
}

func TestCreateRootAccounts_Resolve(t *testing.T) {
	keys := generateKeys(t, 3)

	resolved, derived, err := CreateRootAccounts{
		FundingAccount: keys[0],
		Wallet:         keys[1],
		Mint:           &solana.AccountInfo{Key: keys[2], Owner: token.Program2022Key},
	}.Resolve()
	require.NoError(t, err)

	expected, err := GetAssociatedAccountWithProgram(keys[1], keys[2], token.Program2022Key)
	require.NoError(t, err)
	assert.EqualValues(t, expected, derived.Address)
	assert.EqualValues(t, token.Program2022Key, resolved.TokenProgram)
}

func TestRecoverNestedRootKeys_Resolve(t *testing.T) {
	keys := generateKeys(t, 3)
	wallet, ownerMint, nestedMint := keys[0], keys[1], keys[2]

	root := RecoverNestedRootKeys{
		Wallet:                wallet,
		OwnerTokenAccountMint: ownerMint,
		NestedMint:            nestedMint,
		TokenProgram:          token.ProgramKey,
	}
	resolved, ownerDerived, err := root.Resolve()
	require.NoError(t, err)

	ownerAccount, err := GetAssociatedAccount(wallet, ownerMint)
	require.NoError(t, err)
	nested, err := GetAssociatedAccount(ownerAccount, nestedMint)
	require.NoError(t, err)
	destination, err := GetAssociatedAccount(wallet, nestedMint)
	require.NoError(t, err)

	assert.EqualValues(t, ownerAccount, ownerDerived.Address)
	assert.EqualValues(t, wallet, ownerDerived.Args.Wallet)
	assert.EqualValues(t, ownerMint, ownerDerived.Args.Mint)

	assert.Equal(t, RecoverNestedKeys{
		Nested:                     nested,
		NestedMint:                 nestedMint,
		WalletAssociatedAccount:    destination,
		OwnerAssociatedAccount:     ownerAccount,
		OwnerAssociatedAccountMint: ownerMint,
		Wallet:                     wallet,
		TokenProgram:               token.ProgramKey,
	}, resolved)

	metas := resolved.Metas()
	require.Len(t, metas, RecoverNestedAccountsLen)
	for i, meta := range metas {
		assert.Equal(t, i == 0 || i == 2 || i == 5, meta.IsWritable, "account %d", i)
		assert.Equal(t, i == 5, meta.IsSigner, "account %d", i)
	}

	nestedDerived, err := root.FindNestedAddress(ownerAccount)
	require.NoError(t, err)
	assert.EqualValues(t, nested, nestedDerived.Address)
}

func TestRecoverNestedRootAccounts_AssetProgramMismatch(t *testing.T) {
	keys := generateKeys(t, 3)

	resolved, derived, err := RecoverNestedRootAccounts{
		Wallet:                keys[0],
		OwnerTokenAccountMint: &solana.AccountInfo{Key: keys[1], Owner: token.ProgramKey},
		NestedMint:            &solana.AccountInfo{Key: keys[2], Owner: token.Program2022Key},
	}.Resolve()
	assert.Equal(t, ErrAssetProgramMismatch, err)
	assert.True(t, solana.IsErrorKey(err, solana.InstructionErrorIllegalOwner))

	// Nothing was derived
	assert.Equal(t, RecoverNestedKeys{}, resolved)
	assert.Equal(t, DerivedAddress{}, derived)
}

func TestRecoverNestedRootAccounts_Resolve(t *testing.T) {
	keys := generateKeys(t, 3)

	resolved, _, err := RecoverNestedRootAccounts{
		Wallet:                keys[0],
		OwnerTokenAccountMint: &solana.AccountInfo{Key: keys[1], Owner: token.Program2022Key},
		NestedMint:            &solana.AccountInfo{Key: keys[2], Owner: token.Program2022Key},
	}.Resolve()
	require.NoError(t, err)

	expected, _, err := RecoverNestedRootKeys{
		Wallet:                keys[0],
		OwnerTokenAccountMint: keys[1],
		NestedMint:            keys[2],
		TokenProgram:          token.Program2022Key,
	}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, expected, resolved)
}
