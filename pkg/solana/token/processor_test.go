package token

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/associated-token-account/pkg/solana"
	"github.com/code-payments/associated-token-account/pkg/solana/system"
)

type fixedRent uint64

func (r fixedRent) MinimumBalance(uint64) uint64 {
	return uint64(r)
}

type processorEnv struct {
	p         *Processor
	program   ed25519.PublicKey
	authority *solana.AccountInfo
	mint      *solana.AccountInfo
}

func setupProcessor(t *testing.T, program ed25519.PublicKey, mintData []byte) *processorEnv {
	keys := generateKeys(t, 2)

	env := &processorEnv{
		p:         NewProcessor(fixedRent(10)),
		program:   program,
		authority: &solana.AccountInfo{Key: keys[0], Owner: system.ProgramKey, IsSigner: true},
		mint:      &solana.AccountInfo{Key: keys[1], Owner: program, Lamports: 10, Data: mintData, IsWritable: true},
	}

	ix := InitializeMint2(program, env.mint.Key, env.authority.Key, nil, 6)
	require.NoError(t, env.process(ix, env.mint))
	return env
}

func (e *processorEnv) process(ix solana.Instruction, accounts ...*solana.AccountInfo) error {
	return e.p.Process(context.Background(), ix.Program, accounts, ix.Data)
}

func (e *processorEnv) newAccount(t *testing.T, owner ed25519.PublicKey, size int) *solana.AccountInfo {
	key := generateKeys(t, 1)[0]
	account := &solana.AccountInfo{Key: key, Owner: e.program, Lamports: 10, Data: make([]byte, size), IsWritable: true}

	require.NoError(t, e.process(InitializeAccount3(e.program, key, e.mint.Key, owner), account, e.mint))
	return account
}

func TestProcessor_InitializeMint(t *testing.T) {
	env := setupProcessor(t, ProgramKey, make([]byte, MintSize))

	mint, err := UnpackMint(env.mint.Data)
	require.NoError(t, err)
	assert.Equal(t, env.authority.Key, mint.MintAuthority)
	assert.EqualValues(t, 6, mint.Decimals)

	err = env.process(InitializeMint2(ProgramKey, env.mint.Key, env.authority.Key, nil, 6), env.mint)
	assert.Equal(t, ErrorAlreadyInUse, err)

	poor := &solana.AccountInfo{Key: generateKeys(t, 1)[0], Owner: ProgramKey, Data: make([]byte, MintSize)}
	err = env.process(InitializeMint2(ProgramKey, poor.Key, env.authority.Key, nil, 6), poor)
	assert.Equal(t, ErrorNotRentExempt, err)
}

func TestProcessor_InitializeAccount(t *testing.T) {
	env := setupProcessor(t, ProgramKey, make([]byte, MintSize))
	owner := generateKeys(t, 1)[0]

	account := env.newAccount(t, owner, AccountSize)

	state, err := UnpackAccount(account.Data)
	require.NoError(t, err)
	assert.Equal(t, env.mint.Key, state.Mint)
	assert.Equal(t, owner, state.Owner)
	assert.Zero(t, state.Amount)

	err = env.process(InitializeAccount3(ProgramKey, account.Key, env.mint.Key, owner), account, env.mint)
	assert.Equal(t, ErrorAlreadyInUse, err)

	foreign := &solana.AccountInfo{Key: generateKeys(t, 1)[0], Owner: Program2022Key, Lamports: 10, Data: make([]byte, AccountSize)}
	err = env.process(InitializeAccount3(ProgramKey, foreign.Key, env.mint.Key, owner), foreign, env.mint)
	assert.True(t, solana.IsErrorKey(err, solana.InstructionErrorIncorrectProgramID))
}

func TestProcessor_ImmutableOwner(t *testing.T) {
	t.Run("legacy", func(t *testing.T) {
		env := setupProcessor(t, ProgramKey, make([]byte, MintSize))
		account := &solana.AccountInfo{Key: generateKeys(t, 1)[0], Owner: ProgramKey, Lamports: 10, Data: make([]byte, AccountSize)}

		require.NoError(t, env.process(InitializeImmutableOwner(ProgramKey, account.Key), account))
		assert.Equal(t, make([]byte, AccountSize), account.Data)
	})

	t.Run("token-2022", func(t *testing.T) {
		env := setupProcessor(t, Program2022Key, make([]byte, MintSize))
		account := &solana.AccountInfo{Key: generateKeys(t, 1)[0], Owner: Program2022Key, Lamports: 10, Data: make([]byte, 170)}

		require.NoError(t, env.process(InitializeImmutableOwner(Program2022Key, account.Key), account))
		require.NoError(t, env.process(InitializeAccount3(Program2022Key, account.Key, env.mint.Key, env.authority.Key), account, env.mint))

		assert.True(t, HasExtension(account.Data, ExtensionTypeImmutableOwner))
		assert.EqualValues(t, AccountTypeAccount, account.Data[AccountSize])

		_, err := UnpackAccount(account.Data)
		require.NoError(t, err)

		err = env.process(InitializeImmutableOwner(Program2022Key, account.Key), account)
		assert.Equal(t, ErrorAlreadyInUse, err)
	})

	t.Run("token-2022 without room", func(t *testing.T) {
		env := setupProcessor(t, Program2022Key, make([]byte, MintSize))
		account := &solana.AccountInfo{Key: generateKeys(t, 1)[0], Owner: Program2022Key, Lamports: 10, Data: make([]byte, AccountSize)}

		err := env.process(InitializeImmutableOwner(Program2022Key, account.Key), account)
		assert.True(t, solana.IsErrorKey(err, solana.InstructionErrorInvalidAccountData))
	})
}

func TestProcessor_TransferChecked(t *testing.T) {
	env := setupProcessor(t, ProgramKey, make([]byte, MintSize))
	owner := &solana.AccountInfo{Key: generateKeys(t, 1)[0], Owner: system.ProgramKey, IsSigner: true}

	source := env.newAccount(t, owner.Key, AccountSize)
	dest := env.newAccount(t, generateKeys(t, 1)[0], AccountSize)

	require.NoError(t, env.process(MintTo(ProgramKey, env.mint.Key, source.Key, env.authority.Key, 100), env.mint, source, env.authority))

	ix := TransferChecked(ProgramKey, source.Key, env.mint.Key, dest.Key, owner.Key, 40, 6)
	require.NoError(t, env.process(ix, source, env.mint, dest, owner))

	sourceState, err := UnpackAccount(source.Data)
	require.NoError(t, err)
	destState, err := UnpackAccount(dest.Data)
	require.NoError(t, err)
	assert.EqualValues(t, 60, sourceState.Amount)
	assert.EqualValues(t, 40, destState.Amount)

	ix = TransferChecked(ProgramKey, source.Key, env.mint.Key, dest.Key, owner.Key, 40, 2)
	assert.Equal(t, ErrorMintDecimalsMismatch, env.process(ix, source, env.mint, dest, owner))

	ix = TransferChecked(ProgramKey, source.Key, env.mint.Key, dest.Key, owner.Key, 61, 6)
	assert.Equal(t, ErrorInsufficientFunds, env.process(ix, source, env.mint, dest, owner))

	ix = TransferChecked(ProgramKey, source.Key, env.mint.Key, dest.Key, dest.Key, 1, 6)
	assert.Equal(t, ErrorOwnerMismatch, env.process(ix, source, env.mint, dest, dest))

	owner.IsSigner = false
	ix = TransferChecked(ProgramKey, source.Key, env.mint.Key, dest.Key, owner.Key, 1, 6)
	assert.True(t, solana.IsErrorKey(env.process(ix, source, env.mint, dest, owner), solana.InstructionErrorMissingRequiredSignature))
}

func TestProcessor_CloseAccount(t *testing.T) {
	env := setupProcessor(t, ProgramKey, make([]byte, MintSize))
	owner := &solana.AccountInfo{Key: generateKeys(t, 1)[0], Owner: system.ProgramKey, IsSigner: true, IsWritable: true}

	account := env.newAccount(t, owner.Key, AccountSize)
	require.NoError(t, env.process(MintTo(ProgramKey, env.mint.Key, account.Key, env.authority.Key, 1), env.mint, account, env.authority))

	ix := CloseAccount(ProgramKey, account.Key, owner.Key, owner.Key)
	assert.Equal(t, ErrorNonNativeHasBalance, env.process(ix, account, owner, owner))

	ix = CloseAccount(ProgramKey, account.Key, account.Key, owner.Key)
	assert.True(t, solana.IsErrorKey(env.process(ix, account, account, owner), solana.InstructionErrorInvalidAccountData))

	empty := env.newAccount(t, owner.Key, AccountSize)
	ix = CloseAccount(ProgramKey, empty.Key, owner.Key, owner.Key)
	require.NoError(t, env.process(ix, empty, owner, owner))

	assert.Zero(t, empty.Lamports)
	assert.Empty(t, empty.Data)
	assert.True(t, empty.IsOwnedBy(system.ProgramKey))
	assert.EqualValues(t, 10, owner.Lamports)
}

func TestProcessor_InvalidInstruction(t *testing.T) {
	p := NewProcessor(fixedRent(0))

	err := p.Process(context.Background(), system.ProgramKey, nil, []byte{byte(CommandCloseAccount)})
	assert.True(t, solana.IsErrorKey(err, solana.InstructionErrorIncorrectProgramID))

	assert.Equal(t, ErrorInvalidInstruction, p.Process(context.Background(), ProgramKey, nil, nil))
	assert.Equal(t, ErrorInvalidInstruction, p.Process(context.Background(), ProgramKey, nil, []byte{byte(CommandApprove)}))

	err = p.Process(context.Background(), ProgramKey, nil, []byte{byte(CommandCloseAccount)})
	assert.True(t, solana.IsErrorKey(err, solana.InstructionErrorNotEnoughAccountKeys))
}
