package token

import (
	"crypto/ed25519"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/associated-token-account/pkg/solana"
)

func TestGetCommand_Error(t *testing.T) {
	keys := generateKeys(t, 1)

	// invalid program
	cmd, err := GetCommand(solana.NewInstruction(keys[0], []byte{}))
	assert.Equal(t, CommandUnknown, cmd)
	assert.Equal(t, solana.ErrIncorrectProgram, err)

	// no data
	cmd, err = GetCommand(solana.NewInstruction(ProgramKey, []byte{}))
	assert.Equal(t, CommandUnknown, cmd)
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "missing data")

	cmd, err = GetCommand(solana.NewInstruction(Program2022Key, []byte{byte(CommandCloseAccount)}))
	require.NoError(t, err)
	assert.Equal(t, CommandCloseAccount, cmd)
}

func TestProgramKeys(t *testing.T) {
	assert.Len(t, Program2022Key, ed25519.PublicKeySize)
	assert.True(t, IsTokenProgram(ProgramKey))
	assert.True(t, IsTokenProgram(Program2022Key))
	assert.False(t, IsTokenProgram(generateKeys(t, 1)[0]))
}

func TestInitializeMint2(t *testing.T) {
	keys := generateKeys(t, 3)

	for _, program := range []ed25519.PublicKey{ProgramKey, Program2022Key} {
		instruction := InitializeMint2(program, keys[0], keys[1], nil, 6)
		assert.Len(t, instruction.Data, 35)
		assert.EqualValues(t, CommandInitializeMint2, instruction.Data[0])
		require.Len(t, instruction.Accounts, 1)
		assert.True(t, instruction.Accounts[0].IsWritable)
		assert.False(t, instruction.Accounts[0].IsSigner)

		decompiled, err := DecompileInitializeMint2(instruction)
		require.NoError(t, err)
		assert.Equal(t, keys[0], decompiled.Mint)
		assert.Equal(t, keys[1], decompiled.MintAuthority)
		assert.Nil(t, decompiled.FreezeAuthority)
		assert.EqualValues(t, 6, decompiled.Decimals)

		instruction = InitializeMint2(program, keys[0], keys[1], keys[2], 9)
		assert.Len(t, instruction.Data, 67)

		decompiled, err = DecompileInitializeMint2(instruction)
		require.NoError(t, err)
		assert.Equal(t, keys[2], decompiled.FreezeAuthority)
		assert.EqualValues(t, 9, decompiled.Decimals)
	}
}

func TestInitializeAccount3(t *testing.T) {
	keys := generateKeys(t, 4)

	instruction := InitializeAccount3(Program2022Key, keys[0], keys[1], keys[2])

	assert.EqualValues(t, CommandInitializeAccount3, instruction.Data[0])
	assert.EqualValues(t, keys[2], instruction.Data[1:])
	assert.Equal(t, Program2022Key, instruction.Program)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.False(t, instruction.Accounts[1].IsWritable)
	for _, account := range instruction.Accounts {
		assert.False(t, account.IsSigner)
	}

	decompiled, err := DecompileInitializeAccount3(instruction)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Account)
	assert.Equal(t, keys[1], decompiled.Mint)
	assert.Equal(t, keys[2], decompiled.Owner)

	instruction.Accounts = instruction.Accounts[:1]
	_, err = DecompileInitializeAccount3(instruction)
	assert.NotNil(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid number of accounts"))

	instruction.Program = keys[3]
	_, err = DecompileInitializeAccount3(instruction)
	assert.Equal(t, solana.ErrIncorrectProgram, err)
}

func TestInitializeImmutableOwner(t *testing.T) {
	keys := generateKeys(t, 1)

	instruction := InitializeImmutableOwner(ProgramKey, keys[0])
	assert.Equal(t, []byte{22}, instruction.Data)
	require.Len(t, instruction.Accounts, 1)
	assert.True(t, instruction.Accounts[0].IsWritable)

	cmd, err := GetCommand(instruction)
	require.NoError(t, err)
	assert.Equal(t, CommandInitializeImmutableOwner, cmd)
}

func TestMintTo(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := MintTo(ProgramKey, keys[0], keys[1], keys[2], 123)
	assert.EqualValues(t, CommandMintTo, instruction.Data[0])
	assert.EqualValues(t, 123, binary.LittleEndian.Uint64(instruction.Data[1:]))
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.True(t, instruction.Accounts[1].IsWritable)
	assert.True(t, instruction.Accounts[2].IsSigner)
	assert.False(t, instruction.Accounts[2].IsWritable)
}

func TestTransferChecked(t *testing.T) {
	keys := generateKeys(t, 5)

	instruction := TransferChecked(ProgramKey, keys[0], keys[1], keys[2], keys[3], 123456789, 5)

	expectedAmount := make([]byte, 8)
	binary.LittleEndian.PutUint64(expectedAmount, 123456789)

	assert.EqualValues(t, CommandTransferChecked, instruction.Data[0])
	assert.Equal(t, expectedAmount, instruction.Data[1:9])
	assert.EqualValues(t, 5, instruction.Data[9])

	assert.False(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.False(t, instruction.Accounts[1].IsSigner)
	assert.False(t, instruction.Accounts[1].IsWritable)
	assert.False(t, instruction.Accounts[2].IsSigner)
	assert.True(t, instruction.Accounts[2].IsWritable)
	assert.True(t, instruction.Accounts[3].IsSigner)
	assert.False(t, instruction.Accounts[3].IsWritable)

	decompiled, err := DecompileTransferChecked(instruction)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Source)
	assert.Equal(t, keys[1], decompiled.Mint)
	assert.Equal(t, keys[2], decompiled.Destination)
	assert.Equal(t, keys[3], decompiled.Owner)
	assert.EqualValues(t, 123456789, decompiled.Amount)
	assert.EqualValues(t, 5, decompiled.Decimals)

	instruction.Data[0] = byte(CommandTransfer)
	_, err = DecompileTransferChecked(instruction)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	instruction.Program = keys[4]
	_, err = DecompileTransferChecked(instruction)
	assert.Equal(t, solana.ErrIncorrectProgram, err)
}

func TestCloseAccount(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := CloseAccount(Program2022Key, keys[0], keys[1], keys[2])

	assert.Equal(t, []byte{byte(CommandCloseAccount)}, instruction.Data)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.True(t, instruction.Accounts[1].IsWritable)
	assert.False(t, instruction.Accounts[2].IsWritable)
	assert.True(t, instruction.Accounts[2].IsSigner)

	decompiled, err := DecompileCloseAccount(instruction)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Account)
	assert.Equal(t, keys[1], decompiled.Destination)
	assert.Equal(t, keys[2], decompiled.Owner)

	instruction.Accounts = instruction.Accounts[:2]
	_, err = DecompileCloseAccount(instruction)
	assert.NotNil(t, err)
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)

	for i := 0; i < amount; i++ {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}

	return keys
}
