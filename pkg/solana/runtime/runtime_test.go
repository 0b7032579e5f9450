package runtime

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/associated-token-account/pkg/solana"
	"github.com/code-payments/associated-token-account/pkg/solana/system"
)

type programFunc func(ctx context.Context, programID ed25519.PublicKey, accounts []*solana.AccountInfo, data []byte) error

func (f programFunc) Process(ctx context.Context, programID ed25519.PublicKey, accounts []*solana.AccountInfo, data []byte) error {
	return f(ctx, programID, accounts, data)
}

func setup(t *testing.T, overrides *testOverrides) (*Runtime, []ed25519.PublicKey) {
	rt := New(withManualTestOverrides(overrides))

	keys := generateKeys(t, 3)
	for _, key := range keys {
		rt.SetAccount(&solana.AccountInfo{
			Key:      key,
			Owner:    system.ProgramKey,
			Lamports: 1000,
		})
	}
	return rt, keys
}

func TestExecute_Commit(t *testing.T) {
	rt, keys := setup(t, &testOverrides{})

	require.NoError(t, rt.Execute(
		context.Background(),
		system.Transfer(keys[0], keys[1], 100),
		system.Transfer(keys[1], keys[2], 1100),
	))

	from, ok := rt.GetAccount(keys[0])
	require.True(t, ok)
	assert.EqualValues(t, 900, from.Lamports)
	assert.False(t, from.IsSigner)
	assert.False(t, from.IsWritable)

	// Emptied system accounts are removed
	_, ok = rt.GetAccount(keys[1])
	assert.False(t, ok)

	to, ok := rt.GetAccount(keys[2])
	require.True(t, ok)
	assert.EqualValues(t, 2100, to.Lamports)
}

func TestExecute_Atomic(t *testing.T) {
	rt, keys := setup(t, &testOverrides{})

	err := rt.Execute(
		context.Background(),
		system.Transfer(keys[0], keys[1], 100),
		system.Transfer(keys[0], keys[1], 1000),
	)
	require.Error(t, err)

	instructionErr, ok := err.(solana.InstructionError)
	require.True(t, ok)
	assert.Equal(t, 1, instructionErr.Index)
	assert.Equal(t, system.ErrorResultWithNegativeLamports, instructionErr.Err)

	for _, key := range keys[:2] {
		account, ok := rt.GetAccount(key)
		require.True(t, ok)
		assert.EqualValues(t, 1000, account.Lamports)
	}
}

func TestExecute_UnsupportedProgram(t *testing.T) {
	rt, keys := setup(t, &testOverrides{})

	err := rt.Execute(context.Background(), solana.NewInstruction(keys[0], nil))
	assert.True(t, solana.IsErrorKey(err, solana.InstructionErrorUnsupportedProgramID))
}

func TestExecute_OwnershipRules(t *testing.T) {
	program := generateKeys(t, 1)[0]

	for _, tc := range []struct {
		name     string
		owned    bool
		writable bool
		modify   func(accounts []*solana.AccountInfo)
		expected solana.InstructionErrorKey
	}{
		{
			name:     "external data modified",
			writable: true,
			modify: func(accounts []*solana.AccountInfo) {
				accounts[0].Data = []byte{1}
			},
			expected: solana.InstructionErrorExternalDataModified,
		},
		{
			name:     "external lamport spend",
			writable: true,
			modify: func(accounts []*solana.AccountInfo) {
				accounts[0].Lamports--
				accounts[1].Lamports++
			},
			expected: solana.InstructionErrorExternalLamportSpend,
		},
		{
			name:  "readonly data modified",
			owned: true,
			modify: func(accounts []*solana.AccountInfo) {
				accounts[0].Data = []byte{1}
			},
			expected: solana.InstructionErrorReadonlyDataModified,
		},
		{
			name:  "readonly lamport change",
			owned: true,
			modify: func(accounts []*solana.AccountInfo) {
				accounts[0].Lamports--
				accounts[1].Lamports++
			},
			expected: solana.InstructionErrorReadonlyLamportChange,
		},
		{
			name:     "reassigned external account",
			writable: true,
			modify: func(accounts []*solana.AccountInfo) {
				accounts[0].Owner = program
			},
			expected: solana.InstructionErrorModifiedProgramID,
		},
		{
			name:     "unbalanced",
			owned:    true,
			writable: true,
			modify: func(accounts []*solana.AccountInfo) {
				accounts[0].Lamports++
			},
			expected: solana.InstructionErrorUnbalancedInstruction,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rt, keys := setup(t, &testOverrides{})
			rt.RegisterProgram(program, programFunc(func(_ context.Context, _ ed25519.PublicKey, accounts []*solana.AccountInfo, _ []byte) error {
				tc.modify(accounts)
				return nil
			}))

			if tc.owned {
				rt.SetAccount(&solana.AccountInfo{Key: keys[0], Owner: program, Lamports: 1000})
			}

			meta := solana.NewReadonlyAccountMeta(keys[0], false)
			if tc.writable {
				meta = solana.NewAccountMeta(keys[0], false)
			}

			err := rt.Execute(context.Background(), solana.NewInstruction(
				program,
				nil,
				meta,
				solana.NewAccountMeta(keys[1], false),
			))
			assert.Equal(t, tc.expected, solana.ErrorKey(err), err)
		})
	}
}

func TestInvokeSigned_ProgramDerivedSigner(t *testing.T) {
	rt, keys := setup(t, &testOverrides{})
	program := generateKeys(t, 1)[0]

	seeds := [][]byte{[]byte("vault"), keys[0]}
	vault, bump, err := solana.FindProgramAddressAndBump(program, seeds...)
	require.NoError(t, err)
	signerSeeds := append(seeds, []byte{bump})

	rt.SetAccount(&solana.AccountInfo{Key: vault, Owner: system.ProgramKey, Lamports: 500})

	_, otherBump, err := solana.FindProgramAddressAndBump(program, []byte("other"))
	require.NoError(t, err)
	otherSeeds := [][]byte{[]byte("other"), {otherBump}}

	var useSeeds [][]byte
	rt.RegisterProgram(program, programFunc(func(ctx context.Context, _ ed25519.PublicKey, accounts []*solana.AccountInfo, _ []byte) error {
		var signers [][][]byte
		if useSeeds != nil {
			signers = append(signers, useSeeds)
		}
		return rt.InvokeSigned(ctx, system.Transfer(accounts[0].Key, accounts[1].Key, 200), accounts, signers...)
	}))

	ix := solana.NewInstruction(
		program,
		nil,
		solana.NewAccountMeta(vault, false),
		solana.NewAccountMeta(keys[1], false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)

	// Without seeds, the vault cannot sign
	err = rt.Execute(context.Background(), ix)
	assert.True(t, solana.IsErrorKey(err, solana.InstructionErrorPrivilegeEscalation))

	// Seeds for a different address don't help either
	useSeeds = otherSeeds
	err = rt.Execute(context.Background(), ix)
	assert.True(t, solana.IsErrorKey(err, solana.InstructionErrorPrivilegeEscalation))

	useSeeds = signerSeeds
	require.NoError(t, rt.Execute(context.Background(), ix))

	account, ok := rt.GetAccount(vault)
	require.True(t, ok)
	assert.EqualValues(t, 300, account.Lamports)

	account, ok = rt.GetAccount(keys[1])
	require.True(t, ok)
	assert.EqualValues(t, 1200, account.Lamports)
}

func TestInvokeSigned_WritableEscalation(t *testing.T) {
	rt, keys := setup(t, &testOverrides{})
	program := generateKeys(t, 1)[0]

	rt.RegisterProgram(program, programFunc(func(ctx context.Context, _ ed25519.PublicKey, accounts []*solana.AccountInfo, _ []byte) error {
		return rt.InvokeSigned(ctx, system.Transfer(accounts[0].Key, accounts[1].Key, 1), accounts)
	}))

	err := rt.Execute(context.Background(), solana.NewInstruction(
		program,
		nil,
		solana.NewAccountMeta(keys[0], true),
		solana.NewReadonlyAccountMeta(keys[1], false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	))
	assert.True(t, solana.IsErrorKey(err, solana.InstructionErrorPrivilegeEscalation))
}

func TestInvokeSigned_MissingAccount(t *testing.T) {
	rt, keys := setup(t, &testOverrides{})
	program := generateKeys(t, 1)[0]

	rt.RegisterProgram(program, programFunc(func(ctx context.Context, _ ed25519.PublicKey, accounts []*solana.AccountInfo, _ []byte) error {
		// The system program account is not passed along
		return rt.InvokeSigned(ctx, system.Transfer(accounts[0].Key, accounts[1].Key, 1), accounts[:2])
	}))

	err := rt.Execute(context.Background(), solana.NewInstruction(
		program,
		nil,
		solana.NewAccountMeta(keys[0], true),
		solana.NewAccountMeta(keys[1], false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	))
	assert.True(t, solana.IsErrorKey(err, solana.InstructionErrorMissingAccount))
}

func TestInvokeSigned_BorrowedAccount(t *testing.T) {
	rt, keys := setup(t, &testOverrides{})
	program := generateKeys(t, 1)[0]

	rt.RegisterProgram(program, programFunc(func(ctx context.Context, _ ed25519.PublicKey, accounts []*solana.AccountInfo, _ []byte) error {
		_, release, err := accounts[0].Borrow()
		if err != nil {
			return err
		}
		defer release()

		return rt.InvokeSigned(ctx, system.Transfer(accounts[0].Key, accounts[1].Key, 1), accounts)
	}))

	err := rt.Execute(context.Background(), solana.NewInstruction(
		program,
		nil,
		solana.NewAccountMeta(keys[0], true),
		solana.NewAccountMeta(keys[1], false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	))
	assert.True(t, solana.IsErrorKey(err, solana.InstructionErrorAccountBorrowFailed))
}

func TestInvokeSigned_CallDepth(t *testing.T) {
	rt, _ := setup(t, &testOverrides{maxCpiDepth: 2})
	program := generateKeys(t, 1)[0]

	var invocations int
	rt.RegisterProgram(program, programFunc(func(ctx context.Context, programID ed25519.PublicKey, accounts []*solana.AccountInfo, _ []byte) error {
		invocations++
		return rt.InvokeSigned(ctx, solana.NewInstruction(programID, nil, solana.NewReadonlyAccountMeta(programID, false)), accounts)
	}))

	err := rt.Execute(context.Background(), solana.NewInstruction(
		program,
		nil,
		solana.NewReadonlyAccountMeta(program, false),
	))
	assert.True(t, solana.IsErrorKey(err, solana.InstructionErrorCallDepth))
	assert.Equal(t, 3, invocations)
}

func TestInvokeSigned_Reentrancy(t *testing.T) {
	rt, _ := setup(t, &testOverrides{})
	keys := generateKeys(t, 2)
	outer, inner := keys[0], keys[1]

	rt.RegisterProgram(outer, programFunc(func(ctx context.Context, _ ed25519.PublicKey, accounts []*solana.AccountInfo, _ []byte) error {
		return rt.InvokeSigned(ctx, solana.NewInstruction(
			inner,
			nil,
			solana.NewReadonlyAccountMeta(outer, false),
			solana.NewReadonlyAccountMeta(inner, false),
		), accounts)
	}))
	rt.RegisterProgram(inner, programFunc(func(ctx context.Context, _ ed25519.PublicKey, accounts []*solana.AccountInfo, _ []byte) error {
		return rt.InvokeSigned(ctx, solana.NewInstruction(outer, nil), accounts)
	}))

	err := rt.Execute(context.Background(), solana.NewInstruction(
		outer,
		nil,
		solana.NewReadonlyAccountMeta(outer, false),
		solana.NewReadonlyAccountMeta(inner, false),
	))
	assert.True(t, solana.IsErrorKey(err, solana.InstructionErrorReentrancyNotAllowed))
}

func TestInvokeSigned_NotExecuting(t *testing.T) {
	rt, keys := setup(t, &testOverrides{})

	err := rt.InvokeSigned(context.Background(), system.Transfer(keys[0], keys[1], 1), nil)
	assert.Error(t, err)
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)

	for i := 0; i < amount; i++ {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		keys[i] = pub
	}

	return keys
}
