package token

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	data, err := hex.DecodeString("118a08c9d4cc46c576282e0daf050bbdb04f03313e35e5db3f3def69fa1eeec42b15a9cd4bef2cd809e464570d2a6cbd9bcc64e32ea4ebbcf748757bbb3dd5bd000084e2506ce67c000000000000000000000000000000000000000000000000000000000000000000000000010000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)

	mint, err := base58.Decode("2BU1Xgyzqixhjaq9Pa5cNsaa1gSejLeNtDaDRv29qoZm")
	require.NoError(t, err)

	var a Account
	require.True(t, a.Unmarshal(data))
	assert.Equal(t, mint, []byte(a.Mint))
	assert.Equal(t, uint64(9e13*1e5), a.Amount)
	assert.Empty(t, a.Delegate)
	assert.Empty(t, a.CloseAuthority)

	var rtt Account
	rtt.Unmarshal(a.Marshal())
	assert.Equal(t, a, rtt)

	unpacked, err := UnpackAccount(data)
	require.NoError(t, err)
	assert.Equal(t, a, *unpacked)
}

func TestRoundTrip(t *testing.T) {
	isNative := uint64(2)
	expected := Account{
		Mint:           filledKey(1),
		Owner:          filledKey(2),
		Amount:         10,
		Delegate:       filledKey(3),
		State:          AccountStateFrozen,
		IsNative:       &isNative,
		CloseAuthority: filledKey(2),
	}

	var actual Account
	require.True(t, actual.Unmarshal(expected.Marshal()))
	assert.Equal(t, expected, actual)
}

func TestUnpackAccount_Extended(t *testing.T) {
	expected := Account{
		Mint:   filledKey(1),
		Owner:  filledKey(2),
		Amount: 42,
		State:  AccountStateInitialized,
	}

	data := expected.MarshalWithExtensions(Extension{Type: ExtensionTypeImmutableOwner})
	assert.Len(t, data, 170)
	assert.EqualValues(t, AccountTypeAccount, data[AccountSize])

	actual, err := UnpackAccount(data)
	require.NoError(t, err)
	assert.Equal(t, expected, *actual)

	// A mint type byte is not an account
	data[AccountSize] = byte(AccountTypeMint)
	_, err = UnpackAccount(data)
	assert.Equal(t, ErrInvalidAccountLayout, err)
}

func TestUnpackAccount_Invalid(t *testing.T) {
	_, err := UnpackAccount(nil)
	assert.Equal(t, ErrInvalidAccountLayout, err)

	_, err = UnpackAccount(make([]byte, MultisigAccountSize))
	assert.Equal(t, ErrInvalidAccountLayout, err)

	_, err = UnpackAccount(make([]byte, AccountSize))
	assert.Equal(t, ErrUninitialized, err)

	assert.False(t, IsAccountInitialized(make([]byte, AccountSize)))
	assert.False(t, IsAccountInitialized(make([]byte, 10)))
}

func TestMint_RoundTrip(t *testing.T) {
	expected := Mint{
		MintAuthority:   filledKey(4),
		Supply:          1_000_000,
		Decimals:        6,
		IsInitialized:   true,
		FreezeAuthority: filledKey(5),
	}

	data := expected.Marshal()
	assert.Len(t, data, MintSize)

	actual, err := UnpackMint(data)
	require.NoError(t, err)
	assert.Equal(t, expected, *actual)

	extended := expected.MarshalWithExtensions(Extension{Type: ExtensionTypeTransferFeeConfig, Data: make([]byte, 108)})
	assert.EqualValues(t, AccountTypeMint, extended[AccountSize])

	actual, err = UnpackMint(extended)
	require.NoError(t, err)
	assert.Equal(t, expected, *actual)
}

func TestUnpackMint_Invalid(t *testing.T) {
	_, err := UnpackMint(make([]byte, 10))
	assert.Equal(t, ErrInvalidMintLayout, err)

	_, err = UnpackMint(make([]byte, MintSize))
	assert.Equal(t, ErrUninitialized, err)

	data := make([]byte, MintSize)
	data[45] = 2
	_, err = UnpackMint(data)
	assert.Equal(t, ErrInvalidMintLayout, err)

	m := Mint{Decimals: 2, IsInitialized: true}
	extended := m.MarshalWithExtensions()
	extended[MintSize] = 1
	_, err = UnpackMint(extended)
	assert.Equal(t, ErrInvalidMintLayout, err)
}

func filledKey(b byte) ed25519.PublicKey {
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	for i := range key {
		key[i] = b
	}
	return key
}
