package token

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/associated-token-account/pkg/solana/binary"
)

type AccountState byte

const (
	AccountStateUninitialized AccountState = iota
	AccountStateInitialized
	AccountStateFrozen
)

// AccountType is the discriminator written after the base layout of
// token-2022 accounts that carry extensions.
type AccountType byte

const (
	AccountTypeUninitialized AccountType = iota
	AccountTypeMint
	AccountTypeAccount
)

// Reference: https://github.com/solana-labs/solana-program-library/blob/11b1e3eefdd4e523768d63f7c70a7aa391ea0d02/token/program/src/state.rs#L125
const AccountSize = 165

// Reference: https://github.com/solana-labs/solana-program-library/blob/8944f428fe693c3a4226bf766a79be9c75e8e520/token/program/src/state.rs#L214
const MultisigAccountSize = 355

// MintSize is the length of a mint without extensions.
const MintSize = 82

const optionSize = 4

var (
	ErrInvalidAccountLayout = errors.New("invalid token account layout")
	ErrInvalidMintLayout    = errors.New("invalid mint layout")
	ErrUninitialized        = errors.New("token state is not initialized")
)

type Account struct {
	// The mint associated with this account
	Mint ed25519.PublicKey
	// The owner of this account.
	Owner ed25519.PublicKey
	// The amount of tokens this account holds.
	Amount uint64
	// If set, then the 'DelegatedAmount' represents the amount
	// authorized by the delegate.
	Delegate ed25519.PublicKey
	/// The account's state
	State AccountState
	// If set, this is a native token, and the value logs the rent-exempt reserve.
	IsNative *uint64
	// The amount delegated
	DelegatedAmount uint64
	// Optional authority to close the account.
	CloseAuthority ed25519.PublicKey
}

func (a *Account) Marshal() []byte {
	b := make([]byte, AccountSize)
	a.marshalInto(b)
	return b
}

func (a *Account) marshalInto(b []byte) {
	var offset int
	binary.PutKey32(b, a.Mint, &offset)
	binary.PutKey32(b[offset:], a.Owner, &offset)
	binary.PutUint64(b[offset:], a.Amount, &offset)
	binary.PutOptionalKey32(b[offset:], a.Delegate, &offset, optionSize)
	binary.PutUint8(b[offset:], uint8(a.State), &offset)
	binary.PutOptionalUint64(b[offset:], a.IsNative, &offset, optionSize)
	binary.PutUint64(b[offset:], a.DelegatedAmount, &offset)
	binary.PutOptionalKey32(b[offset:], a.CloseAuthority, &offset, optionSize)
}

// MarshalWithExtensions encodes the account in the extended token-2022
// layout.
func (a *Account) MarshalWithExtensions(extensions ...Extension) []byte {
	b := packExtensions(AccountSize, AccountTypeAccount, extensions)
	a.marshalInto(b)
	return b
}

func (a *Account) Unmarshal(b []byte) bool {
	if len(b) != AccountSize {
		return false
	}

	var offset int
	binary.GetKey32(b, &a.Mint, &offset)
	binary.GetKey32(b[offset:], &a.Owner, &offset)
	binary.GetUint64(b[offset:], &a.Amount, &offset)
	binary.GetOptionalKey32(b[offset:], &a.Delegate, &offset, optionSize)
	var state uint8
	binary.GetUint8(b[offset:], &state, &offset)
	a.State = AccountState(state)
	binary.GetOptionalUint64(b[offset:], &a.IsNative, &offset, optionSize)
	binary.GetUint64(b[offset:], &a.DelegatedAmount, &offset)
	binary.GetOptionalKey32(b[offset:], &a.CloseAuthority, &offset, optionSize)

	return true
}

// UnpackAccount decodes an initialized token account from either the base
// layout or the extended layout.
func UnpackAccount(data []byte) (*Account, error) {
	switch {
	case len(data) == AccountSize:
	case len(data) > AccountSize && len(data) != MultisigAccountSize:
		if AccountType(data[AccountSize]) != AccountTypeAccount {
			return nil, ErrInvalidAccountLayout
		}
	default:
		return nil, ErrInvalidAccountLayout
	}

	var a Account
	a.Unmarshal(data[:AccountSize])
	if a.State == AccountStateUninitialized {
		return nil, ErrUninitialized
	}
	if a.State > AccountStateFrozen {
		return nil, ErrInvalidAccountLayout
	}
	return &a, nil
}

// IsAccountInitialized reports whether the base layout of data holds an
// initialized account, regardless of the account type byte.
func IsAccountInitialized(data []byte) bool {
	if len(data) < AccountSize {
		return false
	}
	return AccountState(data[108]) != AccountStateUninitialized
}

type Mint struct {
	// Optional authority used to mint new tokens.
	MintAuthority ed25519.PublicKey
	// Total supply of tokens.
	Supply uint64
	// Number of base 10 digits to the right of the decimal place.
	Decimals byte
	IsInitialized bool
	// Optional authority to freeze token accounts.
	FreezeAuthority ed25519.PublicKey
}

func (m *Mint) Marshal() []byte {
	b := make([]byte, MintSize)
	m.marshalInto(b)
	return b
}

func (m *Mint) marshalInto(b []byte) {
	var offset int
	binary.PutOptionalKey32(b, m.MintAuthority, &offset, optionSize)
	binary.PutUint64(b[offset:], m.Supply, &offset)
	binary.PutUint8(b[offset:], m.Decimals, &offset)
	binary.PutBool(b[offset:], m.IsInitialized, &offset)
	binary.PutOptionalKey32(b[offset:], m.FreezeAuthority, &offset, optionSize)
}

// MarshalWithExtensions encodes the mint in the extended token-2022 layout,
// where the base is padded to the account length before the type byte.
func (m *Mint) MarshalWithExtensions(extensions ...Extension) []byte {
	b := packExtensions(AccountSize, AccountTypeMint, extensions)
	m.marshalInto(b)
	return b
}

func (m *Mint) Unmarshal(b []byte) bool {
	if len(b) != MintSize {
		return false
	}

	var offset int
	binary.GetOptionalKey32(b, &m.MintAuthority, &offset, optionSize)
	binary.GetUint64(b[offset:], &m.Supply, &offset)
	binary.GetUint8(b[offset:], &m.Decimals, &offset)
	if !binary.GetBool(b[offset:], &m.IsInitialized, &offset) {
		return false
	}
	binary.GetOptionalKey32(b[offset:], &m.FreezeAuthority, &offset, optionSize)

	return true
}

// UnpackMint decodes an initialized mint from either the base layout or the
// extended layout.
func UnpackMint(data []byte) (*Mint, error) {
	switch {
	case len(data) == MintSize:
	case len(data) > AccountSize && len(data) != MultisigAccountSize:
		if AccountType(data[AccountSize]) != AccountTypeMint {
			return nil, ErrInvalidMintLayout
		}
		for _, b := range data[MintSize:AccountSize] {
			if b != 0 {
				return nil, ErrInvalidMintLayout
			}
		}
	default:
		return nil, ErrInvalidMintLayout
	}

	var m Mint
	if !m.Unmarshal(data[:MintSize]) {
		return nil, ErrInvalidMintLayout
	}
	if !m.IsInitialized {
		return nil, ErrUninitialized
	}
	return &m, nil
}
