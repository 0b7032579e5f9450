package ata

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58/base58"

	"github.com/code-payments/associated-token-account/pkg/solana"
)

// KeyMismatchError reports the first account whose key differs from the
// derived key set.
type KeyMismatchError struct {
	Index    int
	Actual   ed25519.PublicKey
	Expected ed25519.PublicKey
}

func (e *KeyMismatchError) Error() string {
	return fmt.Sprintf("account %d: expected %s, got %s", e.Index, base58.Encode(e.Expected), base58.Encode(e.Actual))
}

// VerifyKeys checks the accounts against the expected keys positionally.
func VerifyKeys(actual []*solana.AccountInfo, expected []ed25519.PublicKey) error {
	if len(actual) < len(expected) {
		return solana.NewProgramError(solana.InstructionErrorNotEnoughAccountKeys)
	}

	for i, key := range expected {
		if !bytes.Equal(actual[i].Key, key) {
			return &KeyMismatchError{
				Index:    i,
				Actual:   actual[i].Key,
				Expected: key,
			}
		}
	}
	return nil
}

type PrivilegeKind uint8

const (
	PrivilegeWritable PrivilegeKind = iota
	PrivilegeSigner
)

func (k PrivilegeKind) String() string {
	switch k {
	case PrivilegeWritable:
		return "writable"
	case PrivilegeSigner:
		return "signer"
	default:
		return "unknown"
	}
}

// PrivilegeError reports an account missing a privilege required by the
// instruction contract.
type PrivilegeError struct {
	Index int
	Kind  PrivilegeKind
}

func (e *PrivilegeError) Error() string {
	return fmt.Sprintf("account %d is not %s", e.Index, e.Kind)
}

// ErrorKey classifies missing writability as InvalidAccountData and a missing
// signature as MissingRequiredSignature.
func (e PrivilegeError) ErrorKey() solana.InstructionErrorKey {
	if e.Kind == PrivilegeSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}
	return solana.InstructionErrorInvalidAccountData
}

// VerifyPrivileges checks the accounts against the contract. All writable
// requirements are checked before any signer requirement.
func VerifyPrivileges(actual []*solana.AccountInfo, contract []solana.AccountMeta) error {
	if len(actual) < len(contract) {
		return solana.NewProgramError(solana.InstructionErrorNotEnoughAccountKeys)
	}

	for i, meta := range contract {
		if meta.IsWritable && !actual[i].IsWritable {
			return &PrivilegeError{Index: i, Kind: PrivilegeWritable}
		}
	}
	for i, meta := range contract {
		if meta.IsSigner && !actual[i].IsSigner {
			return &PrivilegeError{Index: i, Kind: PrivilegeSigner}
		}
	}
	return nil
}
