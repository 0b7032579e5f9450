package token

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/associated-token-account/pkg/solana/binary"
)

// ExtensionType identifies a token-2022 TLV extension.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/master/token/program-2022/src/extension/mod.rs
type ExtensionType uint16

const (
	ExtensionTypeUninitialized ExtensionType = iota
	ExtensionTypeTransferFeeConfig
	ExtensionTypeTransferFeeAmount
	ExtensionTypeMintCloseAuthority
	ExtensionTypeConfidentialTransferMint
	ExtensionTypeConfidentialTransferAccount
	ExtensionTypeDefaultAccountState
	ExtensionTypeImmutableOwner
	ExtensionTypeMemoTransfer
	ExtensionTypeNonTransferable
	ExtensionTypeInterestBearingConfig
	ExtensionTypeCpiGuard
	ExtensionTypePermanentDelegate
	ExtensionTypeNonTransferableAccount
	ExtensionTypeTransferHook
	ExtensionTypeTransferHookAccount
)

const tlvHeaderSize = 4

var ErrUnsupportedExtension = errors.New("unsupported extension")

// accountExtensionSizes holds the encoded length of the extensions that may be
// attached to a token account.
var accountExtensionSizes = map[ExtensionType]int{
	ExtensionTypeTransferFeeAmount:      8,
	ExtensionTypeImmutableOwner:         0,
	ExtensionTypeMemoTransfer:           1,
	ExtensionTypeCpiGuard:               1,
	ExtensionTypeNonTransferableAccount: 0,
	ExtensionTypeTransferHookAccount:    1,
}

// Extension is a single TLV entry.
type Extension struct {
	Type ExtensionType
	Data []byte
}

// RequiredAccountExtensions returns the account extensions a token account
// must carry when its mint has the given extension.
func RequiredAccountExtensions(mintExtension ExtensionType) []ExtensionType {
	switch mintExtension {
	case ExtensionTypeTransferFeeConfig:
		return []ExtensionType{ExtensionTypeTransferFeeAmount}
	case ExtensionTypeNonTransferable:
		return []ExtensionType{ExtensionTypeNonTransferableAccount, ExtensionTypeImmutableOwner}
	case ExtensionTypeTransferHook:
		return []ExtensionType{ExtensionTypeTransferHookAccount}
	default:
		return nil
	}
}

// GetAccountLen returns the data length of a token account for the provided
// mint, including the requested account extensions and any extension the
// mint requires of its accounts.
//
// The legacy token program has no extensions, so its accounts are always
// AccountSize bytes.
func GetAccountLen(tokenProgram ed25519.PublicKey, mintData []byte, extensions ...ExtensionType) (uint64, error) {
	if bytes.Equal(tokenProgram, ProgramKey) {
		return AccountSize, nil
	}
	if !bytes.Equal(tokenProgram, Program2022Key) {
		return 0, errors.New("unknown token program")
	}

	mintExtensions, err := GetExtensionTypes(mintData)
	if err != nil {
		return 0, errors.Wrap(err, "invalid mint extensions")
	}

	required := make(map[ExtensionType]struct{})
	for _, ext := range extensions {
		required[ext] = struct{}{}
	}
	for _, ext := range mintExtensions {
		for _, accountExt := range RequiredAccountExtensions(ext) {
			required[accountExt] = struct{}{}
		}
	}

	if len(required) == 0 {
		return AccountSize, nil
	}

	size := AccountSize + 1
	for ext := range required {
		extSize, ok := accountExtensionSizes[ext]
		if !ok {
			return 0, errors.Wrapf(ErrUnsupportedExtension, "extension %d", ext)
		}
		size += tlvHeaderSize + extSize
	}

	// The extended layout must never be mistaken for a multisig.
	if size == MultisigAccountSize {
		size += tlvHeaderSize
	}

	return uint64(size), nil
}

// GetExtensionTypes returns the extension types present in the TLV section
// of a token-2022 mint or account. Base layouts without extensions return
// an empty result.
func GetExtensionTypes(data []byte) ([]ExtensionType, error) {
	var types []ExtensionType
	err := walkExtensions(data, func(t ExtensionType, _ []byte, _ int) bool {
		types = append(types, t)
		return true
	})
	return types, err
}

// GetExtension returns the value of the extension of type t, if present.
func GetExtension(data []byte, t ExtensionType) ([]byte, bool) {
	var value []byte
	var found bool
	err := walkExtensions(data, func(actual ExtensionType, v []byte, _ int) bool {
		if actual == t {
			value, found = v, true
			return false
		}
		return true
	})
	if err != nil {
		return nil, false
	}
	return value, found
}

// HasExtension reports whether data carries an extension of type t.
func HasExtension(data []byte, t ExtensionType) bool {
	_, ok := GetExtension(data, t)
	return ok
}

// InitExtension writes an empty extension of type t into the first free TLV
// slot of data. Writing an extension that is already present is a no-op.
func InitExtension(data []byte, t ExtensionType) error {
	size, ok := accountExtensionSizes[t]
	if !ok {
		return errors.Wrapf(ErrUnsupportedExtension, "extension %d", t)
	}
	if len(data) <= AccountSize {
		return errors.New("account has no room for extensions")
	}

	var exists bool
	end := AccountSize + 1
	err := walkExtensions(data, func(actual ExtensionType, _ []byte, next int) bool {
		if actual == t {
			exists = true
			return false
		}
		end = next
		return true
	})
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if end+tlvHeaderSize+size > len(data) {
		return errors.New("account has no room for extension")
	}

	offset := end
	binary.PutUint16(data[offset:], uint16(t), &offset)
	binary.PutUint16(data[offset:], uint16(size), &offset)
	for i := 0; i < size; i++ {
		data[offset+i] = 0
	}
	return nil
}

// walkExtensions visits each initialized TLV entry. fn receives the offset
// just past the entry and returns false to stop early.
func walkExtensions(data []byte, fn func(t ExtensionType, value []byte, next int) bool) error {
	if len(data) <= AccountSize {
		return nil
	}

	offset := AccountSize + 1
	for offset+tlvHeaderSize <= len(data) {
		var rawType, length uint16
		cursor := offset
		binary.GetUint16(data[cursor:], &rawType, &cursor)
		binary.GetUint16(data[cursor:], &length, &cursor)

		t := ExtensionType(rawType)
		if t == ExtensionTypeUninitialized {
			return nil
		}

		end := cursor + int(length)
		if end > len(data) {
			return errors.Errorf("extension %d overruns account data", t)
		}
		if !fn(t, data[cursor:end], end) {
			return nil
		}
		offset = end
	}

	return nil
}

// packExtensions allocates an extended layout with base bytes reserved for
// the caller, the account type byte and the provided TLV entries.
func packExtensions(base int, accountType AccountType, extensions []Extension) []byte {
	size := base + 1
	for _, ext := range extensions {
		size += tlvHeaderSize + len(ext.Data)
	}
	if size == MultisigAccountSize {
		size += tlvHeaderSize
	}

	b := make([]byte, size)
	b[base] = byte(accountType)

	offset := base + 1
	for _, ext := range extensions {
		binary.PutUint16(b[offset:], uint16(ext.Type), &offset)
		binary.PutUint16(b[offset:], uint16(len(ext.Data)), &offset)
		offset += copy(b[offset:], ext.Data)
	}
	return b
}
