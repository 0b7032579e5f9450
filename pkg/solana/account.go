package solana

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58/base58"
)

// AccountInfo is the view of an account handed to a program for the duration
// of a single instruction.
//
// Data access goes through Borrow and BorrowMut so that overlapping borrows
// of the same account are detected. The zero value has no outstanding borrows.
type AccountInfo struct {
	Key        ed25519.PublicKey
	Owner      ed25519.PublicKey
	Lamports   uint64
	Data       []byte
	Executable bool

	IsSigner   bool
	IsWritable bool

	readers int
	writer  bool
}

// Borrow takes a shared borrow of the account data. The returned function
// must be called to release it.
func (a *AccountInfo) Borrow() ([]byte, func(), error) {
	if a.writer {
		return nil, nil, NewProgramError(InstructionErrorAccountBorrowFailed)
	}

	a.readers++

	var released bool
	return a.Data, func() {
		if !released {
			released = true
			a.readers--
		}
	}, nil
}

// BorrowMut takes an exclusive borrow of the account. The returned function
// must be called to release it.
func (a *AccountInfo) BorrowMut() (*AccountInfo, func(), error) {
	if a.writer || a.readers > 0 {
		return nil, nil, NewProgramError(InstructionErrorAccountBorrowFailed)
	}

	a.writer = true

	var released bool
	return a, func() {
		if !released {
			released = true
			a.writer = false
		}
	}, nil
}

// IsBorrowed reports whether any borrow of the account is outstanding.
func (a *AccountInfo) IsBorrowed() bool {
	return a.writer || a.readers > 0
}

// IsOwnedBy reports whether the account is owned by the provided program.
func (a *AccountInfo) IsOwnedBy(program ed25519.PublicKey) bool {
	return bytes.Equal(a.Owner, program)
}

// Clone returns a deep copy of the account without any borrow state.
func (a *AccountInfo) Clone() *AccountInfo {
	return &AccountInfo{
		Key:        append(ed25519.PublicKey(nil), a.Key...),
		Owner:      append(ed25519.PublicKey(nil), a.Owner...),
		Lamports:   a.Lamports,
		Data:       append([]byte(nil), a.Data...),
		Executable: a.Executable,
		IsSigner:   a.IsSigner,
		IsWritable: a.IsWritable,
	}
}

func (a *AccountInfo) String() string {
	return base58.Encode(a.Key)
}
