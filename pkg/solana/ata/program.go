package ata

import (
	"crypto/ed25519"
)

// ProgramKey is the address of the associated token account program.
//
// Current key: ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL
var ProgramKey = ed25519.PublicKey{140, 151, 37, 143, 78, 36, 137, 241, 187, 61, 16, 41, 20, 142, 13, 131, 11, 90, 19, 153, 218, 255, 16, 132, 4, 142, 123, 216, 219, 233, 248, 89}

const (
	// CreateAccountsLen is the number of accounts used by Create and CreateIdempotent
	CreateAccountsLen = 6

	// RecoverNestedAccountsLen is the number of accounts used by RecoverNested
	RecoverNestedAccountsLen = 7
)
