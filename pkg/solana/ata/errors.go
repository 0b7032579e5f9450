package ata

import (
	"github.com/pkg/errors"

	"github.com/code-payments/associated-token-account/pkg/solana"
)

var (
	// ErrInvalidOwner indicates an associated token account is owned by
	// someone other than the expected wallet.
	ErrInvalidOwner = solana.CustomError(0)

	// ErrAssetProgramMismatch indicates the mints of a recovery are managed by
	// different token programs.
	ErrAssetProgramMismatch = errors.Wrap(solana.NewProgramError(solana.InstructionErrorIllegalOwner), "asset program mismatch")

	// ErrDecode indicates a malformed instruction payload.
	ErrDecode = errors.Wrap(solana.NewProgramError(solana.InstructionErrorInvalidInstructionData), "failed to decode instruction")
)

func programError(key solana.InstructionErrorKey, msg string) error {
	return errors.Wrap(solana.NewProgramError(key), msg)
}
