package solana

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// InstructionErrorKey is the string keys returned in an instruction error.
//
// Source: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
type InstructionErrorKey string

const (
	InstructionErrorGenericError              InstructionErrorKey = "GenericError"
	InstructionErrorInvalidArgument           InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData    InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorInvalidAccountData        InstructionErrorKey = "InvalidAccountData"
	InstructionErrorAccountDataTooSmall       InstructionErrorKey = "AccountDataTooSmall"
	InstructionErrorInsufficientFunds         InstructionErrorKey = "InsufficientFunds"
	InstructionErrorIncorrectProgramID        InstructionErrorKey = "IncorrectProgramId"
	InstructionErrorMissingRequiredSignature  InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorAccountAlreadyInitialized InstructionErrorKey = "AccountAlreadyInitialized"
	InstructionErrorUninitializedAccount      InstructionErrorKey = "UninitializedAccount"
	InstructionErrorNotEnoughAccountKeys      InstructionErrorKey = "NotEnoughAccountKeys"
	InstructionErrorAccountBorrowFailed       InstructionErrorKey = "AccountBorrowFailed"
	InstructionErrorCustom                    InstructionErrorKey = "Custom"
	InstructionErrorUnsupportedProgramID      InstructionErrorKey = "UnsupportedProgramId"
	InstructionErrorCallDepth                 InstructionErrorKey = "CallDepth"
	InstructionErrorMissingAccount            InstructionErrorKey = "MissingAccount"
	InstructionErrorPrivilegeEscalation       InstructionErrorKey = "PrivilegeEscalation"
	InstructionErrorMaxSeedLengthExceeded     InstructionErrorKey = "MaxSeedLengthExceeded"
	InstructionErrorInvalidSeeds              InstructionErrorKey = "InvalidSeeds"
	InstructionErrorIllegalOwner              InstructionErrorKey = "IllegalOwner"
	InstructionErrorAccountAlreadyInUse       InstructionErrorKey = "AccountAlreadyInUse"
	InstructionErrorModifiedProgramID         InstructionErrorKey = "ModifiedProgramId"
	InstructionErrorExternalLamportSpend      InstructionErrorKey = "ExternalAccountLamportSpend"
	InstructionErrorExternalDataModified      InstructionErrorKey = "ExternalAccountDataModified"
	InstructionErrorReadonlyLamportChange     InstructionErrorKey = "ReadonlyLamportChange"
	InstructionErrorReadonlyDataModified      InstructionErrorKey = "ReadonlyDataModified"
	InstructionErrorUnbalancedInstruction     InstructionErrorKey = "UnbalancedInstruction"
	InstructionErrorReentrancyNotAllowed      InstructionErrorKey = "ReentrancyNotAllowed"
)

// CustomError is the numerical error returned by a non-system program.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: %x", int(c))
}

// ProgramError is a builtin error returned by a program while processing an
// instruction.
type ProgramError struct {
	Key InstructionErrorKey
}

// NewProgramError returns a ProgramError for the provided key.
func NewProgramError(key InstructionErrorKey) error {
	return ProgramError{Key: key}
}

func (p ProgramError) Error() string {
	return string(p.Key)
}

// ErrorKey returns the InstructionErrorKey for the root cause of err.
//
// Errors that are neither a ProgramError nor a CustomError are reported as
// InstructionErrorGenericError.
func ErrorKey(err error) InstructionErrorKey {
	if err == nil {
		return ""
	}

	type keyed interface {
		ErrorKey() InstructionErrorKey
	}

	for e := err; e != nil; {
		switch t := e.(type) {
		case ProgramError:
			return t.Key
		case CustomError:
			return InstructionErrorCustom
		case keyed:
			return t.ErrorKey()
		}

		c, ok := e.(interface{ Cause() error })
		if !ok {
			break
		}
		e = c.Cause()
	}

	return InstructionErrorGenericError
}

// IsErrorKey reports whether err classifies as key.
func IsErrorKey(err error, key InstructionErrorKey) bool {
	return ErrorKey(err) == key
}

// InstructionError indicates an instruction returned an error in a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) Cause() error {
	return i.Err
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	return ErrorKey(i.Err)
}

func (i InstructionError) JSONString() string {
	if e := i.CustomError(); e != nil {
		return fmt.Sprintf(`[%d, {"%s": %d}]`, i.Index, InstructionErrorCustom, int(*e))
	}

	return fmt.Sprintf(`[%d, "%s"]`, i.Index, i.ErrorKey())
}

func (i InstructionError) CustomError() *CustomError {
	ce, ok := errors.Cause(i.Err).(CustomError)
	if ok {
		return &ce
	}

	return nil
}

// ParseInstructionError parses the JSON tuple produced by InstructionError.JSONString.
func ParseInstructionError(raw []byte) (e InstructionError, err error) {
	var values []json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return e, errors.Wrap(err, "unexpected instruction error format")
	}

	if len(values) != 2 {
		return e, errors.Errorf("too many entries in InstructionError tuple: %d", len(values))
	}

	if err := json.Unmarshal(values[0], &e.Index); err != nil {
		return e, errors.Wrap(err, "non numeric value in InstructionError tuple")
	}

	var key string
	if err := json.Unmarshal(values[1], &key); err == nil {
		e.Err = NewProgramError(InstructionErrorKey(key))
		return e, nil
	}

	var custom map[string]int
	if err := json.Unmarshal(values[1], &custom); err != nil {
		return e, errors.Wrap(err, "unhandled InstructionError")
	}

	code, ok := custom[string(InstructionErrorCustom)]
	if !ok || len(custom) != 1 {
		return e, errors.Errorf("invalid instruction result size: %d", len(custom))
	}

	e.Err = CustomError(code)
	return e, nil
}
