package system

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/associated-token-account/pkg/solana"
)

// MaxPermittedDataLength is the largest data allocation the system program
// will perform.
const MaxPermittedDataLength = 10 * 1024 * 1024

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/system_instruction.rs#L23
const (
	ErrorAccountAlreadyInUse solana.CustomError = iota
	ErrorResultWithNegativeLamports
	// nolint:varcheck,deadcode,unused
	ErrorInvalidProgramID
	ErrorInvalidAccountDataLength
)

// Processor natively executes the subset of system program instructions
// needed to fund, allocate and assign program derived accounts.
type Processor struct {
	log *logrus.Entry
}

func NewProcessor() *Processor {
	return &Processor{
		log: logrus.StandardLogger().WithField("type", "solana/system/processor"),
	}
}

func (p *Processor) Process(_ context.Context, programID ed25519.PublicKey, accounts []*solana.AccountInfo, data []byte) error {
	if !bytes.Equal(programID, ProgramKey) {
		return solana.NewProgramError(solana.InstructionErrorIncorrectProgramID)
	}
	if len(data) < 4 {
		return solana.NewProgramError(solana.InstructionErrorInvalidInstructionData)
	}

	args := data[4:]
	switch binary.LittleEndian.Uint32(data) {
	case commandCreateAccount:
		if len(args) != 2*8+ed25519.PublicKeySize {
			return solana.NewProgramError(solana.InstructionErrorInvalidInstructionData)
		}
		if len(accounts) < 2 {
			return solana.NewProgramError(solana.InstructionErrorNotEnoughAccountKeys)
		}
		return p.createAccount(
			accounts[0],
			accounts[1],
			binary.LittleEndian.Uint64(args),
			binary.LittleEndian.Uint64(args[8:]),
			ed25519.PublicKey(args[16:]),
		)
	case commandTransfer:
		if len(args) != 8 {
			return solana.NewProgramError(solana.InstructionErrorInvalidInstructionData)
		}
		if len(accounts) < 2 {
			return solana.NewProgramError(solana.InstructionErrorNotEnoughAccountKeys)
		}
		return p.transfer(accounts[0], accounts[1], binary.LittleEndian.Uint64(args))
	case commandAllocate:
		if len(args) != 8 {
			return solana.NewProgramError(solana.InstructionErrorInvalidInstructionData)
		}
		if len(accounts) < 1 {
			return solana.NewProgramError(solana.InstructionErrorNotEnoughAccountKeys)
		}
		return p.allocate(accounts[0], binary.LittleEndian.Uint64(args))
	case commandAssign:
		if len(args) != ed25519.PublicKeySize {
			return solana.NewProgramError(solana.InstructionErrorInvalidInstructionData)
		}
		if len(accounts) < 1 {
			return solana.NewProgramError(solana.InstructionErrorNotEnoughAccountKeys)
		}
		return p.assign(accounts[0], ed25519.PublicKey(args))
	default:
		return solana.NewProgramError(solana.InstructionErrorInvalidInstructionData)
	}
}

func (p *Processor) createAccount(funder, account *solana.AccountInfo, lamports, space uint64, owner ed25519.PublicKey) error {
	if account.Lamports > 0 {
		p.log.WithField("account", account.String()).Debug("create account: account already in use")
		return ErrorAccountAlreadyInUse
	}

	if err := p.allocate(account, space); err != nil {
		return err
	}
	if err := p.assign(account, owner); err != nil {
		return err
	}
	return p.transfer(funder, account, lamports)
}

func (p *Processor) transfer(from, to *solana.AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		return solana.NewProgramError(solana.InstructionErrorMissingRequiredSignature)
	}
	if len(from.Data) != 0 {
		return errors.Wrap(solana.NewProgramError(solana.InstructionErrorInvalidArgument), "transfer: from must not carry data")
	}
	if from.Lamports < lamports {
		p.log.WithFields(logrus.Fields{
			"from":     from.String(),
			"balance":  from.Lamports,
			"required": lamports,
		}).Debug("transfer: insufficient lamports")
		return ErrorResultWithNegativeLamports
	}

	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}

func (p *Processor) allocate(account *solana.AccountInfo, space uint64) error {
	if !account.IsSigner {
		return solana.NewProgramError(solana.InstructionErrorMissingRequiredSignature)
	}
	if len(account.Data) != 0 || !account.IsOwnedBy(ProgramKey) {
		return ErrorAccountAlreadyInUse
	}
	if space > MaxPermittedDataLength {
		return ErrorInvalidAccountDataLength
	}

	account.Data = make([]byte, space)
	return nil
}

func (p *Processor) assign(account *solana.AccountInfo, owner ed25519.PublicKey) error {
	if account.IsOwnedBy(owner) {
		return nil
	}
	if !account.IsSigner {
		return solana.NewProgramError(solana.InstructionErrorMissingRequiredSignature)
	}

	account.Owner = append(ed25519.PublicKey(nil), owner...)
	return nil
}
