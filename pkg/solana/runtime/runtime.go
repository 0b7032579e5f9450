package runtime

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/google/uuid"
	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/associated-token-account/pkg/solana"
	"github.com/code-payments/associated-token-account/pkg/solana/system"
	"github.com/code-payments/associated-token-account/pkg/solana/token"
)

// Program is a natively executed program.
type Program interface {
	Process(ctx context.Context, programID ed25519.PublicKey, accounts []*solana.AccountInfo, data []byte) error
}

// Runtime is an in-memory account table that executes native programs,
// including cross program invocations between them.
//
// Transactions are atomic: either every instruction succeeds and all account
// changes are committed, or the table is left untouched. Runtime is not safe
// for concurrent use.
type Runtime struct {
	log  *logrus.Entry
	conf *conf
	rent *Rent

	accounts map[string]*solana.AccountInfo
	programs map[string]Program

	// callers is the program invocation stack of the executing instruction
	callers []*frame
}

// frame tracks the account state a program is verified against when it
// returns. pre is refreshed after every cross program invocation so that
// only changes made by the program itself are attributed to it.
type frame struct {
	program  ed25519.PublicKey
	pre      map[string]*solana.AccountInfo
	preTotal uint64
}

func newFrame(program ed25519.PublicKey, accounts map[string]*solana.AccountInfo) *frame {
	f := &frame{
		program: program,
		pre:     make(map[string]*solana.AccountInfo, len(accounts)),
	}
	for key, account := range accounts {
		f.pre[key] = account.Clone()
		f.preTotal += account.Lamports
	}
	return f
}

// New returns a runtime with the system, token and token-2022 programs
// registered.
func New(configProvider ConfigProvider) *Runtime {
	r := &Runtime{
		log:      logrus.StandardLogger().WithField("type", "solana/runtime"),
		conf:     configProvider(),
		accounts: make(map[string]*solana.AccountInfo),
		programs: make(map[string]Program),
	}
	r.rent = &Rent{conf: r.conf}

	tokenProcessor := token.NewProcessor(r.rent)
	r.RegisterProgram(system.ProgramKey, system.NewProcessor())
	r.RegisterProgram(token.ProgramKey, tokenProcessor)
	r.RegisterProgram(token.Program2022Key, tokenProcessor)

	return r
}

// RegisterProgram makes program executable at id.
func (r *Runtime) RegisterProgram(id ed25519.PublicKey, program Program) {
	r.programs[string(id)] = program
	r.accounts[string(id)] = &solana.AccountInfo{
		Key:        id,
		Owner:      system.NativeLoaderKey,
		Lamports:   1,
		Executable: true,
	}
}

// Rent returns the rent calculator used by the runtime.
func (r *Runtime) Rent() *Rent {
	return r.rent
}

// SetAccount stores a copy of account, replacing any existing account with
// the same key.
func (r *Runtime) SetAccount(account *solana.AccountInfo) {
	stored := account.Clone()
	stored.IsSigner = false
	stored.IsWritable = false
	r.accounts[string(stored.Key)] = stored
}

// GetAccount returns a copy of the account stored at key.
func (r *Runtime) GetAccount(key ed25519.PublicKey) (*solana.AccountInfo, bool) {
	account, ok := r.accounts[string(key)]
	if !ok {
		return nil, false
	}
	return account.Clone(), true
}

// Execute runs the instructions as a single transaction. Accounts flagged as
// signers in the instructions are treated as having signed it.
//
// Failures are returned as a solana.InstructionError identifying the failed
// instruction.
func (r *Runtime) Execute(ctx context.Context, instructions ...solana.Instruction) error {
	log := r.log.WithField("execution_id", uuid.New().String())

	working := make(map[string]*solana.AccountInfo, len(r.accounts))
	for key, account := range r.accounts {
		working[key] = account.Clone()
	}

	for i, ix := range instructions {
		if err := r.executeInstruction(ctx, working, ix); err != nil {
			log.WithError(err).WithField("index", i).Debug("instruction failed, discarding transaction")
			return solana.InstructionError{Index: i, Err: err}
		}
	}

	for key, account := range working {
		if account.Lamports == 0 && len(account.Data) == 0 && account.IsOwnedBy(system.ProgramKey) {
			delete(working, key)
			continue
		}
		account.IsSigner = false
		account.IsWritable = false
	}
	r.accounts = working

	log.WithField("instructions", len(instructions)).Debug("transaction committed")
	return nil
}

func (r *Runtime) executeInstruction(ctx context.Context, table map[string]*solana.AccountInfo, ix solana.Instruction) error {
	program, ok := r.programs[string(ix.Program)]
	if !ok {
		return solana.NewProgramError(solana.InstructionErrorUnsupportedProgramID)
	}

	var infos []*solana.AccountInfo
	unique := make(map[string]*solana.AccountInfo)
	for _, meta := range ix.Accounts {
		info, ok := unique[string(meta.PublicKey)]
		if !ok {
			stored, exists := table[string(meta.PublicKey)]
			if exists {
				info = stored.Clone()
				info.IsSigner = false
				info.IsWritable = false
			} else {
				info = &solana.AccountInfo{
					Key:   meta.PublicKey,
					Owner: system.ProgramKey,
				}
			}
			unique[string(meta.PublicKey)] = info
		}

		info.IsSigner = info.IsSigner || meta.IsSigner
		info.IsWritable = info.IsWritable || meta.IsWritable
		infos = append(infos, info)
	}

	if err := r.run(ctx, program, ix, infos, unique); err != nil {
		return err
	}

	for key, info := range unique {
		table[key] = info
	}
	return nil
}

// run processes ix with a new frame and verifies the changes made by the
// program once it returns.
func (r *Runtime) run(ctx context.Context, program Program, ix solana.Instruction, infos []*solana.AccountInfo, unique map[string]*solana.AccountInfo) error {
	f := newFrame(ix.Program, unique)

	r.callers = append(r.callers, f)
	err := program.Process(ctx, ix.Program, infos, ix.Data)
	r.callers = r.callers[:len(r.callers)-1]
	if err != nil {
		return err
	}

	var postTotal uint64
	for key, after := range unique {
		if err := verifyAccount(f.program, f.pre[key], after); err != nil {
			return errors.Wrapf(err, "account %s", base58.Encode(after.Key))
		}
		postTotal += after.Lamports
	}
	if postTotal != f.preTotal {
		return solana.NewProgramError(solana.InstructionErrorUnbalancedInstruction)
	}
	return nil
}

// InvokeSigned invokes ix from the currently executing program. Each set of
// signer seeds grants signing privileges to the address it derives under the
// invoking program.
func (r *Runtime) InvokeSigned(ctx context.Context, ix solana.Instruction, accounts []*solana.AccountInfo, signerSeeds ...[][]byte) error {
	if len(r.callers) == 0 {
		return errors.New("no instruction is executing")
	}
	caller := r.callers[len(r.callers)-1]

	if int64(len(r.callers)) > r.conf.maxCpiDepth.Get(ctx) {
		return solana.NewProgramError(solana.InstructionErrorCallDepth)
	}
	// Programs may only reenter themselves directly.
	if !bytes.Equal(caller.program, ix.Program) {
		for _, active := range r.callers {
			if bytes.Equal(active.program, ix.Program) {
				return solana.NewProgramError(solana.InstructionErrorReentrancyNotAllowed)
			}
		}
	}

	log := r.log.WithFields(logrus.Fields{
		"caller":  base58.Encode(caller.program),
		"program": base58.Encode(ix.Program),
	})
	log.Debug("cross program invocation")

	byKey := make(map[string]*solana.AccountInfo, len(accounts))
	for _, account := range accounts {
		byKey[string(account.Key)] = account
	}

	if _, ok := byKey[string(ix.Program)]; !ok {
		return errors.Wrap(solana.NewProgramError(solana.InstructionErrorMissingAccount), "program account not provided")
	}
	program, ok := r.programs[string(ix.Program)]
	if !ok {
		return solana.NewProgramError(solana.InstructionErrorUnsupportedProgramID)
	}

	pdaSigners := make(map[string]struct{})
	for _, seeds := range signerSeeds {
		signer, err := solana.CreateProgramAddress(caller.program, seeds...)
		if err != nil {
			return errors.Wrap(solana.NewProgramError(solana.InstructionErrorInvalidSeeds), err.Error())
		}
		pdaSigners[string(signer)] = struct{}{}
	}

	var infos []*solana.AccountInfo
	unique := make(map[string]*solana.AccountInfo)
	for _, meta := range ix.Accounts {
		source, ok := byKey[string(meta.PublicKey)]
		if !ok {
			return errors.Wrapf(solana.NewProgramError(solana.InstructionErrorMissingAccount), "account %s not provided", base58.Encode(meta.PublicKey))
		}
		if source.IsBorrowed() {
			return solana.NewProgramError(solana.InstructionErrorAccountBorrowFailed)
		}

		_, isPDASigner := pdaSigners[string(meta.PublicKey)]
		if meta.IsWritable && !source.IsWritable {
			return errors.Wrapf(solana.NewProgramError(solana.InstructionErrorPrivilegeEscalation), "%s writable privilege escalated", base58.Encode(meta.PublicKey))
		}
		if meta.IsSigner && !source.IsSigner && !isPDASigner {
			return errors.Wrapf(solana.NewProgramError(solana.InstructionErrorPrivilegeEscalation), "%s signer privilege escalated", base58.Encode(meta.PublicKey))
		}

		info, ok := unique[string(meta.PublicKey)]
		if !ok {
			info = source.Clone()
			info.IsSigner = false
			info.IsWritable = false
			unique[string(meta.PublicKey)] = info
		}
		info.IsSigner = info.IsSigner || meta.IsSigner
		info.IsWritable = info.IsWritable || meta.IsWritable
		infos = append(infos, info)
	}

	// Changes the caller made so far must be valid before the callee sees them.
	for key := range unique {
		before, ok := caller.pre[key]
		if !ok {
			return errors.Wrapf(solana.NewProgramError(solana.InstructionErrorMissingAccount), "account %s not available to caller", base58.Encode(byKey[key].Key))
		}
		if err := verifyAccount(caller.program, before, byKey[key]); err != nil {
			return err
		}
	}

	if err := r.run(ctx, program, ix, infos, unique); err != nil {
		return err
	}

	for key, info := range unique {
		source := byKey[key]
		source.Owner = info.Owner
		source.Lamports = info.Lamports
		source.Data = info.Data

		caller.pre[key] = source.Clone()
	}
	return nil
}

// verifyAccount enforces the account ownership rules on the changes made by
// program:
//
//   - only the owner may debit lamports, modify data, or reassign the account
//   - readonly accounts may not change at all
//   - an account may only be reassigned once its data is zeroed
func verifyAccount(program ed25519.PublicKey, before, after *solana.AccountInfo) error {
	ownedByProgram := before.IsOwnedBy(program)

	if !bytes.Equal(before.Owner, after.Owner) {
		if !after.IsWritable || !ownedByProgram || before.Executable || !isZeroed(after.Data) {
			return solana.NewProgramError(solana.InstructionErrorModifiedProgramID)
		}
	}

	if after.Lamports != before.Lamports && !after.IsWritable {
		return solana.NewProgramError(solana.InstructionErrorReadonlyLamportChange)
	}
	if after.Lamports < before.Lamports && !ownedByProgram {
		return solana.NewProgramError(solana.InstructionErrorExternalLamportSpend)
	}

	if !bytes.Equal(before.Data, after.Data) {
		if !after.IsWritable {
			return solana.NewProgramError(solana.InstructionErrorReadonlyDataModified)
		}
		if !ownedByProgram {
			return solana.NewProgramError(solana.InstructionErrorExternalDataModified)
		}
	}

	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
