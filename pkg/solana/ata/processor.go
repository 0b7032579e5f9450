package ata

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/associated-token-account/pkg/metrics"
	"github.com/code-payments/associated-token-account/pkg/solana"
)

const (
	processedInstructionMetricName = "Ata/ProcessedInstruction/"
	processDurationMetricName      = "Ata/ProcessDuration"
	nestedRecoveryEventName        = "AtaNestedAccountRecovered"
)

// Invoker executes instructions of other programs on behalf of the processor.
// Signer seeds grant signing privileges to the program derived addresses they
// recreate under the associated token account program.
type Invoker interface {
	InvokeSigned(ctx context.Context, ix solana.Instruction, accounts []*solana.AccountInfo, signerSeeds ...[][]byte) error
}

// Rent provides the minimum balance for an account to be rent exempt.
type Rent interface {
	MinimumBalance(dataLen uint64) uint64
}

// Processor executes associated token account program instructions.
type Processor struct {
	log     *logrus.Entry
	conf    *conf
	invoker Invoker
	rent    Rent
}

func NewProcessor(invoker Invoker, rent Rent, configProvider ConfigProvider) *Processor {
	return &Processor{
		log:     logrus.StandardLogger().WithField("type", "solana/ata/processor"),
		conf:    configProvider(),
		invoker: invoker,
		rent:    rent,
	}
}

func (p *Processor) Process(ctx context.Context, programID ed25519.PublicKey, accounts []*solana.AccountInfo, data []byte) (err error) {
	start := time.Now()
	tracer := metrics.TraceMethodCall(ctx, "ata.Processor", "Process")
	defer func() {
		tracer.OnError(err)
		tracer.End()
		metrics.RecordDuration(ctx, processDurationMetricName, time.Since(start))
	}()

	if !bytes.Equal(programID, ProgramKey) {
		return solana.NewProgramError(solana.InstructionErrorIncorrectProgramID)
	}

	ix, err := DecodeInstruction(data)
	if err != nil {
		return err
	}

	log := p.log.WithField("instruction", ix.Type.String())
	if p.conf.enableInstructionLogging.Get(ctx) {
		log.Debug("processing instruction")
	}
	tracer.AddAttribute("instruction", ix.Type.String())

	switch ix.Type {
	case InstructionCreate:
		err = p.processCreate(ctx, log, accounts, createModeAlways)
	case InstructionCreateIdempotent:
		err = p.processCreate(ctx, log, accounts, createModeIdempotent)
	case InstructionRecoverNested:
		err = p.processRecoverNested(ctx, log, accounts)
	}

	if err != nil {
		log.WithError(err).Info("instruction failed")
		return err
	}

	metrics.RecordCount(ctx, processedInstructionMetricName+ix.Type.String(), 1)
	return nil
}

func accountsOrErr(accounts []*solana.AccountInfo, n int) ([]*solana.AccountInfo, error) {
	if len(accounts) < n {
		return nil, solana.NewProgramError(solana.InstructionErrorNotEnoughAccountKeys)
	}
	return accounts[:n], nil
}
