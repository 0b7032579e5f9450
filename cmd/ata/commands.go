package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/associated-token-account/pkg/solana"
	"github.com/code-payments/associated-token-account/pkg/solana/ata"
	"github.com/code-payments/associated-token-account/pkg/solana/rpc"
	"github.com/code-payments/associated-token-account/pkg/solana/runtime"
	"github.com/code-payments/associated-token-account/pkg/solana/system"
	"github.com/code-payments/associated-token-account/pkg/solana/token"
)

// environment is shared by all commands. client is nil when no RPC endpoint
// is configured, in which case rent is computed locally.
type environment struct {
	out        io.Writer
	client     rpc.Client
	commitment rpc.Commitment
	rent       *runtime.Rent
}

type command struct {
	summary string
	run     func(ctx context.Context, env *environment, args []string) error
}

var commands = map[string]command{
	"derive": {
		summary: "derive the associated token account address of a wallet",
		run:     runDerive,
	},
	"create": {
		summary: "build a Create or CreateIdempotent instruction",
		run:     runCreate,
	},
	"recover-nested": {
		summary: "build a RecoverNested instruction",
		run:     runRecoverNested,
	},
	"simulate": {
		summary: "run create and recover flows against an in-memory runtime",
		run:     runSimulate,
	},
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// keyFlag is a base58 encoded public key flag.
type keyFlag struct {
	key ed25519.PublicKey
}

func (f *keyFlag) String() string {
	if f.key == nil {
		return ""
	}
	return base58.Encode(f.key)
}

func (f *keyFlag) Set(value string) error {
	decoded, err := base58.Decode(value)
	if err != nil {
		return errors.Wrap(err, "invalid base58 public key")
	}
	if len(decoded) != ed25519.PublicKeySize {
		return errors.Errorf("invalid public key length: %d", len(decoded))
	}
	f.key = decoded
	return nil
}

func (f *keyFlag) orDefault(key ed25519.PublicKey) ed25519.PublicKey {
	if f.key == nil {
		return key
	}
	return f.key
}

func requireKeys(flags map[string]*keyFlag) error {
	for name, f := range flags {
		if f.key == nil {
			return errors.Errorf("-%s is required", name)
		}
	}
	return nil
}

// mintAccount fetches a mint from chain. It fails if no RPC endpoint is
// configured.
func (e *environment) mintAccount(ctx context.Context, mint ed25519.PublicKey) (*solana.AccountInfo, error) {
	if e.client == nil {
		return nil, errors.New("no token program specified and no rpc endpoint configured")
	}

	info, err := e.client.GetAccountInfo(ctx, mint, e.commitment)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get mint %s", base58.Encode(mint))
	}
	if !token.IsTokenProgram(info.Owner) {
		return nil, errors.Errorf("mint %s is owned by %s, which is not a token program", base58.Encode(mint), base58.Encode(info.Owner))
	}
	return info, nil
}

// tokenProgram returns the explicit token program, the owner of mint when an
// RPC endpoint is configured, or the legacy token program.
func (e *environment) tokenProgram(ctx context.Context, explicit, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	if explicit != nil {
		return explicit, nil
	}
	if e.client == nil {
		return token.ProgramKey, nil
	}

	info, err := e.mintAccount(ctx, mint)
	if err != nil {
		return nil, err
	}
	return info.Owner, nil
}

// accountRent returns the size of the associated account created for a mint
// and the lamports the funder must provide for it to be rent exempt. With
// no mint data the mint is assumed to carry no extensions.
func (e *environment) accountRent(ctx context.Context, tokenProgram ed25519.PublicKey, mintData []byte) (uint64, uint64, error) {
	space, err := token.GetAccountLen(tokenProgram, mintData, token.ExtensionTypeImmutableOwner)
	if err != nil {
		return 0, 0, err
	}

	if e.client == nil {
		return space, e.rent.MinimumBalance(space), nil
	}

	lamports, err := e.client.GetMinimumBalanceForRentExemption(ctx, space)
	if err != nil {
		return 0, 0, err
	}
	return space, lamports, nil
}

func runDerive(ctx context.Context, env *environment, args []string) error {
	var wallet, mint, tokenProgram keyFlag

	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	fs.Var(&wallet, "wallet", "wallet address")
	fs.Var(&mint, "mint", "mint address")
	fs.Var(&tokenProgram, "token-program", "token program (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireKeys(map[string]*keyFlag{"wallet": &wallet, "mint": &mint}); err != nil {
		return err
	}

	program, err := env.tokenProgram(ctx, tokenProgram.key, mint.key)
	if err != nil {
		return err
	}

	derived, err := ata.FindAddressArgs{
		Wallet:       wallet.key,
		TokenProgram: program,
		Mint:         mint.key,
	}.Find()
	if err != nil {
		return err
	}

	fmt.Fprintf(env.out, "address        %s\n", base58.Encode(derived.Address))
	fmt.Fprintf(env.out, "bump           %d\n", derived.Bump)
	fmt.Fprintf(env.out, "token_program  %s\n", base58.Encode(program))
	return nil
}

func runCreate(ctx context.Context, env *environment, args []string) error {
	var funder, wallet, mint, tokenProgram keyFlag

	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.Var(&funder, "funder", "funding account")
	fs.Var(&wallet, "wallet", "wallet address")
	fs.Var(&mint, "mint", "mint address")
	fs.Var(&tokenProgram, "token-program", "token program (optional)")
	idempotent := fs.Bool("idempotent", false, "build a CreateIdempotent instruction")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireKeys(map[string]*keyFlag{"funder": &funder, "wallet": &wallet, "mint": &mint}); err != nil {
		return err
	}

	var keys ata.CreateKeys
	var derived ata.DerivedAddress
	var mintData []byte
	var err error
	if tokenProgram.key == nil && env.client != nil {
		var mintInfo *solana.AccountInfo
		mintInfo, err = env.mintAccount(ctx, mint.key)
		if err != nil {
			return err
		}
		mintData = mintInfo.Data
		keys, derived, err = ata.CreateRootAccounts{
			FundingAccount: funder.key,
			Wallet:         wallet.key,
			Mint:           mintInfo,
		}.Resolve()
	} else {
		keys, derived, err = ata.CreateRootKeys{
			FundingAccount: funder.key,
			Wallet:         wallet.key,
			Mint:           mint.key,
			TokenProgram:   tokenProgram.orDefault(token.ProgramKey),
		}.Resolve()
	}
	if err != nil {
		return err
	}

	space, lamports, err := env.accountRent(ctx, keys.TokenProgram, mintData)
	if err != nil {
		return err
	}

	instructionType := ata.InstructionCreate
	if *idempotent {
		instructionType = ata.InstructionCreateIdempotent
	}

	fmt.Fprintf(env.out, "address        %s\n", base58.Encode(derived.Address))
	fmt.Fprintf(env.out, "bump           %d\n", derived.Bump)
	fmt.Fprintf(env.out, "space          %d\n", space)
	fmt.Fprintf(env.out, "rent           %d\n", lamports)
	printInstruction(env.out, solana.NewInstruction(ata.ProgramKey, ata.Instruction{Type: instructionType}.Encode(), keys.Metas()...))
	return nil
}

func runRecoverNested(ctx context.Context, env *environment, args []string) error {
	var wallet, ownerMint, nestedMint, tokenProgram keyFlag

	fs := flag.NewFlagSet("recover-nested", flag.ContinueOnError)
	fs.Var(&wallet, "wallet", "wallet address")
	fs.Var(&ownerMint, "owner-mint", "mint of the wallet's associated account that owns the nested account")
	fs.Var(&nestedMint, "nested-mint", "mint of the nested account")
	fs.Var(&tokenProgram, "token-program", "token program (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireKeys(map[string]*keyFlag{"wallet": &wallet, "owner-mint": &ownerMint, "nested-mint": &nestedMint}); err != nil {
		return err
	}

	var keys ata.RecoverNestedKeys
	var err error
	if tokenProgram.key == nil && env.client != nil {
		var ownerMintInfo, nestedMintInfo *solana.AccountInfo
		if ownerMintInfo, err = env.mintAccount(ctx, ownerMint.key); err != nil {
			return err
		}
		if nestedMintInfo, err = env.mintAccount(ctx, nestedMint.key); err != nil {
			return err
		}
		keys, _, err = ata.RecoverNestedRootAccounts{
			Wallet:                wallet.key,
			OwnerTokenAccountMint: ownerMintInfo,
			NestedMint:            nestedMintInfo,
		}.Resolve()
	} else {
		keys, _, err = ata.RecoverNestedRootKeys{
			Wallet:                wallet.key,
			OwnerTokenAccountMint: ownerMint.key,
			NestedMint:            nestedMint.key,
			TokenProgram:          tokenProgram.orDefault(token.ProgramKey),
		}.Resolve()
	}
	if err != nil {
		return err
	}

	printInstruction(env.out, solana.NewInstruction(ata.ProgramKey, ata.Instruction{Type: ata.InstructionRecoverNested}.Encode(), keys.Metas()...))
	return nil
}

func printInstruction(out io.Writer, ix solana.Instruction) {
	fmt.Fprintf(out, "program        %s\n", base58.Encode(ix.Program))
	fmt.Fprintf(out, "data           %s\n", base58.Encode(ix.Data))
	for i, meta := range ix.Accounts {
		var flags string
		if meta.IsWritable {
			flags += "w"
		}
		if meta.IsSigner {
			flags += "s"
		}
		fmt.Fprintf(out, "account[%d]     %s %s\n", i, base58.Encode(meta.PublicKey), flags)
	}
}

const (
	simulateFunderLamports = 10_000_000_000
	simulateDecimals       = 6
)

// runSimulate creates two mints in a fresh runtime, creates associated
// accounts for a wallet, nests one account under another and recovers it.
func runSimulate(ctx context.Context, env *environment, args []string) error {
	var tokenProgram keyFlag

	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.Var(&tokenProgram, "token-program", "token program (default legacy token program)")
	amount := fs.Uint64("amount", 1_000_000, "amount minted into the nested account")
	if err := fs.Parse(args); err != nil {
		return err
	}

	program := tokenProgram.orDefault(token.ProgramKey)
	if !token.IsTokenProgram(program) {
		return errors.Errorf("%s is not a token program", base58.Encode(program))
	}

	rt := runtime.New(runtime.WithEnvConfigs())
	rt.RegisterProgram(ata.ProgramKey, ata.NewProcessor(rt, rt.Rent(), ata.WithEnvConfigs()))

	keys, err := generateKeys(4)
	if err != nil {
		return err
	}
	funder, wallet, ownerMint, nestedMint := keys[0], keys[1], keys[2], keys[3]

	rt.SetAccount(&solana.AccountInfo{
		Key:      funder,
		Owner:    system.ProgramKey,
		Lamports: simulateFunderLamports,
	})

	for _, mint := range []ed25519.PublicKey{ownerMint, nestedMint} {
		err := rt.Execute(
			ctx,
			system.CreateAccount(funder, mint, program, rt.Rent().MinimumBalance(token.MintSize), token.MintSize),
			token.InitializeMint2(program, mint, funder, nil, simulateDecimals),
		)
		if err != nil {
			return errors.Wrap(err, "failed to create mint")
		}
	}

	createOwner, ownerAccount, err := ata.NewCreateInstruction(funder, wallet, ownerMint, program)
	if err != nil {
		return err
	}
	createOwnerAgain, _, err := ata.NewCreateIdempotentInstruction(funder, wallet, ownerMint, program)
	if err != nil {
		return err
	}
	if err := rt.Execute(ctx, createOwner, createOwnerAgain); err != nil {
		return errors.Wrap(err, "failed to create owner associated account")
	}
	fmt.Fprintf(env.out, "owner_account  %s\n", base58.Encode(ownerAccount))

	createNested, nestedAccount, err := ata.NewCreateInstruction(funder, ownerAccount, nestedMint, program)
	if err != nil {
		return err
	}
	err = rt.Execute(ctx, createNested, token.MintTo(program, nestedMint, nestedAccount, funder, *amount))
	if err != nil {
		return errors.Wrap(err, "failed to create nested account")
	}
	fmt.Fprintf(env.out, "nested_account %s\n", base58.Encode(nestedAccount))

	createDestination, destination, err := ata.NewCreateInstruction(funder, wallet, nestedMint, program)
	if err != nil {
		return err
	}
	recoverNested, err := ata.NewRecoverNestedInstruction(wallet, ownerMint, nestedMint, program)
	if err != nil {
		return err
	}
	if err := rt.Execute(ctx, createDestination, recoverNested); err != nil {
		return errors.Wrap(err, "failed to recover nested account")
	}

	info, ok := rt.GetAccount(destination)
	if !ok {
		return errors.New("destination account missing after recovery")
	}
	state, err := token.UnpackAccount(info.Data)
	if err != nil {
		return err
	}
	if _, ok := rt.GetAccount(nestedAccount); ok {
		return errors.New("nested account still exists after recovery")
	}

	fmt.Fprintf(env.out, "destination    %s\n", base58.Encode(destination))
	fmt.Fprintf(env.out, "recovered      %d\n", state.Amount)
	fmt.Fprintf(env.out, "wallet_lamports %d\n", accountLamports(rt, wallet))
	return nil
}

func accountLamports(rt *runtime.Runtime, key ed25519.PublicKey) uint64 {
	info, ok := rt.GetAccount(key)
	if !ok {
		return 0
	}
	return info.Lamports
}

func generateKeys(n int) ([]ed25519.PublicKey, error) {
	keys := make([]ed25519.PublicKey, n)
	for i := range keys {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		keys[i] = pub
	}
	return keys, nil
}
