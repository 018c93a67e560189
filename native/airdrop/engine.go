package airdrop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
	"github.com/dan-merlea/sc-krogan-public/core/events"
	nhbstate "github.com/dan-merlea/sc-krogan-public/core/state"
	"github.com/dan-merlea/sc-krogan-public/crypto"
	"github.com/dan-merlea/sc-krogan-public/native/bank"
	"github.com/dan-merlea/sc-krogan-public/native/common"
	"github.com/dan-merlea/sc-krogan-public/observability/metrics"
	telemetry "github.com/dan-merlea/sc-krogan-public/observability/otel"
)

// ModuleName is the pause key guarding the airdrop module.
const ModuleName = "airdrop"

var (
	errNilState      = errors.New("airdrop engine: state not configured")
	errZeroOwner     = errors.New("airdrop engine: owner address required")
	errZeroSigner    = errors.New("airdrop engine: signer address required")
	errZeroAddress   = fmt.Errorf("%w: address required", crypto.ErrInvalidAddress)
	errNativeNonce   = fmt.Errorf("%w: native asset cannot carry a nonce", airdrop.ErrInvalidAsset)
	errNoCreditRoute = errors.New("airdrop engine: transferer cannot credit balances")
)

// DefaultVault is the module account holding deposited rewards.
var DefaultVault = crypto.Address(ethcrypto.Keccak256Hash([]byte("module/airdrop/vault")))

type engineState interface {
	AirdropSigner() (crypto.Address, bool, error)
	AirdropSetSigner(addr crypto.Address) error
	AirdropOwner() (crypto.Address, bool, error)
	AirdropSetOwner(addr crypto.Address) error
	AirdropCheckpointGet(pool airdrop.PoolID) (*airdrop.Checkpoint, bool, error)
	AirdropCheckpointPut(pool airdrop.PoolID, cp *airdrop.Checkpoint) error
	AirdropPoolOwner(pool airdrop.PoolID) (crypto.Address, bool, error)
	AirdropSetPoolOwner(pool airdrop.PoolID, owner crypto.Address) error
	AirdropClaimed(claimant crypto.Address, pool airdrop.PoolID) (bool, error)
	AirdropMarkClaimed(claimant crypto.Address, pool airdrop.PoolID) error
	AirdropWhitelisted(addr crypto.Address) (bool, error)
	AirdropSetWhitelisted(addr crypto.Address, listed bool) error
	bank.BalanceState
}

// StagedState is a transactional view. Nothing it writes is visible outside
// until Commit.
type StagedState interface {
	engineState
	Commit() error
	Discard()
}

// Store is the committed state plus the ability to open a staged view.
type Store interface {
	engineState
	Stage() StagedState
}

type managerStore struct {
	*nhbstate.Manager
}

func (s managerStore) Stage() StagedState { return s.Manager.Begin() }

// StateStore adapts a state manager to the engine's Store.
func StateStore(m *nhbstate.Manager) Store {
	return managerStore{Manager: m}
}

// Transferer moves balances on behalf of the engine.
type Transferer interface {
	Transfer(st bank.BalanceState, from, to crypto.Address, payment airdrop.Payment) error
	MultiTransfer(st bank.BalanceState, from, to crypto.Address, payments []airdrop.Payment) error
}

type creditor interface {
	Credit(st bank.BalanceState, addr crypto.Address, payment airdrop.Payment) error
}

// SettlementSink receives committed settlements, e.g. for history indexing.
type SettlementSink interface {
	RecordSettlement(ctx context.Context, settlement *Settlement) error
}

// SettlementSinks fans a settlement out to every sink in order. All sinks are
// attempted; their errors are joined.
type SettlementSinks []SettlementSink

func (s SettlementSinks) RecordSettlement(ctx context.Context, settlement *Settlement) error {
	var errs []error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.RecordSettlement(ctx, settlement); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Engine settles signature-authorised reward claims against registered
// checkpoints.
type Engine struct {
	mu       sync.Mutex
	state    Store
	emitter  events.Emitter
	transfer Transferer
	verifier Verifier
	metrics  *metrics.AirdropMetrics
	pauses   common.PauseView
	sink     SettlementSink
	logger   *slog.Logger
	clock    clockwork.Clock
	vault    crypto.Address
	maxBatch int
}

// NewEngine constructs an airdrop engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		transfer: bank.NewLedger(),
		verifier: Ed25519Verifier{},
		logger:   slog.Default(),
		clock:    clockwork.NewRealClock(),
		vault:    DefaultVault,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state Store) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetTransferer overrides the balance mover.
func (e *Engine) SetTransferer(t Transferer) {
	if t == nil {
		e.transfer = bank.NewLedger()
		return
	}
	e.transfer = t
}

// SetVerifier overrides the claim signature verifier.
func (e *Engine) SetVerifier(v Verifier) {
	if v == nil {
		e.verifier = Ed25519Verifier{}
		return
	}
	e.verifier = v
}

func (e *Engine) SetMetrics(m *metrics.AirdropMetrics) { e.metrics = m }

func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

func (e *Engine) SetSettlementSink(sink SettlementSink) { e.sink = sink }

func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetClock overrides the time source used for deterministic testing.
func (e *Engine) SetClock(clock clockwork.Clock) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	e.clock = clock
}

// SetVault configures the module account holding deposits.
func (e *Engine) SetVault(addr crypto.Address) { e.vault = addr }

// Vault returns the module account holding deposits.
func (e *Engine) Vault() crypto.Address { return e.vault }

// SetMaxBatch bounds the number of entries per claim. Zero disables the bound.
func (e *Engine) SetMaxBatch(n int) {
	if n < 0 {
		n = 0
	}
	e.maxBatch = n
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.clock == nil {
		return clockwork.NewRealClock().Now().Unix()
	}
	return e.clock.Now().Unix()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) guard() error {
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return fmt.Errorf("airdrop: %w", err)
	}
	return nil
}

// Init records the module owner and claim signer. Each value is only written
// when absent, so re-running Init against existing state is a no-op.
func (e *Engine) Init(owner, signer crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if owner.IsZero() {
		return errZeroOwner
	}
	if signer.IsZero() {
		return errZeroSigner
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := e.state.Stage()
	defer tx.Discard()
	if _, ok, err := tx.AirdropOwner(); err != nil {
		return err
	} else if !ok {
		if err := tx.AirdropSetOwner(owner); err != nil {
			return err
		}
	}
	if _, ok, err := tx.AirdropSigner(); err != nil {
		return err
	} else if !ok {
		if err := tx.AirdropSetSigner(signer); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func requireOwner(st engineState, caller crypto.Address) (crypto.Address, error) {
	owner, ok, err := st.AirdropOwner()
	if err != nil {
		return crypto.Address{}, err
	}
	if !ok {
		return crypto.Address{}, airdrop.ErrNotInitialised
	}
	if caller != owner {
		return crypto.Address{}, airdrop.ErrUnauthorized
	}
	return owner, nil
}

// ChangeSigner rotates the key authorising claims.
func (e *Engine) ChangeSigner(caller, signer crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if signer.IsZero() {
		return errZeroSigner
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := e.state.Stage()
	defer tx.Discard()
	if _, err := requireOwner(tx, caller); err != nil {
		return err
	}
	previous, _, err := tx.AirdropSigner()
	if err != nil {
		return err
	}
	if err := tx.AirdropSetSigner(signer); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.emit(events.AirdropSignerChanged{Previous: previous, Signer: signer})
	return nil
}

// Whitelist allows addr to create checkpoints.
func (e *Engine) Whitelist(caller, addr crypto.Address) error {
	return e.setWhitelisted(caller, addr, true)
}

// RemoveWhitelist revokes addr. Checkpoints addr already created stop paying
// out until it is allow-listed again.
func (e *Engine) RemoveWhitelist(caller, addr crypto.Address) error {
	return e.setWhitelisted(caller, addr, false)
}

func (e *Engine) setWhitelisted(caller, addr crypto.Address, listed bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if addr.IsZero() {
		return errZeroAddress
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := e.state.Stage()
	defer tx.Discard()
	if _, err := requireOwner(tx, caller); err != nil {
		return err
	}
	if err := tx.AirdropSetWhitelisted(addr, listed); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.emit(events.AirdropWhitelistChanged{Address: addr, Added: listed})
	return nil
}

// CreateCheckpoint registers a reward pool funded by deposit, which moves from
// caller into the module vault.
func (e *Engine) CreateCheckpoint(caller crypto.Address, pool airdrop.PoolID, totalUnits *big.Int, deposit airdrop.Payment) (*airdrop.Checkpoint, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := e.state.Stage()
	defer tx.Discard()

	_, exists, err := tx.AirdropCheckpointGet(pool)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, airdrop.ErrDuplicatePool
	}
	listed, err := tx.AirdropWhitelisted(caller)
	if err != nil {
		return nil, err
	}
	if !listed {
		return nil, airdrop.ErrUnauthorized
	}
	if deposit.Amount == nil || deposit.Amount.Sign() <= 0 {
		return nil, airdrop.ErrInvalidAmount
	}
	if totalUnits == nil || totalUnits.Sign() <= 0 {
		return nil, fmt.Errorf("%w: total eligible units must be positive", airdrop.ErrInvalidAmount)
	}
	asset, err := airdrop.NormalizeAsset(deposit.Asset)
	if err != nil {
		return nil, err
	}
	if asset == airdrop.NativeAsset && deposit.Nonce != 0 {
		return nil, errNativeNonce
	}
	deposit = airdrop.Payment{Asset: asset, Nonce: deposit.Nonce, Amount: new(big.Int).Set(deposit.Amount)}

	if err := e.transfer.Transfer(tx, caller, e.vault, deposit); err != nil {
		return nil, fmt.Errorf("airdrop: deposit: %w", err)
	}
	cp := &airdrop.Checkpoint{
		TotalEligibleUnits: new(big.Int).Set(totalUnits),
		RewardAsset:        asset,
		RewardAmount:       new(big.Int).Set(deposit.Amount),
		AssetNonce:         deposit.Nonce,
	}
	if err := tx.AirdropCheckpointPut(pool, cp); err != nil {
		return nil, err
	}
	if err := tx.AirdropSetPoolOwner(pool, caller); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.metrics.ObserveCheckpoint(asset)
	e.emit(events.AirdropCheckpointCreated{Pool: pool, Owner: caller, Checkpoint: cp.Clone(), CreatedAt: e.now()})
	return cp.Clone(), nil
}

// Claim settles a batch of entries for caller. Either every entry settles and
// all payments execute, or nothing is persisted.
func (e *Engine) Claim(ctx context.Context, caller crypto.Address, entries []airdrop.ClaimEntry) (*Settlement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	e.metrics.ObserveBatch(len(entries))
	if e.maxBatch > 0 && len(entries) > e.maxBatch {
		e.metrics.ObserveRejected("batch_too_large")
		return nil, fmt.Errorf("%w: %d entries exceeds limit %d", airdrop.ErrBatchTooLarge, len(entries), e.maxBatch)
	}

	ctx, span := telemetry.Tracer("nhb/airdrop").Start(ctx, "airdrop.claim",
		trace.WithAttributes(
			attribute.String("claimant", caller.String()),
			attribute.Int("entries", len(entries)),
		))
	defer span.End()

	e.mu.Lock()
	settlement, err := e.settle(caller, entries)
	e.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, rejectionReason(err))
		e.metrics.ObserveRejected(rejectionReason(err))
		return nil, err
	}
	if len(entries) == 0 {
		return settlement, nil
	}

	fungible, indexed := 0, 0
	for _, p := range settlement.Transfers {
		if p.IsIndexed() {
			indexed++
		} else {
			fungible++
		}
	}
	e.metrics.ObserveSettled(len(entries), settlement.Native, fungible, indexed)
	e.emit(events.AirdropRewardsClaimed{
		Settlement: settlement.ID,
		Claimant:   caller,
		Entries:    len(entries),
		Native:     new(big.Int).Set(settlement.Native),
		Transfers:  len(settlement.Transfers),
	})
	if e.sink != nil {
		if err := e.sink.RecordSettlement(ctx, settlement); err != nil {
			e.logger.Warn("record settlement failed",
				slog.String("settlement", airdrop.PoolID(settlement.ID).String()),
				slog.String("claimant", caller.String()),
				slog.Any("error", err))
		}
	}
	return settlement, nil
}

func (e *Engine) settle(caller crypto.Address, entries []airdrop.ClaimEntry) (*Settlement, error) {
	settledAt := e.now()
	settlement := &Settlement{
		ID:        settlementID(caller, entries, settledAt),
		Claimant:  caller,
		Native:    big.NewInt(0),
		SettledAt: settledAt,
	}
	if len(entries) == 0 {
		root, err := ComputeTransferRoot(nil)
		if err != nil {
			return nil, err
		}
		settlement.TransferRoot = root
		return settlement, nil
	}

	signer, ok, err := e.state.AirdropSigner()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, airdrop.ErrSignerNotSet
	}

	tx := e.state.Stage()
	defer tx.Discard()

	coalescer := NewCoalescer()
	settlement.Rewards = make([]EntryReward, 0, len(entries))
	for i, entry := range entries {
		reward, err := e.processEntry(tx, signer, caller, entry)
		if err != nil {
			return nil, fmt.Errorf("airdrop: entry %d: %w", i, err)
		}
		settlement.Rewards = append(settlement.Rewards, EntryReward{Pool: entry.Pool, Units: entry.Units, Reward: reward.Clone()})
		coalescer.Add(reward)
	}

	native, transfers := coalescer.Finish()
	settlement.Native = native
	settlement.Transfers = make([]airdrop.Payment, 0, len(transfers))
	for _, p := range transfers {
		if p.Amount.Sign() > 0 {
			settlement.Transfers = append(settlement.Transfers, p)
		}
	}

	if native.Sign() > 0 {
		payment := airdrop.Payment{Asset: airdrop.NativeAsset, Amount: new(big.Int).Set(native)}
		if err := e.transfer.Transfer(tx, e.vault, caller, payment); err != nil {
			return nil, fmt.Errorf("%w: %w", airdrop.ErrSettlementFailed, err)
		}
	}
	if len(settlement.Transfers) > 0 {
		if err := e.transfer.MultiTransfer(tx, e.vault, caller, settlement.Transfers); err != nil {
			return nil, fmt.Errorf("%w: %w", airdrop.ErrSettlementFailed, err)
		}
	}

	root, err := ComputeTransferRoot(settlement.Payments())
	if err != nil {
		return nil, err
	}
	settlement.TransferRoot = root

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return settlement, nil
}

func (e *Engine) processEntry(tx StagedState, signer, caller crypto.Address, entry airdrop.ClaimEntry) (airdrop.Payment, error) {
	owner, hasOwner, err := tx.AirdropPoolOwner(entry.Pool)
	if err != nil {
		return airdrop.Payment{}, err
	}
	if hasOwner {
		listed, err := tx.AirdropWhitelisted(owner)
		if err != nil {
			return airdrop.Payment{}, err
		}
		if !listed {
			return airdrop.Payment{}, airdrop.ErrOwnerNotWhitelisted
		}
	}
	if !e.verifier.Verify(signer, caller, entry.Pool, entry.Units, entry.Signature) {
		return airdrop.Payment{}, airdrop.ErrInvalidSignature
	}
	claimed, err := tx.AirdropClaimed(caller, entry.Pool)
	if err != nil {
		return airdrop.Payment{}, err
	}
	if claimed {
		return airdrop.Payment{}, airdrop.ErrAlreadyClaimed
	}
	cp, ok, err := tx.AirdropCheckpointGet(entry.Pool)
	if err != nil {
		return airdrop.Payment{}, err
	}
	if !ok {
		return airdrop.Payment{}, airdrop.ErrUnknownPool
	}
	amount, err := CalculateReward(cp.RewardAmount, entry.Units, cp.TotalEligibleUnits)
	if err != nil {
		return airdrop.Payment{}, err
	}
	if err := tx.AirdropMarkClaimed(caller, entry.Pool); err != nil {
		return airdrop.Payment{}, err
	}
	return airdrop.Payment{Asset: cp.RewardAsset, Nonce: cp.AssetNonce, Amount: amount}, nil
}

// WithdrawAll sends the vault's full balance of (asset, nonce) to the owner.
// An empty asset selects the native currency.
func (e *Engine) WithdrawAll(caller crypto.Address, asset string, nonce uint64) (airdrop.Payment, error) {
	if err := e.ready(); err != nil {
		return airdrop.Payment{}, err
	}
	if asset == "" {
		asset = airdrop.NativeAsset
	}
	normalized, err := airdrop.NormalizeAsset(asset)
	if err != nil {
		return airdrop.Payment{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := e.state.Stage()
	defer tx.Discard()
	owner, err := requireOwner(tx, caller)
	if err != nil {
		return airdrop.Payment{}, err
	}
	balance, err := tx.Balance(e.vault, normalized, nonce)
	if err != nil {
		return airdrop.Payment{}, err
	}
	if balance.Sign() == 0 {
		return airdrop.Payment{}, airdrop.ErrNothingToWithdraw
	}
	payment := airdrop.Payment{Asset: normalized, Nonce: nonce, Amount: balance}
	if err := e.transfer.Transfer(tx, e.vault, owner, payment); err != nil {
		return airdrop.Payment{}, err
	}
	if err := tx.Commit(); err != nil {
		return airdrop.Payment{}, err
	}
	e.metrics.ObserveWithdrawal(normalized)
	e.emit(events.AirdropWithdrawn{Owner: owner, Asset: normalized, Nonce: nonce, Amount: new(big.Int).Set(balance)})
	return payment.Clone(), nil
}

// Credit records an external deposit of payment into addr. Only the owner may
// credit balances.
func (e *Engine) Credit(caller, addr crypto.Address, payment airdrop.Payment) error {
	if err := e.ready(); err != nil {
		return err
	}
	c, ok := e.transfer.(creditor)
	if !ok {
		return errNoCreditRoute
	}
	if addr.IsZero() {
		return errZeroAddress
	}
	asset, err := airdrop.NormalizeAsset(payment.Asset)
	if err != nil {
		return err
	}
	payment.Asset = asset
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := e.state.Stage()
	defer tx.Discard()
	if _, err := requireOwner(tx, caller); err != nil {
		return err
	}
	if err := c.Credit(tx, addr, payment); err != nil {
		return err
	}
	return tx.Commit()
}

// Checkpoint returns a copy of the checkpoint registered under pool.
func (e *Engine) Checkpoint(pool airdrop.PoolID) (*airdrop.Checkpoint, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cp, ok, err := e.state.AirdropCheckpointGet(pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, airdrop.ErrUnknownPool
	}
	return cp.Clone(), nil
}

// Claimed reports whether claimant already claimed pool.
func (e *Engine) Claimed(claimant crypto.Address, pool airdrop.PoolID) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.state.AirdropClaimed(claimant, pool)
}

func (e *Engine) Signer() (crypto.Address, error) {
	if err := e.ready(); err != nil {
		return crypto.Address{}, err
	}
	signer, ok, err := e.state.AirdropSigner()
	if err != nil {
		return crypto.Address{}, err
	}
	if !ok {
		return crypto.Address{}, airdrop.ErrSignerNotSet
	}
	return signer, nil
}

func (e *Engine) Owner() (crypto.Address, error) {
	if err := e.ready(); err != nil {
		return crypto.Address{}, err
	}
	owner, ok, err := e.state.AirdropOwner()
	if err != nil {
		return crypto.Address{}, err
	}
	if !ok {
		return crypto.Address{}, airdrop.ErrNotInitialised
	}
	return owner, nil
}

func (e *Engine) Whitelisted(addr crypto.Address) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.state.AirdropWhitelisted(addr)
}

// PoolOwner returns the address that created pool.
func (e *Engine) PoolOwner(pool airdrop.PoolID) (crypto.Address, error) {
	if err := e.ready(); err != nil {
		return crypto.Address{}, err
	}
	owner, ok, err := e.state.AirdropPoolOwner(pool)
	if err != nil {
		return crypto.Address{}, err
	}
	if !ok {
		return crypto.Address{}, airdrop.ErrUnknownPool
	}
	return owner, nil
}

func (e *Engine) Balance(addr crypto.Address, asset string, nonce uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	normalized, err := airdrop.NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	return e.state.Balance(addr, normalized, nonce)
}

func (e *Engine) VaultBalance(asset string, nonce uint64) (*big.Int, error) {
	return e.Balance(e.vault, asset, nonce)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, airdrop.ErrOwnerNotWhitelisted):
		return "owner_not_whitelisted"
	case errors.Is(err, airdrop.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, airdrop.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, airdrop.ErrUnknownPool):
		return "unknown_pool"
	case errors.Is(err, airdrop.ErrDivisionByZero):
		return "division_by_zero"
	case errors.Is(err, airdrop.ErrSettlementFailed):
		return "settlement_failed"
	case errors.Is(err, airdrop.ErrSignerNotSet):
		return "signer_not_set"
	default:
		return "internal"
	}
}
