// Package market is the marketplace engine: fixed price listings paid in ZIL
// and standing offers paid in a ZRC-2 settlement token.
//
// Every exported operation is atomic. It opens a call on the environment's
// journal, and any error reverts the registries, the native ledger and every
// journaled contract to the state before the call. Operations commit their own
// terminal state before calling a collection or token, so a contract that calls
// back into the market sees the updated records.
//
// A Market is not safe for concurrent use. Concurrent callers go through the
// chain sequencer.
package market

import (
	"math/big"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/contract"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/event"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/fault"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/state"
	"github.com/ethereum/go-ethereum/common"
	uuid "github.com/nu7hatch/gouuid"
	"go.uber.org/zap"
)

type Environment interface {
	Now() time.Time
	Journal() *state.Journal
	NativeLedger() contract.Ledger
	NonFungible(addr common.Address) (contract.NonFungible, error)
	Fungible(addr common.Address) (contract.Fungible, error)
}

type Notifier interface {
	EmitEvent(e event.Event)
}

type Config struct {
	// Address is the marketplace's own account. It custodies listed tokens,
	// collects fees and is the spender of offer allowances.
	Address         common.Address
	Admin           common.Address
	ListingFee      *big.Int
	AcceptanceFee   *big.Int
	OfferValidity   time.Duration
	SettlementToken common.Address
}

// Call carries the caller of an operation and the native amount, in Qa, it remits.
type Call struct {
	Sender common.Address
	Value  *big.Int
}

type Receipt struct {
	TxID      string        `json:"txId"`
	ListingId uint64        `json:"listingId,omitempty"`
	OfferId   uint64        `json:"offerId,omitempty"`
	Events    []event.Event `json:"events"`
}

type Market struct {
	env             Environment
	notifier        Notifier
	escrow          escrow
	address         common.Address
	admin           common.Address
	listingFee      *big.Int
	acceptanceFee   *big.Int
	offerValidity   time.Duration
	settlementToken common.Address

	listings       []*entity.Listing
	offers         []*entity.Offer
	activeListings map[entity.AssetKey]uint64
}

func New(env Environment, cfg Config, notifier Notifier) *Market {
	return &Market{
		env:             env,
		notifier:        notifier,
		escrow:          escrow{address: cfg.Address, ledger: env.NativeLedger()},
		address:         cfg.Address,
		admin:           cfg.Admin,
		listingFee:      entity.CopyAmount(cfg.ListingFee),
		acceptanceFee:   entity.CopyAmount(cfg.AcceptanceFee),
		offerValidity:   cfg.OfferValidity,
		settlementToken: cfg.SettlementToken,
		listings:        make([]*entity.Listing, 0),
		offers:          make([]*entity.Offer, 0),
		activeListings:  make(map[entity.AssetKey]uint64),
	}
}

func (m *Market) Address() common.Address {
	return m.address
}

func (m *Market) Admin() common.Address {
	return m.admin
}

func (m *Market) ListingFee() *big.Int {
	return entity.CopyAmount(m.listingFee)
}

func (m *Market) AcceptanceFee() *big.Int {
	return entity.CopyAmount(m.acceptanceFee)
}

func (m *Market) OfferValidity() time.Duration {
	return m.offerValidity
}

func (m *Market) SettlementToken() common.Address {
	return m.settlementToken
}

// SetSettlementToken changes the token new offers are paid in. Existing offers
// keep settling in the token they were made in.
func (m *Market) SetSettlementToken(call Call, token common.Address) (*Receipt, error) {
	return m.execute("setSettlementToken", call, func(tx *txContext) error {
		if err := requireNotPayable(call); err != nil {
			return err
		}
		if call.Sender != m.admin {
			return fault.New(fault.Authorization, "Market: Only admin")
		}
		if token == (common.Address{}) {
			return fault.New(fault.InvalidArgument, "Market: Invalid token address")
		}

		previous := m.settlementToken
		m.settlementToken = token
		m.journal().Append(func() { m.settlementToken = previous })

		tx.emit(event.SettlementTokenUpdatedEvent, event.SettlementTokenUpdated{Previous: previous, Current: token})
		return nil
	})
}

type txContext struct {
	id      string
	method  string
	call    Call
	now     time.Time
	receipt *Receipt
	market  *Market
}

func (tx *txContext) emit(eventType event.Type, payload interface{}) {
	e := event.Event{Type: eventType, TxID: tx.id, Time: tx.now, Payload: payload}
	tx.receipt.Events = append(tx.receipt.Events, e)

	if tx.market.notifier == nil {
		return
	}
	notifier := tx.market.notifier
	tx.market.journal().OnCommit(func() { notifier.EmitEvent(e) })
}

func (m *Market) execute(method string, call Call, fn func(tx *txContext) error) (*Receipt, error) {
	tx := &txContext{
		id:      newTxID(),
		method:  method,
		call:    call,
		now:     m.env.Now(),
		receipt: &Receipt{Events: make([]event.Event, 0)},
		market:  m,
	}
	tx.receipt.TxID = tx.id

	journal := m.journal()
	snapshot := journal.Begin()

	err := fn(tx)
	journal.End(snapshot, err)

	if err != nil {
		zap.L().With(
			zap.String("method", method),
			zap.String("txId", tx.id),
			zap.String("sender", entity.LowerHex(call.Sender)),
			zap.String("value", entity.CopyAmount(call.Value).String()),
			zap.Error(err),
		).Warn("Market: Call rejected")
		return nil, err
	}

	return tx.receipt, nil
}

func (m *Market) journal() *state.Journal {
	return m.env.Journal()
}

func newTxID() string {
	u, err := uuid.NewV4()
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Market: Failed to generate tx id")
		return ""
	}
	return u.String()
}

func requireNotPayable(call Call) error {
	if call.Value != nil && call.Value.Sign() != 0 {
		return fault.New(fault.InvalidArgument, "Market: Call is not payable")
	}
	return nil
}

func requirePositive(price *big.Int) error {
	if price == nil || price.Sign() <= 0 {
		return fault.New(fault.InvalidArgument, "Market: Price must be greater than zero")
	}
	return nil
}
