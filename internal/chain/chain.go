package chain

import (
	"sync"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/contract"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/fault"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/state"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Chain is the execution environment of the marketplace: the native ledger,
// the deployed contracts, the clock and the sequencer that totally orders calls.
type Chain struct {
	mu        sync.Mutex
	journal   *state.Journal
	ledger    *Ledger
	clock     Clock
	contracts map[common.Address]interface{}
}

func New(clock Clock) *Chain {
	if clock == nil {
		clock = SystemClock{}
	}
	journal := state.NewJournal()

	return &Chain{
		journal:   journal,
		ledger:    NewLedger(journal),
		clock:     clock,
		contracts: make(map[common.Address]interface{}),
	}
}

func (c *Chain) Now() time.Time {
	return c.clock.Now()
}

func (c *Chain) Journal() *state.Journal {
	return c.journal
}

func (c *Chain) Ledger() *Ledger {
	return c.ledger
}

func (c *Chain) NativeLedger() contract.Ledger {
	return c.ledger
}

// Deploy registers a contract at addr, replacing any contract already there.
func (c *Chain) Deploy(addr common.Address, ct interface{}) {
	c.contracts[addr] = ct
	zap.L().With(zap.String("address", entity.LowerHex(addr))).Info("Chain: Contract deployed")
}

func (c *Chain) Contract(addr common.Address) (interface{}, bool) {
	ct, ok := c.contracts[addr]
	return ct, ok
}

func (c *Chain) NonFungible(addr common.Address) (contract.NonFungible, error) {
	ct, ok := c.contracts[addr]
	if !ok {
		return nil, fault.Newf(fault.NotFound, "Chain: No contract at %s", entity.LowerHex(addr))
	}
	nft, ok := ct.(contract.NonFungible)
	if !ok {
		return nil, fault.Newf(fault.InvalidArgument, "Chain: %s is not a ZRC6 contract", entity.LowerHex(addr))
	}
	return nft, nil
}

func (c *Chain) Fungible(addr common.Address) (contract.Fungible, error) {
	ct, ok := c.contracts[addr]
	if !ok {
		return nil, fault.Newf(fault.NotFound, "Chain: No contract at %s", entity.LowerHex(addr))
	}
	token, ok := ct.(contract.Fungible)
	if !ok {
		return nil, fault.Newf(fault.InvalidArgument, "Chain: %s is not a ZRC2 contract", entity.LowerHex(addr))
	}
	return token, nil
}

// Do runs fn as one sequenced, atomic unit. Calls from concurrent goroutines
// are executed one at a time; an error reverts everything fn changed.
func (c *Chain) Do(fn func() error) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := c.journal.Begin()
	defer func() {
		if r := recover(); r != nil {
			c.journal.End(snapshot, fault.New(fault.StateConflict, "Chain: call panicked"))
			panic(r)
		}
		c.journal.End(snapshot, err)
	}()

	return fn()
}
