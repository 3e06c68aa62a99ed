package chain

import (
	"math/big"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/fault"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/state"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Ledger holds native ZIL balances in Qa. Every mutation is journaled.
type Ledger struct {
	journal  *state.Journal
	balances map[common.Address]*big.Int
}

func NewLedger(journal *state.Journal) *Ledger {
	return &Ledger{journal: journal, balances: make(map[common.Address]*big.Int)}
}

func (l *Ledger) BalanceOf(owner common.Address) *big.Int {
	return entity.CopyAmount(l.balances[owner])
}

// Credit mints native currency, used for genesis allocations and the faucet.
func (l *Ledger) Credit(owner common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fault.New(fault.InvalidArgument, "Ledger: Invalid amount")
	}
	l.set(owner, new(big.Int).Add(l.BalanceOf(owner), amount))

	zap.L().With(zap.String("account", entity.LowerHex(owner)), zap.String("amount", amount.String())).Debug("Ledger: Credit")
	return nil
}

func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fault.New(fault.InvalidArgument, "Ledger: Invalid amount")
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}

	balance := l.BalanceOf(from)
	if balance.Cmp(amount) < 0 {
		return fault.New(fault.InsufficientFunds, "Ledger: Insufficient balance")
	}

	l.set(from, balance.Sub(balance, amount))
	l.set(to, new(big.Int).Add(l.BalanceOf(to), amount))

	return nil
}

func (l *Ledger) set(owner common.Address, amount *big.Int) {
	prev, existed := l.balances[owner]
	l.balances[owner] = amount

	l.journal.Append(func() {
		if existed {
			l.balances[owner] = prev
		} else {
			delete(l.balances, owner)
		}
	})
}
