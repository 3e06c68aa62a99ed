// Package zrc2 is an in-memory ZRC-2 fungible token. Deposit and Withdraw wrap
// native ZIL one to one, which is how the settlement token is funded.
package zrc2

import (
	"math/big"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/contract"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/fault"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/state"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type Token struct {
	address     common.Address
	name        string
	symbol      string
	decimals    int32
	journal     *state.Journal
	ledger      contract.Ledger
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
}

func NewToken(address common.Address, name, symbol string, decimals int32, journal *state.Journal, ledger contract.Ledger) *Token {
	return &Token{
		address:     address,
		name:        name,
		symbol:      symbol,
		decimals:    decimals,
		journal:     journal,
		ledger:      ledger,
		totalSupply: new(big.Int),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (t *Token) Address() common.Address {
	return t.address
}

func (t *Token) Name() string {
	return t.name
}

func (t *Token) Symbol() string {
	return t.symbol
}

func (t *Token) Decimals() int32 {
	return t.decimals
}

func (t *Token) TotalSupply() *big.Int {
	return entity.CopyAmount(t.totalSupply)
}

func (t *Token) BalanceOf(owner common.Address) *big.Int {
	return entity.CopyAmount(t.balances[owner])
}

func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	return entity.CopyAmount(t.allowances[owner][spender])
}

func (t *Token) Mint(to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	t.setBalance(to, new(big.Int).Add(t.BalanceOf(to), amount))
	t.setSupply(new(big.Int).Add(t.totalSupply, amount))

	return nil
}

// Deposit moves native ZIL from owner into the token contract and mints the
// same amount of tokens to owner.
func (t *Token) Deposit(owner common.Address, amount *big.Int) error {
	if t.ledger == nil {
		return fault.New(fault.InvalidArgument, "ZRC2: Token does not wrap native funds")
	}
	if err := t.ledger.Transfer(owner, t.address, amount); err != nil {
		return err
	}

	zap.L().With(zap.String("token", t.symbol), zap.String("owner", entity.LowerHex(owner)), zap.String("amount", amount.String())).Info("ZRC2: Deposit")
	return t.Mint(owner, amount)
}

func (t *Token) Withdraw(owner common.Address, amount *big.Int) error {
	if t.ledger == nil {
		return fault.New(fault.InvalidArgument, "ZRC2: Token does not wrap native funds")
	}
	if err := validAmount(amount); err != nil {
		return err
	}

	balance := t.BalanceOf(owner)
	if balance.Cmp(amount) < 0 {
		return fault.New(fault.InsufficientFunds, "ZRC2: Insufficient balance")
	}
	t.setBalance(owner, balance.Sub(balance, amount))
	t.setSupply(new(big.Int).Sub(t.totalSupply, amount))

	zap.L().With(zap.String("token", t.symbol), zap.String("owner", entity.LowerHex(owner)), zap.String("amount", amount.String())).Info("ZRC2: Withdraw")
	return t.ledger.Transfer(t.address, owner, amount)
}

func (t *Token) Approve(owner, spender common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	t.setAllowance(owner, spender, entity.CopyAmount(amount))

	return nil
}

func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return t.move(from, to, amount)
}

func (t *Token) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}

	allowance := t.Allowance(from, spender)
	if allowance.Cmp(amount) < 0 {
		return fault.New(fault.InsufficientFunds, "ZRC2: Insufficient allowance")
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	t.setAllowance(from, spender, allowance.Sub(allowance, amount))

	return nil
}

func (t *Token) move(from, to common.Address, amount *big.Int) error {
	balance := t.BalanceOf(from)
	if balance.Cmp(amount) < 0 {
		return fault.New(fault.InsufficientFunds, "ZRC2: Insufficient balance")
	}
	if from == to {
		return nil
	}

	t.setBalance(from, balance.Sub(balance, amount))
	t.setBalance(to, new(big.Int).Add(t.BalanceOf(to), amount))

	zap.L().With(
		zap.String("token", t.symbol),
		zap.String("from", entity.LowerHex(from)),
		zap.String("to", entity.LowerHex(to)),
		zap.String("amount", amount.String()),
	).Debug("ZRC2: Transfer")

	return nil
}

func (t *Token) setBalance(owner common.Address, amount *big.Int) {
	prev, existed := t.balances[owner]
	t.balances[owner] = amount

	t.journal.Append(func() {
		if existed {
			t.balances[owner] = prev
		} else {
			delete(t.balances, owner)
		}
	})
}

func (t *Token) setSupply(amount *big.Int) {
	prev := t.totalSupply
	t.totalSupply = amount
	t.journal.Append(func() { t.totalSupply = prev })
}

func (t *Token) setAllowance(owner, spender common.Address, amount *big.Int) {
	spenders, ok := t.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]*big.Int)
		t.allowances[owner] = spenders
	}
	prev, existed := spenders[spender]
	spenders[spender] = amount

	t.journal.Append(func() {
		if existed {
			spenders[spender] = prev
		} else {
			delete(spenders, spender)
		}
	})
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fault.New(fault.InvalidArgument, "ZRC2: Invalid amount")
	}
	return nil
}
