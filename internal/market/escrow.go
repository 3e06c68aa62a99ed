package market

import (
	"math/big"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/contract"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/fault"
	"github.com/ethereum/go-ethereum/common"
)

// escrow validates and routes funds for both registries. It keeps no state:
// collected fees live in the marketplace's native balance and are never refunded.
type escrow struct {
	address common.Address
	ledger  contract.Ledger
}

// requireRemitted checks that the call remits at least threshold and that the
// sender can cover the whole remitted amount.
func (e escrow) requireRemitted(call Call, threshold *big.Int, reason string) error {
	value := entity.CopyAmount(call.Value)
	if value.Sign() < 0 {
		return fault.New(fault.InvalidArgument, "Market: Invalid value")
	}
	if value.Cmp(entity.CopyAmount(threshold)) < 0 {
		return fault.New(fault.InsufficientFunds, reason)
	}
	if e.ledger.BalanceOf(call.Sender).Cmp(value) < 0 {
		return fault.New(fault.InsufficientFunds, "Market: Insufficient balance")
	}
	return nil
}

// collectFee keeps everything the call remitted as protocol revenue.
func (e escrow) collectFee(call Call) error {
	return e.ledger.Transfer(call.Sender, e.address, entity.CopyAmount(call.Value))
}

// forwardProceeds pays everything the buyer remitted to the seller.
func (e escrow) forwardProceeds(call Call, seller common.Address) error {
	return e.ledger.Transfer(call.Sender, seller, entity.CopyAmount(call.Value))
}

func (e escrow) requireAllowance(token contract.Fungible, owner common.Address, amount *big.Int) error {
	if token.Allowance(owner, e.address).Cmp(amount) < 0 {
		return fault.New(fault.InsufficientFunds, "Market: Insufficient token allowance")
	}
	return nil
}

// requireSettlementFunds re-validates an offer at acceptance, the allowance and
// balance may have changed since the offer was made.
func (e escrow) requireSettlementFunds(token contract.Fungible, owner common.Address, amount *big.Int) error {
	if err := e.requireAllowance(token, owner, amount); err != nil {
		return err
	}
	if token.BalanceOf(owner).Cmp(amount) < 0 {
		return fault.New(fault.InsufficientFunds, "Market: Insufficient token balance")
	}
	return nil
}

func (e escrow) settle(token contract.Fungible, from, to common.Address, amount *big.Int) error {
	return token.TransferFrom(e.address, from, to, amount)
}
