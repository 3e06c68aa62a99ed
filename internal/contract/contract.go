// Package contract declares the capabilities the marketplace needs from the
// contracts it does not own.
package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NonFungible is a ZRC-6 style collection.
type NonFungible interface {
	OwnerOf(tokenId uint64) (common.Address, error)
	IsApprovedForAll(owner, operator common.Address) bool
	// TransferFrom moves tokenId from -> to on behalf of operator. The
	// collection enforces ownership and operator approval itself.
	TransferFrom(operator, from, to common.Address, tokenId uint64) error
}

// Fungible is a ZRC-2 style token.
type Fungible interface {
	BalanceOf(owner common.Address) *big.Int
	Allowance(owner, spender common.Address) *big.Int
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

// Ledger holds native currency balances in Qa.
type Ledger interface {
	BalanceOf(owner common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
}
