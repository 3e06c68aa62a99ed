// Package zrc6 is an in-memory ZRC-6 collection used to run the marketplace
// without a node.
package zrc6

import (
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/fault"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/state"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type Collection struct {
	address   common.Address
	name      string
	symbol    string
	journal   *state.Journal
	lastId    uint64
	owners    map[uint64]common.Address
	tokenUris map[uint64]string
	operators map[common.Address]map[common.Address]bool
}

func NewCollection(address common.Address, name, symbol string, journal *state.Journal) *Collection {
	return &Collection{
		address:   address,
		name:      name,
		symbol:    symbol,
		journal:   journal,
		owners:    make(map[uint64]common.Address),
		tokenUris: make(map[uint64]string),
		operators: make(map[common.Address]map[common.Address]bool),
	}
}

func (c *Collection) Address() common.Address {
	return c.address
}

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) Symbol() string {
	return c.symbol
}

// Mint creates the next token id, starting at 1, owned by to.
func (c *Collection) Mint(to common.Address, tokenUri string) (uint64, error) {
	if to == (common.Address{}) {
		return 0, fault.New(fault.InvalidArgument, "ZRC6: mint to the zero address")
	}

	c.lastId++
	tokenId := c.lastId
	c.owners[tokenId] = to
	c.tokenUris[tokenId] = tokenUri

	c.journal.Append(func() {
		delete(c.owners, tokenId)
		delete(c.tokenUris, tokenId)
		c.lastId--
	})

	zap.L().With(
		zap.String("contract", entity.LowerHex(c.address)),
		zap.Uint64("tokenId", tokenId),
		zap.String("to", entity.LowerHex(to)),
	).Info("ZRC6: Minted")

	return tokenId, nil
}

func (c *Collection) OwnerOf(tokenId uint64) (common.Address, error) {
	owner, ok := c.owners[tokenId]
	if !ok {
		return common.Address{}, fault.Newf(fault.NotFound, "ZRC6: Token %d does not exist", tokenId)
	}
	return owner, nil
}

func (c *Collection) TokenURI(tokenId uint64) (string, error) {
	if _, err := c.OwnerOf(tokenId); err != nil {
		return "", err
	}
	return c.tokenUris[tokenId], nil
}

func (c *Collection) Nft(tokenId uint64) (entity.Nft, error) {
	owner, err := c.OwnerOf(tokenId)
	if err != nil {
		return entity.Nft{}, err
	}
	return entity.Nft{Contract: c.address, TokenId: tokenId, TokenUri: c.tokenUris[tokenId], Owner: owner}, nil
}

func (c *Collection) BalanceOf(owner common.Address) uint64 {
	var count uint64
	for _, o := range c.owners {
		if o == owner {
			count++
		}
	}
	return count
}

func (c *Collection) SetApprovalForAll(owner, operator common.Address, approved bool) error {
	if owner == operator {
		return fault.New(fault.InvalidArgument, "ZRC6: approve to caller")
	}

	ops, ok := c.operators[owner]
	if !ok {
		ops = make(map[common.Address]bool)
		c.operators[owner] = ops
	}
	prev, existed := ops[operator]
	ops[operator] = approved

	c.journal.Append(func() {
		if existed {
			ops[operator] = prev
		} else {
			delete(ops, operator)
		}
	})

	return nil
}

func (c *Collection) IsApprovedForAll(owner, operator common.Address) bool {
	return c.operators[owner][operator]
}

func (c *Collection) TransferFrom(operator, from, to common.Address, tokenId uint64) error {
	owner, err := c.OwnerOf(tokenId)
	if err != nil {
		return err
	}
	if owner != from {
		return fault.New(fault.Authorization, "ZRC6: transfer from incorrect owner")
	}
	if operator != from && !c.IsApprovedForAll(from, operator) {
		return fault.New(fault.Authorization, "ZRC6: caller is not token owner or approved")
	}
	if to == (common.Address{}) {
		return fault.New(fault.InvalidArgument, "ZRC6: transfer to the zero address")
	}

	c.owners[tokenId] = to
	c.journal.Append(func() { c.owners[tokenId] = from })

	zap.L().With(
		zap.String("contract", entity.LowerHex(c.address)),
		zap.Uint64("tokenId", tokenId),
		zap.String("from", entity.LowerHex(from)),
		zap.String("to", entity.LowerHex(to)),
	).Debug("ZRC6: Transfer")

	return nil
}
