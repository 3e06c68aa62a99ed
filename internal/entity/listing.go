package entity

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gosimple/slug"
)

type Listing struct {
	ID          uint64         `json:"id"`
	Contract    common.Address `json:"contract"`
	TokenId     uint64         `json:"tokenId"`
	Seller      common.Address `json:"ownerAddress"`
	Price       *big.Int       `json:"price"`
	IsCancelled bool           `json:"isCancelled"`
	IsSold      bool           `json:"isSold"`
	CreatedAt   time.Time      `json:"createdAt"`
	TxID        string         `json:"txId"`
}

func (l Listing) IsActive() bool {
	return !l.IsCancelled && !l.IsSold
}

func (l Listing) Copy() Listing {
	l.Price = CopyAmount(l.Price)
	return l
}

func (l Listing) Slug() string {
	return CreateListingSlug(l.ID)
}

func CreateListingSlug(id uint64) string {
	return slug.Make(fmt.Sprintf("listing-%d", id))
}
