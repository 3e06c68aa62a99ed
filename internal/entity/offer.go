package entity

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gosimple/slug"
)

type Offer struct {
	ID          uint64         `json:"id"`
	Offerer     common.Address `json:"offererAddress"`
	Contract    common.Address `json:"contract"`
	TokenId     uint64         `json:"tokenId"`
	Token       common.Address `json:"token"`
	Price       *big.Int       `json:"price"`
	CreatedAt   time.Time      `json:"createdAt"`
	IsCancelled bool           `json:"isCancelled"`
	IsAccepted  bool           `json:"isAccepted"`
	TxID        string         `json:"txId"`
}

func (o Offer) IsActive() bool {
	return !o.IsCancelled && !o.IsAccepted
}

// ExpiresAt is the first instant at which the offer can no longer be accepted.
func (o Offer) ExpiresAt(window time.Duration) time.Time {
	return o.CreatedAt.Add(window)
}

func (o Offer) IsExpired(now time.Time, window time.Duration) bool {
	return !now.Before(o.ExpiresAt(window))
}

func (o Offer) Copy() Offer {
	o.Price = CopyAmount(o.Price)
	return o
}

func (o Offer) Slug() string {
	return CreateOfferSlug(o.ID)
}

func CreateOfferSlug(id uint64) string {
	return slug.Make(fmt.Sprintf("offer-%d", id))
}
