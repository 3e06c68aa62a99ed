package event

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Type string

const (
	ListedEvent                 Type = "Listed"
	ListingCancelledEvent       Type = "ListingCancelled"
	SaleEvent                   Type = "Sale"
	OfferMadeEvent              Type = "OfferMade"
	OfferCancelledEvent         Type = "OfferCancelled"
	OfferAcceptedEvent          Type = "OfferAccepted"
	SettlementTokenUpdatedEvent Type = "SettlementTokenUpdated"
)

// Event is one notification emitted by a committed marketplace call.
type Event struct {
	Type    Type        `json:"type"`
	TxID    string      `json:"txId"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload"`
}

type Listed struct {
	ListingId uint64         `json:"listingId"`
	Seller    common.Address `json:"seller"`
	Contract  common.Address `json:"nftContractAddress"`
	TokenId   uint64         `json:"tokenId"`
	Price     *big.Int       `json:"price"`
}

type ListingCancelled struct {
	ListingId uint64         `json:"listingId"`
	Seller    common.Address `json:"seller"`
	Contract  common.Address `json:"nftContractAddress"`
	TokenId   uint64         `json:"tokenId"`
}

type Sale struct {
	ListingId uint64         `json:"listingId"`
	Seller    common.Address `json:"seller"`
	Buyer     common.Address `json:"buyer"`
	Contract  common.Address `json:"nftContractAddress"`
	TokenId   uint64         `json:"tokenId"`
	Price     *big.Int       `json:"price"`
}

type OfferMade struct {
	OfferId  uint64         `json:"offerId"`
	Offerer  common.Address `json:"offerer"`
	Contract common.Address `json:"nftContractAddress"`
	TokenId  uint64         `json:"tokenId"`
	Token    common.Address `json:"token"`
	Price    *big.Int       `json:"price"`
}

type OfferCancelled struct {
	OfferId uint64         `json:"offerId"`
	Offerer common.Address `json:"offerer"`
}

// OfferAccepted carries the id of the listing it closed, zero when the token was not listed.
type OfferAccepted struct {
	OfferId   uint64         `json:"offerId"`
	Offerer   common.Address `json:"offerer"`
	Seller    common.Address `json:"seller"`
	Contract  common.Address `json:"nftContractAddress"`
	TokenId   uint64         `json:"tokenId"`
	Token     common.Address `json:"token"`
	Price     *big.Int       `json:"price"`
	ListingId uint64         `json:"listingId,omitempty"`
}

type SettlementTokenUpdated struct {
	Previous common.Address `json:"previous"`
	Current  common.Address `json:"current"`
}
