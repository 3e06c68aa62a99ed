package entity

import (
	"crypto/md5"
	"fmt"
	"time"
)

type Marketplace string

const ZilDuckMarketplace Marketplace = "ZilDuck"

type ActionType string

const (
	MarketplaceListingAction     ActionType = "listing"
	MarketplaceDelistingAction   ActionType = "delisting"
	MarketplaceSaleAction        ActionType = "sale"
	MarketplaceOfferAction       ActionType = "offer"
	MarketplaceOfferCancelAction ActionType = "offerCancel"
	MarketplaceOfferAcceptAction ActionType = "offerAccept"
)

// MarketplaceAction is the document indexed for every marketplace transition.
type MarketplaceAction struct {
	Marketplace Marketplace `json:"marketplace"`
	Contract    string      `json:"contract"`
	TokenId     uint64      `json:"tokenId"`
	TxID        string      `json:"txId"`
	Action      ActionType  `json:"action"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	Cost        string      `json:"cost"`
	Fungible    string      `json:"fungible"`
	ListingId   uint64      `json:"listingId,omitempty"`
	OfferId     uint64      `json:"offerId,omitempty"`
	Time        time.Time   `json:"time"`
}

func (a MarketplaceAction) Slug() string {
	return CreateMarketplaceActionSlug(a.TokenId, a.Contract, a.TxID, string(a.Action))
}

func CreateMarketplaceActionSlug(tokenId uint64, contract, txId, action string) string {
	data := []byte(fmt.Sprintf("marketplaceaction-%d-%s-%s-%s", tokenId, contract, txId, action))
	return fmt.Sprintf("%x", md5.Sum(data))
}
