package factory

import (
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ethereum/go-ethereum/common"
)

// NativeFungible names the currency listings are priced in.
const NativeFungible = "ZIL"

func CreateListingAction(listing entity.Listing, action entity.ActionType, from, to common.Address, txId string, at time.Time) entity.MarketplaceAction {
	return entity.MarketplaceAction{
		Marketplace: entity.ZilDuckMarketplace,
		Contract:    entity.LowerHex(listing.Contract),
		TokenId:     listing.TokenId,
		TxID:        txId,
		Action:      action,
		From:        addressOrEmpty(from),
		To:          addressOrEmpty(to),
		Cost:        entity.CopyAmount(listing.Price).String(),
		Fungible:    NativeFungible,
		ListingId:   listing.ID,
		Time:        at,
	}
}

func CreateOfferAction(offer entity.Offer, action entity.ActionType, from, to common.Address, txId string, at time.Time) entity.MarketplaceAction {
	return entity.MarketplaceAction{
		Marketplace: entity.ZilDuckMarketplace,
		Contract:    entity.LowerHex(offer.Contract),
		TokenId:     offer.TokenId,
		TxID:        txId,
		Action:      action,
		From:        addressOrEmpty(from),
		To:          addressOrEmpty(to),
		Cost:        entity.CopyAmount(offer.Price).String(),
		Fungible:    addressOrEmpty(offer.Token),
		OfferId:     offer.ID,
		Time:        at,
	}
}

func addressOrEmpty(addr common.Address) string {
	if addr == (common.Address{}) {
		return ""
	}
	return entity.LowerHex(addr)
}
