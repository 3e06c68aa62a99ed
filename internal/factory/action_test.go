package factory

import (
	"math/big"
	"testing"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

var (
	ducks = common.HexToAddress("0x00000000000000000000000000000000000c0de6")
	wzil  = common.HexToAddress("0x00000000000000000000000000000000000c0de2")
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func TestCreateListingAction(t *testing.T) {
	at := time.Date(2022, time.March, 1, 12, 0, 0, 0, time.UTC)
	listing := entity.Listing{ID: 3, Contract: ducks, TokenId: 7, Seller: alice, Price: big.NewInt(50000000000)}

	action := CreateListingAction(listing, entity.MarketplaceSaleAction, alice, bob, "tx-1", at)

	assert.Equal(t, entity.ZilDuckMarketplace, action.Marketplace)
	assert.Equal(t, "0x00000000000000000000000000000000000c0de6", action.Contract)
	assert.Equal(t, uint64(7), action.TokenId)
	assert.Equal(t, "0x00000000000000000000000000000000000a11ce", action.From)
	assert.Equal(t, "0x0000000000000000000000000000000000000b0b", action.To)
	assert.Equal(t, "50000000000", action.Cost)
	assert.Equal(t, NativeFungible, action.Fungible)
	assert.Equal(t, uint64(3), action.ListingId)
	assert.Equal(t, at, action.Time)
}

func TestCreateOfferAction(t *testing.T) {
	offer := entity.Offer{ID: 2, Offerer: bob, Contract: ducks, TokenId: 7, Token: wzil, Price: big.NewInt(4)}

	action := CreateOfferAction(offer, entity.MarketplaceOfferAction, bob, common.Address{}, "tx-2", time.Time{})

	assert.Equal(t, "", action.To)
	assert.Equal(t, "0x00000000000000000000000000000000000c0de2", action.Fungible)
	assert.Equal(t, uint64(2), action.OfferId)
	assert.NotEqual(t, action.Slug(), CreateOfferAction(offer, entity.MarketplaceOfferCancelAction, bob, common.Address{}, "tx-2", time.Time{}).Slug())
}
