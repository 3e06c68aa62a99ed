package api

import (
	"math/big"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/event"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/market"
	"github.com/ethereum/go-ethereum/common"
)

type addressView struct {
	Hex    string `json:"hex"`
	Bech32 string `json:"bech32"`
}

func newAddressView(addr common.Address) addressView {
	return addressView{Hex: entity.LowerHex(addr), Bech32: entity.Bech32(addr)}
}

type amountView struct {
	Raw     string `json:"raw"`
	Decimal string `json:"decimal"`
}

func newAmountView(amount *big.Int, decimals int32) amountView {
	return amountView{Raw: entity.CopyAmount(amount).String(), Decimal: entity.FormatUnits(amount, decimals)}
}

type listingView struct {
	ID          uint64      `json:"id"`
	Contract    addressView `json:"contract"`
	TokenId     uint64      `json:"tokenId"`
	Seller      addressView `json:"ownerAddress"`
	Price       amountView  `json:"price"`
	IsCancelled bool        `json:"isCancelled"`
	IsSold      bool        `json:"isSold"`
	CreatedAt   time.Time   `json:"createdAt"`
	TxID        string      `json:"txId"`
}

func newListingView(l entity.Listing) listingView {
	return listingView{
		ID:          l.ID,
		Contract:    newAddressView(l.Contract),
		TokenId:     l.TokenId,
		Seller:      newAddressView(l.Seller),
		Price:       newAmountView(l.Price, entity.ZilDecimals),
		IsCancelled: l.IsCancelled,
		IsSold:      l.IsSold,
		CreatedAt:   l.CreatedAt,
		TxID:        l.TxID,
	}
}

type offerView struct {
	ID          uint64      `json:"id"`
	Offerer     addressView `json:"offererAddress"`
	Contract    addressView `json:"contract"`
	TokenId     uint64      `json:"tokenId"`
	Token       addressView `json:"token"`
	Price       amountView  `json:"price"`
	CreatedAt   time.Time   `json:"createdAt"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	IsExpired   bool        `json:"isExpired"`
	IsCancelled bool        `json:"isCancelled"`
	IsAccepted  bool        `json:"isAccepted"`
	TxID        string      `json:"txId"`
}

func newOfferView(o entity.Offer, decimals int32, now time.Time, window time.Duration) offerView {
	return offerView{
		ID:          o.ID,
		Offerer:     newAddressView(o.Offerer),
		Contract:    newAddressView(o.Contract),
		TokenId:     o.TokenId,
		Token:       newAddressView(o.Token),
		Price:       newAmountView(o.Price, decimals),
		CreatedAt:   o.CreatedAt,
		ExpiresAt:   o.ExpiresAt(window),
		IsExpired:   o.IsExpired(now, window),
		IsCancelled: o.IsCancelled,
		IsAccepted:  o.IsAccepted,
		TxID:        o.TxID,
	}
}

type receiptView struct {
	TxID      string        `json:"txId"`
	ListingId uint64        `json:"listingId,omitempty"`
	OfferId   uint64        `json:"offerId,omitempty"`
	Events    []event.Event `json:"events"`
}

func newReceiptView(r *market.Receipt) receiptView {
	return receiptView{TxID: r.TxID, ListingId: r.ListingId, OfferId: r.OfferId, Events: r.Events}
}

type nftView struct {
	Contract     addressView  `json:"contract"`
	TokenId      uint64       `json:"tokenId"`
	TokenUri     string       `json:"tokenUri,omitempty"`
	Owner        addressView  `json:"owner"`
	RightsHolder addressView  `json:"rightsHolder"`
	Listing      *listingView `json:"listing,omitempty"`
	Offers       []offerView  `json:"offers"`
}

type configView struct {
	Address         addressView `json:"address"`
	Admin           addressView `json:"admin"`
	ListingFee      amountView  `json:"listingFee"`
	AcceptanceFee   amountView  `json:"acceptanceFee"`
	OfferValidity   string      `json:"offerValidity"`
	SettlementToken addressView `json:"settlementToken"`
}

type accountView struct {
	Address addressView `json:"address"`
	Balance amountView  `json:"balance"`
}

type errorView struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
