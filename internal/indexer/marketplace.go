package indexer

import (
	"sync"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/elastic_search"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/event"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/factory"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// MarketplaceIndexer projects committed marketplace events into listing, offer
// and action documents.
type MarketplaceIndexer interface {
	HandleEvent(e event.Event)
	Persist() int
}

// listings and offers hold only open records; a record is dropped once it reaches
// a terminal state since no later event refers to it.
type marketplaceIndexer struct {
	elastic  elastic_search.Index
	mu       sync.Mutex
	listings map[uint64]entity.Listing
	offers   map[uint64]entity.Offer
}

func NewMarketplaceIndexer(elastic elastic_search.Index) MarketplaceIndexer {
	return &marketplaceIndexer{
		elastic:  elastic,
		listings: make(map[uint64]entity.Listing),
		offers:   make(map[uint64]entity.Offer),
	}
}

func (i *marketplaceIndexer) HandleEvent(e event.Event) {
	i.mu.Lock()
	defer i.mu.Unlock()

	switch payload := e.Payload.(type) {
	case event.Listed:
		i.indexListing(e, payload)
	case event.ListingCancelled:
		i.indexDelisting(e, payload)
	case event.Sale:
		i.indexSale(e, payload)
	case event.OfferMade:
		i.indexOffer(e, payload)
	case event.OfferCancelled:
		i.indexOfferCancel(e, payload)
	case event.OfferAccepted:
		i.indexOfferAccept(e, payload)
	default:
		zap.L().With(zap.String("type", string(e.Type)), zap.String("txId", e.TxID)).Debug("MarketplaceIndexer: Nothing to index")
		return
	}

	i.elastic.BatchPersist()
}

func (i *marketplaceIndexer) Persist() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.elastic.Persist()
}

func (i *marketplaceIndexer) indexListing(e event.Event, payload event.Listed) {
	listing := entity.Listing{
		ID:        payload.ListingId,
		Contract:  payload.Contract,
		TokenId:   payload.TokenId,
		Seller:    payload.Seller,
		Price:     entity.CopyAmount(payload.Price),
		CreatedAt: e.Time,
		TxID:      e.TxID,
	}
	i.saveListing(listing)
	i.saveAction(factory.CreateListingAction(listing, entity.MarketplaceListingAction, payload.Seller, common.Address{}, e.TxID, e.Time))
}

func (i *marketplaceIndexer) indexDelisting(e event.Event, payload event.ListingCancelled) {
	listing, ok := i.listings[payload.ListingId]
	if !ok {
		listing = entity.Listing{ID: payload.ListingId, Contract: payload.Contract, TokenId: payload.TokenId, Seller: payload.Seller}
	}
	listing.IsCancelled = true

	i.saveListing(listing)
	i.saveAction(factory.CreateListingAction(listing, entity.MarketplaceDelistingAction, common.Address{}, payload.Seller, e.TxID, e.Time))
}

func (i *marketplaceIndexer) indexSale(e event.Event, payload event.Sale) {
	listing, ok := i.listings[payload.ListingId]
	if !ok {
		listing = entity.Listing{ID: payload.ListingId, Contract: payload.Contract, TokenId: payload.TokenId, Seller: payload.Seller, Price: payload.Price}
	}
	listing.IsSold = true

	i.saveListing(listing)
	i.saveAction(factory.CreateListingAction(listing, entity.MarketplaceSaleAction, payload.Seller, payload.Buyer, e.TxID, e.Time))
}

func (i *marketplaceIndexer) indexOffer(e event.Event, payload event.OfferMade) {
	offer := entity.Offer{
		ID:        payload.OfferId,
		Offerer:   payload.Offerer,
		Contract:  payload.Contract,
		TokenId:   payload.TokenId,
		Token:     payload.Token,
		Price:     entity.CopyAmount(payload.Price),
		CreatedAt: e.Time,
		TxID:      e.TxID,
	}
	i.saveOffer(offer)
	i.saveAction(factory.CreateOfferAction(offer, entity.MarketplaceOfferAction, payload.Offerer, common.Address{}, e.TxID, e.Time))
}

func (i *marketplaceIndexer) indexOfferCancel(e event.Event, payload event.OfferCancelled) {
	offer, ok := i.offers[payload.OfferId]
	if !ok {
		zap.L().With(zap.Uint64("offerId", payload.OfferId)).Warn("MarketplaceIndexer: Cancelled offer was never indexed")
		offer = entity.Offer{ID: payload.OfferId, Offerer: payload.Offerer}
	}
	offer.IsCancelled = true

	i.saveOffer(offer)
	i.saveAction(factory.CreateOfferAction(offer, entity.MarketplaceOfferCancelAction, payload.Offerer, common.Address{}, e.TxID, e.Time))
}

func (i *marketplaceIndexer) indexOfferAccept(e event.Event, payload event.OfferAccepted) {
	offer, ok := i.offers[payload.OfferId]
	if !ok {
		offer = entity.Offer{
			ID:       payload.OfferId,
			Offerer:  payload.Offerer,
			Contract: payload.Contract,
			TokenId:  payload.TokenId,
			Token:    payload.Token,
			Price:    payload.Price,
		}
	}
	offer.IsAccepted = true
	i.saveOffer(offer)

	if listing, ok := i.listings[payload.ListingId]; ok && payload.ListingId != 0 {
		listing.IsSold = true
		i.saveListing(listing)
	}

	i.saveAction(factory.CreateOfferAction(offer, entity.MarketplaceOfferAcceptAction, payload.Seller, payload.Offerer, e.TxID, e.Time))
}

func (i *marketplaceIndexer) saveListing(listing entity.Listing) {
	if listing.IsActive() {
		i.listings[listing.ID] = listing
	} else {
		delete(i.listings, listing.ID)
	}
	i.elastic.AddIndexRequest(elastic_search.ListingIndex.Get(), listing)
}

func (i *marketplaceIndexer) saveOffer(offer entity.Offer) {
	if offer.IsActive() {
		i.offers[offer.ID] = offer
	} else {
		delete(i.offers, offer.ID)
	}
	i.elastic.AddIndexRequest(elastic_search.OfferIndex.Get(), offer)
}

func (i *marketplaceIndexer) saveAction(action entity.MarketplaceAction) {
	zap.L().With(
		zap.String("action", string(action.Action)),
		zap.String("contract", action.Contract),
		zap.Uint64("tokenId", action.TokenId),
	).Debug("MarketplaceIndexer: Index action")

	i.elastic.AddIndexRequest(elastic_search.ActionIndex.Get(), action)
}
