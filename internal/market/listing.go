package market

import (
	"math/big"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/event"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/fault"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// PutOnSale takes custody of a token and lists it at a fixed price in Qa.
// The call must remit at least the listing fee, all of which is retained.
func (m *Market) PutOnSale(call Call, collection common.Address, tokenId uint64, price *big.Int) (*Receipt, error) {
	return m.execute("putOnSale", call, func(tx *txContext) error {
		if err := m.escrow.requireRemitted(call, m.listingFee, "Market: Listing fee must be sent"); err != nil {
			return err
		}
		if err := requirePositive(price); err != nil {
			return err
		}
		nft, err := m.env.NonFungible(collection)
		if err != nil {
			return err
		}
		if _, listed := m.activeListings[entity.AssetKey{Contract: collection, TokenId: tokenId}]; listed {
			return fault.New(fault.StateConflict, "Market: Token is already listed")
		}

		listing := m.appendListing(&entity.Listing{
			Contract:  collection,
			TokenId:   tokenId,
			Seller:    call.Sender,
			Price:     entity.CopyAmount(price),
			CreatedAt: tx.now,
			TxID:      tx.id,
		})
		tx.receipt.ListingId = listing.ID

		if err := m.escrow.collectFee(call); err != nil {
			return err
		}
		if err := nft.TransferFrom(m.address, call.Sender, m.address, tokenId); err != nil {
			return err
		}

		zap.L().With(
			zap.Uint64("listingId", listing.ID),
			zap.String("contract", entity.LowerHex(collection)),
			zap.Uint64("tokenId", tokenId),
		).Info("Market: Token listed")

		tx.emit(event.ListedEvent, event.Listed{
			ListingId: listing.ID,
			Seller:    listing.Seller,
			Contract:  collection,
			TokenId:   tokenId,
			Price:     entity.CopyAmount(price),
		})
		return nil
	})
}

// CancelSale returns a listed token to its seller. The listing fee is not refunded.
func (m *Market) CancelSale(call Call, listingId uint64) (*Receipt, error) {
	return m.execute("cancelSale", call, func(tx *txContext) error {
		if err := requireNotPayable(call); err != nil {
			return err
		}
		listing, err := m.listing(listingId)
		if err != nil {
			return err
		}
		if listing.IsCancelled {
			return fault.New(fault.StateConflict, "Market: Listing is already cancelled")
		}
		if listing.IsSold {
			return fault.New(fault.StateConflict, "Market: Listing is already sold")
		}
		if listing.Seller != call.Sender {
			return fault.New(fault.Authorization, "Market: Not listing owner")
		}
		nft, err := m.env.NonFungible(listing.Contract)
		if err != nil {
			return err
		}

		m.markListingCancelled(listing)
		tx.receipt.ListingId = listing.ID

		if err := nft.TransferFrom(m.address, m.address, listing.Seller, listing.TokenId); err != nil {
			return err
		}

		tx.emit(event.ListingCancelledEvent, event.ListingCancelled{
			ListingId: listing.ID,
			Seller:    listing.Seller,
			Contract:  listing.Contract,
			TokenId:   listing.TokenId,
		})
		return nil
	})
}

// BuyNFT pays for an active listing. Everything the buyer remits goes to the seller.
func (m *Market) BuyNFT(call Call, listingId uint64) (*Receipt, error) {
	return m.execute("buyNFT", call, func(tx *txContext) error {
		listing, err := m.listing(listingId)
		if err != nil {
			return err
		}
		if listing.IsCancelled {
			return fault.New(fault.StateConflict, "Market: Listing is cancelled")
		}
		if listing.IsSold {
			return fault.New(fault.StateConflict, "Market: Listing is already sold")
		}
		if err := m.escrow.requireRemitted(call, listing.Price, "Market: Insufficient payment"); err != nil {
			return err
		}
		nft, err := m.env.NonFungible(listing.Contract)
		if err != nil {
			return err
		}

		m.markListingSold(listing)
		tx.receipt.ListingId = listing.ID

		if err := m.escrow.forwardProceeds(call, listing.Seller); err != nil {
			return err
		}
		if err := nft.TransferFrom(m.address, m.address, call.Sender, listing.TokenId); err != nil {
			return err
		}

		zap.L().With(
			zap.Uint64("listingId", listing.ID),
			zap.String("buyer", entity.LowerHex(call.Sender)),
			zap.String("price", listing.Price.String()),
		).Info("Market: Listing sold")

		tx.emit(event.SaleEvent, event.Sale{
			ListingId: listing.ID,
			Seller:    listing.Seller,
			Buyer:     call.Sender,
			Contract:  listing.Contract,
			TokenId:   listing.TokenId,
			Price:     entity.CopyAmount(listing.Price),
		})
		return nil
	})
}

// Listing returns a copy of the listing with the given id.
func (m *Market) Listing(listingId uint64) (entity.Listing, error) {
	listing, err := m.listing(listingId)
	if err != nil {
		return entity.Listing{}, err
	}
	return listing.Copy(), nil
}

func (m *Market) ListingCount() uint64 {
	return uint64(len(m.listings))
}

// ActiveListing returns the listing currently holding the token, if any.
func (m *Market) ActiveListing(collection common.Address, tokenId uint64) (entity.Listing, bool) {
	id, ok := m.activeListings[entity.AssetKey{Contract: collection, TokenId: tokenId}]
	if !ok {
		return entity.Listing{}, false
	}
	return m.listings[id-1].Copy(), true
}

func (m *Market) listing(listingId uint64) (*entity.Listing, error) {
	if listingId == 0 || listingId > uint64(len(m.listings)) {
		return nil, fault.New(fault.NotFound, "Market: Listing not found")
	}
	return m.listings[listingId-1], nil
}

func (m *Market) appendListing(listing *entity.Listing) *entity.Listing {
	listing.ID = uint64(len(m.listings)) + 1
	key := entity.AssetKey{Contract: listing.Contract, TokenId: listing.TokenId}

	m.listings = append(m.listings, listing)
	m.activeListings[key] = listing.ID

	m.journal().Append(func() {
		m.listings = m.listings[:len(m.listings)-1]
		delete(m.activeListings, key)
	})

	return listing
}

func (m *Market) markListingCancelled(listing *entity.Listing) {
	m.closeListing(listing)
	listing.IsCancelled = true
	m.journal().Append(func() { listing.IsCancelled = false })
}

func (m *Market) markListingSold(listing *entity.Listing) {
	m.closeListing(listing)
	listing.IsSold = true
	m.journal().Append(func() { listing.IsSold = false })
}

func (m *Market) closeListing(listing *entity.Listing) {
	key := entity.AssetKey{Contract: listing.Contract, TokenId: listing.TokenId}
	id, ok := m.activeListings[key]
	if !ok || id != listing.ID {
		return
	}
	delete(m.activeListings, key)
	m.journal().Append(func() { m.activeListings[key] = id })
}
