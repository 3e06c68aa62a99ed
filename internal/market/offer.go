package market

import (
	"math/big"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/event"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/fault"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// MakeOffer records a standing bid, priced in the current settlement token.
// The offerer must already have approved the marketplace for at least price.
func (m *Market) MakeOffer(call Call, collection common.Address, tokenId uint64, price *big.Int) (*Receipt, error) {
	return m.execute("makeOffer", call, func(tx *txContext) error {
		if err := requireNotPayable(call); err != nil {
			return err
		}
		if err := requirePositive(price); err != nil {
			return err
		}
		holder, err := m.RightsHolder(collection, tokenId)
		if err != nil {
			return err
		}
		if holder == call.Sender {
			return fault.New(fault.SelfTrade, "Market: Offer to own token")
		}
		if m.settlementToken == (common.Address{}) {
			return fault.New(fault.StateConflict, "Market: Settlement token not configured")
		}
		token, err := m.env.Fungible(m.settlementToken)
		if err != nil {
			return err
		}
		if err := m.escrow.requireAllowance(token, call.Sender, price); err != nil {
			return err
		}

		offer := m.appendOffer(&entity.Offer{
			Offerer:   call.Sender,
			Contract:  collection,
			TokenId:   tokenId,
			Token:     m.settlementToken,
			Price:     entity.CopyAmount(price),
			CreatedAt: tx.now,
			TxID:      tx.id,
		})
		tx.receipt.OfferId = offer.ID

		zap.L().With(
			zap.Uint64("offerId", offer.ID),
			zap.String("offerer", entity.LowerHex(call.Sender)),
			zap.String("price", price.String()),
		).Info("Market: Offer made")

		tx.emit(event.OfferMadeEvent, event.OfferMade{
			OfferId:  offer.ID,
			Offerer:  offer.Offerer,
			Contract: collection,
			TokenId:  tokenId,
			Token:    offer.Token,
			Price:    entity.CopyAmount(price),
		})
		return nil
	})
}

// CancelOffer withdraws an offer. Only the offerer may cancel, expired offers included.
func (m *Market) CancelOffer(call Call, offerId uint64) (*Receipt, error) {
	return m.execute("cancelOffer", call, func(tx *txContext) error {
		if err := requireNotPayable(call); err != nil {
			return err
		}
		offer, err := m.offer(offerId)
		if err != nil {
			return err
		}
		if offer.IsCancelled {
			return fault.New(fault.StateConflict, "Market: Offer is already cancelled")
		}
		if offer.IsAccepted {
			return fault.New(fault.StateConflict, "Market: Offer is already accepted")
		}
		if offer.Offerer != call.Sender {
			// Gated on the offerer. The reason reads as an ownership check, kept
			// as reported by the deployed contract.
			return fault.New(fault.Authorization, "Market: Not token owner")
		}

		m.markOfferCancelled(offer)
		tx.receipt.OfferId = offer.ID

		tx.emit(event.OfferCancelledEvent, event.OfferCancelled{OfferId: offer.ID, Offerer: offer.Offerer})
		return nil
	})
}

// AcceptOffer sells the token to the offerer for the offer price. The caller
// must be the token's rights holder and must remit the acceptance fee. An
// active listing on the token is closed as sold.
func (m *Market) AcceptOffer(call Call, offerId uint64) (*Receipt, error) {
	return m.execute("acceptOffer", call, func(tx *txContext) error {
		offer, err := m.offer(offerId)
		if err != nil {
			return err
		}
		if offer.IsCancelled {
			return fault.New(fault.StateConflict, "Market: Offer is cancelled")
		}
		if offer.IsAccepted {
			return fault.New(fault.StateConflict, "Market: Offer is already accepted")
		}

		key := entity.AssetKey{Contract: offer.Contract, TokenId: offer.TokenId}
		holder, err := m.RightsHolder(offer.Contract, offer.TokenId)
		if err != nil {
			return err
		}
		if holder != call.Sender {
			return fault.New(fault.Authorization, "Market: Not token owner")
		}
		if offer.Offerer == holder {
			return fault.New(fault.SelfTrade, "Market: Offer to own token")
		}
		if offer.IsExpired(tx.now, m.offerValidity) {
			return fault.New(fault.Expired, "Market: Offer is expired")
		}
		if err := m.escrow.requireRemitted(call, m.acceptanceFee, "Market: Fee must be sent"); err != nil {
			return err
		}

		token, err := m.env.Fungible(offer.Token)
		if err != nil {
			return err
		}
		if err := m.escrow.requireSettlementFunds(token, offer.Offerer, offer.Price); err != nil {
			return err
		}
		nft, err := m.env.NonFungible(offer.Contract)
		if err != nil {
			return err
		}

		custodian := call.Sender
		if id, listed := m.activeListings[key]; listed {
			m.markListingSold(m.listings[id-1])
			tx.receipt.ListingId = id
			custodian = m.address
		}
		m.markOfferAccepted(offer)
		tx.receipt.OfferId = offer.ID

		if err := m.escrow.collectFee(call); err != nil {
			return err
		}
		if err := m.escrow.settle(token, offer.Offerer, call.Sender, offer.Price); err != nil {
			return err
		}
		if err := nft.TransferFrom(m.address, custodian, offer.Offerer, offer.TokenId); err != nil {
			return err
		}

		zap.L().With(
			zap.Uint64("offerId", offer.ID),
			zap.String("seller", entity.LowerHex(call.Sender)),
			zap.String("offerer", entity.LowerHex(offer.Offerer)),
		).Info("Market: Offer accepted")

		tx.emit(event.OfferAcceptedEvent, event.OfferAccepted{
			OfferId:   offer.ID,
			Offerer:   offer.Offerer,
			Seller:    call.Sender,
			Contract:  offer.Contract,
			TokenId:   offer.TokenId,
			Token:     offer.Token,
			Price:     entity.CopyAmount(offer.Price),
			ListingId: tx.receipt.ListingId,
		})
		return nil
	})
}

// RightsHolder resolves who may transact on a token: the seller of its active
// listing, otherwise the owner the collection reports.
func (m *Market) RightsHolder(collection common.Address, tokenId uint64) (common.Address, error) {
	if id, listed := m.activeListings[entity.AssetKey{Contract: collection, TokenId: tokenId}]; listed {
		return m.listings[id-1].Seller, nil
	}
	nft, err := m.env.NonFungible(collection)
	if err != nil {
		return common.Address{}, err
	}
	return nft.OwnerOf(tokenId)
}

func (m *Market) Offer(offerId uint64) (entity.Offer, error) {
	offer, err := m.offer(offerId)
	if err != nil {
		return entity.Offer{}, err
	}
	return offer.Copy(), nil
}

func (m *Market) OfferCount() uint64 {
	return uint64(len(m.offers))
}

// OffersFor lists every offer ever made on a token, oldest first.
func (m *Market) OffersFor(collection common.Address, tokenId uint64) []entity.Offer {
	offers := make([]entity.Offer, 0)
	for _, offer := range m.offers {
		if offer.Contract == collection && offer.TokenId == tokenId {
			offers = append(offers, offer.Copy())
		}
	}
	return offers
}

func (m *Market) offer(offerId uint64) (*entity.Offer, error) {
	if offerId == 0 || offerId > uint64(len(m.offers)) {
		return nil, fault.New(fault.NotFound, "Market: Offer not found")
	}
	return m.offers[offerId-1], nil
}

func (m *Market) appendOffer(offer *entity.Offer) *entity.Offer {
	offer.ID = uint64(len(m.offers)) + 1
	m.offers = append(m.offers, offer)
	m.journal().Append(func() { m.offers = m.offers[:len(m.offers)-1] })

	return offer
}

func (m *Market) markOfferCancelled(offer *entity.Offer) {
	offer.IsCancelled = true
	m.journal().Append(func() { offer.IsCancelled = false })
}

func (m *Market) markOfferAccepted(offer *entity.Offer) {
	offer.IsAccepted = true
	m.journal().Append(func() { offer.IsAccepted = false })
}
