package market

import (
	"math/big"
	"testing"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/contract"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/event"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/fault"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/zrc6"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutOnSale(t *testing.T) {
	f := newFixture(t)
	tokenId := f.mint(t, alice)
	f.approveMarket(t, alice)

	receipt, err := f.market.PutOnSale(Call{Sender: alice, Value: zil(t, "0.0000001")}, ducksAddr, tokenId, zil(t, "0.05"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.ListingId)
	assert.NotEmpty(t, receipt.TxID)

	listing, err := f.market.Listing(1)
	require.NoError(t, err)
	assert.Equal(t, alice, listing.Seller)
	assert.Equal(t, ducksAddr, listing.Contract)
	assert.Equal(t, tokenId, listing.TokenId)
	assert.Equal(t, zil(t, "0.05"), listing.Price)
	assert.True(t, listing.IsActive())
	assert.Equal(t, epoch, listing.CreatedAt)

	assert.Equal(t, marketAddr, f.owner(t, tokenId))
	assert.Equal(t, zil(t, "0.0000001"), f.balance(marketAddr))

	require.Len(t, receipt.Events, 1)
	assert.Equal(t, event.ListedEvent, receipt.Events[0].Type)
	assert.Equal(t, event.Listed{
		ListingId: 1,
		Seller:    alice,
		Contract:  ducksAddr,
		TokenId:   tokenId,
		Price:     zil(t, "0.05"),
	}, receipt.Events[0].Payload)
	assert.Equal(t, receipt.Events, f.notifier.all())
}

func TestPutOnSaleRetainsExcessFee(t *testing.T) {
	f := newFixture(t)
	tokenId := f.mint(t, alice)
	f.approveMarket(t, alice)

	_, err := f.market.PutOnSale(Call{Sender: alice, Value: zil(t, "1")}, ducksAddr, tokenId, zil(t, "0.05"))
	require.NoError(t, err)
	assert.Equal(t, zil(t, "1"), f.balance(marketAddr))
	assert.Equal(t, zil(t, "99"), f.balance(alice))
}

func TestPutOnSaleRequiresListingFee(t *testing.T) {
	f := newFixture(t)
	tokenId := f.mint(t, alice)
	f.approveMarket(t, alice)

	for _, value := range []*big.Int{nil, big.NewInt(99999)} {
		_, err := f.market.PutOnSale(Call{Sender: alice, Value: value}, ducksAddr, tokenId, zil(t, "0.05"))
		assert.ErrorIs(t, err, fault.ErrInsufficientFunds)
		assert.EqualError(t, err, "Market: Listing fee must be sent")
	}

	assert.Equal(t, uint64(0), f.market.ListingCount())
	assert.Equal(t, alice, f.owner(t, tokenId))
	assert.Empty(t, f.notifier.all())
}

func TestPutOnSaleRequiresBalanceForFee(t *testing.T) {
	f := newFixture(t)
	broke := common.HexToAddress("0x00000000000000000000000000000000000b40c3")
	tokenId := f.mint(t, broke)
	f.approveMarket(t, broke)

	_, err := f.market.PutOnSale(Call{Sender: broke, Value: f.market.ListingFee()}, ducksAddr, tokenId, zil(t, "0.05"))
	assert.ErrorIs(t, err, fault.ErrInsufficientFunds)
	assert.Equal(t, broke, f.owner(t, tokenId))
}

func TestPutOnSaleRejectsNonPositivePrice(t *testing.T) {
	f := newFixture(t)
	tokenId := f.mint(t, alice)
	f.approveMarket(t, alice)

	for _, price := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		_, err := f.market.PutOnSale(Call{Sender: alice, Value: f.market.ListingFee()}, ducksAddr, tokenId, price)
		assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))
	}
	assert.Equal(t, uint64(0), f.market.ListingCount())
}

func TestPutOnSaleWithoutApprovalRollsBack(t *testing.T) {
	f := newFixture(t)
	tokenId := f.mint(t, alice)
	aliceBefore := f.balance(alice)

	_, err := f.market.PutOnSale(Call{Sender: alice, Value: f.market.ListingFee()}, ducksAddr, tokenId, zil(t, "0.05"))
	assert.ErrorIs(t, err, fault.ErrAuthorization)
	assert.EqualError(t, err, "ZRC6: caller is not token owner or approved")

	assert.Equal(t, uint64(0), f.market.ListingCount())
	_, listed := f.market.ActiveListing(ducksAddr, tokenId)
	assert.False(t, listed)
	assert.Equal(t, aliceBefore, f.balance(alice))
	assert.Equal(t, 0, f.balance(marketAddr).Sign())
	assert.Equal(t, alice, f.owner(t, tokenId))
	assert.Empty(t, f.notifier.all())
}

func TestPutOnSaleByNonOwner(t *testing.T) {
	f := newFixture(t)
	tokenId := f.mint(t, alice)
	f.approveMarket(t, bob)

	_, err := f.market.PutOnSale(Call{Sender: bob, Value: f.market.ListingFee()}, ducksAddr, tokenId, zil(t, "0.05"))
	assert.ErrorIs(t, err, fault.ErrAuthorization)
	assert.Equal(t, alice, f.owner(t, tokenId))
}

func TestPutOnSaleRejectsListedToken(t *testing.T) {
	f := newFixture(t)
	tokenId := f.mint(t, alice)
	f.approveMarket(t, alice)
	f.list(t, alice, tokenId, "0.05")

	_, err := f.market.PutOnSale(Call{Sender: alice, Value: f.market.ListingFee()}, ducksAddr, tokenId, zil(t, "0.06"))
	assert.ErrorIs(t, err, fault.ErrStateConflict)
	assert.Equal(t, uint64(1), f.market.ListingCount())
}

func TestPutOnSaleUnknownCollection(t *testing.T) {
	f := newFixture(t)
	unknown := common.HexToAddress("0x0000000000000000000000000000000000000404")

	_, err := f.market.PutOnSale(Call{Sender: alice, Value: f.market.ListingFee()}, unknown, 1, zil(t, "0.05"))
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestCancelSale(t *testing.T) {
	f := newFixture(t)
	first := f.mint(t, alice)
	second := f.mint(t, alice)
	f.approveMarket(t, alice)
	f.list(t, alice, first, "0.05")
	f.list(t, alice, second, "0.05")
	feesCollected := f.balance(marketAddr)

	receipt, err := f.market.CancelSale(Call{Sender: alice}, 1)
	require.NoError(t, err)

	listing, _ := f.market.Listing(1)
	assert.True(t, listing.IsCancelled)
	assert.False(t, listing.IsSold)
	assert.Equal(t, alice, f.owner(t, first))

	other, _ := f.market.Listing(2)
	assert.True(t, other.IsActive())
	assert.Equal(t, marketAddr, f.owner(t, second))

	assert.Equal(t, feesCollected, f.balance(marketAddr))

	require.Len(t, receipt.Events, 1)
	assert.Equal(t, event.ListingCancelledEvent, receipt.Events[0].Type)

	_, listed := f.market.ActiveListing(ducksAddr, first)
	assert.False(t, listed)
}

func TestCancelSaleAllowsRelisting(t *testing.T) {
	f := newFixture(t)
	tokenId := f.mint(t, alice)
	f.approveMarket(t, alice)
	f.list(t, alice, tokenId, "0.05")

	_, err := f.market.CancelSale(Call{Sender: alice}, 1)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), f.list(t, alice, tokenId, "0.07"))
	active, listed := f.market.ActiveListing(ducksAddr, tokenId)
	require.True(t, listed)
	assert.Equal(t, uint64(2), active.ID)
}

func TestCancelSaleFailures(t *testing.T) {
	f := newFixture(t)
	tokenId := f.mint(t, alice)
	f.approveMarket(t, alice)
	f.list(t, alice, tokenId, "0.05")

	_, err := f.market.CancelSale(Call{Sender: alice}, 2)
	assert.ErrorIs(t, err, fault.ErrNotFound)

	_, err = f.market.CancelSale(Call{Sender: alice}, 0)
	assert.ErrorIs(t, err, fault.ErrNotFound)

	_, err = f.market.CancelSale(Call{Sender: bob}, 1)
	assert.ErrorIs(t, err, fault.ErrAuthorization)
	assert.EqualError(t, err, "Market: Not listing owner")

	listing, _ := f.market.Listing(1)
	assert.True(t, listing.IsActive())
	assert.Equal(t, marketAddr, f.owner(t, tokenId))
}

func TestBuyNFT(t *testing.T) {
	f := newFixture(t)
	tokenId := f.mint(t, bob)
	f.approveMarket(t, bob)
	f.list(t, bob, tokenId, "0.05")
	bobBefore := f.balance(bob)
	aliceBefore := f.balance(alice)

	receipt, err := f.market.BuyNFT(Call{Sender: alice, Value: zil(t, "0.05")}, 1)
	require.NoError(t, err)

	require.Len(t, receipt.Events, 1)
	assert.Equal(t, event.SaleEvent, receipt.Events[0].Type)
	assert.Equal(t, event.Sale{
		ListingId: 1,
		Seller:    bob,
		Buyer:     alice,
		Contract:  ducksAddr,
		TokenId:   tokenId,
		Price:     zil(t, "0.05"),
	}, receipt.Events[0].Payload)

	listing, _ := f.market.Listing(1)
	assert.True(t, listing.IsSold)
	assert.False(t, listing.IsCancelled)
	assert.Equal(t, alice, f.owner(t, tokenId))
	assert.Equal(t, new(big.Int).Add(bobBefore, zil(t, "0.05")), f.balance(bob))
	assert.Equal(t, new(big.Int).Sub(aliceBefore, zil(t, "0.05")), f.balance(alice))
}

func TestBuyNFTForwardsOverpayment(t *testing.T) {
	f := newFixture(t)
	tokenId := f.mint(t, bob)
	f.approveMarket(t, bob)
	f.list(t, bob, tokenId, "0.05")
	bobBefore := f.balance(bob)

	_, err := f.market.BuyNFT(Call{Sender: alice, Value: zil(t, "0.08")}, 1)
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Add(bobBefore, zil(t, "0.08")), f.balance(bob))
}

func TestBuyNFTInsufficientPayment(t *testing.T) {
	f := newFixture(t)
	tokenId := f.mint(t, bob)
	f.approveMarket(t, bob)
	f.list(t, bob, tokenId, "0.05")

	_, err := f.market.BuyNFT(Call{Sender: alice, Value: zil(t, "0.049")}, 1)
	assert.ErrorIs(t, err, fault.ErrInsufficientFunds)
	assert.EqualError(t, err, "Market: Insufficient payment")

	listing, _ := f.market.Listing(1)
	assert.True(t, listing.IsActive())
	assert.Equal(t, marketAddr, f.owner(t, tokenId))

	_, err = f.market.BuyNFT(Call{Sender: alice, Value: zil(t, "500")}, 1)
	assert.ErrorIs(t, err, fault.ErrInsufficientFunds)
	assert.EqualError(t, err, "Market: Insufficient balance")
}

func TestBuyNFTUnknownListing(t *testing.T) {
	f := newFixture(t)

	_, err := f.market.BuyNFT(Call{Sender: alice, Value: zil(t, "0.05")}, 1)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestTerminalListingsStayTerminal(t *testing.T) {
	f := newFixture(t)
	sold := f.mint(t, alice)
	cancelled := f.mint(t, alice)
	f.approveMarket(t, alice)
	f.list(t, alice, sold, "0.05")
	f.list(t, alice, cancelled, "0.05")

	_, err := f.market.BuyNFT(Call{Sender: bob, Value: zil(t, "0.05")}, 1)
	require.NoError(t, err)
	_, err = f.market.CancelSale(Call{Sender: alice}, 2)
	require.NoError(t, err)

	soldBefore, _ := f.market.Listing(1)
	cancelledBefore, _ := f.market.Listing(2)

	attempts := []func() error{
		func() error { _, err := f.market.BuyNFT(Call{Sender: carol, Value: zil(t, "0.05")}, 1); return err },
		func() error { _, err := f.market.CancelSale(Call{Sender: alice}, 1); return err },
		func() error { _, err := f.market.BuyNFT(Call{Sender: carol, Value: zil(t, "0.05")}, 2); return err },
		func() error { _, err := f.market.CancelSale(Call{Sender: alice}, 2); return err },
	}
	for _, attempt := range attempts {
		assert.ErrorIs(t, attempt(), fault.ErrStateConflict)
	}

	soldAfter, _ := f.market.Listing(1)
	cancelledAfter, _ := f.market.Listing(2)
	assert.Equal(t, soldBefore, soldAfter)
	assert.Equal(t, cancelledBefore, cancelledAfter)
	assert.True(t, soldAfter.IsSold && !soldAfter.IsCancelled)
	assert.True(t, cancelledAfter.IsCancelled && !cancelledAfter.IsSold)
	assert.Equal(t, bob, f.owner(t, sold))
	assert.Equal(t, alice, f.owner(t, cancelled))
}

func TestListingCopiesAreIndependent(t *testing.T) {
	f := newFixture(t)
	tokenId := f.mint(t, alice)
	f.approveMarket(t, alice)
	f.list(t, alice, tokenId, "0.05")

	listing, _ := f.market.Listing(1)
	listing.Price.SetInt64(1)
	listing.IsSold = true

	stored, _ := f.market.Listing(1)
	assert.Equal(t, zil(t, "0.05"), stored.Price)
	assert.True(t, stored.IsActive())
}

// reentrantCollection calls back into the market from inside a token transfer.
type reentrantCollection struct {
	*zrc6.Collection
	reenter   func() error
	attempted bool
	reentered error
}

func (c *reentrantCollection) TransferFrom(operator, from, to common.Address, tokenId uint64) error {
	if err := c.Collection.TransferFrom(operator, from, to, tokenId); err != nil {
		return err
	}
	if to != marketAddr && !c.attempted {
		c.attempted = true
		c.reentered = c.reenter()
	}
	return nil
}

var _ contract.NonFungible = (*reentrantCollection)(nil)

func TestReentrantBuyCannotDoubleSell(t *testing.T) {
	f := newFixture(t)
	evilAddr := common.HexToAddress("0x000000000000000000000000000000000000e0e1")
	evil := &reentrantCollection{Collection: zrc6.NewCollection(evilAddr, "Evil", "EVIL", f.chain.Journal())}
	f.chain.Deploy(evilAddr, evil)

	tokenId, err := evil.Mint(alice, "uri")
	require.NoError(t, err)
	require.NoError(t, evil.SetApprovalForAll(alice, marketAddr, true))

	receipt, err := f.market.PutOnSale(Call{Sender: alice, Value: f.market.ListingFee()}, evilAddr, tokenId, zil(t, "0.05"))
	require.NoError(t, err)

	evil.reenter = func() error {
		_, err := f.market.BuyNFT(Call{Sender: carol, Value: zil(t, "0.05")}, receipt.ListingId)
		return err
	}
	carolBefore := f.balance(carol)
	aliceBefore := f.balance(alice)

	_, err = f.market.BuyNFT(Call{Sender: bob, Value: zil(t, "0.05")}, receipt.ListingId)
	require.NoError(t, err)

	assert.True(t, evil.attempted)
	assert.ErrorIs(t, evil.reentered, fault.ErrStateConflict)

	owner, _ := evil.OwnerOf(tokenId)
	assert.Equal(t, bob, owner)
	assert.Equal(t, carolBefore, f.balance(carol))
	assert.Equal(t, new(big.Int).Add(aliceBefore, zil(t, "0.05")), f.balance(alice))

	sales := 0
	for _, e := range f.notifier.all() {
		if e.Type == event.SaleEvent {
			sales++
		}
	}
	assert.Equal(t, 1, sales)
}

func TestReentrantCancelCannotReclaimSoldToken(t *testing.T) {
	f := newFixture(t)
	evilAddr := common.HexToAddress("0x000000000000000000000000000000000000e0e2")
	evil := &reentrantCollection{Collection: zrc6.NewCollection(evilAddr, "Evil", "EVIL", f.chain.Journal())}
	f.chain.Deploy(evilAddr, evil)

	tokenId, _ := evil.Mint(alice, "uri")
	require.NoError(t, evil.SetApprovalForAll(alice, marketAddr, true))
	receipt, err := f.market.PutOnSale(Call{Sender: alice, Value: f.market.ListingFee()}, evilAddr, tokenId, zil(t, "0.05"))
	require.NoError(t, err)

	evil.reenter = func() error {
		_, err := f.market.CancelSale(Call{Sender: alice}, receipt.ListingId)
		return err
	}

	_, err = f.market.BuyNFT(Call{Sender: bob, Value: zil(t, "0.05")}, receipt.ListingId)
	require.NoError(t, err)

	assert.ErrorIs(t, evil.reentered, fault.ErrStateConflict)
	listing, _ := f.market.Listing(receipt.ListingId)
	assert.True(t, listing.IsSold)
	assert.False(t, listing.IsCancelled)
}
