package chain

import (
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/event"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/fault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func TestLedgerTransfer(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Ledger().Credit(alice, big.NewInt(100)))

	require.NoError(t, c.Ledger().Transfer(alice, bob, big.NewInt(40)))

	assert.Equal(t, int64(60), c.Ledger().BalanceOf(alice).Int64())
	assert.Equal(t, int64(40), c.Ledger().BalanceOf(bob).Int64())
}

func TestLedgerRejectsOverdraft(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Ledger().Credit(alice, big.NewInt(10)))

	err := c.Ledger().Transfer(alice, bob, big.NewInt(11))

	assert.ErrorIs(t, err, fault.ErrInsufficientFunds)
	assert.Equal(t, int64(10), c.Ledger().BalanceOf(alice).Int64())
	assert.Equal(t, int64(0), c.Ledger().BalanceOf(bob).Int64())
}

func TestDoRevertsOnError(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Ledger().Credit(alice, big.NewInt(100)))

	err := c.Do(func() error {
		if err := c.Ledger().Transfer(alice, bob, big.NewInt(30)); err != nil {
			return err
		}
		return errors.New("later step failed")
	})

	require.Error(t, err)
	assert.Equal(t, int64(100), c.Ledger().BalanceOf(alice).Int64())
	assert.Equal(t, int64(0), c.Ledger().BalanceOf(bob).Int64())
}

func TestDoSerializesCalls(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Ledger().Credit(alice, big.NewInt(50)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.Do(func() error {
				return c.Ledger().Transfer(alice, bob, big.NewInt(10))
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, int64(0), c.Ledger().BalanceOf(alice).Int64())
	assert.Equal(t, int64(50), c.Ledger().BalanceOf(bob).Int64())
}

func TestContractLookup(t *testing.T) {
	c := New(nil)
	addr := common.HexToAddress("0x1")
	c.Deploy(addr, "not a contract")

	_, err := c.NonFungible(addr)
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)

	_, err = c.Fungible(common.HexToAddress("0x2"))
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestManualClock(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)
	c := New(clock)

	clock.Advance(14 * 24 * time.Hour)

	assert.Equal(t, start.Add(14*24*time.Hour), c.Now())
}

func TestStalledListenerDoesNotHoldSequencer(t *testing.T) {
	c := New(nil)
	manager := event.NewManager(1)
	release := make(chan struct{})
	manager.AddEventListener(event.AllEvents, func(e event.Event) { <-release })
	defer func() {
		close(release)
		manager.Close()
	}()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			_ = c.Do(func() error {
				c.Journal().OnCommit(func() { manager.EmitEvent(event.Event{Type: event.SaleEvent}) })
				return nil
			})
		}
		_ = c.Do(func() error {
			c.Ledger().BalanceOf(alice)
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sequencer held by a stalled listener")
	}
}
