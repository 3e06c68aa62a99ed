package entity

import (
	"errors"
	"strings"

	"github.com/Zilliqa/gozilliqa-sdk/bech32"
	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidAddress = errors.New("invalid address")

// ParseAddress accepts a 0x prefixed hex address or a zil1 bech32 address.
func ParseAddress(addr string) (common.Address, error) {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(strings.ToLower(addr), "zil1") {
		hex, err := bech32.FromBech32Addr(addr)
		if err != nil {
			return common.Address{}, ErrInvalidAddress
		}
		addr = hex
	}

	if !common.IsHexAddress(addr) {
		return common.Address{}, ErrInvalidAddress
	}

	return common.HexToAddress(addr), nil
}

func Bech32(addr common.Address) string {
	b, err := bech32.ToBech32Address(LowerHex(addr))
	if err != nil {
		return ""
	}
	return b
}

// LowerHex is the address format used across the indexer documents.
func LowerHex(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
