package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// InverseBasisPoint is the denominator of every fee expressed in basis points.
const InverseBasisPoint = 10000

var (
	NullAddress   = common.Address{}
	NullBlockHash = common.Hash{}
	MaxUint256    = new(big.Int).Set(math.MaxBig256)
)

// Well known contracts that need special handling.
var (
	OpenSeaFeeRecipient         = common.HexToAddress("0x5b3256965e7c3cf26e11fcaf296dfc8807c01073")
	EnjinCoinAddress            = common.HexToAddress("0xf629cbd94d3791c9250152bd8dfbdf380e2a3b9c")
	ManaAddress                 = common.HexToAddress("0x0f5d2fb29fb7d3cfee444a200298f468908cc942")
	CryptoKittiesAddress        = common.HexToAddress("0x06012c8cf97bead5deae237070f9587f8e7a266d")
	CryptoKittiesRinkebyAddress = common.HexToAddress("0x16baf0de678e52367adc69fd067e5edd1d33e3bf")
	EnjinAddress                = common.HexToAddress("0xfaafdc07907ff5120a76b34b731b278c38d6043c")
)

// IsNull reports whether addr is the zero address.
func IsNull(addr common.Address) bool {
	return addr == NullAddress
}

// LowerHex renders addr the way the exchange and the orderbook expect it.
func LowerHex(addr common.Address) string {
	return "0x" + common.Bytes2Hex(addr.Bytes())
}
