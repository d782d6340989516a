package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// orderParamsJSON are the shared leading parameters of the exchange's
// single-order entry points.
const orderParamsJSON = `
			{"name": "addrs", "type": "address[7]"},
			{"name": "uints", "type": "uint256[9]"},
			{"name": "feeMethod", "type": "uint8"},
			{"name": "side", "type": "uint8"},
			{"name": "saleKind", "type": "uint8"},
			{"name": "howToCall", "type": "uint8"},
			{"name": "calldata", "type": "bytes"},
			{"name": "replacementPattern", "type": "bytes"},
			{"name": "staticExtradata", "type": "bytes"}`

const matchParamsJSON = `
			{"name": "addrs", "type": "address[14]"},
			{"name": "uints", "type": "uint256[18]"},
			{"name": "feeMethodsSidesKindsHowToCalls", "type": "uint8[8]"},
			{"name": "calldataBuy", "type": "bytes"},
			{"name": "calldataSell", "type": "bytes"},
			{"name": "replacementPatternBuy", "type": "bytes"},
			{"name": "replacementPatternSell", "type": "bytes"},
			{"name": "staticExtradataBuy", "type": "bytes"},
			{"name": "staticExtradataSell", "type": "bytes"}`

const signatureParamsJSON = `,
			{"name": "v", "type": "uint8"},
			{"name": "r", "type": "bytes32"},
			{"name": "s", "type": "bytes32"}`

// Wyvern exchange ABI JSON
const exchangeABIJSON = `[
	{
		"constant": true,
		"inputs": [` + orderParamsJSON + `],
		"name": "hashOrder_",
		"outputs": [{"name": "", "type": "bytes32"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [` + orderParamsJSON + `],
		"name": "validateOrderParameters_",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [` + orderParamsJSON + signatureParamsJSON + `],
		"name": "validateOrder_",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [` + orderParamsJSON + `],
		"name": "calculateCurrentPrice_",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [` + matchParamsJSON + `],
		"name": "ordersCanMatch_",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "buyCalldata", "type": "bytes"},
			{"name": "buyReplacementPattern", "type": "bytes"},
			{"name": "sellCalldata", "type": "bytes"},
			{"name": "sellReplacementPattern", "type": "bytes"}
		],
		"name": "orderCalldataCanMatch",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": false,
		"payable": true,
		"stateMutability": "payable",
		"inputs": [` + matchParamsJSON + `,
			{"name": "vs", "type": "uint8[2]"},
			{"name": "rssMetadata", "type": "bytes32[5]"}
		],
		"name": "atomicMatch_",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [` + orderParamsJSON + `,
			{"name": "orderbookInclusionDesired", "type": "bool"}
		],
		"name": "approveOrder_",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [` + orderParamsJSON + signatureParamsJSON + `],
		"name": "cancelOrder_",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "", "type": "bytes32"}],
		"name": "cancelledOrFinalized",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "", "type": "bytes32"}],
		"name": "approvedOrders",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	}
]`

// Proxy registry ABI JSON
const proxyRegistryABIJSON = `[
	{
		"constant": true,
		"inputs": [{"name": "", "type": "address"}],
		"name": "proxies",
		"outputs": [{"name": "", "type": "address"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [],
		"name": "registerProxy",
		"outputs": [{"name": "proxy", "type": "address"}],
		"type": "function"
	}
]`

// ERC20 ABI JSON for balances, allowances and transfers
const erc20ABIJSON = `[
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"type": "function"
	}
]`

// ERC721 ABI JSON, including the approved-address accessors of pre-standard
// contracts such as CryptoKitties and Etherbots.
const erc721ABIJSON = `[
	{
		"constant": true,
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "ownerOf",
		"outputs": [{"name": "", "type": "address"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "operator", "type": "address"}
		],
		"name": "isApprovedForAll",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "operator", "type": "address"},
			{"name": "approved", "type": "bool"}
		],
		"name": "setApprovalForAll",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "tokenId", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "getApproved",
		"outputs": [{"name": "", "type": "address"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "", "type": "uint256"}],
		"name": "kittyIndexToApproved",
		"outputs": [{"name": "", "type": "address"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "", "type": "uint256"}],
		"name": "partIndexToApproved",
		"outputs": [{"name": "", "type": "address"}],
		"type": "function"
	}
]`

// ERC1155 ABI JSON, plus the Enjin transferSettings accessor
const erc1155ABIJSON = `[
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "id", "type": "uint256"}
		],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "id", "type": "uint256"}],
		"name": "transferSettings",
		"outputs": [
			{"name": "transferType", "type": "uint8"},
			{"name": "transferFeeType", "type": "uint8"},
			{"name": "transferFeeCurrency", "type": "uint256"},
			{"name": "transferFeeValue", "type": "uint256"}
		],
		"type": "function"
	}
]`

// Wrapped ether ABI JSON
const wethABIJSON = `[
	{
		"constant": false,
		"payable": true,
		"stateMutability": "payable",
		"inputs": [],
		"name": "deposit",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [{"name": "wad", "type": "uint256"}],
		"name": "withdraw",
		"outputs": [],
		"type": "function"
	}
]`

// Static call target that succeeds only when tx.origin is its hardcoded address
const staticCheckTxOriginABIJSON = `[
	{
		"constant": true,
		"inputs": [],
		"name": "succeedIfTxOriginMatchesHardcodedAddress",
		"outputs": [],
		"type": "function"
	}
]`

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("failed to parse " + name + " ABI: " + err.Error())
	}
	return parsed
}

// GetExchangeABI returns the parsed Wyvern exchange ABI
func GetExchangeABI() abi.ABI { return mustParseABI("WyvernExchange", exchangeABIJSON) }

// GetProxyRegistryABI returns the parsed proxy registry ABI
func GetProxyRegistryABI() abi.ABI { return mustParseABI("ProxyRegistry", proxyRegistryABIJSON) }

// GetERC20ABI returns the parsed ERC20 ABI
func GetERC20ABI() abi.ABI { return mustParseABI("ERC20", erc20ABIJSON) }

// GetERC721ABI returns the parsed ERC721 ABI
func GetERC721ABI() abi.ABI { return mustParseABI("ERC721", erc721ABIJSON) }

// GetERC1155ABI returns the parsed ERC1155 ABI
func GetERC1155ABI() abi.ABI { return mustParseABI("ERC1155", erc1155ABIJSON) }

// GetWETHABI returns the parsed wrapped ether ABI
func GetWETHABI() abi.ABI { return mustParseABI("WETH", wethABIJSON) }

// GetStaticCheckTxOriginABI returns the parsed tx-origin static check ABI
func GetStaticCheckTxOriginABI() abi.ABI {
	return mustParseABI("StaticCheckTxOrigin", staticCheckTxOriginABIJSON)
}
