package cellar

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// CellarABI is the subset of the cellar contract interface that corks may call.
const CellarABI = `[
	{
		"inputs": [{"internalType": "bytes32", "name": "newFeesDistributor", "type": "bytes32"}],
		"name": "setFeesDistributor",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint16", "name": "newFee", "type": "uint16"}],
		"name": "setFee",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "validator", "type": "address"},
			{"internalType": "bool", "name": "value", "type": "bool"}
		],
		"name": "setValidator",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "newOwner", "type": "address"}],
		"name": "transferOwnership",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "reinvest",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{
				"components": [
					{"internalType": "uint184", "name": "tokenId", "type": "uint184"},
					{"internalType": "int24", "name": "tickUpper", "type": "int24"},
					{"internalType": "int24", "name": "tickLower", "type": "int24"},
					{"internalType": "uint24", "name": "weight", "type": "uint24"}
				],
				"internalType": "struct ICellarPoolShare.CellarTickInfo[]",
				"name": "_cellarTickInfo",
				"type": "tuple[]"
			}
		],
		"name": "rebalance",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

var cellarABI = mustParseABI(CellarABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}

	return parsed
}
