package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const lendingPoolABIJSON = `[
{"inputs":[{"internalType":"string","name":"symbol","type":"string"}],"name":"getAssetDetails","outputs":[{"internalType":"address","name":"token","type":"address"},{"internalType":"uint256","name":"totalDeposited","type":"uint256"},{"internalType":"uint256","name":"totalBorrowed","type":"uint256"},{"internalType":"uint256","name":"collateralFactor","type":"uint256"},{"internalType":"bool","name":"isSupported","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"string","name":"symbol","type":"string"}],"name":"getAssetPrice","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"user","type":"address"},{"internalType":"string","name":"symbol","type":"string"}],"name":"getUserPosition","outputs":[{"internalType":"uint256","name":"deposited","type":"uint256"},{"internalType":"uint256","name":"borrowed","type":"uint256"},{"internalType":"uint256","name":"interestDue","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"string","name":"symbol","type":"string"}],"name":"getCurrentInterestRate","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"string","name":"symbol","type":"string"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"deposit","outputs":[],"stateMutability":"payable","type":"function"},
{"inputs":[{"internalType":"string","name":"symbol","type":"string"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"string","name":"symbol","type":"string"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"borrow","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"string","name":"symbol","type":"string"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"repay","outputs":[],"stateMutability":"payable","type":"function"}
]`

const erc20ABIJSON = `[
{"inputs":[{"internalType":"address","name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var (
	lendingPoolABI abi.ABI
	erc20ABI       abi.ABI
)

func init() {
	pool, err := abi.JSON(strings.NewReader(lendingPoolABIJSON))
	if err != nil {
		panic("failed to parse lending pool ABI: " + err.Error())
	}
	lendingPoolABI = pool

	erc20, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("failed to parse ERC-20 ABI: " + err.Error())
	}
	erc20ABI = erc20
}

// PackPoolCall ABI-encodes a lending pool method invocation.
func PackPoolCall(method string, args ...interface{}) ([]byte, error) {
	return lendingPoolABI.Pack(method, args...)
}
