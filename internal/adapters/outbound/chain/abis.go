package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const dataProviderABIJSON = `[
{"inputs":[],"name":"getAllReservesTokens","outputs":[{"components":[{"name":"symbol","type":"string"},{"name":"tokenAddress","type":"address"}],"name":"","type":"tuple[]"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"asset","type":"address"}],"name":"getReserveConfigurationData","outputs":[{"name":"decimals","type":"uint256"},{"name":"ltv","type":"uint256"},{"name":"liquidationThreshold","type":"uint256"},{"name":"liquidationBonus","type":"uint256"},{"name":"reserveFactor","type":"uint256"},{"name":"usageAsCollateralEnabled","type":"bool"},{"name":"borrowingEnabled","type":"bool"},{"name":"stableBorrowRateEnabled","type":"bool"},{"name":"isActive","type":"bool"},{"name":"isFrozen","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"asset","type":"address"}],"name":"getReserveTokensAddresses","outputs":[{"name":"aTokenAddress","type":"address"},{"name":"stableDebtTokenAddress","type":"address"},{"name":"variableDebtTokenAddress","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"asset","type":"address"},{"name":"user","type":"address"}],"name":"getUserReserveData","outputs":[{"name":"currentATokenBalance","type":"uint256"},{"name":"currentStableDebt","type":"uint256"},{"name":"currentVariableDebt","type":"uint256"},{"name":"principalStableDebt","type":"uint256"},{"name":"scaledVariableDebt","type":"uint256"},{"name":"stableBorrowRate","type":"uint256"},{"name":"liquidityRate","type":"uint256"},{"name":"stableRateLastUpdated","type":"uint40"},{"name":"usageAsCollateralEnabled","type":"bool"}],"stateMutability":"view","type":"function"}
]`

const lendingPoolABIJSON = `[
{"inputs":[{"name":"user","type":"address"}],"name":"getUserAccountData","outputs":[{"name":"totalCollateralETH","type":"uint256"},{"name":"totalDebtETH","type":"uint256"},{"name":"availableBorrowsETH","type":"uint256"},{"name":"currentLiquidationThreshold","type":"uint256"},{"name":"ltv","type":"uint256"},{"name":"healthFactor","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"asset","type":"address"}],"name":"getReserveNormalizedVariableDebt","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const priceOracleABIJSON = `[
{"inputs":[{"name":"asset","type":"address"}],"name":"getAssetPrice","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const multicallABIJSON = `[
{"inputs":[{"components":[{"internalType":"address","name":"target","type":"address"},{"internalType":"bool","name":"allowFailure","type":"bool"},{"internalType":"bytes","name":"callData","type":"bytes"}],"internalType":"struct Multicall3.Call3[]","name":"calls","type":"tuple[]"}],"name":"aggregate3","outputs":[{"components":[{"internalType":"bool","name":"success","type":"bool"},{"internalType":"bytes","name":"returnData","type":"bytes"}],"internalType":"struct Multicall3.Result[]","name":"returnData","type":"tuple[]"}],"stateMutability":"payable","type":"function"}
]`

const liquidatorABIJSON = `[
{"inputs":[{"name":"borrower","type":"address"},{"name":"debtAToken","type":"address"},{"name":"collateralAToken","type":"address"},{"name":"repayAmount","type":"uint256"},{"name":"swapFee","type":"uint24"}],"name":"liquidate","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

func parseABI(name, raw string) (*abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s ABI: %w", name, err)
	}
	return &parsed, nil
}
