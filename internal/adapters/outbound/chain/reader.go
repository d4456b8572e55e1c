// Package chain provides go-ethereum adapters for the protocol's read
// surface (data provider, lending pool, price oracle) and for submitting
// liquidation transactions through the on-chain wrapper.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/meridian-research/aave-liquidator/internal/domain/entity"
	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
)

// Compile-time checks that Reader implements the read ports.
var (
	_ outbound.MarketReader  = (*Reader)(nil)
	_ outbound.AccountReader = (*Reader)(nil)
)

// Addresses holds the protocol contract addresses for one deployment.
type Addresses struct {
	LendingPool  common.Address
	DataProvider common.Address
	PriceOracle  common.Address
	Multicall3   common.Address
}

// Reader implements MarketReader and AccountReader over an RPC endpoint.
type Reader struct {
	client    *ethclient.Client
	addresses Addresses
	logger    *slog.Logger

	dataProviderABI *abi.ABI
	lendingPoolABI  *abi.ABI
	priceOracleABI  *abi.ABI
	multicallABI    *abi.ABI
}

// NewReader creates a Reader and parses the contract ABIs.
func NewReader(client *ethclient.Client, addresses Addresses, logger *slog.Logger) (*Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reader{
		client:    client,
		addresses: addresses,
		logger:    logger.With("component", "chain-reader"),
	}

	var err error
	if r.dataProviderABI, err = parseABI("ProtocolDataProvider", dataProviderABIJSON); err != nil {
		return nil, err
	}
	if r.lendingPoolABI, err = parseABI("LendingPool", lendingPoolABIJSON); err != nil {
		return nil, err
	}
	if r.priceOracleABI, err = parseABI("PriceOracle", priceOracleABIJSON); err != nil {
		return nil, err
	}
	if r.multicallABI, err = parseABI("Multicall3", multicallABIJSON); err != nil {
		return nil, err
	}
	return r, nil
}

type multicallRequest struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type multicallResult struct {
	Success    bool
	ReturnData []byte
}

// LoadAll enumerates every reserve and fetches configuration, token
// addresses, oracle price and the normalized variable-debt index in one
// multicall. Any failed sub-call surfaces as ErrUpstreamUnavailable.
func (r *Reader) LoadAll(ctx context.Context) ([]*entity.Market, error) {
	reserves, err := r.getAllReservesTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerating reserves: %v", outbound.ErrUpstreamUnavailable, err)
	}

	const callsPerReserve = 4
	calls := make([]multicallRequest, 0, len(reserves)*callsPerReserve)
	for _, reserve := range reserves {
		configData, err := r.dataProviderABI.Pack("getReserveConfigurationData", reserve.TokenAddress)
		if err != nil {
			return nil, fmt.Errorf("packing getReserveConfigurationData: %w", err)
		}
		tokensData, err := r.dataProviderABI.Pack("getReserveTokensAddresses", reserve.TokenAddress)
		if err != nil {
			return nil, fmt.Errorf("packing getReserveTokensAddresses: %w", err)
		}
		priceData, err := r.priceOracleABI.Pack("getAssetPrice", reserve.TokenAddress)
		if err != nil {
			return nil, fmt.Errorf("packing getAssetPrice: %w", err)
		}
		indexData, err := r.lendingPoolABI.Pack("getReserveNormalizedVariableDebt", reserve.TokenAddress)
		if err != nil {
			return nil, fmt.Errorf("packing getReserveNormalizedVariableDebt: %w", err)
		}
		calls = append(calls,
			multicallRequest{Target: r.addresses.DataProvider, CallData: configData},
			multicallRequest{Target: r.addresses.DataProvider, CallData: tokensData},
			multicallRequest{Target: r.addresses.PriceOracle, CallData: priceData},
			multicallRequest{Target: r.addresses.LendingPool, CallData: indexData},
		)
	}

	results, err := r.executeMulticall(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("%w: loading reserve data: %v", outbound.ErrUpstreamUnavailable, err)
	}
	if len(results) != len(calls) {
		return nil, fmt.Errorf("%w: expected %d multicall results, got %d", outbound.ErrUpstreamUnavailable, len(calls), len(results))
	}

	markets := make([]*entity.Market, 0, len(reserves))
	for i, reserve := range reserves {
		base := i * callsPerReserve
		for j := 0; j < callsPerReserve; j++ {
			if !results[base+j].Success {
				return nil, fmt.Errorf("%w: reserve %s call %d reverted", outbound.ErrUpstreamUnavailable, reserve.Symbol, j)
			}
		}

		config, err := r.dataProviderABI.Unpack("getReserveConfigurationData", results[base].ReturnData)
		if err != nil {
			return nil, fmt.Errorf("unpacking configuration for %s: %w", reserve.Symbol, err)
		}
		tokens, err := r.dataProviderABI.Unpack("getReserveTokensAddresses", results[base+1].ReturnData)
		if err != nil {
			return nil, fmt.Errorf("unpacking token addresses for %s: %w", reserve.Symbol, err)
		}
		priceOut, err := r.priceOracleABI.Unpack("getAssetPrice", results[base+2].ReturnData)
		if err != nil {
			return nil, fmt.Errorf("unpacking price for %s: %w", reserve.Symbol, err)
		}
		indexOut, err := r.lendingPoolABI.Unpack("getReserveNormalizedVariableDebt", results[base+3].ReturnData)
		if err != nil {
			return nil, fmt.Errorf("unpacking debt index for %s: %w", reserve.Symbol, err)
		}

		market, err := entity.NewMarket(
			reserve.TokenAddress,
			reserve.Symbol,
			int(config[0].(*big.Int).Int64()),
			config[2].(*big.Int).Int64(),
			config[3].(*big.Int).Int64(),
			tokens[0].(common.Address),
			tokens[2].(common.Address),
			priceOut[0].(*big.Int),
			indexOut[0].(*big.Int),
		)
		if err != nil {
			return nil, fmt.Errorf("building market %s: %w", reserve.Symbol, err)
		}
		markets = append(markets, market)
	}

	return markets, nil
}

type reserveToken struct {
	Symbol       string
	TokenAddress common.Address
}

func (r *Reader) getAllReservesTokens(ctx context.Context) ([]reserveToken, error) {
	data, err := r.dataProviderABI.Pack("getAllReservesTokens")
	if err != nil {
		return nil, fmt.Errorf("packing getAllReservesTokens: %w", err)
	}

	raw, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.addresses.DataProvider, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling getAllReservesTokens: %w", err)
	}

	unpacked, err := r.dataProviderABI.Unpack("getAllReservesTokens", raw)
	if err != nil {
		return nil, fmt.Errorf("unpacking getAllReservesTokens: %w", err)
	}
	if len(unpacked) == 0 {
		return nil, nil
	}

	rawSlice := unpacked[0].([]struct {
		Symbol       string         `json:"symbol"`
		TokenAddress common.Address `json:"tokenAddress"`
	})

	reserves := make([]reserveToken, 0, len(rawSlice))
	for _, entry := range rawSlice {
		if entry.TokenAddress == (common.Address{}) {
			continue
		}
		reserves = append(reserves, reserveToken{Symbol: entry.Symbol, TokenAddress: entry.TokenAddress})
	}
	return reserves, nil
}

// GetAccountSummary fetches the borrower's aggregate position via a single
// getUserAccountData call. Returns nil on any RPC or decoding error.
func (r *Reader) GetAccountSummary(ctx context.Context, account common.Address) *entity.AccountSummary {
	data, err := r.lendingPoolABI.Pack("getUserAccountData", account)
	if err != nil {
		r.logger.Warn("failed to pack getUserAccountData", "account", account.Hex(), "error", err)
		return nil
	}

	raw, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.addresses.LendingPool, Data: data}, nil)
	if err != nil {
		r.logger.Debug("getUserAccountData call failed", "account", account.Hex(), "error", err)
		return nil
	}

	unpacked, err := r.lendingPoolABI.Unpack("getUserAccountData", raw)
	if err != nil || len(unpacked) < 6 {
		r.logger.Warn("failed to unpack getUserAccountData", "account", account.Hex(), "error", err)
		return nil
	}

	return &entity.AccountSummary{
		Address:                     account,
		TotalCollateral:             unpacked[0].(*big.Int),
		TotalDebt:                   unpacked[1].(*big.Int),
		AvailableBorrow:             unpacked[2].(*big.Int),
		CurrentLiquidationThreshold: unpacked[3].(*big.Int),
		HealthFactor:                unpacked[5].(*big.Int),
	}
}

// GetPositionLeg fetches the borrower's balances in one market via
// getUserReserveData. Returns nil on any RPC or decoding error.
func (r *Reader) GetPositionLeg(ctx context.Context, asset, account common.Address) *entity.PositionLeg {
	data, err := r.dataProviderABI.Pack("getUserReserveData", asset, account)
	if err != nil {
		r.logger.Warn("failed to pack getUserReserveData", "asset", asset.Hex(), "error", err)
		return nil
	}

	raw, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.addresses.DataProvider, Data: data}, nil)
	if err != nil {
		r.logger.Debug("getUserReserveData call failed", "asset", asset.Hex(), "account", account.Hex(), "error", err)
		return nil
	}

	unpacked, err := r.dataProviderABI.Unpack("getUserReserveData", raw)
	if err != nil || len(unpacked) < 9 {
		r.logger.Warn("failed to unpack getUserReserveData", "asset", asset.Hex(), "error", err)
		return nil
	}

	return &entity.PositionLeg{
		Asset:            asset,
		ATokenBalance:    unpacked[0].(*big.Int),
		StableDebt:       unpacked[1].(*big.Int),
		VariableDebt:     unpacked[2].(*big.Int),
		UsedAsCollateral: unpacked[8].(bool),
	}
}

func (r *Reader) executeMulticall(ctx context.Context, calls []multicallRequest) ([]multicallResult, error) {
	if len(calls) == 0 {
		return []multicallResult{}, nil
	}

	data, err := r.multicallABI.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("failed to pack multicall: %w", err)
	}

	raw, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.addresses.Multicall3, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call multicall contract: %w", err)
	}

	unpacked, err := r.multicallABI.Unpack("aggregate3", raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack multicall response: %w", err)
	}

	rawResults := unpacked[0].([]struct {
		Success    bool   `json:"success"`
		ReturnData []byte `json:"returnData"`
	})

	results := make([]multicallResult, len(rawResults))
	for i, res := range rawResults {
		results[i] = multicallResult{Success: res.Success, ReturnData: res.ReturnData}
	}
	return results, nil
}
