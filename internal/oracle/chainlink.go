package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const aggregatorABI = `[
  {"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"latestRoundData","outputs":[
    {"internalType":"uint80","name":"roundId","type":"uint80"},
    {"internalType":"int256","name":"answer","type":"int256"},
    {"internalType":"uint256","name":"startedAt","type":"uint256"},
    {"internalType":"uint256","name":"updatedAt","type":"uint256"},
    {"internalType":"uint80","name":"answeredInRound","type":"uint80"}
  ],"stateMutability":"view","type":"function"}
]`

// contractCaller is the subset of ethclient.Client used for aggregator reads.
type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ChainlinkSource reads the latest answer of a Chainlink-style price
// aggregator over JSON-RPC.
type ChainlinkSource struct {
	caller     contractCaller
	aggregator common.Address
	abi        abi.ABI
}

// DialChainlink connects to rpcURL and returns a source for the aggregator.
func DialChainlink(ctx context.Context, rpcURL string, aggregator common.Address) (*ChainlinkSource, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle: dial %s: %w", rpcURL, err)
	}
	src, err := NewChainlinkSource(client, aggregator)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return src, client, nil
}

func NewChainlinkSource(caller contractCaller, aggregator common.Address) (*ChainlinkSource, error) {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		return nil, fmt.Errorf("oracle: parse aggregator abi: %w", err)
	}
	return &ChainlinkSource{caller: caller, aggregator: aggregator, abi: parsed}, nil
}

func (s *ChainlinkSource) CurrentRate(ctx context.Context) (Rate, error) {
	out, err := s.call(ctx, "latestRoundData")
	if err != nil {
		return Rate{}, err
	}
	answer, ok := out[1].(*big.Int)
	if !ok {
		return Rate{}, fmt.Errorf("oracle: unexpected answer type %T", out[1])
	}

	out, err = s.call(ctx, "decimals")
	if err != nil {
		return Rate{}, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return Rate{}, fmt.Errorf("oracle: unexpected decimals type %T", out[0])
	}

	return Rate{Value: answer, Decimals: decimals}, nil
}

func (s *ChainlinkSource) call(ctx context.Context, method string) ([]interface{}, error) {
	data, err := s.abi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("oracle: pack %s: %w", method, err)
	}
	to := s.aggregator
	raw, err := s.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("oracle: call %s: %w", method, err)
	}
	out, err := s.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("oracle: unpack %s: %w", method, err)
	}
	return out, nil
}
