package dex

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// SwapDeadline is how far ahead estimate-mode swap calls set their deadline.
const SwapDeadline = 20 * time.Minute

// SwapSender is the from and recipient address of estimated swaps. No key exists for it; calls are never sent.
var SwapSender = common.HexToAddress("0x0000000000000000000000000000000000000001")

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

type algebraExactInputSingleParams struct {
	TokenIn          common.Address
	TokenOut         common.Address
	Recipient        common.Address
	Deadline         *big.Int
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
	LimitSqrtPrice   *big.Int
}

// BuildUniswapSwap forms a SwapRouter exactInputSingle call for gas estimation.
func BuildUniswapSwap(router common.Address, pair PairContext, fee uint32, amountIn *big.Int, deadline time.Time, wrappedNative common.Address) (*ethereum.CallMsg, error) {
	routerABI, err := SwapRouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	data, err := routerABI.Pack("exactInputSingle", exactInputSingleParams{
		TokenIn:           pair.TokenIn.Address,
		TokenOut:          pair.TokenOut.Address,
		Fee:               new(big.Int).SetUint64(uint64(fee)),
		Recipient:         SwapSender,
		Deadline:          big.NewInt(deadline.Unix()),
		AmountIn:          amountIn,
		AmountOutMinimum:  new(big.Int),
		SqrtPriceLimitX96: new(big.Int),
	})
	if err != nil {
		return nil, fmt.Errorf("pack exactInputSingle: %w", err)
	}
	return swapMsg(router, data, pair, amountIn, wrappedNative), nil
}

// BuildAlgebraSwap forms an Algebra router exactInputSingle call for gas estimation.
func BuildAlgebraSwap(router common.Address, pair PairContext, amountIn *big.Int, deadline time.Time, wrappedNative common.Address) (*ethereum.CallMsg, error) {
	routerABI, err := AlgebraRouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	data, err := routerABI.Pack("exactInputSingle", algebraExactInputSingleParams{
		TokenIn:          pair.TokenIn.Address,
		TokenOut:         pair.TokenOut.Address,
		Recipient:        SwapSender,
		Deadline:         big.NewInt(deadline.Unix()),
		AmountIn:         amountIn,
		AmountOutMinimum: new(big.Int),
		LimitSqrtPrice:   new(big.Int),
	})
	if err != nil {
		return nil, fmt.Errorf("pack exactInputSingle: %w", err)
	}
	return swapMsg(router, data, pair, amountIn, wrappedNative), nil
}

func swapMsg(router common.Address, data []byte, pair PairContext, amountIn *big.Int, wrappedNative common.Address) *ethereum.CallMsg {
	msg := &ethereum.CallMsg{From: SwapSender, To: &router, Data: data}
	if pair.TokenIn.Address == wrappedNative {
		msg.Value = new(big.Int).Set(amountIn)
	}
	return msg
}
