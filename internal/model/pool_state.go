package model

import "math/big"

// RawPoolState is what one pipeline run read from a pool: its price encoding, fee and token decimals.
type RawPoolState struct {
	SqrtPriceX96 *big.Int
	// Fee in hundredths of a bip. Dynamic-fee pools set FeeZeroForOne and FeeOneForZero instead.
	Fee           uint32
	FeeZeroForOne uint32
	FeeOneForZero uint32
	Decimals0     uint8
	Decimals1     uint8
}
