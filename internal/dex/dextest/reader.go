// Package dextest provides an in-memory chain reader answering ABI-packed responses.
package dextest

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNoResponse is returned for calls nothing was registered for.
var ErrNoResponse = errors.New("no response registered")

// Reader answers eth_call by target address and method selector.
type Reader struct {
	mu        sync.Mutex
	responses map[string][]byte
	failures  map[string]error
	calls     map[string]int
	total     int

	GasPrice    *big.Int
	GasEstimate uint64
	EstimateErr error
	estimates   int
}

// NewReader returns an empty reader.
func NewReader() *Reader {
	return &Reader{
		responses: make(map[string][]byte),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

func key(to common.Address, selector []byte) string {
	return to.Hex() + ":" + hex.EncodeToString(selector)
}

// Respond registers the return values of method on to.
func (r *Reader) Respond(to common.Address, parsed abi.ABI, method string, values ...interface{}) error {
	m, ok := parsed.Methods[method]
	if !ok {
		return fmt.Errorf("unknown method %s", method)
	}
	packed, err := m.Outputs.Pack(values...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}
	r.mu.Lock()
	r.responses[key(to, m.ID)] = packed
	delete(r.failures, key(to, m.ID))
	r.mu.Unlock()
	return nil
}

// Fail makes calls of method on to return err.
func (r *Reader) Fail(to common.Address, parsed abi.ABI, method string, err error) {
	r.mu.Lock()
	r.failures[key(to, parsed.Methods[method].ID)] = err
	r.mu.Unlock()
}

// Calls counts the calls of method on to.
func (r *Reader) Calls(to common.Address, parsed abi.ABI, method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key(to, parsed.Methods[method].ID)]
}

// Total counts every call.
func (r *Reader) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Estimates counts EstimateGas calls.
func (r *Reader) Estimates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.estimates
}

// CallView implements dex.ChainReader.
func (r *Reader) CallView(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("short calldata")
	}
	k := key(to, data[:4])

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[k]++
	r.total++
	if err, ok := r.failures[k]; ok {
		return nil, err
	}
	resp, ok := r.responses[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoResponse, k)
	}
	return resp, nil
}

// SuggestGasPrice implements cost.GasPriceReader.
func (r *Reader) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.GasPrice == nil {
		return nil, fmt.Errorf("%w: gas price", ErrNoResponse)
	}
	return new(big.Int).Set(r.GasPrice), nil
}

// EstimateGas implements cost.GasEstimator.
func (r *Reader) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.estimates++
	if r.EstimateErr != nil {
		return 0, r.EstimateErr
	}
	return r.GasEstimate, nil
}
