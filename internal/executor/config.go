package executor

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// GasLimitPaddingPercent is the safety margin added on top of eth_estimateGas.
	GasLimitPaddingPercent = 40

	DefaultFeeRetryAttempts = 3
	DefaultFeeRetryDelay    = 500 * time.Millisecond
	DefaultBatchConcurrency = 16
)

// ExecutionValue is the wei attached to every executeLimitOrder call; the
// limit order module charges it towards the oracle update fee.
func ExecutionValue() *big.Int {
	return big.NewInt(1)
}

// Config is built once at startup and never mutated afterwards.
type Config struct {
	PrivateKey *ecdsa.PrivateKey
	ChainID    *big.Int

	LimitOrderAddress     common.Address
	ViewerAddress         common.Address
	LeverageModuleAddress common.Address

	FeeRetryAttempts int
	FeeRetryDelay    time.Duration
	BatchConcurrency int
}

func (c Config) withDefaults() Config {
	if c.FeeRetryAttempts <= 0 {
		c.FeeRetryAttempts = DefaultFeeRetryAttempts
	}
	if c.FeeRetryDelay <= 0 {
		c.FeeRetryDelay = DefaultFeeRetryDelay
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = DefaultBatchConcurrency
	}
	return c
}

func (c Config) Validate() error {
	if c.PrivateKey == nil {
		return errors.New("signer private key required")
	}
	if c.ChainID == nil || c.ChainID.Sign() <= 0 {
		return fmt.Errorf("invalid chain id %v", c.ChainID)
	}
	if c.LimitOrderAddress == (common.Address{}) {
		return errors.New("limit order contract address required")
	}
	if c.ViewerAddress == (common.Address{}) {
		return errors.New("viewer contract address required")
	}
	if c.LeverageModuleAddress == (common.Address{}) {
		return errors.New("leverage module contract address required")
	}
	return nil
}
