// Package executor submits Flatcoin limit order executions and serves
// position reads against an EVM node.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"flatcoin-keeper/internal/chainutil"
	"flatcoin-keeper/internal/flatcoin"
	"flatcoin-keeper/internal/revert"
)

var (
	ErrTokenIDOverflow = errors.New("tokenIdNext exceeds uint64")
	ErrTxReverted      = errors.New("transaction reverted")
	ErrInvalidRange    = errors.New("invalid token id range")
)

// Backend is the slice of *ethclient.Client the executor needs.
type Backend interface {
	bind.DeployBackend

	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	// SuggestGasTipCap issues eth_maxPriorityFeePerGas.
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// EstimateGasError reports a rejected gas estimate. Name is the decoded
// contract error ("" when it could not be decoded).
type EstimateGasError struct {
	TokenID uint64
	Name    string
	Err     error
}

func (e *EstimateGasError) Error() string {
	name := e.Name
	if name == "" {
		name = "unknown"
	}
	return fmt.Sprintf("estimate gas for token %d failed (%s): %v", e.TokenID, name, e.Err)
}

func (e *EstimateGasError) Unwrap() error { return e.Err }

// Executor holds no per-call state and is safe for concurrent use.
type Executor struct {
	cfg      Config
	backend  Backend
	signer   common.Address
	txSigner types.Signer

	limitOrder *flatcoin.LimitOrder
	viewer     *flatcoin.Viewer
	leverage   *flatcoin.LeverageModule
	decoder    *revert.Decoder
	logger     *zap.Logger
}

// New builds an Executor. A nil decoder uses the Flatcoin error table; a nil
// logger discards output.
func New(cfg Config, backend Backend, decoder *revert.Decoder, logger *zap.Logger) (*Executor, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if decoder == nil {
		d, err := revert.NewDecoder(flatcoin.ErrorsABIJSON, logger)
		if err != nil {
			return nil, err
		}
		decoder = d
	}

	limitOrder, err := flatcoin.NewLimitOrder()
	if err != nil {
		return nil, err
	}
	viewer, err := flatcoin.NewViewer()
	if err != nil {
		return nil, err
	}
	leverage, err := flatcoin.NewLeverageModule()
	if err != nil {
		return nil, err
	}

	return &Executor{
		cfg:        cfg,
		backend:    backend,
		signer:     crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey),
		txSigner:   types.LatestSignerForChainID(cfg.ChainID),
		limitOrder: limitOrder,
		viewer:     viewer,
		leverage:   leverage,
		decoder:    decoder,
		logger:     logger,
	}, nil
}

// Signer is the address transactions are sent from.
func (e *Executor) Signer() common.Address {
	return e.signer
}

// ExecuteLimitOrder estimates, prices, signs and sends executeLimitOrder for
// tokenID, then blocks until the receipt is mined or ctx ends. The nonce is
// supplied by the caller so submissions can be sequenced externally.
//
// Once SendTransaction succeeds the returned hash is set even when waiting
// fails, because the transaction cannot be withdrawn.
func (e *Executor) ExecuteLimitOrder(ctx context.Context, tokenID uint64, priceUpdateData [][]byte, nonce uint64) (common.Hash, error) {
	log := e.logger.With(zap.Uint64("token_id", tokenID))
	log.Info("executing limit order", zap.Int("price_updates", len(priceUpdateData)), zap.Uint64("nonce", nonce))
	started := time.Now()

	data, err := e.limitOrder.PackExecuteLimitOrder(new(big.Int).SetUint64(tokenID), priceUpdateData)
	if err != nil {
		return common.Hash{}, err
	}
	to := e.cfg.LimitOrderAddress

	estimated, err := e.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  e.signer,
		To:    &to,
		Value: ExecutionValue(),
		Data:  data,
	})
	if err != nil {
		name := e.decoder.GasEstimateErrorName(err)
		log.Error("failed to estimate gas", zap.String("error_name", name), zap.Error(err))
		limitOrderExecutions.WithLabelValues(resultEstimateFailed).Inc()
		estimateFailures.WithLabelValues(errorNameLabel(name)).Inc()
		return common.Hash{}, &EstimateGasError{TokenID: tokenID, Name: name, Err: err}
	}
	log.Info("tx estimated", zap.Uint64("estimate", estimated))

	tip, err := e.MaxPriorityFeePerGasWithRetry(ctx, e.cfg.FeeRetryAttempts, e.cfg.FeeRetryDelay)
	if err != nil {
		limitOrderExecutions.WithLabelValues(resultFeeFailed).Inc()
		return common.Hash{}, fmt.Errorf("priority fee for token %d: %w", tokenID, err)
	}

	gasLimit, err := GasLimit(estimated)
	if err != nil {
		return common.Hash{}, err
	}
	feeCap, err := e.gasFeeCap(ctx, tip)
	if err != nil {
		limitOrderExecutions.WithLabelValues(resultSendFailed).Inc()
		return common.Hash{}, err
	}

	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   e.cfg.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     ExecutionValue(),
		Data:      data,
	}), e.txSigner, e.cfg.PrivateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign executeLimitOrder: %w", err)
	}

	if err := e.backend.SendTransaction(ctx, tx); err != nil {
		log.Error("failed to send tx", zap.Error(err))
		limitOrderExecutions.WithLabelValues(resultSendFailed).Inc()
		return common.Hash{}, fmt.Errorf("send executeLimitOrder for token %d: %w", tokenID, err)
	}
	log.Info("tx sent",
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("gas_limit", gasLimit),
		zap.String("tip", tip.String()),
		zap.String("fee_cap", feeCap.String()),
	)

	receipt, err := bind.WaitMined(ctx, e.backend, tx)
	if err != nil {
		return tx.Hash(), fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	executionLatency.Observe(time.Since(started).Seconds())
	if receipt.Status != types.ReceiptStatusSuccessful {
		log.Error("tx reverted", zap.String("tx", tx.Hash().Hex()), zap.Uint64("gas_used", receipt.GasUsed))
		limitOrderExecutions.WithLabelValues(resultReverted).Inc()
		return tx.Hash(), fmt.Errorf("%w: %s", ErrTxReverted, tx.Hash().Hex())
	}

	log.Info("tx mined", zap.String("tx", tx.Hash().Hex()), zap.Uint64("gas_used", receipt.GasUsed))
	limitOrderExecutions.WithLabelValues(resultOK).Inc()
	return tx.Hash(), nil
}

// GasLimit pads an estimate by GasLimitPaddingPercent, truncating the padding.
func GasLimit(estimate uint64) (uint64, error) {
	e := new(big.Int).SetUint64(estimate)
	pad := new(big.Int).Mul(e, big.NewInt(GasLimitPaddingPercent))
	pad.Quo(pad, big.NewInt(100))
	limit := e.Add(e, pad)
	if !limit.IsUint64() {
		return 0, fmt.Errorf("gas limit for estimate %d overflows uint64", estimate)
	}
	return limit.Uint64(), nil
}

// gasFeeCap follows the usual 2*baseFee + tip rule so the transaction stays
// valid across a few blocks of base fee growth.
func (e *Executor) gasFeeCap(ctx context.Context, tip *big.Int) (*big.Int, error) {
	head, err := e.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch latest header: %w", err)
	}
	if head.BaseFee == nil {
		return new(big.Int).Set(tip), nil
	}
	feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	return feeCap.Add(feeCap, tip), nil
}

// MaxPriorityFeePerGas is a direct eth_maxPriorityFeePerGas call.
func (e *Executor) MaxPriorityFeePerGas(ctx context.Context) (*big.Int, error) {
	tip, err := e.backend.SuggestGasTipCap(ctx)
	if err != nil {
		feeQueryFailures.Inc()
		return nil, err
	}
	return tip, nil
}

func (e *Executor) MaxPriorityFeePerGasWithRetry(ctx context.Context, attempts int, delay time.Duration) (*big.Int, error) {
	return Retry(ctx, e.logger, "maxPriorityFeePerGas", attempts, delay, e.MaxPriorityFeePerGas)
}

// Nonce returns the signer's transaction count at the latest block.
func (e *Executor) Nonce(ctx context.Context) (uint64, error) {
	n, err := e.backend.NonceAt(ctx, e.signer, nil)
	if err != nil {
		return 0, fmt.Errorf("nonce for %s: %w", e.signer.Hex(), err)
	}
	return n, nil
}

// TokenIDNext returns the id the leverage module will mint next.
func (e *Executor) TokenIDNext(ctx context.Context) (uint64, error) {
	data, err := e.leverage.PackTokenIDNext()
	if err != nil {
		return 0, err
	}
	out, err := e.call(ctx, e.cfg.LeverageModuleAddress, data)
	if err != nil {
		return 0, fmt.Errorf("tokenIdNext: %w", err)
	}
	raw, err := e.leverage.UnpackTokenIDNext(out)
	if err != nil {
		return 0, err
	}
	n, err := chainutil.Uint64FromUint256(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTokenIDOverflow, err)
	}
	return n, nil
}

// PositionDataBatched reads each position with its own eth_call, concurrently,
// and returns them in input order. The first failure cancels the remaining
// reads and no partial result is returned.
func (e *Executor) PositionDataBatched(ctx context.Context, tokenIDs []uint64) ([]flatcoin.PositionSnapshot, error) {
	out := make([]flatcoin.PositionSnapshot, len(tokenIDs))
	if len(tokenIDs) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.BatchConcurrency)
	for i, id := range tokenIDs {
		i, id := i, id
		g.Go(func() error {
			p, err := e.positionData(gctx, id)
			if err != nil {
				return fmt.Errorf("position %d: %w", id, err)
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Executor) positionData(ctx context.Context, tokenID uint64) (flatcoin.PositionSnapshot, error) {
	data, err := e.viewer.PackPositionData(new(big.Int).SetUint64(tokenID))
	if err != nil {
		return flatcoin.PositionSnapshot{}, err
	}
	out, err := e.call(ctx, e.cfg.ViewerAddress, data)
	positionReads.WithLabelValues("single", readResult(err)).Inc()
	if err != nil {
		return flatcoin.PositionSnapshot{}, err
	}
	return e.viewer.UnpackPositionData(out)
}

// PositionDataBatchedFromTo reads the inclusive range [from, to] in one call.
func (e *Executor) PositionDataBatchedFromTo(ctx context.Context, from, to uint64) ([]flatcoin.PositionSnapshot, error) {
	if from > to {
		return nil, fmt.Errorf("%w: from %d > to %d", ErrInvalidRange, from, to)
	}
	data, err := e.viewer.PackPositionDataRange(new(big.Int).SetUint64(from), new(big.Int).SetUint64(to))
	if err != nil {
		return nil, err
	}
	out, err := e.call(ctx, e.cfg.ViewerAddress, data)
	positionReads.WithLabelValues("range", readResult(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("positions %d..%d: %w", from, to, err)
	}
	return e.viewer.UnpackPositionDataRange(out)
}

func (e *Executor) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return e.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}
