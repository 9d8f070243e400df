package executor

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"flatcoin-keeper/internal/flatcoin"
)

var (
	limitOrderAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	viewerAddr     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	leverageAddr   = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type revertErr struct{ data string }

func (e *revertErr) Error() string          { return "execution reverted" }
func (e *revertErr) ErrorData() interface{} { return e.data }

func newTestExecutor(t *testing.T) (*Executor, *fakeBackend) {
	t.Helper()
	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	backend := newFakeBackend(viewerAddr, leverageAddr)
	ex, err := New(Config{
		PrivateKey:            pk,
		ChainID:               big.NewInt(8453),
		LimitOrderAddress:     limitOrderAddr,
		ViewerAddress:         viewerAddr,
		LeverageModuleAddress: leverageAddr,
		FeeRetryDelay:         time.Millisecond,
	}, backend, nil, nil)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	return ex, backend
}

func TestGasLimit(t *testing.T) {
	cases := []struct {
		estimate uint64
		want     uint64
	}{
		{estimate: 0, want: 0},
		{estimate: 3, want: 4},
		{estimate: 1000, want: 1400},
		{estimate: 21_001, want: 29_401},
		{estimate: 250_000, want: 350_000},
	}
	for _, tc := range cases {
		got, err := GasLimit(tc.estimate)
		if err != nil {
			t.Fatalf("GasLimit(%d): %v", tc.estimate, err)
		}
		if got != tc.want {
			t.Fatalf("GasLimit(%d): got %d, want %d", tc.estimate, got, tc.want)
		}
	}

	if _, err := GasLimit(^uint64(0)); err == nil {
		t.Fatalf("expected overflow err")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	backend := newFakeBackend(viewerAddr, leverageAddr)
	if _, err := New(Config{}, backend, nil, nil); err == nil {
		t.Fatalf("expected err for empty config")
	}
	pk, _ := crypto.GenerateKey()
	if _, err := New(Config{PrivateKey: pk, ChainID: big.NewInt(1)}, backend, nil, nil); err == nil {
		t.Fatalf("expected err for missing addresses")
	}
	if _, err := New(Config{PrivateKey: pk}, nil, nil, nil); err == nil {
		t.Fatalf("expected err for nil backend")
	}
}

func TestExecuteLimitOrder(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ex, backend := newTestExecutor(t)
		update := [][]byte{{0xde, 0xad}, {0xbe, 0xef}}

		hash, err := ex.ExecuteLimitOrder(context.Background(), 7, update, 12)
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if hash == (common.Hash{}) {
			t.Fatalf("expected non-empty hash")
		}

		sent := backend.sentTxs()
		if len(sent) != 1 {
			t.Fatalf("got %d sent txs, want 1", len(sent))
		}
		tx := sent[0]
		if tx.Hash() != hash {
			t.Fatalf("hash mismatch: got %s want %s", hash.Hex(), tx.Hash().Hex())
		}
		if tx.Type() != types.DynamicFeeTxType {
			t.Fatalf("tx type: got %d", tx.Type())
		}
		if tx.Gas() != 1400 {
			t.Fatalf("gas limit: got %d, want 1400", tx.Gas())
		}
		if tx.Nonce() != 12 {
			t.Fatalf("nonce: got %d, want 12", tx.Nonce())
		}
		if tx.Value().Cmp(big.NewInt(1)) != 0 {
			t.Fatalf("value: got %s, want 1", tx.Value())
		}
		if tx.GasTipCap().Cmp(backend.tip) != 0 {
			t.Fatalf("tip: got %s, want %s", tx.GasTipCap(), backend.tip)
		}
		wantCap := new(big.Int).Add(new(big.Int).Mul(backend.baseFee, big.NewInt(2)), backend.tip)
		if tx.GasFeeCap().Cmp(wantCap) != 0 {
			t.Fatalf("fee cap: got %s, want %s", tx.GasFeeCap(), wantCap)
		}
		if tx.To() == nil || *tx.To() != limitOrderAddr {
			t.Fatalf("to: got %v", tx.To())
		}

		from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(8453)), tx)
		if err != nil {
			t.Fatalf("sender: %v", err)
		}
		if from != ex.Signer() {
			t.Fatalf("sender: got %s, want %s", from.Hex(), ex.Signer().Hex())
		}

		if backend.estimateMsg.Value.Cmp(big.NewInt(1)) != 0 || backend.estimateMsg.From != ex.Signer() {
			t.Fatalf("estimate msg: value=%s from=%s", backend.estimateMsg.Value, backend.estimateMsg.From.Hex())
		}
		if backend.tipCalls != 1 {
			t.Fatalf("tip calls: got %d, want 1", backend.tipCalls)
		}
	})

	t.Run("estimate_failure_decoded", func(t *testing.T) {
		ex, backend := newTestExecutor(t)
		backend.estimateErr = &revertErr{data: hexutil.Encode(encodeFlatcoinError(t, "LimitOrderInvalid", big.NewInt(7)))}

		_, err := ex.ExecuteLimitOrder(context.Background(), 7, nil, 0)
		var estErr *EstimateGasError
		if !errors.As(err, &estErr) {
			t.Fatalf("got %v, want *EstimateGasError", err)
		}
		if estErr.Name != "LimitOrderInvalid" || estErr.TokenID != 7 {
			t.Fatalf("unexpected estimate error: %+v", estErr)
		}
		if !errors.Is(err, backend.estimateErr) {
			t.Fatalf("raw error not wrapped")
		}
		if backend.tipCalls != 0 || len(backend.sentTxs()) != 0 {
			t.Fatalf("no fee lookup or send expected: tipCalls=%d sent=%d", backend.tipCalls, len(backend.sentTxs()))
		}
	})

	t.Run("fee_retry_then_success", func(t *testing.T) {
		ex, backend := newTestExecutor(t)
		backend.tipFailures = 2

		if _, err := ex.ExecuteLimitOrder(context.Background(), 1, nil, 0); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if backend.tipCalls != 3 {
			t.Fatalf("tip calls: got %d, want 3", backend.tipCalls)
		}
	})

	t.Run("fee_retries_exhausted", func(t *testing.T) {
		ex, backend := newTestExecutor(t)
		backend.tipFailures = -1

		_, err := ex.ExecuteLimitOrder(context.Background(), 1, nil, 0)
		if !errors.Is(err, ErrMaxRetries) {
			t.Fatalf("got %v, want ErrMaxRetries", err)
		}
		if backend.tipCalls != 3 {
			t.Fatalf("tip calls: got %d, want 3", backend.tipCalls)
		}
		if len(backend.sentTxs()) != 0 {
			t.Fatalf("nothing should be sent")
		}
	})

	t.Run("send_failure", func(t *testing.T) {
		ex, backend := newTestExecutor(t)
		backend.sendErr = errors.New("nonce too low")

		hash, err := ex.ExecuteLimitOrder(context.Background(), 1, nil, 0)
		if err == nil || !errors.Is(err, backend.sendErr) {
			t.Fatalf("got %v, want send error", err)
		}
		if hash != (common.Hash{}) {
			t.Fatalf("expected empty hash, got %s", hash.Hex())
		}
	})

	t.Run("reverted_receipt", func(t *testing.T) {
		ex, backend := newTestExecutor(t)
		backend.receiptStatus = types.ReceiptStatusFailed

		hash, err := ex.ExecuteLimitOrder(context.Background(), 1, nil, 0)
		if !errors.Is(err, ErrTxReverted) {
			t.Fatalf("got %v, want ErrTxReverted", err)
		}
		if hash == (common.Hash{}) {
			t.Fatalf("reverted tx must still report its hash")
		}
	})
}

func TestPositionDataBatched(t *testing.T) {
	t.Run("input_order", func(t *testing.T) {
		ex, backend := newTestExecutor(t)
		// Slowest first so completion order differs from input order.
		backend.callDelay[5] = 30 * time.Millisecond
		backend.callDelay[1] = 15 * time.Millisecond

		got, err := ex.PositionDataBatched(context.Background(), []uint64{5, 1, 9})
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		want := []int64{5, 1, 9}
		if len(got) != len(want) {
			t.Fatalf("got %d snapshots, want %d", len(got), len(want))
		}
		for i, w := range want {
			if got[i].TokenID.Int64() != w {
				t.Fatalf("snapshot %d: got id %s, want %d", i, got[i].TokenID, w)
			}
		}
		if backend.singleCalls != 3 {
			t.Fatalf("calls: got %d, want 3", backend.singleCalls)
		}
	})

	t.Run("one_failure_fails_all", func(t *testing.T) {
		ex, backend := newTestExecutor(t)
		backend.failIDs[1] = true

		got, err := ex.PositionDataBatched(context.Background(), []uint64{5, 1, 9})
		if err == nil {
			t.Fatalf("expected err")
		}
		if got != nil {
			t.Fatalf("expected no partial results, got %d", len(got))
		}
	})

	t.Run("empty", func(t *testing.T) {
		ex, backend := newTestExecutor(t)
		got, err := ex.PositionDataBatched(context.Background(), nil)
		if err != nil || len(got) != 0 {
			t.Fatalf("got %v, %v", got, err)
		}
		if backend.singleCalls != 0 {
			t.Fatalf("no calls expected")
		}
	})

	t.Run("maps_fields", func(t *testing.T) {
		ex, backend := newTestExecutor(t)
		backend.positions[4] = flatcoin.PositionSnapshot{
			TokenID:                       big.NewInt(4),
			ProfitLoss:                    big.NewInt(-12),
			LimitOrderPriceLowerThreshold: big.NewInt(1_000),
			LimitOrderPriceUpperThreshold: big.NewInt(2_000),
		}
		got, err := ex.PositionDataBatched(context.Background(), []uint64{4})
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		p := got[0]
		if p.ProfitLoss.Int64() != -12 || p.LimitOrderPriceLowerThreshold.Int64() != 1_000 || p.LimitOrderPriceUpperThreshold.Int64() != 2_000 {
			t.Fatalf("unexpected snapshot: %+v", p)
		}
	})
}

func TestPositionDataBatchedFromTo(t *testing.T) {
	ex, backend := newTestExecutor(t)

	got, err := ex.PositionDataBatchedFromTo(context.Background(), 10, 12)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(got))
	}
	for i, p := range got {
		if want := int64(10 + i); p.TokenID.Int64() != want {
			t.Fatalf("snapshot %d: got id %s, want %d", i, p.TokenID, want)
		}
	}
	if backend.rangeCalls != 1 || backend.singleCalls != 0 {
		t.Fatalf("calls: range=%d single=%d, want one range call", backend.rangeCalls, backend.singleCalls)
	}

	if _, err := ex.PositionDataBatchedFromTo(context.Background(), 12, 10); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("got %v, want ErrInvalidRange", err)
	}
}

func TestTokenIDNext(t *testing.T) {
	ex, backend := newTestExecutor(t)
	backend.tokenIDNext = big.NewInt(311)

	got, err := ex.TokenIDNext(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != 311 {
		t.Fatalf("got %d, want 311", got)
	}

	backend.tokenIDNext = new(big.Int).Lsh(big.NewInt(1), 64)
	if _, err := ex.TokenIDNext(context.Background()); !errors.Is(err, ErrTokenIDOverflow) {
		t.Fatalf("got %v, want ErrTokenIDOverflow", err)
	}
}

func TestNonceAndPriorityFee(t *testing.T) {
	ex, backend := newTestExecutor(t)
	backend.nonce = 42

	n, err := ex.Nonce(context.Background())
	if err != nil || n != 42 {
		t.Fatalf("got %d, %v; want 42", n, err)
	}

	tip, err := ex.MaxPriorityFeePerGas(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if tip.Cmp(backend.tip) != 0 {
		t.Fatalf("got %s, want %s", tip, backend.tip)
	}
}

func encodeFlatcoinError(t *testing.T, name string, args ...interface{}) []byte {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(flatcoin.ErrorsABIJSON))
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	e := parsed.Errors[name]
	packed, err := e.Inputs.Pack(args...)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return append(append([]byte{}, e.ID[:4]...), packed...)
}
