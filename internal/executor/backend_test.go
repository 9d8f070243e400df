package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"flatcoin-keeper/internal/flatcoin"
)

// fakeBackend answers the executor's RPC calls from in-memory state.
type fakeBackend struct {
	mu sync.Mutex

	viewer   *flatcoin.Viewer
	leverage *flatcoin.LeverageModule

	viewerAddr   common.Address
	leverageAddr common.Address

	estimate    uint64
	estimateErr error
	estimateMsg ethereum.CallMsg

	tip         *big.Int
	tipFailures int // fail this many calls before succeeding; <0 fails forever
	tipCalls    int

	baseFee *big.Int
	nonce   uint64

	positions   map[uint64]flatcoin.PositionSnapshot
	failIDs     map[uint64]bool
	callDelay   map[uint64]time.Duration
	rangeCalls  int
	singleCalls int
	tokenIDNext *big.Int

	sendErr       error
	sent          []*types.Transaction
	receiptStatus uint64
}

func newFakeBackend(viewerAddr, leverageAddr common.Address) *fakeBackend {
	viewer, err := flatcoin.NewViewer()
	if err != nil {
		panic(err)
	}
	leverage, err := flatcoin.NewLeverageModule()
	if err != nil {
		panic(err)
	}
	return &fakeBackend{
		viewer:        viewer,
		leverage:      leverage,
		viewerAddr:    viewerAddr,
		leverageAddr:  leverageAddr,
		estimate:      1000,
		tip:           big.NewInt(2_000_000_000),
		baseFee:       big.NewInt(10_000_000),
		positions:     map[uint64]flatcoin.PositionSnapshot{},
		failIDs:       map[uint64]bool{},
		callDelay:     map[uint64]time.Duration{},
		tokenIDNext:   big.NewInt(0),
		receiptStatus: types.ReceiptStatusSuccessful,
	}
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("bad call")
	}

	switch *msg.To {
	case f.leverageAddr:
		f.mu.Lock()
		n := f.tokenIDNext
		f.mu.Unlock()
		return f.leverage.EncodeTokenIDNext(n)

	case f.viewerAddr:
		if bytes.Equal(msg.Data[:4], f.viewer.Selector(true)) {
			return f.rangeCall(msg.Data)
		}
		id, err := f.viewer.UnpackPositionDataArgs(msg.Data)
		if err != nil {
			return nil, err
		}
		return f.singleCall(ctx, id.Uint64())
	}
	return nil, fmt.Errorf("unexpected call to %s", msg.To.Hex())
}

func (f *fakeBackend) singleCall(ctx context.Context, id uint64) ([]byte, error) {
	f.mu.Lock()
	f.singleCalls++
	delay := f.callDelay[id]
	fail := f.failIDs[id]
	p, ok := f.positions[id]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, fmt.Errorf("execution reverted: position %d", id)
	}
	if !ok {
		p = flatcoin.PositionSnapshot{TokenID: new(big.Int).SetUint64(id)}
	}
	return f.viewer.EncodePositionData(p)
}

func (f *fakeBackend) rangeCall(data []byte) ([]byte, error) {
	vals, err := rangeArgs(data)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.rangeCalls++
	f.mu.Unlock()

	out := make([]flatcoin.PositionSnapshot, 0)
	for id := vals[0]; id <= vals[1]; id++ {
		out = append(out, flatcoin.PositionSnapshot{TokenID: new(big.Int).SetUint64(id)})
	}
	return f.viewer.EncodePositionDataRange(out)
}

// rangeArgs reads the two uint256 words after the selector.
func rangeArgs(data []byte) ([2]uint64, error) {
	if len(data) < 4+64 {
		return [2]uint64{}, errors.New("range calldata too short")
	}
	from := new(big.Int).SetBytes(data[4:36])
	to := new(big.Int).SetBytes(data[36:68])
	return [2]uint64{from.Uint64(), to.Uint64()}, nil
}

func (f *fakeBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimateMsg = msg
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return f.estimate, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tipCalls++
	if f.tipFailures < 0 || f.tipCalls <= f.tipFailures {
		return nil, fmt.Errorf("eth_maxPriorityFeePerGas: 503 service unavailable (call %d)", f.tipCalls)
	}
	return new(big.Int).Set(f.tip), nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.Header{Number: big.NewInt(100), BaseFee: f.baseFee}, nil
}

func (f *fakeBackend) NonceAt(context.Context, common.Address, *big.Int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			return &types.Receipt{
				Status:      f.receiptStatus,
				TxHash:      hash,
				GasUsed:     tx.Gas() / 2,
				BlockNumber: big.NewInt(101),
			}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, nil
}

func (f *fakeBackend) sentTxs() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}
