package flatcoin

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	methodExecuteLimitOrder = "executeLimitOrder"
	methodGetPositionData   = "getPositionData"
	methodTokenIDNext       = "tokenIdNext"
)

func parseABI(name, raw string) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("%s abi parse: %w", name, err)
	}
	return parsed, nil
}

// LimitOrder encodes calls to the limit order module.
type LimitOrder struct {
	abi abi.ABI
}

func NewLimitOrder() (*LimitOrder, error) {
	parsed, err := parseABI("limit order", limitOrderABIJSON)
	if err != nil {
		return nil, err
	}
	return &LimitOrder{abi: parsed}, nil
}

// PackExecuteLimitOrder returns calldata for executeLimitOrder(tokenId, priceUpdateData).
func (l *LimitOrder) PackExecuteLimitOrder(tokenID *big.Int, priceUpdateData [][]byte) ([]byte, error) {
	if tokenID == nil || tokenID.Sign() < 0 {
		return nil, fmt.Errorf("executeLimitOrder: invalid token id %v", tokenID)
	}
	if priceUpdateData == nil {
		priceUpdateData = [][]byte{}
	}
	data, err := l.abi.Pack(methodExecuteLimitOrder, tokenID, priceUpdateData)
	if err != nil {
		return nil, fmt.Errorf("pack executeLimitOrder: %w", err)
	}
	return data, nil
}

// Viewer encodes and decodes the viewer's getPositionData overloads. The single
// id and range variants live in separate ABIs so neither gets a mangled name.
type Viewer struct {
	single abi.ABI
	ranged abi.ABI
}

func NewViewer() (*Viewer, error) {
	single, err := parseABI("viewer", viewerSingleABIJSON)
	if err != nil {
		return nil, err
	}
	ranged, err := parseABI("viewer range", viewerRangeABIJSON)
	if err != nil {
		return nil, err
	}
	return &Viewer{single: single, ranged: ranged}, nil
}

func (v *Viewer) PackPositionData(tokenID *big.Int) ([]byte, error) {
	data, err := v.single.Pack(methodGetPositionData, tokenID)
	if err != nil {
		return nil, fmt.Errorf("pack getPositionData(%v): %w", tokenID, err)
	}
	return data, nil
}

func (v *Viewer) UnpackPositionData(out []byte) (PositionSnapshot, error) {
	vals, err := v.single.Unpack(methodGetPositionData, out)
	if err != nil {
		return PositionSnapshot{}, fmt.Errorf("unpack getPositionData: %w", err)
	}
	if len(vals) != 1 {
		return PositionSnapshot{}, fmt.Errorf("unpack getPositionData: unexpected result len %d", len(vals))
	}
	raw := *abi.ConvertType(vals[0], new(leveragePositionData)).(*leveragePositionData)
	return raw.snapshot(), nil
}

func (v *Viewer) PackPositionDataRange(from, to *big.Int) ([]byte, error) {
	data, err := v.ranged.Pack(methodGetPositionData, from, to)
	if err != nil {
		return nil, fmt.Errorf("pack getPositionData(%v,%v): %w", from, to, err)
	}
	return data, nil
}

func (v *Viewer) UnpackPositionDataRange(out []byte) ([]PositionSnapshot, error) {
	vals, err := v.ranged.Unpack(methodGetPositionData, out)
	if err != nil {
		return nil, fmt.Errorf("unpack getPositionData range: %w", err)
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("unpack getPositionData range: unexpected result len %d", len(vals))
	}
	raws := *abi.ConvertType(vals[0], new([]leveragePositionData)).(*[]leveragePositionData)
	snapshots := make([]PositionSnapshot, 0, len(raws))
	for _, raw := range raws {
		snapshots = append(snapshots, raw.snapshot())
	}
	return snapshots, nil
}

// LeverageModule reads the position NFT counter.
type LeverageModule struct {
	abi abi.ABI
}

func NewLeverageModule() (*LeverageModule, error) {
	parsed, err := parseABI("leverage module", leverageModuleABIJSON)
	if err != nil {
		return nil, err
	}
	return &LeverageModule{abi: parsed}, nil
}

func (m *LeverageModule) PackTokenIDNext() ([]byte, error) {
	data, err := m.abi.Pack(methodTokenIDNext)
	if err != nil {
		return nil, fmt.Errorf("pack tokenIdNext: %w", err)
	}
	return data, nil
}

func (m *LeverageModule) UnpackTokenIDNext(out []byte) (*big.Int, error) {
	vals, err := m.abi.Unpack(methodTokenIDNext, out)
	if err != nil {
		return nil, fmt.Errorf("unpack tokenIdNext: %w", err)
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("unpack tokenIdNext: unexpected result len %d", len(vals))
	}
	n, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack tokenIdNext: unexpected type %T", vals[0])
	}
	return n, nil
}

// EncodePositionData produces the return data the single id viewer call would
// yield for p. Fake backends use it to answer eth_call.
func (v *Viewer) EncodePositionData(p PositionSnapshot) ([]byte, error) {
	return v.single.Methods[methodGetPositionData].Outputs.Pack(fromSnapshot(p))
}

// EncodePositionDataRange is the range variant of EncodePositionData.
func (v *Viewer) EncodePositionDataRange(ps []PositionSnapshot) ([]byte, error) {
	raws := make([]leveragePositionData, 0, len(ps))
	for _, p := range ps {
		raws = append(raws, fromSnapshot(p))
	}
	return v.ranged.Methods[methodGetPositionData].Outputs.Pack(raws)
}

func (m *LeverageModule) EncodeTokenIDNext(n *big.Int) ([]byte, error) {
	return m.abi.Methods[methodTokenIDNext].Outputs.Pack(n)
}

// Selector returns the 4-byte selector of a viewer call, used to tell the
// single id and range variants apart in calldata.
func (v *Viewer) Selector(ranged bool) []byte {
	if ranged {
		return v.ranged.Methods[methodGetPositionData].ID
	}
	return v.single.Methods[methodGetPositionData].ID
}

// UnpackPositionDataArgs decodes the token id from single id calldata.
func (v *Viewer) UnpackPositionDataArgs(calldata []byte) (*big.Int, error) {
	if len(calldata) < 4 {
		return nil, fmt.Errorf("calldata too short")
	}
	vals, err := v.single.Methods[methodGetPositionData].Inputs.Unpack(calldata[4:])
	if err != nil {
		return nil, err
	}
	id, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected token id type %T", vals[0])
	}
	return id, nil
}
