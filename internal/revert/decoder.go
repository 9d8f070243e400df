// Package revert turns failed eth_estimateGas / eth_call errors into the name
// of the contract error that caused them.
package revert

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const (
	errorMarker = "error="
	codeMarker  = ", code="

	NameError = "Error"
	NamePanic = "Panic"
)

var (
	errorSelector = crypto.Keccak256([]byte("Error(string)"))[:4]
	panicSelector = crypto.Keccak256([]byte("Panic(uint256)"))[:4]

	ErrShortData       = errors.New("revert data shorter than a selector")
	ErrUnknownSelector = errors.New("unknown error selector")
)

// Revert is a decoded revert payload.
type Revert struct {
	Name string
	Args []interface{}
}

func (r Revert) String() string {
	args := make([]string, len(r.Args))
	for i, v := range r.Args {
		args[i] = fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("%s(%s)", r.Name, strings.Join(args, ", "))
}

// Decoder indexes custom-error selectors from a single ABI. It is read-only
// after construction and safe for concurrent use.
type Decoder struct {
	bySelector map[[4]byte]abi.Error
	logger     *zap.Logger
}

func NewDecoder(errorsABIJSON string, logger *zap.Logger) (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(errorsABIJSON))
	if err != nil {
		return nil, fmt.Errorf("errors abi parse: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	idx := make(map[[4]byte]abi.Error, len(parsed.Errors))
	for _, e := range parsed.Errors {
		var key [4]byte
		copy(key[:], e.ID[:4])
		idx[key] = e
	}
	return &Decoder{bySelector: idx, logger: logger}, nil
}

// Decode resolves revert data to a named error with its arguments.
func (d *Decoder) Decode(data []byte) (Revert, error) {
	if len(data) < 4 {
		return Revert{}, ErrShortData
	}
	sel := data[:4]

	switch {
	case bytes.Equal(sel, errorSelector):
		reason, err := abi.UnpackRevert(data)
		if err != nil {
			return Revert{}, fmt.Errorf("unpack Error(string): %w", err)
		}
		return Revert{Name: NameError, Args: []interface{}{reason}}, nil
	case bytes.Equal(sel, panicSelector):
		if len(data) < 4+32 {
			return Revert{}, fmt.Errorf("unpack Panic(uint256): %w", ErrShortData)
		}
		code := new(big.Int).SetBytes(data[4 : 4+32])
		return Revert{Name: NamePanic, Args: []interface{}{code}}, nil
	}

	var key [4]byte
	copy(key[:], sel)
	e, ok := d.bySelector[key]
	if !ok {
		return Revert{}, fmt.Errorf("%w 0x%x", ErrUnknownSelector, sel)
	}
	vals, err := e.Inputs.Unpack(data[4:])
	if err != nil {
		return Revert{}, fmt.Errorf("unpack %s: %w", e.Name, err)
	}
	return Revert{Name: e.Name, Args: vals}, nil
}

// GasEstimateErrorName returns the contract error name behind a failed gas
// estimate. It is best-effort: it never fails and returns "" when nothing
// can be decoded.
//
// Revert data carried by the RPC error itself is preferred. Otherwise the
// error text is scanned with ErrorNameFromString.
func (d *Decoder) GasEstimateErrorName(err error) string {
	if err == nil {
		return ""
	}
	if data, ok := RevertData(err); ok {
		rev, derr := d.Decode(data)
		if derr != nil {
			d.logger.Error("can't decode revert data", zap.Error(derr))
			return ""
		}
		return rev.Name
	}
	return d.ErrorNameFromString(err.Error())
}

// ErrorNameFromString scans a stringified provider error of the form
// `... error={"error":{"data":"0x..."}}, code=...` for revert data.
//
// Text without an error= marker is returned as is; every other failure
// yields "".
func (d *Decoder) ErrorNameFromString(raw string) string {
	if raw == "" {
		return ""
	}
	start := strings.Index(raw, errorMarker)
	if start < 0 {
		return raw
	}
	start += len(errorMarker)

	end := strings.Index(raw[start:], codeMarker)
	if end < 0 {
		d.logger.Error("can't get gas estimate error", zap.String("reason", "missing code marker"))
		return ""
	}

	var payload struct {
		Error struct {
			Data string `json:"data"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(raw[start:start+end]), &payload); err != nil {
		d.logger.Error("can't get gas estimate error", zap.Error(err))
		return ""
	}
	data, err := hexutil.Decode(payload.Error.Data)
	if err != nil {
		d.logger.Error("can't get gas estimate error", zap.Error(err))
		return ""
	}
	rev, err := d.Decode(data)
	if err != nil {
		d.logger.Error("can't get gas estimate error", zap.Error(err))
		return ""
	}
	return rev.Name
}

// RevertData extracts revert bytes from an error chain. go-ethereum's RPC
// client exposes them through rpc.DataError.
func RevertData(err error) ([]byte, bool) {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return nil, false
	}
	switch v := de.ErrorData().(type) {
	case string:
		if b, err := hexutil.Decode(v); err == nil {
			return b, true
		}
	case []byte:
		return v, true
	case hexutil.Bytes:
		return v, true
	case map[string]interface{}:
		if s, ok := v["data"].(string); ok {
			if b, err := hexutil.Decode(s); err == nil {
				return b, true
			}
		}
	}
	return nil, false
}
