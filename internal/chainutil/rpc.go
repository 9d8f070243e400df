package chainutil

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// WeiDecimals is the fixed-point scale Flatcoin uses for prices and amounts.
const WeiDecimals = 18

var ErrUint64Overflow = errors.New("value does not fit in uint64")

func RPCURLFromEnv() (string, error) {
	rpcURL := strings.TrimSpace(firstNonEmpty(os.Getenv("PROVIDER_HTTPS_URL"), os.Getenv("RPC_URL")))
	if rpcURL == "" {
		return "", fmt.Errorf("PROVIDER_HTTPS_URL or RPC_URL required (set PROVIDER_HTTPS_URL in .env)")
	}
	return ValidateRPCURL(rpcURL)
}

func ValidateRPCURL(rpcURL string) (string, error) {
	rpcURL = strings.TrimSpace(rpcURL)
	if !strings.HasPrefix(rpcURL, "http") && !strings.HasPrefix(rpcURL, "ws") {
		return "", fmt.Errorf("RPC URL must be http(s)://... or ws(s)://..., got %q", rpcURL)
	}
	if strings.Contains(rpcURL, "YOUR_KEY") {
		return "", fmt.Errorf("RPC URL still contains placeholder YOUR_KEY. Set PROVIDER_HTTPS_URL to your provider URL")
	}
	return rpcURL, nil
}

// ParsePrivateKey accepts a hex key with or without the 0x prefix.
func ParsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	pkHex := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if pkHex == "" {
		return nil, fmt.Errorf("private key empty")
	}
	pk, err := crypto.HexToECDSA(pkHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return pk, nil
}

func ParseAddress(name, raw string) (common.Address, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return common.Address{}, fmt.Errorf("%s required", name)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s %q", name, s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%s is the zero address", name)
	}
	return addr, nil
}

// Uint64FromUint256 converts a chain integer to uint64 and fails instead of
// truncating.
func Uint64FromUint256(x *big.Int) (uint64, error) {
	if x == nil {
		return 0, fmt.Errorf("nil value")
	}
	if x.Sign() < 0 {
		return 0, fmt.Errorf("negative value %s", x.String())
	}
	if !x.IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrUint64Overflow, x.String())
	}
	return x.Uint64(), nil
}

// FormatUnits renders a fixed-point integer with the given number of decimals.
func FormatUnits(x *big.Int, decimals int32) string {
	if x == nil {
		return "0"
	}
	return decimal.NewFromBigInt(x, -decimals).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
