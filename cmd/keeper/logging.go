package main

import (
	"log"
	"strings"
	"time"

	"go.uber.org/zap"

	"flatcoin-keeper/internal/chainutil"
	"flatcoin-keeper/internal/flatcoin"
	"flatcoin-keeper/internal/jsonl"
)

type keeperLogEvent struct {
	TsMs  int64  `json:"ts_ms"`
	Event string `json:"event"`

	ChainID int64  `json:"chain_id,omitempty"`
	Signer  string `json:"signer,omitempty"`

	// Execution fields.
	TokenID      uint64 `json:"token_id,omitempty"`
	Nonce        uint64 `json:"nonce,omitempty"`
	PriceUpdates int    `json:"price_updates,omitempty"`
	TxHash       string `json:"tx_hash,omitempty"`
	ErrorName    string `json:"error_name,omitempty"`

	// Position fields (18-decimal values rendered as decimals).
	AveragePrice     string `json:"average_price,omitempty"`
	MarginDeposited  string `json:"margin_deposited,omitempty"`
	AdditionalSize   string `json:"additional_size,omitempty"`
	ProfitLoss       string `json:"profit_loss,omitempty"`
	LiquidationPrice string `json:"liquidation_price,omitempty"`
	LowerThreshold   string `json:"limit_order_lower,omitempty"`
	UpperThreshold   string `json:"limit_order_upper,omitempty"`

	// Scan summary.
	TokenIDNext uint64 `json:"token_id_next,omitempty"`
	Scanned     int    `json:"scanned,omitempty"`
	LimitOrders int    `json:"limit_orders,omitempty"`

	Ok  bool   `json:"ok,omitempty"`
	Err string `json:"err,omitempty"`

	DurationMs int64 `json:"duration_ms,omitempty"`
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

func positionEvent(event string, p flatcoin.PositionSnapshot) keeperLogEvent {
	ev := keeperLogEvent{
		TsMs:             nowMs(),
		Event:            event,
		AveragePrice:     chainutil.FormatUnits(p.AveragePrice, chainutil.WeiDecimals),
		MarginDeposited:  chainutil.FormatUnits(p.MarginDeposited, chainutil.WeiDecimals),
		AdditionalSize:   chainutil.FormatUnits(p.AdditionalSize, chainutil.WeiDecimals),
		ProfitLoss:       chainutil.FormatUnits(p.ProfitLoss, chainutil.WeiDecimals),
		LiquidationPrice: chainutil.FormatUnits(p.LiquidationPrice, chainutil.WeiDecimals),
		LowerThreshold:   chainutil.FormatUnits(p.LimitOrderPriceLowerThreshold, chainutil.WeiDecimals),
		UpperThreshold:   chainutil.FormatUnits(p.LimitOrderPriceUpperThreshold, chainutil.WeiDecimals),
	}
	if p.TokenID != nil && p.TokenID.IsUint64() {
		ev.TokenID = p.TokenID.Uint64()
	}
	return ev
}

func logKeeperEvent(w *jsonl.Writer, ev keeperLogEvent) {
	if w == nil {
		return
	}
	if err := w.Write(ev); err != nil {
		log.Printf("[warn] keeper log write failed: %v", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// newLogger builds the structured logger handed to library packages.
func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if strings.TrimSpace(level) != "" {
		lvl, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil {
			return nil, err
		}
		zcfg.Level = lvl
	}
	zcfg.Sampling = nil
	return zcfg.Build()
}
