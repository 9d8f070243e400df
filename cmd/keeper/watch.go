package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flatcoin-keeper/internal/executor"
	"flatcoin-keeper/internal/flatcoin"
	"flatcoin-keeper/internal/jsonl"
)

var openLimitOrders = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "flatcoin_keeper",
	Subsystem: "watch",
	Name:      "open_limit_orders",
	Help:      "Positions with a limit order attached, as of the last scan",
})

var scannedPositions = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "flatcoin_keeper",
	Subsystem: "watch",
	Name:      "scanned_positions",
	Help:      "Positions returned by the last scan",
})

// positionReader is the read side of *executor.Executor used by the scan.
type positionReader interface {
	TokenIDNext(ctx context.Context) (uint64, error)
	PositionDataBatchedFromTo(ctx context.Context, from, to uint64) ([]flatcoin.PositionSnapshot, error)
}

func runWatch(ctx context.Context, ex *executor.Executor, events *jsonl.Writer, metricsAddr string, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	everyFlag := fs.Duration("every", 30*time.Second, "Scan interval.")
	chunkFlag := fs.Uint64("chunk", 100, "Positions per range call.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *everyFlag <= 0 {
		return fmt.Errorf("--every must be positive")
	}
	if *chunkFlag == 0 {
		return fmt.Errorf("--chunk must be positive")
	}

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Printf("[keeper] metrics listening on %s", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[warn] metrics server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	ticker := time.NewTicker(*everyFlag)
	defer ticker.Stop()

	for {
		res, err := scanPositions(ctx, ex, *chunkFlag, func(p flatcoin.PositionSnapshot) {
			logKeeperEvent(events, positionEvent("limit_order", p))
		})
		if err != nil {
			log.Printf("[warn] scan failed: %v", err)
		} else {
			openLimitOrders.Set(float64(res.limitOrders))
			scannedPositions.Set(float64(res.scanned))
			log.Printf("[watch] token_id_next=%d scanned=%d limit_orders=%d failed_chunks=%d", res.next, res.scanned, res.limitOrders, res.failedChunks)
		}
		logKeeperEvent(events, keeperLogEvent{
			TsMs:        nowMs(),
			Event:       "scan",
			TokenIDNext: res.next,
			Scanned:     res.scanned,
			LimitOrders: res.limitOrders,
			Ok:          err == nil,
			Err:         errString(err),
		})

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

type scanResult struct {
	next         uint64
	scanned      int
	limitOrders  int
	failedChunks int
}

// scanPositions walks [0, tokenIdNext) in chunks and calls onLimitOrder for
// each position carrying a limit order. A failed chunk is logged and skipped.
func scanPositions(ctx context.Context, r positionReader, chunk uint64, onLimitOrder func(flatcoin.PositionSnapshot)) (scanResult, error) {
	var res scanResult
	next, err := r.TokenIDNext(ctx)
	if err != nil {
		return res, err
	}
	res.next = next

	for from := uint64(0); from < next; from += chunk {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		to := from + chunk - 1
		if to >= next {
			to = next - 1
		}
		positions, err := r.PositionDataBatchedFromTo(ctx, from, to)
		if err != nil {
			res.failedChunks++
			log.Printf("[warn] positions %d..%d: %v", from, to, err)
			continue
		}
		res.scanned += len(positions)
		for _, p := range positions {
			if !p.HasLimitOrder() {
				continue
			}
			res.limitOrders++
			if onLimitOrder != nil {
				onLimitOrder(p)
			}
		}
	}
	return res, nil
}
