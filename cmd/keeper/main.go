package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"flatcoin-keeper/internal/chainutil"
	"flatcoin-keeper/internal/dotenv"
	"flatcoin-keeper/internal/ethutil"
	"flatcoin-keeper/internal/executor"
	"flatcoin-keeper/internal/flatcoin"
	"flatcoin-keeper/internal/jsonl"
)

const usage = `usage: keeper <command> [flags]

commands:
  execute        submit executeLimitOrder for one position
  positions      read positions by id list (-ids) or inclusive range (-from/-to)
  next-token-id  print the next position id to be minted
  nonce          print the signer's latest nonce
  priority-fee   print eth_maxPriorityFeePerGas
  watch          periodically scan all positions for limit orders`

type config struct {
	rpcURL     string
	privateKey *ecdsa.PrivateKey

	limitOrder common.Address
	viewer     common.Address
	leverage   common.Address

	keeperLogPath    string
	metricsAddr      string
	logLevel         string
	batchConcurrency int
}

func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" || os.Args[1] == "help" {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		log.Fatalf("[fatal] %v", err)
	}
}

func loadConfig() (config, error) {
	var cfg config

	rpcURL, err := chainutil.RPCURLFromEnv()
	if err != nil {
		return cfg, err
	}

	pk, err := chainutil.ParsePrivateKey(os.Getenv("SIGNER_WALLET_PK"))
	if err != nil {
		return cfg, fmt.Errorf("SIGNER_WALLET_PK: %w", err)
	}

	limitOrder, err := chainutil.ParseAddress("LIMIT_ORDER_CONTRACT_ADDRESS", os.Getenv("LIMIT_ORDER_CONTRACT_ADDRESS"))
	if err != nil {
		return cfg, err
	}
	viewer, err := chainutil.ParseAddress("VIEWER_CONTRACT_ADDRESS", os.Getenv("VIEWER_CONTRACT_ADDRESS"))
	if err != nil {
		return cfg, err
	}
	leverage, err := chainutil.ParseAddress("LEVERAGE_MODULE_CONTRACT_ADDRESS", os.Getenv("LEVERAGE_MODULE_CONTRACT_ADDRESS"))
	if err != nil {
		return cfg, err
	}

	batchConcurrency := 0
	if env := strings.TrimSpace(os.Getenv("KEEPER_BATCH_CONCURRENCY")); env != "" {
		if _, err := fmt.Sscanf(env, "%d", &batchConcurrency); err != nil || batchConcurrency <= 0 {
			return cfg, fmt.Errorf("invalid KEEPER_BATCH_CONCURRENCY %q", env)
		}
	}

	cfg = config{
		rpcURL:           rpcURL,
		privateKey:       pk,
		limitOrder:       limitOrder,
		viewer:           viewer,
		leverage:         leverage,
		keeperLogPath:    strings.TrimSpace(os.Getenv("KEEPER_LOG")),
		metricsAddr:      strings.TrimSpace(os.Getenv("METRICS_ADDR")),
		logLevel:         strings.TrimSpace(os.Getenv("KEEPER_LOG_LEVEL")),
		batchConcurrency: batchConcurrency,
	}
	return cfg, nil
}

func run(ctx context.Context, cmd string, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("invalid KEEPER_LOG_LEVEL %q: %w", cfg.logLevel, err)
	}
	defer func() { _ = logger.Sync() }()

	client, err := ethclient.DialContext(ctx, cfg.rpcURL)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("fetch chain id: %w", err)
	}

	ex, err := executor.New(executor.Config{
		PrivateKey:            cfg.privateKey,
		ChainID:               chainID,
		LimitOrderAddress:     cfg.limitOrder,
		ViewerAddress:         cfg.viewer,
		LeverageModuleAddress: cfg.leverage,
		BatchConcurrency:      cfg.batchConcurrency,
	}, client, nil, logger)
	if err != nil {
		return err
	}

	events := jsonl.New(cfg.keeperLogPath)
	defer func() {
		if err := events.Close(); err != nil {
			log.Printf("[warn] keeper log close: %v", err)
		}
	}()

	log.Printf("[keeper] chain=%s signer=%s cmd=%s", chainID.String(), ex.Signer().Hex(), cmd)

	switch cmd {
	case "execute":
		return runExecute(ctx, ex, events, chainID.Int64(), args)
	case "positions":
		return runPositions(ctx, ex, args)
	case "next-token-id":
		n, err := ex.TokenIDNext(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("token_id_next: %d\n", n)
		return nil
	case "nonce":
		n, err := ex.Nonce(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("nonce: %d\n", n)
		return nil
	case "priority-fee":
		tip, err := ex.MaxPriorityFeePerGasWithRetry(ctx, executor.DefaultFeeRetryAttempts, executor.DefaultFeeRetryDelay)
		if err != nil {
			return err
		}
		fmt.Printf("max_priority_fee_per_gas: %s wei (%s gwei)\n", tip.String(), chainutil.FormatUnits(tip, 9))
		return nil
	case "watch":
		return runWatch(ctx, ex, events, cfg.metricsAddr, args)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func runExecute(ctx context.Context, ex *executor.Executor, events *jsonl.Writer, chainID int64, args []string) error {
	fs := flag.NewFlagSet("execute", flag.ContinueOnError)
	tokenIDFlag := fs.Int64("token-id", -1, "Position token id (required).")
	priceUpdateFlag := fs.String("price-update", "", "Comma separated 0x price feed update blobs (default from PRICE_UPDATE_DATA).")
	nonceFlag := fs.Int64("nonce", -1, "Transaction nonce (default: signer's latest nonce).")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tokenIDFlag < 0 {
		return errors.New("--token-id required")
	}
	tokenID := uint64(*tokenIDFlag)

	rawUpdate := *priceUpdateFlag
	if strings.TrimSpace(rawUpdate) == "" {
		rawUpdate = os.Getenv("PRICE_UPDATE_DATA")
	}
	priceUpdate, err := ethutil.ParseHexBlobList(rawUpdate)
	if err != nil {
		return fmt.Errorf("invalid --price-update: %w", err)
	}

	var nonce uint64
	if *nonceFlag >= 0 {
		nonce = uint64(*nonceFlag)
	} else {
		nonce, err = ex.Nonce(ctx)
		if err != nil {
			return err
		}
	}

	started := time.Now()
	txHash, err := ex.ExecuteLimitOrder(ctx, tokenID, priceUpdate, nonce)

	ev := keeperLogEvent{
		TsMs:         nowMs(),
		Event:        "execute_limit_order",
		ChainID:      chainID,
		Signer:       ex.Signer().Hex(),
		TokenID:      tokenID,
		Nonce:        nonce,
		PriceUpdates: len(priceUpdate),
		Ok:           err == nil,
		Err:          errString(err),
		DurationMs:   time.Since(started).Milliseconds(),
	}
	if txHash != (common.Hash{}) {
		ev.TxHash = txHash.Hex()
	}
	var estErr *executor.EstimateGasError
	if errors.As(err, &estErr) {
		ev.ErrorName = estErr.Name
	}
	logKeeperEvent(events, ev)

	if err != nil {
		return err
	}
	fmt.Printf("tx: %s\n", txHash.Hex())
	return nil
}

func runPositions(ctx context.Context, ex *executor.Executor, args []string) error {
	fs := flag.NewFlagSet("positions", flag.ContinueOnError)
	idsFlag := fs.String("ids", "", "Comma separated token ids (one eth_call each, concurrent).")
	fromFlag := fs.Int64("from", -1, "First token id of an inclusive range (single eth_call).")
	toFlag := fs.Int64("to", -1, "Last token id of an inclusive range.")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var positions []flatcoin.PositionSnapshot
	switch {
	case strings.TrimSpace(*idsFlag) != "":
		ids, err := ethutil.ParseTokenIDList(*idsFlag)
		if err != nil {
			return err
		}
		positions, err = ex.PositionDataBatched(ctx, ids)
		if err != nil {
			return err
		}
	case *fromFlag >= 0 && *toFlag >= 0:
		var err error
		positions, err = ex.PositionDataBatchedFromTo(ctx, uint64(*fromFlag), uint64(*toFlag))
		if err != nil {
			return err
		}
	default:
		return errors.New("set --ids or both --from and --to")
	}

	for _, p := range positions {
		printPosition(p)
	}
	return nil
}

func printPosition(p flatcoin.PositionSnapshot) {
	fmt.Printf("token=%s avg_price=%s margin=%s size=%s entry_funding=%s pnl=%s accrued_funding=%s margin_after=%s liq_price=%s lo_lower=%s lo_upper=%s\n",
		p.TokenID.String(),
		chainutil.FormatUnits(p.AveragePrice, chainutil.WeiDecimals),
		chainutil.FormatUnits(p.MarginDeposited, chainutil.WeiDecimals),
		chainutil.FormatUnits(p.AdditionalSize, chainutil.WeiDecimals),
		chainutil.FormatUnits(p.EntryCumulativeFunding, chainutil.WeiDecimals),
		chainutil.FormatUnits(p.ProfitLoss, chainutil.WeiDecimals),
		chainutil.FormatUnits(p.AccruedFunding, chainutil.WeiDecimals),
		chainutil.FormatUnits(p.MarginAfterSettlement, chainutil.WeiDecimals),
		chainutil.FormatUnits(p.LiquidationPrice, chainutil.WeiDecimals),
		chainutil.FormatUnits(p.LimitOrderPriceLowerThreshold, chainutil.WeiDecimals),
		chainutil.FormatUnits(p.LimitOrderPriceUpperThreshold, chainutil.WeiDecimals),
	)
}
