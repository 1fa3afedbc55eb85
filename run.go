package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"

	"github.com/launchpad-hq/txflow/pkg/chainclient"
	"github.com/launchpad-hq/txflow/pkg/chains"
	"github.com/launchpad-hq/txflow/pkg/circuitbreaker"
	"github.com/launchpad-hq/txflow/pkg/config"
	"github.com/launchpad-hq/txflow/pkg/health"
	"github.com/launchpad-hq/txflow/pkg/indexer"
	"github.com/launchpad-hq/txflow/pkg/logger"
	"github.com/launchpad-hq/txflow/pkg/metrics"
	"github.com/launchpad-hq/txflow/pkg/models"
	"github.com/launchpad-hq/txflow/pkg/orchestrator"
)

const shutdownTimeout = 5 * time.Second

// errRunFailed is returned when the run ended in Errored, so the process exits non-zero
var errRunFailed = errors.New("run failed")

// runIntent wires the engine from configuration, runs intent to a terminal phase and reports the outcome
func runIntent(ctx context.Context, out io.Writer, intent models.TransactionIntent, serve bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chain, err := chainclient.Dial(ctx, chainclient.Config{
		RPCURL:              cfg.RPCURL,
		PrivateKey:          cfg.PrivateKey,
		GasMultiplier:       cfg.Chain.GasMultiplier,
		MaxGasPrice:         cfg.Chain.MaxGasPrice,
		ReceiptPollInterval: cfg.Chain.ReceiptPollInterval,
	}, log)
	if err != nil {
		return err
	}
	chainID := int(chain.ChainID().Int64())
	if chainID != cfg.Network.ChainID {
		actual := strconv.Itoa(chainID)
		if network, ok := chains.GetNetwork(chainID); ok {
			actual = network.Name
		}
		log.Notice("RPC endpoint is on %s, configured network is %s", actual, cfg.Network.Name)
	}

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		Enabled:      cfg.CircuitBreaker.Enabled,
		Threshold:    cfg.CircuitBreaker.Threshold,
		Window:       cfg.CircuitBreaker.WindowDuration,
		ResetTimeout: cfg.CircuitBreaker.ResetTimeout,
	}, circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
		metrics.CircuitState.Set(float64(to))
		log.Notice("Indexer circuit breaker %s -> %s", from, to)
	}))
	idx := indexer.New(cfg.IndexerEndpoint, log, indexer.WithCircuitBreaker(breaker))

	strategy, err := orchestrator.ParseApprovalStrategy(cfg.Orchestration.ApprovalStrategy)
	if err != nil {
		return err
	}
	orch := orchestrator.New(chain, idx,
		orchestrator.WithLogger(log),
		orchestrator.WithPolicy(orchestrator.Policy{
			ConfirmationTimeout: cfg.Orchestration.ConfirmationTimeout,
			IndexerPollInterval: cfg.Orchestration.IndexerPollInterval,
			IndexerMaxAttempts:  cfg.Orchestration.IndexerMaxAttempts,
			ApprovalStrategy:    strategy,
		}),
	)

	if serve {
		server := health.NewServer(cfg.MetricsPort, chain, orch, breaker, cfg.MetricsAPIKey, log)
		go func() {
			if err := server.Start(); err != nil {
				log.Error("Health server error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancelShutdown()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error("Health server shutdown: %v", err)
			}
		}()
	}

	orch.OnPhaseChange(txLinkPrinter(out, chainID))

	log.Info("Using account %s on %s", chain.Account().Hex(), cfg.Network.Name)
	preflight(ctx, chain, intent, log)

	run, err := orch.Start(ctx, intent)
	if err != nil {
		return err
	}

	// The first signal cancels the run if nothing was broadcast yet; a second one aborts the wait.
	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	go func() {
		interrupted := false
		for {
			select {
			case <-signalCh:
			case <-run.Done():
				return
			}
			if interrupted {
				log.Notice("Received second termination signal, giving up on the run")
				cancel()
				return
			}
			interrupted = true
			if err := orch.Cancel(run.ID()); err != nil {
				log.NoticeWithRun(run.ID(), "Cannot cancel: %v. Waiting for the transaction to settle, interrupt again to stop waiting.", err)
			}
		}
	}()

	snap, err := run.Wait(ctx)
	if err != nil {
		return fmt.Errorf("stopped waiting for run %s in %s: %w", run.ID(), snap.Phase, err)
	}

	if snap.Phase == models.PhaseCompleted && snap.Intent.Kind == models.KindCreatePool && snap.ActionTxHash != nil {
		if pool, err := chain.CreatedPool(ctx, snap.Intent.Target, *snap.ActionTxHash); err == nil {
			fmt.Fprintf(out, "Pool created at %s\n", pool.Hex())
		} else {
			log.ErrorWithRun(snap.ID, "Could not read the created pool: %v", err)
		}
	}
	return report(out, chainID, snap)
}

// preflight logs the balances the intent draws on. A shortfall is reported but the run still goes ahead;
// the chain has the final word.
func preflight(ctx context.Context, chain *chainclient.Client, intent models.TransactionIntent, log logger.Logger) {
	owner := chain.Account()
	switch intent.Kind {
	case models.KindStake, models.KindCreatePool:
		if intent.Token == nil {
			return
		}
		balance, err := chain.TokenBalance(ctx, *intent.Token, owner)
		if err != nil {
			log.Debug("Could not read token balance: %v", err)
			return
		}
		log.Info("Token balance: %s", balance)
		if balance.Balance.Cmp(intent.Amount) < 0 {
			log.Notice("Balance %s is below the amount %s, the transaction will likely revert", balance.Balance, intent.Amount)
		}
	case models.KindUnstake:
		staked, err := chain.StakedBalance(ctx, intent.Target, owner)
		if err != nil {
			log.Debug("Could not read staked balance: %v", err)
			return
		}
		log.Info("Staked balance: %s", staked)
		if staked.Cmp(intent.Amount) < 0 {
			log.Notice("Staked balance %s is below the amount %s, the transaction will likely revert", staked, intent.Amount)
		}
	}
}

// txLinkPrinter prints an explorer link the first time each transaction of a run shows up
func txLinkPrinter(out io.Writer, chainID int) func(models.RunSnapshot) {
	printed := make(map[common.Hash]bool)
	return func(s models.RunSnapshot) {
		for _, tx := range []struct {
			label string
			hash  *common.Hash
		}{
			{"Approval", s.ApprovalTxHash},
			{"Action", s.ActionTxHash},
		} {
			if tx.hash == nil || printed[*tx.hash] {
				continue
			}
			printed[*tx.hash] = true
			fmt.Fprintf(out, "%s transaction sent: %s\n", tx.label, txLink(chainID, *tx.hash))
		}
	}
}

func txLink(chainID int, hash common.Hash) string {
	if url := chains.TxURL(chainID, hash); url != "" {
		return url
	}
	return hash.Hex()
}

// report prints the outcome of a finished run
func report(out io.Writer, chainID int, snap models.RunSnapshot) error {
	message := models.Describe(snap)
	switch snap.Phase {
	case models.PhaseCompleted:
		if snap.IndexingDelayed {
			color.New(color.FgYellow).Fprintln(out, message)
		} else {
			color.New(color.FgGreen).Fprintln(out, message)
		}
		if snap.IndexedEntityID != "" {
			fmt.Fprintf(out, "Indexed as %s\n", snap.IndexedEntityID)
		}
	case models.PhaseErrored:
		color.New(color.FgRed).Fprintln(out, message)
		if snap.Error != nil && snap.Error.TxHash != nil {
			fmt.Fprintf(out, "Transaction: %s\n", txLink(chainID, *snap.Error.TxHash))
		}
	default:
		fmt.Fprintln(out, message)
	}

	if snap.Phase == models.PhaseErrored {
		return fmt.Errorf("%w: %v", errRunFailed, snap.Error)
	}
	return nil
}
