package corks

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smartcontractkit/corks"
	"github.com/smartcontractkit/corks/config"
	"github.com/smartcontractkit/corks/sdk"
	"github.com/smartcontractkit/corks/sdk/evm"
	"github.com/smartcontractkit/corks/store"
	"github.com/smartcontractkit/corks/store/boltdb"
	"github.com/smartcontractkit/corks/store/memorydb"
	"github.com/smartcontractkit/corks/types"
)

func buildRunCmd(flags *rootFlags) *cobra.Command {
	var (
		proposalsDir string
		metricsAddr  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a validator node that dispatches executable corks",
		Long: `Follows the consensus heights of the configured feed, keeps the cork registry in the configured
store and submits executable corks to the execution chain with the PRIVATE_KEY account.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			secrets, err := config.LoadSecrets(flags.envFile)
			if err != nil {
				return err
			}
			pk, err := secrets.RequirePrivateKey()
			if err != nil {
				return err
			}

			lggr, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer func() { _ = lggr.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = sdk.WithLogger(ctx, lggr.Sugar())

			st, err := openStore(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			rpcURL := cfg.ExecutionRPCURL(secrets)
			if rpcURL == "" {
				return fmt.Errorf("no execution RPC URL, set execution.rpcURL or %s", config.EnvRPCURL)
			}
			client, err := ethclient.DialContext(ctx, rpcURL)
			if err != nil {
				return fmt.Errorf("failed to dial execution chain: %w", err)
			}
			defer client.Close()

			chainID, err := types.EVMChainID(cfg.Execution.ChainSelector)
			if err != nil {
				return err
			}
			auth, err := bind.NewKeyedTransactorWithChainID(pk, new(big.Int).SetUint64(chainID))
			if err != nil {
				return err
			}

			var execOpts []evm.ExecutorOption
			if cfg.Execution.GasLimit > 0 {
				execOpts = append(execOpts, evm.WithGasLimit(cfg.Execution.GasLimit))
			}
			executor, err := evm.NewExecutorForSelector(client, auth, cfg.Execution.ChainSelector, execOpts...)
			if err != nil {
				return err
			}

			feedClient := client
			if feedURL := cfg.FeedRPCURL(secrets); feedURL != rpcURL {
				feedClient, err = ethclient.DialContext(ctx, feedURL)
				if err != nil {
					return fmt.Errorf("failed to dial height feed: %w", err)
				}
				defer feedClient.Close()
			}
			feedOpts := []evm.HeightFeedOption{evm.WithValidatorSet(cfg.ValidatorSet)}
			if cfg.Feed.Confirmations != nil {
				feedOpts = append(feedOpts, evm.WithConfirmations(*cfg.Feed.Confirmations))
			}

			steward, err := corks.NewSteward(lggr, st, evm.SignatureVerifier{},
				corks.WithThreshold(cfg.Quorum),
				corks.WithValidatorSet(cfg.ValidatorSet),
				corks.WithStartHeight(cfg.StartHeight),
				corks.WithConcurrency(cfg.Concurrency),
				corks.WithExecutor(executor),
				corks.WithDispatchConfig(cfg.Dispatch),
				corks.WithHeightFeed(evm.NewHeightFeed(lggr, feedClient, cfg.Feed.PollInterval.Duration, feedOpts...)),
			)
			if err != nil {
				return err
			}

			if proposalsDir != "" {
				submitProposals(ctx, lggr, steward, proposalsDir, auth.From)
			}

			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 10 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						lggr.Error("metrics server stopped", zap.Error(err))
					}
				}()
				defer srv.Close()
			}

			lggr.Info("cork steward started",
				zap.Uint64("chainSelector", uint64(cfg.Execution.ChainSelector)),
				zap.Stringer("account", auth.From),
				zap.Stringer("quorum", cfg.Quorum),
			)

			if err := steward.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&proposalsDir, "proposals", "", "Directory of signed cork proposals submitted on start")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address serving prometheus metrics, disabled when empty")

	return cmd
}

func openStore(path string) (store.Store, error) {
	if path == "" {
		return memorydb.New(), nil
	}

	return boltdb.New(path)
}

// submitProposals submits every proposal file of dir. Invalid files are logged and skipped.
func submitProposals(ctx context.Context, lggr *zap.Logger, steward *corks.Steward, dir string, proposer common.Address) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		lggr.Error("failed to list proposals", zap.String("dir", dir), zap.Error(err))
		return
	}

	for _, path := range paths {
		proposal, err := corks.LoadProposal(path)
		if err != nil {
			lggr.Warn("skipping proposal", zap.String("path", path), zap.Error(err))
			continue
		}

		id, err := steward.SubmitProposal(ctx, proposal, proposer)
		if err != nil {
			lggr.Warn("proposal partially rejected", zap.String("path", path), zap.Stringer("cork", id), zap.Error(err))
			continue
		}
		lggr.Info("proposal submitted", zap.String("path", path), zap.Stringer("cork", id))
	}
}
