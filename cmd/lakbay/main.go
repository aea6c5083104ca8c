package main

import (
	"context"
	"fmt"
	"os"

	"lakbay-kasaysayan/internal/achievement"
	"lakbay-kasaysayan/internal/appsession"
	"lakbay-kasaysayan/internal/config"
	"lakbay-kasaysayan/internal/devicestore"
	"lakbay-kasaysayan/internal/game"
	"lakbay-kasaysayan/internal/history"
	"lakbay-kasaysayan/internal/ledger"
	"lakbay-kasaysayan/internal/logging"
	"lakbay-kasaysayan/internal/runsession"
	"lakbay-kasaysayan/internal/syncclient"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// device is everything a command needs: config, local state and the sync client.
// The caller must Close it.
type device struct {
	cfg       config.ClientConfig
	logger    *zap.Logger
	store     *devicestore.Store
	session   *appsession.Context
	artifacts *ledger.Artifacts
	visits    *ledger.Visits
	earned    *ledger.Achievements
	client    *syncclient.Client
}

func openDevice(ctx context.Context) (*device, error) {
	cfg := config.LoadClient()

	logger, err := logging.NewConsole(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	store, err := devicestore.Open(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	session, err := appsession.Load(ctx, store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading session: %w", err)
	}
	artifacts, err := ledger.LoadArtifacts(ctx, store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading collected artifacts: %w", err)
	}
	visits, err := ledger.LoadVisits(ctx, store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading visited locations: %w", err)
	}

	client := syncclient.New(cfg.APIURL, session,
		syncclient.WithLedger(artifacts),
		syncclient.WithRetry(cfg.RetryAttempts, cfg.RetryDelay),
		syncclient.WithLogger(logger.Named("sync")))

	return &device{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		session:   session,
		artifacts: artifacts,
		visits:    visits,
		earned:    ledger.NewAchievements(),
		client:    client,
	}, nil
}

// userID resolves who is signed in, asking the backend when only a token was restored.
func (d *device) userID(ctx context.Context) string {
	if id := d.session.UserID(); id != "" {
		return id
	}
	if d.session.Authenticated() {
		if user, err := d.client.Me(ctx); err == nil {
			return user.ID
		}
	}
	return d.cfg.UserID
}

// runner builds a game runner over this device's ledgers.
func (d *device) runner(cfg game.Config, stream runsession.FixStream, opts ...game.Option) *game.Runner {
	opts = append([]game.Option{game.WithLogger(d.logger), game.WithVisits(d.visits)}, opts...)
	return game.NewRunner(cfg, stream, d.client, history.NewPicker(nil), d.artifacts, d.earned, opts...)
}

func (d *device) Close() {
	_ = d.logger.Sync()
	_ = d.store.Close()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "lakbay",
		Short:        "Run through Philippine history from the command line",
		SilenceUsage: true,
	}
	root.AddCommand(
		newRegisterCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newReplayCmd(),
		newCollectCmd(),
		newVisitCmd(),
		newNearbyCmd(),
	)
	return root
}

func describe(id string) string {
	if def, ok := achievement.Lookup(id); ok {
		return fmt.Sprintf("%s %s (+%d)", def.Icon, def.Title, def.Points)
	}
	return id
}
