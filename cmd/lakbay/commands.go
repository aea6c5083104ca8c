package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lakbay-kasaysayan/internal/auth"
	"lakbay-kasaysayan/internal/game"
	"lakbay-kasaysayan/internal/history"
	"lakbay-kasaysayan/internal/runsession"
	"lakbay-kasaysayan/internal/runstats"
	"lakbay-kasaysayan/internal/sampler"
	"lakbay-kasaysayan/internal/syncclient"

	"github.com/spf13/cobra"
)

func newRegisterCmd() *cobra.Command {
	var req auth.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := openDevice(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			session, err := d.client.Register(ctx, req)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s\n", session.User.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Username, "username", "", "display name")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the token on this device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := openDevice(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			session, err := d.client.Login(ctx, email, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%d points)\n", session.User.Username, session.User.TotalPoints)
			if !d.session.TutorialShown() {
				fmt.Fprintln(cmd.OutOrStdout(), "Tip: run `lakbay replay <route.yaml>` and every kilometre unlocks a moment in history.")
				return d.session.MarkTutorialShown(ctx)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := openDevice(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.client.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sign-in state and local progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := openDevice(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			out := cmd.OutOrStdout()
			if !d.session.Authenticated() {
				fmt.Fprintln(out, "Not signed in")
			} else if user, err := d.client.Me(ctx); err != nil {
				fmt.Fprintf(out, "Signed in (profile unavailable: %v)\n", err)
			} else {
				fmt.Fprintf(out, "Signed in as %s, %d points\n", user.Username, user.TotalPoints)
				if list, err := d.client.Achievements(ctx); err == nil {
					for _, a := range list {
						fmt.Fprintf(out, "  %s\n", describe(a.Type))
					}
				}
			}
			fmt.Fprintf(out, "Collected artifacts: %d %v\n", d.artifacts.Len(), d.artifacts.IDs())
			return nil
		},
	}
}

func newReplayCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "replay <route.yaml>",
		Short: "Run a recorded route through the tracker and sync the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := openDevice(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			fixes, err := sampler.LoadRoute(args[0])
			if err != nil {
				return err
			}
			if interval <= 0 {
				interval = d.cfg.SamplingInterval
			}

			provider := sampler.NewReplayProvider(fixes)
			runner := d.runner(
				game.Config{UserID: d.userID(ctx), Interval: interval, BodyMassKg: d.cfg.BodyMassKg},
				sampler.New(provider, sampler.WithLogger(d.logger.Named("sampler"))),
				game.WithSessionOptions(runsession.WithClock(provider.Now)),
			)
			if err := runner.Sync(ctx); err != nil {
				d.logger.Sugar().Warnf("catalogue sync incomplete: %v", err)
			}
			if err := runner.Start(ctx); err != nil {
				return fmt.Errorf("start run: %w", err)
			}

			out := cmd.OutOrStdout()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
		wait:
			for provider.Remaining() > 0 {
				select {
				case <-ctx.Done():
					break wait
				case <-ticker.C:
					st := runner.Stats()
					fmt.Fprintf(out, "\r%s  %s  %s/km", runstats.FormatDistance(st.DistanceMeters),
						runstats.FormatDuration(st.ElapsedSeconds), runstats.FormatPace(st.PaceMinPerKm))
				}
			}
			if !awaitLastFix(ctx, runner, provider.Now(), interval) {
				d.logger.Warn("stopping before the final fix was applied")
			}

			summary, err := runner.Stop(context.WithoutCancel(ctx))
			if err != nil {
				return err
			}
			printSummary(cmd, summary)
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "sampling interval (defaults to LAKBAY_SAMPLING_INTERVAL)")
	return cmd
}

// awaitLastFix blocks until the run has applied the fix stamped want. It gives up
// when ctx ends or after a few sampling intervals, since the sampler may drop
// an invalid final fix.
func awaitLastFix(ctx context.Context, runner *game.Runner, want time.Time, interval time.Duration) bool {
	tick := interval / 4
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	deadline := time.NewTimer(4*interval + time.Second)
	defer deadline.Stop()
	for {
		if fix, ok := runner.LastFix(); ok && !fix.Timestamp.Before(want) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
		}
	}
}

func printSummary(cmd *cobra.Command, s game.Summary) {
	out := cmd.OutOrStdout()
	r := s.Record
	fmt.Fprintf(out, "\nRun %s\n", r.ID)
	fmt.Fprintf(out, "  distance %s  time %s  pace %s/km  %.0f kcal\n",
		runstats.FormatDistance(r.DistanceMeters), runstats.FormatDuration(r.ElapsedSeconds),
		runstats.FormatPace(r.PaceMinPerKm), r.Calories)
	for _, u := range s.Unlocked {
		fmt.Fprintf(out, "  km %d unlocked: %s (%s)\n", u.Kilometre, u.Event.Title, u.Event.Date)
	}
	for _, id := range s.Granted {
		fmt.Fprintf(out, "  achievement: %s\n", describe(id))
	}
	if s.SyncErr != nil {
		fmt.Fprintf(out, "  not synced yet: %v\n", s.SyncErr)
	}
}

func newCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect <artifact-id>",
		Short: "Collect an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := openDevice(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			runner := d.runner(game.Config{UserID: d.userID(ctx)}, nil)
			if err := runner.Sync(ctx); err != nil {
				d.logger.Sugar().Warnf("earned achievements not refreshed: %v", err)
			}
			granted, err := runner.CollectArtifact(ctx, args[0])

			out := cmd.OutOrStdout()
			if d.artifacts.Has(args[0]) {
				fmt.Fprintf(out, "Artifact %s is in your collection (%d total)\n", args[0], d.artifacts.Len())
			}
			for _, id := range granted {
				fmt.Fprintf(out, "New achievement: %s\n", describe(id))
			}
			if errors.Is(err, syncclient.ErrAuthFailure) {
				return fmt.Errorf("sign in again: %w", err)
			}
			if err != nil {
				fmt.Fprintf(out, "Saved on this device; sync later (%v)\n", err)
			}
			return nil
		},
	}
}

func newVisitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "visit <event-id>",
		Short: "Check in at a historical location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := openDevice(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			runner := d.runner(game.Config{UserID: d.userID(ctx)}, nil)
			if err := runner.Sync(ctx); err != nil {
				d.logger.Sugar().Warnf("earned achievements not refreshed: %v", err)
			}
			granted, err := runner.VisitLocation(ctx, args[0])

			out := cmd.OutOrStdout()
			if d.visits.Has(args[0]) {
				fmt.Fprintf(out, "Visited %d historical locations\n", d.visits.Len())
			}
			for _, id := range granted {
				fmt.Fprintf(out, "New achievement: %s\n", describe(id))
			}
			if errors.Is(err, syncclient.ErrAuthFailure) {
				return fmt.Errorf("sign in again: %w", err)
			}
			if err != nil {
				fmt.Fprintf(out, "Saved on this device; sync later (%v)\n", err)
			}
			return nil
		},
	}
}

func newNearbyCmd() *cobra.Command {
	var lat, lon, radius float64
	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "List historical events near a point",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := openDevice(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			events, err := d.client.NearbyEvents(ctx, lat, lon, radius)
			if err != nil {
				d.logger.Sugar().Warnf("backend unavailable, searching the sample catalogue: %v", err)
				events = history.Nearby(history.SampleEvents(), lat, lon, radius)
			}
			out := cmd.OutOrStdout()
			for _, ev := range events {
				fmt.Fprintf(out, "%s  %s  %s\n", ev.ID, ev.Title, ev.Location.Name)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "Nothing within range")
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	cmd.Flags().Float64Var(&radius, "radius", 10, "radius in kilometres")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}
