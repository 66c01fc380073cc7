package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/todosync/internal/api"
	"github.com/example/todosync/internal/application"
	"github.com/example/todosync/internal/client"
)

const (
	shutdownTimeout = 10 * time.Second
	pruneInterval   = time.Minute
)

func newServeCmd(rt *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the realtime endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = fmt.Sprintf(":%d", rt.cfg.HTTPPort)
			}
			listener, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}
			return serve(ctx, rt, listener)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :$TODOSYNC_HTTP_PORT)")
	return cmd
}

// serve runs the server on listener until ctx is cancelled.
func serve(ctx context.Context, rt *app, listener net.Listener) error {
	logger := rt.logger

	storage, err := openStorage(ctx, rt.cfg, logger)
	if err != nil {
		_ = listener.Close()
		return err
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	srv, err := buildServer(rt.cfg, storage, logger)
	if err != nil {
		_ = listener.Close()
		return err
	}

	httpServer := &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := srv.registry.Prune(); removed > 0 {
					logger.Debug("pruned empty realtime rooms", "count", removed)
				}
			}
		}
	}()

	// stopped closes once in-flight requests have drained, so storage
	// outlives every handler.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		closed := srv.registry.DisconnectAll()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
		logger.Info("server stopped", "realtime_sessions_closed", closed)
	}()

	logger.Info("todosync API listening", "addr", listener.Addr().String())
	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	<-stopped
	return nil
}

func newMigrateCmd(rt *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			storage, err := openStorage(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer storage.Close()
			printf(cmd, "database %s is up to date\n", rt.cfg.SQLiteDSN)
			return nil
		},
	}
}

func newUserCmd(rt *app) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var input application.UserInput
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			storage, err := openStorage(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			users := application.NewUserServiceWithLogger(newUserRepositoryAdapter(storage.Users), uuid.NewString, time.Now, rt.logger)
			user, err := users.CreateUser(cmd.Context(), input)
			if err != nil {
				return describeError(err)
			}
			printf(cmd, "created user %s (%s)\n", user.ID, user.Email)
			return nil
		},
	}
	addCmd.Flags().StringVar(&input.Email, "email", "", "login email")
	addCmd.Flags().StringVar(&input.DisplayName, "name", "", "display name")
	addCmd.Flags().StringVar(&input.Password, "password", "", "initial password")
	_ = addCmd.MarkFlagRequired("email")
	_ = addCmd.MarkFlagRequired("password")

	userCmd.AddCommand(addCmd)
	return userCmd
}

func newTeamCmd(rt *app) *cobra.Command {
	teamCmd := &cobra.Command{
		Use:   "team",
		Short: "Manage team memberships",
	}

	var teamID, userID string
	addMemberCmd := &cobra.Command{
		Use:   "add-member",
		Short: "Add a user to a team",
		RunE: func(cmd *cobra.Command, _ []string) error {
			storage, err := openStorage(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			teams := application.NewTeamServiceWithLogger(storage.Teams, rt.logger)
			if err := teams.AddMember(cmd.Context(), teamID, userID); err != nil {
				return describeError(err)
			}
			printf(cmd, "user %s is a member of team %s\n", userID, teamID)
			return nil
		},
	}
	addMemberCmd.Flags().StringVar(&teamID, "team", "", "team id")
	addMemberCmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = addMemberCmd.MarkFlagRequired("team")
	_ = addMemberCmd.MarkFlagRequired("user")

	teamCmd.AddCommand(addMemberCmd)
	return teamCmd
}

// newWatchCmd logs in to a running server, keeps a reconciled copy of the
// caller's todos and prints every realtime frame it receives.
func newWatchCmd(rt *app) *cobra.Command {
	var (
		serverURL string
		email     string
		password  string
		teams     []string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow realtime changes from a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			wsURL, err := realtimeURL(serverURL)
			if err != nil {
				return err
			}

			apiClient := client.NewAPI(serverURL, nil)
			session, err := apiClient.Login(ctx, email, password)
			if err != nil {
				return err
			}
			store := client.NewStore(apiClient, client.NewReconciler(), rt.logger)
			if err := store.Refresh(ctx); err != nil {
				return err
			}
			printf(cmd, "logged in as %s, %d todos\n", session.User.ID, store.Reconciler().Len())

			manager := client.NewConnectionManager(client.ConnectionConfig{
				URL:       wsURL,
				Token:     apiClient.Token,
				UserID:    session.User.ID,
				Teams:     teams,
				Sink:      store.Reconciler(),
				Refresher: store,
				OnSession: apiClient.SetRealtimeSession,
				OnMessage: func(msg api.Message) {
					printf(cmd, "%s %s %s\n", msg.Type, msg.Room, string(msg.Data))
				},
				Logger: rt.logger,
			})
			err = manager.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the todosync server")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	cmd.Flags().StringSliceVar(&teams, "team", nil, "team rooms to join")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// realtimeURL maps the HTTP base URL onto the websocket endpoint.
func realtimeURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path += "/realtime"
	return u.String(), nil
}

// describeError flattens validation failures into one line for the terminal.
func describeError(err error) error {
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		return err
	}
	parts := make([]string, 0, len(vErr.FieldErrors))
	for _, field := range vErr.Fields() {
		parts = append(parts, field.Field+": "+field.Message)
	}
	return fmt.Errorf("invalid input: %s", strings.Join(parts, "; "))
}
