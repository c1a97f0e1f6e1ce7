package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/ahmedsayedsa/orderbot/internal/config"
	"github.com/ahmedsayedsa/orderbot/internal/customers"
	"github.com/ahmedsayedsa/orderbot/internal/handlers"
	"github.com/ahmedsayedsa/orderbot/internal/phone"
	"github.com/ahmedsayedsa/orderbot/internal/reconcile"
	"github.com/ahmedsayedsa/orderbot/internal/session"
	"github.com/ahmedsayedsa/orderbot/internal/transport"
)

// NewServeCommand runs the bot: HTTP API, session engine and sync client.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the order confirmation service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log outbound messages instead of sending them")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, dryRun bool) error {
	clk := clock.WallClock
	d, err := buildDeps(ctx, cfg, clk)
	if err != nil {
		return err
	}

	dir, err := customers.Open(filepath.Join(cfg.DataDir, "customers.db"), clk)
	if err != nil {
		return err
	}
	defer dir.Close()

	// The chat transport is pluggable; until one is wired in, outbound
	// traffic goes to the log.
	var messenger transport.Messenger = transport.LogMessenger{}
	if dryRun {
		log.Printf("[serve] dry run: outbound messages are logged only")
	}

	norm := phone.NewNormalizer()
	adapter := transport.NewAdapter(transport.AdapterConfig{
		Normalizer:    norm,
		Messenger:     messenger,
		Syncer:        d.client,
		Publisher:     d.publisher,
		Customers:     dir,
		Clock:         clk,
		SessionTTL:    cfg.Session.TTL,
		ReportExpired: cfg.Sync.ReportExpired,
	})

	backupPath := filepath.Join(cfg.DataDir, session.BackupFileName)
	if restored, err := restoreBackup(adapter, backupPath, clk); err != nil {
		log.Printf("[serve] backup restore failed: %v", err)
	} else if restored > 0 {
		log.Printf("[serve] restored %d pending sessions from backup", restored)
	}

	sweeper := reconcile.NewSweeper(d.client, d.ledger, d.metrics, clk)

	r := gin.New()
	r.Use(gin.Recovery())
	handlers.RegisterRoutes(r, handlers.HandlerConfig{
		Adapter:    adapter,
		Messenger:  messenger,
		Normalizer: norm,
		Directory:  dir,
		Ledger:     d.ledger,
		Sweeper:    sweeper,
		Clock:      clk,
		StartedAt:  clk.Now(),
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[serve] listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		log.Printf("[serve] received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[serve] http shutdown: %v", err)
	}

	// Park whatever is still pending so a restart can re-arm it. Shutdown
	// cancels the timers and returns the final snapshot in one step, so a
	// session cannot both expire and land in the backup.
	snap := adapter.Machine().Store().Shutdown()
	pending := make([]session.Session, 0, len(snap))
	for _, sess := range snap {
		pending = append(pending, sess)
	}
	if err := session.WriteBackup(backupPath, pending); err != nil {
		log.Printf("[serve] backup write failed: %v", err)
	} else {
		log.Printf("[serve] parked %d pending sessions in %s", len(pending), backupPath)
	}
	return nil
}

func restoreBackup(adapter *transport.Adapter, path string, clk clock.Clock) (int, error) {
	sessions, err := session.ReadBackup(path)
	if err != nil || len(sessions) == 0 {
		return 0, err
	}
	restored := session.Restore(adapter.Machine().Store(), sessions, clk.Now())
	if err := os.Remove(path); err != nil {
		log.Printf("[serve] could not remove consumed backup: %v", err)
	}
	return restored, nil
}
