package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/mkatragadda/Vitta-sub011/internal/config"
	"github.com/mkatragadda/Vitta-sub011/internal/control"
	"github.com/mkatragadda/Vitta-sub011/internal/logging"
	"github.com/mkatragadda/Vitta-sub011/internal/runtime"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "offline",
		Short: "Offline resilience core",
		Long:  "Durable request caching and queued sync for an intermittently connected client.",
	}
	rootCmd.PersistentFlags().String("config", "", "Config file path (default searches standard locations)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(cacheCmd())
	rootCmd.AddCommand(syncCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the offline core and its control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(path)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
				cfg.DataDir = v
			}
			if v, _ := cmd.Flags().GetString("listen"); v != "" {
				cfg.Listen = v
			}

			log, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			rt, err := runtime.Open(runtime.Options{Config: cfg, EnableMetrics: true}, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if len(cfg.Cache.PrecacheManifest) > 0 {
				if err := rt.Router().Install(ctx); err != nil {
					log.Warn("precache install failed", zap.Error(err))
				}
			}
			if _, err := rt.Router().Activate(ctx); err != nil {
				log.Warn("cache activation failed", zap.Error(err))
			}

			h := control.NewHandler(rt.Router(), rt.Caches(), rt.Manager(), rt.State(), log)
			srv := control.NewServer(h, log)
			return srv.ListenAndServe(ctx, cfg.Listen)
		},
	}
	cmd.Flags().String("data-dir", "", "Data directory override")
	cmd.Flags().String("listen", "", "Control API listen address override")
	return cmd
}

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "queue", Short: "Sync queue operations"}

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List queued operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/v1/queue", os.Stdout)
		},
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every queued operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequest(http.MethodDelete, apiURL()+"/v1/queue", nil)
			if err != nil {
				return err
			}
			return doRequest(req, os.Stdout)
		},
	}
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Enqueue an operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			payload, _ := cmd.Flags().GetString("payload")
			body, err := json.Marshal(map[string]any{
				"kind":    kind,
				"payload": json.RawMessage(payload),
			})
			if err != nil {
				return err
			}
			return postJSON("/v1/queue", body, os.Stdout)
		},
	}
	addCmd.Flags().String("kind", "send-message", "Operation kind")
	addCmd.Flags().String("payload", "{}", "Operation payload (JSON)")

	cmd.AddCommand(lsCmd, clearCmd, addCmd)
	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Cache operations"}

	sizeCmd := &cobra.Command{
		Use:   "size",
		Short: "Report total cached bytes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/v1/control/cache-size", os.Stdout)
		},
	}
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Clear the dynamic cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/v1/control/clear-cache", nil, os.Stdout)
		},
	}
	activateCmd := &cobra.Command{
		Use:   "activate",
		Short: "Purge caches left by older deploy generations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/v1/control/skip-waiting", nil, os.Stdout)
		},
	}
	cmd.AddCommand(sizeCmd, purgeCmd, activateCmd)
	return cmd
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Trigger a queue drain",
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, _ := cmd.Flags().GetString("tag")
			return postJSON("/v1/sync/"+tag, nil, os.Stdout)
		},
	}
	cmd.Flags().String("tag", "sync-pending-messages", "Sync tag")
	return cmd
}

func apiURL() string {
	if v := os.Getenv("OFFLINE_API"); v != "" {
		return v
	}
	return "http://127.0.0.1:8090"
}

func getJSON(path string, out io.Writer) error {
	req, err := http.NewRequest(http.MethodGet, apiURL()+path, nil)
	if err != nil {
		return err
	}
	return doRequest(req, out)
}

func postJSON(path string, body []byte, out io.Writer) error {
	req, err := http.NewRequest(http.MethodPost, apiURL()+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doRequest(req, out)
}

func doRequest(req *http.Request, out io.Writer) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %s", resp.Status)
	}
	return nil
}
