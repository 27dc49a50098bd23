package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clawdbot/sheep/pkg/consolidate"
	"github.com/clawdbot/sheep/pkg/llm"
	"github.com/clawdbot/sheep/pkg/recall"
	"github.com/clawdbot/sheep/pkg/scheduler"
	"github.com/clawdbot/sheep/pkg/server"
)

const defaultPort = 7749

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP memory server for one agent",
	Long: `Serve one agent's memory over HTTP.

Endpoints:
  POST /memories     append a message to the session buffer
  POST /consolidate  run the consolidation pipeline on the buffer
  GET  /recall       answer a question from memory (always 200)
  GET  /health       liveness and capability report
  GET  /changes/ws   websocket feed of memory changes

The port comes from --port or $PORT. Idle and cron consolidation run in
the background; ingest activity feeds the idle detector.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		cron, _ := cmd.Flags().GetString("cron")
		sleep, _ := cmd.Flags().GetBool("sleep")
		if port == 0 {
			if v := os.Getenv("PORT"); v != "" {
				p, err := strconv.Atoi(v)
				if err != nil {
					return fmt.Errorf("bad PORT %q: %w", v, err)
				}
				port = p
			} else {
				port = defaultPort
			}
		}

		ctx := cmd.Context()
		agentID := resolveAgentID()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		log := slog.Default()
		pipeline := consolidate.New(consolidate.Config{
			Store: store,
			Bootstrap: func(ctx context.Context) (llm.Client, error) {
				return newLLMClient(ctx)
			},
			Logger:       log,
			SleepEnabled: sleep,
		})

		client, err := newLLMClient(ctx)
		if err != nil {
			log.Warn("llm unavailable, recall degrades to fallback answers", "error", err)
		}
		engine := recall.New(recall.Config{
			Store:   store,
			Client:  client,
			Logger:  log,
			Version: version,
		})

		// Scheduled runs consolidate whatever the server has buffered.
		var srv *server.Server
		sched, err := scheduler.New(scheduler.Config{
			Runner: scheduler.RunnerFunc(func(ctx context.Context, agent string) (*consolidate.Result, error) {
				return srv.ConsolidateAll(ctx)
			}),
			Logger: log,
			Cron:   cron,
		})
		if err != nil {
			return err
		}

		srv = server.New(server.Config{
			Store:      store,
			Pipeline:   pipeline,
			Recall:     engine,
			AgentID:    agentID,
			Version:    version,
			Logger:     log,
			OnActivity: sched.Observe,
		})
		sched.Start(ctx)
		defer sched.Stop()

		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv,
		}
		errCh := make(chan error, 1)
		go func() {
			log.Info("sheep server listening", "agent", agentID, "addr", httpSrv.Addr)
			errCh <- httpSrv.ListenAndServe()
		}()

		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-sigCtx.Done():
		}

		log.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutCtx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP port (defaults to $PORT, then 7749)")
	serveCmd.Flags().String("cron", "", `daily consolidation slot, 5-field cron (e.g. "30 3 * * *")`)
	serveCmd.Flags().Bool("sleep", false, "enable the LLM sleep pass during consolidation")

	rootCmd.AddCommand(serveCmd)
}
