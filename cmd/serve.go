package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/diligence-cli/internal/model"
	"github.com/sells-group/diligence-cli/internal/progress"
	"github.com/sells-group/diligence-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scoring API server",
	Long: `Serves the scoring pipeline over HTTP: trigger runs, inspect results,
and stream live progress over websockets.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		hub := progress.NewHub()
		env, err := initPipeline(ctx, hub)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(ctx, env, hub),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(serverCtx context.Context, env *pipelineEnv, hub *progress.Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/companies/{companyID}/score", func(w http.ResponseWriter, req *http.Request) {
		companyID := chi.URLParam(req, "companyID")

		var body struct {
			TenantID string `json:"tenant_id"`
		}
		if req.Body != nil && req.ContentLength > 0 {
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		tenantID := body.TenantID
		if tenantID == "" {
			tenantID = cfg.Scoring.TenantID
		}

		if runID, active := env.registry.ActiveRun(companyID); active {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":          "a scoring run is already active for this company",
				"scoring_run_id": runID,
			})
			return
		}

		// The run outlives the request; it is bound to the server's
		// lifetime, not the caller's.
		go func() {
			if _, err := env.orchestrator.Run(serverCtx, companyID, tenantID); err != nil {
				zap.L().Error("scoring run failed",
					zap.String("company_id", companyID),
					zap.Error(err),
				)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":     "accepted",
			"company_id": companyID,
		})
	})

	r.Get("/companies/{companyID}/runs", func(w http.ResponseWriter, req *http.Request) {
		companyID := chi.URLParam(req, "companyID")
		runs, err := env.store.ListRuns(req.Context(), store.RunFilter{CompanyID: companyID, Limit: 50})
		if err != nil {
			zap.L().Error("list runs failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/runs/{runID}", func(w http.ResponseWriter, req *http.Request) {
		run, err := env.store.GetRun(req.Context(), chi.URLParam(req, "runID"))
		if err != nil {
			var nf *store.NotFoundError
			if eris.As(err, &nf) {
				writeError(w, http.StatusNotFound, nf.Error())
				return
			}
			zap.L().Error("get run failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/runs/{runID}/score", func(w http.ResponseWriter, req *http.Request) {
		runID := chi.URLParam(req, "runID")
		run, err := env.store.GetRun(req.Context(), runID)
		if err != nil {
			var nf *store.NotFoundError
			if eris.As(err, &nf) {
				writeError(w, http.StatusNotFound, nf.Error())
				return
			}
			zap.L().Error("get run failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if run.Status != model.RunStatusCompleted || run.Result == nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"status":        run.Status,
				"error_message": run.ErrorMessage,
			})
			return
		}
		writeJSON(w, http.StatusOK, run.Result)
	})

	r.Get("/companies/{companyID}/progress", func(w http.ResponseWriter, req *http.Request) {
		hub.ServeWS(w, req, chi.URLParam(req, "companyID"))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
