package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/aurora-ops/dmbridge/convo"
	"github.com/aurora-ops/dmbridge/internal/logutil"
	"github.com/aurora-ops/dmbridge/internal/statepaths"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-mostly HTTP API over the shared state files",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stores, err := openStores(logger)
			if err != nil {
				return err
			}
			defer stores.Close()

			addr := net.JoinHostPort(
				viper.GetString("server.bind"),
				strconv.Itoa(viper.GetInt("server.port")),
			)
			srv := &http.Server{
				Addr:              addr,
				Handler:           newAPIRouter(stores, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("api_listening", "addr", addr, "state_dir", statepaths.StateDir())
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutCtx)
			})

			err = g.Wait()
			if ctx.Err() != nil {
				logger.Info("api_stopped")
				return nil
			}
			return err
		},
	}
	return cmd
}

func newAPIRouter(stores *stateStores, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/conversations", func(w http.ResponseWriter, req *http.Request) {
			all, err := stores.convos.All(req.Context())
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"conversations": all})
		})

		r.Get("/conversations/{username}", func(w http.ResponseWriter, req *http.Request) {
			username := chi.URLParam(req, "username")
			c, ok, err := stores.convos.Get(req.Context(), username)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			if !ok {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown username"})
				return
			}
			score, label := convo.Score(c, nil)
			writeJSON(w, http.StatusOK, map[string]any{
				"conversation": c,
				"score":        score,
				"label":        label,
			})
		})

		r.Get("/leads", func(w http.ResponseWriter, req *http.Request) {
			all, err := stores.convos.All(req.Context())
			if err != nil {
				writeError(w, logger, err)
				return
			}
			leads := make([]convo.Conversation, 0)
			for _, c := range all {
				if c.IsLead {
					leads = append(leads, c)
				}
			}
			writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
		})

		r.Get("/pending", func(w http.ResponseWriter, req *http.Request) {
			flags, err := stores.pending.All(req.Context())
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"pending": flags})
		})

		r.Get("/reengagements", func(w http.ResponseWriter, req *http.Request) {
			records, err := stores.reengaged.All(req.Context())
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"reengagements": records})
		})

		r.Get("/queue", func(w http.ResponseWriter, req *http.Request) {
			items, err := stores.queue.Items(req.Context())
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
		})

		r.Post("/replies", func(w http.ResponseWriter, req *http.Request) {
			var in struct {
				Username string `json:"username"`
				Text     string `json:"text"`
			}
			if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
				return
			}
			if err := stores.queue.Enqueue(req.Context(), in.Username, in.Text); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("api_request_failed", "error", err.Error())
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": fmt.Sprintf("internal error: %v", err),
	})
}
