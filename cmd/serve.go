package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/creditparse-cli/internal/intake"
	"github.com/sells-group/creditparse-cli/internal/model"
	"github.com/sells-group/creditparse-cli/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP ingress for report uploads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		r := buildRouter(p, cfg.Server.AllowedOrigins)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			if err := drainServer(srv); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// reportProcessor is the pipeline surface the upload handler uses.
type reportProcessor interface {
	Process(ctx context.Context, data []byte, declaredType, filename string) (*model.ExtractionResult, error)
}

// buildRouter assembles the ingress routes around a processor.
func buildRouter(p reportProcessor, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/v1/reports", func(w http.ResponseWriter, req *http.Request) {
		data, declared, filename, err := readUpload(req)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		result, err := p.Process(req.Context(), data, declared, filename)
		if err != nil {
			var ve *intake.ValidationError
			if errors.As(err, &ve) {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
					"error": ve.Message,
					"code":  string(ve.Code),
				})
				return
			}
			zap.L().Error("processing failed",
				zap.String("filename", filename), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "processing failed"})
			return
		}

		writeJSON(w, http.StatusOK, result)
	})

	return r
}

// drainServer shuts the server down under its own timeout so in-flight
// requests finish even though the signal context is already cancelled.
func drainServer(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// readUpload accepts either a multipart form with a "file" part or a raw
// body with a Content-Type header.
func readUpload(req *http.Request) (data []byte, declared, filename string, err error) {
	if strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := req.FormFile("file")
		if err != nil {
			return nil, "", "", eris.Wrap(err, "missing file part")
		}
		defer file.Close()
		data, err = io.ReadAll(file)
		if err != nil {
			return nil, "", "", eris.Wrap(err, "read file part")
		}
		return data, header.Header.Get("Content-Type"), header.Filename, nil
	}

	data, err = io.ReadAll(req.Body)
	if err != nil {
		return nil, "", "", eris.Wrap(err, "read body")
	}
	return data, req.Header.Get("Content-Type"), "", nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
