package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"scribeflow/internal/cache"
	"scribeflow/internal/config"
	"scribeflow/internal/export"
	"scribeflow/internal/logger"
	"scribeflow/internal/pipeline"
	"scribeflow/internal/prompt"
	"scribeflow/internal/remote"
	"scribeflow/internal/types"
	"scribeflow/internal/watcher"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "scribeflow").Info("starting service")

	cfgPath := envOr("CONFIG_PATH", "config.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	log.WithField("config_path", cfgPath).Info("config loaded")

	creds := pipeline.Credentials{
		TranscribeAPIKey: os.Getenv("TRANSCRIBE_API_KEY"),
		ProcessAPIKey:    os.Getenv("PROCESS_API_KEY"),
	}
	if creds.TranscribeAPIKey == "" && creds.ProcessAPIKey == "" {
		log.Warn("no API keys set; remote calls will be rejected by the provider")
	}

	store := cache.New(cfg.Cache.Dir, cfg.Cache.TTL(), !cfg.Cache.Disabled, log.Entry)
	exec := remote.NewExecutor(remote.NewHTTPTransport(),
		cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay(), log.Entry)
	runner := pipeline.NewRunner(cfg, store, exec, creds, log.Entry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Paths.Inbox != "" {
		w, err := watcher.New(cfg.Paths.Inbox, inboxHandler(cfg, runner), log.Entry, cfg.Performance.MaxConcurrent)
		if err != nil {
			log.WithError(err).Fatal("failed to start inbox watcher")
		}
		go func() {
			if err := w.Start(ctx); err != nil && err != context.Canceled {
				log.WithError(err).Error("inbox watcher terminated")
			}
		}()
		defer w.Stop()
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.New().WithRequest(r).Info("health check")
		fmt.Fprint(w, "ok")
	})

	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "transcribe")
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := r.ParseMultipartForm(int64(cfg.Transcribe.MaxUploadMB) << 20); err != nil {
			reqLog.WithError(err).Warn("bad multipart form")
			http.Error(w, "bad multipart form", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			reqLog.Warn("missing file field")
			http.Error(w, "missing file field", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			reqLog.WithError(err).Error("failed to read upload")
			http.Error(w, "failed to read upload", http.StatusInternalServerError)
			return
		}

		duration := 0.0
		if d := r.FormValue("duration_seconds"); d != "" {
			duration, _ = strconv.ParseFloat(d, 64)
		}
		language := r.FormValue("language")
		if language == "" {
			language = "zh"
		}

		art := types.Artifact{
			Kind:            types.KindAudio,
			Name:            header.Filename,
			Data:            data,
			DurationSeconds: duration,
		}
		spec := types.ProcessingSpec{Op: types.OpTranscribe, Language: language}

		reqLog = reqLog.WithField("filename", header.Filename).WithField("bytes", len(data))
		runAndRespond(w, r, reqLog, runner, art, spec)
	})

	mux.HandleFunc("/process", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "process")
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			Text         string `json:"text"`
			TemplateID   string `json:"template_id"`
			UserPrompt   string `json:"user_prompt"`
			SystemPrompt string `json:"system_prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			reqLog.WithError(err).Warn("bad request body")
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}

		spec := types.ProcessingSpec{
			Op:           types.OpTemplate,
			TemplateID:   body.TemplateID,
			UserPrompt:   body.UserPrompt,
			SystemPrompt: body.SystemPrompt,
		}
		if body.TemplateID == "" {
			spec.Op = types.OpCustom
		}

		art := types.Artifact{Kind: types.KindText, Name: "request", Text: body.Text}
		reqLog = reqLog.WithField("template_id", body.TemplateID).WithField("chars", len(body.Text))
		runAndRespond(w, r, reqLog, runner, art, spec)
	})

	mux.HandleFunc("/templates", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.Encode(prompt.All())
	})

	mux.HandleFunc("/cache/stats", func(w http.ResponseWriter, r *http.Request) {
		files, bytes, memItems := store.Size()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"files":       files,
			"total_bytes": bytes,
			"mem_items":   memItems,
		})
	})

	mux.HandleFunc("/cache/clear", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		logger.New().WithRequest(r).Info("clearing cache")
		store.Clear()
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%s", envOr("PORT", "8080"))
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
	log.Info("server stopped")
}

func runAndRespond(w http.ResponseWriter, r *http.Request, reqLog *logrus.Entry, runner *pipeline.Runner, art types.Artifact, spec types.ProcessingSpec) {
	start := time.Now()
	res := runner.Run(r.Context(), art, spec, nil)
	reqLog.WithField("duration_ms", time.Since(start).Milliseconds()).
		WithField("success", res.Success).
		WithField("from_cache", res.FromCache).
		Info("run finished")

	w.Header().Set("Content-Type", "application/json")
	switch {
	case res.Cancelled:
		w.WriteHeader(statusClientClosedRequest)
	case !res.Success:
		w.WriteHeader(http.StatusBadGateway)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		reqLog.WithError(err).Error("failed to write response")
	}
}

// nginx convention for a request abandoned by the client.
const statusClientClosedRequest = 499

// inboxHandler turns one dropped file into a pipeline run and writes
// the docx plus run report next to the configured output directory.
func inboxHandler(cfg *config.Config, runner *pipeline.Runner) watcher.Handler {
	return func(ctx context.Context, path string) error {
		log := logger.New().WithRun().WithField("path", path)

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		name := filepath.Base(path)
		var art types.Artifact
		var spec types.ProcessingSpec
		if watcher.IsAudio(path) {
			art = types.Artifact{Kind: types.KindAudio, Name: name, Data: data}
			spec = types.ProcessingSpec{Op: types.OpTranscribe, Language: "zh"}
		} else {
			art = types.Artifact{Kind: types.KindText, Name: name, Text: string(data)}
			spec = types.ProcessingSpec{Op: types.OpTemplate, TemplateID: "cleanup"}
		}

		res := runner.Run(ctx, art, spec, func(fraction float64, message string) {
			log.WithField("progress", fmt.Sprintf("%.0f%%", fraction*100)).Debug(message)
		})
		if !res.Success {
			return fmt.Errorf("process %s: %s", name, res.Error)
		}

		docxPath, reportPath := export.OutputPaths(cfg.Paths.Output, name)
		if err := export.WriteDocx(name, res.Text, docxPath); err != nil {
			return err
		}
		if err := export.WriteRunReport(res, name, reportPath); err != nil {
			return err
		}
		log.WithField("output", docxPath).Info("file processed")
		return nil
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
