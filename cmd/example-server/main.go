package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/manenim/rateguard/pkg/ratelimit"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	reg := prometheus.NewRegistry()
	opts := []ratelimit.Option{
		ratelimit.WithLogger(log),
		ratelimit.WithSink(ratelimit.NewZapSink(log)),
		ratelimit.WithRecorder(ratelimit.NewPrometheusRecorder(reg)),
	}

	// Without REDIS_ADDR the engine runs on its local store; with it, Redis
	// is primary and local memory is the automatic fallback.
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		opts = append(opts, ratelimit.WithSharedStore(ratelimit.NewRedisStore(client)))
		log.Info("using shared counter store", zap.String("redis_addr", addr))
	}

	if path := os.Getenv("LIMITS_FILE"); path != "" {
		fc, err := ratelimit.LoadConfigFile(path)
		if err != nil {
			log.Fatal("load limits file", zap.Error(err))
		}
		fileOpts, err := fc.Options()
		if err != nil {
			log.Fatal("apply limits file", zap.Error(err))
		}
		opts = append(opts, fileOpts...)
	}

	limiter, err := ratelimit.New(opts...)
	if err != nil {
		log.Fatal("construct limiter", zap.Error(err))
	}
	defer limiter.Close()

	http.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		actor := r.RemoteAddr
		dec := limiter.CheckLimit(r.Context(), actor, "api_call")
		if !dec.Allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", dec.RetryAfter.Seconds()))
			status := http.StatusTooManyRequests
			if dec.Reason == ratelimit.ReasonAbuseBlocked {
				status = http.StatusForbidden
			}
			http.Error(w, string(dec.Reason), status)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", dec.Remaining))
		w.Write([]byte("pong\n"))
	})

	// Operational endpoints for dashboards and support tooling.
	http.HandleFunc("GET /abuse", func(w http.ResponseWriter, r *http.Request) {
		actor := r.URL.Query().Get("actor")
		if actor == "" {
			http.Error(w, "actor query parameter required", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"actor_id":   actor,
			"score":      limiter.GetAbuseScore(actor),
			"blocked":    limiter.IsBlocked(actor),
			"violations": limiter.GetViolationHistory(actor),
		})
	})

	http.HandleFunc("POST /abuse/reset", func(w http.ResponseWriter, r *http.Request) {
		actor := r.URL.Query().Get("actor")
		if actor == "" {
			http.Error(w, "actor query parameter required", http.StatusBadRequest)
			return
		}
		limiter.ResetAbuseScore(actor)
		log.Info("abuse score reset", zap.String("actor_id", actor))
		w.WriteHeader(http.StatusNoContent)
	})

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.Info("listening", zap.String("addr", ":8080"))
	if err := http.ListenAndServe(":8080", nil); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
