package target

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ServerConfig struct {
	Addr   string
	Secret string
	// Scale multiplies every artificial delay; tests set it near zero.
	Scale float64
}

type ctxKey struct{}

// ClaimsFrom returns the claims the JWT middleware stored on the request.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}

// JWTMiddleware rejects requests without a valid "Bearer <token>" header.
func JWTMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, raw, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || raw == "" {
				http.Error(w, "missing or malformed Authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := ParseToken(secret, strings.TrimSpace(raw))
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
		})
	}
}

type InventoryItem struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

type InfoResponse struct {
	Coins       int             `json:"coins"`
	Inventory   []InventoryItem `json:"inventory"`
	CoinHistory struct {
		Received []any `json:"received"`
		Sent     []any `json:"sent"`
	} `json:"coinHistory"`
}

// NewRouter builds the stand-in for the system under test.
func NewRouter(cfg ServerConfig) http.Handler {
	scale := cfg.Scale
	if scale <= 0 {
		scale = 1
	}
	sleep := func(r *http.Request, lo, hi time.Duration) {
		d := lo
		if hi > lo {
			d += rand.N(hi - lo)
		}
		t := time.NewTimer(time.Duration(float64(d) * scale))
		defer t.Stop()
		select {
		case <-r.Context().Done():
		case <-t.C:
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Group(func(protected chi.Router) {
			protected.Use(JWTMiddleware(cfg.Secret))
			protected.Get("/info", func(w http.ResponseWriter, r *http.Request) {
				claims, _ := ClaimsFrom(r.Context())
				info := InfoResponse{
					Coins:     1000 - claims.UserID%100,
					Inventory: []InventoryItem{{Type: "t-shirt", Quantity: 1}},
				}
				info.CoinHistory.Received = []any{}
				info.CoinHistory.Sent = []any{}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(info)
			})
		})
	})

	// 10-50ms
	r.Get("/fast", func(w http.ResponseWriter, r *http.Request) {
		sleep(r, 10*time.Millisecond, 50*time.Millisecond)
		_, _ = w.Write([]byte("Fast response"))
	})
	// 1-2s, good for timeouts and pool saturation
	r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		sleep(r, time.Second, 2*time.Second)
		_, _ = w.Write([]byte("Slow response"))
	})
	// P99 will be terrible, P50 will be fine.
	r.Get("/spike", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float32() < 0.05 {
			sleep(r, 2*time.Second, 2*time.Second)
		} else {
			sleep(r, 20*time.Millisecond, 20*time.Millisecond)
		}
		_, _ = w.Write([]byte("Spikey response"))
	})
	r.Get("/error", func(w http.ResponseWriter, r *http.Request) {
		switch rnd := rand.Float32(); {
		case rnd < 0.2:
			http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
		case rnd < 0.4:
			http.Error(w, "429 Too Many Requests", http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte("OK"))
		}
	})
	return r
}

// Serve runs the target until ctx is done.
func Serve(ctx context.Context, cfg ServerConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: NewRouter(cfg), ReadHeaderTimeout: 5 * time.Second}
	logger.Info("target listening", "addr", ln.Addr().String(),
		"endpoints", "/api/info (JWT), /fast, /slow, /spike, /error")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
