package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"crud-master/gateway/internal/config"
	"crud-master/gateway/internal/handler/http/billing"
	"crud-master/gateway/internal/infrastructure/rabbitmq"
)

func NewRouter(cfg *config.Config, publisher rabbitmq.Publisher, l *zap.Logger) (http.Handler, error) {
	inventoryURL, err := url.Parse(cfg.InventoryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Inventory Service URL (%s): %w", cfg.InventoryURL, err)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  zap.NewStdLog(l.With(zap.String("component", "HTTPAccess"))),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	inventoryProxy := createProxy(inventoryURL, l.With(zap.String("component", "InventoryProxy")))

	r.Route("/api/movies", func(r chi.Router) {
		r.Get("/", inventoryProxy.ServeHTTP)
		r.Post("/", inventoryProxy.ServeHTTP)
		r.Delete("/", inventoryProxy.ServeHTTP)
		r.Get("/{id}", inventoryProxy.ServeHTTP)
		r.Put("/{id}", inventoryProxy.ServeHTTP)
		r.Delete("/{id}", inventoryProxy.ServeHTTP)
	})

	billing.RegisterRoutes(r, publisher, l)

	return r, nil
}

func createProxy(target *url.URL, l *zap.Logger) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)

	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		// The inventory service must see its own host, not the gateway's.
		req.Host = target.Host
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		l.Error("Proxy error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("target", target.String()),
			zap.Error(err))

		var netErr net.Error
		switch {
		case os.IsTimeout(err):
			renderJSONError(w, "Gateway Timeout", http.StatusGatewayTimeout)
		case errors.As(err, &netErr):
			renderJSONError(w, "Service Unavailable", http.StatusServiceUnavailable)
		default:
			renderJSONError(w, "Bad Gateway", http.StatusBadGateway)
		}
	}

	return proxy
}

func renderJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message, "code": statusCode})
}
