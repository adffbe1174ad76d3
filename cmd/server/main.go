// cmd/server/main.go
package main

import (
	"net/http"
	"os"
	"os/signal"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/unolabs/uno-service/internal/cache"
	"github.com/unolabs/uno-service/internal/handlers"
	"github.com/unolabs/uno-service/internal/middleware"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	if os.Getenv("UNO_DEBUG") != "" {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Action history is optional: without Redis the server plays on and
	// simply records nothing.
	if err := cache.ConnectRedis(); err != nil {
		logger.WithError(err).Warn("Redis unavailable, action history disabled")
	}

	srv := handlers.NewGameServer(logger)

	mux := http.NewServeMux()

	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.GameWSHandler(logger, srv.Dispatcher),
	)))
	mux.Handle("/health", middleware.LogMiddleware(logger)(http.HandlerFunc(
		srv.HealthHandler,
	)))

	// Static client assets, if a web dir is present.
	webDir := os.Getenv("UNO_WEB_DIR")
	if webDir == "" {
		webDir = "./web"
	}
	mux.Handle("/", middleware.LogMiddleware(logger)(http.FileServer(http.Dir(webDir))))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("uno-service listening on %s", addr)
		errc <- http.ListenAndServe(addr, mux)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.Fatalf("server exited: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}
}
