package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/pyama86/quera/handler"
)

func main() {
	h, err := handler.NewHandler()
	if err != nil {
		slog.Error("NewHandler failed", slog.Any("err", err))
		os.Exit(1)
	}

	bind := ":3000"
	if os.Getenv("LISTEN_SOCKET") != "" {
		bind = os.Getenv("LISTEN_SOCKET")
	}
	slog.Info("Server listening", slog.String("bind", bind))
	if err := http.ListenAndServe(bind, h.Routes()); err != nil {
		slog.Error("Server failed", slog.Any("err", err))
		os.Exit(1)
	}
}
