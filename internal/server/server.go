package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/solaxcloud2mqtt/internal/config"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
)

const (
	DEFAULT_REQUEST_TIMEOUT = 15 * time.Second
)

type Server struct {
	port           uint
	httpLog        bool
	requestTimeout time.Duration
	rootContext    *actor.RootContext
	masterActor    *actor.PID
}

func newServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID) *Server {
	// a metrics request may wait on one upstream fetch
	requestTimeout := cfg.SolaxCloud.Timeout() + 5*time.Second
	if requestTimeout < DEFAULT_REQUEST_TIMEOUT {
		requestTimeout = DEFAULT_REQUEST_TIMEOUT
	}
	return &Server{
		port:           cfg.Port,
		httpLog:        cfg.HttpLog,
		requestTimeout: requestTimeout,
		rootContext:    rootContext,
		masterActor:    masterActor,
	}
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID) *http.Server {
	s := newServer(cfg, rootContext, masterActor)

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
