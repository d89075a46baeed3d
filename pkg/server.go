package roomdb

import (
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	clog "github.com/vilterp/roomdb/pkg/log"
)

type Server struct {
	db         *Database
	httpServer *http.Server
}

func NewServer(db *Database, host string, port int) *Server {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: newHandler(db),
	}
	return &Server{
		db:         db,
		httpServer: httpServer,
	}
}

func newHandler(database *Database) http.Handler {
	mux := http.NewServeMux()

	// Serve metrics.
	mux.Handle(
		"/metrics",
		promhttp.HandlerFor(database.metrics.registry, promhttp.HandlerOpts{}),
	)

	// Dump the store, for debugging.
	mux.HandleFunc("/facts", func(resp http.ResponseWriter, req *http.Request) {
		resp.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := database.Print(resp); err != nil {
			clog.Println(database, "error writing facts:", err)
		}
	})

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// Serve WebSocket endpoint for DB traffic.
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(_ *http.Request) bool { return true }, // TODO: restrict origins once the renderer is served from here
	}
	mux.HandleFunc("/ws", func(resp http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(resp, req, nil)
		if err != nil {
			clog.Println(database, err)
			return
		}
		database.addConnection(conn)
	})

	return mux
}

func (s *Server) ListenAndServe() error {
	clog.Println(s.db, "serving HTTP at", fmt.Sprintf("http://%s/", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Close() error {
	clog.Println(s.db, "closing connections...")
	if err := s.db.Close(); err != nil {
		return err
	}
	clog.Println(s.db, "closing http server...")
	if err := s.httpServer.Close(); err != nil {
		return err
	}
	clog.Println(s.db, "bye!")
	return nil
}
