package trans

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/lainio/err2"
)

const maxBodySize = 1 << 20

// Server is the inbound HTTP endpoint. Agents are registered by their ID and
// their endpoint is Addr/service/ID.
type Server struct {
	sync.RWMutex

	service  string
	version  string
	handlers map[string]Handler
	router   *mux.Router
	srv      *http.Server
}

func NewServer(service, version string) *Server {
	s := &Server{
		service:  service,
		version:  version,
		handlers: make(map[string]Handler),
		router:   mux.NewRouter(),
	}
	s.router.HandleFunc("/version", s.versionHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/"+service+"/{id}", s.transport).Methods(http.MethodPost)
	return s
}

// Endpoint builds the endpoint URL of the agent ID for the host address.
func (s *Server) Endpoint(hostAddr, id string) string {
	return fmt.Sprintf("%s/%s/%s", hostAddr, s.service, id)
}

func (s *Server) Register(id string, h Handler) {
	s.Lock()
	defer s.Unlock()
	s.handlers[id] = h
}

func (s *Server) Unregister(id string) {
	s.Lock()
	defer s.Unlock()
	delete(s.handlers, id)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections from the listener. It blocks until the server is
// shut down.
func (s *Server) Serve(l net.Listener) error {
	s.Lock()
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.srv
	s.Unlock()

	glog.V(1).Infof("HTTP Server on %s with handle pattern: \"/%s/{id}\"",
		l.Addr(), s.service)
	err := srv.Serve(l)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.RLock()
	srv := s.srv
	s.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) versionHandler(w http.ResponseWriter, _ *http.Request) {
	glog.V(5).Info("/version requested")
	_, _ = w.Write([]byte(s.version))
}

func errorResponse(w http.ResponseWriter, code int, msg string) {
	glog.V(2).Infof("Returning %d", code)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(msg))
}

func (s *Server) transport(w http.ResponseWriter, r *http.Request) {
	defer err2.Catch(err2.Err(func(err error) {
		glog.Error("error:", err)
		errorResponse(w, http.StatusInternalServerError, "500 - Error")
	}))

	id := mux.Vars(r)["id"]
	s.RLock()
	h, ok := s.handlers[id]
	s.RUnlock()
	if !ok {
		glog.V(3).Infoln("------ no agent for:", r.URL.Path)
		errorResponse(w, http.StatusNotFound, "404 - Unknown endpoint")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "400 - Bad request")
		return
	}
	glog.V(3).Infoln("===== Aries TRANSPORT =====", r.Method, r.URL.Path)

	go deliver("inbound "+id, h, data)
	w.WriteHeader(http.StatusAccepted)
}
