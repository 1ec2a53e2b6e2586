package status

import (
	"github.com/SpatiumPortae/ferry/internal/logger"
)

func (s *Server) routes() {
	s.router.Use(logger.Middleware(s.logger))
	s.router.HandleFunc("/ping", s.ping()).Methods("GET")
	s.router.HandleFunc("/version", s.handleVersion()).Methods("GET")
	s.router.HandleFunc("/stats", s.handleStats()).Methods("GET")
}
