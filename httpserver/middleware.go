package httpserver

import (
	"net/http"

	"github.com/flashbots/go-utils/httplogger"
)

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}
