package fileserver

import (
	"github.com/Brownie44l1/staticd/internal/request"
	"github.com/Brownie44l1/staticd/internal/response"
)

// keepConnection determines if the connection stays open after this request
func keepConnection(req *request.Request, w *response.Writer) bool {
	// Unparseable request, nothing to go on
	if req == nil {
		return false
	}

	// If response had errors, close the connection
	if w.HadError() {
		return false
	}

	// Only served files and misses honour keep-alive; 400 and 501 always close
	switch w.StatusCode() {
	case response.StatusOK, response.StatusNotFound:
		return req.KeepAlive
	default:
		return false
	}
}
