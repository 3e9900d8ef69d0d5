package pprof

import (
	"net/http"
	_ "net/http/pprof"
)

const DefaultAddr = "0.0.0.0:8000"

// StartPprofServer serves the runtime profiling handlers on addr,
// blocking until the listener fails. An empty addr uses DefaultAddr.
func StartPprofServer(addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	return http.ListenAndServe(addr, nil)
}
