package main

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withLogging(h http.Handler) http.Handler {
	logFn := func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: rw, status: http.StatusOK}

		uri := r.RequestURI
		method := r.Method
		h.ServeHTTP(recorder, r)

		log.WithFields(log.Fields{
			"uri":      uri,
			"method":   method,
			"status":   recorder.status,
			"duration": time.Since(start),
		}).Info()
	}
	return http.HandlerFunc(logFn)
}
