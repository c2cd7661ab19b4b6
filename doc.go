// Package reqflow orchestrates HTTP requests between application code and a
// transport:
//
//   - Repeat-request suppression: a new request cancels an identical one still
//     in flight (same method, URL and parameter or body key names)
//   - Response memoization: cacheable calls share an in-flight round trip and
//     reuse settled results, errors included
//   - Interceptors around every request, response and error
//   - A verb API (Get, Post, Put, Delete, Upload) over a single Request entry point
//   - Prometheus metrics, OpenTelemetry spans and optional debug logging
//
// Typical usage:
//
//	client := reqflow.New(
//	    reqflow.WithBaseURL("http://localhost:3000/api"),
//	    reqflow.WithTimeout(12*time.Second),
//	    reqflow.WithIgnoreRepeatRequests(true),
//	)
//	resp, err := client.Get(ctx, "/users", reqflow.WithRequestCache(true))
//	if reqflow.IsCancelled(err) {
//	    // superseded by a newer identical request
//	}
//
// Identity is deliberately lossy: two requests that differ only in parameter
// values share a fingerprint, and therefore a cache entry.
package reqflow
