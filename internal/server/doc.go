// Package server exposes scans over HTTP.
//
// Routes:
//
//	GET  /scan?host=<host>
//	POST /scan            {"host": "<host>"}
//	GET  /healthz
//
// A successful scan answers 200 with the ordered service array:
//
//	[{"service":"MongoDB","status":{"port":true,"protocol":true,"secured":false}}, ...]
//
// A missing or invalid host answers 400 with {"error": "..."}. Methods other
// than GET and POST on /scan answer 405.
package server
