// Package httputil holds the JSON response helpers used by the ops
// endpoints.
package httputil
