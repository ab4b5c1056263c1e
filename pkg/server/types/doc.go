// Package types defines the JSON error body shared by the server and its
// middleware.
package types
