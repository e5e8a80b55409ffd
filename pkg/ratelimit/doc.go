// Package ratelimit limits requests per client IP on the ops server.
package ratelimit
