// Package utils provides glob matching for recipient allowlists and small
// text helpers shared by the composer and the template functions.
package utils
