// Package cli implements the mailer command line: serving the ops server and
// delivery sink, previewing notification kinds and sending samples.
package cli
