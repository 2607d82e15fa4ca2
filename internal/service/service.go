// Package service holds the image check used by the upload handler and the
// standalone check command.
package service

const tracerName = "imgcheck/service"
