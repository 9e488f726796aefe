// Package oracle is the public API for embedding the prediction service.
package oracle

import (
	"github.com/tjfontaine/dice-oracle/internal/runtime"
)

// Oracle runs the stream engines, their pollers and the read API.
// See internal/runtime.Oracle for full documentation.
type Oracle = runtime.Oracle

// Option is a functional option for configuring an Oracle.
type Option = runtime.Option

// New creates an Oracle with the given options.
// Example:
//
//	o, err := oracle.New(
//	    oracle.WithFileConfig("config.yaml"),
//	    oracle.WithLogger(logger),
//	)
var New = runtime.New

// Configuration options
var (
	WithFileConfig       = runtime.WithFileConfig
	WithConfig           = runtime.WithConfig
	WithLogger           = runtime.WithLogger
	WithHTTPClient       = runtime.WithHTTPClient
	WithJournal          = runtime.WithJournal
	WithConfidenceSource = runtime.WithConfidenceSource
)
