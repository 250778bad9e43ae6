// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package errors

import "net/http"

const (
	DomainConfig      Domain = "CONFIG"
	DomainServer      Domain = "SERVER"
	DomainCommand     Domain = "CMD"
	DomainDevice      Domain = "DEVICE"
	DomainSelector    Domain = "SELECTOR"
	DomainExecutor    Domain = "EXECUTOR"
	DomainLogChain    Domain = "LOGCHAIN"
	DomainSigner      Domain = "SIGNER"
	DomainCertificate Domain = "CERTIFICATE"
	DomainQueue       Domain = "QUEUE"
	DomainMisc        Domain = "MISC"
)

// ErrorCode represents unique error identifiers
type ErrorCode int

// Domain represents the subsystem where the error originated
type Domain string

// VeriwipeError is the structured error type returned by every package in
// this module. It carries enough information for both a human-readable
// message (Error()) and machine consumption (JSON marshalling, HTTP status,
// metadata for logging/telemetry).
type VeriwipeError struct {
	Code    ErrorCode `json:"code"`
	Domain  Domain    `json:"domain"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`

	HTTPStatus int `json:"-"`

	// Metadata carries structured context that doesn't belong in Message,
	// e.g. device_id, command, exit_code, stderr.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Error code ranges:
// 1000-1099: Configuration errors
// 1100-1199: Server / local API errors
// 1300-1399: Command execution
// 2000-2099: Device probe errors
// 2100-2199: Method selector errors
// 2200-2299: Wipe executor errors
// 2300-2399: Hash-chained log errors
// 2400-2499: Signer errors
// 2500-2599: Certificate builder/verifier errors
// 2600-2699: Wipe queue/scheduler errors
const (
	// Configuration Errors (1000-1099)
	ConfigNotFound = 1000 + iota
	ConfigInvalid
	ConfigLoadFailed
	ConfigWriteFailed
	ConfigValidationFailed
	ConfigDirectoryError
)

const (
	// Server Errors (1100-1199)
	ServerStart = 1100 + iota
	ServerBind
	ServerRequestValidation
	ServerInternalError
	ServerBadRequest
)

const (
	// Command Execution Errors (1300-1399)
	CommandExecution = 1300 + iota
	CommandInvalidInput
	CommandTimeout
	CommandNotFound
)

const (
	// Device Probe Errors (2000-2099)
	DeviceNotFound = 2000 + iota
	DeviceBusy
	DeviceProbeFailed
	DeviceSourceUnavailable
	DeviceFactsIncomplete
	DeviceHiddenAreaDetected
	DevicePermissionDenied
)

const (
	// Method Selector Errors (2100-2199)
	SelectorNoStrategyApplicable = 2100 + iota
	SelectorUnsupportedMedia
	SelectorFallbackExhausted
	SelectorScoringHookFailed
)

const (
	// Wipe Executor Errors (2200-2299)
	ExecutorUnsupported = 2200 + iota
	ExecutorPermissionDenied
	ExecutorTimeout
	ExecutorIOError
	ExecutorVerificationFailed
	ExecutorCancelled
	ExecutorInvalidTransition
	ExecutorAlreadyRunning
	ExecutorToolMissing
)

const (
	// Hash-Chained Log Errors (2300-2399)
	LogChainAppendFailed = 2300 + iota
	LogChainVerifyFailed
	LogChainCorrupted
	LogChainPersistFailed
	LogChainNotFound
	LogChainSequenceMismatch
)

const (
	// Signer Errors (2400-2499)
	SignerKeyGenFailed = 2400 + iota
	SignerKeyLoadFailed
	SignerKeyNotFound
	SignerSignFailed
	SignerVerifyFailed
	SignerCanonicalizeFailed
	SignerFingerprintMismatch
)

const (
	// Certificate Builder/Verifier Errors (2500-2599)
	CertificateBuildFailed = 2500 + iota
	CertificateVerificationFailed
	CertificateMalformed
	CertificateSignatureInvalid
	CertificateLogMismatch
	CertificateNotFound
	CertificateAnchorFailed
)

const (
	// Wipe Queue/Scheduler Errors (2600-2699)
	QueueDeviceBusy = 2600 + iota
	QueueConcurrencyLimit
	QueueScheduleFailed
	QueueNotFound
)

// errorDefinitions is the global registry of error codes to their
// human-readable message, owning domain, and HTTP status. Each
// per-domain file (codes.go) contributes its own block via init() and
// maps.Copy rather than listing everything here.
var errorDefinitions = map[ErrorCode]struct {
	message    string
	domain     Domain
	httpStatus int
}{
	ConfigNotFound: {
		"Configuration file not found",
		DomainConfig,
		http.StatusNotFound,
	},
	ConfigInvalid: {
		"Configuration is invalid",
		DomainConfig,
		http.StatusBadRequest,
	},
	ConfigLoadFailed: {
		"Failed to load configuration",
		DomainConfig,
		http.StatusInternalServerError,
	},
	ConfigWriteFailed: {
		"Failed to write configuration",
		DomainConfig,
		http.StatusInternalServerError,
	},
	ConfigValidationFailed: {
		"Configuration validation failed",
		DomainConfig,
		http.StatusBadRequest,
	},
	ConfigDirectoryError: {
		"Configuration directory error",
		DomainConfig,
		http.StatusInternalServerError,
	},
	ServerStart: {
		"Failed to start server",
		DomainServer,
		http.StatusInternalServerError,
	},
	ServerBind: {
		"Failed to bind server address",
		DomainServer,
		http.StatusInternalServerError,
	},
	ServerRequestValidation: {
		"Request validation failed",
		DomainServer,
		http.StatusBadRequest,
	},
	ServerInternalError: {
		"Internal server error",
		DomainServer,
		http.StatusInternalServerError,
	},
	ServerBadRequest: {
		"Bad request",
		DomainServer,
		http.StatusBadRequest,
	},
	CommandExecution: {
		"Command execution failed",
		DomainCommand,
		http.StatusInternalServerError,
	},
	CommandInvalidInput: {
		"Invalid command input",
		DomainCommand,
		http.StatusBadRequest,
	},
	CommandTimeout: {
		"Command execution timed out",
		DomainCommand,
		http.StatusGatewayTimeout,
	},
	CommandNotFound: {
		"Command not found",
		DomainCommand,
		http.StatusNotFound,
	},
}
