// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"maps"
	"net/http"
)

func init() {
	deviceErrorDefinitions := map[ErrorCode]struct {
		message    string
		domain     Domain
		httpStatus int
	}{
		DeviceNotFound: {
			"Device not found",
			DomainDevice,
			http.StatusNotFound,
		},
		DeviceBusy: {
			"Device is busy",
			DomainDevice,
			http.StatusConflict,
		},
		DeviceProbeFailed: {
			"Device probe failed",
			DomainDevice,
			http.StatusInternalServerError,
		},
		DeviceSourceUnavailable: {
			"Probe source unavailable",
			DomainDevice,
			http.StatusServiceUnavailable,
		},
		DeviceFactsIncomplete: {
			"Device facts could not be fully determined",
			DomainDevice,
			http.StatusUnprocessableEntity,
		},
		DeviceHiddenAreaDetected: {
			"Hidden area (HPA/DCO) detected on device",
			DomainDevice,
			http.StatusOK,
		},
		DevicePermissionDenied: {
			"Permission denied accessing device",
			DomainDevice,
			http.StatusForbidden,
		},
	}
	maps.Copy(errorDefinitions, deviceErrorDefinitions)

	selectorErrorDefinitions := map[ErrorCode]struct {
		message    string
		domain     Domain
		httpStatus int
	}{
		SelectorNoStrategyApplicable: {
			"No wipe strategy applicable to this device",
			DomainSelector,
			http.StatusUnprocessableEntity,
		},
		SelectorUnsupportedMedia: {
			"Media type is not supported for sanitization",
			DomainSelector,
			http.StatusUnprocessableEntity,
		},
		SelectorFallbackExhausted: {
			"All fallback strategies exhausted",
			DomainSelector,
			http.StatusUnprocessableEntity,
		},
		SelectorScoringHookFailed: {
			"Scoring hook returned an error",
			DomainSelector,
			http.StatusInternalServerError,
		},
	}
	maps.Copy(errorDefinitions, selectorErrorDefinitions)

	executorErrorDefinitions := map[ErrorCode]struct {
		message    string
		domain     Domain
		httpStatus int
	}{
		ExecutorUnsupported: {
			"Strategy unsupported on this device",
			DomainExecutor,
			http.StatusUnprocessableEntity,
		},
		ExecutorPermissionDenied: {
			"Permission denied executing wipe",
			DomainExecutor,
			http.StatusForbidden,
		},
		ExecutorTimeout: {
			"Wipe operation timed out",
			DomainExecutor,
			http.StatusGatewayTimeout,
		},
		ExecutorIOError: {
			"I/O error during wipe operation",
			DomainExecutor,
			http.StatusInternalServerError,
		},
		ExecutorVerificationFailed: {
			"Post-wipe verification failed",
			DomainExecutor,
			http.StatusUnprocessableEntity,
		},
		ExecutorCancelled: {
			"Wipe operation cancelled",
			DomainExecutor,
			http.StatusOK,
		},
		ExecutorInvalidTransition: {
			"Invalid wipe operation state transition",
			DomainExecutor,
			http.StatusConflict,
		},
		ExecutorAlreadyRunning: {
			"Wipe operation already running on this device",
			DomainExecutor,
			http.StatusConflict,
		},
		ExecutorToolMissing: {
			"Required sanitize tool is missing",
			DomainExecutor,
			http.StatusServiceUnavailable,
		},
	}
	maps.Copy(errorDefinitions, executorErrorDefinitions)

	logChainErrorDefinitions := map[ErrorCode]struct {
		message    string
		domain     Domain
		httpStatus int
	}{
		LogChainAppendFailed: {
			"Failed to append log entry",
			DomainLogChain,
			http.StatusInternalServerError,
		},
		LogChainVerifyFailed: {
			"Log chain verification failed",
			DomainLogChain,
			http.StatusUnprocessableEntity,
		},
		LogChainCorrupted: {
			"Log chain is corrupted",
			DomainLogChain,
			http.StatusUnprocessableEntity,
		},
		LogChainPersistFailed: {
			"Failed to persist log to disk",
			DomainLogChain,
			http.StatusInternalServerError,
		},
		LogChainNotFound: {
			"Log chain not found",
			DomainLogChain,
			http.StatusNotFound,
		},
		LogChainSequenceMismatch: {
			"Log entry sequence mismatch",
			DomainLogChain,
			http.StatusConflict,
		},
	}
	maps.Copy(errorDefinitions, logChainErrorDefinitions)

	signerErrorDefinitions := map[ErrorCode]struct {
		message    string
		domain     Domain
		httpStatus int
	}{
		SignerKeyGenFailed: {
			"Failed to generate signing key pair",
			DomainSigner,
			http.StatusInternalServerError,
		},
		SignerKeyLoadFailed: {
			"Failed to load signing key",
			DomainSigner,
			http.StatusInternalServerError,
		},
		SignerKeyNotFound: {
			"Signing key not found",
			DomainSigner,
			http.StatusNotFound,
		},
		SignerSignFailed: {
			"Failed to sign payload",
			DomainSigner,
			http.StatusInternalServerError,
		},
		SignerVerifyFailed: {
			"Signature verification failed",
			DomainSigner,
			http.StatusUnprocessableEntity,
		},
		SignerCanonicalizeFailed: {
			"Failed to canonicalize payload for signing",
			DomainSigner,
			http.StatusInternalServerError,
		},
		SignerFingerprintMismatch: {
			"Public key fingerprint mismatch",
			DomainSigner,
			http.StatusUnprocessableEntity,
		},
	}
	maps.Copy(errorDefinitions, signerErrorDefinitions)

	certificateErrorDefinitions := map[ErrorCode]struct {
		message    string
		domain     Domain
		httpStatus int
	}{
		CertificateBuildFailed: {
			"Failed to build certificate",
			DomainCertificate,
			http.StatusInternalServerError,
		},
		CertificateVerificationFailed: {
			"Certificate verification failed",
			DomainCertificate,
			http.StatusUnprocessableEntity,
		},
		CertificateMalformed: {
			"Certificate is malformed",
			DomainCertificate,
			http.StatusBadRequest,
		},
		CertificateSignatureInvalid: {
			"Certificate signature is invalid",
			DomainCertificate,
			http.StatusUnprocessableEntity,
		},
		CertificateLogMismatch: {
			"Certificate does not match its log chain",
			DomainCertificate,
			http.StatusUnprocessableEntity,
		},
		CertificateNotFound: {
			"Certificate not found",
			DomainCertificate,
			http.StatusNotFound,
		},
		CertificateAnchorFailed: {
			"Timestamp anchor request failed",
			DomainCertificate,
			http.StatusBadGateway,
		},
	}
	maps.Copy(errorDefinitions, certificateErrorDefinitions)

	queueErrorDefinitions := map[ErrorCode]struct {
		message    string
		domain     Domain
		httpStatus int
	}{
		QueueDeviceBusy: {
			"Device already owned by a running operation",
			DomainQueue,
			http.StatusConflict,
		},
		QueueConcurrencyLimit: {
			"Maximum concurrent wipe operations reached",
			DomainQueue,
			http.StatusTooManyRequests,
		},
		QueueScheduleFailed: {
			"Failed to register scheduled verification job",
			DomainQueue,
			http.StatusInternalServerError,
		},
		QueueNotFound: {
			"Operation not found in queue",
			DomainQueue,
			http.StatusNotFound,
		},
	}
	maps.Copy(errorDefinitions, queueErrorDefinitions)
}
