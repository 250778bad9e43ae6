// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package selector chooses a sanitize strategy for a probed device and
// degrades that choice when the executor reports a recoverable error.
package selector

import (
	"github.com/coldforge/veriwipe/pkg/device"
)

// Strategy is one of the closed set of sanitize methods the executor
// knows how to carry out.
type Strategy string

const (
	StrategyATASecureErase    Strategy = "ata_secure_erase"
	StrategyNVMeSecureErase   Strategy = "nvme_secure_erase"
	StrategyNVMeCryptoErase   Strategy = "nvme_crypto_erase"
	StrategyCryptoEraseLUKS   Strategy = "crypto_erase_luks"
	StrategyMultipassOverwrite Strategy = "multipass_overwrite"
	StrategySinglePassRandom  Strategy = "single_pass_random"
)

// ErrorKind is the classification the executor reports back to Fallback
// when a sanitize sub-command fails (§7's error taxonomy).
type ErrorKind string

const (
	ErrorUnsupported ErrorKind = "unsupported"
	ErrorNotSupportedByDevice ErrorKind = "not_supported_by_device"
	ErrorTimeout      ErrorKind = "timeout"
	ErrorIO           ErrorKind = "io_error"
)

// ScoringHook lets a caller bias the ladder toward a non-default
// strategy (e.g. a site policy that prefers multipass over ATA secure
// erase even when the drive supports it) without changing Select's
// core decision table. A nil hook leaves Select's result untouched.
type ScoringHook func(facts *device.Facts, candidate Strategy) Strategy

// Select is a pure function of facts, deterministic given the same
// input: it consults no clock, no randomness, no I/O. The rule ladder
// follows encryption first, then media_class, then secure-erase
// support.
func Select(facts *device.Facts) Strategy {
	return SelectWithScorer(facts, nil)
}

// SelectWithScorer is Select with an optional ScoringHook applied to the
// ladder's result before it's returned.
func SelectWithScorer(facts *device.Facts, hook ScoringHook) Strategy {
	strategy := rank(facts)
	if hook != nil {
		strategy = hook(facts, strategy)
	}
	return strategy
}

func rank(facts *device.Facts) Strategy {
	if facts.Encryption == device.EncryptionLUKS || facts.Encryption == device.EncryptionBitLocker {
		return StrategyCryptoEraseLUKS
	}

	switch facts.MediaClass {
	case device.MediaSSDNVMe:
		if facts.SupportsSecureErase {
			return StrategyNVMeSecureErase
		}
		return StrategyNVMeCryptoErase

	case device.MediaSSDSATA, device.MediaEMMC:
		if facts.SupportsSecureErase {
			return StrategyATASecureErase
		}
		return StrategySinglePassRandom

	case device.MediaHDD:
		if facts.SupportsSecureErase {
			return StrategyATASecureErase
		}
		return StrategyMultipassOverwrite

	case device.MediaUSB, device.MediaUnknown:
		return StrategySinglePassRandom

	default:
		return StrategySinglePassRandom
	}
}

// Fallback returns the degraded strategy the executor should retry with
// after current fails with errKind, or ("", false) if the failure is
// not recoverable. At most one fallback is ever attempted per operation
// (enforced by pkg/wipe, not here).
func Fallback(current Strategy, errKind ErrorKind) (Strategy, bool) {
	switch errKind {
	case ErrorUnsupported, ErrorNotSupportedByDevice:
		if current == StrategySinglePassRandom {
			return "", false
		}
		return StrategySinglePassRandom, true

	case ErrorTimeout:
		if current == StrategyMultipassOverwrite {
			return StrategySinglePassRandom, true
		}
		return "", false

	case ErrorIO:
		return "", false

	default:
		return "", false
	}
}
