// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coldforge/veriwipe/pkg/device"
)

func TestSelect(t *testing.T) {
	t.Run("LUKSTakesPriorityOverMediaClass", func(t *testing.T) {
		facts := &device.Facts{
			Encryption:          device.EncryptionLUKS,
			MediaClass:          device.MediaHDD,
			SupportsSecureErase: true,
		}
		assert.Equal(t, StrategyCryptoEraseLUKS, Select(facts))
	})

	t.Run("NVMeWithSecureEraseSupport", func(t *testing.T) {
		facts := &device.Facts{MediaClass: device.MediaSSDNVMe, SupportsSecureErase: true}
		assert.Equal(t, StrategyNVMeSecureErase, Select(facts))
	})

	t.Run("NVMeWithoutSecureEraseSupport", func(t *testing.T) {
		facts := &device.Facts{MediaClass: device.MediaSSDNVMe, SupportsSecureErase: false}
		assert.Equal(t, StrategyNVMeCryptoErase, Select(facts))
	})

	t.Run("SATASSDWithSecureErase", func(t *testing.T) {
		facts := &device.Facts{MediaClass: device.MediaSSDSATA, SupportsSecureErase: true}
		assert.Equal(t, StrategyATASecureErase, Select(facts))
	})

	t.Run("SATASSDWithoutSecureErase", func(t *testing.T) {
		facts := &device.Facts{MediaClass: device.MediaSSDSATA, SupportsSecureErase: false}
		assert.Equal(t, StrategySinglePassRandom, Select(facts))
	})

	t.Run("EMMCFollowsSATARules", func(t *testing.T) {
		facts := &device.Facts{MediaClass: device.MediaEMMC, SupportsSecureErase: true}
		assert.Equal(t, StrategyATASecureErase, Select(facts))
	})

	t.Run("HDDWithSecureErase", func(t *testing.T) {
		facts := &device.Facts{MediaClass: device.MediaHDD, SupportsSecureErase: true}
		assert.Equal(t, StrategyATASecureErase, Select(facts))
	})

	t.Run("HDDWithoutSecureErase", func(t *testing.T) {
		facts := &device.Facts{MediaClass: device.MediaHDD, SupportsSecureErase: false}
		assert.Equal(t, StrategyMultipassOverwrite, Select(facts))
	})

	t.Run("USBAlwaysSinglePass", func(t *testing.T) {
		facts := &device.Facts{MediaClass: device.MediaUSB, SupportsSecureErase: true}
		assert.Equal(t, StrategySinglePassRandom, Select(facts))
	})

	t.Run("UnknownMediaClassFallsBackToSinglePass", func(t *testing.T) {
		facts := &device.Facts{MediaClass: device.MediaUnknown}
		assert.Equal(t, StrategySinglePassRandom, Select(facts))
	})

	t.Run("DeterministicForIdenticalFacts", func(t *testing.T) {
		facts := &device.Facts{MediaClass: device.MediaHDD, SupportsSecureErase: false}
		first := Select(facts)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, Select(facts))
		}
	})

	t.Run("ScoringHookOverridesLadder", func(t *testing.T) {
		facts := &device.Facts{MediaClass: device.MediaHDD, SupportsSecureErase: true}
		hook := func(_ *device.Facts, _ Strategy) Strategy {
			return StrategyMultipassOverwrite
		}
		assert.Equal(t, StrategyMultipassOverwrite, SelectWithScorer(facts, hook))
	})
}

func TestFallback(t *testing.T) {
	t.Run("UnsupportedDegradesToSinglePass", func(t *testing.T) {
		next, ok := Fallback(StrategyATASecureErase, ErrorUnsupported)
		assert.True(t, ok)
		assert.Equal(t, StrategySinglePassRandom, next)
	})

	t.Run("NotSupportedByDeviceDegradesToSinglePass", func(t *testing.T) {
		next, ok := Fallback(StrategyNVMeSecureErase, ErrorNotSupportedByDevice)
		assert.True(t, ok)
		assert.Equal(t, StrategySinglePassRandom, next)
	})

	t.Run("AlreadySinglePassHasNoFurtherFallback", func(t *testing.T) {
		_, ok := Fallback(StrategySinglePassRandom, ErrorUnsupported)
		assert.False(t, ok)
	})

	t.Run("TimeoutDegradesMultipassToSinglePass", func(t *testing.T) {
		next, ok := Fallback(StrategyMultipassOverwrite, ErrorTimeout)
		assert.True(t, ok)
		assert.Equal(t, StrategySinglePassRandom, next)
	})

	t.Run("TimeoutOnNonMultipassIsNotRecoverable", func(t *testing.T) {
		_, ok := Fallback(StrategyATASecureErase, ErrorTimeout)
		assert.False(t, ok)
	})

	t.Run("IOErrorIsNeverRecoverable", func(t *testing.T) {
		_, ok := Fallback(StrategyATASecureErase, ErrorIO)
		assert.False(t, ok)
	})
}
