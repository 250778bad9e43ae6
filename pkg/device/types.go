// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package device probes block devices and produces the DeviceFacts the
// method selector and wipe executor act on.
package device

// MediaClass classifies the physical storage technology of a device.
type MediaClass string

const (
	MediaHDD     MediaClass = "hdd"
	MediaSSDSATA MediaClass = "ssd_sata"
	MediaSSDNVMe MediaClass = "ssd_nvme"
	MediaEMMC    MediaClass = "emmc"
	MediaUSB     MediaClass = "usb"
	MediaUnknown MediaClass = "unknown"
)

// Transport identifies the bus a device is attached through.
type Transport string

const (
	TransportSATA    Transport = "sata"
	TransportNVMe    Transport = "nvme"
	TransportUSB     Transport = "usb"
	TransportMMC     Transport = "mmc"
	TransportUnknown Transport = "unknown"
)

// Encryption identifies a recognized on-device encryption container.
type Encryption string

const (
	EncryptionNone      Encryption = "none"
	EncryptionLUKS      Encryption = "luks"
	EncryptionBitLocker Encryption = "bitlocker"
	EncryptionUnknown   Encryption = "unknown"
)

// Facts is the result of probing one block device. DeviceID addresses the
// device only; it is hashed, never stored verbatim, when projected into a
// certificate (see pkg/certificate).
type Facts struct {
	DeviceID            string            `json:"device_id"`
	MediaClass          MediaClass        `json:"media_class"`
	Model               string            `json:"model"`
	Serial              string            `json:"serial"`
	CapacityBytes       int64             `json:"capacity_bytes"`
	Transport           Transport         `json:"transport"`
	Encryption          Encryption        `json:"encryption"`
	HiddenAreaPresent   bool              `json:"hidden_area_present"`
	SupportsSecureErase bool              `json:"supports_secure_erase"`

	// RawProbeBlobs carries opaque per-source outputs for diagnostics;
	// the selector does not read them, and they are never published in
	// a certificate.
	RawProbeBlobs map[string]string `json:"-"`
}

// Valid reports whether the facts describe a device acceptable for wiping.
// media_class == unknown is permitted; it simply downgrades the strategies
// offered by the selector.
func (f *Facts) Valid() bool {
	return f.CapacityBytes > 0
}
