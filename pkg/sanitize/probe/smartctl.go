// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package probe

import "encoding/json"

// smartctlReport is the subset of `smartctl --json --all` output the
// prober consumes. Field names mirror smartmontools' documented JSON
// schema; everything else in the payload is ignored.
type smartctlReport struct {
	Device struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		Protocol string `json:"protocol"`
	} `json:"device"`

	ModelName      string `json:"model_name"`
	SerialNumber   string `json:"serial_number"`
	FirmwareVersion string `json:"firmware_version"`

	RotationRate int `json:"rotation_rate"`

	LogicalBlockSize  int `json:"logical_block_size"`
	PhysicalBlockSize int `json:"physical_block_size"`

	UserCapacity struct {
		Bytes int64 `json:"bytes"`
	} `json:"user_capacity"`

	ATASecurity struct {
		Supported bool `json:"supported"`
		Enabled   bool `json:"enabled"`
		Locked    bool `json:"locked"`
		Frozen    bool `json:"frozen"`
		EnhancedEraseSupported bool `json:"enhanced_erase_supported"`
	} `json:"ata_security"`

	NVMeNamespaces []struct {
		Size struct {
			Bytes int64 `json:"bytes"`
		} `json:"size"`
	} `json:"nvme_namespaces"`

	NVMeSanitizeLog struct {
		SanitizeCommandsSupported struct {
			BlockErase    bool `json:"block_erase"`
			CryptoErase   bool `json:"crypto_erase"`
			Overwrite     bool `json:"overwrite"`
		} `json:"sanitize_commands_supported"`
	} `json:"nvme_sanitize_device_capabilities"`

	SelfEncryptingDrive struct {
		Supported bool `json:"supported"`
	} `json:"self_encrypting_drive"`

	SmartStatus struct {
		Passed bool `json:"passed"`
	} `json:"smart_status"`
}

func parseSmartctlReport(data []byte) (*smartctlReport, error) {
	var r smartctlReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
