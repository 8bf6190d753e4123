// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// Plugin dependency status flags.
type PluginStatus uint32

const (
	// PluginStatusOK marks a dependency resolved at a sufficient version.
	PluginStatusOK PluginStatus = 0

	// PluginStatusMissing marks a dependency absent from the host registry.
	PluginStatusMissing PluginStatus = 0x1

	// PluginStatusVersionTooOld marks a dependency resolved below the
	// required version.
	PluginStatusVersionTooOld PluginStatus = 0x2
)

// String returns the status name.
func (s PluginStatus) String() string {
	switch s {
	case PluginStatusOK:
		return "OK"
	case PluginStatusMissing:
		return "MISSING"
	case PluginStatusVersionTooOld:
		return "VERSION_TOO_OLD"
	}
	return "UNKNOWN"
}

// PluginDiagnostic records the resolution of one declared plugin
// dependency against the host's plugin registry.
type PluginDiagnostic struct {
	RequiredGUID    CKGUID       `json:"required_guid"`
	RequiredVersion uint32       `json:"required_version"`
	Category        uint32       `json:"category"`
	ResolvedName    string       `json:"resolved_name,omitempty"`
	ResolvedVersion uint32       `json:"resolved_version,omitempty"`
	Status          PluginStatus `json:"status"`
}

// HookDiagnostic records a non-fatal manager hook failure the pipeline
// continued past.
type HookDiagnostic struct {
	Manager string `json:"manager"`
	Hook    string `json:"hook"`
	Err     string `json:"error"`
}

// checkPluginDeps classifies every declared dependency against the host
// registry.
func checkPluginDeps(deps []PluginDep, reg *PluginRegistry) []PluginDiagnostic {
	var out []PluginDiagnostic
	for _, dep := range deps {
		for _, p := range dep.Plugins {
			diag := PluginDiagnostic{
				RequiredGUID:    p.GUID,
				RequiredVersion: p.Version,
				Category:        dep.Category,
			}
			if reg == nil {
				diag.Status = PluginStatusMissing
				out = append(out, diag)
				continue
			}
			info, ok := reg.Find(p.GUID)
			switch {
			case !ok:
				diag.Status = PluginStatusMissing
			case info.Version < p.Version:
				diag.Status = PluginStatusVersionTooOld
				diag.ResolvedName = info.Name
				diag.ResolvedVersion = info.Version
			default:
				diag.Status = PluginStatusOK
				diag.ResolvedName = info.Name
				diag.ResolvedVersion = info.Version
			}
			out = append(out, diag)
		}
	}
	return out
}
