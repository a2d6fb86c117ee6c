// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package ingest

import (
	"os"
	"sort"
	"strings"

	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
	"gopkg.in/yaml.v3"
)

// UnknownDepartment is assigned when no mapping folder matches a source
// path. The access policy fails closed on it: only the top role sees
// chunks labelled Unknown.
const UnknownDepartment = "Unknown"

// RoleMapping declares, per department, which source folders belong to it.
// It is loaded from a small YAML file maintained alongside the raw corpus:
//
//	roles:
//	  finance:
//	    folders: [finance, accounting]
//	  hr:
//	    folders: [hr, people]
type RoleMapping struct {
	Roles map[string]DepartmentRule `yaml:"roles"`
}

// DepartmentRule lists the folder substrings owned by one department.
type DepartmentRule struct {
	Folders []string `yaml:"folders"`
}

// LoadRoleMapping reads and parses the role-mapping YAML file.
func LoadRoleMapping(path string) (*RoleMapping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, dserr.Errorf(dserr.CodeIngestMappingReadFailure, "reading role mapping %s: %w", path, err)
	}

	var m RoleMapping
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, dserr.Errorf(dserr.CodeIngestMappingInvalid, "parsing role mapping %s: %w", path, err)
	}
	if len(m.Roles) == 0 {
		return nil, dserr.Errorf(dserr.CodeIngestMappingInvalid, "role mapping %s declares no roles", path)
	}

	return &m, nil
}

// InferDepartment assigns a department to a source path by folder
// membership. Matching is case-insensitive on forward-slashed paths;
// unmatched paths get UnknownDepartment.
func (m *RoleMapping) InferDepartment(sourcePath string) string {
	normalized := strings.ToLower(strings.ReplaceAll(sourcePath, "\\", "/"))

	// Departments are checked in sorted order so a path matching two
	// mappings resolves the same way on every run.
	departments := make([]string, 0, len(m.Roles))
	for department := range m.Roles {
		departments = append(departments, department)
	}
	sort.Strings(departments)

	for _, department := range departments {
		for _, folder := range m.Roles[department].Folders {
			if folder == "" {
				continue
			}
			if strings.Contains(normalized, strings.ToLower(folder)) {
				return department
			}
		}
	}

	return UnknownDepartment
}
