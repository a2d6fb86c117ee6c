// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

// Package secrets keeps provider API keys out of config files. Values may be
// stored in the OS keyring and referenced from config as keyring:// URIs.
package secrets

// Store is secure secret storage. Implementations may use OS keyrings,
// encrypted files, or other backends.
type Store interface {
	// Store saves a secret value under the given service and key.
	Store(service, key, value string) error

	// Retrieve fetches the secret for the given service and key. A missing
	// key yields CodeSecretNotFound.
	Retrieve(service, key string) (string, error)

	// Delete removes the secret for the given service and key. A missing
	// key yields CodeSecretNotFound.
	Delete(service, key string) error

	// List returns all key names stored under the given service.
	List(service string) ([]string, error)
}

// Service is the keyring service name under which docsentry stores its
// secrets by default.
const Service = "docsentry"
