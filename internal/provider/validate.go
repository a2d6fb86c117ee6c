// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package provider

import (
	"context"
	"io"
	"net/http"

	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// validationRequest targets a cheap authenticated endpoint per provider,
// used only to check that a key works.
func validationRequest(ctx context.Context, name ProviderName, key string) (*http.Request, error) {
	var (
		url     string
		headers map[string]string
	)

	switch name {
	case ProviderAnthropic:
		url = "https://api.anthropic.com/v1/models"
		headers = map[string]string{
			"x-api-key":         key,
			"anthropic-version": "2023-06-01",
		}
	case ProviderOpenAI:
		url = "https://api.openai.com/v1/models"
		headers = map[string]string{
			"Authorization": "Bearer " + key,
		}
	case ProviderGoogle:
		// Google's Generative Language API authenticates via query parameter.
		url = "https://generativelanguage.googleapis.com/v1/models?key=" + key
	default:
		return nil, dserr.Errorf(dserr.CodeProviderKeyInvalid, "unknown provider: %s", name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, dserr.Errorf(dserr.CodeProviderKeyCheckFailed, "building validation request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// ValidateKey checks an API key against the provider's model-listing
// endpoint. A 401/403 means the key is bad; other failures mean the check
// itself could not complete.
func ValidateKey(ctx context.Context, client *http.Client, name ProviderName, key string) error {
	return validateKey(ctx, client, name, key, "")
}

// ValidateKeyWithURL is a testable ValidateKey that overrides the endpoint
// URL when url is non-empty.
func ValidateKeyWithURL(ctx context.Context, client *http.Client, name ProviderName, key, url string) error {
	return validateKey(ctx, client, name, key, url)
}

func validateKey(ctx context.Context, client *http.Client, name ProviderName, key, urlOverride string) error {
	req, err := validationRequest(ctx, name, key)
	if err != nil {
		return err
	}
	if urlOverride != "" {
		override, err := http.NewRequestWithContext(ctx, http.MethodGet, urlOverride, nil)
		if err != nil {
			return dserr.Errorf(dserr.CodeProviderKeyCheckFailed, "building validation request: %w", err)
		}
		override.Header = req.Header
		req = override
	}

	resp, err := client.Do(req)
	if err != nil {
		return dserr.Errorf(dserr.CodeProviderKeyCheckFailed, "validating %s key: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return dserr.Errorf(dserr.CodeProviderKeyInvalid, "invalid %s API key (HTTP %d)", name, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return dserr.Errorf(dserr.CodeProviderKeyCheckFailed, "%s validation failed (HTTP %d)", name, resp.StatusCode)
	}
	return nil
}
