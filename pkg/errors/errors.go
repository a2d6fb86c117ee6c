// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"
	CodeConfigAlreadyExists        Code = "config.file.conflict"

	CodeCorpusChunkInvalid      Code = "corpus.chunk.invalid_input"
	CodeCorpusStreamReadFailure Code = "corpus.stream.read.failure"
	CodeCorpusFileNotFound      Code = "corpus.file.not_found"

	CodeIngestMappingReadFailure Code = "ingest.mapping.read.failure"
	CodeIngestMappingInvalid     Code = "ingest.mapping.invalid_format"

	CodeAccessRoleUnknown Code = "access.role.denied"

	CodeCacheLoadReadFailure  Code = "cache.load.read.failure"
	CodeCacheRecordInvalid    Code = "cache.record.invalid_format"
	CodeCacheDimensionInvalid Code = "cache.dimension.invalid_value"
	CodeCacheFlushFailure     Code = "cache.flush.write.failure"

	CodeStoreVectorDatabaseFailure  Code = "store.vector.database.failure"
	CodeStoreVectorDimensionInvalid Code = "store.vector.dimension.invalid_value"
	CodeStoreBackendUnsupported     Code = "store.backend.unsupported"
	CodeStoreEntryInvalid           Code = "store.entry.invalid_input"

	CodeProviderRequestInvalid  Code = "provider.request.invalid"
	CodeProviderResponseInvalid Code = "provider.response.invalid"
	CodeProviderUpstreamFailure Code = "provider.upstream.failure"
	CodeProviderNotFound        Code = "provider.registry.not_found"
	CodeProviderKeyInvalid      Code = "provider.key.unauthorized"
	CodeProviderKeyCheckFailed  Code = "provider.key.check.failure"

	CodeRetrievalEmbedFailure  Code = "retrieval.query.embed.failure"
	CodeRetrievalSearchFailure Code = "retrieval.index.search.failure"

	CodeAnswerGenerateFailure Code = "answer.generate.failure"

	CodeAuthCredentialsInvalid Code = "auth.credentials.unauthorized"
	CodeAuthTokenInvalid       Code = "auth.token.unauthorized"
	CodeAuthAdminRequired      Code = "auth.admin.forbidden"
	CodeAuthUserNotFound       Code = "auth.user.not_found"
	CodeAuthUserConflict       Code = "auth.user.conflict"
	CodeAuthUserInvalid        Code = "auth.user.invalid_input"
	CodeAuthDatabaseFailure    Code = "auth.database.failure"
	CodeAuthTokenSignFailure   Code = "auth.token.sign.failure"

	CodeAuditWriteFailure Code = "audit.write.failure"

	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretInvalidInput   Code = "secret.invalid_input"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretListFailure    Code = "secret.list.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLIInputInvalid     Code = "cli.input.invalid"
	CodeCLISetupFailure     Code = "cli.setup.failure"
	CodeCLIRequestFailure   Code = "cli.request.failure"
	CodeCLIServerNotRunning Code = "cli.server.not_running"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldChunkID(value string) Attr {
	return Field("chunk_id", value)
}

func FieldRole(value string) Attr {
	return Field("role", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldUsername(value string) Attr {
	return Field("username", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUnauthorized(err error) bool {
	r := reason(CodeOf(err))
	return r == "unauthorized" || r == "forbidden" || r == "denied"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnauthorized(err):
		if reason(CodeOf(err)) == "forbidden" || reason(CodeOf(err)) == "denied" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
