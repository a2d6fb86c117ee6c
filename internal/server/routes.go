// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/docsentry-dev/docsentry/internal/access"
	"github.com/docsentry-dev/docsentry/internal/auth"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// RegisterServices sets the handler dependencies, installs the auth
// middleware and registers all routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.api.UseMiddleware(s.authMiddleware)
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/login",
		Summary:     "Exchange credentials for a bearer token",
		Tags:        []string{"auth"},
		Metadata:    map[string]any{metadataPublic: true},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "whoami",
		Method:      http.MethodGet,
		Path:        "/api/v1/me",
		Summary:     "Describe the authenticated user",
		Tags:        []string{"auth"},
	}, s.handleWhoAmI)

	huma.Register(s.api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/api/v1/chat",
		Summary:     "Ask a question over the document corpus",
		Tags:        []string{"chat"},
	}, s.handleChat)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/api/v1/documents",
		Summary:     "List documents accessible to the caller's role",
		Tags:        []string{"documents"},
	}, s.handleListDocuments)

	huma.Register(s.api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Index and account statistics",
		Tags:        []string{"system"},
	}, s.handleStatus)

	// Account administration, restricted to the top role.
	huma.Register(s.api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/users",
		Summary:     "List user accounts",
		Tags:        []string{"admin"},
	}, s.handleListUsers)

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/api/v1/admin/users",
		Summary:       "Create a user account",
		Tags:          []string{"admin"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPut,
		Path:        "/api/v1/admin/users/{username}",
		Summary:     "Change a user's role or password",
		Tags:        []string{"admin"},
	}, s.handleUpdateUser)

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-user",
		Method:        http.MethodDelete,
		Path:          "/api/v1/admin/users/{username}",
		Summary:       "Delete a user account",
		Tags:          []string{"admin"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteUser)
}

// --- Request/Response types for huma ---

type loginInput struct {
	Body struct {
		Username string `json:"username" doc:"Account name"`
		Password string `json:"password" doc:"Account password"`
	}
}

type loginOutput struct {
	Body struct {
		Token string `json:"token" doc:"Bearer token for subsequent requests"`
		Role  string `json:"role" doc:"Role baked into the token"`
	}
}

type whoAmIOutput struct {
	Body struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
}

type chatInput struct {
	Body struct {
		Query string `json:"query" doc:"Natural-language question"`
	}
}

type chatOutput struct {
	Body struct {
		Answer     string   `json:"answer"`
		Confidence float64  `json:"confidence"`
		Sources    []string `json:"sources"`
		Role       string   `json:"role" doc:"Role the retrieval was scoped to"`
	}
}

// DocumentGroup lists one department's documents visible to the caller.
type DocumentGroup struct {
	Department string   `json:"department"`
	Documents  []string `json:"documents"`
}

type listDocumentsOutput struct {
	Body struct {
		Groups []DocumentGroup `json:"groups"`
	}
}

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
		Chunks int    `json:"chunks" doc:"Number of indexed chunks"`
		Users  int    `json:"users" doc:"Number of user accounts"`
	}
}

type listUsersOutput struct {
	Body struct {
		Users []auth.User `json:"users"`
	}
}

type createUserInput struct {
	Body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
}

type userOutput struct {
	Body auth.User
}

type updateUserInput struct {
	Username string `path:"username"`
	Body     struct {
		Role     string `json:"role,omitempty" doc:"New role, unchanged when empty"`
		Password string `json:"password,omitempty" doc:"New password, unchanged when empty"`
	}
}

type deleteUserInput struct {
	Username string `path:"username"`
}

// --- Handlers ---

func (s *Server) handleLogin(ctx context.Context, input *loginInput) (*loginOutput, error) {
	user, err := s.services.Users.Authenticate(ctx, input.Body.Username, input.Body.Password)
	if err != nil {
		if dserr.HasCode(err, dserr.CodeAuthCredentialsInvalid) {
			return nil, huma.Error401Unauthorized("invalid credentials")
		}
		return nil, serviceError(err, "authenticating")
	}

	token, err := s.services.Tokens.Issue(user)
	if err != nil {
		return nil, serviceError(err, "issuing token")
	}

	out := &loginOutput{}
	out.Body.Token = token
	out.Body.Role = user.Role
	return out, nil
}

func (s *Server) handleWhoAmI(ctx context.Context, _ *struct{}) (*whoAmIOutput, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("missing bearer token")
	}

	out := &whoAmIOutput{}
	out.Body.Username = claims.Subject
	out.Body.Role = claims.Role
	return out, nil
}

func (s *Server) handleChat(ctx context.Context, input *chatInput) (*chatOutput, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("missing bearer token")
	}

	ans, err := s.services.Pipeline.RetrieveAndAnswer(ctx, input.Body.Query, claims.Role)
	if err != nil {
		return nil, serviceError(err, "answering question")
	}

	if s.services.Audit != nil {
		if err := s.services.Audit.Record(claims.Subject, claims.Role, input.Body.Query, ans.Confidence); err != nil {
			// The answer was produced; a full audit log must not eat it.
			slog.Warn("writing audit entry", "user", claims.Subject, "error", err)
		}
	}

	out := &chatOutput{}
	out.Body.Answer = ans.Text
	out.Body.Confidence = ans.Confidence
	out.Body.Sources = ans.Sources
	if out.Body.Sources == nil {
		out.Body.Sources = []string{}
	}
	out.Body.Role = claims.Role
	return out, nil
}

func (s *Server) handleListDocuments(ctx context.Context, _ *struct{}) (*listDocumentsOutput, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("missing bearer token")
	}

	entries, err := s.services.Index.All(ctx)
	if err != nil {
		return nil, serviceError(err, "listing index")
	}

	byDept := map[string]map[string]bool{}
	for _, e := range entries {
		if !access.RoleMatches(claims.Role, e.Metadata.AccessibleRoles) {
			continue
		}
		dept := e.Metadata.Department
		if byDept[dept] == nil {
			byDept[dept] = map[string]bool{}
		}
		byDept[dept][e.Metadata.SourceDocument] = true
	}

	out := &listDocumentsOutput{}
	out.Body.Groups = make([]DocumentGroup, 0, len(byDept))
	for dept, docs := range byDept {
		group := DocumentGroup{Department: dept, Documents: make([]string, 0, len(docs))}
		for doc := range docs {
			group.Documents = append(group.Documents, doc)
		}
		sort.Strings(group.Documents)
		out.Body.Groups = append(out.Body.Groups, group)
	}
	sort.Slice(out.Body.Groups, func(i, j int) bool {
		return out.Body.Groups[i].Department < out.Body.Groups[j].Department
	})
	return out, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	if _, ok := claimsFromContext(ctx); !ok {
		return nil, huma.Error401Unauthorized("missing bearer token")
	}

	chunks, err := s.services.Index.Count(ctx)
	if err != nil {
		return nil, serviceError(err, "counting chunks")
	}
	users, err := s.services.Users.List(ctx)
	if err != nil {
		return nil, serviceError(err, "listing users")
	}

	out := &statusOutput{}
	out.Body.Status = "ok"
	out.Body.Chunks = chunks
	out.Body.Users = len(users)
	return out, nil
}

func (s *Server) handleListUsers(ctx context.Context, _ *struct{}) (*listUsersOutput, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	users, err := s.services.Users.List(ctx)
	if err != nil {
		return nil, serviceError(err, "listing users")
	}

	out := &listUsersOutput{}
	out.Body.Users = users
	return out, nil
}

func (s *Server) handleCreateUser(ctx context.Context, input *createUserInput) (*userOutput, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if !s.services.Policy.IsKnownRole(input.Body.Role) {
		return nil, huma.Error400BadRequest("unknown role: " + input.Body.Role)
	}

	if err := s.services.Users.Create(ctx, input.Body.Username, input.Body.Password, input.Body.Role); err != nil {
		return nil, serviceError(err, "creating user")
	}

	return &userOutput{Body: auth.User{
		Username: strings.TrimSpace(input.Body.Username),
		Role:     input.Body.Role,
	}}, nil
}

func (s *Server) handleUpdateUser(ctx context.Context, input *updateUserInput) (*userOutput, error) {
	claims, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if input.Body.Role == "" && input.Body.Password == "" {
		return nil, huma.Error400BadRequest("nothing to update")
	}

	if input.Body.Role != "" {
		if !s.services.Policy.IsKnownRole(input.Body.Role) {
			return nil, huma.Error400BadRequest("unknown role: " + input.Body.Role)
		}
		// Demoting the last administrator would lock admin out entirely.
		topRole := s.services.Policy.TopRole()
		if !strings.EqualFold(input.Body.Role, topRole) {
			if err := s.guardLastAdmin(ctx, input.Username, claims); err != nil {
				return nil, err
			}
		}
		if err := s.services.Users.SetRole(ctx, input.Username, input.Body.Role); err != nil {
			return nil, serviceError(err, "updating role")
		}
	}

	if input.Body.Password != "" {
		if err := s.services.Users.SetPassword(ctx, input.Username, input.Body.Password); err != nil {
			return nil, serviceError(err, "updating password")
		}
	}

	user, err := s.services.Users.Get(ctx, input.Username)
	if err != nil {
		return nil, serviceError(err, "loading user")
	}
	return &userOutput{Body: *user}, nil
}

func (s *Server) handleDeleteUser(ctx context.Context, input *deleteUserInput) (*struct{}, error) {
	claims, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(input.Username, claims.Subject) {
		return nil, huma.Error409Conflict("cannot delete your own account")
	}
	if err := s.guardLastAdmin(ctx, input.Username, claims); err != nil {
		return nil, err
	}

	if err := s.services.Users.Delete(ctx, input.Username); err != nil {
		return nil, serviceError(err, "deleting user")
	}
	return nil, nil
}

// guardLastAdmin rejects removing or demoting the only remaining top-role
// account.
func (s *Server) guardLastAdmin(ctx context.Context, username string, _ *auth.Claims) error {
	target, err := s.services.Users.Get(ctx, username)
	if err != nil {
		return serviceError(err, "loading user")
	}

	topRole := s.services.Policy.TopRole()
	if !strings.EqualFold(target.Role, topRole) {
		return nil
	}

	admins, err := s.services.Users.CountByRole(ctx, target.Role)
	if err != nil {
		return serviceError(err, "counting administrators")
	}
	if admins <= 1 {
		return huma.Error409Conflict("cannot remove the last " + topRole + " account")
	}
	return nil
}

// serviceError converts a coded error into a huma status error, preserving
// the HTTP status the code maps to.
func serviceError(err error, msg string) error {
	status := dserr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error(msg, "error", err)
		return huma.Error500InternalServerError(msg)
	}
	return huma.NewError(status, err.Error())
}
