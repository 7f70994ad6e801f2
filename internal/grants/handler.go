package grants

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/fam-platform/fam-access/internal/apps"
	"github.com/fam-platform/fam-access/internal/guard"
	"github.com/fam-platform/fam-access/internal/platform/httpx"
	"github.com/fam-platform/fam-access/internal/roles"
	"github.com/fam-platform/fam-access/internal/scopes"
	"github.com/fam-platform/fam-access/internal/shared"
	"github.com/fam-platform/fam-access/internal/users"
)

// Handler manages privilege endpoints.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	aggregator *Aggregator
	enricher   *scopes.Enricher
	validate   *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, aggregator *Aggregator, enricher *scopes.Enricher) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		aggregator: aggregator,
		enricher:   enricher,
		validate:   validator.New(),
	}
}

// MountRoutes registers privilege routes. The router installs the
// authentication middleware above this group.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/admin-grants/{userId}", h.handleAccessGrants)
	r.Get("/access-control-privileges", h.handleListPrivileges)

	limiter := httprate.Limit(30, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Post("/delegated-admin-privileges", h.handleCreateDelegatedAdmins)
		gr.Delete("/delegated-admin-privileges/{id}", h.handleRevokeDelegatedAdmin)
		gr.Post("/role-assignments", h.handleGrantUserRole)
		gr.Delete("/role-assignments/{id}", h.handleRevokeUserRole)
		gr.Post("/application-admins", h.handleGrantAppAdmin)
		gr.Delete("/application-admins/{id}", h.handleRevokeAppAdmin)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if principal, ok := guard.PrincipalFromContext(r.Context()); ok {
		return "principal:" + string(principal.Identity.Type) + ":" + principal.Identity.Name, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

func (h *Handler) handleAccessGrants(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "userId must be numeric")
		return
	}
	summary, err := h.aggregator.ComputeAccessGrants(r.Context(), userID)
	if err != nil {
		h.logger.Error("compute access grants", slog.Int64("userId", userID), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	h.enricher.Enrich(r.Context(), summary)
	httpx.JSON(w, http.StatusOK, summary)
}

type createDelegatedAdminRequest struct {
	Username    string   `json:"username" validate:"required"`
	UserType    string   `json:"userType" validate:"omitempty,oneof=USER GROUP"`
	DisplayName string   `json:"displayName"`
	RoleID      int64    `json:"roleId" validate:"required"`
	ResourceIDs []string `json:"resourceIds" validate:"omitempty,dive,len=8,numeric"`
}

func (h *Handler) handleCreateDelegatedAdmins(w http.ResponseWriter, r *http.Request) {
	principal, ok := guard.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req createDelegatedAdminRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	results, err := h.service.CreateDelegatedAdminPrivileges(r.Context(), principal, CreateDelegatedAdminInput{
		TargetType:        users.IdentityType(req.UserType),
		TargetName:        req.Username,
		TargetDisplayName: req.DisplayName,
		RoleID:            req.RoleID,
		ResourceIDs:       req.ResourceIDs,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"results": results})
}

func (h *Handler) handleRevokeDelegatedAdmin(w http.ResponseWriter, r *http.Request) {
	h.revoke(w, r, h.service.RevokeDelegatedAdminPrivilege)
}

type roleAssignmentRequest struct {
	Username    string `json:"username" validate:"required"`
	UserType    string `json:"userType" validate:"omitempty,oneof=USER GROUP"`
	DisplayName string `json:"displayName"`
	RoleID      int64  `json:"roleId" validate:"required"`
	ResourceID  string `json:"resourceId" validate:"omitempty,len=8,numeric"`
}

func (h *Handler) handleGrantUserRole(w http.ResponseWriter, r *http.Request) {
	principal, ok := guard.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req roleAssignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	assignment, err := h.service.GrantUserRole(r.Context(), principal, RoleAssignmentInput{
		TargetType:        users.IdentityType(req.UserType),
		TargetName:        req.Username,
		TargetDisplayName: req.DisplayName,
		RoleID:            req.RoleID,
		ResourceID:        req.ResourceID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, assignment)
}

func (h *Handler) handleRevokeUserRole(w http.ResponseWriter, r *http.Request) {
	h.revoke(w, r, h.service.RevokeUserRoleAssignment)
}

type appAdminRequest struct {
	Username      string `json:"username" validate:"required"`
	UserType      string `json:"userType" validate:"omitempty,oneof=USER GROUP"`
	DisplayName   string `json:"displayName"`
	ApplicationID int64  `json:"applicationId" validate:"required"`
}

func (h *Handler) handleGrantAppAdmin(w http.ResponseWriter, r *http.Request) {
	principal, ok := guard.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req appAdminRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	grant, err := h.service.GrantApplicationAdmin(r.Context(), principal, AppAdminInput{
		TargetType:        users.IdentityType(req.UserType),
		TargetName:        req.Username,
		TargetDisplayName: req.DisplayName,
		ApplicationID:     req.ApplicationID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grant)
}

func (h *Handler) handleRevokeAppAdmin(w http.ResponseWriter, r *http.Request) {
	h.revoke(w, r, h.service.RevokeApplicationAdmin)
}

func (h *Handler) handleListPrivileges(w http.ResponseWriter, r *http.Request) {
	principal, ok := guard.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	applicationID, err := strconv.ParseInt(r.URL.Query().Get("applicationId"), 10, 64)
	if err != nil || applicationID <= 0 {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "applicationId is required")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	result, err := h.service.ListAccessControlPrivileges(r.Context(), principal, applicationID, shared.PageRequest{
		Page:  page,
		Size:  size,
		Sort:  r.URL.Query().Get("sort"),
		Order: r.URL.Query().Get("order"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.enricher.Enrich(r.Context(), result)
	httpx.JSON(w, http.StatusOK, result)
}

type revokeFunc func(ctx context.Context, principal guard.Principal, id int64) error

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request, fn revokeFunc) {
	principal, ok := guard.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "id must be numeric")
		return
	}
	if err := fn(r.Context(), principal, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, roles.ErrNotFound),
		errors.Is(err, apps.ErrNotFound), errors.Is(err, users.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, scopes.ErrInvalidResourceID),
		errors.Is(err, roles.ErrInvalidParentRole):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
