package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"organograma/internal/directory/models"
	"organograma/internal/directory/service"
	"organograma/internal/policy"
	"organograma/pkg/platform/httputil"
	authmw "organograma/pkg/platform/middleware/auth"
	"organograma/pkg/requestcontext"
)

// Service is the directory surface the HTTP layer needs.
type Service interface {
	CreatePerson(ctx context.Context, f models.PersonFields) (*models.Person, error)
	GetPerson(ctx context.Context, id string) (*models.Person, error)
	ListPersons(ctx context.Context) ([]*models.Person, error)
	UpdatePerson(ctx context.Context, id string, f models.PersonFields) (*models.Person, error)
	DeletePerson(ctx context.Context, id string) error

	CreateSector(ctx context.Context, f service.SectorFields) (*models.Sector, error)
	GetSector(ctx context.Context, id string) (*models.Sector, error)
	ListSectors(ctx context.Context) ([]*models.Sector, error)
	UpdateSector(ctx context.Context, id string, f service.SectorFields) (*models.Sector, error)
	DeleteSector(ctx context.Context, id string) error

	CreateOrganization(ctx context.Context, f service.OrganizationFields) (*models.Organization, error)
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	ListOrganizations(ctx context.Context) ([]*models.Organization, error)
	UpdateOrganization(ctx context.Context, id string, f service.OrganizationFields) (*models.Organization, error)
	DeleteOrganization(ctx context.Context, id string) error

	Roster(ctx context.Context, q models.RosterQuery) ([]models.RosterEntry, error)
}

// Handler serves the personnel directory and the call roster.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts directory endpoints. The router is expected to already run
// RequireAuth.
func (h *Handler) Register(r chi.Router) {
	view := authmw.RequireCapability(policy.ViewDirectory, h.logger)
	managePersonnel := authmw.RequireCapability(policy.ManagePersonnel, h.logger)
	manageSectors := authmw.RequireCapability(policy.ManageSectors, h.logger)
	manageOrgs := authmw.RequireCapability(policy.ManageOrganizations, h.logger)

	r.Route("/api/persons", func(r chi.Router) {
		r.With(view).Get("/", h.HandleListPersons)
		r.With(view).Get("/{id}", h.HandleGetPerson)
		r.With(managePersonnel).Post("/", h.HandleCreatePerson)
		r.With(managePersonnel).Put("/{id}", h.HandleUpdatePerson)
		r.With(managePersonnel).Delete("/{id}", h.HandleDeletePerson)
	})
	r.Route("/api/sectors", func(r chi.Router) {
		r.With(view).Get("/", h.HandleListSectors)
		r.With(view).Get("/{id}", h.HandleGetSector)
		r.With(manageSectors).Post("/", h.HandleCreateSector)
		r.With(manageSectors).Put("/{id}", h.HandleUpdateSector)
		r.With(manageSectors).Delete("/{id}", h.HandleDeleteSector)
	})
	r.Route("/api/organizations", func(r chi.Router) {
		r.With(view).Get("/", h.HandleListOrganizations)
		r.With(view).Get("/{id}", h.HandleGetOrganization)
		r.With(manageOrgs).Post("/", h.HandleCreateOrganization)
		r.With(manageOrgs).Put("/{id}", h.HandleUpdateOrganization)
		r.With(manageOrgs).Delete("/{id}", h.HandleDeleteOrganization)
	})
	r.With(authmw.RequireCapability(policy.ViewRoster, h.logger)).Get("/api/roster", h.HandleRoster)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, args ...any) {
	attrs := append([]any{
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requestcontext.UserID(ctx),
		"error", err,
	}, args...)
	h.logger.WarnContext(ctx, msg, attrs...)
	httputil.WriteError(w, err)
}

// HandleListPersons handles GET /api/persons.
func (h *Handler) HandleListPersons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	persons, err := h.service.ListPersons(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to list persons", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, personListResponse{Persons: nonNil(persons), Total: len(persons)})
}

// HandleGetPerson handles GET /api/persons/{id}.
func (h *Handler) HandleGetPerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	p, err := h.service.GetPerson(ctx, id)
	if err != nil {
		h.fail(ctx, w, "failed to get person", err, "person_id", id)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleCreatePerson handles POST /api/persons.
func (h *Handler) HandleCreatePerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[PersonRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.CreatePerson(ctx, req.ToFields())
	if err != nil {
		h.fail(ctx, w, "failed to create person", err)
		return
	}

	h.logger.InfoContext(ctx, "person created",
		"request_id", requestID,
		"person_id", p.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, p)
}

// HandleUpdatePerson handles PUT /api/persons/{id}.
func (h *Handler) HandleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id := chi.URLParam(r, "id")

	req, ok := httputil.DecodeAndPrepare[PersonRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.UpdatePerson(ctx, id, req.ToFields())
	if err != nil {
		h.fail(ctx, w, "failed to update person", err, "person_id", id)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleDeletePerson handles DELETE /api/persons/{id}.
func (h *Handler) HandleDeletePerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := h.service.DeletePerson(ctx, id); err != nil {
		h.fail(ctx, w, "failed to delete person", err, "person_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListSectors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sectors, err := h.service.ListSectors(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to list sectors", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sectorListResponse{Sectors: nonNil(sectors), Total: len(sectors)})
}

func (h *Handler) HandleGetSector(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	sector, err := h.service.GetSector(ctx, id)
	if err != nil {
		h.fail(ctx, w, "failed to get sector", err, "sector_id", id)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sector)
}

func (h *Handler) HandleCreateSector(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[SectorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	sector, err := h.service.CreateSector(ctx, req.ToFields())
	if err != nil {
		h.fail(ctx, w, "failed to create sector", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sector)
}

func (h *Handler) HandleUpdateSector(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	req, ok := httputil.DecodeAndPrepare[SectorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	sector, err := h.service.UpdateSector(ctx, id, req.ToFields())
	if err != nil {
		h.fail(ctx, w, "failed to update sector", err, "sector_id", id)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sector)
}

func (h *Handler) HandleDeleteSector(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteSector(ctx, id); err != nil {
		h.fail(ctx, w, "failed to delete sector", err, "sector_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListOrganizations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgs, err := h.service.ListOrganizations(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to list organizations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, organizationListResponse{Organizations: nonNil(orgs), Total: len(orgs)})
}

func (h *Handler) HandleGetOrganization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	org, err := h.service.GetOrganization(ctx, id)
	if err != nil {
		h.fail(ctx, w, "failed to get organization", err, "organization_id", id)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, org)
}

func (h *Handler) HandleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[OrganizationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	org, err := h.service.CreateOrganization(ctx, req.ToFields())
	if err != nil {
		h.fail(ctx, w, "failed to create organization", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, org)
}

func (h *Handler) HandleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	req, ok := httputil.DecodeAndPrepare[OrganizationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	org, err := h.service.UpdateOrganization(ctx, id, req.ToFields())
	if err != nil {
		h.fail(ctx, w, "failed to update organization", err, "organization_id", id)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, org)
}

func (h *Handler) HandleDeleteOrganization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteOrganization(ctx, id); err != nil {
		h.fail(ctx, w, "failed to delete organization", err, "organization_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRoster handles GET /api/roster?sector_id=&q=.
func (h *Handler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := models.RosterQuery{
		SectorID: strings.TrimSpace(r.URL.Query().Get("sector_id")),
		Search:   strings.TrimSpace(r.URL.Query().Get("q")),
	}
	entries, err := h.service.Roster(ctx, q)
	if err != nil {
		h.fail(ctx, w, "failed to build roster", err, "sector_id", q.SectorID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rosterResponse{Entries: nonNil(entries), Total: len(entries)})
}
