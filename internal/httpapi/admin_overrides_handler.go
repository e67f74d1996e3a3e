package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"adviser-allocation/internal/calendar"
	"adviser-allocation/internal/domain"
	"adviser-allocation/internal/store"
)

// OverridesStore is the store slice behind the overrides admin surface.
type OverridesStore interface {
	ListOverrides(ctx context.Context) ([]domain.CapacityOverride, error)
	GetOverride(ctx context.Context, id string) (*domain.CapacityOverride, error)
	CreateOverride(ctx context.Context, o *domain.CapacityOverride) (string, error)
	UpdateOverride(ctx context.Context, id string, o *domain.CapacityOverride) error
	DeleteOverride(ctx context.Context, id string) error
	ListAdvisers(ctx context.Context, filter store.AdviserFilter) ([]domain.Adviser, error)
}

// OverridesHandler serves CRUD over capacity overrides.
type OverridesHandler struct {
	store    OverridesStore
	validate *validator.Validate
	logger   *zap.Logger
}

func NewOverridesHandler(st OverridesStore, logger *zap.Logger) *OverridesHandler {
	return &OverridesHandler{
		store:    st,
		validate: validator.New(),
		logger:   logger,
	}
}

type overridePayload struct {
	AdviserEmail       string `json:"adviser_email" validate:"required,email"`
	EffectiveDate      string `json:"effective_date" validate:"required"`
	ClientLimitMonthly *int   `json:"client_limit_monthly" validate:"required"`
	PodType            string `json:"pod_type"`
	Notes              string `json:"notes"`
}

type overrideView struct {
	ID                 string `json:"id"`
	AdviserEmail       string `json:"adviser_email"`
	EffectiveDate      string `json:"effective_date"`
	ClientLimitMonthly int    `json:"client_limit_monthly"`
	PodType            string `json:"pod_type,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

func overrideToView(o domain.CapacityOverride) overrideView {
	return overrideView{
		ID:                 o.ID,
		AdviserEmail:       o.AdviserEmail,
		EffectiveDate:      calendar.FormatDate(o.EffectiveDate),
		ClientLimitMonthly: o.ClientLimitMonthly,
		PodType:            o.PodType,
		Notes:              o.Notes,
	}
}

// parseOverride validates the payload, including that the adviser exists.
func (h *OverridesHandler) parseOverride(ctx context.Context, p overridePayload) (*domain.CapacityOverride, map[string]string) {
	fields := map[string]string{}

	if err := h.validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			for _, fe := range verrs {
				fields[jsonFieldName(fe.Field())] = validationReason(fe)
			}
		} else {
			fields["body"] = "invalid payload"
		}
	}

	if p.ClientLimitMonthly != nil && *p.ClientLimitMonthly < 0 {
		fields["client_limit_monthly"] = "must be at least 0"
	}

	parsed, err := calendar.ParseDate(p.EffectiveDate)
	if p.EffectiveDate != "" && err != nil {
		fields["effective_date"] = "must be YYYY-MM-DD"
	}

	email := strings.ToLower(strings.TrimSpace(p.AdviserEmail))
	if email != "" && fields["adviser_email"] == "" {
		known, err := h.adviserKnown(ctx, email)
		if err != nil {
			fields["adviser_email"] = "could not verify adviser"
		} else if !known {
			fields["adviser_email"] = "no adviser with that email"
		}
	}

	if len(fields) > 0 {
		return nil, fields
	}
	return &domain.CapacityOverride{
		AdviserEmail:       email,
		EffectiveDate:      parsed,
		ClientLimitMonthly: *p.ClientLimitMonthly,
		PodType:            strings.TrimSpace(p.PodType),
		Notes:              strings.TrimSpace(p.Notes),
	}, nil
}

func (h *OverridesHandler) adviserKnown(ctx context.Context, email string) (bool, error) {
	advisers, err := h.store.ListAdvisers(ctx, store.AdviserFilter{IncludeNotTaking: true})
	if err != nil {
		return false, err
	}
	for _, a := range advisers {
		if strings.EqualFold(a.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

// HandleCollection serves GET (list) and POST (create) on
// /capacity_overrides.
func (h *OverridesHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		overrides, err := h.store.ListOverrides(r.Context())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		views := make([]overrideView, 0, len(overrides))
		for _, o := range overrides {
			views = append(views, overrideToView(o))
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(views), "capacity_overrides": views})

	case http.MethodPost:
		var payload overridePayload
		if err := readBodyJSON(r, &payload); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "InvalidInput", Detail: "malformed JSON body"})
			return
		}
		override, fields := h.parseOverride(r.Context(), payload)
		if fields != nil {
			writeValidationError(w, fields)
			return
		}
		id, err := h.store.CreateOverride(r.Context(), override)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		h.logger.Info("Capacity override created",
			zap.String("override_id", id),
			zap.String("adviser_email", override.AdviserEmail),
			zap.Int("client_limit_monthly", override.ClientLimitMonthly),
		)
		writeJSON(w, http.StatusCreated, overrideToView(*override))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// HandleItem serves GET, PUT and DELETE on /capacity_overrides/{id}.
func (h *OverridesHandler) HandleItem(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		override, err := h.store.GetOverride(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, overrideToView(*override))

	case http.MethodPut:
		var payload overridePayload
		if err := readBodyJSON(r, &payload); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "InvalidInput", Detail: "malformed JSON body"})
			return
		}
		override, fields := h.parseOverride(r.Context(), payload)
		if fields != nil {
			writeValidationError(w, fields)
			return
		}
		if err := h.store.UpdateOverride(r.Context(), id, override); err != nil {
			writeStoreError(w, err)
			return
		}
		override.ID = id
		h.logger.Info("Capacity override updated", zap.String("override_id", id))
		writeJSON(w, http.StatusOK, overrideToView(*override))

	case http.MethodDelete:
		if err := h.store.DeleteOverride(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		h.logger.Info("Capacity override deleted", zap.String("override_id", id))
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
