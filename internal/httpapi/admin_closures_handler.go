package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"adviser-allocation/internal/calendar"
	"adviser-allocation/internal/domain"
)

const maxTagLength = 32

// ClosuresStore is the store slice behind the closures admin surface.
type ClosuresStore interface {
	ListClosures(ctx context.Context) ([]domain.OfficeClosure, error)
	GetClosure(ctx context.Context, id string) (*domain.OfficeClosure, error)
	CreateClosure(ctx context.Context, c *domain.OfficeClosure) (string, error)
	UpdateClosure(ctx context.Context, id string, c *domain.OfficeClosure) error
	DeleteClosure(ctx context.Context, id string) error
}

// ClosuresHandler serves CRUD over office closures.
type ClosuresHandler struct {
	store    ClosuresStore
	validate *validator.Validate
	logger   *zap.Logger
}

func NewClosuresHandler(st ClosuresStore, logger *zap.Logger) *ClosuresHandler {
	return &ClosuresHandler{
		store:    st,
		validate: validator.New(),
		logger:   logger,
	}
}

// closurePayload is the admin write body. EndDate defaults to StartDate
// for single-day closures.
type closurePayload struct {
	StartDate    string   `json:"start_date" validate:"required"`
	EndDate      string   `json:"end_date"`
	Description  string   `json:"description" validate:"required"`
	Tags         []string `json:"tags"`
	AdviserEmail string   `json:"adviser_email" validate:"omitempty,email"`
}

type closureView struct {
	ID           string   `json:"id"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	AdviserEmail string   `json:"adviser_email,omitempty"`
	Scope        string   `json:"scope"`
}

func closureToView(c domain.OfficeClosure) closureView {
	scope := "global"
	if !c.Global() {
		scope = "adviser"
	}
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return closureView{
		ID:           c.ID,
		StartDate:    calendar.FormatDate(c.StartDate),
		EndDate:      calendar.FormatDate(c.EndDate),
		Description:  c.Description,
		Tags:         tags,
		AdviserEmail: c.AdviserEmail,
		Scope:        scope,
	}
}

// parseClosure validates the payload and builds the domain record.
// Returned field map is non-empty on validation failure.
func (h *ClosuresHandler) parseClosure(p closurePayload) (*domain.OfficeClosure, map[string]string) {
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

	var start, end time.Time
	if p.StartDate != "" {
		var err error
		if start, err = calendar.ParseDate(p.StartDate); err != nil {
			fields["start_date"] = "must be YYYY-MM-DD"
		}
	}
	if p.EndDate == "" {
		end = start
	} else {
		var err error
		if end, err = calendar.ParseDate(p.EndDate); err != nil {
			fields["end_date"] = "must be YYYY-MM-DD"
		}
	}
	if fields["start_date"] == "" && fields["end_date"] == "" && p.StartDate != "" && end.Before(start) {
		fields["end_date"] = "must not be before start_date"
	}

	seen := map[string]bool{}
	for _, tag := range p.Tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			fields["tags"] = "tags must not be blank"
			break
		}
		if len(trimmed) > maxTagLength {
			fields["tags"] = "each tag must be at most 32 characters"
			break
		}
		if seen[strings.ToLower(trimmed)] {
			fields["tags"] = "tags must be unique"
			break
		}
		seen[strings.ToLower(trimmed)] = true
	}

	if len(fields) > 0 {
		return nil, fields
	}
	return &domain.OfficeClosure{
		StartDate:    start,
		EndDate:      end,
		Description:  strings.TrimSpace(p.Description),
		Tags:         trimTags(p.Tags),
		AdviserEmail: strings.ToLower(strings.TrimSpace(p.AdviserEmail)),
	}, nil
}

// HandleCollection serves GET (list) and POST (create) on /closures.
func (h *ClosuresHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		closures, err := h.store.ListClosures(r.Context())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		views := make([]closureView, 0, len(closures))
		for _, c := range closures {
			views = append(views, closureToView(c))
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(views), "closures": views})

	case http.MethodPost:
		var payload closurePayload
		if err := readBodyJSON(r, &payload); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "InvalidInput", Detail: "malformed JSON body"})
			return
		}
		closure, fields := h.parseClosure(payload)
		if fields != nil {
			writeValidationError(w, fields)
			return
		}
		id, err := h.store.CreateClosure(r.Context(), closure)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		h.logger.Info("Closure created",
			zap.String("closure_id", id),
			zap.String("start_date", calendar.FormatDate(closure.StartDate)),
			zap.String("end_date", calendar.FormatDate(closure.EndDate)),
		)
		writeJSON(w, http.StatusCreated, closureToView(*closure))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// HandleItem serves GET, PUT and DELETE on /closures/{id}.
func (h *ClosuresHandler) HandleItem(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		closure, err := h.store.GetClosure(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, closureToView(*closure))

	case http.MethodPut:
		var payload closurePayload
		if err := readBodyJSON(r, &payload); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "InvalidInput", Detail: "malformed JSON body"})
			return
		}
		closure, fields := h.parseClosure(payload)
		if fields != nil {
			writeValidationError(w, fields)
			return
		}
		if err := h.store.UpdateClosure(r.Context(), id, closure); err != nil {
			writeStoreError(w, err)
			return
		}
		closure.ID = id
		h.logger.Info("Closure updated", zap.String("closure_id", id))
		writeJSON(w, http.StatusOK, closureToView(*closure))

	case http.MethodDelete:
		if err := h.store.DeleteClosure(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		h.logger.Info("Closure deleted", zap.String("closure_id", id))
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func trimTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, strings.TrimSpace(t))
	}
	return out
}
