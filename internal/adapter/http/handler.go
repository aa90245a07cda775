package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/flowtrail/flowtrail/internal/app"
	"github.com/flowtrail/flowtrail/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// EntityResponse is the API representation of an entity snapshot.
type EntityResponse struct {
	ID               string         `json:"id" doc:"Unique identifier"`
	TenantID         string         `json:"tenant_id" doc:"Owning tenant"`
	Type             string         `json:"type" doc:"Entity type"`
	Code             string         `json:"code" doc:"Internal code, unique per tenant"`
	Name             string         `json:"name,omitempty" doc:"Display name"`
	State            string         `json:"state" doc:"Current lifecycle state"`
	Location         string         `json:"location,omitempty" doc:"Current location"`
	Attributes       map[string]any `json:"attributes,omitempty" doc:"Domain payload"`
	CreatedAt        string         `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt        string         `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
	LastTransitionAt string         `json:"last_transition_at" doc:"Last state change timestamp (ISO 8601)"`
}

func toEntityResponse(e domain.Entity) EntityResponse {
	return EntityResponse{
		ID:               e.ID,
		TenantID:         e.TenantID,
		Type:             string(e.Type),
		Code:             e.Code,
		Name:             e.Name,
		State:            string(e.State),
		Location:         e.Location,
		Attributes:       e.Attributes,
		CreatedAt:        e.CreatedAt.Format(timeFormat),
		UpdatedAt:        e.UpdatedAt.Format(timeFormat),
		LastTransitionAt: e.LastTransitionAt.Format(timeFormat),
	}
}

// RecordResponse is the API representation of one ledger entry.
type RecordResponse struct {
	ID            string  `json:"id" doc:"Record identifier"`
	EntityID      string  `json:"entity_id" doc:"Entity the record belongs to"`
	EntityType    string  `json:"entity_type" doc:"Entity type"`
	Action        string  `json:"action" doc:"Recorded action"`
	PreviousState *string `json:"previous_state" doc:"State before the action; null for creation"`
	NewState      string  `json:"new_state" doc:"State after the action"`
	ActorID       string  `json:"actor_id" doc:"Actor who performed the action"`
	Reason        string  `json:"reason,omitempty" doc:"Free-text reason"`
	Location      string  `json:"location,omitempty" doc:"Location at record time"`
	RecordedAt    string  `json:"recorded_at" doc:"Record timestamp (ISO 8601)"`
}

func toRecordResponse(r domain.TransitionRecord) RecordResponse {
	var previous *string
	if r.PreviousState != nil {
		p := string(*r.PreviousState)
		previous = &p
	}
	return RecordResponse{
		ID:            r.ID,
		EntityID:      r.EntityID,
		EntityType:    string(r.EntityType),
		Action:        string(r.Action),
		PreviousState: previous,
		NewState:      string(r.NewState),
		ActorID:       r.ActorID,
		Reason:        r.Reason,
		Location:      r.Location,
		RecordedAt:    r.RecordedAt.Format(timeFormat),
	}
}

// AggregateRowResponse is one group of the audit summary.
type AggregateRowResponse struct {
	Action     string `json:"action" doc:"Recorded action"`
	EntityType string `json:"entity_type" doc:"Entity type"`
	ActorID    string `json:"actor_id" doc:"Actor"`
	Count      int64  `json:"count" doc:"Number of records in the group"`
}

// --- Create Entity ---

type CreateEntityInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	Body          struct {
		Type       string         `json:"type" enum:"product,transport,vehicle" doc:"Entity type"`
		Code       string         `json:"code" minLength:"1" maxLength:"100" doc:"Internal code, unique per tenant"`
		Name       string         `json:"name,omitempty" maxLength:"255" doc:"Display name"`
		Location   string         `json:"location,omitempty" maxLength:"255" doc:"Initial location"`
		Attributes map[string]any `json:"attributes,omitempty" doc:"Domain payload"`
	}
}

type CreateEntityOutput struct {
	Body EntityResponse
}

// --- Get / Delete Entity ---

type GetEntityInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	ID            string `path:"id" doc:"Entity ID"`
}

type GetEntityOutput struct {
	Body EntityResponse
}

type DeleteEntityInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	ID            string `path:"id" doc:"Entity ID"`
}

type DeleteEntityOutput struct{}

// --- List Entities ---

type ListEntitiesInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	Type          string `query:"type" required:"false" doc:"Filter by entity type"`
	State         string `query:"state" required:"false" doc:"Filter by current state"`
	Limit         int    `query:"limit" required:"false" default:"50" doc:"Max results"`
	Offset        int    `query:"offset" required:"false" default:"0" doc:"Pagination offset"`
}

type ListEntitiesOutput struct {
	Body []EntityResponse
}

// --- Update Fields ---

type UpdateEntityInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	ID            string `path:"id" doc:"Entity ID"`
	Body          struct {
		Name       *string        `json:"name,omitempty" maxLength:"255" doc:"New display name"`
		Location   *string        `json:"location,omitempty" maxLength:"255" doc:"New location"`
		Attributes map[string]any `json:"attributes,omitempty" doc:"Replacement domain payload"`
	}
}

type UpdateEntityOutput struct {
	Body EntityResponse
}

// --- Transition ---

type TransitionInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	ID            string `path:"id" doc:"Entity ID"`
	Body          struct {
		State    string `json:"state" minLength:"1" doc:"Requested new state"`
		Reason   string `json:"reason,omitempty" maxLength:"1000" doc:"Free-text reason"`
		Location string `json:"location,omitempty" maxLength:"255" doc:"Location of the movement"`
	}
}

type TransitionOutput struct {
	Body EntityResponse
}

// --- History ---

type HistoryInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	ID            string `path:"id" doc:"Entity ID"`
}

type HistoryOutput struct {
	Body []RecordResponse
}

// --- Audit Summary ---

type AuditSummaryInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	From          string `query:"from" required:"false" doc:"Start of date range (RFC 3339)"`
	To            string `query:"to" required:"false" doc:"End of date range (RFC 3339)"`
	ActorID       string `query:"actor_id" required:"false" doc:"Filter by actor"`
	Action        string `query:"action" required:"false" doc:"Filter by action"`
	Type          string `query:"type" required:"false" doc:"Filter by entity type"`
}

type AuditSummaryOutput struct {
	Body []AggregateRowResponse
}

// Register adds all tracking API routes to the Huma API.
func Register(api huma.API, svc *app.TrackingService, audit *app.AuditService, auth domain.Authenticator) {
	huma.Register(api, huma.Operation{
		OperationID: "create-entity",
		Method:      http.MethodPost,
		Path:        "/api/v1/entities",
		Summary:     "Create a new tracked entity",
		Tags:        []string{"Entities"},
	}, func(ctx context.Context, input *CreateEntityInput) (*CreateEntityOutput, error) {
		actor, err := auth.Authenticate(ctx, input.Authorization)
		if err != nil {
			return nil, toHumaError(err)
		}

		entity, err := svc.Create(ctx, actor, app.CreateEntityInput{
			Type:       domain.EntityType(input.Body.Type),
			Code:       input.Body.Code,
			Name:       input.Body.Name,
			Location:   input.Body.Location,
			Attributes: input.Body.Attributes,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateEntityOutput{Body: toEntityResponse(entity)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-entity",
		Method:      http.MethodGet,
		Path:        "/api/v1/entities/{id}",
		Summary:     "Get an entity by ID",
		Tags:        []string{"Entities"},
	}, func(ctx context.Context, input *GetEntityInput) (*GetEntityOutput, error) {
		actor, err := auth.Authenticate(ctx, input.Authorization)
		if err != nil {
			return nil, toHumaError(err)
		}

		entity, err := svc.Get(ctx, actor, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetEntityOutput{Body: toEntityResponse(entity)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-entities",
		Method:      http.MethodGet,
		Path:        "/api/v1/entities",
		Summary:     "List the tenant's entities",
		Tags:        []string{"Entities"},
	}, func(ctx context.Context, input *ListEntitiesInput) (*ListEntitiesOutput, error) {
		actor, err := auth.Authenticate(ctx, input.Authorization)
		if err != nil {
			return nil, toHumaError(err)
		}

		filter := domain.ListFilter{
			Type:   domain.EntityType(input.Type),
			Limit:  input.Limit,
			Offset: input.Offset,
		}
		if input.State != "" {
			s := domain.State(input.State)
			filter.State = &s
		}

		entities, err := svc.List(ctx, actor, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]EntityResponse, len(entities))
		for i, e := range entities {
			resp[i] = toEntityResponse(e)
		}
		return &ListEntitiesOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-entity",
		Method:      http.MethodPatch,
		Path:        "/api/v1/entities/{id}",
		Summary:     "Update an entity's non-state fields",
		Tags:        []string{"Entities"},
	}, func(ctx context.Context, input *UpdateEntityInput) (*UpdateEntityOutput, error) {
		actor, err := auth.Authenticate(ctx, input.Authorization)
		if err != nil {
			return nil, toHumaError(err)
		}

		entity, err := svc.UpdateFields(ctx, actor, input.ID, app.FieldPatch{
			Name:       input.Body.Name,
			Location:   input.Body.Location,
			Attributes: input.Body.Attributes,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &UpdateEntityOutput{Body: toEntityResponse(entity)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-entity",
		Method:        http.MethodDelete,
		Path:          "/api/v1/entities/{id}",
		Summary:       "Delete an entity",
		Tags:          []string{"Entities"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteEntityInput) (*DeleteEntityOutput, error) {
		actor, err := auth.Authenticate(ctx, input.Authorization)
		if err != nil {
			return nil, toHumaError(err)
		}

		if err := svc.Delete(ctx, actor, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return &DeleteEntityOutput{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-entity",
		Method:      http.MethodPost,
		Path:        "/api/v1/entities/{id}/transitions",
		Summary:     "Request a state transition",
		Tags:        []string{"Entities"},
	}, func(ctx context.Context, input *TransitionInput) (*TransitionOutput, error) {
		actor, err := auth.Authenticate(ctx, input.Authorization)
		if err != nil {
			return nil, toHumaError(err)
		}

		entity, err := svc.Transition(ctx, actor, input.ID,
			domain.State(input.Body.State), input.Body.Reason, input.Body.Location)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TransitionOutput{Body: toEntityResponse(entity)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "entity-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/entities/{id}/history",
		Summary:     "Get an entity's full movement history",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *HistoryInput) (*HistoryOutput, error) {
		actor, err := auth.Authenticate(ctx, input.Authorization)
		if err != nil {
			return nil, toHumaError(err)
		}

		records, err := audit.History(ctx, actor, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]RecordResponse, len(records))
		for i, r := range records {
			resp[i] = toRecordResponse(r)
		}
		return &HistoryOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "audit-summary",
		Method:      http.MethodGet,
		Path:        "/api/v1/audit/summary",
		Summary:     "Aggregate ledger counts by action, entity type, and actor",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *AuditSummaryInput) (*AuditSummaryOutput, error) {
		actor, err := auth.Authenticate(ctx, input.Authorization)
		if err != nil {
			return nil, toHumaError(err)
		}

		filter := domain.AggregateFilter{
			ActorID:    input.ActorID,
			Action:     domain.Action(input.Action),
			EntityType: domain.EntityType(input.Type),
		}

		if input.From != "" {
			from, err := time.Parse(time.RFC3339, input.From)
			if err != nil {
				return nil, huma.Error422UnprocessableEntity("invalid 'from' timestamp")
			}
			filter.From = &from
		}
		if input.To != "" {
			to, err := time.Parse(time.RFC3339, input.To)
			if err != nil {
				return nil, huma.Error422UnprocessableEntity("invalid 'to' timestamp")
			}
			filter.To = &to
		}

		rows, err := audit.Aggregate(ctx, actor, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]AggregateRowResponse, len(rows))
		for i, r := range rows {
			resp[i] = AggregateRowResponse{
				Action:     string(r.Action),
				EntityType: string(r.EntityType),
				ActorID:    r.ActorID,
				Count:      r.Count,
			}
		}
		return &AuditSummaryOutput{Body: resp}, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrUnauthenticated) {
		return huma.Error401Unauthorized("invalid or missing credential")
	}

	if errors.Is(err, domain.ErrEntityNotFound) {
		return huma.Error404NotFound("entity not found")
	}

	var forbidden *domain.ForbiddenError
	if errors.As(err, &forbidden) {
		return huma.Error403Forbidden("operation not permitted")
	}

	var conflict *domain.CodeConflictError
	if errors.As(err, &conflict) {
		return huma.Error409Conflict(conflict.Error())
	}

	var unknownType *domain.UnknownEntityTypeError
	if errors.As(err, &unknownType) {
		return huma.Error422UnprocessableEntity(unknownType.Error())
	}

	var invalidState *domain.InvalidStateError
	if errors.As(err, &invalidState) {
		return huma.Error422UnprocessableEntity(invalidState.Error())
	}

	var illegal *domain.IllegalTransitionError
	if errors.As(err, &illegal) {
		return huma.Error422UnprocessableEntity(illegal.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
