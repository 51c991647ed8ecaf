package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ordercast/internal/core"
	"ordercast/internal/types"
)

// RuleStore is the data access contract for rule management. Mirrors the
// concrete db.RuleRepository methods used by this handler. delayValue is
// the merchant-authored quantity in the rule's DelayUnit; the store
// normalizes it to seconds on write.
type RuleStore interface {
	Create(ctx context.Context, rule *types.NotificationRule, delayValue int64) error
	Update(ctx context.Context, rule *types.NotificationRule, delayValue int64) error
	GetByID(ctx context.Context, tenantID, ruleID string) (*types.NotificationRule, error)
}

// CreateRuleRequest is the request body for POST /v1/rules.
type CreateRuleRequest struct {
	TenantID         string   `json:"tenant_id" validate:"required"`
	Name             string   `json:"name" validate:"required,max=200"`
	IsEnabled        bool     `json:"is_enabled"`
	RuleType         string   `json:"rule_type" validate:"required,oneof=payment shipping abandoned_checkout post_sale"`
	TriggerCondition string   `json:"trigger_condition,omitempty"`
	Channels         []string `json:"channels" validate:"required,min=1,dive,oneof=email whatsapp"`

	EmailSubject string `json:"email_subject,omitempty" validate:"max=500"`
	EmailBody    string `json:"email_body,omitempty"`
	WhatsAppBody string `json:"whatsapp_body,omitempty"`

	DelayValue int64  `json:"delay_value" validate:"min=0"`
	DelayUnit  string `json:"delay_unit" validate:"required,oneof=minutes hours days"`

	ProductScope string   `json:"product_scope,omitempty" validate:"omitempty,oneof=all specific"`
	ProductIDs   []string `json:"product_ids,omitempty"`

	Priority int `json:"priority"`
}

// UpdateRuleRequest is the request body for PUT /v1/rules/{id}. Updates
// replace the rule wholesale; trigger event type and dedupe scope are
// re-derived from rule_type and trigger_condition on every write.
type UpdateRuleRequest struct {
	TenantID         string   `json:"tenant_id" validate:"required"`
	Name             string   `json:"name" validate:"required,max=200"`
	IsEnabled        bool     `json:"is_enabled"`
	RuleType         string   `json:"rule_type" validate:"required,oneof=payment shipping abandoned_checkout post_sale"`
	TriggerCondition string   `json:"trigger_condition,omitempty"`
	Channels         []string `json:"channels" validate:"required,min=1,dive,oneof=email whatsapp"`

	EmailSubject string `json:"email_subject,omitempty" validate:"max=500"`
	EmailBody    string `json:"email_body,omitempty"`
	WhatsAppBody string `json:"whatsapp_body,omitempty"`

	DelayValue int64  `json:"delay_value" validate:"min=0"`
	DelayUnit  string `json:"delay_unit" validate:"required,oneof=minutes hours days"`

	ProductScope string   `json:"product_scope,omitempty" validate:"omitempty,oneof=all specific"`
	ProductIDs   []string `json:"product_ids,omitempty"`

	Priority int `json:"priority"`
}

// RulesHandler manages notification rule CRUD.
type RulesHandler struct {
	store     RuleStore
	validator *core.Validator
	logger    *slog.Logger
}

// NewRulesHandler creates a RulesHandler.
func NewRulesHandler(store RuleStore, v *core.Validator, l *slog.Logger) *RulesHandler {
	if l == nil {
		l = slog.Default()
	}
	return &RulesHandler{
		store:     store,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts rule routes on the provided chi.Router.
func (h *RulesHandler) RegisterRoutes(r chi.Router) {
	r.Route("/rules", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
		})
	})
}

// Create handles POST /v1/rules.
func (h *RulesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	rule := ruleFromRequest(req.TenantID, req.Name, req.IsEnabled, req.RuleType, req.TriggerCondition, req.Channels, req.EmailSubject, req.EmailBody, req.WhatsAppBody, req.DelayUnit, req.ProductScope, req.ProductIDs, req.Priority)

	if err := h.store.Create(r.Context(), rule, req.DelayValue); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "rule created",
		"tenant_id", rule.TenantID,
		"rule_id", rule.ID,
		"rule_type", string(rule.RuleType),
		"trigger_event_type", string(rule.TriggerEventType),
	)

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: rule})
}

// Get handles GET /v1/rules/{id}. The tenant is taken from the tenant_id
// query parameter.
func (h *RulesHandler) Get(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"tenant_id query parameter is required",
			nil,
		))
		return
	}

	rule, err := h.store.GetByID(r.Context(), tenantID, ruleID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if rule == nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundRule,
			"rule not found",
			nil,
		))
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rule})
}

// Update handles PUT /v1/rules/{id}.
func (h *RulesHandler) Update(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	var req UpdateRuleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	rule := ruleFromRequest(req.TenantID, req.Name, req.IsEnabled, req.RuleType, req.TriggerCondition, req.Channels, req.EmailSubject, req.EmailBody, req.WhatsAppBody, req.DelayUnit, req.ProductScope, req.ProductIDs, req.Priority)
	rule.ID = ruleID

	if err := h.store.Update(r.Context(), rule, req.DelayValue); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "rule updated",
		"tenant_id", rule.TenantID,
		"rule_id", rule.ID,
		"trigger_event_type", string(rule.TriggerEventType),
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rule})
}

// ruleFromRequest maps request fields onto a rule. DelaySeconds,
// TriggerEventType, and DedupeScope are left for the store's derivation
// pass.
func ruleFromRequest(
	tenantID, name string,
	isEnabled bool,
	ruleType, triggerCondition string,
	channels []string,
	emailSubject, emailBody, whatsAppBody string,
	delayUnit string,
	productScope string,
	productIDs []string,
	priority int,
) *types.NotificationRule {
	chs := make([]types.Channel, 0, len(channels))
	for _, c := range channels {
		chs = append(chs, types.Channel(c))
	}

	scope := types.ProductScope(productScope)
	if scope == "" {
		scope = types.ProductScopeAll
	}

	return &types.NotificationRule{
		TenantID:         tenantID,
		Name:             name,
		IsEnabled:        isEnabled,
		RuleType:         types.RuleType(ruleType),
		TriggerCondition: types.TriggerCondition(triggerCondition),
		Channels:         chs,
		EmailSubject:     emailSubject,
		EmailBody:        emailBody,
		WhatsAppBody:     whatsAppBody,
		DelayUnit:        types.DelayUnit(delayUnit),
		ProductScope:     scope,
		ProductIDs:       productIDs,
		Priority:         priority,
	}
}
