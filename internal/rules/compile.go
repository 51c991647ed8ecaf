// Package rules contains the pure rule-compilation and delay-normalization
// logic for notification rules. Compilation maps the rule-authoring
// vocabulary (rule_type + trigger_condition) to the canonical event
// taxonomy and dedupe scope; it is the single exhaustive match site, so an
// invalid (type, condition) combination can never reach the dispatcher.
package rules

import "ordercast/internal/types"

// conditionEvents maps each rule type's authoring conditions to canonical
// event types.
var conditionEvents = map[types.RuleType]map[types.TriggerCondition]types.EventType{
	types.RuleTypePayment: {
		types.ConditionPaymentApproved: types.EventOrderPaid,
		types.ConditionPixGenerated:    types.EventOrderPixCreated,
		types.ConditionBoletoGenerated: types.EventOrderBoletoCreated,
		types.ConditionPaymentDeclined: types.EventOrderPaymentDeclined,
		types.ConditionPaymentExpired:  types.EventOrderPaymentExpired,
	},
	types.RuleTypeShipping: {
		types.ConditionPosted:         types.EventOrderShipped,
		types.ConditionInTransit:      types.EventOrderInTransit,
		types.ConditionOutForDelivery: types.EventOrderOutForDelivery,
		types.ConditionAwaitingPickup: types.EventOrderAwaitingPickup,
		types.ConditionReturning:      types.EventOrderReturning,
		types.ConditionIssue:          types.EventOrderDeliveryIssue,
		types.ConditionDelivered:      types.EventOrderDelivered,
	},
}

// defaultEvents is the per-type fallback for unrecognized conditions, so
// rule creation never hard-fails on an unexpected enum value.
var defaultEvents = map[types.RuleType]types.EventType{
	types.RuleTypePayment:           types.EventOrderPaid,
	types.RuleTypeShipping:          types.EventOrderShipped,
	types.RuleTypeAbandonedCheckout: types.EventCheckoutAbandoned,
	types.RuleTypePostSale:          types.EventCustomerFirstOrder,
}

// Compile maps a tenant-authored (rule_type, trigger_condition) pair to its
// canonical trigger event type and dedupe scope. It is total: an
// unrecognized condition for a known type falls back to the type-level
// default event, and an unknown type compiles to its own name with scope
// none rather than erroring.
func Compile(rt types.RuleType, cond types.TriggerCondition) (types.EventType, types.DedupeScope) {
	scope := ScopeFor(rt)

	if events, ok := conditionEvents[rt]; ok {
		if et, ok := events[cond]; ok {
			return et, scope
		}
	}
	if et, ok := defaultEvents[rt]; ok {
		return et, scope
	}

	// Unknown rule type: keep the rule savable and inert until a producer
	// emits an event named after the type itself.
	return types.EventType(rt), scope
}

// ScopeFor returns the dedupe scope for a rule type. The scope is a pure
// function of the type: payment and shipping dedupe per order,
// abandoned_checkout per cart, post_sale per customer.
func ScopeFor(rt types.RuleType) types.DedupeScope {
	switch rt {
	case types.RuleTypePayment, types.RuleTypeShipping:
		return types.ScopeOrder
	case types.RuleTypeAbandonedCheckout:
		return types.ScopeCart
	case types.RuleTypePostSale:
		return types.ScopeCustomer
	default:
		return types.ScopeNone
	}
}

// Derive recomputes the fields of r that are pure functions of its other
// fields: trigger_event_type and dedupe_scope from (rule_type,
// trigger_condition), and delay_seconds from (delayValue, delay_unit).
// The rule write path MUST call this on every create and update so the
// derived fields can never drift from their sources.
func Derive(r *types.NotificationRule, delayValue int64) {
	r.TriggerEventType, r.DedupeScope = Compile(r.RuleType, r.TriggerCondition)
	r.DelaySeconds = ToSeconds(delayValue, r.DelayUnit)
}
