package rules

import (
	"testing"

	"ordercast/internal/types"
)

func TestCompile_PaymentConditions(t *testing.T) {
	cases := []struct {
		cond types.TriggerCondition
		want types.EventType
	}{
		{types.ConditionPaymentApproved, types.EventOrderPaid},
		{types.ConditionPixGenerated, types.EventOrderPixCreated},
		{types.ConditionBoletoGenerated, types.EventOrderBoletoCreated},
		{types.ConditionPaymentDeclined, types.EventOrderPaymentDeclined},
		{types.ConditionPaymentExpired, types.EventOrderPaymentExpired},
	}

	for _, tc := range cases {
		et, scope := Compile(types.RuleTypePayment, tc.cond)
		if et != tc.want {
			t.Errorf("Compile(payment, %s) event = %s, want %s", tc.cond, et, tc.want)
		}
		if scope != types.ScopeOrder {
			t.Errorf("Compile(payment, %s) scope = %s, want order", tc.cond, scope)
		}
	}
}

func TestCompile_ShippingConditions(t *testing.T) {
	cases := []struct {
		cond types.TriggerCondition
		want types.EventType
	}{
		{types.ConditionPosted, types.EventOrderShipped},
		{types.ConditionInTransit, types.EventOrderInTransit},
		{types.ConditionOutForDelivery, types.EventOrderOutForDelivery},
		{types.ConditionAwaitingPickup, types.EventOrderAwaitingPickup},
		{types.ConditionReturning, types.EventOrderReturning},
		{types.ConditionIssue, types.EventOrderDeliveryIssue},
		{types.ConditionDelivered, types.EventOrderDelivered},
	}

	for _, tc := range cases {
		et, scope := Compile(types.RuleTypeShipping, tc.cond)
		if et != tc.want {
			t.Errorf("Compile(shipping, %s) event = %s, want %s", tc.cond, et, tc.want)
		}
		if scope != types.ScopeOrder {
			t.Errorf("Compile(shipping, %s) scope = %s, want order", tc.cond, scope)
		}
	}
}

func TestCompile_ConditionlessTypes(t *testing.T) {
	et, scope := Compile(types.RuleTypeAbandonedCheckout, "")
	if et != types.EventCheckoutAbandoned {
		t.Errorf("abandoned_checkout event = %s, want %s", et, types.EventCheckoutAbandoned)
	}
	if scope != types.ScopeCart {
		t.Errorf("abandoned_checkout scope = %s, want cart", scope)
	}

	et, scope = Compile(types.RuleTypePostSale, "")
	if et != types.EventCustomerFirstOrder {
		t.Errorf("post_sale event = %s, want %s", et, types.EventCustomerFirstOrder)
	}
	if scope != types.ScopeCustomer {
		t.Errorf("post_sale scope = %s, want customer", scope)
	}
}

func TestCompile_UnknownConditionFallsBackToTypeDefault(t *testing.T) {
	et, scope := Compile(types.RuleTypePayment, "definitely_not_a_condition")
	if et != types.EventOrderPaid {
		t.Errorf("unknown payment condition event = %s, want %s", et, types.EventOrderPaid)
	}
	if scope != types.ScopeOrder {
		t.Errorf("unknown payment condition scope = %s, want order", scope)
	}
}

func TestCompile_UnknownTypeIsTotal(t *testing.T) {
	et, scope := Compile("loyalty", "whatever")
	if et != types.EventType("loyalty") {
		t.Errorf("unknown type event = %s, want loyalty", et)
	}
	if scope != types.ScopeNone {
		t.Errorf("unknown type scope = %s, want none", scope)
	}
}

func TestDerive_RecomputesDerivedFields(t *testing.T) {
	r := &types.NotificationRule{
		RuleType:         types.RuleTypePayment,
		TriggerCondition: types.ConditionPixGenerated,
		DelayUnit:        types.UnitHours,

		// Stale values that a buggy caller might have left behind.
		TriggerEventType: types.EventOrderDelivered,
		DedupeScope:      types.ScopeCustomer,
		DelaySeconds:     999,
	}

	Derive(r, 2)

	if r.TriggerEventType != types.EventOrderPixCreated {
		t.Errorf("TriggerEventType = %s, want %s", r.TriggerEventType, types.EventOrderPixCreated)
	}
	if r.DedupeScope != types.ScopeOrder {
		t.Errorf("DedupeScope = %s, want order", r.DedupeScope)
	}
	if r.DelaySeconds != 7200 {
		t.Errorf("DelaySeconds = %d, want 7200", r.DelaySeconds)
	}
}
