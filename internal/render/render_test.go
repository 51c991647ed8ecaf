package render

import "testing"

func TestRender_Substitution(t *testing.T) {
	vars := map[string]string{
		"name":         "Ana",
		"order_number": "1042",
	}

	cases := []struct {
		name     string
		template string
		want     string
	}{
		{"simple", "Olá {{name}}!", "Olá Ana!"},
		{"multiple", "{{name}}, pedido {{order_number}} confirmado", "Ana, pedido 1042 confirmado"},
		{"whitespace inside braces", "Olá {{ name }}!", "Olá Ana!"},
		{"missing stays literal", "Olá {{name}}, cupom {{coupon_code}}", "Olá Ana, cupom {{coupon_code}}"},
		{"no placeholders", "sem variáveis", "sem variáveis"},
		{"empty template", "", ""},
		{"repeated key", "{{name}} e {{name}}", "Ana e Ana"},
		{"dotted key", "{{order.total}}", "{{order.total}}"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Render(tc.template, vars); got != tc.want {
				t.Errorf("Render(%q) = %q, want %q", tc.template, got, tc.want)
			}
		})
	}
}

func TestRender_Idempotent(t *testing.T) {
	vars := map[string]string{"name": "Ana"}
	template := "Olá {{name}}, cupom {{coupon_code}}"

	once := Render(template, vars)
	twice := Render(once, vars)
	if once != twice {
		t.Errorf("second render changed output: %q -> %q", once, twice)
	}
}

func TestRender_ValueContainingBraces(t *testing.T) {
	// A substituted value that itself looks like a placeholder is not
	// expanded on re-render with disjoint vars.
	vars := map[string]string{"name": "{{verbatim}}"}
	got := Render("Olá {{name}}", vars)
	if got != "Olá {{verbatim}}" {
		t.Fatalf("got %q", got)
	}
	again := Render(got, map[string]string{})
	if again != got {
		t.Errorf("re-render changed output: %q -> %q", got, again)
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("short", 140); got != "short" {
		t.Errorf("Preview(short) = %q", got)
	}

	long := "Olá cliente, seu pedido foi aprovado e está sendo preparado"
	got := Preview(long, 10)
	if got != "Olá client" {
		t.Errorf("Preview 10 runes = %q", got)
	}
}
