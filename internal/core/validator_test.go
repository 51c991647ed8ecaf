package core

import (
	"errors"
	"net/http"
	"testing"

	"ordercast/internal/types"
)

type validatedRequest struct {
	TenantID string   `validate:"required"`
	Channels []string `validate:"required,min=1,dive,oneof=email whatsapp"`
	Nested   struct {
		ID string `validate:"required"`
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	v := NewValidator(discardLogger())

	req := validatedRequest{TenantID: "tenant_1", Channels: []string{"email"}}
	req.Nested.ID = "x"

	if err := v.ValidateStruct(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStruct_ReportsFailedFields(t *testing.T) {
	v := NewValidator(discardLogger())

	req := validatedRequest{Channels: []string{"sms"}}
	req.Nested.ID = "x"

	err := v.ValidateStruct(req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.HTTPStatus() != http.StatusBadRequest {
		t.Errorf("status = %d", appErr.HTTPStatus())
	}

	fields, ok := appErr.Details["fields"].(map[string]any)
	if !ok {
		t.Fatalf("details = %v", appErr.Details)
	}
	if fields["TenantID"] != "required" {
		t.Errorf("TenantID rule = %v", fields["TenantID"])
	}
	if fields["Channels[0]"] != "oneof" {
		t.Errorf("Channels[0] rule = %v", fields["Channels[0]"])
	}
}

func TestValidateStruct_StripsTopLevelTypeName(t *testing.T) {
	v := NewValidator(discardLogger())

	req := validatedRequest{TenantID: "tenant_1", Channels: []string{"email"}}
	// Nested.ID left empty.

	err := v.ValidateStruct(req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatal(err)
	}
	fields := appErr.Details["fields"].(map[string]any)
	if _, ok := fields["Nested.ID"]; !ok {
		t.Errorf("expected field path Nested.ID, got %v", fields)
	}
}

func TestValidateStruct_NonStruct(t *testing.T) {
	v := NewValidator(discardLogger())

	err := v.ValidateStruct("not a struct")
	if err == nil {
		t.Fatal("expected error for non-struct input")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeInternalUnexpected {
		t.Errorf("code = %s", appErr.Code)
	}
}
