package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/greenbasket/greenbasket-backend/internal/cart"
	"github.com/greenbasket/greenbasket-backend/pkg/types"
)

type stubCartService struct {
	view *cart.View

	added struct {
		productID uuid.UUID
		quantity  int
	}
	cleared bool
}

func (s *stubCartService) View(ctx context.Context, customerID uuid.UUID) (*cart.View, error) {
	return s.view, nil
}

func (s *stubCartService) AddItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) error {
	s.added.productID = productID
	s.added.quantity = quantity
	return nil
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, customerID, productID uuid.UUID, quantity int) error {
	return nil
}

func (s *stubCartService) RemoveItem(ctx context.Context, customerID, productID uuid.UUID) error {
	return nil
}

func (s *stubCartService) Clear(ctx context.Context, customerID uuid.UUID) error {
	s.cleared = true
	return nil
}

func TestCartAddItem(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	stub := &stubCartService{view: &cart.View{Total: decimal.RequireFromString("9.25")}}

	handler := CartAddItem(stub, nil)
	req := authedRequest(http.MethodPost, "/api/v1/cart/items",
		`{"product_id":"`+productID.String()+`","quantity":3}`, uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.added.productID != productID || stub.added.quantity != 3 {
		t.Fatalf("unexpected add call: %+v", stub.added)
	}

	var body types.SuccessEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	view := body.Data.(map[string]any)
	if view["total"] != "9.25" {
		t.Fatalf("unexpected cart payload %v", view)
	}
}

func TestCartAddItemRejectsZeroQuantity(t *testing.T) {
	t.Parallel()

	handler := CartAddItem(&stubCartService{}, nil)
	req := authedRequest(http.MethodPost, "/api/v1/cart/items",
		`{"product_id":"`+uuid.NewString()+`","quantity":0}`, uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCartClear(t *testing.T) {
	t.Parallel()

	stub := &stubCartService{}
	handler := CartClear(stub, nil)
	req := authedRequest(http.MethodDelete, "/api/v1/cart", "", uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !stub.cleared {
		t.Fatal("expected clear to be called")
	}
}
