package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tabletide/pos/internal/domain"
	"github.com/tabletide/pos/internal/repository"
)

func TestOrderHandler_CreateOrder(t *testing.T) {
	tableID := uuid.New()

	validBody := func() map[string]any {
		return map[string]any{
			"table_id":   tableID,
			"covers":     4,
			"order_type": "dine_in",
			"items": []map[string]any{
				{"dish": map[string]any{"id": uuid.New(), "name": "Margherita", "price": 12.5}, "quantity": 1, "unit_price": 12.5},
			},
		}
	}

	testCases := map[string]struct {
		body           any
		role           string
		setupRepo      func(*mockOrderRepo)
		setupNotifier  func(*mockNotifier)
		expectedStatus int
	}{
		"should commit a cart into an in-progress order": {
			body: validBody(),
			role: "server",
			setupRepo: func(m *mockOrderRepo) {
				m.On("NextInvoiceNumber", mock.Anything).Return(int64(1042), nil)
				m.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
					return o.Status == domain.OrderStatusInProgress &&
						o.InvoiceNumber == 1042 &&
						o.Covers == 4 &&
						len(o.Items) == 1 &&
						o.UserID == "server-7"
				})).Return(nil)
			},
			setupNotifier: func(m *mockNotifier) {
				m.On("PublishTableChanged", mock.Anything, mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		"should reject an empty cart": {
			body:           map[string]any{"covers": 2, "items": []any{}},
			role:           "server",
			setupRepo:      func(*mockOrderRepo) {},
			setupNotifier:  func(*mockNotifier) {},
			expectedStatus: http.StatusBadRequest,
		},
		"should reject a malformed body": {
			body:           "not json",
			role:           "server",
			setupRepo:      func(*mockOrderRepo) {},
			setupNotifier:  func(*mockNotifier) {},
			expectedStatus: http.StatusBadRequest,
		},
		"should deny an unknown role": {
			body:           validBody(),
			role:           "visitor",
			setupRepo:      func(*mockOrderRepo) {},
			setupNotifier:  func(*mockNotifier) {},
			expectedStatus: http.StatusForbidden,
		},
		"should report a store failure": {
			body: validBody(),
			role: "server",
			setupRepo: func(m *mockOrderRepo) {
				m.On("NextInvoiceNumber", mock.Anything).Return(int64(1042), nil)
				m.On("CreateOrder", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
			},
			setupNotifier:  func(*mockNotifier) {},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			repo := new(mockOrderRepo)
			notifier := new(mockNotifier)
			tc.setupRepo(repo)
			tc.setupNotifier(notifier)

			h := NewOrderHandler(repo, testGuard(t), notifier, testLogger())

			var body bytes.Buffer
			require.NoError(t, json.NewEncoder(&body).Encode(tc.body))
			req := withStaff(httptest.NewRequest("POST", "/orders", &body), "server-7", tc.role)

			rec := httptest.NewRecorder()
			h.CreateOrder(rec, req)

			assert.Equal(t, tc.expectedStatus, rec.Code)
			repo.AssertExpectations(t)

			if tc.expectedStatus == http.StatusCreated {
				var got domain.Order
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
				assert.Equal(t, int64(1042), got.InvoiceNumber)
				assert.Equal(t, domain.OrderStatusInProgress, got.Status)
				notifier.AssertCalled(t, "PublishTableChanged", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestOrderHandler_GetOrderByID(t *testing.T) {
	order := inProgressOrder(1042)

	testCases := map[string]struct {
		id             string
		setupRepo      func(*mockOrderRepo)
		expectedStatus int
	}{
		"should return the order": {
			id: order.ID.String(),
			setupRepo: func(m *mockOrderRepo) {
				m.On("GetOrderByID", mock.Anything, order.ID).Return(order, nil)
			},
			expectedStatus: http.StatusOK,
		},
		"should return 404 for an unknown order": {
			id: order.ID.String(),
			setupRepo: func(m *mockOrderRepo) {
				m.On("GetOrderByID", mock.Anything, order.ID).Return(nil, &repository.NotFoundError{
					Resource: "order", Key: "id", Value: order.ID.String(),
				})
			},
			expectedStatus: http.StatusNotFound,
		},
		"should reject a malformed id": {
			id:             "not-a-uuid",
			setupRepo:      func(*mockOrderRepo) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			repo := new(mockOrderRepo)
			tc.setupRepo(repo)

			h := NewOrderHandler(repo, testGuard(t), new(mockNotifier), testLogger())

			req := withStaff(httptest.NewRequest("GET", "/orders/"+tc.id, http.NoBody), "server-7", "server")
			req.SetPathValue("id", tc.id)

			rec := httptest.NewRecorder()
			h.GetOrderByID(rec, req)

			assert.Equal(t, tc.expectedStatus, rec.Code)
			repo.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_GetOrdersByTable(t *testing.T) {
	tableID := uuid.New()
	repo := new(mockOrderRepo)
	repo.On("GetOrdersByTable", mock.Anything, tableID).Return([]domain.Order{*inProgressOrder(7)}, nil)

	h := NewOrderHandler(repo, testGuard(t), new(mockNotifier), testLogger())

	req := withStaff(httptest.NewRequest("GET", "/tables/"+tableID.String()+"/orders", http.NoBody), "server-7", "server")
	req.SetPathValue("id", tableID.String())

	rec := httptest.NewRecorder()
	h.GetOrdersByTable(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []domain.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Len(t, got, 1)
}
