package orders

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamnithishraja/klinic-sub000/api/middleware"
	internalorders "github.com/iamnithishraja/klinic-sub000/internal/orders"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/pagination"
)

type stubOrdersService struct {
	internalorders.Service

	created        *internalorders.CreateOrdersInput
	labFilters     *internalorders.LabOrderFilters
	deliveryFilter *internalorders.DeliveryOrderFilters
	adminFilters   *internalorders.AdminOrderFilters
	statusInput    *internalorders.UpdateStatusInput
	assignInput    *internalorders.AssignDeliveryInput
	rejectReason   string
	deliveryStatus enums.OrderStatus
	paid           *bool
	getErr         error
}

func (s *stubOrdersService) CreateMultiLabOrders(_ context.Context, input internalorders.CreateOrdersInput) (*internalorders.CreateOrdersResult, error) {
	s.created = &input
	return &internalorders.CreateOrdersResult{
		Orders: []internalorders.OrderDTO{{ID: uuid.New(), OrderedBy: input.OrderedBy, COD: input.COD, Status: enums.OrderStatusConfirmed}},
		Kind:   enums.OrderKindLaboratory,
	}, nil
}

func (s *stubOrdersService) ListPatientOrders(_ context.Context, _ uuid.UUID, _ internalorders.PatientOrderFilters, _ pagination.Params) (*internalorders.OrderList, error) {
	return &internalorders.OrderList{Items: []internalorders.OrderDTO{}}, nil
}

func (s *stubOrdersService) ListLabOrders(_ context.Context, _ uuid.UUID, filters internalorders.LabOrderFilters, _ pagination.Params) (*internalorders.OrderList, error) {
	s.labFilters = &filters
	return &internalorders.OrderList{Items: []internalorders.OrderDTO{}}, nil
}

func (s *stubOrdersService) ListDeliveryOrders(_ context.Context, _ uuid.UUID, filters internalorders.DeliveryOrderFilters, _ pagination.Params) (*internalorders.OrderList, error) {
	s.deliveryFilter = &filters
	return &internalorders.OrderList{Items: []internalorders.OrderDTO{}}, nil
}

func (s *stubOrdersService) ListAdminOrders(_ context.Context, filters internalorders.AdminOrderFilters, _ pagination.Params) (*internalorders.OrderList, error) {
	s.adminFilters = &filters
	return &internalorders.OrderList{Items: []internalorders.OrderDTO{}}, nil
}

func (s *stubOrdersService) GetOrder(_ context.Context, orderID uuid.UUID, _ internalorders.Actor) (*internalorders.OrderDTO, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusConfirmed}, nil
}

func (s *stubOrdersService) UpdateStatus(_ context.Context, input internalorders.UpdateStatusInput) (*internalorders.OrderDTO, error) {
	s.statusInput = &input
	return &internalorders.OrderDTO{ID: input.OrderID, Status: input.Status}, nil
}

func (s *stubOrdersService) ClaimOrder(_ context.Context, orderID, labUserID uuid.UUID) (*internalorders.OrderDTO, error) {
	return &internalorders.OrderDTO{ID: orderID, LaboratoryUserID: &labUserID}, nil
}

func (s *stubOrdersService) AssignDelivery(_ context.Context, input internalorders.AssignDeliveryInput) (*internalorders.AssignDeliveryResult, error) {
	s.assignInput = &input
	return &internalorders.AssignDeliveryResult{Order: internalorders.OrderDTO{ID: input.OrderID, DeliveryPartnerID: &input.PartnerID}}, nil
}

func (s *stubOrdersService) AssignLabToOrder(_ context.Context, orderID, labID uuid.UUID, _ internalorders.Actor) (*internalorders.OrderDTO, error) {
	return &internalorders.OrderDTO{ID: orderID, LaboratoryUserID: &labID}, nil
}

func (s *stubOrdersService) AcceptDelivery(_ context.Context, orderID, _ uuid.UUID) (*internalorders.OrderDTO, error) {
	return &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusDeliveryAccepted}, nil
}

func (s *stubOrdersService) RejectDelivery(_ context.Context, orderID, _ uuid.UUID, reason string) (*internalorders.OrderDTO, error) {
	s.rejectReason = reason
	return &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusDeliveryRejected, RejectionReason: &reason}, nil
}

func (s *stubOrdersService) UpdateDeliveryStatus(_ context.Context, orderID, _ uuid.UUID, status enums.OrderStatus) (*internalorders.OrderDTO, error) {
	s.deliveryStatus = status
	return &internalorders.OrderDTO{ID: orderID, Status: status}, nil
}

func (s *stubOrdersService) CancelUnpaid(_ context.Context, orderID, _ uuid.UUID) (*internalorders.OrderDTO, error) {
	return &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusCancelled}, nil
}

func (s *stubOrdersService) SetPaymentStatus(_ context.Context, orderID uuid.UUID, isPaid bool, _ internalorders.Actor) (*internalorders.OrderDTO, error) {
	s.paid = &isPaid
	return &internalorders.OrderDTO{ID: orderID, IsPaid: isPaid}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withActor(req *http.Request, role enums.UserRole) (*http.Request, uuid.UUID) {
	userID := uuid.New()
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, role)
	return req.WithContext(ctx), userID
}

func withOrderParam(req *http.Request, orderID uuid.UUID) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", orderID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestCreateUsesCallerAsPatient(t *testing.T) {
	svc := &stubOrdersService{}
	productID := uuid.New()
	body := `{"items":[{"product_id":"` + productID.String() + `","quantity":2}],"notes":"ring twice"}`
	req, userID := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), enums.UserRolePatient)
	rec := httptest.NewRecorder()

	Create(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.created)
	assert.Equal(t, userID, svc.created.OrderedBy)
	assert.False(t, svc.created.COD)
	require.Len(t, svc.created.Lines, 1)
	assert.Equal(t, productID, svc.created.Lines[0].ProductID)
}

func TestCreateCODSetsFlag(t *testing.T) {
	svc := &stubOrdersService{}
	req, _ := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/orders/cod", strings.NewReader(`{"prescription":"rx.png"}`)), enums.UserRolePatient)
	rec := httptest.NewRecorder()

	CreateCOD(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, svc.created.COD)
}

func TestCreateRejectsZeroQuantity(t *testing.T) {
	svc := &stubOrdersService{}
	body := `{"items":[{"product_id":"` + uuid.NewString() + `","quantity":0}]}`
	req, _ := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), enums.UserRolePatient)
	rec := httptest.NewRecorder()

	Create(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.created)
}

func TestCreateRejectsOversizedQuantity(t *testing.T) {
	svc := &stubOrdersService{}
	body := `{"items":[{"product_id":"` + uuid.NewString() + `","quantity":9223372036854775807}]}`
	req, _ := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), enums.UserRolePatient)
	rec := httptest.NewRecorder()

	Create(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.created)
}

func TestCreateRequiresActor(t *testing.T) {
	rec := httptest.NewRecorder()
	Create(&stubOrdersService{}, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLabListScope(t *testing.T) {
	svc := &stubOrdersService{}
	req, _ := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/orders/lab?scope=unassigned&status=pending", nil), enums.UserRoleLaboratory)
	rec := httptest.NewRecorder()

	LabList(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, internalorders.LabScopeUnassigned, svc.labFilters.Scope)
	require.NotNil(t, svc.labFilters.Status)
	assert.Equal(t, enums.OrderStatusPending, *svc.labFilters.Status)
}

func TestLabListInvalidScope(t *testing.T) {
	req, _ := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/orders/lab?scope=mine", nil), enums.UserRoleLaboratory)
	rec := httptest.NewRecorder()

	LabList(&stubOrdersService{}, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMineInvalidStatus(t *testing.T) {
	req, _ := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/orders/mine?status=shipped", nil), enums.UserRolePatient)
	rec := httptest.NewRecorder()

	Mine(&stubOrdersService{}, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
}

func TestDetailMapsServiceErrors(t *testing.T) {
	svc := &stubOrdersService{getErr: pkgerrors.New(pkgerrors.CodeForbidden, "order not visible")}
	req, _ := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/orders/x", nil), enums.UserRolePatient)
	req = withOrderParam(req, uuid.New())
	rec := httptest.NewRecorder()

	Detail(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDetailInvalidID(t *testing.T) {
	req, _ := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/orders/x", nil), enums.UserRolePatient)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()

	Detail(&stubOrdersService{}, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStatusPassesReason(t *testing.T) {
	svc := &stubOrdersService{}
	orderID := uuid.New()
	req, userID := withActor(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"delivery_rejected","reason":"no rider"}`)), enums.UserRoleDeliveryPartner)
	req = withOrderParam(req, orderID)
	rec := httptest.NewRecorder()

	UpdateStatus(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orderID, svc.statusInput.OrderID)
	assert.Equal(t, userID, svc.statusInput.Actor.UserID)
	assert.Equal(t, enums.UserRoleDeliveryPartner, svc.statusInput.Actor.Role)
	assert.Equal(t, enums.OrderStatusDeliveryRejected, svc.statusInput.Status)
	assert.Equal(t, "no rider", svc.statusInput.Reason)
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	req, _ := withActor(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"lost"}`)), enums.UserRoleAdmin)
	req = withOrderParam(req, uuid.New())
	rec := httptest.NewRecorder()

	UpdateStatus(&stubOrdersService{}, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClaim(t *testing.T) {
	req, labID := withActor(httptest.NewRequest(http.MethodPost, "/", nil), enums.UserRoleLaboratory)
	req = withOrderParam(req, uuid.New())
	rec := httptest.NewRecorder()

	Claim(&stubOrdersService{}, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data internalorders.OrderDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Data.LaboratoryUserID)
	assert.Equal(t, labID, *body.Data.LaboratoryUserID)
}

func TestAssignDelivery(t *testing.T) {
	svc := &stubOrdersService{}
	partnerID := uuid.New()
	req, _ := withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"delivery_partner_id":"`+partnerID.String()+`"}`)), enums.UserRoleLaboratory)
	req = withOrderParam(req, uuid.New())
	rec := httptest.NewRecorder()

	AssignDelivery(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, partnerID, svc.assignInput.PartnerID)
	assert.Equal(t, enums.UserRoleLaboratory, svc.assignInput.Actor.Role)
}

func TestAssignDeliveryRequiresPartner(t *testing.T) {
	req, _ := withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)), enums.UserRoleLaboratory)
	req = withOrderParam(req, uuid.New())
	rec := httptest.NewRecorder()

	AssignDelivery(&stubOrdersService{}, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelUnpaid(t *testing.T) {
	req, _ := withActor(httptest.NewRequest(http.MethodDelete, "/", nil), enums.UserRolePatient)
	req = withOrderParam(req, uuid.New())
	rec := httptest.NewRecorder()

	CancelUnpaid(&stubOrdersService{}, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeliveryListDateRange(t *testing.T) {
	svc := &stubOrdersService{}
	req, _ := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/delivery/orders?from=2026-01-01&to=2026-01-31", nil), enums.UserRoleDeliveryPartner)
	rec := httptest.NewRecorder()

	DeliveryList(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.deliveryFilter.From)
	require.NotNil(t, svc.deliveryFilter.To)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *svc.deliveryFilter.From)
	assert.Equal(t, 23, svc.deliveryFilter.To.Hour())
}

func TestDeliveryListInvertedRange(t *testing.T) {
	req, _ := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/delivery/orders?from=2026-02-01&to=2026-01-01", nil), enums.UserRoleDeliveryPartner)
	rec := httptest.NewRecorder()

	DeliveryList(&stubOrdersService{}, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccept(t *testing.T) {
	req, _ := withActor(httptest.NewRequest(http.MethodPost, "/", nil), enums.UserRoleDeliveryPartner)
	req = withOrderParam(req, uuid.New())
	rec := httptest.NewRecorder()

	Accept(&stubOrdersService{}, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRejectRequiresReason(t *testing.T) {
	svc := &stubOrdersService{}
	req, _ := withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"   "}`)), enums.UserRoleDeliveryPartner)
	req = withOrderParam(req, uuid.New())
	rec := httptest.NewRecorder()

	Reject(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.rejectReason)
}

func TestRejectTrimsReason(t *testing.T) {
	svc := &stubOrdersService{}
	req, _ := withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":" no rider available "}`)), enums.UserRoleDeliveryPartner)
	req = withOrderParam(req, uuid.New())
	rec := httptest.NewRecorder()

	Reject(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no rider available", svc.rejectReason)
}

func TestDeliveryStatusLimitsTargets(t *testing.T) {
	svc := &stubOrdersService{}
	req, _ := withActor(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"cancelled"}`)), enums.UserRoleDeliveryPartner)
	req = withOrderParam(req, uuid.New())
	rec := httptest.NewRecorder()

	DeliveryStatus(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.deliveryStatus)

	req, _ = withActor(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"delivered"}`)), enums.UserRoleDeliveryPartner)
	req = withOrderParam(req, uuid.New())
	rec = httptest.NewRecorder()

	DeliveryStatus(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.OrderStatusDelivered, svc.deliveryStatus)
}

func TestAdminListFilters(t *testing.T) {
	svc := &stubOrdersService{}
	req, _ := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders?need_assignment=true", nil), enums.UserRoleAdmin)
	rec := httptest.NewRecorder()

	AdminList(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.adminFilters.NeedAssignment)
	assert.True(t, *svc.adminFilters.NeedAssignment)
	assert.Nil(t, svc.adminFilters.Status)
}

func TestAdminAssignLab(t *testing.T) {
	labID := uuid.New()
	req, _ := withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"laboratory_id":"`+labID.String()+`"}`)), enums.UserRoleAdmin)
	req = withOrderParam(req, uuid.New())
	rec := httptest.NewRecorder()

	AdminAssignLab(&stubOrdersService{}, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminPaymentRequiresFlag(t *testing.T) {
	svc := &stubOrdersService{}
	req, _ := withActor(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{}`)), enums.UserRoleAdmin)
	req = withOrderParam(req, uuid.New())
	rec := httptest.NewRecorder()

	AdminPayment(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.paid)

	req, _ = withActor(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"is_paid":false}`)), enums.UserRoleAdmin)
	req = withOrderParam(req, uuid.New())
	rec = httptest.NewRecorder()

	AdminPayment(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.paid)
	assert.False(t, *svc.paid)
}

type stubDeadLetters struct {
	orderID uuid.UUID
	entries []models.OutboxDLQ
}

func (s *stubDeadLetters) ListForAggregate(_ context.Context, aggregateID uuid.UUID) ([]models.OutboxDLQ, error) {
	s.orderID = aggregateID
	return s.entries, nil
}

func TestAdminDeadLetters(t *testing.T) {
	orderID := uuid.New()
	lister := &stubDeadLetters{entries: []models.OutboxDLQ{{
		EventID:      uuid.New(),
		EventType:    enums.EventOrderPaid,
		ErrorReason:  enums.OutboxDLQReasonMaxAttempts,
		AttemptCount: 10,
	}}}
	req, _ := withActor(httptest.NewRequest(http.MethodGet, "/", nil), enums.UserRoleAdmin)
	req = withOrderParam(req, orderID)
	rec := httptest.NewRecorder()

	AdminDeadLetters(lister, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orderID, lister.orderID)
	assert.Contains(t, rec.Body.String(), `"attempts":10`)
}

func TestAdminDeadLettersUnavailable(t *testing.T) {
	req := withOrderParam(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New())
	rec := httptest.NewRecorder()

	AdminDeadLetters(nil, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
