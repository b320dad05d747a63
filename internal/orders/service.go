package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	product "github.com/iamnithishraja/klinic-sub000/internal/products"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/metrics"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox/payloads"
	"github.com/iamnithishraja/klinic-sub000/pkg/pagination"
)

// Service defines every order operation exposed to controllers and workers.
type Service interface {
	CreateMultiLabOrders(ctx context.Context, input CreateOrdersInput) (*CreateOrdersResult, error)
	ClaimOrder(ctx context.Context, orderID, labUserID uuid.UUID) (*OrderDTO, error)
	AssignLabToOrder(ctx context.Context, orderID, labIDOrProfileID uuid.UUID, actor Actor) (*OrderDTO, error)
	AssignDelivery(ctx context.Context, input AssignDeliveryInput) (*AssignDeliveryResult, error)
	AcceptDelivery(ctx context.Context, orderID, partnerID uuid.UUID) (*OrderDTO, error)
	RejectDelivery(ctx context.Context, orderID, partnerID uuid.UUID, reason string) (*OrderDTO, error)
	UpdateDeliveryStatus(ctx context.Context, orderID, partnerID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error)
	CancelUnpaid(ctx context.Context, orderID, patientID uuid.UUID) (*OrderDTO, error)
	SetPaymentStatus(ctx context.Context, orderID uuid.UUID, isPaid bool, actor Actor) (*OrderDTO, error)
	MarkOrdersPaidTx(ctx context.Context, tx *gorm.DB, orderIDs []uuid.UUID, reference string, actor Actor) error
	GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error)
	ListPatientOrders(ctx context.Context, patientID uuid.UUID, filters PatientOrderFilters, params pagination.Params) (*OrderList, error)
	ListLabOrders(ctx context.Context, labID uuid.UUID, filters LabOrderFilters, params pagination.Params) (*OrderList, error)
	ListDeliveryOrders(ctx context.Context, partnerID uuid.UUID, filters DeliveryOrderFilters, params pagination.Params) (*OrderList, error)
	ListAdminOrders(ctx context.Context, filters AdminOrderFilters, params pagination.Params) (*OrderList, error)
}

// ServiceParams bundles the collaborators of the order service. Notifier and
// Metrics are optional.
type ServiceParams struct {
	Repo       Repository
	Tx         txRunner
	Outbox     outboxPublisher
	Products   func(tx *gorm.DB) ProductStore
	Users      userLookup
	Labs       laboratoryResolver
	Deliveries deliveryProfiles
	Notifier   StatusNotifier
	Metrics    *metrics.OrderMetrics
	Logger     *logger.Logger
}

type service struct {
	repo       Repository
	tx         txRunner
	outbox     outboxPublisher
	products   func(tx *gorm.DB) ProductStore
	users      userLookup
	labs       laboratoryResolver
	deliveries deliveryProfiles
	notifier   StatusNotifier
	metrics    *metrics.OrderMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// ProductsFromRepository adapts the catalog repository to the tx-bound
// ProductStore checkout uses.
func ProductsFromRepository(repo *product.Repository) func(tx *gorm.DB) ProductStore {
	return func(tx *gorm.DB) ProductStore {
		return repo.WithTx(tx)
	}
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Products == nil:
		return nil, fmt.Errorf("product store required")
	case params.Users == nil:
		return nil, fmt.Errorf("user lookup required")
	case params.Labs == nil:
		return nil, fmt.Errorf("laboratory resolver required")
	case params.Deliveries == nil:
		return nil, fmt.Errorf("delivery profile repository required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		outbox:     params.Outbox,
		products:   params.Products,
		users:      params.Users,
		labs:       params.Labs,
		deliveries: params.Deliveries,
		notifier:   params.Notifier,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

type plannedOrder struct {
	order models.Order
	lines []models.OrderLine
}

// CreateMultiLabOrders splits a checkout into one order per laboratory that
// owns a requested product. Everything, stock decrements and outbox rows
// included, commits in one transaction.
func (s *service) CreateMultiLabOrders(ctx context.Context, input CreateOrdersInput) (*CreateOrdersResult, error) {
	if input.OrderedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	prescription := trimmedPtr(input.Prescription)
	if len(input.Lines) == 0 && prescription == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "products or prescription required")
	}
	for i, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "lines[%d].product_id is required", i)
		}
		if line.Quantity <= 0 || line.Quantity > MaxLineQuantity {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "lines[%d].quantity must be between 1 and %d", i, MaxLineQuantity)
		}
	}
	input.Prescription = prescription
	input.Notes = trimmedPtr(input.Notes)

	var (
		createdIDs []uuid.UUID
		steps      []StepResult
		kind       enums.OrderKind
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		store := s.products(tx)

		plan, planKind, planSteps, err := s.planCheckout(ctx, store, input)
		if err != nil {
			return err
		}
		kind = planKind
		steps = append(steps, planSteps...)

		oversold := false
		for _, planned := range plan {
			order := planned.order
			if _, err := repo.CreateOrder(ctx, &order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: insert order")
			}
			for i := range planned.lines {
				planned.lines[i].OrderID = order.ID
			}
			if err := repo.CreateOrderLines(ctx, planned.lines); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: insert order lines")
			}

			if kind == enums.OrderKindLaboratory {
				for _, line := range planned.lines {
					remaining, err := store.DecrementStock(ctx, line.ProductID, line.Quantity)
					if err != nil {
						return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: decrement stock")
					}
					if remaining < 0 {
						oversold = true
						detail := fmt.Sprintf("product %s oversold by %d", line.ProductID, -remaining)
						steps = append(steps, stepDegraded(StepDecrementStock, detail))
						s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
							"order_id":   order.ID.String(),
							"product_id": line.ProductID.String(),
							"remaining":  remaining,
						}), "stock went negative at checkout")
					}
				}
			}

			order.Lines = planned.lines
			evt := payloads.NewOrderEvent(order, "")
			evt.Kind = kind
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         Actor{UserID: input.OrderedBy, Role: enums.UserRolePatient}.ref(),
				Data:          evt,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order_created")
			}
			createdIDs = append(createdIDs, order.ID)
		}
		if kind == enums.OrderKindLaboratory && !oversold {
			steps = append(steps, stepSuccess(StepDecrementStock))
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create orders")
		}
		s.logg.Error(ctx, "checkout failed", err)
		return nil, err
	}

	for range createdIDs {
		s.metrics.IncCreated(kind.String())
	}
	for _, step := range steps {
		s.metrics.ObserveStep(step.Step, step.Outcome)
	}

	rows, err := s.repo.FindByIDs(ctx, createdIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload orders")
	}
	result := &CreateOrdersResult{
		Orders: make([]OrderDTO, 0, len(rows)),
		Steps:  steps,
		Kind:   kind,
	}
	for i := range rows {
		result.Orders = append(result.Orders, NewOrderDTO(&rows[i]))
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"kind":        kind.String(),
		"order_count": len(result.Orders),
	}), "checkout split into orders")
	return result, nil
}

// planCheckout groups cart lines by the laboratory owning each product, in
// first-appearance order.
func (s *service) planCheckout(ctx context.Context, store ProductStore, input CreateOrdersInput) ([]plannedOrder, enums.OrderKind, []StepResult, error) {
	base := models.Order{
		OrderedBy:    input.OrderedBy,
		Prescription: input.Prescription,
		Notes:        input.Notes,
		COD:          input.COD,
		TotalPrice:   decimal.Zero,
	}

	if len(input.Lines) == 0 {
		order := base
		order.Status = enums.OrderStatusConfirmed
		order.NeedAssignment = input.NeedAssignment
		return []plannedOrder{{order: order}}, enums.OrderKindPrescription, nil, nil
	}

	ids := make([]uuid.UUID, 0, len(input.Lines))
	seen := make(map[uuid.UUID]struct{}, len(input.Lines))
	for _, line := range input.Lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	products, err := store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, "", nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: load products")
	}

	var (
		steps    []StepResult
		labOrder []uuid.UUID
		groups   = map[uuid.UUID]*plannedOrder{}
	)
	for _, line := range input.Lines {
		p, ok := products[line.ProductID]
		if !ok || p.OwnerID == uuid.Nil {
			steps = append(steps, stepDegraded(StepResolveProduct, fmt.Sprintf("product %s not found; line dropped", line.ProductID)))
			s.logg.Warn(s.logg.WithField(ctx, "product_id", line.ProductID.String()), "dropping cart line with unknown product")
			continue
		}
		group, ok := groups[p.OwnerID]
		if !ok {
			labID := p.OwnerID
			order := base
			order.LaboratoryUserID = &labID
			order.Status = enums.OrderStatusConfirmed
			group = &plannedOrder{order: order}
			groups[labID] = group
			labOrder = append(labOrder, labID)
		}
		unit := p.Price
		group.lines = append(group.lines, models.OrderLine{ProductID: p.ID, Quantity: line.Quantity, UnitPrice: unit})
		group.order.TotalPrice = group.order.TotalPrice.Add(unit.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	if len(groups) == 0 {
		order := base
		order.Status = enums.OrderStatusPending
		order.NeedAssignment = true
		lines := make([]models.OrderLine, 0, len(input.Lines))
		for _, line := range input.Lines {
			lines = append(lines, models.OrderLine{ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: decimal.Zero})
		}
		s.logg.Warn(ctx, "no laboratory resolved for checkout; creating fallback order")
		return []plannedOrder{{order: order, lines: lines}}, enums.OrderKindFallback, steps, nil
	}

	if len(steps) == 0 {
		steps = append(steps, stepSuccess(StepResolveProduct))
	}
	plan := make([]plannedOrder, 0, len(labOrder))
	for _, labID := range labOrder {
		plan = append(plan, *groups[labID])
	}
	return plan, enums.OrderKindLaboratory, steps, nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
