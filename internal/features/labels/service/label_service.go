package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shipping-gateway/internal/core/logger"
	cdomain "shipping-gateway/internal/features/couriers/domain"
	cports "shipping-gateway/internal/features/couriers/ports"
	"shipping-gateway/internal/features/labels/domain"
	"shipping-gateway/internal/features/labels/ports"
	qdomain "shipping-gateway/internal/features/quoting/domain"
	tports "shipping-gateway/internal/features/tracking/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// shippableOrderStatuses lists order states a label may be created from.
var shippableOrderStatuses = map[string]bool{
	"paid":          true,
	"processing":    true,
	"ready_to_ship": true,
}

// LabelService owns the shipping label state machine. Every transition is
// written with a compare-and-set on the current status, so concurrent
// conflicting transitions fail with a StateConflictError instead of
// silently overwriting each other.
type LabelService struct {
	labels   ports.LabelRepository
	orders   ports.OrderClient
	registry *cports.Registry
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewLabelService creates a LabelService.
func NewLabelService(labels ports.LabelRepository, orders ports.OrderClient, registry *cports.Registry) *LabelService {
	return &LabelService{
		labels:   labels,
		orders:   orders,
		registry: registry,
		logger:   logger.Get(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// CreateRequest carries everything needed to draft a label for an order.
type CreateRequest struct {
	OrderID string              `json:"order_id"`
	Quote   qdomain.Quote       `json:"quote"`
	Sender  domain.Address      `json:"sender"`
	Package qdomain.PackageSpec `json:"package"`

	WithInsurance     bool    `json:"with_insurance"`
	InsuredValue      float64 `json:"insured_value,omitempty"`
	WithCOD           bool    `json:"with_cod"`
	CODAmount         float64 `json:"cod_amount,omitempty"`
	RequiresSignature bool    `json:"requires_signature"`
}

// Create validates the order and the label inputs and stores a DRAFT label.
// Nothing is created when validation fails.
func (s *LabelService) Create(ctx context.Context, req CreateRequest) (*domain.ShippingLabel, error) {
	order, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", req.OrderID, err)
	}
	if !shippableOrderStatuses[strings.ToLower(order.Status)] {
		return nil, domain.NewValidationError("order.status",
			fmt.Sprintf("order in status %q is not shippable", order.Status))
	}

	recipient := order.ShippingAddress
	if recipient.Email == "" {
		recipient.Email = order.CustomerContact.Email
	}

	now := s.now()
	label := &domain.ShippingLabel{
		ID:                s.newID(),
		OrderID:           req.OrderID,
		CarrierID:         req.Quote.CarrierID,
		CarrierName:       req.Quote.CarrierName,
		ServiceCode:       req.Quote.ServiceCode,
		ServiceName:       req.Quote.ServiceName,
		Class:             req.Quote.Class,
		Status:            domain.StatusDraft,
		Sender:            req.Sender,
		Recipient:         recipient,
		Package:           req.Package,
		Cost:              req.Quote.Cost,
		WithInsurance:     req.WithInsurance,
		InsuredValue:      req.InsuredValue,
		WithCOD:           req.WithCOD,
		CODAmount:         req.CODAmount,
		RequiresSignature: req.RequiresSignature,
		SourceRef:         req.Quote.SourceRef,
		DeliveryEstimate:  req.Quote.Timeframe.DeliveryEstimate,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := label.Validate(); err != nil {
		return nil, err
	}
	if err := s.labels.Create(ctx, label); err != nil {
		return nil, fmt.Errorf("failed to store label: %w", err)
	}

	s.logger.Info("Shipping label drafted",
		zap.String("label_id", label.ID),
		zap.String("order_id", label.OrderID),
		zap.String("carrier", label.CarrierID),
	)
	return label, nil
}

// Generate books the shipment with the owning provider and moves the label
// from DRAFT to GENERATED. On provider failure the label stays DRAFT and the
// provider's retryable classification reaches the caller untouched.
func (s *LabelService) Generate(ctx context.Context, labelID string) (*domain.ShippingLabel, error) {
	label, err := s.labels.Get(ctx, labelID)
	if err != nil {
		return nil, err
	}
	if label.Status != domain.StatusDraft {
		return nil, domain.NewStateConflictError(label.ID, label.Status, "generate")
	}

	now := s.now()
	if provider, ok := s.registry.Get(cdomain.ProviderID(label.CarrierID)); ok {
		result, err := provider.Book(ctx, s.bookingRequest(label))
		if err != nil {
			return nil, err
		}
		label.TrackingNumber = result.TrackingNumber
		label.ProviderRef = result.ProviderRef
		if result.Cost > 0 {
			label.Cost.Total = result.Cost
		}
		if !result.PickupEstimate.IsZero() {
			label.PickupEstimate = result.PickupEstimate
		}
		if !result.DeliveryEstimate.IsZero() {
			label.DeliveryEstimate = result.DeliveryEstimate
		}
		if result.LabelURL != "" {
			label.Artifact = &domain.LabelArtifact{URL: result.LabelURL, Format: "url"}
		}
		label.ProviderPayload = result.Raw
	} else {
		// Static rate-table carriers have no booking API; the tracking
		// number is minted locally and handed to the carrier on pickup.
		label.TrackingNumber = localTrackingNumber(label.CarrierID, s.newID())
	}

	label.Status = domain.StatusGenerated
	label.GeneratedAt = &now
	label.UpdatedAt = now

	if err := s.labels.Update(ctx, label, domain.StatusDraft); err != nil {
		if errors.Is(err, ports.ErrStatusChanged) {
			return nil, domain.NewStateConflictError(label.ID, label.Status, "generate")
		}
		return nil, err
	}

	s.notifyOrderSystem(ctx, label)
	s.logger.Info("Shipping label generated",
		zap.String("label_id", label.ID),
		zap.String("tracking_number", label.TrackingNumber),
	)
	return label, nil
}

// MarkPrinted records the label being printed. Legal only from GENERATED.
func (s *LabelService) MarkPrinted(ctx context.Context, labelID, userID string) (*domain.ShippingLabel, error) {
	label, err := s.labels.Get(ctx, labelID)
	if err != nil {
		return nil, err
	}
	if label.Status != domain.StatusGenerated {
		return nil, domain.NewStateConflictError(label.ID, label.Status, "print")
	}

	now := s.now()
	label.Status = domain.StatusPrinted
	label.PrintedAt = &now
	label.PrintedBy = userID
	label.UpdatedAt = now

	if err := s.labels.Update(ctx, label, domain.StatusGenerated); err != nil {
		if errors.Is(err, ports.ErrStatusChanged) {
			return nil, domain.NewStateConflictError(label.ID, label.Status, "print")
		}
		return nil, err
	}
	return label, nil
}

// MarkAttached records the label being attached to the package. Legal only
// from PRINTED.
func (s *LabelService) MarkAttached(ctx context.Context, labelID, userID string) (*domain.ShippingLabel, error) {
	label, err := s.labels.Get(ctx, labelID)
	if err != nil {
		return nil, err
	}
	if label.Status != domain.StatusPrinted {
		return nil, domain.NewStateConflictError(label.ID, label.Status, "attach")
	}

	now := s.now()
	label.Status = domain.StatusAttached
	label.AttachedAt = &now
	label.AttachedBy = userID
	label.UpdatedAt = now

	if err := s.labels.Update(ctx, label, domain.StatusPrinted); err != nil {
		if errors.Is(err, ports.ErrStatusChanged) {
			return nil, domain.NewStateConflictError(label.ID, label.Status, "attach")
		}
		return nil, err
	}
	return label, nil
}

// Cancel voids a not-yet-shipped label. For dynamic couriers the remote
// booking is cancelled first; the local record is only touched after the
// provider acknowledges.
func (s *LabelService) Cancel(ctx context.Context, labelID, reason string) (*domain.ShippingLabel, error) {
	label, err := s.labels.Get(ctx, labelID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(label.Status, domain.StatusCancelled) {
		return nil, domain.NewStateConflictError(label.ID, label.Status, "cancel")
	}
	previous := label.Status

	if label.Status != domain.StatusDraft && label.ProviderRef != "" {
		if provider, ok := s.registry.Get(cdomain.ProviderID(label.CarrierID)); ok {
			ref := cdomain.ShipmentRef{TrackingNumber: label.TrackingNumber, ProviderRef: label.ProviderRef}
			if err := provider.Cancel(ctx, ref, reason); err != nil {
				return nil, err
			}
		}
	}

	now := s.now()
	label.Status = domain.StatusCancelled
	label.CancelledAt = &now
	label.CancellationReason = reason
	label.UpdatedAt = now

	if err := s.labels.Update(ctx, label, previous); err != nil {
		if errors.Is(err, ports.ErrStatusChanged) {
			return nil, domain.NewStateConflictError(label.ID, label.Status, "cancel")
		}
		return nil, err
	}

	s.logger.Info("Shipping label cancelled",
		zap.String("label_id", label.ID),
		zap.String("reason", reason),
	)
	return label, nil
}

// Get returns a label by id.
func (s *LabelService) Get(ctx context.Context, labelID string) (*domain.ShippingLabel, error) {
	return s.labels.Get(ctx, labelID)
}

// Recipient returns the customer contact behind a tracking number, used to
// address shipment notifications.
func (s *LabelService) Recipient(ctx context.Context, trackingNumber string) (tports.CustomerContact, error) {
	label, err := s.labels.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return tports.CustomerContact{}, err
	}
	return tports.CustomerContact{
		Name:  label.Recipient.Name,
		Phone: label.Recipient.Phone,
		Email: label.Recipient.Email,
	}, nil
}

// ActiveShipments lists shipments still in motion for the polling source.
func (s *LabelService) ActiveShipments(ctx context.Context) ([]tports.ActiveShipment, error) {
	labels, err := s.labels.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	shipments := make([]tports.ActiveShipment, 0, len(labels))
	for _, label := range labels {
		shipments = append(shipments, tports.ActiveShipment{
			TrackingNumber: label.TrackingNumber,
			ProviderRef:    label.ProviderRef,
			Carrier:        label.CarrierID,
		})
	}
	return shipments, nil
}

// MarkShipped transitions the label owning a tracking number to SHIPPED and
// stamps the actual pickup time. Repeated calls are no-ops once shipped.
func (s *LabelService) MarkShipped(ctx context.Context, trackingNumber string, pickedUpAt time.Time) error {
	label, err := s.labels.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return err
	}
	if label.Status == domain.StatusShipped {
		return nil
	}
	if !domain.CanTransition(label.Status, domain.StatusShipped) {
		return domain.NewStateConflictError(label.ID, label.Status, "ship")
	}
	previous := label.Status

	label.Status = domain.StatusShipped
	label.ActualPickupDate = &pickedUpAt
	label.UpdatedAt = s.now()

	if err := s.labels.Update(ctx, label, previous); err != nil {
		if errors.Is(err, ports.ErrStatusChanged) {
			return domain.NewStateConflictError(label.ID, label.Status, "ship")
		}
		return err
	}
	return nil
}

// MarkDelivered stamps the actual delivery time and tells the order system.
// The label's status stays SHIPPED; delivery is tracked by timestamp only.
func (s *LabelService) MarkDelivered(ctx context.Context, trackingNumber string, deliveredAt time.Time) error {
	label, err := s.labels.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return err
	}
	if label.ActualDeliveryDate != nil {
		return nil
	}

	label.ActualDeliveryDate = &deliveredAt
	label.UpdatedAt = s.now()

	if err := s.labels.Update(ctx, label, label.Status); err != nil {
		return err
	}

	outcome := ports.ShippingOutcome{
		Carrier:           label.CarrierName,
		Cost:              label.Cost.Total,
		TrackingNumber:    label.TrackingNumber,
		EstimatedDelivery: label.DeliveryEstimate,
		DeliveredAt:       &deliveredAt,
	}
	if err := s.orders.UpdateShippingOutcome(ctx, label.OrderID, outcome); err != nil {
		s.logger.Warn("Failed to report delivery to order system",
			zap.String("label_id", label.ID),
			zap.String("order_id", label.OrderID),
			zap.Error(err),
		)
	}
	return nil
}

func (s *LabelService) bookingRequest(label *domain.ShippingLabel) cdomain.BookingRequest {
	serviceType := cdomain.ServiceInstant
	if label.Class == qdomain.RateClassSameDay {
		serviceType = cdomain.ServiceSameDay
	}
	return cdomain.BookingRequest{
		OrderID:      label.OrderID,
		Pickup:       toContact(label.Sender),
		Dropoff:      toContact(label.Recipient),
		Package:      label.Package,
		ServiceType:  serviceType,
		QuoteRef:     label.SourceRef,
		CODAmount:    label.CODAmount,
		InsuredValue: label.InsuredValue,
	}
}

func toContact(addr domain.Address) cdomain.Contact {
	contact := cdomain.Contact{
		Name:       addr.Name,
		Phone:      addr.Phone,
		Address:    addr.Street,
		City:       addr.City,
		Province:   addr.Province,
		PostalCode: addr.PostalCode,
	}
	if addr.Coordinate != nil {
		contact.Coordinate = *addr.Coordinate
	}
	return contact
}

// notifyOrderSystem reports the booked shipment back to the order system.
// Failures are logged, not surfaced: the label is already generated and the
// order record catches up on the next delivery update.
func (s *LabelService) notifyOrderSystem(ctx context.Context, label *domain.ShippingLabel) {
	outcome := ports.ShippingOutcome{
		Carrier:           label.CarrierName,
		Cost:              label.Cost.Total,
		TrackingNumber:    label.TrackingNumber,
		EstimatedDelivery: label.DeliveryEstimate,
	}
	if err := s.orders.UpdateShippingOutcome(ctx, label.OrderID, outcome); err != nil {
		s.logger.Warn("Failed to report shipment to order system",
			zap.String("label_id", label.ID),
			zap.String("order_id", label.OrderID),
			zap.Error(err),
		)
	}
}

// localTrackingNumber mints a tracking number for carriers without a booking
// API.
func localTrackingNumber(carrierID, id string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(suffix) > 12 {
		suffix = suffix[:12]
	}
	return fmt.Sprintf("%s-%s", strings.ToUpper(carrierID), suffix)
}
