package order

import (
	"context"
	"time"

	"deliveroute-be/internal/actor"
	"deliveroute-be/internal/events"
	"deliveroute-be/internal/logger"
	"deliveroute-be/internal/metrics"

	"go.uber.org/zap"
)

// Service is the action handler for forward transitions. Each actor-facing
// call performs: load order with version, validate the requested edge,
// attempt the versioned write, retry once against a fresh snapshot on
// conflict, then emit the transition event.
type Service struct {
	repo    Repository
	emitter events.Emitter
}

func NewService(repo Repository, emitter events.Emitter) *Service {
	return &Service{repo: repo, emitter: emitter}
}

type AdvanceParams struct {
	// EstimatedMinutes accompanies owner acceptance; informational only.
	EstimatedMinutes *int
	// DeliveryProof is required on complete_delivery.
	DeliveryProof *string
}

func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

func (s *Service) TerminalOrders(ctx context.Context, since time.Time, limit int) ([]*Order, error) {
	return s.repo.ListTerminalSince(ctx, since, limit)
}

// Advance applies one actor action. Owner acceptance chains the implicit
// confirmed -> preparing step so the kitchen starts immediately.
func (s *Service) Advance(ctx context.Context, act actor.Actor, orderID string, action Action, params AdvanceParams) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("order_id", orderID),
		zap.String("actor_role", string(act.Role)),
		zap.String("action", string(action)),
	)

	if action == ActionCompleteDelivery && (params.DeliveryProof == nil || *params.DeliveryProof == "") {
		return nil, ErrProofRequired
	}

	if err := s.transition(ctx, act, orderID, action, params, log); err != nil {
		return nil, err
	}

	if action == ActionAccept {
		// Implicit kitchen start. If a racing cancel won in between, the
		// order stays confirmed-then-cancelled; that outcome stands.
		sys := actor.Actor{ID: "engine", Role: actor.RoleSystem}
		if err := s.transition(ctx, sys, orderID, ActionStartPreparing, AdvanceParams{}, log); err != nil {
			log.Warn("implicit start_preparing did not apply", zap.Error(err))
		}
	}

	return s.repo.GetOrder(ctx, orderID)
}

func (s *Service) transition(ctx context.Context, act actor.Actor, orderID string, action Action, params AdvanceParams, log *zap.Logger) error {
	for attempt := 0; attempt < 2; attempt++ {
		o, err := s.repo.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := EnsureParticipant(o, act); err != nil {
			return err
		}

		next, err := Resolve(o.Status, act.Role, action)
		if err != nil {
			return err
		}

		patch := TransitionPatch{}
		if action == ActionAccept {
			patch.EstimatedPrepMinutes = params.EstimatedMinutes
		}
		if action == ActionPickUp && act.Role == actor.RoleRider {
			riderID := act.ID
			patch.RiderID = &riderID
		}
		if action == ActionCompleteDelivery {
			patch.DeliveryProof = params.DeliveryProof
		}

		ok, err := s.repo.UpdateStatusCAS(ctx, o.ID, o.Version, next, patch)
		if err != nil {
			return err
		}
		if !ok {
			metrics.VersionConflicts.Inc()
			log.Debug("version conflict on transition", zap.Int("attempt", attempt))
			continue
		}

		metrics.TransitionsCommitted.Inc()
		s.emit(ctx, o.ID, o.Status, next, act.Role, log)
		return nil
	}
	return ErrConcurrentModification
}

func (s *Service) emit(ctx context.Context, orderID string, from, to Status, role actor.Role, log *zap.Logger) {
	ev := events.StatusChanged{
		OrderID:    orderID,
		FromStatus: string(from),
		ToStatus:   string(to),
		ActorRole:  string(role),
		OccurredAt: time.Now().UTC(),
	}
	// The transition is already committed; a publish failure must not
	// unwind it.
	if err := s.emitter.StatusChanged(ctx, ev); err != nil {
		log.Warn("failed to publish status change event", zap.Error(err))
	}
}
