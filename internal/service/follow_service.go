package service

import (
	"context"

	"lumen/internal/models"
	"lumen/internal/observability"
	"lumen/internal/repository"

	"go.uber.org/zap"
)

// FollowService maintains the follow graph. Each edge is stored twice, in
// the actor's following and the target's followers, and the two records are
// written one after the other.
type FollowService struct {
	userRepo repository.UserRepository
	resolver *Resolver
	logger   *zap.Logger
}

// FollowResult holds both sides of the edge after the change.
type FollowResult struct {
	Actor  *models.ProfileView   `json:"actor"`
	Target *models.PublicProfile `json:"target"`
}

func NewFollowService(userRepo repository.UserRepository, resolver *Resolver, logger *zap.Logger) *FollowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FollowService{userRepo: userRepo, resolver: resolver, logger: logger}
}

func (s *FollowService) Follow(ctx context.Context, actorID, targetID string) (*FollowResult, error) {
	return s.apply(ctx, "follow", actorID, targetID, func(actor, target *models.User) (bool, bool) {
		return actor.Following.Add(target.ID), target.Followers.Add(actor.ID)
	})
}

func (s *FollowService) Unfollow(ctx context.Context, actorID, targetID string) (*FollowResult, error) {
	return s.apply(ctx, "unfollow", actorID, targetID, func(actor, target *models.User) (bool, bool) {
		return actor.Following.Remove(target.ID), target.Followers.Remove(actor.ID)
	})
}

func (s *FollowService) apply(
	ctx context.Context,
	op, actorID, targetID string,
	mutate func(actor, target *models.User) (actorChanged, targetChanged bool),
) (*FollowResult, error) {
	if actorID == targetID {
		return nil, models.NewValidationError("You cannot " + op + " yourself")
	}

	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	actor.EnsureSets()
	target.EnsureSets()

	actorChanged, targetChanged := mutate(actor, target)
	if actorChanged {
		if err := s.userRepo.Update(ctx, actor); err != nil {
			return nil, err
		}
	}
	if targetChanged {
		if err := s.userRepo.Update(ctx, target); err != nil {
			if !actorChanged {
				return nil, err
			}
			observability.InconsistentWrites.WithLabelValues(op).Inc()
			observability.LoggerFromContext(ctx, s.logger).Error("follow edge written on one side only",
				zap.String("operation", op),
				zap.String("actor_id", actorID),
				zap.String("target_id", targetID),
				zap.Error(err))
			return nil, models.NewInconsistentStateError("Relationship was only partially updated", err)
		}
	}
	if actorChanged || targetChanged {
		observability.RelationshipOps.WithLabelValues(op).Inc()
	}

	views, err := s.resolver.Profiles(ctx, []*models.User{actor, target})
	if err != nil {
		return nil, err
	}
	return &FollowResult{Actor: views[0], Target: views[1].Public()}, nil
}
