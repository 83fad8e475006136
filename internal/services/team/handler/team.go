package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"prepstock-system/internal/database/models"
	"prepstock-system/internal/identity"
	"prepstock-system/internal/logger"
	"prepstock-system/internal/serviceerr"
)

const (
	TEAM_MEMBERS_CACHE_PREFIX = "team:members:"
	INVENTORY_CACHE_PREFIX    = "inventory:user:"
	CACHE_TTL_SHORT           = 5 * time.Minute
)

type TeamHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewTeamHandler(db *gorm.DB, redisClient *redis.Client) *TeamHandler {
	return &TeamHandler{
		db:    db,
		redis: redisClient,
	}
}

type TeamView struct {
	ID        string    `json:"id"`
	TeamName  string    `json:"team_name"`
	OwnerID   string    `json:"owner_id"`
	IsOwner   bool      `json:"is_owner"`
	CreatedAt time.Time `json:"created_at"`
}

type MemberView struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	Email          *string   `json:"email"`
	RestaurantName *string   `json:"restaurant_name"`
	CreatedAt      time.Time `json:"created_at"`
}

type RequestView struct {
	ID             string    `json:"id"`
	TeamID         string    `json:"team_id"`
	UserID         string    `json:"user_id"`
	Status         string    `json:"status"`
	Email          *string   `json:"email"`
	RestaurantName *string   `json:"restaurant_name"`
	CreatedAt      time.Time `json:"created_at"`
}

func (s *TeamHandler) invalidateMemberCaches(ctx context.Context, teamIDs ...string) {
	if s.redis == nil {
		return
	}
	for _, id := range teamIDs {
		_ = s.redis.Del(ctx, TEAM_MEMBERS_CACHE_PREFIX+id)
	}
}

// invalidateInventoryCaches drops cached inventory listings for every current
// member of the team plus any extra user ids. Membership changes widen or
// narrow what each member's listing may show, so their cached snapshots are
// no longer trustworthy.
func (s *TeamHandler) invalidateInventoryCaches(ctx context.Context, teamID string, extraUserIDs ...string) {
	if s.redis == nil {
		return
	}
	var userIDs []string
	if err := s.db.WithContext(ctx).Model(&models.TeamMembership{}).
		Where("team_id = ?", teamID).Pluck("user_id", &userIDs).Error; err != nil {
		logger.Warn("failed to list team members for inventory cache invalidation", zap.Error(err))
	}
	userIDs = append(userIDs, extraUserIDs...)
	for _, id := range userIDs {
		_ = s.redis.Del(ctx, INVENTORY_CACHE_PREFIX+id)
	}
}

// membershipOf returns the caller's membership row, or nil when the caller
// has no team.
func (s *TeamHandler) membershipOf(ctx context.Context, id identity.Identity) (*models.TeamMembership, error) {
	var membership models.TeamMembership
	err := s.db.WithContext(ctx).Where("user_id = ?", id.UserID).First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}
	return &membership, nil
}

// ownedTeam loads the caller's team and verifies ownership.
func (s *TeamHandler) ownedTeam(ctx context.Context, id identity.Identity, teamID string) (*models.Team, error) {
	var team models.Team
	if err := s.db.WithContext(ctx).First(&team, "id = ?", teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, serviceerr.New(serviceerr.NotFound, "Team not found")
		}
		return nil, serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}
	if team.OwnerID != id.UserID {
		return nil, serviceerr.New(serviceerr.Forbidden, "Only the team owner can do that")
	}
	return &team, nil
}

func (s *TeamHandler) MyTeam(ctx context.Context, id identity.Identity) (*TeamView, error) {
	if !id.Authenticated() {
		return nil, serviceerr.New(serviceerr.Unauthenticated, "Not authenticated")
	}

	membership, err := s.membershipOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, nil
	}

	var team models.Team
	if err := s.db.WithContext(ctx).First(&team, "id = ?", membership.TeamID).Error; err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}
	return &TeamView{
		ID:        team.ID,
		TeamName:  team.TeamName,
		OwnerID:   team.OwnerID,
		IsOwner:   team.OwnerID == id.UserID,
		CreatedAt: team.CreatedAt,
	}, nil
}

// CreateTeam inserts the team and its owner membership in one transaction; a
// team can never exist without an owner row.
func (s *TeamHandler) CreateTeam(ctx context.Context, id identity.Identity, name string) (*TeamView, error) {
	if !id.Authenticated() {
		return nil, serviceerr.New(serviceerr.Unauthenticated, "Not authenticated")
	}
	if name == "" {
		return nil, serviceerr.New(serviceerr.Invalid, "Team name is required")
	}

	membership, err := s.membershipOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if membership != nil {
		return nil, serviceerr.New(serviceerr.Conflict, "You already belong to a team")
	}

	exists, err := s.TeamNameExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, serviceerr.New(serviceerr.Conflict, "A team with this name already exists")
	}

	team := models.Team{TeamName: name, OwnerID: id.UserID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&team).Error; err != nil {
			return err
		}
		owner := models.TeamMembership{
			TeamID: team.ID,
			UserID: id.UserID,
			Role:   models.RoleOwner,
		}
		return tx.Create(&owner).Error
	})
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "Error creating team", err)
	}

	logger.Info("team created", zap.String("team_id", team.ID), zap.String("owner_id", id.UserID))
	return &TeamView{
		ID:        team.ID,
		TeamName:  team.TeamName,
		OwnerID:   team.OwnerID,
		IsOwner:   true,
		CreatedAt: team.CreatedAt,
	}, nil
}

// TeamNameExists mirrors the privileged name-existence lookup: it answers
// without exposing the team row itself.
func (s *TeamHandler) TeamNameExists(ctx context.Context, name string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Team{}).Where("team_name = ?", name).Count(&count).Error
	if err != nil {
		return false, serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}
	return count > 0, nil
}

// teamIDByName mirrors the privileged id-by-name lookup.
func (s *TeamHandler) teamIDByName(ctx context.Context, name string) (string, error) {
	var team models.Team
	err := s.db.WithContext(ctx).Select("id").Where("team_name = ?", name).First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", serviceerr.New(serviceerr.NotFound, "No team found with that name")
	} else if err != nil {
		return "", serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}
	return team.ID, nil
}

func (s *TeamHandler) RequestToJoin(ctx context.Context, id identity.Identity, name string) (*RequestView, error) {
	if !id.Authenticated() {
		return nil, serviceerr.New(serviceerr.Unauthenticated, "Not authenticated")
	}
	if name == "" {
		return nil, serviceerr.New(serviceerr.Invalid, "Team name is required")
	}

	teamID, err := s.teamIDByName(ctx, name)
	if err != nil {
		return nil, err
	}

	request := models.JoinRequest{TeamID: teamID, UserID: id.UserID, Status: models.RequestPending}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.JoinRequest
		err := tx.Where("user_id = ? AND team_id = ? AND status = ?",
			id.UserID, teamID, models.RequestPending).First(&existing).Error
		if err == nil {
			return serviceerr.New(serviceerr.Conflict, "You already have a pending request for this team")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&request).Error
	})
	if err != nil {
		var svcErr *serviceerr.Error
		if errors.As(err, &svcErr) {
			return nil, svcErr
		}
		return nil, serviceerr.Wrap(serviceerr.Internal, "Error sending join request", err)
	}

	return &RequestView{
		ID:        request.ID,
		TeamID:    request.TeamID,
		UserID:    request.UserID,
		Status:    request.Status,
		CreatedAt: request.CreatedAt,
	}, nil
}

// memberProfile is the profile lookup behind member and request lists. A
// missing profile degrades to null fields rather than failing the list.
func (s *TeamHandler) memberProfile(ctx context.Context, userID string) (email, restaurant *string) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "id = ?", userID).Error; err != nil {
		return nil, nil
	}
	return profile.Email, profile.RestaurantName
}

func (s *TeamHandler) ListMembers(ctx context.Context, id identity.Identity) ([]MemberView, error) {
	if !id.Authenticated() {
		return nil, serviceerr.New(serviceerr.Unauthenticated, "Not authenticated")
	}

	membership, err := s.membershipOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return []MemberView{}, nil
	}

	cacheKey := TEAM_MEMBERS_CACHE_PREFIX + membership.TeamID
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var views []MemberView
			if json.Unmarshal([]byte(cached), &views) == nil {
				return views, nil
			}
		}
	}

	var memberships []models.TeamMembership
	err = s.db.WithContext(ctx).Where("team_id = ?", membership.TeamID).
		Order("created_at").Find(&memberships).Error
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}

	views := make([]MemberView, 0, len(memberships))
	for _, m := range memberships {
		email, restaurant := s.memberProfile(ctx, m.UserID)
		views = append(views, MemberView{
			ID:             m.ID,
			UserID:         m.UserID,
			Role:           m.Role,
			Email:          email,
			RestaurantName: restaurant,
			CreatedAt:      m.CreatedAt,
		})
	}

	if s.redis != nil {
		if data, err := json.Marshal(views); err == nil {
			_ = s.redis.Set(ctx, cacheKey, data, CACHE_TTL_SHORT)
		}
	}
	return views, nil
}

func (s *TeamHandler) ListPendingRequests(ctx context.Context, id identity.Identity) ([]RequestView, error) {
	if !id.Authenticated() {
		return nil, serviceerr.New(serviceerr.Unauthenticated, "Not authenticated")
	}

	membership, err := s.membershipOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return []RequestView{}, nil
	}
	if _, err := s.ownedTeam(ctx, id, membership.TeamID); err != nil {
		return nil, err
	}

	var requests []models.JoinRequest
	err = s.db.WithContext(ctx).
		Where("team_id = ? AND status = ?", membership.TeamID, models.RequestPending).
		Order("created_at").Find(&requests).Error
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}

	views := make([]RequestView, 0, len(requests))
	for _, r := range requests {
		email, restaurant := s.memberProfile(ctx, r.UserID)
		views = append(views, RequestView{
			ID:             r.ID,
			TeamID:         r.TeamID,
			UserID:         r.UserID,
			Status:         r.Status,
			Email:          email,
			RestaurantName: restaurant,
			CreatedAt:      r.CreatedAt,
		})
	}
	return views, nil
}

func (s *TeamHandler) MyPendingRequest(ctx context.Context, id identity.Identity) (*RequestView, error) {
	if !id.Authenticated() {
		return nil, serviceerr.New(serviceerr.Unauthenticated, "Not authenticated")
	}

	var request models.JoinRequest
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", id.UserID, models.RequestPending).
		First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}

	return &RequestView{
		ID:        request.ID,
		TeamID:    request.TeamID,
		UserID:    request.UserID,
		Status:    request.Status,
		CreatedAt: request.CreatedAt,
	}, nil
}

// ApproveRequest flips the request to approved and inserts the member row in
// one transaction. The status guard on the UPDATE means a second approval
// finds no pending row and cannot create a second membership.
func (s *TeamHandler) ApproveRequest(ctx context.Context, id identity.Identity, requestID string) error {
	if !id.Authenticated() {
		return serviceerr.New(serviceerr.Unauthenticated, "Not authenticated")
	}

	var request models.JoinRequest
	if err := s.db.WithContext(ctx).First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return serviceerr.New(serviceerr.NotFound, "Join request not found")
		}
		return serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}
	if _, err := s.ownedTeam(ctx, id, request.TeamID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.JoinRequest{}).
			Where("id = ? AND status = ?", requestID, models.RequestPending).
			Update("status", models.RequestApproved)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return serviceerr.New(serviceerr.Conflict, "Request is no longer pending")
		}

		member := models.TeamMembership{
			TeamID: request.TeamID,
			UserID: request.UserID,
			Role:   models.RoleMember,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		var svcErr *serviceerr.Error
		if errors.As(err, &svcErr) {
			return svcErr
		}
		return serviceerr.Wrap(serviceerr.Internal, "Error approving request", err)
	}

	s.invalidateMemberCaches(ctx, request.TeamID)
	s.invalidateInventoryCaches(ctx, request.TeamID)
	logger.Info("join request approved",
		zap.String("request_id", requestID),
		zap.String("team_id", request.TeamID),
	)
	return nil
}

func (s *TeamHandler) DenyRequest(ctx context.Context, id identity.Identity, requestID string) error {
	if !id.Authenticated() {
		return serviceerr.New(serviceerr.Unauthenticated, "Not authenticated")
	}

	var request models.JoinRequest
	if err := s.db.WithContext(ctx).First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return serviceerr.New(serviceerr.NotFound, "Join request not found")
		}
		return serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}
	if _, err := s.ownedTeam(ctx, id, request.TeamID); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.JoinRequest{}).
		Where("id = ? AND status = ?", requestID, models.RequestPending).
		Update("status", models.RequestDenied)
	if res.Error != nil {
		return serviceerr.Wrap(serviceerr.Internal, "Error denying request", res.Error)
	}
	if res.RowsAffected == 0 {
		return serviceerr.New(serviceerr.Conflict, "Request is no longer pending")
	}
	return nil
}

// CancelRequest deletes the requester's own pending row.
func (s *TeamHandler) CancelRequest(ctx context.Context, id identity.Identity, requestID string) error {
	if !id.Authenticated() {
		return serviceerr.New(serviceerr.Unauthenticated, "Not authenticated")
	}

	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND status = ?", requestID, id.UserID, models.RequestPending).
		Delete(&models.JoinRequest{})
	if res.Error != nil {
		return serviceerr.Wrap(serviceerr.Internal, "Error cancelling request", res.Error)
	}
	if res.RowsAffected == 0 {
		return serviceerr.New(serviceerr.NotFound, "Pending request not found")
	}
	return nil
}

// RemoveMember deletes a membership row. Outstanding join requests from the
// removed user are left untouched.
func (s *TeamHandler) RemoveMember(ctx context.Context, id identity.Identity, membershipID string) error {
	if !id.Authenticated() {
		return serviceerr.New(serviceerr.Unauthenticated, "Not authenticated")
	}

	var membership models.TeamMembership
	if err := s.db.WithContext(ctx).First(&membership, "id = ?", membershipID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return serviceerr.New(serviceerr.NotFound, "Member not found")
		}
		return serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}
	if _, err := s.ownedTeam(ctx, id, membership.TeamID); err != nil {
		return err
	}
	if membership.Role == models.RoleOwner {
		return serviceerr.New(serviceerr.Invalid, "The owner cannot be removed from the team")
	}

	if err := s.db.WithContext(ctx).Delete(&membership).Error; err != nil {
		return serviceerr.Wrap(serviceerr.Internal, "Error removing member", err)
	}

	s.invalidateMemberCaches(ctx, membership.TeamID)
	s.invalidateInventoryCaches(ctx, membership.TeamID, membership.UserID)
	return nil
}
