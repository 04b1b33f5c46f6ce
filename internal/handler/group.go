package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/osse101/riddlegroup/internal/domain"
	"github.com/osse101/riddlegroup/internal/group"
	"github.com/osse101/riddlegroup/internal/logger"
)

// GroupHandler exposes the group lifecycle over HTTP
type GroupHandler struct {
	service group.Service
}

func NewGroupHandler(service group.Service) *GroupHandler {
	return &GroupHandler{service: service}
}

type CreateGroupRequest struct {
	Caller         string `json:"caller" validate:"required,participant"`
	Creator        string `json:"creator" validate:"required,participant"`
	ExternalID     string `json:"external_id" validate:"max=256"`
	ChallengeID    string `json:"challenge_id" validate:"max=256"`
	Era            uint64 `json:"era"`
	AttemptCost    uint64 `json:"attempt_cost"`
	SubmissionCost uint64 `json:"submission_cost"`
}

type JoinGroupRequest struct {
	Participant string `json:"participant" validate:"required,participant"`
	AckCost     uint64 `json:"ack_cost"`
}

type LeaveGroupRequest struct {
	Participant string `json:"participant" validate:"required,participant"`
}

// CallerRequest identifies who performs a creator-only or privileged action
type CallerRequest struct {
	Caller string `json:"caller" validate:"required,participant"`
}

type CompleteGroupRequest struct {
	Caller  string `json:"caller" validate:"required,participant"`
	Success *bool  `json:"success" validate:"required"`
}

type GroupMembersResponse struct {
	GroupID int64    `json:"group_id"`
	Members []string `json:"members"`
	Count   int      `json:"count"`
}

type IsMemberResponse struct {
	GroupID     int64  `json:"group_id"`
	Participant string `json:"participant"`
	IsMember    bool   `json:"is_member"`
}

type ActiveGroupsResponse struct {
	Participant  string `json:"participant"`
	ActiveGroups uint64 `json:"active_groups"`
}

type GroupListResponse struct {
	State  domain.GroupState `json:"state"`
	Groups []domain.Group    `json:"groups"`
}

// HandleCreateGroup originates a group on behalf of the challenge contract
// @Summary Create group
// @Description Privileged. Opens a Forming group with the creator as first member and the era costs locked in.
// @Tags groups
// @Accept json
// @Produce json
// @Param request body CreateGroupRequest true "Group parameters"
// @Success 201 {object} domain.Group
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/groups [post]
func (h *GroupHandler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest[CreateGroupRequest](w, r, "Create group")
	if !ok {
		return
	}
	logger.FromContext(r.Context()).Debug("Create group request", "creator", req.Creator, "challenge_id", req.ChallengeID, "era", req.Era)

	g, err := h.service.CreateGroupFromNFT(r.Context(), req.Caller, domain.CreateGroupParams{
		Creator:        req.Creator,
		ExternalID:     req.ExternalID,
		ChallengeID:    req.ChallengeID,
		Era:            req.Era,
		AttemptCost:    req.AttemptCost,
		SubmissionCost: req.SubmissionCost,
	})
	if err != nil {
		respondServiceError(w, r, "Create group", err)
		return
	}

	respondJSON(w, http.StatusCreated, g)
}

// HandleJoinGroup adds a participant to a Forming group
// @Summary Join group
// @Description ack_cost must equal the group's locked attempt cost.
// @Tags groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body JoinGroupRequest true "Joiner"
// @Success 200 {object} DataResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/groups/{id}/join [post]
func (h *GroupHandler) HandleJoinGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}
	req, ok := decodeRequest[JoinGroupRequest](w, r, "Join group")
	if !ok {
		return
	}

	g, err := h.service.JoinGroup(r.Context(), groupID, req.Participant, req.AckCost)
	if err != nil {
		respondServiceError(w, r, "Join group", err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Message: MsgJoinedGroupSuccess, Data: g})
}

// HandleLeaveGroup removes a non-creator member from a Forming group
// @Summary Leave group
// @Tags groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body LeaveGroupRequest true "Leaver"
// @Success 200 {object} DataResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/groups/{id}/leave [post]
func (h *GroupHandler) HandleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}
	req, ok := decodeRequest[LeaveGroupRequest](w, r, "Leave group")
	if !ok {
		return
	}

	g, err := h.service.LeaveGroup(r.Context(), groupID, req.Participant)
	if err != nil {
		respondServiceError(w, r, "Leave group", err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Message: MsgLeftGroupSuccess, Data: g})
}

// HandleFinalizeGroup locks the member list and pools reputation
// @Summary Finalize group
// @Description Creator only. Validates composition and moves the group to Reserved.
// @Tags groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body CallerRequest true "Creator"
// @Success 200 {object} DataResponse
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/groups/{id}/finalize [post]
func (h *GroupHandler) HandleFinalizeGroup(w http.ResponseWriter, r *http.Request) {
	h.callerAction(w, r, "Finalize group", MsgGroupFinalizedSuccess, h.service.FinalizeGroup)
}

// HandleDisbandGroup dissolves a Forming group
// @Summary Disband group
// @Description Creator only. Charges the configured disband fee to the creator.
// @Tags groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body CallerRequest true "Creator"
// @Success 200 {object} DataResponse
// @Failure 402 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/groups/{id}/disband [post]
func (h *GroupHandler) HandleDisbandGroup(w http.ResponseWriter, r *http.Request) {
	h.callerAction(w, r, "Disband group", MsgGroupDisbandedSuccess, h.service.DisbandGroup)
}

// HandleActivateGroup starts a Reserved group's attempt
// @Summary Activate group
// @Description Privileged.
// @Tags groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body CallerRequest true "Challenge contract"
// @Success 200 {object} DataResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/groups/{id}/activate [post]
func (h *GroupHandler) HandleActivateGroup(w http.ResponseWriter, r *http.Request) {
	h.callerAction(w, r, "Activate group", MsgGroupActivatedSuccess,
		func(ctx context.Context, groupID int64, caller string) (*domain.Group, error) {
			return h.service.ActivateGroup(ctx, caller, groupID)
		})
}

// HandleCompleteGroup closes an Active group and pays out on success
// @Summary Complete group
// @Description Privileged. On success the reward pool is split by member reputation.
// @Tags groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body CompleteGroupRequest true "Outcome"
// @Success 200 {object} domain.GroupResult
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/groups/{id}/complete [post]
func (h *GroupHandler) HandleCompleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}
	req, ok := decodeRequest[CompleteGroupRequest](w, r, "Complete group")
	if !ok {
		return
	}

	result, err := h.service.CompleteGroup(r.Context(), req.Caller, groupID, *req.Success)
	if err != nil {
		respondServiceError(w, r, "Complete group", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// callerAction runs a mutation whose body carries only the caller
func (h *GroupHandler) callerAction(
	w http.ResponseWriter,
	r *http.Request,
	opName, successMsg string,
	action func(ctx context.Context, groupID int64, caller string) (*domain.Group, error),
) {
	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}
	req, ok := decodeRequest[CallerRequest](w, r, opName)
	if !ok {
		return
	}

	g, err := action(r.Context(), groupID, req.Caller)
	if err != nil {
		respondServiceError(w, r, opName, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Message: successMsg, Data: g})
}

// HandleGetGroup returns a group snapshot
// @Summary Get group
// @Tags groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} domain.Group
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/groups/{id} [get]
func (h *GroupHandler) HandleGetGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}

	g, err := h.service.GetGroup(r.Context(), groupID)
	if err != nil {
		respondServiceError(w, r, "Get group", err)
		return
	}

	respondJSON(w, http.StatusOK, g)
}

// HandleGetGroupMembers lists members in join order
// @Summary Get group members
// @Tags groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} GroupMembersResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/groups/{id}/members [get]
func (h *GroupHandler) HandleGetGroupMembers(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}

	members, err := h.service.GetGroupMembers(r.Context(), groupID)
	if err != nil {
		respondServiceError(w, r, "Get group members", err)
		return
	}

	respondJSON(w, http.StatusOK, GroupMembersResponse{GroupID: groupID, Members: members, Count: len(members)})
}

// HandleGetGroupCosts returns the era-locked costs
// @Summary Get group costs
// @Tags groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} domain.GroupCosts
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/groups/{id}/costs [get]
func (h *GroupHandler) HandleGetGroupCosts(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}

	costs, err := h.service.GetGroupCosts(r.Context(), groupID)
	if err != nil {
		respondServiceError(w, r, "Get group costs", err)
		return
	}

	respondJSON(w, http.StatusOK, costs)
}

// HandleIsGroupMember checks membership
// @Summary Check membership
// @Tags groups
// @Produce json
// @Param id path int true "Group ID"
// @Param participant query string true "Participant"
// @Success 200 {object} IsMemberResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/groups/{id}/is-member [get]
func (h *GroupHandler) HandleIsGroupMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}
	participant, ok := requireQuery(w, r, "participant")
	if !ok {
		return
	}

	member, err := h.service.IsGroupMember(r.Context(), groupID, participant)
	if err != nil {
		respondServiceError(w, r, "Check membership", err)
		return
	}

	respondJSON(w, http.StatusOK, IsMemberResponse{GroupID: groupID, Participant: participant, IsMember: member})
}

// HandleGetActiveGroups returns a participant's dilution counter
// @Summary Active group count
// @Tags groups
// @Produce json
// @Param participant path string true "Participant"
// @Success 200 {object} ActiveGroupsResponse
// @Router /api/v1/groups/participants/{participant}/active-groups [get]
func (h *GroupHandler) HandleGetActiveGroups(w http.ResponseWriter, r *http.Request) {
	participant := chi.URLParam(r, "participant")
	if err := GetValidator().ValidateVar(participant, "required,participant"); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf(ErrMsgMissingPathParam, "participant"))
		return
	}

	count, err := h.service.ActiveGroupCount(r.Context(), participant)
	if err != nil {
		respondServiceError(w, r, "Get active groups", err)
		return
	}

	respondJSON(w, http.StatusOK, ActiveGroupsResponse{Participant: participant, ActiveGroups: count})
}

// HandleListGroups lists groups in one lifecycle state
// @Summary List groups by state
// @Tags groups
// @Produce json
// @Param state query string false "Lifecycle state" default(Forming)
// @Success 200 {object} GroupListResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/groups [get]
func (h *GroupHandler) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	state := domain.GroupState(queryOr(r, "state", string(domain.GroupStateForming)))
	if !state.Valid() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf(ErrMsgInvalidState, state))
		return
	}

	groups, err := h.service.ListGroupsByState(r.Context(), state)
	if err != nil {
		respondServiceError(w, r, "List groups", err)
		return
	}
	if groups == nil {
		groups = []domain.Group{}
	}

	respondJSON(w, http.StatusOK, GroupListResponse{State: state, Groups: groups})
}

// HandleCacheStats reports group snapshot cache counters
// @Summary Group cache statistics
// @Tags groups
// @Produce json
// @Success 200 {object} group.CacheStats
// @Router /api/v1/groups/cache/stats [get]
func (h *GroupHandler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.CacheStats())
}
