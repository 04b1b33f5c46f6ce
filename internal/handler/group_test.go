package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/osse101/riddlegroup/internal/domain"
	"github.com/osse101/riddlegroup/internal/group"
	"github.com/osse101/riddlegroup/internal/ledger"
)

type MockGroupService struct {
	mock.Mock
}

func (m *MockGroupService) groupResult(args mock.Arguments) (*domain.Group, error) {
	g, _ := args.Get(0).(*domain.Group)
	return g, args.Error(1)
}

func (m *MockGroupService) CreateGroupFromNFT(ctx context.Context, caller string, params domain.CreateGroupParams) (*domain.Group, error) {
	return m.groupResult(m.Called(ctx, caller, params))
}

func (m *MockGroupService) JoinGroup(ctx context.Context, groupID int64, participant string, ackCost uint64) (*domain.Group, error) {
	return m.groupResult(m.Called(ctx, groupID, participant, ackCost))
}

func (m *MockGroupService) LeaveGroup(ctx context.Context, groupID int64, participant string) (*domain.Group, error) {
	return m.groupResult(m.Called(ctx, groupID, participant))
}

func (m *MockGroupService) FinalizeGroup(ctx context.Context, groupID int64, caller string) (*domain.Group, error) {
	return m.groupResult(m.Called(ctx, groupID, caller))
}

func (m *MockGroupService) DisbandGroup(ctx context.Context, groupID int64, caller string) (*domain.Group, error) {
	return m.groupResult(m.Called(ctx, groupID, caller))
}

func (m *MockGroupService) ActivateGroup(ctx context.Context, caller string, groupID int64) (*domain.Group, error) {
	return m.groupResult(m.Called(ctx, caller, groupID))
}

func (m *MockGroupService) CompleteGroup(ctx context.Context, caller string, groupID int64, success bool) (*domain.GroupResult, error) {
	args := m.Called(ctx, caller, groupID, success)
	res, _ := args.Get(0).(*domain.GroupResult)
	return res, args.Error(1)
}

func (m *MockGroupService) GetGroup(ctx context.Context, groupID int64) (*domain.Group, error) {
	return m.groupResult(m.Called(ctx, groupID))
}

func (m *MockGroupService) GetGroupState(ctx context.Context, groupID int64) (domain.GroupState, error) {
	args := m.Called(ctx, groupID)
	return args.Get(0).(domain.GroupState), args.Error(1)
}

func (m *MockGroupService) GetGroupMemberCount(ctx context.Context, groupID int64) (int, error) {
	args := m.Called(ctx, groupID)
	return args.Int(0), args.Error(1)
}

func (m *MockGroupService) GetGroupMembers(ctx context.Context, groupID int64) ([]string, error) {
	args := m.Called(ctx, groupID)
	members, _ := args.Get(0).([]string)
	return members, args.Error(1)
}

func (m *MockGroupService) GetGroupCosts(ctx context.Context, groupID int64) (domain.GroupCosts, error) {
	args := m.Called(ctx, groupID)
	return args.Get(0).(domain.GroupCosts), args.Error(1)
}

func (m *MockGroupService) IsGroupMember(ctx context.Context, groupID int64, participant string) (bool, error) {
	args := m.Called(ctx, groupID, participant)
	return args.Bool(0), args.Error(1)
}

func (m *MockGroupService) ActiveGroupCount(ctx context.Context, participant string) (uint64, error) {
	args := m.Called(ctx, participant)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockGroupService) GetGroupCreator(ctx context.Context, groupID int64) (string, error) {
	args := m.Called(ctx, groupID)
	return args.String(0), args.Error(1)
}

func (m *MockGroupService) ListGroupsByState(ctx context.Context, state domain.GroupState) ([]domain.Group, error) {
	args := m.Called(ctx, state)
	groups, _ := args.Get(0).([]domain.Group)
	return groups, args.Error(1)
}

func (m *MockGroupService) CacheStats() group.CacheStats {
	return m.Called().Get(0).(group.CacheStats)
}

var _ group.Service = (*MockGroupService)(nil)

func newGroupRouter(svc group.Service) http.Handler {
	h := NewGroupHandler(svc)
	r := chi.NewRouter()
	r.Get("/groups", h.HandleListGroups)
	r.Get("/groups/cache/stats", h.HandleCacheStats)
	r.Post("/groups", h.HandleCreateGroup)
	r.Get("/groups/participants/{participant}/active-groups", h.HandleGetActiveGroups)
	r.Get("/groups/{id}", h.HandleGetGroup)
	r.Get("/groups/{id}/members", h.HandleGetGroupMembers)
	r.Get("/groups/{id}/costs", h.HandleGetGroupCosts)
	r.Get("/groups/{id}/is-member", h.HandleIsGroupMember)
	r.Post("/groups/{id}/join", h.HandleJoinGroup)
	r.Post("/groups/{id}/leave", h.HandleLeaveGroup)
	r.Post("/groups/{id}/finalize", h.HandleFinalizeGroup)
	r.Post("/groups/{id}/disband", h.HandleDisbandGroup)
	r.Post("/groups/{id}/activate", h.HandleActivateGroup)
	r.Post("/groups/{id}/complete", h.HandleCompleteGroup)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleCreateGroup(t *testing.T) {
	params := domain.CreateGroupParams{Creator: "alice", ChallengeID: "c-1", Era: 3, AttemptCost: 1_000, SubmissionCost: 10}

	tests := []struct {
		name       string
		body       any
		setup      func(*MockGroupService)
		wantStatus int
		wantBody   string
	}{
		{
			name:       "Invalid JSON",
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
			wantBody:   ErrMsgInvalidRequest,
		},
		{
			name:       "Unknown Field",
			body:       `{"caller":"contract","creator":"alice","bogus":1}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   ErrMsgInvalidRequest,
		},
		{
			name:       "Empty Body",
			body:       "",
			wantStatus: http.StatusBadRequest,
			wantBody:   ErrMsgInvalidRequest,
		},
		{
			name:       "Trailing Object",
			body:       `{"caller":"contract","creator":"alice"} {"caller":"x"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   ErrMsgInvalidRequest,
		},
		{
			name:       "Missing Creator",
			body:       CreateGroupRequest{Caller: "contract"},
			wantStatus: http.StatusBadRequest,
			wantBody:   `"creator":"This field is required"`,
		},
		{
			name: "Not Authorized",
			body: CreateGroupRequest{Caller: "mallory", Creator: "alice", ChallengeID: "c-1", Era: 3, AttemptCost: 1_000, SubmissionCost: 10},
			setup: func(m *MockGroupService) {
				m.On("CreateGroupFromNFT", mock.Anything, "mallory", params).
					Return(nil, fmt.Errorf("%w: create", domain.ErrNotAuthorized))
			},
			wantStatus: http.StatusForbidden,
			wantBody:   ErrMsgNotAuthorizedError,
		},
		{
			name: "Success",
			body: CreateGroupRequest{Caller: "contract", Creator: "alice", ChallengeID: "c-1", Era: 3, AttemptCost: 1_000, SubmissionCost: 10},
			setup: func(m *MockGroupService) {
				m.On("CreateGroupFromNFT", mock.Anything, "contract", params).
					Return(&domain.Group{ID: 42, State: domain.GroupStateForming, Creator: "alice", Members: []string{"alice"}}, nil)
			},
			wantStatus: http.StatusCreated,
			wantBody:   `"id":42`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockGroupService{}
			if tt.setup != nil {
				tt.setup(svc)
			}

			w := doRequest(t, newGroupRouter(svc), http.MethodPost, "/groups", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandleJoinGroup_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"not found", fmt.Errorf("%w: 7", domain.ErrGroupNotFound), http.StatusNotFound, ErrMsgGroupNotFoundError},
		{"wrong state", &domain.WrongStateError{Operation: "join", Current: domain.GroupStateReserved}, http.StatusConflict, ErrMsgWrongStateError},
		{"window closed", domain.ErrJoinWindowClosed, http.StatusConflict, ErrMsgJoinWindowClosedError},
		{"already member", domain.ErrAlreadyMember, http.StatusConflict, ErrMsgAlreadyMemberError},
		{"full", domain.ErrGroupFull, http.StatusConflict, ErrMsgGroupFullError},
		{"cost mismatch", &domain.CostAcknowledgementError{Required: 1_000, Acknowledged: 5}, http.StatusUnprocessableEntity, "locked attempt cost of 1000"},
		{"unexpected", assert.AnError, http.StatusInternalServerError, ErrMsgGenericServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockGroupService{}
			svc.On("JoinGroup", mock.Anything, int64(7), "bob", uint64(5)).Return(nil, tt.err)

			w := doRequest(t, newGroupRouter(svc), http.MethodPost, "/groups/7/join", JoinGroupRequest{Participant: "bob", AckCost: 5})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestHandleJoinGroup_Success(t *testing.T) {
	svc := &MockGroupService{}
	svc.On("JoinGroup", mock.Anything, int64(7), "bob", uint64(1_000)).
		Return(&domain.Group{ID: 7, Members: []string{"alice", "bob"}}, nil)

	w := doRequest(t, newGroupRouter(svc), http.MethodPost, "/groups/7/join", JoinGroupRequest{Participant: "bob", AckCost: 1_000})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Message string       `json:"message"`
		Data    domain.Group `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, MsgJoinedGroupSuccess, resp.Message)
	assert.Equal(t, []string{"alice", "bob"}, resp.Data.Members)
}

func TestHandleGroup_InvalidID(t *testing.T) {
	svc := &MockGroupService{}
	router := newGroupRouter(svc)

	for _, path := range []string{"/groups/abc", "/groups/0", "/groups/-3/members"} {
		w := doRequest(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Contains(t, w.Body.String(), ErrMsgInvalidGroupID)
	}
	svc.AssertNotCalled(t, "GetGroup", mock.Anything, mock.Anything)
}

func TestHandleCallerActions(t *testing.T) {
	g := &domain.Group{ID: 9, State: domain.GroupStateReserved}

	t.Run("finalize composition rejected", func(t *testing.T) {
		svc := &MockGroupService{}
		svc.On("FinalizeGroup", mock.Anything, int64(9), "alice").
			Return(nil, &domain.CompositionError{Reason: "needs members from at least 2 tiers"})

		w := doRequest(t, newGroupRouter(svc), http.MethodPost, "/groups/9/finalize", CallerRequest{Caller: "alice"})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "needs members from at least 2 tiers")
	})

	t.Run("disband insufficient tokens", func(t *testing.T) {
		svc := &MockGroupService{}
		svc.On("DisbandGroup", mock.Anything, int64(9), "alice").
			Return(nil, fmt.Errorf("charge fee: %w", ledger.ErrInsufficientTokens))

		w := doRequest(t, newGroupRouter(svc), http.MethodPost, "/groups/9/disband", CallerRequest{Caller: "alice"})

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		assert.Contains(t, w.Body.String(), ErrMsgInsufficientTokensError)
	})

	t.Run("disband by non creator", func(t *testing.T) {
		svc := &MockGroupService{}
		svc.On("DisbandGroup", mock.Anything, int64(9), "bob").Return(nil, domain.ErrNotCreator)

		w := doRequest(t, newGroupRouter(svc), http.MethodPost, "/groups/9/disband", CallerRequest{Caller: "bob"})

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("activate passes caller first", func(t *testing.T) {
		svc := &MockGroupService{}
		svc.On("ActivateGroup", mock.Anything, "contract", int64(9)).Return(g, nil)

		w := doRequest(t, newGroupRouter(svc), http.MethodPost, "/groups/9/activate", CallerRequest{Caller: "contract"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), MsgGroupActivatedSuccess)
		svc.AssertExpectations(t)
	})

	t.Run("missing caller", func(t *testing.T) {
		svc := &MockGroupService{}

		w := doRequest(t, newGroupRouter(svc), http.MethodPost, "/groups/9/finalize", map[string]string{})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"caller":"This field is required"`)
	})
}

func TestHandleCompleteGroup(t *testing.T) {
	t.Run("success flag required", func(t *testing.T) {
		svc := &MockGroupService{}

		w := doRequest(t, newGroupRouter(svc), http.MethodPost, "/groups/5/complete", map[string]string{"caller": "contract"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"success":"This field is required"`)
	})

	t.Run("explicit false is accepted", func(t *testing.T) {
		svc := &MockGroupService{}
		svc.On("CompleteGroup", mock.Anything, "contract", int64(5), false).
			Return(&domain.GroupResult{GroupID: 5}, nil)

		w := doRequest(t, newGroupRouter(svc), http.MethodPost, "/groups/5/complete", `{"caller":"contract","success":false}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"success":false`)
		svc.AssertExpectations(t)
	})

	t.Run("payouts returned", func(t *testing.T) {
		svc := &MockGroupService{}
		svc.On("CompleteGroup", mock.Anything, "contract", int64(5), true).Return(&domain.GroupResult{
			GroupID:     5,
			Success:     true,
			PayoutTotal: 3_000,
			Payouts:     []domain.Payout{{Participant: "alice", Amount: 900}, {Participant: "bob", Amount: 2_100}},
		}, nil)

		w := doRequest(t, newGroupRouter(svc), http.MethodPost, "/groups/5/complete", `{"caller":"contract","success":true}`)

		require.Equal(t, http.StatusOK, w.Code)
		var res domain.GroupResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, uint64(3_000), res.PayoutTotal)
		assert.Len(t, res.Payouts, 2)
	})
}

func TestHandleQueries(t *testing.T) {
	svc := &MockGroupService{}
	svc.On("GetGroupMembers", mock.Anything, int64(3)).Return([]string{"alice", "bob", "carol"}, nil)
	svc.On("GetGroupCosts", mock.Anything, int64(3)).Return(domain.GroupCosts{Era: 2, AttemptCost: 100, SubmissionCost: 5, NextAttemptCost: 300}, nil)
	svc.On("IsGroupMember", mock.Anything, int64(3), "bob").Return(true, nil)
	svc.On("ActiveGroupCount", mock.Anything, "bob").Return(uint64(2), nil)
	svc.On("GetGroup", mock.Anything, int64(4)).Return(nil, domain.ErrGroupNotFound)
	router := newGroupRouter(svc)

	w := doRequest(t, router, http.MethodGet, "/groups/3/members", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":3`)

	w = doRequest(t, router, http.MethodGet, "/groups/3/costs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"next_attempt_cost":300`)

	w = doRequest(t, router, http.MethodGet, "/groups/3/is-member?participant=bob", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_member":true`)

	w = doRequest(t, router, http.MethodGet, "/groups/3/is-member", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Missing participant query parameter")

	w = doRequest(t, router, http.MethodGet, "/groups/participants/bob/active-groups", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active_groups":2`)

	w = doRequest(t, router, http.MethodGet, "/groups/4", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	svc.AssertExpectations(t)
}

func TestHandleListGroups(t *testing.T) {
	t.Run("defaults to forming", func(t *testing.T) {
		svc := &MockGroupService{}
		svc.On("ListGroupsByState", mock.Anything, domain.GroupStateForming).Return(nil, nil)

		w := doRequest(t, newGroupRouter(svc), http.MethodGet, "/groups", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"state":"Forming","groups":[]}`, w.Body.String())
	})

	t.Run("explicit state", func(t *testing.T) {
		svc := &MockGroupService{}
		svc.On("ListGroupsByState", mock.Anything, domain.GroupStateActive).
			Return([]domain.Group{{ID: 1, State: domain.GroupStateActive}}, nil)

		w := doRequest(t, newGroupRouter(svc), http.MethodGet, "/groups?state=Active", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"id":1`)
	})

	t.Run("unknown state", func(t *testing.T) {
		svc := &MockGroupService{}

		w := doRequest(t, newGroupRouter(svc), http.MethodGet, "/groups?state=Pending", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid state 'Pending'")
	})
}

func TestMapServiceErrorToUserMessage(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{nil, http.StatusInternalServerError},
		{domain.ErrNotMember, http.StatusConflict},
		{domain.ErrCreatorCannotLeave, http.StatusConflict},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", domain.ErrNotCreator)), http.StatusForbidden},
		{domain.ErrInvalidComposition, http.StatusUnprocessableEntity},
		{ledger.ErrInsufficientTokens, http.StatusPaymentRequired},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, msg := mapServiceErrorToUserMessage(tt.err)
		assert.Equal(t, tt.wantStatus, status, "%v", tt.err)
		assert.NotEmpty(t, msg)
	}
}

func TestHandleCacheStats(t *testing.T) {
	svc := new(MockGroupService)
	svc.On("CacheStats").Return(group.CacheStats{Hits: 4, Misses: 2, Size: 3})

	w := doRequest(t, newGroupRouter(svc), http.MethodGet, "/groups/cache/stats", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"hits":4,"misses":2,"size":3}`, w.Body.String())
	svc.AssertExpectations(t)
}
