package voting

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/homecouncil/voting-service/internal/middleware"
	"github.com/homecouncil/voting-service/internal/models"
	"github.com/homecouncil/voting-service/pkg/response"
)

// CreateRequest is the body for POST /api/votings.
type CreateRequest struct {
	Question        string      `json:"question" binding:"required"`
	ResponseOptions []string    `json:"response_options" binding:"required"`
	HouseIDs        []uuid.UUID `json:"house_ids" binding:"required"`
	DurationHours   int         `json:"duration_hours" binding:"required,gt=0"`
}

// WebVoteRequest is the body for POST /api/votings/:id/vote.
type WebVoteRequest struct {
	ApartmentID uuid.UUID `json:"apartment_id" binding:"required"`
	Response    string    `json:"response" binding:"required"`
}

// TelegramVoteRequest is the body for POST /internal/votings/:id/telegram-vote.
type TelegramVoteRequest struct {
	UserID   uuid.UUID `json:"user_id" binding:"required"`
	Response string    `json:"response" binding:"required"`
}

// VotingView is a voting with its tally projected.
type VotingView struct {
	models.Voting
	Tally *models.Tally `json:"tally"`
}

// Handler handles voting HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a voting handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /api/votings (admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	v, err := h.service.CreateVoting(c.Request.Context(), req.Question, req.ResponseOptions, req.HouseIDs, req.DurationHours)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Created(c, v)
}

// List handles GET /api/votings.
func (h *Handler) List(c *gin.Context) {
	votings, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list votings")
		return
	}
	response.OK(c, projectViews(votings))
}

// GetByID handles GET /api/votings/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid voting id")
		return
	}
	v, tally, err := h.service.GetVoting(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, VotingView{Voting: *v, Tally: tally})
}

// ListMine handles GET /api/votings/my?voted=true|false.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	voted := c.DefaultQuery("voted", "false") == "true"

	votings, err := h.service.ListByParticipant(c.Request.Context(), userID, voted)
	if err != nil {
		response.Internal(c, "failed to list votings")
		return
	}
	response.OK(c, projectViews(votings))
}

// SubmitWebVote handles POST /api/votings/:id/vote.
func (h *Handler) SubmitWebVote(c *gin.Context) {
	votingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid voting id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req WebVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.service.SubmitWebVote(c.Request.Context(), votingID, userID, req.ApartmentID, req.Response); err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, gin.H{"voting_id": votingID, "response": req.Response})
}

// SubmitTelegramVote handles POST /internal/votings/:id/telegram-vote (bot).
func (h *Handler) SubmitTelegramVote(c *gin.Context) {
	votingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid voting id")
		return
	}
	var req TelegramVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.service.SubmitTelegramVote(c.Request.Context(), votingID, req.UserID, req.Response); err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, gin.H{"voting_id": votingID, "response": req.Response})
}

// respondError maps engine errors to HTTP statuses. The telegram "already
// voted" conflict carries the previous response so the bot can echo it.
func (h *Handler) respondError(c *gin.Context, err error) {
	var alreadyVoted *AlreadyVotedError
	if errors.As(err, &alreadyVoted) {
		response.Conflict(c, "already voted", gin.H{"previous_response": alreadyVoted.Previous})
		return
	}
	switch Kind(err) {
	case KindNotFound:
		response.NotFound(c, err.Error())
	case KindInvalidInput:
		response.BadRequest(c, err.Error())
	case KindBusinessRule:
		response.Conflict(c, err.Error(), nil)
	case KindAuthorization:
		response.Forbidden(c, err.Error())
	default:
		response.Internal(c, "internal error")
	}
}

func projectViews(votings []models.Voting) []VotingView {
	views := make([]VotingView, 0, len(votings))
	for i := range votings {
		views = append(views, VotingView{
			Voting: votings[i],
			Tally:  ComputeTally(&votings[i]),
		})
	}
	return views
}
