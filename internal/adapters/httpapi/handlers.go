package httpapi

import (
	"net/http"
	"strconv"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/alejandrodnm/accapool/internal/ports"
	"github.com/gin-gonic/gin"
)

type handler struct {
	svc      PoolService
	activity ports.ActivityLog
}

func (h *handler) createPool(c *gin.Context) {
	var req createPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	spec, err := req.toSpec()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid buyin_per_participant"})
		return
	}

	p, err := h.svc.CreatePool(c.Request.Context(), spec)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPoolResponse(p))
}

func (h *handler) listPools(c *gin.Context) {
	pools, err := h.svc.ListPools(c.Request.Context(), c.Query("season"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]poolResponse, len(pools))
	for i, p := range pools {
		out[i] = toPoolResponse(p)
	}
	c.JSON(http.StatusOK, gin.H{"pools": out})
}

func (h *handler) getBoard(c *gin.Context) {
	b, err := h.svc.GetBoard(c.Request.Context(), c.Param("id"), participantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBoardResponse(b))
}

func (h *handler) deletePool(c *gin.Context) {
	if err := h.svc.DeletePool(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.Submit(c.Request.Context(), c.Param("id"), participantID(c), req.toLegs())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"submissions": toSubmissionResponses(res.Submissions, nil),
		"replaced":    res.Replaced,
	})
}

func (h *handler) toggleVote(c *gin.Context) {
	st, err := h.svc.ToggleVote(c.Request.Context(), c.Param("id"), c.Param("submissionId"), participantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"submission_id": st.SubmissionID,
		"voted":         st.Voted,
		"vote_count":    st.VoteCount,
	})
}

func (h *handler) openVoting(c *gin.Context) {
	p, err := h.svc.OpenVoting(c.Request.Context(), c.Param("id"))
	h.respondPool(c, p, err)
}

func (h *handler) place(c *gin.Context) {
	p, err := h.svc.Place(c.Request.Context(), c.Param("id"))
	h.respondPool(c, p, err)
}

func (h *handler) settle(c *gin.Context) {
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcome, err := domain.ParseOutcome(req.Outcome)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.svc.Settle(c.Request.Context(), c.Param("id"), outcome)
	h.respondPool(c, p, err)
}

func (h *handler) respondPool(c *gin.Context, p domain.Pool, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPoolResponse(p))
}

func (h *handler) listActivity(c *gin.Context) {
	if h.activity == nil {
		c.JSON(http.StatusOK, gin.H{"activity": []activityResponse{}})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	events, err := h.activity.ListActivity(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]activityResponse, len(events))
	for i, e := range events {
		out[i] = activityResponse{
			Type:          string(e.Type),
			ParticipantID: e.ParticipantID,
			OccurredAt:    e.OccurredAt,
			Data:          e.Data,
		}
	}
	c.JSON(http.StatusOK, gin.H{"activity": out})
}

// convertOdds convierte entre fraccional y decimal: ?fractional=5/2 o ?decimal=3.5.
func (h *handler) convertOdds(c *gin.Context) {
	if frac := c.Query("fractional"); frac != "" {
		d := domain.ToDecimal(frac)
		c.JSON(http.StatusOK, gin.H{"fractional": frac, "decimal": d})
		return
	}
	if raw := c.Query("decimal"); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "decimal must be a number"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"decimal": d, "fractional": domain.ToFractional(d)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "fractional or decimal query parameter required"})
}
