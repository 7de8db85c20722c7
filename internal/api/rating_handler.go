package api

import (
	"net/http"
	"strconv"

	"go-file-share/internal/service"

	"github.com/gin-gonic/gin"
)

type RatingHandler struct {
	ratingService *service.RatingService
}

func NewRatingHandler(ratingService *service.RatingService) *RatingHandler {
	return &RatingHandler{ratingService: ratingService}
}

// RateFile POST /rate_file，同一用户重复评分会覆盖之前的分数
func (h *RatingHandler) RateFile(c *gin.Context) {
	userID, _, ok := callerFromRequest(c)
	rawFileID := c.PostForm("file_id")
	rawScore := c.PostForm("rating")
	if !ok || rawFileID == "" || rawScore == "" {
		badRequest(c, "file_id, user_id, and rating are required.")
		return
	}

	fileID, err := service.ParseID(rawFileID)
	if err != nil {
		respondError(c, err)
		return
	}
	score, err := strconv.Atoi(rawScore)
	if err != nil {
		respondError(c, service.ErrInvalidScore)
		return
	}

	if err := h.ratingService.Rate(c.Request.Context(), fileID, userID, score); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Rating submitted successfully."})
}
