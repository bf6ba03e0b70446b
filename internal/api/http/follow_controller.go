package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/seojin-dev/stageline/internal/repository"
	"github.com/seojin-dev/stageline/internal/service"
)

type FollowController struct {
	follows service.FollowInteractor
}

func NewFollowController(follows service.FollowInteractor) *FollowController {
	return &FollowController{follows: follows}
}

func (c *FollowController) Follow(ctx *gin.Context) {
	type request struct {
		FollowingID string `json:"following_id" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := c.follows.Follow(ctx.Request.Context(), ctx.Param("userID"), req.FollowingID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrSelfFollow):
			status = http.StatusBadRequest
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (c *FollowController) Unfollow(ctx *gin.Context) {
	err := c.follows.Unfollow(ctx.Request.Context(), ctx.Param("userID"), ctx.Param("targetID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrFollowNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (c *FollowController) CheckFollowing(ctx *gin.Context) {
	following, err := c.follows.IsFollowing(ctx.Request.Context(), ctx.Param("userID"), ctx.Param("targetID"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"following": following})
}

func (c *FollowController) ListFollowers(ctx *gin.Context) {
	followers, err := c.follows.Followers(ctx.Request.Context(), ctx.Param("userID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"followers": followers})
}

func (c *FollowController) ListFollowing(ctx *gin.Context) {
	following, err := c.follows.Following(ctx.Request.Context(), ctx.Param("userID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"following": following})
}
