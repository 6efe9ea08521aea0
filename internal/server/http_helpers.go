package server

import (
	"errors"
	"net/http"

	"music-battle/internal/room"
	"music-battle/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrExists):
		return http.StatusConflict
	case errors.Is(err, room.ErrInvalidDocument),
		errors.Is(err, room.ErrUnsupportedSchema),
		errors.Is(err, room.ErrInvalidCode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Str("room_code", c.Param("code")).Err(err).Msg("store request failed")
		c.JSON(status, gin.H{"error": "store unavailable"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
