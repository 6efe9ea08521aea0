package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindMessages maps a struct field and validation tag to the error text
// shown to the client.
type bindMessages map[string]map[string]string

// bindRoomCode reads the :code path segment. Codes that could never name a
// room are answered like an absent one.
func bindRoomCode(c *gin.Context) (string, bool) {
	var uri roomURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return "", false
	}
	return uri.Code, true
}

// bindBody decodes a JSON room document or field set. what names the payload
// in the error text.
func bindBody(c *gin.Context, req any, what string) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": what + " too large"})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what})
	return false
}

func bindQuery(c *gin.Context, req any, messages bindMessages) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": resolveBindError(err, messages, "invalid query")})
		return false
	}
	return true
}

func resolveBindError(err error, messages bindMessages, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, verr := range verrs {
			if msg, ok := messages[verr.Field()][verr.Tag()]; ok {
				return msg
			}
		}
	}
	return fallback
}
