package server

import (
	"net/http"
	"sync"

	"music-battle/internal/room"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 64 * 1024

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("roomcode", func(fl validator.FieldLevel) bool {
			return room.ValidCode(fl.Field().String())
		})
	})
}

type roomURI struct {
	Code string `uri:"code" binding:"required,roomcode"`
}

type listQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=waiting playing ended"`
}

var listQueryMessages = bindMessages{
	"Status": {"oneof": "status must be waiting, playing or ended"},
}

func limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		c.Next()
	}
}
