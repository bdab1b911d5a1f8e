package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func Default(router *gin.RouterGroup) {
	router.GET("/ping", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
}
