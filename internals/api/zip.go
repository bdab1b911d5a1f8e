package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Akshdhiwar/simpledocs-archive/internals/controller"
	"github.com/Akshdhiwar/simpledocs-archive/internals/middleware"
)

func ZipRoutes(router *gin.RouterGroup, zip *controller.ZipController, auth *middleware.Authenticator) {
	// GET Api to download a public item tree, no member required
	router.GET("/public/zip-export/:itemId", zip.ExportPublicItem)

	router.Use(auth.Middleware())

	// POST Api to upload a zip archive, parentId query selects the target folder
	router.POST("/zip-import", zip.ImportZip)

	// GET Api to download an item tree as a zip archive
	router.GET("/zip-export/:itemId", zip.ExportItem)
}
