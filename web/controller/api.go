package controller

import (
	"lottery/service"

	"github.com/gin-gonic/gin"
)

type APIController struct {
	serverController *ServerController
}

func NewAPIController(g *gin.RouterGroup, statusService *service.StatusService, coordinator *service.Coordinator) *APIController {
	a := &APIController{}
	a.initRouter(g, statusService, coordinator)
	return a
}

func (a *APIController) initRouter(g *gin.RouterGroup, statusService *service.StatusService, coordinator *service.Coordinator) {
	api := g.Group("/api")
	a.serverController = NewServerController(api, statusService, coordinator)
}
