// Package api exposes the engine's function-level contract over a thin gin
// router. Handlers translate transport concerns only; all semantics live in
// the engines.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unimon/unimon/internal/adapter"
	"github.com/unimon/unimon/internal/aggregation"
	"github.com/unimon/unimon/internal/model"
	"github.com/unimon/unimon/internal/routing"
	"github.com/unimon/unimon/internal/suppression"
)

type Api struct {
	engine      *aggregation.Engine
	routing     *routing.Engine
	suppression *suppression.Engine
	prom        *adapter.PrometheusAdapter
}

// NewApi binds all routes on router. prom serves the native rule-group
// reads; it may be nil when no prometheus datasources exist.
func NewApi(router *gin.Engine, engine *aggregation.Engine, rt *routing.Engine, sup *suppression.Engine, prom *adapter.PrometheusAdapter) *Api {
	api := &Api{engine: engine, routing: rt, suppression: sup, prom: prom}
	api.setupRouters(router)
	return api
}

func (api *Api) setupRouters(router *gin.Engine) {
	v1 := router.Group("/v1")

	v1.GET("/datasources", api.listDatasources)
	v1.POST("/datasources", api.createDatasource)
	v1.GET("/datasources/:id", api.getDatasource)
	v1.PUT("/datasources/:id", api.updateDatasource)
	v1.DELETE("/datasources/:id", api.deleteDatasource)
	v1.POST("/datasources/:id/test", api.testDatasource)

	v1.GET("/datasources/:id/monitors", api.listMonitors)
	v1.POST("/datasources/:id/monitors", api.createMonitorOnDatasource)
	v1.PUT("/datasources/:id/monitors/:monitorID", api.updateMonitorOnDatasource)
	v1.DELETE("/datasources/:id/monitors/:monitorID", api.deleteMonitorOnDatasource)
	v1.GET("/datasources/:id/alerts", api.listDatasourceAlerts)
	v1.POST("/datasources/:id/alerts/acknowledge", api.acknowledgeAlert)
	v1.GET("/datasources/:id/rulegroups", api.listRuleGroups)

	v1.GET("/unified/alerts", api.unifiedAlerts)
	v1.GET("/unified/rules", api.unifiedRules)
	v1.POST("/unified/alerts/:id/retry", api.retryAlerts)
	v1.POST("/unified/rules/:id/retry", api.retryRules)

	v1.POST("/monitors", api.createMonitor)
	v1.PUT("/monitors", api.updateMonitor)
	v1.DELETE("/monitors/:dsID/:monitorID", api.deleteMonitor)
	v1.POST("/monitors/import", api.importMonitors)
	v1.GET("/monitors/export", api.exportMonitors)

	v1.GET("/routing-rules", api.listRoutingRules)
	v1.POST("/routing-rules", api.createRoutingRule)
	v1.GET("/routing-rules/:id", api.getRoutingRule)
	v1.PUT("/routing-rules/:id", api.updateRoutingRule)
	v1.DELETE("/routing-rules/:id", api.deleteRoutingRule)

	v1.GET("/suppression-rules", api.listSuppressionRules)
	v1.POST("/suppression-rules", api.createSuppressionRule)
	v1.GET("/suppression-rules/:id", api.getSuppressionRule)
	v1.PUT("/suppression-rules/:id", api.updateSuppressionRule)
	v1.DELETE("/suppression-rules/:id", api.deleteSuppressionRule)
	v1.POST("/alerts/silence", api.silenceAlert)
}

// writeError maps the error taxonomy onto response codes: validation 400,
// not-found 404, backend failure 502, anything else 500.
func writeError(c *gin.Context, err error) {
	var verrs *model.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": verrs.Fields})
		return
	}
	if model.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	var berr *model.BackendError
	if errors.As(err, &berr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": berr.Message, "kind": string(berr.Kind), "datasourceId": berr.DatasourceID})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
