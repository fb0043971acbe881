package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unimon/unimon/internal/model"
)

func (api *Api) listDatasources(c *gin.Context) {
	out, err := api.engine.ListDatasources(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"datasources": out})
}

func (api *Api) createDatasource(c *gin.Context) {
	var ds model.Datasource
	if err := c.ShouldBindJSON(&ds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	if err := api.engine.CreateDatasource(c.Request.Context(), &ds); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ds)
}

func (api *Api) getDatasource(c *gin.Context) {
	ds, err := api.engine.GetDatasource(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ds)
}

func (api *Api) updateDatasource(c *gin.Context) {
	var ds model.Datasource
	if err := c.ShouldBindJSON(&ds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	ds.ID = c.Param("id")
	if err := api.engine.UpdateDatasource(c.Request.Context(), &ds); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ds)
}

func (api *Api) deleteDatasource(c *gin.Context) {
	if err := api.engine.DeleteDatasource(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (api *Api) testDatasource(c *gin.Context) {
	res, err := api.engine.TestConnection(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (api *Api) listMonitors(c *gin.Context) {
	out, err := api.engine.GetMonitors(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"monitors": out})
}

func (api *Api) createMonitorOnDatasource(c *gin.Context) {
	var m model.UnifiedMonitor
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	m.DatasourceID = c.Param("id")
	created, err := api.engine.CreateMonitor(c.Request.Context(), &m)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (api *Api) updateMonitorOnDatasource(c *gin.Context) {
	var m model.UnifiedMonitor
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	m.DatasourceID = c.Param("id")
	m.ID = c.Param("monitorID")
	updated, err := api.engine.UpdateMonitor(c.Request.Context(), &m)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (api *Api) deleteMonitorOnDatasource(c *gin.Context) {
	if err := api.engine.DeleteMonitor(c.Request.Context(), c.Param("id"), c.Param("monitorID")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (api *Api) listDatasourceAlerts(c *gin.Context) {
	out, err := api.engine.GetAlerts(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": out})
}

func (api *Api) acknowledgeAlert(c *gin.Context) {
	var req struct {
		AlertID string `json:"alertId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.AlertID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alertId required"})
		return
	}
	if err := api.engine.Acknowledge(c.Request.Context(), c.Param("id"), req.AlertID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

// listRuleGroups surfaces native Prometheus rule groups for one datasource.
func (api *Api) listRuleGroups(c *gin.Context) {
	ds, err := api.engine.GetDatasource(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if ds.Type != model.DatasourcePrometheus || api.prom == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rule groups are only available for prometheus datasources"})
		return
	}
	groups, err := api.prom.RuleGroups(c.Request.Context(), ds)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}
