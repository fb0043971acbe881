package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unimon/unimon/internal/aggregation"
	"github.com/unimon/unimon/internal/model"
	"github.com/unimon/unimon/internal/serializer"
)

// queryOptions reads dsIds (comma separated) and timeoutMs from the query
// string.
func queryOptions(c *gin.Context) aggregation.QueryOptions {
	opts := aggregation.QueryOptions{}
	if raw := strings.TrimSpace(c.Query("dsIds")); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				opts.DatasourceIDs = append(opts.DatasourceIDs, id)
			}
		}
	}
	if raw := c.Query("timeoutMs"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			opts.Timeout = time.Duration(ms) * time.Millisecond
		}
	}
	return opts
}

func pageParams(c *gin.Context) (page, pageSize int, paginated bool) {
	page, _ = strconv.Atoi(c.Query("page"))
	pageSize, _ = strconv.Atoi(c.Query("pageSize"))
	return page, pageSize, page > 0 || pageSize > 0
}

// unifiedAlerts always answers 200 with mixed per-datasource statuses;
// partial failure is part of the payload, not an HTTP error.
func (api *Api) unifiedAlerts(c *gin.Context) {
	opts := queryOptions(c)
	if page, pageSize, ok := pageParams(c); ok {
		res, err := api.engine.GetPaginatedAlerts(c.Request.Context(), opts, page, pageSize)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}
	res, err := api.engine.GetUnifiedAlerts(c.Request.Context(), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (api *Api) unifiedRules(c *gin.Context) {
	opts := queryOptions(c)
	if page, pageSize, ok := pageParams(c); ok {
		res, err := api.engine.GetPaginatedRules(c.Request.Context(), opts, page, pageSize)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}
	res, err := api.engine.GetUnifiedRules(c.Request.Context(), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (api *Api) retryAlerts(c *gin.Context) {
	res, err := api.engine.RetryAlerts(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (api *Api) retryRules(c *gin.Context) {
	res, err := api.engine.RetryRules(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (api *Api) createMonitor(c *gin.Context) {
	var m model.UnifiedMonitor
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	created, err := api.engine.CreateMonitor(c.Request.Context(), &m)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (api *Api) updateMonitor(c *gin.Context) {
	var m model.UnifiedMonitor
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	updated, err := api.engine.UpdateMonitor(c.Request.Context(), &m)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (api *Api) deleteMonitor(c *gin.Context) {
	if err := api.engine.DeleteMonitor(c.Request.Context(), c.Param("dsID"), c.Param("monitorID")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// importMonitors is atomic: any invalid document rejects the whole batch
// with the full per-index failure list, persisting nothing.
func (api *Api) importMonitors(c *gin.Context) {
	var docs []serializer.MonitorDocument
	if err := c.ShouldBindJSON(&docs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	res, err := serializer.ImportMonitors(c.Request.Context(), api.engine, docs)
	if err != nil {
		writeError(c, err)
		return
	}
	if !res.Accepted {
		c.JSON(http.StatusBadRequest, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// exportMonitors aggregates the unified rules (optionally filtered by
// dsIds) and serializes them as portable documents.
func (api *Api) exportMonitors(c *gin.Context) {
	res, err := api.engine.GetUnifiedRules(c.Request.Context(), queryOptions(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.SerializeMonitors(res.Results))
}
