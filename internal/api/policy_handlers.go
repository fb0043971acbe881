package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unimon/unimon/internal/model"
	"github.com/unimon/unimon/internal/suppression"
)

func (api *Api) listRoutingRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": api.routing.List(c.Request.Context())})
}

func (api *Api) createRoutingRule(c *gin.Context) {
	var r model.RoutingRule
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	if err := api.routing.Create(c.Request.Context(), &r); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (api *Api) getRoutingRule(c *gin.Context) {
	r, err := api.routing.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (api *Api) updateRoutingRule(c *gin.Context) {
	var r model.RoutingRule
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	r.ID = c.Param("id")
	if err := api.routing.Update(c.Request.Context(), &r); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (api *Api) deleteRoutingRule(c *gin.Context) {
	if err := api.routing.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// suppressionRuleView adds the derived display status to a stored rule.
type suppressionRuleView struct {
	*model.SuppressionRule
	Status model.SuppressionRuleStatus `json:"status"`
}

func (api *Api) listSuppressionRules(c *gin.Context) {
	now := time.Now()
	rules := api.suppression.List(c.Request.Context())
	out := make([]suppressionRuleView, 0, len(rules))
	for _, r := range rules {
		out = append(out, suppressionRuleView{SuppressionRule: r, Status: suppression.Status(r, now)})
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

// createSuppressionRule reports overlap conflicts as advisory payload next
// to the created rule; creation itself still succeeds.
func (api *Api) createSuppressionRule(c *gin.Context) {
	var r model.SuppressionRule
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	conflicts, err := api.suppression.Create(c.Request.Context(), &r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rule": r, "conflicts": conflicts})
}

func (api *Api) getSuppressionRule(c *gin.Context) {
	r, err := api.suppression.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, suppressionRuleView{SuppressionRule: r, Status: suppression.Status(r, time.Now())})
}

func (api *Api) updateSuppressionRule(c *gin.Context) {
	var r model.SuppressionRule
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	r.ID = c.Param("id")
	if err := api.suppression.Update(c.Request.Context(), &r); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (api *Api) deleteSuppressionRule(c *gin.Context) {
	if err := api.suppression.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (api *Api) silenceAlert(c *gin.Context) {
	var req struct {
		AlertID  string `json:"alertId"`
		Duration string `json:"duration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.AlertID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alertId required"})
		return
	}
	rule, err := api.suppression.Silence(c.Request.Context(), req.AlertID, req.Duration)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}
