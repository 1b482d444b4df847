/*
Copyright 2025 Payrun Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"net/http"

	model2 "github.com/payrunhq/payrun/api/model"

	"github.com/gin-gonic/gin"
)

func (a Api) GetStatus(c *gin.Context) {
	dispatcher, services := a.payrun.Status()
	c.JSON(http.StatusOK, gin.H{
		"scheduler": dispatcher,
		"services":  services,
	})
}

func (a Api) GetServices(c *gin.Context) {
	_, services := a.payrun.Status()
	c.JSON(http.StatusOK, services)
}

func (a Api) EnableService(c *gin.Context) {
	name, passed := c.Params.Get("name")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required. pass name in the route /:name"})
		return
	}

	if err := a.payrun.EnableService(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"service": name, "enabled": true})
}

func (a Api) DisableService(c *gin.Context) {
	name, passed := c.Params.Get("name")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required. pass name in the route /:name"})
		return
	}

	if err := a.payrun.DisableService(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"service": name, "enabled": false})
}

func (a Api) UpdateServiceInterval(c *gin.Context) {
	name, passed := c.Params.Get("name")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required. pass name in the route /:name"})
		return
	}

	var body model2.UpdateInterval
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := body.ValidateUpdateInterval(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.payrun.SetServiceInterval(c.Request.Context(), name, body.IntervalMinutes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"service": name, "interval_minutes": body.IntervalMinutes})
}

func (a Api) LockScheduler(c *gin.Context) {
	a.payrun.SetGlobalLock(true)
	c.JSON(http.StatusOK, gin.H{"locked": true})
}

func (a Api) UnlockScheduler(c *gin.Context) {
	a.payrun.SetGlobalLock(false)
	c.JSON(http.StatusOK, gin.H{"locked": false})
}
