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
	"github.com/gin-gonic/gin"

	"github.com/payrunhq/payrun"
)

type Api struct {
	payrun *payrun.Payrun
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.GET("/status", a.GetStatus)

	router.GET("/services", a.GetServices)
	router.POST("/services/:name/enable", a.EnableService)
	router.POST("/services/:name/disable", a.DisableService)
	router.PUT("/services/:name/interval", a.UpdateServiceInterval)

	router.POST("/scheduler/lock", a.LockScheduler)
	router.POST("/scheduler/unlock", a.UnlockScheduler)

	router.POST("/orders", a.CreateOrders)
	router.GET("/orders/:id", a.GetOrder)
	return a.router
}

func NewAPI(p *payrun.Payrun) *Api {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{payrun: p, router: r}
}
