package echoServer

import (
	"booklend/app/echoServer/controller/ops"

	"github.com/labstack/echo/v4"
)

type C struct {
	Ops *ops.Controller
}

func Register(e *echo.Echo, c C) {
	// Operational surface for the lifecycle scheduler: manual sweep
	// triggers outside the timer cadence. The reader/author/admin API
	// lives in the separate web application, not here.
	grp := e.Group("/v1/ops")
	grp.POST("/sweeps/overdue", c.Ops.RunOverdue)
	grp.POST("/sweeps/due-soon", c.Ops.RunDueSoon)
}
