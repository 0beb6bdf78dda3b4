package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/ctc/internal/clock"
	"github.com/zulandar/ctc/internal/ctc"
	"github.com/zulandar/ctc/internal/dispatch"
	"github.com/zulandar/ctc/internal/intent"
	"github.com/zulandar/ctc/internal/track"
	"github.com/zulandar/ctc/internal/trains"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, ctl *ctc.Controller) {
	api := router.Group("/api")

	// Queries read the last published snapshot.
	api.GET("/snapshot", handleSnapshot(ctl))
	api.GET("/lines", handleLines(ctl))
	api.GET("/lines/:line", handleLine(ctl))
	api.GET("/lines/:line/blocks/:section/:number", handleBlock(ctl))
	api.GET("/lines/:line/switches/:section/:number", handleSwitch(ctl))
	api.GET("/lines/:line/gates/:section/:number", handleGate(ctl))
	api.GET("/lines/:line/stations/:name", handleStation(ctl))
	api.GET("/trains", handleTrains(ctl))
	api.GET("/trains/:id", handleTrain(ctl))
	api.GET("/throughput", handleThroughput(ctl))
	api.POST("/throughput/reset", handleThroughputReset(ctl))
	api.GET("/intents", handlePending(ctl))
	api.DELETE("/intents/:id", handleWithdraw(ctl))

	// Clock.
	api.GET("/clock", handleClock(ctl))
	api.POST("/clock/start", handleClockStart(ctl))
	api.POST("/clock/stop", handleClockStop(ctl))
	api.POST("/clock/time", handleClockTime(ctl))
	api.POST("/clock/speed", handleClockSpeed(ctl))

	// Collaborator reports.
	api.POST("/wayside/:source/occupancy", handleOccupancy(ctl))
	api.POST("/wayside/:source/failure", handleFailure(ctl))
	api.POST("/wayside/:source/switch", handleSwitchReport(ctl))
	api.POST("/wayside/:source/gate", handleGateReport(ctl))
	api.POST("/wayside/:source/stations", handleStationCounts(ctl))
	api.POST("/trains/:id/telemetry", handleTelemetry(ctl))

	// Operator commands.
	api.POST("/dispatch", handleDispatch(ctl))
	api.DELETE("/trains/:id", handleRemoveTrain(ctl))
	api.POST("/maintenance/blocks/:line/:section/:number/close", handleBlockStatus(ctl, track.StatusClosed))
	api.POST("/maintenance/blocks/:line/:section/:number/open", handleBlockStatus(ctl, track.StatusOpen))
	api.POST("/maintenance/switches/:line/:section/:number/throw", handleThrowSwitch(ctl))
	api.POST("/maintenance/switches/:line/:section/:number/lock", handleLockSwitch(ctl, true))
	api.POST("/maintenance/switches/:line/:section/:number/unlock", handleLockSwitch(ctl, false))

	api.GET("/events", handleEvents(ctl))
}

// errorStatus maps a controller error to an HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, track.ErrUnknownBlock),
		errors.Is(err, trains.ErrUnknownTrain),
		errors.Is(err, intent.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrInvalidRoute),
		errors.Is(err, dispatch.ErrOriginBusy),
		errors.Is(err, track.ErrSwitchBusy),
		errors.Is(err, track.ErrInvalidState),
		errors.Is(err, clock.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, intent.ErrQueueFull):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errorStatus(err), gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// elementID parses the :line/:section/:number path parameters.
func elementID(c *gin.Context) (track.ID, error) {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil || n <= 0 {
		return track.ID{}, fmt.Errorf("invalid number %q", c.Param("number"))
	}
	return track.ID{Line: c.Param("line"), Section: c.Param("section"), Number: n}, nil
}

func trainID(c *gin.Context) (trains.ID, error) {
	n, err := strconv.Atoi(c.Param("id"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid train id %q", c.Param("id"))
	}
	return trains.ID(n), nil
}

func handleSnapshot(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Snapshot())
	}
}

func handleLines(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Snapshot().Lines)
	}
}

func handleLine(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		line, err := ctl.Snapshot().Line(c.Param("line"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, line)
	}
}

func handleBlock(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := elementID(c)
		if err != nil {
			badRequest(c, err)
			return
		}
		b, err := ctl.Snapshot().Block(id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

func handleSwitch(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := elementID(c)
		if err != nil {
			badRequest(c, err)
			return
		}
		sw, err := ctl.Snapshot().Switch(id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, sw)
	}
}

func handleGate(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := elementID(c)
		if err != nil {
			badRequest(c, err)
			return
		}
		g, err := ctl.Snapshot().Gate(id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, g)
	}
}

func handleStation(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := ctl.Snapshot().Station(track.StationID{Line: c.Param("line"), Name: c.Param("name")})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func handleTrains(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		ts := ctl.Trains()
		if ts == nil {
			ts = []trains.Train{}
		}
		c.JSON(http.StatusOK, ts)
	}
}

func handleTrain(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := trainID(c)
		if err != nil {
			badRequest(c, err)
			return
		}
		t, err := ctl.Snapshot().Train(id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func handleThroughput(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Throughput())
	}
}

func handleThroughputReset(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctl.ResetThroughput()
		c.Status(http.StatusNoContent)
	}
}

func handlePending(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		pending := ctl.Pending()
		if pending == nil {
			pending = []intent.Intent{}
		}
		c.JSON(http.StatusOK, pending)
	}
}

func handleWithdraw(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, err := ctl.Withdraw(c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, in)
	}
}
