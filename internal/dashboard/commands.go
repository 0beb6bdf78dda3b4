package dashboard

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/ctc/internal/ctc"
	"github.com/zulandar/ctc/internal/intent"
	"github.com/zulandar/ctc/internal/track"
)

// elementBody names a block, switch or gate in a report.
type elementBody struct {
	Line    string `json:"line" binding:"required"`
	Section string `json:"section" binding:"required"`
	Number  int    `json:"number" binding:"required,min=1"`
}

func (b elementBody) id() track.ID {
	return track.ID{Line: b.Line, Section: b.Section, Number: b.Number}
}

type occupancyBody struct {
	elementBody
	Occupied *bool `json:"occupied" binding:"required"`
}

type failureBody struct {
	elementBody
	Failure track.Failure `json:"failure" binding:"required"`
}

type switchBody struct {
	elementBody
	Position track.SwitchPosition `json:"position" binding:"required"`
}

type gateBody struct {
	elementBody
	Status track.GateStatus `json:"status" binding:"required"`
}

type stationBody struct {
	Line     string `json:"line" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Entering int    `json:"entering" binding:"min=0"`
	Leaving  int    `json:"leaving" binding:"min=0"`
}

type telemetryBody struct {
	elementBody
	Source string  `json:"source" binding:"required"`
	Speed  float64 `json:"speed" binding:"min=0"`
}

type dispatchBody struct {
	Line        string    `json:"line" binding:"required"`
	Destination string    `json:"destination" binding:"required"`
	Arrival     time.Time `json:"arrival"`
}

type positionBody struct {
	Position track.SwitchPosition `json:"position" binding:"required"`
}

type clockTimeBody struct {
	Time time.Time `json:"time"`
}

type clockSpeedBody struct {
	Speed float64 `json:"speed" binding:"required"`
}

// accepted reports a queued intent. It takes effect at the next tick.
func accepted(c *gin.Context, in intent.Intent, err error) {
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, in)
}

// report binds a wayside body and queues the intent built from it.
func report[T any](ctl *ctc.Controller, build func(source string, body T) intent.Intent) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body T
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		in, err := ctl.Push(build(c.Param("source"), body))
		accepted(c, in, err)
	}
}

func handleOccupancy(ctl *ctc.Controller) gin.HandlerFunc {
	return report(ctl, func(source string, b occupancyBody) intent.Intent {
		return intent.Intent{Kind: intent.BlockOccupancy, Source: source, Target: b.id(), Occupied: *b.Occupied}
	})
}

func handleFailure(ctl *ctc.Controller) gin.HandlerFunc {
	return report(ctl, func(source string, b failureBody) intent.Intent {
		return intent.Intent{Kind: intent.BlockFailure, Source: source, Target: b.id(), Failure: b.Failure}
	})
}

func handleSwitchReport(ctl *ctc.Controller) gin.HandlerFunc {
	return report(ctl, func(source string, b switchBody) intent.Intent {
		return intent.Intent{Kind: intent.SwitchPosition, Source: source, Target: b.id(), Position: b.Position}
	})
}

func handleGateReport(ctl *ctc.Controller) gin.HandlerFunc {
	return report(ctl, func(source string, b gateBody) intent.Intent {
		return intent.Intent{Kind: intent.GateStatus, Source: source, Target: b.id(), Gate: b.Status}
	})
}

func handleStationCounts(ctl *ctc.Controller) gin.HandlerFunc {
	return report(ctl, func(source string, b stationBody) intent.Intent {
		return intent.Intent{
			Kind:     intent.StationCounts,
			Source:   source,
			Station:  track.StationID{Line: b.Line, Name: b.Name},
			Entering: b.Entering,
			Leaving:  b.Leaving,
		}
	})
}

func handleTelemetry(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := trainID(c)
		if err != nil {
			badRequest(c, err)
			return
		}
		var body telemetryBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		in, err := ctl.Push(intent.Intent{
			Kind:   intent.Telemetry,
			Source: body.Source,
			Train:  id,
			Target: body.id(),
			Speed:  body.Speed,
		})
		accepted(c, in, err)
	}
}

func handleDispatch(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dispatchBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		in, err := ctl.DispatchManual(body.Line, body.Destination, body.Arrival)
		accepted(c, in, err)
	}
}

func handleRemoveTrain(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := trainID(c)
		if err != nil {
			badRequest(c, err)
			return
		}
		in, err := ctl.RemoveTrain(id)
		accepted(c, in, err)
	}
}

func handleBlockStatus(ctl *ctc.Controller, status track.BlockStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := elementID(c)
		if err != nil {
			badRequest(c, err)
			return
		}
		in, err := ctl.SetBlockStatus(id, status)
		accepted(c, in, err)
	}
}

func handleThrowSwitch(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := elementID(c)
		if err != nil {
			badRequest(c, err)
			return
		}
		var body positionBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		in, err := ctl.ThrowSwitch(id, body.Position)
		accepted(c, in, err)
	}
}

func handleLockSwitch(ctl *ctc.Controller, locked bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := elementID(c)
		if err != nil {
			badRequest(c, err)
			return
		}
		in, err := ctl.LockSwitch(id, locked)
		accepted(c, in, err)
	}
}

func handleClock(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Clock().Now())
	}
}

func handleClockStart(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctl.Clock().Start()
		c.JSON(http.StatusOK, ctl.Clock().Now())
	}
}

func handleClockStop(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctl.Clock().Stop()
		c.JSON(http.StatusOK, ctl.Clock().Now())
	}
}

func handleClockTime(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body clockTimeBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		if body.Time.IsZero() {
			badRequest(c, errors.New("time is required"))
			return
		}
		if err := ctl.Clock().SetTime(body.Time); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, ctl.Clock().Now())
	}
}

func handleClockSpeed(ctl *ctc.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body clockSpeedBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		if err := ctl.Clock().SetSpeed(body.Speed); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, ctl.Clock().Now())
	}
}
