package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/sathyagomani/academy/core/meeting"
)

type meetingApi struct {
	svc      meeting.Service
	validate *validator.Validate
}

func registerMeetingAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := meetingApi{
		svc:      deps.MeetingSvc,
		validate: deps.Validate,
	}

	mg := g.Group("/meetings", jwt)

	// student endpoints
	mg.GET("/mine", api.queryMine, studentMiddleware())

	// admin endpoints
	ag := mg.Group("", adminMiddleware())
	ag.POST("", api.create)
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.reschedule)
	ag.DELETE("/:id", api.destroy)
	ag.POST("/:id/allocate", api.allocate)
	ag.POST("/:id/remove", api.remove)
}

// Handlers

func (api *meetingApi) create(ctx echo.Context) error {
	var data meeting.NewMeeting
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMeeting")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mtg, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating meeting")
	}
	return ctx.JSON(http.StatusCreated, newMeetingResponse(mtg))
}

func (api *meetingApi) query(ctx echo.Context) error {
	meetings, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying meetings")
	}
	return ctx.JSON(http.StatusOK, newMeetingListResponse(meetings))
}

// queryMine lists the authenticated student's own meetings.
func (api *meetingApi) queryMine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	meetings, err := api.svc.QueryForStudent(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying student meetings")
	}
	return ctx.JSON(http.StatusOK, newMeetingListResponse(meetings))
}

func (api *meetingApi) retrieve(ctx echo.Context) error {
	mtg, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newMeetingResponse(mtg))
}

func (api *meetingApi) reschedule(ctx echo.Context) error {
	var data meeting.RescheduleMeeting
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RescheduleMeeting")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mtg, deliveries, err := api.svc.Reschedule(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, MeetingMutationResponse{
		Meeting:    newMeetingResponse(mtg),
		Deliveries: deliveries,
	})
}

func (api *meetingApi) destroy(ctx echo.Context) error {
	deliveries, err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, DeliveryManifestResponse{Deliveries: deliveries})
}

func (api *meetingApi) allocate(ctx echo.Context) error {
	var data meeting.StudentSelection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentSelection")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mtg, deliveries, err := api.svc.Allocate(ctx.Request().Context(), ctx.Param("id"), data.StudentIDs)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, MeetingMutationResponse{
		Meeting:    newMeetingResponse(mtg),
		Deliveries: deliveries,
	})
}

func (api *meetingApi) remove(ctx echo.Context) error {
	var data meeting.StudentSelection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentSelection")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mtg, deliveries, err := api.svc.Remove(ctx.Request().Context(), ctx.Param("id"), data.StudentIDs)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, MeetingMutationResponse{
		Meeting:    newMeetingResponse(mtg),
		Deliveries: deliveries,
	})
}

type (
	// MeetingResponse is a Meeting plus its clock-derived status.
	MeetingResponse struct {
		meeting.Meeting
		Status string `json:"status"`
	}

	MeetingMutationResponse struct {
		Meeting    MeetingResponse          `json:"meeting"`
		Deliveries []meeting.DeliveryResult `json:"deliveries"`
	}

	DeliveryManifestResponse struct {
		Deliveries []meeting.DeliveryResult `json:"deliveries"`
	}
)

func newMeetingResponse(mtg meeting.Meeting) MeetingResponse {
	return MeetingResponse{Meeting: mtg, Status: mtg.Status(time.Now().UTC())}
}

func newMeetingListResponse(meetings []meeting.Meeting) []MeetingResponse {
	res := make([]MeetingResponse, 0, len(meetings))
	for _, mtg := range meetings {
		res = append(res, newMeetingResponse(mtg))
	}
	return res
}
