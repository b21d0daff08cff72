package rest

import (
	"github.com/gofiber/fiber/v2"

	domainSchedule "github.com/AzielCF/az-fbm/domains/schedule"
	"github.com/AzielCF/az-fbm/pkg/utils"
)

type Schedule struct {
	Service domainSchedule.IScheduleUsecase
}

func InitRestSchedule(app fiber.Router, service domainSchedule.IScheduleUsecase) Schedule {
	rest := Schedule{Service: service}
	app.Post("/schedules", rest.Create)
	app.Get("/schedules", rest.List)
	app.Get("/schedules/status", rest.SystemStatus)
	app.Get("/schedules/:id", rest.Get)
	app.Put("/schedules/:id", rest.Update)
	app.Delete("/schedules/:id", rest.Delete)
	app.Post("/schedules/:id/activate", rest.Activate)
	app.Post("/schedules/:id/deactivate", rest.Deactivate)
	app.Post("/schedules/:id/run", rest.ForceRun)
	app.Get("/schedules/:id/status", rest.Status)
	return rest
}

func (controller *Schedule) Create(c *fiber.Ctx) error {
	var request domainSchedule.CreateRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	schedule, err := controller.Service.Create(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success create schedule",
		Results: schedule,
	})
}

func (controller *Schedule) List(c *fiber.Ctx) error {
	schedules, err := controller.Service.List(c.UserContext(), c.Query("page_id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success fetch schedules",
		Results: schedules,
	})
}

func (controller *Schedule) Get(c *fiber.Ctx) error {
	schedule, err := controller.Service.Get(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success fetch schedule",
		Results: schedule,
	})
}

func (controller *Schedule) Update(c *fiber.Ctx) error {
	var request domainSchedule.UpdateRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	schedule, err := controller.Service.Update(c.UserContext(), c.Params("id"), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success update schedule",
		Results: schedule,
	})
}

func (controller *Schedule) Delete(c *fiber.Ctx) error {
	err := controller.Service.Delete(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success delete schedule",
	})
}

func (controller *Schedule) Activate(c *fiber.Ctx) error {
	schedule, err := controller.Service.Toggle(c.UserContext(), c.Params("id"), true)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success activate schedule",
		Results: schedule,
	})
}

func (controller *Schedule) Deactivate(c *fiber.Ctx) error {
	schedule, err := controller.Service.Toggle(c.UserContext(), c.Params("id"), false)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success deactivate schedule",
		Results: schedule,
	})
}

func (controller *Schedule) ForceRun(c *fiber.Ctx) error {
	err := controller.Service.ForceRun(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success trigger schedule run",
	})
}

func (controller *Schedule) Status(c *fiber.Ctx) error {
	status, err := controller.Service.Status(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success fetch schedule status",
		Results: status,
	})
}

func (controller *Schedule) SystemStatus(c *fiber.Ctx) error {
	status, err := controller.Service.SystemStatus(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success fetch system status",
		Results: status,
	})
}
