package rest

import (
	"github.com/gofiber/fiber/v2"

	domainDelivery "github.com/AzielCF/az-fbm/domains/delivery"
	"github.com/AzielCF/az-fbm/pkg/utils"
)

type Delivery struct {
	Service domainDelivery.IDeliveryUsecase
}

func InitRestDelivery(app fiber.Router, service domainDelivery.IDeliveryUsecase) Delivery {
	rest := Delivery{Service: service}
	app.Get("/deliveries/logs", rest.Logs)
	app.Get("/deliveries/stats/:page_id", rest.Stats)
	return rest
}

func (controller *Delivery) Logs(c *fiber.Ctx) error {
	var request domainDelivery.LogsRequest
	err := c.QueryParser(&request)
	utils.PanicIfNeeded(err)

	logs, err := controller.Service.Logs(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success fetch delivery logs",
		Results: logs,
	})
}

func (controller *Delivery) Stats(c *fiber.Ctx) error {
	pageID := c.Params("page_id")
	if pageID == "" {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: "page_id is required",
		})
	}

	stats, err := controller.Service.Stats(c.UserContext(), pageID)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success fetch delivery stats",
		Results: stats,
	})
}
