package rest

import (
	"github.com/gofiber/fiber/v2"

	domainCustomer "github.com/AzielCF/az-fbm/domains/customer"
	"github.com/AzielCF/az-fbm/pkg/utils"
)

type Customer struct {
	Service domainCustomer.ICustomerUsecase
}

func InitRestCustomer(app fiber.Router, service domainCustomer.ICustomerUsecase) Customer {
	rest := Customer{Service: service}
	app.Get("/customers/:page_id", rest.List)
	app.Post("/customers/:page_id/sync", rest.Sync)
	app.Post("/customers/:page_id/classify", rest.Classify)
	return rest
}

func (controller *Customer) List(c *fiber.Ctx) error {
	customers, err := controller.Service.List(c.UserContext(), c.Params("page_id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success fetch customers",
		Results: customers,
	})
}

func (controller *Customer) Sync(c *fiber.Ctx) error {
	result, err := controller.Service.Sync(c.UserContext(), c.Params("page_id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success sync customers from conversations",
		Results: result,
	})
}

func (controller *Customer) Classify(c *fiber.Ctx) error {
	result, err := controller.Service.Classify(c.UserContext(), c.Params("page_id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success classify customers",
		Results: result,
	})
}
