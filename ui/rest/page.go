package rest

import (
	"github.com/gofiber/fiber/v2"

	domainPage "github.com/AzielCF/az-fbm/domains/page"
	"github.com/AzielCF/az-fbm/pkg/utils"
)

type Page struct {
	Service domainPage.IPageUsecase
}

func InitRestPage(app fiber.Router, service domainPage.IPageUsecase) Page {
	rest := Page{Service: service}
	app.Post("/pages", rest.Register)
	app.Get("/pages", rest.List)
	app.Delete("/pages/:id", rest.Delete)
	return rest
}

func (controller *Page) Register(c *fiber.Ctx) error {
	var request domainPage.RegisterRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	page, err := controller.Service.Register(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success register page",
		Results: page,
	})
}

func (controller *Page) List(c *fiber.Ctx) error {
	pages, err := controller.Service.List(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success fetch pages",
		Results: pages,
	})
}

func (controller *Page) Delete(c *fiber.Ctx) error {
	err := controller.Service.Delete(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success delete page",
	})
}
