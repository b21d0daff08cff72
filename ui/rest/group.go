package rest

import (
	"github.com/gofiber/fiber/v2"

	domainGroup "github.com/AzielCF/az-fbm/domains/group"
	"github.com/AzielCF/az-fbm/pkg/utils"
)

type Group struct {
	Service domainGroup.IGroupUsecase
}

func InitRestGroup(app fiber.Router, service domainGroup.IGroupUsecase) Group {
	rest := Group{Service: service}
	app.Post("/groups", rest.Create)
	app.Get("/groups", rest.List)
	app.Get("/groups/:id", rest.Get)
	app.Delete("/groups/:id", rest.Delete)
	app.Get("/groups/:id/members", rest.Members)
	app.Post("/groups/:id/members", rest.AddMember)
	app.Delete("/groups/:id/members/:recipient_id", rest.RemoveMember)
	return rest
}

func (controller *Group) Create(c *fiber.Ctx) error {
	var request domainGroup.CreateRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	group, err := controller.Service.Create(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success create group",
		Results: group,
	})
}

func (controller *Group) List(c *fiber.Ctx) error {
	groups, err := controller.Service.List(c.UserContext(), c.Query("page_id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success fetch groups",
		Results: groups,
	})
}

func (controller *Group) Get(c *fiber.Ctx) error {
	group, err := controller.Service.Get(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success fetch group",
		Results: group,
	})
}

func (controller *Group) Delete(c *fiber.Ctx) error {
	err := controller.Service.Delete(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success delete group",
	})
}

func (controller *Group) Members(c *fiber.Ctx) error {
	members, err := controller.Service.Members(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success fetch group members",
		Results: members,
	})
}

func (controller *Group) AddMember(c *fiber.Ctx) error {
	var request domainGroup.MemberRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	err = controller.Service.AddMember(c.UserContext(), c.Params("id"), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success add group member",
	})
}

func (controller *Group) RemoveMember(c *fiber.Ctx) error {
	err := controller.Service.RemoveMember(c.UserContext(), c.Params("id"), c.Params("recipient_id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success remove group member",
	})
}
