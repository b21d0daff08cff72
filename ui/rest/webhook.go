package rest

import (
	"github.com/gofiber/fiber/v2"

	domainWebhook "github.com/AzielCF/az-fbm/domains/webhook"
	"github.com/AzielCF/az-fbm/pkg/utils"
)

type Webhook struct {
	Service domainWebhook.IWebhookUsecase
}

func InitRestWebhook(app fiber.Router, service domainWebhook.IWebhookUsecase) Webhook {
	rest := Webhook{Service: service}
	app.Get("/webhook", rest.Verify)
	app.Post("/webhook", rest.Receive)
	return rest
}

// Verify answers the Graph subscription handshake with the raw
// challenge string, as the platform expects.
func (controller *Webhook) Verify(c *fiber.Ctx) error {
	challenge, err := controller.Service.Verify(
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
	)
	if err != nil {
		return c.Status(403).SendString("verification failed")
	}
	return c.SendString(challenge)
}

func (controller *Webhook) Receive(c *fiber.Ctx) error {
	var event domainWebhook.Event
	err := c.BodyParser(&event)
	utils.PanicIfNeeded(err)

	err = controller.Service.HandleEvent(c.UserContext(), event)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Event received",
	})
}
