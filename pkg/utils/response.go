package utils

import "github.com/gofiber/fiber/v2"

// Error writes the failure envelope every endpoint shares: a status code and
// a human-readable message.
func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"message": message,
	})
}

// Message writes a bare confirmation body for endpoints that return no data.
func Message(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"message": message,
	})
}
