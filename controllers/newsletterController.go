package controllers

import (
	"errors"

	"newsletter-backend/apperror"
	"newsletter-backend/database"
	"newsletter-backend/middlewares"
	"newsletter-backend/models"
	"newsletter-backend/newsletter"
	"newsletter-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PublishedLocation is where a client is sent after publishing an issue.
const PublishedLocation = "/admin/newsletters"

type NewsletterController struct {
	DB        *gorm.DB
	Publisher *newsletter.Publisher
}

type publishIssueInput struct {
	Title       string `json:"title" form:"title" validate:"required,max=512"`
	TextContent string `json:"text_content" form:"text_content" validate:"required"`
	HTMLContent string `json:"html_content" form:"html_content" validate:"required"`
}

// Publish records an issue for every confirmed subscriber. It runs behind
// middlewares.Idempotency, so its writes share the claim transaction.
func (ctl *NewsletterController) Publish(c *fiber.Ctx) error {
	var data publishIssueInput
	if err := c.BodyParser(&data); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	utils.TrimStrings(&data)
	if err := middlewares.ValidateStruct(&data); err != nil {
		return err
	}

	issueID, err := ctl.Publisher.PublishToConfirmed(c.UserContext(), database.FromCtx(c, ctl.DB), newsletter.Content{
		Title: data.Title,
		Text:  data.TextContent,
		HTML:  data.HTMLContent,
	})
	if err != nil {
		return err
	}

	c.Location(PublishedLocation)
	return c.Status(fiber.StatusSeeOther).JSON(fiber.Map{
		"message":  "The newsletter issue has been accepted, emails will go out shortly.",
		"issue_id": issueID,
	})
}

// Get returns an issue and how many of its deliveries are still pending.
func (ctl *NewsletterController) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid issue id")
	}

	db := database.FromCtx(c, ctl.DB)

	var issue models.NewsletterIssue
	err := db.Where("newsletter_issue_id = ?", id).Take(&issue).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "newsletter issue not found")
	}
	if err != nil {
		return apperror.Storage("load newsletter issue", err)
	}

	var pending int64
	if err := db.Model(&models.IssueDeliveryQueueItem{}).
		Where("newsletter_issue_id = ?", id).
		Count(&pending).Error; err != nil {
		return apperror.Storage("count pending deliveries", err)
	}

	return c.JSON(fiber.Map{
		"issue":              issue,
		"pending_deliveries": pending,
	})
}
