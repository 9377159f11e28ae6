package controllers

import (
	"errors"
	"time"

	"newsletter-backend/apperror"
	"newsletter-backend/middlewares"
	"newsletter-backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuthController struct {
	DB        *gorm.DB
	JWTSecret []byte
	JWTTTL    time.Duration
}

type loginInput struct {
	Username string `json:"username" form:"username" validate:"required,max=128"`
	Password string `json:"password" form:"password" validate:"required"`
}

func (ctl *AuthController) Login(c *fiber.Ctx) error {
	var data loginInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}

	var user models.User
	err := ctl.DB.WithContext(c.UserContext()).Where("username = ?", data.Username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "invalid credentials"})
	}
	if err != nil {
		return apperror.Storage("load user", err)
	}

	if err := user.ComparePassword(data.Password); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "invalid credentials"})
	}

	token, err := middlewares.GenerateJWT(ctl.JWTSecret, user.Id, user.Username, ctl.JWTTTL)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":       user.Id,
			"username": user.Username,
		},
	})
}
