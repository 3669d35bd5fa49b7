package web

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type loginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
	Next     string `form:"next"`
}

type registerForm struct {
	Username     string `form:"username" binding:"max=150"`
	Email        string `form:"email" binding:"omitempty,email"`
	Password     string `form:"password"`
	Confirmation string `form:"confirmation"`
}

type createAuctionForm struct {
	Name        string `form:"name" binding:"required,notblank,max=64"`
	Description string `form:"description" binding:"required,notblank"`
	ImageURL    string `form:"image_url" binding:"omitempty,url,max=200"`
	MinPrice    string `form:"min_price"`
	CategoryID  string `form:"category_id" binding:"omitempty,uuid"`
}

type bidForm struct {
	Price string `form:"price" binding:"required"`
}

type commentForm struct {
	Body string `form:"body"`
}

// RegisterValidators adds the custom tags used by the forms to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	return v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

var fieldLabels = map[string]string{
	"Username":     "Username",
	"Email":        "Email",
	"Password":     "Password",
	"Confirmation": "Confirmation",
	"Name":         "Name",
	"Description":  "Description",
	"ImageURL":     "Image URL",
	"CategoryID":   "Category",
	"Price":        "Bid",
}

// formMessage turns a binding error into a single line for the page
func formMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid form submission."
	}

	fe := verrs[0]
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required", "notblank":
		return label + " is required."
	case "max":
		return label + " must be at most " + fe.Param() + " characters."
	case "email":
		return label + " must be a valid email address."
	case "url":
		return label + " must be a valid URL."
	case "uuid":
		return label + " is not valid."
	default:
		return label + " is invalid."
	}
}
