package accounts

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// AccountService is what the HTTP controller needs from the lifecycle
type AccountService interface {
	Register(ctx context.Context, msg RegisterAccountMessage) (*Result, error)
	Verify(ctx context.Context, channel, code string) (*Result, error)
	ResendVerification(ctx context.Context, email string) (*Result, error)
	RecoverPassword(ctx context.Context, email string) (*Result, error)
	ResetPassword(ctx context.Context, msg FinalizePasswordResetMessage) (*Result, error)
	PasswordResetStatus(ctx context.Context, token string) (*PasswordResetStatusResponse, error)
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, token string) (*Result, error)
}

var _ AccountService = (*Lifecycle)(nil)

// RegisterAccountRoutes mounts the JSON endpoints on the given router
func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) *AccountController {
	controller := NewAccountController(opts...)

	app.Post(controller.Routes.Register, controller.Register).
		SetName("account.register")

	app.Get(fmt.Sprintf("%s/:type/:code", controller.Routes.Verify), controller.Verify).
		SetName("account.verify")

	app.Post(controller.Routes.ResendVerification, controller.ResendVerification).
		SetName("account.verification.resend")

	app.Post(controller.Routes.PasswordRecover, controller.RecoverPassword).
		SetName("pwd-recover.post")

	app.Get(fmt.Sprintf("%s/:token", controller.Routes.PasswordReset), controller.PasswordResetStatus).
		SetName("pwd-reset.get")
	app.Post(fmt.Sprintf("%s/:token", controller.Routes.PasswordReset), controller.ResetPassword).
		SetName("pwd-reset.post")

	app.Post(controller.Routes.Login, controller.Login).
		SetName("sign-in.post")

	app.Post(controller.Routes.Logout, controller.Logout).
		SetName("sign-out.post")

	return controller
}

type AccountControllerRoutes struct {
	Register           string
	Verify             string
	ResendVerification string
	PasswordRecover    string
	PasswordReset      string
	Login              string
	Logout             string
}

type AccountController struct {
	Debug   bool
	Logger  Logger
	Service AccountService
	Routes  *AccountControllerRoutes
}

type AccountControllerOption func(*AccountController) *AccountController

// WithAccountService sets the service the controller delegates to
func WithAccountService(svc AccountService) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Service = svc
		return c
	}
}

func WithControllerLogger(logger Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerDebug(debug bool) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Debug = debug
		return c
	}
}

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger: defLogger{},
		Routes: &AccountControllerRoutes{
			Register:           "/register",
			Verify:             "/verify",
			ResendVerification: "/verification/resend",
			PasswordRecover:    "/password/recover",
			PasswordReset:      "/password/reset",
			Login:              "/login",
			Logout:             "/logout",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing AccountService in account controller...")
	}

	return c
}

// EmailPayload is the body of the resend and recover endpoints
type EmailPayload struct {
	Email string `form:"email" json:"email"`
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// LogoutRequest payload
type LogoutRequest struct {
	Token string `form:"token" json:"token"`
}

// TokenResponse is returned by a successful login
type TokenResponse struct {
	Token string `json:"token"`
}

func (a *AccountController) Register(ctx router.Context) error {
	payload := new(RegisterAccountMessage)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register account parse payload", "error", err)
		return a.badRequest(ctx, err)
	}

	a.dump("REGISTER", payload)

	res, err := a.Service.Register(ctx.Context(), *payload)
	if err != nil {
		return a.fail(ctx, "register", err)
	}

	return ctx.JSON(router.StatusOK, res)
}

func (a *AccountController) Verify(ctx router.Context) error {
	res, err := a.Service.Verify(ctx.Context(), ctx.Param("type"), ctx.Param("code"))
	if err != nil {
		return a.fail(ctx, "verify", err)
	}
	return ctx.JSON(router.StatusOK, res)
}

func (a *AccountController) ResendVerification(ctx router.Context) error {
	payload := new(EmailPayload)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("resend verification parse payload", "error", err)
		return a.badRequest(ctx, err)
	}

	res, err := a.Service.ResendVerification(ctx.Context(), payload.Email)
	if err != nil {
		return a.fail(ctx, "resend verification", err)
	}
	return ctx.JSON(router.StatusOK, res)
}

func (a *AccountController) RecoverPassword(ctx router.Context) error {
	payload := new(EmailPayload)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("recover password parse payload", "error", err)
		return a.badRequest(ctx, err)
	}

	res, err := a.Service.RecoverPassword(ctx.Context(), payload.Email)
	if err != nil {
		return a.fail(ctx, "recover password", err)
	}
	return ctx.JSON(router.StatusOK, res)
}

func (a *AccountController) PasswordResetStatus(ctx router.Context) error {
	res, err := a.Service.PasswordResetStatus(ctx.Context(), ctx.Param("token"))
	if err != nil {
		return a.fail(ctx, "password reset status", err)
	}
	return ctx.JSON(router.StatusOK, res)
}

func (a *AccountController) ResetPassword(ctx router.Context) error {
	payload := new(FinalizePasswordResetMessage)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("reset password parse payload", "error", err)
		return a.badRequest(ctx, err)
	}

	payload.Token = ctx.Param("token")

	res, err := a.Service.ResetPassword(ctx.Context(), *payload)
	if err != nil {
		return a.fail(ctx, "reset password", err)
	}
	return ctx.JSON(router.StatusOK, res)
}

func (a *AccountController) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.badRequest(ctx, err)
	}

	token, err := a.Service.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.fail(ctx, "login", err)
	}

	return ctx.JSON(router.StatusOK, TokenResponse{Token: token})
}

func (a *AccountController) Logout(ctx router.Context) error {
	// the body is optional, the token may come in a header or the query
	payload := new(LogoutRequest)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Debug("logout without a token body", "error", err)
	}

	token := strings.TrimSpace(payload.Token)
	if token == "" {
		token = TokenFromRequest(ctx)
	}

	res, err := a.Service.Logout(ctx.Context(), token)
	if err != nil {
		return a.fail(ctx, "logout", err)
	}
	return ctx.JSON(router.StatusOK, res)
}

func (a *AccountController) dump(label string, payload any) {
	if !a.Debug {
		return
	}
	fmt.Println("======= ACCOUNT " + label + " ======")
	fmt.Println(print.MaybePrettyJSON(payload))
	fmt.Println("=========================")
}

func (a *AccountController) badRequest(ctx router.Context, err error) error {
	return ctx.JSON(router.StatusBadRequest, ErrorResponse{
		Success: false,
		Error:   "Failed to parse request body",
	})
}

func (a *AccountController) fail(ctx router.Context, op string, err error) error {
	status := StatusFromError(err)
	if status >= http.StatusInternalServerError {
		a.Logger.Error(op+" failed", "error", err)
	} else {
		a.Logger.Debug(op+" rejected", "error", err)
	}
	return ctx.JSON(status, NewErrorResponse(err))
}
