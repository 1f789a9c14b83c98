package controller

import (
	"io"
	"net/http"
	"strconv"

	"github.com/alimikegami/point-of-sales/payment-service/internal/dto"
	"github.com/alimikegami/point-of-sales/payment-service/internal/service"
	pkgdto "github.com/alimikegami/point-of-sales/payment-service/pkg/dto"
	"github.com/alimikegami/point-of-sales/payment-service/pkg/errs"
	"github.com/alimikegami/point-of-sales/payment-service/pkg/response"
	"github.com/alimikegami/point-of-sales/payment-service/pkg/utils"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type Controller struct {
	service service.PaymentService
}

func CreatePaymentController(e *echo.Group, service service.PaymentService, isLoggedIn echo.MiddlewareFunc) {
	c := Controller{
		service: service,
	}

	e.POST("/orders", c.AddOrder, isLoggedIn)
	e.GET("/orders", c.GetOrders, isLoggedIn)
	e.POST("/orders/:id/refunds", c.RefundOrder, isLoggedIn)

	// Gateway-facing endpoints: authenticated by payload signature, not JWT.
	e.POST("/payments/wayforpay/callback", c.ServiceCallback)
	e.Match([]string{http.MethodGet, http.MethodPost}, "/payments/wayforpay/return", c.ReturnRedirect)
}

func (c *Controller) AddOrder(e echo.Context) error {
	payload := dto.OrderRequest{}
	err := e.Bind(&payload)
	if err != nil {
		log.Error().Err(err).Str("component", "AddOrder").Msg("")
		return response.WriteErrorResponse(e, errs.ErrBadRequest, nil)
	}

	resp, err := c.service.AddOrder(e.Request().Context(), payload)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "", resp)
}

func (c *Controller) GetOrders(e echo.Context) error {
	filter := pkgdto.Filter{}
	err := e.Bind(&filter)
	if err != nil {
		log.Error().Err(err).Str("component", "GetOrders").Msg("")
	}

	responsePayload, err := c.service.GetOrders(e.Request().Context(), filter)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "successfully retrieved orders record", responsePayload)
}

func (c *Controller) RefundOrder(e echo.Context) error {
	orderID, err := strconv.ParseInt(e.Param("id"), 10, 64)
	if err != nil {
		return response.WriteErrorResponse(e, errs.ErrOrderNotFound, nil)
	}

	payload := dto.RefundRequest{}
	if err := e.Bind(&payload); err != nil {
		log.Error().Err(err).Str("component", "RefundOrder").Msg("")
		return response.WriteErrorResponse(e, errs.ErrBadRequest, nil)
	}

	userID, userName := utils.ExtractTokenUser(e)
	log.Info().Int64("user_id", userID).Str("user", userName).Int64("order_id", orderID).Str("component", "RefundOrder").Msg("refund requested")

	if err := c.service.RefundOrder(e.Request().Context(), orderID, payload); err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "refund processed", nil)
}

// ServiceCallback handles the server-to-server payment notification. The
// gateway inspects the response body, not the status code, and keeps
// retrying until it reads a validly signed ack, so errors are written as
// plain text with HTTP 200.
func (c *Controller) ServiceCallback(e echo.Context) error {
	body, err := io.ReadAll(e.Request().Body)
	if err != nil {
		log.Error().Err(err).Str("component", "ServiceCallback").Msg("")
		return e.String(http.StatusOK, errs.ErrBadRequest.Error())
	}

	ack, err := c.service.HandleServiceCallback(e.Request().Context(), body)
	if err != nil {
		log.Error().Err(err).Str("component", "ServiceCallback").Msg("")
		return e.String(http.StatusOK, err.Error())
	}

	return e.JSON(http.StatusOK, ack)
}

// ReturnRedirect handles the browser coming back from the hosted checkout
// with the transaction outcome as form fields.
func (c *Controller) ReturnRedirect(e echo.Context) error {
	form, err := e.FormParams()
	if err != nil {
		log.Error().Err(err).Str("component", "ReturnRedirect").Msg("")
		return e.String(http.StatusOK, errs.ErrBadRequest.Error())
	}

	redirectURL, err := c.service.HandleReturnRedirect(e.Request().Context(), form)
	if err != nil {
		log.Error().Err(err).Str("component", "ReturnRedirect").Msg("")
		return e.String(http.StatusOK, err.Error())
	}

	return e.Redirect(http.StatusFound, redirectURL)
}
