package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sahayog/ms-go-donations/app/factory"
	"github.com/sahayog/ms-go-donations/app/mapper"
	"github.com/sahayog/ms-go-donations/app/service"
	"github.com/sahayog/ms-go-donations/app/types"
	"github.com/sirupsen/logrus"
)

type DonationController struct {
	donationService *service.DonationService
	logger          logrus.FieldLogger
}

func NewDonationController(donationService *service.DonationService) *DonationController {
	return &DonationController{
		donationService: donationService,
		logger:          factory.NewModuleLogger("donations-controller"),
	}
}

func (c *DonationController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *DonationController) CreateOrder(ctx echo.Context) error {
	req, err := types.NewCreateOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, types.CodeInvalidRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, types.CodeInvalidRequest, err.Error())
	}

	item, err := c.donationService.CreateOrder(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrGatewayUnsupported):
			return c.writeError(ctx, http.StatusBadRequest, types.CodeInvalidRequest, err.Error())
		case errors.Is(err, service.ErrAlreadyProcessed):
			return c.writeError(ctx, http.StatusConflict, types.CodeAlreadyProcessed, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create order failed")
			return c.writeError(ctx, http.StatusInternalServerError, types.CodeInternal, "internal server error")
		}
	}

	orderID := ""
	if item.GatewayOrderID != nil {
		orderID = *item.GatewayOrderID
	}
	return ctx.JSON(http.StatusCreated, &types.CreateOrderResponse{
		Order: &types.Order{
			ID:          orderID,
			AmountPaise: item.AmountPaise,
			Currency:    item.Currency,
		},
		DonationID: item.PublicID,
	})
}

func (c *DonationController) VerifyPayment(ctx echo.Context) error {
	req, err := types.NewVerifyPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, types.CodeInvalidRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, types.CodeInvalidRequest, err.Error())
	}

	item, err := c.donationService.VerifyPayment(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyProcessed):
			// The webhook won the race. The machine-readable code lets the
			// client collapse this into a success instead of guessing from
			// the message text.
			return c.writeError(ctx, http.StatusConflict, types.CodeAlreadyProcessed, err.Error())
		case errors.Is(err, service.ErrSignatureMismatch):
			return c.writeError(ctx, http.StatusBadRequest, types.CodeSignatureMismatch, err.Error())
		case errors.Is(err, service.ErrOrderMismatch), errors.Is(err, service.ErrGatewayUnsupported):
			return c.writeError(ctx, http.StatusBadRequest, types.CodeInvalidRequest, err.Error())
		case errors.Is(err, service.ErrDonationNotFound):
			return c.writeError(ctx, http.StatusNotFound, types.CodeNotFound, "donation not found")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Verify payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, types.CodeInternal, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.DonationEnvelopeResponse{Donation: mapper.DonationToResponse(item)})
}

func (c *DonationController) GetDonation(ctx echo.Context) error {
	req, err := types.NewGetDonationRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, types.CodeInvalidRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, types.CodeInvalidRequest, err.Error())
	}

	item, err := c.donationService.GetDonation(ctx.Request().Context(), req.DonationID)
	if err != nil {
		if errors.Is(err, service.ErrDonationNotFound) {
			return c.writeError(ctx, http.StatusNotFound, types.CodeNotFound, "donation not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get donation failed")
		return c.writeError(ctx, http.StatusInternalServerError, types.CodeInternal, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.DonationEnvelopeResponse{Donation: mapper.DonationToResponse(item)})
}

func (c *DonationController) ListDonations(ctx echo.Context) error {
	req, err := types.NewListDonationsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, types.CodeInvalidRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, types.CodeInvalidRequest, err.Error())
	}

	items, err := c.donationService.ListDonations(ctx.Request().Context(), req)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List donations failed")
		return c.writeError(ctx, http.StatusInternalServerError, types.CodeInternal, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListDonationsResponse{Donations: mapper.DonationsToResponse(items)})
}

func (c *DonationController) Certificate(ctx echo.Context) error {
	req, err := types.NewGetDonationRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, types.CodeInvalidRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, types.CodeInvalidRequest, err.Error())
	}

	blob, err := c.donationService.Certificate(ctx.Request().Context(), req.DonationID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDonationNotFound):
			return c.writeError(ctx, http.StatusNotFound, types.CodeNotFound, "donation not found")
		case errors.Is(err, service.ErrCertificateUnavailable):
			return c.writeError(ctx, http.StatusConflict, types.CodeCertificatePending, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Certificate render failed")
			return c.writeError(ctx, http.StatusInternalServerError, types.CodeInternal, "internal server error")
		}
	}

	return ctx.Blob(http.StatusOK, "image/png", blob)
}

func (c *DonationController) HandleGatewayWebhook(ctx echo.Context) error {
	req, err := types.NewGatewayWebhookRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, types.CodeInvalidRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, types.CodeInvalidRequest, err.Error())
	}

	_, err = c.donationService.HandleGatewayWebhook(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGatewayUnsupported), errors.Is(err, service.ErrWebhookRejected):
			return c.writeError(ctx, http.StatusBadRequest, types.CodeGatewayRejected, err.Error())
		case errors.Is(err, service.ErrDonationNotFound):
			return c.writeError(ctx, http.StatusNotFound, types.CodeNotFound, "donation not found")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Handle gateway webhook failed")
			return c.writeError(ctx, http.StatusInternalServerError, types.CodeInternal, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Gateway webhook processed"})
}

func (c *DonationController) writeError(ctx echo.Context, statusCode int, code, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message, Code: code})
}
