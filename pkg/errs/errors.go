package errs

import (
	"errors"
	"net/http"
)

const (
	ErrStatusInternalServer = http.StatusInternalServerError
	ErrStatusClient         = http.StatusBadRequest
	ErrStatusNotLoggedIn    = http.StatusUnauthorized
	ErrStatusNoPermission   = http.StatusForbidden
	ErrStatusUnauthorized   = http.StatusUnauthorized
	ErrStatusNotFound       = http.StatusNotFound
	ErrStatusConflict       = http.StatusConflict
	ErrBadGateway           = http.StatusBadGateway
)

var (
	ErrInternalServer = errors.New("Internal server error")
	ErrClient         = errors.New("Bad request")
	ErrNotLoggedIn    = errors.New("Unauthorized access")
	ErrUnauthorized   = errors.New("Forbidden access")
	ErrNotFound       = errors.New("Resource not found")
	ErrConflict       = errors.New("Conflicting record found")

	ErrBadRequest         = errors.New("Malformed request body")
	ErrTransport          = errors.New("Payment gateway is unreachable")
	ErrProcessorDeclined  = errors.New("Payment declined by the gateway")
	ErrInvalidSignature   = errors.New("Signature is not valid")
	ErrOrderNotFound      = errors.New("Order not found")
	ErrRefundPrecondition = errors.New("Order has no gateway transaction to refund")
)

var errorMap = map[error]int{
	ErrInternalServer:     ErrStatusInternalServer,
	ErrClient:             ErrStatusClient,
	ErrNotLoggedIn:        ErrStatusNotLoggedIn,
	ErrUnauthorized:       ErrStatusUnauthorized,
	ErrNotFound:           ErrStatusNotFound,
	ErrConflict:           ErrStatusConflict,
	ErrBadRequest:         ErrStatusClient,
	ErrTransport:          ErrBadGateway,
	ErrProcessorDeclined:  http.StatusUnprocessableEntity,
	ErrInvalidSignature:   ErrStatusNoPermission,
	ErrOrderNotFound:      ErrStatusNotFound,
	ErrRefundPrecondition: ErrStatusConflict,
}

func GetErrorStatusCode(err error) int {
	for sentinel, statusCode := range errorMap {
		if errors.Is(err, sentinel) {
			return statusCode
		}
	}
	return ErrStatusInternalServer
}
