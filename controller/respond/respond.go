package respond

import (
	"errors"
	"log"
	"net/http"
	"time"

	"perma-store/common"

	"github.com/gin-gonic/gin"
)

// Response unified response envelope
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// Success 200 with payload
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Msg: "success", Data: data})
}

// InvalidParam 400 bad input
func InvalidParam(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Code: http.StatusBadRequest, Msg: msg})
}

// PaymentRequired 402 insufficient ledger balance
func PaymentRequired(c *gin.Context, msg string) {
	c.JSON(http.StatusPaymentRequired, Response{Code: http.StatusPaymentRequired, Msg: msg})
}

// NotFound 404
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{Code: http.StatusNotFound, Msg: msg})
}

// Gone 410 retention lapsed
func Gone(c *gin.Context, msg string) {
	c.JSON(http.StatusGone, Response{Code: http.StatusGone, Msg: msg})
}

// Unprocessable 422 integrity failure
func Unprocessable(c *gin.Context, msg string) {
	c.JSON(http.StatusUnprocessableEntity, Response{Code: http.StatusUnprocessableEntity, Msg: msg})
}

// ServerError 500
func ServerError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Response{Code: http.StatusInternalServerError, Msg: msg})
}

// ServiceUnavailable 503 blob network or ledger down
func ServiceUnavailable(c *gin.Context, msg string) {
	c.JSON(http.StatusServiceUnavailable, Response{Code: http.StatusServiceUnavailable, Msg: msg})
}

// FromError map service errors onto the response envelope
func FromError(c *gin.Context, err error) {
	var ve *common.ValidationError
	switch {
	case errors.As(err, &ve):
		InvalidParam(c, ve.Error())
	case errors.Is(err, common.ErrDuplicateChunk),
		errors.Is(err, common.ErrChunkOutOfOrder):
		InvalidParam(c, err.Error())
	case errors.Is(err, common.ErrInsufficientBalance):
		PaymentRequired(c, "insufficient balance")
	case errors.Is(err, common.ErrNotFound):
		NotFound(c, "file not found")
	case errors.Is(err, common.ErrExpired):
		Gone(c, "file expired")
	case errors.Is(err, common.ErrIntegrity):
		Unprocessable(c, "integrity check failed")
	case errors.Is(err, common.ErrUnavailable):
		ServiceUnavailable(c, "upstream unavailable")
	default:
		log.Printf("Internal error: %v", err)
		ServerError(c, "internal error")
	}
}

// TimingMiddleware log request latency
func TimingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s %d %s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start))
	}
}
