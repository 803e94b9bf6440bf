package utils

import (
	"github.com/gin-gonic/gin"
)

// JSONResponse sends the auction API's standard success envelope:
// {status, message, data}. data carries the auction or watchlist payload
// and may be nil for operations like delete.
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// JSONError sends the auction API's error envelope: {status, message,
// error}. message is the client-facing rejection reason (bid too low,
// auction not live, ...); err carries the wrapped detail.
func JSONError(c *gin.Context, status int, err error, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"error":   err.Error(),
	})
}
