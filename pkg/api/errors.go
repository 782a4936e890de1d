package api

import (
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type errorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var (
	errorInternalServer       = errorInfo{Code: 999, Message: "internal server error"}
	errorInvalidParameters    = errorInfo{Code: 1000, Message: "invalid parameters"}
	errorDirectoryUnavailable = errorInfo{Code: 1001, Message: "doctor directory unavailable"}
	errorStorageFailed        = errorInfo{Code: 1002, Message: "failed to store report"}
)

// abortWithEncoding stops the chain and writes info as the error body. Any
// errs are logged, not returned to the client.
func abortWithEncoding(c *gin.Context, status int, info errorInfo, errs ...error) {
	if len(errs) > 0 {
		entry := log.WithFields(log.Fields{
			"prefix": "api",
			"path":   c.Request.URL.Path,
			"code":   info.Code,
		})
		for _, err := range errs {
			entry.WithError(err).Warn(info.Message)
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": info})
}
