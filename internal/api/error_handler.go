package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/membership-gin/internal/apperror"
)

// statusByKind 错误类别到 HTTP 状态码的映射
var statusByKind = map[apperror.Kind]int{
	apperror.KindValidation:     http.StatusBadRequest,
	apperror.KindPrecondition:   http.StatusBadRequest,
	apperror.KindConflict:       http.StatusBadRequest,
	apperror.KindUpload:         http.StatusBadRequest,
	apperror.KindAuthentication: http.StatusUnauthorized,
	apperror.KindAuthorization:  http.StatusForbidden,
	apperror.KindNotFound:       http.StatusNotFound,
}

// HandleError 将服务层错误写为 HTTP 响应
func HandleError(c *gin.Context, err error) {
	kind, ok := apperror.KindOf(err)
	if !ok {
		// 未分类错误不向客户端暴露细节
		GetLogger().WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error("Unhandled error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "internal server error",
		})
		return
	}

	status := statusByKind[kind]
	resp := ErrorResponse{
		Code:    status,
		Kind:    string(kind),
		Message: err.Error(),
	}

	var verr *apperror.ValidationError
	if errors.As(err, &verr) {
		resp.Message = verr.Message
		resp.Fields = verr.Fields
	}
	var uerr *apperror.UploadError
	if errors.As(err, &uerr) {
		resp.Detail = uerr.Limit
	}
	var cerr *apperror.ConflictError
	if errors.As(err, &cerr) {
		resp.Detail = cerr.Current
	}

	c.AbortWithStatusJSON(status, resp)
}

// ErrorHandlerMiddleware 处理 handler 通过 c.Error 记录但未写出的错误
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			HandleError(c, c.Errors.Last().Err)
		}
	}
}
