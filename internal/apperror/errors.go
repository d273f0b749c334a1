package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind 错误类别,与 HTTP 状态码一一对应
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindUpload         Kind = "upload"
	KindPrecondition   Kind = "precondition"
)

// Kinded 可识别类别的错误
type Kinded interface {
	error
	Kind() Kind
}

// ValidationError 输入校验失败
type ValidationError struct {
	Message string
	Fields  map[string]string // 字段 -> 错误描述
}

// NewValidation 创建校验错误
func NewValidation(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// NewFieldValidation 创建单字段校验错误
func NewFieldValidation(field, message string) *ValidationError {
	return &ValidationError{
		Message: message,
		Fields:  map[string]string{field: message},
	}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

func (e *ValidationError) Kind() Kind { return KindValidation }

// NotFoundError 资源不存在
type NotFoundError struct {
	Resource string
	ID       string
}

// NewNotFound 创建资源不存在错误
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Kind() Kind { return KindNotFound }

// ConflictError 状态冲突,携带当前状态
type ConflictError struct {
	Message string
	Current string
}

// NewConflict 创建冲突错误
func NewConflict(message, current string) *ConflictError {
	return &ConflictError{Message: message, Current: current}
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Kind() Kind { return KindConflict }

// AuthenticationError 凭证无效
type AuthenticationError struct {
	Message string
}

// NewAuthentication 创建认证错误
func NewAuthentication(message string) *AuthenticationError {
	return &AuthenticationError{Message: message}
}

func (e *AuthenticationError) Error() string { return e.Message }

func (e *AuthenticationError) Kind() Kind { return KindAuthentication }

// AuthorizationError 角色无权执行操作
// 消息保持通用,不暴露哪个角色可以执行
type AuthorizationError struct {
	Action string
}

// NewAuthorization 创建授权错误
func NewAuthorization(action string) *AuthorizationError {
	return &AuthorizationError{Action: action}
}

func (e *AuthorizationError) Error() string {
	return "you do not have permission to perform this action"
}

func (e *AuthorizationError) Kind() Kind { return KindAuthorization }

// UploadError 上传文件被拒绝
type UploadError struct {
	Field  string
	Reason string
	Limit  string // 被违反的限制,例如 "5MB" 或 "jpeg, png, pdf"
}

// NewUpload 创建上传错误
func NewUpload(field, reason, limit string) *UploadError {
	return &UploadError{Field: field, Reason: reason, Limit: limit}
}

func (e *UploadError) Error() string {
	if e.Limit == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s (limit: %s)", e.Field, e.Reason, e.Limit)
}

func (e *UploadError) Kind() Kind { return KindUpload }

// PreconditionError 操作前置条件不满足
type PreconditionError struct {
	Message string
}

// NewPrecondition 创建前置条件错误
func NewPrecondition(message string) *PreconditionError {
	return &PreconditionError{Message: message}
}

func (e *PreconditionError) Error() string { return e.Message }

func (e *PreconditionError) Kind() Kind { return KindPrecondition }

// KindOf 返回错误链中第一个可识别的类别
func KindOf(err error) (Kind, bool) {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind(), true
	}
	return "", false
}

// Is 判断错误链中是否包含指定类别
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
