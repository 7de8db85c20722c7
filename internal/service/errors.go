package service

import (
	"fmt"

	errors "github.com/Laisky/errors/v2"
)

// ErrorCode 错误分类
type ErrorCode string

const (
	CodeValidation ErrorCode = "VALIDATION"
	CodeConflict   ErrorCode = "CONFLICT"
	CodeNotFound   ErrorCode = "NOT_FOUND"
	CodeAuth       ErrorCode = "AUTH"
	CodeInternal   ErrorCode = "INTERNAL"
)

// Error 是服务层返回给调用方的类型化错误，Message 可以直接展示给客户端
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return "service error: <nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("service error: %s", e.Code)
	}
	return e.Message
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// 预定义错误
var (
	ErrMissingCredentials = NewError(CodeValidation, "Username and password are required.")
	ErrDuplicateUsername  = NewError(CodeConflict, "Username already exists.")
	ErrInvalidCredentials = NewError(CodeAuth, "Invalid credentials.")
	ErrEmptyFilename      = NewError(CodeValidation, "No selected file.")
	ErrFileTooLarge       = NewError(CodeValidation, "File too large.")
	ErrInvalidScore       = NewError(CodeValidation, "Rating must be an integer between 1 and 5.")
	ErrUnknownReference   = NewError(CodeValidation, "Unknown file or user.")
	ErrOwnerMismatch      = NewError(CodeValidation, "Username does not match user_id.")
	ErrFileNotFound       = NewError(CodeNotFound, "File not found.")
)

// AsError 从错误链中提取类型化错误
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// CodeOf 返回错误码，未分类的错误视为内部错误
func CodeOf(err error) ErrorCode {
	if typed, ok := AsError(err); ok {
		return typed.Code
	}
	return CodeInternal
}
