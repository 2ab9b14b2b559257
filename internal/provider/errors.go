package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies provider failures.
type ErrorCode string

const (
	// 凭证
	ErrCodeMissingCredential ErrorCode = "MISSING_CREDENTIAL" // no API key configured
	ErrCodeAuthFailed        ErrorCode = "AUTH_FAILED"        // key rejected by the server

	// 限流
	ErrCodeRateLimited   ErrorCode = "RATE_LIMITED"
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	// 服务
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeModelNotFound      ErrorCode = "MODEL_NOT_FOUND"

	// 网络与请求
	ErrCodeNetworkError          ErrorCode = "NETWORK_ERROR"
	ErrCodeInvalidRequest        ErrorCode = "INVALID_REQUEST"
	ErrCodeTimeout               ErrorCode = "TIMEOUT"
	ErrCodeContextWindowExceeded ErrorCode = "CONTEXT_WINDOW_EXCEEDED"
	ErrCodeStreamBroken          ErrorCode = "STREAM_BROKEN"

	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// ProviderError is a structured error for transport and configuration failures.
type ProviderError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider"`
	Status    int       `json:"status,omitempty"` // HTTP status when known
	Retryable bool      `json:"retryable"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Message)
}

// NewProviderError creates a new ProviderError.
func NewProviderError(code ErrorCode, message, provider string, retryable bool) *ProviderError {
	return &ProviderError{
		Code:      code,
		Message:   message,
		Provider:  provider,
		Retryable: retryable,
	}
}

// IsRetryable reports whether err is a transient provider error. The core
// never retries on its own; callers such as the CLI may.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// CodeOf returns the ErrorCode carried by err, or ErrCodeUnknown.
func CodeOf(err error) ErrorCode {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}
	return ErrCodeUnknown
}

// IsContextWindowExceeded checks whether the input exceeded the model context.
func IsContextWindowExceeded(err error) bool {
	if err == nil {
		return false
	}
	if CodeOf(err) == ErrCodeContextWindowExceeded {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context length") ||
		strings.Contains(msg, "maximum context") ||
		strings.Contains(msg, "too many tokens")
}

// HumanMessage renders err as one line suitable for showing to an end user.
func HumanMessage(err error) string {
	if err == nil {
		return ""
	}
	switch CodeOf(err) {
	case ErrCodeMissingCredential:
		return "未配置 API Key，请设置 CHATKIT_PROVIDER_API_KEY 或在配置文件中填写 provider.api_key"
	case ErrCodeAuthFailed:
		return "API Key 无效或已过期，请检查配置"
	case ErrCodeRateLimited:
		return "请求过于频繁，请稍后再试"
	case ErrCodeQuotaExceeded:
		return "账户额度不足"
	case ErrCodeServiceUnavailable:
		return "模型服务暂不可用，请稍后再试"
	case ErrCodeModelNotFound:
		return "模型不存在，请检查 provider.model 配置"
	case ErrCodeTimeout:
		return "请求超时"
	case ErrCodeNetworkError:
		return "无法连接到模型服务，请检查网络或 provider.base_url"
	case ErrCodeContextWindowExceeded:
		return "对话过长，超出模型上下文限制"
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return "请求失败: " + pe.Message
	}
	return "请求失败: " + err.Error()
}
