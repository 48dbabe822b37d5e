package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"syscall"

	openai "github.com/sashabaranov/go-openai"
)

// Reason 调用失败的归类，用于错误展示与回退策略
// Reason classifies a failed call for reporting and fallback policy
type Reason string

const (
	ReasonTimeout     Reason = "timeout"
	ReasonUnreachable Reason = "unreachable"
	ReasonMalformed   Reason = "malformed"
	ReasonCanceled    Reason = "canceled"
	ReasonError       Reason = "error"
)

// AllReasons 可配置为回退触发条件的全部类别
// AllReasons lists every class that may be configured as a fallback trigger
var AllReasons = []Reason{ReasonTimeout, ReasonUnreachable, ReasonMalformed, ReasonError}

// Classify 把错误映射为失败类别
// Classify maps an error to a failure class
func Classify(err error) Reason {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}
	if errors.Is(err, ErrMalformed) {
		return ReasonMalformed
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return reasonForStatus(statusErr.Code)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return reasonForStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reasonForStatus(reqErr.HTTPStatusCode)
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return ReasonUnreachable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ReasonUnreachable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ReasonUnreachable
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ReasonMalformed
	}
	return ReasonError
}

func reasonForStatus(code int) Reason {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return ReasonTimeout
	case code >= http.StatusInternalServerError, code == http.StatusNotFound:
		return ReasonUnreachable
	default:
		return ReasonError
	}
}
