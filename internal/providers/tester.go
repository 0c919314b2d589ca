package providers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultTestTimeout 凭证验证请求的硬超时
const DefaultTestTimeout = 10 * time.Second

// Tester 验证提供商密钥是否可用：发起一次轻量的列表请求，
// 仅凭 HTTP 状态码判定。失败只上报，不重试，不影响调用方流程。
type Tester struct {
	client *http.Client
	logger *logrus.Logger
}

// NewTester 创建凭证校验器
func NewTester(timeout time.Duration, logger *logrus.Logger) *Tester {
	if timeout <= 0 {
		timeout = DefaultTestTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Tester{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// Test 返回 true 当且仅当提供商对该密钥返回 2xx
func (t *Tester) Test(ctx context.Context, provider Provider, apiKey string) bool {
	if apiKey == "" {
		return false
	}

	req, err := provider.Adapter.BuildTestRequest(ctx, provider.BaseURL, apiKey)
	if err != nil {
		t.logger.Errorf("Failed to build test request for provider %s: %v", provider.ID, err)
		return false
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// 超时与传输错误一律视为无效，留给运维排查
		t.logger.Warnf("Provider %s test request failed: %v", provider.ID, err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.logger.Warnf("Provider %s test returned status %d", provider.ID, resp.StatusCode)
		return false
	}

	return true
}
