// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	testutil.AssertEquivalent(t, baseline, cached)
//	testutil.AssertErrorCode(t, err, types.ErrLimitExceeded)
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/BaSui01/mmcache/types"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// ✅ 断言
// =============================================================================

// Equaler 具有结构化相等比较的类型，例如 *multimodal.ProcessingResult
type Equaler[T any] interface {
	Equal(other T) bool
}

// AssertEquivalent 断言两个结果结构相等
func AssertEquivalent[T Equaler[T]](t *testing.T, expected, actual T, msgAndArgs ...any) {
	t.Helper()
	if !expected.Equal(actual) {
		if len(msgAndArgs) > 0 {
			t.Errorf("%s: results are not equivalent", fmt.Sprint(msgAndArgs...))
		} else {
			t.Error("results are not equivalent")
		}
	}
}

// AssertErrorCode 断言错误携带指定的错误码
func AssertErrorCode(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Errorf("expected %s error but got nil", code)
		return
	}
	if got := types.GetErrorCode(err); got != code {
		t.Errorf("expected error code %s, got %s (%v)", code, got, err)
	}
}

// AssertEventuallyTrue 断言条件最终为真
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	if !WaitFor(condition, timeout) {
		t.Errorf("condition did not become true within %v", timeout)
	}
}

// =============================================================================
// ⏱️ 时间辅助
// =============================================================================

// WaitFor 等待条件满足或超时
func WaitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return condition()
}

// =============================================================================
// 🔧 测试数据辅助
// =============================================================================

// MustJSON 将值转换为 JSON 字符串，失败时 panic
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
