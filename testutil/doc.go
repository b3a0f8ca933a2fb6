// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 mmcache 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertEquivalent（基线与缓存结果结构比较）/
    AssertErrorCode / AssertEventuallyTrue
  - 数据工具: MustJSON

# 子包

  - testutil/mocks: MockAdapter，包装真实处理器统计调用次数，
    支持 Builder 模式与错误注入
  - testutil/fixtures: 确定性的图像、视频、音频样例

# 使用示例

	ctx := testutil.TestContext(t)
	img := mocks.NewMockAdapter(multimodal.NewImageProcessor())
	registry.Register(img)
	result, err := processor.Apply(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), img.Calls())
*/
package testutil
