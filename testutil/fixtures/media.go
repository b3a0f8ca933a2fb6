// =============================================================================
// 📦 测试数据工厂 - 多模态原始输入
// =============================================================================
// 提供确定性的图像、视频、音频样例，内容只依赖参数
// =============================================================================
package fixtures

import "github.com/BaSui01/mmcache/types"

// SolidImage 生成纯色图像
func SolidImage(w, h int, v byte) *types.ImageItem {
	pix := make([]byte, w*h*3)
	for i := range pix {
		pix[i] = v
	}
	return types.NewImageItem(w, h, pix)
}

// GradientImage 生成内容随 seed 变化的图像
func GradientImage(w, h int, seed byte) *types.ImageItem {
	pix := make([]byte, w*h*3)
	for i := range pix {
		pix[i] = byte(i) + seed
	}
	return types.NewImageItem(w, h, pix)
}

// GradientVideo 生成 n 帧视频，第 i 帧使用 seed+i
func GradientVideo(n, w, h int, seed byte) *types.VideoItem {
	frames := make([]*types.ImageItem, n)
	for i := range frames {
		frames[i] = GradientImage(w, h, seed+byte(i))
	}
	return types.NewVideoItem(frames...)
}

// RampAudio 生成锯齿波，值域 [-1, 1]
func RampAudio(n, rate int, step float32) *types.AudioItem {
	samples := make([]float32, n)
	var v float32
	for i := range samples {
		samples[i] = v
		v += step
		if v > 1 {
			v = -1
		}
	}
	return types.NewAudioItem(samples, rate)
}

// SilentAudio 生成全零音频
func SilentAudio(n, rate int) *types.AudioItem {
	return types.NewAudioItem(make([]float32, n), rate)
}
