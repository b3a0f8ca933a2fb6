package multimodal

import (
	"math"

	"github.com/BaSui01/mmcache/types"
)

// ImageProcessor 把 RGB 图像缩放到固定边长并做通道归一化.
type ImageProcessor struct{}

// NewImageProcessor 创建图像处理器.
func NewImageProcessor() *ImageProcessor {
	return &ImageProcessor{}
}

func (p *ImageProcessor) Modality() types.Modality {
	return types.ModalityImage
}

// Process 输出 pixel_values [3, Size, Size].
func (p *ImageProcessor) Process(item types.RawItem, params types.ProcessingParameters) (*types.ProcessedItem, error) {
	img, ok := item.(*types.ImageItem)
	if !ok {
		return nil, types.NewMalformedInputError("image processor got %T", item)
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}

	ip := params.Image
	size := ip.Size
	pixels := types.NewTensor(3, size, size)
	resizeNormalize(img, ip, pixels.Data)

	grid := size / ip.PatchSize
	return &types.ProcessedItem{
		Modality: types.ModalityImage,
		Tensors:  map[string]types.Tensor{TensorPixelValues: pixels},
		Metadata: map[string]int{
			MetaGridH: grid,
			MetaGridW: grid,
		},
		NumTokens: ip.TokensPerImage(),
	}, nil
}

// axisSample 是一个输出坐标在源图像上的双线性采样位置
type axisSample struct {
	lo, hi int
	w      float64 // hi 的权重
}

// bilinearAxis 计算半像素中心对齐的采样表.
func bilinearAxis(src, dst int) []axisSample {
	out := make([]axisSample, dst)
	scale := float64(src) / float64(dst)
	for i := range out {
		pos := (float64(i)+0.5)*scale - 0.5
		if pos < 0 {
			pos = 0
		}
		lo := int(math.Floor(pos))
		if lo > src-1 {
			lo = src - 1
		}
		hi := lo + 1
		if hi > src-1 {
			hi = src - 1
		}
		out[i] = axisSample{lo: lo, hi: hi, w: pos - float64(lo)}
	}
	return out
}

// resizeNormalize 双线性缩放到 Size×Size，缩放到 [0,1] 后按 mean/std 归一化，
// 以 CHW 顺序写入 dst.
func resizeNormalize(img *types.ImageItem, p types.ImageParams, dst []float32) {
	size := p.Size
	xs := bilinearAxis(img.Width, size)
	ys := bilinearAxis(img.Height, size)
	plane := size * size
	stride := img.Width * 3

	for y, sy := range ys {
		row0 := img.Pix[sy.lo*stride:]
		row1 := img.Pix[sy.hi*stride:]
		for x, sx := range xs {
			for c := 0; c < 3; c++ {
				a := float64(row0[sx.lo*3+c])
				b := float64(row0[sx.hi*3+c])
				top := a + float64(sx.w*(b-a))
				a = float64(row1[sx.lo*3+c])
				b = float64(row1[sx.hi*3+c])
				bottom := a + float64(sx.w*(b-a))
				v := top + float64(sy.w*(bottom-top))
				norm := (v/255 - float64(p.Mean[c])) / float64(p.Std[c])
				dst[c*plane+y*size+x] = float32(norm)
			}
		}
	}
}
