package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/BaSui01/mmcache/types"
)

const keyPrefix = "mm:cache:"

// HashKeyStrategy Hash 缓存键策略
// 对 模态标签 + 参数 JSON + 载荷规范编码 整体做 SHA-256
type HashKeyStrategy struct{}

// Name 返回策略名称
func (s *HashKeyStrategy) Name() string {
	return "hash"
}

// GenerateKey 生成 Hash 缓存键，格式：mm:cache:{modality}:{sha256}
func (s *HashKeyStrategy) GenerateKey(item types.RawItem, params any) ContentKey {
	modality := item.Modality()

	paramData, err := json.Marshal(params)
	if err != nil {
		// fallback: 使用 fmt.Sprintf 生成确定性字符串避免 key 碰撞
		paramData = []byte(fmt.Sprintf("%#v", params))
	}

	h := sha256.New()
	writeField(h, []byte(modality))
	writeField(h, paramData)
	// hash.Hash 的 Write 不会返回错误
	_, _ = item.WriteTo(h)

	return ContentKey(keyPrefix + string(modality) + ":" + hex.EncodeToString(h.Sum(nil)))
}

// NewHashKeyStrategy 创建 Hash 策略
func NewHashKeyStrategy() *HashKeyStrategy {
	return &HashKeyStrategy{}
}

// writeField 写入长度前缀字段，避免相邻字段拼接产生歧义
func writeField(h interface{ Write([]byte) (int, error) }, data []byte) {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(data)))
	_, _ = h.Write(lenBuf[:])
	_, _ = h.Write(data)
}

// Fingerprint 计算原始载荷的 xxhash 指纹，与内容键使用独立的哈希函数，
// 用于调试模式下检测两个不同的原始条目映射到同一个键。
func Fingerprint(item types.RawItem) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(string(item.Modality()))
	_, _ = item.WriteTo(d)
	return d.Sum64()
}
