// Package config 提供 mmcache 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 MMCACHE）的顺序加载，
// 包含缓存容量、各模态预处理参数、分词器、日志、遥测与指标配置。
package config
