// =============================================================================
// mmcache 主入口
// =============================================================================
// 使用方法:
//
//	mmcache bench                                   # 默认配置跑 100 批
//	mmcache bench --config config.yaml --hit-rate 0.5
//	mmcache version                                 # 显示版本信息
// =============================================================================
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mmcache",
		Short:         "Multimodal processing cache benchmark and equivalence checker",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newBenchCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mmcache %s\n", Version)
			fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
		},
	}
}
