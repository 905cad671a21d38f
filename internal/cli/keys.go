package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nerdneilsfield/go-loctree-translator/internal/config"
)

// NewKeysCommand 创建 keys 命令组
func NewKeysCommand() *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "管理存在系统钥匙串里的模型 API Key",
		Long: `keys 把模型的 API Key 存进系统钥匙串。models.json 里把对应模型的
api_key 留空，运行时会按模型名从钥匙串取，避免明文落盘。

Examples:
  # 存入（终端下隐藏输入）
  loctree keys set deepseek

  # 删除
  loctree keys delete deepseek`,
	}

	keysCmd.AddCommand(newKeysSetCommand())
	keysCmd.AddCommand(newKeysDeleteCommand())
	return keysCmd
}

func newKeysSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <model>",
		Short: "读取并存储指定模型的 API Key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			key, err := readSecret(cmd, fmt.Sprintf("输入模型 %s 的 API Key: ", name))
			if err != nil {
				return err
			}
			if key == "" {
				return fmt.Errorf("API Key 不能为空")
			}

			if err := config.StoreAPIKey(name, key); err != nil {
				return fmt.Errorf("写入钥匙串失败: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已存入钥匙串，models.json 中把 %s 的 api_key 留空即可引用。\n", name)
			return nil
		},
	}
}

func newKeysDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <model>",
		Short: "从钥匙串删除指定模型的 API Key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DeleteAPIKey(args[0]); err != nil {
				return fmt.Errorf("删除钥匙串条目失败: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已删除 %s 的 API Key。\n", args[0])
			return nil
		},
	}
}

// readSecret 终端下隐藏回显读取，管道输入按行读
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("读取输入失败: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("读取输入失败: %w", err)
		}
		return "", fmt.Errorf("未读到输入")
	}
	return strings.TrimSpace(scanner.Text()), nil
}
