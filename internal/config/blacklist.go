package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"

	"github.com/nerdneilsfield/go-loctree-translator/internal/jsonio"
)

type blacklistFile struct {
	BlackList []string `json:"BlackList"`
}

// Blacklist 排除在提取之外的文件模式集合
type Blacklist struct {
	patterns []string
	res      []*regexp.Regexp
}

// LoadBlacklist 加载黑名单文件，文件不存在时返回空黑名单
func LoadBlacklist(path string) (*Blacklist, error) {
	var file blacklistFile
	if err := jsonio.DecodeFile(path, &file); err != nil {
		if isNotExist(err) {
			return &Blacklist{}, nil
		}
		return nil, err
	}

	bl := &Blacklist{patterns: file.BlackList}
	for _, p := range file.BlackList {
		re, err := globToRegexp(p)
		if err != nil {
			return nil, fmt.Errorf("黑名单模式 %q 无法编译: %w", p, err)
		}
		bl.res = append(bl.res, re)
	}
	return bl, nil
}

// Matches 检查相对路径是否命中任一黑名单模式（含纯文件名匹配）
func (b *Blacklist) Matches(relPath string) bool {
	if b == nil {
		return false
	}
	for i, re := range b.res {
		fp := FilePattern{Pattern: b.patterns[i], re: re}
		if fp.Matches(relPath) {
			return true
		}
	}
	return false
}

// Patterns 返回配置的模式列表
func (b *Blacklist) Patterns() []string {
	if b == nil {
		return nil
	}
	return b.patterns
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
