package differ

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	ManifestVersion  = "1.0.0"
	ManifestFileName = ".loctree-state.json"
)

// UnitRecord 单个文本单元的翻译记录
type UnitRecord struct {
	SourceHash   string    `json:"source_hash"`
	TranslatedAt time.Time `json:"translated_at"`
	Model        string    `json:"model"`
	Strategy     string    `json:"strategy"`
}

type manifestData struct {
	Version   string                 `json:"version"`
	UpdatedAt time.Time              `json:"updated_at"`
	Units     map[string]*UnitRecord `json:"units"`
}

// Manifest 记录输出树中每个单元对应的源文本哈希，
// 用于判断哪些单元需要重新翻译。
type Manifest struct {
	filePath string
	data     *manifestData
	mutex    sync.RWMutex
	logger   *zap.Logger
}

// LoadManifest 从输出根目录加载状态清单，不存在时创建空清单
func LoadManifest(outputRoot string, logger *zap.Logger) (*Manifest, error) {
	m := &Manifest{
		filePath: filepath.Join(outputRoot, ManifestFileName),
		logger:   logger,
	}

	if _, err := os.Stat(m.filePath); os.IsNotExist(err) {
		m.data = &manifestData{
			Version: ManifestVersion,
			Units:   make(map[string]*UnitRecord),
		}
		return m, nil
	}

	raw, err := os.ReadFile(m.filePath)
	if err != nil {
		return nil, fmt.Errorf("读取状态清单失败: %w", err)
	}

	var data manifestData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("解析状态清单失败 %s: %w", m.filePath, err)
	}
	if data.Units == nil {
		data.Units = make(map[string]*UnitRecord)
	}

	m.data = &data
	logger.Info("loaded state manifest",
		zap.String("path", m.filePath),
		zap.Int("units", len(data.Units)))

	return m, nil
}

// Save 持久化状态清单
func (m *Manifest) Save() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.data.UpdatedAt = time.Now()

	raw, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化状态清单失败: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.filePath), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	// 原子写入
	tempFile := m.filePath + ".tmp"
	if err := os.WriteFile(tempFile, raw, 0o644); err != nil {
		return fmt.Errorf("写入临时状态清单失败: %w", err)
	}
	if err := os.Rename(tempFile, m.filePath); err != nil {
		return fmt.Errorf("替换状态清单失败: %w", err)
	}

	return nil
}

// Lookup 返回某个单元的记录，不存在时返回 nil
func (m *Manifest) Lookup(identity string) *UnitRecord {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.data.Units[identity]
}

// Record 登记一个已翻译单元
func (m *Manifest) Record(identity, sourceHash, model, strategy string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data.Units[identity] = &UnitRecord{
		SourceHash:   sourceHash,
		TranslatedAt: time.Now(),
		Model:        model,
		Strategy:     strategy,
	}
}

// Forget 移除一个单元的记录
func (m *Manifest) Forget(identity string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.data.Units, identity)
}

// Len 返回已登记单元数
func (m *Manifest) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.data.Units)
}

// HashText 计算源文本的指纹
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
