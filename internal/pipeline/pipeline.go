package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-loctree-translator/internal/config"
	"github.com/nerdneilsfield/go-loctree-translator/internal/differ"
	"github.com/nerdneilsfield/go-loctree-translator/internal/extractor"
	"github.com/nerdneilsfield/go-loctree-translator/internal/progress"
	"github.com/nerdneilsfield/go-loctree-translator/internal/stats"
	"github.com/nerdneilsfield/go-loctree-translator/internal/terminology"
	"github.com/nerdneilsfield/go-loctree-translator/internal/translator"
	"github.com/nerdneilsfield/go-loctree-translator/internal/writer"
	"github.com/nerdneilsfield/go-loctree-translator/pkg/providers"
	"github.com/nerdneilsfield/go-loctree-translator/pkg/providers/openai"
)

// RunOptions 单次运行的行为开关
type RunOptions struct {
	// Yes 跳过确认门
	Yes bool
	// DryRun 批次规划完成后停止，不派发
	DryRun bool
	// LogBackups 转储增量、原文、旧译文和翻译结果备份
	LogBackups bool
	// Interactive 标准输入是否连接终端，决定确认门是否生效
	Interactive bool

	// 确认门的输入输出，留空用 os.Stdin / os.Stdout
	Stdin  io.Reader
	Stdout io.Writer
}

// Pipeline 翻译流水线协调器
type Pipeline struct {
	cfg        *config.Config
	models     map[string]config.ModelConfig
	strategies []config.Strategy
	blacklist  *config.Blacklist
	providers  map[string]providers.Provider
	statsDB    *stats.Database
	logger     *zap.Logger
}

// New 加载全部注册表并组装流水线
func New(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	models, err := config.LoadModels(cfg.ResolvePath(cfg.ConfigFiles.Models))
	if err != nil {
		return nil, fmt.Errorf("加载模型注册表失败: %w", err)
	}

	defaultTerminology, err := config.LoadDefaultTerminology(cfg.ResolvePath(cfg.ConfigFiles.DefaultTerminology))
	if err != nil {
		return nil, fmt.Errorf("加载默认术语表失败: %w", err)
	}

	strategies, err := config.LoadStrategies(cfg.ResolvePath(cfg.ConfigFiles.TranslationConfigs), cfg.ResolvePath, defaultTerminology)
	if err != nil {
		return nil, fmt.Errorf("加载策略注册表失败: %w", err)
	}

	blacklist, err := config.LoadBlacklist(cfg.ResolvePath(cfg.ConfigFiles.Blacklist))
	if err != nil {
		return nil, fmt.Errorf("加载黑名单失败: %w", err)
	}

	problems := config.ValidateRegistry(strategies, models)
	for _, problem := range problems {
		if problem.Severity == "error" {
			logger.Error("configuration problem", zap.String("problem", problem.Message))
		} else {
			logger.Warn("configuration problem", zap.String("problem", problem.Message))
		}
	}
	if config.HasErrors(problems) {
		return nil, fmt.Errorf("配置校验未通过，运行 loctree validate 查看详情")
	}

	timeout := time.Duration(cfg.TranslationSettings.Timeout) * time.Second
	providerMap, err := buildProviders(strategies, models, timeout)
	if err != nil {
		return nil, err
	}

	// 统计库打不开不拦运行
	statsDB, err := stats.Open(cfg.ResolvePath(stats.DefaultFileName), logger)
	if err != nil {
		logger.Warn("failed to open stats database", zap.Error(err))
		statsDB = nil
	}

	return &Pipeline{
		cfg:        cfg,
		models:     models,
		strategies: strategies,
		blacklist:  blacklist,
		providers:  providerMap,
		statsDB:    statsDB,
		logger:     logger,
	}, nil
}

// Close 释放流水线持有的资源
func (p *Pipeline) Close() error {
	if p.statsDB == nil {
		return nil
	}
	return p.statsDB.Close()
}

// Strategies 返回已加载的策略注册表
func (p *Pipeline) Strategies() []config.Strategy {
	return p.strategies
}

// Run 执行一次完整的增量翻译
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (summary *RunSummary, err error) {
	summary = &RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		DryRun:    opts.DryRun,
	}
	defer func() {
		summary.Duration = time.Since(summary.StartedAt)
		p.archiveRun(summary, err)
	}()

	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	// 提取
	ext := extractor.New(p.strategies, p.blacklist, p.cfg.TranslationSettings.StripFilenamePrefixes, p.logger)
	result, err := ext.ExtractTree(p.cfg.InputRoot())
	if err != nil {
		return summary, err
	}
	summary.FilesScanned = len(result.Files)
	summary.FilesBlacklisted = len(result.Blacklisted)
	summary.FilesUnmatched = len(result.Unmatched)
	summary.FilesMalformed = len(result.Failed)
	summary.UnitsTotal = result.TotalUnits()

	// 清单与既有译文
	manifest, err := differ.LoadManifest(p.cfg.OutputRoot(), p.logger)
	if err != nil {
		return summary, err
	}
	w := writer.New(p.cfg.OutputRoot(), manifest, p.cfg.Options.KeepBackupFiles, p.logger)
	existing := w.LoadExistingValues(result.Files)

	// 差分
	plan := differ.New(manifest, p.logger).Diff(result, existing)
	summary.UnitsWork = len(plan.Work)
	summary.UnitsPassThrough = len(plan.PassThrough)

	// 术语预替换
	subs, err := p.substituteAll(plan.Work)
	if err != nil {
		return summary, err
	}

	// 批次规划
	batches := translator.BuildBatches(subs, p.strategies, p.cfg.TranslationSettings.MaxCharsPerBatch, p.logger)
	summary.Batches = len(batches)
	summary.WorkBytes, summary.WorkGraphemes = measureWork(subs)

	var dumps []string
	if opts.LogBackups {
		dumps = p.dumpPlanBackups(result, plan, existing)
	}

	if opts.DryRun {
		p.logger.Info("dry run stopped before dispatch",
			zap.String("run_id", summary.RunID),
			zap.Int("batches", summary.Batches),
			zap.Int("work_units", summary.UnitsWork))
		return summary, nil
	}

	if len(batches) > 0 {
		ok, err := p.confirmDispatch(opts, subs, summary)
		if err != nil {
			return summary, err
		}
		if !ok {
			fmt.Fprintln(opts.Stdout, "翻译已取消！")
			summary.Canceled = true
			return summary, nil
		}
	}

	// 派发
	var results []translator.Result
	if len(batches) > 0 {
		dispatcher := translator.NewDispatcher(p.providers, p.dispatchSettings(), p.logger)
		bar := progress.Start("翻译进度", len(batches), progress.Interactive(), p.logger)
		var dstats *translator.Stats
		results, dstats, err = dispatcher.Dispatch(ctx, batches, bar.Advance)
		bar.Stop()
		if err != nil {
			return summary, err
		}
		summary.Retries = dstats.Retries
		summary.UnitsFallback = dstats.FallbackUnits
		summary.UnitsTranslated = len(results) - dstats.FallbackUnits
		summary.TokensIn = dstats.TokensIn
		summary.TokensOut = dstats.TokensOut

		if opts.LogBackups {
			if path, err := writeDump(p.backupDir(), "translation_result", resultEntries(results), time.Now()); err != nil {
				p.logger.Warn("failed to write translation result dump", zap.Error(err))
			} else {
				dumps = append(dumps, path)
			}
		}
	} else {
		p.logger.Info("nothing to translate", zap.String("run_id", summary.RunID))
	}

	// 写回
	writeSummary := w.WriteFiles(result.Files, results, existing)
	summary.FilesWritten = writeSummary.FilesWritten
	summary.FilesFailed = len(writeSummary.Failures)
	if err := manifest.Save(); err != nil {
		return summary, err
	}

	if err := w.CopyFontDir(p.cfg.ResolvePath(p.cfg.FilePaths.FontDir)); err != nil {
		p.logger.Warn("font directory copy failed", zap.Error(err))
	}

	if !p.cfg.Options.KeepBackupFiles {
		removeDumps(dumps, p.logger)
	}

	p.logger.Info("translation run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("files_written", summary.FilesWritten),
		zap.Int("units_translated", summary.UnitsTranslated),
		zap.Int("units_pass_through", summary.UnitsPassThrough),
		zap.Int("units_fallback", summary.UnitsFallback),
		zap.Int("retries", summary.Retries),
		zap.Duration("duration", time.Since(summary.StartedAt)))

	return summary, nil
}

// substituteAll 逐单元做术语预替换，保持工作集顺序。
// 每个策略的替换器按需编译一次。
func (p *Pipeline) substituteAll(units []extractor.Unit) ([]terminology.SubstitutedUnit, error) {
	byName := make(map[string]*config.Strategy, len(p.strategies))
	for i := range p.strategies {
		byName[p.strategies[i].Name] = &p.strategies[i]
	}

	substituters := make(map[string]*terminology.Substituter)
	out := make([]terminology.SubstitutedUnit, 0, len(units))
	for _, unit := range units {
		sub, ok := substituters[unit.StrategyName]
		if !ok {
			var terms map[string]string
			if st := byName[unit.StrategyName]; st != nil {
				terms = st.Terminology
			}
			var err error
			sub, err = terminology.NewSubstituter(terms, p.logger)
			if err != nil {
				return nil, fmt.Errorf("编译策略 %s 的术语表失败: %w", unit.StrategyName, err)
			}
			substituters[unit.StrategyName] = sub
		}

		one, err := sub.Apply([]extractor.Unit{unit})
		if err != nil {
			return nil, err
		}
		out = append(out, one[0])
	}
	return out, nil
}

// confirmDispatch 在派发前向用户确认工作量
func (p *Pipeline) confirmDispatch(opts RunOptions, subs []terminology.SubstitutedUnit, summary *RunSummary) (bool, error) {
	heading := color.New(color.FgCyan, color.Bold)
	heading.Fprintf(opts.Stdout, "检索完毕，发现 %d 个待翻译单元（%d 字节 / %d 字符），计 %d 个批次\n",
		summary.UnitsWork, summary.WorkBytes, summary.WorkGraphemes, summary.Batches)

	for i, su := range subs {
		if i >= confirmPreviewLimit {
			fmt.Fprintf(opts.Stdout, "  … 其余 %d 个单元\n", len(subs)-confirmPreviewLimit)
			break
		}
		fmt.Fprintf(opts.Stdout, "  %s: %s\n", su.Unit.Identity(), runewidth.Truncate(su.Text, previewTextWidth, "…"))
	}

	if opts.Yes || !p.cfg.Options.ConfirmBeforeTranslation || !opts.Interactive {
		return true, nil
	}

	fmt.Fprint(opts.Stdout, "是否确认翻译？(y/n): ")
	scanner := bufio.NewScanner(opts.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return false, fmt.Errorf("读取确认输入失败: %w", err)
		}
		return false, nil
	}

	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes", nil
}

const (
	confirmPreviewLimit = 5
	previewTextWidth    = 48
)

// measureWork 统计工作集替换后文本的字节数与字素数
func measureWork(subs []terminology.SubstitutedUnit) (bytes, graphemes int) {
	for _, su := range subs {
		bytes += len(su.Text)
		graphemes += uniseg.GraphemeClusterCount(su.Text)
	}
	return bytes, graphemes
}

func (p *Pipeline) dispatchSettings() translator.Settings {
	settings := translator.DefaultSettings()
	ts := p.cfg.TranslationSettings
	settings.MaxWorkers = ts.MaxWorkers
	settings.MaxRetries = ts.MaxRetries
	settings.Timeout = time.Duration(ts.Timeout) * time.Second
	return settings
}

// buildProviders 为策略引用到的每个模型建一个客户端
func buildProviders(strategies []config.Strategy, models map[string]config.ModelConfig, timeout time.Duration) (map[string]providers.Provider, error) {
	referenced := make(map[string]bool, len(strategies))
	for _, st := range strategies {
		referenced[st.Model] = true
	}

	out := make(map[string]providers.Provider, len(referenced))
	for name := range referenced {
		m := models[name]

		key, err := config.ResolveAPIKey(m)
		if err != nil {
			return nil, fmt.Errorf("模型 %s 的 API Key 不可用: %w", name, err)
		}

		pc := providers.DefaultConfig()
		pc.APIKey = key
		pc.APIEndpoint = m.BaseURL
		pc.Model = m.Model
		if m.Temperature > 0 {
			pc.Temperature = m.Temperature
		}
		pc.MaxTokens = m.MaxTokens
		pc.EnableThinking = m.EnableThinking
		pc.Timeout = timeout

		switch m.APIType {
		case config.APITypeOpenAISDK:
			out[name] = openai.NewSDK(pc)
		default:
			out[name] = openai.New(pc)
		}
	}
	return out, nil
}

// archiveRun 把运行结果写进统计库，取消和预演不入库
func (p *Pipeline) archiveRun(summary *RunSummary, runErr error) {
	if p.statsDB == nil || summary.DryRun || summary.Canceled {
		return
	}

	status := stats.StatusCompleted
	switch {
	case errors.Is(runErr, context.Canceled):
		status = stats.StatusInterrupted
	case runErr != nil:
		status = stats.StatusFailed
	}

	if err := p.statsDB.AddRun(summary.toRunRecord(p.cfg, status)); err != nil {
		p.logger.Warn("failed to archive run record", zap.Error(err))
	}
}
