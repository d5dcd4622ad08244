// Package pipeline drives one end-to-end publish run: probe the
// repository, fetch CSV and prior subscription, parse, merge, encode,
// upload. Strictly sequential, no retries; the first fatal error aborts
// the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DaiZhouHui/vless-automation-go/internal/config"
	"github.com/DaiZhouHui/vless-automation-go/internal/csvsource"
	"github.com/DaiZhouHui/vless-automation-go/internal/fetch"
	"github.com/DaiZhouHui/vless-automation-go/internal/github"
	"github.com/DaiZhouHui/vless-automation-go/internal/model"
	"github.com/DaiZhouHui/vless-automation-go/internal/nodeset"
	"github.com/DaiZhouHui/vless-automation-go/internal/render"
	"github.com/DaiZhouHui/vless-automation-go/internal/subscription"
	"github.com/DaiZhouHui/vless-automation-go/internal/vless"
)

// RunError is a fatal pipeline failure tied to the stage it happened in.
type RunError struct {
	AppError model.AppError
	Cause    error
}

func (e *RunError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
}

func (e *RunError) Unwrap() error { return e.Cause }

func newRunError(stage, code, message, url string, cause error) *RunError {
	return &RunError{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   stage,
			URL:     url,
		},
		Cause: cause,
	}
}

// Stats counts what a run saw and produced.
type Stats struct {
	CSVRows       int
	CSVSkipped    int
	CSVDuplicates int
	Fresh         int
	Prior         int
	PriorSkipped  int
	Merged        int
	Pruned        int
	Final         int

	SubscriptionUploaded bool
	ClashUploaded        bool
}

// Config wires a Runner.
type Config struct {
	Settings *config.Config
	GitHub   *github.Client
	Logger   *logrus.Entry

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Runner executes the publish workflow once per process.
type Runner struct {
	cfg    *config.Config
	github *github.Client
	logger *logrus.Entry
	now    func() time.Time
}

// New creates a Runner from cfg.
func New(cfg *Config) *Runner {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		cfg:    cfg.Settings,
		github: cfg.GitHub,
		logger: cfg.Logger.WithField("component", "pipeline"),
		now:    now,
	}
}

// Run executes the pipeline once. The returned Stats are valid up to the
// point of failure.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	repo, err := r.github.Repository(ctx)
	if err != nil {
		if github.IsAuth(err) {
			return stats, newRunError("probe_repo", "GITHUB_AUTH_ERROR", "GitHub 认证失败", "", err)
		}
		return stats, newRunError("probe_repo", "GITHUB_CONNECT_ERROR", "GitHub 连接失败", "", err)
	}
	r.logger.WithField("repo", repo.FullName).Info("GitHub 连接成功")

	csvContent, err := r.fetchCSV(ctx)
	if err != nil {
		return stats, err
	}

	parsed := csvsource.Parse(csvContent, r.cfg.Node.DefaultPort)
	for _, issue := range parsed.Skipped {
		r.logger.WithFields(logrus.Fields{
			"line":    issue.Line,
			"snippet": issue.Snippet,
		}).Warnf("跳过 CSV 行: %s", issue.Reason)
	}
	stats.CSVRows = parsed.Rows
	stats.CSVSkipped = len(parsed.Skipped)
	stats.CSVDuplicates = parsed.Duplicates
	r.logger.WithFields(logrus.Fields{
		"rows":       parsed.Rows,
		"parsed":     len(parsed.Endpoints),
		"skipped":    len(parsed.Skipped),
		"duplicates": parsed.Duplicates,
	}).Info("CSV 解析完成")

	fresh := vless.Generate(vless.Spec{
		UUID:        r.cfg.Node.UUID,
		Host:        r.cfg.Node.Host,
		SNI:         r.cfg.Node.SNI,
		Fingerprint: r.cfg.Node.Fingerprint,
		Path:        r.cfg.Node.Path,
	}, parsed.Endpoints, vless.GenerateOptions{
		RemarksPrefix: r.cfg.Node.RemarksPrefix,
		ForcePort443:  r.cfg.Node.ForcePort443,
		Now:           r.now(),
	})
	stats.Fresh = len(fresh)
	r.logger.WithField("count", len(fresh)).Info("生成 Vless 节点")

	prior, err := r.fetchPrior(ctx, stats)
	if err != nil {
		return stats, err
	}

	merged := nodeset.Merge(fresh, prior)
	stats.Merged = len(merged)
	r.logger.WithFields(logrus.Fields{
		"fresh":  len(fresh),
		"prior":  len(prior),
		"merged": len(merged),
	}).Info("节点合并完成")

	if r.cfg.Prune.Enabled {
		kept, dropped := nodeset.FilterByAge(merged, r.cfg.Node.RemarksPrefix, r.cfg.Prune.MaxDays, r.now())
		stats.Pruned = dropped
		if dropped > 0 {
			r.logger.WithFields(logrus.Fields{
				"dropped":  dropped,
				"kept":     len(kept),
				"max_days": r.cfg.Prune.MaxDays,
			}).Info("清理过期节点")
		}
		merged = kept
	}

	final := nodeset.Finalize(merged)
	stats.Final = len(final)
	if len(final) == 0 {
		r.logger.Warn("没有有效的节点数据，将发布空订阅")
	}

	subContent, err := subscription.Encode(final)
	if err != nil {
		return stats, newRunError("encode", "SUB_ENCODE_ERROR", "订阅编码失败", "", err)
	}
	clashContent, err := render.Clash(final, render.Options{
		DefaultSNI:         r.cfg.Node.SNI,
		DefaultHost:        r.cfg.Node.Host,
		DefaultPath:        r.cfg.Node.Path,
		DefaultFingerprint: r.cfg.Node.Fingerprint,
		GeneratedAt:        r.now(),
	})
	if err != nil {
		return stats, err
	}

	timestamp := r.now().Format("2006-01-02 15:04:05")
	subResult, err := r.uploadArtifact(ctx, r.cfg.Output.NodeFile, []byte(subContent),
		fmt.Sprintf("自动更新Vless节点 - %s - %d节点", timestamp, len(final)))
	if err != nil {
		return stats, err
	}
	stats.SubscriptionUploaded = subResult.Uploaded

	clashResult, err := r.uploadArtifact(ctx, r.cfg.Output.YAMLFile, []byte(clashContent),
		fmt.Sprintf("更新Clash配置 - %s - %d节点", timestamp, len(final)))
	if err != nil {
		return stats, err
	}
	stats.ClashUploaded = clashResult.Uploaded

	r.logger.WithFields(logrus.Fields{
		"csv_rows":      stats.CSVRows,
		"csv_skipped":   stats.CSVSkipped,
		"fresh":         stats.Fresh,
		"prior":         stats.Prior,
		"merged":        stats.Merged,
		"pruned":        stats.Pruned,
		"final":         stats.Final,
		"sub_uploaded":  stats.SubscriptionUploaded,
		"yaml_uploaded": stats.ClashUploaded,
	}).Info("工作流执行完成")
	return stats, nil
}

// fetchCSV loads the candidate-endpoint CSV, either from the direct source
// URL or from the repository. Any failure here is fatal: without the CSV
// there is nothing to publish.
func (r *Runner) fetchCSV(ctx context.Context) (string, error) {
	if sourceURL := r.cfg.CSV.SourceURL; sourceURL != "" {
		r.logger.WithField("url", sourceURL).Info("下载 CSV 文件")
		content, err := fetch.FetchTextWithOptions(ctx, fetch.KindCSV, sourceURL, fetch.Options{
			Timeout: r.requestTimeout(),
		})
		if err != nil {
			return "", err
		}
		return content, nil
	}

	path := r.cfg.CSV.RepoPath()
	r.logger.WithField("path", path).Info("下载 CSV 文件")
	file, err := r.github.DownloadFile(ctx, path)
	if err != nil {
		switch {
		case github.IsNotFound(err):
			return "", newRunError("fetch_csv", "CSV_NOT_FOUND", "CSV 文件不存在", path, err)
		case github.IsAuth(err):
			return "", newRunError("fetch_csv", "GITHUB_AUTH_ERROR", "GitHub 认证失败", path, err)
		default:
			return "", newRunError("fetch_csv", "CSV_FETCH_ERROR", "CSV 下载失败", path, err)
		}
	}
	return string(file.Content), nil
}

// fetchPrior loads and decodes the previously published subscription. A
// missing or undecodable artifact yields an empty prior set; only
// transport and credential failures are fatal.
func (r *Runner) fetchPrior(ctx context.Context, stats *Stats) ([]model.Node, error) {
	content, source, found, err := r.downloadPrior(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		r.logger.Info("远程订阅不存在，将创建新文件")
		return nil, nil
	}

	result, err := subscription.Decode(source, content)
	if err != nil {
		r.logger.WithField("error", err).Warn("远程订阅解码失败，按空订阅处理")
		return nil, nil
	}
	if result.Skipped > 0 {
		r.logger.WithField("skipped", result.Skipped).Warn("远程订阅包含无法解析的行")
	}
	stats.Prior = len(result.Nodes)
	stats.PriorSkipped = result.Skipped
	r.logger.WithField("count", len(result.Nodes)).Info("远程订阅解析完成")
	return result.Nodes, nil
}

func (r *Runner) downloadPrior(ctx context.Context) (content, source string, found bool, err error) {
	if sourceURL := r.cfg.Sub.SourceURL; sourceURL != "" {
		r.logger.WithField("url", sourceURL).Info("下载远程订阅")
		content, err := fetch.FetchTextWithOptions(ctx, fetch.KindSubscription, sourceURL, fetch.Options{
			Timeout: r.requestTimeout(),
		})
		if err != nil {
			var fetchErr *fetch.FetchError
			if errors.As(err, &fetchErr) && fetchErr.Status == http.StatusNotFound {
				return "", sourceURL, false, nil
			}
			return "", sourceURL, false, err
		}
		return content, sourceURL, true, nil
	}

	path := r.cfg.Output.NodeFile
	r.logger.WithField("path", path).Info("下载远程订阅")
	file, err := r.github.DownloadFile(ctx, path)
	if err != nil {
		if github.IsNotFound(err) {
			return "", path, false, nil
		}
		if github.IsAuth(err) {
			return "", path, false, newRunError("fetch_sub", "GITHUB_AUTH_ERROR", "GitHub 认证失败", path, err)
		}
		return "", path, false, newRunError("fetch_sub", "SUB_FETCH_ERROR", "订阅下载失败", path, err)
	}
	return string(file.Content), path, true, nil
}

// uploadArtifact publishes one file and logs whether the remote actually
// changed.
func (r *Runner) uploadArtifact(ctx context.Context, path string, content []byte, message string) (*github.UploadResult, error) {
	result, err := r.github.UploadFile(ctx, path, content, message)
	if err != nil {
		if github.IsAuth(err) {
			return nil, newRunError("upload", "GITHUB_AUTH_ERROR", "GitHub 认证失败", path, err)
		}
		return nil, newRunError("upload", "UPLOAD_ERROR", "上传失败", path, err)
	}

	if !result.Uploaded {
		r.logger.WithField("path", path).Info("内容未变化，跳过上传")
		return result, nil
	}
	r.logger.WithFields(logrus.Fields{
		"path":    path,
		"sha":     shortSHA(result.SHA),
		"created": result.Created,
	}).Info("上传成功")
	return result, nil
}

func (r *Runner) requestTimeout() time.Duration {
	return time.Duration(r.cfg.RequestTimeoutSec) * time.Second
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
