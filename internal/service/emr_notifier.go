package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// EMRNotifier EMR 侧 webhook 通知客户端
// 导入成功后把汇总推送给机构的 EMR 集成端点（默认禁用）
// 通知是尽力而为：失败只记日志，不回滚已落盘的导入
type EMRNotifier struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewEMRNotifier 创建 EMR 通知客户端
func NewEMRNotifier(webhookURL string, timeout time.Duration, logger *zap.Logger) *EMRNotifier {
	client := resty.New().
		SetBaseURL(webhookURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &EMRNotifier{
		httpClient: client,
		logger:     logger,
	}
}

// NotifyImport 推送导入汇总
func (n *EMRNotifier) NotifyImport(ctx context.Context, summary *ApplyImportResponse) error {
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(summary).
		Post("")
	if err != nil {
		return fmt.Errorf("failed to post import summary: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("EMR webhook returned status %d", resp.StatusCode())
	}

	n.logger.Debug("EMR webhook notified", zap.Int("status", resp.StatusCode()))
	return nil
}
