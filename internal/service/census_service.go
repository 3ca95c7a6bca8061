package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ictrack/internal/census"
	"ictrack/internal/domain"
	"ictrack/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// previewKeyPrefix 预览批次在 KV 中的键前缀
const previewKeyPrefix = "census:preview:"

// ErrStorage 文档加载/落盘等基础设施故障（服务端错误，
// 区别于批次过期、error 行未 override 这类调用方可恢复的问题）
var ErrStorage = errors.New("storage failure")

// CensusService 普查对账服务接口
// 流水线：解析 → 校验（预览，暂存批次）→ [用户勾选] → 合并 → 级联出院
// → 审计 → 整文档落盘。整条流水线在一次同步调用内跑完，无后台任务
type CensusService interface {
	// 预览：解析 + 校验，暂存批次供 Apply 取回
	PreviewImport(ctx context.Context, req PreviewImportRequest) (*PreviewImportResponse, error)

	// 应用：按勾选行集合对账并持久化
	ApplyImport(ctx context.Context, req ApplyImportRequest) (*ApplyImportResponse, error)

	// 查询
	ListResidents(ctx context.Context, req ListResidentsRequest) (*ListResidentsResponse, error)
	ListAudit(ctx context.Context, req ListAuditRequest) (*ListAuditResponse, error)

	// Snapshot 当前整库文档（导出用，只读）
	Snapshot(ctx context.Context) (*domain.Document, error)
}

// censusService 实现
type censusService struct {
	docs     store.DocumentStore
	kv       store.KV
	verifier census.ValidatorConfig
	ttl      time.Duration
	notifier *EMRNotifier // 可空（EMR 通知未启用）
	logger   *zap.Logger

	now func() time.Time // 测试可注入
}

// NewCensusService 创建 CensusService 实例
func NewCensusService(docs store.DocumentStore, kv store.KV, verifier census.ValidatorConfig, previewTTL time.Duration, notifier *EMRNotifier, logger *zap.Logger) CensusService {
	return &censusService{
		docs:     docs,
		kv:       kv,
		verifier: verifier,
		ttl:      previewTTL,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

var _ CensusService = (*censusService)(nil)

// ============================================
// Request/Response DTOs
// ============================================

// PreviewImportRequest 预览请求
type PreviewImportRequest struct {
	Text string `json:"text"` // 原始粘贴文本
}

// ImportRowView 预览行（供导入 UI 展示与勾选）
type ImportRowView struct {
	Key          string   `json:"key"`
	MRN          string   `json:"mrn"`
	CanonicalMRN string   `json:"canonical_mrn"`
	Name         string   `json:"name"`
	Unit         string   `json:"unit"`
	Room         string   `json:"room"`
	DOB          string   `json:"dob"`
	Status       string   `json:"status"`
	Payor        string   `json:"payor"`
	Verdict      string   `json:"verdict"`
	Issues       []string `json:"issues"`
	Duplicate    bool     `json:"duplicate"`
	Selected     bool     `json:"selected"`
}

// PreviewImportResponse 预览响应
type PreviewImportResponse struct {
	BatchToken    string          `json:"batch_token"`
	Rows          []ImportRowView `json:"rows"`
	TotalRows     int             `json:"total_rows"`
	ValidRows     int             `json:"valid_rows"`
	WarningRows   int             `json:"warning_rows"`
	ErrorRows     int             `json:"error_rows"`
	DuplicateMRNs []string        `json:"duplicate_mrns"` // 批内重复的规范化 MRN（显式警告）
}

// ApplyImportRequest 应用请求
type ApplyImportRequest struct {
	BatchToken string `json:"batch_token"`
	// SelectedKeys 勾选的行键；nil 表示沿用预览时的默认勾选
	SelectedKeys []string `json:"selected_keys"`
	// AllowErrorOverride 允许带 error 行强制应用
	AllowErrorOverride bool `json:"allow_error_override"`
}

// ApplyImportResponse 应用结果汇总（用户反馈）
type ApplyImportResponse struct {
	Imported        int       `json:"imported"` // 新建住民
	Updated         int       `json:"updated"`  // 更新住民
	Dropped         int       `json:"dropped"`  // 掉队住民
	AbtClosed       int       `json:"abt_closed"`
	IPClosed        int       `json:"ip_closed"`
	VaxClosed       int       `json:"vax_closed"`
	LocationUpdates int       `json:"location_updates"`
	AppliedAt       time.Time `json:"applied_at"`
}

// ListResidentsRequest 住民列表请求
type ListResidentsRequest struct {
	ActiveOnly bool
	Page       int
	Size       int
}

// ListResidentsResponse 住民列表响应
type ListResidentsResponse struct {
	Items []*domain.Resident `json:"items"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Size  int                `json:"size"`
}

// ListAuditRequest 审计列表请求
type ListAuditRequest struct {
	Page int
	Size int
}

// ListAuditResponse 审计列表响应（新条目在前）
type ListAuditResponse struct {
	Items []domain.AuditEntry `json:"items"`
	Total int                 `json:"total"`
	Page  int                 `json:"page"`
	Size  int                 `json:"size"`
}

// stagedBatch KV 暂存的预览批次
type stagedBatch struct {
	Rows      []*census.ImportRow `json:"rows"`
	CreatedAt time.Time           `json:"created_at"`
}

// ============================================
// 实现
// ============================================

// PreviewImport 解析 + 校验 + 暂存
func (s *censusService) PreviewImport(ctx context.Context, req PreviewImportRequest) (*PreviewImportResponse, error) {
	rows := census.ParseCensusText(req.Text)
	census.ValidateBatch(rows, s.verifier)

	token := uuid.NewString()
	staged, err := json.Marshal(stagedBatch{Rows: rows, CreatedAt: s.now()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode preview batch: %w", err)
	}
	if err := s.kv.Set(ctx, previewKeyPrefix+token, string(staged), s.ttl); err != nil {
		return nil, fmt.Errorf("failed to stage preview batch: %w", err)
	}

	resp := &PreviewImportResponse{
		BatchToken: token,
		Rows:       make([]ImportRowView, 0, len(rows)),
		TotalRows:  len(rows),
	}
	dupSeen := map[string]bool{}
	for _, row := range rows {
		switch row.Verdict {
		case census.VerdictValid:
			resp.ValidRows++
		case census.VerdictWarning:
			resp.WarningRows++
		case census.VerdictError:
			resp.ErrorRows++
		}
		if row.Duplicate && !dupSeen[row.CanonicalMRN] {
			dupSeen[row.CanonicalMRN] = true
			resp.DuplicateMRNs = append(resp.DuplicateMRNs, row.CanonicalMRN)
		}
		resp.Rows = append(resp.Rows, ImportRowView{
			Key:          row.Key,
			MRN:          row.MRN,
			CanonicalMRN: row.CanonicalMRN,
			Name:         row.Name,
			Unit:         row.Unit,
			Room:         row.Room,
			DOB:          row.DOBRaw,
			Status:       row.Status,
			Payor:        row.Payor,
			Verdict:      string(row.Verdict),
			Issues:       row.Issues,
			Duplicate:    row.Duplicate,
			Selected:     row.Selected,
		})
	}

	s.logger.Info("census preview parsed",
		zap.Int("rows", resp.TotalRows),
		zap.Int("errors", resp.ErrorRows),
		zap.Int("duplicates", len(resp.DuplicateMRNs)),
		zap.String("batch_token", token))
	return resp, nil
}

// ApplyImport 对账应用：整文档在内存构建完成后一次性落盘；
// 落盘失败时不产生任何持久化副作用（旧文档原样保留）
func (s *censusService) ApplyImport(ctx context.Context, req ApplyImportRequest) (*ApplyImportResponse, error) {
	raw, err := s.kv.Get(ctx, previewKeyPrefix+req.BatchToken)
	if err != nil {
		if err == store.ErrMiss {
			return nil, fmt.Errorf("preview batch not found or expired")
		}
		return nil, fmt.Errorf("%w: failed to fetch preview batch: %w", ErrStorage, err)
	}
	var staged stagedBatch
	if err := json.Unmarshal([]byte(raw), &staged); err != nil {
		return nil, fmt.Errorf("failed to decode preview batch: %w", err)
	}

	selected := selectRows(staged.Rows, req.SelectedKeys)

	// error 行必须显式 override 才能应用
	errorRows := 0
	for _, row := range selected {
		if row.Verdict == census.VerdictError {
			errorRows++
		}
	}
	if errorRows > 0 && !req.AllowErrorOverride {
		return nil, fmt.Errorf("%d selected rows have validation errors (override required)", errorRows)
	}

	doc, err := s.docs.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load document: %w", ErrStorage, err)
	}

	now := s.now()
	result := census.Reconcile(doc.Residents, selected, now)
	doc.Residents = result.Residents

	closed := census.AutoDischarge(doc, result.Dropped, now)
	located := census.ApplyLocationChanges(doc, result.LocationChanges, now)

	s.recordAudit(doc, now, len(selected), result, closed, located)
	doc.UpdatedAt = now

	if err := s.docs.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: failed to persist document: %w", ErrStorage, err)
	}

	// 批次已消费；删除失败只影响重复应用的提示，不影响本次结果
	if err := s.kv.Del(ctx, previewKeyPrefix+req.BatchToken); err != nil {
		s.logger.Warn("failed to delete consumed preview batch", zap.Error(err))
	}

	resp := &ApplyImportResponse{
		Imported:        result.Added,
		Updated:         result.Updated,
		Dropped:         len(result.Dropped),
		AbtClosed:       closed.Abt,
		IPClosed:        closed.Isolation,
		VaxClosed:       closed.Vax,
		LocationUpdates: located,
		AppliedAt:       now,
	}

	if s.notifier != nil {
		// 通知失败不回滚导入，只记警告
		if err := s.notifier.NotifyImport(ctx, resp); err != nil {
			s.logger.Warn("EMR notify failed", zap.Error(err))
		}
	}

	s.logger.Info("census import applied",
		zap.Int("imported", resp.Imported),
		zap.Int("updated", resp.Updated),
		zap.Int("dropped", resp.Dropped),
		zap.Int("auto_closed", closed.Total()),
		zap.Int("location_updates", located))
	return resp, nil
}

// recordAudit 每个高层操作各追加一条（整次导入一条，而非每行一条）
func (s *censusService) recordAudit(doc *domain.Document, now time.Time, applied int, result census.ReconcileResult, closed census.DischargeCounts, located int) {
	add := func(action domain.AuditAction, summary, tag string) {
		doc.AppendAudit(domain.AuditEntry{
			ID:        uuid.NewString(),
			Action:    action,
			Summary:   summary,
			EntityTag: tag,
			CreatedAt: now,
		})
	}

	add(domain.AuditCensusImport,
		fmt.Sprintf("Census import: %d rows applied, %d added, %d updated, %d dropped",
			applied, result.Added, result.Updated, len(result.Dropped)),
		"resident")

	if closed.Abt > 0 {
		add(domain.AuditAbxDischarge,
			fmt.Sprintf("Auto-closed %d antibiotic courses for residents off census", closed.Abt),
			"abt_course")
	}
	if closed.Isolation > 0 {
		add(domain.AuditIPDischarge,
			fmt.Sprintf("Auto-closed %d isolation cases for residents off census", closed.Isolation),
			"isolation_case")
	}
	if closed.Vax > 0 {
		add(domain.AuditVaxDischarge,
			fmt.Sprintf("Auto-closed %d vaccination records for residents off census", closed.Vax),
			"vax_record")
	}
	if located > 0 {
		add(domain.AuditLocationUpdate,
			fmt.Sprintf("Synced unit/room on %d tracker entries after resident transfers", located),
			"tracker")
	}
}

// selectRows 按行键过滤；keys 为 nil 时沿用默认勾选
func selectRows(rows []*census.ImportRow, keys []string) []*census.ImportRow {
	if keys == nil {
		var out []*census.ImportRow
		for _, row := range rows {
			if row.Selected {
				out = append(out, row)
			}
		}
		return out
	}

	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var out []*census.ImportRow
	for _, row := range rows {
		if want[row.Key] {
			out = append(out, row)
		}
	}
	return out
}

// ListResidents 住民列表（可只看在册）
func (s *censusService) ListResidents(ctx context.Context, req ListResidentsRequest) (*ListResidentsResponse, error) {
	doc, err := s.docs.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	var items []*domain.Resident
	for _, r := range doc.Residents {
		if req.ActiveOnly && !r.ActiveOnCensus {
			continue
		}
		items = append(items, r)
	}

	page, size := normalizePage(req.Page, req.Size)
	total := len(items)
	items = paginate(items, page, size)
	return &ListResidentsResponse{Items: items, Total: total, Page: page, Size: size}, nil
}

// ListAudit 审计列表，新条目在前
func (s *censusService) ListAudit(ctx context.Context, req ListAuditRequest) (*ListAuditResponse, error) {
	doc, err := s.docs.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	items := make([]domain.AuditEntry, 0, len(doc.AuditLog))
	for i := len(doc.AuditLog) - 1; i >= 0; i-- {
		items = append(items, doc.AuditLog[i])
	}

	page, size := normalizePage(req.Page, req.Size)
	total := len(items)
	items = paginate(items, page, size)
	return &ListAuditResponse{Items: items, Total: total, Page: page, Size: size}, nil
}

// Snapshot 当前整库文档
func (s *censusService) Snapshot(ctx context.Context) (*domain.Document, error) {
	return s.docs.Load(ctx)
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	return page, size
}

func paginate[T any](items []T, page, size int) []T {
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
