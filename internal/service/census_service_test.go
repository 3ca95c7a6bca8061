package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ictrack/internal/census"
	"ictrack/internal/domain"
	"ictrack/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, docs store.DocumentStore) *censusService {
	t.Helper()
	verifier := census.ValidatorConfig{Units: []string{"A", "B", "C", "TCU"}}
	svc := NewCensusService(docs, store.NewMemoryKV(), verifier, 30*time.Minute, nil, zap.NewNop())
	cs := svc.(*censusService)
	cs.now = func() time.Time { return time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC) }
	return cs
}

func seedDocument(t *testing.T, docs store.DocumentStore) {
	t.Helper()
	seen := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	doc := domain.NewDocument()
	doc.Residents = []*domain.Resident{
		{MRN: "100", Name: "Doe, John", Unit: "A", Room: "101", ActiveOnCensus: true, LastSeenCensusAt: &seen},
		{MRN: "200", Name: "Smith, Jane", Unit: "B", Room: "202", ActiveOnCensus: true, LastSeenCensusAt: &seen},
	}
	doc.AbtCourses = []*domain.AbtCourse{
		{ID: "abt-1", MRN: "200", Drug: "Ceftriaxone", Status: domain.AbtActive, Unit: "B", Room: "202"},
		{ID: "abt-2", MRN: "100", Drug: "Vancomycin", Status: domain.AbtActive, Unit: "A", Room: "101"},
	}
	doc.IsolationCases = []*domain.IsolationCase{
		{ID: "ip-1", MRN: "MRN-200", Precaution: "Contact", Status: domain.IsoActive, Unit: "B", Room: "202"},
	}
	doc.VaxRecords = []*domain.VaxRecord{
		{ID: "vax-1", MRN: "200", Vaccine: "Influenza", Status: domain.VaxPending},
	}
	require.NoError(t, docs.Save(context.Background(), doc))
}

func TestPreviewImport(t *testing.T) {
	svc := newTestService(t, store.NewMemoryDocumentStore())

	resp, err := svc.PreviewImport(context.Background(), PreviewImportRequest{
		Text: "100\tDoe, John\tA\t101\t01/02/1940\n" +
			"300\tBrown, Sam\tZ\t303\n" +
			"100\tDoe, J.\tA\t101\t01/02/1940\n",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.BatchToken)
	require.Equal(t, 3, resp.TotalRows)
	require.Equal(t, 1, resp.ValidRows)
	require.Equal(t, 2, resp.ErrorRows) // 白名单外单元 + 批内重复
	require.Equal(t, []string{"100"}, resp.DuplicateMRNs)

	require.True(t, resp.Rows[0].Selected)
	require.False(t, resp.Rows[1].Selected)
	require.False(t, resp.Rows[2].Selected)
}

// 端到端：预览 → 应用；掉队级联 + 转移同步 + 审计 + 落盘
func TestApplyImport_EndToEnd(t *testing.T) {
	docs := store.NewMemoryDocumentStore()
	seedDocument(t, docs)
	svc := newTestService(t, docs)
	ctx := context.Background()

	// 新普查：100 转移房间，200 消失，400 新入住
	preview, err := svc.PreviewImport(ctx, PreviewImportRequest{
		Text: "100\tDoe, John\tA\t105\t01/02/1940\n" +
			"400\tNew, Nancy\tC\t301\t05/06/1950\n",
	})
	require.NoError(t, err)

	resp, err := svc.ApplyImport(ctx, ApplyImportRequest{BatchToken: preview.BatchToken})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Imported)
	require.Equal(t, 1, resp.Updated)
	require.Equal(t, 1, resp.Dropped)
	require.Equal(t, 1, resp.AbtClosed)
	require.Equal(t, 1, resp.IPClosed)
	require.Equal(t, 1, resp.VaxClosed)
	require.Equal(t, 1, resp.LocationUpdates) // abt-2 跟随 100 换房

	doc, err := docs.Load(ctx)
	require.NoError(t, err)

	// 掉队住民翻转 inactive
	now := svc.now()
	dropped := doc.ResidentByMRN("200")
	require.False(t, dropped.ActiveOnCensus)
	require.Equal(t, now, *dropped.LastMissingCensusAt)

	// 级联出院：MRN 原文变体也命中
	require.Equal(t, domain.AbtDiscontinued, doc.AbtCourses[0].Status)
	require.Equal(t, domain.DischargeReasonCensusAuto, doc.AbtCourses[0].DischargeReason)
	require.Equal(t, domain.IsoDischarged, doc.IsolationCases[0].Status)
	require.Equal(t, domain.VaxDischarged, doc.VaxRecords[0].Status)

	// 在册住民的疗程只同步位置，不被关闭
	require.Equal(t, domain.AbtActive, doc.AbtCourses[1].Status)
	require.Equal(t, "105", doc.AbtCourses[1].Room)

	// 审计：整次导入一条 + 三类出院各一条 + 位置同步一条
	require.Len(t, doc.AuditLog, 5)
	require.Equal(t, domain.AuditCensusImport, doc.AuditLog[0].Action)
	actions := map[domain.AuditAction]bool{}
	for _, e := range doc.AuditLog {
		actions[e.Action] = true
		require.Equal(t, now, e.CreatedAt)
		require.NotEmpty(t, e.ID)
	}
	require.True(t, actions[domain.AuditAbxDischarge])
	require.True(t, actions[domain.AuditIPDischarge])
	require.True(t, actions[domain.AuditVaxDischarge])
	require.True(t, actions[domain.AuditLocationUpdate])
}

// 批次应用后即被消费，重复应用报批次不存在
func TestApplyImport_BatchConsumed(t *testing.T) {
	docs := store.NewMemoryDocumentStore()
	svc := newTestService(t, docs)
	ctx := context.Background()

	preview, err := svc.PreviewImport(ctx, PreviewImportRequest{Text: "100\tDoe\tA\t101\n"})
	require.NoError(t, err)

	_, err = svc.ApplyImport(ctx, ApplyImportRequest{BatchToken: preview.BatchToken})
	require.NoError(t, err)

	_, err = svc.ApplyImport(ctx, ApplyImportRequest{BatchToken: preview.BatchToken})
	require.ErrorContains(t, err, "not found or expired")
}

func TestApplyImport_ErrorRowsRequireOverride(t *testing.T) {
	docs := store.NewMemoryDocumentStore()
	svc := newTestService(t, docs)
	ctx := context.Background()

	preview, err := svc.PreviewImport(ctx, PreviewImportRequest{Text: "100\tDoe\tZ\t101\n"})
	require.NoError(t, err)

	// 显式勾选 error 行但未 override
	_, err = svc.ApplyImport(ctx, ApplyImportRequest{
		BatchToken:   preview.BatchToken,
		SelectedKeys: []string{"row-0"},
	})
	require.ErrorContains(t, err, "override required")

	// override 后可应用
	resp, err := svc.ApplyImport(ctx, ApplyImportRequest{
		BatchToken:         preview.BatchToken,
		SelectedKeys:       []string{"row-0"},
		AllowErrorOverride: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Imported)
}

// failingSaveStore 落盘失败注入
type failingSaveStore struct {
	store.DocumentStore
}

func (f *failingSaveStore) Save(context.Context, *domain.Document) error {
	return fmt.Errorf("disk full")
}

// 落盘失败：整个操作报错，已持久化的旧文档不被触碰
func TestApplyImport_SaveFailureLeavesDocumentUntouched(t *testing.T) {
	inner := store.NewMemoryDocumentStore()
	seedDocument(t, inner)
	svc := newTestService(t, &failingSaveStore{DocumentStore: inner})
	ctx := context.Background()

	preview, err := svc.PreviewImport(ctx, PreviewImportRequest{Text: "100\tDoe, John\tA\t101\t01/02/1940\n"})
	require.NoError(t, err)

	_, err = svc.ApplyImport(ctx, ApplyImportRequest{BatchToken: preview.BatchToken})
	require.ErrorContains(t, err, "failed to persist document")
	require.ErrorIs(t, err, ErrStorage) // 存储故障对上层可判别（映射为服务端错误）

	doc, err := inner.Load(ctx)
	require.NoError(t, err)
	require.True(t, doc.ResidentByMRN("200").ActiveOnCensus) // 无掉队副作用
	require.Equal(t, domain.AbtActive, doc.AbtCourses[0].Status)
	require.Empty(t, doc.AuditLog)
}

func TestListResidentsAndAudit(t *testing.T) {
	docs := store.NewMemoryDocumentStore()
	seedDocument(t, docs)
	svc := newTestService(t, docs)
	ctx := context.Background()

	preview, err := svc.PreviewImport(ctx, PreviewImportRequest{Text: "100\tDoe, John\tA\t101\t01/02/1940\n"})
	require.NoError(t, err)
	_, err = svc.ApplyImport(ctx, ApplyImportRequest{BatchToken: preview.BatchToken})
	require.NoError(t, err)

	all, err := svc.ListResidents(ctx, ListResidentsRequest{})
	require.NoError(t, err)
	require.Equal(t, 2, all.Total)

	active, err := svc.ListResidents(ctx, ListResidentsRequest{ActiveOnly: true})
	require.NoError(t, err)
	require.Equal(t, 1, active.Total)
	require.Equal(t, "100", active.Items[0].MRN)

	audit, err := svc.ListAudit(ctx, ListAuditRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, audit.Items)
	// 新条目在前
	require.Equal(t, audit.Total, len(audit.Items))
	require.Equal(t, loadDoc(t, docs).AuditLog[len(loadDoc(t, docs).AuditLog)-1].ID, audit.Items[0].ID)
}

func loadDoc(t *testing.T, docs store.DocumentStore) *domain.Document {
	t.Helper()
	d, err := docs.Load(context.Background())
	require.NoError(t, err)
	return d
}
