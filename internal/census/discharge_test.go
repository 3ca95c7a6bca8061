package census

import (
	"strings"
	"testing"
	"time"

	"ictrack/internal/domain"

	"github.com/stretchr/testify/require"
)

func trackerDoc() *domain.Document {
	doc := domain.NewDocument()
	doc.AbtCourses = []*domain.AbtCourse{
		{ID: "abt-1", MRN: "MRN-200", Drug: "Ceftriaxone", Status: domain.AbtActive, Unit: "B", Room: "202"},
		{ID: "abt-2", MRN: "100", Drug: "Vancomycin", Status: domain.AbtActive, Unit: "A", Room: "101"},
		{ID: "abt-3", MRN: "200", Drug: "Cefepime", Status: domain.AbtCompleted},
	}
	doc.IsolationCases = []*domain.IsolationCase{
		{ID: "ip-1", MRN: "200", Precaution: "Contact", Status: domain.IsoActive},
	}
	doc.VaxRecords = []*domain.VaxRecord{
		{ID: "vax-1", MRN: " 200 ", Vaccine: "Influenza", Status: domain.VaxPending},
		{ID: "vax-2", MRN: "100", Vaccine: "COVID-19", Status: domain.VaxAdministered},
	}
	return doc
}

func TestAutoDischarge_CascadeScope(t *testing.T) {
	doc := trackerDoc()
	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	counts := AutoDischarge(doc, []string{"200"}, now)

	require.Equal(t, 1, counts.Abt)
	require.Equal(t, 1, counts.Isolation)
	require.Equal(t, 1, counts.Vax)
	require.Equal(t, 3, counts.Total())

	// 掉队住民的非终态记录全部终止（MRN 原文带前缀/空格也要命中）
	require.Equal(t, domain.AbtDiscontinued, doc.AbtCourses[0].Status)
	require.Equal(t, domain.DischargeReasonCensusAuto, doc.AbtCourses[0].DischargeReason)
	require.NotNil(t, doc.AbtCourses[0].DischargedAt)
	require.Equal(t, now, *doc.AbtCourses[0].DischargedAt)
	require.True(t, strings.Contains(doc.AbtCourses[0].Notes, "no longer on census"))

	require.Equal(t, domain.IsoDischarged, doc.IsolationCases[0].Status)
	require.Equal(t, domain.VaxDischarged, doc.VaxRecords[0].Status)

	// 在册住民的记录不被触碰
	require.Equal(t, domain.AbtActive, doc.AbtCourses[1].Status)
	require.Equal(t, "", doc.AbtCourses[1].DischargeReason)
	require.Equal(t, domain.VaxAdministered, doc.VaxRecords[1].Status)
}

// 已终态的记录不被覆盖（含人工出院原因）
func TestAutoDischarge_TerminalUntouched(t *testing.T) {
	doc := domain.NewDocument()
	manual := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	doc.AbtCourses = []*domain.AbtCourse{{
		ID: "abt-1", MRN: "200", Status: domain.AbtDiscontinued,
		DischargedAt: &manual, DischargeReason: domain.DischargeReasonManual,
	}}

	counts := AutoDischarge(doc, []string{"200"}, time.Now())

	require.Equal(t, 0, counts.Total())
	require.Equal(t, domain.DischargeReasonManual, doc.AbtCourses[0].DischargeReason)
	require.Equal(t, manual, *doc.AbtCourses[0].DischargedAt)
}

// 幂等：重跑一遍不再产生任何关闭
func TestAutoDischarge_Idempotent(t *testing.T) {
	doc := trackerDoc()
	now := time.Now()

	first := AutoDischarge(doc, []string{"200"}, now)
	second := AutoDischarge(doc, []string{"200"}, now.Add(time.Minute))

	require.Equal(t, 3, first.Total())
	require.Equal(t, 0, second.Total())
}

func TestAutoDischarge_EmptyDropSet(t *testing.T) {
	doc := trackerDoc()
	counts := AutoDischarge(doc, nil, time.Now())
	require.Equal(t, 0, counts.Total())
	require.Equal(t, domain.AbtActive, doc.AbtCourses[0].Status)
}

func TestApplyLocationChanges_OnlyActiveEpisodes(t *testing.T) {
	doc := domain.NewDocument()
	doc.AbtCourses = []*domain.AbtCourse{
		{ID: "abt-1", MRN: "100", Status: domain.AbtActive, Unit: "A", Room: "101"},
		{ID: "abt-2", MRN: "100", Status: domain.AbtCompleted, Unit: "A", Room: "101"},
	}
	doc.IsolationCases = []*domain.IsolationCase{
		{ID: "ip-1", MRN: "MRN100", Status: domain.IsoActive, Unit: "A", Room: "101"},
	}

	now := time.Now()
	updated := ApplyLocationChanges(doc, []LocationChange{{MRN: "100", NewUnit: "A", NewRoom: "202"}}, now)

	require.Equal(t, 2, updated)
	require.Equal(t, "202", doc.AbtCourses[0].Room)
	require.Equal(t, "202", doc.IsolationCases[0].Room)
	// 终态记录保持历史位置
	require.Equal(t, "101", doc.AbtCourses[1].Room)
}
