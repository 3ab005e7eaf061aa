package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinsg/medexam-api/internal/models"
	appErrors "github.com/clinsg/medexam-api/pkg/errors"
)

type memoryCacheRepo struct {
	entries map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

type dashboardReportStub struct {
	counts  map[models.ReportStatus]int
	reports []models.Report
	filters []models.ReportFilter
}

func (s *dashboardReportStub) CountByStatus(context.Context) (map[models.ReportStatus]int, error) {
	return s.counts, nil
}

func (s *dashboardReportStub) List(_ context.Context, filter models.ReportFilter) ([]models.Report, error) {
	s.filters = append(s.filters, filter)
	matched := make([]models.Report, 0, len(s.reports))
	for _, report := range s.reports {
		if len(filter.Status) > 0 && report.Status != filter.Status[0] {
			continue
		}
		if filter.AssignedDoctorID != "" && (report.AssignedDoctorID == nil || *report.AssignedDoctorID != filter.AssignedDoctorID) {
			continue
		}
		matched = append(matched, report)
	}
	return matched, nil
}

type recentTransmissionStub struct {
	items []models.Transmission
}

func (s *recentTransmissionStub) ListRecent(context.Context, int) ([]models.Transmission, error) {
	return s.items, nil
}

func newDashboardFixture() (*DashboardService, *dashboardReportStub, *memoryCacheRepo) {
	docID := "doc-1"
	reports := &dashboardReportStub{
		counts: map[models.ReportStatus]int{
			models.StatusDraft:           4,
			models.StatusPendingApproval: 2,
			models.StatusSubmitted:       7,
		},
		reports: []models.Report{
			{ID: "rep-1", Status: models.StatusPendingApproval, AssignedDoctorID: &docID},
			{ID: "rep-2", Status: models.StatusPendingApproval},
			{ID: "rep-3", Status: models.StatusRejected, AssignedDoctorID: &docID},
		},
	}
	cacheRepo := newMemoryCacheRepo()
	svc := NewDashboardService(DashboardServiceParams{
		Reports:       reports,
		Transmissions: &recentTransmissionStub{items: []models.Transmission{{ID: "tm-1", Status: models.TransmissionSent}}},
		Cache:         NewCacheService(cacheRepo, nil, time.Minute, nil, true),
	})
	return svc, reports, cacheRepo
}

func TestDashboardOverviewComposesAndCaches(t *testing.T) {
	svc, _, _ := newDashboardFixture()

	summary, hit, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 7, summary.StatusCounts["submitted"])
	require.Len(t, summary.PendingApprovals, 2)
	require.Len(t, summary.RecentTransmissions, 1)

	cached, hit, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, summary.StatusCounts, cached.StatusCounts)
}

func TestDashboardDoctorQueueScopedToDoctor(t *testing.T) {
	svc, _, _ := newDashboardFixture()

	queue, hit, err := svc.DoctorQueue(context.Background(), "doc-1")
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, queue.PendingApprovals, 1)
	require.Equal(t, "rep-1", queue.PendingApprovals[0].ID)
	require.Len(t, queue.RejectedDrafts, 1)
	require.Equal(t, "rep-3", queue.RejectedDrafts[0].ID)
}

func TestDashboardInvalidateAllDropsCachedPayloads(t *testing.T) {
	svc, reports, cacheRepo := newDashboardFixture()

	_, _, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.Contains(t, cacheRepo.entries, "dash:clinic")

	svc.InvalidateAll(context.Background())
	require.NotContains(t, cacheRepo.entries, "dash:clinic")

	reports.counts[models.StatusSubmitted] = 8
	summary, hit, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 8, summary.StatusCounts["submitted"])
}

func TestDashboardWithoutCacheStillServes(t *testing.T) {
	reports := &dashboardReportStub{counts: map[models.ReportStatus]int{models.StatusDraft: 1}}
	svc := NewDashboardService(DashboardServiceParams{Reports: reports})

	summary, hit, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 1, summary.StatusCounts["draft"])
}
