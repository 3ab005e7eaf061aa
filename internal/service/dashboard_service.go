package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clinsg/medexam-api/internal/dto"
	"github.com/clinsg/medexam-api/internal/models"
)

type dashboardReportStore interface {
	CountByStatus(ctx context.Context) (map[models.ReportStatus]int, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error)
}

type recentTransmissionLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.Transmission, error)
}

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL          time.Duration
	PendingQueueLimit int
	RecentDeliveryMax int
}

// DashboardService composes workload summaries for clinic staff.
type DashboardService struct {
	reports       dashboardReportStore
	transmissions recentTransmissionLister
	cache         *CacheService
	observer      queryObserver
	logger        *zap.Logger
	now           func() time.Time
	cfg           DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Reports       dashboardReportStore
	Transmissions recentTransmissionLister
	Cache         *CacheService
	Observer      queryObserver
	Logger        *zap.Logger
	Config        DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.PendingQueueLimit <= 0 {
		cfg.PendingQueueLimit = 20
	}
	if cfg.RecentDeliveryMax <= 0 {
		cfg.RecentDeliveryMax = 10
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		reports:       params.Reports,
		transmissions: params.Transmissions,
		cache:         params.Cache,
		observer:      params.Observer,
		logger:        logger,
		now:           time.Now,
		cfg:           cfg,
	}
}

// Overview returns the clinic-wide workload summary and indicates cache
// utilisation.
func (s *DashboardService) Overview(ctx context.Context) (*dto.ClinicOverviewResponse, bool, error) {
	const cacheKey = "dash:clinic"
	if summary, hit, err := s.tryOverviewCache(ctx, cacheKey); err != nil {
		return nil, false, err
	} else if hit {
		return summary, true, nil
	}

	summary, err := s.composeOverview(ctx)
	if err != nil {
		return nil, false, err
	}
	s.persistCache(ctx, cacheKey, summary)
	return summary, false, nil
}

// DoctorQueue returns the reports waiting on the given doctor.
func (s *DashboardService) DoctorQueue(ctx context.Context, doctorID string) (*dto.DoctorQueueResponse, bool, error) {
	cacheKey := fmt.Sprintf("dash:doctor:%s", doctorID)
	if queue, hit, err := s.tryQueueCache(ctx, cacheKey); err != nil {
		return nil, false, err
	} else if hit {
		return queue, true, nil
	}

	pending, err := s.reports.List(ctx, models.ReportFilter{
		Status:           []models.ReportStatus{models.StatusPendingApproval},
		AssignedDoctorID: doctorID,
		Limit:            s.cfg.PendingQueueLimit,
	})
	if err != nil {
		return nil, false, err
	}
	rejected, err := s.reports.List(ctx, models.ReportFilter{
		Status:           []models.ReportStatus{models.StatusRejected},
		AssignedDoctorID: doctorID,
		Limit:            s.cfg.PendingQueueLimit,
	})
	if err != nil {
		return nil, false, err
	}

	queue := &dto.DoctorQueueResponse{
		PendingApprovals: pending,
		RejectedDrafts:   rejected,
		GeneratedAt:      s.now().UTC(),
	}
	s.persistCache(ctx, cacheKey, queue)
	return queue, false, nil
}

// InvalidateAll drops cached dashboard payloads after report mutations.
func (s *DashboardService) InvalidateAll(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dash:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func (s *DashboardService) composeOverview(ctx context.Context) (*dto.ClinicOverviewResponse, error) {
	start := s.now()
	counts, err := s.reports.CountByStatus(ctx)
	if s.observer != nil {
		s.observer.ObserveDBQuery("reports_count_by_status", time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	statusCounts := make(map[string]int, len(counts))
	for status, total := range counts {
		statusCounts[string(status)] = total
	}

	pending, err := s.reports.List(ctx, models.ReportFilter{
		Status: []models.ReportStatus{models.StatusPendingApproval},
		Limit:  s.cfg.PendingQueueLimit,
	})
	if err != nil {
		return nil, err
	}

	var recent []models.Transmission
	if s.transmissions != nil {
		recent, err = s.transmissions.ListRecent(ctx, s.cfg.RecentDeliveryMax)
		if err != nil {
			s.logger.Warn("recent transmissions unavailable", zap.Error(err))
			recent = nil
		}
	}

	return &dto.ClinicOverviewResponse{
		StatusCounts:        statusCounts,
		PendingApprovals:    pending,
		RecentTransmissions: recent,
		GeneratedAt:         s.now().UTC(),
	}, nil
}

func (s *DashboardService) tryOverviewCache(ctx context.Context, key string) (*dto.ClinicOverviewResponse, bool, error) {
	if s.cache == nil {
		return nil, false, nil
	}
	var cached dto.ClinicOverviewResponse
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		return nil, false, err
	}
	if hit {
		return &cached, true, nil
	}
	return nil, false, nil
}

func (s *DashboardService) tryQueueCache(ctx context.Context, key string) (*dto.DoctorQueueResponse, bool, error) {
	if s.cache == nil {
		return nil, false, nil
	}
	var cached dto.DoctorQueueResponse
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		return nil, false, err
	}
	if hit {
		return &cached, true, nil
	}
	return nil, false, nil
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}
