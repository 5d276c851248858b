package workitem

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/detection"
	"github.com/vietddude/relihub/internal/infra/storage"
	"github.com/vietddude/relihub/internal/metrics"
)

const (
	DefaultCompleteThreshold = 80
	DefaultReviewThreshold   = 60
)

// Config controls the confidence gates and title matching.
type Config struct {
	CompleteThreshold int  `yaml:"complete_threshold"`
	ReviewThreshold   int  `yaml:"review_threshold"`
	StrictTitleMatch  bool `yaml:"strict_title_match"`
}

func (c Config) withDefaults() Config {
	if c.ReviewThreshold <= 0 {
		c.ReviewThreshold = DefaultReviewThreshold
	}
	if c.CompleteThreshold <= 0 {
		c.CompleteThreshold = DefaultCompleteThreshold
	}
	if c.CompleteThreshold < c.ReviewThreshold {
		c.CompleteThreshold = c.ReviewThreshold
	}
	return c
}

// Updater moves in-progress work items forward based on keyword detections.
type Updater struct {
	repo storage.WorkItemRepository
	cfg  Config
	log  *slog.Logger
}

func NewUpdater(repo storage.WorkItemRepository, cfg Config, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		repo: repo,
		cfg:  cfg.withDefaults(),
		log:  logger.With("component", "workitem_updater"),
	}
}

// UpdateFromDetection applies the status transition implied by a detection.
// Collaborator errors are reported through UpdateResult.Reason.
func (u *Updater) UpdateFromDetection(ctx context.Context, det *domain.DetectionResult) domain.UpdateResult {
	if det == nil {
		return domain.UpdateResult{Reason: domain.ReasonLowConfidence}
	}

	res := domain.UpdateResult{
		Confidence:      det.Confidence,
		DetectedKeyword: det.Keyword,
	}

	if det.Confidence < u.cfg.ReviewThreshold {
		res.Reason = domain.ReasonLowConfidence
		return res
	}

	items, err := u.repo.ListItems(ctx, domain.WorkItemInProgress)
	if err != nil {
		u.log.Error("Failed to list work items", "error", err)
		res.Reason = domain.ReasonMemorySystemError
		return res
	}

	candidates := u.candidates(items, det.Category)
	if len(candidates) == 0 {
		res.Reason = domain.ReasonNoMatchingTodos
		return res
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	target := candidates[0]

	newStatus := domain.WorkItemPendingReview
	if det.Confidence >= u.cfg.CompleteThreshold {
		newStatus = domain.WorkItemCompleted
	}

	if err := u.repo.SetStatus(ctx, target.ID, domain.WorkItemInProgress, newStatus); err != nil {
		u.log.Warn("Failed to update work item",
			"todo_id", target.ID,
			"new_status", newStatus,
			"error", err,
		)
		res.TodoID = target.ID
		res.Reason = domain.ReasonUpdateFailed
		return res
	}

	metrics.WorkItemTransitions.WithLabelValues(string(newStatus)).Inc()
	u.log.Info("Work item updated",
		"todo_id", target.ID,
		"old_status", target.Status,
		"new_status", newStatus,
		"keyword", det.Keyword,
		"confidence", det.Confidence,
	)

	res.Updated = true
	res.TodoID = target.ID
	res.OldStatus = target.Status
	res.NewStatus = newStatus
	return res
}

// candidates filters in-progress items. In permissive mode every item is
// eligible once a category was detected; strict mode also requires the
// title to share a word with the category's title keywords.
func (u *Updater) candidates(items []*domain.WorkItem, category domain.Category) []*domain.WorkItem {
	out := make([]*domain.WorkItem, 0, len(items))
	for _, item := range items {
		if item == nil || item.Status != domain.WorkItemInProgress {
			continue
		}
		if u.cfg.StrictTitleMatch && !titleMatches(item.Title, category) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func titleMatches(title string, category domain.Category) bool {
	lower := strings.ToLower(title)
	for _, kw := range detection.TitleKeywords(category) {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
