package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/manager"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/social"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrNoAccounts           = errors.New("no accounts selected for publishing")
	ErrSchedulerUnavailable = errors.New("scheduled publishing is not available")
)

// Scheduler defers the publish of a stored post until at.
type Scheduler interface {
	Schedule(ctx context.Context, postID string, at time.Time) error
}

type CreatePostRequest struct {
	AccountIDs []int64                                  `json:"account_ids"`
	Options    social.PostOptions                       `json:"options"`
	Overrides  map[social.Platform]*social.PostOverride `json:"overrides,omitempty"`
}

type PostResult struct {
	PostID        string                   `json:"post_id"`
	Status        string                   `json:"status"`
	ScheduledTime *time.Time               `json:"scheduled_time,omitempty"`
	Results       []manager.BulkPostResult `json:"results,omitempty"`
}

// InvalidPostError reports the platforms a post cannot be published to.
type InvalidPostError struct {
	Results map[social.Platform]manager.ValidationResult
}

func (e *InvalidPostError) Error() string {
	var platforms []string
	for p, r := range e.Results {
		if !r.Valid {
			platforms = append(platforms, string(p))
		}
	}
	sort.Strings(platforms)
	return "post is invalid for " + strings.Join(platforms, ", ")
}

type PostService interface {
	Validate(ctx context.Context, userID int64, req *CreatePostRequest) (map[social.Platform]manager.ValidationResult, error)
	Create(ctx context.Context, userID int64, req *CreatePostRequest) (*PostResult, error)
	PublishNow(ctx context.Context, postID string) (*PostResult, error)
	History(ctx context.Context, userID int64, limit int) ([]*models.PostingHistory, error)
	SetScheduler(s Scheduler)
}

type postService struct {
	accounts  AccountService
	pr        repository.PostRepository
	ph        repository.PostingHistoryRepository
	sa        repository.SocialAccountRepository
	scheduler Scheduler
	now       func() time.Time
}

func NewPostService(
	accounts AccountService,
	pr repository.PostRepository,
	ph repository.PostingHistoryRepository,
	sa repository.SocialAccountRepository) PostService {
	return &postService{
		accounts: accounts,
		pr:       pr,
		ph:       ph,
		sa:       sa,
		now:      time.Now,
	}
}

func (s *postService) SetScheduler(scheduler Scheduler) {
	s.scheduler = scheduler
}

type postContent struct {
	Options   social.PostOptions                       `json:"options"`
	Overrides map[social.Platform]*social.PostOverride `json:"overrides,omitempty"`
}

func (s *postService) Validate(ctx context.Context, userID int64, req *CreatePostRequest) (map[social.Platform]manager.ValidationResult, error) {
	validation, _, err := s.validate(ctx, userID, req)
	return validation, err
}

// validate also reports whether the post goes to the scheduler. A deferred
// post reaches the platforms without a schedule time, so it is validated as
// an immediate post.
func (s *postService) validate(ctx context.Context, userID int64, req *CreatePostRequest) (map[social.Platform]manager.ValidationResult, bool, error) {
	if len(req.AccountIDs) == 0 {
		return nil, false, ErrNoAccounts
	}
	accounts, err := s.accounts.Sync(ctx, userID, req.AccountIDs...)
	if err != nil {
		return nil, false, err
	}
	m := s.accounts.Manager(userID)
	platforms := platformsOf(accounts)
	opts, overrides := req.Options, req.Overrides
	deferred := opts.IsScheduled(s.now()) && !nativeSchedule(m, platforms, opts, overrides)
	if deferred {
		opts, overrides = withoutSchedule(opts, overrides)
	}
	return m.ValidatePostForPlatforms(platforms, opts, overrides), deferred, nil
}

// Create stores the post and publishes it at once, or hands it to the
// scheduler when it is due later and some target cannot schedule natively.
func (s *postService) Create(ctx context.Context, userID int64, req *CreatePostRequest) (*PostResult, error) {
	validation, deferred, err := s.validate(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	for _, r := range validation {
		if !r.Valid {
			return nil, &InvalidPostError{Results: validation}
		}
	}

	raw, err := json.Marshal(postContent{Options: req.Options, Overrides: req.Overrides})
	if err != nil {
		return nil, err
	}
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		ID:            id,
		UserID:        userID,
		Content:       raw,
		AccountIDs:    req.AccountIDs,
		ScheduledTime: req.Options.ScheduleTime,
		Status:        models.PostStatusPending,
	}
	if deferred {
		post.Status = models.PostStatusScheduled
	}
	if deferred && s.scheduler == nil {
		return nil, ErrSchedulerUnavailable
	}
	if err := s.pr.Create(ctx, post); err != nil {
		return nil, err
	}

	if deferred {
		if err := s.scheduler.Schedule(ctx, post.ID, *req.Options.ScheduleTime); err != nil {
			if uerr := s.pr.UpdatePostStatus(ctx, models.PostStatusFailed, post.ID); uerr != nil {
				slog.Warn("marking post failed", "post", post.ID, "err", uerr)
			}
			return nil, fmt.Errorf("schedule post %s: %w", post.ID, err)
		}
		slog.Info("post scheduled", "post", post.ID, "at", req.Options.ScheduleTime)
		return &PostResult{PostID: post.ID, Status: models.PostStatusScheduled, ScheduledTime: req.Options.ScheduleTime}, nil
	}
	return s.PublishNow(ctx, post.ID)
}

// nativeSchedule reports whether every platform holds the post until its
// schedule time by itself.
func nativeSchedule(m *manager.Manager, platforms []social.Platform, opts social.PostOptions, overrides map[social.Platform]*social.PostOverride) bool {
	for _, platform := range platforms {
		p, err := m.Provider(platform)
		if err != nil {
			return false
		}
		if ns, ok := p.(social.NativeScheduler); ok {
			if !ns.CanSchedule(opts.WithOverride(overrides[platform])) {
				return false
			}
			continue
		}
		if !p.Limits().NativeSchedule {
			return false
		}
	}
	return true
}

func withoutSchedule(opts social.PostOptions, overrides map[social.Platform]*social.PostOverride) (social.PostOptions, map[social.Platform]*social.PostOverride) {
	opts.ScheduleTime = nil
	out := make(map[social.Platform]*social.PostOverride, len(overrides))
	for platform, ov := range overrides {
		if ov != nil && ov.ScheduleTime != nil {
			c := *ov
			c.ScheduleTime = nil
			ov = &c
		}
		out[platform] = ov
	}
	return opts, out
}

// PublishNow publishes a stored post to its accounts and records one history
// row per account. Accounts of the same platform are published in separate
// rounds since a bulk post targets one account per platform.
func (s *postService) PublishNow(ctx context.Context, postID string) (*PostResult, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusPending && post.Status != models.PostStatusScheduled {
		slog.Info("post already handled", "post", post.ID, "status", post.Status)
		return &PostResult{PostID: post.ID, Status: post.Status}, nil
	}
	var content postContent
	if err := json.Unmarshal(post.Content, &content); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", postID, err)
	}
	if len(post.AccountIDs) == 0 {
		return nil, ErrNoAccounts
	}
	accounts, err := s.accounts.Sync(ctx, post.UserID, post.AccountIDs...)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !content.Options.IsScheduled(now) {
		content.Options.ScheduleTime = nil
	}
	for _, ov := range content.Overrides {
		if ov != nil && ov.ScheduleTime != nil && !ov.ScheduleTime.After(now) {
			ov.ScheduleTime = nil
		}
	}

	m := s.accounts.Manager(post.UserID)
	result := &PostResult{PostID: post.ID, ScheduledTime: content.Options.ScheduleTime}
	for _, round := range rounds(accounts) {
		req := manager.BulkPostRequest{
			Options:   content.Options,
			Overrides: content.Overrides,
			Accounts:  map[social.Platform]string{},
		}
		for _, sa := range round {
			platform := social.Platform(sa.Platform)
			req.Platforms = append(req.Platforms, platform)
			req.Accounts[platform] = accountKey(sa.ID)
		}
		for _, r := range m.BulkPost(ctx, req) {
			result.Results = append(result.Results, r)
			s.record(ctx, post, r)
		}
	}

	result.Status = summarize(result.Results)
	if err := s.pr.UpdatePostStatus(ctx, result.Status, post.ID); err != nil {
		return result, err
	}
	return result, nil
}

func (s *postService) record(ctx context.Context, post *models.Post, r manager.BulkPostResult) {
	id, _ := strconv.ParseInt(r.AccountID, 10, 64)
	ph := &models.PostingHistory{
		UserID:    post.UserID,
		PostID:    post.ID,
		AccountID: id,
		Platform:  string(r.Platform),
		Status:    string(social.StatusFailed),
	}
	if r.Success && r.Post != nil {
		ph.Status = string(r.Post.Status)
		ph.PlatformPostID = r.Post.ID
		ph.PostURL = r.Post.URL
	}
	if r.Error != nil {
		ph.ErrorCode = r.Error.Code
		ph.ErrorMessage = r.Error.Message
		if r.Error.Code == social.CodeAuthFailed && id != 0 {
			now := s.now()
			err := s.sa.SetStatus(ctx, &models.SocialAccount{
				ID:            id,
				AccountStatus: models.AccountStatusError,
				StatusMessage: r.Error.Message,
				LastCheckedAt: &now,
			})
			if err != nil {
				slog.Warn("marking account errored failed", "post", post.ID, "account", id, "err", err)
			}
		}
	}
	if _, err := s.ph.Create(ctx, ph); err != nil {
		slog.Warn("saving posting history failed", "post", post.ID, "account", id, "err", err)
	}
}

func (s *postService) History(ctx context.Context, userID int64, limit int) ([]*models.PostingHistory, error) {
	return s.ph.GetByUserID(ctx, userID, limit)
}

// rounds splits accounts so that each round holds at most one account per
// platform, keeping the selection order.
func rounds(accounts []*models.SocialAccount) [][]*models.SocialAccount {
	var out [][]*models.SocialAccount
	seen := map[string]int{}
	for _, sa := range accounts {
		i := seen[sa.Platform]
		seen[sa.Platform] = i + 1
		if i == len(out) {
			out = append(out, nil)
		}
		out[i] = append(out[i], sa)
	}
	return out
}

func summarize(results []manager.BulkPostResult) string {
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	switch {
	case ok == 0:
		return models.PostStatusFailed
	case ok < len(results):
		return models.PostStatusPartial
	default:
		return models.PostStatusPosted
	}
}

func platformsOf(accounts []*models.SocialAccount) []social.Platform {
	out := make([]social.Platform, 0, len(accounts))
	for _, sa := range accounts {
		out = append(out, social.Platform(sa.Platform))
	}
	return out
}
