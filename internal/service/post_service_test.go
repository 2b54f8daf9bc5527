package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/social"
	"github.com/maheshrc27/postflow/internal/social/facebook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postTest struct {
	svc      *postService
	repo     *memAccounts
	posts    *memPosts
	history  *memHistory
	tw, fb   *fakeProvider
	li       *fakeProvider
	now      time.Time
	accounts map[string]int64
}

func newPostTest(t *testing.T) *postTest {
	pt := &postTest{
		repo:     newMemAccounts(),
		posts:    &memPosts{},
		history:  &memHistory{},
		tw:       newFake(social.Twitter, social.Limits{MaxTextLength: 280}),
		fb:       newFake(social.Facebook, social.Limits{NativeSchedule: true}),
		li:       newFake(social.LinkedIn, social.Limits{MaxTextLength: 3000}),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		accounts: map[string]int64{},
	}
	accounts := NewAccountService(NewRegistry(pt.tw, pt.fb, pt.li), pt.repo, testSecret, testKey)
	pt.svc = NewPostService(accounts, pt.posts, pt.history, pt.repo).(*postService)
	pt.svc.now = func() time.Time { return pt.now }

	for _, a := range []struct {
		name     string
		platform social.Platform
	}{{"tw1", social.Twitter}, {"tw2", social.Twitter}, {"fb", social.Facebook}, {"li", social.LinkedIn}} {
		stored, err := fromSocial(social.SocialAccount{
			UserID: 7, Platform: a.platform, PlatformID: a.name, AccessToken: "tok-" + a.name, IsConnected: true,
		}, []byte(testKey))
		require.NoError(t, err)
		id, err := pt.repo.Upsert(context.Background(), stored)
		require.NoError(t, err)
		pt.accounts[a.name] = id
	}
	return pt
}

func (pt *postTest) ids(names ...string) []int64 {
	out := make([]int64, len(names))
	for i, n := range names {
		out[i] = pt.accounts[n]
	}
	return out
}

func TestCreatePublishesToEveryAccount(t *testing.T) {
	pt := newPostTest(t)

	res, err := pt.svc.Create(context.Background(), 7, &CreatePostRequest{
		AccountIDs: pt.ids("tw1", "fb", "tw2"),
		Options:    social.PostOptions{Text: "launch day"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPosted, res.Status)
	require.Len(t, res.Results, 3)

	assert.ElementsMatch(t, []string{accountKey(pt.accounts["tw1"]), accountKey(pt.accounts["tw2"])}, pt.tw.posted)
	assert.Equal(t, []string{accountKey(pt.accounts["fb"])}, pt.fb.posted)

	require.Len(t, pt.history.rows, 3)
	for _, row := range pt.history.rows {
		assert.Equal(t, res.PostID, row.PostID)
		assert.Equal(t, string(social.StatusPublished), row.Status)
		assert.NotEmpty(t, row.PlatformPostID)
	}
	post, err := pt.posts.GetByID(context.Background(), res.PostID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPosted, post.Status)
}

func TestCreatePartialFailureDisconnectsAccount(t *testing.T) {
	pt := newPostTest(t)
	pt.li.post = func(acc *social.SocialAccount, opts social.PostOptions) (*social.APIResponse[social.PublishedPost], error) {
		return nil, social.NewAuthenticationError(social.LinkedIn, "token revoked")
	}

	res, err := pt.svc.Create(context.Background(), 7, &CreatePostRequest{
		AccountIDs: pt.ids("tw1", "li"),
		Options:    social.PostOptions{Text: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPartial, res.Status)

	var failed *models.PostingHistory
	for _, row := range pt.history.rows {
		if row.Platform == "linkedin" {
			failed = row
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, social.CodeAuthFailed, failed.ErrorCode)
	assert.Equal(t, string(social.StatusFailed), failed.Status)

	row, err := pt.repo.GetByID(context.Background(), pt.accounts["li"])
	require.NoError(t, err)
	assert.False(t, row.IsConnected)
	assert.Equal(t, models.AccountStatusError, row.AccountStatus)
}

func TestCreateRejectsInvalidPost(t *testing.T) {
	pt := newPostTest(t)

	_, err := pt.svc.Create(context.Background(), 7, &CreatePostRequest{
		AccountIDs: pt.ids("tw1", "li"),
		Options:    social.PostOptions{Text: strings.Repeat("a", 300)},
	})
	var invalid *InvalidPostError
	require.True(t, errors.As(err, &invalid))
	assert.False(t, invalid.Results[social.Twitter].Valid)
	assert.True(t, invalid.Results[social.LinkedIn].Valid)
	assert.Equal(t, "post is invalid for twitter", err.Error())
	assert.Empty(t, pt.posts.rows)
	assert.Empty(t, pt.tw.posted)

	_, err = pt.svc.Create(context.Background(), 7, &CreatePostRequest{AccountIDs: []int64{999}, Options: social.PostOptions{Text: "x"}})
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = pt.svc.Create(context.Background(), 7, &CreatePostRequest{Options: social.PostOptions{Text: "x"}})
	assert.ErrorIs(t, err, ErrNoAccounts)
}

func TestCreateDefersToScheduler(t *testing.T) {
	pt := newPostTest(t)
	at := pt.now.Add(time.Hour)
	req := &CreatePostRequest{
		AccountIDs: pt.ids("tw1", "fb"),
		Options:    social.PostOptions{Text: "later", ScheduleTime: &at},
	}

	_, err := pt.svc.Create(context.Background(), 7, req)
	assert.ErrorIs(t, err, ErrSchedulerUnavailable)

	sched := &fakeScheduler{}
	pt.svc.SetScheduler(sched)
	res, err := pt.svc.Create(context.Background(), 7, req)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, res.Status)
	assert.Equal(t, res.PostID, sched.postID)
	assert.True(t, at.Equal(sched.at))
	assert.Empty(t, pt.tw.posted)

	pt.now = at.Add(time.Second)
	published, err := pt.svc.PublishNow(context.Background(), res.PostID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPosted, published.Status)
	assert.Nil(t, published.ScheduledTime)
	for _, r := range published.Results {
		assert.Equal(t, social.StatusPublished, r.Post.Status)
	}

	again, err := pt.svc.PublishNow(context.Background(), res.PostID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPosted, again.Status)
	assert.Len(t, pt.tw.posted, 1)
}

func TestCreateUsesNativeSchedule(t *testing.T) {
	pt := newPostTest(t)
	sched := &fakeScheduler{}
	pt.svc.SetScheduler(sched)
	at := pt.now.Add(2 * time.Hour)

	res, err := pt.svc.Create(context.Background(), 7, &CreatePostRequest{
		AccountIDs: pt.ids("fb"),
		Options:    social.PostOptions{Text: "page post", ScheduleTime: &at},
	})
	require.NoError(t, err)
	assert.Empty(t, sched.postID)
	require.Len(t, res.Results, 1)
	assert.Equal(t, social.StatusScheduled, res.Results[0].Post.Status)
	assert.Equal(t, string(social.StatusScheduled), pt.history.rows[0].Status)
}

func TestCreateDefersPostsFacebookCannotSchedule(t *testing.T) {
	repo := newMemAccounts()
	tw := newFake(social.Twitter, social.Limits{MaxTextLength: 280})
	accounts := NewAccountService(NewRegistry(tw, facebook.New(facebook.Config{})), repo, testSecret, testKey)
	posts := &memPosts{}
	svc := NewPostService(accounts, posts, &memHistory{}, repo).(*postService)
	sched := &fakeScheduler{}
	svc.SetScheduler(sched)

	ids := map[social.Platform]int64{}
	for _, platform := range []social.Platform{social.Twitter, social.Facebook} {
		stored, err := fromSocial(social.SocialAccount{
			UserID: 7, Platform: platform, PlatformID: string(platform), AccessToken: "tok", IsConnected: true,
		}, []byte(testKey))
		require.NoError(t, err)
		ids[platform], err = repo.Upsert(context.Background(), stored)
		require.NoError(t, err)
	}

	tomorrow := time.Now().Add(48 * time.Hour)
	res, err := svc.Create(context.Background(), 7, &CreatePostRequest{
		AccountIDs: []int64{ids[social.Twitter], ids[social.Facebook]},
		Options:    social.PostOptions{Text: "feed and tweet", ScheduleTime: &tomorrow},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, res.Status)
	assert.Equal(t, res.PostID, sched.postID)
	assert.True(t, tomorrow.Equal(sched.at))
	assert.Empty(t, tw.posted)

	farOut := time.Now().Add(45 * 24 * time.Hour)
	res, err = svc.Create(context.Background(), 7, &CreatePostRequest{
		AccountIDs: []int64{ids[social.Facebook]},
		Options: social.PostOptions{
			Text:         "page post",
			ScheduleTime: &farOut,
			Settings:     social.PlatformSettings{Facebook: &social.FacebookSettings{PageID: "page1"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, res.Status)
	assert.Equal(t, res.PostID, sched.postID)
	assert.True(t, farOut.Equal(sched.at))
	assert.Len(t, posts.rows, 2)

	validation, err := svc.Validate(context.Background(), 7, &CreatePostRequest{
		AccountIDs: []int64{ids[social.Facebook]},
		Options:    social.PostOptions{Text: "feed", ScheduleTime: &tomorrow},
	})
	require.NoError(t, err)
	assert.True(t, validation[social.Facebook].Valid)
}

func TestCreateMarksPostFailedWhenSchedulingFails(t *testing.T) {
	pt := newPostTest(t)
	pt.svc.SetScheduler(&fakeScheduler{err: errors.New("redis down")})
	at := pt.now.Add(time.Hour)

	_, err := pt.svc.Create(context.Background(), 7, &CreatePostRequest{
		AccountIDs: pt.ids("tw1"),
		Options:    social.PostOptions{Text: "later", ScheduleTime: &at},
	})
	require.ErrorContains(t, err, "redis down")
	require.Len(t, pt.posts.rows, 1)
	for _, post := range pt.posts.rows {
		assert.Equal(t, models.PostStatusFailed, post.Status)
	}
	assert.Empty(t, pt.tw.posted)
}

func TestRounds(t *testing.T) {
	accounts := []*models.SocialAccount{
		{ID: 1, Platform: "twitter"},
		{ID: 2, Platform: "facebook"},
		{ID: 3, Platform: "twitter"},
		{ID: 4, Platform: "twitter"},
	}
	got := rounds(accounts)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{1, 2}, []int64{got[0][0].ID, got[0][1].ID})
	assert.Equal(t, int64(3), got[1][0].ID)
	assert.Equal(t, int64(4), got[2][0].ID)
}
