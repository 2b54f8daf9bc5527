package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/social"
	yt "google.golang.org/api/youtube/v3"
)

type source struct {
	Body        io.ReadCloser
	ContentType string
}

// open starts streaming the source video. The body is handed to the upload
// as is, so the request is not retried.
func (p *Provider) open(ctx context.Context, rawURL string) *social.APIResponse[source] {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return social.Fail[source](social.CodeInvalidRequest, err.Error())
	}
	resp, err := p.Requester.Client().Do(req)
	if err != nil {
		return social.Fail[source](social.CodeNetwork, "download "+rawURL+": "+err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return social.Fail[source](social.CodeHTTP, fmt.Sprintf("download %s: HTTP %d", rawURL, resp.StatusCode))
	}
	return social.OK(source{Body: resp.Body, ContentType: resp.Header.Get("Content-Type")})
}

func (p *Provider) channel(ctx context.Context, account *social.SocialAccount, parts ...string) (*social.APIResponse[*yt.Channel], error) {
	svc, err := p.service(ctx, account)
	if err != nil {
		return nil, err
	}
	res, err := svc.Channels.List(parts).Mine(true).Context(ctx).Do()
	if err != nil {
		return failure[*yt.Channel](err)
	}
	if len(res.Items) == 0 {
		return social.Fail[*yt.Channel](social.CodeNoAccount, "the account has no youtube channel"), nil
	}
	return social.OK(res.Items[0]), nil
}

func (p *Provider) GetProfile(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.UserProfile], error) {
	if res := social.RequireAccount[social.UserProfile](social.YouTube, account); res != nil {
		return res, nil
	}
	res, err := p.channel(ctx, account, "snippet", "statistics")
	if err != nil || !res.Success {
		return social.Forward[social.UserProfile](res), err
	}
	ch := res.Data
	profile := social.UserProfile{ID: ch.Id, URL: "https://www.youtube.com/channel/" + ch.Id}
	if s := ch.Snippet; s != nil {
		profile.DisplayName = s.Title
		profile.Username = strings.TrimPrefix(s.CustomUrl, "@")
		profile.Bio = s.Description
		if s.Thumbnails != nil && s.Thumbnails.Default != nil {
			profile.AvatarURL = s.Thumbnails.Default.Url
		}
	}
	if st := ch.Statistics; st != nil {
		profile.Followers = int64(st.SubscriberCount)
		profile.PostCount = int64(st.VideoCount)
	}
	return social.OK(profile), nil
}

// ResolveMetadata records the channel id of the account.
func (p *Provider) ResolveMetadata(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.AccountMetadata], error) {
	res, err := p.channel(ctx, account, "id")
	if err != nil || !res.Success {
		return social.Forward[social.AccountMetadata](res), err
	}
	meta := account.Metadata
	meta.ChannelID = res.Data.Id
	return social.OK(meta), nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// ListPosts pages through the channel's uploads playlist.
func (p *Provider) ListPosts(ctx context.Context, account *social.SocialAccount, opts social.ListOptions) (*social.APIResponse[[]social.PublishedPost], error) {
	ch, err := p.channel(ctx, account, "contentDetails")
	if err != nil || !ch.Success {
		return social.Forward[[]social.PublishedPost](ch), err
	}
	if ch.Data.ContentDetails == nil || ch.Data.ContentDetails.RelatedPlaylists == nil {
		return social.OK([]social.PublishedPost{}), nil
	}
	svc, err := p.service(ctx, account)
	if err != nil {
		return nil, err
	}
	call := svc.PlaylistItems.List([]string{"snippet", "contentDetails"}).
		PlaylistId(ch.Data.ContentDetails.RelatedPlaylists.Uploads).
		MaxResults(int64(opts.LimitOr(25, 50))).
		Context(ctx)
	if opts.Cursor != "" {
		call = call.PageToken(opts.Cursor)
	}
	res, err := call.Do()
	if err != nil {
		return failure[[]social.PublishedPost](err)
	}
	posts := make([]social.PublishedPost, 0, len(res.Items))
	for _, item := range res.Items {
		post := social.PublishedPost{Status: social.StatusPublished}
		if cd := item.ContentDetails; cd != nil {
			post.ID = cd.VideoId
			post.CreatedAt = parseTime(cd.VideoPublishedAt)
		}
		if s := item.Snippet; s != nil {
			if post.ID == "" && s.ResourceId != nil {
				post.ID = s.ResourceId.VideoId
			}
			if post.CreatedAt.IsZero() {
				post.CreatedAt = parseTime(s.PublishedAt)
			}
			post.Text = s.Title
		}
		post.URL = watchURL(post.ID)
		posts = append(posts, post)
	}
	return social.OK(posts).WithCursor(res.NextPageToken), nil
}

func (p *Provider) GetPostAnalytics(ctx context.Context, account *social.SocialAccount, postID string) (*social.APIResponse[social.Engagement], error) {
	svc, err := p.service(ctx, account)
	if err != nil {
		return nil, err
	}
	res, err := svc.Videos.List([]string{"statistics"}).Id(postID).Context(ctx).Do()
	if err != nil {
		return failure[social.Engagement](err)
	}
	if len(res.Items) == 0 || res.Items[0].Statistics == nil {
		return social.Fail[social.Engagement](social.CodePlatformError, "video "+postID+" not found"), nil
	}
	st := res.Items[0].Statistics
	return social.OK(social.Engagement{
		Likes:    int64(st.LikeCount),
		Comments: int64(st.CommentCount),
		Saves:    int64(st.FavoriteCount),
		Views:    int64(st.ViewCount),
		Reach:    int64(st.ViewCount),
	}), nil
}

func comment(c *yt.Comment, videoID string) social.Comment {
	out := social.Comment{ID: c.Id, PostID: videoID}
	if s := c.Snippet; s != nil {
		out.ParentID = s.ParentId
		out.AuthorName = s.AuthorDisplayName
		if s.AuthorChannelId != nil {
			out.AuthorID = s.AuthorChannelId.Value
		}
		out.Text = s.TextOriginal
		if out.Text == "" {
			out.Text = s.TextDisplay
		}
		out.LikeCount = s.LikeCount
		out.CreatedAt = parseTime(s.PublishedAt)
	}
	return out
}

// GetComments returns the top level comment threads of a video.
func (p *Provider) GetComments(ctx context.Context, account *social.SocialAccount, postID string, opts social.ListOptions) (*social.APIResponse[[]social.Comment], error) {
	svc, err := p.service(ctx, account)
	if err != nil {
		return nil, err
	}
	call := svc.CommentThreads.List([]string{"snippet"}).
		VideoId(postID).
		MaxResults(int64(opts.LimitOr(20, 100))).
		TextFormat("plainText").
		Context(ctx)
	if opts.Cursor != "" {
		call = call.PageToken(opts.Cursor)
	}
	res, err := call.Do()
	if err != nil {
		return failure[[]social.Comment](err)
	}
	comments := make([]social.Comment, 0, len(res.Items))
	for _, thread := range res.Items {
		if thread.Snippet == nil || thread.Snippet.TopLevelComment == nil {
			continue
		}
		c := comment(thread.Snippet.TopLevelComment, postID)
		c.ReplyCount = thread.Snippet.TotalReplyCount
		comments = append(comments, c)
	}
	return social.OK(comments).WithCursor(res.NextPageToken), nil
}

func (p *Provider) ReplyToComment(ctx context.Context, account *social.SocialAccount, commentID, text string) (*social.APIResponse[social.Comment], error) {
	if strings.TrimSpace(text) == "" {
		return nil, social.NewValidationError(social.YouTube, []string{"reply text is empty"})
	}
	svc, err := p.service(ctx, account)
	if err != nil {
		return nil, err
	}
	res, err := svc.Comments.Insert([]string{"snippet"}, &yt.Comment{
		Snippet: &yt.CommentSnippet{ParentId: commentID, TextOriginal: text},
	}).Context(ctx).Do()
	if err != nil {
		return failure[social.Comment](err)
	}
	out := comment(res, "")
	if out.Text == "" {
		out.Text = text
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = p.now()
	}
	return social.OK(out), nil
}

var analyticsMetrics = []string{"views", "likes", "comments", "shares", "subscribersGained"}

// GetAnalytics queries the channel report for the period. YouTube does not
// expose reach, so views stand in for it.
func (p *Provider) GetAnalytics(ctx context.Context, account *social.SocialAccount, query social.AnalyticsQuery) (*social.APIResponse[social.Analytics], error) {
	query = query.Normalize(p.now())
	profile, err := p.GetProfile(ctx, account)
	if err != nil || !profile.Success {
		return social.Forward[social.Analytics](profile), err
	}

	svc, err := p.analyticsService(ctx, account)
	if err != nil {
		return nil, err
	}
	report, err := svc.Reports.Query().
		Ids("channel==MINE").
		StartDate(query.Start.Format(time.DateOnly)).
		EndDate(query.End.Format(time.DateOnly)).
		Metrics(strings.Join(analyticsMetrics, ",")).
		Context(ctx).
		Do()
	if err != nil {
		return failure[social.Analytics](err)
	}

	totals := map[string]int64{}
	for _, row := range report.Rows {
		for i, cell := range row {
			if i >= len(report.ColumnHeaders) {
				break
			}
			if v, ok := cell.(float64); ok {
				totals[report.ColumnHeaders[i].Name] += int64(v)
			}
		}
	}
	return social.OK(social.Analytics{
		Platform:    social.YouTube,
		AccountID:   account.ID,
		Start:       query.Start,
		End:         query.End,
		Followers:   profile.Data.Followers,
		Engagement:  totals["likes"] + totals["comments"] + totals["shares"],
		Reach:       totals["views"],
		Impressions: totals["views"],
		Views:       totals["views"],
		PostCount:   profile.Data.PostCount,
	}), nil
}
