package twitter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/maheshrc27/postflow/internal/social"
)

const (
	chunkSize        = 4 << 20
	statusAttempts   = 60
	defaultPollEvery = 2 * time.Second
)

type uploadResult struct {
	Data struct {
		ID             string `json:"id"`
		MediaKey       string `json:"media_key"`
		ProcessingInfo *struct {
			State          string `json:"state"`
			CheckAfterSecs int    `json:"check_after_secs"`
			Error          *struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"processing_info"`
	} `json:"data"`
}

func category(t social.MediaType) string {
	switch t {
	case social.MediaVideo:
		return "tweet_video"
	case social.MediaGIF:
		return "tweet_gif"
	}
	return "tweet_image"
}

func maxSize(t social.MediaType) int64 {
	switch t {
	case social.MediaVideo:
		return maxVideoSize
	case social.MediaGIF:
		return maxGIFSize
	}
	return maxImageSize
}

// mediaIDs resolves platform media ids for items, uploading the ones that
// only carry a URL.
func (p *Provider) mediaIDs(ctx context.Context, account *social.SocialAccount, items []social.MediaItem) ([]string, *social.APIResponse[social.MediaItem], error) {
	var ids []string
	for _, m := range items {
		if m.ID != "" {
			ids = append(ids, m.ID)
			continue
		}
		dl := social.Download(ctx, p.Requester, m.URL, maxSize(m.Type))
		if !dl.Success {
			return nil, social.Forward[social.MediaItem](dl), nil
		}
		upload := dl.Data
		upload.Type = m.Type
		upload.AltText = m.AltText
		if m.MimeType != "" {
			upload.ContentType = m.MimeType
		}
		res, err := p.UploadMedia(ctx, account, upload)
		if err != nil {
			return nil, nil, err
		}
		if !res.Success {
			return nil, res, nil
		}
		ids = append(ids, res.Data.ID)
	}
	return ids, nil, nil
}

// UploadMedia sends images and gifs in one request and videos through the
// chunked INIT, APPEND, FINALIZE, STATUS sequence.
func (p *Provider) UploadMedia(ctx context.Context, account *social.SocialAccount, upload social.MediaUpload) (*social.APIResponse[social.MediaItem], error) {
	if len(upload.Data) == 0 {
		return social.Fail[social.MediaItem](social.CodeValidationFailed, "media upload is empty"), nil
	}

	var res *social.APIResponse[uploadResult]
	var err error
	if upload.Type == social.MediaVideo {
		res, err = p.uploadChunked(ctx, account, upload)
	} else {
		res, err = p.uploadSimple(ctx, account, upload)
	}
	if err != nil || !res.Success {
		return social.Forward[social.MediaItem](res), err
	}
	id := res.Data.Data.ID

	if upload.AltText != "" {
		meta, err := social.MakeRequest[struct{}](ctx, p.Requester, social.Request{
			Method: http.MethodPost,
			URL:    p.cfg.APIURL + "/2/media/metadata",
			Token:  account.AccessToken,
			JSON: map[string]any{
				"id":       id,
				"metadata": map[string]any{"alt_text": map[string]string{"text": social.Truncate(upload.AltText, 1000)}},
			},
		})
		if err != nil || !meta.Success {
			return social.Forward[social.MediaItem](meta), err
		}
	}

	return social.OK(social.MediaItem{
		Type:     upload.Type,
		ID:       id,
		Size:     int64(len(upload.Data)),
		MimeType: upload.ContentType,
		AltText:  upload.AltText,
	}).WithRateLimit(res.RateLimit), nil
}

func (p *Provider) uploadSimple(ctx context.Context, account *social.SocialAccount, upload social.MediaUpload) (*social.APIResponse[uploadResult], error) {
	body, contentType, err := social.MultipartBody(
		map[string]string{"media_category": category(upload.Type)},
		&social.FilePart{Field: "media", Filename: upload.Filename, ContentType: upload.ContentType, Data: upload.Data},
	)
	if err != nil {
		return social.Fail[uploadResult](social.CodeInvalidRequest, err.Error()), nil
	}
	return social.MakeRequest[uploadResult](ctx, p.Requester, social.Request{
		Method:      http.MethodPost,
		URL:         p.cfg.UploadURL,
		Token:       account.AccessToken,
		Body:        body,
		ContentType: contentType,
	})
}

func (p *Provider) uploadChunked(ctx context.Context, account *social.SocialAccount, upload social.MediaUpload) (*social.APIResponse[uploadResult], error) {
	mediaType := upload.ContentType
	if mediaType == "" {
		mediaType = "video/mp4"
	}
	started, err := social.MakeRequest[uploadResult](ctx, p.Requester, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.UploadURL,
		Token:  account.AccessToken,
		Form: url.Values{
			"command":        {"INIT"},
			"total_bytes":    {strconv.Itoa(len(upload.Data))},
			"media_type":     {mediaType},
			"media_category": {category(upload.Type)},
		},
	})
	if err != nil || !started.Success {
		return started, err
	}
	mediaID := started.Data.Data.ID

	for segment, offset := 0, 0; offset < len(upload.Data); segment, offset = segment+1, offset+chunkSize {
		end := min(offset+chunkSize, len(upload.Data))
		body, contentType, err := social.MultipartBody(
			map[string]string{"command": "APPEND", "media_id": mediaID, "segment_index": strconv.Itoa(segment)},
			&social.FilePart{Field: "media", Filename: upload.Filename, ContentType: "application/octet-stream", Data: upload.Data[offset:end]},
		)
		if err != nil {
			return social.Fail[uploadResult](social.CodeInvalidRequest, err.Error()), nil
		}
		res, err := social.MakeRequest[struct{}](ctx, p.Requester, social.Request{
			Method:      http.MethodPost,
			URL:         p.cfg.UploadURL,
			Token:       account.AccessToken,
			Body:        body,
			ContentType: contentType,
		})
		if err != nil || !res.Success {
			return social.Forward[uploadResult](res), err
		}
	}

	final, err := social.MakeRequest[uploadResult](ctx, p.Requester, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.UploadURL,
		Token:  account.AccessToken,
		Form:   url.Values{"command": {"FINALIZE"}, "media_id": {mediaID}},
	})
	if err != nil || !final.Success {
		return final, err
	}
	if final.Data.Data.ID == "" {
		final.Data.Data.ID = mediaID
	}
	if final.Data.Data.ProcessingInfo == nil {
		return final, nil
	}
	return p.waitProcessed(ctx, account, mediaID, final)
}

func (p *Provider) waitProcessed(ctx context.Context, account *social.SocialAccount, mediaID string, last *social.APIResponse[uploadResult]) (*social.APIResponse[uploadResult], error) {
	var failed *social.APIResponse[uploadResult]
	done, err := social.Poll(ctx, p.pollEvery(), statusAttempts, func(attempt int) (bool, error) {
		status, err := social.MakeRequest[uploadResult](ctx, p.Requester, social.Request{
			URL:   p.cfg.UploadURL,
			Token: account.AccessToken,
			Query: url.Values{"command": {"STATUS"}, "media_id": {mediaID}},
		})
		if err != nil {
			return false, err
		}
		if !status.Success {
			failed = status
			return true, nil
		}
		info := status.Data.Data.ProcessingInfo
		if info == nil || info.State == "succeeded" {
			last = status
			return true, nil
		}
		if info.State == "failed" {
			msg := "media processing failed"
			if info.Error != nil && info.Error.Message != "" {
				msg = info.Error.Message
			}
			failed = social.Fail[uploadResult](social.CodeProcessingFailed, msg)
			return true, nil
		}
		return false, nil
	})
	switch {
	case err != nil && social.IsFatal(err):
		return nil, err
	case err != nil:
		return social.Fail[uploadResult](social.CodeNetwork, err.Error()), nil
	case failed != nil:
		return failed, nil
	case !done:
		return social.Fail[uploadResult](social.CodeProcessingTimeout, fmt.Sprintf("media %s still processing", mediaID)), nil
	}
	if last.Data.Data.ID == "" {
		last.Data.Data.ID = mediaID
	}
	return last, nil
}

func (p *Provider) pollEvery() time.Duration {
	if p.cfg.PollInterval > 0 {
		return p.cfg.PollInterval
	}
	return defaultPollEvery
}
