package news

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/campushub/internal/model"
	"golang.org/x/net/html"
)

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// FeedDetector は学校サイトURLからお知らせフィードを自動検出する。
// 入力URLがフィードそのものであればそのまま、HTMLであれば
// headタグのalternateリンクからフィードURLを探す。
type FeedDetector struct {
	ssrfGuard SSRFValidator
}

// NewFeedDetector はFeedDetectorを生成する。
func NewFeedDetector(ssrfGuard SSRFValidator) *FeedDetector {
	return &FeedDetector{ssrfGuard: ssrfGuard}
}

// feedLinkTypes はalternateリンクとして認識するContent-Type。
var feedLinkTypes = map[string]bool{
	"application/rss+xml":  true,
	"application/atom+xml": true,
}

// maxDetectBodySize は検出時に読み込むレスポンスの上限サイズ。
const maxDetectBodySize = 5 * 1024 * 1024

// DetectFeedURL は入力URLからフィードURLを決定する。
// 1. SSRF検証
// 2. HTTP取得
// 3. レスポンスがフィードならそのURLを返す
// 4. HTMLならheadのalternateリンクを解析し、同一ホストの候補を優先して返す
func (d *FeedDetector) DetectFeedURL(ctx context.Context, inputURL string) (string, error) {
	if inputURL == "" {
		return "", model.NewInvalidURLError("empty URL")
	}

	if d.ssrfGuard != nil {
		if err := d.ssrfGuard.ValidateURL(inputURL); err != nil {
			return "", model.NewBlockedURLError()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return "", model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "CampusHub/1.0 News Importer")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	resp, err := d.httpClient().Do(req)
	if err != nil {
		return "", model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDetectBodySize))
	if err != nil {
		return "", model.NewFetchFailedError(fmt.Sprintf("read response: %v", err))
	}

	contentType := resp.Header.Get("Content-Type")
	if isFeedResponse(contentType, body) {
		return inputURL, nil
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(strings.ToLower(mediaType), "html") {
		return "", model.NewNoFeedFoundError(inputURL)
	}

	candidates := feedLinks(body, inputURL)
	if len(candidates) == 0 {
		return "", model.NewNoFeedFoundError(inputURL)
	}

	return pickCandidate(candidates, inputURL), nil
}

// httpClient はHTTP取得に使うクライアントを返す。
// SSRFGuardが設定されている場合はリダイレクト先も検証する
// 安全クライアントを使う。
func (d *FeedDetector) httpClient() *http.Client {
	if d.ssrfGuard != nil {
		return d.ssrfGuard.NewSafeClient(10*time.Second, maxDetectBodySize)
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// isFeedResponse はContent-Typeとボディ先頭からRSS/Atomフィードかを判定する。
func isFeedResponse(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	if feedLinkTypes[mediaType] {
		return true
	}
	if mediaType != "text/xml" && mediaType != "application/xml" {
		return false
	}

	// 汎用XMLはルート要素で判定する。先頭4KBで十分。
	n := len(body)
	if n > 4096 {
		n = 4096
	}
	prefix := strings.ToLower(string(body[:n]))
	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// feedLinks はHTMLのheadからrel="alternate"のフィードリンクを抽出する。
// 相対URLはbaseURLを基準に解決する。
func feedLinks(htmlBody []byte, baseURL string) []string {
	baseU, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []string
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return links

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)
			if tagName == "body" {
				return links
			}
			if tagName != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}

			if rel != "alternate" || href == "" || !feedLinkTypes[linkType] {
				continue
			}
			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			links = append(links, baseU.ResolveReference(ref).String())
		}
	}
}

// pickCandidate はフィード候補から採用するURLを選ぶ。
// 入力URLと同一ホストの候補を優先し、なければ先頭を採用する。
func pickCandidate(candidates []string, inputURL string) string {
	inputHost := hostOf(inputURL)
	for _, c := range candidates {
		if hostOf(c) == inputHost {
			return c
		}
	}
	return candidates[0]
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
