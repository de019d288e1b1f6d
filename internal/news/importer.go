package news

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/campushub/internal/store"
)

// urgentCategories はフィードのカテゴリから緊急扱いと判定する語。
var urgentCategories = map[string]bool{
	"urgent":    true,
	"emergency": true,
	"important": true,
}

// Importer は外部フィードからお知らせを取り込む。
// 条件付きGET（ETag/Last-Modified）、SSRF検証、gofeedによるパース、
// 本文サニタイズ、ストアへのUPSERTを実行する。
type Importer struct {
	store       store.Store
	sanitizer   Sanitizer
	ssrfGuard   SSRFValidator
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	topic       string

	// 条件付きGET用の前回レスポンス情報。プロセス内でのみ保持する。
	etag         string
	lastModified string
}

// NewImporter はImporterを生成する。
// topicは取り込んだお知らせに付与するトピック名。
func NewImporter(
	st store.Store,
	sanitizer Sanitizer,
	ssrfGuard SSRFValidator,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	topic string,
) *Importer {
	return &Importer{
		store:       st,
		sanitizer:   sanitizer,
		ssrfGuard:   ssrfGuard,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		topic:       topic,
	}
}

// Import はフィードを取得してお知らせコレクションにUPSERTする。
// 取り込んだ記事数を返す。304（未変更）の場合は0件で正常終了する。
func (im *Importer) Import(ctx context.Context, feedURL string) (int, error) {
	start := time.Now()

	// 1. SSRF検証
	if err := im.ssrfGuard.ValidateURL(feedURL); err != nil {
		im.logger.Error("SSRF検証に失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	// 2. 条件付きGETでフィードを取得
	client := im.ssrfGuard.NewSafeClient(im.timeout, im.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return 0, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "CampusHub/1.0 News Importer")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	if im.etag != "" {
		req.Header.Set("If-None-Match", im.etag)
	}
	if im.lastModified != "" {
		req.Header.Set("If-Modified-Since", im.lastModified)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		im.logger.Info("フィードは未変更です（304）",
			slog.String("feed_url", feedURL),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("予期しないHTTPステータス: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, im.maxBodySize))
	if err != nil {
		return 0, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		im.etag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		im.lastModified = lastMod
	}

	// 3. gofeedでパース
	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return 0, fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	// 4. 記事をお知らせドキュメントに変換してUPSERT
	imported := 0
	for _, item := range parsed.Items {
		if item == nil || item.Title == "" {
			continue
		}
		doc := im.convert(item)
		if err := im.store.Set(ctx, Collection, doc); err != nil {
			im.logger.Error("お知らせの保存に失敗しました",
				slog.String("news_id", doc.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		imported++
	}

	im.logger.Info("フィード取り込みが完了しました",
		slog.String("feed_url", feedURL),
		slog.Int("items_imported", imported),
		slog.Int("items_total", len(parsed.Items)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return imported, nil
}

// convert はフィード記事をお知らせドキュメントに変換する。
// IDはGUID（なければリンク、それもなければタイトル）から決定的に導出し、
// 再取り込み時に同じ記事が同じドキュメントへUPSERTされるようにする。
func (im *Importer) convert(item *gofeed.Item) store.Document {
	key := item.GUID
	if key == "" {
		key = item.Link
	}
	if key == "" {
		key = item.Title
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()

	body := item.Content
	if body == "" {
		body = item.Description
	}

	createdAt := time.Now().UTC()
	if item.PublishedParsed != nil {
		createdAt = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		createdAt = item.UpdatedParsed.UTC()
	}

	data := map[string]any{
		"title":     item.Title,
		"body":      im.sanitizer.Sanitize(body),
		"topic":     im.topic,
		"isUrgent":  isUrgent(item.Categories),
		"createdAt": createdAt.Format(time.RFC3339),
	}
	if item.Author != nil && item.Author.Name != "" {
		data["authorLabel"] = item.Author.Name
	}
	return store.Document{ID: id, Data: data}
}

// isUrgent はカテゴリに緊急を示す語が含まれるかを返す。
func isUrgent(categories []string) bool {
	for _, c := range categories {
		if urgentCategories[strings.ToLower(strings.TrimSpace(c))] {
			return true
		}
	}
	return false
}
