// Package thumbnail はコースのサムネイル画像取得機能を提供する。
package thumbnail

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// defaultMaxThumbnailSize はサムネイルの最大サイズのデフォルト（2MB）。
const defaultMaxThumbnailSize = 2 * 1024 * 1024

// defaultThumbnailTimeout はサムネイル取得のタイムアウトのデフォルト。
const defaultThumbnailTimeout = 5 * time.Second

// URLValidator はSSRF検証のインターフェース。
// security.URLGuardServiceを抽象化してテスタビリティを向上させる。
type URLValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// FetcherService はサムネイル取得のインターフェース。
type FetcherService interface {
	// FetchThumbnail は指定URLからサムネイル画像を取得する。
	// URLが画像を直接指す場合はそのまま取得し、HTMLページの場合は
	// og:imageメタタグから画像URLを検出して取得する。
	// 取得失敗時はnilデータと空MIMEを返す（エラーは返さない）。
	FetchThumbnail(ctx context.Context, imageURL string) (data []byte, mimeType string, err error)

	// FetchSiteIcon はサイトURLからサイトアイコンを検出して取得する。
	// ページの link rel="icon" 系タグを解析し、見つからない場合は
	// /favicon.ico をフォールバックとして試行する。
	// 取得失敗時はnilデータと空MIMEを返す（エラーは返さない）。
	FetchSiteIcon(ctx context.Context, siteURL string) (data []byte, mimeType string, err error)
}

// OutcomeRecorder はサムネイル取得の成否を記録するインターフェース。
type OutcomeRecorder interface {
	RecordThumbnailFetchSuccess()
	RecordThumbnailFetchFailure()
}

// Config はサムネイル取得の動作設定。
// ゼロ値のフィールドにはデフォルト値が適用される。
type Config struct {
	Timeout time.Duration
	MaxSize int64
}

// Fetcher はサムネイル取得機能の実装。
type Fetcher struct {
	urlGuard URLValidator
	recorder OutcomeRecorder
	timeout  time.Duration
	maxSize  int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// recorderはnilでもよい。
func NewFetcher(urlGuard URLValidator, recorder OutcomeRecorder, cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultThumbnailTimeout
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = defaultMaxThumbnailSize
	}
	return &Fetcher{
		urlGuard: urlGuard,
		recorder: recorder,
		timeout:  cfg.Timeout,
		maxSize:  cfg.MaxSize,
	}
}

// FetchThumbnail は指定URLからサムネイル画像を取得する。
// サムネイルは表示補助であり、取得失敗はコース登録を妨げない。
func (f *Fetcher) FetchThumbnail(ctx context.Context, imageURL string) ([]byte, string, error) {
	if imageURL == "" {
		return nil, "", nil
	}

	data, mimeType, err := f.fetchThumbnail(ctx, imageURL)
	if f.recorder != nil {
		if len(data) > 0 {
			f.recorder.RecordThumbnailFetchSuccess()
		} else {
			f.recorder.RecordThumbnailFetchFailure()
		}
	}
	return data, mimeType, err
}

// FetchSiteIcon はサイトURLからサイトアイコンを検出して取得する。
// imageUrl未指定で登録されたコースのサムネイル補完に使う。
func (f *Fetcher) FetchSiteIcon(ctx context.Context, siteURL string) ([]byte, string, error) {
	if siteURL == "" {
		return nil, "", nil
	}

	data, mimeType, err := f.fetchSiteIcon(ctx, siteURL)
	if f.recorder != nil {
		if len(data) > 0 {
			f.recorder.RecordThumbnailFetchSuccess()
		} else {
			f.recorder.RecordThumbnailFetchFailure()
		}
	}
	return data, mimeType, err
}

func (f *Fetcher) fetchSiteIcon(ctx context.Context, siteURL string) ([]byte, string, error) {
	if f.urlGuard != nil {
		if err := f.urlGuard.ValidateURL(siteURL); err != nil {
			slog.Warn("サイトアイコン取得: SSRFブロック", "url", siteURL, "error", err)
			return nil, "", nil
		}
	}

	// ページのlink rel="icon"系タグからアイコンURLを検出する
	if body, contentType, ok := f.get(ctx, siteURL); ok {
		if strings.Contains(extractMimeType(contentType), "html") {
			if iconURL := parseIconFromHTML(body, siteURL); iconURL != "" {
				data, mimeType, err := f.fetchImage(ctx, iconURL)
				if len(data) > 0 {
					return data, mimeType, err
				}
			}
		}
	}

	// 検出できない場合は /favicon.ico をフォールバックとして試行する
	fallbackURL := defaultFaviconURL(siteURL)
	if fallbackURL == "" {
		return nil, "", nil
	}
	return f.fetchImage(ctx, fallbackURL)
}

func (f *Fetcher) fetchThumbnail(ctx context.Context, imageURL string) ([]byte, string, error) {
	// SSRF検証
	if f.urlGuard != nil {
		if err := f.urlGuard.ValidateURL(imageURL); err != nil {
			slog.Warn("サムネイル取得: SSRFブロック", "url", imageURL, "error", err)
			return nil, "", nil
		}
	}

	body, contentType, ok := f.get(ctx, imageURL)
	if !ok {
		return nil, "", nil
	}

	mimeType := extractMimeType(contentType)

	// 画像が直接返された場合はそのまま保存する
	if isImageMime(mimeType) {
		return body, mimeType, nil
	}

	// HTMLページの場合はog:imageから画像URLを検出して再取得する
	if strings.Contains(mimeType, "html") {
		ogImageURL := parseOGImageFromHTML(body, imageURL)
		if ogImageURL == "" {
			slog.Warn("サムネイル取得: og:image未検出", "url", imageURL)
			return nil, "", nil
		}
		return f.fetchImage(ctx, ogImageURL)
	}

	slog.Warn("サムネイル取得: 画像以外のContent-Type", "url", imageURL, "contentType", contentType)
	return nil, "", nil
}

// fetchImage は画像URLから画像データを取得する。
func (f *Fetcher) fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	if f.urlGuard != nil {
		if err := f.urlGuard.ValidateURL(imageURL); err != nil {
			slog.Warn("サムネイル取得: og:imageのSSRFブロック", "url", imageURL, "error", err)
			return nil, "", nil
		}
	}

	body, contentType, ok := f.get(ctx, imageURL)
	if !ok {
		return nil, "", nil
	}

	mimeType := extractMimeType(contentType)
	if !isImageMime(mimeType) {
		slog.Warn("サムネイル取得: og:imageが画像ではない", "url", imageURL, "contentType", contentType)
		return nil, "", nil
	}

	return body, mimeType, nil
}

// get はURLにGETリクエストを送信し、ボディとContent-Typeを返す。
// 失敗時はok=falseを返す。
func (f *Fetcher) get(ctx context.Context, rawURL string) (body []byte, contentType string, ok bool) {
	client := f.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		slog.Warn("サムネイル取得: リクエスト作成失敗", "url", rawURL, "error", err)
		return nil, "", false
	}
	req.Header.Set("User-Agent", "Manabu/1.0 Learning Dashboard")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("サムネイル取得: HTTPリクエスト失敗", "url", rawURL, "error", err)
		return nil, "", false
	}
	defer resp.Body.Close()

	// 2xx以外は取得失敗として扱う
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("サムネイル取得: HTTPステータス異常", "url", rawURL, "status", resp.StatusCode)
		return nil, "", false
	}

	// レスポンスボディを読み込み（上限はConfig.MaxSize）
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		slog.Warn("サムネイル取得: レスポンス読み取り失敗", "url", rawURL, "error", err)
		return nil, "", false
	}

	// サイズ超過チェック
	if int64(len(data)) > f.maxSize {
		slog.Warn("サムネイル取得: サイズ超過", "url", rawURL, "size", len(data))
		return nil, "", false
	}

	return data, resp.Header.Get("Content-Type"), true
}

// getHTTPClient はHTTPクライアントを取得する。
func (f *Fetcher) getHTTPClient() *http.Client {
	if f.urlGuard != nil {
		return f.urlGuard.NewSafeClient(f.timeout, f.maxSize)
	}
	return &http.Client{Timeout: f.timeout}
}

// parseOGImageFromHTML はHTMLのheadタグからog:imageメタタグの画像URLを検出する。
// link rel="image_src" もフォールバックとして解釈する。
// 相対URLはbaseURLを基準に絶対URLに解決される。
func parseOGImageFromHTML(htmlBody []byte, baseURL string) string {
	baseU, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	var ogImage, linkImage string

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return resolveFirst(baseU, ogImage, linkImage)

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return resolveFirst(baseU, ogImage, linkImage)
			}

			if !hasAttr || (tagName != "meta" && tagName != "link") {
				continue
			}

			var property, name, content, rel, href string
			for {
				key, val, more := tokenizer.TagAttr()
				k := strings.ToLower(string(key))
				v := string(val)
				switch k {
				case "property":
					property = strings.ToLower(v)
				case "name":
					name = strings.ToLower(v)
				case "content":
					content = v
				case "rel":
					rel = strings.ToLower(v)
				case "href":
					href = v
				}
				if !more {
					break
				}
			}

			if tagName == "meta" && content != "" {
				if property == "og:image" || name == "og:image" {
					if ogImage == "" {
						ogImage = content
					}
				}
			}
			if tagName == "link" && rel == "image_src" && href != "" {
				if linkImage == "" {
					linkImage = href
				}
			}
		}
	}
}

// parseIconFromHTML はHTMLのheadタグからlink rel="icon"系タグのアイコンURLを検出する。
// rel属性に"icon"を含むlinkタグ（icon, shortcut icon, apple-touch-icon）を対象とする。
// 相対URLはbaseURLを基準に絶対URLに解決される。
func parseIconFromHTML(htmlBody []byte, baseURL string) string {
	baseU, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	var iconHref string

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return resolveFirst(baseU, iconHref)

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "body" {
				return resolveFirst(baseU, iconHref)
			}

			if !hasAttr || tagName != "link" {
				continue
			}

			var rel, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}

			if strings.Contains(rel, "icon") && href != "" && iconHref == "" {
				iconHref = href
			}
		}
	}
}

// defaultFaviconURL はサイトURLからデフォルトのfavicon URLを推測する。
func defaultFaviconURL(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil || u.Host == "" {
		return ""
	}

	u.Path = "/favicon.ico"
	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

// resolveFirst はog:image優先で最初に見つかった画像URLを絶対URLに解決する。
func resolveFirst(base *url.URL, candidates ...string) string {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		ref, err := url.Parse(c)
		if err != nil {
			continue
		}
		return base.ResolveReference(ref).String()
	}
	return ""
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		parts := strings.SplitN(contentType, ";", 2)
		return strings.TrimSpace(strings.ToLower(parts[0]))
	}
	return strings.ToLower(mediaType)
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// compile-time interface check
var _ FetcherService = (*Fetcher)(nil)
