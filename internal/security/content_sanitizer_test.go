package security

import (
	"strings"
	"testing"
)

// assertSanitized はサニタイズ結果に対する包含・非包含の検証をまとめて行う。
func assertSanitized(t *testing.T, input, got string, wantContains, wantAbsent []string) {
	t.Helper()
	for _, want := range wantContains {
		if !strings.Contains(got, want) {
			t.Errorf("Sanitize(%q) = %q, expected to contain %q", input, got, want)
		}
	}
	for _, absent := range wantAbsent {
		if strings.Contains(got, absent) {
			t.Errorf("Sanitize(%q) = %q, should NOT contain %q", input, got, absent)
		}
	}
}

// TestSanitize_TagPolicy は許可タグの通過と禁止タグの除去を検証する。
func TestSanitize_TagPolicy(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
		wantAbsent   []string
	}{
		{
			name:         "pタグが許可される",
			input:        "<p>休講のお知らせ</p>",
			wantContains: []string{"<p>休講のお知らせ</p>"},
		},
		{
			name:         "brタグが許可される",
			input:        "1限<br>2限",
			wantContains: []string{"<br>", "1限", "2限"},
		},
		{
			name:         "brタグ（自己閉じ）が許可される",
			input:        "1限<br/>2限",
			wantContains: []string{"1限", "2限"},
		},
		{
			name:         "aタグが許可される",
			input:        `<a href="https://example.ac.jp/notice">詳細</a>`,
			wantContains: []string{"<a", "href", "https://example.ac.jp/notice", "詳細", "</a>"},
		},
		{
			name:         "ulタグとliタグが許可される",
			input:        "<ul><li>持ち物</li><li>集合時間</li></ul>",
			wantContains: []string{"<ul>", "<li>", "持ち物", "集合時間", "</li>", "</ul>"},
		},
		{
			name:         "olタグとliタグが許可される",
			input:        "<ol><li>手順1</li><li>手順2</li></ol>",
			wantContains: []string{"<ol>", "<li>", "手順1", "手順2", "</li>", "</ol>"},
		},
		{
			name:         "blockquoteタグが許可される",
			input:        "<blockquote>学長メッセージ</blockquote>",
			wantContains: []string{"<blockquote>学長メッセージ</blockquote>"},
		},
		{
			name:         "preタグとcodeタグが許可される",
			input:        "<pre><code>func main() {}</code></pre>",
			wantContains: []string{"<pre>", "<code>", "func main() {}", "</code>", "</pre>"},
		},
		{
			name:         "strongタグとemタグが許可される",
			input:        "<strong>重要</strong><em>締切注意</em>",
			wantContains: []string{"<strong>重要</strong>", "<em>締切注意</em>"},
		},
		{
			name:         "imgタグがhttps srcで許可される",
			input:        `<img src="https://example.ac.jp/map.png" alt="キャンパスマップ">`,
			wantContains: []string{"<img", "src", "https://example.ac.jp/map.png"},
		},
		{
			name:         "scriptタグが除去される",
			input:        `<p>お知らせ</p><script>alert('xss')</script><p>以上</p>`,
			wantAbsent:   []string{"<script", "</script>", "alert"},
			wantContains: []string{"お知らせ", "以上"},
		},
		{
			name:         "iframeタグが除去される",
			input:        `<p>お知らせ</p><iframe src="https://evil.com"></iframe>`,
			wantAbsent:   []string{"<iframe", "</iframe>", "evil.com"},
			wantContains: []string{"お知らせ"},
		},
		{
			name:         "styleタグが除去される",
			input:        `<p>お知らせ</p><style>body{display:none}</style>`,
			wantAbsent:   []string{"<style", "</style>", "display:none"},
			wantContains: []string{"お知らせ"},
		},
		{
			name:         "divタグが除去されて中身は残る",
			input:        `<div><p>お知らせ</p></div>`,
			wantAbsent:   []string{"<div", "</div>"},
			wantContains: []string{"<p>お知らせ</p>"},
		},
		{
			name:         "spanタグが除去されて中身は残る",
			input:        `<span>お知らせ</span>`,
			wantAbsent:   []string{"<span", "</span>"},
			wantContains: []string{"お知らせ"},
		},
		{
			name:       "formタグとinputタグが除去される",
			input:      `<form action="https://evil.com"><input type="text"></form>`,
			wantAbsent: []string{"<form", "</form>", "<input"},
		},
		{
			name:       "objectタグが除去される",
			input:      `<object data="https://evil.com/flash.swf"></object>`,
			wantAbsent: []string{"<object", "</object>", "flash.swf"},
		},
		{
			name:       "embedタグが除去される",
			input:      `<embed src="https://evil.com/plugin">`,
			wantAbsent: []string{"<embed", "plugin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertSanitized(t, tt.input, sanitizer.Sanitize(tt.input), tt.wantContains, tt.wantAbsent)
		})
	}
}

// TestSanitize_OnEventAttributes はon*イベント属性が除去されることを検証する。
func TestSanitize_OnEventAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
	}{
		{"onclick", `<p onclick="alert('xss')">お知らせ</p>`, []string{"onclick", "alert"}},
		{"onload", `<img src="https://example.ac.jp/img.png" onload="alert('xss')">`, []string{"onload", "alert"}},
		{"onerror", `<img src="https://example.ac.jp/img.png" onerror="alert('xss')">`, []string{"onerror", "alert"}},
		{"onmouseover", `<a href="https://example.ac.jp" onmouseover="alert('xss')">リンク</a>`, []string{"onmouseover", "alert"}},
		{"onfocus", `<a href="https://example.ac.jp" onfocus="alert('xss')">リンク</a>`, []string{"onfocus", "alert"}},
	}

	for _, tt := range tests {
		t.Run(tt.name+"が除去される", func(t *testing.T) {
			assertSanitized(t, tt.input, sanitizer.Sanitize(tt.input), nil, tt.wantAbsent)
		})
	}
}

// TestSanitize_ImgSrcScheme はimgタグのsrc属性がhttpsスキームのみ許可されることを検証する。
func TestSanitize_ImgSrcScheme(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
		wantAbsent   []string
	}{
		{
			name:         "httpsは許可",
			input:        `<img src="https://example.ac.jp/image.png" alt="安全な画像">`,
			wantContains: []string{"<img", "https://example.ac.jp/image.png"},
		},
		{
			name:       "httpは拒否",
			input:      `<img src="http://example.ac.jp/image.png" alt="非暗号化">`,
			wantAbsent: []string{"http://example.ac.jp/image.png"},
		},
		{
			name:       "javascriptスキームは拒否",
			input:      `<img src="javascript:alert('xss')" alt="XSS">`,
			wantAbsent: []string{"javascript:", "alert"},
		},
		{
			name:       "data URIは拒否",
			input:      `<img src="data:image/png;base64,abc" alt="データ">`,
			wantAbsent: []string{"data:image"},
		},
		{
			name:       "ftpは拒否",
			input:      `<img src="ftp://example.ac.jp/image.png" alt="FTP">`,
			wantAbsent: []string{"ftp://"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertSanitized(t, tt.input, sanitizer.Sanitize(tt.input), tt.wantContains, tt.wantAbsent)
		})
	}
}

// TestSanitize_AnchorAttributes はaタグにtarget="_blank"とrel="noopener noreferrer"が
// 自動付与され、既存の値は上書きされることを検証する。
func TestSanitize_AnchorAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
		wantAbsent   []string
	}{
		{
			name:         "target=_blankとrelが付与される",
			input:        `<a href="https://example.ac.jp/news">元記事</a>`,
			wantContains: []string{`target="_blank"`, "noopener", "noreferrer", "https://example.ac.jp/news", "元記事"},
		},
		{
			name:         "既存のtargetが上書きされる",
			input:        `<a href="https://example.ac.jp" target="_self">リンク</a>`,
			wantContains: []string{`target="_blank"`},
			wantAbsent:   []string{`target="_self"`},
		},
		{
			name:         "既存のrelが上書きされる",
			input:        `<a href="https://example.ac.jp" rel="nofollow">リンク</a>`,
			wantContains: []string{"noopener", "noreferrer"},
		},
		{
			name:         "href属性のないaタグも安全に処理される",
			input:        `<a>テキストリンク</a>`,
			wantContains: []string{"テキストリンク"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertSanitized(t, tt.input, sanitizer.Sanitize(tt.input), tt.wantContains, tt.wantAbsent)
		})
	}
}

// TestSanitize_PlainTextAndEmpty はタグを含まない入力がそのまま通過することを検証する。
func TestSanitize_PlainTextAndEmpty(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, expected empty string", got)
	}

	input := "後期の履修登録は9月30日までです。HTMLタグを含みません。"
	if got := sanitizer.Sanitize(input); got != input {
		t.Errorf("Sanitize(%q) = %q, expected unchanged", input, got)
	}
}

// TestSanitize_Idempotent は同一入力に対して常に同一出力（冪等性）を検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<p>お知らせ<strong>重要</strong></p><a href="https://example.ac.jp">詳細</a><img src="https://example.ac.jp/img.png" alt="画像">`

	result1 := sanitizer.Sanitize(input)
	result2 := sanitizer.Sanitize(input)
	result3 := sanitizer.Sanitize(result1) // 二重サニタイズ

	if result1 != result2 {
		t.Errorf("冪等性違反: 1回目=%q, 2回目=%q", result1, result2)
	}
	if result1 != result3 {
		t.Errorf("二重サニタイズで結果が変わった: 1回目=%q, 二重=%q", result1, result3)
	}
}

// TestSanitize_FeedArticle はフィード記事相当の複合HTMLのサニタイズを検証する。
func TestSanitize_FeedArticle(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<div class="article">
<h1>台風接近に伴う休講措置</h1>
<p>本日の<strong>午後の授業</strong>は休講とします。</p>
<script>document.cookie</script>
<ul>
<li>1限: 通常どおり</li>
<li>3限以降: 休講</li>
</ul>
<img src="https://example.ac.jp/photo.jpg" alt="掲示" onerror="alert('xss')">
<a href="https://example.ac.jp/notice" onclick="steal()">元記事</a>
<iframe src="https://evil.com"></iframe>
<style>.hidden{display:none}</style>
<blockquote>学生支援課より</blockquote>
<pre><code>fmt.Println("Hello")</code></pre>
</div>`

	got := sanitizer.Sanitize(input)

	assertSanitized(t, input, got,
		[]string{
			"<p>", "</p>",
			"<strong>", "</strong>",
			"<ul>", "</ul>",
			"<li>", "</li>",
			"<blockquote>", "</blockquote>",
			"<pre>", "</pre>",
			"<code>", "</code>",
			"https://example.ac.jp/photo.jpg",
			"元記事",
			"学生支援課より",
			"fmt.Println(", // bluemondayはダブルクォートを&#34;にエンコードするためパーシャルマッチ
			`target="_blank"`,
			"noopener",
			"noreferrer",
		},
		[]string{
			"<script", "</script>",
			"<iframe", "</iframe>",
			"<style", "</style>",
			"<div", "</div>",
			"<h1", "</h1>",
			"onclick",
			"onerror",
			"document.cookie",
			"steal()",
			"display:none",
			"evil.com",
		},
	)
}

// TestSanitize_XSSPayloads は典型的なXSSペイロードが無害化されることを検証する。
func TestSanitize_XSSPayloads(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
	}{
		{
			name:       "SVG onloadによるXSS",
			input:      `<svg onload="alert('xss')">`,
			wantAbsent: []string{"<svg", "onload", "alert"},
		},
		{
			name:       "img onerrorによるXSS",
			input:      `<img src="x" onerror="alert('xss')">`,
			wantAbsent: []string{"onerror", "alert"},
		},
		{
			name:       "javascript URI",
			input:      `<a href="javascript:alert('xss')">クリック</a>`,
			wantAbsent: []string{"javascript:"},
		},
		{
			name:       "data URIでのスクリプト",
			input:      `<a href="data:text/html,<script>alert('xss')</script>">データ</a>`,
			wantAbsent: []string{"data:text/html"},
		},
		{
			name:       "style属性によるXSS",
			input:      `<p style="background:url(javascript:alert('xss'))">お知らせ</p>`,
			wantAbsent: []string{"style=", "background:", "javascript:"},
		},
		{
			name:       "イベントハンドラの大文字混在",
			input:      `<p OnClick="alert('xss')">お知らせ</p>`,
			wantAbsent: []string{"onclick", "alert"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.ToLower(sanitizer.Sanitize(tt.input))
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, strings.ToLower(absent)) {
					t.Errorf("Sanitize(%q) = %q, should NOT contain %q (case-insensitive)", tt.input, got, absent)
				}
			}
		})
	}
}

// TestSanitize_ImgAltAttribute はimgタグのalt属性が保持されることを検証する。
func TestSanitize_ImgAltAttribute(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<img src="https://example.ac.jp/photo.jpg" alt="掲示板の写真">`
	got := sanitizer.Sanitize(input)

	if !strings.Contains(got, `alt="掲示板の写真"`) {
		t.Errorf("Sanitize(%q) = %q, expected alt attribute to be preserved", input, got)
	}
}

func TestContentSanitizerInterface(t *testing.T) {
	var _ ContentSanitizerService = NewContentSanitizer()
}
