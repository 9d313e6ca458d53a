package webpage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"carb-estimator/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrPageInaccessible 頁面無法下載或沒有可讀文字
var ErrPageInaccessible = errors.New("recipe page is inaccessible")

// DefaultTextLimit 傳給模型的頁面文字上限（rune）
const DefaultTextLimit = 12000

// Fetcher 下載食譜頁面並擷取可見文字
type Fetcher struct {
	client    *resty.Client
	textLimit int
}

// NewFetcher 建立 Fetcher
func NewFetcher(timeout time.Duration, textLimit int) *Fetcher {
	if textLimit <= 0 {
		textLimit = DefaultTextLimit
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; carb-estimator/1.0)").
		SetHeader("Accept", "text/html,application/xhtml+xml")

	return &Fetcher{client: client, textLimit: textLimit}
}

// FetchText 取得頁面可見文字，失敗一律包成 ErrPageInaccessible
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: invalid url %q", ErrPageInaccessible, rawURL)
	}

	resp, err := f.client.R().SetContext(ctx).Get(u.String())
	if err != nil {
		common.LogWarn("Recipe page fetch failed", zap.String("url", u.String()), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrPageInaccessible, err)
	}
	if resp.StatusCode() != http.StatusOK {
		common.LogWarn("Recipe page returned error status",
			zap.String("url", u.String()),
			zap.Int("status_code", resp.StatusCode()),
		)
		return "", fmt.Errorf("%w: status code %d", ErrPageInaccessible, resp.StatusCode())
	}

	text, err := ExtractText(resp.Body())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPageInaccessible, err)
	}
	if text == "" {
		return "", fmt.Errorf("%w: page has no readable text", ErrPageInaccessible)
	}

	common.LogInfo("Recipe page fetched",
		zap.String("url", u.String()),
		zap.Int("text_length", len([]rune(text))),
	)
	return common.Truncate(text, f.textLimit), nil
}

// 不含可見文字的元素
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Head:     true,
}

// 區塊元素前後補空白，避免相鄰文字黏在一起
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Br: true, atom.Tr: true, atom.Td: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
}

// ExtractText 解析 HTML 並回傳以單一空白串接的可見文字
func ExtractText(page []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		if n.Type == html.ElementNode && blocks[n.DataAtom] {
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(sb.String()), " "), nil
}
