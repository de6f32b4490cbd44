package syncer

import (
	"context"
	"errors"
	"net"
	"net/url"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var (
	// ErrTooLarge refuses to merge a remote payload that was truncated
	// beyond the size we are willing to fetch.
	ErrTooLarge = errors.New("remote content too large")
	// ErrRemoteNotFound means the remote target holds no synced content.
	ErrRemoteNotFound = errors.New("remote content not found")
)

type FailureKind string

const (
	FailureTimeout  FailureKind = "timeout"
	FailureNetwork  FailureKind = "network"
	FailureAborted  FailureKind = "aborted"
	FailureTooLarge FailureKind = "too-large"
	FailureNotFound FailureKind = "not-found"
	FailureOther    FailureKind = "other"
)

// Classify maps a transport or sync error onto a failure kind.
func Classify(err error) FailureKind {
	var timeout interface{ Timeout() bool }
	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, ErrTooLarge):
		return FailureTooLarge
	case errors.Is(err, ErrRemoteNotFound):
		return FailureNotFound
	case errors.Is(err, context.Canceled):
		return FailureAborted
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.As(err, &timeout) && timeout.Timeout():
		return FailureTimeout
	case errors.As(err, &netErr), errors.As(err, &urlErr):
		return FailureNetwork
	}
	return FailureOther
}

var reasonLanguages = []language.Tag{language.English, language.Chinese}

var reasonMatcher = language.NewMatcher(reasonLanguages)

var reasons = func() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	messages := map[FailureKind][2]string{
		FailureTimeout:  {"The request timed out", "请求超时"},
		FailureNetwork:  {"Network error, check your connection", "网络错误，请检查网络连接"},
		FailureAborted:  {"The sync was aborted", "同步已中止"},
		FailureTooLarge: {"Remote content is too large to sync", "远程内容过大，无法同步"},
		FailureNotFound: {"No synced content found on the remote", "远程未找到同步内容"},
		FailureOther:    {"Sync failed", "同步失败"},
	}
	for kind, text := range messages {
		key := "sync." + string(kind)
		_ = b.SetString(language.English, key, text[0])
		_ = b.SetString(language.Chinese, key, text[1])
	}
	return b
}()

// Reason renders a localized failure message for lang (a BCP 47 tag).
func Reason(lang string, kind FailureKind) string {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	_, idx, _ := reasonMatcher.Match(tag)
	p := message.NewPrinter(reasonLanguages[idx], message.Catalog(reasons))
	return p.Sprintf("sync." + string(kind))
}
