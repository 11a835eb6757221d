// Package video classifies lesson video URLs into the embed kinds the
// learner view knows how to render.
package video

import (
	"net/url"
	"regexp"
	"strings"
)

type Kind string

const (
	// HostedDocument is a drive-style file preview. It cannot report
	// playback progress, so completion is time based.
	HostedDocument Kind = "hosted_document"
	VideoPlatform  Kind = "video_platform"
	Unsupported    Kind = "unsupported"
)

const (
	previewTemplate = "https://drive.google.com/file/d/%s/preview"
	embedTemplate   = "https://www.youtube.com/embed/%s"
	videoIDLen      = 11
)

var documentHosts = []string{"drive.google.com", "docs.google.com"}

var (
	fileIDPattern  = regexp.MustCompile(`/file/d/([^/]+)/`)
	videoIDPattern = regexp.MustCompile(`^.*(youtu.be\/|v\/|u\/\w\/|embed\/|watch\?v=|&v=)([^#&?]*).*`)
)

type Source struct {
	Kind     Kind   `json:"kind"`
	EmbedURL string `json:"embedUrl,omitempty"`
	// ID is the document id or the 11-character video id.
	ID string `json:"id,omitempty"`
}

func Classify(raw string) Source {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Source{Kind: Unsupported}
	}
	if id, ok := documentID(raw); ok {
		return Source{Kind: HostedDocument, ID: id, EmbedURL: strings.Replace(previewTemplate, "%s", id, 1)}
	}
	if id := VideoID(raw); id != "" {
		return Source{Kind: VideoPlatform, ID: id, EmbedURL: strings.Replace(embedTemplate, "%s", id, 1)}
	}
	return Source{Kind: Unsupported}
}

func documentID(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || !isDocumentHost(u.Host) {
		return "", false
	}
	m := fileIDPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func isDocumentHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range documentHosts {
		if strings.Contains(host, h) {
			return true
		}
	}
	return false
}

// VideoID extracts an 11-character video id, or "" when the URL has none.
func VideoID(raw string) string {
	m := videoIDPattern.FindStringSubmatch(raw)
	if m == nil || len(m[2]) != videoIDLen {
		return ""
	}
	return m[2]
}
