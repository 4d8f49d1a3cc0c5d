package ats

import (
	"net/url"
	"regexp"
	"strings"

	"jobmate/careerwatch-service/internal/model"
)

const (
	maxBoardIDLen  = 80
	maxScanBytes   = 512 << 10
	greenhouseHost = "greenhouse.io"
	leverHost      = "lever.co"
	ashbyHost      = "ashbyhq.com"
)

// providerPriority breaks ties between signatures found at the same body offset.
var providerPriority = []model.Kind{model.KindGreenhouse, model.KindLever, model.KindAshby}

// reservedBoardIDs are path words that appear where a board id would, but never are one.
var reservedBoardIDs = map[string]struct{}{
	"embed":       {},
	"v0":          {},
	"v1":          {},
	"js":          {},
	"boards":      {},
	"postings":    {},
	"posting-api": {},
	"job-board":   {},
}

// bodySignatures lists, per provider, regexps whose first group is the board id.
var bodySignatures = map[model.Kind][]*regexp.Regexp{
	model.KindGreenhouse: {
		regexp.MustCompile(`(?i)boards(?:\.eu)?\.greenhouse\.io/embed/job_board(?:/js)?\?for=([A-Za-z0-9_.-]+)`),
		regexp.MustCompile(`(?i)boards-api(?:\.eu)?\.greenhouse\.io/v1/boards/([A-Za-z0-9_.-]+)`),
		regexp.MustCompile(`(?i)(?:job-)?boards(?:\.eu)?\.greenhouse\.io/([A-Za-z0-9_.-]+)`),
		regexp.MustCompile(`(?i)["']?boardToken["']?\s*[:=]\s*["']([A-Za-z0-9_.-]+)["']`),
	},
	model.KindLever: {
		regexp.MustCompile(`(?i)api(?:\.eu)?\.lever\.co/v0/postings/([A-Za-z0-9_.-]+)`),
		regexp.MustCompile(`(?i)jobs(?:\.eu)?\.lever\.co/([A-Za-z0-9_.-]+)`),
	},
	model.KindAshby: {
		regexp.MustCompile(`(?i)api\.ashbyhq\.com/posting-api/job-board/([A-Za-z0-9_.%-]+)`),
		regexp.MustCompile(`(?i)jobs\.ashbyhq\.com/([A-Za-z0-9_.%-]+)`),
	},
}

// MatchURL reports whether rawURL is hosted by a known ATS and, if so, the
// board identifier encoded in it.
func MatchURL(rawURL string) (model.Kind, string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", "", false
	}
	host := strings.ToLower(u.Hostname())
	segs := pathSegments(u.Path)

	switch {
	case hostIs(host, greenhouseHost):
		if strings.HasPrefix(host, "boards-api.") {
			return boardAt(model.KindGreenhouse, segs, 2, "v1", "boards")
		}
		if !strings.HasPrefix(host, "boards.") && !strings.HasPrefix(host, "job-boards.") {
			return "", "", false
		}
		if len(segs) > 0 && strings.EqualFold(segs[0], "embed") {
			return validBoard(model.KindGreenhouse, u.Query().Get("for"))
		}
		return boardAt(model.KindGreenhouse, segs, 0)
	case hostIs(host, leverHost):
		if strings.HasPrefix(host, "api.") {
			return boardAt(model.KindLever, segs, 2, "v0", "postings")
		}
		if strings.HasPrefix(host, "jobs.") {
			return boardAt(model.KindLever, segs, 0)
		}
	case hostIs(host, ashbyHost):
		if strings.HasPrefix(host, "api.") {
			return boardAt(model.KindAshby, segs, 2, "posting-api", "job-board")
		}
		if strings.HasPrefix(host, "jobs.") {
			return boardAt(model.KindAshby, segs, 0)
		}
	}
	return "", "", false
}

// MatchBody scans an HTML page for embedded ATS signatures. The earliest
// match in the body wins; matches at the same offset are ordered by
// providerPriority, then by signature order.
func MatchBody(body []byte) (model.Kind, string, bool) {
	if len(body) > maxScanBytes {
		body = body[:maxScanBytes]
	}
	text := string(body)

	bestOffset := -1
	var bestKind model.Kind
	var bestBoard string

	for _, kind := range providerPriority {
		for _, re := range bodySignatures[kind] {
			offset, board, ok := firstValidMatch(kind, re, text)
			if !ok {
				continue
			}
			if bestOffset == -1 || offset < bestOffset {
				bestOffset, bestKind, bestBoard = offset, kind, board
			}
		}
	}
	if bestOffset == -1 {
		return "", "", false
	}
	return bestKind, bestBoard, true
}

func firstValidMatch(kind model.Kind, re *regexp.Regexp, text string) (int, string, bool) {
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		raw := text[loc[2]:loc[3]]
		if _, board, ok := validBoard(kind, raw); ok {
			return loc[0], board, true
		}
	}
	return 0, "", false
}

// boardAt returns segs[idx] as the board id when the preceding segments
// equal prefix.
func boardAt(kind model.Kind, segs []string, idx int, prefix ...string) (model.Kind, string, bool) {
	if len(segs) <= idx {
		return "", "", false
	}
	for i, want := range prefix {
		if !strings.EqualFold(segs[i], want) {
			return "", "", false
		}
	}
	return validBoard(kind, segs[idx])
}

func validBoard(kind model.Kind, raw string) (model.Kind, string, bool) {
	board := strings.Trim(strings.TrimSpace(raw), `"'/`)
	if unescaped, err := url.PathUnescape(board); err == nil {
		board = unescaped
	}
	if board == "" || len(board) > maxBoardIDLen || strings.ContainsAny(board, "/?#\"'<>") {
		return "", "", false
	}
	if _, reserved := reservedBoardIDs[strings.ToLower(board)]; reserved {
		return "", "", false
	}
	return kind, board, true
}

func hostIs(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func pathSegments(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
