package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/watch\?.*v=([^&\n?#]+)`),
}

// extractVideoID pulls the 11-character video id out of the common
// YouTube URL shapes (watch, short link, embed).
func extractVideoID(rawURL string) (string, error) {
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("could not extract video id from %q", rawURL)
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// pickCaptionTrack prefers manually authored English captions, then
// auto-generated English, then any manual track, then anything at all.
func pickCaptionTrack(tracks []captionTrack) (captionTrack, bool) {
	var best captionTrack
	bestRank := -1
	for _, t := range tracks {
		english := strings.HasPrefix(t.LanguageCode, "en")
		manual := t.Kind != "asr"
		var rank int
		switch {
		case english && manual:
			rank = 3
		case english:
			rank = 2
		case manual:
			rank = 1
		default:
			rank = 0
		}
		if rank > bestRank {
			best, bestRank = t, rank
		}
	}
	return best, bestRank >= 0
}

// parseCaptionTracks finds the captionTracks JSON array embedded in a
// watch page. The decoder stops at the closing bracket, so the rest of
// the page is ignored.
func parseCaptionTracks(page []byte) ([]captionTrack, error) {
	const marker = `"captionTracks":`
	idx := strings.Index(string(page), marker)
	if idx < 0 {
		return nil, fmt.Errorf("no caption tracks found")
	}
	dec := json.NewDecoder(strings.NewReader(string(page[idx+len(marker):])))
	var tracks []captionTrack
	if err := dec.Decode(&tracks); err != nil {
		return nil, fmt.Errorf("parse caption tracks: %w", err)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no caption tracks found")
	}
	return tracks, nil
}

var captionTagRe = regexp.MustCompile(`<[^>]*>`)

// captionXMLToText flattens the timedtext XML into one line per cue.
func captionXMLToText(xmlBody []byte) string {
	var lines []string
	for _, seg := range strings.Split(string(xmlBody), "</text>") {
		open := strings.Index(seg, ">")
		start := strings.Index(seg, "<text")
		if start < 0 || open < 0 {
			continue
		}
		text := captionTagRe.ReplaceAllString(seg[open+1:], "")
		text = html.UnescapeString(html.UnescapeString(text))
		text = strings.TrimSpace(text)
		if text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}

// fetchOEmbedTitle asks the oEmbed endpoint for the video title. Failure
// is not fatal; callers fall back to a generic title.
func (c *Converter) fetchOEmbedTitle(ctx context.Context, videoURL string) (string, error) {
	endpoint := "https://www.youtube.com/oembed?format=json&url=" + url.QueryEscape(videoURL)
	body, err := c.fetchURL(ctx, endpoint)
	if err != nil {
		return "", err
	}
	var payload struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("parse oembed response: %w", err)
	}
	return payload.Title, nil
}

// convertYouTube downloads the watch page, selects the best caption
// track and flattens it into transcript text.
func (c *Converter) convertYouTube(ctx context.Context, in Input) (*Result, error) {
	videoID, err := extractVideoID(in.URL)
	if err != nil {
		return nil, err
	}

	watchURL := "https://www.youtube.com/watch?v=" + videoID
	page, err := c.fetchURL(ctx, watchURL)
	if err != nil {
		return nil, fmt.Errorf("fetch watch page: %w", err)
	}

	tracks, err := parseCaptionTracks(page)
	if err != nil {
		return nil, err
	}
	track, ok := pickCaptionTrack(tracks)
	if !ok {
		return nil, fmt.Errorf("no usable caption track")
	}
	c.logf("using caption track lang=%s kind=%q for video %s", track.LanguageCode, track.Kind, videoID)

	captions, err := c.fetchURL(ctx, html.UnescapeString(track.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("fetch captions: %w", err)
	}
	text := captionXMLToText(captions)

	title, err := c.fetchOEmbedTitle(ctx, watchURL)
	if err != nil {
		c.logf("oembed title lookup failed for %s: %v", videoID, err)
		title = "YouTube Video " + videoID
	}

	return &Result{
		Text:      text,
		Type:      TypeYouTube,
		PageTitle: title,
		Size:      int64(len(text)),
	}, nil
}
