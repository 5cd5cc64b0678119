package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var ErrInappropriateContent = errors.New("content does not meet portal guidelines")

var BannedWords = []string{
	"fuck", "fucking", "fucker", "shit", "shitty", "bullshit",
	"asshole", "bastard", "bitch", "cunt",
	"nigger", "nigga", "faggot", "retard", "retarded",
	"porn", "porno", "nude", "nudes",
	"scam", "scammer", "phishing", "malware",
}

// ContentService cleans user-written text before it is stored. Long-form
// fields keep basic formatting; everything else is stripped to plain text.
type ContentService struct {
	richText          *bluemonday.Policy
	plainText         *bluemonday.Policy
	bannedWordRegexps []*regexp.Regexp
}

// maxRepeatedRun is the longest run of one character accepted by Screen.
const maxRepeatedRun = 9

func NewContentService() *ContentService {
	rich := bluemonday.StrictPolicy()
	rich.AllowElements("p", "br", "strong", "em", "code", "pre", "blockquote")
	rich.AllowElements("ul", "ol", "li")
	rich.AllowElements("h3", "h4", "h5", "h6")
	rich.AllowAttrs("href").OnElements("a")
	rich.RequireParseableURLs(true)
	rich.AddTargetBlankToFullyQualifiedLinks(true)
	rich.RequireNoFollowOnLinks(true)

	cs := &ContentService{
		richText:  rich,
		plainText: bluemonday.StrictPolicy(),
	}
	cs.bannedWordRegexps = make([]*regexp.Regexp, 0, len(BannedWords))
	for _, word := range BannedWords {
		cs.bannedWordRegexps = append(cs.bannedWordRegexps, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(word)+`\b`))
	}
	return cs
}

// RichText sanitises a long-form field such as a description or business case.
func (cs *ContentService) RichText(s string) string {
	return strings.TrimSpace(cs.richText.Sanitize(s))
}

// PlainText strips all markup, for titles and short fields.
func (cs *ContentService) PlainText(s string) string {
	return strings.TrimSpace(cs.plainText.Sanitize(s))
}

// Screen rejects abusive or spammy text.
func (cs *ContentService) Screen(text string) error {
	for _, re := range cs.bannedWordRegexps {
		if re.MatchString(text) {
			return fmt.Errorf("%w: inappropriate language", ErrInappropriateContent)
		}
	}
	if longestRun(text) > maxRepeatedRun {
		return fmt.Errorf("%w: looks like spam", ErrInappropriateContent)
	}
	return nil
}

func longestRun(text string) int {
	longest, run := 0, 0
	var prev rune = -1
	for _, r := range text {
		if r == prev && r != ' ' {
			run++
		} else {
			run = 1
		}
		prev = r
		if run > longest {
			longest = run
		}
	}
	return longest
}
