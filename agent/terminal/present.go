package terminal

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/m4xw311/they/errors"
	"github.com/tidwall/gjson"
)

const (
	maxCauseDepth   = 10
	maxRootCauseLen = 200
)

var (
	// Caller tags added by the errors package, e.g. "[anthropic.go:71] ".
	callerTagRe = regexp.MustCompile(`\[[\w.\-]+\.go:\d+\] `)
	// Chained vendor exception prefixes such as "APIConnectionError: ".
	vendorPrefixRe = regexp.MustCompile(`^(?:(?:litellm\.\w+Error|APIConnectionError): )+`)

	noiseMarkers = []string{"Received Chunk=", "Original exception:"}

	toolUseIndicators = []string{
		"finish_reason: error",
		"abort",
		"does not support tools",
		"tool use is not supported",
		"tools are not supported",
	}
)

const toolUseHint = "Hint: your model may not support tool use. Try a tool-capable model (e.g. openrouter/anthropic/claude-sonnet-4-20250514)"

// errorReport is what the terminal prints for a failed turn.
type errorReport struct {
	Primary   string
	RootCause string
	Hint      string
}

// describeError reduces a failure and its causes to one primary line, an
// optional root-cause line and an optional hint.
func describeError(err error) errorReport {
	chain := errors.Chain(err, maxCauseDepth)
	if len(chain) == 0 {
		return errorReport{}
	}

	var rep errorReport
	messages := make([]string, 0, len(chain))
	for _, e := range chain {
		msg := e.Error()
		messages = append(messages, msg)
		if rep.Primary == "" {
			rep.Primary = embeddedMessage(msg)
		}
	}
	if rep.Primary == "" {
		rep.Primary = cleanLine(chain[0].Error())
	}

	if len(chain) > 1 {
		root := chain[len(chain)-1]
		line := truncateRunes(cleanLine(root.Error()), maxRootCauseLen)
		if line != "" && line != rep.Primary {
			rep.RootCause = fmt.Sprintf("%s: %s", typeName(root), line)
		}
	}

	combined := strings.ToLower(strings.Join(messages, "\n"))
	for _, ind := range toolUseIndicators {
		if strings.Contains(combined, ind) {
			rep.Hint = toolUseHint
			break
		}
	}
	return rep
}

// embeddedMessage finds a JSON object carrying error.message inside msg.
func embeddedMessage(msg string) string {
	for i := strings.IndexByte(msg, '{'); i >= 0; {
		if r := gjson.Get(msg[i:], "error.message"); r.Type == gjson.String && r.Str != "" {
			return firstLine(r.Str)
		}
		next := strings.IndexByte(msg[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return ""
}

// cleanLine reduces msg to its first line without caller tags or vendor
// prefixes, cut before any trailing diagnostic dump.
func cleanLine(msg string) string {
	line := firstLine(msg)
	line = callerTagRe.ReplaceAllString(line, "")
	line = vendorPrefixRe.ReplaceAllString(line, "")
	for _, marker := range noiseMarkers {
		if idx := strings.Index(line, marker); idx > 0 {
			line = strings.TrimRight(line[:idx], " ,.")
		}
	}
	return strings.TrimSpace(line)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func typeName(err error) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
