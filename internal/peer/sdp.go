package peer

import (
	"regexp"
	"strings"
)

var rtpmapPattern = regexp.MustCompile(`(?i)^a=rtpmap:(\d+) ([a-z0-9-]+)/`)

// preferAudioCodec moves the named codec's payload type to the front of
// the m=audio line so the remote side picks it first. The SDP is
// otherwise untouched; if the codec is absent the input is returned
// unchanged.
func preferAudioCodec(sdp, codec string) string {
	lines := strings.Split(sdp, "\r\n")

	mLineIndex := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "m=audio") {
			mLineIndex = i
			break
		}
	}
	if mLineIndex == -1 {
		return sdp
	}

	payloadType := ""
	for _, line := range lines {
		m := rtpmapPattern.FindStringSubmatch(line)
		if m != nil && strings.EqualFold(m[2], codec) {
			payloadType = m[1]
			break
		}
	}
	if payloadType == "" {
		return sdp
	}

	// m=audio <port> <proto> <fmt> <fmt> ...
	fields := strings.Fields(lines[mLineIndex])
	if len(fields) < 4 {
		return sdp
	}

	reordered := append([]string{}, fields[:3]...)
	reordered = append(reordered, payloadType)
	for _, pt := range fields[3:] {
		if pt != payloadType {
			reordered = append(reordered, pt)
		}
	}

	lines[mLineIndex] = strings.Join(reordered, " ")
	return strings.Join(lines, "\r\n")
}
