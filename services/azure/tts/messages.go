package azure

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Azure Speech websocket frames carry HTTP-like headers followed by a body.
// Text frames separate the two with a blank line; binary frames prefix the
// headers with their length as a big-endian uint16.

const headerBodySeparator = "\r\n\r\n"

type frame struct {
	headers map[string]string
	body    []byte
}

func (f frame) path() string {
	return f.headers["path"]
}

func buildTextFrame(path, contentType, requestID string, body []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "X-Timestamp:%s\r\n", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	if requestID != "" {
		fmt.Fprintf(&b, "X-RequestId:%s\r\n", requestID)
	}
	fmt.Fprintf(&b, "Content-Type:%s\r\n", contentType)
	fmt.Fprintf(&b, "Path:%s", path)
	b.WriteString(headerBodySeparator)
	b.Write(body)
	return b.Bytes()
}

func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, line := range strings.Split(raw, "\r\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return headers
}

func parseTextFrame(data []byte) frame {
	raw, body, found := bytes.Cut(data, []byte(headerBodySeparator))
	if !found {
		return frame{headers: parseHeaders(string(data))}
	}
	return frame{headers: parseHeaders(string(raw)), body: body}
}

func parseBinaryFrame(data []byte) (frame, error) {
	if len(data) < 2 {
		return frame{}, errors.New("binary frame too short")
	}
	n := int(binary.BigEndian.Uint16(data[:2]))
	if 2+n > len(data) {
		return frame{}, fmt.Errorf("binary frame header length %d exceeds frame size %d", n, len(data))
	}
	return frame{
		headers: parseHeaders(string(data[2 : 2+n])),
		body:    data[2+n:],
	}, nil
}

// buildBinaryFrame is the inverse of parseBinaryFrame.
func buildBinaryFrame(headers string, body []byte) []byte {
	out := make([]byte, 2+len(headers)+len(body))
	binary.BigEndian.PutUint16(out[:2], uint16(len(headers)))
	copy(out[2:], headers)
	copy(out[2+len(headers):], body)
	return out
}

type synthesisContext struct {
	Synthesis struct {
		Audio struct {
			MetadataOptions metadataOptions `json:"metadataOptions"`
			OutputFormat    string          `json:"outputFormat"`
		} `json:"audio"`
		Language struct {
			AutoDetection bool `json:"autoDetection"`
		} `json:"language"`
	} `json:"synthesis"`
}

type metadataOptions struct {
	BookmarkEnabled         bool `json:"bookmarkEnabled"`
	PunctuationBoundary     bool `json:"punctuationBoundaryEnabled"`
	SentenceBoundaryEnabled bool `json:"sentenceBoundaryEnabled"`
	VisemeEnabled           bool `json:"visemeEnabled"`
	WordBoundaryEnabled     bool `json:"wordBoundaryEnabled"`
}

type speechConfig struct {
	Context struct {
		System struct {
			Name    string `json:"name"`
			Version string `json:"version"`
			Build   string `json:"build"`
			Lang    string `json:"lang"`
		} `json:"system"`
		OS struct {
			Platform string `json:"platform"`
			Name     string `json:"name"`
		} `json:"os"`
	} `json:"context"`
}

// audioMetadata is the body of an audio.metadata frame.
type audioMetadata struct {
	Metadata []struct {
		Type string `json:"Type"`
		Data struct {
			Offset   int64 `json:"Offset"` // 100ns ticks from the start of the audio.
			VisemeID int   `json:"VisemeId"`
		} `json:"Data"`
	} `json:"Metadata"`
}
