package twiml

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// verbNames decodes a document and returns the top-level verb names in order.
func verbNames(t *testing.T, doc []byte) []string {
	t.Helper()

	dec := xml.NewDecoder(strings.NewReader(string(doc)))
	var names []string
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				names = append(names, el.Name.Local)
			}
		case xml.EndElement:
			depth--
		}
	}
	return names
}

func TestRenderContinuing(t *testing.T) {
	doc, err := Render(&Response{
		Voice: "Polly.Joanna",
		Says:  []string{"Tell me more."},
		Gather: &Gather{
			Timeout:  15 * time.Second,
			Action:   "/process-speech",
			Language: "en-US",
		},
		Redirect: "/voice-timeout",
	})
	require.NoError(t, err)

	out := string(doc)
	assert.True(t, strings.HasPrefix(out, xml.Header))
	assert.Equal(t, []string{"Say", "Gather", "Redirect"}, verbNames(t, doc))
	assert.Contains(t, out, `<Say voice="Polly.Joanna">Tell me more.</Say>`)
	assert.Contains(t, out, `input="speech"`)
	assert.Contains(t, out, `timeout="15"`)
	assert.Contains(t, out, `speechTimeout="auto"`)
	assert.Contains(t, out, `action="/process-speech"`)
	assert.Contains(t, out, `language="en-US"`)
	assert.Contains(t, out, `>/voice-timeout</Redirect>`)
	assert.NotContains(t, out, "Hangup")
}

func TestRenderGatherPrompt(t *testing.T) {
	doc, err := Render(&Response{
		Voice:    "alice",
		Says:     []string{"Hello"},
		Gather:   &Gather{Timeout: 10 * time.Second, Action: "/process-speech", Prompt: "Are you there"},
		Redirect: "/voice-timeout",
	})
	require.NoError(t, err)

	var parsed struct {
		Gather struct {
			Timeout string `xml:"timeout,attr"`
			Say     string `xml:"Say"`
		} `xml:"Gather"`
	}
	require.NoError(t, xml.Unmarshal(doc, &parsed))
	assert.Equal(t, "10", parsed.Gather.Timeout)
	assert.Equal(t, "Are you there", parsed.Gather.Say)
}

func TestRenderTerminal(t *testing.T) {
	r := &Response{
		Voice:  "Polly.Joanna",
		Says:   []string{"Reply", "Goodbye"},
		Hangup: true,
	}
	assert.True(t, r.Terminal())

	doc, err := Render(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"Say", "Say", "Hangup"}, verbNames(t, doc))
}

func TestRenderEscapesText(t *testing.T) {
	doc, err := Render(&Response{Says: []string{`<Hangup/> & "more"`}, Hangup: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Say", "Hangup"}, verbNames(t, doc))
}

func TestRenderRejectsHangupWithGather(t *testing.T) {
	_, err := Render(&Response{
		Gather: &Gather{Timeout: time.Second, Action: "/x"},
		Hangup: true,
	})
	assert.Error(t, err)
}
