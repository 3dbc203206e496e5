// Package twiml renders call decisions as TwiML, the XML dialect Twilio
// executes to speak to the caller and collect their reply.
//
// Only the four verbs the wellness call needs are supported:
// <Say>, <Gather input="speech">, <Redirect> and <Hangup>.
//
// Reference: https://www.twilio.com/docs/voice/twiml
package twiml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"
)

// ContentType is the response content type for TwiML documents.
const ContentType = "text/xml"

// Gather describes a speech capture.
type Gather struct {
	Timeout  time.Duration
	Action   string // URL Twilio posts the speech result to
	Prompt   string // optional text spoken while listening
	Language string
}

// Response is a renderer-independent call decision: what to say, and then
// either listen again or hang up.
type Response struct {
	Voice string
	Says  []string
	// Gather and Redirect continue the call; Redirect is followed when the
	// gather ends without a result.
	Gather   *Gather
	Redirect string
	Hangup   bool
}

// Terminal reports whether the response ends the call.
func (r *Response) Terminal() bool {
	return r.Hangup
}

type responseXML struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []interface{}
}

type sayXML struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type gatherXML struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Timeout       int      `xml:"timeout,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr"`
	Language      string   `xml:"language,attr,omitempty"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	Says          []sayXML
}

type redirectXML struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr"`
	URL     string   `xml:",chardata"`
}

type hangupXML struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Render produces the TwiML document. Verbs appear in order: says, gather,
// redirect, hangup. A response cannot both gather and hang up.
func Render(r *Response) ([]byte, error) {
	if r.Hangup && (r.Gather != nil || r.Redirect != "") {
		return nil, fmt.Errorf("twiml: a hangup response cannot gather or redirect")
	}

	doc := responseXML{}
	for _, text := range r.Says {
		doc.Verbs = append(doc.Verbs, sayXML{Voice: r.Voice, Text: text})
	}

	if g := r.Gather; g != nil {
		gx := gatherXML{
			Input:         "speech",
			Timeout:       int(g.Timeout / time.Second),
			SpeechTimeout: "auto",
			Language:      g.Language,
			Action:        g.Action,
			Method:        "POST",
		}
		if g.Prompt != "" {
			gx.Says = []sayXML{{Voice: r.Voice, Text: g.Prompt}}
		}
		doc.Verbs = append(doc.Verbs, gx)
	}

	if r.Redirect != "" {
		doc.Verbs = append(doc.Verbs, redirectXML{Method: "POST", URL: r.Redirect})
	}

	if r.Hangup {
		doc.Verbs = append(doc.Verbs, hangupXML{})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("twiml: encode: %w", err)
	}
	return buf.Bytes(), nil
}
