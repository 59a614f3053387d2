package siteinit

import (
	"net/url"

	"github.com/dop251/goja"
)

type (
	// DocumentID is a stable identifier for a single loaded document, i.e. one
	// navigation. The host must never reuse an ID for a different navigation.
	DocumentID uint64

	// Document is the host's handle for one loaded document.
	Document interface {
		// ID identifies this navigation, see [DocumentID].
		ID() DocumentID

		// TopFrame returns the top-level frame of the document.
		TopFrame() Frame

		// URI is the current location of the document, used for host
		// matching. It may be nil, in which case no site scripts match.
		URI() *url.URL

		// Runtime is the document's own evaluation context. Top-level
		// declarations made by injected scripts are visible here.
		Runtime() *goja.Runtime

		// Object is the JS-facing handle for the document, bound as "buffer".
		Object() any
	}

	// Frame is the top-level frame of a [Document].
	Frame interface {
		// Location is the frame's current location identity, compared
		// against [RawEvent.Target].
		Location() string

		// Object is the rendering context handle, bound as "window".
		Object() any
	}

	// RawEvent is a single occurrence of the host's raw load signal.
	RawEvent struct {
		// Target is the location identity (document URI) of whatever
		// triggered the signal. Sub-resources share the frame, but not the
		// location. An empty Target never matches.
		Target string
	}
)
