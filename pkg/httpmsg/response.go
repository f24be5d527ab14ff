package httpmsg

// Response models the original's HttpResponse: version, close flag,
// status, an optional explicit reason phrase, a body, and a
// case-insensitive header map.
type Response struct {
	Version Version
	Close   bool
	Status  Status
	Reason  string
	Body    []byte

	headers *ciMap
}

// NewResponse returns a Response ready for field assignment and header
// use, defaulting to 200 OK.
func NewResponse(version Version, close bool) *Response {
	return &Response{
		Version: version,
		Close:   close,
		Status:  StatusOK,
		headers: newCIMap(),
	}
}

func (r *Response) ensureHeaders() {
	if r.headers == nil {
		r.headers = newCIMap()
	}
}

func (r *Response) Header(key string) (string, bool) { r.ensureHeaders(); return r.headers.Get(key) }
func (r *Response) HasHeader(key string) bool         { r.ensureHeaders(); return r.headers.Has(key) }

// SetHeader is idempotent: SetHeader(k,v) followed by SetHeader(k,w)
// yields w, not both.
func (r *Response) SetHeader(key, value string) { r.ensureHeaders(); r.headers.Set(key, value) }
func (r *Response) DelHeader(key string)         { r.ensureHeaders(); r.headers.Del(key) }

// RangeHeaders visits every header in insertion order.
func (r *Response) RangeHeaders(f func(key, value string)) { r.ensureHeaders(); r.headers.Range(f) }

// reasonOrDefault returns the explicit reason if set, else the status
// code's canned phrase.
func (r *Response) reasonOrDefault() string {
	if r.Reason != "" {
		return r.Reason
	}
	return r.Status.DefaultReason()
}

// Serialize renders the status line; every header except Connection
// (case-insensitive) in insertion order; an explicit connection line;
// then either a content-length-prefixed body or a bare terminator,
// never both a body and the bare CRLF.
func (r *Response) Serialize() []byte {
	var b []byte
	b = append(b, "HTTP/"...)
	b = append(b, '0'+r.Version.Major())
	b = append(b, '.')
	b = append(b, '0'+r.Version.Minor())
	b = append(b, ' ')
	b = appendInt(b, int(r.Status))
	b = append(b, ' ')
	b = append(b, r.reasonOrDefault()...)
	b = append(b, "\r\n"...)

	r.ensureHeaders()
	r.headers.Range(func(key, value string) {
		if foldKey(key) == "connection" {
			return
		}
		b = append(b, key...)
		b = append(b, ": "...)
		b = append(b, value...)
		b = append(b, "\r\n"...)
	})

	b = append(b, "connection: "...)
	if r.Close {
		b = append(b, "close"...)
	} else {
		b = append(b, "keep-alive"...)
	}
	b = append(b, "\r\n"...)

	if len(r.Body) > 0 {
		b = append(b, "content-length: "...)
		b = appendInt(b, len(r.Body))
		b = append(b, "\r\n\r\n"...)
		b = append(b, r.Body...)
	} else {
		b = append(b, "\r\n"...)
	}
	return b
}
