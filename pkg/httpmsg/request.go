package httpmsg

// Request models the original's HttpRequest: method, version, path,
// query, fragment, body, the keep-alive-inverse close flag, and three
// case-insensitive string maps.
type Request struct {
	Method   Method
	Version  Version
	Path     string
	Query    string
	Fragment string
	Body     []byte
	Close    bool

	headers *ciMap
	params  *ciMap
	cookies *ciMap
}

// NewRequest returns a Request ready for field assignment and map use.
func NewRequest(version Version, close bool) *Request {
	return &Request{
		Version: version,
		Close:   close,
		headers: newCIMap(),
		params:  newCIMap(),
		cookies: newCIMap(),
	}
}

func (r *Request) ensureMaps() {
	if r.headers == nil {
		r.headers = newCIMap()
	}
	if r.params == nil {
		r.params = newCIMap()
	}
	if r.cookies == nil {
		r.cookies = newCIMap()
	}
}

func (r *Request) Header(key string) (string, bool) { r.ensureMaps(); return r.headers.Get(key) }
func (r *Request) Param(key string) (string, bool)  { r.ensureMaps(); return r.params.Get(key) }
func (r *Request) Cookie(key string) (string, bool) { r.ensureMaps(); return r.cookies.Get(key) }

func (r *Request) HasHeader(key string) bool { r.ensureMaps(); return r.headers.Has(key) }
func (r *Request) HasParam(key string) bool  { r.ensureMaps(); return r.params.Has(key) }
func (r *Request) HasCookie(key string) bool { r.ensureMaps(); return r.cookies.Has(key) }

func (r *Request) SetHeader(key, value string) { r.ensureMaps(); r.headers.Set(key, value) }
func (r *Request) SetParam(key, value string)  { r.ensureMaps(); r.params.Set(key, value) }
func (r *Request) SetCookie(key, value string) { r.ensureMaps(); r.cookies.Set(key, value) }

func (r *Request) DelHeader(key string) { r.ensureMaps(); r.headers.Del(key) }
func (r *Request) DelParam(key string)  { r.ensureMaps(); r.params.Del(key) }
func (r *Request) DelCookie(key string) { r.ensureMaps(); r.cookies.Del(key) }

// RangeHeaders visits every header in insertion order.
func (r *Request) RangeHeaders(f func(key, value string)) { r.ensureMaps(); r.headers.Range(f) }

// String renders the request line, then "connection:", then every
// header except Connection, then a length-prefixed or bare body
// terminator. Used by handlers that echo the raw request back to the
// client.
func (r *Request) String() string {
	var b []byte
	b = append(b, r.Method.String()...)
	b = append(b, ' ')
	b = append(b, r.Path...)
	if r.Query != "" {
		b = append(b, '?')
		b = append(b, r.Query...)
	}
	if r.Fragment != "" {
		b = append(b, '#')
		b = append(b, r.Fragment...)
	}
	b = append(b, " HTTP/"...)
	b = append(b, '0'+r.Version.Major())
	b = append(b, '.')
	b = append(b, '0'+r.Version.Minor())
	b = append(b, "\r\n"...)
	b = append(b, "connection: "...)
	if r.Close {
		b = append(b, "close"...)
	} else {
		b = append(b, "keep-alive"...)
	}
	b = append(b, "\r\n"...)

	r.ensureMaps()
	r.headers.Range(func(key, value string) {
		if foldKey(key) == "connection" {
			return
		}
		b = append(b, key...)
		b = append(b, ": "...)
		b = append(b, value...)
		b = append(b, "\r\n"...)
	})

	if len(r.Body) > 0 {
		b = append(b, "content-length: "...)
		b = appendInt(b, len(r.Body))
		b = append(b, "\r\n\r\n"...)
		b = append(b, r.Body...)
	} else {
		b = append(b, "\r\n"...)
	}
	return string(b)
}

func appendInt(b []byte, n int) []byte {
	if n == 0 {
		return append(b, '0')
	}
	var tmp [20]byte
	i := len(tmp)
	for n > 0 {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
	}
	return append(b, tmp[i:]...)
}
