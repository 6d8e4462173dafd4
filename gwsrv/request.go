/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package gwsrv

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/http/httpguts"

	"github.com/sabouaram/wsgicore/gwapp"
	"github.com/sabouaram/wsgicore/gwerrors"
)

// joinableHeaders is the fixed set of request headers whose repeated
// instances must be comma-concatenated rather than last-wins (§4.E step 7).
var joinableHeaders = map[string]bool{
	"accept": true, "accept-charset": true, "accept-encoding": true,
	"accept-language": true, "accept-ranges": true, "allow": true,
	"cache-control": true, "connection": true, "content-encoding": true,
	"content-language": true, "expect": true, "if-match": true,
	"if-none-match": true, "pragma": true, "proxy-authenticate": true,
	"te": true, "trailer": true, "transfer-encoding": true, "upgrade": true,
	"vary": true, "via": true, "warning": true, "www-authenticate": true,
}

var protocolRE = regexp.MustCompile(`^HTTP/(\d+)\.(\d+)$`)

var percent2F = regexp.MustCompile(`(?i)%2f`)

// Request is one request/response pair on a Connection (§3 "Request").
type Request struct {
	conn *Connection
	id   string

	method        string
	rawURI        string
	reqProtoStr   string
	reqMajor      int
	reqMinor      int
	resMinor      int
	responseProto string

	scriptName  string
	pathInfo    string
	queryString string

	environEarlyScheme     string
	environEarlyServerName string

	rawHeaders http.Header

	authType   string
	remoteUser string

	body          io.Reader
	contentLength int64

	environ gwapp.Environ
	app     gwapp.Application

	closeConnection bool
	ready           bool

	status          string
	respHeader      http.Header
	startedResponse bool
	sentHeaders     bool
	chunkedWrite    bool
	forceClose      bool
}

func newRequest(c *Connection) *Request {
	return &Request{
		conn:       c,
		id:         uuid.NewString(),
		rawHeaders: http.Header{},
		respHeader: http.Header{},
	}
}

// readLine reads one CRLF- or LF-terminated line, with the trailing
// terminator stripped.
func (r *Request) readLine() (string, error) {
	line, err := r.conn.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// parse runs the fixed parser pipeline of §4.E. A non-nil error signals an
// I/O-level fault the caller must classify (client-gone vs. fatal); a nil
// error with ready == false means either the client closed cleanly before
// sending a request or a synthesised error response was already written, and
// in both cases the connection must close.
func (r *Request) parse() error {
	line, err := r.readLine()
	if err != nil {
		if err == io.EOF {
			return nil // client closed cleanly before sending anything
		}
		return err
	}

	if line == "" {
		// RFC 2616 §4.1: a single leading blank line is tolerated once.
		line, err = r.readLine()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if line == "" {
			return nil
		}
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		r.conn.srv.cfg.Logger.Warnf("connection %s: %v", r.conn.id, gwerrors.New(ErrorBadRequestLine))
		_ = r.simpleResponse(400, "Malformed request line")
		return nil
	}

	r.method = strings.ToUpper(parts[0])
	r.rawURI = parts[1]
	r.reqProtoStr = parts[2]

	if strings.Contains(r.rawURI, "#") {
		r.conn.srv.cfg.Logger.Warnf("connection %s: %v", r.conn.id, gwerrors.New(ErrorURIFragment))
		_ = r.simpleResponse(400, "Illegal #fragment in request-uri")
		return nil
	}

	path, query, scheme, netloc, perr := splitRequestURI(r.rawURI)
	if perr != nil {
		_ = r.simpleResponse(400, "Malformed request-uri")
		return nil
	}
	r.queryString = query

	decodedPath, derr := decodePathPreserving2F(path)
	if derr != nil {
		_ = r.simpleResponse(400, "Malformed percent-encoding in request-uri")
		return nil
	}

	if !protocolRE.MatchString(r.reqProtoStr) {
		_ = r.simpleResponse(400, "Malformed request protocol")
		return nil
	}
	major, _ := strconv.Atoi(protocolRE.FindStringSubmatch(r.reqProtoStr)[1])
	minor, _ := strconv.Atoi(protocolRE.FindStringSubmatch(r.reqProtoStr)[2])
	r.reqMajor, r.reqMinor = major, minor

	srvMajor, srvMinor := serverProtocolVersion(r.conn.srv.cfg.Protocol)
	if r.reqMajor != srvMajor && r.reqMajor != 1 {
		r.conn.srv.cfg.Logger.Warnf("connection %s: %v", r.conn.id, gwerrors.New(ErrorVersionNotSupported))
		_ = r.simpleResponse(505, "HTTP Version Not Supported")
		r.closeConnection = true
		return nil
	}
	if r.reqMajor > srvMajor {
		r.resMinor = srvMinor
	} else if r.reqMinor < srvMinor {
		r.resMinor = r.reqMinor
	} else {
		r.resMinor = srvMinor
	}
	r.responseProto = fmt.Sprintf("HTTP/%d.%d", r.reqMajor, r.resMinor)

	prefix, app, ok := r.conn.srv.mounts.match(decodedPath)
	if !ok {
		r.conn.srv.cfg.Logger.Warnf("connection %s: %v", r.conn.id, gwerrors.New(ErrorNoMount))
		_ = r.simpleResponse(404, "Not Found")
		return nil
	}
	r.scriptName = prefix
	r.pathInfo = pathInfoFor(decodedPath, prefix)

	if scheme != "" {
		r.environEarlyScheme = scheme
	}
	if netloc != "" {
		r.environEarlyServerName = netloc
	}

	if err := r.readHeaders(); err != nil {
		_ = r.simpleResponse(400, "Malformed headers")
		return nil
	}

	r.applyAuthorization()
	r.applyConnectionDisposition()

	if serr := r.frameBody(); serr != nil {
		r.conn.srv.cfg.Logger.Warnf("connection %s: %v", r.conn.id, serr)
		if serr == errUnsupportedTE {
			r.closeConnection = true
			_ = r.simpleResponse(501, "Unsupported transfer-encoding")
			return nil
		}
		if serr == errLengthRequired {
			_ = r.simpleResponse(411, "Length Required")
			return nil
		}
		_ = r.simpleResponse(400, "Malformed chunked transfer-coding")
		return nil
	}

	if strings.EqualFold(r.rawHeaders.Get("Expect"), "100-continue") {
		if werr := r.writeInterim100(); werr != nil {
			return werr
		}
	}

	r.buildEnviron(app)
	r.ready = true
	return nil
}

var errUnsupportedTE = gwerrors.New(ErrorUnsupportedTransferEncoding)
var errLengthRequired = gwerrors.New(ErrorLengthRequired)

func serverProtocolVersion(proto string) (int, int) {
	m := protocolRE.FindStringSubmatch(proto)
	if len(m) != 3 {
		return 1, 1
	}
	maj, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return maj, min
}

// splitRequestURI decomposes a request-target per §4.E step 3: asterisk-form,
// origin-form, or absolute-form (propagating scheme/netloc).
func splitRequestURI(raw string) (path, query, scheme, netloc string, err error) {
	switch {
	case raw == "*":
		return "*", "", "", "", nil

	case strings.HasPrefix(raw, "/"):
		if idx := strings.IndexByte(raw, '?'); idx >= 0 {
			return raw[:idx], raw[idx+1:], "", "", nil
		}
		return raw, "", "", "", nil

	default:
		u, uerr := url.Parse(raw)
		if uerr != nil || u.Scheme == "" || u.Host == "" {
			return "", "", "", "", fmt.Errorf("not an absolute-URI: %q", raw)
		}
		p := u.Path
		if p == "" {
			p = "/"
		}
		return p, u.RawQuery, u.Scheme, u.Host, nil
	}
}

// decodePathPreserving2F percent-decodes every escape in path except %2F,
// which is split out, left untouched, and rejoined in its canonical
// uppercase form (§4.E step 4).
func decodePathPreserving2F(path string) (string, error) {
	if path == "*" || path == "" {
		return path, nil
	}

	atoms := percent2F.Split(path, -1)
	out := make([]string, len(atoms))
	for i, a := range atoms {
		d, err := url.PathUnescape(a)
		if err != nil {
			return "", err
		}
		out[i] = d
	}
	return strings.Join(out, "%2F"), nil
}

// pathInfoFor computes PATH_INFO given the matched mount prefix (§4.G).
func pathInfoFor(path, prefix string) string {
	if path == "*" {
		return path
	}
	if path == prefix {
		return ""
	}
	return path[len(prefix):]
}

// readHeaders reads message headers up to the blank-line terminator,
// tolerating classic line-folding continuations, validating each field name
// as an HTTP token, and accumulating repeated instances for the
// comma-concatenation decided at environ-build time (§4.E step 7).
func (r *Request) readHeaders() error {
	var lastName string

	for {
		line, err := r.readLine()
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}

		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && lastName != "" {
			vs := r.rawHeaders[lastName]
			if n := len(vs); n > 0 {
				vs[n-1] = vs[n-1] + " " + strings.TrimSpace(line)
			}
			continue
		}

		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return fmt.Errorf("malformed header line: %q", line)
		}

		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])

		if !httpguts.ValidHeaderFieldName(name) {
			return fmt.Errorf("invalid header field name: %q", name)
		}

		canon := http.CanonicalHeaderKey(name)
		r.rawHeaders[canon] = append(r.rawHeaders[canon], value)
		lastName = canon
	}
}

// headerValue resolves one header's environment value per the
// comma-concatenation rule of §4.E step 7, and last-wins otherwise (SPEC_FULL
// §9 Open Question (a) resolution).
func (r *Request) headerValue(canon string) (string, bool) {
	vs := r.rawHeaders[canon]
	if len(vs) == 0 {
		return "", false
	}
	if joinableHeaders[strings.ToLower(canon)] {
		return strings.Join(vs, ", "), true
	}
	return vs[len(vs)-1], true
}

// applyAuthorization implements AUTH_TYPE/REMOTE_USER extraction. AUTH_TYPE
// is always set from the scheme token of an Authorization header if present
// (SPEC_FULL.md supplemented feature); REMOTE_USER is populated only for the
// Basic scheme.
func (r *Request) applyAuthorization() {
	v, ok := r.headerValue("Authorization")
	if !ok {
		return
	}
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return
	}

	r.authType = fields[0]

	if strings.EqualFold(fields[0], "Basic") && len(fields) > 1 {
		dec, err := base64.StdEncoding.DecodeString(fields[1])
		if err == nil {
			if idx := bytes.IndexByte(dec, ':'); idx >= 0 {
				r.remoteUser = string(dec[:idx])
			}
		}
	}
}

// applyConnectionDisposition implements §4.E step 9.
func (r *Request) applyConnectionDisposition() {
	conn, _ := r.headerValue("Connection")
	tokens := splitCommaTokens(conn)

	keepAlive := r.reqMajor == 1 && r.reqMinor >= 1
	for _, t := range tokens {
		switch strings.ToLower(t) {
		case "close":
			keepAlive = false
		case "keep-alive":
			keepAlive = true
		}
	}

	r.closeConnection = !keepAlive

	if keepAlive {
		r.respHeader.Set("Connection", "Keep-Alive")
	} else {
		r.respHeader.Set("Connection", "close")
	}
}

func splitCommaTokens(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// frameBody implements §4.E step 10 and the chunked decoder of §4.E's
// "Chunked decoding" paragraph.
func (r *Request) frameBody() error {
	te, hasTE := r.headerValue("Transfer-Encoding")
	if hasTE && te != "" {
		tokens := splitCommaTokens(te)
		if len(tokens) == 0 || !strings.EqualFold(tokens[len(tokens)-1], "chunked") {
			return errUnsupportedTE
		}

		buf, trailer, err := decodeChunked(r.conn.r)
		if err != nil {
			return err
		}
		r.mergeTrailer(trailer)

		r.contentLength = int64(len(buf))
		r.body = bytes.NewReader(buf)
		return nil
	}

	clStr, hasCL := r.headerValue("Content-Length")
	if !hasCL || clStr == "" {
		if r.method == "POST" || r.method == "PUT" {
			return errLengthRequired
		}
		r.body = bytes.NewReader(nil)
		return nil
	}

	cl, err := strconv.ParseInt(strings.TrimSpace(clStr), 10, 64)
	if err != nil || cl < 0 {
		return fmt.Errorf("malformed content-length")
	}

	r.contentLength = cl
	r.body = io.LimitReader(r.conn.r, cl)
	return nil
}

// mergeTrailer folds chunked-transfer trailer headers into rawHeaders the
// same way the main header block was read.
func (r *Request) mergeTrailer(trailer http.Header) {
	for k, vs := range trailer {
		r.rawHeaders[k] = append(r.rawHeaders[k], vs...)
	}
}

// decodeChunked implements the in-memory chunked decoder of §4.E. An
// implementer may choose a streaming decoder instead (§9 design note); this
// one buffers, matching the reference.
func decodeChunked(r *bufio.Reader) ([]byte, http.Header, error) {
	var buf bytes.Buffer

	for {
		line, err := readChunkLine(r)
		if err != nil {
			return nil, nil, err
		}

		sizeTok := line
		if idx := strings.IndexByte(line, ';'); idx >= 0 {
			sizeTok = line[:idx]
		}
		sizeTok = strings.TrimSpace(sizeTok)

		size, err := strconv.ParseInt(sizeTok, 16, 64)
		if err != nil {
			return nil, nil, gwerrors.ErrorParent(ErrorBadChunkFraming, fmt.Errorf("bad chunk size: %q", sizeTok))
		}
		if size <= 0 {
			break
		}

		chunk := make([]byte, size)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, nil, err
		}
		buf.Write(chunk)

		term := make([]byte, 2)
		if _, err := io.ReadFull(r, term); err != nil {
			return nil, nil, err
		}
		if term[0] != '\r' || term[1] != '\n' {
			return nil, nil, gwerrors.New(ErrorBadChunkFraming)
		}
	}

	trailer := http.Header{}
	for {
		line, err := readChunkLine(r)
		if err != nil {
			return nil, nil, err
		}
		if line == "" {
			break
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, nil, gwerrors.ErrorParent(ErrorBadChunkFraming, fmt.Errorf("malformed trailer line: %q", line))
		}
		name := http.CanonicalHeaderKey(strings.TrimSpace(line[:idx]))
		trailer[name] = append(trailer[name], strings.TrimSpace(line[idx+1:]))
	}

	return buf.Bytes(), trailer, nil
}

func readChunkLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// writeInterim100 sends the 100 Continue interim response (§4.E step 11, P5).
func (r *Request) writeInterim100() error {
	_, err := r.conn.w.WriteString(r.responseProto + " 100 Continue\r\n\r\n")
	if err != nil {
		return err
	}
	return r.conn.w.Flush()
}

// buildEnviron constructs the per-request environment by overlaying the
// connection template (§4.G).
func (r *Request) buildEnviron(app gwapp.Application) {
	e := r.conn.environTemplate()

	e["REQUEST_METHOD"] = r.method
	e["SCRIPT_NAME"] = r.scriptName
	e["PATH_INFO"] = r.pathInfo
	e["QUERY_STRING"] = r.queryString
	e["SERVER_PROTOCOL"] = r.reqProtoStr
	e["ACTUAL_SERVER_PROTOCOL"] = r.conn.srv.cfg.Protocol
	e["SERVER_SOFTWARE"] = r.conn.srv.cfg.ServerToken + " WSGI Server"
	e["wsgi.input"] = r.body
	e["GW_REQUEST_ID"] = r.id

	if r.environEarlyScheme != "" {
		e["wsgi.url_scheme"] = r.environEarlyScheme
	}
	if r.environEarlyServerName != "" {
		e["SERVER_NAME"] = r.environEarlyServerName
	}

	if r.contentLength > 0 || r.hasContentLengthHeader() {
		e["CONTENT_LENGTH"] = strconv.FormatInt(r.contentLength, 10)
	}
	if ct, ok := r.headerValue("Content-Type"); ok {
		e["CONTENT_TYPE"] = ct
	}

	for canon := range r.rawHeaders {
		lower := strings.ToLower(canon)
		if lower == "content-type" || lower == "content-length" || lower == "transfer-encoding" {
			continue
		}
		val, _ := r.headerValue(canon)
		key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(canon, "-", "_"))
		e[key] = val
	}

	if r.authType != "" {
		e["AUTH_TYPE"] = r.authType
	}
	if r.remoteUser != "" {
		e["REMOTE_USER"] = r.remoteUser
	}

	r.environ = e
	r.app = app
}

func (r *Request) hasContentLengthHeader() bool {
	_, ok := r.rawHeaders["Content-Length"]
	return ok
}
