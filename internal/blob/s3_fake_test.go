package blob

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const fakeListPageSize = 2

// fakeS3 answers the path-style subset of the S3 REST API used by the S3 driver.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

type fakeObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
}

func newFakeS3Store(t *testing.T) (*S3, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string]fakeObject)}
	store, err := NewS3(context.Background(), S3Config{
		Bucket:          "scenes",
		Region:          "us-east-1",
		Endpoint:        "https://fake.s3.local",
		PathStyle:       true,
		AccessKeyID:     "AKIAFAKE",
		SecretAccessKey: "secret",
		HTTPClient:      &http.Client{Transport: fake},
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	return store, fake
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	q := req.URL.Query()
	if req.Method == http.MethodGet && q.Get("list-type") == "2" {
		return f.list(q.Get("prefix"), q.Get("continuation-token")), nil
	}
	switch req.Method {
	case http.MethodHead:
		obj, ok := f.objects[key]
		if !ok {
			return respond(http.StatusNotFound, nil, nil), nil
		}
		return respond(http.StatusOK, objectHeaders(obj), nil), nil
	case http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			body := []byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return respond(http.StatusNotFound, http.Header{"Content-Type": {"application/xml"}}, body), nil
		}
		return respond(http.StatusOK, objectHeaders(obj), obj.body), nil
	case http.MethodPut:
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			if raw, err = decodeAWSChunked(raw); err != nil {
				return nil, err
			}
		}
		md := make(map[string]string)
		for name, vals := range req.Header {
			if lower := strings.ToLower(name); strings.HasPrefix(lower, "x-amz-meta-") {
				md[strings.TrimPrefix(lower, "x-amz-meta-")] = vals[0]
			}
		}
		f.objects[key] = fakeObject{body: raw, contentType: req.Header.Get("Content-Type"), metadata: md}
		return respond(http.StatusOK, http.Header{"ETag": {`"fake"`}}, nil), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return respond(http.StatusNoContent, nil, nil), nil
	}
	return respond(http.StatusNotImplemented, nil, nil), nil
}

func (f *fakeS3) list(prefix, after string) *http.Response {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) && k > after {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult>`)
	if len(keys) > fakeListPageSize {
		keys = keys[:fakeListPageSize]
		fmt.Fprintf(&b, "<IsTruncated>true</IsTruncated><NextContinuationToken>%s</NextContinuationToken>", keys[len(keys)-1])
	} else {
		b.WriteString("<IsTruncated>false</IsTruncated>")
	}
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><ETag>&quot;fake&quot;</ETag><LastModified>2026-01-01T00:00:00Z</LastModified></Contents>", k, len(f.objects[k].body))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, http.Header{"Content-Type": {"application/xml"}}, []byte(b.String()))
}

func objectHeaders(obj fakeObject) http.Header {
	h := http.Header{
		"Content-Length": {strconv.Itoa(len(obj.body))},
		"Content-Type":   {obj.contentType},
		"Etag":           {`"fake"`},
		"Last-Modified":  {time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat)},
	}
	for k, v := range obj.metadata {
		h.Set("X-Amz-Meta-"+k, v)
	}
	return h
}

func respond(status int, header http.Header, body []byte) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode:    status,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

// decodeAWSChunked strips aws-chunked framing: "<hex>[;ext]\r\n<data>\r\n" repeated
// until a zero-length chunk, followed by optional trailers.
func decodeAWSChunked(raw []byte) ([]byte, error) {
	r := bufio.NewReader(bytes.NewReader(raw))
	var out bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("chunk header: %w", err)
		}
		line = strings.TrimSpace(line)
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		n, err := strconv.ParseInt(line, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("chunk size %q: %w", line, err)
		}
		if n == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, r, n); err != nil {
			return nil, err
		}
		if _, err := r.Discard(2); err != nil {
			return nil, err
		}
	}
}
