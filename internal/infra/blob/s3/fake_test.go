package s3

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeBucket serves the handful of S3 REST calls the store issues, for a
// single path-style bucket held in memory.
type fakeBucket struct {
	name    string
	mu      sync.Mutex
	objects map[string]fakeObject
}

type fakeObject struct {
	body        []byte
	contentType string
	modified    time.Time
}

type listResult struct {
	XMLName     xml.Name      `xml:"ListBucketResult"`
	Name        string        `xml:"Name"`
	Prefix      string        `xml:"Prefix"`
	IsTruncated bool          `xml:"IsTruncated"`
	KeyCount    int           `xml:"KeyCount"`
	Contents    []listContent `xml:"Contents"`
}

type listContent struct {
	Key          string `xml:"Key"`
	Size         int64  `xml:"Size"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
}

const noSuchKey = `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

// roundTripper hands each SDK request straight to the handler.
type roundTripper struct{ h http.Handler }

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	rt.h.ServeHTTP(rec, req)
	return rec.Result(), nil
}

// newFakeStore returns a Store whose SDK client talks to an empty fakeBucket.
func newFakeStore(t *testing.T, prefix string) (*Store, *fakeBucket) {
	t.Helper()
	fb := &fakeBucket{name: "backups", objects: map[string]fakeObject{}}
	store, err := newStore(context.Background(), Config{
		Bucket:          fb.name,
		Prefix:          prefix,
		Region:          "eu-west-1",
		Endpoint:        "https://objects.test",
		PathStyle:       true,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}, &http.Client{Transport: roundTripper{h: fb}})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, fb
}

func (fb *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != fb.name {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch {
	case r.Method == http.MethodGet && key == "" && r.URL.Query().Get("list-type") == "2":
		fb.list(w, r.URL.Query().Get("prefix"))
	case r.Method == http.MethodHead:
		obj, ok := fb.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeObjectHeaders(w, obj)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		obj, ok := fb.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, noSuchKey)
			return
		}
		writeObjectHeaders(w, obj)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(obj.body)
	case r.Method == http.MethodPut:
		body, err := readPayload(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fb.objects[key] = fakeObject{body: body, contentType: r.Header.Get("Content-Type"), modified: time.Now().UTC()}
		w.Header().Set("ETag", etagOf(body))
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(fb.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (fb *fakeBucket) list(w http.ResponseWriter, prefix string) {
	res := listResult{Name: fb.name, Prefix: prefix}
	for key, obj := range fb.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		res.Contents = append(res.Contents, listContent{
			Key:          key,
			Size:         int64(len(obj.body)),
			LastModified: obj.modified.Format(time.RFC3339),
			ETag:         etagOf(obj.body),
		})
	}
	sort.Slice(res.Contents, func(i, j int) bool { return res.Contents[i].Key < res.Contents[j].Key })
	res.KeyCount = len(res.Contents)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(res)
}

func writeObjectHeaders(w http.ResponseWriter, obj fakeObject) {
	h := w.Header()
	h.Set("Content-Length", strconv.Itoa(len(obj.body)))
	h.Set("Content-Type", obj.contentType)
	h.Set("ETag", etagOf(obj.body))
	h.Set("Last-Modified", obj.modified.Format(http.TimeFormat))
}

func etagOf(body []byte) string {
	return fmt.Sprintf(`"%x"`, len(body))
}

// readPayload returns the object bytes of a PUT, unwrapping aws-chunked
// framing when the SDK streams with a trailing checksum.
func readPayload(r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") && r.Header.Get("X-Amz-Decoded-Content-Length") == "" {
		return raw, nil
	}
	return decodeAWSChunked(raw)
}

// decodeAWSChunked reads "<hex-size>[;ext]\r\n<data>\r\n" frames up to the
// zero-length frame and ignores any trailer that follows.
func decodeAWSChunked(raw []byte) ([]byte, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	var out bytes.Buffer
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("chunk header: %w", err)
		}
		sizeField, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeField, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("chunk size %q: %w", sizeField, err)
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, br, size); err != nil {
			return nil, fmt.Errorf("chunk body: %w", err)
		}
		if _, err := br.Discard(2); err != nil {
			return nil, fmt.Errorf("chunk terminator: %w", err)
		}
	}
}
